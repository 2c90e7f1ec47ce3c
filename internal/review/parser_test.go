package review

import (
	"strings"
	"testing"
)

const validEntry = `{"severity": "HIGH", "category": "bug", "file": "main.go", "line_start": 3, "line_end": 5, "rationale": "nil dereference", "suggested_code": "if p != nil {"}`

func TestParseFindings_CleanArray(t *testing.T) {
	res, err := ParseFindings("["+validEntry+"]", "chunk1")
	if err != nil {
		t.Fatalf("ParseFindings error: %v", err)
	}
	if len(res.Findings) != 1 || res.Dropped != 0 {
		t.Fatalf("findings = %d dropped = %d, want 1/0", len(res.Findings), res.Dropped)
	}
	f := res.Findings[0]
	if f.Severity != SeverityHigh {
		t.Errorf("Severity = %q, want HIGH", f.Severity)
	}
	if f.File != "main.go" || f.Lines.Start != 3 || f.Lines.End != 5 {
		t.Errorf("location = %s:%d-%d, want main.go:3-5", f.File, f.Lines.Start, f.Lines.End)
	}
	if f.ChunkID != "chunk1" {
		t.Errorf("ChunkID = %q, want chunk1", f.ChunkID)
	}
	if f.SuggestedCode == "" {
		t.Error("SuggestedCode lost")
	}
	if f.ID == "" {
		t.Error("ID not derived")
	}
}

func TestParseFindings_FencedArray(t *testing.T) {
	content := "```json\n[" + validEntry + "]\n```"
	res, err := ParseFindings(content, "c")
	if err != nil {
		t.Fatalf("ParseFindings error: %v", err)
	}
	if len(res.Findings) != 1 {
		t.Errorf("findings = %d, want 1", len(res.Findings))
	}
}

func TestParseFindings_ProseAroundArray(t *testing.T) {
	content := "Here is my review [as requested]:\n\n[" + validEntry + "]\n\nLet me know if you need more."
	res, err := ParseFindings(content, "c")
	if err != nil {
		t.Fatalf("ParseFindings error: %v", err)
	}
	if len(res.Findings) != 1 {
		t.Errorf("findings = %d, want 1", len(res.Findings))
	}
}

func TestParseFindings_SalvagesValidEntries(t *testing.T) {
	content := `[
		` + validEntry + `,
		{"severity": "SEVERE", "category": "bug", "file": "a.go", "line_start": 1, "rationale": "bad severity"},
		{"severity": "LOW", "category": "style", "line_start": 1, "rationale": "missing file"},
		{"severity": "LOW", "category": "style", "file": "a.go", "rationale": "missing line"},
		{"severity": "LOW", "category": "style", "file": "a.go", "line_start": 9, "line_end": -4, "rationale": "negative line"},
		{"severity": "MEDIUM", "category": "perf", "file": "b.go", "line_start": 7, "rationale": "second valid"}
	]`
	res, err := ParseFindings(content, "c")
	if err != nil {
		t.Fatalf("ParseFindings error: %v", err)
	}
	if len(res.Findings) != 2 {
		t.Fatalf("findings = %d, want 2", len(res.Findings))
	}
	if res.Dropped != 4 {
		t.Errorf("Dropped = %d, want 4", res.Dropped)
	}
	// Order preserved.
	if res.Findings[0].File != "main.go" || res.Findings[1].File != "b.go" {
		t.Errorf("order not preserved: %s, %s", res.Findings[0].File, res.Findings[1].File)
	}
}

func TestParseFindings_InvertedRangeReordered(t *testing.T) {
	content := `[{"severity": "LOW", "category": "style", "file": "a.go", "line_start": 9, "line_end": 4, "rationale": "reversed range"}]`
	res, err := ParseFindings(content, "c")
	if err != nil {
		t.Fatalf("ParseFindings error: %v", err)
	}
	if len(res.Findings) != 1 || res.Dropped != 0 {
		t.Fatalf("findings = %d, dropped = %d, want 1, 0", len(res.Findings), res.Dropped)
	}
	if res.Findings[0].Lines != (LineRange{Start: 4, End: 9}) {
		t.Errorf("Lines = %+v, want 4-9", res.Findings[0].Lines)
	}
}

func TestParseFindings_LineEndDefaultsToStart(t *testing.T) {
	content := `[{"severity": "low", "category": "style", "file": "a.go", "line_start": 12, "rationale": "x"}]`
	res, err := ParseFindings(content, "c")
	if err != nil {
		t.Fatalf("ParseFindings error: %v", err)
	}
	if res.Findings[0].Lines != (LineRange{Start: 12, End: 12}) {
		t.Errorf("Lines = %+v, want 12-12", res.Findings[0].Lines)
	}
	if res.Findings[0].Severity != SeverityLow {
		t.Errorf("lowercase severity not normalized: %q", res.Findings[0].Severity)
	}
}

func TestParseFindings_EmptyArrayIsSuccess(t *testing.T) {
	res, err := ParseFindings("[]", "c")
	if err != nil {
		t.Fatalf("ParseFindings error: %v", err)
	}
	if len(res.Findings) != 0 || res.Dropped != 0 {
		t.Errorf("findings = %d dropped = %d, want 0/0", len(res.Findings), res.Dropped)
	}
}

func TestParseFindings_SingleObjectAccepted(t *testing.T) {
	res, err := ParseFindings(validEntry, "c")
	if err != nil {
		t.Fatalf("ParseFindings error: %v", err)
	}
	if len(res.Findings) != 1 {
		t.Errorf("findings = %d, want 1", len(res.Findings))
	}
}

func TestParseFindings_NoJSON(t *testing.T) {
	if _, err := ParseFindings("I could not review this diff, sorry.", "c"); err == nil {
		t.Error("expected error for prose-only response")
	}
	if _, err := ParseFindings("", "c"); err == nil {
		t.Error("expected error for empty response")
	}
	if _, err := ParseFindings("   \n\t ", "c"); err == nil {
		t.Error("expected error for whitespace response")
	}
}

func TestParseFindings_NonObjectElements(t *testing.T) {
	content := `["loose string", 42, ` + validEntry + `]`
	res, err := ParseFindings(content, "c")
	if err != nil {
		t.Fatalf("ParseFindings error: %v", err)
	}
	if len(res.Findings) != 1 || res.Dropped != 2 {
		t.Errorf("findings = %d dropped = %d, want 1/2", len(res.Findings), res.Dropped)
	}
}

func TestParseFindings_BracketsInsideStrings(t *testing.T) {
	content := `[{"severity": "LOW", "category": "style", "file": "a.go", "line_start": 1, "rationale": "array syntax [1, 2] looks wrong"}]`
	res, err := ParseFindings(content, "c")
	if err != nil {
		t.Fatalf("ParseFindings error: %v", err)
	}
	if len(res.Findings) != 1 {
		t.Fatalf("findings = %d, want 1", len(res.Findings))
	}
	if !strings.Contains(res.Findings[0].Rationale, "[1, 2]") {
		t.Errorf("Rationale mangled: %q", res.Findings[0].Rationale)
	}
}

func TestParseFindings_DeterministicIDs(t *testing.T) {
	a, err := ParseFindings("["+validEntry+"]", "c")
	if err != nil {
		t.Fatal(err)
	}
	b, err := ParseFindings("["+validEntry+"]", "c")
	if err != nil {
		t.Fatal(err)
	}
	if a.Findings[0].ID != b.Findings[0].ID {
		t.Errorf("IDs differ across parses: %s vs %s", a.Findings[0].ID, b.Findings[0].ID)
	}
}
