package review

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/ILoveScratch2/LLM-Reviewer/internal/providers"
)

// The scenarios below run the full pipeline — diff parse, chunking,
// provider call, response parse, merge, reconcile — against a stub
// provider.

const sqlConcatDiff = `diff --git a/db/query.go b/db/query.go
--- a/db/query.go
+++ b/db/query.go
@@ -10,4 +10,5 @@ func lookup(db *sql.DB, id string) (*User, error) {
 	var u User
+	row := db.QueryRow("SELECT * FROM users WHERE id = '" + id + "'")
 	err := row.Scan(&u.ID, &u.Name)
 	if err != nil {
 		return nil, err
`

func sqlInjectionResponse() string {
	return `[{"severity":"HIGH","category":"Security","file":"db/query.go","line_start":11,"line_end":11,` +
		`"rationale":"SQL built by string concatenation allows injection","suggested_code":"row := db.QueryRow(\"SELECT * FROM users WHERE id = ?\", id)"}]`
}

func runSQLScenario(t *testing.T) *Report {
	t.Helper()
	client := &mockClient{complete: func(ctx context.Context, req providers.CompletionRequest) (providers.CompletionResponse, error) {
		return providers.CompletionResponse{Content: sqlInjectionResponse(), Attempts: 1}, nil
	}}
	eng := testEngine(client, testConfig())
	report, err := eng.Run(context.Background(), sqlConcatDiff, InputInfo{Mode: "pr", Repo: "acme/widgets", PullNumber: 1})
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	return report
}

// Scenario A: one HIGH/Security finding on the added line produces
// exactly one create operation anchored to that line.
func TestPipeline_SQLInjectionFindingCreatesOneComment(t *testing.T) {
	report := runSQLScenario(t)

	if len(report.Findings) != 1 {
		t.Fatalf("Findings = %d, want 1", len(report.Findings))
	}
	f := report.Findings[0]
	if f.Severity != SeverityHigh {
		t.Errorf("Severity = %q, want HIGH", f.Severity)
	}
	if f.File != "db/query.go" || f.Lines.Start != 11 || f.Lines.End != 11 {
		t.Errorf("anchor = %s:%d-%d, want db/query.go:11-11", f.File, f.Lines.Start, f.Lines.End)
	}

	ops := Reconcile(report.Findings, nil)
	if len(ops) != 1 || ops[0].Kind != OpCreate {
		t.Fatalf("ops = %+v, want one create", ops)
	}
	if ops[0].Key.File != "db/query.go" || ops[0].Key.Start != 11 {
		t.Errorf("comment key anchored at %s:%d, want db/query.go:11", ops[0].Key.File, ops[0].Key.Start)
	}
}

// Scenario B: the same run against a PR that already carries the
// comment key creates nothing and skips once as a duplicate.
func TestPipeline_RerunWithExistingKeySkips(t *testing.T) {
	report := runSQLScenario(t)

	existing := map[CommentKey]bool{
		KeyFor(report.Findings[0]): true,
	}

	ops := Reconcile(report.Findings, existing)
	if len(Creates(ops)) != 0 {
		t.Error("second run should create no comments")
	}
	if len(ops) != 1 || ops[0].Kind != OpSkip {
		t.Fatalf("ops = %+v, want one skip", ops)
	}
	if !strings.Contains(ops[0].Reason, "previous run") {
		t.Errorf("skip reason = %q, want duplicate-from-previous-run", ops[0].Reason)
	}
}

// Scenario C: a diff over budget across three files splits into
// multiple chunks, each holding whole files only.
func TestPipeline_OverBudgetDiffSplitsAtFileBoundaries(t *testing.T) {
	// Three files of ~60 lines each against a tiny budget.
	raw := addedFileDiff("alpha.go", 60) + addedFileDiff("beta.go", 60) + addedFileDiff("gamma.go", 60)

	cfg := testConfig()
	cfg.MaxChunkTokens = 300

	client := &mockClient{complete: func(ctx context.Context, req providers.CompletionRequest) (providers.CompletionResponse, error) {
		return providers.CompletionResponse{Content: "[]", Attempts: 1}, nil
	}}
	eng := testEngine(client, cfg)

	report, err := eng.Run(context.Background(), raw, InputInfo{Mode: "diff", Target: "stdin"})
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}

	if report.Summary.ChunksTotal < 2 {
		t.Fatalf("ChunksTotal = %d, want >= 2", report.Summary.ChunksTotal)
	}
	// Whole files only: every chunk's files are disjoint and complete.
	seen := make(map[string]int)
	for _, c := range report.Chunks {
		for _, f := range c.Files {
			seen[f]++
		}
	}
	for _, f := range []string{"alpha.go", "beta.go", "gamma.go"} {
		if seen[f] != 1 {
			t.Errorf("file %s appears in %d chunks, want exactly 1", f, seen[f])
		}
	}
}

// A finding pointing at a context line outside the diff's new side is
// dropped and surfaces as unresolved, never posted.
func TestPipeline_OutOfDiffAnchorNeverPosted(t *testing.T) {
	client := &mockClient{complete: func(ctx context.Context, req providers.CompletionRequest) (providers.CompletionResponse, error) {
		body := fmt.Sprintf("[%s]", findingJSON("db/query.go", 999, "HIGH", "bug", "points nowhere"))
		return providers.CompletionResponse{Content: body, Attempts: 1}, nil
	}}
	eng := testEngine(client, testConfig())

	report, err := eng.Run(context.Background(), sqlConcatDiff, InputInfo{Mode: "diff"})
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}

	if len(report.Findings) != 0 {
		t.Fatalf("Findings = %d, want 0", len(report.Findings))
	}
	if len(report.Unresolved) != 1 {
		t.Fatalf("Unresolved = %d, want 1", len(report.Unresolved))
	}
	if ops := Reconcile(report.Findings, nil); len(ops) != 0 {
		t.Errorf("unresolved finding produced %d comment ops", len(ops))
	}
}

// Running the whole pipeline twice over the same diff yields identical
// chunk IDs and identical comment keys, so run two reconciled against
// run one creates nothing.
func TestPipeline_RerunIsIdempotent(t *testing.T) {
	first := runSQLScenario(t)
	second := runSQLScenario(t)

	if len(first.Chunks) != len(second.Chunks) {
		t.Fatalf("chunk counts differ: %d vs %d", len(first.Chunks), len(second.Chunks))
	}
	for i := range first.Chunks {
		if first.Chunks[i].ChunkID != second.Chunks[i].ChunkID {
			t.Errorf("chunk %d ID differs across runs", i)
		}
	}

	posted := make(map[CommentKey]bool)
	for _, op := range Creates(Reconcile(first.Findings, nil)) {
		posted[op.Key] = true
	}
	if creates := Creates(Reconcile(second.Findings, posted)); len(creates) != 0 {
		t.Errorf("second run produced %d creates, want 0", len(creates))
	}
}
