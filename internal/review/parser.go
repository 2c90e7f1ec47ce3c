package review

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"strings"
)

// rawFinding is the JSON structure the model is asked to return.
type rawFinding struct {
	Severity      string `json:"severity"`
	Category      string `json:"category"`
	File          string `json:"file"`
	LineStart     int    `json:"line_start"`
	LineEnd       int    `json:"line_end"`
	Rationale     string `json:"rationale"`
	SuggestedCode string `json:"suggested_code"`
}

// ParseResult carries the findings salvaged from a completion plus the
// number of entries dropped during validation.
type ParseResult struct {
	Findings []Finding
	Dropped  int
}

// ParseFindings extracts findings from raw model output. It tolerates
// markdown fences, prose around the JSON, and invalid entries mixed
// with valid ones: invalid entries are dropped and counted rather than
// failing the chunk. An error is returned only when no JSON array (or
// single finding object) can be located at all.
//
// An empty array is a successful review with zero findings, not an
// error.
func ParseFindings(content, chunkID string) (ParseResult, error) {
	s := strings.TrimSpace(content)
	if s == "" {
		return ParseResult{}, fmt.Errorf("empty response")
	}
	s = stripFences(s)

	elems, ok := extractArray(s)
	if !ok {
		// Some models return a bare finding object instead of a
		// one-element array.
		if obj, objOK := extractObject(s); objOK {
			elems = []json.RawMessage{obj}
		} else {
			return ParseResult{}, fmt.Errorf("no JSON array found in response")
		}
	}

	var res ParseResult
	for _, el := range elems {
		var r rawFinding
		if err := json.Unmarshal(el, &r); err != nil {
			res.Dropped++
			continue
		}
		f, valid := r.toFinding(chunkID)
		if !valid {
			res.Dropped++
			continue
		}
		res.Findings = append(res.Findings, f)
	}
	return res, nil
}

// toFinding validates and converts a raw entry. Entries missing the
// file, a positive start line, a known severity or a rationale are
// rejected; a missing end line defaults to the start line, and an
// inverted range is reordered.
func (r rawFinding) toFinding(chunkID string) (Finding, bool) {
	sev, ok := ParseSeverity(r.Severity)
	if !ok {
		return Finding{}, false
	}
	if r.File == "" || strings.TrimSpace(r.Rationale) == "" {
		return Finding{}, false
	}
	if r.LineStart <= 0 || r.LineEnd < 0 {
		return Finding{}, false
	}
	start, end := r.LineStart, r.LineEnd
	if end == 0 {
		end = start
	}
	// Models occasionally emit the range reversed. The lines are still
	// the ones meant, so reorder rather than drop.
	if end < start {
		start, end = end, start
	}

	f := Finding{
		Severity:      sev,
		Category:      Category(strings.TrimSpace(r.Category)),
		File:          r.File,
		Lines:         LineRange{Start: start, End: end},
		Rationale:     strings.TrimSpace(r.Rationale),
		SuggestedCode: r.SuggestedCode,
		ChunkID:       chunkID,
	}
	f.ID = findingID(f)
	return f, true
}

// findingID derives a deterministic identifier so repeated runs over
// the same diff produce the same IDs.
func findingID(f Finding) string {
	data := fmt.Sprintf("%s:%d-%d:%s:%s", f.File, f.Lines.Start, f.Lines.End, f.Category, f.Rationale)
	h := sha256.Sum256([]byte(data))
	return fmt.Sprintf("%x", h[:8])
}

// stripFences removes a markdown code fence wrapping the whole
// response.
func stripFences(content string) string {
	if !strings.HasPrefix(content, "```") {
		return content
	}
	lines := strings.Split(content, "\n")
	if len(lines) < 2 {
		return content
	}
	end := len(lines)
	if strings.TrimSpace(lines[end-1]) == "```" {
		end--
	}
	return strings.TrimSpace(strings.Join(lines[1:end], "\n"))
}

// extractArray finds the first parseable JSON array in s.
func extractArray(s string) ([]json.RawMessage, bool) {
	var elems []json.RawMessage
	if strings.HasPrefix(s, "[") {
		if err := json.Unmarshal([]byte(s), &elems); err == nil {
			return elems, true
		}
	}
	for i := 0; i < len(s); i++ {
		if s[i] != '[' {
			continue
		}
		end := matchBalanced(s, i)
		if end < 0 {
			continue
		}
		if err := json.Unmarshal([]byte(s[i:end+1]), &elems); err == nil {
			return elems, true
		}
	}
	return nil, false
}

// extractObject finds the first parseable JSON object in s.
func extractObject(s string) (json.RawMessage, bool) {
	for i := 0; i < len(s); i++ {
		if s[i] != '{' {
			continue
		}
		end := matchBalanced(s, i)
		if end < 0 {
			continue
		}
		candidate := []byte(s[i : end+1])
		if json.Valid(candidate) {
			return json.RawMessage(candidate), true
		}
	}
	return nil, false
}

// matchBalanced returns the index of the bracket closing s[start],
// skipping over string literals, or -1 when unbalanced.
func matchBalanced(s string, start int) int {
	open := s[start]
	closing := byte(']')
	if open == '{' {
		closing = '}'
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case open:
			depth++
		case closing:
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}
