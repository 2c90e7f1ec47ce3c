package review

import (
	"fmt"
	"sort"
	"strings"
)

// Severity represents the severity level of a finding. Values are
// uppercase on the wire; ParseSeverity accepts any casing.
type Severity string

const (
	SeverityLow      Severity = "LOW"
	SeverityMedium   Severity = "MEDIUM"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

// SeverityRank returns a numeric rank for sorting (higher = more severe).
func SeverityRank(s Severity) int {
	switch s {
	case SeverityCritical:
		return 4
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 1
	default:
		return 0
	}
}

// ParseSeverity normalizes a raw severity string. ok is false for
// values outside the enum.
func ParseSeverity(raw string) (Severity, bool) {
	s := Severity(strings.ToUpper(strings.TrimSpace(raw)))
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return s, true
	}
	return "", false
}

// MeetsThreshold returns true if severity is at or above the threshold.
// A threshold of "none" (or empty) never matches.
func MeetsThreshold(s Severity, threshold string) bool {
	if threshold == "none" || threshold == "" {
		return false
	}
	t, ok := ParseSeverity(threshold)
	if !ok {
		return false
	}
	return SeverityRank(s) >= SeverityRank(t)
}

// Category represents the type of finding. The model may emit values
// outside this list; they are kept as-is and only normalized when
// building comment keys.
type Category string

const (
	CategoryBug             Category = "bug"
	CategorySecurity        Category = "security"
	CategoryPerformance     Category = "performance"
	CategoryCorrectness     Category = "correctness"
	CategoryStyle           Category = "style"
	CategoryMaintainability Category = "maintainability"
	CategoryTesting         Category = "testing"
	CategoryDocs            Category = "docs"
)

// LineRange is a range of new-side line numbers, inclusive.
type LineRange struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Finding represents a single code review finding.
type Finding struct {
	ID            string    `json:"id"`
	Severity      Severity  `json:"severity"`
	Category      Category  `json:"category"`
	File          string    `json:"file"`
	Lines         LineRange `json:"lines"`
	Rationale     string    `json:"rationale"`
	SuggestedCode string    `json:"suggestedCode,omitempty"`
	ChunkID       string    `json:"chunkId"`
}

// CommentKey identifies a review comment's logical position. Two
// findings with equal keys describe the same issue for idempotency
// purposes, regardless of rationale wording.
type CommentKey struct {
	File     string
	Start    int
	End      int
	Category string
}

// KeyFor derives the comment key of a finding. The category is
// lowercased with whitespace collapsed so that "Bug" and "bug " from
// different runs collide.
func KeyFor(f Finding) CommentKey {
	return CommentKey{
		File:     f.File,
		Start:    f.Lines.Start,
		End:      f.Lines.End,
		Category: NormalizeCategory(string(f.Category)),
	}
}

// NormalizeCategory lowercases and collapses inner whitespace.
func NormalizeCategory(raw string) string {
	return strings.Join(strings.Fields(strings.ToLower(raw)), " ")
}

func (k CommentKey) String() string {
	return fmt.Sprintf("%s#L%d-L%d %s", k.File, k.Start, k.End, k.Category)
}

// ChunkStatus describes how a chunk's provider call ended.
type ChunkStatus string

const (
	ChunkSucceeded ChunkStatus = "succeeded"
	ChunkPartial   ChunkStatus = "partial"
	ChunkFailed    ChunkStatus = "failed"
)

// ChunkOutcome records the per-chunk result that feeds the report.
// Findings and Dropped are counts; the findings themselves live on the
// report keyed back here via ChunkID.
type ChunkOutcome struct {
	ChunkID    string      `json:"chunkId"`
	Index      int         `json:"index"`
	Files      []string    `json:"files"`
	Status     ChunkStatus `json:"status"`
	Findings   int         `json:"findings"`
	Dropped    int         `json:"dropped"`
	Attempts   int         `json:"attempts"`
	DurationMs int64       `json:"durationMs"`
	Error      string      `json:"error,omitempty"`
	Cached     bool        `json:"cached,omitempty"`
}

// InputInfo describes what was reviewed.
type InputInfo struct {
	Mode       string `json:"mode"` // "pr" or "diff"
	Repo       string `json:"repo,omitempty"`
	PullNumber int    `json:"pullNumber,omitempty"`
	Target     string `json:"target,omitempty"`
}

// SeverityCounts holds counts by severity level.
type SeverityCounts struct {
	Low      int `json:"low"`
	Medium   int `json:"medium"`
	High     int `json:"high"`
	Critical int `json:"critical"`
}

// Summary provides an overview of findings and chunk outcomes.
type Summary struct {
	Counts          SeverityCounts `json:"counts"`
	HighestSeverity Severity       `json:"highestSeverity,omitempty"`
	ChunksTotal     int            `json:"chunksTotal"`
	ChunksSucceeded int            `json:"chunksSucceeded"`
	ChunksPartial   int            `json:"chunksPartial"`
	ChunksFailed    int            `json:"chunksFailed"`
}

// Timing contains phase durations. The fetch and post phases only
// apply in pull-request mode and are filled in by the caller.
type Timing struct {
	FetchMs int64 `json:"fetchMs,omitempty"`
	ParseMs int64 `json:"parseMs"`
	LLMMs   int64 `json:"llmMs"`
	PostMs  int64 `json:"postMs,omitempty"`
	TotalMs int64 `json:"totalMs"`
}

// UnresolvedFinding records a model finding whose anchor did not
// resolve to a line on the new side of the diff.
type UnresolvedFinding struct {
	File   string    `json:"file"`
	Lines  LineRange `json:"lines"`
	Reason string    `json:"reason"`
}

// PostStatus is the result of posting one finding as a comment.
type PostStatus string

const (
	PostCreated PostStatus = "created"
	PostSkipped PostStatus = "skipped"
	PostFailed  PostStatus = "failed"
)

// PostOutcome records what happened to one finding at the posting
// stage. Reason is set for skips and failures.
type PostOutcome struct {
	FindingID string     `json:"findingId"`
	File      string     `json:"file"`
	Lines     LineRange  `json:"lines"`
	Status    PostStatus `json:"status"`
	Reason    string     `json:"reason,omitempty"`
}

// SkippedFile records a file excluded from review and why.
type SkippedFile struct {
	Path   string `json:"path"`
	Reason string `json:"reason"`
}

// Report is the top-level output structure. Partial is true when at
// least one chunk failed but others produced findings.
type Report struct {
	Tool     string         `json:"tool"`
	Version  string         `json:"version"`
	RunID    string         `json:"runId"`
	Provider string         `json:"provider"`
	Model    string         `json:"model"`
	Inputs   InputInfo      `json:"inputs"`
	Summary  Summary        `json:"summary"`
	Partial  bool           `json:"partial"`
	Findings []Finding      `json:"findings"`
	Chunks   []ChunkOutcome `json:"chunks"`
	Skipped  []SkippedFile  `json:"skipped,omitempty"`

	// Unresolved lists dropped anchors; Posts is filled in after the
	// reconciler has run, in pull-request mode only.
	Unresolved []UnresolvedFinding `json:"unresolved,omitempty"`
	Posts      []PostOutcome       `json:"posts,omitempty"`

	Timing Timing `json:"timing"`
}

// ComputeSummary calculates the summary from findings and chunk
// outcomes.
func ComputeSummary(findings []Finding, chunks []ChunkOutcome) Summary {
	var s Summary
	for _, f := range findings {
		switch f.Severity {
		case SeverityLow:
			s.Counts.Low++
		case SeverityMedium:
			s.Counts.Medium++
		case SeverityHigh:
			s.Counts.High++
		case SeverityCritical:
			s.Counts.Critical++
		}
		if SeverityRank(f.Severity) > SeverityRank(s.HighestSeverity) {
			s.HighestSeverity = f.Severity
		}
	}
	s.ChunksTotal = len(chunks)
	for _, c := range chunks {
		switch c.Status {
		case ChunkSucceeded:
			s.ChunksSucceeded++
		case ChunkPartial:
			s.ChunksPartial++
		case ChunkFailed:
			s.ChunksFailed++
		}
	}
	return s
}

// SortFindings orders by severity (most severe first), then file, then
// start line. The sort is stable so equal findings keep their merge
// order.
func SortFindings(findings []Finding) {
	sort.SliceStable(findings, func(i, j int) bool {
		ri, rj := SeverityRank(findings[i].Severity), SeverityRank(findings[j].Severity)
		if ri != rj {
			return ri > rj
		}
		if findings[i].File != findings[j].File {
			return findings[i].File < findings[j].File
		}
		return findings[i].Lines.Start < findings[j].Lines.Start
	})
}

// CapFindings limits a sorted findings slice to at most max entries.
// A max of zero or less means no cap.
func CapFindings(findings []Finding, max int) []Finding {
	if max <= 0 || len(findings) <= max {
		return findings
	}
	return findings[:max]
}
