package output

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/ILoveScratch2/LLM-Reviewer/internal/review"
)

// TextWriter outputs a human-readable text report.
type TextWriter struct{}

func (t *TextWriter) Write(w io.Writer, report *review.Report) error {
	ew := &errWriter{w: w}

	total := totalFindings(report.Summary.Counts)
	ew.printf("LLM Code Review — %s mode\n", report.Inputs.Mode)
	switch {
	case report.Inputs.Repo != "" && report.Inputs.PullNumber > 0:
		ew.printf("Pull request: %s#%d\n", report.Inputs.Repo, report.Inputs.PullNumber)
	case report.Inputs.Target != "":
		ew.printf("Target: %s\n", report.Inputs.Target)
	}
	ew.printf("Provider: %s (%s)\n", report.Provider, report.Model)
	ew.println(strings.Repeat("─", 60))
	ew.printf("Findings: %d total", total)
	if total > 0 {
		ew.printf(" (%d critical, %d high, %d medium, %d low)",
			report.Summary.Counts.Critical,
			report.Summary.Counts.High,
			report.Summary.Counts.Medium,
			report.Summary.Counts.Low,
		)
	}
	ew.println("")
	ew.printf("Chunks: %d succeeded, %d partial, %d failed of %d\n",
		report.Summary.ChunksSucceeded,
		report.Summary.ChunksPartial,
		report.Summary.ChunksFailed,
		report.Summary.ChunksTotal,
	)
	ew.println(strings.Repeat("─", 60))

	if total == 0 && !report.Partial {
		ew.println("\nNo issues found. Looks good!")
		t.writeDiagnostics(ew, report)
		return ew.err
	}

	grouped := groupBySeverity(report.Findings)
	for _, sev := range severityOrder {
		findings := grouped[sev]
		if len(findings) == 0 {
			continue
		}

		ew.printf("\n%s %s\n", severityIcon(sev), string(sev))
		ew.println(strings.Repeat("─", 40))

		sort.SliceStable(findings, func(i, j int) bool {
			return findings[i].File < findings[j].File
		})

		for _, f := range findings {
			ew.printf("\n  %s:%d-%d  [%s]\n",
				f.File, f.Lines.Start, f.Lines.End, f.Category)

			for _, line := range wrapText(f.Rationale, 70) {
				ew.printf("    %s\n", line)
			}

			if f.SuggestedCode != "" {
				ew.println("  Suggestion:")
				for _, line := range strings.Split(strings.TrimRight(f.SuggestedCode, "\n"), "\n") {
					ew.printf("    %s\n", line)
				}
			}
		}
	}

	t.writeDiagnostics(ew, report)

	ew.printf("\n%s\n", strings.Repeat("─", 60))
	ew.printf("Completed in %dms (parse: %dms, LLM: %dms)\n",
		report.Timing.TotalMs, report.Timing.ParseMs, report.Timing.LLMMs)

	return ew.err
}

// writeDiagnostics lists skipped files, failed chunks and unresolved
// anchors so partial runs are never silent about what they missed.
func (t *TextWriter) writeDiagnostics(ew *errWriter, report *review.Report) {
	if len(report.Skipped) > 0 {
		ew.println("\nSkipped files:")
		for _, s := range report.Skipped {
			ew.printf("  %s (%s)\n", s.Path, s.Reason)
		}
	}
	var failed []review.ChunkOutcome
	for _, c := range report.Chunks {
		if c.Status == review.ChunkFailed {
			failed = append(failed, c)
		}
	}
	if len(failed) > 0 {
		ew.println("\nFailed chunks:")
		for _, c := range failed {
			ew.printf("  chunk %s (%s): %s\n", c.ChunkID, strings.Join(c.Files, ", "), c.Error)
		}
	}
	if len(report.Unresolved) > 0 {
		ew.println("\nUnresolved findings (dropped):")
		for _, u := range report.Unresolved {
			ew.printf("  %s:%d-%d (%s)\n", u.File, u.Lines.Start, u.Lines.End, u.Reason)
		}
	}
}

// errWriter wraps an io.Writer and captures the first error.
type errWriter struct {
	w   io.Writer
	err error
}

func (ew *errWriter) printf(format string, args ...interface{}) {
	if ew.err != nil {
		return
	}
	_, ew.err = fmt.Fprintf(ew.w, format, args...)
}

func (ew *errWriter) println(s string) {
	if ew.err != nil {
		return
	}
	_, ew.err = fmt.Fprintln(ew.w, s)
}

func severityIcon(s review.Severity) string {
	switch s {
	case review.SeverityCritical:
		return "[!!!]"
	case review.SeverityHigh:
		return "[!!]"
	case review.SeverityMedium:
		return "[!]"
	case review.SeverityLow:
		return "[-]"
	default:
		return "[?]"
	}
}

func wrapText(text string, width int) []string {
	if len(text) <= width {
		return []string{text}
	}
	var lines []string
	words := strings.Fields(text)
	var current strings.Builder
	for _, word := range words {
		if current.Len()+len(word)+1 > width && current.Len() > 0 {
			lines = append(lines, current.String())
			current.Reset()
		}
		if current.Len() > 0 {
			current.WriteString(" ")
		}
		current.WriteString(word)
	}
	if current.Len() > 0 {
		lines = append(lines, current.String())
	}
	return lines
}
