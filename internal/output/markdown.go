package output

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/ILoveScratch2/LLM-Reviewer/internal/review"
)

// MarkdownWriter outputs a PR-comment-friendly markdown report. The
// same rendering backs the summary comment posted on pull requests.
type MarkdownWriter struct{}

func (m *MarkdownWriter) Write(w io.Writer, report *review.Report) error {
	total := totalFindings(report.Summary.Counts)

	fmt.Fprintf(w, "## LLM Code Review\n\n")

	fmt.Fprintf(w, "| Severity | Count |\n")
	fmt.Fprintf(w, "|----------|-------|\n")
	fmt.Fprintf(w, "| Critical | %d    |\n", report.Summary.Counts.Critical)
	fmt.Fprintf(w, "| High     | %d    |\n", report.Summary.Counts.High)
	fmt.Fprintf(w, "| Medium   | %d    |\n", report.Summary.Counts.Medium)
	fmt.Fprintf(w, "| Low      | %d    |\n", report.Summary.Counts.Low)
	fmt.Fprintf(w, "| **Total** | **%d** |\n\n", total)

	if report.Partial {
		fmt.Fprintf(w, "> :warning: Partial review: %d of %d chunks did not complete cleanly.\n\n",
			report.Summary.ChunksFailed+report.Summary.ChunksPartial, report.Summary.ChunksTotal)
	}

	if total == 0 {
		fmt.Fprintln(w, "No issues found. :white_check_mark:")
		m.writeDiagnostics(w, report)
		return nil
	}

	grouped := groupBySeverity(report.Findings)
	for _, sev := range severityOrder {
		findings := grouped[sev]
		if len(findings) == 0 {
			continue
		}

		icon := mdSeverityIcon(sev)

		fmt.Fprintf(w, "<details>\n<summary>%s %s (%d)</summary>\n\n", icon, string(sev), len(findings))

		sort.SliceStable(findings, func(i, j int) bool {
			return findings[i].File < findings[j].File
		})

		for _, f := range findings {
			fmt.Fprintf(w, "### `%s:%d-%d`\n\n", f.File, f.Lines.Start, f.Lines.End)
			fmt.Fprintf(w, "**%s** | %s\n\n", f.Severity, f.Category)
			fmt.Fprintf(w, "%s\n\n", f.Rationale)

			if f.SuggestedCode != "" {
				lang := inferLang(f.File)
				fmt.Fprintf(w, "**Suggestion:**\n\n")
				fmt.Fprintf(w, "```%s\n%s\n```\n\n", lang, strings.TrimRight(f.SuggestedCode, "\n"))
			}

			fmt.Fprintf(w, "---\n\n")
		}

		fmt.Fprintf(w, "</details>\n\n")
	}

	m.writeDiagnostics(w, report)

	fmt.Fprintf(w, "*Reviewed %d chunk(s) in %dms (LLM: %dms) with %s/%s*\n",
		report.Summary.ChunksTotal, report.Timing.TotalMs, report.Timing.LLMMs,
		report.Provider, report.Model)

	return nil
}

func (m *MarkdownWriter) writeDiagnostics(w io.Writer, report *review.Report) {
	var failed []review.ChunkOutcome
	for _, c := range report.Chunks {
		if c.Status == review.ChunkFailed {
			failed = append(failed, c)
		}
	}
	if len(report.Skipped) == 0 && len(failed) == 0 {
		return
	}

	fmt.Fprintf(w, "<details>\n<summary>Diagnostics</summary>\n\n")
	if len(report.Skipped) > 0 {
		fmt.Fprintf(w, "Skipped files:\n\n")
		for _, s := range report.Skipped {
			fmt.Fprintf(w, "- `%s` — %s\n", s.Path, s.Reason)
		}
		fmt.Fprintln(w)
	}
	if len(failed) > 0 {
		fmt.Fprintf(w, "Failed chunks:\n\n")
		for _, c := range failed {
			fmt.Fprintf(w, "- chunk `%s` (%s) — %s\n", c.ChunkID, strings.Join(c.Files, ", "), c.Error)
		}
		fmt.Fprintln(w)
	}
	fmt.Fprintf(w, "</details>\n\n")
}

func mdSeverityIcon(s review.Severity) string {
	switch s {
	case review.SeverityCritical:
		return ":no_entry:"
	case review.SeverityHigh:
		return ":red_circle:"
	case review.SeverityMedium:
		return ":orange_circle:"
	case review.SeverityLow:
		return ":yellow_circle:"
	default:
		return ":white_circle:"
	}
}

func inferLang(path string) string {
	langMap := map[string]string{
		".go":   "go",
		".py":   "python",
		".js":   "javascript",
		".ts":   "typescript",
		".tsx":  "tsx",
		".jsx":  "jsx",
		".rs":   "rust",
		".java": "java",
		".rb":   "ruby",
		".cpp":  "cpp",
		".c":    "c",
		".cs":   "csharp",
		".php":  "php",
		".sh":   "bash",
		".sql":  "sql",
		".yaml": "yaml",
		".yml":  "yaml",
		".json": "json",
		".tf":   "hcl",
	}
	for ext, lang := range langMap {
		if strings.HasSuffix(path, ext) {
			return lang
		}
	}
	return ""
}
