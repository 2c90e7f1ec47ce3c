package review

import (
	"fmt"
	"strings"
)

const systemPromptText = `You are a strict, expert code reviewer. You review unified diff chunks and produce structured findings in JSON format.

Rules:
1. Only review lines added or changed in the diff. Do not comment on unchanged context lines.
2. Focus on bugs, security issues, performance problems, and correctness. Avoid style nits unless they hide a defect.
3. Be concise and actionable. Include replacement code when a concrete fix exists.
4. Line numbers refer to the new side of the diff. Only reference lines that appear in the diff.
5. Rate severity as "LOW", "MEDIUM", "HIGH" or "CRITICAL".
6. Categorize each finding as one of: bug, security, performance, correctness, style, maintainability, testing, docs.

You MUST respond with ONLY a JSON array of findings. No markdown, no explanation, no preamble. Just the JSON array.

Each finding must have this exact structure:
{
  "severity": "LOW|MEDIUM|HIGH|CRITICAL",
  "category": "bug|security|performance|correctness|style|maintainability|testing|docs",
  "file": "relative/file/path",
  "line_start": 1,
  "line_end": 1,
  "rationale": "What is wrong and why it matters",
  "suggested_code": "Replacement code, only when a concrete fix exists"
}

If there are no issues, respond with an empty array: []`

// SystemPrompt returns the system prompt. A non-empty language adds an
// instruction to write rationale text in that language.
func SystemPrompt(language string) string {
	if language == "" {
		return systemPromptText
	}
	return systemPromptText + fmt.Sprintf("\n\nWrite all rationale text in %s.", language)
}

// BuildPrompt constructs the user prompt for one chunk.
func BuildPrompt(chunk Chunk, maxFindings int, failOn string, rules *Rules) string {
	var b strings.Builder

	b.WriteString("Review the following code diff. Each file section starts with a \"File:\" header naming the file the hunks below it belong to.\n\n")

	if maxFindings > 0 {
		fmt.Fprintf(&b, "Return at most %d findings.\n", maxFindings)
	}
	if failOn != "" && failOn != "none" {
		fmt.Fprintf(&b, "Focus especially on findings with severity %s or above.\n", strings.ToUpper(failOn))
	}

	langs := detectLanguages(chunk.Files)
	if len(langs) > 0 {
		fmt.Fprintf(&b, "Languages: %s\n", strings.Join(langs, ", "))
	}

	if rulesSection := BuildRulesPromptSection(rules); rulesSection != "" {
		b.WriteString(rulesSection)
	}

	b.WriteString("\n--- BEGIN DIFF ---\n")
	b.WriteString(chunk.Content)
	b.WriteString("\n--- END DIFF ---\n")

	return b.String()
}

func detectLanguages(files []string) []string {
	langMap := map[string]string{
		".go":    "Go",
		".py":    "Python",
		".js":    "JavaScript",
		".ts":    "TypeScript",
		".tsx":   "TypeScript/React",
		".jsx":   "JavaScript/React",
		".rs":    "Rust",
		".java":  "Java",
		".rb":    "Ruby",
		".cpp":   "C++",
		".c":     "C",
		".h":     "C/C++",
		".cs":    "C#",
		".php":   "PHP",
		".swift": "Swift",
		".kt":    "Kotlin",
		".sql":   "SQL",
		".sh":    "Shell",
		".yaml":  "YAML",
		".yml":   "YAML",
		".json":  "JSON",
		".tf":    "Terraform",
	}

	seen := make(map[string]bool)
	var langs []string
	for _, f := range files {
		for ext, lang := range langMap {
			if strings.HasSuffix(f, ext) && !seen[lang] {
				seen[lang] = true
				langs = append(langs, lang)
			}
		}
	}
	return langs
}
