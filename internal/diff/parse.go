package diff

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Options controls parsing and the per-file skip policy.
type Options struct {
	MaxFileBytes  int               // per-file size ceiling in raw bytes; 0 disables
	Exclude       []string          // glob patterns removed from review
	SensitivePath func(string) bool // optional path policy; matches are skipped
}

// MalformedDiffError reports a file section that could not be tokenized
// into hunks. It is scoped to a single file; parsing continues with the
// remaining files.
type MalformedDiffError struct {
	Path   string
	Detail string
}

func (e *MalformedDiffError) Error() string {
	return fmt.Sprintf("malformed diff for %s: %s", e.Path, e.Detail)
}

var hunkHeaderRe = regexp.MustCompile(`^@@ -(\d+)(?:,(\d+))? \+(\d+)(?:,(\d+))? @@`)

// Parse builds a Model from raw unified-diff text. Binary, oversized,
// excluded and unparseable files are recorded in Skipped rather than
// failing the run. A non-nil error means nothing in the input looked
// like a diff at all.
func Parse(raw string, opts Options) (*Model, error) {
	m := &Model{}
	if strings.TrimSpace(raw) == "" {
		return m, nil
	}

	for _, section := range splitSections(raw) {
		path, oldPath := sectionPaths(section)
		if path == "" {
			// Preamble before the first file header.
			continue
		}
		if isBinarySection(section) {
			m.skip(path, "binary file")
			continue
		}
		if MatchesAny(path, opts.Exclude) {
			m.skip(path, "excluded by pattern")
			continue
		}
		if opts.SensitivePath != nil && opts.SensitivePath(path) {
			m.skip(path, "sensitive path")
			continue
		}
		if opts.MaxFileBytes > 0 && len(section) > opts.MaxFileBytes {
			m.skip(path, fmt.Sprintf("too large (%d bytes, limit %d)", len(section), opts.MaxFileBytes))
			continue
		}

		f, err := parseFileSection(path, oldPath, section)
		if err != nil {
			var mde *MalformedDiffError
			if errors.As(err, &mde) {
				m.skip(path, "malformed diff: "+mde.Detail)
				continue
			}
			return nil, err
		}
		if len(f.Hunks) == 0 {
			// Rename or mode change with no content changes.
			continue
		}
		m.Files = append(m.Files, f)
		m.Size += f.Size
	}

	if len(m.Files) == 0 && len(m.Skipped) == 0 {
		return nil, fmt.Errorf("no file sections found in diff input")
	}
	return m, nil
}

func (m *Model) skip(path, reason string) {
	m.Skipped = append(m.Skipped, SkippedFile{Path: path, Reason: reason})
}

// splitSections cuts the raw diff into per-file sections. Git output is
// split at "diff --git" lines; plain unified diffs fall back to
// "--- " / "+++ " header pairs.
func splitSections(raw string) []string {
	if strings.Contains(raw, "diff --git ") {
		return splitAt(raw, func(lines []string, i int) bool {
			return strings.HasPrefix(lines[i], "diff --git ")
		})
	}
	return splitAt(raw, func(lines []string, i int) bool {
		return strings.HasPrefix(lines[i], "--- ") &&
			i+1 < len(lines) && strings.HasPrefix(lines[i+1], "+++ ")
	})
}

func splitAt(raw string, boundary func([]string, int) bool) []string {
	lines := strings.Split(raw, "\n")
	var sections []string
	var current strings.Builder
	for i, line := range lines {
		if boundary(lines, i) && current.Len() > 0 {
			sections = append(sections, current.String())
			current.Reset()
		}
		current.WriteString(line)
		current.WriteByte('\n')
	}
	if current.Len() > 0 {
		sections = append(sections, current.String())
	}
	return sections
}

// sectionPaths extracts the new-side path and, when present, the
// old-side path from a section's header lines. Deletions report the
// old path as the path. Scanning stops at the first hunk header so
// body lines cannot be mistaken for file headers.
func sectionPaths(section string) (path, oldPath string) {
	var gitPath string
	for _, ln := range strings.Split(section, "\n") {
		if strings.HasPrefix(ln, "@@") {
			break
		}
		switch {
		case strings.HasPrefix(ln, "diff --git "):
			rest := strings.TrimPrefix(ln, "diff --git ")
			if i := strings.LastIndex(rest, " b/"); i >= 0 {
				gitPath = rest[i+3:]
			}
		case strings.HasPrefix(ln, "--- "):
			p := stripPathLine(ln[4:])
			if p != "/dev/null" {
				oldPath = strings.TrimPrefix(p, "a/")
			}
		case strings.HasPrefix(ln, "+++ "):
			p := stripPathLine(ln[4:])
			if p == "/dev/null" {
				// Deleted file; anchor it to its old path.
				if oldPath != "" {
					return oldPath, oldPath
				}
				return gitPath, gitPath
			}
			return strings.TrimPrefix(p, "b/"), oldPath
		}
	}
	return gitPath, oldPath
}

// stripPathLine drops the tab-separated metadata some diff tools append
// after the path.
func stripPathLine(p string) string {
	if i := strings.IndexByte(p, '\t'); i >= 0 {
		p = p[:i]
	}
	return strings.TrimSpace(p)
}

func isBinarySection(section string) bool {
	for _, ln := range strings.Split(section, "\n") {
		if strings.HasPrefix(ln, "@@") {
			return false
		}
		if strings.HasPrefix(ln, "Binary files ") || ln == "GIT binary patch" {
			return true
		}
	}
	return false
}

// parseFileSection tokenizes one file section into hunks. Hunk bodies
// are consumed count-driven from the @@ header so that body lines
// beginning with "---" or "+++" are never confused with file headers.
func parseFileSection(path, oldPath, section string) (File, error) {
	f := File{Path: path, OldPath: oldPath}
	lines := strings.Split(section, "\n")

	var h *Hunk
	var oldLeft, newLeft int
	var oldN, newN int

	flush := func() {
		if h != nil {
			f.Hunks = append(f.Hunks, *h)
			h = nil
		}
	}

	for i, ln := range lines {
		if oldLeft > 0 || newLeft > 0 {
			switch {
			case strings.HasPrefix(ln, " "):
				h.Lines = append(h.Lines, Line{Kind: LineContext, Content: ln[1:], OldNum: oldN, NewNum: newN})
				oldN++
				newN++
				oldLeft--
				newLeft--
			case strings.HasPrefix(ln, "+"):
				h.Lines = append(h.Lines, Line{Kind: LineAdded, Content: ln[1:], NewNum: newN})
				newN++
				newLeft--
			case strings.HasPrefix(ln, "-"):
				h.Lines = append(h.Lines, Line{Kind: LineRemoved, Content: ln[1:], OldNum: oldN})
				oldN++
				oldLeft--
			case strings.HasPrefix(ln, `\`):
				// "\ No newline at end of file" carries no line content.
			case ln == "" && i == len(lines)-1:
				// Trailing artifact of splitting on newline.
			case ln == "":
				// Some tools strip the space prefix from empty context lines.
				h.Lines = append(h.Lines, Line{Kind: LineContext, Content: "", OldNum: oldN, NewNum: newN})
				oldN++
				newN++
				oldLeft--
				newLeft--
			default:
				return File{}, &MalformedDiffError{Path: path, Detail: fmt.Sprintf("unexpected line in hunk body: %q", clip(ln, 50))}
			}
			continue
		}

		if m := hunkHeaderRe.FindStringSubmatch(ln); m != nil {
			flush()
			h = &Hunk{
				Header:   ln,
				OldStart: atoi(m[1]),
				OldCount: atoiDefault(m[2], 1),
				NewStart: atoi(m[3]),
				NewCount: atoiDefault(m[4], 1),
			}
			oldLeft, newLeft = h.OldCount, h.NewCount
			oldN, newN = h.OldStart, h.NewStart
			continue
		}
		if strings.HasPrefix(ln, "@@") {
			return File{}, &MalformedDiffError{Path: path, Detail: "bad hunk header: " + clip(ln, 50)}
		}
		// Anything else between hunks is file metadata (index, mode,
		// similarity and friends).
	}

	if oldLeft > 0 || newLeft > 0 {
		return File{}, &MalformedDiffError{Path: path, Detail: "truncated hunk"}
	}
	flush()
	f.Size = len(f.Render())
	return f, nil
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

func atoiDefault(s string, def int) int {
	if s == "" {
		return def
	}
	return atoi(s)
}

func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
