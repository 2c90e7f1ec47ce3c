package diff

import (
	"path/filepath"
	"strings"
)

// LineKind classifies a single line record within a hunk.
type LineKind string

const (
	LineContext LineKind = "context"
	LineAdded   LineKind = "added"
	LineRemoved LineKind = "removed"
)

// Line is one line of a hunk body. OldNum is zero for added lines and
// NewNum is zero for removed lines.
type Line struct {
	Kind    LineKind
	Content string
	OldNum  int
	NewNum  int
}

// Hunk is a contiguous block of changes within one file.
type Hunk struct {
	Header   string // raw @@ line as it appeared in the input
	OldStart int
	OldCount int
	NewStart int
	NewCount int
	Lines    []Line
}

// Render reconstructs the hunk as unified-diff text, trailing newline
// included.
func (h Hunk) Render() string {
	var b strings.Builder
	b.WriteString(h.Header)
	b.WriteByte('\n')
	for _, ln := range h.Lines {
		switch ln.Kind {
		case LineAdded:
			b.WriteByte('+')
		case LineRemoved:
			b.WriteByte('-')
		default:
			b.WriteByte(' ')
		}
		b.WriteString(ln.Content)
		b.WriteByte('\n')
	}
	return b.String()
}

// File is one changed file and its hunks in input order. For deletions
// Path holds the old-side path, since no new-side path exists.
type File struct {
	Path    string
	OldPath string
	Hunks   []Hunk
	Size    int // rendered size in bytes
}

// Render reconstructs the file's hunks as unified-diff text.
func (f File) Render() string {
	var b strings.Builder
	for _, h := range f.Hunks {
		b.WriteString(h.Render())
	}
	return b.String()
}

// ContainsNewLine reports whether line n exists on the file's new side,
// that is, appears in some hunk as an added or context line.
func (f File) ContainsNewLine(n int) bool {
	for _, h := range f.Hunks {
		if n < h.NewStart {
			continue
		}
		for _, ln := range h.Lines {
			if ln.Kind != LineRemoved && ln.NewNum == n {
				return true
			}
		}
	}
	return false
}

// NewLineSet returns every new-side line number present in the file's
// hunks.
func (f File) NewLineSet() map[int]bool {
	set := make(map[int]bool)
	for _, h := range f.Hunks {
		for _, ln := range h.Lines {
			if ln.Kind != LineRemoved && ln.NewNum > 0 {
				set[ln.NewNum] = true
			}
		}
	}
	return set
}

// SkippedFile records a file excluded from review and why.
type SkippedFile struct {
	Path   string `json:"path"`
	Reason string `json:"reason"`
}

// Model is the parsed, filtered representation of one diff. It is built
// once per run and read-only afterward.
type Model struct {
	Files   []File
	Skipped []SkippedFile
	Size    int // total rendered size of Files in bytes
}

// Lookup returns the file entry for path.
func (m *Model) Lookup(path string) (File, bool) {
	for _, f := range m.Files {
		if f.Path == path {
			return f, true
		}
	}
	return File{}, false
}

// Paths lists the reviewable file paths in input order.
func (m *Model) Paths() []string {
	paths := make([]string, len(m.Files))
	for i, f := range m.Files {
		paths[i] = f.Path
	}
	return paths
}

// MatchesAny returns true if the path matches any of the given glob
// patterns. Patterns with a "**/" prefix also match against the path's
// base name.
func MatchesAny(path string, patterns []string) bool {
	for _, pattern := range patterns {
		matched, err := filepath.Match(pattern, path)
		if err == nil && matched {
			return true
		}
		clean := strings.TrimPrefix(pattern, "**/")
		if clean != pattern {
			matched, err = filepath.Match(clean, filepath.Base(path))
			if err == nil && matched {
				return true
			}
			matched, err = filepath.Match(clean, path)
			if err == nil && matched {
				return true
			}
		}
	}
	return false
}
