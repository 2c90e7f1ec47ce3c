package review

import (
	"crypto/sha256"
	"fmt"
	"strings"

	"github.com/ILoveScratch2/LLM-Reviewer/internal/diff"
)

// DefaultMaxChunkTokens is the per-chunk token budget used when the
// configuration does not set one.
const DefaultMaxChunkTokens = 3000

// Chunk is a portion of the diff reviewed in one provider call.
// ID is a hash of Content, so identical chunk content produces the
// same ID across runs and results correlate by ID rather than by
// completion order.
type Chunk struct {
	ID        string
	Index     int
	Files     []string
	Content   string
	EstTokens int
	Oversized bool
}

// estimateTokens approximates the token count of text. Four characters
// per token is close enough for budget packing across the supported
// models.
func estimateTokens(s string) int {
	return (len(s) + 3) / 4
}

// chunkID hashes chunk content into a stable identifier.
func chunkID(content string) string {
	h := sha256.Sum256([]byte(content))
	return fmt.Sprintf("%x", h[:8])
}

// renderFileSection serializes one file's hunks under a path header so
// the model can attribute findings to the right file.
func renderFileSection(f diff.File) string {
	var b strings.Builder
	fmt.Fprintf(&b, "File: %s\n\n", f.Path)
	b.WriteString(f.Render())
	return b.String()
}

type pendingChunk struct {
	files     []string
	content   string
	tokens    int
	oversized bool
}

// BuildChunks packs files into chunks without ever splitting inside a
// hunk. Files are packed greedily in diff order; a file whose rendered
// section exceeds maxTokens is split at hunk boundaries into chunks of
// its own. A single hunk larger than the budget becomes an oversized
// chunk rather than being dropped.
func BuildChunks(m *diff.Model, maxTokens int) []Chunk {
	if maxTokens <= 0 {
		maxTokens = DefaultMaxChunkTokens
	}

	var pending []pendingChunk
	var cur pendingChunk

	flush := func() {
		if cur.content != "" {
			pending = append(pending, cur)
			cur = pendingChunk{}
		}
	}

	for _, f := range m.Files {
		section := renderFileSection(f)
		tokens := estimateTokens(section)

		if tokens > maxTokens {
			flush()
			pending = append(pending, splitFile(f, maxTokens)...)
			continue
		}
		if cur.tokens+tokens > maxTokens && cur.content != "" {
			flush()
		}
		cur.files = append(cur.files, f.Path)
		cur.content += section
		cur.tokens += tokens
	}
	flush()

	chunks := make([]Chunk, len(pending))
	for i, p := range pending {
		chunks[i] = Chunk{
			ID:        chunkID(p.content),
			Index:     i,
			Files:     p.files,
			Content:   p.content,
			EstTokens: p.tokens,
			Oversized: p.oversized,
		}
	}
	return chunks
}

// splitFile packs one file's hunks into as few chunks as fit the
// budget. Every piece repeats the path header.
func splitFile(f diff.File, maxTokens int) []pendingChunk {
	header := fmt.Sprintf("File: %s\n\n", f.Path)
	headerTokens := estimateTokens(header)

	var pieces []pendingChunk
	var body strings.Builder
	bodyTokens := 0

	flush := func(oversized bool) {
		if body.Len() == 0 {
			return
		}
		content := header + body.String()
		pieces = append(pieces, pendingChunk{
			files:     []string{f.Path},
			content:   content,
			tokens:    headerTokens + bodyTokens,
			oversized: oversized,
		})
		body.Reset()
		bodyTokens = 0
	}

	for _, h := range f.Hunks {
		rendered := h.Render()
		tokens := estimateTokens(rendered)

		if headerTokens+tokens > maxTokens {
			// The hunk alone blows the budget. Ship it whole and let
			// the provider cope; truncating mid-hunk would corrupt
			// line numbering.
			flush(false)
			body.WriteString(rendered)
			bodyTokens = tokens
			flush(true)
			continue
		}
		if headerTokens+bodyTokens+tokens > maxTokens && body.Len() > 0 {
			flush(false)
		}
		body.WriteString(rendered)
		bodyTokens += tokens
	}
	flush(false)

	return pieces
}
