package loader

import (
	"strings"
	"unicode"
)

const defaultChunkSize = 500

// Chunker splits extracted document text into non-overlapping segments
// of at most Size runes, preserving input order. Split points prefer
// whitespace over mid-word cuts when a space falls in the tail of the
// window, but never at the cost of dropping or duplicating text.
// Emitted chunks are trimmed of boundary whitespace; that trim is the
// only difference between the concatenated output and the input.
type Chunker struct {
	Size int
}

func NewChunker(size int) *Chunker {
	if size <= 0 {
		size = defaultChunkSize
	}
	return &Chunker{Size: size}
}

func (c *Chunker) Split(text string) []string {
	runes := []rune(text)

	var chunks []string
	for start := 0; start < len(runes); {
		end := start + c.Size
		if end >= len(runes) {
			end = len(runes)
		} else {
			end = c.splitPoint(runes, start, end)
		}

		content := strings.TrimSpace(string(runes[start:end]))
		if content != "" {
			chunks = append(chunks, content)
		}
		start = end
	}
	return chunks
}

// splitPoint walks back from the hard cut looking for whitespace. The
// search stops at half the window: a split that early would produce
// degenerate chunks, and a mid-word cut is preferable then.
func (c *Chunker) splitPoint(runes []rune, start, end int) int {
	floor := start + c.Size/2
	for i := end; i > floor; i-- {
		if unicode.IsSpace(runes[i-1]) {
			return i
		}
	}
	return end
}
