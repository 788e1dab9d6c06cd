package extraction

import "unicode/utf8"

// Chunker splits document text into overlapping windows sized to the
// provider's input limit. Offsets are byte offsets into the original text
// so clause spans can be mapped back exactly.
type Chunker struct {
	size    int
	overlap int
}

// minChunkSize keeps the window step comfortably larger than the up to
// three bytes rune alignment can walk a boundary backwards, so Split
// always makes forward progress.
const minChunkSize = 16

// NewChunker creates a chunker. A non-positive size falls back to the
// default chunk size, sizes below the minimum are raised to it, and an
// overlap outside (0, size/2] falls back to 10% of size or is capped at
// half the window.
func NewChunker(size, overlap int) *Chunker {
	if size <= 0 {
		size = defaultChunkSize
	}
	if size < minChunkSize {
		size = minChunkSize
	}
	if overlap <= 0 {
		overlap = size / 10
	}
	if overlap > size/2 {
		overlap = size / 2
	}
	return &Chunker{size: size, overlap: overlap}
}

// Split returns the windows covering text. Adjacent windows overlap so a
// clause spanning a window boundary appears whole in at least one window.
// Window boundaries are aligned to rune boundaries.
func (c *Chunker) Split(text string) []Window {
	if text == "" {
		return nil
	}
	if len(text) <= c.size {
		return []Window{{ID: 0, Text: text, Offset: 0}}
	}

	var windows []Window
	step := c.size - c.overlap
	for start := 0; start < len(text); start += step {
		start = alignRune(text, start)
		end := start + c.size
		if end >= len(text) {
			windows = append(windows, Window{ID: len(windows), Text: text[start:], Offset: start})
			break
		}
		end = alignRune(text, end)
		windows = append(windows, Window{ID: len(windows), Text: text[start:end], Offset: start})
	}
	return windows
}

// alignRune moves pos backwards to the start of the rune it falls inside.
func alignRune(s string, pos int) int {
	for pos > 0 && pos < len(s) && !utf8.RuneStart(s[pos]) {
		pos--
	}
	return pos
}
