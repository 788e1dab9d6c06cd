package extraction

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplit_ShortTextSingleWindow(t *testing.T) {
	c := NewChunker(100, 10)
	windows := c.Split("short text")

	require.Len(t, windows, 1)
	assert.Equal(t, 0, windows[0].ID)
	assert.Equal(t, 0, windows[0].Offset)
	assert.Equal(t, "short text", windows[0].Text)
}

func TestSplit_EmptyText(t *testing.T) {
	c := NewChunker(100, 10)
	assert.Empty(t, c.Split(""))
}

func TestSplit_WindowsOverlapAndCoverText(t *testing.T) {
	text := strings.Repeat("abcdefghij", 50) // 500 bytes
	c := NewChunker(100, 10)
	windows := c.Split(text)

	require.Greater(t, len(windows), 1)

	// Every window maps back onto the original text at its offset.
	for _, w := range windows {
		assert.Equal(t, text[w.Offset:w.Offset+len(w.Text)], w.Text)
	}

	// Windows cover the text with no gaps.
	assert.Equal(t, 0, windows[0].Offset)
	for i := 1; i < len(windows); i++ {
		prev := windows[i-1]
		assert.LessOrEqual(t, windows[i].Offset, prev.Offset+len(prev.Text),
			"gap between windows %d and %d", i-1, i)
	}
	last := windows[len(windows)-1]
	assert.Equal(t, len(text), last.Offset+len(last.Text))

	// Adjacent windows overlap.
	assert.Less(t, windows[1].Offset, windows[0].Offset+len(windows[0].Text))
}

func TestSplit_AlignsToRuneBoundaries(t *testing.T) {
	text := strings.Repeat("héllo wörld ", 40)
	c := NewChunker(50, 5)
	windows := c.Split(text)

	require.Greater(t, len(windows), 1)
	for _, w := range windows {
		assert.True(t, utf8.ValidString(w.Text), "window %d splits a rune", w.ID)
		assert.Equal(t, text[w.Offset:w.Offset+len(w.Text)], w.Text)
	}
}

func TestNewChunker_Defaults(t *testing.T) {
	c := NewChunker(0, 0)
	assert.Equal(t, defaultChunkSize, c.size)
	assert.Equal(t, defaultChunkSize/10, c.overlap)

	// Overlap may never swallow the whole window.
	c = NewChunker(100, 100)
	assert.Equal(t, 50, c.overlap)

	// Tiny sizes are raised so rune alignment cannot cancel the step.
	c = NewChunker(2, 1)
	assert.Equal(t, minChunkSize, c.size)
	assert.LessOrEqual(t, c.overlap, c.size/2)
}

func TestSplit_TinySizeMultiByteTextTerminates(t *testing.T) {
	text := strings.Repeat("héllö", 20)
	c := NewChunker(3, 2)
	windows := c.Split(text)

	require.NotEmpty(t, windows)
	for _, w := range windows {
		assert.NotEmpty(t, w.Text, "window %d is empty", w.ID)
		assert.True(t, utf8.ValidString(w.Text))
		assert.Equal(t, text[w.Offset:w.Offset+len(w.Text)], w.Text)
	}
	last := windows[len(windows)-1]
	assert.Equal(t, len(text), last.Offset+len(last.Text))
}
