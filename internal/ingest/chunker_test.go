package ingest

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunkTextEmpty(t *testing.T) {
	assert.Empty(t, chunkText(""))
	assert.Empty(t, chunkText("   \n\n  \n\n"))
}

func TestChunkTextShortStaysWhole(t *testing.T) {
	chunks := chunkText("a single short paragraph")
	require.Len(t, chunks, 1)
	assert.Equal(t, "a single short paragraph", chunks[0])
}

func TestChunkTextPacksParagraphs(t *testing.T) {
	text := "first paragraph\n\nsecond paragraph\n\nthird paragraph"
	chunks := chunkText(text)
	require.Len(t, chunks, 1)
	assert.Contains(t, chunks[0], "first paragraph")
	assert.Contains(t, chunks[0], "third paragraph")
}

func TestChunkTextSplitsAtCap(t *testing.T) {
	para := strings.Repeat("word ", 300) // ~1500 runes
	chunks := chunkText(para)

	require.Greater(t, len(chunks), 1)
	for _, c := range chunks {
		assert.LessOrEqual(t, len([]rune(c)), maxChunkRunes)
		assert.NotEmpty(t, c)
	}
}

func TestChunkTextKeepsWordsIntact(t *testing.T) {
	para := strings.Repeat("alpha beta gamma ", 120)
	for _, c := range chunkText(para) {
		for _, w := range strings.Fields(c) {
			assert.Contains(t, []string{"alpha", "beta", "gamma"}, w)
		}
	}
}

func TestChunkTextOverlap(t *testing.T) {
	para := strings.Repeat("overlapping words here ", 100)
	chunks := chunkText(para)
	require.Greater(t, len(chunks), 1)

	// Consecutive chunks share a suffix/prefix of text.
	tail := chunks[0][len(chunks[0])-20:]
	assert.Contains(t, chunks[1], strings.TrimSpace(tail))
}
