package services

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunkText_SmallTextIsOneChunk(t *testing.T) {
	chunks := NewTextChunker().ChunkText("First paragraph.\n\nSecond paragraph.", 1000, 200)

	require.Len(t, chunks, 1)
	assert.Equal(t, "First paragraph.\n\nSecond paragraph.", chunks[0])
}

func TestChunkText_EmptyText(t *testing.T) {
	assert.Empty(t, NewTextChunker().ChunkText(" \n\n ", 100, 10))
}

func TestChunkText_RespectsMaxSize(t *testing.T) {
	var paras []string
	for i := 0; i < 20; i++ {
		paras = append(paras, strings.Repeat("Swiss CV standard sentence. ", 3))
	}
	paras = append(paras, strings.Repeat("x", 450))
	text := strings.Join(paras, "\n\n")

	chunks := NewTextChunker().ChunkText(text, 200, 40)

	require.Greater(t, len(chunks), 1)
	for _, chunk := range chunks {
		assert.LessOrEqual(t, utf8.RuneCountInString(chunk), 200)
	}
}

func TestChunkText_Overlap(t *testing.T) {
	text := strings.Repeat("a", 80) + "\n\n" + strings.Repeat("b", 80)

	chunks := NewTextChunker().ChunkText(text, 100, 10)

	require.Len(t, chunks, 2)
	assert.Equal(t, strings.Repeat("a", 80), chunks[0])
	assert.True(t, strings.HasPrefix(chunks[1], strings.Repeat("a", 10)+"\n\n"+"b"))
}
