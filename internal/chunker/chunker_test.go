package chunker

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunkShortTextSingleChunk(t *testing.T) {
	text := "A short abstract about transformers."
	chunks := Chunk(text, 1200, 200)
	require.Len(t, chunks, 1)
	assert.Equal(t, text, chunks[0])
}

func TestChunkEmptyInput(t *testing.T) {
	assert.Nil(t, Chunk("", 1200, 200))
	assert.Nil(t, Chunk("   \n\t  ", 1200, 200))
}

func TestChunkRespectsSizeBound(t *testing.T) {
	text := strings.Repeat("word word word. ", 500)
	chunks := Chunk(text, 300, 50)
	require.NotEmpty(t, chunks)
	for i, c := range chunks {
		assert.LessOrEqual(t, len(c), 300, "chunk %d exceeds size", i)
		assert.NotEmpty(t, strings.TrimSpace(c))
	}
}

func TestChunkDeterministic(t *testing.T) {
	text := strings.Repeat("Sentence one is here. Sentence two follows! Is there a third? ", 100)
	first := Chunk(text, 400, 80)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, Chunk(text, 400, 80))
	}
}

func TestChunkSnapsToSentenceBoundary(t *testing.T) {
	// Two sentences whose joint length exceeds the window: the first cut
	// should land right after the first period, not mid-word.
	text := strings.Repeat("x", 180) + ". " + strings.Repeat("y", 180)
	chunks := Chunk(text, 200, 20)
	require.GreaterOrEqual(t, len(chunks), 2)
	assert.True(t, strings.HasSuffix(chunks[0], "."), "first chunk should end on the sentence boundary, got %q", chunks[0][len(chunks[0])-10:])
}

func TestChunkOverlapCarriesContext(t *testing.T) {
	text := strings.Repeat("alpha beta gamma delta. ", 200)
	chunks := Chunk(text, 400, 100)
	require.Greater(t, len(chunks), 1)

	// Each chunk after the first must start with text already seen at the
	// tail of its predecessor.
	for i := 1; i < len(chunks); i++ {
		head := chunks[i][:20]
		assert.Contains(t, chunks[i-1], head, "chunk %d shares no overlap with its predecessor", i)
	}
}

func TestChunkFullCoverage(t *testing.T) {
	// No part of the input may be silently dropped: every position of the
	// original text appears in some chunk.
	text := strings.Repeat("The quick brown fox jumps over the lazy dog. ", 60)
	chunks := Chunk(text, 250, 50)
	joined := strings.Join(chunks, " ")
	for _, word := range []string{"quick", "jumps", "lazy"} {
		assert.Contains(t, joined, word)
	}
	var total int
	for _, c := range chunks {
		total += len(c)
	}
	assert.GreaterOrEqual(t, total, len(strings.TrimSpace(text))-len(chunks)*50,
		"chunks cover less text than the input minus trimmed separators")
}

func TestChunkNeverSplitsMultiByteRunes(t *testing.T) {
	// Multi-byte runes with no sentence boundary in reach: every cut must
	// land on a rune boundary, never inside one.
	cases := map[string]string{
		"greek":    strings.Repeat("δ", 2000),
		"accented": strings.Repeat("Résumé naïveté Gödel Erdős. ", 150),
		"cjk":      strings.Repeat("数理論理学の研究。", 300),
	}
	for name, text := range cases {
		t.Run(name, func(t *testing.T) {
			chunks := Chunk(text, 1001, 100)
			require.NotEmpty(t, chunks)
			for i, c := range chunks {
				assert.True(t, utf8.ValidString(c), "chunk %d contains invalid UTF-8", i)
			}
		})
	}
}

func TestChunkRuneBoundariesWithOverlapFallback(t *testing.T) {
	// Overlap pushing the next start backwards must also land on a rune
	// boundary.
	text := strings.Repeat("αβγδε", 500)
	chunks := Chunk(text, 333, 77)
	require.Greater(t, len(chunks), 1)
	for i, c := range chunks {
		assert.True(t, utf8.ValidString(c), "chunk %d contains invalid UTF-8", i)
	}
}

func TestChunkDegenerateParameters(t *testing.T) {
	text := strings.Repeat("abc def ghi. ", 100)
	assert.NotEmpty(t, Chunk(text, 0, 0), "zero size falls back to defaults")
	assert.NotEmpty(t, Chunk(text, 100, 100), "overlap >= size falls back to a sane overlap")
	assert.NotEmpty(t, Chunk(text, 100, -5), "negative overlap falls back")
}
