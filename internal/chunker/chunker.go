// Package chunker splits extracted paper text into fixed-size overlapping
// windows for embedding. Chunking is pure and deterministic: the same
// input always produces the same chunks.
package chunker

import (
	"strings"
	"unicode/utf8"
)

const (
	// DefaultSize is the target chunk length in characters.
	DefaultSize = 1200
	// DefaultOverlap is the number of characters shared by two
	// consecutive chunks.
	DefaultOverlap = 200

	// snapWindow bounds how far back from a window edge the chunker
	// searches for a sentence boundary before giving up and cutting
	// mid-sentence.
	snapWindow = 200
)

var sentenceEnders = []string{". ", "! ", "? ", ".\n", "!\n", "?\n", "\n\n"}

// Chunk splits text into windows of at most size characters with the given
// overlap, snapping window ends to sentence boundaries where one falls
// within reach. Whitespace-only chunks are dropped.
func Chunk(text string, size, overlap int) []string {
	if size <= 0 {
		size = DefaultSize
	}
	if overlap < 0 || overlap >= size {
		overlap = DefaultOverlap
		if overlap >= size {
			overlap = size / 4
		}
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if len(text) <= size {
		return []string{text}
	}

	var chunks []string
	start := 0
	for start < len(text) {
		end := start + size
		if end >= len(text) {
			end = len(text)
		} else {
			end = snapToSentence(text, start, end)
			end = prevRuneStart(text, end)
			if end == start {
				_, w := utf8.DecodeRuneInString(text[start:])
				end = start + w
			}
		}

		chunk := strings.TrimSpace(text[start:end])
		if chunk != "" {
			chunks = append(chunks, chunk)
		}
		if end >= len(text) {
			break
		}

		next := end - overlap
		if next > start {
			next = prevRuneStart(text, next)
		}
		if next <= start {
			_, w := utf8.DecodeRuneInString(text[start:])
			next = start + w
		}
		start = next
	}
	return chunks
}

// prevRuneStart moves i back to the start of the rune containing text[i],
// so a cut at i never splits a multi-byte character.
func prevRuneStart(text string, i int) int {
	for i > 0 && !utf8.RuneStart(text[i]) {
		i--
	}
	return i
}

// snapToSentence moves end backwards to the closest sentence boundary
// within snapWindow characters, keeping the cut after the end-of-sentence
// punctuation. When no boundary is in reach the original end stands.
func snapToSentence(text string, start, end int) int {
	lo := end - snapWindow
	if lo < start+1 {
		lo = start + 1
	}
	window := text[lo:end]

	best := -1
	for _, ender := range sentenceEnders {
		if idx := strings.LastIndex(window, ender); idx > best {
			best = idx
		}
	}
	if best < 0 {
		return end
	}
	// +1 keeps the punctuation inside the chunk; the separator's trailing
	// whitespace is trimmed by the caller.
	return lo + best + 1
}
