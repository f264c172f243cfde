// Package retrieval implements retrieval-augmented context injection:
// uploaded documents are chunked and embedded into an in-memory similarity
// index, and an engine with cooldown and dedup policy picks chunks to
// inject into the live session after finalized turns.
package retrieval

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/sidenote-ai/sidenote/types"
)

const (
	// DefaultChunkSize is the target chunk length in characters.
	DefaultChunkSize = 1500

	// DefaultChunkOverlap is how far consecutive chunks overlap.
	DefaultChunkOverlap = 200

	// boundaryWindow is how far back from the target end a cut boundary
	// is searched for.
	boundaryWindow = 300

	// minBoundaryFraction rejects boundaries in the first 30% of the
	// search window, which would produce pathologically short chunks.
	minBoundaryFraction = 0.3
)

// Chunk splits text into overlapping, boundary-aware segments. Text that
// fits in one chunk is returned whole (trimmed). Cut points prefer a
// paragraph break, then a sentence end, then a word boundary, each within
// the last boundaryWindow characters before the target end; otherwise the
// cut is hard. Forward progress is guaranteed regardless of overlap.
func Chunk(text, docName string) []types.DocumentChunk {
	return ChunkWithSize(text, docName, DefaultChunkSize, DefaultChunkOverlap)
}

// ChunkWithSize is Chunk with explicit size and overlap.
func ChunkWithSize(text, docName string, size, overlap int) []types.DocumentChunk {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if size <= 0 {
		size = DefaultChunkSize
	}
	if overlap < 0 || overlap >= size {
		overlap = DefaultChunkOverlap
	}

	if len(text) <= size {
		return []types.DocumentChunk{newChunk(docName, 0, text, 0, len(text))}
	}

	var chunks []types.DocumentChunk
	start := 0
	for start < len(text) {
		end := start + size
		if end >= len(text) {
			chunks = append(chunks, newChunk(docName, len(chunks), text[start:], start, len(text)))
			break
		}

		cut := findBoundary(text, start, end)
		chunks = append(chunks, newChunk(docName, len(chunks), text[start:cut], start, cut))

		next := cut - overlap
		if next <= start {
			next = cut
		}
		for next < len(text) && !utf8.RuneStart(text[next]) {
			next++
		}
		start = next
	}
	return chunks
}

func newChunk(docName string, index int, text string, start, end int) types.DocumentChunk {
	return types.DocumentChunk{
		ID:        fmt.Sprintf("%s:%d", docName, index),
		Text:      text,
		Index:     index,
		StartChar: start,
		EndChar:   end,
		DocName:   docName,
	}
}

// findBoundary picks the best cut point in (windowStart, end]. Candidates
// earlier than 30% into the window are rejected; with no acceptable
// boundary the cut is hard at the target end.
func findBoundary(text string, start, end int) int {
	windowStart := end - boundaryWindow
	if windowStart < start {
		windowStart = start
	}
	window := text[windowStart:end]
	minOffset := int(float64(len(window)) * minBoundaryFraction)

	if cut := lastBoundary(window, minOffset, "\n\n"); cut >= 0 {
		return windowStart + cut
	}
	for _, marker := range sentenceMarkers {
		if cut := lastBoundary(window, minOffset, marker); cut >= 0 {
			return windowStart + cut
		}
	}
	if cut := lastBoundary(window, minOffset, " "); cut >= 0 {
		return windowStart + cut
	}
	return alignToRune(text, start, end)
}

// sentenceMarkers are sentence ends in boundary-preference order. CJK
// terminators carry no trailing space.
var sentenceMarkers = []string{
	". ", "! ", "? ", ".\n", "!\n", "?\n",
	"。", "！", "？", "…",
}

// alignToRune rounds a byte offset back to the nearest rune start so a
// hard cut never splits a multi-byte character.
func alignToRune(text string, start, offset int) int {
	for offset > start && offset < len(text) && !utf8.RuneStart(text[offset]) {
		offset--
	}
	return offset
}

// lastBoundary returns the offset just past the last occurrence of marker
// at or beyond minOffset, or -1.
func lastBoundary(window string, minOffset int, marker string) int {
	idx := strings.LastIndex(window, marker)
	if idx < 0 {
		return -1
	}
	cut := idx + len(marker)
	if idx < minOffset {
		return -1
	}
	return cut
}
