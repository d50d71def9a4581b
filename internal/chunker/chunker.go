// Package chunker splits cleaned document text into overlapping,
// sentence-aligned chunks for retrieval indexing.
package chunker

import (
	"strings"

	"github.com/hyperjump/kotae/internal/models"
)

// Defaults for chunk size and overlap, in characters.
const (
	DefaultChunkSize    = 500
	DefaultChunkOverlap = 50
)

// Chunker splits text into overlapping character-window chunks, snapping
// window ends to sentence terminators when one falls past the midpoint.
type Chunker struct {
	chunkSize    int
	chunkOverlap int
}

// NewChunker creates a chunker with the given size and overlap (in characters).
// Non-positive or inconsistent values fall back to the defaults.
func NewChunker(chunkSize, chunkOverlap int) *Chunker {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if chunkOverlap < 0 || chunkOverlap >= chunkSize {
		chunkOverlap = DefaultChunkOverlap
		if chunkOverlap >= chunkSize {
			chunkOverlap = chunkSize / 10
		}
	}
	return &Chunker{chunkSize: chunkSize, chunkOverlap: chunkOverlap}
}

// Chunk splits text into chunks with dense IDs starting at 0. Empty text
// yields nil; text shorter than the chunk size yields exactly one chunk.
// Chunking identical text always yields identical boundaries.
func (c *Chunker) Chunk(text string) []models.Chunk {
	n := len(text)
	if n == 0 {
		return nil
	}
	var chunks []models.Chunk
	start := 0
	id := 0
	for start < n {
		end := start + c.chunkSize
		if end > n {
			end = n
		}
		if end < n {
			// Snap to the nearest sentence terminator in the window, but only
			// when it falls past the midpoint: short tails stay in this chunk,
			// mid-sentence splits are avoided.
			if cut := lastTerminator(text, start, end); cut > start+c.chunkSize/2 {
				end = cut + 1
			}
		}
		if trimmed := strings.TrimSpace(text[start:end]); trimmed != "" {
			chunks = append(chunks, models.Chunk{
				ID:       id,
				Text:     trimmed,
				StartPos: start,
				EndPos:   end,
				Length:   end - start,
			})
			id++
		}
		if end >= n {
			break
		}
		// Next window starts an overlap before this window's raw end. When the
		// end snapped earlier than that, resume at the snap point instead so no
		// text is skipped. Both choices move strictly forward.
		next := start + c.chunkSize - c.chunkOverlap
		if next > end {
			next = end
		}
		start = next
	}
	return chunks
}

// lastTerminator returns the index of the rightmost sentence terminator in
// text[start:end], or -1 when the window has none.
func lastTerminator(text string, start, end int) int {
	for i := end - 1; i >= start; i-- {
		switch text[i] {
		case '.', '!', '?':
			return i
		}
	}
	return -1
}
