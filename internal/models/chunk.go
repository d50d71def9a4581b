// Package models defines core data structures for documents, chunks, and answers.
package models

// Chunk is a contiguous slice of a document's text, the unit of retrieval.
// IDs are dense and assigned in source order starting at 0; chunks are
// immutable once created.
type Chunk struct {
	ID       int    `json:"id"`
	Text     string `json:"text"`
	StartPos int    `json:"start_pos"`
	EndPos   int    `json:"end_pos"`
	Length   int    `json:"length"`
}

// ScoredChunk is a chunk returned from similarity search. Score is cosine
// similarity in [-1, 1]; Rank is 1-based among the returned set. IsContext
// marks chunks added by context-window expansion rather than direct hits.
type ScoredChunk struct {
	Chunk
	Score     float64 `json:"similarity_score"`
	Rank      int     `json:"rank"`
	IsContext bool    `json:"is_context,omitempty"`
}
