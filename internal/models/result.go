package models

import "time"

// Source is a cited chunk attached to an answer, with a truncated preview.
type Source struct {
	ChunkID         int     `json:"chunk_id"`
	SimilarityScore float64 `json:"similarity_score"`
	Preview         string  `json:"preview"`
}

// UploadResult reports the outcome of ingesting a document.
// IsNew is false when byte-identical content was already indexed.
type UploadResult struct {
	DocumentID string `json:"document_id"`
	IsNew      bool   `json:"is_new"`
	Title      string `json:"title"`
	PageCount  int    `json:"page_count"`
	ChunkCount int    `json:"chunk_count"`
	TotalChars int    `json:"total_characters"`
	Message    string `json:"message"`
}

// AnswerResult is the bundle returned for an answered question. Degraded is
// true when the generator failed and the answer is a canned fallback.
type AnswerResult struct {
	Question          string    `json:"question"`
	Answer            string    `json:"answer"`
	DocumentID        string    `json:"document_id"`
	DocumentTitle     string    `json:"document_title"`
	Sources           []Source  `json:"sources"`
	FollowUpQuestions []string  `json:"follow_up_questions"`
	ContextChunksUsed int       `json:"context_chunks_used"`
	ModelUsed         string    `json:"model_used"`
	Degraded          bool      `json:"degraded,omitempty"`
	Timestamp         time.Time `json:"timestamp"`
}

// SummaryResult is the bundle returned for a document summary.
type SummaryResult struct {
	DocumentID  string           `json:"document_id"`
	Title       string           `json:"title"`
	Summary     string           `json:"summary"`
	Metadata    DocumentMetadata `json:"metadata"`
	ChunksUsed  int              `json:"chunks_used"`
	TotalChunks int              `json:"total_chunks"`
}

// SearchResponse maps document IDs to their matching chunks.
type SearchResponse struct {
	Query        string                   `json:"query"`
	Results      map[string][]ScoredChunk `json:"results"`
	TotalMatches int                      `json:"total_matches"`
	QueryTime    int64                    `json:"query_time_ms"`
}
