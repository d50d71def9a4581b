package models

import "time"

// DocumentMetadata holds descriptive fields extracted at ingestion.
// String fields may be empty or "Unknown"; only Title can be overridden
// by a caller-supplied value.
type DocumentMetadata struct {
	Title            string `json:"title"`
	Author           string `json:"author"`
	Subject          string `json:"subject"`
	Creator          string `json:"creator"`
	Producer         string `json:"producer"`
	CreationDate     string `json:"creation_date"`
	ModificationDate string `json:"modification_date"`
	PageCount        int    `json:"page_count"`
}

// DocumentInfo is a listing entry for a stored document.
type DocumentInfo struct {
	ID         string           `json:"id"`
	Metadata   DocumentMetadata `json:"metadata"`
	ChunkCount int              `json:"chunk_count"`
	CreatedAt  time.Time        `json:"created_at"`
}

// ConversationEntry is one question/answer exchange in a session.
type ConversationEntry struct {
	Question   string    `json:"question"`
	Answer     string    `json:"answer"`
	Timestamp  time.Time `json:"timestamp"`
	DocumentID string    `json:"document_id"`
}
