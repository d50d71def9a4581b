package qa

import (
	"sync"

	"github.com/google/uuid"

	"github.com/hyperjump/kotae/internal/models"
)

// Session carries the conversational state of one client: the selected
// document and the question history. Safe for concurrent use.
type Session struct {
	ID string

	mu      sync.Mutex
	current string
	history []models.ConversationEntry
}

// NewSession returns an empty session with a fresh ID.
func NewSession() *Session {
	return &Session{ID: uuid.NewString()}
}

// CurrentDocument returns the selected document ID, or "" when none is
// selected.
func (s *Session) CurrentDocument() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

func (s *Session) setCurrent(docID string) {
	s.mu.Lock()
	s.current = docID
	s.mu.Unlock()
}

func (s *Session) appendHistory(entry models.ConversationEntry) {
	s.mu.Lock()
	s.history = append(s.history, entry)
	s.mu.Unlock()
}

// History returns up to limit most recent exchanges, oldest first. A
// non-positive limit returns the full history.
func (s *Session) History(limit int) []models.ConversationEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.history)
	if limit > 0 && limit < n {
		return append([]models.ConversationEntry(nil), s.history[n-limit:]...)
	}
	return append([]models.ConversationEntry(nil), s.history...)
}

// HistoryLen returns the number of recorded exchanges.
func (s *Session) HistoryLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.history)
}

// ClearHistory discards all recorded exchanges.
func (s *Session) ClearHistory() {
	s.mu.Lock()
	s.history = nil
	s.mu.Unlock()
}
