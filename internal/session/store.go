// Package session provides bounded per-session conversation memory.
package session

import (
	"strings"
	"sync"

	"github.com/google/uuid"
)

// DefaultMaxHistory is the number of exchanges retained per session.
const DefaultMaxHistory = 2

// Exchange is one completed user/assistant turn.
type Exchange struct {
	UserMessage      string
	AssistantMessage string
}

// Store keeps conversation history per session id. Histories are bounded:
// once a session exceeds the configured exchange count, the oldest exchanges
// are dropped first.
type Store struct {
	mu         sync.RWMutex
	maxHistory int
	sessions   map[string][]Exchange
}

// NewStore creates a Store retaining at most maxHistory exchanges per
// session. Non-positive values fall back to DefaultMaxHistory.
func NewStore(maxHistory int) *Store {
	if maxHistory <= 0 {
		maxHistory = DefaultMaxHistory
	}
	return &Store{
		maxHistory: maxHistory,
		sessions:   make(map[string][]Exchange),
	}
}

// Create registers a new session and returns its opaque id.
func (s *Store) Create() string {
	id := uuid.New().String()

	s.mu.Lock()
	s.sessions[id] = nil
	s.mu.Unlock()

	return id
}

// History returns a copy of the retained exchanges for a session, oldest
// first. Unknown ids yield an empty history.
func (s *Store) History(id string) []Exchange {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history := s.sessions[id]
	if len(history) == 0 {
		return nil
	}
	out := make([]Exchange, len(history))
	copy(out, history)
	return out
}

// Append records a completed exchange, evicting the oldest entries beyond
// the retention limit. Appending to an unknown id creates the session.
func (s *Store) Append(id, userMessage, assistantMessage string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	history := append(s.sessions[id], Exchange{
		UserMessage:      userMessage,
		AssistantMessage: assistantMessage,
	})
	if len(history) > s.maxHistory {
		history = history[len(history)-s.maxHistory:]
	}
	s.sessions[id] = history
}

// Delete removes a session and its history.
func (s *Store) Delete(id string) {
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()
}

// FormatHistory renders exchanges as alternating User/Assistant lines for
// inclusion in the model's system prompt. Empty history renders as "".
func FormatHistory(history []Exchange) string {
	if len(history) == 0 {
		return ""
	}

	var b strings.Builder
	for i, ex := range history {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString("User: ")
		b.WriteString(ex.UserMessage)
		b.WriteString("\nAssistant: ")
		b.WriteString(ex.AssistantMessage)
	}
	return b.String()
}
