package rag

import "course-rag-server/internal/search"

// Event types emitted by a streaming query.
const (
	EventSessionID = "session_id"
	EventContent   = "content"
	EventSources   = "sources"
)

// Event is one frame of a streaming answer. Exactly one of the payload
// fields is set for a given type; Err marks a terminal failure frame.
type Event struct {
	Type      string          `json:"type,omitempty"`
	SessionID string          `json:"session_id,omitempty"`
	Content   string          `json:"content,omitempty"`
	Sources   []search.Source `json:"sources,omitempty"`
	Err       string          `json:"error,omitempty"`
}
