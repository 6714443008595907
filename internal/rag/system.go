// Package rag wires sessions, the tool registry and the generator into
// query orchestration.
package rag

import (
	"context"
	"log/slog"

	"course-rag-server/internal/generator"
	"course-rag-server/internal/search"
	"course-rag-server/internal/session"
)

// Answerer produces answers with optional tool use. Satisfied by
// generator.Generator.
type Answerer interface {
	Generate(ctx context.Context, query, history string, tools generator.ToolExecutor) (string, error)
	GenerateStream(ctx context.Context, query, history string, tools generator.ToolExecutor, onDelta func(string) error) (string, error)
}

// Catalog exposes the index inventory for analytics. Satisfied by
// storage.VectorIndex.
type Catalog interface {
	CountCourses(ctx context.Context) (int, error)
	ListCourseTitles(ctx context.Context) ([]string, error)
}

// Analytics summarizes the indexed corpus.
type Analytics struct {
	TotalCourses int      `json:"total_courses"`
	CourseTitles []string `json:"course_titles"`
}

// Answer is the result of a completed query turn.
type Answer struct {
	Text      string
	Sources   []search.Source
	SessionID string
}

// System orchestrates one query turn: history in, at most one tool round,
// answer and provenance out.
type System struct {
	sessions *session.Store
	catalog  Catalog
	registry *search.Registry
	gen      Answerer
	logger   *slog.Logger
}

// NewSystem creates the orchestrator.
func NewSystem(sessions *session.Store, catalog Catalog, registry *search.Registry, gen Answerer, logger *slog.Logger) *System {
	if logger == nil {
		logger = slog.Default()
	}
	return &System{
		sessions: sessions,
		catalog:  catalog,
		registry: registry,
		gen:      gen,
		logger:   logger,
	}
}

// NewSession creates a fresh conversation and returns its ID.
func (s *System) NewSession() string {
	return s.sessions.Create()
}

// Query answers one turn. A missing session ID starts a new session.
// History is committed only after the turn succeeds.
func (s *System) Query(ctx context.Context, query, sessionID string) (*Answer, error) {
	sessionID, history := s.beginTurn(sessionID)

	s.registry.ResetSources()
	text, err := s.gen.Generate(ctx, query, history, s.registry)
	if err != nil {
		return nil, err
	}

	sources := s.registry.LastSources()
	s.registry.ResetSources()
	s.sessions.Append(sessionID, query, text)

	return &Answer{Text: text, Sources: sources, SessionID: sessionID}, nil
}

// QueryStream answers one turn, delivering events on the returned channel.
// The channel is closed when the turn finishes; an error frame is the last
// event of a failed turn.
func (s *System) QueryStream(ctx context.Context, query, sessionID string) <-chan Event {
	events := make(chan Event)

	go func() {
		defer close(events)

		minted := sessionID == ""
		sessionID, history := s.beginTurn(sessionID)
		if minted {
			if !s.emit(ctx, events, Event{Type: EventSessionID, SessionID: sessionID}) {
				return
			}
		}

		s.registry.ResetSources()
		text, err := s.gen.GenerateStream(ctx, query, history, s.registry, func(delta string) error {
			if !s.emit(ctx, events, Event{Type: EventContent, Content: delta}) {
				return ctx.Err()
			}
			return nil
		})
		if err != nil {
			s.logger.Error("streaming query failed", "error", err)
			s.emit(ctx, events, Event{Err: err.Error()})
			return
		}

		if sources := s.registry.LastSources(); len(sources) > 0 {
			if !s.emit(ctx, events, Event{Type: EventSources, Sources: sources}) {
				return
			}
		}
		s.registry.ResetSources()
		s.sessions.Append(sessionID, query, text)
	}()

	return events
}

// ClearSession drops a conversation's history.
func (s *System) ClearSession(sessionID string) {
	s.sessions.Delete(sessionID)
}

// GetAnalytics reports the indexed corpus inventory.
func (s *System) GetAnalytics(ctx context.Context) (*Analytics, error) {
	total, err := s.catalog.CountCourses(ctx)
	if err != nil {
		return nil, err
	}
	titles, err := s.catalog.ListCourseTitles(ctx)
	if err != nil {
		return nil, err
	}
	return &Analytics{TotalCourses: total, CourseTitles: titles}, nil
}

func (s *System) beginTurn(sessionID string) (string, string) {
	if sessionID == "" {
		sessionID = s.sessions.Create()
	}
	return sessionID, session.FormatHistory(s.sessions.History(sessionID))
}

// emit sends an event unless the caller has gone away.
func (s *System) emit(ctx context.Context, events chan<- Event, ev Event) bool {
	select {
	case events <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}
