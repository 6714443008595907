package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"course-rag-server/internal/generator"
	"course-rag-server/internal/rag"
	"course-rag-server/internal/search"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeService struct {
	answer    *rag.Answer
	queryErr  error
	events    []rag.Event
	analytics *rag.Analytics

	cleared []string
}

func (f *fakeService) Query(ctx context.Context, query, sessionID string) (*rag.Answer, error) {
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	return f.answer, nil
}

func (f *fakeService) QueryStream(ctx context.Context, query, sessionID string) <-chan rag.Event {
	events := make(chan rag.Event)
	go func() {
		defer close(events)
		for _, ev := range f.events {
			events <- ev
		}
	}()
	return events
}

func (f *fakeService) ClearSession(sessionID string) {
	f.cleared = append(f.cleared, sessionID)
}

func (f *fakeService) GetAnalytics(ctx context.Context) (*rag.Analytics, error) {
	return f.analytics, nil
}

type fakeHealth struct {
	err error
}

func (f *fakeHealth) Health(ctx context.Context) error { return f.err }

func newTestRouter(service *fakeService, health *fakeHealth) *gin.Engine {
	if health == nil {
		health = &fakeHealth{}
	}
	return NewServer(service, health, nil).Router(nil)
}

func TestQueryEndpoint(t *testing.T) {
	service := &fakeService{
		answer: &rag.Answer{
			Text:      "the answer",
			Sources:   []search.Source{{Text: "Intro - Lesson 1", Link: "https://example.com/l1"}},
			SessionID: "session-1",
		},
	}
	router := newTestRouter(service, nil)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/query", strings.NewReader(`{"query":"what is testing?"}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Answer    string          `json:"answer"`
		Sources   []search.Source `json:"sources"`
		SessionID string          `json:"session_id"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Bad response body: %v", err)
	}
	if resp.Answer != "the answer" || resp.SessionID != "session-1" || len(resp.Sources) != 1 {
		t.Errorf("Unexpected response: %+v", resp)
	}
}

func TestQueryEndpoint_BadInput(t *testing.T) {
	router := newTestRouter(&fakeService{}, nil)

	for name, body := range map[string]string{
		"empty query":  `{"query":"  "}`,
		"invalid json": `not json`,
	} {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/query", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		router.ServeHTTP(w, req)

		if w.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", name, w.Code)
		}
	}
}

func TestQueryEndpoint_ModelUnavailable(t *testing.T) {
	service := &fakeService{queryErr: fmt.Errorf("%w: overloaded", generator.ErrModelUnavailable)}
	router := newTestRouter(service, nil)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/query", strings.NewReader(`{"query":"q"}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected 503, got %d", w.Code)
	}
}

// postStream exercises the SSE endpoint over a live server; the stream
// handler needs a real connection, not a recorder.
func postStream(t *testing.T, router *gin.Engine, body string) (string, *http.Response) {
	t.Helper()
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	resp, err := http.Post(srv.URL+"/api/query/stream", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST failed: %v", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("Read body failed: %v", err)
	}
	return string(data), resp
}

func TestStreamEndpoint(t *testing.T) {
	service := &fakeService{
		events: []rag.Event{
			{Type: rag.EventSessionID, SessionID: "session-1"},
			{Type: rag.EventContent, Content: "partial "},
			{Type: rag.EventContent, Content: "answer"},
			{Type: rag.EventSources, Sources: []search.Source{{Text: "Intro - Lesson 1"}}},
		},
	}
	router := newTestRouter(service, nil)

	body, resp := postStream(t, router, `{"query":"what is testing?"}`)

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/event-stream") {
		t.Errorf("Unexpected content type %q", ct)
	}
	var frames []string
	for _, line := range strings.Split(body, "\n") {
		if strings.HasPrefix(line, "data: ") {
			frames = append(frames, strings.TrimPrefix(line, "data: "))
		}
	}

	if len(frames) != 5 {
		t.Fatalf("Expected 5 frames, got %d:\n%s", len(frames), body)
	}
	if frames[len(frames)-1] != "[DONE]" {
		t.Errorf("Stream must end with the [DONE] sentinel, got %q", frames[len(frames)-1])
	}

	var first rag.Event
	if err := json.Unmarshal([]byte(frames[0]), &first); err != nil {
		t.Fatalf("First frame is not JSON: %v", err)
	}
	if first.Type != rag.EventSessionID || first.SessionID != "session-1" {
		t.Errorf("Unexpected first frame: %+v", first)
	}

	var content strings.Builder
	for _, frame := range frames[1:3] {
		var ev rag.Event
		if err := json.Unmarshal([]byte(frame), &ev); err != nil {
			t.Fatalf("Content frame is not JSON: %v", err)
		}
		content.WriteString(ev.Content)
	}
	if content.String() != "partial answer" {
		t.Errorf("Reassembled content %q", content.String())
	}
}

func TestStreamEndpoint_ErrorFrame(t *testing.T) {
	service := &fakeService{
		events: []rag.Event{
			{Type: rag.EventSessionID, SessionID: "session-1"},
			{Err: "chat model unavailable: overloaded"},
		},
	}
	router := newTestRouter(service, nil)

	body, _ := postStream(t, router, `{"query":"q"}`)
	if !strings.Contains(body, `{"error":"chat model unavailable: overloaded"}`) {
		t.Errorf("Expected bare error frame in stream:\n%s", body)
	}
	if !strings.Contains(body, "data: [DONE]") {
		t.Errorf("Stream must still end with [DONE]:\n%s", body)
	}
}

func TestCoursesEndpoint(t *testing.T) {
	service := &fakeService{analytics: &rag.Analytics{TotalCourses: 2, CourseTitles: []string{"A", "B"}}}
	router := newTestRouter(service, nil)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/courses", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	var resp rag.Analytics
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Bad response body: %v", err)
	}
	if resp.TotalCourses != 2 || len(resp.CourseTitles) != 2 {
		t.Errorf("Unexpected analytics: %+v", resp)
	}
}

func TestClearSessionEndpoint(t *testing.T) {
	service := &fakeService{}
	router := newTestRouter(service, nil)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/api/sessions/session-1", nil))

	if w.Code != http.StatusNoContent {
		t.Fatalf("Expected 204, got %d", w.Code)
	}
	if len(service.cleared) != 1 || service.cleared[0] != "session-1" {
		t.Errorf("Session not cleared: %v", service.cleared)
	}
}

func TestHealthEndpoint(t *testing.T) {
	router := newTestRouter(&fakeService{}, &fakeHealth{})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	if w.Code != http.StatusOK {
		t.Errorf("Expected 200, got %d", w.Code)
	}

	router = newTestRouter(&fakeService{}, &fakeHealth{err: fmt.Errorf("qdrant down")})
	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected 503, got %d", w.Code)
	}
}
