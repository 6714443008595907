package search

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/openai/openai-go/v2"

	"course-rag-server/internal/storage"
)

// Index is the vector index surface the tools depend on. Satisfied by
// storage.VectorIndex.
type Index interface {
	ResolveCourseName(ctx context.Context, name string) (string, error)
	Search(ctx context.Context, query, courseName string, lessonNumber *int) ([]*storage.ScoredChunk, error)
	GetCourseOutline(ctx context.Context, courseName string) (*storage.Course, error)
}

// CourseSearchTool searches course content with fuzzy course matching and
// lesson filtering. It records the provenance of its last invocation in a
// slot the orchestrator reads once per turn.
type CourseSearchTool struct {
	index Index

	mu          sync.Mutex
	lastSources []Source
}

// NewCourseSearchTool creates the content search tool.
func NewCourseSearchTool(index Index) *CourseSearchTool {
	return &CourseSearchTool{index: index}
}

// Name implements Tool.
func (t *CourseSearchTool) Name() string { return "search_course_content" }

// Definition implements Tool.
func (t *CourseSearchTool) Definition() openai.ChatCompletionToolUnionParam {
	return openai.ChatCompletionFunctionTool(openai.FunctionDefinitionParam{
		Name:        t.Name(),
		Description: openai.String("Search course materials with smart course name matching and lesson filtering"),
		Parameters: openai.FunctionParameters{
			"type": "object",
			"properties": map[string]any{
				"query": map[string]any{
					"type":        "string",
					"description": "What to search for in the course content",
				},
				"course_name": map[string]any{
					"type":        "string",
					"description": "Course title (partial matches work, e.g. 'MCP', 'Introduction')",
				},
				"lesson_number": map[string]any{
					"type":        "integer",
					"description": "Specific lesson number to search within (e.g. 1, 2, 3)",
				},
			},
			"required": []string{"query"},
		},
	})
}

type searchArgs struct {
	Query        string `json:"query"`
	CourseName   string `json:"course_name"`
	LessonNumber *int   `json:"lesson_number"`
}

// Execute implements Tool. Resolution failures and backend outages are
// turned into plain text so the model can narrate the limitation instead of
// the turn failing.
func (t *CourseSearchTool) Execute(ctx context.Context, args json.RawMessage) (string, error) {
	var in searchArgs
	if err := json.Unmarshal(args, &in); err != nil {
		return "", fmt.Errorf("invalid search arguments: %w", err)
	}
	if strings.TrimSpace(in.Query) == "" {
		return "", fmt.Errorf("search requires a query")
	}

	results, err := t.index.Search(ctx, in.Query, in.CourseName, in.LessonNumber)
	switch {
	case errors.Is(err, storage.ErrCourseNotFound):
		return fmt.Sprintf("No course found matching '%s'", in.CourseName), nil
	case errors.Is(err, storage.ErrStoreUnavailable):
		return "The course index is currently unavailable, so course materials could not be searched.", nil
	case err != nil:
		return "", err
	}

	if len(results) == 0 {
		return emptyResultMessage(in), nil
	}

	return t.formatResults(results), nil
}

func emptyResultMessage(in searchArgs) string {
	var filters strings.Builder
	if in.CourseName != "" {
		fmt.Fprintf(&filters, " in course '%s'", in.CourseName)
	}
	if in.LessonNumber != nil {
		fmt.Fprintf(&filters, " in lesson %d", *in.LessonNumber)
	}
	return fmt.Sprintf("No relevant content found%s.", filters.String())
}

// formatResults renders labeled blocks and records provenance for the turn.
func (t *CourseSearchTool) formatResults(results []*storage.ScoredChunk) string {
	blocks := make([]string, 0, len(results))
	sources := make([]Source, 0, len(results))
	seen := make(map[Source]bool)

	for _, result := range results {
		chunk := result.Chunk

		header := chunk.CourseTitle
		if chunk.LessonNumber != nil {
			header = fmt.Sprintf("%s - Lesson %d", chunk.CourseTitle, *chunk.LessonNumber)
		}
		blocks = append(blocks, fmt.Sprintf("[%s]\n%s", header, chunk.Content))

		source := Source{Text: header, Link: chunk.LessonLink}
		if !seen[source] {
			seen[source] = true
			sources = append(sources, source)
		}
	}

	t.mu.Lock()
	t.lastSources = sources
	t.mu.Unlock()

	return strings.Join(blocks, "\n\n")
}

// LastSources returns the provenance recorded by the most recent invocation.
func (t *CourseSearchTool) LastSources() []Source {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastSources
}

// ResetSources clears the provenance slot.
func (t *CourseSearchTool) ResetSources() {
	t.mu.Lock()
	t.lastSources = nil
	t.mu.Unlock()
}
