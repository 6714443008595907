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

// CourseOutlineTool returns a course's title, link and complete lesson list
// for structure and overview questions.
type CourseOutlineTool struct {
	index Index

	mu          sync.Mutex
	lastSources []Source
}

// NewCourseOutlineTool creates the outline tool.
func NewCourseOutlineTool(index Index) *CourseOutlineTool {
	return &CourseOutlineTool{index: index}
}

// Name implements Tool.
func (t *CourseOutlineTool) Name() string { return "get_course_outline" }

// Definition implements Tool.
func (t *CourseOutlineTool) Definition() openai.ChatCompletionToolUnionParam {
	return openai.ChatCompletionFunctionTool(openai.FunctionDefinitionParam{
		Name:        t.Name(),
		Description: openai.String("Get a course's outline: title, link and the complete numbered lesson list"),
		Parameters: openai.FunctionParameters{
			"type": "object",
			"properties": map[string]any{
				"course_name": map[string]any{
					"type":        "string",
					"description": "Course title (partial matches work)",
				},
			},
			"required": []string{"course_name"},
		},
	})
}

type outlineArgs struct {
	CourseName string `json:"course_name"`
}

// Execute implements Tool.
func (t *CourseOutlineTool) Execute(ctx context.Context, args json.RawMessage) (string, error) {
	var in outlineArgs
	if err := json.Unmarshal(args, &in); err != nil {
		return "", fmt.Errorf("invalid outline arguments: %w", err)
	}
	if strings.TrimSpace(in.CourseName) == "" {
		return "", fmt.Errorf("outline requires a course name")
	}

	course, err := t.index.GetCourseOutline(ctx, in.CourseName)
	switch {
	case errors.Is(err, storage.ErrCourseNotFound):
		return fmt.Sprintf("No course found matching '%s'", in.CourseName), nil
	case errors.Is(err, storage.ErrStoreUnavailable):
		return "The course index is currently unavailable, so the course outline could not be retrieved.", nil
	case err != nil:
		return "", err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Course: %s\n", course.Title)
	if course.Link != "" {
		fmt.Fprintf(&b, "Course Link: %s\n", course.Link)
	}
	if course.Instructor != "" {
		fmt.Fprintf(&b, "Instructor: %s\n", course.Instructor)
	}
	fmt.Fprintf(&b, "Lessons (%d):\n", len(course.Lessons))
	for _, lesson := range course.Lessons {
		fmt.Fprintf(&b, "  %d. %s\n", lesson.Number, lesson.Title)
	}

	t.mu.Lock()
	t.lastSources = []Source{{Text: course.Title, Link: course.Link}}
	t.mu.Unlock()

	return strings.TrimRight(b.String(), "\n"), nil
}

// LastSources returns the provenance recorded by the most recent invocation.
func (t *CourseOutlineTool) LastSources() []Source {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastSources
}

// ResetSources clears the provenance slot.
func (t *CourseOutlineTool) ResetSources() {
	t.mu.Lock()
	t.lastSources = nil
	t.mu.Unlock()
}
