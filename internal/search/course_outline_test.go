package search

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"course-rag-server/internal/storage"
)

func TestCourseOutline_FormatsLessonList(t *testing.T) {
	index := &fakeIndex{
		outline: &storage.Course{
			Title:      "Intro to Testing",
			Link:       "https://example.com/course",
			Instructor: "Jane Doe",
			Lessons: []storage.Lesson{
				{Number: 0, Title: "Welcome"},
				{Number: 1, Title: "Fundamentals"},
			},
		},
	}
	tool := NewCourseOutlineTool(index)

	out, err := tool.Execute(context.Background(), json.RawMessage(`{"course_name":"testing"}`))
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	for _, want := range []string{
		"Course: Intro to Testing",
		"Course Link: https://example.com/course",
		"Instructor: Jane Doe",
		"Lessons (2):",
		"0. Welcome",
		"1. Fundamentals",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("Output missing %q:\n%s", want, out)
		}
	}

	sources := tool.LastSources()
	if len(sources) != 1 || sources[0].Text != "Intro to Testing" || sources[0].Link != "https://example.com/course" {
		t.Errorf("Unexpected sources: %v", sources)
	}
}

func TestCourseOutline_CourseNotFound(t *testing.T) {
	index := &fakeIndex{
		outlineErr: fmt.Errorf("%w: empty catalog", storage.ErrCourseNotFound),
	}
	tool := NewCourseOutlineTool(index)

	out, err := tool.Execute(context.Background(), json.RawMessage(`{"course_name":"Ghost Course"}`))
	if err != nil {
		t.Fatalf("NotFound must be recovered into text, got error: %v", err)
	}
	if out != "No course found matching 'Ghost Course'" {
		t.Errorf("Unexpected message: %q", out)
	}
}

func TestCourseOutline_MissingCourseName(t *testing.T) {
	tool := NewCourseOutlineTool(&fakeIndex{})

	if _, err := tool.Execute(context.Background(), json.RawMessage(`{}`)); err == nil {
		t.Fatal("Expected error for missing course name")
	}
}
