package ingest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"course-rag-server/internal/chunker"
	"course-rag-server/internal/storage"
)

type addedCourse struct {
	course *storage.Course
	chunks []*storage.Chunk
}

type fakeIndex struct {
	existing map[string]bool
	addErr   map[string]error

	added []addedCourse
}

func (f *fakeIndex) AddCourse(ctx context.Context, course *storage.Course, chunks []*storage.Chunk) error {
	if err := f.addErr[course.Title]; err != nil {
		return err
	}
	f.added = append(f.added, addedCourse{course: course, chunks: chunks})
	return nil
}

func (f *fakeIndex) HasCourse(ctx context.Context, title string) (bool, error) {
	return f.existing[title], nil
}

const courseDoc = `Course Title: Intro to Testing
Course Link: https://example.com/course
Course Instructor: Jane Doe

This course covers the basics of automated testing.

Lesson 0: Welcome
Lesson Link: https://example.com/lesson0
Welcome to the course. We start with why tests matter.

Lesson 1: Fundamentals
Lesson Link: https://example.com/lesson1
Unit tests exercise one unit in isolation. Keep them fast.
`

func writeDoc(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	return path
}

func newTestPipeline(index *fakeIndex) *Pipeline {
	return New(chunker.New(800, 100), index, nil)
}

func TestIngestFolder_IndexesCourse(t *testing.T) {
	dir := t.TempDir()
	writeDoc(t, dir, "course1.txt", courseDoc)

	index := &fakeIndex{}
	result, err := newTestPipeline(index).IngestFolder(context.Background(), dir, false)
	if err != nil {
		t.Fatalf("IngestFolder failed: %v", err)
	}

	if result.CoursesAdded != 1 || len(result.Failed) != 0 {
		t.Fatalf("Unexpected result: %+v", result)
	}
	if len(index.added) != 1 {
		t.Fatalf("Expected one indexed course, got %d", len(index.added))
	}

	course := index.added[0].course
	if course.Title != "Intro to Testing" || course.Instructor != "Jane Doe" || len(course.Lessons) != 2 {
		t.Errorf("Unexpected course record: %+v", course)
	}

	chunks := index.added[0].chunks
	if result.ChunksAdded != len(chunks) {
		t.Errorf("ChunksAdded %d does not match %d chunks", result.ChunksAdded, len(chunks))
	}
	for i, chunk := range chunks {
		if chunk.ChunkIndex != i {
			t.Errorf("Chunk %d has index %d", i, chunk.ChunkIndex)
		}
	}
	if chunks[0].LessonNumber != nil {
		t.Errorf("Preamble chunk must have no lesson number: %+v", chunks[0])
	}
}

func TestIngestFolder_LessonContextPrefix(t *testing.T) {
	dir := t.TempDir()
	writeDoc(t, dir, "course1.txt", courseDoc)

	index := &fakeIndex{}
	if _, err := newTestPipeline(index).IngestFolder(context.Background(), dir, false); err != nil {
		t.Fatalf("IngestFolder failed: %v", err)
	}

	var lessonFirst *storage.Chunk
	for _, chunk := range index.added[0].chunks {
		if chunk.LessonNumber != nil && *chunk.LessonNumber == 1 {
			lessonFirst = chunk
			break
		}
	}
	if lessonFirst == nil {
		t.Fatal("No chunk for lesson 1")
	}
	if !strings.HasPrefix(lessonFirst.Content, "Course Intro to Testing Lesson 1 (Fundamentals) content: ") {
		t.Errorf("First lesson chunk missing context prefix: %q", lessonFirst.Content)
	}
	if lessonFirst.LessonLink != "https://example.com/lesson1" {
		t.Errorf("Lesson link not carried: %q", lessonFirst.LessonLink)
	}
}

func TestIngestFolder_SkipExisting(t *testing.T) {
	dir := t.TempDir()
	writeDoc(t, dir, "course1.txt", courseDoc)

	index := &fakeIndex{existing: map[string]bool{"Intro to Testing": true}}
	result, err := newTestPipeline(index).IngestFolder(context.Background(), dir, true)
	if err != nil {
		t.Fatalf("IngestFolder failed: %v", err)
	}

	if result.CoursesSkipped != 1 || result.CoursesAdded != 0 {
		t.Errorf("Unexpected result: %+v", result)
	}
	if len(index.added) != 0 {
		t.Errorf("Existing course must not be re-indexed")
	}
}

func TestIngestFolder_BadDocumentIsIsolated(t *testing.T) {
	dir := t.TempDir()
	writeDoc(t, dir, "bad.txt", "no title header here, just text")
	writeDoc(t, dir, "good.txt", courseDoc)
	writeDoc(t, dir, "notes.json", `{"ignored": true}`)

	index := &fakeIndex{}
	result, err := newTestPipeline(index).IngestFolder(context.Background(), dir, false)
	if err != nil {
		t.Fatalf("IngestFolder failed: %v", err)
	}

	if result.CoursesAdded != 1 {
		t.Errorf("Good course should still be indexed: %+v", result)
	}
	if len(result.Failed) != 1 || !strings.HasSuffix(result.Failed[0].Path, "bad.txt") {
		t.Errorf("Bad document should be recorded: %+v", result.Failed)
	}
}

func TestIngestFolder_IndexErrorIsIsolated(t *testing.T) {
	dir := t.TempDir()
	writeDoc(t, dir, "course1.txt", courseDoc)

	index := &fakeIndex{addErr: map[string]error{"Intro to Testing": fmt.Errorf("%w: connection refused", storage.ErrStoreUnavailable)}}
	result, err := newTestPipeline(index).IngestFolder(context.Background(), dir, false)
	if err != nil {
		t.Fatalf("IngestFolder failed: %v", err)
	}

	if result.CoursesAdded != 0 || len(result.Failed) != 1 {
		t.Errorf("Index failure should be recorded, not fatal: %+v", result)
	}
}

func TestIngestFolder_MissingFolder(t *testing.T) {
	index := &fakeIndex{}
	if _, err := newTestPipeline(index).IngestFolder(context.Background(), "/nonexistent-path", false); err == nil {
		t.Fatal("Expected error for missing folder")
	}
}
