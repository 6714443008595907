// Package ingest turns course documents on disk into indexed catalog
// entries and content chunks.
package ingest

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"

	"course-rag-server/internal/chunker"
	"course-rag-server/internal/docs"
	"course-rag-server/internal/storage"
)

// Index is the storage surface the pipeline writes to. Satisfied by
// storage.VectorIndex.
type Index interface {
	AddCourse(ctx context.Context, course *storage.Course, chunks []*storage.Chunk) error
	HasCourse(ctx context.Context, title string) (bool, error)
}

// FailedFile records one document that could not be ingested.
type FailedFile struct {
	Path string
	Err  error
}

// Result summarizes an ingestion run.
type Result struct {
	CoursesAdded   int
	CoursesSkipped int
	ChunksAdded    int
	Failed         []FailedFile
}

// Pipeline parses, chunks and indexes course documents.
type Pipeline struct {
	chunker *chunker.Chunker
	index   Index
	logger  *slog.Logger
}

// New creates an ingestion pipeline.
func New(ch *chunker.Chunker, index Index, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{chunker: ch, index: index, logger: logger}
}

// IngestFolder indexes every .txt and .md document under folder. A document
// that fails to parse or index is recorded and skipped; it never aborts the
// run. With skipExisting set, courses already in the catalog are left alone.
func (p *Pipeline) IngestFolder(ctx context.Context, folder string, skipExisting bool) (*Result, error) {
	result := &Result{}

	err := filepath.WalkDir(folder, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		switch strings.ToLower(filepath.Ext(path)) {
		case ".txt", ".md":
		default:
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if err := p.ingestFile(ctx, path, skipExisting, result); err != nil {
			p.logger.Warn("skipping document", "path", path, "error", err)
			result.Failed = append(result.Failed, FailedFile{Path: path, Err: err})
		}
		return nil
	})
	if err != nil {
		return result, fmt.Errorf("walking %s: %w", folder, err)
	}

	p.logger.Info("ingestion finished",
		"added", result.CoursesAdded,
		"skipped", result.CoursesSkipped,
		"chunks", result.ChunksAdded,
		"failed", len(result.Failed))
	return result, nil
}

func (p *Pipeline) ingestFile(ctx context.Context, path string, skipExisting bool, result *Result) error {
	course, err := docs.ParseFile(path)
	if err != nil {
		return err
	}

	if skipExisting {
		exists, err := p.index.HasCourse(ctx, course.Title)
		if err != nil {
			return err
		}
		if exists {
			p.logger.Debug("course already indexed", "title", course.Title)
			result.CoursesSkipped++
			return nil
		}
	}

	chunks := p.buildChunks(course)
	if err := p.index.AddCourse(ctx, courseRecord(course), chunks); err != nil {
		return err
	}

	p.logger.Info("course indexed", "title", course.Title, "chunks", len(chunks))
	result.CoursesAdded++
	result.ChunksAdded += len(chunks)
	return nil
}

// buildChunks chunks the preamble and every lesson, assigning global chunk
// indexes. The first chunk of each lesson is prefixed with course and
// lesson context so it stays searchable on its own.
func (p *Pipeline) buildChunks(course *docs.Course) []*storage.Chunk {
	var chunks []*storage.Chunk
	index := 0

	for _, text := range p.chunker.Chunk(course.Preamble) {
		chunks = append(chunks, &storage.Chunk{
			Content:     text,
			CourseTitle: course.Title,
			ChunkIndex:  index,
		})
		index++
	}

	for _, lesson := range course.Lessons {
		number := lesson.Number
		for i, text := range p.chunker.Chunk(lesson.Content) {
			if i == 0 {
				text = fmt.Sprintf("%s content: %s", lessonContext(course.Title, lesson), text)
			}
			chunks = append(chunks, &storage.Chunk{
				Content:      text,
				CourseTitle:  course.Title,
				LessonNumber: &number,
				LessonLink:   lesson.Link,
				ChunkIndex:   index,
			})
			index++
		}
	}
	return chunks
}

func lessonContext(courseTitle string, lesson docs.Lesson) string {
	if lesson.Title == "" {
		return fmt.Sprintf("Course %s Lesson %d", courseTitle, lesson.Number)
	}
	return fmt.Sprintf("Course %s Lesson %d (%s)", courseTitle, lesson.Number, lesson.Title)
}

func courseRecord(course *docs.Course) *storage.Course {
	record := &storage.Course{
		Title:      course.Title,
		Link:       course.Link,
		Instructor: course.Instructor,
	}
	for _, lesson := range course.Lessons {
		record.Lessons = append(record.Lessons, storage.Lesson{
			Number: lesson.Number,
			Title:  lesson.Title,
			Link:   lesson.Link,
		})
	}
	return record
}
