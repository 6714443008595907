package mcp

import (
	"context"
	"errors"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"course-rag-server/internal/storage"
)

// makeSearchHandler creates the search_course_content tool handler.
func makeSearchHandler(index *storage.VectorIndex) func(
	context.Context, *mcp.CallToolRequest, SearchInput,
) (*mcp.CallToolResult, SearchOutput, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input SearchInput) (
		*mcp.CallToolResult, SearchOutput, error,
	) {
		chunks, err := index.Search(ctx, input.Query, input.CourseName, input.LessonNumber)
		if err != nil {
			if errors.Is(err, storage.ErrCourseNotFound) {
				return nil, SearchOutput{
					Results: []SearchResult{},
					Message: fmt.Sprintf("No course found matching '%s'", input.CourseName),
				}, nil
			}
			return nil, SearchOutput{}, fmt.Errorf("search failed: %w", err)
		}

		results := make([]SearchResult, 0, len(chunks))
		for _, scored := range chunks {
			results = append(results, SearchResult{
				CourseTitle:  scored.Chunk.CourseTitle,
				LessonNumber: scored.Chunk.LessonNumber,
				LessonLink:   scored.Chunk.LessonLink,
				Content:      scored.Chunk.Content,
				Score:        scored.Score,
			})
		}

		if len(results) == 0 {
			return nil, SearchOutput{
				Results: []SearchResult{},
				Message: "No matching content found. Try broader search terms.",
			}, nil
		}
		return nil, SearchOutput{Results: results}, nil
	}
}

// makeOutlineHandler creates the get_course_outline tool handler.
func makeOutlineHandler(index *storage.VectorIndex) func(
	context.Context, *mcp.CallToolRequest, OutlineInput,
) (*mcp.CallToolResult, OutlineOutput, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input OutlineInput) (
		*mcp.CallToolResult, OutlineOutput, error,
	) {
		course, err := index.GetCourseOutline(ctx, input.CourseName)
		if err != nil {
			if errors.Is(err, storage.ErrCourseNotFound) {
				return nil, OutlineOutput{Found: false}, nil
			}
			return nil, OutlineOutput{}, fmt.Errorf("failed to fetch outline: %w", err)
		}

		lessons := make([]OutlineLesson, 0, len(course.Lessons))
		for _, lesson := range course.Lessons {
			lessons = append(lessons, OutlineLesson{
				Number: lesson.Number,
				Title:  lesson.Title,
				Link:   lesson.Link,
			})
		}

		return nil, OutlineOutput{
			Title:      course.Title,
			Link:       course.Link,
			Instructor: course.Instructor,
			Lessons:    lessons,
			Found:      true,
		}, nil
	}
}

// makeStatusHandler creates the get_index_status tool handler.
func makeStatusHandler(index *storage.VectorIndex) func(
	context.Context, *mcp.CallToolRequest, StatusInput,
) (*mcp.CallToolResult, StatusOutput, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input StatusInput) (
		*mcp.CallToolResult, StatusOutput, error,
	) {
		titles, err := index.ListCourseTitles(ctx)
		if err != nil {
			return nil, StatusOutput{}, fmt.Errorf("qdrant_error: failed to list courses: %w", err)
		}

		chunks, err := index.CountChunks(ctx)
		if err != nil {
			return nil, StatusOutput{}, fmt.Errorf("qdrant_error: failed to count chunks: %w", err)
		}

		return nil, StatusOutput{
			TotalCourses: len(titles),
			TotalChunks:  chunks,
			CourseTitles: titles,
		}, nil
	}
}
