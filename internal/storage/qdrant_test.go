//go:build integration
// +build integration

package storage

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testDimension = 64

// wordEmbedder is a deterministic embedder: bag-of-words hashed into a
// fixed-size vector and normalized. Texts sharing words land close in
// cosine space, which is enough to exercise search and resolution.
type wordEmbedder struct{}

func (wordEmbedder) GenerateEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec := make([]float32, testDimension)
		for _, word := range strings.Fields(strings.ToLower(text)) {
			h := fnv.New32a()
			h.Write([]byte(strings.Trim(word, ".,!?'\"")))
			vec[h.Sum32()%testDimension]++
		}
		var norm float64
		for _, v := range vec {
			norm += float64(v * v)
		}
		if norm > 0 {
			scale := float32(1 / math.Sqrt(norm))
			for j := range vec {
				vec[j] *= scale
			}
		}
		out[i] = vec
	}
	return out, nil
}

// setupTestIndex creates a fresh index against a local Qdrant.
// Skips test if Qdrant is not running.
func setupTestIndex(t *testing.T) *VectorIndex {
	index, err := NewVectorIndex("localhost", 6334, wordEmbedder{}, testDimension, 5)
	if err != nil {
		t.Skipf("Qdrant not available: %v", err)
	}

	ctx := context.Background()
	require.NoError(t, index.Clear(ctx), "Failed to clear collections")
	require.NoError(t, index.EnsureCollections(ctx), "Failed to ensure collections")

	return index
}

func testCourse() (*Course, []*Chunk) {
	one, two := 1, 2
	course := &Course{
		Title:      "Introduction to Vector Search",
		Link:       "https://example.com/course",
		Instructor: "Jane Doe",
		Lessons: []Lesson{
			{Number: 1, Title: "Embeddings", Link: "https://example.com/l1"},
			{Number: 2, Title: "Similarity", Link: "https://example.com/l2"},
		},
	}
	chunks := []*Chunk{
		{Content: "Embeddings turn text into vectors", CourseTitle: course.Title, LessonNumber: &one, LessonLink: "https://example.com/l1", ChunkIndex: 0},
		{Content: "Cosine similarity compares vectors", CourseTitle: course.Title, LessonNumber: &two, LessonLink: "https://example.com/l2", ChunkIndex: 1},
	}
	return course, chunks
}

func TestCourseRoundTrip(t *testing.T) {
	index := setupTestIndex(t)
	defer index.Close()
	ctx := context.Background()

	course, chunks := testCourse()
	require.NoError(t, index.AddCourse(ctx, course, chunks), "Failed to add course")

	retrieved, err := index.GetCourseOutline(ctx, "vector search")
	require.NoError(t, err, "Failed to get outline")

	assert.Equal(t, course.Title, retrieved.Title)
	assert.Equal(t, course.Link, retrieved.Link)
	assert.Equal(t, course.Instructor, retrieved.Instructor)
	require.Len(t, retrieved.Lessons, 2)
	assert.Equal(t, "Embeddings", retrieved.Lessons[0].Title)

	exists, err := index.HasCourse(ctx, course.Title)
	require.NoError(t, err)
	assert.True(t, exists)

	courses, err := index.CountCourses(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, courses)

	total, err := index.CountChunks(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
}

func TestSearchWithFilters(t *testing.T) {
	index := setupTestIndex(t)
	defer index.Close()
	ctx := context.Background()

	course, chunks := testCourse()
	require.NoError(t, index.AddCourse(ctx, course, chunks))

	results, err := index.Search(ctx, "cosine similarity vectors", "", nil)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, "Cosine similarity compares vectors", results[0].Chunk.Content)

	one := 1
	results, err = index.Search(ctx, "vectors", "vector search", &one)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.NotNil(t, results[0].Chunk.LessonNumber)
	assert.Equal(t, 1, *results[0].Chunk.LessonNumber)
}

func TestReingestReplacesChunks(t *testing.T) {
	index := setupTestIndex(t)
	defer index.Close()
	ctx := context.Background()

	course, chunks := testCourse()
	require.NoError(t, index.AddCourse(ctx, course, chunks))

	one := 1
	replacement := []*Chunk{
		{Content: "Rewritten lesson content about embeddings", CourseTitle: course.Title, LessonNumber: &one, ChunkIndex: 0},
	}
	require.NoError(t, index.AddCourse(ctx, course, replacement))

	courses, err := index.CountCourses(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, courses, "Re-ingesting must not duplicate the catalog entry")

	total, err := index.CountChunks(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, total, "Old chunks must be dropped on re-ingest")
}

func TestDeleteCourse(t *testing.T) {
	index := setupTestIndex(t)
	defer index.Close()
	ctx := context.Background()

	course, chunks := testCourse()
	require.NoError(t, index.AddCourse(ctx, course, chunks))
	require.NoError(t, index.DeleteCourse(ctx, course.Title))

	exists, err := index.HasCourse(ctx, course.Title)
	require.NoError(t, err)
	assert.False(t, exists)

	total, err := index.CountChunks(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, total)
}

func TestResolveCourseName(t *testing.T) {
	index := setupTestIndex(t)
	defer index.Close()
	ctx := context.Background()

	course, chunks := testCourse()
	require.NoError(t, index.AddCourse(ctx, course, chunks))

	title, err := index.ResolveCourseName(ctx, "introduction vector")
	require.NoError(t, err)
	assert.Equal(t, course.Title, title)

	index2 := setupTestIndex(t)
	defer index2.Close()
	_, err = index2.ResolveCourseName(ctx, "anything")
	assert.ErrorIs(t, err, ErrCourseNotFound, "Empty catalog must resolve to not found")
}

func TestListCourseTitles(t *testing.T) {
	index := setupTestIndex(t)
	defer index.Close()
	ctx := context.Background()

	first, chunks := testCourse()
	require.NoError(t, index.AddCourse(ctx, first, chunks))

	second := &Course{Title: "Advanced Retrieval"}
	require.NoError(t, index.AddCourse(ctx, second, nil))

	titles, err := index.ListCourseTitles(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Advanced Retrieval", "Introduction to Vector Search"}, titles)
}
