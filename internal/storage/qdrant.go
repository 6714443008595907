// Package storage implements the vector index over qdrant: a course catalog
// collection for fuzzy name resolution and a content collection for semantic
// chunk retrieval.
package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
)

// Embedder turns text into vectors. Satisfied by embedding.Embedder.
type Embedder interface {
	GenerateEmbeddings(ctx context.Context, texts []string) ([][]float32, error)
}

// VectorIndex wraps the qdrant client with the two course collections and an
// embedder for query/document vectorization.
type VectorIndex struct {
	client     *qdrant.Client
	embedder   Embedder
	dimension  uint64
	maxResults int

	// Per-title locks serialize AddCourse/DeleteCourse for one course so
	// a reader never observes a partially replaced chunk set.
	mu          sync.Mutex
	courseLocks map[string]*sync.Mutex
}

// NewVectorIndex connects to qdrant and validates health with retry.
func NewVectorIndex(host string, port int, embedder Embedder, dimension, maxResults int) (*VectorIndex, error) {
	client, err := qdrant.NewClient(&qdrant.Config{
		Host: host,
		Port: port,
	})
	if err != nil {
		return nil, fmt.Errorf("create qdrant client: %w", err)
	}

	if maxResults <= 0 {
		maxResults = 5
	}
	index := &VectorIndex{
		client:      client,
		embedder:    embedder,
		dimension:   uint64(dimension),
		maxResults:  maxResults,
		courseLocks: make(map[string]*sync.Mutex),
	}

	if err := index.healthCheckWithRetry(context.Background()); err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	return index, nil
}

// healthCheckWithRetry performs health checks with exponential backoff.
// Initial interval 500ms, max interval 10s, max elapsed 30s.
func (x *VectorIndex) healthCheckWithRetry(ctx context.Context) error {
	exponentialBackoff := backoff.NewExponentialBackOff()
	exponentialBackoff.InitialInterval = 500 * time.Millisecond
	exponentialBackoff.MaxInterval = 10 * time.Second
	exponentialBackoff.MaxElapsedTime = 30 * time.Second

	return backoff.Retry(func() error {
		return x.Health(ctx)
	}, backoff.WithContext(exponentialBackoff, ctx))
}

// Health performs a single health check against qdrant.
func (x *VectorIndex) Health(ctx context.Context) error {
	result, err := x.client.HealthCheck(ctx)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	if result == nil || result.Title == "" {
		return fmt.Errorf("health check returned invalid response")
	}
	return nil
}

// EnsureCollections creates the catalog and content collections with payload
// indexes if they do not exist. Idempotent.
func (x *VectorIndex) EnsureCollections(ctx context.Context) error {
	existing, err := x.client.ListCollections(ctx)
	if err != nil {
		return fmt.Errorf("%w: list collections: %v", ErrStoreUnavailable, err)
	}
	have := make(map[string]bool, len(existing))
	for _, name := range existing {
		have[name] = true
	}

	for _, name := range []string{CatalogCollection, ContentCollection} {
		if have[name] {
			continue
		}
		err := x.client.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: name,
			VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
				Size:     x.dimension,
				Distance: qdrant.Distance_Cosine,
			}),
		})
		if err != nil {
			return fmt.Errorf("%w: create collection %s: %v", ErrStoreUnavailable, name, err)
		}
	}

	return x.createPayloadIndexes(ctx)
}

// createPayloadIndexes indexes the fields used for exact-match filtering.
func (x *VectorIndex) createPayloadIndexes(ctx context.Context) error {
	keyword := []struct {
		collection string
		field      string
	}{
		{CatalogCollection, "title"},
		{ContentCollection, "course_title"},
	}
	for _, idx := range keyword {
		_, err := x.client.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
			CollectionName: idx.collection,
			FieldName:      idx.field,
			FieldType:      qdrant.FieldType_FieldTypeKeyword.Enum(),
		})
		if err != nil {
			return fmt.Errorf("create index for %s.%s: %w", idx.collection, idx.field, err)
		}
	}

	_, err := x.client.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
		CollectionName: ContentCollection,
		FieldName:      "lesson_number",
		FieldType:      qdrant.FieldType_FieldTypeInteger.Enum(),
	})
	if err != nil {
		return fmt.Errorf("create index for %s.lesson_number: %w", ContentCollection, err)
	}
	return nil
}

// Clear deletes and recreates both collections.
func (x *VectorIndex) Clear(ctx context.Context) error {
	for _, name := range []string{CatalogCollection, ContentCollection} {
		if err := x.client.DeleteCollection(ctx, name); err != nil {
			return fmt.Errorf("%w: delete collection %s: %v", ErrStoreUnavailable, name, err)
		}
	}
	return x.EnsureCollections(ctx)
}

// Close closes the qdrant client connection.
func (x *VectorIndex) Close() error {
	if x.client != nil {
		return x.client.Close()
	}
	return nil
}

func (x *VectorIndex) courseLock(title string) *sync.Mutex {
	x.mu.Lock()
	defer x.mu.Unlock()

	lock, ok := x.courseLocks[title]
	if !ok {
		lock = &sync.Mutex{}
		x.courseLocks[title] = lock
	}
	return lock
}

// catalogPointID derives a stable point id from the course title, so
// re-ingesting a course overwrites its catalog record in place.
func catalogPointID(title string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("course:"+title)).String()
}

// upsertWithRetry performs an upsert with exponential backoff.
func (x *VectorIndex) upsertWithRetry(ctx context.Context, collection string, points []*qdrant.PointStruct) error {
	exponentialBackoff := backoff.NewExponentialBackOff()
	exponentialBackoff.InitialInterval = 500 * time.Millisecond
	exponentialBackoff.MaxInterval = 10 * time.Second
	exponentialBackoff.MaxElapsedTime = 30 * time.Second

	return backoff.Retry(func() error {
		_, err := x.client.Upsert(ctx, &qdrant.UpsertPoints{
			CollectionName: collection,
			Points:         points,
		})
		return err
	}, backoff.WithContext(exponentialBackoff, ctx))
}

// AddCourse embeds and stores a course's catalog record and replaces all of
// its chunks. Writes for one title are serialized; distinct titles may run
// concurrently.
func (x *VectorIndex) AddCourse(ctx context.Context, course *Course, chunks []*Chunk) error {
	if course == nil || course.Title == "" {
		return fmt.Errorf("course title is required")
	}

	lock := x.courseLock(course.Title)
	lock.Lock()
	defer lock.Unlock()

	// One embedding batch: course title first, chunk contents after.
	texts := make([]string, 0, len(chunks)+1)
	texts = append(texts, course.Title)
	for _, chunk := range chunks {
		texts = append(texts, chunk.Content)
	}
	embeddings, err := x.embedder.GenerateEmbeddings(ctx, texts)
	if err != nil {
		return fmt.Errorf("%w: embed course %q: %v", ErrStoreUnavailable, course.Title, err)
	}
	for i, emb := range embeddings {
		if uint64(len(emb)) != x.dimension {
			return fmt.Errorf("%w: embedding %d has %d dimensions, expected %d",
				ErrDimensionMismatch, i, len(emb), x.dimension)
		}
	}

	// Drop the prior chunk set before inserting the replacement.
	if err := x.deleteChunks(ctx, course.Title); err != nil {
		return err
	}

	lessonsJSON, err := json.Marshal(course.Lessons)
	if err != nil {
		return fmt.Errorf("marshal lessons: %w", err)
	}
	catalogPoint := &qdrant.PointStruct{
		Id:      qdrant.NewIDUUID(catalogPointID(course.Title)),
		Vectors: qdrant.NewVectors(embeddings[0]...),
		Payload: qdrant.NewValueMap(map[string]any{
			"title":        course.Title,
			"link":         course.Link,
			"instructor":   course.Instructor,
			"lessons_json": string(lessonsJSON),
			"lesson_count": len(course.Lessons),
		}),
	}
	if err := x.upsertWithRetry(ctx, CatalogCollection, []*qdrant.PointStruct{catalogPoint}); err != nil {
		return fmt.Errorf("%w: upsert catalog for %q: %v", ErrStoreUnavailable, course.Title, err)
	}

	// Chunk upserts batched in groups of 100.
	const batchSize = 100
	for start := 0; start < len(chunks); start += batchSize {
		end := min(start+batchSize, len(chunks))
		points := make([]*qdrant.PointStruct, 0, end-start)
		for i := start; i < end; i++ {
			chunk := chunks[i]
			payload := map[string]any{
				"content":      chunk.Content,
				"course_title": chunk.CourseTitle,
				"chunk_index":  chunk.ChunkIndex,
				"lesson_link":  chunk.LessonLink,
			}
			if chunk.LessonNumber != nil {
				payload["lesson_number"] = *chunk.LessonNumber
			}
			points = append(points, &qdrant.PointStruct{
				Id:      qdrant.NewIDUUID(uuid.New().String()),
				Vectors: qdrant.NewVectors(embeddings[i+1]...),
				Payload: qdrant.NewValueMap(payload),
			})
		}
		if err := x.upsertWithRetry(ctx, ContentCollection, points); err != nil {
			return fmt.Errorf("%w: upsert chunks %d-%d for %q: %v", ErrStoreUnavailable, start, end, course.Title, err)
		}
	}

	return nil
}

func (x *VectorIndex) deleteChunks(ctx context.Context, title string) error {
	_, err := x.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: ContentCollection,
		Points: qdrant.NewPointsSelectorFilter(&qdrant.Filter{
			Must: []*qdrant.Condition{
				qdrant.NewMatch("course_title", title),
			},
		}),
	})
	if err != nil {
		return fmt.Errorf("%w: delete chunks for %q: %v", ErrStoreUnavailable, title, err)
	}
	return nil
}

// DeleteCourse removes a course's catalog record and all of its chunks.
func (x *VectorIndex) DeleteCourse(ctx context.Context, title string) error {
	lock := x.courseLock(title)
	lock.Lock()
	defer lock.Unlock()

	if err := x.deleteChunks(ctx, title); err != nil {
		return err
	}
	_, err := x.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: CatalogCollection,
		Points: qdrant.NewPointsSelectorFilter(&qdrant.Filter{
			Must: []*qdrant.Condition{
				qdrant.NewMatch("title", title),
			},
		}),
	})
	if err != nil {
		return fmt.Errorf("%w: delete catalog record for %q: %v", ErrStoreUnavailable, title, err)
	}
	return nil
}

// ResolveCourseName resolves a fuzzy course reference to the closest catalog
// title. There is no similarity floor: as long as any course is ingested,
// some title is returned. ErrCourseNotFound means the catalog is empty.
func (x *VectorIndex) ResolveCourseName(ctx context.Context, name string) (string, error) {
	embeddings, err := x.embedder.GenerateEmbeddings(ctx, []string{name})
	if err != nil {
		return "", fmt.Errorf("%w: embed course name: %v", ErrStoreUnavailable, err)
	}

	results, err := x.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: CatalogCollection,
		Query:          qdrant.NewQuery(embeddings[0]...),
		Limit:          qdrant.PtrOf(uint64(1)),
		WithPayload:    qdrant.NewWithPayloadInclude("title"),
	})
	if err != nil {
		return "", fmt.Errorf("%w: query catalog: %v", ErrStoreUnavailable, err)
	}
	if len(results) == 0 {
		return "", fmt.Errorf("%w: no match for %q", ErrCourseNotFound, name)
	}
	return results[0].Payload["title"].GetStringValue(), nil
}

// Search performs nearest-neighbor retrieval over chunks, optionally
// filtered by a fuzzy course name and/or lesson number. An unresolvable
// course name fails with ErrCourseNotFound instead of searching unfiltered.
func (x *VectorIndex) Search(ctx context.Context, query, courseName string, lessonNumber *int) ([]*ScoredChunk, error) {
	var must []*qdrant.Condition
	if courseName != "" {
		title, err := x.ResolveCourseName(ctx, courseName)
		if err != nil {
			return nil, err
		}
		must = append(must, qdrant.NewMatch("course_title", title))
	}
	if lessonNumber != nil {
		must = append(must, qdrant.NewMatchInt("lesson_number", int64(*lessonNumber)))
	}

	embeddings, err := x.embedder.GenerateEmbeddings(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("%w: embed query: %v", ErrStoreUnavailable, err)
	}

	params := &qdrant.QueryPoints{
		CollectionName: ContentCollection,
		Query:          qdrant.NewQuery(embeddings[0]...),
		Limit:          qdrant.PtrOf(uint64(x.maxResults)),
		WithPayload:    qdrant.NewWithPayload(true),
	}
	if len(must) > 0 {
		params.Filter = &qdrant.Filter{Must: must}
	}

	results, err := x.client.Query(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("%w: query chunks: %v", ErrStoreUnavailable, err)
	}

	chunks := make([]*ScoredChunk, 0, len(results))
	for _, result := range results {
		payload := result.Payload

		chunk := &Chunk{
			Content:     payload["content"].GetStringValue(),
			CourseTitle: payload["course_title"].GetStringValue(),
			LessonLink:  payload["lesson_link"].GetStringValue(),
			ChunkIndex:  int(payload["chunk_index"].GetIntegerValue()),
		}
		if v, ok := payload["lesson_number"]; ok {
			n := int(v.GetIntegerValue())
			chunk.LessonNumber = &n
		}

		chunks = append(chunks, &ScoredChunk{
			Chunk: chunk,
			Score: float64(result.Score),
		})
	}

	return chunks, nil
}

// GetCourseOutline resolves a fuzzy course name and returns the full catalog
// record, including the lesson list.
func (x *VectorIndex) GetCourseOutline(ctx context.Context, courseName string) (*Course, error) {
	title, err := x.ResolveCourseName(ctx, courseName)
	if err != nil {
		return nil, err
	}
	return x.getCourse(ctx, title)
}

func (x *VectorIndex) getCourse(ctx context.Context, title string) (*Course, error) {
	results, err := x.client.Scroll(ctx, &qdrant.ScrollPoints{
		CollectionName: CatalogCollection,
		Filter: &qdrant.Filter{
			Must: []*qdrant.Condition{
				qdrant.NewMatch("title", title),
			},
		},
		Limit:       qdrant.PtrOf(uint32(1)),
		WithPayload: qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: scroll catalog: %v", ErrStoreUnavailable, err)
	}
	if len(results) == 0 {
		return nil, fmt.Errorf("%w: %q", ErrCourseNotFound, title)
	}

	payload := results[0].Payload
	course := &Course{
		Title:      payload["title"].GetStringValue(),
		Link:       payload["link"].GetStringValue(),
		Instructor: payload["instructor"].GetStringValue(),
	}
	if raw := payload["lessons_json"].GetStringValue(); raw != "" {
		if err := json.Unmarshal([]byte(raw), &course.Lessons); err != nil {
			return nil, fmt.Errorf("unmarshal lessons for %q: %w", title, err)
		}
	}
	return course, nil
}

// HasCourse reports whether an exact course title is already ingested.
func (x *VectorIndex) HasCourse(ctx context.Context, title string) (bool, error) {
	results, err := x.client.Scroll(ctx, &qdrant.ScrollPoints{
		CollectionName: CatalogCollection,
		Filter: &qdrant.Filter{
			Must: []*qdrant.Condition{
				qdrant.NewMatch("title", title),
			},
		},
		Limit:       qdrant.PtrOf(uint32(1)),
		WithPayload: qdrant.NewWithPayloadInclude("title"),
	})
	if err != nil {
		return false, fmt.Errorf("%w: scroll catalog: %v", ErrStoreUnavailable, err)
	}
	return len(results) > 0, nil
}

// ListCourseTitles returns all ingested course titles, sorted.
func (x *VectorIndex) ListCourseTitles(ctx context.Context) ([]string, error) {
	var titles []string
	var offset *qdrant.PointId
	seen := make(map[string]bool)

	batchSize := uint32(100)
	for {
		results, err := x.client.Scroll(ctx, &qdrant.ScrollPoints{
			CollectionName: CatalogCollection,
			Limit:          qdrant.PtrOf(batchSize),
			Offset:         offset,
			WithPayload:    qdrant.NewWithPayloadInclude("title"),
		})
		if err != nil {
			return nil, fmt.Errorf("%w: scroll catalog: %v", ErrStoreUnavailable, err)
		}

		// The scroll offset is inclusive, so the page boundary point can
		// come back twice.
		for _, result := range results {
			if title := result.Payload["title"].GetStringValue(); title != "" && !seen[title] {
				seen[title] = true
				titles = append(titles, title)
			}
		}

		if uint32(len(results)) < batchSize {
			break
		}
		offset = results[len(results)-1].Id
	}

	sort.Strings(titles)
	return titles, nil
}

// CountCourses returns the number of catalog records.
func (x *VectorIndex) CountCourses(ctx context.Context) (int, error) {
	return x.count(ctx, CatalogCollection)
}

// CountChunks returns the number of content chunks.
func (x *VectorIndex) CountChunks(ctx context.Context) (int, error) {
	return x.count(ctx, ContentCollection)
}

func (x *VectorIndex) count(ctx context.Context, collection string) (int, error) {
	n, err := x.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: collection,
		Exact:          qdrant.PtrOf(true),
	})
	if err != nil {
		return 0, fmt.Errorf("%w: count %s: %v", ErrStoreUnavailable, collection, err)
	}
	return int(n), nil
}
