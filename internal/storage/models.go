package storage

// Course is the catalog record for one ingested course. Identity is the
// title; re-ingesting a title replaces the prior record and all its chunks.
type Course struct {
	Title      string   `json:"title"`
	Link       string   `json:"link,omitempty"`
	Instructor string   `json:"instructor,omitempty"`
	Lessons    []Lesson `json:"lessons"`
}

// Lesson is one numbered section of a course, serialized into the catalog
// payload alongside its course.
type Lesson struct {
	Number int    `json:"number"`
	Title  string `json:"title"`
	Link   string `json:"link,omitempty"`
}

// Chunk is one retrievable span of course text. LessonNumber is nil for
// course-level preamble. ChunkIndex orders chunks within their course.
type Chunk struct {
	Content      string
	CourseTitle  string
	LessonNumber *int
	LessonLink   string
	ChunkIndex   int
}

// ScoredChunk pairs a chunk with its similarity score from a search.
type ScoredChunk struct {
	Chunk *Chunk
	Score float64
}

// Collection names. The catalog holds one title-embedded point per course
// for fuzzy name resolution; content holds one point per chunk.
const (
	CatalogCollection = "course_catalog"
	ContentCollection = "course_content"
)
