// Package mcp exposes the course index to MCP clients.
package mcp

// SearchInput defines the input parameters for the search_course_content tool.
type SearchInput struct {
	// Query is the semantic search query.
	Query string `json:"query" jsonschema:"required,description=What to search for in the course content"`
	// CourseName optionally narrows the search to one course. Partial
	// matches resolve against the catalog.
	CourseName string `json:"course_name,omitempty" jsonschema:"description=Course title to search within (partial matches work)"`
	// LessonNumber optionally narrows the search to one lesson.
	LessonNumber *int `json:"lesson_number,omitempty" jsonschema:"description=Specific lesson number to search within"`
}

// SearchOutput contains the search results.
type SearchOutput struct {
	// Results is the list of matching chunks.
	Results []SearchResult `json:"results"`
	// Message provides informational context (e.g., "No matching content found").
	Message string `json:"message,omitempty"`
}

// SearchResult is a single chunk match from semantic search.
type SearchResult struct {
	// CourseTitle is the course the chunk belongs to.
	CourseTitle string `json:"course_title"`
	// LessonNumber is the lesson the chunk belongs to, absent for
	// course-level material.
	LessonNumber *int `json:"lesson_number,omitempty"`
	// LessonLink is the lesson URL when known.
	LessonLink string `json:"lesson_link,omitempty"`
	// Content is the chunk text.
	Content string `json:"content"`
	// Score is the similarity score (0-1).
	Score float64 `json:"score"`
}

// OutlineInput defines the input parameters for the get_course_outline tool.
type OutlineInput struct {
	// CourseName is the course to describe. Partial matches resolve
	// against the catalog.
	CourseName string `json:"course_name" jsonschema:"required,description=Course title (partial matches work)"`
}

// OutlineOutput contains a course's structure.
type OutlineOutput struct {
	// Title is the resolved course title.
	Title string `json:"title"`
	// Link is the course URL when known.
	Link string `json:"link,omitempty"`
	// Instructor is the course instructor when known.
	Instructor string `json:"instructor,omitempty"`
	// Lessons is the complete numbered lesson list.
	Lessons []OutlineLesson `json:"lessons"`
	// Found indicates whether the course exists.
	Found bool `json:"found"`
}

// OutlineLesson is one entry of a course outline.
type OutlineLesson struct {
	Number int    `json:"number"`
	Title  string `json:"title"`
	Link   string `json:"link,omitempty"`
}

// StatusInput defines the input parameters for the get_index_status tool.
// This tool takes no parameters.
type StatusInput struct {
	// No input parameters required
}

// StatusOutput summarizes the index contents.
type StatusOutput struct {
	// TotalCourses is the number of indexed courses.
	TotalCourses int `json:"total_courses"`
	// TotalChunks is the number of indexed content chunks.
	TotalChunks int `json:"total_chunks"`
	// CourseTitles lists every indexed course.
	CourseTitles []string `json:"course_titles"`
}
