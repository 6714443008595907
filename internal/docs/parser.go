// Package docs parses structured course documents into courses, lessons and
// their raw text content.
//
// The expected layout is a metadata header followed by lesson sections:
//
//	Course Title: Introduction to Testing
//	Course Link: https://example.com/courses/testing
//	Course Instructor: Jane Doe
//
//	Lesson 0: Welcome
//	Lesson Link: https://example.com/courses/testing/lesson/0
//	<lesson text...>
//
//	Lesson 1: Fundamentals
//	<lesson text...>
//
// Text between the header and the first lesson marker is course-level
// preamble, kept without a lesson number.
package docs

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

// Course is one parsed course document.
type Course struct {
	Title      string
	Link       string
	Instructor string
	Preamble   string // course-level text before the first lesson
	Lessons    []Lesson
}

// Lesson is one numbered section of a course.
type Lesson struct {
	Number  int
	Title   string
	Link    string
	Content string
}

// ErrMissingTitle is returned when a document has no "Course Title:" line.
var ErrMissingTitle = errors.New("document has no course title")

var lessonMarkerRe = regexp.MustCompile(`^Lesson\s+(\d+):\s*(.*)$`)

const (
	titlePrefix      = "Course Title:"
	linkPrefix       = "Course Link:"
	instructorPrefix = "Course Instructor:"
	lessonLinkPrefix = "Lesson Link:"
)

// ParseFile reads and parses a course document. Markdown files are flattened
// to plain text before structural parsing; every other extension is treated
// as plain text.
func ParseFile(path string) (*Course, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	text := string(data)
	if strings.EqualFold(filepath.Ext(path), ".md") {
		text = extractText(data)
	}

	course, err := Parse(text)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}
	return course, nil
}

// Parse parses course document text. The course title is required; link,
// instructor, preamble and lessons are optional.
func Parse(text string) (*Course, error) {
	course := &Course{}

	var current *Lesson
	var preamble, body strings.Builder

	flush := func() {
		if current != nil {
			current.Content = strings.TrimSpace(body.String())
			course.Lessons = append(course.Lessons, *current)
			body.Reset()
		}
	}

	scanner := bufio.NewScanner(strings.NewReader(text))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		trimmed := strings.TrimSpace(line)

		if m := lessonMarkerRe.FindStringSubmatch(trimmed); m != nil {
			flush()
			number, _ := strconv.Atoi(m[1])
			current = &Lesson{Number: number, Title: strings.TrimSpace(m[2])}
			continue
		}

		if current != nil {
			if current.Link == "" && strings.HasPrefix(trimmed, lessonLinkPrefix) {
				current.Link = strings.TrimSpace(strings.TrimPrefix(trimmed, lessonLinkPrefix))
				continue
			}
			body.WriteString(line)
			body.WriteByte('\n')
			continue
		}

		// Before the first lesson: metadata header, then preamble.
		switch {
		case strings.HasPrefix(trimmed, titlePrefix):
			course.Title = strings.TrimSpace(strings.TrimPrefix(trimmed, titlePrefix))
		case strings.HasPrefix(trimmed, linkPrefix):
			course.Link = strings.TrimSpace(strings.TrimPrefix(trimmed, linkPrefix))
		case strings.HasPrefix(trimmed, instructorPrefix):
			course.Instructor = strings.TrimSpace(strings.TrimPrefix(trimmed, instructorPrefix))
		default:
			preamble.WriteString(line)
			preamble.WriteByte('\n')
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan document: %w", err)
	}
	flush()

	course.Preamble = strings.TrimSpace(preamble.String())
	if course.Title == "" {
		return nil, ErrMissingTitle
	}
	return course, nil
}
