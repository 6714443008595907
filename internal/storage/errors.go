package storage

import "errors"

var (
	// ErrStoreUnavailable indicates the qdrant backend or the embedding
	// provider could not serve the request. Callers degrade rather than
	// fail the whole query.
	ErrStoreUnavailable = errors.New("vector store unavailable")

	// ErrCourseNotFound indicates a course filter could not be resolved
	// against the catalog.
	ErrCourseNotFound = errors.New("course not found")

	// ErrDimensionMismatch indicates an embedding did not match the
	// configured vector dimension.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
)
