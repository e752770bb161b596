package vectorindex

import "errors"

var (
	// ErrEmptyCatalog is returned when building from zero entries.
	ErrEmptyCatalog = errors.New("catalog is empty")

	// ErrIndexCorrupt is returned when persisted files disagree with each other.
	ErrIndexCorrupt = errors.New("index corrupt")

	// ErrStale is returned when a persisted index was built with a different
	// model or backend than the one requested.
	ErrStale = errors.New("index stale")

	// ErrDimensionMismatch is returned for a query vector of the wrong length.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")

	// ErrLocked is returned when another process holds the index lock.
	ErrLocked = errors.New("index locked by another process")
)
