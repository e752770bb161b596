package embeddings

import "errors"

var (
	// ErrEmptyInput indicates empty or nil input texts.
	ErrEmptyInput = errors.New("empty or nil input texts")

	// ErrInvalidConfig indicates invalid configuration.
	ErrInvalidConfig = errors.New("invalid embeddings configuration")

	// ErrEmbeddingFailed indicates the backend rejected the request or
	// returned an unusable payload.
	ErrEmbeddingFailed = errors.New("embedding generation failed")

	// ErrTransport indicates a network failure or a 5xx from the backend.
	// Only these errors are retried.
	ErrTransport = errors.New("embedding transport failed")
)
