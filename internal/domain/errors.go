package domain

import "errors"

var (
	// ErrValidation signals a malformed search request (e.g. empty query).
	// Raised before the vector index is touched.
	ErrValidation = errors.New("validation failed")
	// ErrConfiguration signals invalid or unusable tool setup.
	ErrConfiguration = errors.New("invalid configuration")
	// ErrRetrieval signals a failure reaching the vector index or embedding the query.
	ErrRetrieval = errors.New("retrieval failed")
	// ErrEmbeddingProviderError signals an embedding provider failure.
	ErrEmbeddingProviderError = errors.New("embedding provider error")
)
