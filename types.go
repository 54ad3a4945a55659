package ragmovie

import (
	"github.com/himanshuraimau/rag-movie-agent/internal/domain"
	"github.com/himanshuraimau/rag-movie-agent/internal/domain/search/request"
	"github.com/himanshuraimau/rag-movie-agent/internal/domain/search/result"
	"github.com/himanshuraimau/rag-movie-agent/internal/repository/index"
	"github.com/himanshuraimau/rag-movie-agent/internal/usecase/health"
)

// Embedder converts query text to a vector.
type Embedder = domain.Embedder

// EmbeddingResult is the vector and token usage of one embedding call.
type EmbeddingResult = domain.EmbeddingResult

// Request is a validated search request.
type Request = request.Request

// Match is one retrieved document.
type Match = result.Match

// ResultSet is an ordered list of matches, most similar first.
type ResultSet = result.Set

// Document is a pre-embedded corpus entry used to seed the memory store.
type Document = index.Document

// HealthReport aggregates store and embedding checks.
type HealthReport = health.Report

// NewRequest validates a query and optional filter.
// A filter is applied only when both field and value are non-empty.
func NewRequest(query, filterBy, filterValue string) (Request, error) {
	return request.New(query, filterBy, filterValue) //nolint:wrapcheck // re-export
}

// Sentinel errors re-exported from the domain layer.
// Use errors.Is() to check.
var (
	ErrValidation             = domain.ErrValidation
	ErrConfiguration          = domain.ErrConfiguration
	ErrRetrieval              = domain.ErrRetrieval
	ErrEmbeddingProviderError = domain.ErrEmbeddingProviderError
)
