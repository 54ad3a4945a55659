package db

import "github.com/himanshuraimau/rag-movie-agent/internal/domain/search/filter"

// KNNQuery is the input for vector similarity search.
type KNNQuery struct {
	IndexName string
	// VectorField is the queried vector attribute; empty means VectorAlias.
	VectorField string
	Filters     filter.Expression
	Vector      []float32
	K           int
}

// Field returns the vector attribute to query.
func (q *KNNQuery) Field() string {
	if q.VectorField == "" {
		return VectorAlias
	}
	return q.VectorField
}

// SearchResult is the output of a search operation.
type SearchResult struct {
	Total   int
	Entries []SearchEntry
}

// SearchEntry is a single document hit. Entries arrive most similar first.
type SearchEntry struct {
	Key    string
	Score  float64
	Fields map[string]string
}
