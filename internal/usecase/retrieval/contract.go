package retrieval

import (
	"context"

	"github.com/himanshuraimau/rag-movie-agent/internal/domain"
	"github.com/himanshuraimau/rag-movie-agent/internal/domain/collection"
	"github.com/himanshuraimau/rag-movie-agent/internal/domain/search/filter"
	"github.com/himanshuraimau/rag-movie-agent/internal/domain/search/result"
)

// Index runs k-NN queries against a collection's vector index.
type Index interface {
	KNN(
		ctx context.Context, col collection.Collection,
		vector []float32, k int, filters filter.Expression,
	) ([]result.Match, error)
}

// Embedder vectorizes the query text.
type Embedder = domain.Embedder
