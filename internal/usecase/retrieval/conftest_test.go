package retrieval

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/himanshuraimau/rag-movie-agent/internal/domain"
	"github.com/himanshuraimau/rag-movie-agent/internal/domain/collection"
	"github.com/himanshuraimau/rag-movie-agent/internal/domain/collection/field"
	"github.com/himanshuraimau/rag-movie-agent/internal/domain/search/filter"
	"github.com/himanshuraimau/rag-movie-agent/internal/domain/search/result"
)

// mockIndex implements Index for tests and records every call.
type mockIndex struct {
	mu    sync.Mutex
	calls []knnCall
	knnFn func(ctx context.Context, col collection.Collection, vector []float32, k int, f filter.Expression) ([]result.Match, error)
}

type knnCall struct {
	col     string
	vector  []float32
	k       int
	filters filter.Expression
}

func (m *mockIndex) KNN(
	ctx context.Context, col collection.Collection, vector []float32, k int, f filter.Expression,
) ([]result.Match, error) {
	m.mu.Lock()
	m.calls = append(m.calls, knnCall{col: col.Name(), vector: vector, k: k, filters: f})
	m.mu.Unlock()
	if m.knnFn != nil {
		return m.knnFn(ctx, col, vector, k, f)
	}
	return nil, nil
}

func (m *mockIndex) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// keywordEmbedder maps text onto axes by keyword, so similarity is predictable.
type keywordEmbedder struct {
	err   error
	calls int
	mu    sync.Mutex
}

func (e *keywordEmbedder) Embed(_ context.Context, text string) (domain.EmbeddingResult, error) {
	e.mu.Lock()
	e.calls++
	e.mu.Unlock()
	if e.err != nil {
		return domain.EmbeddingResult{}, e.err
	}
	v := []float32{0, 0, 0}
	lower := strings.ToLower(text)
	switch {
	case strings.Contains(lower, "drama"):
		v[0] = 1
	case strings.Contains(lower, "comedy"), strings.Contains(lower, "sitcom"):
		v[1] = 1
	default:
		v[2] = 1
	}
	return domain.EmbeddingResult{Embedding: v, PromptTokens: 2, TotalTokens: 2}, nil
}

func catalog(t *testing.T) collection.Collection {
	t.Helper()
	genre, err := field.New("genre", field.Tag)
	if err != nil {
		t.Fatalf("field: %v", err)
	}
	year, err := field.New("release_year", field.Numeric)
	if err != nil {
		t.Fatalf("field: %v", err)
	}
	col, err := collection.New("catalog", []field.Field{genre, year})
	if err != nil {
		t.Fatalf("collection: %v", err)
	}
	return col
}

func newTestTool(t *testing.T, limit int, idx Index, emb Embedder) *Tool {
	t.Helper()
	tool, err := New(ToolConfig{Collection: catalog(t), Limit: limit}, idx, emb, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return tool
}

func matchesN(n int) []result.Match {
	out := make([]result.Match, n)
	for i := range out {
		out[i] = result.Match{Content: "doc", Metadata: map[string]any{"rank": float64(i)}}
	}
	return out
}
