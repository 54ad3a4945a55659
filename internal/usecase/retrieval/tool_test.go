package retrieval

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"sync"
	"testing"

	"github.com/himanshuraimau/rag-movie-agent/internal/db/memory"
	"github.com/himanshuraimau/rag-movie-agent/internal/domain"
	"github.com/himanshuraimau/rag-movie-agent/internal/domain/collection"
	"github.com/himanshuraimau/rag-movie-agent/internal/domain/search/filter"
	"github.com/himanshuraimau/rag-movie-agent/internal/domain/search/request"
	"github.com/himanshuraimau/rag-movie-agent/internal/domain/search/result"
	"github.com/himanshuraimau/rag-movie-agent/internal/repository/index"
)

func mustRequest(t *testing.T, query, field, value string) request.Request {
	t.Helper()
	req, err := request.New(query, field, value)
	if err != nil {
		t.Fatalf("request.New: %v", err)
	}
	return req
}

func TestNew_Validation(t *testing.T) {
	col := catalog(t)
	tests := []struct {
		name string
		cfg  ToolConfig
		idx  Index
		emb  Embedder
	}{
		{name: "missing collection", cfg: ToolConfig{}, idx: &mockIndex{}, emb: &keywordEmbedder{}},
		{name: "nil index", cfg: ToolConfig{Collection: col}, idx: nil, emb: &keywordEmbedder{}},
		{name: "nil embedder", cfg: ToolConfig{Collection: col}, idx: &mockIndex{}, emb: nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.cfg, tt.idx, tt.emb, nil)
			if !errors.Is(err, domain.ErrConfiguration) {
				t.Fatalf("expected ErrConfiguration, got %v", err)
			}
		})
	}
}

func TestNew_Defaults(t *testing.T) {
	tool := newTestTool(t, 0, &mockIndex{}, &keywordEmbedder{})
	if tool.Limit() != DefaultLimit {
		t.Errorf("Limit() = %d, want %d", tool.Limit(), DefaultLimit)
	}
	if tool.Name() != DefaultName {
		t.Errorf("Name() = %q", tool.Name())
	}
	if tool.Description() != DefaultDescription {
		t.Errorf("Description() = %q", tool.Description())
	}
	if tool.Collection().Name() != "catalog" {
		t.Errorf("Collection() = %q", tool.Collection().Name())
	}
}

func TestSearch_BoundedByLimit(t *testing.T) {
	for _, n := range []int{0, 1, 3, 7} {
		idx := &mockIndex{knnFn: func(context.Context, collection.Collection, []float32, int, filter.Expression) ([]result.Match, error) {
			return matchesN(n), nil
		}}
		tool := newTestTool(t, 3, idx, &keywordEmbedder{})

		set, err := tool.Search(context.Background(), mustRequest(t, "dark thriller", "", ""))
		if err != nil {
			t.Fatalf("n=%d: %v", n, err)
		}
		if set.Len() > 3 {
			t.Errorf("n=%d: got %d matches, limit is 3", n, set.Len())
		}
		if idx.calls[0].k != 3 {
			t.Errorf("n=%d: k = %d, want 3", n, idx.calls[0].k)
		}
	}
}

func TestSearch_PreservesIndexOrder(t *testing.T) {
	want := []result.Match{
		{Content: "first", Metadata: map[string]any{"genre": "drama"}},
		{Content: "second", Metadata: map[string]any{"genre": "comedy"}},
	}
	idx := &mockIndex{knnFn: func(context.Context, collection.Collection, []float32, int, filter.Expression) ([]result.Match, error) {
		return want, nil
	}}
	tool := newTestTool(t, 5, idx, &keywordEmbedder{})

	set, err := tool.Search(context.Background(), mustRequest(t, "q", "", ""))
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if !reflect.DeepEqual([]result.Match(set), want) {
		t.Errorf("got %+v, want %+v", set, want)
	}
}

func TestSearch_HalfFilterIsUnfiltered(t *testing.T) {
	tests := []struct {
		name, field, value string
	}{
		{name: "field only", field: "genre"},
		{name: "value only", value: "comedy"},
		{name: "blank value", field: "genre", value: "   "},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			idx := &mockIndex{}
			tool := newTestTool(t, 3, idx, &keywordEmbedder{})
			if _, err := tool.Search(context.Background(), mustRequest(t, "q", tt.field, tt.value)); err != nil {
				t.Fatalf("Search: %v", err)
			}
			if idx.callCount() != 1 {
				t.Fatalf("expected one index call, got %d", idx.callCount())
			}
			if !idx.calls[0].filters.IsEmpty() {
				t.Errorf("expected unfiltered query, got %+v", idx.calls[0].filters.Must())
			}
		})
	}
}

func TestSearch_FilterTranslation(t *testing.T) {
	t.Run("tag", func(t *testing.T) {
		idx := &mockIndex{}
		tool := newTestTool(t, 3, idx, &keywordEmbedder{})
		if _, err := tool.Search(context.Background(), mustRequest(t, "q", "genre", "Dramas")); err != nil {
			t.Fatalf("Search: %v", err)
		}
		must := idx.calls[0].filters.Must()
		if len(must) != 1 || !must[0].IsMatch() || must[0].Key() != "genre" || must[0].Match() != "Dramas" {
			t.Errorf("unexpected filter: %+v", must)
		}
	})

	t.Run("numeric", func(t *testing.T) {
		idx := &mockIndex{}
		tool := newTestTool(t, 3, idx, &keywordEmbedder{})
		if _, err := tool.Search(context.Background(), mustRequest(t, "q", "release_year", "2019")); err != nil {
			t.Fatalf("Search: %v", err)
		}
		must := idx.calls[0].filters.Must()
		if len(must) != 1 || !must[0].IsRange() {
			t.Fatalf("unexpected filter: %+v", must)
		}
		r := must[0].Range()
		if r.GTE() == nil || *r.GTE() != 2019 || r.LTE() == nil || *r.LTE() != 2019 {
			t.Errorf("expected [2019, 2019], got gte=%v lte=%v", r.GTE(), r.LTE())
		}
	})
}

func TestSearch_UnsatisfiableFilterSkipsIndex(t *testing.T) {
	tests := []struct {
		name, field, value string
	}{
		{name: "undeclared field", field: "director", value: "Nolan"},
		{name: "non-numeric value", field: "release_year", value: "recent"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			idx := &mockIndex{}
			emb := &keywordEmbedder{}
			tool := newTestTool(t, 3, idx, emb)

			out, err := tool.Run(context.Background(), "q", tt.field, tt.value)
			if err != nil {
				t.Fatalf("Run: %v", err)
			}
			if out != "[]" {
				t.Errorf("expected empty payload, got %s", out)
			}
			if idx.callCount() != 0 || emb.calls != 0 {
				t.Errorf("expected no backend calls, got index=%d embed=%d", idx.callCount(), emb.calls)
			}
		})
	}
}

func TestRun_EmptyQueryNeverTouchesIndex(t *testing.T) {
	for _, q := range []string{"", "   ", "\n\t"} {
		idx := &mockIndex{}
		emb := &keywordEmbedder{}
		tool := newTestTool(t, 3, idx, emb)

		_, err := tool.Run(context.Background(), q, "genre", "drama")
		if !errors.Is(err, domain.ErrValidation) {
			t.Fatalf("query %q: expected ErrValidation, got %v", q, err)
		}
		if idx.callCount() != 0 || emb.calls != 0 {
			t.Errorf("query %q: backends were called", q)
		}
	}
}

func TestSearch_ZeroValueRequest(t *testing.T) {
	idx := &mockIndex{}
	tool := newTestTool(t, 3, idx, &keywordEmbedder{})
	_, err := tool.Search(context.Background(), request.Request{})
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	if idx.callCount() != 0 {
		t.Error("index should not be called")
	}
}

func TestSearch_Failures(t *testing.T) {
	t.Run("embedding", func(t *testing.T) {
		idx := &mockIndex{}
		tool := newTestTool(t, 3, idx, &keywordEmbedder{err: domain.ErrEmbeddingProviderError})
		_, err := tool.Run(context.Background(), "q", "", "")
		if !errors.Is(err, domain.ErrRetrieval) {
			t.Fatalf("expected ErrRetrieval, got %v", err)
		}
		if !errors.Is(err, domain.ErrEmbeddingProviderError) {
			t.Errorf("cause should be preserved: %v", err)
		}
		if idx.callCount() != 0 {
			t.Error("index should not be called after embed failure")
		}
	})

	t.Run("index", func(t *testing.T) {
		cause := errors.New("connection refused")
		idx := &mockIndex{knnFn: func(context.Context, collection.Collection, []float32, int, filter.Expression) ([]result.Match, error) {
			return nil, cause
		}}
		tool := newTestTool(t, 3, idx, &keywordEmbedder{})
		_, err := tool.Run(context.Background(), "q", "", "")
		if !errors.Is(err, domain.ErrRetrieval) || !errors.Is(err, cause) {
			t.Fatalf("expected ErrRetrieval wrapping cause, got %v", err)
		}
		if idx.callCount() != 1 {
			t.Errorf("expected exactly one attempt, got %d", idx.callCount())
		}
	})
}

func TestCall(t *testing.T) {
	idx := &mockIndex{knnFn: func(context.Context, collection.Collection, []float32, int, filter.Expression) ([]result.Match, error) {
		return []result.Match{{Content: "Show B", Metadata: map[string]any{"genre": "comedy"}}}, nil
	}}
	tool := newTestTool(t, 3, idx, &keywordEmbedder{})

	out, err := tool.Call(context.Background(), `{"query":"sitcom","filter_by":"genre","filter_value":"comedy"}`)
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	var decoded []map[string]any
	if err := json.Unmarshal([]byte(out), &decoded); err != nil {
		t.Fatalf("payload is not JSON: %v\n%s", err, out)
	}
	if len(decoded) != 1 || decoded[0]["page_content"] != "Show B" {
		t.Errorf("unexpected payload: %s", out)
	}
	if f := idx.calls[0].filters.Must(); len(f) != 1 || f[0].Match() != "comedy" {
		t.Errorf("filter not applied: %+v", f)
	}

	if _, err := tool.Call(context.Background(), `{"query":`); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("malformed arguments: expected ErrValidation, got %v", err)
	}
}

func TestDefinition(t *testing.T) {
	tool := newTestTool(t, 3, &mockIndex{}, &keywordEmbedder{})
	def := tool.Definition()
	if def.Function == nil || def.Function.Name != DefaultName {
		t.Fatalf("unexpected definition: %+v", def)
	}

	raw, err := json.Marshal(def)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded struct {
		Function struct {
			Parameters struct {
				Properties map[string]struct {
					Type string   `json:"type"`
					Enum []string `json:"enum"`
				} `json:"properties"`
				Required []string `json:"required"`
			} `json:"parameters"`
		} `json:"function"`
	}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	params := decoded.Function.Parameters
	if !reflect.DeepEqual(params.Required, []string{"query"}) {
		t.Errorf("required = %v", params.Required)
	}
	for _, name := range []string{"query", "filter_by", "filter_value"} {
		if params.Properties[name].Type != "string" {
			t.Errorf("property %s type = %q", name, params.Properties[name].Type)
		}
	}
	if got := params.Properties["filter_by"].Enum; !reflect.DeepEqual(got, []string{"genre", "release_year"}) {
		t.Errorf("filter_by enum = %v", got)
	}
}

// seededTool wires the tool to the in-memory store through the index repository.
// Without docs it holds Show A (drama) and Show B (comedy).
func seededTool(t *testing.T, limit int, docs ...index.Document) *Tool {
	t.Helper()
	ctx := context.Background()
	col := catalog(t)
	repo := index.New(memory.New(), "", 3)
	if err := repo.Ensure(ctx, col); err != nil {
		t.Fatalf("Ensure: %v", err)
	}
	if len(docs) == 0 {
		docs = []index.Document{
			{ID: "a", Content: "Show A", Vector: []float32{1, 0, 0}, Metadata: map[string]any{"genre": "drama"}},
			{ID: "b", Content: "Show B", Vector: []float32{0, 1, 0}, Metadata: map[string]any{"genre": "comedy"}},
		}
	}
	for _, d := range docs {
		if err := repo.Put(ctx, col, d); err != nil {
			t.Fatalf("Put: %v", err)
		}
	}
	tool, err := New(ToolConfig{Collection: col, Limit: limit}, repo, &keywordEmbedder{}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return tool
}

func TestScenario_Catalog(t *testing.T) {
	ctx := context.Background()

	set, err := seededTool(t, 1).Search(ctx, mustRequest(t, "family drama", "", ""))
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	want := result.Set{{Content: "Show A", Metadata: map[string]any{"genre": "drama"}}}
	if !reflect.DeepEqual(set, want) {
		t.Errorf("unfiltered: got %+v, want %+v", set, want)
	}

	set, err = seededTool(t, 5).Search(ctx, mustRequest(t, "anything", "genre", "comedy"))
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	want = result.Set{{Content: "Show B", Metadata: map[string]any{"genre": "comedy"}}}
	if !reflect.DeepEqual(set, want) {
		t.Errorf("filtered: got %+v, want %+v", set, want)
	}
}

func TestScenario_FilterCorrectness(t *testing.T) {
	tool := seededTool(t, 5)
	for _, genre := range []string{"drama", "comedy", "horror"} {
		set, err := tool.Search(context.Background(), mustRequest(t, "anything", "genre", genre))
		if err != nil {
			t.Fatalf("%s: %v", genre, err)
		}
		for _, m := range set {
			if m.Metadata["genre"] != genre {
				t.Errorf("%s: match %q has genre %v", genre, m.Content, m.Metadata["genre"])
			}
		}
		if genre == "horror" && set.Len() != 0 {
			t.Errorf("expected no horror matches, got %d", set.Len())
		}
	}
}

func TestScenario_TagFilterMatchesWholeValue(t *testing.T) {
	tool := seededTool(t, 5,
		index.Document{ID: "a", Content: "Show A", Vector: []float32{0, 1, 0}, Metadata: map[string]any{"genre": "drama|comedy"}},
		index.Document{ID: "b", Content: "Show B", Vector: []float32{0, 1, 0}, Metadata: map[string]any{"genre": "comedy"}},
		index.Document{ID: "c", Content: "Show C", Vector: []float32{0, 1, 0}, Metadata: map[string]any{"genre": []string{"comedy", "drama"}}},
	)

	tests := []struct {
		value string
		want  []string
	}{
		{value: "comedy", want: []string{"Show B"}},
		{value: "drama|comedy", want: []string{"Show A"}},
		{value: "comedy, drama", want: []string{"Show C"}},
		{value: "drama", want: nil},
	}
	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			set, err := tool.Search(context.Background(), mustRequest(t, "sitcom", "genre", tt.value))
			if err != nil {
				t.Fatalf("Search: %v", err)
			}
			var got []string
			for _, m := range set {
				if m.Metadata["genre"] != tt.value {
					t.Errorf("match %q has genre %v, want %q", m.Content, m.Metadata["genre"], tt.value)
				}
				got = append(got, m.Content)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("matches = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestScenario_PermissiveDegradation(t *testing.T) {
	tool := seededTool(t, 5)
	ctx := context.Background()

	base, err := tool.Run(ctx, "sitcom", "", "")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	for _, args := range [][2]string{{"genre", ""}, {"", "drama"}} {
		got, err := tool.Run(ctx, "sitcom", args[0], args[1])
		if err != nil {
			t.Fatalf("Run(%v): %v", args, err)
		}
		if got != base {
			t.Errorf("half filter %v changed the result:\n%s\nvs\n%s", args, got, base)
		}
	}
}

func TestScenario_IdempotentAndConcurrent(t *testing.T) {
	tool := seededTool(t, 2)
	ctx := context.Background()
	first, err := tool.Run(ctx, "family drama", "", "")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	var wg sync.WaitGroup
	errs := make(chan string, 16)
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out, err := tool.Run(ctx, "family drama", "", "")
			if err != nil {
				errs <- err.Error()
				return
			}
			if out != first {
				errs <- "result changed: " + out
			}
		}()
	}
	wg.Wait()
	close(errs)
	for e := range errs {
		t.Error(e)
	}
}
