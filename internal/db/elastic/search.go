package elastic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/elastic/go-elasticsearch/v8/esapi"

	"github.com/himanshuraimau/rag-movie-agent/internal/db"
	"github.com/himanshuraimau/rag-movie-agent/internal/domain/search/filter"
)

const maxCandidates = 10000

// SearchKNN runs an approximate kNN search with an optional pre-filter.
func (s *Store) SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error) {
	if q.IndexName == "" {
		return nil, fmt.Errorf("index name is required")
	}
	if len(q.Vector) == 0 {
		return nil, fmt.Errorf("vector is required")
	}
	if q.K <= 0 {
		return nil, fmt.Errorf("k must be positive")
	}

	body, err := json.Marshal(buildSearchBody(q))
	if err != nil {
		return nil, fmt.Errorf("encode search body: %w", err)
	}

	resp, err := esapi.SearchRequest{
		Index: []string{IndexName(q.IndexName)},
		Body:  bytes.NewReader(body),
	}.Do(ctx, s.client)
	if err != nil {
		return nil, &db.Error{Op: db.OpSearch, Err: err}
	}
	defer resp.Body.Close()

	if resp.IsError() {
		typ, rerr := responseError(resp)
		if typ == "index_not_found_exception" {
			return nil, &db.Error{Op: db.OpSearch, Err: db.ErrIndexNotFound}
		}
		return nil, &db.Error{Op: db.OpSearch, Err: rerr}
	}

	var sr searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}
	return sr.toResult(q.Field()), nil
}

func buildSearchBody(q *db.KNNQuery) map[string]any {
	candidates := q.K * 10
	if candidates < 100 {
		candidates = 100
	}
	if candidates > maxCandidates {
		candidates = maxCandidates
	}
	if candidates < q.K {
		candidates = q.K
	}

	knn := map[string]any{
		"field":          q.Field(),
		"query_vector":   q.Vector,
		"k":              q.K,
		"num_candidates": candidates,
	}
	if clauses := buildFilter(q.Filters); len(clauses) > 0 {
		knn["filter"] = clauses
	}

	return map[string]any{
		"knn":     knn,
		"size":    q.K,
		"_source": map[string]any{"excludes": []string{q.Field()}},
	}
}

func buildFilter(expr filter.Expression) []map[string]any {
	if expr.IsEmpty() {
		return nil
	}
	clauses := make([]map[string]any, 0, len(expr.Must()))
	for _, c := range expr.Must() {
		switch {
		case c.IsMatch():
			clauses = append(clauses, map[string]any{"term": map[string]any{c.Key(): c.Match()}})
		case c.IsRange():
			clauses = append(clauses, map[string]any{"range": map[string]any{c.Key(): rangeBounds(*c.Range())}})
		}
	}
	return clauses
}

func rangeBounds(r filter.Range) map[string]float64 {
	b := make(map[string]float64, 2)
	if r.GT() != nil {
		b["gt"] = *r.GT()
	}
	if r.GTE() != nil {
		b["gte"] = *r.GTE()
	}
	if r.LT() != nil {
		b["lt"] = *r.LT()
	}
	if r.LTE() != nil {
		b["lte"] = *r.LTE()
	}
	return b
}

type searchResponse struct {
	Hits struct {
		Total struct {
			Value int `json:"value"`
		} `json:"total"`
		Hits []struct {
			ID     string         `json:"_id"`
			Score  float64        `json:"_score"`
			Source map[string]any `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

// toResult flattens hits into hash-style entries. Cosine scores arrive as
// (1+cos)/2 and are reported as cosine similarity.
func (sr *searchResponse) toResult(vectorField string) *db.SearchResult {
	out := &db.SearchResult{
		Total:   sr.Hits.Total.Value,
		Entries: make([]db.SearchEntry, 0, len(sr.Hits.Hits)),
	}
	for _, h := range sr.Hits.Hits {
		fields := make(map[string]string, len(h.Source))
		for k, v := range h.Source {
			if k == vectorField {
				continue
			}
			if k == contentField {
				k = db.FieldContent
			}
			if s, ok := stringify(v); ok {
				fields[k] = s
			}
		}
		out.Entries = append(out.Entries, db.SearchEntry{
			Key:    h.ID,
			Score:  2*h.Score - 1,
			Fields: fields,
		})
	}
	return out
}

func stringify(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case bool:
		return strconv.FormatBool(t), true
	case []any:
		parts := make([]string, 0, len(t))
		for _, e := range t {
			if s, ok := stringify(e); ok {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, ", "), true
	default:
		return "", false
	}
}
