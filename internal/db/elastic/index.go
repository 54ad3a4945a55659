package elastic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/elastic/go-elasticsearch/v8/esapi"

	"github.com/himanshuraimau/rag-movie-agent/internal/db"
)

// Document field names. Leading underscores are reserved by Elasticsearch,
// so the hash-style __content is stored under contentField.
const contentField = "page_content"

// CreateIndex creates an index whose mapping mirrors the definition:
// TAG → keyword, NUMERIC → double, VECTOR → dense_vector.
func (s *Store) CreateIndex(ctx context.Context, def *db.IndexDefinition) error {
	body, err := buildMapping(def)
	if err != nil {
		return err
	}

	resp, err := esapi.IndicesCreateRequest{
		Index: IndexName(def.Name),
		Body:  bytes.NewReader(body),
	}.Do(ctx, s.client)
	if err != nil {
		return &db.Error{Op: db.OpCreateIndex, Err: err}
	}
	defer resp.Body.Close()

	if resp.IsError() {
		typ, rerr := responseError(resp)
		if typ == "resource_already_exists_exception" {
			return db.ErrIndexExists
		}
		return &db.Error{Op: db.OpCreateIndex, Err: rerr}
	}
	return nil
}

// IndexExists reports whether the index is present (HEAD /<index>).
func (s *Store) IndexExists(ctx context.Context, name string) (bool, error) {
	resp, err := esapi.IndicesExistsRequest{Index: []string{IndexName(name)}}.Do(ctx, s.client)
	if err != nil {
		return false, &db.Error{Op: db.OpIndexInfo, Err: err}
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		return true, nil
	case http.StatusNotFound:
		return false, nil
	default:
		return false, &db.Error{Op: db.OpIndexInfo, Err: fmt.Errorf("status %d", resp.StatusCode)}
	}
}

func buildMapping(def *db.IndexDefinition) ([]byte, error) {
	if def == nil {
		return nil, fmt.Errorf("index definition is required")
	}
	if err := def.Validate(); err != nil {
		return nil, err
	}

	props := map[string]any{
		contentField: map[string]any{"type": "text"},
	}
	for i := range def.Fields {
		f := &def.Fields[i]
		switch f.Type {
		case db.IndexFieldTag:
			props[f.QueryName()] = map[string]any{"type": "keyword"}
		case db.IndexFieldNumeric:
			props[f.QueryName()] = map[string]any{"type": "double"}
		case db.IndexFieldVector:
			props[f.QueryName()] = map[string]any{
				"type":       "dense_vector",
				"dims":       f.VectorDim,
				"index":      true,
				"similarity": similarity(f.VectorDistance),
			}
		default:
			return nil, fmt.Errorf("unknown field type %s", f.Type)
		}
	}

	return json.Marshal(map[string]any{
		"mappings": map[string]any{"properties": props},
	})
}

func similarity(d db.DistanceMetric) string {
	switch d {
	case db.DistanceL2:
		return "l2_norm"
	case db.DistanceIP:
		return "dot_product"
	default:
		return "cosine"
	}
}
