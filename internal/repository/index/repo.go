package index

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/himanshuraimau/rag-movie-agent/internal/db"
	"github.com/himanshuraimau/rag-movie-agent/internal/domain/collection"
	"github.com/himanshuraimau/rag-movie-agent/internal/domain/collection/field"
	"github.com/himanshuraimau/rag-movie-agent/internal/domain/search/filter"
	"github.com/himanshuraimau/rag-movie-agent/internal/domain/search/result"
)

// DefaultKeyPrefix namespaces every key the repository touches.
const DefaultKeyPrefix = "ragmovie:"

// TagSeparator is the ASCII unit separator. Catalog values never contain
// it, so a stored tag attribute is one value and filters match it whole:
// "Dramas, Comedies" matches only "Dramas, Comedies".
const TagSeparator = "\x1f"

// listSeparator joins []string metadata the way the catalog writes lists.
const listSeparator = ", "

// store is the consumer interface for vector index operations (ISP).
type store interface {
	CreateIndex(ctx context.Context, def *db.IndexDefinition) error
	IndexExists(ctx context.Context, name string) (bool, error)
	SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
}

// HNSWConfig holds HNSW build parameters. Zero values keep server defaults.
type HNSWConfig struct {
	M           int
	EFConstruct int
}

// Repo maps collections onto FT-style vector indexes.
type Repo struct {
	store     store
	keyPrefix string
	vectorDim int
	hnsw      HNSWConfig
}

// New creates an index repository.
func New(s store, keyPrefix string, vectorDim int) *Repo {
	if keyPrefix == "" {
		keyPrefix = DefaultKeyPrefix
	}
	return &Repo{store: s, keyPrefix: keyPrefix, vectorDim: vectorDim, hnsw: HNSWConfig{M: 16, EFConstruct: 200}}
}

// WithHNSW overrides the HNSW parameters; non-positive values are ignored.
func (r *Repo) WithHNSW(cfg HNSWConfig) *Repo {
	if cfg.M > 0 {
		r.hnsw.M = cfg.M
	}
	if cfg.EFConstruct > 0 {
		r.hnsw.EFConstruct = cfg.EFConstruct
	}
	return r
}

// IndexName is the index backing a collection.
func (r *Repo) IndexName(col string) string { return r.keyPrefix + col + ":idx" }

// KeyPrefix is the key namespace of a collection's documents.
func (r *Repo) KeyPrefix(col string) string { return r.keyPrefix + col + ":" }

// Ensure opens the collection's index, creating it when absent.
func (r *Repo) Ensure(ctx context.Context, col collection.Collection) error {
	name := r.IndexName(col.Name())
	exists, err := r.store.IndexExists(ctx, name)
	if err != nil {
		return fmt.Errorf("check index %s: %w", name, err)
	}
	if exists {
		return nil
	}

	def, err := r.buildIndex(col)
	if err != nil {
		return fmt.Errorf("build index: %w", err)
	}
	// A concurrent creator winning the race is fine.
	if err := r.store.CreateIndex(ctx, def); err != nil && !errors.Is(err, db.ErrIndexExists) {
		return fmt.Errorf("create index %s: %w", name, err)
	}
	return nil
}

func (r *Repo) buildIndex(col collection.Collection) (*db.IndexDefinition, error) {
	if r.vectorDim <= 0 {
		return nil, fmt.Errorf("vector dimensions must be positive, got %d", r.vectorDim)
	}
	b := db.NewIndex(r.IndexName(col.Name())).Prefix(r.KeyPrefix(col.Name()))
	for _, f := range col.Fields() {
		switch f.FieldType() {
		case field.Tag:
			b.Tag(f.Name(), TagSeparator, true)
		case field.Numeric:
			b.Numeric(f.Name())
		default:
			return nil, fmt.Errorf("unknown field type: %s", f.FieldType())
		}
	}
	b.VectorHNSW(db.FieldVector, db.VectorAlias, r.vectorDim, db.DistanceCosine, r.hnsw.M, r.hnsw.EFConstruct)
	return b.Build()
}

// KNN returns the k documents nearest to vector, most similar first.
func (r *Repo) KNN(
	ctx context.Context, col collection.Collection,
	vector []float32, k int, filters filter.Expression,
) ([]result.Match, error) {
	sr, err := r.store.SearchKNN(ctx, &db.KNNQuery{
		IndexName: r.IndexName(col.Name()),
		Filters:   filters,
		Vector:    vector,
		K:         k,
	})
	if err != nil {
		return nil, fmt.Errorf("search knn %s: %w", col.Name(), err)
	}
	if sr == nil {
		return nil, nil
	}

	matches := make([]result.Match, 0, len(sr.Entries))
	for _, e := range sr.Entries {
		matches = append(matches, toMatch(col, e))
	}
	return matches, nil
}

// toMatch splits an entry into content and metadata. Attributes declared
// numeric in the schema are decoded as float64; everything else stays text.
func toMatch(col collection.Collection, e db.SearchEntry) result.Match {
	m := result.Match{Content: e.Fields[db.FieldContent], Metadata: make(map[string]any, len(e.Fields))}
	for k, v := range e.Fields {
		if strings.HasPrefix(k, "__") {
			continue
		}
		if f, ok := col.FieldByName(k); ok && f.FieldType() == field.Numeric {
			if n, err := strconv.ParseFloat(v, 64); err == nil {
				m.Metadata[k] = n
				continue
			}
		}
		m.Metadata[k] = v
	}
	return m
}

// Document is a pre-embedded corpus entry.
type Document struct {
	ID       string
	Content  string
	Vector   []float32
	Metadata map[string]any
}

// Put writes a document into the collection's key space. The store must
// implement db.HashWriter. Metadata is limited to the attributes the
// collection declares, so every stored attribute is also filterable.
func (r *Repo) Put(ctx context.Context, col collection.Collection, doc Document) error {
	w, ok := r.store.(db.HashWriter)
	if !ok {
		return fmt.Errorf("store does not accept documents")
	}
	if doc.ID == "" {
		return fmt.Errorf("document id is required")
	}
	if len(doc.Vector) != r.vectorDim {
		return fmt.Errorf("document %s: vector has %d dimensions, want %d", doc.ID, len(doc.Vector), r.vectorDim)
	}

	fields := make(map[string]string, len(doc.Metadata)+2)
	fields[db.FieldContent] = doc.Content
	fields[db.FieldVector] = db.EncodeVector(doc.Vector)
	for k, v := range doc.Metadata {
		if strings.HasPrefix(k, "__") {
			return fmt.Errorf("document %s: metadata key %q is reserved", doc.ID, k)
		}
		if _, ok := col.FieldByName(k); !ok {
			return fmt.Errorf("document %s: metadata key %q is not declared in collection %s", doc.ID, k, col.Name())
		}
		fields[k] = formatValue(v)
	}
	if err := w.HSet(ctx, r.KeyPrefix(col.Name())+doc.ID, fields); err != nil {
		return fmt.Errorf("put document %s: %w", doc.ID, err)
	}
	return nil
}

func formatValue(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case bool:
		return strconv.FormatBool(t)
	case []string:
		return strings.Join(t, listSeparator)
	default:
		return fmt.Sprint(t)
	}
}
