// Package memory is an in-process db.Store with exact cosine k-NN.
// It backs local runs without a search server and the tool's tests.
package memory

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/himanshuraimau/rag-movie-agent/internal/db"
	"github.com/himanshuraimau/rag-movie-agent/internal/domain/search/filter"
)

var (
	_ db.Store      = (*Store)(nil)
	_ db.KVStore    = (*Store)(nil)
	_ db.HashWriter = (*Store)(nil)
)

var errClosed = errors.New("memory store is closed")

type kvEntry struct {
	value   []byte
	expires time.Time
}

// Store keeps hashes, plain values and index definitions in maps.
type Store struct {
	mu      sync.RWMutex
	hashes  map[string]map[string]string
	kv      map[string]kvEntry
	indexes map[string]*db.IndexDefinition
	closed  bool
	now     func() time.Time
}

// New creates an empty store.
func New() *Store {
	return &Store{
		hashes:  make(map[string]map[string]string),
		kv:      make(map[string]kvEntry),
		indexes: make(map[string]*db.IndexDefinition),
		now:     time.Now,
	}
}

// Ping fails only after Close.
func (s *Store) Ping(_ context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return &db.Error{Op: db.OpPing, Err: errClosed}
	}
	return nil
}

// WaitForReady returns immediately unless the store is closed.
func (s *Store) WaitForReady(ctx context.Context, _ time.Duration) error {
	return s.Ping(ctx)
}

// Close marks the store closed; later calls fail.
func (s *Store) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
}

// HSet merges fields into the hash at key.
func (s *Store) HSet(_ context.Context, key string, fields map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return &db.Error{Op: db.OpHSet, Err: errClosed}
	}
	h, ok := s.hashes[key]
	if !ok {
		h = make(map[string]string, len(fields))
		s.hashes[key] = h
	}
	for k, v := range fields {
		h[k] = v
	}
	return nil
}

// Get returns the value at key or db.ErrKeyNotFound.
func (s *Store) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, &db.Error{Op: db.OpGet, Err: errClosed}
	}
	e, ok := s.kv[key]
	if !ok || (!e.expires.IsZero() && !s.now().Before(e.expires)) {
		return nil, db.ErrKeyNotFound
	}
	return append([]byte(nil), e.value...), nil
}

// Set stores value at key without expiry.
func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	return s.SetWithTTL(ctx, key, value, 0)
}

// SetWithTTL stores value at key; ttl <= 0 means no expiry.
func (s *Store) SetWithTTL(_ context.Context, key string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return &db.Error{Op: db.OpSet, Err: errClosed}
	}
	e := kvEntry{value: append([]byte(nil), value...)}
	if ttl > 0 {
		e.expires = s.now().Add(ttl)
	}
	s.kv[key] = e
	return nil
}

// CreateIndex registers an index definition.
func (s *Store) CreateIndex(_ context.Context, def *db.IndexDefinition) error {
	if def == nil {
		return fmt.Errorf("index definition is required")
	}
	if err := def.Validate(); err != nil {
		return err
	}
	if _, ok := def.VectorField(); !ok {
		return &db.Error{Op: db.OpCreateIndex, Err: fmt.Errorf("index %s has no vector field", def.Name)}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return &db.Error{Op: db.OpCreateIndex, Err: errClosed}
	}
	if _, ok := s.indexes[def.Name]; ok {
		return db.ErrIndexExists
	}
	cp := *def
	cp.Prefixes = append([]string(nil), def.Prefixes...)
	cp.Fields = append([]db.IndexField(nil), def.Fields...)
	s.indexes[def.Name] = &cp
	return nil
}

// IndexExists reports whether an index definition is registered.
func (s *Store) IndexExists(_ context.Context, name string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return false, &db.Error{Op: db.OpIndexInfo, Err: errClosed}
	}
	_, ok := s.indexes[name]
	return ok, nil
}

type scored struct {
	key   string
	score float64
}

// SearchKNN scans every hash under the index prefixes and returns the k
// nearest by cosine similarity. Ties keep key order.
func (s *Store) SearchKNN(_ context.Context, q *db.KNNQuery) (*db.SearchResult, error) {
	if q.IndexName == "" {
		return nil, fmt.Errorf("index name is required")
	}
	if len(q.Vector) == 0 {
		return nil, fmt.Errorf("vector is required")
	}
	if q.K <= 0 {
		return nil, fmt.Errorf("k must be positive")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, &db.Error{Op: db.OpSearch, Err: errClosed}
	}

	def, ok := s.indexes[q.IndexName]
	if !ok {
		return nil, &db.Error{Op: db.OpSearch, Err: db.ErrIndexNotFound}
	}
	vf, ok := def.FieldByQueryName(q.Field())
	if !ok || vf.Type != db.IndexFieldVector {
		return nil, &db.Error{Op: db.OpSearch, Err: fmt.Errorf("unknown vector field %q", q.Field())}
	}
	if len(q.Vector) != vf.VectorDim {
		return nil, &db.Error{Op: db.OpSearch, Err: fmt.Errorf("query vector has %d dimensions, index expects %d", len(q.Vector), vf.VectorDim)}
	}

	keys := s.keysFor(def)
	hits := make([]scored, 0, len(keys))
	for _, key := range keys {
		h := s.hashes[key]
		vec, err := db.DecodeVector(h[vf.Name])
		if err != nil || len(vec) != vf.VectorDim {
			continue
		}
		if !matches(def, h, q.Filters) {
			continue
		}
		hits = append(hits, scored{key: key, score: cosine(q.Vector, vec)})
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].score > hits[j].score })

	total := len(hits)
	if len(hits) > q.K {
		hits = hits[:q.K]
	}
	entries := make([]db.SearchEntry, 0, len(hits))
	for _, hit := range hits {
		fields := make(map[string]string, len(s.hashes[hit.key]))
		for k, v := range s.hashes[hit.key] {
			if k == vf.Name {
				continue
			}
			fields[k] = v
		}
		entries = append(entries, db.SearchEntry{Key: hit.key, Score: hit.score, Fields: fields})
	}
	return &db.SearchResult{Total: total, Entries: entries}, nil
}

// keysFor returns the sorted keys covered by the index prefixes.
func (s *Store) keysFor(def *db.IndexDefinition) []string {
	keys := make([]string, 0, len(s.hashes))
	for key := range s.hashes {
		if hasAnyPrefix(key, def.Prefixes) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys
}

func hasAnyPrefix(key string, prefixes []string) bool {
	if len(prefixes) == 0 {
		return true
	}
	for _, p := range prefixes {
		if strings.HasPrefix(key, p) {
			return true
		}
	}
	return false
}

// matches evaluates the conjunction: tag conditions compare the whole
// stored value, numeric values are parsed as floats.
// Conditions on attributes the index does not declare never match.
func matches(def *db.IndexDefinition, h map[string]string, expr filter.Expression) bool {
	for _, c := range expr.Must() {
		f, ok := def.FieldByQueryName(c.Key())
		if !ok {
			return false
		}
		raw, ok := h[f.Name]
		if !ok {
			return false
		}
		switch f.Type {
		case db.IndexFieldTag:
			if !c.IsMatch() || !tagMatches(f, raw, c.Match()) {
				return false
			}
		case db.IndexFieldNumeric:
			if !c.IsRange() || !c.Accepts(strings.TrimSpace(raw)) {
				return false
			}
		default:
			return false
		}
	}
	return true
}

// tagMatches compares the whole stored value. The separator is not
// applied: every repository index uses one that never occurs in values.
func tagMatches(f db.IndexField, raw, want string) bool {
	if f.TagCaseSensitive {
		return raw == want
	}
	return strings.EqualFold(raw, want)
}

func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
