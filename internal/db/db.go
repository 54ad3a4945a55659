package db

import (
	"context"
	"time"
)

// Store is the storage facade a retrieval tool runs against.
// Consumers depend on the narrow sub-interfaces.
type Store interface {
	Pinger
	IndexManager
	Searcher
	Close()
	WaitForReady(ctx context.Context, timeout time.Duration) error
}

// Pinger checks database connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// KVStore provides plain key-value operations. Backends that have no
// natural key-value surface do not implement it.
type KVStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// HashWriter stores a document as a flat field map.
type HashWriter interface {
	HSet(ctx context.Context, key string, fields map[string]string) error
}

// IndexManager opens or creates vector indexes.
type IndexManager interface {
	CreateIndex(ctx context.Context, def *IndexDefinition) error
	IndexExists(ctx context.Context, name string) (bool, error)
}

// Searcher runs nearest-neighbour queries.
type Searcher interface {
	SearchKNN(ctx context.Context, q *KNNQuery) (*SearchResult, error)
}

// Reserved hash fields shared by every driver.
const (
	FieldContent = "__content"
	FieldVector  = "__vector"
	FieldScore   = "__vector_score"
	// VectorAlias is the name the vector field is queried by.
	VectorAlias = "vector"
)
