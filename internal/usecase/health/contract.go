package health

import "context"

// DBPinger checks the vector store a tool searches
// (Valkey, Redis, Elasticsearch or the in-memory store).
type DBPinger interface {
	Ping(ctx context.Context) error
}

// EmbeddingChecker probes the query embedding backend, e.g. that the
// Ollama model is pulled. Reported as the "embedding" component.
type EmbeddingChecker interface {
	HealthCheck(ctx context.Context) error
}
