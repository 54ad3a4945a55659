// Package ragmovie exposes the movie catalog retrieval tool: a validated
// query plus an optional metadata filter, answered by k-NN search and
// serialized as JSON text for an LLM.
package ragmovie

import (
	"context"
	"fmt"
	"sync"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/himanshuraimau/rag-movie-agent/internal/db"
	"github.com/himanshuraimau/rag-movie-agent/internal/db/elastic"
	"github.com/himanshuraimau/rag-movie-agent/internal/db/memory"
	dbValkey "github.com/himanshuraimau/rag-movie-agent/internal/db/valkey"
	"github.com/himanshuraimau/rag-movie-agent/internal/domain"
	"github.com/himanshuraimau/rag-movie-agent/internal/domain/collection"
	"github.com/himanshuraimau/rag-movie-agent/internal/metrics"
	"github.com/himanshuraimau/rag-movie-agent/internal/repository/embcache"
	"github.com/himanshuraimau/rag-movie-agent/internal/repository/index"
	"github.com/himanshuraimau/rag-movie-agent/internal/transport/ollama"
	embeddinguc "github.com/himanshuraimau/rag-movie-agent/internal/usecase/embedding"
	"github.com/himanshuraimau/rag-movie-agent/internal/usecase/health"
	"github.com/himanshuraimau/rag-movie-agent/internal/usecase/retrieval"
)

const (
	driverValkey  = "valkey"
	driverRedis   = "redis"
	driverElastic = "elasticsearch"
	driverMemory  = "memory"
)

const defaultReadinessTimeout = 10 * time.Second

// SearchTool is a retrieval tool bound to one collection. It owns its store
// connection; call Close when done.
type SearchTool struct {
	tool      *retrieval.Tool
	store     db.Store
	embedder  domain.Embedder
	health    *health.Service
	closeOnce sync.Once
}

// Open connects the store, prepares the embedding backend and the
// collection index, and returns a ready tool.
func Open(ctx context.Context, opts ...Option) (*SearchTool, error) {
	cfg := &toolConfig{
		vectorDimensions: domain.DefaultEmbeddingDimensions,
		readinessTimeout: defaultReadinessTimeout,
	}
	for _, o := range opts {
		o.apply(cfg)
	}
	if cfg.logger == nil {
		cfg.logger = zap.NewNop()
	}

	col, err := buildCollection(cfg.collection, cfg.fields)
	if err != nil {
		return nil, fmt.Errorf("ragmovie: collection: %w", err)
	}

	store, err := createStore(cfg)
	if err != nil {
		return nil, err
	}
	if err := store.WaitForReady(ctx, cfg.readinessTimeout); err != nil {
		store.Close()
		return nil, fmt.Errorf("ragmovie: database not ready: %w: %w", domain.ErrConfiguration, err)
	}

	t, err := wireTool(ctx, store, col, cfg)
	if err != nil {
		store.Close()
		return nil, err
	}
	return t, nil
}

func createStore(cfg *toolConfig) (db.Store, error) {
	switch cfg.driver {
	case driverValkey, driverRedis:
		s, err := dbValkey.NewStore(dbValkey.Config{
			Driver:   dbValkey.Driver(cfg.driver),
			Addrs:    cfg.addrs,
			Username: cfg.username,
			Password: cfg.password,
		})
		if err != nil {
			return nil, fmt.Errorf("ragmovie: create %s store: %w: %w", cfg.driver, domain.ErrConfiguration, err)
		}
		return s, nil
	case driverElastic:
		s, err := elastic.NewStore(elastic.Config{
			Addrs:    cfg.addrs,
			Username: cfg.username,
			Password: cfg.password,
			APIKey:   cfg.apiKey,
		})
		if err != nil {
			return nil, fmt.Errorf("ragmovie: create elasticsearch store: %w: %w", domain.ErrConfiguration, err)
		}
		return s, nil
	case driverMemory:
		return memory.New(), nil
	case "":
		return nil, fmt.Errorf(
			"ragmovie: database required (use WithValkey, WithRedis, WithElasticsearch or WithMemoryStore): %w",
			domain.ErrConfiguration,
		)
	default:
		return nil, fmt.Errorf("ragmovie: unknown driver %q: %w", cfg.driver, domain.ErrConfiguration)
	}
}

func wireTool(ctx context.Context, store db.Store, col collection.Collection, cfg *toolConfig) (*SearchTool, error) {
	emb, err := buildEmbedder(store, cfg)
	if err != nil {
		return nil, err
	}
	if hc, ok := emb.(domain.HealthChecker); ok {
		if err := hc.HealthCheck(ctx); err != nil {
			return nil, fmt.Errorf("ragmovie: cannot initialise embedding backend: %w: %w", domain.ErrConfiguration, err)
		}
	}

	repo := index.New(store, cfg.keyPrefix, cfg.vectorDimensions).
		WithHNSW(index.HNSWConfig{M: cfg.hnswM, EFConstruct: cfg.hnswEFConstruct})
	if err := repo.Ensure(ctx, col); err != nil {
		return nil, fmt.Errorf("ragmovie: prepare index: %w: %w", domain.ErrConfiguration, err)
	}
	for _, doc := range cfg.seed {
		if err := repo.Put(ctx, col, doc); err != nil {
			return nil, fmt.Errorf("ragmovie: seed: %w: %w", domain.ErrConfiguration, err)
		}
	}

	tool, err := retrieval.New(retrieval.ToolConfig{
		Name:        cfg.name,
		Description: cfg.description,
		Collection:  col,
		Limit:       cfg.limit,
	}, repo, emb, cfg.logger)
	if err != nil {
		return nil, fmt.Errorf("ragmovie: %w", err)
	}

	var checker health.EmbeddingChecker
	if hc, ok := emb.(domain.HealthChecker); ok {
		checker = hc
	}

	cfg.logger.Info("Retrieval tool ready",
		zap.String("tool", tool.Name()),
		zap.String("collection", col.Name()),
		zap.String("driver", cfg.driver),
		zap.Int("limit", tool.Limit()),
	)

	return &SearchTool{
		tool:     tool,
		store:    store,
		embedder: emb,
		health:   health.New(store, checker),
	}, nil
}

// buildEmbedder assembles base -> cache -> instrumented -> instruction. The cache sees the
// instruction-prefixed text, so changing the instruction never serves stale vectors.
func buildEmbedder(store db.Store, cfg *toolConfig) (domain.Embedder, error) {
	emb := cfg.embedder
	provider, model := "custom", cfg.ollamaModel
	if emb == nil {
		o, err := ollama.NewEmbedder(&ollama.Config{
			BaseURL: cfg.ollamaBaseURL,
			Model:   cfg.ollamaModel,
			Timeout: cfg.embedTimeout,
			Logger:  cfg.logger,
		})
		if err != nil {
			return nil, fmt.Errorf("ragmovie: cannot initialise embedding backend: %w", err)
		}
		emb = o
		provider, model = ollama.ProviderName, o.Model()
	}

	if cfg.cache {
		kv, ok := store.(db.KVStore)
		if ok {
			emb = embcache.New(emb, kv, embcache.Options{
				KeyPrefix: cfg.keyPrefix,
				Model:     model,
				TTL:       cfg.cacheTTL,
			}, metrics.EmbeddingCacheTotal, cfg.logger)
		} else {
			cfg.logger.Warn("Embedding cache disabled: store has no key-value API", zap.String("driver", cfg.driver))
		}
	}

	emb = embeddinguc.NewInstrumentedEmbedder(emb, provider, model, cfg.logger)

	if cfg.queryInstruction != "" {
		emb = domain.NewInstructionEmbedder(emb, cfg.queryInstruction)
	}
	return emb, nil
}

// Name returns the tool name exposed to the LLM.
func (t *SearchTool) Name() string { return t.tool.Name() }

// Search returns at most the configured limit of matches, most similar first.
func (t *SearchTool) Search(ctx context.Context, req Request) (ResultSet, error) {
	return t.tool.Search(ctx, req) //nolint:wrapcheck // already wrapped by the tool
}

// Run validates the inputs, searches and returns the matches as JSON text.
// A filter is applied only when both filterBy and filterValue are set.
func (t *SearchTool) Run(ctx context.Context, query, filterBy, filterValue string) (string, error) {
	return t.tool.Run(ctx, query, filterBy, filterValue) //nolint:wrapcheck // already wrapped by the tool
}

// Call runs the tool from raw function-call arguments,
// e.g. {"query": "...", "filter_by": "type", "filter_value": "Movie"}.
func (t *SearchTool) Call(ctx context.Context, arguments string) (string, error) {
	return t.tool.Call(ctx, arguments) //nolint:wrapcheck // already wrapped by the tool
}

// Definition describes the tool for OpenAI-style function calling.
func (t *SearchTool) Definition() openai.Tool { return t.tool.Definition() }

// Ping checks database connectivity.
func (t *SearchTool) Ping(ctx context.Context) error {
	if err := t.store.Ping(ctx); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

// HealthCheck checks the store and, when supported, the embedding backend.
func (t *SearchTool) HealthCheck(ctx context.Context) HealthReport {
	return t.health.Check(ctx)
}

// Close releases the store connection. Safe to call more than once.
func (t *SearchTool) Close() {
	t.closeOnce.Do(func() {
		if t.store != nil {
			t.store.Close()
		}
	})
}
