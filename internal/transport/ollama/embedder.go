package ollama

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/ollama/ollama/api"
	"go.uber.org/zap"

	"github.com/himanshuraimau/rag-movie-agent/internal/domain"
	"github.com/himanshuraimau/rag-movie-agent/internal/metrics"
)

// ProviderName labels metrics for this embedder.
const ProviderName = "ollama"

// DefaultBaseURL is where a local Ollama server listens.
const DefaultBaseURL = "http://localhost:11434"

const defaultTimeout = 30 * time.Second

// Embedder embeds queries through a native Ollama server.
type Embedder struct {
	client *api.Client
	model  string
	logger *zap.Logger
}

var (
	_ domain.Embedder      = (*Embedder)(nil)
	_ domain.HealthChecker = (*Embedder)(nil)
)

// Config holds the Ollama connection settings.
type Config struct {
	BaseURL string
	Model   string
	// Timeout bounds a single HTTP round trip. Zero means 30s.
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     *zap.Logger
}

// NewEmbedder creates an Ollama embedding provider.
func NewEmbedder(cfg *Config) (*Embedder, error) {
	raw := cfg.BaseURL
	if raw == "" {
		raw = DefaultBaseURL
	}
	base, err := url.Parse(raw)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("ollama base url %q: %w", raw, domain.ErrConfiguration)
	}

	model := cfg.Model
	if model == "" {
		model = domain.DefaultEmbeddingModel
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Embedder{
		client: api.NewClient(base, httpClient),
		model:  model,
		logger: logger,
	}, nil
}

// Model returns the configured embedding model name.
func (e *Embedder) Model() string { return e.model }

// Embed implements domain.Embedder.
func (e *Embedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	start := time.Now()
	resp, err := e.client.Embed(ctx, &api.EmbedRequest{
		Model: e.model,
		Input: text,
	})
	elapsed := time.Since(start).Seconds()

	if err != nil {
		metrics.RecordEmbedding(ProviderName, e.model, "api_error", elapsed, 0, 0)
		e.logger.Debug("Embedding request failed", zap.String("model", e.model), zap.Error(err))
		return domain.EmbeddingResult{}, parseAPIError(err)
	}
	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0]) == 0 {
		metrics.RecordEmbedding(ProviderName, e.model, "empty_response", elapsed, 0, 0)
		return domain.EmbeddingResult{}, fmt.Errorf("empty embedding response: %w", domain.ErrEmbeddingProviderError)
	}

	tokens := resp.PromptEvalCount
	metrics.RecordEmbedding(ProviderName, e.model, "", elapsed, tokens, tokens)
	return domain.EmbeddingResult{
		Embedding:    resp.Embeddings[0],
		PromptTokens: tokens,
		TotalTokens:  tokens,
	}, nil
}

// HealthCheck verifies the server is up and the model has been pulled.
func (e *Embedder) HealthCheck(ctx context.Context) error {
	if _, err := e.client.Show(ctx, &api.ShowRequest{Model: e.model}); err != nil {
		return fmt.Errorf("show model %s: %w", e.model, parseAPIError(err))
	}
	return nil
}

func parseAPIError(err error) error {
	wrap := domain.ErrEmbeddingProviderError

	var statusErr api.StatusError
	if errors.As(err, &statusErr) {
		detail := statusErr.ErrorMessage
		if detail == "" {
			detail = statusErr.Status
		}
		return fmt.Errorf("ollama API error %d: %s: %w", statusErr.StatusCode, detail, wrap)
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("embedding request: %w: %w", err, wrap)
	}
	return fmt.Errorf("embedding request failed: %v: %w", err, wrap)
}
