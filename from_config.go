package ragmovie

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/himanshuraimau/rag-movie-agent/internal/config"
	"github.com/himanshuraimau/rag-movie-agent/internal/domain"
	openaiemb "github.com/himanshuraimau/rag-movie-agent/internal/transport/openai"
)

// FromConfig opens one tool per entry in cfg.Tools. On failure every tool
// opened so far is closed.
func FromConfig(ctx context.Context, cfg *config.Config, logger *zap.Logger) ([]*SearchTool, error) {
	return fromConfig(ctx, cfg, logger, Open)
}

type opener func(ctx context.Context, opts ...Option) (*SearchTool, error)

func fromConfig(ctx context.Context, cfg *config.Config, logger *zap.Logger, open opener) ([]*SearchTool, error) {
	tools := make([]*SearchTool, 0, len(cfg.Tools))
	for _, tc := range cfg.Tools {
		opts, err := ConfigOptions(cfg, tc, logger)
		if err != nil {
			closeAll(tools)
			return nil, err
		}
		t, err := open(ctx, opts...)
		if err != nil {
			closeAll(tools)
			return nil, fmt.Errorf("tool %s: %w", tc.Name, err)
		}
		tools = append(tools, t)
	}
	return tools, nil
}

// ConfigOptions translates the service configuration for one tool into Open options.
func ConfigOptions(cfg *config.Config, tc config.ToolConfig, logger *zap.Logger) ([]Option, error) {
	opts := []Option{
		WithName(tc.Name, tc.Description),
		WithCollection(tc.Collection, configFields(tc.Fields)...),
		WithLimit(tc.Limit),
		WithKeyPrefix(cfg.Storage.KeyPrefix),
		WithVectorDimensions(cfg.Embedding.Dimensions),
		WithHNSW(cfg.Index.HNSWM, cfg.Index.HNSWEFConstruct),
		WithReadinessTimeout(time.Duration(cfg.Database.ReadinessTimeout) * time.Second),
		WithQueryInstruction(cfg.Embedding.QueryInstruction),
		WithLogger(logger),
	}

	switch cfg.Database.Driver {
	case config.DriverValkey, config.DriverRedis:
		addr := ""
		if len(cfg.Database.Addrs) > 0 {
			addr = cfg.Database.Addrs[0]
		}
		if cfg.Database.Driver == config.DriverRedis {
			opts = append(opts, WithRedis(addr, cfg.Database.Password))
		} else {
			opts = append(opts, WithValkey(addr, cfg.Database.Password))
		}
		if cfg.Database.Username != "" {
			opts = append(opts, WithCredentials(cfg.Database.Username, cfg.Database.Password))
		}
	case config.DriverElasticsearch:
		opts = append(opts, WithElasticsearch(cfg.Database.Addrs, cfg.Database.APIKey))
		if cfg.Database.Username != "" {
			opts = append(opts, WithCredentials(cfg.Database.Username, cfg.Database.Password))
		}
	case config.DriverMemory:
		opts = append(opts, WithMemoryStore())
	default:
		return nil, fmt.Errorf("unknown database driver %q: %w", cfg.Database.Driver, domain.ErrConfiguration)
	}

	switch cfg.Embedding.Provider {
	case config.ProviderOllama:
		opts = append(opts,
			WithOllama(cfg.Embedding.BaseURL, cfg.Embedding.Model),
			WithEmbeddingTimeout(time.Duration(cfg.Embedding.TimeoutSec)*time.Second),
		)
	case config.ProviderOpenAI:
		opts = append(opts, WithEmbedder(openaiemb.NewEmbedder(&openaiemb.Config{
			APIKey:     cfg.Embedding.APIKey,
			BaseURL:    cfg.Embedding.BaseURL,
			Model:      cfg.Embedding.Model,
			Dimensions: cfg.Embedding.Dimensions,
			Logger:     logger,
		})))
	default:
		return nil, fmt.Errorf("unknown embedding provider %q: %w", cfg.Embedding.Provider, domain.ErrConfiguration)
	}

	if cfg.Embedding.Cache.Enabled {
		opts = append(opts, WithEmbeddingCache(time.Duration(cfg.Embedding.Cache.TTLSec)*time.Second))
	}
	return opts, nil
}

func configFields(fields []config.FieldConfig) []Field {
	out := make([]Field, 0, len(fields))
	for _, f := range fields {
		out = append(out, Field{Name: f.Name, Type: FieldType(f.Type)})
	}
	return out
}

func closeAll(tools []*SearchTool) {
	for _, t := range tools {
		t.Close()
	}
}
