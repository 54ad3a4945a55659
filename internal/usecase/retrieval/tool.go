package retrieval

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/sashabaranov/go-openai/jsonschema"
	"go.uber.org/zap"

	"github.com/himanshuraimau/rag-movie-agent/internal/domain"
	"github.com/himanshuraimau/rag-movie-agent/internal/domain/collection"
	"github.com/himanshuraimau/rag-movie-agent/internal/domain/collection/field"
	"github.com/himanshuraimau/rag-movie-agent/internal/domain/search/filter"
	"github.com/himanshuraimau/rag-movie-agent/internal/domain/search/request"
	"github.com/himanshuraimau/rag-movie-agent/internal/domain/search/result"
	"github.com/himanshuraimau/rag-movie-agent/internal/metrics"
)

// DefaultLimit is the number of matches returned when none is configured.
const DefaultLimit = 3

// Default tool identity, as exposed to the orchestrating LLM.
const (
	DefaultName        = "ChromaVectorSearchTool"
	DefaultDescription = "A tool to search the Chroma database for relevant information on internal documents."
)

// Argument descriptions shown to the LLM in the function-calling schema.
const (
	queryDescription       = "The query to search and retrieve relevant information from the Chroma database."
	filterByDescription    = "Filter by properties. Pass only the properties, not the question."
	filterValueDescription = "Filter by value. Pass only the value, not the question."
)

// Metric status labels.
const (
	statusOK      = "ok"
	statusInvalid = "invalid"
	statusError   = "error"
)

// ToolConfig configures a retrieval tool.
type ToolConfig struct {
	Name        string
	Description string
	Collection  collection.Collection
	// Limit is the maximum number of matches returned. Non-positive means DefaultLimit.
	Limit int
}

// Tool answers semantic queries over one collection, optionally narrowed by
// a single metadata equality filter. It is immutable and safe for concurrent use.
type Tool struct {
	name        string
	description string
	col         collection.Collection
	limit       int
	index       Index
	embed       Embedder
	logger      *zap.Logger
}

// New creates a retrieval tool.
func New(cfg ToolConfig, index Index, embed Embedder, logger *zap.Logger) (*Tool, error) {
	if cfg.Collection.Name() == "" {
		return nil, fmt.Errorf("collection name is required: %w", domain.ErrConfiguration)
	}
	if index == nil {
		return nil, fmt.Errorf("vector index is required: %w", domain.ErrConfiguration)
	}
	if embed == nil {
		return nil, fmt.Errorf("embedding backend is required: %w", domain.ErrConfiguration)
	}
	name := cfg.Name
	if name == "" {
		name = DefaultName
	}
	description := cfg.Description
	if description == "" {
		description = DefaultDescription
	}
	limit := cfg.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tool{
		name:        name,
		description: description,
		col:         cfg.Collection,
		limit:       limit,
		index:       index,
		embed:       embed,
		logger:      logger.With(zap.String("tool", name)),
	}, nil
}

// Name returns the tool name.
func (t *Tool) Name() string { return t.name }

// Description returns the tool description.
func (t *Tool) Description() string { return t.description }

// Limit returns the maximum number of matches per search.
func (t *Tool) Limit() int { return t.limit }

// Collection returns the collection the tool searches.
func (t *Tool) Collection() collection.Collection { return t.col }

// Search returns at most Limit matches for req, most similar first.
func (t *Tool) Search(ctx context.Context, req request.Request) (result.Set, error) {
	start := time.Now()
	set, err := t.search(ctx, req)
	elapsed := time.Since(start)

	metrics.RetrievalDuration.WithLabelValues(t.name).Observe(elapsed.Seconds())
	if err != nil {
		status := statusError
		if errors.Is(err, domain.ErrValidation) {
			status = statusInvalid
		}
		metrics.RetrievalRequestsTotal.WithLabelValues(t.name, status).Inc()
		t.logger.Warn("Retrieval failed",
			zap.Bool("filtered", req.HasFilter()),
			zap.Duration("duration", elapsed),
			zap.Error(err),
		)
		return nil, err
	}
	metrics.RetrievalRequestsTotal.WithLabelValues(t.name, statusOK).Inc()
	metrics.RetrievalResults.WithLabelValues(t.name).Observe(float64(len(set)))
	t.logger.Debug("Retrieval completed",
		zap.Bool("filtered", req.HasFilter()),
		zap.Int("results", len(set)),
		zap.Duration("duration", elapsed),
	)
	return set, nil
}

func (t *Tool) search(ctx context.Context, req request.Request) (result.Set, error) {
	if req.Query() == "" {
		return nil, fmt.Errorf("query is required: %w", domain.ErrValidation)
	}

	filters, ok := t.translateFilter(req)
	if !ok {
		return result.Set{}, nil
	}

	emb, err := t.embed.Embed(ctx, req.Query())
	if err != nil {
		return nil, fmt.Errorf("embed query: %w: %w", domain.ErrRetrieval, err)
	}

	matches, err := t.index.KNN(ctx, t.col, emb.Embedding, t.limit, filters)
	if err != nil {
		return nil, fmt.Errorf("query index: %w: %w", domain.ErrRetrieval, err)
	}
	if len(matches) > t.limit {
		matches = matches[:t.limit]
	}
	return result.Set(matches), nil
}

// translateFilter turns the request filter into an index pre-filter. It
// reports false when no document can satisfy the filter: the field is not
// declared in the schema (the index stores and filters only declared
// attributes), or a numeric field got a non-numeric value.
func (t *Tool) translateFilter(req request.Request) (filter.Expression, bool) {
	name, value, ok := req.Filter()
	if !ok {
		return filter.Expression{}, true
	}
	f, declared := t.col.FieldByName(name)
	if !declared {
		return filter.Expression{}, false
	}

	var (
		cond filter.Condition
		err  error
	)
	switch f.FieldType() {
	case field.Numeric:
		n, perr := strconv.ParseFloat(value, 64)
		if perr != nil {
			return filter.Expression{}, false
		}
		cond, err = filter.NewEquals(name, n)
	default:
		cond, err = filter.NewMatch(name, value)
	}
	if err != nil {
		return filter.Expression{}, false
	}
	expr, err := filter.NewExpression(cond)
	if err != nil {
		return filter.Expression{}, false
	}
	return expr, true
}

// Run validates the inputs, searches and serializes the matches as JSON text.
func (t *Tool) Run(ctx context.Context, query, filterBy, filterValue string) (string, error) {
	req, err := request.New(query, filterBy, filterValue)
	if err != nil {
		metrics.RetrievalRequestsTotal.WithLabelValues(t.name, statusInvalid).Inc()
		return "", err
	}
	return t.run(ctx, req)
}

// Call decodes function-call arguments and runs the search.
func (t *Tool) Call(ctx context.Context, arguments string) (string, error) {
	req, err := request.FromToolArguments(arguments)
	if err != nil {
		metrics.RetrievalRequestsTotal.WithLabelValues(t.name, statusInvalid).Inc()
		return "", err
	}
	return t.run(ctx, req)
}

func (t *Tool) run(ctx context.Context, req request.Request) (string, error) {
	set, err := t.Search(ctx, req)
	if err != nil {
		return "", err
	}
	out, err := set.Marshal()
	if err != nil {
		return "", fmt.Errorf("serialize results: %w", err)
	}
	return out, nil
}

// Definition describes the tool for OpenAI-style function calling.
func (t *Tool) Definition() openai.Tool {
	params := jsonschema.Definition{
		Type: jsonschema.Object,
		Properties: map[string]jsonschema.Definition{
			"query":        {Type: jsonschema.String, Description: queryDescription},
			"filter_by":    {Type: jsonschema.String, Description: filterByDescription, Enum: t.filterableFields()},
			"filter_value": {Type: jsonschema.String, Description: filterValueDescription},
		},
		Required: []string{"query"},
	}
	return openai.Tool{
		Type: openai.ToolTypeFunction,
		Function: &openai.FunctionDefinition{
			Name:        t.name,
			Description: t.description,
			Parameters:  params,
		},
	}
}

func (t *Tool) filterableFields() []string {
	fields := t.col.Fields()
	if len(fields) == 0 {
		return nil
	}
	names := make([]string, 0, len(fields))
	for _, f := range fields {
		names = append(names, f.Name())
	}
	return names
}
