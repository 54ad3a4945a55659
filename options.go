package ragmovie

import (
	"time"

	"go.uber.org/zap"
)

// Option configures Open.
type Option interface {
	apply(*toolConfig)
}

// optionFunc adapts a function to the Option interface.
type optionFunc func(*toolConfig)

func (f optionFunc) apply(c *toolConfig) { f(c) }

type toolConfig struct {
	driver           string // valkey, redis, elasticsearch, memory
	addrs            []string
	username         string
	password         string
	apiKey           string
	seed             []Document
	readinessTimeout time.Duration

	embedder         Embedder
	ollamaBaseURL    string
	ollamaModel      string
	embedTimeout     time.Duration
	queryInstruction string
	cache            bool
	cacheTTL         time.Duration

	name        string
	description string
	collection  string
	fields      []Field
	limit       int

	keyPrefix        string
	vectorDimensions int
	hnswM            int
	hnswEFConstruct  int

	logger *zap.Logger
}

// WithValkey stores vectors in Valkey with the valkey-search module.
func WithValkey(addr, password string) Option {
	return optionFunc(func(c *toolConfig) {
		c.driver = driverValkey
		c.addrs = []string{addr}
		c.password = password
	})
}

// WithRedis stores vectors in Redis 8+ using its built-in query engine.
func WithRedis(addr, password string) Option {
	return optionFunc(func(c *toolConfig) {
		c.driver = driverRedis
		c.addrs = []string{addr}
		c.password = password
	})
}

// WithCredentials sets the ACL username (Valkey/Redis) or basic-auth user
// (Elasticsearch) for the configured store.
func WithCredentials(username, password string) Option {
	return optionFunc(func(c *toolConfig) {
		c.username = username
		c.password = password
	})
}

// WithElasticsearch stores vectors in an Elasticsearch cluster.
// apiKey may be empty when basic auth or no auth is used.
func WithElasticsearch(addrs []string, apiKey string) Option {
	return optionFunc(func(c *toolConfig) {
		c.driver = driverElastic
		c.addrs = addrs
		c.apiKey = apiKey
	})
}

// WithMemoryStore keeps the collection in process, seeded with docs.
// Useful for tests and local experiments.
func WithMemoryStore(docs ...Document) Option {
	return optionFunc(func(c *toolConfig) {
		c.driver = driverMemory
		c.addrs = nil
		c.seed = append(c.seed, docs...)
	})
}

// WithReadinessTimeout bounds how long Open waits for the store. Default: 10s.
func WithReadinessTimeout(d time.Duration) Option {
	return optionFunc(func(c *toolConfig) {
		c.readinessTimeout = d
	})
}

// WithEmbedder injects the query embedding backend.
// Without it Open connects to a local Ollama server running nomic-embed-text.
func WithEmbedder(e Embedder) Option {
	return optionFunc(func(c *toolConfig) {
		c.embedder = e
	})
}

// WithOllama points the default embedder at another Ollama server or model.
func WithOllama(baseURL, model string) Option {
	return optionFunc(func(c *toolConfig) {
		c.ollamaBaseURL = baseURL
		c.ollamaModel = model
	})
}

// WithEmbeddingTimeout bounds one request to the default Ollama embedder. Default: 30s.
func WithEmbeddingTimeout(d time.Duration) Option {
	return optionFunc(func(c *toolConfig) {
		c.embedTimeout = d
	})
}

// WithQueryInstruction prepends a task prefix to every query before
// embedding, e.g. "search_query: " for nomic models.
func WithQueryInstruction(instruction string) Option {
	return optionFunc(func(c *toolConfig) {
		c.queryInstruction = instruction
	})
}

// WithEmbeddingCache caches query embeddings in the store. ttl of zero
// keeps entries until evicted. Ignored for stores without a key-value API.
func WithEmbeddingCache(ttl time.Duration) Option {
	return optionFunc(func(c *toolConfig) {
		c.cache = true
		c.cacheTTL = ttl
	})
}

// WithCollection selects the collection to search and declares its
// filterable metadata fields.
func WithCollection(name string, fields ...Field) Option {
	return optionFunc(func(c *toolConfig) {
		c.collection = name
		c.fields = append([]Field(nil), fields...)
	})
}

// WithName overrides the tool name exposed to the LLM.
func WithName(name, description string) Option {
	return optionFunc(func(c *toolConfig) {
		c.name = name
		c.description = description
	})
}

// WithLimit caps the number of matches per search. Default: 3.
func WithLimit(n int) Option {
	return optionFunc(func(c *toolConfig) {
		c.limit = n
	})
}

// WithKeyPrefix namespaces every key and index. Default: "ragmovie:".
func WithKeyPrefix(prefix string) Option {
	return optionFunc(func(c *toolConfig) {
		c.keyPrefix = prefix
	})
}

// WithVectorDimensions sets the embedding size. Default: 768 (nomic-embed-text).
func WithVectorDimensions(dim int) Option {
	return optionFunc(func(c *toolConfig) {
		c.vectorDimensions = dim
	})
}

// WithHNSW configures HNSW index parameters (M and EF construction).
// Defaults: M=16, EFConstruct=200.
func WithHNSW(m, efConstruct int) Option {
	return optionFunc(func(c *toolConfig) {
		c.hnswM = m
		c.hnswEFConstruct = efConstruct
	})
}

// WithLogger sets the zap logger. Default: no-op.
func WithLogger(l *zap.Logger) Option {
	return optionFunc(func(c *toolConfig) {
		c.logger = l
	})
}
