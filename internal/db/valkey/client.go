package valkey

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/rueidis"

	"github.com/himanshuraimau/rag-movie-agent/internal/db"
)

var (
	_ db.Store      = (*Store)(nil)
	_ db.KVStore    = (*Store)(nil)
	_ db.HashWriter = (*Store)(nil)
)

// Driver names the server flavour behind a Store.
type Driver string

const (
	// DriverValkey is Valkey with the valkey-search module.
	DriverValkey Driver = "valkey"
	// DriverRedis is Redis 8+ with the built-in query engine.
	DriverRedis Driver = "redis"
)

// Config holds connection parameters.
type Config struct {
	Driver   Driver
	Addrs    []string
	Username string
	Password string
	DB       int
}

// Store implements db.Store over rueidis for Valkey and Redis.
type Store struct {
	client rueidis.Client
	driver Driver
}

// NewStore creates a store. The client speaks RESP2 because FT.SEARCH
// replies are parsed in their array form.
func NewStore(cfg Config) (*Store, error) {
	if len(cfg.Addrs) == 0 {
		return nil, fmt.Errorf("addrs is required")
	}
	driver := cfg.Driver
	if driver == "" {
		driver = DriverValkey
	}
	if driver != DriverValkey && driver != DriverRedis {
		return nil, fmt.Errorf("unsupported driver %q", driver)
	}

	client, err := rueidis.NewClient(rueidis.ClientOption{
		InitAddress:  cfg.Addrs,
		Username:     cfg.Username,
		Password:     cfg.Password,
		SelectDB:     cfg.DB,
		DisableCache: true,
		AlwaysRESP2:  true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}

	return &Store{client: client, driver: driver}, nil
}

// Driver reports the configured server flavour.
func (s *Store) Driver() Driver { return s.driver }

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.do(ctx, s.b().Ping().Build()).Error(); err != nil {
		return &db.Error{Op: db.OpPing, Err: err}
	}
	return nil
}

// Close shuts down the client.
func (s *Store) Close() {
	s.client.Close()
}

// WaitForReady polls Ping until the store responds or timeout expires.
func (s *Store) WaitForReady(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := s.Ping(ctx); err == nil {
		return nil
	}

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("timeout waiting for %s: %w", s.driver, ctx.Err())
		case <-ticker.C:
			if err := s.Ping(ctx); err == nil {
				return nil
			}
		}
	}
}

func (s *Store) do(ctx context.Context, cmd rueidis.Completed) rueidis.RedisResult {
	return s.client.Do(ctx, cmd)
}

func (s *Store) b() rueidis.Builder {
	return s.client.B()
}

// isServerErr reports whether err is a server error whose message contains
// one of the given fragments, ignoring case. Valkey-search and Redis word
// the same condition differently.
func isServerErr(err error, fragments ...string) bool {
	re, ok := rueidis.IsRedisErr(err)
	if !ok {
		return false
	}
	msg := strings.ToLower(re.Error())
	for _, f := range fragments {
		if strings.Contains(msg, strings.ToLower(f)) {
			return true
		}
	}
	return false
}
