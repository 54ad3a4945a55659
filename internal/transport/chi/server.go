package chi

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sort"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/himanshuraimau/rag-movie-agent/internal/domain"
	logpkg "github.com/himanshuraimau/rag-movie-agent/internal/logger"
	"github.com/himanshuraimau/rag-movie-agent/internal/metrics"
	healthuc "github.com/himanshuraimau/rag-movie-agent/internal/usecase/health"
)

// maxArgumentsBytes bounds a tool-call arguments body.
const maxArgumentsBytes = 64 << 10

// Tool is a callable retrieval tool.
type Tool interface {
	Name() string
	Definition() openai.Tool
	Call(ctx context.Context, arguments string) (string, error)
}

// HealthChecker reports a tool's backend health.
type HealthChecker interface {
	HealthCheck(ctx context.Context) healthuc.Report
}

// Server exposes retrieval tools over HTTP.
type Server struct {
	tools         map[string]Tool
	names         []string
	checkers      map[string]HealthChecker
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP server for tools. Tools that also implement
// HealthChecker contribute to GET /health.
func NewServer(tools []Tool, logger *zap.Logger) (*Server, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		tools:    make(map[string]Tool, len(tools)),
		checkers: make(map[string]HealthChecker, len(tools)),
		logger:   logger,
	}
	for _, t := range tools {
		name := t.Name()
		if _, dup := s.tools[name]; dup {
			return nil, fmt.Errorf("duplicate tool %q: %w", name, domain.ErrConfiguration)
		}
		s.tools[name] = t
		s.names = append(s.names, name)
		if hc, ok := t.(HealthChecker); ok {
			s.checkers[name] = hc
		}
	}
	sort.Strings(s.names)
	s.errorHandlers = []errorHandler{
		validationHandler,
		sentinelHandler(domain.ErrRetrieval, http.StatusBadGateway, CodeRetrievalFailed),
	}
	return s, nil
}

// Handler builds the router with the full middleware stack.
func (s *Server) Handler(apiKeys []string) http.Handler {
	r := chi.NewRouter()
	r.Use(jsonRecoverer(s.logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(s.logger))
	r.Use(BearerAuthMiddleware(apiKeys))
	r.Use(metrics.Middleware())

	r.Get("/tools", s.ListTools)
	r.Get("/tools/{name}", s.GetTool)
	r.Post("/tools/{name}/invoke", s.InvokeTool)
	r.Get("/health", s.HealthCheck)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, CodeBadRequest, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, CodeBadRequest, "method not allowed")
	})
	return r
}

// ListTools handles GET /tools.
func (s *Server) ListTools(w http.ResponseWriter, _ *http.Request) {
	defs := make([]openai.Tool, 0, len(s.names))
	for _, name := range s.names {
		defs = append(defs, s.tools[name].Definition())
	}
	writeJSON(w, http.StatusOK, defs)
}

// GetTool handles GET /tools/{name}.
func (s *Server) GetTool(w http.ResponseWriter, r *http.Request) {
	t, ok := s.lookup(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, t.Definition())
}

// InvokeTool handles POST /tools/{name}/invoke. The body is the function-call
// arguments object; the response is the serialized result set.
func (s *Server) InvokeTool(w http.ResponseWriter, r *http.Request) {
	t, ok := s.lookup(w, r)
	if !ok {
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxArgumentsBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "invalid request body")
		return
	}

	out, err := t.Call(r.Context(), string(body))
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, out)
}

// healthResponse is the JSON body of GET /health.
type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: string(healthuc.Healthy), Checks: map[string]string{}}
	rank := map[healthuc.Status]int{healthuc.Healthy: 0, healthuc.Degraded: 1, healthuc.Unhealthy: 2}
	worst := healthuc.Healthy

	for _, name := range s.names {
		hc, ok := s.checkers[name]
		if !ok {
			continue
		}
		report := hc.HealthCheck(r.Context())
		for component, result := range report.Checks {
			key := component
			if len(s.checkers) > 1 {
				key = name + "." + component
			}
			resp.Checks[key] = string(result)
		}
		if rank[report.Status] > rank[worst] {
			worst = report.Status
		}
	}
	resp.Status = string(worst)

	status := http.StatusOK
	if worst != healthuc.Healthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}

func (s *Server) lookup(w http.ResponseWriter, r *http.Request) (Tool, bool) {
	name := chi.URLParam(r, "name")
	t, ok := s.tools[name]
	if !ok {
		writeError(w, http.StatusNotFound, CodeToolNotFound, fmt.Sprintf("tool %q not found", name))
		return nil, false
	}
	return t, true
}

// requestLogger prefers the request-scoped logger; FromContext yields a
// no-op logger outside the middleware stack.
func (s *Server) requestLogger(r *http.Request) *zap.Logger {
	if l := logpkg.FromContext(r.Context()); l.Core().Enabled(zap.ErrorLevel) {
		return l
	}
	return s.logger
}
