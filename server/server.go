// Package server exposes the pipe runner over HTTP: POST /v1/pipes/run
// executes a pipe (buffered JSON or SSE streaming) and GET /health reports
// liveness. This is the local dev surface; it terminates no auth of its own
// and expects vendor keys per request or from the environment.
package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/langpipe/langpipe"
)

// KeyResolver returns the vendor API key to use when a request carries none.
type KeyResolver func(vendor string) (string, error)

// Server wraps the HTTP server and the pipe-running dependencies.
type Server struct {
	registry  langpipe.Registry
	retrieval *langpipe.RetrievalEngine
	resolve   KeyResolver
	maxCalls  int
	logger    *slog.Logger
	tracer    langpipe.Tracer
	http      *http.Server
}

// Option configures a Server.
type Option func(*Server)

// WithRetrieval attaches a memory retrieval engine to every run.
func WithRetrieval(e *langpipe.RetrievalEngine) Option {
	return func(s *Server) { s.retrieval = e }
}

// WithKeyResolver supplies vendor API keys for requests that omit llmApiKey.
func WithKeyResolver(r KeyResolver) Option {
	return func(s *Server) { s.resolve = r }
}

// WithMaxCalls bounds the tool-calling loop per run.
func WithMaxCalls(n int) Option {
	return func(s *Server) { s.maxCalls = n }
}

// WithLogger sets the logger. Default discards.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithTracer attaches a tracer to every run.
func WithTracer(t langpipe.Tracer) Option {
	return func(s *Server) { s.tracer = t }
}

// New creates a Server listening on addr once Start is called.
func New(addr string, registry langpipe.Registry, opts ...Option) *Server {
	s := &Server{
		registry: registry,
		logger:   langpipe.NopLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Post("/v1/pipes/run", s.handleRun)
	r.Get("/health", s.handleHealth)

	s.http = &http.Server{
		Addr:        addr,
		Handler:     r,
		ReadTimeout: 30 * time.Second,
		IdleTimeout: 120 * time.Second,
		// No WriteTimeout: streaming responses stay open for the duration
		// of the model's generation.
	}
	return s
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	s.logger.Info("server listening", "addr", s.http.Addr)
	return s.http.ListenAndServe()
}

// Shutdown gracefully shuts the server down.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte("{}"))
}
