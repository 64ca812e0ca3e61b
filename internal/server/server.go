// Package server exposes synthesis over HTTP: a JSON API that returns WAV
// downloads, and an MCP endpoint for agent clients.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"

	"github.com/apresai/voicebox/internal/observability"
	"github.com/apresai/voicebox/internal/studio"
	"github.com/apresai/voicebox/internal/voices"
)

var tracer = otel.Tracer("voicebox/server")

const (
	// maxBodyBytes bounds JSON request bodies.
	maxBodyBytes    = 1 << 20
	shutdownTimeout = 10 * time.Second
)

// Config holds server settings.
type Config struct {
	Port     int
	Provider string
	Version  string
}

// Server serves the HTTP API and MCP tools over one mux.
type Server struct {
	cfg      Config
	gen      *studio.Generator
	catalog  *voices.Catalog
	mcp      *server.MCPServer
	handlers *Handlers
	log      *slog.Logger
}

// New creates and configures the server.
func New(cfg Config, gen *studio.Generator, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Version == "" {
		cfg.Version = "dev"
	}

	handlers := NewHandlers(gen, logger)
	mcpServer := server.NewMCPServer(
		"voicebox",
		cfg.Version,
		server.WithToolCapabilities(true),
	)

	tools := ToolDefs(gen.Catalog())
	mcpServer.AddTool(tools[0], handlers.HandleSynthesizeSpeech)
	mcpServer.AddTool(tools[1], handlers.HandleSynthesizeDialogue)
	mcpServer.AddTool(tools[2], handlers.HandleListVoices)

	return &Server{
		cfg:      cfg,
		gen:      gen,
		catalog:  gen.Catalog(),
		mcp:      mcpServer,
		handlers: handlers,
		log:      logger,
	}
}

// Handler returns the root handler with tracing applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/synthesize", s.handleSynthesize)
	mux.HandleFunc("GET /api/voices", s.handleVoices)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.Handle("GET /metrics", observability.MetricsHandler())
	mux.Handle("/mcp", server.NewStreamableHTTPServer(s.mcp,
		server.WithStateLess(true),
	))
	return otelhttp.NewHandler(s.logRequests(mux), "voicebox")
}

// ListenAndServe serves until ctx is cancelled, then drains in-flight
// requests.
func (s *Server) ListenAndServe(ctx context.Context) error {
	addr := fmt.Sprintf(":%d", s.cfg.Port)
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("Starting voicebox server", "addr", addr, "provider", s.cfg.Provider)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.log.Info("Shutdown signal received, draining requests")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	s.log.Info("Shutdown complete")
	return nil
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		if r.URL.Path == "/healthz" || r.URL.Path == "/metrics" {
			return
		}
		s.log.InfoContext(r.Context(), "HTTP request", "method", r.Method, "path", r.URL.Path,
			"status", rec.status, "elapsed", time.Since(start).Round(time.Millisecond))
	})
}
