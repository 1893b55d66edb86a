// Package server exposes the question-answering agent as MCP tools over streamable HTTP
// or stdio.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/malbeclabs/hybridqa/pkg/agent"
	"github.com/malbeclabs/hybridqa/pkg/metrics"
)

// Answerer answers a single question.
type Answerer interface {
	Run(ctx context.Context, req agent.Request) agent.Record
}

type Server struct {
	log  *slog.Logger
	cfg  Config
	mcp  *mcp.Server
	http *http.Server
}

func New(cfg Config) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	mcpServer := mcp.NewServer(&mcp.Implementation{
		Name:    "hybridqa",
		Version: cfg.Version,
	}, nil)

	s := &Server{
		log: cfg.Logger,
		cfg: cfg,
		mcp: mcpServer,
	}

	if err := RegisterAnswerTool(s.log, mcpServer, cfg.Agent, "answer_question", `
		PURPOSE:
		Answer a business question about the Northwind dataset, combining SQL over the orders
		database with the product policy, marketing calendar, KPI and catalog documents.

		USAGE:
		- Set format_hint to the expected answer type: int, float, str, or a structure such as list[{product:str, revenue:float}].
		- The result carries the final answer, the SQL that was run (empty for document-only questions),
		  a heuristic confidence, a short explanation and the tables and document chunks cited.
	`); err != nil {
		return nil, fmt.Errorf("failed to create answer tool: %w", err)
	}
	if err := RegisterSearchTool(s.log, mcpServer, cfg.Index, "search_documents", `
		Rank document chunks against a free-text query with BM25. Returns at most k chunks, best first.
	`); err != nil {
		return nil, fmt.Errorf("failed to create search tool: %w", err)
	}
	if err := RegisterSchemaTool(s.log, mcpServer, cfg.Store, "describe_schema", `
		Describe the columns and types of the Northwind tables. Multi-word table names must be double-quoted in SQL.
	`); err != nil {
		return nil, fmt.Errorf("failed to create schema tool: %w", err)
	}

	mux := http.NewServeMux()
	handler := mcp.NewStreamableHTTPHandler(func(_ *http.Request) *mcp.Server {
		return s.mcp
	}, &mcp.StreamableHTTPOptions{
		Stateless: true,
	})

	metricsHandler := s.metricsMiddleware(handler)
	if len(cfg.AllowedTokens) > 0 {
		mux.Handle("/", s.authMiddleware(metricsHandler))
	} else {
		mux.Handle("/", metricsHandler)
	}
	mux.Handle("/healthz", s.metricsMiddleware(http.HandlerFunc(s.healthzHandler)))

	s.http = &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           mux,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		// Answers can take several model round trips.
		ReadTimeout:    60 * time.Second,
		WriteTimeout:   10 * time.Minute,
		IdleTimeout:    120 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	return s, nil
}

// Run serves streamable HTTP until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	serveErrCh := make(chan error, 1)
	go func() {
		if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.log.Error("server: http server error", "error", err)
			serveErrCh <- fmt.Errorf("failed to listen and serve: %w", err)
		}
	}()

	s.log.Info("server: mcp streamable http listening", "listenAddr", s.cfg.ListenAddr)

	select {
	case <-ctx.Done():
		s.log.Info("server: stopping", "reason", ctx.Err(), "listenAddr", s.cfg.ListenAddr)
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer shutdownCancel()
		if err := s.http.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("failed to shutdown server: %w", err)
		}
		s.log.Info("server: HTTP server shutdown complete")
		return nil
	case err := <-serveErrCh:
		return err
	}
}

// RunStdio serves a single MCP session over stdin/stdout.
func (s *Server) RunStdio(ctx context.Context) error {
	s.log.Info("server: mcp stdio session started")
	if err := s.mcp.Run(ctx, &mcp.StdioTransport{}); err != nil && ctx.Err() == nil {
		return fmt.Errorf("stdio session failed: %w", err)
	}
	return nil
}

func (s *Server) healthzHandler(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("ok\n")); err != nil {
		s.log.Error("failed to write healthz response", "error", err)
	}
}

// authMiddleware wraps an HTTP handler with Bearer token authentication
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reason, ok := s.authorize(r.Header.Get("Authorization"))
		if !ok {
			metrics.AuthFailuresTotal.WithLabelValues(reason).Inc()
			w.Header().Set("WWW-Authenticate", `Bearer`)
			w.WriteHeader(http.StatusUnauthorized)
			if _, err := w.Write([]byte("unauthorized: " + strings.ReplaceAll(reason, "_", " ") + "\n")); err != nil {
				s.log.Error("failed to write auth error response", "error", err)
			}
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) authorize(header string) (reason string, ok bool) {
	if header == "" {
		return "missing_header", false
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return "invalid_format", false
	}
	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "empty_token", false
	}
	if !slices.Contains(s.cfg.AllowedTokens, token) {
		return "invalid_token", false
	}
	return "", true
}

// metricsMiddleware wraps an HTTP handler with metrics collection
func (s *Server) metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		startTime := time.Now()
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		metrics.HTTPRequestsTotal.WithLabelValues(r.Method, r.URL.Path, fmt.Sprintf("%d", wrapped.statusCode)).Inc()
		metrics.HTTPRequestDuration.Observe(time.Since(startTime).Seconds())
	})
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
