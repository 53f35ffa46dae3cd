// Package server wires the HTTP API for scribeq.
package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"scribeq/internal/server/handlers"
	"scribeq/internal/server/middleware"
)

// Server is the HTTP server for the scribeq API.
type Server struct {
	httpServer *http.Server
}

// New creates a new API server. metricsHandler serves /metrics and may
// be nil to disable the endpoint.
func New(addr string, h *handlers.Handlers, metricsHandler http.Handler, log *slog.Logger) *Server {
	// Submissions enqueue heavyweight work; reads are cheap.
	submitRL := middleware.SubmitRateLimit(5, 10)

	mux := http.NewServeMux()

	mux.Handle("POST /jobs", submitRL(http.HandlerFunc(h.SubmitJob)))
	mux.Handle("POST /jobs/upload", submitRL(http.HandlerFunc(h.UploadJob)))
	mux.HandleFunc("GET /jobs", h.ListJobs)
	mux.HandleFunc("GET /jobs/{id}", h.GetJob)
	mux.HandleFunc("GET /jobs/{id}/transcript", h.GetTranscript)

	mux.HandleFunc("GET /health", h.Healthz)
	mux.HandleFunc("GET /readyz", h.Readyz)
	mux.HandleFunc("GET /doctor", h.Doctor)

	if metricsHandler != nil {
		mux.Handle("GET /metrics", metricsHandler)
	}

	var handler http.Handler = mux
	handler = middleware.Logging(log)(handler)
	handler = middleware.RequestID(handler)

	return &Server{
		httpServer: &http.Server{
			Addr:        addr,
			Handler:     handler,
			ReadTimeout: 30 * time.Second,
			// Uploads can take a while on slow links; keep the write side
			// generous and rely on ReadTimeout for slowloris protection.
			WriteTimeout: 5 * time.Minute,
		},
	}
}

// Run starts the HTTP server. It blocks until the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	serverErr := make(chan error, 1)

	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		return s.Shutdown(shutdownCtx)
	}
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
