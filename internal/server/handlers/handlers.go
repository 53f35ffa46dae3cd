// Package handlers contains HTTP handlers for the scribeq API.
package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"scribeq/internal/engine"
	"scribeq/internal/store"
	"scribeq/internal/worker"
	"scribeq/pkg/api"
)

// Store combines the persistence interfaces the API needs.
type Store interface {
	store.JobStore
	Ping(ctx context.Context) error
}

// WorkerControl is the slice of the worker the API talks to: waking it
// on submission and reporting its state on /health.
type WorkerControl interface {
	Notify()
	Status() worker.State
}

// Options tunes handler behavior.
type Options struct {
	// DefaultModelSize is applied when a submission omits model_size.
	DefaultModelSize string

	// UploadsDir is where the upload endpoint stages files.
	UploadsDir string

	// MaxUploadBytes caps multipart upload size.
	MaxUploadBytes int64

	// CheckTools probes external tool availability for /doctor.
	CheckTools func() []engine.ToolCheck
}

// Handlers holds all HTTP handlers and their dependencies.
type Handlers struct {
	store  Store
	worker WorkerControl
	opts   Options
	logger *slog.Logger
}

// New creates a new Handlers instance.
func New(s Store, w WorkerControl, opts Options, logger *slog.Logger) *Handlers {
	if opts.DefaultModelSize == "" {
		opts.DefaultModelSize = "base"
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 100 * 1024 * 1024
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{store: s, worker: w, opts: opts, logger: logger}
}

// A helper function to write standard JSON responses.
func (h *Handlers) respondJson(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		json.NewEncoder(w).Encode(payload)
	}
}

// A helper function to return consistent error messages.
func (h *Handlers) httpError(w http.ResponseWriter, message string, code int) {
	h.respondJson(w, code, api.ErrorResponse{
		Error: message,
		Code:  strconv.Itoa(code),
	})
}
