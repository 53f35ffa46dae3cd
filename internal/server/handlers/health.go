package handlers

import (
	"net/http"

	"scribeq/pkg/api"
)

// Healthz handles GET /health. The server is healthy as long as it can
// answer; the worker state is reported alongside so clients can tell a
// live API from a live pipeline.
func (h *Handlers) Healthz(w http.ResponseWriter, r *http.Request) {
	h.respondJson(w, http.StatusOK, api.HealthResponse{
		Status: "healthy",
		Worker: string(h.worker.Status()),
	})
}

// Readyz handles GET /readyz and verifies the database connection.
func (h *Handlers) Readyz(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Ping(r.Context()); err != nil {
		h.logger.Error("readiness check failed", "error", err)
		h.httpError(w, "database not ready", http.StatusServiceUnavailable)
		return
	}
	h.respondJson(w, http.StatusOK, api.HealthResponse{
		Status: "ready",
		Worker: string(h.worker.Status()),
	})
}

// Doctor handles GET /doctor and probes the external tools the pipeline
// shells out to.
func (h *Handlers) Doctor(w http.ResponseWriter, r *http.Request) {
	if h.opts.CheckTools == nil {
		h.respondJson(w, http.StatusOK, api.DoctorResponse{Tools: []api.ToolCheckResponse{}})
		return
	}

	checks := h.opts.CheckTools()
	resp := api.DoctorResponse{Tools: make([]api.ToolCheckResponse, 0, len(checks))}
	for _, c := range checks {
		resp.Tools = append(resp.Tools, api.ToolCheckResponse{
			Name:     c.Name,
			Path:     c.Path,
			Found:    c.Found,
			Optional: c.Optional,
		})
	}
	h.respondJson(w, http.StatusOK, resp)
}
