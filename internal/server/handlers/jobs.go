package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"

	"scribeq/internal/store"
	"scribeq/pkg/api"
)

var validModelSizes = map[string]bool{
	"tiny":     true,
	"base":     true,
	"small":    true,
	"medium":   true,
	"large":    true,
	"large-v2": true,
	"large-v3": true,
}

// SubmitJob handles POST /jobs. It accepts a local path or a remote URL,
// snapshots the pipeline options, and queues a new job. Every submission
// creates a new job; resubmitting the same input is allowed.
func (h *Handlers) SubmitJob(w http.ResponseWriter, r *http.Request) {
	var req api.SubmitJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.httpError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	var input store.InputRef
	switch {
	case req.Path != "" && req.URL != "":
		h.httpError(w, "exactly one of path or url must be set", http.StatusBadRequest)
		return
	case req.Path != "":
		info, err := os.Stat(req.Path)
		if err != nil {
			h.httpError(w, fmt.Sprintf("input file not found: %s", req.Path), http.StatusBadRequest)
			return
		}
		if info.IsDir() {
			h.httpError(w, fmt.Sprintf("input is a directory: %s", req.Path), http.StatusBadRequest)
			return
		}
		input = store.InputRef{Kind: store.InputKindPath, Location: req.Path}
	case req.URL != "":
		input = store.InputRef{Kind: store.InputKindURL, Location: req.URL}
	default:
		h.httpError(w, "exactly one of path or url must be set", http.StatusBadRequest)
		return
	}

	opts, err := h.resolveOptions(req.Options)
	if err != nil {
		h.httpError(w, err.Error(), http.StatusBadRequest)
		return
	}

	job := &store.Job{
		ID:        uuid.New(),
		Status:    store.JobStatusQueued,
		Input:     input,
		Options:   opts,
		CreatedAt: time.Now().UTC(),
	}

	if err := h.store.Create(r.Context(), job); err != nil {
		h.logger.Error("failed to create job", "error", err)
		h.httpError(w, "failed to create job", http.StatusInternalServerError)
		return
	}
	h.worker.Notify()

	h.logger.Info("job queued", "job_id", job.ID.String(), "input_kind", string(input.Kind))
	h.respondJson(w, http.StatusAccepted, api.SubmitJobResponse{
		JobID:  job.ID.String(),
		Status: string(job.Status),
	})
}

// GetJob handles GET /jobs/{id}. The verbose query flag additionally
// surfaces the full error detail chain.
func (h *Handlers) GetJob(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		h.httpError(w, "invalid job id", http.StatusBadRequest)
		return
	}

	job, err := h.store.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			h.httpError(w, "job not found", http.StatusNotFound)
			return
		}
		h.logger.Error("failed to get job", "job_id", id.String(), "error", err)
		h.httpError(w, "failed to get job", http.StatusInternalServerError)
		return
	}

	verbose := r.URL.Query().Get("verbose") == "1"
	h.respondJson(w, http.StatusOK, jobToResponse(job, verbose))
}

// ListJobs handles GET /jobs with an optional status filter.
func (h *Handlers) ListJobs(w http.ResponseWriter, r *http.Request) {
	var status store.JobStatus
	if s := r.URL.Query().Get("status"); s != "" {
		status = store.JobStatus(s)
		switch status {
		case store.JobStatusQueued, store.JobStatusProcessing, store.JobStatusCompleted, store.JobStatusError:
		default:
			h.httpError(w, fmt.Sprintf("invalid status filter: %s", s), http.StatusBadRequest)
			return
		}
	}

	jobs, err := h.store.List(r.Context(), status)
	if err != nil {
		h.logger.Error("failed to list jobs", "error", err)
		h.httpError(w, "failed to list jobs", http.StatusInternalServerError)
		return
	}

	resp := api.ListJobsResponse{Jobs: make([]api.JobResponse, 0, len(jobs))}
	for _, job := range jobs {
		resp.Jobs = append(resp.Jobs, jobToResponse(job, false))
	}
	h.respondJson(w, http.StatusOK, resp)
}

// GetTranscript handles GET /jobs/{id}/transcript and serves the final
// transcript text of a completed job.
func (h *Handlers) GetTranscript(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		h.httpError(w, "invalid job id", http.StatusBadRequest)
		return
	}

	job, err := h.store.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			h.httpError(w, "job not found", http.StatusNotFound)
			return
		}
		h.logger.Error("failed to get job", "job_id", id.String(), "error", err)
		h.httpError(w, "failed to get job", http.StatusInternalServerError)
		return
	}

	if job.Status != store.JobStatusCompleted || job.Result == nil {
		h.httpError(w, fmt.Sprintf("job is %s, transcript not available", job.Status), http.StatusConflict)
		return
	}

	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, job.Result.Text)
}

// resolveOptions validates submitted options and fills in defaults,
// producing the immutable snapshot stored with the job.
func (h *Handlers) resolveOptions(in api.JobOptions) (store.JobOptions, error) {
	opts := store.JobOptions{
		ModelSize:         in.ModelSize,
		Language:          in.Language,
		Diarize:           in.Diarize,
		MinSpeakers:       in.MinSpeakers,
		MaxSpeakers:       in.MaxSpeakers,
		KeepIntermediates: in.KeepIntermediates,
	}
	if opts.ModelSize == "" {
		opts.ModelSize = h.opts.DefaultModelSize
	}
	if !validModelSizes[opts.ModelSize] {
		return store.JobOptions{}, fmt.Errorf("invalid model_size: %s", opts.ModelSize)
	}
	if opts.MinSpeakers != nil && *opts.MinSpeakers < 1 {
		return store.JobOptions{}, fmt.Errorf("min_speakers must be at least 1")
	}
	if opts.MaxSpeakers != nil && *opts.MaxSpeakers < 1 {
		return store.JobOptions{}, fmt.Errorf("max_speakers must be at least 1")
	}
	if opts.MinSpeakers != nil && opts.MaxSpeakers != nil && *opts.MinSpeakers > *opts.MaxSpeakers {
		return store.JobOptions{}, fmt.Errorf("min_speakers cannot exceed max_speakers")
	}
	if (opts.MinSpeakers != nil || opts.MaxSpeakers != nil) && !opts.Diarize {
		return store.JobOptions{}, fmt.Errorf("speaker bounds require diarize")
	}
	return opts, nil
}

func jobToResponse(job *store.Job, verbose bool) api.JobResponse {
	resp := api.JobResponse{
		ID:            job.ID.String(),
		Status:        string(job.Status),
		InputKind:     string(job.Input.Kind),
		InputLocation: job.Input.Location,
		Options: api.JobOptions{
			ModelSize:         job.Options.ModelSize,
			Language:          job.Options.Language,
			Diarize:           job.Options.Diarize,
			MinSpeakers:       job.Options.MinSpeakers,
			MaxSpeakers:       job.Options.MaxSpeakers,
			KeepIntermediates: job.Options.KeepIntermediates,
		},
		CreatedAt:   job.CreatedAt,
		StartedAt:   job.StartedAt,
		CompletedAt: job.CompletedAt,
	}

	if job.Result != nil {
		res := &api.JobResult{
			Text:             job.Result.Text,
			TranscriptPath:   job.Result.TranscriptPath,
			DetectedLanguage: job.Result.DetectedLanguage,
			SpeakerCount:     job.Result.SpeakerCount,
			Degraded:         job.Result.Degraded,
			Warning:          job.Result.Warning,
		}
		for _, t := range job.Result.StageTimings {
			res.StageTimings = append(res.StageTimings, api.StageTiming{Stage: t.Stage, Seconds: t.Seconds})
		}
		resp.Result = res
	}

	if job.Error != nil {
		resp.Error = &api.JobError{
			Kind:    job.Error.Kind,
			Message: job.Error.Message,
		}
		if verbose {
			resp.Error.Detail = job.Error.Detail
		}
	}

	return resp
}
