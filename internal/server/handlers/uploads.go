package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"scribeq/internal/store"
	"scribeq/pkg/api"
)

// allowedUploadExtensions are the media container formats the pipeline
// accepts; ffmpeg handles decoding, so this is a sanity filter rather
// than a codec check.
var allowedUploadExtensions = map[string]bool{
	".mp3":  true,
	".wav":  true,
	".m4a":  true,
	".mp4":  true,
	".ogg":  true,
	".flac": true,
	".aac":  true,
	".wma":  true,
	".webm": true,
}

// UploadJob handles POST /jobs/upload. It stages the multipart file
// under the uploads directory with a UUID-prefixed name and queues a
// job pointing at the staged copy. Options arrive as form fields.
func (h *Handlers) UploadJob(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.opts.MaxUploadBytes)

	file, header, err := r.FormFile("file")
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			h.httpError(w, fmt.Sprintf("upload exceeds %d bytes", h.opts.MaxUploadBytes), http.StatusRequestEntityTooLarge)
			return
		}
		h.httpError(w, "missing file field", http.StatusBadRequest)
		return
	}
	defer file.Close()

	ext := strings.ToLower(filepath.Ext(header.Filename))
	if !allowedUploadExtensions[ext] {
		h.httpError(w, fmt.Sprintf("unsupported file type: %s", ext), http.StatusBadRequest)
		return
	}

	opts, err := h.resolveOptions(optionsFromForm(r))
	if err != nil {
		h.httpError(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := os.MkdirAll(h.opts.UploadsDir, 0o755); err != nil {
		h.logger.Error("failed to create uploads dir", "error", err)
		h.httpError(w, "failed to stage upload", http.StatusInternalServerError)
		return
	}

	id := uuid.New()
	staged := filepath.Join(h.opts.UploadsDir, id.String()+ext)
	dst, err := os.Create(staged)
	if err != nil {
		h.logger.Error("failed to create staged file", "error", err)
		h.httpError(w, "failed to stage upload", http.StatusInternalServerError)
		return
	}
	if _, err := io.Copy(dst, file); err != nil {
		dst.Close()
		os.Remove(staged)
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			h.httpError(w, fmt.Sprintf("upload exceeds %d bytes", h.opts.MaxUploadBytes), http.StatusRequestEntityTooLarge)
			return
		}
		h.logger.Error("failed to write staged file", "error", err)
		h.httpError(w, "failed to stage upload", http.StatusInternalServerError)
		return
	}
	if err := dst.Close(); err != nil {
		os.Remove(staged)
		h.logger.Error("failed to close staged file", "error", err)
		h.httpError(w, "failed to stage upload", http.StatusInternalServerError)
		return
	}

	job := &store.Job{
		ID:        id,
		Status:    store.JobStatusQueued,
		Input:     store.InputRef{Kind: store.InputKindUpload, Location: staged},
		Options:   opts,
		CreatedAt: time.Now().UTC(),
	}
	if err := h.store.Create(r.Context(), job); err != nil {
		os.Remove(staged)
		h.logger.Error("failed to create job", "error", err)
		h.httpError(w, "failed to create job", http.StatusInternalServerError)
		return
	}
	h.worker.Notify()

	h.logger.Info("upload queued",
		"job_id", job.ID.String(),
		"filename", header.Filename,
		"size", header.Size)
	h.respondJson(w, http.StatusAccepted, api.SubmitJobResponse{
		JobID:  job.ID.String(),
		Status: string(job.Status),
	})
}

// optionsFromForm reads pipeline options out of multipart form fields.
func optionsFromForm(r *http.Request) api.JobOptions {
	opts := api.JobOptions{
		ModelSize: r.FormValue("model_size"),
		Language:  r.FormValue("language"),
	}
	opts.Diarize, _ = strconv.ParseBool(r.FormValue("diarize"))
	opts.KeepIntermediates, _ = strconv.ParseBool(r.FormValue("keep_intermediates"))
	if v := r.FormValue("min_speakers"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			opts.MinSpeakers = &n
		}
	}
	if v := r.FormValue("max_speakers"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			opts.MaxSpeakers = &n
		}
	}
	return opts
}
