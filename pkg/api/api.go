// Package api contains shared JSON request/response structs.
// This package is shared between the CLI and the server.
package api

import "time"

// JobOptions mirrors the pipeline options accepted at submission.
type JobOptions struct {
	ModelSize         string `json:"model_size,omitempty"`
	Language          string `json:"language,omitempty"`
	Diarize           bool   `json:"diarize,omitempty"`
	MinSpeakers       *int   `json:"min_speakers,omitempty"`
	MaxSpeakers       *int   `json:"max_speakers,omitempty"`
	KeepIntermediates bool   `json:"keep_intermediates,omitempty"`
}

// SubmitJobRequest is the request body for submitting a new job.
// Exactly one of Path or URL must be set; uploads go through the
// multipart endpoint instead.
type SubmitJobRequest struct {
	Path    string     `json:"path,omitempty"`
	URL     string     `json:"url,omitempty"`
	Options JobOptions `json:"options,omitempty"`
}

// SubmitJobResponse is the response body after submitting a job.
type SubmitJobResponse struct {
	JobID  string `json:"job_id"`
	Status string `json:"status"`
}

// StageTiming reports wall-clock seconds spent in one pipeline stage.
type StageTiming struct {
	Stage   string  `json:"stage"`
	Seconds float64 `json:"seconds"`
}

// JobResult is the outcome of a completed job.
type JobResult struct {
	Text             string        `json:"text,omitempty"`
	TranscriptPath   string        `json:"transcript_path,omitempty"`
	DetectedLanguage string        `json:"detected_language,omitempty"`
	SpeakerCount     int           `json:"speaker_count,omitempty"`
	Degraded         bool          `json:"degraded"`
	Warning          string        `json:"warning,omitempty"`
	StageTimings     []StageTiming `json:"stage_timings,omitempty"`
}

// JobError is the terminal failure of a job. Detail is only populated
// when the verbose query flag is set.
type JobError struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}

// JobResponse is a snapshot of one job.
type JobResponse struct {
	ID            string     `json:"id"`
	Status        string     `json:"status"`
	InputKind     string     `json:"input_kind"`
	InputLocation string     `json:"input_location"`
	Options       JobOptions `json:"options"`
	CreatedAt     time.Time  `json:"created_at"`
	StartedAt     *time.Time `json:"started_at,omitempty"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
	Result        *JobResult `json:"result,omitempty"`
	Error         *JobError  `json:"error,omitempty"`
}

// ListJobsResponse is the response body for listing jobs.
type ListJobsResponse struct {
	Jobs []JobResponse `json:"jobs"`
}

// HealthResponse reports server and worker liveness.
type HealthResponse struct {
	Status string `json:"status"`
	Worker string `json:"worker"`
}

// ToolCheckResponse is one external tool probe result.
type ToolCheckResponse struct {
	Name     string `json:"name"`
	Path     string `json:"path,omitempty"`
	Found    bool   `json:"found"`
	Optional bool   `json:"optional"`
}

// DoctorResponse lists external tool availability.
type DoctorResponse struct {
	Tools []ToolCheckResponse `json:"tools"`
}

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}
