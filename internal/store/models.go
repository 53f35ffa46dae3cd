// Package store contains the persistence layer for scribeq.
package store

import (
	"time"

	"github.com/google/uuid"
)

// JobStatus represents the lifecycle state of a transcription job.
// Flow: queued -> processing -> completed | error. The only reverse
// transition is processing -> queued during orphan recovery after an
// unclean shutdown.
type JobStatus string

const (
	JobStatusQueued     JobStatus = "queued"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusError      JobStatus = "error"
)

// InputKind tells the pipeline how to treat the input locator.
type InputKind string

const (
	// InputKindPath is a file already on the local filesystem.
	InputKindPath InputKind = "path"
	// InputKindUpload is a file staged by the upload endpoint.
	InputKindUpload InputKind = "upload"
	// InputKindURL is a remote source that needs the download stage.
	InputKindURL InputKind = "url"
)

// InputRef locates the source media for a job. It is resolved by the
// submission path before the job is queued and never changes afterwards.
type InputRef struct {
	Kind     InputKind `json:"kind"`
	Location string    `json:"location"`
}

// Remote reports whether the input needs the download stage.
func (r InputRef) Remote() bool {
	return r.Kind == InputKindURL
}

// JobOptions is the pipeline configuration snapshot taken at submission
// time. It is immutable once the job is queued so a job stays
// reproducible regardless of later config changes.
type JobOptions struct {
	ModelSize         string `json:"model_size"`
	Language          string `json:"language,omitempty"`
	Diarize           bool   `json:"diarize"`
	MinSpeakers       *int   `json:"min_speakers,omitempty"`
	MaxSpeakers       *int   `json:"max_speakers,omitempty"`
	KeepIntermediates bool   `json:"keep_intermediates,omitempty"`
}

// StageTiming records wall-clock time spent in one pipeline stage.
type StageTiming struct {
	Stage   string  `json:"stage"`
	Seconds float64 `json:"seconds"`
}

// JobResult holds the outcome of a completed job. Degraded is true when
// an optional stage failed and the pipeline fell back to a plain
// transcript; Warning then carries the recorded failure kind and message.
type JobResult struct {
	Text             string        `json:"text"`
	TranscriptPath   string        `json:"transcript_path,omitempty"`
	DetectedLanguage string        `json:"detected_language,omitempty"`
	SpeakerCount     int           `json:"speaker_count,omitempty"`
	Degraded         bool          `json:"degraded"`
	Warning          string        `json:"warning,omitempty"`
	StageTimings     []StageTiming `json:"stage_timings,omitempty"`
}

// JobError holds the terminal failure of a job. Detail carries the full
// lower-level cause chain and is only surfaced on the verbose channel.
type JobError struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}

// Job is one requested unit of transcription work.
// Result and Error are mutually exclusive and each is written exactly
// once, at the terminal transition.
type Job struct {
	ID          uuid.UUID
	Status      JobStatus
	Input       InputRef
	Options     JobOptions
	CreatedAt   time.Time
	StartedAt   *time.Time
	CompletedAt *time.Time
	Result      *JobResult
	Error       *JobError
}
