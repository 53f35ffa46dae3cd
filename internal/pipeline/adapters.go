// Package pipeline runs the ordered stage sequence for one job:
// download (remote inputs only) -> transcribe -> diarize -> format.
// The stage engines are external collaborators behind narrow interfaces;
// the orchestrator owns sequencing, the required-vs-optional failure
// policy, and progress reporting.
package pipeline

import (
	"context"

	"scribeq/internal/store"
)

// Segment is one timed chunk of transcribed text.
type Segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// SpeakerTurn is one span of speech attributed to a single speaker.
type SpeakerTurn struct {
	Start   float64 `json:"start"`
	End     float64 `json:"end"`
	Speaker string  `json:"speaker"`
}

// TranscribeOutput is the result of the transcription stage.
type TranscribeOutput struct {
	Text     string
	Language string
	Duration float64
	Segments []Segment
}

// RenderMeta carries transcript-level metadata into the format stage.
type RenderMeta struct {
	SpeakerCount int
	Duration     float64
}

// Downloader fetches a remote source to a local media file.
// Implementations classify failures (invalid URL, unavailable source,
// rate limiting, network errors, missing tools) via faults kinds.
type Downloader interface {
	Fetch(ctx context.Context, url string, progress func(float64)) (string, error)
}

// Transcriber converts a local media file into text and timed segments.
type Transcriber interface {
	Transcribe(ctx context.Context, mediaPath string, opts store.JobOptions, progress func(float64)) (*TranscribeOutput, error)
}

// Diarizer detects speaker turns in a local media file.
// minSpeakers/maxSpeakers are hints; nil means no constraint.
type Diarizer interface {
	Diarize(ctx context.Context, mediaPath string, minSpeakers, maxSpeakers *int) ([]SpeakerTurn, error)
}

// Renderer formats aligned segments into the final transcript text.
type Renderer interface {
	Render(segments []AlignedSegment, meta RenderMeta) (string, error)
}
