package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"scribeq/internal/faults"
	"scribeq/internal/store"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// StageOutcome records one stage's success flag and elapsed time.
type StageOutcome struct {
	Stage   string
	OK      bool
	Elapsed time.Duration
}

// Result is the immutable outcome of one pipeline run.
type Result struct {
	Text           string
	TranscriptPath string
	Language       string
	SpeakerCount   int
	Degraded       bool
	Warning        string
	Stages         []StageOutcome
}

// Orchestrator runs the stage sequence for exactly one job. It never
// touches the Job Store; outcomes flow back to the worker, which owns
// all job mutations.
type Orchestrator struct {
	Downloader   Downloader
	Transcriber  Transcriber
	Diarizer     Diarizer
	Renderer     Renderer
	ArtifactsDir string
	Logger       *slog.Logger
}

// Run executes download (remote inputs only), transcribe, diarize, and
// format for one job. Required-stage failures abort with a classified
// error; optional-stage failures degrade to a plain transcript and the
// job still completes. Progress events are sent to events without
// blocking; cancellation is honored at stage boundaries.
func (o *Orchestrator) Run(ctx context.Context, job *store.Job, events chan<- ProgressEvent) (*Result, error) {
	log := o.Logger.With("job_id", job.ID.String())
	tracer := otel.Tracer("pipeline")

	result := &Result{}
	jobDir := filepath.Join(o.ArtifactsDir, job.ID.String())
	if err := os.MkdirAll(jobDir, 0o755); err != nil {
		return nil, faults.Wrap(faults.KindProcessingFailure, "cannot create artifact directory", err)
	}

	// Stage: download (required when the input is remote).
	mediaPath := job.Input.Location
	if job.Input.Remote() {
		if err := checkCancelled(ctx); err != nil {
			return nil, err
		}

		emit(events, ProgressEvent{Stage: StageDownload, Fraction: 0})
		start := time.Now()
		downloaded, err := o.runDownload(ctx, tracer, job, events)
		elapsed := time.Since(start)
		result.Stages = append(result.Stages, StageOutcome{Stage: StageDownload, OK: err == nil, Elapsed: elapsed})
		if err != nil {
			return nil, err
		}
		emit(events, ProgressEvent{Stage: StageDownload, Fraction: 1})
		mediaPath = downloaded

		if !job.Options.KeepIntermediates {
			defer os.Remove(downloaded)
		}
		log.Info("download complete", "media_path", downloaded, "elapsed", elapsed)
	}

	// Stage: transcribe (always required).
	if err := checkCancelled(ctx); err != nil {
		return nil, err
	}

	emit(events, ProgressEvent{Stage: StageTranscribe, Fraction: 0})
	start := time.Now()
	transcript, err := o.runTranscribe(ctx, tracer, job, mediaPath, events)
	elapsed := time.Since(start)
	result.Stages = append(result.Stages, StageOutcome{Stage: StageTranscribe, OK: err == nil, Elapsed: elapsed})
	if err != nil {
		return nil, err
	}
	emit(events, ProgressEvent{Stage: StageTranscribe, Fraction: 1})
	result.Language = transcript.Language
	log.Info("transcription complete", "language", transcript.Language, "segments", len(transcript.Segments), "elapsed", elapsed)

	if job.Options.KeepIntermediates {
		o.saveIntermediate(jobDir, "raw_transcript.json", transcript.Segments, log)
	}

	// Stage: diarize (optional; failure degrades, never fails the job).
	var aligned []AlignedSegment
	diarized := false
	if job.Options.Diarize {
		if err := checkCancelled(ctx); err != nil {
			return nil, err
		}

		emit(events, ProgressEvent{Stage: StageDiarize, Fraction: 0})
		start = time.Now()
		turns, err := o.runDiarize(ctx, tracer, job, mediaPath)
		elapsed = time.Since(start)
		result.Stages = append(result.Stages, StageOutcome{Stage: StageDiarize, OK: err == nil, Elapsed: elapsed})
		if err != nil {
			result.Degraded = true
			result.Warning = fmt.Sprintf("%s: %s", faults.KindOf(err), faults.Message(err))
			log.Warn("diarization failed, falling back to plain transcript",
				"kind", string(faults.KindOf(err)), "error", err)
		} else {
			emit(events, ProgressEvent{Stage: StageDiarize, Fraction: 1})
			aligned = AlignSegments(transcript.Segments, turns)
			result.SpeakerCount = CountSpeakers(turns)
			diarized = true
			log.Info("diarization complete", "speakers", result.SpeakerCount, "elapsed", elapsed)

			if job.Options.KeepIntermediates {
				o.saveIntermediate(jobDir, "diarization.json", turns, log)
			}
		}
	}

	// Stage: format (optional; failure degrades to plain transcript).
	if err := checkCancelled(ctx); err != nil {
		return nil, err
	}

	emit(events, ProgressEvent{Stage: StageFormat, Fraction: 0})
	start = time.Now()
	text := ""
	ext := ".txt"
	formatOK := true
	if diarized {
		rendered, err := o.Renderer.Render(aligned, RenderMeta{
			SpeakerCount: result.SpeakerCount,
			Duration:     transcript.Duration,
		})
		if err != nil {
			formatOK = false
			result.Degraded = true
			result.SpeakerCount = 0
			if result.Warning == "" {
				result.Warning = fmt.Sprintf("%s: %s", faults.KindOf(err), faults.Message(err))
			}
			log.Warn("formatting failed, falling back to plain transcript", "error", err)
		} else {
			text = rendered
			ext = ".md"
		}
	}
	if text == "" {
		text = plainTranscript(transcript.Segments)
	}
	result.Stages = append(result.Stages, StageOutcome{Stage: StageFormat, OK: formatOK, Elapsed: time.Since(start)})

	outPath := filepath.Join(jobDir, "transcript"+ext)
	if err := os.WriteFile(outPath, []byte(text), 0o644); err != nil {
		return nil, faults.Wrap(faults.KindProcessingFailure, "cannot write transcript file", err)
	}
	emit(events, ProgressEvent{Stage: StageFormat, Fraction: 1})

	result.Text = text
	result.TranscriptPath = outPath
	return result, nil
}

func (o *Orchestrator) runDownload(ctx context.Context, tracer trace.Tracer, job *store.Job, events chan<- ProgressEvent) (string, error) {
	ctx, span := tracer.Start(ctx, "stage.download",
		trace.WithAttributes(attribute.String("job.id", job.ID.String())))
	defer span.End()

	path, err := o.Downloader.Fetch(ctx, job.Input.Location, func(f float64) {
		emit(events, ProgressEvent{Stage: StageDownload, Fraction: f})
	})
	if err != nil {
		span.RecordError(err)
	}
	return path, err
}

func (o *Orchestrator) runTranscribe(ctx context.Context, tracer trace.Tracer, job *store.Job, mediaPath string, events chan<- ProgressEvent) (*TranscribeOutput, error) {
	ctx, span := tracer.Start(ctx, "stage.transcribe",
		trace.WithAttributes(
			attribute.String("job.id", job.ID.String()),
			attribute.String("model_size", job.Options.ModelSize),
		))
	defer span.End()

	out, err := o.Transcriber.Transcribe(ctx, mediaPath, job.Options, func(f float64) {
		emit(events, ProgressEvent{Stage: StageTranscribe, Fraction: f})
	})
	if err != nil {
		span.RecordError(err)
	}
	return out, err
}

func (o *Orchestrator) runDiarize(ctx context.Context, tracer trace.Tracer, job *store.Job, mediaPath string) ([]SpeakerTurn, error) {
	ctx, span := tracer.Start(ctx, "stage.diarize",
		trace.WithAttributes(attribute.String("job.id", job.ID.String())))
	defer span.End()

	turns, err := o.Diarizer.Diarize(ctx, mediaPath, job.Options.MinSpeakers, job.Options.MaxSpeakers)
	if err != nil {
		span.RecordError(err)
	}
	return turns, err
}

// saveIntermediate writes a debug artifact under the job's directory.
// Failures are logged, never fatal: intermediates are best-effort.
func (o *Orchestrator) saveIntermediate(jobDir, name string, v interface{}, log *slog.Logger) {
	path := filepath.Join(jobDir, name)
	data, err := marshalIndent(v)
	if err == nil {
		err = os.WriteFile(path, data, 0o644)
	}
	if err != nil {
		log.Warn("failed to save intermediate artifact", "path", path, "error", err)
		return
	}
	log.Debug("saved intermediate artifact", "path", path)
}

// plainTranscript renders segments without speaker labels, used when
// diarization is disabled or has degraded.
func plainTranscript(segments []Segment) string {
	var b strings.Builder
	b.WriteString("# Transcript\n\n")
	b.WriteString("(Speaker detection unavailable)\n\n")
	for _, seg := range segments {
		b.WriteString(strings.TrimSpace(seg.Text))
		b.WriteString("\n")
	}
	return b.String()
}

func marshalIndent(v interface{}) ([]byte, error) {
	return json.MarshalIndent(v, "", "  ")
}

func checkCancelled(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return faults.Wrap(faults.KindProcessingFailure, "pipeline cancelled", err)
	}
	return nil
}

// emit sends without blocking; a slow or absent consumer never stalls
// the pipeline.
func emit(events chan<- ProgressEvent, e ProgressEvent) {
	if events == nil {
		return
	}
	select {
	case events <- e:
	default:
	}
}
