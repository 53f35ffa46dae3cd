// Package worker contains the single-worker scheduling loop that drives
// jobs through the pipeline one at a time.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"scribeq/internal/faults"
	"scribeq/internal/pipeline"
	"scribeq/internal/store"

	"github.com/google/uuid"
)

// State is the worker-level state machine (distinct from job status).
type State string

const (
	StateIdle     State = "idle"
	StateRunning  State = "running"
	StateDraining State = "draining"
	StateStopped  State = "stopped"
)

// Config holds configuration for the worker loop.
type Config struct {
	// PollInterval is the idle wait between queue polls when no wake
	// signal arrives (default: 1s).
	PollInterval time.Duration
}

// Pipeline runs the stage sequence for one claimed job.
// *pipeline.Orchestrator is the production implementation.
type Pipeline interface {
	Run(ctx context.Context, job *store.Job, events chan<- pipeline.ProgressEvent) (*pipeline.Result, error)
}

// Worker claims queued jobs in FIFO order and executes them strictly one
// at a time. It is the only writer of job status and timestamps; the
// pipeline reports upward and never touches the store.
type Worker struct {
	store    store.JobStore
	pipeline Pipeline
	config   Config
	logger   *slog.Logger

	mu         sync.Mutex
	state      State
	currentJob uuid.UUID

	wake chan struct{}
	done chan struct{}
}

// New creates a worker. It does not start the loop; call Run.
func New(s store.JobStore, p Pipeline, config Config, logger *slog.Logger) *Worker {
	if config.PollInterval <= 0 {
		config.PollInterval = time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{
		store:    s,
		pipeline: p,
		config:   config,
		logger:   logger,
		state:    StateIdle,
		wake:     make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
}

// Run executes the worker loop until ctx is cancelled. On entry it
// recovers orphaned jobs exactly once, so work interrupted by an
// unclean shutdown is re-queued rather than stuck in PROCESSING.
// A storage failure is fatal and returned immediately; a pipeline
// failure only terminates its own job.
func (w *Worker) Run(ctx context.Context) error {
	defer func() {
		w.setState(StateStopped)
		close(w.done)
	}()

	recovered, err := w.store.RecoverOrphaned(ctx)
	if err != nil {
		return faults.Wrap(faults.KindStorageFailure, "orphan recovery failed", err)
	}
	if recovered > 0 {
		w.logger.Info("recovered orphaned jobs back to queued", "count", recovered)
	}

	w.logger.Info("worker starting", "poll_interval", w.config.PollInterval)

	// Process anything already waiting before the first poll tick.
	w.Notify()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("worker stopping")
			return ctx.Err()

		case <-time.After(w.config.PollInterval):
		case <-w.wake:
		}

		// Drain the queue before going back to the idle wait.
		for {
			if ctx.Err() != nil {
				break
			}

			job, err := w.store.ClaimNextQueued(ctx)
			if err != nil {
				return faults.Wrap(faults.KindStorageFailure, "failed to claim next job", err)
			}
			if job == nil {
				break
			}

			if err := w.process(ctx, job); err != nil {
				return err
			}
		}
	}
}

// Notify wakes the worker immediately instead of waiting out the poll
// interval. Safe to call from any goroutine; extra signals coalesce.
func (w *Worker) Notify() {
	select {
	case w.wake <- struct{}{}:
	default:
	}
}

// Done returns a channel closed when the worker has fully stopped.
func (w *Worker) Done() <-chan struct{} {
	return w.done
}

// Status reports the worker state for the health endpoint.
func (w *Worker) Status() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// CurrentJob returns the id of the in-flight job, if any.
func (w *Worker) CurrentJob() (uuid.UUID, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.currentJob, w.currentJob != uuid.Nil
}

type outcome struct {
	result *pipeline.Result
	err    error
}

// process runs one claimed job through the pipeline and persists the
// terminal state. The returned error is non-nil only for storage
// failures; pipeline errors are recorded on the job and absorbed.
func (w *Worker) process(ctx context.Context, job *store.Job) error {
	w.setRunning(job.ID)
	defer w.clearRunning()

	log := w.logger.With("job_id", job.ID.String())
	log.Info("processing job", "input_kind", string(job.Input.Kind))

	events := make(chan pipeline.ProgressEvent, 16)
	go func() {
		for e := range events {
			log.Debug("pipeline progress",
				"stage", e.Stage,
				"stage_fraction", e.Fraction,
				"overall", e.Overall())
		}
	}()

	// The stage context survives shutdown: a drain lets the in-flight
	// job finish, and cancellation only ever lands at stage boundaries.
	execCtx := context.WithoutCancel(ctx)

	resCh := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				resCh <- outcome{err: faults.Newf(faults.KindProcessingFailure, "pipeline panic: %v", r)}
			}
		}()
		res, err := w.pipeline.Run(execCtx, job, events)
		resCh <- outcome{result: res, err: err}
	}()

	var out outcome
	ctxDone := ctx.Done()
wait:
	for {
		select {
		case out = <-resCh:
			break wait
		case <-ctxDone:
			// Shutdown requested mid-job: keep waiting, claim nothing new.
			w.setState(StateDraining)
			log.Info("shutdown requested, draining in-flight job")
			ctxDone = nil
		}
	}
	close(events)

	now := time.Now().UTC()
	job.CompletedAt = &now

	if out.err != nil {
		job.Status = store.JobStatusError
		job.Error = &store.JobError{
			Kind:    string(faults.KindOf(out.err)),
			Message: faults.Message(out.err),
			Detail:  faults.Detail(out.err),
		}
		log.Error("job failed", "kind", job.Error.Kind, "error", out.err)
	} else {
		job.Status = store.JobStatusCompleted
		job.Result = foldResult(out.result)
		log.Info("job completed",
			"degraded", job.Result.Degraded,
			"language", job.Result.DetectedLanguage,
			"speakers", job.Result.SpeakerCount)
	}

	// The terminal write must land even when ctx is already cancelled.
	if err := w.store.Update(context.WithoutCancel(ctx), job); err != nil {
		return faults.Wrap(faults.KindStorageFailure,
			fmt.Sprintf("failed to persist terminal state of job %s", job.ID), err)
	}
	return nil
}

func foldResult(res *pipeline.Result) *store.JobResult {
	jr := &store.JobResult{
		Text:             res.Text,
		TranscriptPath:   res.TranscriptPath,
		DetectedLanguage: res.Language,
		SpeakerCount:     res.SpeakerCount,
		Degraded:         res.Degraded,
		Warning:          res.Warning,
	}
	for _, s := range res.Stages {
		jr.StageTimings = append(jr.StageTimings, store.StageTiming{
			Stage:   s.Stage,
			Seconds: s.Elapsed.Seconds(),
		})
	}
	return jr
}

func (w *Worker) setState(s State) {
	w.mu.Lock()
	w.state = s
	w.mu.Unlock()
}

func (w *Worker) setRunning(id uuid.UUID) {
	w.mu.Lock()
	w.state = StateRunning
	w.currentJob = id
	w.mu.Unlock()
}

func (w *Worker) clearRunning() {
	w.mu.Lock()
	if w.state == StateRunning {
		w.state = StateIdle
	}
	w.currentJob = uuid.Nil
	w.mu.Unlock()
}
