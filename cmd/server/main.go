// Package main is the entry point for the scribeq server.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"scribeq/internal/config"
	"scribeq/internal/engine"
	"scribeq/internal/logger"
	"scribeq/internal/observability"
	"scribeq/internal/pipeline"
	"scribeq/internal/server"
	"scribeq/internal/server/handlers"
	"scribeq/internal/store"
	"scribeq/internal/store/sqlite"
	"scribeq/internal/worker"
)

func main() {
	configPath := flag.String("config", "", "Path to config file (default: scribeq.yaml in current directory)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	slogger := logger.New(cfg.LogLevel)

	for _, dir := range []string{cfg.DataDir, cfg.ArtifactsDir(), cfg.UploadsDir(), cfg.DownloadsDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			log.Fatalf("Failed to create data directory %s: %v", dir, err)
		}
	}

	ctx := context.Background()
	st, err := sqlite.Open(ctx, cfg.DatabasePath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer st.Close()

	// Tracing
	shutdownTracer, err := observability.InitTracer(ctx, "scribeq-server", cfg.OTELEndpoint)
	if err != nil {
		log.Fatalf("Failed to init tracing: %v", err)
	}
	defer func() {
		if err := shutdownTracer(context.Background()); err != nil {
			log.Printf("Failed to shutdown tracer: %v", err)
		}
	}()

	// Metrics
	metricsHandler, shutdownMetrics, err := observability.InitMetrics()
	if err != nil {
		log.Fatalf("Failed to init metrics: %v", err)
	}
	defer func() {
		if err := shutdownMetrics(context.Background()); err != nil {
			log.Printf("Failed to shutdown metrics: %v", err)
		}
	}()

	// Use an Observable Gauge (Async) that queries the DB only when scraped.
	meter := otel.Meter("scribeq-server")
	_, err = meter.Int64ObservableGauge("scribeq.queue.depth",
		metric.WithDescription("Current number of queued jobs"),
		metric.WithInt64Callback(func(ctx context.Context, obs metric.Int64Observer) error {
			count, err := st.CountByStatus(ctx, store.JobStatusQueued)
			if err != nil {
				slogger.Warn("failed to count queue depth", "error", err)
				return nil // Don't crash metrics scrape on DB error
			}
			obs.Observe(count)
			return nil
		}),
	)
	if err != nil {
		slogger.Warn("failed to register queue depth metric", "error", err)
	}

	orch := &pipeline.Orchestrator{
		Downloader:   engine.NewYtdlpDownloader(cfg.YtdlpPath, cfg.DownloadsDir()),
		Transcriber:  engine.NewWhisperTranscriber(cfg.FFmpegPath, cfg.WhisperPath, cfg.ModelDir),
		Diarizer:     engine.NewHelperDiarizer(cfg.DiarizePath, cfg.HFToken),
		Renderer:     engine.NewMarkdownRenderer(),
		ArtifactsDir: cfg.ArtifactsDir(),
		Logger:       slogger,
	}

	wrk := worker.New(st, orch, worker.Config{PollInterval: cfg.PollInterval}, slogger)

	workerCtx, stopWorker := context.WithCancel(ctx)
	workerErr := make(chan error, 1)
	go func() {
		workerErr <- wrk.Run(workerCtx)
	}()

	h := handlers.New(st, wrk, handlers.Options{
		DefaultModelSize: cfg.ModelSize,
		UploadsDir:       cfg.UploadsDir(),
		MaxUploadBytes:   cfg.MaxUploadBytes,
		CheckTools: func() []engine.ToolCheck {
			return engine.CheckTools(cfg.FFmpegPath, cfg.WhisperPath, cfg.YtdlpPath, cfg.DiarizePath)
		},
	}, slogger)

	addr := fmt.Sprintf(":%d", cfg.HTTPPort)
	srv := server.New(addr, h, metricsHandler, slogger)

	srvErr := make(chan error, 1)
	go func() {
		slogger.Info("scribeq server starting", "addr", addr, "database", cfg.DatabasePath)
		srvErr <- srv.Run(ctx)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		slogger.Info("shutdown signal received")
	case err := <-srvErr:
		slogger.Error("server stopped unexpectedly", "error", err)
	case err := <-workerErr:
		// Storage failures are the only way the worker exits on its own.
		slogger.Error("worker stopped unexpectedly", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slogger.Error("server forced to shutdown", "error", err)
	}

	// Stop claiming new jobs, then wait for the in-flight one to drain.
	stopWorker()
	select {
	case <-wrk.Done():
		slogger.Info("worker drained")
	case <-time.After(30 * time.Minute):
		slogger.Error("worker drain timed out")
	}
	slogger.Info("server exited")
}
