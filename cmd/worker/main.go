package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kirillkom/askmydocs/internal/bootstrap"
	"github.com/kirillkom/askmydocs/internal/config"
	"github.com/kirillkom/askmydocs/internal/observability/logging"
	"github.com/kirillkom/askmydocs/internal/observability/metrics"
)

func main() {
	cfg := config.Load()
	logger := logging.NewJSONLogger("worker", cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	workerMetrics := metrics.NewWorkerMetrics("worker")
	app, err := bootstrap.New(ctx, cfg, bootstrap.Options{QueueLagObserver: workerMetrics.ObserveQueueLag})
	if err != nil {
		slog.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	if cfg.IndexWatchEnabled {
		go func() {
			if err := app.Index.Watch(ctx, 0); err != nil {
				slog.Error("index_watch_failed", "error", err)
			}
		}()
	}

	metricsServer := &http.Server{
		Addr:              ":" + cfg.WorkerMetricsPort,
		Handler:           workerMetrics.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("worker_metrics_server_failed", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	slog.Info("worker_subscribed", "subject", cfg.NATSSubject, "index_rows", app.IndexRows())
	err = app.Queue.SubscribeUploadReceived(ctx, func(handlerCtx context.Context, uploadID string) error {
		processCtx, cancel := context.WithTimeout(handlerCtx, 5*time.Minute)
		defer cancel()

		start := time.Now()
		workerMetrics.StartUpload()
		err := app.ProcessUC.ProcessByID(processCtx, uploadID)
		workerMetrics.FinishUpload(time.Since(start), err)
		if err != nil {
			return err
		}

		upload, err := app.Repo.GetByID(processCtx, uploadID)
		if err == nil {
			workerMetrics.AddIndexedChunks(upload.ChunkCount)
		}
		slog.Info("upload_indexed",
			"upload_id", uploadID,
			"index_rows", app.IndexRows(),
			"duration_ms", time.Since(start).Milliseconds(),
		)
		return nil
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("worker_subscribe_failed", "error", err)
		os.Exit(1)
	}
}
