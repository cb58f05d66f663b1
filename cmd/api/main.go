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

	httpadapter "github.com/kirillkom/askmydocs/internal/adapters/http"
	"github.com/kirillkom/askmydocs/internal/bootstrap"
	"github.com/kirillkom/askmydocs/internal/config"
	"github.com/kirillkom/askmydocs/internal/observability/logging"
	"github.com/kirillkom/askmydocs/internal/observability/metrics"
)

func main() {
	cfg := config.Load()
	logger := logging.NewJSONLogger("api", cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		core *bootstrap.Core
		deps httpadapter.Deps
	)
	if cfg.UploadsEnabled {
		app, err := bootstrap.New(ctx, cfg, bootstrap.Options{})
		if err != nil {
			slog.Error("bootstrap_failed", "error", err)
			os.Exit(1)
		}
		defer app.Close()
		core = app.Core
		deps.Ingest = app.IngestUC
		deps.Uploads = app.Repo
	} else {
		var err error
		core, err = bootstrap.NewCore(cfg)
		if err != nil {
			slog.Error("bootstrap_failed", "error", err)
			os.Exit(1)
		}
	}

	if cfg.IndexWatchEnabled {
		go func() {
			if err := core.Index.Watch(ctx, 0); err != nil {
				slog.Error("index_watch_failed", "error", err)
			}
		}()
	}

	httpMetrics := metrics.NewHTTPServerMetrics("api")
	httpMetrics.TrackIndexRows(core.IndexRows)

	deps.Answerer = core.QueryUC
	deps.Searcher = core.QueryUC
	deps.Indexer = core.IndexUC
	deps.Stats = core.Stats
	deps.Metrics = httpMetrics

	server := &http.Server{
		Addr:              ":" + cfg.APIPort,
		Handler:           httpadapter.NewRouter(cfg, deps).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      5 * time.Minute,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		slog.Info("api_listening",
			"port", cfg.APIPort,
			"index_rows", core.IndexRows(),
			"provider", cfg.LLMProvider,
			"uploads_enabled", cfg.UploadsEnabled,
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("api_server_failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("api_shutdown_failed", "error", err)
	}
}
