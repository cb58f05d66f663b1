package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/kirillkom/askmydocs/internal/adapters/cli"
	mcpadapter "github.com/kirillkom/askmydocs/internal/adapters/mcp"
	"github.com/kirillkom/askmydocs/internal/bootstrap"
	"github.com/kirillkom/askmydocs/internal/config"
	"github.com/kirillkom/askmydocs/internal/observability/logging"
)

var version = "dev"

func main() {
	cfg := config.Load()
	// stdout carries command output and the MCP stream, so logs go to stderr.
	slog.SetDefault(logging.NewJSONLoggerTo(os.Stderr, "askctl", cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var registry *bootstrap.Registry
	defer func() {
		if registry != nil {
			registry.Close()
		}
	}()

	root := cli.NewRootCommand(func() (*cli.Services, error) {
		core, err := bootstrap.NewCore(cfg)
		if err != nil {
			return nil, err
		}
		// Rebuilds must see uploads too; without the registry they refuse to
		// run rather than drop them.
		if cfg.UploadsEnabled {
			registry, err = bootstrap.OpenRegistry(ctx, cfg)
			if err != nil {
				slog.Warn("upload_registry_unavailable", "error", err)
				core.IndexUC.WithUploads(bootstrap.DetachedUploads{Err: err})
			} else {
				core.AttachUploads(registry)
			}
		}
		mcpServer := mcpadapter.NewServer(core.QueryUC, core.QueryUC, cfg.RAGTopK)
		return &cli.Services{
			Indexer:  core.IndexUC,
			Answerer: core.QueryUC,
			Searcher: core.QueryUC,
			DocsDir:  cfg.DocsDir,
			TopK:     cfg.RAGTopK,
			ServeMCP: func() error { return mcpServer.ServeStdio(version) },
		}, nil
	})
	root.Version = version

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
