package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	mcpadapter "github.com/kirillkom/campus-search/internal/adapters/mcp"
	"github.com/kirillkom/campus-search/internal/bootstrap"
	"github.com/kirillkom/campus-search/internal/config"
	"github.com/kirillkom/campus-search/internal/observability/logging"
)

const version = "1.0.0"

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	logger := logging.New(os.Stderr, "mcp", cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, bootstrap.Options{Logger: logger})
	if err != nil {
		logger.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	srv := mcpadapter.NewServer(version, app.Search, app.Ask, app.Repo)
	if err := srv.ServeStdio(); err != nil {
		logger.Error("mcp_server_failed", "error", err)
		os.Exit(1)
	}
}
