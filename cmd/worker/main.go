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

	"github.com/joho/godotenv"

	"github.com/kirillkom/campus-search/internal/bootstrap"
	"github.com/kirillkom/campus-search/internal/config"
	"github.com/kirillkom/campus-search/internal/core/domain"
	"github.com/kirillkom/campus-search/internal/observability/logging"
	"github.com/kirillkom/campus-search/internal/observability/metrics"
)

const serviceName = "worker"

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	logger := logging.NewJSONLogger(serviceName, cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	workerMetrics := metrics.NewWorkerMetrics(serviceName)
	app, err := bootstrap.New(ctx, cfg, bootstrap.Options{
		Logger:        logger,
		StateListener: workerMetrics.BreakerListener(),
		WithQueue:     true,
		OnJobLag: func(lag time.Duration) {
			workerMetrics.ObserveQueueLag(serviceName, lag)
		},
	})
	if err != nil {
		logger.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	metricsServer := &http.Server{
		Addr:              ":" + cfg.WorkerMetricsPort,
		Handler:           workerMetrics.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("worker_metrics_server_failed", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	logger.Info("worker_subscribed", "subject", cfg.NATSSubject)
	err = app.Queue.SubscribeIndexJobs(ctx, func(handlerCtx context.Context, id domain.DocumentID) error {
		processCtx, cancel := context.WithTimeout(handlerCtx, 5*time.Minute)
		defer cancel()

		workerMetrics.StartDocument()
		start := time.Now()
		err := app.Indexer.ProcessByID(processCtx, id)
		outcome := workerMetrics.FinishDocument(serviceName, time.Since(start), err)
		if err == nil {
			logger.Info("document_indexed", "doc_id", string(id), "duration_ms", time.Since(start).Milliseconds())
			return nil
		}
		if outcome == "not_found" {
			// The record was removed after the job was queued; nothing to index.
			logger.Warn("index_job_stale", "doc_id", string(id))
			return nil
		}
		return err
	})
	if err != nil {
		logger.Error("worker_subscribe_failed", "error", err)
		os.Exit(1)
	}
}
