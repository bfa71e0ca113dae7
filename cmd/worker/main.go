package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/auditkit/evidence-pipeline/internal/bootstrap"
	"github.com/auditkit/evidence-pipeline/internal/config"
	"github.com/auditkit/evidence-pipeline/internal/core/domain"
	"github.com/auditkit/evidence-pipeline/internal/observability/logging"
	"github.com/auditkit/evidence-pipeline/internal/observability/metrics"
)

const serviceName = "audit-worker"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	logger := logging.NewJSONLogger(serviceName, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("bootstrap error: %v", err)
	}
	defer app.Close()

	workerMetrics := metrics.NewWorkerMetrics(serviceName)
	metricsServer := &http.Server{
		Addr:    ":" + cfg.WorkerMetricsPort,
		Handler: workerMetrics.Handler(),
	}
	go func() {
		logger.Info("worker_metrics_listening", "port", cfg.WorkerMetricsPort)
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("worker_metrics_server_error", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	logger.Info("worker_subscribed", "subject", cfg.NATSSubject)
	err = app.AuditBus.SubscribeAuditRecords(ctx, func(handlerCtx context.Context, record domain.AuditRecord) error {
		workerMetrics.ObserveQueueLag(serviceName, time.Since(record.Timestamp))

		appendCtx, cancel := context.WithTimeout(handlerCtx, 30*time.Second)
		defer cancel()

		workerMetrics.StartAppend()
		start := time.Now()
		appendErr := app.AuditLog.Append(appendCtx, record)
		workerMetrics.FinishAppend(serviceName, time.Since(start), appendErr)
		if appendErr != nil {
			logger.Error("audit_append_failed", "record_id", record.ID, "error", appendErr)
		}
		return appendErr
	})
	if err != nil {
		log.Fatalf("worker subscribe error: %v", err)
	}
}
