// Package main is the entry point for the cold writer: it batches enriched
// records into partitioned parquet files and ships them to the object
// store.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/cdrflow/cdrflow/internal/broker"
	"github.com/cdrflow/cdrflow/internal/coldstore"
	"github.com/cdrflow/cdrflow/internal/config"
	"github.com/cdrflow/cdrflow/internal/telemetry"
)

const stage = "coldstore"

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	cfg, err := config.LoadColdStore()
	if err != nil {
		logger.Fatal("config load failed", zap.Error(err))
	}

	if cfg.OTLPEndpoint != "" {
		tp, err := telemetry.InitTracer(context.Background(), stage, cfg.OTLPEndpoint)
		if err != nil {
			logger.Error("OTel tracer init failed", zap.Error(err))
		} else {
			defer tp.Shutdown(context.Background())
			logger.Info("OTel tracer initialized", zap.String("endpoint", cfg.OTLPEndpoint))
		}
	}

	writer, err := coldstore.NewWriter(cfg.StagingDir, logger)
	if err != nil {
		logger.Fatal("staging dir init failed", zap.Error(err))
	}

	uploader, err := coldstore.NewUploader(context.Background(), cfg.S3, cfg.UploadTimeout, logger)
	if err != nil {
		logger.Fatal("object store client init failed", zap.Error(err))
	}
	// A denied bucket creation is a startup failure: exit non-zero.
	if err := uploader.EnsureBucket(context.Background()); err != nil {
		logger.Fatal("bucket provisioning failed", zap.Error(err))
	}

	batcher := coldstore.NewBatcher(writer, uploader, cfg.BatchSize, cfg.FlushInterval, logger)

	natsClient, err := broker.NewClient(cfg.NATSURL, logger)
	if err != nil {
		logger.Fatal("NATS connection failed", zap.Error(err))
	}
	defer natsClient.Close()

	if err := natsClient.ProvisionStream(); err != nil {
		logger.Fatal("NATS stream provisioning failed", zap.Error(err))
	}

	metrics := telemetry.NewMetrics(stage)

	runCtx, runCancel := context.WithCancel(context.Background())
	defer runCancel()

	batcherDone := make(chan struct{})
	go func() {
		batcher.Run(runCtx)
		close(batcherDone)
	}()

	consumer := coldstore.NewConsumer(natsClient, batcher, metrics, logger)
	if err := consumer.Start(runCtx, cfg.InputSubject, cfg.ConsumerGroup); err != nil {
		logger.Fatal("consumer start failed", zap.Error(err))
	}

	ops := telemetry.NewOpsServer(stage, metrics, func() map[string]interface{} {
		stats := batcher.Snapshot()
		return map[string]interface{}{
			"pending_records":  stats.PendingRecords,
			"records_archived": stats.RecordsArchived,
			"files_uploaded":   stats.FilesUploaded,
			"upload_failures":  stats.UploadFailures,
		}
	}, logger)
	ops.Start(cfg.Addr())

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit
	logger.Info("initiating graceful shutdown")

	// Every acked record must reach the batcher before the final drain, so
	// join the fetch loop first and drain only once it has stopped.
	runCancel()
	<-consumer.Done()
	<-batcherDone
	batcher.Drain()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := ops.Shutdown(shutdownCtx); err != nil {
		logger.Error("ops server shutdown error", zap.Error(err))
	}
	logger.Info("cold writer shut down cleanly")
}
