// Package main is the entry point for the normalization stage: it maps
// validated records onto the canonical unified schema.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/cdrflow/cdrflow/internal/broker"
	"github.com/cdrflow/cdrflow/internal/config"
	"github.com/cdrflow/cdrflow/internal/normalize"
	"github.com/cdrflow/cdrflow/internal/telemetry"
)

const stage = "normalization"

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	cfg, err := config.LoadNormalization()
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

	natsClient, err := broker.NewClient(cfg.NATSURL, logger)
	if err != nil {
		logger.Fatal("NATS connection failed", zap.Error(err))
	}
	defer natsClient.Close()

	if err := natsClient.ProvisionStream(); err != nil {
		logger.Fatal("NATS stream provisioning failed", zap.Error(err))
	}

	metrics := telemetry.NewMetrics(stage)
	publisher := broker.NewPublisher(natsClient)

	consumerCtx, consumerCancel := context.WithCancel(context.Background())
	defer consumerCancel()

	consumer := normalize.NewConsumer(natsClient, publisher, cfg.OutputSubject, metrics, logger)
	if err := consumer.Start(consumerCtx, cfg.InputSubject, cfg.ConsumerGroup); err != nil {
		logger.Fatal("consumer start failed", zap.Error(err))
	}

	ops := telemetry.NewOpsServer(stage, metrics, nil, logger)
	ops.Start(cfg.Addr())

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit
	logger.Info("initiating graceful shutdown")

	consumerCancel()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := ops.Shutdown(shutdownCtx); err != nil {
		logger.Error("ops server shutdown error", zap.Error(err))
	}
	logger.Info("normalization stage shut down cleanly")
}
