package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/pflag"

	"reflights/internal/application/factories/infrastructure"
	"reflights/internal/config"
	"reflights/internal/infrastructure/kafka"
	"reflights/internal/infrastructure/logger"
	"reflights/internal/worker"
)

func main() {
	configPath := pflag.String("config", config.DefaultPath, "path to the YAML config file")
	batchSize := pflag.Int("batch-size", 10, "outbox rows claimed per poll")
	pflag.Parse()

	cfg, err := config.New(*configPath)
	if err != nil {
		logger.New(os.Stdout, "info").Error("failed to load config", "error", err)
		os.Exit(1)
	}

	log := logger.New(os.Stdout, cfg.Log.Level)

	if cfg.Storage.Driver == "memory" {
		log.Error("the memory driver runs its poller inside the api process")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		log.Info("Worker metrics listening", "port", cfg.HTTP.MetricsPort)
		if err := http.ListenAndServe(":"+cfg.HTTP.MetricsPort, mux); err != nil {
			log.Warn("metrics server stopped", "error", err)
		}
	}()

	infraFactory := infrastructure.NewFactory(cfg, log)
	defer infraFactory.Close()

	outboxRepo, err := infraFactory.Outbox(ctx)
	if err != nil {
		log.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}

	kafkaProd := kafka.NewProducer(kafka.Config{
		Brokers: cfg.Kafka.Brokers,
	})
	defer kafkaProd.Close()

	w := worker.NewOutboxPoller(outboxRepo, kafkaProd, worker.PollerConfig{
		Source:       cfg.Domain.ID,
		BatchSize:    *batchSize,
		DefaultTopic: cfg.Kafka.EventsTopic,
	}, log)

	log.Info("Outbox poller starting", "domain", cfg.Domain.ID)
	if err := w.Run(ctx); err != nil {
		log.Error("worker stopped with error", "error", err)
	}

	log.Info("worker exited")
}
