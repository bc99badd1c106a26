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
	"reflights/internal/channel"
	"reflights/internal/config"
	"reflights/internal/consumer"
	"reflights/internal/infrastructure/kafka"
	"reflights/internal/infrastructure/logger"
	"reflights/internal/usecase"
)

func main() {
	configPath := pflag.String("config", config.DefaultPath, "path to the YAML config file")
	maxBackoff := pflag.Duration("max-backoff", consumer.MaxBackoff, "longest wait between attempts at a message failing with a transient error")
	pflag.Parse()

	cfg, err := config.New(*configPath)
	if err != nil {
		logger.New(os.Stdout, "info").Error("failed to load config", "error", err)
		os.Exit(1)
	}

	log := logger.New(os.Stdout, cfg.Log.Level)

	if cfg.Storage.Driver == "memory" {
		log.Error("the memory driver runs its receiver inside the api process")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		log.Info("Receiver metrics listening", "port", cfg.HTTP.MetricsPort)
		if err := http.ListenAndServe(":"+cfg.HTTP.MetricsPort, mux); err != nil {
			log.Warn("metrics server stopped", "error", err)
		}
	}()

	infraFactory := infrastructure.NewFactory(cfg, log)
	defer infraFactory.Close()

	deps, err := infraFactory.Dependencies(ctx)
	if err != nil {
		log.Error("failed to init dependencies", "error", err)
		os.Exit(1)
	}
	uc := usecase.New(deps, infraFactory.Settings())

	topic := channel.Topic(cfg.Kafka.TopicPrefix, cfg.Domain.ID)
	source := kafka.NewConsumer(kafka.ConsumerConfig{
		Brokers:     cfg.Kafka.Brokers,
		Topic:       topic,
		GroupID:     cfg.Kafka.GroupID,
		StartOffset: cfg.Kafka.StartOffset,
	})
	defer source.Close()

	receiver := consumer.NewReceiver(source, uc.Bridge, log)
	if *maxBackoff > 0 {
		receiver = receiver.WithBackoff(consumer.CappedBackoff(*maxBackoff))
	}

	log.Info("Receiver starting", "topic", topic, "group", cfg.Kafka.GroupID)
	if err := receiver.Run(ctx); err != nil {
		log.Error("receiver stopped with error", "error", err)
	}

	log.Info("receiver exited")
}
