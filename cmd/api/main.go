package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"reflights/internal/api"
	"reflights/internal/application/factories/infrastructure"
	"reflights/internal/channel"
	"reflights/internal/config"
	"reflights/internal/consumer"
	"reflights/internal/infrastructure/kafka"
	"reflights/internal/infrastructure/logger"
	"reflights/internal/usecase"
	"reflights/internal/worker"
)

func main() {
	configPath := pflag.String("config", config.DefaultPath, "path to the YAML config file")
	pflag.Parse()

	cfg, err := config.New(*configPath)
	if err != nil {
		logger.New(os.Stdout, "info").Error("failed to load config", "error", err)
		os.Exit(1)
	}

	log := logger.New(os.Stdout, cfg.Log.Level)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	infraFactory := infrastructure.NewFactory(cfg, log)
	defer infraFactory.Close()

	redisClient, err := infraFactory.Redis(ctx)
	if err != nil {
		log.Warn("redis unavailable, idempotency keys and price cache disabled", "error", err)
		redisClient = nil
	}

	deps, err := infraFactory.Dependencies(ctx)
	if err != nil {
		log.Error("failed to init dependencies", "error", err)
		os.Exit(1)
	}
	uc := usecase.New(deps, infraFactory.Settings())

	// The memory store lives in this process only, so the outbox poller and
	// the inbound receiver have to run here too.
	if cfg.Storage.Driver == "memory" {
		producer := kafka.NewProducer(kafka.Config{Brokers: cfg.Kafka.Brokers})
		defer producer.Close()

		poller := worker.NewOutboxPoller(deps.Outbox, producer, worker.PollerConfig{
			Source:       cfg.Domain.ID,
			DefaultTopic: cfg.Kafka.EventsTopic,
		}, log)
		go func() {
			if err := poller.Run(ctx); err != nil {
				log.Error("outbox poller stopped", "error", err)
			}
		}()

		source := kafka.NewConsumer(kafka.ConsumerConfig{
			Brokers:     cfg.Kafka.Brokers,
			Topic:       channel.Topic(cfg.Kafka.TopicPrefix, cfg.Domain.ID),
			GroupID:     cfg.Kafka.GroupID,
			StartOffset: cfg.Kafka.StartOffset,
		})
		defer source.Close()

		receiver := consumer.NewReceiver(source, uc.Bridge, log)
		go func() {
			if err := receiver.Run(ctx); err != nil {
				log.Error("receiver stopped", "error", err)
			}
		}()
	}

	handlers := api.NewHandlers(uc, log)
	router := api.NewRouter(handlers, api.RouterConfig{
		JWTSecret: []byte(cfg.Auth.JWTSecret),
		Redis:     redisClient,
		Logger:    log,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.HTTP.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("Server starting", "port", cfg.HTTP.Port, "domain", cfg.Domain.ID, "storage", cfg.Storage.Driver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("listen failed", "error", err)
			cancel()
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", "error", err)
	}

	log.Info("Server exiting")
}
