package worker

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	domainEvent "reflights/internal/domain/event"
	"reflights/internal/ports"
)

var (
	eventsPublished = promauto.NewCounter(prometheus.CounterOpts{
		Name: "worker_outbox_events_published_total",
		Help: "The total number of events published to Kafka",
	})
	publishErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "worker_outbox_publish_errors_total",
		Help: "The total number of failed publish attempts",
	})
)

// Publisher writes one message to a topic.
type Publisher interface {
	SendMessage(ctx context.Context, topic string, key, value []byte) error
}

type PollerConfig struct {
	// Source is the local domain id stamped on every envelope.
	Source       string
	Interval     time.Duration
	BatchSize    int
	SendTimeout  time.Duration
	DefaultTopic string
}

type OutboxPoller struct {
	outboxRepo ports.OutboxRepository
	publisher  Publisher
	cfg        PollerConfig
	logger     *slog.Logger
}

func NewOutboxPoller(outboxRepo ports.OutboxRepository, publisher Publisher, cfg PollerConfig, logger *slog.Logger) *OutboxPoller {
	if cfg.Interval <= 0 {
		cfg.Interval = 2 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 10
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 5 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &OutboxPoller{
		outboxRepo: outboxRepo,
		publisher:  publisher,
		cfg:        cfg,
		logger:     logger,
	}
}

func (p *OutboxPoller) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	p.logger.Info("OutboxPoller started", "source", p.cfg.Source, "interval", p.cfg.Interval)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := p.ProcessBatch(ctx); err != nil {
				p.logger.Error("failed to process batch", "error", err)
			}
		}
	}
}

// ProcessBatch publishes one batch of committed outbox events and returns
// how many were published. Events that fail to publish go back to new.
func (p *OutboxPoller) ProcessBatch(ctx context.Context) (int, error) {
	events, err := p.outboxRepo.FetchBatch(ctx, p.cfg.BatchSize)
	if err != nil {
		return 0, err
	}

	if len(events) == 0 {
		return 0, nil
	}

	var processedIDs []string
	var failedIDs []string

	for _, e := range events {
		key := []byte(e.CorrelationID)
		if len(key) == 0 {
			key = []byte(e.ID)
		}

		topic := e.Topic
		if topic == "" {
			topic = p.cfg.DefaultTopic
		}

		msg := domainEvent.Message{
			ID:            e.ID,
			Type:          e.EventType,
			CorrelationID: e.CorrelationID,
			CausationID:   e.CausationID,
			Producer:      e.Producer,
			Source:        p.cfg.Source,
			OccurredAt:    e.CreatedAt.UTC(),
			Payload:       e.Payload,
		}

		value, err := json.Marshal(msg)
		if err != nil {
			p.logger.Error("failed to marshal event", "event_id", e.ID, "error", err)
			publishErrors.Inc()
			failedIDs = append(failedIDs, e.ID)
			continue
		}

		sendCtx, cancel := context.WithTimeout(ctx, p.cfg.SendTimeout)
		err = p.publisher.SendMessage(sendCtx, topic, key, value)
		cancel()

		if err != nil {
			p.logger.Error("failed to send event to kafka", "event_id", e.ID, "topic", topic, "error", err)
			publishErrors.Inc()
			failedIDs = append(failedIDs, e.ID)
			continue
		}

		eventsPublished.Inc()
		processedIDs = append(processedIDs, e.ID)
	}

	if len(processedIDs) > 0 {
		if err := p.outboxRepo.MarkProcessed(ctx, processedIDs); err != nil {
			return 0, err
		}
		p.logger.Info("Processed outbox events", "count", len(processedIDs))
	}

	if len(failedIDs) > 0 {
		if err := p.outboxRepo.MarkFailed(ctx, failedIDs); err != nil {
			p.logger.Error("failed to mark events as failed", "error", err)
		}
	}

	return len(processedIDs), nil
}
