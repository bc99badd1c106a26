package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/segmentio/kafka-go"

	"reflights/internal/channel"
	"reflights/internal/domain"
	domainEvent "reflights/internal/domain/event"
	"reflights/internal/domain/relocation"
)

var retriesTotal = promauto.NewCounter(prometheus.CounterOpts{
	Name: "receiver_message_retries_total",
	Help: "The total number of failed attempts to apply a relocation message",
})

// MessageSource is the subset of the Kafka consumer the receiver needs.
type MessageSource interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
}

// Handler applies one inbound relocation.
type Handler interface {
	OnMessageReceived(ctx context.Context, in relocation.Inbound) error
}

type Receiver struct {
	source  MessageSource
	handler Handler
	logger  *slog.Logger
	backoff func(attempt int) time.Duration
}

func NewReceiver(source MessageSource, handler Handler, logger *slog.Logger) *Receiver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Receiver{
		source:  source,
		handler: handler,
		logger:  logger,
		backoff: ExponentialBackoff,
	}
}

// MaxBackoff bounds the wait between attempts of ExponentialBackoff.
const MaxBackoff = 30 * time.Second

// ExponentialBackoff waits 1s, 2s, 4s... before successive retries, up to MaxBackoff.
func ExponentialBackoff(attempt int) time.Duration {
	return CappedBackoff(MaxBackoff)(attempt)
}

// CappedBackoff doubles from one second and never waits longer than limit.
func CappedBackoff(limit time.Duration) func(attempt int) time.Duration {
	return func(attempt int) time.Duration {
		if attempt < 0 {
			attempt = 0
		}
		if attempt > 30 {
			return limit
		}
		if d := time.Duration(1<<attempt) * time.Second; d < limit {
			return d
		}
		return limit
	}
}

// WithBackoff replaces the retry schedule.
func (r *Receiver) WithBackoff(backoff func(attempt int) time.Duration) *Receiver {
	r.backoff = backoff
	return r
}

// Run consumes until ctx is cancelled. A message is committed once it is
// applied or rejected by the bridge; replaying a rejection cannot succeed.
// Transient failures are retried until they clear, so a delivered message
// is never committed unapplied.
func (r *Receiver) Run(ctx context.Context) error {
	for {
		msg, err := r.source.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				r.logger.Info("Receiver stopping")
				return nil
			}
			r.logger.Error("failed to fetch message", "error", err)
			if !sleep(ctx, time.Second) {
				return nil
			}
			continue
		}

		if !r.process(ctx, msg) {
			r.logger.Info("Receiver stopping", "uncommitted_offset", msg.Offset)
			return nil
		}

		if err := r.source.CommitMessages(ctx, msg); err != nil {
			r.logger.Error("failed to commit kafka message", "error", err)
		}
	}
}

// process reports whether msg is settled and may be committed. It returns
// false only when ctx ends first.
func (r *Receiver) process(ctx context.Context, msg kafka.Message) bool {
	for attempt := 0; ; attempt++ {
		if attempt > 0 {
			backoff := r.backoff(attempt)
			r.logger.Info("Retry attempt", "attempt", attempt, "offset", msg.Offset, "backoff", backoff)
			if !sleep(ctx, backoff) {
				return false
			}
		}

		err := r.handle(ctx, msg)
		if err == nil {
			return ctx.Err() == nil
		}
		if domain.IsRejection(err) {
			r.logger.Warn("dropping rejected message", "offset", msg.Offset, "error", err)
			return ctx.Err() == nil
		}
		retriesTotal.Inc()
		r.logger.Error("Processing failed", "attempt", attempt, "offset", msg.Offset, "error", err)
	}
}

func (r *Receiver) handle(ctx context.Context, msg kafka.Message) error {
	var ev domainEvent.Message
	if err := json.Unmarshal(msg.Value, &ev); err != nil {
		return fmt.Errorf("%w: envelope: %v", domain.ErrDeserialization, err)
	}
	in, err := channel.Inbound(ev)
	if err != nil {
		return err
	}
	r.logger.Info("Received relocation message", "message_id", in.MessageID, "source", in.SourceDomain, "sender", in.Sender)
	return r.handler.OnMessageReceived(ctx, in)
}

func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
