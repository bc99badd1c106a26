// Package channel implements the cross-domain routing transport on top of
// the transactional outbox: a send is an outbox row committed together with
// the burn, and the outbox poller publishes it to the destination's topic.
package channel

import (
	"context"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/zeebo/blake3"

	"reflights/internal/domain/event"
	"reflights/internal/domain/outbox"
	"reflights/internal/domain/payment"
	"reflights/internal/ports"
)

type Config struct {
	SourceDomain string
	// Sender is the identity destination domains allowlist.
	Sender      string
	TopicPrefix string
	BaseFee     payment.Amount
	FeePerByte  payment.Amount
}

// messageKey separates relocation message ids from any other BLAKE3 use.
var messageKey = [32]byte{
	'r', 'e', 'f', 'l', 'i', 'g', 'h', 't', 's', '.', 'r', 'e', 'l', 'o', 'c', 'a',
	't', 'i', 'o', 'n', '.', 'm', 's', 'g', 0, 0, 0, 0, 0, 0, 0, 0,
}

type OutboxChannel struct {
	outbox ports.OutboxRepository
	cfg    Config
	now    func() time.Time
}

func NewOutboxChannel(outboxRepo ports.OutboxRepository, cfg Config) *OutboxChannel {
	return &OutboxChannel{
		outbox: outboxRepo,
		cfg:    cfg,
		now:    time.Now,
	}
}

// Topic is the Kafka topic a domain consumes relocation messages from.
func Topic(prefix, domainID string) string {
	return prefix + domainID
}

func (c *OutboxChannel) QuoteFee(_ context.Context, destination string, payload []byte) (payment.Amount, error) {
	if strings.TrimSpace(destination) == "" {
		return 0, fmt.Errorf("no destination")
	}
	return c.cfg.BaseFee + c.cfg.FeePerByte*payment.Amount(len(payload)), nil
}

// Send stores the message in the outbox. It must run inside the caller's
// transaction so the message only exists if the caller commits.
func (c *OutboxChannel) Send(ctx context.Context, destination string, payload []byte, fee payment.Amount) (string, error) {
	if strings.TrimSpace(destination) == "" {
		return "", fmt.Errorf("no destination")
	}
	nonce := uuid.New()
	messageID := MessageID(c.cfg.SourceDomain, destination, nonce[:], payload)

	body, err := json.Marshal(event.RelocationFrame{Destination: destination, Data: payload})
	if err != nil {
		return "", fmt.Errorf("marshal relocation frame: %w", err)
	}

	now := c.now()
	if err := c.outbox.Create(ctx, &outbox.Event{
		ID:            messageID,
		EventType:     event.TypeRelocationMessage,
		Topic:         Topic(c.cfg.TopicPrefix, destination),
		Payload:       body,
		Status:        outbox.StatusNew,
		CorrelationID: destination,
		Producer:      c.cfg.Sender,
		CreatedAt:     now,
	}); err != nil {
		return "", fmt.Errorf("enqueue relocation message: %w", err)
	}
	return messageID, nil
}

// MessageID derives a message identifier from the route, a nonce and the
// payload with keyed BLAKE3.
func MessageID(source, destination string, nonce, payload []byte) string {
	hasher, err := blake3.NewKeyed(messageKey[:])
	if err != nil {
		panic("channel: blake3 keyed hasher: " + err.Error())
	}
	writeField(hasher, []byte(source))
	writeField(hasher, []byte(destination))
	writeField(hasher, nonce)
	writeField(hasher, payload)
	return hex.EncodeToString(hasher.Sum(nil))
}

func writeField(h *blake3.Hasher, b []byte) {
	var n [8]byte
	binary.BigEndian.PutUint64(n[:], uint64(len(b)))
	_, _ = h.Write(n[:])
	_, _ = h.Write(b)
}
