package channel_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"reflights/internal/channel"
	"reflights/internal/domain"
	"reflights/internal/domain/event"
	"reflights/internal/domain/outbox"
	"reflights/internal/infrastructure/memory"
)

func newChannel(t *testing.T) (*channel.OutboxChannel, *memory.Store) {
	t.Helper()
	store := memory.NewStore()
	return channel.NewOutboxChannel(store.Outbox, channel.Config{
		SourceDomain: "domain-a",
		Sender:       "bridge-domain-a",
		TopicPrefix:  "relocations-",
		BaseFee:      500,
		FeePerByte:   2,
	}), store
}

func TestMessageID(t *testing.T) {
	payload := []byte{0xa1, 0x01, 0x02}
	id := channel.MessageID("domain-a", "domain-b", []byte("nonce-1"), payload)

	if len(id) != 64 {
		t.Fatalf("message id %q: want 64 hex chars", id)
	}
	if again := channel.MessageID("domain-a", "domain-b", []byte("nonce-1"), payload); again != id {
		t.Fatalf("same input gave %q and %q", id, again)
	}
	if other := channel.MessageID("domain-a", "domain-b", []byte("nonce-2"), payload); other == id {
		t.Fatal("nonce does not change the message id")
	}
	// field boundaries are length-prefixed
	if shifted := channel.MessageID("domain-ad", "omain-b", []byte("nonce-1"), payload); shifted == id {
		t.Fatal("moving bytes between fields kept the message id")
	}
}

func TestQuoteFee(t *testing.T) {
	ch, _ := newChannel(t)

	fee, err := ch.QuoteFee(context.Background(), "domain-b", make([]byte, 40))
	if err != nil {
		t.Fatalf("quote: %v", err)
	}
	if fee != 580 {
		t.Fatalf("fee = %d, want 580", fee)
	}
	if _, err := ch.QuoteFee(context.Background(), " ", nil); err == nil {
		t.Fatal("quote without destination succeeded")
	}
}

func TestSend_WritesOutboxRow(t *testing.T) {
	ch, store := newChannel(t)
	ctx := context.Background()
	payload := []byte("cbor bytes")

	id, err := ch.Send(ctx, "domain-b", payload, 520)
	if err != nil {
		t.Fatalf("send: %v", err)
	}

	rows := store.Outbox.All(ctx)
	if len(rows) != 1 {
		t.Fatalf("outbox rows = %d, want 1", len(rows))
	}
	row := rows[0]
	if row.ID != id || row.EventType != event.TypeRelocationMessage || row.Status != outbox.StatusNew {
		t.Fatalf("row: %+v", row)
	}
	if row.Topic != "relocations-domain-b" || row.CorrelationID != "domain-b" || row.Producer != "bridge-domain-a" {
		t.Fatalf("routing: topic=%q correlation=%q producer=%q", row.Topic, row.CorrelationID, row.Producer)
	}

	var frame event.RelocationFrame
	if err := json.Unmarshal(row.Payload, &frame); err != nil {
		t.Fatalf("frame: %v", err)
	}
	if frame.Destination != "domain-b" || !bytes.Equal(frame.Data, payload) {
		t.Fatalf("frame: %+v", frame)
	}

	second, err := ch.Send(ctx, "domain-b", payload, 520)
	if err != nil {
		t.Fatalf("second send: %v", err)
	}
	if second == id {
		t.Fatal("two sends of the same payload share a message id")
	}
}

func TestSend_RolledBackWithCaller(t *testing.T) {
	ch, store := newChannel(t)
	ctx := context.Background()
	boom := errors.New("burn failed")

	err := store.WithinTransaction(ctx, func(ctx context.Context) error {
		if _, err := ch.Send(ctx, "domain-b", []byte("x"), 501); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("got %v", err)
	}
	if rows := store.Outbox.All(ctx); len(rows) != 0 {
		t.Fatalf("outbox kept %d rows after rollback", len(rows))
	}
}

func TestInbound(t *testing.T) {
	ch, store := newChannel(t)
	ctx := context.Background()

	id, err := ch.Send(ctx, "domain-b", []byte("ticket"), 506)
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	row := store.Outbox.All(ctx)[0]

	msg := event.Message{
		ID:       row.ID,
		Type:     row.EventType,
		Producer: row.Producer,
		Source:   "domain-a",
		Payload:  row.Payload,
	}
	in, err := channel.Inbound(msg)
	if err != nil {
		t.Fatalf("inbound: %v", err)
	}
	if in.MessageID != id || in.SourceDomain != "domain-a" || in.Sender != "bridge-domain-a" || string(in.Payload) != "ticket" {
		t.Fatalf("inbound: %+v", in)
	}

	t.Run("wrong type", func(t *testing.T) {
		m := msg
		m.Type = event.TypeTicketMinted
		if _, err := channel.Inbound(m); !errors.Is(err, domain.ErrDeserialization) {
			t.Fatalf("got %v", err)
		}
	})
	t.Run("bad frame", func(t *testing.T) {
		m := msg
		m.Payload = json.RawMessage(`"not a frame"`)
		if _, err := channel.Inbound(m); !errors.Is(err, domain.ErrDeserialization) {
			t.Fatalf("got %v", err)
		}
	})
}
