package usecase_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"reflights/internal/channel"
	"reflights/internal/domain/event"
	"reflights/internal/domain/payment"
	"reflights/internal/domain/ticket"
	"reflights/internal/infrastructure/memory"
	"reflights/internal/ports"
	"reflights/internal/usecase"
	"reflights/internal/worker"
)

const (
	admin     = "admin"
	unitPrice = payment.Amount(1000)
	baseFee   = payment.Amount(100)
)

var epoch = time.Date(2030, time.March, 1, 12, 0, 0, 0, time.UTC)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Set(now time.Time) {
	c.mu.Lock()
	c.now = now
	c.mu.Unlock()
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type fakeOracle struct {
	price payment.Amount
	err   error
}

func (o *fakeOracle) CurrentUnitPrice(context.Context) (payment.Amount, error) {
	return o.price, o.err
}

// failingChannel quotes like the wrapped channel but can refuse to send.
type failingChannel struct {
	ports.Channel
	sendErr error
}

func (c *failingChannel) Send(ctx context.Context, destination string, payload []byte, fee payment.Amount) (string, error) {
	if c.sendErr != nil {
		return "", c.sendErr
	}
	return c.Channel.Send(ctx, destination, payload, fee)
}

// failingLedger fails every entry of failKind after it has been applied,
// so a caller that does not roll back would leave it behind.
type failingLedger struct {
	*memory.LedgerRepository
	failKind string
}

func (l *failingLedger) Append(ctx context.Context, e payment.Entry) error {
	if err := l.LedgerRepository.Append(ctx, e); err != nil {
		return err
	}
	if l.failKind != "" && e.Kind == l.failKind {
		return errors.New("ledger unavailable")
	}
	return nil
}

type fixture struct {
	domainID string
	sender   string
	store    *memory.Store
	clock    *clock
	oracle   *fakeOracle
	channel  *failingChannel
	ledger   *failingLedger
	uc       *usecase.UseCases
}

func newFixture(t *testing.T, domainID string) *fixture {
	t.Helper()

	f := &fixture{
		domainID: domainID,
		sender:   "bridge-" + domainID,
		store:    memory.NewStore(),
		clock:    &clock{now: epoch},
		oracle:   &fakeOracle{price: unitPrice},
	}
	f.store.SetClock(f.clock.Now)
	f.channel = &failingChannel{Channel: channel.NewOutboxChannel(f.store.Outbox, channel.Config{
		SourceDomain: domainID,
		Sender:       f.sender,
		TopicPrefix:  "relocations-",
		BaseFee:      baseFee,
	})}
	f.ledger = &failingLedger{LedgerRepository: f.store.Ledger}

	f.uc = usecase.New(usecase.Dependencies{
		Tx:          f.store,
		Tickets:     f.store.Tickets,
		Listings:    f.store.Listings,
		Allowlist:   f.store.Allowlist,
		Ledger:      f.ledger,
		Outbox:      f.store.Outbox,
		Inbox:       f.store.Inbox,
		Relocations: f.store.Relocations,
		Oracle:      f.oracle,
		Channel:     f.channel,
		Logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		Now:         f.clock.Now,
	}, usecase.Settings{
		DomainID:    domainID,
		Admin:       admin,
		EventsTopic: "events",
	})
	return f
}

func flight() ticket.Metadata {
	dep := epoch.Add(48 * time.Hour)
	return ticket.Metadata{
		FlightNumber:  "RF101",
		Departure:     "LIS",
		Destination:   "AMS",
		DepartureTime: dep,
		ArrivalTime:   dep.Add(3 * time.Hour),
		SeatClass:     "economy",
	}
}

func (f *fixture) mint(t *testing.T, owner string) uint64 {
	t.Helper()
	res, err := f.uc.Registry.Mint(context.Background(), usecase.MintParams{
		To:       owner,
		Metadata: flight(),
		Paid:     unitPrice,
	})
	if err != nil {
		t.Fatalf("mint for %s: %v", owner, err)
	}
	return res.TicketID
}

func (f *fixture) balance(t *testing.T, account string) payment.Amount {
	t.Helper()
	bal, err := f.uc.Queries.Balance(context.Background(), account)
	if err != nil {
		t.Fatalf("balance of %s: %v", account, err)
	}
	return bal
}

func (f *fixture) exists(t *testing.T, id uint64) bool {
	t.Helper()
	ok, err := f.uc.Registry.Exists(context.Background(), id)
	if err != nil {
		t.Fatalf("exists %d: %v", id, err)
	}
	return ok
}

func (f *fixture) eventTypes() []string {
	var types []string
	for _, e := range f.store.Outbox.All(context.Background()) {
		types = append(types, e.EventType)
	}
	return types
}

// connect allowlists each domain as a destination of the other and each
// bridge sender on the receiving side.
func connect(t *testing.T, a, b *fixture) {
	t.Helper()
	ctx := context.Background()
	for _, pair := range [][2]*fixture{{a, b}, {b, a}} {
		from, to := pair[0], pair[1]
		if err := from.uc.Admin.AllowlistDomain(ctx, admin, to.domainID, true); err != nil {
			t.Fatalf("allowlist domain: %v", err)
		}
		if err := to.uc.Admin.AllowlistSender(ctx, admin, from.sender, true); err != nil {
			t.Fatalf("allowlist sender: %v", err)
		}
	}
}

type capturePublisher struct {
	messages []event.Message
	topics   []string
}

func (p *capturePublisher) SendMessage(_ context.Context, topic string, _, value []byte) error {
	var msg event.Message
	if err := json.Unmarshal(value, &msg); err != nil {
		return err
	}
	p.messages = append(p.messages, msg)
	p.topics = append(p.topics, topic)
	return nil
}

// publish runs the outbox poller of f once and returns the relocation
// messages it published, in order.
func (f *fixture) publish(t *testing.T) []event.Message {
	t.Helper()
	pub := &capturePublisher{}
	poller := worker.NewOutboxPoller(f.store.Outbox, pub, worker.PollerConfig{
		Source:       f.domainID,
		BatchSize:    100,
		DefaultTopic: "events",
	}, nil)
	if _, err := poller.ProcessBatch(context.Background()); err != nil {
		t.Fatalf("process outbox: %v", err)
	}

	var out []event.Message
	for i, msg := range pub.messages {
		if msg.Type != event.TypeRelocationMessage {
			continue
		}
		if want := channel.Topic("relocations-", destinationOf(t, msg)); pub.topics[i] != want {
			t.Fatalf("relocation published on %q, want %q", pub.topics[i], want)
		}
		out = append(out, msg)
	}
	return out
}

func destinationOf(t *testing.T, msg event.Message) string {
	t.Helper()
	var frame event.RelocationFrame
	if err := json.Unmarshal(msg.Payload, &frame); err != nil {
		t.Fatalf("decode frame: %v", err)
	}
	return frame.Destination
}

// deliver hands every message to the destination's bridge the way the
// receiver does.
func deliver(t *testing.T, to *fixture, msgs []event.Message) []error {
	t.Helper()
	var errs []error
	for _, msg := range msgs {
		in, err := channel.Inbound(msg)
		if err != nil {
			t.Fatalf("unwrap message: %v", err)
		}
		errs = append(errs, to.uc.Bridge.OnMessageReceived(context.Background(), in))
	}
	return errs
}
