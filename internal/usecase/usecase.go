package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"

	"reflights/internal/domain"
	"reflights/internal/domain/outbox"
	"reflights/internal/domain/payment"
	"reflights/internal/ports"
)

// Dependencies are the repositories and collaborators of one domain.
type Dependencies struct {
	Tx          ports.Transactor
	Tickets     ports.TicketRepository
	Listings    ports.ListingRepository
	Allowlist   ports.AllowlistRepository
	Ledger      ports.LedgerRepository
	Outbox      ports.OutboxRepository
	Inbox       ports.InboxRepository
	Relocations ports.RelocationRepository
	Oracle      ports.PriceOracle
	Channel     ports.Channel
	Logger      *slog.Logger
	Now         func() time.Time
}

// Settings identify the local domain and its administrator.
type Settings struct {
	DomainID    string
	Admin       string
	EventsTopic string
	Producer    string
}

// UseCases bundles the components of one domain.
type UseCases struct {
	Registry *Registry
	Market   *Market
	Bridge   *Bridge
	Admin    *Admin
	Queries  *Queries
}

func New(deps Dependencies, settings Settings) *UseCases {
	c := newCore(deps, settings)
	registry := &Registry{core: c}
	return &UseCases{
		Registry: registry,
		Market:   &Market{core: c, registry: registry},
		Bridge:   &Bridge{core: c, registry: registry},
		Admin:    &Admin{core: c, registry: registry},
		Queries:  &Queries{core: c},
	}
}

type core struct {
	Dependencies
	settings Settings
}

func newCore(deps Dependencies, settings Settings) *core {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if settings.Producer == "" {
		settings.Producer = "registry-" + settings.DomainID
	}
	return &core{Dependencies: deps, settings: settings}
}

// TicketCorrelationID ties every event about a ticket together, across domains.
func TicketCorrelationID(id uint64) string {
	return "ticket-" + strconv.FormatUint(id, 10)
}

func (c *core) emit(ctx context.Context, eventType, correlationID string, payload any) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", eventType, err)
	}
	return c.Outbox.Create(ctx, &outbox.Event{
		ID:            uuid.New().String(),
		EventType:     eventType,
		Topic:         c.settings.EventsTopic,
		Payload:       b,
		Status:        outbox.StatusNew,
		CorrelationID: correlationID,
		Producer:      c.settings.Producer,
		CreatedAt:     c.Now(),
	})
}

// checkIdentity rejects an empty holder and one that names a system account.
func checkIdentity(role, identity string) error {
	if identity == "" {
		return fmt.Errorf("%w: %s is required", domain.ErrValidation, role)
	}
	if payment.IsSystemAccount(identity) {
		return fmt.Errorf("%w: %s %q is reserved", domain.ErrValidation, role, identity)
	}
	return nil
}

// credit moves amount to account as one payment leg. Zero amounts are skipped.
func (c *core) credit(ctx context.Context, account string, amount payment.Amount, kind string, ticketID *uint64) error {
	if amount == 0 {
		return nil
	}
	err := c.Ledger.Append(ctx, payment.Entry{
		ID:       uuid.New().String(),
		Account:  account,
		Amount:   amount,
		Kind:     kind,
		TicketID: ticketID,
		At:       c.Now(),
	})
	if err == nil || errors.Is(err, domain.ErrPayment) {
		return err
	}
	return fmt.Errorf("%w: %s to %s: %w", domain.ErrPayment, kind, account, err)
}

func (c *core) rejected(op string, err error, attrs ...any) {
	kind := domain.Kind(err)
	if kind == "" {
		kind = "internal"
		c.Logger.Error(op+" failed", append(attrs, "error", err)...)
	} else {
		c.Logger.Debug(op+" rejected", append(attrs, "error", err)...)
	}
	operationRejections.WithLabelValues(op, kind).Inc()
}

func idRef(id uint64) *uint64 {
	return &id
}
