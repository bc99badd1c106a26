package ports

import (
	"context"
	"time"

	"reflights/internal/domain/inbox"
	"reflights/internal/domain/listing"
	"reflights/internal/domain/outbox"
	"reflights/internal/domain/payment"
	"reflights/internal/domain/relocation"
	"reflights/internal/domain/ticket"
)

// Transactor runs fn as one atomic, serialized unit of work. If fn returns
// an error every mutation made through ctx is discarded.
type Transactor interface {
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

type TicketRepository interface {
	// NextID reserves the lowest id above every id this domain has seen.
	NextID(ctx context.Context) (uint64, error)
	// Create stores a new live ticket. It fails with domain.ErrIDCollision
	// when a ticket with the same id is already live.
	Create(ctx context.Context, t *ticket.Ticket) error
	// Get returns domain.ErrTicketNotFound for ids that are not live.
	Get(ctx context.Context, id uint64) (*ticket.Ticket, error)
	Update(ctx context.Context, t *ticket.Ticket) error
	// Delete removes the live ticket; the id stays reserved.
	Delete(ctx context.Context, id uint64) error
	Exists(ctx context.Context, id uint64) (bool, error)
	List(ctx context.Context, limit int) ([]*ticket.Ticket, error)
}

type ListingRepository interface {
	Create(ctx context.Context, l *listing.Listing) error
	// GetActive returns nil when the ticket has no active listing.
	GetActive(ctx context.Context, ticketID uint64) (*listing.Listing, error)
	// Latest returns the most recent listing, active or not, or nil.
	Latest(ctx context.Context, ticketID uint64) (*listing.Listing, error)
	// Close deactivates the active listing, if any, and reports whether one was closed.
	Close(ctx context.Context, ticketID uint64, reason string, at time.Time) (bool, error)
	// ActiveTicketIDs returns, in ascending order, ids with an active
	// listing whose flight departs after now.
	ActiveTicketIDs(ctx context.Context, now time.Time) ([]uint64, error)
}

type AllowlistRepository interface {
	SetDomain(ctx context.Context, domainID string, allowed bool) error
	DomainAllowed(ctx context.Context, domainID string) (bool, error)
	SetSender(ctx context.Context, sender string, allowed bool) error
	SenderAllowed(ctx context.Context, sender string) (bool, error)
}

type LedgerRepository interface {
	// Append records e and applies it to the account balance. A debit
	// that would take the balance below zero fails with domain.ErrPayment.
	Append(ctx context.Context, e payment.Entry) error
	Balance(ctx context.Context, account string) (payment.Amount, error)
}

type OutboxRepository interface {
	Create(ctx context.Context, e *outbox.Event) error
	FetchBatch(ctx context.Context, limit int) ([]*outbox.Event, error)
	MarkProcessed(ctx context.Context, ids []string) error
	MarkFailed(ctx context.Context, ids []string) error
	ListByCorrelationID(ctx context.Context, correlationID string) ([]*outbox.Event, error)
}

type InboxRepository interface {
	// SaveIfNotExists returns true if the event was saved (is new), false if it already existed.
	SaveIfNotExists(ctx context.Context, consumer, eventID, eventType, correlationID string) (bool, error)
	ListByCorrelationID(ctx context.Context, correlationID string) ([]*inbox.Event, error)
}

type RelocationRepository interface {
	Create(ctx context.Context, r *relocation.Record) error
	// Get returns nil when no relocation with messageID was sent from here.
	Get(ctx context.Context, messageID string) (*relocation.Record, error)
}

// PriceOracle supplies the current unit price of a ticket.
type PriceOracle interface {
	CurrentUnitPrice(ctx context.Context) (payment.Amount, error)
}

// Channel is the cross-domain routing transport.
type Channel interface {
	QuoteFee(ctx context.Context, destination string, payload []byte) (payment.Amount, error)
	// Send hands payload to the transport and returns the message id. The
	// message must not become deliverable unless the enclosing transaction commits.
	Send(ctx context.Context, destination string, payload []byte, fee payment.Amount) (string, error)
}
