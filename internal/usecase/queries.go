package usecase

import (
	"context"
	"errors"
	"fmt"

	"reflights/internal/domain"
	"reflights/internal/domain/inbox"
	"reflights/internal/domain/listing"
	"reflights/internal/domain/outbox"
	"reflights/internal/domain/payment"
	"reflights/internal/domain/ticket"
)

// TicketTrail is everything this domain knows about one ticket id, including
// ids that have since relocated away.
type TicketTrail struct {
	Ticket  *ticket.Ticket   `json:"ticket,omitempty"`
	Listing *listing.Listing `json:"listing,omitempty"`
	Outbox  []*outbox.Event  `json:"outbox"`
	Inbox   []*inbox.Event   `json:"inbox"`
}

type Queries struct {
	*core
}

func (q *Queries) Balance(ctx context.Context, account string) (payment.Amount, error) {
	bal, err := q.Ledger.Balance(ctx, account)
	if err != nil {
		return 0, fmt.Errorf("get balance: %w", err)
	}
	return bal, nil
}

func (q *Queries) GetTicketTrail(ctx context.Context, id uint64) (*TicketTrail, error) {
	t, err := q.Tickets.Get(ctx, id)
	if err != nil && !errors.Is(err, domain.ErrTicketNotFound) {
		return nil, fmt.Errorf("get ticket: %w", err)
	}

	l, err := q.Listings.Latest(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get listing: %w", err)
	}
	if l != nil {
		l.Active = l.ActiveAt(q.Now())
	}

	correlationID := TicketCorrelationID(id)
	outboxEvents, err := q.Outbox.ListByCorrelationID(ctx, correlationID)
	if err != nil {
		return nil, fmt.Errorf("get outbox events: %w", err)
	}
	inboxEvents, err := q.Inbox.ListByCorrelationID(ctx, correlationID)
	if err != nil {
		return nil, fmt.Errorf("get inbox events: %w", err)
	}

	if t == nil && len(outboxEvents) == 0 && len(inboxEvents) == 0 {
		return nil, fmt.Errorf("%w: %d", domain.ErrTicketNotFound, id)
	}
	return &TicketTrail{
		Ticket:  t,
		Listing: l,
		Outbox:  outboxEvents,
		Inbox:   inboxEvents,
	}, nil
}
