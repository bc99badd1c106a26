package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"reflights/internal/domain"
	"reflights/internal/domain/event"
	"reflights/internal/domain/listing"
	"reflights/internal/domain/payment"
	"reflights/internal/domain/ticket"
)

// Registry is the source of truth for ticket identity and ownership.
type Registry struct {
	*core
}

type MintParams struct {
	// Payer receives the refund of any overpayment. Defaults to To.
	Payer    string
	To       string
	Metadata ticket.Metadata
	Paid     payment.Amount
}

type MintResult struct {
	TicketID uint64         `json:"ticket_id"`
	Price    payment.Amount `json:"price"`
	Refund   payment.Amount `json:"refund"`
}

func (r *Registry) Mint(ctx context.Context, params MintParams) (MintResult, error) {
	params.To = strings.TrimSpace(params.To)
	params.Payer = strings.TrimSpace(params.Payer)
	if params.Payer == "" {
		params.Payer = params.To
	}

	var res MintResult
	err := r.Tx.WithinTransaction(ctx, func(txCtx context.Context) error {
		now := r.Now()
		if err := checkIdentity("recipient", params.To); err != nil {
			return err
		}
		if err := checkIdentity("payer", params.Payer); err != nil {
			return err
		}
		if !params.Metadata.DepartureTime.After(now) {
			return fmt.Errorf("%w: departure time must be in the future", domain.ErrValidation)
		}
		if !params.Metadata.ArrivalTime.After(params.Metadata.DepartureTime) {
			return fmt.Errorf("%w: arrival time must be after departure time", domain.ErrValidation)
		}

		price, err := r.Oracle.CurrentUnitPrice(txCtx)
		if err != nil {
			return fmt.Errorf("quote unit price: %w", err)
		}
		if params.Paid < price {
			return fmt.Errorf("%w: paid %d, price is %d", domain.ErrPayment, params.Paid, price)
		}

		id, err := r.Tickets.NextID(txCtx)
		if err != nil {
			return fmt.Errorf("allocate ticket id: %w", err)
		}

		t := &ticket.Ticket{
			ID:            id,
			Owner:         params.To,
			Metadata:      params.Metadata,
			Price:         price,
			Resellable:    true,
			OriginalBuyer: params.To,
			ListedAt:      now,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if err := r.Tickets.Create(txCtx, t); err != nil {
			return err
		}

		if err := r.credit(txCtx, payment.TreasuryAccount, price, payment.KindMintProceeds, idRef(id)); err != nil {
			return err
		}
		refund := params.Paid - price
		if err := r.credit(txCtx, params.Payer, refund, payment.KindMintRefund, idRef(id)); err != nil {
			return err
		}

		res = MintResult{TicketID: id, Price: price, Refund: refund}
		return r.emit(txCtx, event.TypeTicketMinted, TicketCorrelationID(id), event.TicketMinted{
			TicketID:     id,
			Owner:        t.Owner,
			FlightNumber: t.Metadata.FlightNumber,
			Price:        price,
		})
	})
	if err != nil {
		r.rejected("mint", err, "to", params.To)
		return MintResult{}, err
	}

	ticketsMinted.Inc()
	r.Logger.Info("Ticket minted", "ticket_id", res.TicketID, "owner", params.To, "price", res.Price, "refund", res.Refund)
	return res, nil
}

// Transfer hands the ticket from its owner to another holder. Any active
// listing is closed, since it was an offer by the previous owner.
func (r *Registry) Transfer(ctx context.Context, id uint64, from, to string) error {
	to = strings.TrimSpace(to)
	err := r.Tx.WithinTransaction(ctx, func(txCtx context.Context) error {
		if err := checkIdentity("recipient", to); err != nil {
			return err
		}
		t, err := r.Tickets.Get(txCtx, id)
		if err != nil {
			return err
		}
		if t.Owner != from {
			return fmt.Errorf("%w: %s does not own ticket %d", domain.ErrAuthorization, from, id)
		}
		if _, err := r.Listings.Close(txCtx, id, listing.ReasonTransferred, r.Now()); err != nil {
			return fmt.Errorf("close listing: %w", err)
		}
		return r.transfer(txCtx, t, to)
	})
	if err != nil {
		r.rejected("transfer", err, "ticket_id", id)
		return err
	}
	r.Logger.Info("Ticket transferred", "ticket_id", id, "from", from, "to", to)
	return nil
}

func (r *Registry) transfer(ctx context.Context, t *ticket.Ticket, to string) error {
	from := t.Owner
	t.Owner = to
	t.UpdatedAt = r.Now()
	if err := r.Tickets.Update(ctx, t); err != nil {
		return fmt.Errorf("update ticket: %w", err)
	}
	return r.emit(ctx, event.TypeTicketTransferred, TicketCorrelationID(t.ID), event.TicketTransferred{
		TicketID: t.ID,
		From:     from,
		To:       to,
	})
}

// MarkUsed boards the ticket. It is allowed from one hour before departure
// until arrival, and closes any active listing.
func (r *Registry) MarkUsed(ctx context.Context, id uint64, caller string) error {
	err := r.Tx.WithinTransaction(ctx, func(txCtx context.Context) error {
		t, err := r.Tickets.Get(txCtx, id)
		if err != nil {
			return err
		}
		if t.Owner != caller {
			return fmt.Errorf("%w: %s does not own ticket %d", domain.ErrAuthorization, caller, id)
		}
		if t.Used {
			return fmt.Errorf("%w: %d", domain.ErrAlreadyUsed, id)
		}
		now := r.Now()
		if now.Before(t.Metadata.DepartureTime.Add(-ticket.BoardingWindow)) {
			return fmt.Errorf("%w: boarding opens at %s", domain.ErrTooEarly, t.Metadata.DepartureTime.Add(-ticket.BoardingWindow).Format(time.RFC3339))
		}
		if now.After(t.Metadata.ArrivalTime) {
			return fmt.Errorf("%w: flight arrived at %s", domain.ErrValidation, t.Metadata.ArrivalTime.Format(time.RFC3339))
		}

		t.Used = true
		t.UpdatedAt = now
		if err := r.Tickets.Update(txCtx, t); err != nil {
			return fmt.Errorf("update ticket: %w", err)
		}
		if _, err := r.Listings.Close(txCtx, id, listing.ReasonUsed, now); err != nil {
			return fmt.Errorf("close listing: %w", err)
		}
		return r.emit(txCtx, event.TypeTicketUsed, TicketCorrelationID(id), event.TicketUsed{
			TicketID: id,
			Owner:    caller,
			UsedAt:   now,
		})
	})
	if err != nil {
		r.rejected("mark_used", err, "ticket_id", id)
		return err
	}
	ticketsUsed.Inc()
	r.Logger.Info("Ticket used", "ticket_id", id, "owner", caller)
	return nil
}

func (r *Registry) setResellable(ctx context.Context, id uint64, flag bool) error {
	t, err := r.Tickets.Get(ctx, id)
	if err != nil {
		return err
	}
	t.Resellable = flag
	t.UpdatedAt = r.Now()
	if err := r.Tickets.Update(ctx, t); err != nil {
		return fmt.Errorf("update ticket: %w", err)
	}
	return nil
}

// destroy removes a live, unused ticket owned by caller and returns the
// record it removed. Only the outbound relocation path calls it.
func (r *Registry) destroy(ctx context.Context, id uint64, caller string) (*ticket.Ticket, error) {
	t, err := r.Tickets.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if t.Owner != caller {
		return nil, fmt.Errorf("%w: %s does not own ticket %d", domain.ErrAuthorization, caller, id)
	}
	if t.Used {
		return nil, fmt.Errorf("%w: %d", domain.ErrAlreadyUsed, id)
	}
	if err := r.Tickets.Delete(ctx, id); err != nil {
		return nil, fmt.Errorf("delete ticket: %w", err)
	}
	return t, nil
}

// recreate stores a ticket that arrived from another domain under its
// original id. A live ticket with the same id is never overwritten.
func (r *Registry) recreate(ctx context.Context, t *ticket.Ticket) error {
	live, err := r.Tickets.Exists(ctx, t.ID)
	if err != nil {
		return fmt.Errorf("check ticket %d: %w", t.ID, err)
	}
	if live {
		return fmt.Errorf("%w: %d", domain.ErrIDCollision, t.ID)
	}
	now := r.Now()
	t.CreatedAt = now
	t.UpdatedAt = now
	return r.Tickets.Create(ctx, t)
}

func (r *Registry) OwnerOf(ctx context.Context, id uint64) (string, error) {
	t, err := r.Tickets.Get(ctx, id)
	if err != nil {
		return "", err
	}
	return t.Owner, nil
}

func (r *Registry) Get(ctx context.Context, id uint64) (*ticket.Ticket, error) {
	return r.Tickets.Get(ctx, id)
}

func (r *Registry) Exists(ctx context.Context, id uint64) (bool, error) {
	return r.Tickets.Exists(ctx, id)
}
