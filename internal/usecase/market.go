package usecase

import (
	"context"
	"fmt"
	"math"
	"strings"

	"reflights/internal/domain"
	"reflights/internal/domain/event"
	"reflights/internal/domain/listing"
	"reflights/internal/domain/payment"
)

// Market holds resale listings for tickets owned through the Registry.
type Market struct {
	*core
	registry *Registry
}

// maxListingPrice keeps price * FeeNumerator within int64.
const maxListingPrice = payment.Amount(math.MaxInt64 / payment.FeeNumerator)

func (m *Market) List(ctx context.Context, id uint64, price payment.Amount, caller string) error {
	err := m.Tx.WithinTransaction(ctx, func(txCtx context.Context) error {
		t, err := m.Tickets.Get(txCtx, id)
		if err != nil {
			return err
		}
		if t.Owner != caller {
			return fmt.Errorf("%w: %s does not own ticket %d", domain.ErrAuthorization, caller, id)
		}
		if t.Used {
			return fmt.Errorf("%w: %d", domain.ErrAlreadyUsed, id)
		}
		if !t.Resellable {
			return fmt.Errorf("%w: %d", domain.ErrNotResellable, id)
		}
		now := m.Now()
		if t.Departed(now) {
			return fmt.Errorf("%w: ticket %d", domain.ErrFlightDeparted, id)
		}
		active, err := m.Listings.GetActive(txCtx, id)
		if err != nil {
			return fmt.Errorf("get listing: %w", err)
		}
		if active != nil {
			return fmt.Errorf("%w: %d", domain.ErrAlreadyListed, id)
		}
		if price <= 0 || price > maxListingPrice {
			return fmt.Errorf("%w: price %d out of range", domain.ErrValidation, price)
		}

		if err := m.Listings.Create(txCtx, &listing.Listing{
			TicketID:      id,
			Price:         price,
			Seller:        caller,
			Active:        true,
			ListedAt:      now,
			DepartureTime: t.Metadata.DepartureTime,
		}); err != nil {
			return err
		}
		return m.emit(txCtx, event.TypeTicketListed, TicketCorrelationID(id), event.TicketListed{
			TicketID: id,
			Seller:   caller,
			Price:    price,
		})
	})
	if err != nil {
		m.rejected("list", err, "ticket_id", id)
		return err
	}
	m.Logger.Info("Ticket listed", "ticket_id", id, "seller", caller, "price", price)
	return nil
}

type BuyResult struct {
	Seller         string         `json:"seller"`
	Price          payment.Amount `json:"price"`
	SellerProceeds payment.Amount `json:"seller_proceeds"`
	Fee            payment.Amount `json:"fee"`
	Refund         payment.Amount `json:"refund"`
}

// Buy settles an active listing. The listing is closed, ownership moves to
// buyer, the seller is paid the price less the platform fee, the fee goes
// to the treasury and any overpayment is refunded, all in one transaction.
func (m *Market) Buy(ctx context.Context, id uint64, buyer string, paid payment.Amount) (BuyResult, error) {
	buyer = strings.TrimSpace(buyer)
	var res BuyResult
	err := m.Tx.WithinTransaction(ctx, func(txCtx context.Context) error {
		if err := checkIdentity("buyer", buyer); err != nil {
			return err
		}
		l, err := m.Listings.GetActive(txCtx, id)
		if err != nil {
			return fmt.Errorf("get listing: %w", err)
		}
		if l == nil {
			return fmt.Errorf("%w: ticket %d", domain.ErrListingInactive, id)
		}
		t, err := m.Tickets.Get(txCtx, id)
		if err != nil {
			return err
		}
		if t.Owner != l.Seller {
			return fmt.Errorf("%w: seller no longer owns ticket %d", domain.ErrListingInactive, id)
		}
		if paid < l.Price {
			return fmt.Errorf("%w: paid %d, price is %d", domain.ErrPayment, paid, l.Price)
		}
		if t.Used {
			return fmt.Errorf("%w: %d", domain.ErrAlreadyUsed, id)
		}
		now := m.Now()
		if t.Departed(now) {
			return fmt.Errorf("%w: ticket %d", domain.ErrFlightDeparted, id)
		}

		if _, err := m.Listings.Close(txCtx, id, listing.ReasonSold, now); err != nil {
			return fmt.Errorf("close listing: %w", err)
		}
		if err := m.registry.transfer(txCtx, t, buyer); err != nil {
			return err
		}

		fee := payment.PlatformFee(l.Price)
		res = BuyResult{
			Seller:         l.Seller,
			Price:          l.Price,
			SellerProceeds: l.Price - fee,
			Fee:            fee,
			Refund:         paid - l.Price,
		}
		if err := m.credit(txCtx, l.Seller, res.SellerProceeds, payment.KindSaleProceeds, idRef(id)); err != nil {
			return err
		}
		if err := m.credit(txCtx, payment.TreasuryAccount, fee, payment.KindPlatformFee, idRef(id)); err != nil {
			return err
		}
		if err := m.credit(txCtx, buyer, res.Refund, payment.KindPurchaseRefund, idRef(id)); err != nil {
			return err
		}

		return m.emit(txCtx, event.TypeTicketResold, TicketCorrelationID(id), event.TicketResold{
			TicketID: id,
			Seller:   l.Seller,
			Buyer:    buyer,
			Price:    l.Price,
			Fee:      fee,
		})
	})
	if err != nil {
		m.rejected("buy", err, "ticket_id", id, "buyer", buyer)
		return BuyResult{}, err
	}

	ticketsResold.Inc()
	m.Logger.Info("Ticket resold", "ticket_id", id, "seller", res.Seller, "buyer", buyer, "price", res.Price, "fee", res.Fee)
	return res, nil
}

func (m *Market) Cancel(ctx context.Context, id uint64, caller string) error {
	err := m.Tx.WithinTransaction(ctx, func(txCtx context.Context) error {
		t, err := m.Tickets.Get(txCtx, id)
		if err != nil {
			return err
		}
		if t.Owner != caller {
			return fmt.Errorf("%w: %s does not own ticket %d", domain.ErrAuthorization, caller, id)
		}
		closed, err := m.Listings.Close(txCtx, id, listing.ReasonCancelled, m.Now())
		if err != nil {
			return fmt.Errorf("close listing: %w", err)
		}
		if !closed {
			return fmt.Errorf("%w: %d", domain.ErrNotListed, id)
		}
		return m.emit(txCtx, event.TypeListingCancelled, TicketCorrelationID(id), event.ListingCancelled{
			TicketID: id,
			Seller:   caller,
		})
	})
	if err != nil {
		m.rejected("cancel", err, "ticket_id", id)
		return err
	}
	m.Logger.Info("Listing cancelled", "ticket_id", id, "seller", caller)
	return nil
}

// GetListing returns the latest listing for the ticket. Active reflects
// whether it can still be bought now.
func (m *Market) GetListing(ctx context.Context, id uint64) (*listing.Listing, error) {
	l, err := m.Listings.Latest(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get listing: %w", err)
	}
	if l == nil {
		return nil, fmt.Errorf("%w: %d", domain.ErrNotListed, id)
	}
	l.Active = l.ActiveAt(m.Now())
	return l, nil
}

// ActiveListings returns the ids of all purchasable listings in ascending order.
func (m *Market) ActiveListings(ctx context.Context) ([]uint64, error) {
	ids, err := m.Listings.ActiveTicketIDs(ctx, m.Now())
	if err != nil {
		return nil, fmt.Errorf("list active listings: %w", err)
	}
	return ids, nil
}
