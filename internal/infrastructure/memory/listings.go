package memory

import (
	"context"
	"fmt"
	"time"

	"reflights/internal/domain"
	"reflights/internal/domain/listing"
)

type ListingRepository struct {
	s *Store
}

func (r *ListingRepository) Create(ctx context.Context, l *listing.Listing) error {
	return r.s.update(ctx, func(undo func(func())) error {
		if _, found := r.s.active.Get(l.TicketID); found {
			return fmt.Errorf("%w: %d", domain.ErrAlreadyListed, l.TicketID)
		}
		prevSeq := r.s.listingSeq
		r.s.listingSeq++
		cp := *l
		cp.Seq = r.s.listingSeq
		cp.Active = true
		l.Seq = cp.Seq
		r.s.listings[l.TicketID] = append(r.s.listings[l.TicketID], &cp)
		r.s.active.Put(l.TicketID, &cp)
		undo(func() {
			r.s.active.Remove(l.TicketID)
			hist := r.s.listings[l.TicketID]
			r.s.listings[l.TicketID] = hist[:len(hist)-1]
			r.s.listingSeq = prevSeq
		})
		return nil
	})
}

func (r *ListingRepository) GetActive(ctx context.Context, ticketID uint64) (*listing.Listing, error) {
	var out *listing.Listing
	err := r.s.view(ctx, func() error {
		if v, found := r.s.active.Get(ticketID); found {
			cp := *v.(*listing.Listing)
			out = &cp
		}
		return nil
	})
	return out, err
}

func (r *ListingRepository) Latest(ctx context.Context, ticketID uint64) (*listing.Listing, error) {
	var out *listing.Listing
	err := r.s.view(ctx, func() error {
		hist := r.s.listings[ticketID]
		if len(hist) > 0 {
			cp := *hist[len(hist)-1]
			out = &cp
		}
		return nil
	})
	return out, err
}

func (r *ListingRepository) Close(ctx context.Context, ticketID uint64, reason string, at time.Time) (bool, error) {
	var closed bool
	err := r.s.update(ctx, func(undo func(func())) error {
		v, found := r.s.active.Get(ticketID)
		if !found {
			return nil
		}
		l := v.(*listing.Listing)
		prev := *l
		closedAt := at
		l.Active = false
		l.ClosedAt = &closedAt
		l.CloseReason = reason
		r.s.active.Remove(ticketID)
		closed = true
		undo(func() {
			*l = prev
			r.s.active.Put(ticketID, l)
		})
		return nil
	})
	return closed, err
}

func (r *ListingRepository) ActiveTicketIDs(ctx context.Context, now time.Time) ([]uint64, error) {
	var out []uint64
	err := r.s.view(ctx, func() error {
		it := r.s.active.Iterator()
		for it.Next() {
			if l := it.Value().(*listing.Listing); l.ActiveAt(now) {
				out = append(out, it.Key().(uint64))
			}
		}
		return nil
	})
	return out, err
}
