package memory

import (
	"context"
	"fmt"
	"sort"

	"reflights/internal/domain"
	"reflights/internal/domain/ticket"
)

type TicketRepository struct {
	s *Store
}

func (r *TicketRepository) NextID(ctx context.Context) (uint64, error) {
	var id uint64
	err := r.s.update(ctx, func(undo func(func())) error {
		prev := r.s.nextID
		next := prev
		for {
			if _, taken := r.s.seen[next]; !taken {
				break
			}
			next++
		}
		id = next
		r.s.nextID = next + 1
		undo(func() { r.s.nextID = prev })
		return nil
	})
	return id, err
}

func (r *TicketRepository) Create(ctx context.Context, t *ticket.Ticket) error {
	return r.s.update(ctx, func(undo func(func())) error {
		if _, live := r.s.tickets[t.ID]; live {
			return fmt.Errorf("%w: %d", domain.ErrIDCollision, t.ID)
		}
		cp := *t
		r.s.tickets[t.ID] = &cp
		undo(func() { delete(r.s.tickets, t.ID) })
		if _, ok := r.s.seen[t.ID]; !ok {
			r.s.seen[t.ID] = struct{}{}
			undo(func() { delete(r.s.seen, t.ID) })
		}
		return nil
	})
}

func (r *TicketRepository) Get(ctx context.Context, id uint64) (*ticket.Ticket, error) {
	var out *ticket.Ticket
	err := r.s.view(ctx, func() error {
		t, ok := r.s.tickets[id]
		if !ok {
			return fmt.Errorf("%w: %d", domain.ErrTicketNotFound, id)
		}
		cp := *t
		out = &cp
		return nil
	})
	return out, err
}

func (r *TicketRepository) Update(ctx context.Context, t *ticket.Ticket) error {
	return r.s.update(ctx, func(undo func(func())) error {
		prev, ok := r.s.tickets[t.ID]
		if !ok {
			return fmt.Errorf("%w: %d", domain.ErrTicketNotFound, t.ID)
		}
		cp := *t
		r.s.tickets[t.ID] = &cp
		undo(func() { r.s.tickets[t.ID] = prev })
		return nil
	})
}

func (r *TicketRepository) Delete(ctx context.Context, id uint64) error {
	return r.s.update(ctx, func(undo func(func())) error {
		prev, ok := r.s.tickets[id]
		if !ok {
			return fmt.Errorf("%w: %d", domain.ErrTicketNotFound, id)
		}
		delete(r.s.tickets, id)
		undo(func() { r.s.tickets[id] = prev })
		return nil
	})
}

func (r *TicketRepository) Exists(ctx context.Context, id uint64) (bool, error) {
	var ok bool
	err := r.s.view(ctx, func() error {
		_, ok = r.s.tickets[id]
		return nil
	})
	return ok, err
}

func (r *TicketRepository) List(ctx context.Context, limit int) ([]*ticket.Ticket, error) {
	var out []*ticket.Ticket
	err := r.s.view(ctx, func() error {
		ids := make([]uint64, 0, len(r.s.tickets))
		for id := range r.s.tickets {
			ids = append(ids, id)
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
		for _, id := range ids {
			if limit > 0 && len(out) == limit {
				break
			}
			cp := *r.s.tickets[id]
			out = append(out, &cp)
		}
		return nil
	})
	return out, err
}
