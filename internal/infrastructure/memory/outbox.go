package memory

import (
	"context"

	"reflights/internal/domain/outbox"
)

type OutboxRepository struct {
	s *Store
}

func (r *OutboxRepository) Create(ctx context.Context, e *outbox.Event) error {
	return r.s.update(ctx, func(undo func(func())) error {
		cp := *e
		if cp.Producer == "" {
			cp.Producer = "unknown"
		}
		cp.UpdatedAt = r.s.now()
		r.s.outbox = append(r.s.outbox, &cp)
		undo(func() { r.s.outbox = r.s.outbox[:len(r.s.outbox)-1] })
		return nil
	})
}

// FetchBatch claims up to limit new events, oldest first, and marks them processing.
func (r *OutboxRepository) FetchBatch(ctx context.Context, limit int) ([]*outbox.Event, error) {
	var out []*outbox.Event
	err := r.s.update(ctx, func(undo func(func())) error {
		for _, e := range r.s.outbox {
			if len(out) == limit {
				break
			}
			if e.Status != outbox.StatusNew {
				continue
			}
			claimed := e
			claimed.Status = outbox.StatusProcessing
			claimed.UpdatedAt = r.s.now()
			undo(func() { claimed.Status = outbox.StatusNew })
			cp := *claimed
			out = append(out, &cp)
		}
		return nil
	})
	return out, err
}

func (r *OutboxRepository) MarkProcessed(ctx context.Context, ids []string) error {
	return r.setStatus(ctx, ids, outbox.StatusProcessed)
}

func (r *OutboxRepository) MarkFailed(ctx context.Context, ids []string) error {
	return r.setStatus(ctx, ids, outbox.StatusNew)
}

func (r *OutboxRepository) setStatus(ctx context.Context, ids []string, status string) error {
	want := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		want[id] = struct{}{}
	}
	return r.s.update(ctx, func(undo func(func())) error {
		for _, e := range r.s.outbox {
			if _, ok := want[e.ID]; !ok {
				continue
			}
			ev, prev := e, e.Status
			ev.Status = status
			ev.UpdatedAt = r.s.now()
			undo(func() { ev.Status = prev })
		}
		return nil
	})
}

func (r *OutboxRepository) ListByCorrelationID(ctx context.Context, correlationID string) ([]*outbox.Event, error) {
	var out []*outbox.Event
	err := r.s.view(ctx, func() error {
		for _, e := range r.s.outbox {
			if e.CorrelationID == correlationID {
				cp := *e
				out = append(out, &cp)
			}
		}
		return nil
	})
	return out, err
}

// All returns every outbox event in insertion order.
func (r *OutboxRepository) All(ctx context.Context) []*outbox.Event {
	var out []*outbox.Event
	_ = r.s.view(ctx, func() error {
		for _, e := range r.s.outbox {
			cp := *e
			out = append(out, &cp)
		}
		return nil
	})
	return out
}
