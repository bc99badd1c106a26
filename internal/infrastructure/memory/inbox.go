package memory

import (
	"context"

	"reflights/internal/domain/inbox"
)

type InboxRepository struct {
	s *Store
}

func (r *InboxRepository) SaveIfNotExists(ctx context.Context, consumer, eventID, eventType, correlationID string) (bool, error) {
	key := consumer + "\x00" + eventID
	var saved bool
	err := r.s.update(ctx, func(undo func(func())) error {
		if _, ok := r.s.inbox[key]; ok {
			return nil
		}
		e := &inbox.Event{
			Consumer:      consumer,
			EventID:       eventID,
			EventType:     eventType,
			CorrelationID: correlationID,
			ProcessedAt:   r.s.now(),
		}
		r.s.inbox[key] = e
		r.s.inboxOrder = append(r.s.inboxOrder, e)
		saved = true
		undo(func() {
			delete(r.s.inbox, key)
			r.s.inboxOrder = r.s.inboxOrder[:len(r.s.inboxOrder)-1]
		})
		return nil
	})
	return saved, err
}

func (r *InboxRepository) ListByCorrelationID(ctx context.Context, correlationID string) ([]*inbox.Event, error) {
	var out []*inbox.Event
	err := r.s.view(ctx, func() error {
		for _, e := range r.s.inboxOrder {
			if e.CorrelationID == correlationID {
				cp := *e
				out = append(out, &cp)
			}
		}
		return nil
	})
	return out, err
}
