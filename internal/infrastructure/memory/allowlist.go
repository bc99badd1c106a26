package memory

import "context"

type AllowlistRepository struct {
	s *Store
}

func (r *AllowlistRepository) SetDomain(ctx context.Context, domainID string, allowed bool) error {
	return r.s.update(ctx, func(undo func(func())) error {
		setFlag(r.s.domains, domainID, allowed, undo)
		return nil
	})
}

func (r *AllowlistRepository) DomainAllowed(ctx context.Context, domainID string) (bool, error) {
	var ok bool
	err := r.s.view(ctx, func() error {
		ok = r.s.domains[domainID]
		return nil
	})
	return ok, err
}

func (r *AllowlistRepository) SetSender(ctx context.Context, sender string, allowed bool) error {
	return r.s.update(ctx, func(undo func(func())) error {
		setFlag(r.s.senders, sender, allowed, undo)
		return nil
	})
}

func (r *AllowlistRepository) SenderAllowed(ctx context.Context, sender string) (bool, error) {
	var ok bool
	err := r.s.view(ctx, func() error {
		ok = r.s.senders[sender]
		return nil
	})
	return ok, err
}

func setFlag(m map[string]bool, key string, allowed bool, undo func(func())) {
	prev, had := m[key]
	if allowed {
		m[key] = true
	} else {
		delete(m, key)
	}
	undo(func() {
		if had {
			m[key] = prev
		} else {
			delete(m, key)
		}
	})
}
