package memory

import (
	"context"
	"fmt"

	"reflights/internal/domain"
	"reflights/internal/domain/payment"
)

type LedgerRepository struct {
	s *Store
}

func (r *LedgerRepository) Append(ctx context.Context, e payment.Entry) error {
	return r.s.update(ctx, func(undo func(func())) error {
		prev, had := r.s.balances[e.Account]
		next := prev + e.Amount
		if next < 0 {
			return fmt.Errorf("%w: account %s balance %d cannot cover %d", domain.ErrPayment, e.Account, prev, -e.Amount)
		}
		r.s.balances[e.Account] = next
		r.s.entries = append(r.s.entries, e)
		undo(func() {
			r.s.entries = r.s.entries[:len(r.s.entries)-1]
			if had {
				r.s.balances[e.Account] = prev
			} else {
				delete(r.s.balances, e.Account)
			}
		})
		return nil
	})
}

func (r *LedgerRepository) Balance(ctx context.Context, account string) (payment.Amount, error) {
	var bal payment.Amount
	err := r.s.view(ctx, func() error {
		bal = r.s.balances[account]
		return nil
	})
	return bal, err
}

// Entries returns a copy of the journal, oldest first.
func (r *LedgerRepository) Entries(ctx context.Context) []payment.Entry {
	var out []payment.Entry
	_ = r.s.view(ctx, func() error {
		out = append(out, r.s.entries...)
		return nil
	})
	return out
}
