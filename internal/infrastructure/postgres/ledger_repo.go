package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"reflights/internal/domain"
	"reflights/internal/domain/payment"
)

type LedgerRepository struct {
	pool *pgxpool.Pool
}

func NewLedgerRepository(pool *pgxpool.Pool) *LedgerRepository {
	return &LedgerRepository{pool: pool}
}

// Append applies the entry to the balance and journals it. Debits only
// succeed when the balance covers them.
func (r *LedgerRepository) Append(ctx context.Context, e payment.Entry) error {
	const credit = `
		INSERT INTO balances (account, balance) VALUES ($1, $2)
		ON CONFLICT (account) DO UPDATE SET balance = balances.balance + EXCLUDED.balance
	`
	const debit = `
		UPDATE balances SET balance = balance + $2
		WHERE account = $1 AND balance + $2 >= 0
	`
	const journal = `
		INSERT INTO ledger_entries (id, account, amount, kind, ticket_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	q := conn(ctx, r.pool)
	if e.Amount < 0 {
		tag, err := q.Exec(ctx, debit, e.Account, int64(e.Amount))
		if err != nil {
			return fmt.Errorf("debit %s: %w", e.Account, err)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("%w: account %s cannot cover %d", domain.ErrPayment, e.Account, -e.Amount)
		}
	} else if _, err := q.Exec(ctx, credit, e.Account, int64(e.Amount)); err != nil {
		return fmt.Errorf("credit %s: %w", e.Account, err)
	}

	var ticketID *int64
	if e.TicketID != nil {
		id := int64(*e.TicketID)
		ticketID = &id
	}
	if _, err := q.Exec(ctx, journal, e.ID, e.Account, int64(e.Amount), e.Kind, ticketID, e.At); err != nil {
		return fmt.Errorf("insert ledger entry: %w", err)
	}
	return nil
}

func (r *LedgerRepository) Balance(ctx context.Context, account string) (payment.Amount, error) {
	var bal int64
	err := conn(ctx, r.pool).QueryRow(ctx, `SELECT balance FROM balances WHERE account = $1`, account).Scan(&bal)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get balance: %w", err)
	}
	return payment.Amount(bal), nil
}
