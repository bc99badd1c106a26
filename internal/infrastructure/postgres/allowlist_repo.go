package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	allowDomain = "domain"
	allowSender = "sender"
)

type AllowlistRepository struct {
	pool *pgxpool.Pool
}

func NewAllowlistRepository(pool *pgxpool.Pool) *AllowlistRepository {
	return &AllowlistRepository{pool: pool}
}

func (r *AllowlistRepository) SetDomain(ctx context.Context, domainID string, allowed bool) error {
	return r.set(ctx, allowDomain, domainID, allowed)
}

func (r *AllowlistRepository) DomainAllowed(ctx context.Context, domainID string) (bool, error) {
	return r.get(ctx, allowDomain, domainID)
}

func (r *AllowlistRepository) SetSender(ctx context.Context, sender string, allowed bool) error {
	return r.set(ctx, allowSender, sender, allowed)
}

func (r *AllowlistRepository) SenderAllowed(ctx context.Context, sender string) (bool, error) {
	return r.get(ctx, allowSender, sender)
}

func (r *AllowlistRepository) set(ctx context.Context, kind, name string, allowed bool) error {
	const sql = `
		INSERT INTO allowlist (kind, name, allowed, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (kind, name) DO UPDATE SET allowed = EXCLUDED.allowed, updated_at = NOW()
	`
	if _, err := conn(ctx, r.pool).Exec(ctx, sql, kind, name, allowed); err != nil {
		return fmt.Errorf("set %s allowlist: %w", kind, err)
	}
	return nil
}

func (r *AllowlistRepository) get(ctx context.Context, kind, name string) (bool, error) {
	var allowed bool
	err := conn(ctx, r.pool).QueryRow(ctx,
		`SELECT allowed FROM allowlist WHERE kind = $1 AND name = $2`, kind, name,
	).Scan(&allowed)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("get %s allowlist: %w", kind, err)
	}
	return allowed, nil
}
