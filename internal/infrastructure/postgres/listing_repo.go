package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"reflights/internal/domain"
	"reflights/internal/domain/listing"
	"reflights/internal/domain/payment"
)

type ListingRepository struct {
	pool *pgxpool.Pool
}

func NewListingRepository(pool *pgxpool.Pool) *ListingRepository {
	return &ListingRepository{pool: pool}
}

const listingColumns = `seq, ticket_id, price, seller, active, listed_at, departure_time, closed_at, close_reason`

func (r *ListingRepository) Create(ctx context.Context, l *listing.Listing) error {
	const sql = `
		INSERT INTO listings (ticket_id, price, seller, active, listed_at, departure_time, close_reason)
		VALUES ($1, $2, $3, $4, $5, $6, '')
		RETURNING seq
	`
	var seq int64
	err := conn(ctx, r.pool).QueryRow(ctx, sql,
		int64(l.TicketID), int64(l.Price), l.Seller, l.Active, l.ListedAt, l.DepartureTime,
	).Scan(&seq)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: ticket %d", domain.ErrAlreadyListed, l.TicketID)
	}
	if err != nil {
		return fmt.Errorf("insert listing: %w", err)
	}
	l.Seq = uint64(seq)
	return nil
}

func (r *ListingRepository) GetActive(ctx context.Context, ticketID uint64) (*listing.Listing, error) {
	sql := `SELECT ` + listingColumns + ` FROM listings WHERE ticket_id = $1 AND active`
	return r.one(ctx, sql, ticketID)
}

func (r *ListingRepository) Latest(ctx context.Context, ticketID uint64) (*listing.Listing, error) {
	sql := `SELECT ` + listingColumns + ` FROM listings WHERE ticket_id = $1 ORDER BY seq DESC LIMIT 1`
	return r.one(ctx, sql, ticketID)
}

func (r *ListingRepository) Close(ctx context.Context, ticketID uint64, reason string, at time.Time) (bool, error) {
	const sql = `
		UPDATE listings
		SET active = FALSE, closed_at = $2, close_reason = $3
		WHERE ticket_id = $1 AND active
	`
	tag, err := conn(ctx, r.pool).Exec(ctx, sql, int64(ticketID), at, reason)
	if err != nil {
		return false, fmt.Errorf("close listing: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *ListingRepository) ActiveTicketIDs(ctx context.Context, now time.Time) ([]uint64, error) {
	const sql = `
		SELECT ticket_id
		FROM listings
		WHERE active AND departure_time > $1
		ORDER BY ticket_id ASC
	`
	rows, err := conn(ctx, r.pool).Query(ctx, sql, now)
	if err != nil {
		return nil, fmt.Errorf("query active listings: %w", err)
	}
	defer rows.Close()

	ids := []uint64{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan listing: %w", err)
		}
		ids = append(ids, uint64(id))
	}
	return ids, rows.Err()
}

func (r *ListingRepository) one(ctx context.Context, sql string, ticketID uint64) (*listing.Listing, error) {
	var (
		l               listing.Listing
		seq, tid, price int64
	)
	err := conn(ctx, r.pool).QueryRow(ctx, sql, int64(ticketID)).Scan(
		&seq, &tid, &price, &l.Seller, &l.Active, &l.ListedAt, &l.DepartureTime, &l.ClosedAt, &l.CloseReason,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get listing: %w", err)
	}
	l.Seq, l.TicketID, l.Price = uint64(seq), uint64(tid), payment.Amount(price)
	return &l, nil
}
