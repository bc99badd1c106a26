package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"reflights/internal/domain"
	"reflights/internal/domain/payment"
	"reflights/internal/domain/ticket"
)

type TicketRepository struct {
	pool *pgxpool.Pool
}

func NewTicketRepository(pool *pgxpool.Pool) *TicketRepository {
	return &TicketRepository{pool: pool}
}

const ticketColumns = `
	id, owner,
	flight_number, departure, destination, departure_time, arrival_time, seat_class,
	price, resellable, used, original_buyer, listed_at, created_at, updated_at
`

// NextID picks the first id at or above the stored cursor that ticket_ids
// has never recorded, then advances the cursor past it.
func (r *TicketRepository) NextID(ctx context.Context) (uint64, error) {
	const pick = `
		WITH start_at AS (
			SELECT COALESCE((SELECT next_id FROM ticket_id_state WHERE singleton), 0) AS first_id
		)
		SELECT MIN(candidate)
		FROM (
			SELECT first_id AS candidate FROM start_at
			UNION ALL
			SELECT t.id + 1 FROM ticket_ids t, start_at WHERE t.id >= start_at.first_id
		) c
		WHERE NOT EXISTS (SELECT 1 FROM ticket_ids t WHERE t.id = c.candidate)
	`
	const advance = `
		INSERT INTO ticket_id_state (singleton, next_id) VALUES (TRUE, $1)
		ON CONFLICT (singleton) DO UPDATE SET next_id = EXCLUDED.next_id
	`

	q := conn(ctx, r.pool)
	var id int64
	if err := q.QueryRow(ctx, pick).Scan(&id); err != nil {
		return 0, fmt.Errorf("pick ticket id: %w", err)
	}
	if _, err := q.Exec(ctx, advance, id+1); err != nil {
		return 0, fmt.Errorf("advance ticket id: %w", err)
	}
	return uint64(id), nil
}

func (r *TicketRepository) Create(ctx context.Context, t *ticket.Ticket) error {
	const insert = `
		INSERT INTO tickets (` + ticketColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (id) DO NOTHING
	`
	const remember = `INSERT INTO ticket_ids (id) VALUES ($1) ON CONFLICT (id) DO NOTHING`

	q := conn(ctx, r.pool)
	tag, err := q.Exec(ctx, insert,
		int64(t.ID), t.Owner,
		t.Metadata.FlightNumber, t.Metadata.Departure, t.Metadata.Destination,
		t.Metadata.DepartureTime, t.Metadata.ArrivalTime, t.Metadata.SeatClass,
		int64(t.Price), t.Resellable, t.Used, t.OriginalBuyer, t.ListedAt, t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert ticket: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %d", domain.ErrIDCollision, t.ID)
	}
	if _, err := q.Exec(ctx, remember, int64(t.ID)); err != nil {
		return fmt.Errorf("remember ticket id: %w", err)
	}
	return nil
}

func (r *TicketRepository) Get(ctx context.Context, id uint64) (*ticket.Ticket, error) {
	sql := `SELECT ` + ticketColumns + ` FROM tickets WHERE id = $1`

	t, err := scanTicket(conn(ctx, r.pool).QueryRow(ctx, sql, int64(id)))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %d", domain.ErrTicketNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get ticket: %w", err)
	}
	return t, nil
}

func (r *TicketRepository) Update(ctx context.Context, t *ticket.Ticket) error {
	const sql = `
		UPDATE tickets
		SET owner = $2, price = $3, resellable = $4, used = $5, listed_at = $6, updated_at = $7
		WHERE id = $1
	`
	tag, err := conn(ctx, r.pool).Exec(ctx, sql,
		int64(t.ID), t.Owner, int64(t.Price), t.Resellable, t.Used, t.ListedAt, t.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update ticket: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %d", domain.ErrTicketNotFound, t.ID)
	}
	return nil
}

func (r *TicketRepository) Delete(ctx context.Context, id uint64) error {
	tag, err := conn(ctx, r.pool).Exec(ctx, `DELETE FROM tickets WHERE id = $1`, int64(id))
	if err != nil {
		return fmt.Errorf("delete ticket: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %d", domain.ErrTicketNotFound, id)
	}
	return nil
}

func (r *TicketRepository) Exists(ctx context.Context, id uint64) (bool, error) {
	var ok bool
	err := conn(ctx, r.pool).QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM tickets WHERE id = $1)`, int64(id)).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("ticket exists: %w", err)
	}
	return ok, nil
}

func (r *TicketRepository) List(ctx context.Context, limit int) ([]*ticket.Ticket, error) {
	sql := `SELECT ` + ticketColumns + ` FROM tickets ORDER BY id ASC`
	args := []any{}
	if limit > 0 {
		sql += ` LIMIT $1`
		args = append(args, limit)
	}

	rows, err := conn(ctx, r.pool).Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query tickets: %w", err)
	}
	defer rows.Close()

	var tickets []*ticket.Ticket
	for rows.Next() {
		t, err := scanTicket(rows)
		if err != nil {
			return nil, fmt.Errorf("scan ticket: %w", err)
		}
		tickets = append(tickets, t)
	}
	return tickets, rows.Err()
}

func scanTicket(row pgx.Row) (*ticket.Ticket, error) {
	var (
		t         ticket.Ticket
		id, price int64
	)
	err := row.Scan(
		&id, &t.Owner,
		&t.Metadata.FlightNumber, &t.Metadata.Departure, &t.Metadata.Destination,
		&t.Metadata.DepartureTime, &t.Metadata.ArrivalTime, &t.Metadata.SeatClass,
		&price, &t.Resellable, &t.Used, &t.OriginalBuyer, &t.ListedAt, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	t.ID = uint64(id)
	t.Price = payment.Amount(price)
	return &t, nil
}
