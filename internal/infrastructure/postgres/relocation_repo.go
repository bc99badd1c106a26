package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"reflights/internal/domain/payment"
	"reflights/internal/domain/relocation"
)

type RelocationRepository struct {
	pool *pgxpool.Pool
}

func NewRelocationRepository(pool *pgxpool.Pool) *RelocationRepository {
	return &RelocationRepository{pool: pool}
}

func (r *RelocationRepository) Create(ctx context.Context, rec *relocation.Record) error {
	const sql = `
		INSERT INTO relocations (message_id, ticket_id, source, destination, owner, recipient, fee, payload, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := conn(ctx, r.pool).Exec(ctx, sql,
		rec.MessageID, int64(rec.TicketID), rec.Source, rec.Destination, rec.Owner, rec.Recipient,
		int64(rec.Fee), rec.Payload, rec.Status, rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert relocation: %w", err)
	}
	return nil
}

func (r *RelocationRepository) Get(ctx context.Context, messageID string) (*relocation.Record, error) {
	const sql = `
		SELECT message_id, ticket_id, source, destination, owner, recipient, fee, payload, status, created_at
		FROM relocations
		WHERE message_id = $1
	`
	var (
		rec      relocation.Record
		tid, fee int64
	)
	err := conn(ctx, r.pool).QueryRow(ctx, sql, messageID).Scan(
		&rec.MessageID, &tid, &rec.Source, &rec.Destination, &rec.Owner, &rec.Recipient,
		&fee, &rec.Payload, &rec.Status, &rec.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get relocation: %w", err)
	}
	rec.TicketID, rec.Fee = uint64(tid), payment.Amount(fee)
	return &rec, nil
}
