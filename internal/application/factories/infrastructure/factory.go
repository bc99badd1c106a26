package infrastructure

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	pgxpool "github.com/jackc/pgx/v5/pgxpool"
	go_redis "github.com/redis/go-redis/v9"

	"reflights/internal/channel"
	"reflights/internal/config"
	"reflights/internal/domain/payment"
	"reflights/internal/infrastructure/memory"
	"reflights/internal/infrastructure/postgres"
	"reflights/internal/infrastructure/redis"
	"reflights/internal/oracle"
	"reflights/internal/ports"
	"reflights/internal/usecase"
)

type Factory struct {
	cfg      *config.Config
	logger   *slog.Logger
	pgPool   *pgxpool.Pool
	redisCli *go_redis.Client
	store    *memory.Store
}

func NewFactory(cfg *config.Config, logger *slog.Logger) *Factory {
	return &Factory{
		cfg:    cfg,
		logger: logger,
	}
}

func (f *Factory) Postgres(ctx context.Context) (*pgxpool.Pool, error) {
	if f.pgPool != nil {
		return f.pgPool, nil
	}

	var pool *pgxpool.Pool
	var err error

	// Retry connection up to 5 times
	for i := 0; i < 5; i++ {
		pool, err = postgres.NewClient(ctx, f.cfg.Postgres.DSN())
		if err == nil {
			break
		}
		f.logger.Warn("Failed to connect to postgres, retrying in 2s", "attempt", i+1, "error", err)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(2 * time.Second):
		}
	}

	if err != nil {
		return nil, fmt.Errorf("failed to init postgres after retries: %w", err)
	}

	f.pgPool = pool
	return pool, nil
}

// Redis returns nil without error when no address is configured.
func (f *Factory) Redis(ctx context.Context) (*go_redis.Client, error) {
	if f.redisCli != nil || f.cfg.Redis.Addr == "" {
		return f.redisCli, nil
	}

	client, err := redis.NewClient(ctx, redis.Config{
		Addr: f.cfg.Redis.Addr,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to init redis: %w", err)
	}

	f.redisCli = client
	return client, nil
}

// MemoryStore is the store behind the memory driver, created on first use.
func (f *Factory) MemoryStore() *memory.Store {
	if f.store == nil {
		f.store = memory.NewStore()
	}
	return f.store
}

// Oracle builds the configured price feed behind the normalizing adapter,
// cached in redis when a client has been opened.
func (f *Factory) Oracle() ports.PriceOracle {
	oc := f.cfg.Oracle

	var feed oracle.Feed = oracle.StaticFeed{Value: oc.Answer, Decimals: oc.Decimals}
	if oc.Driver == "http" {
		feed = oracle.NewHTTPFeed(oc.URL, oc.Timeout)
	}

	var price ports.PriceOracle = oracle.NewAdapter(feed, oc.Precision, oc.MaxAge)
	if f.redisCli != nil && oc.CacheTTL > 0 {
		price = oracle.NewCached(price, f.redisCli, f.cfg.Domain.ID, oc.CacheTTL)
	}
	return price
}

// Outbox returns the outbox of the configured storage driver.
func (f *Factory) Outbox(ctx context.Context) (ports.OutboxRepository, error) {
	if f.cfg.Storage.Driver == "memory" {
		return f.MemoryStore().Outbox, nil
	}
	pool, err := f.Postgres(ctx)
	if err != nil {
		return nil, err
	}
	return postgres.NewOutboxRepository(pool), nil
}

// Dependencies wires repositories for the configured storage driver
// together with the oracle and the outbox-backed channel.
func (f *Factory) Dependencies(ctx context.Context) (usecase.Dependencies, error) {
	deps := usecase.Dependencies{
		Oracle: f.Oracle(),
		Logger: f.logger,
		Now:    time.Now,
	}

	switch f.cfg.Storage.Driver {
	case "memory":
		s := f.MemoryStore()
		deps.Tx = s
		deps.Tickets = s.Tickets
		deps.Listings = s.Listings
		deps.Allowlist = s.Allowlist
		deps.Ledger = s.Ledger
		deps.Outbox = s.Outbox
		deps.Inbox = s.Inbox
		deps.Relocations = s.Relocations
	default:
		pool, err := f.Postgres(ctx)
		if err != nil {
			return usecase.Dependencies{}, err
		}
		deps.Tx = postgres.NewTxManager(pool, f.cfg.Domain.ID)
		deps.Tickets = postgres.NewTicketRepository(pool)
		deps.Listings = postgres.NewListingRepository(pool)
		deps.Allowlist = postgres.NewAllowlistRepository(pool)
		deps.Ledger = postgres.NewLedgerRepository(pool)
		deps.Outbox = postgres.NewOutboxRepository(pool)
		deps.Inbox = postgres.NewInboxRepository(pool)
		deps.Relocations = postgres.NewRelocationRepository(pool)
	}

	deps.Channel = channel.NewOutboxChannel(deps.Outbox, channel.Config{
		SourceDomain: f.cfg.Domain.ID,
		Sender:       f.cfg.Domain.Sender,
		TopicPrefix:  f.cfg.Kafka.TopicPrefix,
		BaseFee:      payment.Amount(f.cfg.Bridge.BaseFee),
		FeePerByte:   payment.Amount(f.cfg.Bridge.FeePerByte),
	})
	return deps, nil
}

func (f *Factory) Settings() usecase.Settings {
	return usecase.Settings{
		DomainID:    f.cfg.Domain.ID,
		Admin:       f.cfg.Domain.Admin,
		EventsTopic: f.cfg.Kafka.EventsTopic,
		Producer:    f.cfg.App.Name,
	}
}

func (f *Factory) Close() {
	if f.pgPool != nil {
		f.pgPool.Close()
	}
	if f.redisCli != nil {
		f.redisCli.Close()
	}
}
