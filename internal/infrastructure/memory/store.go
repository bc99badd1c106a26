// Package memory is a single-process store for one domain. It backs the
// memory storage driver and the test suites.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/emirpasic/gods/maps/treemap"
	"github.com/emirpasic/gods/utils"

	"reflights/internal/domain/inbox"
	"reflights/internal/domain/listing"
	"reflights/internal/domain/outbox"
	"reflights/internal/domain/payment"
	"reflights/internal/domain/relocation"
	"reflights/internal/domain/ticket"
)

type txKey struct{}

// tx is an undo log. Every mutation made inside a transaction registers
// the closure that reverts it.
type tx struct {
	store *Store
	undo  []func()
}

func (t *tx) record(fn func()) {
	t.undo = append(t.undo, fn)
}

func (t *tx) rollback() {
	for i := len(t.undo) - 1; i >= 0; i-- {
		t.undo[i]()
	}
	t.undo = nil
}

// Store holds every table of one domain behind a single lock. A
// transaction owns the write lock for its whole body, so operations never
// interleave.
type Store struct {
	mu  sync.RWMutex
	now func() time.Time

	tickets map[uint64]*ticket.Ticket
	seen    map[uint64]struct{}
	nextID  uint64

	listings   map[uint64][]*listing.Listing
	active     *treemap.Map
	listingSeq uint64

	domains map[string]bool
	senders map[string]bool

	balances map[string]payment.Amount
	entries  []payment.Entry

	outbox []*outbox.Event

	inbox      map[string]*inbox.Event
	inboxOrder []*inbox.Event

	relocations map[string]*relocation.Record

	Tickets     *TicketRepository
	Listings    *ListingRepository
	Allowlist   *AllowlistRepository
	Ledger      *LedgerRepository
	Outbox      *OutboxRepository
	Inbox       *InboxRepository
	Relocations *RelocationRepository
}

func NewStore() *Store {
	s := &Store{
		now:         time.Now,
		tickets:     make(map[uint64]*ticket.Ticket),
		seen:        make(map[uint64]struct{}),
		listings:    make(map[uint64][]*listing.Listing),
		active:      treemap.NewWith(utils.UInt64Comparator),
		domains:     make(map[string]bool),
		senders:     make(map[string]bool),
		balances:    make(map[string]payment.Amount),
		inbox:       make(map[string]*inbox.Event),
		relocations: make(map[string]*relocation.Record),
	}
	s.Tickets = &TicketRepository{s: s}
	s.Listings = &ListingRepository{s: s}
	s.Allowlist = &AllowlistRepository{s: s}
	s.Ledger = &LedgerRepository{s: s}
	s.Outbox = &OutboxRepository{s: s}
	s.Inbox = &InboxRepository{s: s}
	s.Relocations = &RelocationRepository{s: s}
	return s
}

// SetClock overrides the clock used for store-managed timestamps.
func (s *Store) SetClock(now func() time.Time) {
	s.now = now
}

// WithinTransaction executes fn with the write lock held. If fn returns an
// error or panics, all mutations it made are reverted. A nested call joins
// the outer transaction.
func (s *Store) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if s.current(ctx) != nil {
		return fn(ctx)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	t := &tx{store: s}
	defer func() {
		if p := recover(); p != nil {
			t.rollback()
			panic(p)
		}
	}()

	if err := fn(context.WithValue(ctx, txKey{}, t)); err != nil {
		t.rollback()
		return err
	}
	return nil
}

func (s *Store) current(ctx context.Context) *tx {
	if t, ok := ctx.Value(txKey{}).(*tx); ok && t.store == s {
		return t
	}
	return nil
}

func (s *Store) view(ctx context.Context, fn func() error) error {
	if s.current(ctx) != nil {
		return fn()
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn()
}

// update runs fn with write access. Outside a transaction fn must check
// every precondition before its first mutation, since nothing is undone.
func (s *Store) update(ctx context.Context, fn func(undo func(func())) error) error {
	if t := s.current(ctx); t != nil {
		return fn(t.record)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(func(func()) {})
}
