package memory_test

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"reflights/internal/domain"
	"reflights/internal/domain/listing"
	"reflights/internal/domain/outbox"
	"reflights/internal/domain/payment"
	"reflights/internal/domain/ticket"
	"reflights/internal/infrastructure/memory"
)

var now = time.Date(2030, time.January, 1, 0, 0, 0, 0, time.UTC)

func newTicket(id uint64) *ticket.Ticket {
	return &ticket.Ticket{
		ID:    id,
		Owner: "alice",
		Metadata: ticket.Metadata{
			FlightNumber:  "RF1",
			DepartureTime: now.Add(time.Hour),
			ArrivalTime:   now.Add(2 * time.Hour),
		},
	}
}

func TestWithinTransaction_RollsBackEveryTable(t *testing.T) {
	s := memory.NewStore()
	ctx := context.Background()

	if err := s.Tickets.Create(ctx, newTicket(0)); err != nil {
		t.Fatalf("seed ticket: %v", err)
	}

	boom := errors.New("boom")
	err := s.WithinTransaction(ctx, func(ctx context.Context) error {
		id, err := s.Tickets.NextID(ctx)
		if err != nil {
			return err
		}
		if err := s.Tickets.Create(ctx, newTicket(id)); err != nil {
			return err
		}
		if err := s.Tickets.Delete(ctx, 0); err != nil {
			return err
		}
		if err := s.Listings.Create(ctx, &listing.Listing{TicketID: id, Price: 10, Seller: "alice", DepartureTime: now.Add(time.Hour)}); err != nil {
			return err
		}
		if err := s.Ledger.Append(ctx, payment.Entry{ID: "e1", Account: "treasury", Amount: 50}); err != nil {
			return err
		}
		if err := s.Outbox.Create(ctx, &outbox.Event{ID: "o1", Status: outbox.StatusNew}); err != nil {
			return err
		}
		if _, err := s.Inbox.SaveIfNotExists(ctx, "bridge", "m1", "t", "c"); err != nil {
			return err
		}
		if err := s.Allowlist.SetDomain(ctx, "domain-b", true); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("got %v", err)
	}

	if ok, _ := s.Tickets.Exists(ctx, 0); !ok {
		t.Fatal("deleted ticket not restored")
	}
	if ok, _ := s.Tickets.Exists(ctx, 1); ok {
		t.Fatal("created ticket survived rollback")
	}
	if l, _ := s.Listings.Latest(ctx, 1); l != nil {
		t.Fatalf("listing survived rollback: %+v", l)
	}
	if bal, _ := s.Ledger.Balance(ctx, "treasury"); bal != 0 {
		t.Fatalf("balance survived rollback: %d", bal)
	}
	if len(s.Ledger.Entries(ctx)) != 0 {
		t.Fatal("ledger entry survived rollback")
	}
	if len(s.Outbox.All(ctx)) != 0 {
		t.Fatal("outbox event survived rollback")
	}
	if isNew, _ := s.Inbox.SaveIfNotExists(ctx, "bridge", "m1", "t", "c"); !isNew {
		t.Fatal("inbox record survived rollback")
	}
	if ok, _ := s.Allowlist.DomainAllowed(ctx, "domain-b"); ok {
		t.Fatal("allowlist change survived rollback")
	}
	if id, _ := s.Tickets.NextID(ctx); id != 1 {
		t.Fatalf("id cursor not restored: %d", id)
	}
}

func TestWithinTransaction_NestedJoinsOuter(t *testing.T) {
	s := memory.NewStore()
	ctx := context.Background()

	err := s.WithinTransaction(ctx, func(ctx context.Context) error {
		if err := s.WithinTransaction(ctx, func(ctx context.Context) error {
			return s.Tickets.Create(ctx, newTicket(5))
		}); err != nil {
			return err
		}
		return errors.New("outer fails")
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if ok, _ := s.Tickets.Exists(ctx, 5); ok {
		t.Fatal("inner write survived outer rollback")
	}
}

func TestWithinTransaction_PanicRollsBack(t *testing.T) {
	s := memory.NewStore()
	ctx := context.Background()

	func() {
		defer func() {
			if recover() == nil {
				t.Fatal("panic not propagated")
			}
		}()
		_ = s.WithinTransaction(ctx, func(ctx context.Context) error {
			_ = s.Tickets.Create(ctx, newTicket(1))
			panic("boom")
		})
	}()

	if ok, _ := s.Tickets.Exists(ctx, 1); ok {
		t.Fatal("write survived panic")
	}
	// The lock must have been released.
	if err := s.Tickets.Create(ctx, newTicket(2)); err != nil {
		t.Fatalf("store unusable after panic: %v", err)
	}
}

func TestTickets_IDsAreNeverReused(t *testing.T) {
	s := memory.NewStore()
	ctx := context.Background()

	// An id that arrived from another domain.
	if err := s.Tickets.Create(ctx, newTicket(1)); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := s.Tickets.Create(ctx, newTicket(1)); !errors.Is(err, domain.ErrIDCollision) {
		t.Fatalf("duplicate create: got %v", err)
	}

	var got []uint64
	for i := 0; i < 3; i++ {
		id, err := s.Tickets.NextID(ctx)
		if err != nil {
			t.Fatalf("next id: %v", err)
		}
		got = append(got, id)
		if err := s.Tickets.Create(ctx, newTicket(id)); err != nil {
			t.Fatalf("create %d: %v", id, err)
		}
	}
	if !reflect.DeepEqual(got, []uint64{0, 2, 3}) {
		t.Fatalf("allocated %v", got)
	}

	if err := s.Tickets.Delete(ctx, 2); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if id, _ := s.Tickets.NextID(ctx); id != 4 {
		t.Fatalf("id after delete: %d", id)
	}
	if _, err := s.Tickets.Get(ctx, 2); !errors.Is(err, domain.ErrTicketNotFound) {
		t.Fatalf("get deleted: got %v", err)
	}
}

func TestLedger_RejectsOverdraft(t *testing.T) {
	s := memory.NewStore()
	ctx := context.Background()

	if err := s.Ledger.Append(ctx, payment.Entry{ID: "1", Account: "treasury", Amount: 30}); err != nil {
		t.Fatalf("credit: %v", err)
	}
	if err := s.Ledger.Append(ctx, payment.Entry{ID: "2", Account: "treasury", Amount: -31}); !errors.Is(err, domain.ErrPayment) {
		t.Fatalf("overdraft: got %v", err)
	}
	if err := s.Ledger.Append(ctx, payment.Entry{ID: "3", Account: "treasury", Amount: -30}); err != nil {
		t.Fatalf("debit: %v", err)
	}
	if bal, _ := s.Ledger.Balance(ctx, "treasury"); bal != 0 {
		t.Fatalf("balance: %d", bal)
	}
}

func TestListings_ActiveIndex(t *testing.T) {
	s := memory.NewStore()
	ctx := context.Background()

	for _, id := range []uint64{9, 3, 6} {
		dep := now.Add(time.Hour)
		if id == 6 {
			dep = now.Add(-time.Minute)
		}
		if err := s.Listings.Create(ctx, &listing.Listing{TicketID: id, Price: 1, Seller: "a", DepartureTime: dep}); err != nil {
			t.Fatalf("create %d: %v", id, err)
		}
	}
	if err := s.Listings.Create(ctx, &listing.Listing{TicketID: 3, Price: 1, Seller: "a", DepartureTime: now.Add(time.Hour)}); !errors.Is(err, domain.ErrAlreadyListed) {
		t.Fatalf("second active listing: got %v", err)
	}

	ids, _ := s.Listings.ActiveTicketIDs(ctx, now)
	if !reflect.DeepEqual(ids, []uint64{3, 9}) {
		t.Fatalf("active ids: %v", ids)
	}

	closed, err := s.Listings.Close(ctx, 3, listing.ReasonCancelled, now)
	if err != nil || !closed {
		t.Fatalf("close: %v %v", closed, err)
	}
	if closed, _ := s.Listings.Close(ctx, 3, listing.ReasonCancelled, now); closed {
		t.Fatal("closed twice")
	}
	if l, _ := s.Listings.GetActive(ctx, 3); l != nil {
		t.Fatalf("closed listing still active: %+v", l)
	}
	latest, _ := s.Listings.Latest(ctx, 3)
	if latest == nil || latest.Active || latest.CloseReason != listing.ReasonCancelled {
		t.Fatalf("latest: %+v", latest)
	}
}

func TestOutbox_FetchBatchClaims(t *testing.T) {
	s := memory.NewStore()
	ctx := context.Background()
	for _, id := range []string{"a", "b", "c"} {
		if err := s.Outbox.Create(ctx, &outbox.Event{ID: id, Status: outbox.StatusNew}); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	first, _ := s.Outbox.FetchBatch(ctx, 2)
	if len(first) != 2 || first[0].ID != "a" || first[1].ID != "b" {
		t.Fatalf("first batch: %+v", first)
	}
	second, _ := s.Outbox.FetchBatch(ctx, 2)
	if len(second) != 1 || second[0].ID != "c" {
		t.Fatalf("second batch: %+v", second)
	}

	if err := s.Outbox.MarkFailed(ctx, []string{"a"}); err != nil {
		t.Fatalf("mark failed: %v", err)
	}
	if err := s.Outbox.MarkProcessed(ctx, []string{"b", "c"}); err != nil {
		t.Fatalf("mark processed: %v", err)
	}
	retry, _ := s.Outbox.FetchBatch(ctx, 10)
	if len(retry) != 1 || retry[0].ID != "a" {
		t.Fatalf("retry batch: %+v", retry)
	}
}
