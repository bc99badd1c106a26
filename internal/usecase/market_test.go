package usecase_test

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"reflights/internal/domain"
	"reflights/internal/domain/listing"
	"reflights/internal/domain/payment"
	"reflights/internal/usecase"
)

func TestBuy_SettlesPriceFeeAndRefund(t *testing.T) {
	f := newFixture(t, "domain-a")
	ctx := context.Background()
	id := f.mint(t, "alice")

	if err := f.uc.Market.List(ctx, id, 10000, "alice"); err != nil {
		t.Fatalf("list: %v", err)
	}
	ids, _ := f.uc.Market.ActiveListings(ctx)
	if !reflect.DeepEqual(ids, []uint64{id}) {
		t.Fatalf("active listings: %v", ids)
	}

	res, err := f.uc.Market.Buy(ctx, id, "bob", 10500)
	if err != nil {
		t.Fatalf("buy: %v", err)
	}
	want := usecase.BuyResult{Seller: "alice", Price: 10000, SellerProceeds: 9750, Fee: 250, Refund: 500}
	if res != want {
		t.Fatalf("buy result: got=%+v want=%+v", res, want)
	}

	if owner, _ := f.uc.Registry.OwnerOf(ctx, id); owner != "bob" {
		t.Fatalf("owner after buy: %q", owner)
	}
	if got := f.balance(t, "alice"); got != 9750 {
		t.Fatalf("seller proceeds: %d", got)
	}
	if got := f.balance(t, "bob"); got != 500 {
		t.Fatalf("buyer refund: %d", got)
	}
	if got := f.balance(t, payment.TreasuryAccount); got != unitPrice+250 {
		t.Fatalf("treasury: %d", got)
	}

	l, _ := f.uc.Market.GetListing(ctx, id)
	if l.Active || l.CloseReason != listing.ReasonSold {
		t.Fatalf("listing after buy: %+v", l)
	}
	if ids, _ := f.uc.Market.ActiveListings(ctx); len(ids) != 0 {
		t.Fatalf("sold ticket still listed: %v", ids)
	}

	if _, err := f.uc.Market.Buy(ctx, id, "carol", 10000); !errors.Is(err, domain.ErrListingInactive) {
		t.Fatalf("second buy: got %v", err)
	}
}

func TestPlatformFee_Truncates(t *testing.T) {
	cases := []struct {
		price, fee payment.Amount
	}{
		{1, 0},
		{39, 0},
		{40, 1},
		{41, 1},
		{1000, 25},
		{123457, 3086},
	}
	for _, tc := range cases {
		if got := payment.PlatformFee(tc.price); got != tc.fee {
			t.Fatalf("fee(%d): got=%d want=%d", tc.price, got, tc.fee)
		}
	}
}

func TestList_Rejects(t *testing.T) {
	f := newFixture(t, "domain-a")
	ctx := context.Background()
	id := f.mint(t, "alice")
	paused := f.mint(t, "alice")

	if err := f.uc.Admin.SetResellable(ctx, admin, paused, false); err != nil {
		t.Fatalf("set resellable: %v", err)
	}

	cases := []struct {
		name   string
		id     uint64
		price  payment.Amount
		caller string
		want   error
	}{
		{"unknown ticket", 42, 100, "alice", domain.ErrTicketNotFound},
		{"not owner", id, 100, "bob", domain.ErrAuthorization},
		{"not resellable", paused, 100, "alice", domain.ErrNotResellable},
		{"zero price", id, 0, "alice", domain.ErrValidation},
		{"negative price", id, -5, "alice", domain.ErrValidation},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := f.uc.Market.List(ctx, tc.id, tc.price, tc.caller); !errors.Is(err, tc.want) {
				t.Fatalf("got %v, want %v", err, tc.want)
			}
		})
	}

	if err := f.uc.Market.List(ctx, id, 100, "alice"); err != nil {
		t.Fatalf("list: %v", err)
	}
	if err := f.uc.Market.List(ctx, id, 200, "alice"); !errors.Is(err, domain.ErrAlreadyListed) {
		t.Fatalf("relist: got %v", err)
	}
}

func TestList_RejectsUsedAndDeparted(t *testing.T) {
	f := newFixture(t, "domain-a")
	ctx := context.Background()
	used := f.mint(t, "alice")
	other := f.mint(t, "alice")

	f.clock.Set(flight().DepartureTime.Add(-time.Minute))
	if err := f.uc.Registry.MarkUsed(ctx, used, "alice"); err != nil {
		t.Fatalf("mark used: %v", err)
	}
	if err := f.uc.Market.List(ctx, used, 100, "alice"); !errors.Is(err, domain.ErrAlreadyUsed) {
		t.Fatalf("used ticket: got %v", err)
	}

	f.clock.Set(flight().DepartureTime)
	if err := f.uc.Market.List(ctx, other, 100, "alice"); !errors.Is(err, domain.ErrFlightDeparted) {
		t.Fatalf("departed flight: got %v", err)
	}
}

func TestBuy_Rejects(t *testing.T) {
	f := newFixture(t, "domain-a")
	ctx := context.Background()
	id := f.mint(t, "alice")

	if _, err := f.uc.Market.Buy(ctx, id, "bob", 100); !errors.Is(err, domain.ErrListingInactive) {
		t.Fatalf("unlisted: got %v", err)
	}

	if err := f.uc.Market.List(ctx, id, 3000, "alice"); err != nil {
		t.Fatalf("list: %v", err)
	}
	if _, err := f.uc.Market.Buy(ctx, id, "bob", 2999); !errors.Is(err, domain.ErrPayment) {
		t.Fatalf("underpaid: got %v", err)
	}
	if _, err := f.uc.Market.Buy(ctx, id, " ", 3000); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("empty buyer: got %v", err)
	}
	if _, err := f.uc.Market.Buy(ctx, id, payment.TreasuryAccount, 3000); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("treasury as buyer: got %v", err)
	}
	if got := f.balance(t, payment.TreasuryAccount); got != unitPrice {
		t.Fatalf("treasury changed by rejected buy: %d", got)
	}

	f.clock.Set(flight().DepartureTime.Add(time.Second))
	if _, err := f.uc.Market.Buy(ctx, id, "bob", 3000); !errors.Is(err, domain.ErrFlightDeparted) {
		t.Fatalf("departed: got %v", err)
	}
	if ids, _ := f.uc.Market.ActiveListings(ctx); len(ids) != 0 {
		t.Fatalf("departed listing reported active: %v", ids)
	}
	l, _ := f.uc.Market.GetListing(ctx, id)
	if l.Active {
		t.Fatal("departed listing reported active")
	}
	if owner, _ := f.uc.Registry.OwnerOf(ctx, id); owner != "alice" {
		t.Fatalf("owner changed by rejected buy: %q", owner)
	}
}

func TestBuy_FailedPaymentLegRollsBackEverything(t *testing.T) {
	f := newFixture(t, "domain-a")
	ctx := context.Background()
	id := f.mint(t, "alice")
	if err := f.uc.Market.List(ctx, id, 4000, "alice"); err != nil {
		t.Fatalf("list: %v", err)
	}
	eventsBefore := len(f.eventTypes())

	f.ledger.failKind = payment.KindPurchaseRefund
	if _, err := f.uc.Market.Buy(ctx, id, "bob", 5000); !errors.Is(err, domain.ErrPayment) {
		t.Fatalf("got %v, want payment failure", err)
	}

	if owner, _ := f.uc.Registry.OwnerOf(ctx, id); owner != "alice" {
		t.Fatalf("owner: %q", owner)
	}
	if l, _ := f.uc.Market.GetListing(ctx, id); !l.Active {
		t.Fatal("listing closed by failed buy")
	}
	for _, acct := range []string{"alice", "bob"} {
		if got := f.balance(t, acct); got != 0 {
			t.Fatalf("%s balance: %d", acct, got)
		}
	}
	if got := f.balance(t, payment.TreasuryAccount); got != unitPrice {
		t.Fatalf("treasury: %d", got)
	}
	if got := len(f.eventTypes()); got != eventsBefore {
		t.Fatalf("events leaked from failed buy: %d -> %d", eventsBefore, got)
	}

	f.ledger.failKind = ""
	if _, err := f.uc.Market.Buy(ctx, id, "bob", 5000); err != nil {
		t.Fatalf("retry buy: %v", err)
	}
}

func TestBuy_SellerNoLongerOwner(t *testing.T) {
	f := newFixture(t, "domain-a")
	ctx := context.Background()
	id := f.mint(t, "alice")
	if err := f.uc.Market.List(ctx, id, 4000, "alice"); err != nil {
		t.Fatalf("list: %v", err)
	}
	if err := f.uc.Registry.Transfer(ctx, id, "alice", "bob"); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if _, err := f.uc.Market.Buy(ctx, id, "carol", 4000); !errors.Is(err, domain.ErrListingInactive) {
		t.Fatalf("got %v", err)
	}
}

func TestCancel(t *testing.T) {
	f := newFixture(t, "domain-a")
	ctx := context.Background()
	id := f.mint(t, "alice")

	if err := f.uc.Market.Cancel(ctx, id, "alice"); !errors.Is(err, domain.ErrNotListed) {
		t.Fatalf("cancel unlisted: got %v", err)
	}
	if _, err := f.uc.Market.GetListing(ctx, id); !errors.Is(err, domain.ErrNotListed) {
		t.Fatalf("get listing before listing: got %v", err)
	}
	if err := f.uc.Market.List(ctx, id, 700, "alice"); err != nil {
		t.Fatalf("list: %v", err)
	}
	if err := f.uc.Market.Cancel(ctx, id, "bob"); !errors.Is(err, domain.ErrAuthorization) {
		t.Fatalf("cancel by non-owner: got %v", err)
	}
	if err := f.uc.Market.Cancel(ctx, id, "alice"); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	l, _ := f.uc.Market.GetListing(ctx, id)
	if l.Active || l.CloseReason != listing.ReasonCancelled || l.ClosedAt == nil {
		t.Fatalf("listing after cancel: %+v", l)
	}
	if err := f.uc.Market.Cancel(ctx, id, "alice"); !errors.Is(err, domain.ErrNotListed) {
		t.Fatalf("second cancel: got %v", err)
	}
	if err := f.uc.Market.List(ctx, id, 800, "alice"); err != nil {
		t.Fatalf("relist after cancel: %v", err)
	}
}

func TestActiveListings_Ascending(t *testing.T) {
	f := newFixture(t, "domain-a")
	ctx := context.Background()
	for i := 0; i < 4; i++ {
		f.mint(t, "alice")
	}
	for _, id := range []uint64{3, 0, 2} {
		if err := f.uc.Market.List(ctx, id, 100, "alice"); err != nil {
			t.Fatalf("list %d: %v", id, err)
		}
	}
	ids, err := f.uc.Market.ActiveListings(ctx)
	if err != nil {
		t.Fatalf("active listings: %v", err)
	}
	if !reflect.DeepEqual(ids, []uint64{0, 2, 3}) {
		t.Fatalf("got %v", ids)
	}
}
