package usecase_test

import (
	"context"
	"errors"
	"testing"

	"reflights/internal/domain"
	"reflights/internal/domain/event"
)

func TestGetTicketTrail(t *testing.T) {
	f := newFixture(t, "domain-a")
	ctx := context.Background()

	if _, err := f.uc.Queries.GetTicketTrail(ctx, 0); !errors.Is(err, domain.ErrTicketNotFound) {
		t.Fatalf("unknown ticket: got %v", err)
	}

	id := f.mint(t, "alice")
	other := f.mint(t, "bob")
	if err := f.uc.Market.List(ctx, id, 300, "alice"); err != nil {
		t.Fatalf("list: %v", err)
	}
	if err := f.uc.Registry.Transfer(ctx, other, "bob", "carol"); err != nil {
		t.Fatalf("transfer: %v", err)
	}

	trail, err := f.uc.Queries.GetTicketTrail(ctx, id)
	if err != nil {
		t.Fatalf("trail: %v", err)
	}
	if trail.Ticket == nil || trail.Ticket.Owner != "alice" {
		t.Fatalf("trail ticket: %+v", trail.Ticket)
	}
	if trail.Listing == nil || !trail.Listing.Active {
		t.Fatalf("trail listing: %+v", trail.Listing)
	}
	var types []string
	for _, e := range trail.Outbox {
		types = append(types, e.EventType)
	}
	if len(types) != 2 || types[0] != event.TypeTicketMinted || types[1] != event.TypeTicketListed {
		t.Fatalf("trail events: %v", types)
	}
	if len(trail.Inbox) != 0 {
		t.Fatalf("inbox: %d", len(trail.Inbox))
	}
}
