package listing

import (
	"time"

	"reflights/internal/domain/payment"
)

const (
	ReasonSold        = "sold"
	ReasonCancelled   = "cancelled"
	ReasonUsed        = "used"
	ReasonRelocated   = "relocated"
	ReasonPaused      = "paused"
	ReasonTransferred = "transferred"
)

// Listing is one resale offer. Listings are never deleted; closing one
// records when and why it stopped being active.
type Listing struct {
	Seq           uint64         `json:"seq"`
	TicketID      uint64         `json:"ticket_id"`
	Price         payment.Amount `json:"price"`
	Seller        string         `json:"seller"`
	Active        bool           `json:"active"`
	ListedAt      time.Time      `json:"listed_at"`
	DepartureTime time.Time      `json:"departure_time"`
	ClosedAt      *time.Time     `json:"closed_at,omitempty"`
	CloseReason   string         `json:"close_reason,omitempty"`
}

// ActiveAt reports whether the listing can still be bought at now.
func (l *Listing) ActiveAt(now time.Time) bool {
	return l.Active && now.Before(l.DepartureTime)
}
