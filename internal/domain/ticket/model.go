package ticket

import (
	"time"

	"reflights/internal/domain/payment"
)

// BoardingWindow is how long before departure a ticket may be marked used.
const BoardingWindow = time.Hour

type Metadata struct {
	FlightNumber  string    `json:"flight_number"`
	Departure     string    `json:"departure"`
	Destination   string    `json:"destination"`
	DepartureTime time.Time `json:"departure_time"`
	ArrivalTime   time.Time `json:"arrival_time"`
	SeatClass     string    `json:"seat_class"`
}

type Ticket struct {
	ID            uint64         `json:"id"`
	Owner         string         `json:"owner"`
	Metadata      Metadata       `json:"metadata"`
	Price         payment.Amount `json:"price"`
	Resellable    bool           `json:"resellable"`
	Used          bool           `json:"used"`
	OriginalBuyer string         `json:"original_buyer"`
	ListedAt      time.Time      `json:"listed_at"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

// Departed reports whether the flight has left at now.
func (t *Ticket) Departed(now time.Time) bool {
	return !now.Before(t.Metadata.DepartureTime)
}
