package event

import (
	"time"

	"reflights/internal/domain/payment"
)

const (
	TypeTicketMinted        = "TicketMinted"
	TypeTicketTransferred   = "TicketTransferred"
	TypeTicketUsed          = "TicketUsed"
	TypeTicketListed        = "TicketListed"
	TypeListingCancelled    = "ListingCancelled"
	TypeTicketResold        = "TicketResold"
	TypeTicketPaused        = "TicketPaused"
	TypeRelocationInitiated = "RelocationInitiated"
	TypeMessageReceived     = "MessageReceived"
	TypeFeesWithdrawn       = "FeesWithdrawn"

	// TypeRelocationMessage is the transport frame itself, published to the
	// destination domain's relocation topic.
	TypeRelocationMessage = "RelocationMessage"
)

type TicketMinted struct {
	TicketID     uint64         `json:"ticket_id"`
	Owner        string         `json:"owner"`
	FlightNumber string         `json:"flight_number"`
	Price        payment.Amount `json:"price"`
}

type TicketTransferred struct {
	TicketID uint64 `json:"ticket_id"`
	From     string `json:"from"`
	To       string `json:"to"`
}

type TicketUsed struct {
	TicketID uint64    `json:"ticket_id"`
	Owner    string    `json:"owner"`
	UsedAt   time.Time `json:"used_at"`
}

type TicketListed struct {
	TicketID uint64         `json:"ticket_id"`
	Seller   string         `json:"seller"`
	Price    payment.Amount `json:"price"`
}

type ListingCancelled struct {
	TicketID uint64 `json:"ticket_id"`
	Seller   string `json:"seller"`
}

type TicketResold struct {
	TicketID uint64         `json:"ticket_id"`
	Seller   string         `json:"seller"`
	Buyer    string         `json:"buyer"`
	Price    payment.Amount `json:"price"`
	Fee      payment.Amount `json:"fee"`
}

type TicketPaused struct {
	TicketID uint64 `json:"ticket_id"`
}

type RelocationInitiated struct {
	TicketID    uint64         `json:"ticket_id"`
	MessageID   string         `json:"message_id"`
	Destination string         `json:"destination"`
	Recipient   string         `json:"recipient"`
	Fee         payment.Amount `json:"fee"`
}

type MessageReceived struct {
	TicketID     uint64 `json:"ticket_id"`
	MessageID    string `json:"message_id"`
	SourceDomain string `json:"source_domain"`
	Recipient    string `json:"recipient"`
}

type FeesWithdrawn struct {
	Admin  string         `json:"admin"`
	Amount payment.Amount `json:"amount"`
}

// RelocationFrame wraps the binary relocation payload so it can travel
// inside the JSON envelope.
type RelocationFrame struct {
	Destination string `json:"destination"`
	Data        []byte `json:"data"`
}
