package relocation

import (
	"time"

	"reflights/internal/domain/payment"
)

// StatusSent marks a relocation whose burn and outbound message committed
// together on the source domain. Nothing on the source confirms delivery.
const StatusSent = "sent"

// Record is the source-side trail of a relocation. If the transport loses
// the message after commit, this record is what an operator has to
// reconstruct the ticket from.
type Record struct {
	MessageID   string         `json:"message_id"`
	TicketID    uint64         `json:"ticket_id"`
	Source      string         `json:"source"`
	Destination string         `json:"destination"`
	Owner       string         `json:"owner"`
	Recipient   string         `json:"recipient"`
	Fee         payment.Amount `json:"fee"`
	Payload     []byte         `json:"payload"`
	Status      string         `json:"status"`
	CreatedAt   time.Time      `json:"created_at"`
}

// Inbound is a relocation message as handed over by the transport.
type Inbound struct {
	MessageID    string
	SourceDomain string
	Sender       string
	Payload      []byte
}
