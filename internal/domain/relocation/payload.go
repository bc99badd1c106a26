package relocation

import (
	"fmt"
	"strings"
	"time"

	"github.com/fxamacker/cbor/v2"

	"reflights/internal/domain"
	"reflights/internal/domain/payment"
	"reflights/internal/domain/ticket"
)

// Payload is the opaque body carried by the routing transport when a
// ticket moves between domains. It holds everything needed to recreate
// the ticket on the destination with the same identity.
type Payload struct {
	Version       uint8          `cbor:"v"`
	TicketID      uint64         `cbor:"ticket_id"`
	Source        string         `cbor:"source"`
	Destination   string         `cbor:"destination"`
	Recipient     string         `cbor:"recipient"`
	FlightNumber  string         `cbor:"flight_number"`
	Departure     string         `cbor:"departure"`
	Arrival       string         `cbor:"arrival"`
	DepartureTime int64          `cbor:"departure_time"`
	ArrivalTime   int64          `cbor:"arrival_time"`
	SeatClass     string         `cbor:"seat_class"`
	Price         payment.Amount `cbor:"price"`
	Resellable    bool           `cbor:"resellable"`
	Used          bool           `cbor:"used"`
	OriginalBuyer string         `cbor:"original_buyer"`
	ListedAt      int64          `cbor:"listed_at"`
}

const payloadVersion = 1

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("relocation: cbor encoder initialization failed: " + err.Error())
	}
	decMode, err = cbor.DecOptions{
		ExtraReturnErrors: cbor.ExtraDecErrorUnknownField,
		DupMapKey:         cbor.DupMapKeyEnforcedAPF,
	}.DecMode()
	if err != nil {
		panic("relocation: cbor decoder initialization failed: " + err.Error())
	}
}

// NewPayload snapshots t for delivery to recipient on destination.
func NewPayload(t *ticket.Ticket, source, destination, recipient string) Payload {
	return Payload{
		Version:       payloadVersion,
		TicketID:      t.ID,
		Source:        source,
		Destination:   destination,
		Recipient:     recipient,
		FlightNumber:  t.Metadata.FlightNumber,
		Departure:     t.Metadata.Departure,
		Arrival:       t.Metadata.Destination,
		DepartureTime: t.Metadata.DepartureTime.UnixNano(),
		ArrivalTime:   t.Metadata.ArrivalTime.UnixNano(),
		SeatClass:     t.Metadata.SeatClass,
		Price:         t.Price,
		Resellable:    t.Resellable,
		Used:          t.Used,
		OriginalBuyer: t.OriginalBuyer,
		ListedAt:      t.ListedAt.UnixNano(),
	}
}

// Encode serializes p with deterministic CBOR, so the same ticket always
// yields the same bytes.
func Encode(p Payload) ([]byte, error) {
	b, err := encMode.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encode relocation payload: %w", err)
	}
	return b, nil
}

// Decode parses and validates a payload. Every failure wraps domain.ErrDeserialization.
func Decode(b []byte) (Payload, error) {
	var p Payload
	if len(b) == 0 {
		return p, fmt.Errorf("%w: empty payload", domain.ErrDeserialization)
	}
	if err := decMode.Unmarshal(b, &p); err != nil {
		return Payload{}, fmt.Errorf("%w: %v", domain.ErrDeserialization, err)
	}
	if p.Version != payloadVersion {
		return Payload{}, fmt.Errorf("%w: unsupported version %d", domain.ErrDeserialization, p.Version)
	}
	if strings.TrimSpace(p.Recipient) == "" || strings.TrimSpace(p.Destination) == "" {
		return Payload{}, fmt.Errorf("%w: missing recipient or destination", domain.ErrDeserialization)
	}
	if p.ArrivalTime <= p.DepartureTime {
		return Payload{}, fmt.Errorf("%w: arrival not after departure", domain.ErrDeserialization)
	}
	return p, nil
}

// Ticket rebuilds the ticket record carried by p, owned by the recipient.
func (p Payload) Ticket() *ticket.Ticket {
	return &ticket.Ticket{
		ID:    p.TicketID,
		Owner: p.Recipient,
		Metadata: ticket.Metadata{
			FlightNumber:  p.FlightNumber,
			Departure:     p.Departure,
			Destination:   p.Arrival,
			DepartureTime: time.Unix(0, p.DepartureTime).UTC(),
			ArrivalTime:   time.Unix(0, p.ArrivalTime).UTC(),
			SeatClass:     p.SeatClass,
		},
		Price:         p.Price,
		Resellable:    p.Resellable,
		Used:          p.Used,
		OriginalBuyer: p.OriginalBuyer,
		ListedAt:      time.Unix(0, p.ListedAt).UTC(),
	}
}
