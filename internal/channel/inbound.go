package channel

import (
	"encoding/json"
	"fmt"

	"reflights/internal/domain"
	"reflights/internal/domain/event"
	"reflights/internal/domain/relocation"
)

// Inbound unwraps a relocation envelope received from the transport.
func Inbound(msg event.Message) (relocation.Inbound, error) {
	if msg.Type != event.TypeRelocationMessage {
		return relocation.Inbound{}, fmt.Errorf("%w: unexpected message type %q", domain.ErrDeserialization, msg.Type)
	}
	var frame event.RelocationFrame
	if err := json.Unmarshal(msg.Payload, &frame); err != nil {
		return relocation.Inbound{}, fmt.Errorf("%w: relocation frame: %v", domain.ErrDeserialization, err)
	}
	return relocation.Inbound{
		MessageID:    msg.ID,
		SourceDomain: msg.Source,
		Sender:       msg.Producer,
		Payload:      frame.Data,
	}, nil
}
