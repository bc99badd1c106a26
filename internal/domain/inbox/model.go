package inbox

import "time"

// ConsumerBridge is the inbox consumer name under which inbound relocation
// messages are deduplicated.
const ConsumerBridge = "bridge"

// Event is a consumer-side record of a message that has been applied.
// (consumer, event_id) is unique, so a replayed message is recognized.
type Event struct {
	Consumer      string    `json:"consumer"`
	EventID       string    `json:"event_id"`
	EventType     string    `json:"event_type"`
	CorrelationID string    `json:"correlation_id"`
	ProcessedAt   time.Time `json:"processed_at"`
}
