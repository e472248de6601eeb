package domain

import (
	"encoding/json"
	"time"
)

// Event is a single telemetry event emitted by the backend, serialized as
// JSON onto the Kafka topic and into OTel log records.
type Event struct {
	UserID    string          `json:"userId,omitempty"`
	SessionID string          `json:"sessionId,omitempty"`
	EventType string          `json:"eventType"`
	Source    string          `json:"source"`
	Metadata  json.RawMessage `json:"metadata,omitempty"`
	CreatedAt time.Time       `json:"createdAt"`
}
