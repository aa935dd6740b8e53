package models

import "time"

// Event types written to the irrigation log.
const (
	EventIrrigationStart = "IRRIGATION_START"
	EventIrrigationStop  = "IRRIGATION_STOP"
	EventDecisionSkip    = "DECISION_SKIP"
	EventRelayCommand    = "RELAY_COMMAND"
	EventError           = "ERROR"
)

// IrrigationEvent is a single log entry.
type IrrigationEvent struct {
	EventID     string    `json:"event_id"`
	OccurredAt  time.Time `json:"occurred_at"`
	Type        string    `json:"type"`        // IRRIGATION_START | IRRIGATION_STOP | DECISION_SKIP | RELAY_COMMAND | ERROR
	Description string    `json:"description"` // human-readable
	Metadata    any       `json:"metadata,omitempty"`
}
