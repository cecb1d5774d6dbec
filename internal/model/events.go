package model

import "time"

// WateringEvent is the immutable record emitted by the pump state machine on
// every stop, whatever triggered it. It is append-only: the core never
// mutates or deletes logged events.
type WateringEvent struct {
	ID              string    `json:"id"`
	StartTime       time.Time `json:"start_time"`
	DurationSeconds float64   `json:"duration_seconds"`
	Reason          string    `json:"reason"`
}
