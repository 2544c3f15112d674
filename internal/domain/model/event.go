// Package model contains domain models passed between layers.
package model

import "time"

// StatusPresent is the only attendance status recorded today.
const StatusPresent = "present"

// AttendanceEvent is one "present" mark produced by a successful recognition.
// Events are append-only; nothing in the engine mutates or deletes them.
type AttendanceEvent struct {
	ID        string    `json:"id,omitempty"`
	Roll      string    `json:"roll"`
	Name      string    `json:"name"`
	Timestamp time.Time `json:"timestamp"`
	Status    string    `json:"status"`
}
