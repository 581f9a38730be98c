package alert

import "time"

// Status is the alert rule state machine status.
type Status string

const (
	StatusInactive Status = "Inactive"
	StatusPending  Status = "Pending"
	StatusFiring   Status = "Firing"
)

// State is the per-rule alert state. It is mutated only by the Engine.
type State struct {
	Status       Status
	PendingSince time.Time // zero unless Status == Pending
	LastValue    float64   // short-window burn rate at last evaluation
}

// Event is emitted on Firing and Resolved transitions, exactly once per
// transition. Receivers deduplicate by (RuleName, Status, Timestamp).
type Event struct {
	ID        string    `json:"id,omitempty"`
	RuleName  string    `json:"rule_name"`
	Service   string    `json:"service"`
	Severity  string    `json:"severity"`
	Status    string    `json:"status"` // "firing" or "resolved"
	Value     float64   `json:"value"`
	Timestamp time.Time `json:"timestamp"`
}

// Event status values.
const (
	EventFiring   = "firing"
	EventResolved = "resolved"
)
