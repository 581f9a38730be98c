package api

import (
	"time"

	"github.com/slogate/slogate/internal/ingest"
)

// ObservationsRequest is the POST /observations payload.
type ObservationsRequest struct {
	Observations []ingest.Observation `json:"observations"`
}

// ObservationsResponse reports what happened to a batch.
type ObservationsResponse struct {
	Accepted int `json:"accepted"`
	Skipped  int `json:"skipped"`
}

// SLIResponse is the GET /sli/{service}/{sli} response.
type SLIResponse struct {
	Service   string   `json:"service"`
	SLI       string   `json:"sli"`
	Window    string   `json:"window"`
	Good      uint64   `json:"good"`
	Total     uint64   `json:"total"`
	Ratio     *float64 `json:"ratio"` // null when undefined
	Undefined bool     `json:"undefined"`
}

// BudgetResponse is the GET /budget/{service}/{slo} response.
type BudgetResponse struct {
	Service          string    `json:"service"`
	SLOID            string    `json:"slo"`
	Target           float64   `json:"target"`
	Window           string    `json:"window"`
	RemainingRatio   *float64  `json:"remaining_ratio"` // null when no data
	Zone             string    `json:"zone"`
	InsufficientData bool      `json:"insufficient_data"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// CanDeployResponse is the GET /policy/can_deploy response.
type CanDeployResponse struct {
	Allowed         bool    `json:"allowed"`
	Zone            string  `json:"zone"`
	BudgetRemaining float64 `json:"budget_remaining"`
	Degraded        bool    `json:"degraded,omitempty"`
	Reason          string  `json:"reason"`
}

// AlertStateInfo is one rule's state in the GET /alerts response.
type AlertStateInfo struct {
	Rule         string     `json:"rule"`
	Status       string     `json:"status"`
	PendingSince *time.Time `json:"pending_since,omitempty"`
	LastValue    float64    `json:"last_value"`
}

// AlertsResponse is the GET /alerts response.
type AlertsResponse struct {
	Alerts []AlertStateInfo `json:"alerts"`
}

// HealthResponse represents health check response.
type HealthResponse struct {
	Status string `json:"status"`
}

// ReadyResponse represents readiness check response.
type ReadyResponse struct {
	Ready      bool     `json:"ready"`
	SLOsLoaded int      `json:"slosLoaded"`
	Reasons    []string `json:"reasons,omitempty"`
}

// ReloadResponse reports the outcome of POST /reload.
type ReloadResponse struct {
	Reloaded   bool     `json:"reloaded"`
	SLOsLoaded int      `json:"slosLoaded"`
	ResetPairs []string `json:"resetPairs,omitempty"`
	Errors     []string `json:"errors,omitempty"`
}

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error string `json:"error"`
}
