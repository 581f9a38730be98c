package storage

import (
	"context"
	"time"

	"github.com/slogate/slogate/internal/alert"
	"github.com/slogate/slogate/internal/eval"
	"github.com/slogate/slogate/internal/policy"
	"github.com/slogate/slogate/internal/slo"
)

// AuditStorage persists engine decisions: evaluation ticks and alert
// transitions. Raw observations are never persisted here. Every call
// honors its context, so a hung backend cannot stall an evaluation tick
// past its timeout.
type AuditStorage interface {
	// StoreSLODefinition persists an SLO definition.
	StoreSLODefinition(ctx context.Context, s *slo.SLO) error

	// StoreEvaluation persists one evaluation tick.
	StoreEvaluation(ctx context.Context, result *eval.Result, zone policy.Zone) error

	// StoreAlertTransition persists one firing/resolved event.
	StoreAlertTransition(ctx context.Context, ev alert.Event) error

	// QueryEvaluations retrieves evaluation records, newest first.
	QueryEvaluations(ctx context.Context, filter EvalFilter) ([]EvaluationRecord, error)

	// QueryTransitions retrieves alert transitions, newest first.
	QueryTransitions(ctx context.Context, filter TransitionFilter) ([]TransitionRecord, error)

	// Close closes the storage connection.
	Close() error
}

// EvalFilter defines filtering options for evaluation audit queries.
type EvalFilter struct {
	SLOID     string
	Service   string
	Zone      string
	StartTime *time.Time
	EndTime   *time.Time
	Limit     int
	Offset    int
}

// TransitionFilter defines filtering options for transition queries.
type TransitionFilter struct {
	RuleName string
	Service  string
	Status   string
	Limit    int
}

// EvaluationRecord is a single persisted evaluation tick.
type EvaluationRecord struct {
	ID               int64
	SLOID            string
	Service          string
	SLIValue         float64
	BudgetRemaining  float64
	Zone             string
	InsufficientData bool
	BurnRates        map[string]eval.BurnRate
	Timestamp        time.Time
	CreatedAt        time.Time
}

// TransitionRecord is a single persisted alert transition.
type TransitionRecord struct {
	ID        int64
	EventID   string
	RuleName  string
	Service   string
	Severity  string
	Status    string
	Value     float64
	Timestamp time.Time
	CreatedAt time.Time
}
