package policy

// Zone is the discrete error-budget zone derived from remaining budget.
type Zone string

const (
	ZoneGreen  Zone = "green"
	ZoneYellow Zone = "yellow"
	ZoneOrange Zone = "orange"
	ZoneRed    Zone = "red"
)

// ChangeType classifies the deployment asking for a gate decision.
type ChangeType string

const (
	ChangeSecurity ChangeType = "security"
	ChangeDataLoss ChangeType = "data-loss-prevention"
	ChangeFeature  ChangeType = "feature"
)

// Decision is the result of a deployment-gating query. Producing one has no
// side effects beyond logging; the engine never triggers a deployment.
type Decision struct {
	Allowed         bool
	Zone            Zone
	BudgetRemaining float64
	// Degraded is set when the SLI had no data and the decision defaulted
	// to the most permissive zone.
	Degraded bool
	Reason   string
}
