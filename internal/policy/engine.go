// Package policy maps remaining error budget into discrete zones and
// answers deployment-gating queries.
package policy

import (
	"fmt"

	"github.com/slogate/slogate/internal/eval"
	"github.com/slogate/slogate/internal/log"
	"github.com/slogate/slogate/internal/metrics"
	"github.com/slogate/slogate/internal/slo"
)

// Engine evaluates budget zones and gate decisions. Zone boundaries come
// from configuration; the defaults are green >= 0.75, yellow >= 0.25,
// orange >= 0, red below zero.
type Engine struct {
	greenMin  float64
	yellowMin float64
	orangeMin float64
	logger    log.Logger
}

// NewEngine creates a policy engine with the given zone configuration.
func NewEngine(p slo.Policy, logger log.Logger) *Engine {
	green, yellow, orange := p.Thresholds()
	return &Engine{
		greenMin:  green,
		yellowMin: yellow,
		orangeMin: orange,
		logger:    logger,
	}
}

// Zone maps a remaining-budget fraction to its zone. The four ranges cover
// the whole real line with no gaps or overlaps.
func (e *Engine) Zone(remaining float64) Zone {
	switch {
	case remaining >= e.greenMin:
		return ZoneGreen
	case remaining >= e.yellowMin:
		return ZoneYellow
	case remaining >= e.orangeMin:
		return ZoneOrange
	default:
		return ZoneRed
	}
}

// ZoneFor maps an evaluation result to its zone. A result with no budget
// data lands in the most permissive zone; the caller decides whether that
// warrants the degraded-observability warning.
func (e *Engine) ZoneFor(result *eval.Result) Zone {
	if !result.BudgetDefined {
		return ZoneGreen
	}
	return e.Zone(result.BudgetRemaining)
}

// Decide answers a CanDeploy query for one SLO evaluation. It is pure apart
// from the degraded-observability warning: if the SLI has no data the
// decision defaults to the most permissive zone and is flagged as degraded.
func (e *Engine) Decide(result *eval.Result, change ChangeType) Decision {
	if !result.BudgetDefined {
		metrics.DegradedObservability.WithLabelValues(result.Service, result.SLOID).Inc()
		e.logger.WithValues(log.Kv{"service": result.Service, "slo": result.SLOID}).
			Warningf("no SLI data for gate decision, defaulting to permissive zone (degraded observability)")
		return Decision{
			Allowed:         true,
			Zone:            ZoneGreen,
			BudgetRemaining: 1,
			Degraded:        true,
			Reason:          "no SLI data; defaulting to permissive decision",
		}
	}

	zone := e.Zone(result.BudgetRemaining)
	allowed, reason := e.canDeploy(zone, change)
	return Decision{
		Allowed:         allowed,
		Zone:            zone,
		BudgetRemaining: result.BudgetRemaining,
		Reason:          reason,
	}
}

// canDeploy applies the gating matrix:
//   - security and data-loss-prevention changes always pass,
//   - red blocks everything else,
//   - orange blocks feature changes,
//   - every other combination passes.
func (e *Engine) canDeploy(zone Zone, change ChangeType) (bool, string) {
	switch change {
	case ChangeSecurity, ChangeDataLoss:
		return true, fmt.Sprintf("%s changes are always allowed", change)
	}

	switch zone {
	case ZoneRed:
		return false, "error budget exceeded (red zone)"
	case ZoneOrange:
		if change == ChangeFeature {
			return false, "feature changes blocked in orange zone"
		}
	}
	return true, fmt.Sprintf("budget zone %s permits %s changes", zone, change)
}
