package eval

import (
	"time"

	"github.com/slogate/slogate/internal/slo"
)

// Ratio is a raw good/total count pair for one window. A zero Total is the
// Undefined sentinel: callers must never approximate it as 0.0 or 1.0.
type Ratio struct {
	Good  uint64
	Total uint64
}

// Undefined reports whether the window holds no data.
func (r Ratio) Undefined() bool {
	return r.Total == 0
}

// Value returns good/total. Only meaningful when the ratio is defined.
func (r Ratio) Value() float64 {
	if r.Total == 0 {
		return 0
	}
	good := r.Good
	if good > r.Total {
		good = r.Total
	}
	return float64(good) / float64(r.Total)
}

// ErrorRate returns 1 - Value, floored at zero.
func (r Ratio) ErrorRate() float64 {
	if r.Total == 0 {
		return 0
	}
	return 1 - r.Value()
}

// BurnRate is the burn-rate computation for one window.
type BurnRate struct {
	Window  string
	Ratio   Ratio
	Value   float64
	Defined bool
}

// Result is the complete evaluation of one SLO at one instant.
type Result struct {
	SLOID   string
	Service string
	SLI     slo.SLIType

	// Compliance is the ratio over the SLO's full window.
	Compliance Ratio

	// SLIValue is Compliance.Value; zero and meaningless when
	// InsufficientData is set.
	SLIValue float64

	// BurnRates is keyed by window string ("5m", "1h", ...).
	BurnRates map[string]BurnRate

	// BudgetRemaining is 1 - burn_rate(slo.window). Negative values mean
	// the budget is exceeded. Meaningless when BudgetDefined is false.
	BudgetRemaining float64
	BudgetDefined   bool

	// InsufficientData is set when the compliance window has no data.
	InsufficientData bool

	Timestamp time.Time
}
