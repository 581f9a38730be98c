package eval

// ComputeBurnRate converts a window's error rate into a multiple of the
// failure rate the SLO allows:
//
//	burn_rate = (1 - ratio) / (1 - target)
//
// A burn rate of 1.0 consumes the budget exactly as fast as the SLO allows
// over its full window. target < 1 is enforced at configuration load, so
// the denominator is never zero here.
func ComputeBurnRate(r Ratio, target float64) (float64, bool) {
	if r.Undefined() {
		return 0, false
	}
	return r.ErrorRate() / (1 - target), true
}

// ComputeBudgetRemaining returns the fraction of error budget left over the
// SLO's window: 1 - burn_rate. The result is clamped to at most 1; negative
// values are permitted and meaningful, they say by how much the budget has
// been exceeded.
func ComputeBudgetRemaining(r Ratio, target float64) (float64, bool) {
	burn, ok := ComputeBurnRate(r, target)
	if !ok {
		return 0, false
	}
	remaining := 1 - burn
	if remaining > 1 {
		remaining = 1
	}
	return remaining, true
}
