package eval

import (
	"fmt"
	"time"

	"github.com/slogate/slogate/internal/slo"
)

// WindowReader is the aggregator-side interface the evaluator reads from.
type WindowReader interface {
	Ratio(service, sli string, window time.Duration) (good, total uint64)
}

// Evaluator derives SLI ratios, burn rates and budget remaining from
// aggregator state. It holds no mutable state of its own; every Evaluate
// call recomputes from the windows, so the budget can never drift from the
// underlying ratios.
type Evaluator struct {
	windows WindowReader
}

// NewEvaluator creates an evaluator reading from the given window source.
func NewEvaluator(windows WindowReader) *Evaluator {
	return &Evaluator{windows: windows}
}

// Evaluate computes the full result for one SLO: the compliance-window
// ratio, one burn rate per window any rule references, and the remaining
// budget.
func (e *Evaluator) Evaluate(s *slo.SLO, rules []slo.BurnRule, now time.Time) (*Result, error) {
	if s == nil {
		return nil, fmt.Errorf("nil SLO")
	}

	sloWindow, err := slo.ParseDuration(s.Window)
	if err != nil {
		return nil, fmt.Errorf("slo %s: invalid window: %w", s.ID, err)
	}

	result := &Result{
		SLOID:     s.ID,
		Service:   s.Service,
		SLI:       s.SLI,
		BurnRates: make(map[string]BurnRate),
		Timestamp: now,
	}

	windows, err := collectWindows(s.Window, rules)
	if err != nil {
		return nil, fmt.Errorf("slo %s: %w", s.ID, err)
	}

	for name, length := range windows {
		good, total := e.windows.Ratio(s.Service, string(s.SLI), length)
		ratio := Ratio{Good: good, Total: total}
		value, defined := ComputeBurnRate(ratio, s.Target)
		result.BurnRates[name] = BurnRate{
			Window:  name,
			Ratio:   ratio,
			Value:   value,
			Defined: defined,
		}
	}

	good, total := e.windows.Ratio(s.Service, string(s.SLI), sloWindow)
	result.Compliance = Ratio{Good: good, Total: total}
	result.InsufficientData = result.Compliance.Undefined()
	if !result.InsufficientData {
		result.SLIValue = result.Compliance.Value()
	}
	result.BudgetRemaining, result.BudgetDefined = ComputeBudgetRemaining(result.Compliance, s.Target)

	return result, nil
}

// collectWindows gathers the unique windows an evaluation needs: the SLO's
// own window plus every rule's short and long windows.
func collectWindows(sloWindow string, rules []slo.BurnRule) (map[string]time.Duration, error) {
	windows := make(map[string]time.Duration)

	add := func(name string) error {
		if _, ok := windows[name]; ok {
			return nil
		}
		d, err := slo.ParseDuration(name)
		if err != nil {
			return fmt.Errorf("invalid window %q: %w", name, err)
		}
		windows[name] = d
		return nil
	}

	if err := add(sloWindow); err != nil {
		return nil, err
	}
	for _, r := range rules {
		if err := add(r.ShortWindow); err != nil {
			return nil, err
		}
		if err := add(r.LongWindow); err != nil {
			return nil, err
		}
	}
	return windows, nil
}

// RequiredWindows lists every distinct window duration the configuration
// references; the aggregator is sized from this at startup.
func RequiredWindows(cfg *slo.Config) ([]time.Duration, error) {
	seen := make(map[time.Duration]bool)
	var out []time.Duration

	add := func(name string) error {
		d, err := slo.ParseDuration(name)
		if err != nil {
			return fmt.Errorf("invalid window %q: %w", name, err)
		}
		if !seen[d] {
			seen[d] = true
			out = append(out, d)
		}
		return nil
	}

	for _, s := range cfg.SLOs {
		if err := add(s.Window); err != nil {
			return nil, err
		}
	}
	for _, r := range cfg.Rules {
		if err := add(r.ShortWindow); err != nil {
			return nil, err
		}
		if err := add(r.LongWindow); err != nil {
			return nil, err
		}
	}
	return out, nil
}
