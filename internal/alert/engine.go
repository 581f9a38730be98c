// Package alert implements the burn-rate alert rule engine: a small state
// machine per rule with minimum-duration ("for") semantics and deduplicated
// firing/resolved transitions.
package alert

import (
	"context"
	"sync"
	"time"

	"github.com/slogate/slogate/internal/eval"
	"github.com/slogate/slogate/internal/log"
	"github.com/slogate/slogate/internal/metrics"
	"github.com/slogate/slogate/internal/slo"
)

// Notifier receives transition events. Dispatch is at-least-once; the
// engine's responsibility ends once the event has been handed over.
type Notifier interface {
	Notify(ctx context.Context, ev Event) error
}

// Engine drives the per-rule alert state machines. All state transitions
// happen inside Evaluate; nothing else mutates rule state.
type Engine struct {
	mu       sync.Mutex
	states   map[string]*State
	notifier Notifier
	logger   log.Logger
}

// NewEngine creates an alert engine emitting transitions to the notifier.
func NewEngine(notifier Notifier, logger log.Logger) *Engine {
	return &Engine{
		states:   make(map[string]*State),
		notifier: notifier,
		logger:   logger,
	}
}

// Evaluate applies one tick of a rule against the evaluation result.
//
// The rule condition holds iff the burn rates of BOTH the short and the
// long window exceed the threshold. The short window confirms the problem
// is current, the long one that it is not a single-bucket blip. A window
// with no data evaluates the condition to false: absence of data is not
// evidence of failure.
func (e *Engine) Evaluate(ctx context.Context, rule slo.BurnRule, result *eval.Result, now time.Time) State {
	short, shortOK := result.BurnRates[rule.ShortWindow]
	long, longOK := result.BurnRates[rule.LongWindow]

	holds := shortOK && longOK &&
		short.Defined && long.Defined &&
		short.Value > rule.BurnRateThreshold &&
		long.Value > rule.BurnRateThreshold

	var forDuration time.Duration
	if rule.For != "" {
		// Validated at config load; a parse failure here cannot happen for
		// loaded rules, and a zero value is the correct fallback anyway.
		forDuration, _ = slo.ParseDuration(rule.For)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	st := e.states[rule.Name]
	if st == nil {
		st = &State{Status: StatusInactive}
		e.states[rule.Name] = st
	}
	st.LastValue = short.Value

	switch {
	case holds && st.Status == StatusInactive:
		st.Status = StatusPending
		st.PendingSince = now
		metrics.AlertTransitions.WithLabelValues(rule.Name, string(StatusPending)).Inc()
		// With for == 0 the rule fires on the same tick.
		if now.Sub(st.PendingSince) >= forDuration {
			e.fire(ctx, rule, result, st, now)
		}

	case holds && st.Status == StatusPending:
		if now.Sub(st.PendingSince) >= forDuration {
			e.fire(ctx, rule, result, st, now)
		}

	case !holds && st.Status == StatusPending:
		// The pending timer keeps no partial progress: one good tick
		// resets it, so intermittent noise never accumulates into a page.
		st.Status = StatusInactive
		st.PendingSince = time.Time{}
		metrics.AlertTransitions.WithLabelValues(rule.Name, string(StatusInactive)).Inc()

	case !holds && st.Status == StatusFiring:
		st.Status = StatusInactive
		st.PendingSince = time.Time{}
		metrics.AlertTransitions.WithLabelValues(rule.Name, string(StatusInactive)).Inc()
		metrics.AlertsFiring.Dec()
		e.emit(ctx, Event{
			RuleName:  rule.Name,
			Service:   result.Service,
			Severity:  rule.Severity,
			Status:    EventResolved,
			Value:     st.LastValue,
			Timestamp: now,
		})
	}

	return *st
}

// fire transitions a rule to Firing and emits the notification exactly once.
func (e *Engine) fire(ctx context.Context, rule slo.BurnRule, result *eval.Result, st *State, now time.Time) {
	st.Status = StatusFiring
	st.PendingSince = time.Time{}
	metrics.AlertTransitions.WithLabelValues(rule.Name, string(StatusFiring)).Inc()
	metrics.AlertsFiring.Inc()
	e.emit(ctx, Event{
		RuleName:  rule.Name,
		Service:   result.Service,
		Severity:  rule.Severity,
		Status:    EventFiring,
		Value:     st.LastValue,
		Timestamp: now,
	})
}

// emit hands an event to the notifier. Delivery beyond the dispatcher's own
// retries is the receiver's problem.
func (e *Engine) emit(ctx context.Context, ev Event) {
	if e.notifier == nil {
		return
	}
	if err := e.notifier.Notify(ctx, ev); err != nil {
		e.logger.WithValues(log.Kv{"rule": ev.RuleName, "status": ev.Status}).
			Errorf("notification dispatch failed: %v", err)
	}
}

// States returns a snapshot of all rule states.
func (e *Engine) States() map[string]State {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make(map[string]State, len(e.states))
	for name, st := range e.states {
		out[name] = *st
	}
	return out
}

// State returns the state for one rule.
func (e *Engine) State(ruleName string) (State, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	st, ok := e.states[ruleName]
	if !ok {
		return State{Status: StatusInactive}, false
	}
	return *st, true
}

// Reset drops all rule states. Used on config reload.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, st := range e.states {
		if st.Status == StatusFiring {
			metrics.AlertsFiring.Dec()
		}
	}
	e.states = make(map[string]*State)
}
