// Package scheduler drives the periodic evaluation loop: one independent
// task per SLO, each with its own tick interval and timeout, so a slow rule
// group never delays another.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/slogate/slogate/internal/alert"
	"github.com/slogate/slogate/internal/eval"
	"github.com/slogate/slogate/internal/log"
	"github.com/slogate/slogate/internal/metrics"
	"github.com/slogate/slogate/internal/policy"
	"github.com/slogate/slogate/internal/slo"
	"github.com/slogate/slogate/internal/storage"
)

// DefaultTick is the evaluation interval used when the config does not
// override it per SLO.
const DefaultTick = 30 * time.Second

// Scheduler manages periodic SLO evaluations.
type Scheduler struct {
	evaluator    *eval.Evaluator
	alertEngine  *alert.Engine
	policyEngine *policy.Engine
	cache        *StateCache
	logger       log.Logger

	defaultTick time.Duration
	audit       storage.AuditStorage

	mu      sync.RWMutex
	cfg     *slo.Config
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
}

// NewScheduler creates a scheduler over the given engines.
func NewScheduler(evaluator *eval.Evaluator, alertEngine *alert.Engine, policyEngine *policy.Engine, cfg *slo.Config, logger log.Logger) *Scheduler {
	return &Scheduler{
		evaluator:    evaluator,
		alertEngine:  alertEngine,
		policyEngine: policyEngine,
		cache:        NewStateCache(),
		logger:       logger,
		defaultTick:  DefaultTick,
		cfg:          cfg,
	}
}

// SetAuditStorage sets the audit storage backend (optional).
func (s *Scheduler) SetAuditStorage(audit storage.AuditStorage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.audit = audit
}

// SetDefaultTick overrides the engine-wide evaluation interval.
func (s *Scheduler) SetDefaultTick(d time.Duration) {
	if d > 0 {
		s.defaultTick = d
	}
}

// Start begins one evaluation loop per configured SLO.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("scheduler already running")
	}

	cfg := s.cfg
	if cfg == nil || len(cfg.SLOs) == 0 {
		s.mu.Unlock()
		return fmt.Errorf("no SLOs configured")
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.running = true
	s.mu.Unlock()

	if audit := s.auditStore(); audit != nil {
		for i := range cfg.SLOs {
			if err := audit.StoreSLODefinition(ctx, &cfg.SLOs[i]); err != nil {
				s.logger.Warningf("failed to store SLO definition %s: %v", cfg.SLOs[i].ID, err)
			}
		}
	}

	for i := range cfg.SLOs {
		s.wg.Add(1)
		go s.evaluateLoop(ctx, cfg.SLOs[i])
	}

	s.logger.Infof("started scheduler for %d SLOs", len(cfg.SLOs))
	return nil
}

// Stop stops the scheduler. In-flight ticks finish their current
// evaluation, bounded by the per-tick timeout.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.cancel()
	s.running = false
	s.mu.Unlock()

	s.wg.Wait()
	s.logger.Infof("scheduler stopped")
}

// Reload swaps in a new configuration and restarts the evaluation loops.
// Cached states and alert states are reset; accumulated buckets are the
// caller's concern (see the reload handler).
func (s *Scheduler) Reload(cfg *slo.Config) error {
	s.Stop()

	s.mu.Lock()
	s.cfg = cfg
	s.mu.Unlock()

	s.cache.Clear()
	s.alertEngine.Reset()

	return s.Start()
}

// Config returns the currently loaded configuration.
func (s *Scheduler) Config() *slo.Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

// GetCache returns the state cache.
func (s *Scheduler) GetCache() *StateCache {
	return s.cache
}

// GetAuditStorage returns the audit storage backend.
func (s *Scheduler) GetAuditStorage() storage.AuditStorage {
	return s.auditStore()
}

// AlertStates returns a snapshot of the alert rule states.
func (s *Scheduler) AlertStates() map[string]alert.State {
	return s.alertEngine.States()
}

// EvaluateNow forces an immediate evaluation of one SLO.
func (s *Scheduler) EvaluateNow(sloID string) error {
	s.mu.RLock()
	cfg := s.cfg
	s.mu.RUnlock()

	target := cfg.FindSLO(sloID)
	if target == nil {
		return fmt.Errorf("SLO not found: %s", sloID)
	}

	s.evaluateOnce(context.Background(), *target, s.tickFor(*target))
	return nil
}

func (s *Scheduler) auditStore() storage.AuditStorage {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.audit
}

// tickFor resolves the evaluation interval for one SLO.
func (s *Scheduler) tickFor(sloSpec slo.SLO) time.Duration {
	if sloSpec.EvaluationInterval != "" {
		if d, err := slo.ParseDuration(sloSpec.EvaluationInterval); err == nil {
			return d
		}
	}
	return s.defaultTick
}

// evaluateLoop runs periodic evaluations for a single SLO.
func (s *Scheduler) evaluateLoop(ctx context.Context, sloSpec slo.SLO) {
	defer s.wg.Done()

	interval := s.tickFor(sloSpec)

	s.evaluateOnce(ctx, sloSpec, interval)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.evaluateOnce(ctx, sloSpec, interval)
		}
	}
}

// evaluateOnce performs a single evaluation tick for one SLO: compute the
// result, run every rule referencing it, derive the zone, cache and audit.
// The tick is bounded by its own timeout; an overrun is abandoned and
// logged, never retried.
func (s *Scheduler) evaluateOnce(ctx context.Context, sloSpec slo.SLO, interval time.Duration) {
	ctx, cancel := context.WithTimeout(ctx, interval)
	defer cancel()

	now := time.Now()
	start := now

	s.mu.RLock()
	rules := s.cfg.RulesFor(sloSpec.ID)
	s.mu.RUnlock()

	result, err := s.evaluator.Evaluate(&sloSpec, rules, now)
	if err != nil {
		metrics.EvaluationsTotal.WithLabelValues(sloSpec.ID, "error").Inc()
		s.logger.Errorf("error evaluating SLO %s: %v", sloSpec.ID, err)
		return
	}

	for _, rule := range rules {
		s.alertEngine.Evaluate(ctx, rule, result, now)
	}

	zone := s.policyEngine.ZoneFor(result)

	s.cache.Set(sloSpec.ID, &EvaluationState{
		Result:    result,
		Zone:      zone,
		UpdatedAt: now,
		TTL:       interval,
	})

	if audit := s.auditStore(); audit != nil {
		if err := audit.StoreEvaluation(ctx, result, zone); err != nil {
			s.logger.Warningf("failed to store evaluation for SLO %s: %v", sloSpec.ID, err)
		}
	}

	elapsed := time.Since(start)
	metrics.EvaluationDuration.Observe(elapsed.Seconds())
	metrics.EvaluationsTotal.WithLabelValues(sloSpec.ID, "ok").Inc()

	if ctx.Err() != nil {
		s.logger.Warningf("evaluation tick for SLO %s exceeded its %s timeout, abandoned", sloSpec.ID, interval)
		return
	}

	s.logger.WithValues(log.Kv{
		"slo":    sloSpec.ID,
		"zone":   string(zone),
		"sli":    result.SLIValue,
		"budget": result.BudgetRemaining,
	}).Debugf("evaluated SLO in %s", elapsed)
}
