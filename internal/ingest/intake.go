// Package ingest normalizes incoming service events into uniform good/total
// observations and feeds them to the window aggregator.
package ingest

import (
	"sync"
	"time"

	"github.com/slogate/slogate/internal/log"
	"github.com/slogate/slogate/internal/metrics"
	"github.com/slogate/slogate/internal/slo"
	"github.com/slogate/slogate/internal/window"
)

// Observation is one raw success/failure/latency record as received on the
// wire. Either Good is set explicitly, or (for latency SLIs) Value is
// judged against the SLO's configured threshold.
type Observation struct {
	Service   string      `json:"service"`
	SLI       slo.SLIType `json:"sli"`
	Timestamp time.Time   `json:"timestamp"`
	Good      *bool       `json:"good,omitempty"`
	Value     *float64    `json:"value,omitempty"`
}

type thresholdKey struct {
	service string
	sli     slo.SLIType
}

// Intake turns observations into aggregator records. The latency threshold
// judgment happens here so everything downstream operates on plain
// good/total counts regardless of SLI type.
type Intake struct {
	agg    *window.Aggregator
	logger log.Logger
	now    func() time.Time

	mu         sync.RWMutex
	thresholds map[thresholdKey]float64
}

// NewIntake creates an intake for the given configuration.
func NewIntake(agg *window.Aggregator, cfg *slo.Config, logger log.Logger) *Intake {
	i := &Intake{
		agg:    agg,
		logger: logger,
		now:    time.Now,
	}
	i.Reload(cfg)
	return i
}

// Reload rebuilds the latency threshold table from a new configuration.
func (i *Intake) Reload(cfg *slo.Config) {
	thresholds := make(map[thresholdKey]float64)
	for _, s := range cfg.SLOs {
		if s.LatencyThresholdMs != nil {
			thresholds[thresholdKey{s.Service, s.SLI}] = *s.LatencyThresholdMs
		}
	}

	i.mu.Lock()
	i.thresholds = thresholds
	i.mu.Unlock()
}

// Apply records a batch of observations. Records that cannot be classified
// as good or bad are skipped and counted; the batch itself never fails.
func (i *Intake) Apply(batch []Observation) (accepted, skipped int) {
	for _, obs := range batch {
		good, ok := i.classify(obs)
		if !ok {
			skipped++
			continue
		}

		ts := obs.Timestamp
		if ts.IsZero() {
			ts = i.now()
		}

		i.agg.Record(obs.Service, string(obs.SLI), ts, good)
		metrics.ObservationsTotal.WithLabelValues(obs.Service, string(obs.SLI)).Inc()
		accepted++
	}
	return accepted, skipped
}

// classify resolves the good flag for one observation. An explicit flag
// wins; otherwise a latency value is compared against the configured
// threshold.
func (i *Intake) classify(obs Observation) (good, ok bool) {
	if obs.Service == "" || obs.SLI == "" {
		return false, false
	}
	if obs.Good != nil {
		return *obs.Good, true
	}
	if obs.Value != nil {
		i.mu.RLock()
		threshold, exists := i.thresholds[thresholdKey{obs.Service, obs.SLI}]
		i.mu.RUnlock()
		if exists {
			return *obs.Value <= threshold, true
		}
	}
	i.logger.WithValues(log.Kv{"service": obs.Service, "sli": obs.SLI}).
		Debugf("observation has neither a good flag nor a judgeable value, skipping")
	return false, false
}
