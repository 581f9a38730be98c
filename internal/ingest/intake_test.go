package ingest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/slogate/slogate/internal/log"
	"github.com/slogate/slogate/internal/slo"
	"github.com/slogate/slogate/internal/window"
)

func boolPtr(b bool) *bool { return &b }

func floatPtr(f float64) *float64 { return &f }

func testIntake(t *testing.T, now time.Time) (*Intake, *window.Aggregator) {
	t.Helper()
	threshold := 250.0
	cfg := &slo.Config{
		SLOs: []slo.SLO{
			{ID: "checkout-availability", Service: "checkout", SLI: slo.SLIAvailability, Target: 0.999, Window: "30d"},
			{ID: "checkout-latency", Service: "checkout", SLI: slo.SLILatency, Target: 0.99, Window: "30d", LatencyThresholdMs: &threshold},
		},
	}
	agg := window.New([]time.Duration{time.Hour}, window.DefaultBucketsPerWindow,
		window.WithClock(func() time.Time { return now }))
	intake := NewIntake(agg, cfg, log.Noop)
	intake.now = func() time.Time { return now }
	return intake, agg
}

func TestApply_ExplicitGoodFlag(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	intake, agg := testIntake(t, now)

	accepted, skipped := intake.Apply([]Observation{
		{Service: "checkout", SLI: slo.SLIAvailability, Timestamp: now, Good: boolPtr(true)},
		{Service: "checkout", SLI: slo.SLIAvailability, Timestamp: now, Good: boolPtr(true)},
		{Service: "checkout", SLI: slo.SLIAvailability, Timestamp: now, Good: boolPtr(false)},
	})
	assert.Equal(t, 3, accepted)
	assert.Zero(t, skipped)

	good, total := agg.Ratio("checkout", "availability", time.Hour)
	assert.Equal(t, uint64(2), good)
	assert.Equal(t, uint64(3), total)
}

func TestApply_LatencyThresholdJudgment(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	intake, agg := testIntake(t, now)

	accepted, skipped := intake.Apply([]Observation{
		{Service: "checkout", SLI: slo.SLILatency, Timestamp: now, Value: floatPtr(120)},
		{Service: "checkout", SLI: slo.SLILatency, Timestamp: now, Value: floatPtr(250)}, // at threshold is good
		{Service: "checkout", SLI: slo.SLILatency, Timestamp: now, Value: floatPtr(251)},
	})
	assert.Equal(t, 3, accepted)
	assert.Zero(t, skipped)

	good, total := agg.Ratio("checkout", "latency", time.Hour)
	assert.Equal(t, uint64(2), good)
	assert.Equal(t, uint64(3), total)
}

func TestApply_ExplicitFlagWinsOverValue(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	intake, agg := testIntake(t, now)

	// A fast response explicitly marked bad stays bad.
	intake.Apply([]Observation{
		{Service: "checkout", SLI: slo.SLILatency, Timestamp: now, Good: boolPtr(false), Value: floatPtr(10)},
	})

	good, total := agg.Ratio("checkout", "latency", time.Hour)
	assert.Equal(t, uint64(0), good)
	assert.Equal(t, uint64(1), total)
}

func TestApply_SkipsUnjudgeable(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	intake, agg := testIntake(t, now)

	accepted, skipped := intake.Apply([]Observation{
		// No good flag, no value.
		{Service: "checkout", SLI: slo.SLIAvailability, Timestamp: now},
		// Value present but no latency threshold configured for this pair.
		{Service: "checkout", SLI: slo.SLIAvailability, Timestamp: now, Value: floatPtr(100)},
		// Missing identity.
		{Timestamp: now, Good: boolPtr(true)},
		{Service: "checkout", SLI: slo.SLIAvailability, Timestamp: now, Good: boolPtr(true)},
	})
	assert.Equal(t, 1, accepted)
	assert.Equal(t, 3, skipped)

	_, total := agg.Ratio("checkout", "availability", time.Hour)
	assert.Equal(t, uint64(1), total)
}

func TestApply_ZeroTimestampUsesNow(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	intake, agg := testIntake(t, now)

	intake.Apply([]Observation{
		{Service: "checkout", SLI: slo.SLIAvailability, Good: boolPtr(true)},
	})

	good, total := agg.Ratio("checkout", "availability", time.Hour)
	assert.Equal(t, uint64(1), good)
	assert.Equal(t, uint64(1), total)
}

func TestReload_SwapsThresholds(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	intake, agg := testIntake(t, now)

	tighter := 100.0
	intake.Reload(&slo.Config{
		SLOs: []slo.SLO{
			{ID: "checkout-latency", Service: "checkout", SLI: slo.SLILatency, Target: 0.99, Window: "30d", LatencyThresholdMs: &tighter},
		},
	})

	intake.Apply([]Observation{
		{Service: "checkout", SLI: slo.SLILatency, Timestamp: now, Value: floatPtr(150)},
	})

	good, total := agg.Ratio("checkout", "latency", time.Hour)
	assert.Equal(t, uint64(0), good)
	assert.Equal(t, uint64(1), total)
}
