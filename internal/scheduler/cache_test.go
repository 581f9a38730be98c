package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slogate/slogate/internal/eval"
	"github.com/slogate/slogate/internal/policy"
)

func TestStateCache_GetSet(t *testing.T) {
	cache := NewStateCache()

	_, ok := cache.Get("missing")
	assert.False(t, ok)

	state := &EvaluationState{
		Result:    &eval.Result{SLOID: "checkout-availability"},
		Zone:      policy.ZoneGreen,
		UpdatedAt: time.Now(),
		TTL:       30 * time.Second,
	}
	cache.Set("checkout-availability", state)

	got, ok := cache.Get("checkout-availability")
	require.True(t, ok)
	assert.Equal(t, policy.ZoneGreen, got.Zone)
	assert.Equal(t, "checkout-availability", got.Result.SLOID)
	assert.Equal(t, 1, cache.Size())
}

func TestStateCache_Clear(t *testing.T) {
	cache := NewStateCache()
	cache.Set("a", &EvaluationState{})
	cache.Set("b", &EvaluationState{})
	require.Equal(t, 2, cache.Size())

	cache.Clear()
	assert.Zero(t, cache.Size())
	_, ok := cache.Get("a")
	assert.False(t, ok)
}

func TestEvaluationState_IsStale(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	state := &EvaluationState{UpdatedAt: now, TTL: 30 * time.Second}

	assert.False(t, state.IsStale(now))
	assert.False(t, state.IsStale(now.Add(30*time.Second)))
	assert.True(t, state.IsStale(now.Add(31*time.Second)))
}
