package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slogate/slogate/internal/alert"
	"github.com/slogate/slogate/internal/eval"
	"github.com/slogate/slogate/internal/policy"
	"github.com/slogate/slogate/internal/slo"
	"github.com/slogate/slogate/internal/storage"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(filepath.Join(t.TempDir(), "audit.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestStoreSLODefinition_Upsert(t *testing.T) {
	store := newTestStore(t)

	s := &slo.SLO{ID: "checkout-availability", Service: "checkout", SLI: slo.SLIAvailability, Target: 0.999, Window: "30d"}
	require.NoError(t, store.StoreSLODefinition(context.Background(), s))

	// Storing the same ID again updates in place instead of failing.
	s.Target = 0.9995
	require.NoError(t, store.StoreSLODefinition(context.Background(), s))
}

func storeDefinitions(t *testing.T, store *Store, ids map[string]string) {
	t.Helper()
	for id, service := range ids {
		require.NoError(t, store.StoreSLODefinition(context.Background(), &slo.SLO{
			ID: id, Service: service, SLI: slo.SLIAvailability, Target: 0.999, Window: "30d",
		}))
	}
}

func TestStoreAndQueryEvaluations(t *testing.T) {
	store := newTestStore(t)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	storeDefinitions(t, store, map[string]string{
		"checkout-availability": "checkout",
		"search-availability":   "search",
	})

	for i := 0; i < 3; i++ {
		result := &eval.Result{
			SLOID:           "checkout-availability",
			Service:         "checkout",
			SLIValue:        0.9991,
			BudgetRemaining: 0.1 * float64(i),
			BurnRates: map[string]eval.BurnRate{
				"5m": {Window: "5m", Value: 2.5, Defined: true},
			},
			Timestamp: base.Add(time.Duration(i) * time.Minute),
		}
		require.NoError(t, store.StoreEvaluation(context.Background(), result, policy.ZoneYellow))
	}
	require.NoError(t, store.StoreEvaluation(context.Background(), &eval.Result{
		SLOID:     "search-availability",
		Service:   "search",
		Timestamp: base,
	}, policy.ZoneGreen))

	records, err := store.QueryEvaluations(context.Background(), storage.EvalFilter{SLOID: "checkout-availability"})
	require.NoError(t, err)
	require.Len(t, records, 3)

	// Newest first.
	assert.Equal(t, base.Add(2*time.Minute).Unix(), records[0].Timestamp.Unix())
	assert.Equal(t, "yellow", records[0].Zone)
	assert.InDelta(t, 2.5, records[0].BurnRates["5m"].Value, 1e-9)

	records, err = store.QueryEvaluations(context.Background(), storage.EvalFilter{Zone: "green"})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "search-availability", records[0].SLOID)

	records, err = store.QueryEvaluations(context.Background(), storage.EvalFilter{SLOID: "checkout-availability", Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, base.Add(time.Minute).Unix(), records[0].Timestamp.Unix())
}

func TestStoreAndQueryEvaluations_TimeRange(t *testing.T) {
	store := newTestStore(t)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	storeDefinitions(t, store, map[string]string{"checkout-availability": "checkout"})

	for i := 0; i < 5; i++ {
		require.NoError(t, store.StoreEvaluation(context.Background(), &eval.Result{
			SLOID:     "checkout-availability",
			Service:   "checkout",
			Timestamp: base.Add(time.Duration(i) * time.Hour),
		}, policy.ZoneGreen))
	}

	start := base.Add(time.Hour)
	end := base.Add(3 * time.Hour)
	records, err := store.QueryEvaluations(context.Background(), storage.EvalFilter{StartTime: &start, EndTime: &end})
	require.NoError(t, err)
	assert.Len(t, records, 3)
}

func TestStoreAndQueryTransitions(t *testing.T) {
	store := newTestStore(t)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	events := []alert.Event{
		{ID: "e1", RuleName: "fast-burn", Service: "checkout", Severity: "page", Status: alert.EventFiring, Value: 20.1, Timestamp: base},
		{ID: "e2", RuleName: "fast-burn", Service: "checkout", Severity: "page", Status: alert.EventResolved, Value: 0.3, Timestamp: base.Add(10 * time.Minute)},
		{ID: "e3", RuleName: "slow-burn", Service: "search", Severity: "ticket", Status: alert.EventFiring, Value: 1.2, Timestamp: base.Add(20 * time.Minute)},
	}
	for _, ev := range events {
		require.NoError(t, store.StoreAlertTransition(context.Background(), ev))
	}

	records, err := store.QueryTransitions(context.Background(), storage.TransitionFilter{RuleName: "fast-burn"})
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "e2", records[0].EventID)
	assert.Equal(t, alert.EventResolved, records[0].Status)

	records, err = store.QueryTransitions(context.Background(), storage.TransitionFilter{Status: alert.EventFiring})
	require.NoError(t, err)
	require.Len(t, records, 2)

	records, err = store.QueryTransitions(context.Background(), storage.TransitionFilter{Service: "search", Limit: 1})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, 1.2, records[0].Value)
}

func TestStore_HonorsCanceledContext(t *testing.T) {
	store := newTestStore(t)
	storeDefinitions(t, store, map[string]string{"checkout-availability": "checkout"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.Error(t, store.StoreEvaluation(ctx, &eval.Result{
		SLOID:     "checkout-availability",
		Service:   "checkout",
		Timestamp: time.Now(),
	}, policy.ZoneGreen))

	_, err := store.QueryEvaluations(ctx, storage.EvalFilter{})
	assert.Error(t, err)

	_, err = store.QueryTransitions(ctx, storage.TransitionFilter{})
	assert.Error(t, err)
}

func TestQuery_EmptyStore(t *testing.T) {
	store := newTestStore(t)

	records, err := store.QueryEvaluations(context.Background(), storage.EvalFilter{})
	require.NoError(t, err)
	assert.Empty(t, records)

	transitions, err := store.QueryTransitions(context.Background(), storage.TransitionFilter{})
	require.NoError(t, err)
	assert.Empty(t, transitions)
}
