package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slogate/slogate/internal/alert"
	"github.com/slogate/slogate/internal/eval"
	"github.com/slogate/slogate/internal/ingest"
	"github.com/slogate/slogate/internal/log"
	"github.com/slogate/slogate/internal/policy"
	"github.com/slogate/slogate/internal/scheduler"
	"github.com/slogate/slogate/internal/slo"
	"github.com/slogate/slogate/internal/window"
)

const testConfigYAML = `apiVersion: slogate/v1
slos:
  - id: checkout-availability
    service: checkout
    sli: availability
    target: 0.999
    window: 30d
rules:
  - name: checkout-fast-burn
    sloRef: checkout-availability
    shortWindow: 5m
    longWindow: 1h
    burnRateThreshold: 14.4
    for: 2m
    severity: page
`

func testServer(t *testing.T) *Server {
	t.Helper()

	configFile := filepath.Join(t.TempDir(), "slo.yaml")
	require.NoError(t, os.WriteFile(configFile, []byte(testConfigYAML), 0o644))

	validator, err := slo.NewValidator("../../schemas/slo_v1.json")
	require.NoError(t, err)

	cfg, errs := validator.ValidateFile(configFile)
	require.Empty(t, errs)

	windows, err := eval.RequiredWindows(cfg)
	require.NoError(t, err)
	agg := window.New(windows, window.DefaultBucketsPerWindow)

	intake := ingest.NewIntake(agg, cfg, log.Noop)
	policyEngine := policy.NewEngine(cfg.Policy, log.Noop)
	alertEngine := alert.NewEngine(nil, log.Noop)
	sched := scheduler.NewScheduler(eval.NewEvaluator(agg), alertEngine, policyEngine, cfg, log.Noop)
	t.Cleanup(sched.Stop)

	return NewServer(sched, intake, agg, policyEngine, validator, configFile, "127.0.0.1:0", log.Noop)
}

func doRequest(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, out interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out))
}

func TestHealthz(t *testing.T) {
	s := testServer(t)
	rec := doRequest(t, s, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	var resp HealthResponse
	decode(t, rec, &resp)
	assert.Equal(t, "ok", resp.Status)
}

func TestReadyz(t *testing.T) {
	s := testServer(t)
	rec := doRequest(t, s, http.MethodGet, "/readyz", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	var resp ReadyResponse
	decode(t, rec, &resp)
	assert.True(t, resp.Ready)
	assert.Equal(t, 1, resp.SLOsLoaded)
}

func TestObservationsThenSLI(t *testing.T) {
	s := testServer(t)

	now := time.Now().UTC().Format(time.RFC3339)
	body := `{"observations":[
		{"service":"checkout","sli":"availability","timestamp":"` + now + `","good":true},
		{"service":"checkout","sli":"availability","timestamp":"` + now + `","good":true},
		{"service":"checkout","sli":"availability","timestamp":"` + now + `","good":false},
		{"service":"checkout","sli":"availability"}
	]}`

	rec := doRequest(t, s, http.MethodPost, "/observations", body)
	require.Equal(t, http.StatusAccepted, rec.Code)

	var obsResp ObservationsResponse
	decode(t, rec, &obsResp)
	assert.Equal(t, 3, obsResp.Accepted)
	assert.Equal(t, 1, obsResp.Skipped)

	rec = doRequest(t, s, http.MethodGet, "/sli/checkout/availability?window=1h", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var sliResp SLIResponse
	decode(t, rec, &sliResp)
	assert.Equal(t, uint64(2), sliResp.Good)
	assert.Equal(t, uint64(3), sliResp.Total)
	require.NotNil(t, sliResp.Ratio)
	assert.InDelta(t, 2.0/3.0, *sliResp.Ratio, 1e-9)
	assert.False(t, sliResp.Undefined)
}

func TestSLI_UndefinedIsNull(t *testing.T) {
	s := testServer(t)

	rec := doRequest(t, s, http.MethodGet, "/sli/checkout/availability?window=1h", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp SLIResponse
	decode(t, rec, &resp)
	assert.True(t, resp.Undefined)
	assert.Nil(t, resp.Ratio)
	assert.Contains(t, rec.Body.String(), `"ratio":null`)
}

func TestSLI_BadRequests(t *testing.T) {
	s := testServer(t)

	tests := []struct {
		path string
		code int
	}{
		{"/sli/checkout/availability", http.StatusBadRequest},            // missing window
		{"/sli/checkout/availability?window=7x", http.StatusBadRequest},  // bad duration
		{"/sli/checkout/availability?window=15m", http.StatusBadRequest}, // untracked window
		{"/sli/checkout?window=1h", http.StatusBadRequest},               // bad path
	}
	for _, tt := range tests {
		rec := doRequest(t, s, http.MethodGet, tt.path, "")
		assert.Equal(t, tt.code, rec.Code, "path %s", tt.path)
	}
}

func TestObservations_BadRequests(t *testing.T) {
	s := testServer(t)

	rec := doRequest(t, s, http.MethodPost, "/observations", `{"observations":[]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(t, s, http.MethodPost, "/observations", `not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(t, s, http.MethodGet, "/observations", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestBudget(t *testing.T) {
	s := testServer(t)

	body := `{"observations":[{"service":"checkout","sli":"availability","good":true}]}`
	require.Equal(t, http.StatusAccepted, doRequest(t, s, http.MethodPost, "/observations", body).Code)

	rec := doRequest(t, s, http.MethodGet, "/budget/checkout/checkout-availability", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp BudgetResponse
	decode(t, rec, &resp)
	assert.Equal(t, "checkout-availability", resp.SLOID)
	assert.Equal(t, 0.999, resp.Target)
	assert.Equal(t, "green", resp.Zone)
	require.NotNil(t, resp.RemainingRatio)
	assert.InDelta(t, 1.0, *resp.RemainingRatio, 1e-9)
	assert.False(t, resp.InsufficientData)
}

func TestBudget_ForceFresh(t *testing.T) {
	s := testServer(t)

	good := `{"observations":[{"service":"checkout","sli":"availability","good":true}]}`
	require.Equal(t, http.StatusAccepted, doRequest(t, s, http.MethodPost, "/observations", good).Code)

	rec := doRequest(t, s, http.MethodGet, "/budget/checkout/checkout-availability", "")
	require.Equal(t, http.StatusOK, rec.Code)

	// New failures land after the state was cached; a plain query still
	// serves the cached result, force_fresh re-evaluates.
	bad := `{"observations":[{"service":"checkout","sli":"availability","good":false}]}`
	require.Equal(t, http.StatusAccepted, doRequest(t, s, http.MethodPost, "/observations", bad).Code)

	var resp BudgetResponse
	decode(t, doRequest(t, s, http.MethodGet, "/budget/checkout/checkout-availability", ""), &resp)
	require.NotNil(t, resp.RemainingRatio)
	assert.InDelta(t, 1.0, *resp.RemainingRatio, 1e-9)

	decode(t, doRequest(t, s, http.MethodGet, "/budget/checkout/checkout-availability?force_fresh=true", ""), &resp)
	require.NotNil(t, resp.RemainingRatio)
	assert.Less(t, *resp.RemainingRatio, 1.0)
}

func TestBudget_NotFound(t *testing.T) {
	s := testServer(t)

	rec := doRequest(t, s, http.MethodGet, "/budget/checkout/nope", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// Known SLO under the wrong service is also a 404.
	rec = doRequest(t, s, http.MethodGet, "/budget/search/checkout-availability", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCanDeploy(t *testing.T) {
	s := testServer(t)

	body := `{"observations":[{"service":"checkout","sli":"availability","good":true}]}`
	require.Equal(t, http.StatusAccepted, doRequest(t, s, http.MethodPost, "/observations", body).Code)

	rec := doRequest(t, s, http.MethodGet, "/policy/can_deploy?service=checkout&slo=checkout-availability&change_type=feature", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp CanDeployResponse
	decode(t, rec, &resp)
	assert.True(t, resp.Allowed)
	assert.Equal(t, "green", resp.Zone)
	assert.False(t, resp.Degraded)
}

func TestCanDeploy_DegradedWithoutData(t *testing.T) {
	s := testServer(t)

	rec := doRequest(t, s, http.MethodGet, "/policy/can_deploy?service=checkout&slo=checkout-availability&change_type=feature", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp CanDeployResponse
	decode(t, rec, &resp)
	assert.True(t, resp.Allowed)
	assert.True(t, resp.Degraded)
	assert.Equal(t, "green", resp.Zone)
}

func TestCanDeploy_MissingParams(t *testing.T) {
	s := testServer(t)
	rec := doRequest(t, s, http.MethodGet, "/policy/can_deploy?service=checkout", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAlerts_EmptyState(t *testing.T) {
	s := testServer(t)

	rec := doRequest(t, s, http.MethodGet, "/alerts", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp AlertsResponse
	decode(t, rec, &resp)
	assert.Empty(t, resp.Alerts)
}

func TestAudit_UnavailableWithoutStorage(t *testing.T) {
	s := testServer(t)

	rec := doRequest(t, s, http.MethodGet, "/audit/evaluations", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = doRequest(t, s, http.MethodGet, "/audit/transitions", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestReload(t *testing.T) {
	s := testServer(t)

	rec := doRequest(t, s, http.MethodPost, "/reload", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp ReloadResponse
	decode(t, rec, &resp)
	assert.True(t, resp.Reloaded)
	assert.Equal(t, 1, resp.SLOsLoaded)
	assert.Empty(t, resp.ResetPairs, "unchanged SLOs keep their buckets")
}

func TestReload_InvalidConfig(t *testing.T) {
	s := testServer(t)

	require.NoError(t, os.WriteFile(s.configFile, []byte("apiVersion: slogate/v1\nslos: []\n"), 0o644))

	rec := doRequest(t, s, http.MethodPost, "/reload", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestReload_NewWindowNeedsRestart(t *testing.T) {
	s := testServer(t)

	changed := strings.Replace(testConfigYAML, "shortWindow: 5m", "shortWindow: 30m", 1)
	require.NoError(t, os.WriteFile(s.configFile, []byte(changed), 0o644))

	rec := doRequest(t, s, http.MethodPost, "/reload", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestReload_ChangedSLOResetsBuckets(t *testing.T) {
	s := testServer(t)

	body := `{"observations":[{"service":"checkout","sli":"availability","good":true}]}`
	require.Equal(t, http.StatusAccepted, doRequest(t, s, http.MethodPost, "/observations", body).Code)

	changed := strings.Replace(testConfigYAML, "target: 0.999", "target: 0.995", 1)
	require.NoError(t, os.WriteFile(s.configFile, []byte(changed), 0o644))

	rec := doRequest(t, s, http.MethodPost, "/reload", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp ReloadResponse
	decode(t, rec, &resp)
	assert.Equal(t, []string{"checkout/availability"}, resp.ResetPairs)

	rec = doRequest(t, s, http.MethodGet, "/sli/checkout/availability?window=1h", "")
	var sliResp SLIResponse
	decode(t, rec, &sliResp)
	assert.True(t, sliResp.Undefined)
}
