// Package api exposes the engine's HTTP surface: observation intake, SLI
// and budget queries, the deployment gate, alert state, audit queries and
// operator-driven reload.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/slogate/slogate/internal/eval"
	"github.com/slogate/slogate/internal/ingest"
	"github.com/slogate/slogate/internal/log"
	"github.com/slogate/slogate/internal/policy"
	"github.com/slogate/slogate/internal/scheduler"
	"github.com/slogate/slogate/internal/slo"
	"github.com/slogate/slogate/internal/storage"
	"github.com/slogate/slogate/internal/window"
)

// Server is the HTTP API server.
type Server struct {
	scheduler  *scheduler.Scheduler
	intake     *ingest.Intake
	agg        *window.Aggregator
	policy     *policy.Engine
	validator  *slo.Validator
	configFile string
	logger     log.Logger
	server     *http.Server
}

// NewServer creates a new API server.
func NewServer(sched *scheduler.Scheduler, intake *ingest.Intake, agg *window.Aggregator, policyEngine *policy.Engine, validator *slo.Validator, configFile, addr string, logger log.Logger) *Server {
	s := &Server{
		scheduler:  sched,
		intake:     intake,
		agg:        agg,
		policy:     policyEngine,
		validator:  validator,
		configFile: configFile,
		logger:     logger,
	}

	mux := http.NewServeMux()

	// Health endpoints
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/readyz", s.handleReady)
	mux.Handle("/metrics", promhttp.Handler())

	// Ingestion interface
	mux.HandleFunc("/observations", s.handleObservations)

	// Query interface
	mux.HandleFunc("/sli/", s.handleSLI)
	mux.HandleFunc("/budget/", s.handleBudget)
	mux.HandleFunc("/policy/can_deploy", s.handleCanDeploy)
	mux.HandleFunc("/alerts", s.handleAlerts)

	// Audit interface
	mux.HandleFunc("/audit/evaluations", s.handleAuditEvaluations)
	mux.HandleFunc("/audit/transitions", s.handleAuditTransitions)

	// Operator actions
	mux.HandleFunc("/reload", s.handleReload)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.loggingMiddleware(mux),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	return s
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.logger.Infof("starting API server on %s", s.server.Addr)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Infof("shutting down API server")
	return s.server.Shutdown(ctx)
}

// Handler returns the server's HTTP handler, for tests.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// handleHealth handles GET /healthz.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	respondJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// handleReady handles GET /readyz.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	cfg := s.scheduler.Config()
	cacheSize := s.scheduler.GetCache().Size()

	ready := cfg != nil && len(cfg.SLOs) > 0
	reasons := []string{}

	if !ready {
		reasons = append(reasons, "no SLOs loaded")
	}
	if cacheSize == 0 {
		reasons = append(reasons, "no evaluations cached yet")
	}

	status := http.StatusOK
	if !ready {
		status = http.StatusServiceUnavailable
	}

	slosLoaded := 0
	if cfg != nil {
		slosLoaded = len(cfg.SLOs)
	}

	respondJSON(w, status, ReadyResponse{
		Ready:      ready,
		SLOsLoaded: slosLoaded,
		Reasons:    reasons,
	})
}

// handleObservations handles POST /observations.
func (s *Server) handleObservations(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req ObservationsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, fmt.Sprintf("invalid request: %v", err))
		return
	}

	if len(req.Observations) == 0 {
		respondError(w, http.StatusBadRequest, "observations required")
		return
	}

	accepted, skipped := s.intake.Apply(req.Observations)
	respondJSON(w, http.StatusAccepted, ObservationsResponse{
		Accepted: accepted,
		Skipped:  skipped,
	})
}

// handleSLI handles GET /sli/{service}/{sli}?window=.
func (s *Server) handleSLI(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	path := strings.TrimPrefix(r.URL.Path, "/sli/")
	parts := strings.Split(path, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		respondError(w, http.StatusBadRequest, "invalid path format, expected /sli/{service}/{sli}")
		return
	}
	service, sliName := parts[0], parts[1]

	windowStr := r.URL.Query().Get("window")
	if windowStr == "" {
		respondError(w, http.StatusBadRequest, "window query parameter required")
		return
	}

	length, err := slo.ParseDuration(windowStr)
	if err != nil {
		respondError(w, http.StatusBadRequest, fmt.Sprintf("invalid window: %v", err))
		return
	}

	if !s.agg.HasWindow(length) {
		respondError(w, http.StatusBadRequest, fmt.Sprintf("window %s is not tracked by any configured SLO or rule", windowStr))
		return
	}

	good, total := s.agg.Ratio(service, sliName, length)
	ratio := eval.Ratio{Good: good, Total: total}

	resp := SLIResponse{
		Service:   service,
		SLI:       sliName,
		Window:    windowStr,
		Good:      good,
		Total:     total,
		Undefined: ratio.Undefined(),
	}
	if !ratio.Undefined() {
		v := ratio.Value()
		resp.Ratio = &v
	}

	respondJSON(w, http.StatusOK, resp)
}

// handleBudget handles GET /budget/{service}/{slo}.
func (s *Server) handleBudget(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	path := strings.TrimPrefix(r.URL.Path, "/budget/")
	parts := strings.Split(path, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		respondError(w, http.StatusBadRequest, "invalid path format, expected /budget/{service}/{slo}")
		return
	}
	service, sloID := parts[0], parts[1]

	sloSpec, state, errStatus, errMsg := s.lookupState(service, sloID, r.URL.Query().Get("force_fresh") == "true")
	if errStatus != 0 {
		respondError(w, errStatus, errMsg)
		return
	}

	resp := BudgetResponse{
		Service:          service,
		SLOID:            sloID,
		Target:           sloSpec.Target,
		Window:           sloSpec.Window,
		Zone:             string(state.Zone),
		InsufficientData: state.Result.InsufficientData,
		UpdatedAt:        state.UpdatedAt,
	}
	if state.Result.BudgetDefined {
		remaining := state.Result.BudgetRemaining
		resp.RemainingRatio = &remaining
	}

	respondJSON(w, http.StatusOK, resp)
}

// handleCanDeploy handles GET /policy/can_deploy?service=&slo=&change_type=.
// The decision itself is pure; this handler never triggers anything beyond
// an optional fresh evaluation.
func (s *Server) handleCanDeploy(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	query := r.URL.Query()
	service := query.Get("service")
	sloID := query.Get("slo")
	changeType := query.Get("change_type")

	if service == "" || sloID == "" || changeType == "" {
		respondError(w, http.StatusBadRequest, "service, slo and change_type query parameters required")
		return
	}

	_, state, errStatus, errMsg := s.lookupState(service, sloID, query.Get("force_fresh") == "true")
	if errStatus != 0 {
		respondError(w, errStatus, errMsg)
		return
	}

	decision := s.policy.Decide(state.Result, policy.ChangeType(changeType))

	respondJSON(w, http.StatusOK, CanDeployResponse{
		Allowed:         decision.Allowed,
		Zone:            string(decision.Zone),
		BudgetRemaining: decision.BudgetRemaining,
		Degraded:        decision.Degraded,
		Reason:          decision.Reason,
	})
}

// lookupState resolves an SLO and its latest cached evaluation, forcing an
// evaluation when nothing is cached yet or the caller asked for fresh data.
func (s *Server) lookupState(service, sloID string, fresh bool) (*slo.SLO, *scheduler.EvaluationState, int, string) {
	cfg := s.scheduler.Config()
	sloSpec := cfg.FindSLO(sloID)
	if sloSpec == nil || sloSpec.Service != service {
		return nil, nil, http.StatusNotFound, fmt.Sprintf("no SLO %q for service %q", sloID, service)
	}

	cache := s.scheduler.GetCache()
	state, ok := cache.Get(sloID)
	if !ok || fresh {
		if err := s.scheduler.EvaluateNow(sloID); err != nil {
			return nil, nil, http.StatusInternalServerError, fmt.Sprintf("evaluation failed: %v", err)
		}
		if state, ok = cache.Get(sloID); !ok {
			return nil, nil, http.StatusInternalServerError, "evaluation produced no state"
		}
	}

	return sloSpec, state, 0, ""
}

// handleAlerts handles GET /alerts.
func (s *Server) handleAlerts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	states := s.scheduler.AlertStates()
	alerts := make([]AlertStateInfo, 0, len(states))
	for name, st := range states {
		info := AlertStateInfo{
			Rule:      name,
			Status:    string(st.Status),
			LastValue: st.LastValue,
		}
		if !st.PendingSince.IsZero() {
			ps := st.PendingSince
			info.PendingSince = &ps
		}
		alerts = append(alerts, info)
	}

	respondJSON(w, http.StatusOK, AlertsResponse{Alerts: alerts})
}

// handleAuditEvaluations handles GET /audit/evaluations.
func (s *Server) handleAuditEvaluations(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	audit := s.scheduler.GetAuditStorage()
	if audit == nil {
		respondError(w, http.StatusServiceUnavailable, "audit storage not configured")
		return
	}

	query := r.URL.Query()
	filter := storage.EvalFilter{
		SLOID:   query.Get("slo"),
		Service: query.Get("service"),
		Zone:    query.Get("zone"),
	}

	if limitStr := query.Get("limit"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil {
			filter.Limit = limit
		}
	}
	if offsetStr := query.Get("offset"); offsetStr != "" {
		if offset, err := strconv.Atoi(offsetStr); err == nil {
			filter.Offset = offset
		}
	}
	if startStr := query.Get("startTime"); startStr != "" {
		if startTime, err := time.Parse(time.RFC3339, startStr); err == nil {
			filter.StartTime = &startTime
		}
	}
	if endStr := query.Get("endTime"); endStr != "" {
		if endTime, err := time.Parse(time.RFC3339, endStr); err == nil {
			filter.EndTime = &endTime
		}
	}

	records, err := audit.QueryEvaluations(r.Context(), filter)
	if err != nil {
		respondError(w, http.StatusInternalServerError, fmt.Sprintf("failed to query audit: %v", err))
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"records": records,
		"total":   len(records),
	})
}

// handleAuditTransitions handles GET /audit/transitions.
func (s *Server) handleAuditTransitions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	audit := s.scheduler.GetAuditStorage()
	if audit == nil {
		respondError(w, http.StatusServiceUnavailable, "audit storage not configured")
		return
	}

	query := r.URL.Query()
	filter := storage.TransitionFilter{
		RuleName: query.Get("rule"),
		Service:  query.Get("service"),
		Status:   query.Get("status"),
	}
	if limitStr := query.Get("limit"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil {
			filter.Limit = limit
		}
	}

	records, err := audit.QueryTransitions(r.Context(), filter)
	if err != nil {
		respondError(w, http.StatusInternalServerError, fmt.Sprintf("failed to query audit: %v", err))
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"records": records,
		"total":   len(records),
	})
}

// handleReload handles POST /reload. Reload is an explicit operator action,
// never a file watch; redefined targets have their buckets reset, which is
// a documented discontinuity.
func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	newCfg, errs := s.validator.ValidateFile(s.configFile)
	if len(errs) > 0 {
		msgs := make([]string, 0, len(errs))
		for _, e := range errs {
			msgs = append(msgs, e.Error())
		}
		respondJSON(w, http.StatusBadRequest, ReloadResponse{Errors: msgs})
		return
	}

	// The aggregator's window set is fixed at startup; a config that needs
	// new windows requires a restart rather than silently missing data.
	required, err := eval.RequiredWindows(newCfg)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	for _, wd := range required {
		if !s.agg.HasWindow(wd) {
			respondError(w, http.StatusConflict,
				fmt.Sprintf("new config requires window %s not tracked by this process; restart required", slo.FormatDuration(wd)))
			return
		}
	}

	oldCfg := s.scheduler.Config()
	resetPairs := resetTargets(oldCfg, newCfg, s.agg)

	s.intake.Reload(newCfg)
	if err := s.scheduler.Reload(newCfg); err != nil {
		respondError(w, http.StatusInternalServerError, fmt.Sprintf("reload failed: %v", err))
		return
	}

	s.logger.Infof("configuration reloaded: %d SLOs, %d reset pairs", len(newCfg.SLOs), len(resetPairs))
	respondJSON(w, http.StatusOK, ReloadResponse{
		Reloaded:   true,
		SLOsLoaded: len(newCfg.SLOs),
		ResetPairs: resetPairs,
	})
}

// resetTargets clears accumulated buckets for (service, sli) pairs whose
// SLO definition changed or disappeared.
func resetTargets(oldCfg, newCfg *slo.Config, agg *window.Aggregator) []string {
	if oldCfg == nil {
		return nil
	}

	var reset []string
	for i := range oldCfg.SLOs {
		old := &oldCfg.SLOs[i]
		replacement := newCfg.FindSLO(old.ID)
		if replacement != nil && reflect.DeepEqual(*old, *replacement) {
			continue
		}
		agg.Reset(old.Service, string(old.SLI))
		reset = append(reset, old.Service+"/"+string(old.SLI))
	}
	return reset
}

// Helper functions

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, ErrorResponse{Error: message})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debugf("%s %s %s", r.Method, r.URL.Path, time.Since(start))
	})
}
