package simd

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/AmoghJohri/Epidemic-Modeling/internal/calibration"
	"github.com/AmoghJohri/Epidemic-Modeling/internal/metrics"
	"github.com/AmoghJohri/Epidemic-Modeling/pkg/logger"
)

const (
	maxRequestBytes = 8 << 20
	maxListLimit    = 1000
	calibrationPath = "/v1/calibrations/"
)

// HTTPServer exposes simulations and calibration runs over a JSON API.
type HTTPServer struct {
	mux      *http.ServeMux
	store    *RunStore
	Executor *RunExecutor
}

func NewHTTPServer(executor *RunExecutor) *HTTPServer {
	s := &HTTPServer{
		mux:      http.NewServeMux(),
		store:    executor.Store(),
		Executor: executor,
	}
	s.mux.HandleFunc("/healthz", s.handleHealthz)
	s.mux.HandleFunc("/v1/metrics", s.handleMetrics)
	s.mux.HandleFunc("/v1/simulations", s.handleSimulations)
	s.mux.HandleFunc("/v1/calibrations", s.handleCalibrations)
	s.mux.HandleFunc(calibrationPath, s.handleCalibrationByID)
	return s
}

// Handler returns the API with submissions rate limited per client address.
func (s *HTTPServer) Handler() http.Handler {
	return s.rateLimit(s.mux)
}

// rateLimit rejects POSTs from clients that exhausted their token bucket.
func (s *HTTPServer) rateLimit(next http.Handler) http.Handler {
	limiter := s.Executor.Policies().GetRateLimiting()
	if !limiter.Enabled() {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			route := r.URL.Path
			if strings.HasPrefix(route, calibrationPath) {
				route = calibrationPath + "{id}"
			}
			client, now := clientAddr(r), time.Now()
			allowed := limiter.AllowRequest(client, route, now)
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(limiter.GetRemainingQuota(client, route, now)))
			if !allowed {
				metrics.RecordCount(s.Executor.Metrics(), metrics.MetricRejectedRequests, metrics.RouteLabels(route))
				w.Header().Set("Retry-After", "1")
				s.writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

func clientAddr(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func (s *HTTPServer) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// MetricDetail is one metric's total plus the series under a label set.
type MetricDetail struct {
	Name        string               `json:"name"`
	Labels      map[string]string    `json:"labels,omitempty"`
	Total       *metrics.Aggregation `json:"total"`
	Aggregation *metrics.Aggregation `json:"aggregation,omitempty"`
	Points      []metrics.Point      `json:"points,omitempty"`
}

// handleMetrics serves the summary, or with ?name=N[&label=value...] one
// metric's detail. DELETE resets the collector.
func (s *HTTPServer) handleMetrics(w http.ResponseWriter, r *http.Request) {
	collector := s.Executor.Metrics()
	switch r.Method {
	case http.MethodGet:
	case http.MethodDelete:
		collector.Clear()
		logger.Info("metrics cleared")
		w.WriteHeader(http.StatusNoContent)
		return
	default:
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	query := r.URL.Query()
	name := query.Get("name")
	if name == "" {
		s.writeJSON(w, http.StatusOK, collector.GetSummary())
		return
	}
	if !slices.Contains(collector.GetMetricNames(), name) {
		s.writeError(w, http.StatusNotFound, fmt.Sprintf("unknown metric %q", name))
		return
	}
	var labels map[string]string
	for k, v := range query {
		if k == "name" {
			continue
		}
		if labels == nil {
			labels = make(map[string]string)
		}
		labels[k] = v[0]
	}
	s.writeJSON(w, http.StatusOK, MetricDetail{
		Name:        name,
		Labels:      labels,
		Total:       collector.GetTotalAggregation(name),
		Aggregation: collector.GetAggregation(name, labels),
		Points:      collector.GetTimeSeries(name, labels),
	})
}

func (s *HTTPServer) handleSimulations(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req SimulationRequest
	if err := s.decode(w, r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := s.Executor.Simulate(r.Context(), req)
	if err != nil {
		s.writeError(w, statusFor(err), err.Error())
		return
	}
	logger.Debug("simulation served", "model", res.Model, "samples", res.Len(), "steps", res.Steps)
	s.writeJSON(w, http.StatusOK, res)
}

func (s *HTTPServer) handleCalibrations(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.handleCreateCalibration(w, r)
	case http.MethodGet:
		s.handleListCalibrations(w, r)
	default:
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// handleCalibrationByID routes /v1/calibrations/{id}, /v1/calibrations/{id}/results
// and /v1/calibrations/{id}:stop.
func (s *HTTPServer) handleCalibrationByID(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, calibrationPath)
	switch {
	case strings.HasSuffix(rest, ":stop"):
		runID := strings.TrimSuffix(rest, ":stop")
		if r.Method != http.MethodPost {
			s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		s.handleStopCalibration(w, runID)
	case strings.HasSuffix(rest, "/results"):
		runID := strings.TrimSuffix(rest, "/results")
		if r.Method != http.MethodGet {
			s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		s.handleResults(w, r, runID)
	default:
		if r.Method != http.MethodGet {
			s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		s.handleGetCalibration(w, rest)
	}
}

func (s *HTTPServer) handleCreateCalibration(w http.ResponseWriter, r *http.Request) {
	var req CalibrationRequest
	if err := s.decode(w, r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	run, err := s.Executor.Submit(req)
	if err != nil {
		s.writeError(w, statusFor(err), err.Error())
		return
	}
	logger.Info("calibration accepted", "run_id", run.ID)
	s.writeJSON(w, http.StatusAccepted, map[string]any{"run": run})
}

func (s *HTTPServer) handleListCalibrations(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r.URL.Query().Get("limit"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	status := RunStatus(r.URL.Query().Get("status"))
	switch status {
	case "", RunStatusPending, RunStatusRunning, RunStatusCompleted, RunStatusFailed, RunStatusCancelled:
	default:
		s.writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown status %q", status))
		return
	}

	runs := s.store.List(status, limit)
	s.writeJSON(w, http.StatusOK, map[string]any{
		"calibrations": runs,
		"count":        len(runs),
	})
}

func (s *HTTPServer) handleGetCalibration(w http.ResponseWriter, runID string) {
	if runID == "" {
		s.writeError(w, http.StatusBadRequest, ErrRunIDMissing.Error())
		return
	}
	rec, ok := s.store.Get(runID)
	if !ok {
		s.writeError(w, http.StatusNotFound, fmt.Sprintf("%v: %s", ErrRunNotFound, runID))
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"run": rec.Run})
}

func (s *HTTPServer) handleResults(w http.ResponseWriter, r *http.Request, runID string) {
	limit, err := parseLimit(r.URL.Query().Get("limit"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	rec, ok := s.store.Get(runID)
	if !ok {
		s.writeError(w, http.StatusNotFound, fmt.Sprintf("%v: %s", ErrRunNotFound, runID))
		return
	}
	if rec.Results == nil {
		s.writeError(w, http.StatusConflict, fmt.Sprintf("results not available: run is %s", rec.Run.Status))
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"run_id":  runID,
		"total":   len(rec.Results),
		"results": calibration.Top(rec.Results, limitOrDefault(limit)),
	})
}

func (s *HTTPServer) handleStopCalibration(w http.ResponseWriter, runID string) {
	run, err := s.Executor.Stop(runID)
	if err != nil {
		s.writeError(w, statusFor(err), err.Error())
		return
	}
	logger.Info("calibration cancelled", "run_id", runID)
	s.writeJSON(w, http.StatusOK, map[string]any{"run": run})
}

func (s *HTTPServer) decode(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("invalid json: %w", err)
	}
	return nil
}

// parseLimit accepts an empty value (0) or a positive integer, capped at maxListLimit.
func parseLimit(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("limit must be a positive integer, got %q", raw)
	}
	return min(n, maxListLimit), nil
}

func limitOrDefault(limit int) int {
	if limit == 0 {
		return defaultListLimit
	}
	return limit
}

// statusFor maps run lifecycle and validation errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, ErrRunNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrRunTerminal), errors.Is(err, ErrRunExists):
		return http.StatusConflict
	case errors.Is(err, ErrRunIDMissing), isClientError(err):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (s *HTTPServer) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("failed to encode JSON response", "error", err)
	}
}

func (s *HTTPServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]any{
		"error": message,
	})
}
