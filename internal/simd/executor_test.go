package simd

import (
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AmoghJohri/Epidemic-Modeling/internal/calibration"
	"github.com/AmoghJohri/Epidemic-Modeling/internal/dataprovider"
	"github.com/AmoghJohri/Epidemic-Modeling/internal/metrics"
	"github.com/AmoghJohri/Epidemic-Modeling/pkg/config"
	"github.com/AmoghJohri/Epidemic-Modeling/pkg/logger"
)

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Calibration.Workers = 2
	cfg.Calibration.Dt = 0.125
	return cfg
}

func newTestExecutor(t *testing.T) *RunExecutor {
	t.Helper()
	e := NewRunExecutor(NewRunStore(), testConfig())
	e.SetLogger(logger.Discard())
	e.SetNotifier(NewNotifier().WithRetry(2, nil).WithLogger(logger.Discard()))
	t.Cleanup(func() {
		e.StopAll()
		e.Wait()
	})
	return e
}

func testMinima() *dataprovider.Minima {
	return &dataprovider.Minima{Infected: 200000, Recovered: 1e7, Deaths: 150000}
}

// smallCalibration is a 16-point search over five days.
func smallCalibration() CalibrationRequest {
	return CalibrationRequest{
		Reference: []float64{210000, 230000, 250000, 270000, 290000},
		Gran:      2,
		Minima:    testMinima(),
	}
}

// slowCalibration takes long enough to be stopped mid-run.
func slowCalibration() CalibrationRequest {
	ref := make([]float64, 52)
	for i := range ref {
		ref[i] = 200000 + float64(i)*1000
	}
	return CalibrationRequest{
		Reference: ref,
		Gran:      25,
		Dt:        0.01,
		Minima:    testMinima(),
	}
}

func TestExecutorSubmitCompletes(t *testing.T) {
	e := newTestExecutor(t)

	run, err := e.Submit(smallCalibration())
	require.NoError(t, err)
	assert.Equal(t, RunStatusRunning, run.Status)
	assert.NotZero(t, run.StartedAtUnixMs)

	e.Wait()

	rec, ok := e.Store().Get(run.ID)
	require.True(t, ok)
	assert.Equal(t, RunStatusCompleted, rec.Run.Status)
	assert.Empty(t, rec.Run.Error)
	assert.NotZero(t, rec.Run.EndedAtUnixMs)
	assert.Equal(t, Progress{Done: 16, Total: 16}, rec.Run.Progress)
	require.Len(t, rec.Results, 16)
	require.NotNil(t, rec.Run.Best)
	assert.Equal(t, rec.Results[0], *rec.Run.Best)
	for k := 1; k < len(rec.Results); k++ {
		assert.GreaterOrEqual(t, rec.Results[k].Error, rec.Results[k-1].Error)
	}

	require.NotNil(t, rec.Run.ErrorSummary)
	assert.Equal(t, rec.Run.Best.Error, rec.Run.ErrorSummary.Min)
	assert.LessOrEqual(t, rec.Run.ErrorSummary.P50, rec.Run.ErrorSummary.Max)

	runs := e.Metrics().GetAggregation(metrics.MetricCalibrationRuns, metrics.StatusLabels("completed"))
	require.NotNil(t, runs)
	assert.EqualValues(t, 1, runs.Count)
	trials := e.Metrics().GetAggregation(metrics.MetricCalibrationTrials, nil)
	require.NotNil(t, trials)
	assert.Equal(t, 16.0, trials.Sum)
}

func TestExecutorSimulateRecordsDuration(t *testing.T) {
	e := newTestExecutor(t)
	_, err := e.Simulate(t.Context(), SimulationRequest{Model: "sir"})
	require.NoError(t, err)
	_, err = e.Simulate(t.Context(), SimulationRequest{Model: "sis"})
	require.Error(t, err)

	agg := e.Metrics().GetAggregation(metrics.MetricSimulationDurationMs, metrics.ModelLabels("sir"))
	require.NotNil(t, agg)
	assert.EqualValues(t, 1, agg.Count)
	assert.Nil(t, e.Metrics().GetTotalAggregation(metrics.MetricCallbackFailures))
}

func TestExecutorSubmitWithRefinement(t *testing.T) {
	e := newTestExecutor(t)
	req := smallCalibration()
	req.Refine = 2
	req.RefineFactor = 0.5

	run, err := e.Submit(req)
	require.NoError(t, err)
	e.Wait()

	rec, _ := e.Store().Get(run.ID)
	assert.Equal(t, RunStatusCompleted, rec.Run.Status)
	assert.Len(t, rec.Results, 16)
}

func TestExecutorSubmitRejectsInvalidRequests(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*CalibrationRequest)
		check  func(t *testing.T, err error)
	}{
		{
			name:   "empty reference",
			mutate: func(r *CalibrationRequest) { r.Reference = nil },
			check: func(t *testing.T, err error) {
				var target *calibration.IncompleteReferenceDataError
				assert.ErrorAs(t, err, &target)
			},
		},
		{
			name:   "no start state",
			mutate: func(r *CalibrationRequest) { r.Minima = nil },
			check:  func(t *testing.T, err error) { assert.ErrorIs(t, err, ErrInvalidRequest) },
		},
		{
			name:   "unknown objective",
			mutate: func(r *CalibrationRequest) { r.Objective = "chi2" },
			check: func(t *testing.T, err error) {
				var target *calibration.UnknownObjectiveError
				assert.ErrorAs(t, err, &target)
			},
		},
		{
			name: "inverted range",
			mutate: func(r *CalibrationRequest) {
				g := calibration.DefaultGrid()
				g.Beta = calibration.Range{Low: 0.5, High: 0.4}
				r.Grid = &g
			},
			check: func(t *testing.T, err error) {
				var target *calibration.InvalidGridError
				assert.ErrorAs(t, err, &target)
			},
		},
		{
			name:   "oversized grid",
			mutate: func(r *CalibrationRequest) { r.Gran = 40 },
			check:  func(t *testing.T, err error) { assert.ErrorIs(t, err, ErrInvalidRequest) },
		},
		{
			name:   "trial step count over limit",
			mutate: func(r *CalibrationRequest) { r.Dt = 1e-9 },
			check:  func(t *testing.T, err error) { assert.ErrorIs(t, err, ErrInvalidRequest) },
		},
		{
			name:   "negative dt",
			mutate: func(r *CalibrationRequest) { r.Dt = -0.1 },
			check:  func(t *testing.T, err error) { assert.ErrorIs(t, err, ErrInvalidRequest) },
		},
		{
			name:   "non-finite reference",
			mutate: func(r *CalibrationRequest) { r.Reference[2] = math.Inf(1) },
			check:  func(t *testing.T, err error) { assert.ErrorIs(t, err, ErrInvalidRequest) },
		},
		{
			name: "refine factor out of range",
			mutate: func(r *CalibrationRequest) {
				r.Refine = 1
				r.RefineFactor = 2
			},
			check: func(t *testing.T, err error) { assert.ErrorIs(t, err, ErrInvalidRequest) },
		},
		{
			name:   "internal callback",
			mutate: func(r *CalibrationRequest) { r.CallbackURL = "http://127.0.0.1:9000/hook" },
			check:  func(t *testing.T, err error) { assert.ErrorIs(t, err, ErrInternalHost) },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestExecutor(t)
			req := smallCalibration()
			tt.mutate(&req)

			_, err := e.Submit(req)
			require.Error(t, err)
			tt.check(t, err)
			assert.True(t, isClientError(err), "expected a client error, got %v", err)
			assert.Empty(t, e.Store().List("", 0), "rejected requests must not create runs")
		})
	}
}

func TestExecutorDuplicateRunID(t *testing.T) {
	e := newTestExecutor(t)
	req := smallCalibration()
	req.RunID = "india-2021"

	_, err := e.Submit(req)
	require.NoError(t, err)
	_, err = e.Submit(req)
	assert.ErrorIs(t, err, ErrRunExists)
}

func TestExecutorStop(t *testing.T) {
	e := newTestExecutor(t)

	run, err := e.Submit(slowCalibration())
	require.NoError(t, err)

	stopped, err := e.Stop(run.ID)
	require.NoError(t, err)
	assert.Equal(t, RunStatusCancelled, stopped.Status)

	e.Wait()
	rec, _ := e.Store().Get(run.ID)
	assert.Equal(t, RunStatusCancelled, rec.Run.Status, "cancelled runs stay cancelled")
	assert.Nil(t, rec.Results)

	_, err = e.Stop(run.ID)
	assert.ErrorIs(t, err, ErrRunTerminal)
	_, err = e.Stop("")
	assert.ErrorIs(t, err, ErrRunIDMissing)
	_, err = e.Stop("missing")
	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestExecutorNotifiesCallback(t *testing.T) {
	var (
		mu      sync.Mutex
		path    string
		secret  string
		payload NotificationPayload
	)
	hook := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		path = r.URL.Path
		secret = r.Header.Get("X-Epidemic-Callback-Secret")
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer hook.Close()

	e := newTestExecutor(t)
	req := smallCalibration()
	req.CallbackURL = strings.Replace(hook.URL, "127.0.0.1", "localhost", 1) + "/hooks/{run_id}"
	req.CallbackSecret = "s3cret"

	run, err := e.Submit(req)
	require.NoError(t, err)
	e.Wait()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "/hooks/"+run.ID, path)
	assert.Equal(t, "s3cret", secret)
	assert.Equal(t, run.ID, payload.RunID)
	assert.Equal(t, RunStatusCompleted, payload.Run.Status)
	require.NotNil(t, payload.Run.Best)
}

func TestExecutorNilConfigUsesDefaults(t *testing.T) {
	e := NewRunExecutor(NewRunStore(), nil)
	assert.Equal(t, config.Default(), e.Config())
}
