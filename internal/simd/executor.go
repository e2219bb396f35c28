package simd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/AmoghJohri/Epidemic-Modeling/internal/engine"
	"github.com/AmoghJohri/Epidemic-Modeling/internal/metrics"
	"github.com/AmoghJohri/Epidemic-Modeling/internal/policy"
	"github.com/AmoghJohri/Epidemic-Modeling/pkg/config"
	"github.com/AmoghJohri/Epidemic-Modeling/pkg/logger"
)

// RunExecutor manages asynchronous calibration runs and per-run cancellation.
type RunExecutor struct {
	store    *RunStore
	cfg      *config.Config
	notifier *Notifier
	logger   *slog.Logger
	metrics  *metrics.Collector
	policies *policy.Manager

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
	wg      sync.WaitGroup
}

// NewRunExecutor creates an executor whose requests default to cfg.
// A nil cfg selects config.Default(). The notifier skips callback hosts
// according to cfg.Policies.CallbackBreaker.
func NewRunExecutor(store *RunStore, cfg *config.Config) *RunExecutor {
	if cfg == nil {
		cfg = config.Default()
	}
	policies := policy.NewPolicyManager(cfg.Policies)
	return &RunExecutor{
		store:    store,
		cfg:      cfg,
		notifier: NewNotifier().WithCircuitBreaker(policies.GetCircuitBreaker()),
		logger:   logger.Default,
		metrics:  metrics.NewCollector(),
		policies: policies,
		cancels:  make(map[string]context.CancelFunc),
	}
}

// SetNotifier replaces the completion notifier. nil disables callbacks.
func (e *RunExecutor) SetNotifier(n *Notifier) { e.notifier = n }

// SetLogger sets the logger used by the executor and its searches.
func (e *RunExecutor) SetLogger(l *slog.Logger) { e.logger = logger.OrDefault(l) }

// Config returns the defaults applied to requests.
func (e *RunExecutor) Config() *config.Config { return e.cfg }

// Store returns the backing run store.
func (e *RunExecutor) Store() *RunStore { return e.store }

// Metrics returns the collector of run and simulation metrics.
func (e *RunExecutor) Metrics() *metrics.Collector { return e.metrics }

// Policies returns the admission policies built from the config.
func (e *RunExecutor) Policies() *policy.Manager { return e.policies }

// Simulate runs req synchronously against the executor's defaults and
// records its duration.
func (e *RunExecutor) Simulate(ctx context.Context, req SimulationRequest) (*engine.Result, error) {
	start := time.Now()
	res, err := Simulate(ctx, e.cfg, req)
	if err != nil {
		return nil, err
	}
	metrics.RecordDuration(e.metrics, metrics.MetricSimulationDurationMs, start, metrics.ModelLabels(res.Model))
	return res, nil
}

// Submit validates req, registers a run and starts it.
// Returns the run in the running state.
func (e *RunExecutor) Submit(req CalibrationRequest) (Run, error) {
	plan, err := req.plan(e.cfg)
	if err != nil {
		return Run{}, err
	}
	run, err := e.store.Create(req.RunID, req)
	if err != nil {
		return Run{}, err
	}
	return e.start(run.ID, plan)
}

func (e *RunExecutor) start(runID string, plan *calibrationPlan) (Run, error) {
	updated, err := e.store.SetStatus(runID, RunStatusRunning, "")
	if err != nil {
		return Run{}, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	e.mu.Lock()
	e.cancels[runID] = cancel
	e.mu.Unlock()

	e.wg.Add(1)
	go e.runCalibration(ctx, runID, plan)
	return updated, nil
}

// Stop requests cancellation of a running calibration and marks it cancelled.
func (e *RunExecutor) Stop(runID string) (Run, error) {
	if runID == "" {
		return Run{}, ErrRunIDMissing
	}
	rec, ok := e.store.Get(runID)
	if !ok {
		return Run{}, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if rec.Run.Status.Terminal() {
		return Run{}, fmt.Errorf("%w: %s is %s", ErrRunTerminal, runID, rec.Run.Status)
	}

	// Marked before cancel so the worker's own status update is a no-op.
	updated, err := e.store.SetStatus(runID, RunStatusCancelled, "")
	if err != nil {
		return Run{}, err
	}

	e.mu.Lock()
	cancel, ok := e.cancels[runID]
	e.mu.Unlock()
	if ok {
		cancel()
	}
	return updated, nil
}

// StopAll cancels every in-flight run. Used on shutdown.
func (e *RunExecutor) StopAll() {
	e.mu.Lock()
	ids := make([]string, 0, len(e.cancels))
	for id := range e.cancels {
		ids = append(ids, id)
	}
	e.mu.Unlock()

	for _, id := range ids {
		if _, err := e.Stop(id); err != nil && !errors.Is(err, ErrRunTerminal) {
			e.logger.Warn("failed to stop run", "run_id", id, "error", err)
		}
	}
}

// Wait blocks until every started run has finished and its callback, if
// any, has been delivered or abandoned.
func (e *RunExecutor) Wait() {
	e.wg.Wait()
}

func (e *RunExecutor) cleanup(runID string) {
	e.mu.Lock()
	if cancel, ok := e.cancels[runID]; ok {
		cancel()
		delete(e.cancels, runID)
	}
	e.mu.Unlock()
}

func (e *RunExecutor) runCalibration(ctx context.Context, runID string, plan *calibrationPlan) {
	defer e.wg.Done()
	defer e.cleanup(runID)

	log := e.logger.With("run_id", runID)
	start := time.Now()

	search := plan.search.
		WithLogger(log).
		WithProgressReporter(func(done, total int) {
			if err := e.store.SetProgress(runID, done, total); err != nil {
				log.Warn("failed to record progress", "error", err)
			}
		})

	results, err := search.RunRefined(ctx, plan.reference, plan.rounds, plan.factor)
	status := RunStatusCompleted
	switch {
	case errors.Is(err, context.Canceled):
		status = RunStatusCancelled
		log.Info("calibration cancelled", "duration", time.Since(start))
		e.finish(log, runID, status, "")
	case err != nil:
		status = RunStatusFailed
		log.Error("calibration failed", "error", err)
		e.finish(log, runID, status, err.Error())
	default:
		if setErr := e.store.SetResults(runID, results); setErr != nil {
			log.Error("failed to store results", "error", setErr)
		}
		log.Info("calibration completed",
			"results", len(results),
			"best_error", results[0].Error,
			"duration", time.Since(start))
		e.finish(log, runID, status, "")
		e.metrics.RecordNow(metrics.MetricCalibrationTrials, float64(len(results)), nil)
	}
	labels := metrics.StatusLabels(string(status))
	metrics.RecordCount(e.metrics, metrics.MetricCalibrationRuns, labels)
	metrics.RecordDuration(e.metrics, metrics.MetricCalibrationDurationMs, start, labels)

	e.notify(runID)
}

// finish records a terminal status. A run stopped in the meantime keeps its
// cancelled status.
func (e *RunExecutor) finish(log *slog.Logger, runID string, status RunStatus, errMsg string) {
	if _, err := e.store.SetStatus(runID, status, errMsg); err != nil && !errors.Is(err, ErrRunTerminal) {
		log.Error("failed to set run status", "status", status, "error", err)
	}
}

func (e *RunExecutor) notify(runID string) {
	if e.notifier == nil {
		return
	}
	rec, ok := e.store.Get(runID)
	if !ok || rec.Request.CallbackURL == "" {
		return
	}
	// The run context is already done here.
	if err := e.notifier.Send(context.Background(), rec.Request.CallbackURL, rec.Request.CallbackSecret, rec.Run); err != nil {
		metrics.RecordCount(e.metrics, metrics.MetricCallbackFailures, nil)
		e.logger.Error("failed to send notification after retries",
			"run_id", runID,
			"callback_url", rec.Request.CallbackURL,
			"error", err)
	}
}
