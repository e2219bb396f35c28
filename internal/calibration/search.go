// Package calibration fits SEIR rates to an observed series by exhaustive
// grid search: every grid point is simulated and scored, and the points are
// ranked by ascending error.
package calibration

import (
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"runtime"
	"slices"
	"sync"
	"time"

	"github.com/AmoghJohri/Epidemic-Modeling/internal/engine"
	"github.com/AmoghJohri/Epidemic-Modeling/internal/integrate"
	"github.com/AmoghJohri/Epidemic-Modeling/pkg/logger"
	"github.com/AmoghJohri/Epidemic-Modeling/pkg/utils"
)

// DefaultDt is the Euler step used for calibration trials.
const DefaultDt = 0.01

// Result is one scored grid point.
type Result struct {
	Point
	Error float64 `json:"error"`
	Index int     `json:"index"`
}

// MarshalJSON encodes a non-finite error as null.
func (r Result) MarshalJSON() ([]byte, error) {
	type plain Result
	if utils.IsFinite(r.Error) {
		return json.Marshal(plain(r))
	}
	return json.Marshal(struct {
		plain
		Error *float64 `json:"error"`
	}{plain: plain(r)})
}

// ProgressReporter receives the number of finished trials after each one.
// Calls are serialized.
type ProgressReporter func(done, total int)

// Search runs a grid search against a reference series.
type Search struct {
	factory   ModelFactory
	grid      Grid
	objective Objective
	workers   int
	dt        float64
	offset    float64
	stepper   integrate.Stepper
	progress  ProgressReporter
	logger    *slog.Logger
}

// NewSearch creates a search over grid using the default objective, one
// worker per CPU and DefaultDt.
func NewSearch(factory ModelFactory, grid Grid) *Search {
	return &Search{
		factory:   factory,
		grid:      grid,
		objective: SqrtAbsSquareDiff{},
		workers:   runtime.NumCPU(),
		dt:        DefaultDt,
		stepper:   integrate.Euler{},
		logger:    logger.Default,
	}
}

// WithObjective sets the scoring strategy
func (s *Search) WithObjective(obj Objective) *Search {
	if obj != nil {
		s.objective = obj
	}
	return s
}

// WithWorkers sets the maximum number of concurrent trials (minimum 1)
func (s *Search) WithWorkers(n int) *Search {
	if n < 1 {
		n = 1
	}
	s.workers = n
	return s
}

// WithDt sets the integration step of each trial
func (s *Search) WithDt(dt float64) *Search {
	s.dt = dt
	return s
}

// WithStepper sets the integration method of each trial
func (s *Search) WithStepper(st integrate.Stepper) *Search {
	if st != nil {
		s.stepper = st
	}
	return s
}

// WithCumulativeOffset sets the value added to the first cumulative sample
func (s *Search) WithCumulativeOffset(offset float64) *Search {
	s.offset = offset
	return s
}

// WithProgressReporter sets a callback invoked after each finished trial
func (s *Search) WithProgressReporter(r ProgressReporter) *Search {
	s.progress = r
	return s
}

// WithLogger sets the search's logger
func (s *Search) WithLogger(l *slog.Logger) *Search {
	s.logger = logger.OrDefault(l)
	return s
}

// Grid returns the searched grid.
func (s *Search) Grid() Grid { return s.grid }

// Run simulates every grid point for len(reference) days and returns all
// results sorted by ascending error, ties broken by grid index. The first
// trial failure aborts the search. Cancelling ctx stops dispatching new
// trials and returns ctx.Err().
func (s *Search) Run(ctx context.Context, reference []float64) ([]Result, error) {
	if len(reference) == 0 {
		return nil, &IncompleteReferenceDataError{Reason: "reference series is empty"}
	}
	if s.factory == nil {
		return nil, fmt.Errorf("model factory is required")
	}
	if err := s.grid.Validate(); err != nil {
		return nil, err
	}

	total := s.grid.Size()
	start := time.Now()
	s.logger.Info("Starting calibration",
		"grid_size", total,
		"workers", s.workers,
		"objective", s.objective.Name(),
		"days", len(reference),
		"dt", s.dt)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make([]Result, total)
	semaphore := make(chan struct{}, s.workers)
	var wg sync.WaitGroup
	var mu sync.Mutex
	var firstErr error
	done := 0

dispatch:
	for idx, p := range s.grid.Points() {
		select {
		case <-runCtx.Done():
			break dispatch
		case semaphore <- struct{}{}:
		}

		wg.Add(1)
		go func(idx int, p Point) {
			defer wg.Done()
			defer func() { <-semaphore }()

			score, err := s.trial(runCtx, p, reference)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if firstErr == nil {
					firstErr = fmt.Errorf("grid point %d (%+v): %w", idx, p, err)
					cancel()
				}
				return
			}
			results[idx] = Result{Point: p, Error: score, Index: idx}
			done++
			if s.progress != nil {
				s.progress(done, total)
			}
		}(idx, p)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		s.logger.Info("Calibration cancelled", "completed", done, "grid_size", total)
		return nil, err
	}
	if firstErr != nil {
		return nil, firstErr
	}

	slices.SortStableFunc(results, compareResults)

	s.logger.Info("Calibration completed",
		"grid_size", total,
		"best_error", results[0].Error,
		"duration", time.Since(start))
	return results, nil
}

func (s *Search) trial(ctx context.Context, p Point, reference []float64) (float64, error) {
	m, err := s.factory(p)
	if err != nil {
		return 0, err
	}
	res, err := engine.Run(ctx, m, engine.RunConfig{
		Dt:               s.dt,
		Days:             float64(len(reference)),
		Stepper:          s.stepper,
		CumulativeOffset: s.offset,
		Logger:           s.logger,
	})
	if err != nil {
		return 0, err
	}
	if len(res.Cumulative) != len(reference) {
		return 0, &IncompleteReferenceDataError{
			Reference: len(reference),
			Simulated: len(res.Cumulative),
			Reason:    "simulated sample count does not match reference",
		}
	}
	return s.objective.Score(res.Cumulative, reference)
}

// compareResults orders by error with NaN last, then by grid index.
func compareResults(a, b Result) int {
	ea, eb := a.Error, b.Error
	if math.IsNaN(ea) {
		ea = math.Inf(1)
	}
	if math.IsNaN(eb) {
		eb = math.Inf(1)
	}
	if c := cmp.Compare(ea, eb); c != 0 {
		return c
	}
	return cmp.Compare(a.Index, b.Index)
}

// Best returns the lowest-error result of a sorted slice.
func Best(results []Result) (Result, bool) {
	if len(results) == 0 {
		return Result{}, false
	}
	return results[0], true
}

// Top returns at most n results; n <= 0 returns all of them.
func Top(results []Result, n int) []Result {
	if n <= 0 || n >= len(results) {
		return results
	}
	return results[:n]
}

// RunRefined runs the search and then rounds more times, each on a grid
// shrunk by factor around the previous best point and kept inside the
// original grid. The last round's results are returned; the receiver's grid
// is left unchanged.
func (s *Search) RunRefined(ctx context.Context, reference []float64, rounds int, factor float64) ([]Result, error) {
	if rounds > 0 && (factor <= 0 || factor >= 1 || math.IsNaN(factor)) {
		return nil, &InvalidGridError{Field: "refine_factor", Reason: fmt.Sprintf("%g is outside (0, 1)", factor)}
	}
	grid := s.grid
	defer func() { s.grid = grid }()

	results, err := s.Run(ctx, reference)
	if err != nil {
		return nil, err
	}
	for round := 1; round <= rounds; round++ {
		best, _ := Best(results)
		s.grid = s.grid.Refine(best.Point, factor, grid)
		s.logger.Debug("Refining calibration grid", "round", round, "centre", best.Point, "error", best.Error)
		if results, err = s.Run(ctx, reference); err != nil {
			return nil, fmt.Errorf("refinement round %d: %w", round, err)
		}
	}
	return results, nil
}
