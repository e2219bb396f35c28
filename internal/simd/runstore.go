package simd

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/AmoghJohri/Epidemic-Modeling/internal/calibration"
	"github.com/AmoghJohri/Epidemic-Modeling/internal/metrics"
	"github.com/AmoghJohri/Epidemic-Modeling/pkg/utils"
)

const defaultListLimit = 50

var (
	ErrRunNotFound  = errors.New("run not found")
	ErrRunTerminal  = errors.New("run is terminal")
	ErrRunIDMissing = errors.New("run_id is required")
	ErrRunExists    = errors.New("run already exists")
)

// RunStatus is the lifecycle state of a calibration run.
type RunStatus string

const (
	RunStatusPending   RunStatus = "pending"
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
	RunStatusCancelled RunStatus = "cancelled"
)

// Terminal reports whether no further transition is allowed.
func (s RunStatus) Terminal() bool {
	switch s {
	case RunStatusCompleted, RunStatusFailed, RunStatusCancelled:
		return true
	}
	return false
}

// Progress counts finished trials of the current search round.
type Progress struct {
	Done  int `json:"done"`
	Total int `json:"total"`
}

// Run is the externally visible state of a calibration run.
type Run struct {
	ID              string               `json:"id"`
	Status          RunStatus            `json:"status"`
	Error           string               `json:"error,omitempty"`
	Progress        Progress             `json:"progress"`
	Best            *calibration.Result  `json:"best,omitempty"`
	ErrorSummary    *metrics.Aggregation `json:"error_summary,omitempty"` // finite errors of the final grid
	CreatedAtUnixMs int64                `json:"created_at_unix_ms"`
	StartedAtUnixMs int64                `json:"started_at_unix_ms,omitempty"`
	EndedAtUnixMs   int64                `json:"ended_at_unix_ms,omitempty"`
}

// RunRecord is a run plus its request and ranked results.
type RunRecord struct {
	Run     Run
	Request CalibrationRequest
	Results []calibration.Result
}

// RunStore keeps calibration runs in memory. All accessors return copies.
type RunStore struct {
	mu    sync.RWMutex
	runs  map[string]*RunRecord
	order []string // creation order
}

func NewRunStore() *RunStore {
	return &RunStore{
		runs: make(map[string]*RunRecord),
	}
}

func nowUnixMs() int64 {
	return time.Now().UTC().UnixMilli()
}

// Create registers a pending run. An empty runID gets a generated one.
func (s *RunStore) Create(runID string, req CalibrationRequest) (Run, error) {
	if runID == "" {
		runID = utils.GenerateRunID("cal")
	}
	if err := utils.ValidateRunID(runID); err != nil {
		return Run{}, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.runs[runID]; exists {
		return Run{}, fmt.Errorf("%w: %s", ErrRunExists, runID)
	}
	rec := &RunRecord{
		Run: Run{
			ID:              runID,
			Status:          RunStatusPending,
			CreatedAtUnixMs: nowUnixMs(),
		},
		Request: req,
	}
	s.runs[runID] = rec
	s.order = append(s.order, runID)
	return rec.Run, nil
}

func (s *RunStore) Get(runID string) (RunRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.runs[runID]
	if !ok {
		return RunRecord{}, false
	}
	return *rec, true
}

// List returns up to limit runs, newest first. An empty status matches every run.
func (s *RunStore) List(status RunStatus, limit int) []Run {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = defaultListLimit
	}
	out := make([]Run, 0, min(limit, len(s.order)))
	for i := len(s.order) - 1; i >= 0 && len(out) < limit; i-- {
		rec := s.runs[s.order[i]]
		if status != "" && rec.Run.Status != status {
			continue
		}
		out = append(out, rec.Run)
	}
	return out
}

// SetStatus moves a run to status. Terminal runs are never changed.
func (s *RunStore) SetStatus(runID string, status RunStatus, errMsg string) (Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.runs[runID]
	if !ok {
		return Run{}, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if rec.Run.Status.Terminal() {
		return rec.Run, fmt.Errorf("%w: %s is %s", ErrRunTerminal, runID, rec.Run.Status)
	}

	rec.Run.Status = status
	if errMsg != "" {
		rec.Run.Error = errMsg
	}

	switch status {
	case RunStatusRunning:
		if rec.Run.StartedAtUnixMs == 0 {
			rec.Run.StartedAtUnixMs = nowUnixMs()
		}
	case RunStatusCompleted, RunStatusFailed, RunStatusCancelled:
		rec.Run.EndedAtUnixMs = nowUnixMs()
	}

	return rec.Run, nil
}

func (s *RunStore) SetProgress(runID string, done, total int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.runs[runID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	rec.Run.Progress = Progress{Done: done, Total: total}
	return nil
}

// SetResults stores the ranked results of a run and records the best one.
func (s *RunStore) SetResults(runID string, results []calibration.Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.runs[runID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	rec.Results = results
	if best, ok := calibration.Best(results); ok {
		rec.Run.Best = &best
	}
	errs := make([]float64, len(results))
	for i, r := range results {
		errs[i] = r.Error
	}
	rec.Run.ErrorSummary = metrics.FiniteAggregate(errs)
	return nil
}
