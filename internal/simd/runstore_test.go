package simd

import (
	"errors"
	"strings"
	"testing"

	"github.com/AmoghJohri/Epidemic-Modeling/internal/calibration"
)

func TestRunStoreCreateGeneratesID(t *testing.T) {
	s := NewRunStore()
	run, err := s.Create("", CalibrationRequest{Reference: []float64{1}})
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if !strings.HasPrefix(run.ID, "cal-") {
		t.Fatalf("expected generated id with cal- prefix, got %q", run.ID)
	}
	if run.Status != RunStatusPending {
		t.Fatalf("expected pending, got %s", run.Status)
	}
	if run.CreatedAtUnixMs == 0 {
		t.Fatalf("expected created timestamp")
	}
	rec, ok := s.Get(run.ID)
	if !ok {
		t.Fatalf("expected run to be stored")
	}
	if len(rec.Request.Reference) != 1 {
		t.Fatalf("expected request to be kept, got %+v", rec.Request)
	}
}

func TestRunStoreCreateRejectsBadIDs(t *testing.T) {
	s := NewRunStore()
	if _, err := s.Create("fit-1", CalibrationRequest{}); err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if _, err := s.Create("fit-1", CalibrationRequest{}); !errors.Is(err, ErrRunExists) {
		t.Fatalf("expected ErrRunExists, got %v", err)
	}
	if _, err := s.Create("a/b:stop", CalibrationRequest{}); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest for an unroutable id, got %v", err)
	}
}

func TestRunStoreStatusLifecycle(t *testing.T) {
	s := NewRunStore()
	run, _ := s.Create("r1", CalibrationRequest{})

	running, err := s.SetStatus(run.ID, RunStatusRunning, "")
	if err != nil {
		t.Fatalf("SetStatus running: %v", err)
	}
	if running.StartedAtUnixMs == 0 || running.EndedAtUnixMs != 0 {
		t.Fatalf("unexpected timestamps after start: %+v", running)
	}

	failed, err := s.SetStatus(run.ID, RunStatusFailed, "boom")
	if err != nil {
		t.Fatalf("SetStatus failed: %v", err)
	}
	if failed.EndedAtUnixMs == 0 || failed.Error != "boom" {
		t.Fatalf("unexpected terminal run: %+v", failed)
	}

	if _, err := s.SetStatus(run.ID, RunStatusCompleted, ""); !errors.Is(err, ErrRunTerminal) {
		t.Fatalf("expected ErrRunTerminal, got %v", err)
	}
	rec, _ := s.Get(run.ID)
	if rec.Run.Status != RunStatusFailed {
		t.Fatalf("terminal status must not change, got %s", rec.Run.Status)
	}

	if _, err := s.SetStatus("missing", RunStatusRunning, ""); !errors.Is(err, ErrRunNotFound) {
		t.Fatalf("expected ErrRunNotFound, got %v", err)
	}
}

func TestRunStoreListNewestFirst(t *testing.T) {
	s := NewRunStore()
	for _, id := range []string{"a", "b", "c", "d"} {
		if _, err := s.Create(id, CalibrationRequest{}); err != nil {
			t.Fatalf("Create %s: %v", id, err)
		}
	}
	s.SetStatus("b", RunStatusRunning, "")
	s.SetStatus("d", RunStatusRunning, "")

	tests := []struct {
		name   string
		status RunStatus
		limit  int
		want   []string
	}{
		{"all", "", 0, []string{"d", "c", "b", "a"}},
		{"limited", "", 2, []string{"d", "c"}},
		{"running", RunStatusRunning, 0, []string{"d", "b"}},
		{"none", RunStatusCompleted, 0, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := s.List(tt.status, tt.limit)
			if len(got) != len(tt.want) {
				t.Fatalf("expected %d runs, got %d", len(tt.want), len(got))
			}
			for i, run := range got {
				if run.ID != tt.want[i] {
					t.Errorf("position %d: expected %s, got %s", i, tt.want[i], run.ID)
				}
			}
		})
	}
}

func TestRunStoreProgressAndResults(t *testing.T) {
	s := NewRunStore()
	run, _ := s.Create("r1", CalibrationRequest{})

	if err := s.SetProgress(run.ID, 3, 16); err != nil {
		t.Fatalf("SetProgress: %v", err)
	}
	results := []calibration.Result{
		{Point: calibration.Point{Alpha: 0.03}, Error: 1, Index: 2},
		{Point: calibration.Point{Alpha: 0.04}, Error: 5, Index: 0},
	}
	if err := s.SetResults(run.ID, results); err != nil {
		t.Fatalf("SetResults: %v", err)
	}

	rec, _ := s.Get(run.ID)
	if rec.Run.Progress != (Progress{Done: 3, Total: 16}) {
		t.Fatalf("unexpected progress %+v", rec.Run.Progress)
	}
	if rec.Run.Best == nil || rec.Run.Best.Index != 2 {
		t.Fatalf("expected best result index 2, got %+v", rec.Run.Best)
	}
	if len(rec.Results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(rec.Results))
	}

	if err := s.SetProgress("missing", 1, 1); !errors.Is(err, ErrRunNotFound) {
		t.Fatalf("expected ErrRunNotFound, got %v", err)
	}
	if err := s.SetResults("missing", nil); !errors.Is(err, ErrRunNotFound) {
		t.Fatalf("expected ErrRunNotFound, got %v", err)
	}
}

func TestRunStoreGetReturnsCopy(t *testing.T) {
	s := NewRunStore()
	run, _ := s.Create("r1", CalibrationRequest{})
	rec, _ := s.Get(run.ID)
	rec.Run.Status = RunStatusCompleted

	again, _ := s.Get(run.ID)
	if again.Run.Status != RunStatusPending {
		t.Fatalf("mutating a returned record must not change the store, got %s", again.Run.Status)
	}
}
