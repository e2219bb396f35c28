package metrics

import (
	"time"

	"github.com/AmoghJohri/Epidemic-Modeling/pkg/utils"
)

// Metric names recorded by the daemon
const (
	MetricCalibrationRuns       = "calibration_runs"        // one sample per finished run, labelled by status
	MetricCalibrationDurationMs = "calibration_duration_ms" // wall time per finished run, labelled by status
	MetricCalibrationTrials     = "calibration_trials"      // grid points scored per completed run
	MetricSimulationDurationMs  = "simulation_duration_ms"  // per served simulation, labelled by model
	MetricCallbackFailures      = "callback_failures"       // one sample per undelivered callback
	MetricRejectedRequests      = "rejected_requests"       // rate-limited requests, labelled by route
)

// RecordDuration records the milliseconds elapsed since start
func RecordDuration(collector *Collector, name string, start time.Time, labels map[string]string) {
	collector.Record(name, float64(time.Since(start).Microseconds())/1000, time.Now(), labels)
}

// RecordCount records one occurrence
func RecordCount(collector *Collector, name string, labels map[string]string) {
	collector.RecordNow(name, 1, labels)
}

// StatusLabels creates a labels map for a run status
func StatusLabels(status string) map[string]string {
	return map[string]string{"status": status}
}

// ModelLabels creates a labels map for a model name
func ModelLabels(model string) map[string]string {
	return map[string]string{"model": model}
}

// RouteLabels creates a labels map for an API route
func RouteLabels(route string) map[string]string {
	return map[string]string{"route": route}
}

// FiniteAggregate aggregates the finite values only, skipping the NaN and
// infinite scores of diverged trials.
func FiniteAggregate(values []float64) *Aggregation {
	finite := make([]float64, 0, len(values))
	for _, v := range values {
		if utils.IsFinite(v) {
			finite = append(finite, v)
		}
	}
	return Aggregate(finite)
}
