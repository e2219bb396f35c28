package calibration

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// Objective scores a simulated series against a reference. Lower is better.
type Objective interface {
	Name() string
	Score(sim, ref []float64) (float64, error)
}

// ObjectiveType names a scoring strategy
type ObjectiveType string

const (
	// ObjectiveSqrtAbsSquareDiff is sum_i sqrt(|sim_i^2 - ref_i^2|)
	ObjectiveSqrtAbsSquareDiff ObjectiveType = "sqrt_abs_square_diff"
	// ObjectiveSSE is the sum of squared errors
	ObjectiveSSE ObjectiveType = "sse"
	// ObjectiveRMSE is the root mean squared error
	ObjectiveRMSE ObjectiveType = "rmse"
	// ObjectiveMAE is the mean absolute error
	ObjectiveMAE ObjectiveType = "mae"

	DefaultObjective = ObjectiveSqrtAbsSquareDiff
)

// NewObjective creates an objective from its type string. An empty string
// selects DefaultObjective.
func NewObjective(objType string) (Objective, error) {
	if objType == "" {
		objType = string(DefaultObjective)
	}
	switch ObjectiveType(objType) {
	case ObjectiveSqrtAbsSquareDiff:
		return SqrtAbsSquareDiff{}, nil
	case ObjectiveSSE:
		return SSE{}, nil
	case ObjectiveRMSE:
		return RMSE{}, nil
	case ObjectiveMAE:
		return MAE{}, nil
	default:
		return nil, &UnknownObjectiveError{ObjectiveType: objType}
	}
}

// SqrtAbsSquareDiff compares squared magnitudes, so it is not symmetric in
// the way an L1 or L2 distance is.
type SqrtAbsSquareDiff struct{}

func (SqrtAbsSquareDiff) Name() string { return string(ObjectiveSqrtAbsSquareDiff) }

func (SqrtAbsSquareDiff) Score(sim, ref []float64) (float64, error) {
	if err := checkAligned(sim, ref); err != nil {
		return 0, err
	}
	var total float64
	for i := range sim {
		total += math.Sqrt(math.Abs(sim[i]*sim[i] - ref[i]*ref[i]))
	}
	return total, nil
}

// SSE is the sum of squared errors
type SSE struct{}

func (SSE) Name() string { return string(ObjectiveSSE) }

func (SSE) Score(sim, ref []float64) (float64, error) {
	if err := checkAligned(sim, ref); err != nil {
		return 0, err
	}
	d := floats.Distance(sim, ref, 2)
	return d * d, nil
}

// RMSE is the root mean squared error
type RMSE struct{}

func (RMSE) Name() string { return string(ObjectiveRMSE) }

func (RMSE) Score(sim, ref []float64) (float64, error) {
	if err := checkAligned(sim, ref); err != nil {
		return 0, err
	}
	return floats.Distance(sim, ref, 2) / math.Sqrt(float64(len(sim))), nil
}

// MAE is the mean absolute error
type MAE struct{}

func (MAE) Name() string { return string(ObjectiveMAE) }

func (MAE) Score(sim, ref []float64) (float64, error) {
	if err := checkAligned(sim, ref); err != nil {
		return 0, err
	}
	return floats.Distance(sim, ref, 1) / float64(len(sim)), nil
}

func checkAligned(sim, ref []float64) error {
	if len(ref) == 0 {
		return &IncompleteReferenceDataError{Reference: 0, Simulated: len(sim), Reason: "reference series is empty"}
	}
	if len(sim) != len(ref) {
		return &IncompleteReferenceDataError{Reference: len(ref), Simulated: len(sim), Reason: "series lengths differ"}
	}
	return nil
}
