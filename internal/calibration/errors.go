package calibration

import "fmt"

// IncompleteReferenceDataError indicates a reference series that is empty or
// cannot be aligned sample-for-sample with a simulated series.
type IncompleteReferenceDataError struct {
	Reference int
	Simulated int
	Reason    string
}

func (e *IncompleteReferenceDataError) Error() string {
	return fmt.Sprintf("incomplete reference data (reference=%d, simulated=%d): %s", e.Reference, e.Simulated, e.Reason)
}

// UnknownObjectiveError indicates an unknown objective type
type UnknownObjectiveError struct {
	ObjectiveType string
}

func (e *UnknownObjectiveError) Error() string {
	return "unknown objective type: " + e.ObjectiveType
}

// InvalidGridError indicates a grid that cannot be enumerated
type InvalidGridError struct {
	Field  string
	Reason string
}

func (e *InvalidGridError) Error() string {
	return "invalid grid " + e.Field + ": " + e.Reason
}
