package integrate

import (
	"errors"
	"fmt"
)

// ErrDimensionMismatch indicates the derivative vector and the state vector differ in length.
var ErrDimensionMismatch = errors.New("integrate: dimension mismatch between state and derivatives")

// DegenerateIntegrationError reports an integration request that cannot
// advance: non-positive step, or a horizon at or before the start.
type DegenerateIntegrationError struct {
	Start  float64
	End    float64
	Step   float64
	Reason string
}

func (e *DegenerateIntegrationError) Error() string {
	return fmt.Sprintf("degenerate integration from %g to %g with step %g: %s", e.Start, e.End, e.Step, e.Reason)
}

// UnknownStepperError indicates an unknown integration method name.
type UnknownStepperError struct {
	Name string
}

func (e *UnknownStepperError) Error() string {
	return "unknown integration method: " + e.Name
}
