package model

import "fmt"

// InvalidParameterError reports a model input that would produce undefined
// or non-physical dynamics: a negative or non-finite rate, a malformed
// initial vector, or a population that is not positive.
type InvalidParameterError struct {
	Field  string
	Value  float64
	Reason string
}

func (e *InvalidParameterError) Error() string {
	return fmt.Sprintf("invalid %s (%g): %s", e.Field, e.Value, e.Reason)
}
