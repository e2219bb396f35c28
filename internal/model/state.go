package model

import (
	"fmt"

	"github.com/AmoghJohri/Epidemic-Modeling/pkg/utils"
)

// State is an ordered compartment vector. SEIR uses (S, E, I, R), SIR uses (S, I, R).
type State []float64

// Clone returns an independent copy.
func (s State) Clone() State {
	return append(State(nil), s...)
}

// Total returns the sum of all compartments.
func (s State) Total() float64 {
	var n float64
	for _, v := range s {
		n += v
	}
	return n
}

func validateState(s State, names []string) error {
	if len(s) != len(names) {
		return &InvalidParameterError{
			Field:  "initial state",
			Value:  float64(len(s)),
			Reason: fmt.Sprintf("expected %d compartments", len(names)),
		}
	}
	for i, v := range s {
		if !utils.IsFinite(v) {
			return &InvalidParameterError{Field: names[i], Value: v, Reason: "must be finite"}
		}
		if v < 0 {
			return &InvalidParameterError{Field: names[i], Value: v, Reason: "compartment must be non-negative"}
		}
	}
	if n := s.Total(); n <= 0 {
		return &InvalidParameterError{Field: "N", Value: n, Reason: "population must be positive"}
	}
	return nil
}
