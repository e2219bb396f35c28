// Package model defines the compartmental epidemic models. A model is a set
// of per-compartment derivative functions plus an initial state; stepping
// is done by an integrate.Stepper so any model can run under Euler or RK4.
package model

import (
	"github.com/AmoghJohri/Epidemic-Modeling/internal/integrate"
)

// Model is a compartmental ODE system.
type Model interface {
	Name() string
	Compartments() []string
	InitialState() State
	Derivatives() []integrate.DerivativeFunc
}

// Index returns the position of the named compartment in m, or -1.
func Index(m Model, compartment string) int {
	for i, c := range m.Compartments() {
		if c == compartment {
			return i
		}
	}
	return -1
}

// InfectedIndex returns the position of the "I" compartment.
func InfectedIndex(m Model) int {
	return Index(m, "I")
}
