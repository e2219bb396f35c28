package model

import (
	"math"

	"github.com/AmoghJohri/Epidemic-Modeling/internal/integrate"
)

// SIR compartment positions.
const (
	SIRSusceptible = iota
	SIRInfected
	SIRRecovered
)

var sirCompartments = []string{"S", "I", "R"}

// SIR is the classic Kermack-McKendrick model with mass-action contact rate a
// and recovery rate b.
type SIR struct {
	a, b    float64
	initial State
}

// NewSIR builds an SIR model with S0 = n - initialInfected, I0 = initialInfected, R0 = 0.
func NewSIR(a, b, n, initialInfected float64) (*SIR, error) {
	if err := checkRate("a", a); err != nil {
		return nil, err
	}
	if err := checkRate("b", b); err != nil {
		return nil, err
	}
	if initialInfected > n {
		return nil, &InvalidParameterError{Field: "initial infected", Value: initialInfected, Reason: "exceeds population"}
	}
	initial := State{n - initialInfected, initialInfected, 0}
	if err := validateState(initial, sirCompartments); err != nil {
		return nil, err
	}
	return &SIR{a: a, b: b, initial: initial}, nil
}

func (m *SIR) Name() string { return "sir" }

func (m *SIR) Compartments() []string {
	return append([]string(nil), sirCompartments...)
}

func (m *SIR) InitialState() State { return m.initial.Clone() }

// ReproductionRate is a*N/b, +Inf when b is zero.
func (m *SIR) ReproductionRate() float64 {
	if m.b == 0 {
		return math.Inf(1)
	}
	return m.a * m.initial.Total() / m.b
}

// Derivatives returns dS, dI, dR in that order.
func (m *SIR) Derivatives() []integrate.DerivativeFunc {
	a, b := m.a, m.b
	return []integrate.DerivativeFunc{
		func(_ float64, y []float64) float64 {
			return -a * y[SIRSusceptible] * y[SIRInfected]
		},
		func(_ float64, y []float64) float64 {
			return a*y[SIRSusceptible]*y[SIRInfected] - b*y[SIRInfected]
		},
		func(_ float64, y []float64) float64 {
			return b * y[SIRInfected]
		},
	}
}
