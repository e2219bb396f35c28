package model

import (
	"github.com/AmoghJohri/Epidemic-Modeling/internal/integrate"
)

// SEIR compartment positions.
const (
	SEIRSusceptible = iota
	SEIRExposed
	SEIRInfected
	SEIRRecovered
)

var seirCompartments = []string{"S", "E", "I", "R"}

// SEIR is the susceptible-exposed-infected-recovered model with birth (wedge),
// natural death (mu), disease removal (alpha) and quarantine (theta) terms.
type SEIR struct {
	params  Parameters
	initial State
}

// NewSEIR validates p and the (S, E, I, R) initial vector.
func NewSEIR(p Parameters, initial State) (*SEIR, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if err := validateState(initial, seirCompartments); err != nil {
		return nil, err
	}
	return &SEIR{params: p, initial: initial.Clone()}, nil
}

func (m *SEIR) Name() string { return "seir" }

func (m *SEIR) Compartments() []string {
	return append([]string(nil), seirCompartments...)
}

func (m *SEIR) InitialState() State { return m.initial.Clone() }

func (m *SEIR) Parameters() Parameters { return m.params }

// ReproductionRate is the basic reproduction number of the model's parameters.
func (m *SEIR) ReproductionRate() float64 { return m.params.ReproductionRate() }

// Derivatives returns dS, dE, dI, dR in that order.
func (m *SEIR) Derivatives() []integrate.DerivativeFunc {
	p := m.params
	return []integrate.DerivativeFunc{
		func(_ float64, y []float64) float64 {
			return p.Wedge - (p.Theta+p.Mu)*y[SEIRSusceptible] - infection(p.Beta, y)
		},
		func(_ float64, y []float64) float64 {
			return infection(p.Beta, y) - (p.Mu+p.Eta+p.Theta)*y[SEIRExposed]
		},
		func(_ float64, y []float64) float64 {
			return p.Eta*y[SEIRExposed] - (p.Gamma+p.Mu+p.Alpha)*y[SEIRInfected]
		},
		func(_ float64, y []float64) float64 {
			return p.Gamma*y[SEIRInfected] + p.Theta*(y[SEIRSusceptible]+y[SEIRExposed]) - p.Mu*y[SEIRRecovered]
		},
	}
}

// infection is beta*S*I/N, defined as 0 for an empty population.
func infection(beta float64, y []float64) float64 {
	n := y[SEIRSusceptible] + y[SEIRExposed] + y[SEIRInfected] + y[SEIRRecovered]
	if n == 0 {
		return 0
	}
	return beta * y[SEIRSusceptible] * y[SEIRInfected] / n
}
