package calibration

import (
	"github.com/AmoghJohri/Epidemic-Modeling/internal/model"
)

// ModelFactory builds a fresh model for one grid point.
type ModelFactory func(Point) (model.Model, error)

// SEIRFactory overrides alpha, beta, eta and gamma of base with each point
// and starts every trial from initial.
func SEIRFactory(base model.Parameters, initial model.State) ModelFactory {
	initial = initial.Clone()
	return func(p Point) (model.Model, error) {
		params := base
		params.Alpha = p.Alpha
		params.Beta = p.Beta
		params.Eta = p.Eta
		params.Gamma = p.Gamma
		return model.NewSEIR(params, initial)
	}
}
