package model

import (
	"math"

	"github.com/AmoghJohri/Epidemic-Modeling/pkg/utils"
)

// Parameters are the SEIR rate constants, all per day.
type Parameters struct {
	Alpha float64 `yaml:"alpha" json:"alpha"` // disease-induced removal from I
	Beta  float64 `yaml:"beta" json:"beta"`   // transmission
	Eta   float64 `yaml:"eta" json:"eta"`     // incubation, E to I
	Gamma float64 `yaml:"gamma" json:"gamma"` // recovery, I to R
	Wedge float64 `yaml:"wedge" json:"wedge"` // births, absolute
	Mu    float64 `yaml:"mu" json:"mu"`       // natural death
	Theta float64 `yaml:"theta" json:"theta"` // quarantine, S and E to R
}

// DefaultParameters returns the rates used for the India 2021 fit.
func DefaultParameters() Parameters {
	return Parameters{
		Alpha: 0.006,
		Beta:  0.75,
		Eta:   1 / 5.2,
		Gamma: 1 / 2.9,
		Theta: 0.01,
	}
}

// Validate checks every rate is finite and non-negative.
func (p Parameters) Validate() error {
	fields := []struct {
		name  string
		value float64
	}{
		{"alpha", p.Alpha},
		{"beta", p.Beta},
		{"eta", p.Eta},
		{"gamma", p.Gamma},
		{"wedge", p.Wedge},
		{"mu", p.Mu},
		{"theta", p.Theta},
	}
	for _, f := range fields {
		if err := checkRate(f.name, f.value); err != nil {
			return err
		}
	}
	return nil
}

// ReproductionRate returns beta*eta / ((eta+mu+theta)*(gamma+alpha+mu)).
// A zero denominator yields +Inf.
func (p Parameters) ReproductionRate() float64 {
	denom := (p.Eta + p.Mu + p.Theta) * (p.Gamma + p.Alpha + p.Mu)
	if denom == 0 {
		return math.Inf(1)
	}
	return p.Beta * p.Eta / denom
}

func checkRate(name string, v float64) error {
	if !utils.IsFinite(v) {
		return &InvalidParameterError{Field: name, Value: v, Reason: "must be finite"}
	}
	if v < 0 {
		return &InvalidParameterError{Field: name, Value: v, Reason: "must be non-negative"}
	}
	return nil
}
