package model

// InitialConditions derive a SEIR starting state from observed window minima.
type InitialConditions struct {
	N0            float64 `yaml:"n0" json:"n0"`
	E0            float64 `yaml:"e0" json:"e0"`
	InfectedScale float64 `yaml:"infected_scale" json:"infected_scale"`
}

// DefaultInitialConditions returns the values used for India: 1.38e9 people,
// 1000 exposed, and one in ten observed infections assumed active.
func DefaultInitialConditions() InitialConditions {
	return InitialConditions{N0: 1.38e9, E0: 1000, InfectedScale: 10}
}

// Derive returns (S0, E0, I0, R0) with I0 = minInfected/InfectedScale,
// R0 = minRecovered and S0 = N0 - (E0 + I0 + R0 + minDeaths).
func (ic InitialConditions) Derive(minInfected, minRecovered, minDeaths float64) (State, error) {
	if ic.InfectedScale <= 0 {
		return nil, &InvalidParameterError{Field: "infected_scale", Value: ic.InfectedScale, Reason: "must be positive"}
	}
	if ic.N0 <= 0 {
		return nil, &InvalidParameterError{Field: "n0", Value: ic.N0, Reason: "population must be positive"}
	}
	for _, f := range []struct {
		name string
		v    float64
	}{{"e0", ic.E0}, {"min infected", minInfected}, {"min recovered", minRecovered}, {"min deaths", minDeaths}} {
		if f.v < 0 {
			return nil, &InvalidParameterError{Field: f.name, Value: f.v, Reason: "must be non-negative"}
		}
	}

	i0 := minInfected / ic.InfectedScale
	s0 := ic.N0 - (ic.E0 + i0 + minRecovered + minDeaths)
	if s0 < 0 {
		return nil, &InvalidParameterError{Field: "S0", Value: s0, Reason: "observed counts exceed population"}
	}
	return State{s0, ic.E0, i0, minRecovered}, nil
}
