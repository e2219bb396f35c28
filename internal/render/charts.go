package render

import (
	"github.com/AmoghJohri/Epidemic-Modeling/internal/engine"
)

// Trajectory charts every compartment of a run against time.
func Trajectory(title string, res *engine.Result) Chart {
	c := Chart{Title: title, XLabel: "Time (days)", YLabel: "Population", X: res.Times}
	for _, name := range res.Compartments {
		c.Series = append(c.Series, Series{Name: name, Values: res.Series(name)})
	}
	return c
}

// Comparison charts a simulated series against the observed one on a day axis.
// The longer series is truncated to the shorter.
func Comparison(title string, observed, simulated []float64) Chart {
	n := min(len(observed), len(simulated))
	x := make([]float64, n)
	for i := range x {
		x[i] = float64(i)
	}
	return Chart{
		Title:  title,
		XLabel: "Time (days)",
		YLabel: "Population",
		X:      x,
		Series: []Series{
			{Name: "Real Data", Values: observed[:n]},
			{Name: "Simulation Data", Values: simulated[:n]},
		},
	}
}
