package calibration

import (
	"fmt"
	"iter"
	"math"

	"gonum.org/v1/gonum/floats"
)

// Range is a closed interval [Low, High].
type Range struct {
	Low  float64 `yaml:"low" json:"low"`
	High float64 `yaml:"high" json:"high"`
}

// Validate checks the bounds are finite, non-negative and ordered.
func (r Range) Validate(name string) error {
	switch {
	case math.IsNaN(r.Low) || math.IsNaN(r.High) || math.IsInf(r.Low, 0) || math.IsInf(r.High, 0):
		return &InvalidGridError{Field: name, Reason: "bounds must be finite"}
	case r.Low < 0:
		return &InvalidGridError{Field: name, Reason: "rates must be non-negative"}
	case r.Low > r.High:
		return &InvalidGridError{Field: name, Reason: fmt.Sprintf("low %g is above high %g", r.Low, r.High)}
	}
	return nil
}

// Linspace returns n evenly spaced values from r.Low to r.High inclusive.
// n == 1 yields r.Low; n < 1 yields nil.
func Linspace(r Range, n int) []float64 {
	switch {
	case n < 1:
		return nil
	case n == 1:
		return []float64{r.Low}
	}
	return floats.Span(make([]float64, n), r.Low, r.High)
}

// Point is one (alpha, beta, eta, gamma) tuple.
type Point struct {
	Alpha float64 `json:"alpha"`
	Beta  float64 `json:"beta"`
	Eta   float64 `json:"eta"`
	Gamma float64 `json:"gamma"`
}

// Grid is a gran^4 Cartesian product of four linearly spaced ranges.
type Grid struct {
	Alpha Range `yaml:"alpha" json:"alpha"`
	Beta  Range `yaml:"beta" json:"beta"`
	Eta   Range `yaml:"eta" json:"eta"`
	Gamma Range `yaml:"gamma" json:"gamma"`
	Gran  int   `yaml:"gran" json:"gran"`
}

// DefaultGrid is the search box used for the March-April 2021 India fit.
func DefaultGrid() Grid {
	return Grid{
		Alpha: Range{Low: 0.030, High: 0.04},
		Beta:  Range{Low: 0.36, High: 0.40},
		Eta:   Range{Low: 0.043, High: 0.048},
		Gamma: Range{Low: 0.055, High: 0.075},
		Gran:  5,
	}
}

func (g Grid) Validate() error {
	if g.Gran < 1 {
		return &InvalidGridError{Field: "gran", Reason: fmt.Sprintf("must be at least 1, got %d", g.Gran)}
	}
	for _, r := range []struct {
		name string
		r    Range
	}{{"alpha", g.Alpha}, {"beta", g.Beta}, {"eta", g.Eta}, {"gamma", g.Gamma}} {
		if err := r.r.Validate(r.name); err != nil {
			return err
		}
	}
	return nil
}

// Size returns gran^4, or 0 for an invalid granularity.
func (g Grid) Size() int {
	if g.Gran < 1 {
		return 0
	}
	return g.Gran * g.Gran * g.Gran * g.Gran
}

// Points enumerates the grid with alpha outermost and gamma innermost,
// yielding the flat index alongside each point.
func (g Grid) Points() iter.Seq2[int, Point] {
	return func(yield func(int, Point) bool) {
		if g.Gran < 1 {
			return
		}
		alphas := Linspace(g.Alpha, g.Gran)
		betas := Linspace(g.Beta, g.Gran)
		etas := Linspace(g.Eta, g.Gran)
		gammas := Linspace(g.Gamma, g.Gran)

		idx := 0
		for _, a := range alphas {
			for _, b := range betas {
				for _, e := range etas {
					for _, c := range gammas {
						if !yield(idx, Point{Alpha: a, Beta: b, Eta: e, Gamma: c}) {
							return
						}
						idx++
					}
				}
			}
		}
	}
}

// At returns the point with flat index idx in Points order.
func (g Grid) At(idx int) (Point, error) {
	if idx < 0 || idx >= g.Size() {
		return Point{}, fmt.Errorf("grid index %d out of range [0, %d)", idx, g.Size())
	}
	n := g.Gran
	ia, ib, ie, ig := idx/(n*n*n), idx/(n*n)%n, idx/n%n, idx%n
	return Point{
		Alpha: Linspace(g.Alpha, n)[ia],
		Beta:  Linspace(g.Beta, n)[ib],
		Eta:   Linspace(g.Eta, n)[ie],
		Gamma: Linspace(g.Gamma, n)[ig],
	}, nil
}

// Refine returns a grid of the same granularity centred on p, with every
// range shrunk to factor times its current width. A window that would leave
// the matching range of bounds is shifted back inside it and then clipped.
func (g Grid) Refine(p Point, factor float64, bounds Grid) Grid {
	shrink := func(r, b Range, c float64) Range {
		half := (r.High - r.Low) * factor / 2
		lo, hi := c-half, c+half
		if lo < b.Low {
			lo, hi = b.Low, hi+(b.Low-lo)
		}
		if hi > b.High {
			lo, hi = lo-(hi-b.High), b.High
		}
		return Range{Low: math.Max(lo, b.Low), High: math.Min(hi, b.High)}
	}
	return Grid{
		Alpha: shrink(g.Alpha, bounds.Alpha, p.Alpha),
		Beta:  shrink(g.Beta, bounds.Beta, p.Beta),
		Eta:   shrink(g.Eta, bounds.Eta, p.Eta),
		Gamma: shrink(g.Gamma, bounds.Gamma, p.Gamma),
		Gran:  g.Gran,
	}
}
