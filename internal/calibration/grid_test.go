package calibration

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLinspace(t *testing.T) {
	got := Linspace(Range{Low: 0.36, High: 0.40}, 5)
	require.Len(t, got, 5)
	want := []float64{0.36, 0.37, 0.38, 0.39, 0.40}
	assert.InDeltaSlice(t, want, got, 1e-12)

	assert.Equal(t, []float64{0.5}, Linspace(Range{Low: 0.5, High: 2}, 1))
	assert.Nil(t, Linspace(Range{Low: 0, High: 1}, 0))
	assert.InDeltaSlice(t, []float64{1, 1, 1}, Linspace(Range{Low: 1, High: 1}, 3), 0)
}

func TestGridPointsEnumeration(t *testing.T) {
	g := Grid{
		Alpha: Range{Low: 0.01, High: 0.03},
		Beta:  Range{Low: 0.2, High: 0.6},
		Eta:   Range{Low: 0.1, High: 0.3},
		Gamma: Range{Low: 0.05, High: 0.15},
		Gran:  3,
	}
	require.Equal(t, 81, g.Size())

	alphas := Linspace(g.Alpha, 3)
	betas := Linspace(g.Beta, 3)
	etas := Linspace(g.Eta, 3)
	gammas := Linspace(g.Gamma, 3)

	seen := make(map[Point]bool)
	next := 0
	for idx, p := range g.Points() {
		require.Equal(t, next, idx)
		next++

		assert.Equal(t, alphas[idx/27], p.Alpha, "alpha varies slowest")
		assert.Equal(t, betas[idx/9%3], p.Beta)
		assert.Equal(t, etas[idx/3%3], p.Eta)
		assert.Equal(t, gammas[idx%3], p.Gamma, "gamma varies fastest")
		assert.False(t, seen[p], "duplicate point %+v", p)
		seen[p] = true

		at, err := g.At(idx)
		require.NoError(t, err)
		assert.Equal(t, p, at)
	}
	assert.Equal(t, 81, next)
	assert.Len(t, seen, 81)

	_, err := g.At(81)
	assert.Error(t, err)
}

func TestGridPointsEarlyStop(t *testing.T) {
	g := DefaultGrid()
	count := 0
	for range g.Points() {
		count++
		if count == 7 {
			break
		}
	}
	assert.Equal(t, 7, count)
}

func TestGridValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Grid)
		field  string
	}{
		{"zero gran", func(g *Grid) { g.Gran = 0 }, "gran"},
		{"inverted beta", func(g *Grid) { g.Beta = Range{Low: 1, High: 0.5} }, "beta"},
		{"negative eta", func(g *Grid) { g.Eta.Low = -0.1 }, "eta"},
	}

	require.NoError(t, DefaultGrid().Validate())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := DefaultGrid()
			tt.mutate(&g)
			var invalid *InvalidGridError
			require.True(t, errors.As(g.Validate(), &invalid))
			assert.Equal(t, tt.field, invalid.Field)
		})
	}

	empty := Grid{Gran: 0}
	assert.Equal(t, 0, empty.Size())
	for range empty.Points() {
		t.Fatal("invalid grid must not yield points")
	}
}

func TestGridRefine(t *testing.T) {
	g := DefaultGrid()
	center := Point{Alpha: 0.035, Beta: 0.38, Eta: 0.045, Gamma: 0.065}
	r := g.Refine(center, 0.5, g)

	assert.Equal(t, g.Gran, r.Gran)
	assert.InDelta(t, 0.0325, r.Alpha.Low, 1e-12)
	assert.InDelta(t, 0.0375, r.Alpha.High, 1e-12)
	assert.InDelta(t, 0.37, r.Beta.Low, 1e-12)
	assert.InDelta(t, 0.39, r.Beta.High, 1e-12)
	assert.NoError(t, r.Validate())
}

func TestGridRefineStaysInsideBounds(t *testing.T) {
	g := DefaultGrid()
	upper := Point{Alpha: g.Alpha.High, Beta: g.Beta.High, Eta: g.Eta.High, Gamma: g.Gamma.High}
	lower := Point{Alpha: g.Alpha.Low, Beta: g.Beta.Low, Eta: g.Eta.Low, Gamma: g.Gamma.Low}

	for name, p := range map[string]Point{"upper edge": upper, "lower edge": lower} {
		t.Run(name, func(t *testing.T) {
			r := g
			for range 3 {
				r = r.Refine(p, 0.5, g)
				for i, pair := range [][2]Range{{g.Alpha, r.Alpha}, {g.Beta, r.Beta}, {g.Eta, r.Eta}, {g.Gamma, r.Gamma}} {
					orig, got := pair[0], pair[1]
					assert.GreaterOrEqual(t, got.Low, orig.Low, "range %d low", i)
					assert.LessOrEqual(t, got.High, orig.High, "range %d high", i)
					assert.Less(t, got.Low, got.High, "range %d keeps a width", i)
				}
				require.NoError(t, r.Validate())
			}
		})
	}

	// the shrunken window slides inward instead of being truncated
	r := g.Refine(upper, 0.5, g)
	assert.InDelta(t, 0.035, r.Alpha.Low, 1e-12)
	assert.InDelta(t, 0.04, r.Alpha.High, 1e-12)
	assert.InDelta(t, 0.38, r.Beta.Low, 1e-12)
	assert.InDelta(t, 0.40, r.Beta.High, 1e-12)
}
