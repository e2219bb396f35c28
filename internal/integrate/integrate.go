// Package integrate provides fixed-step ODE integrators that operate on a
// vector of per-compartment derivative functions.
package integrate

import (
	"fmt"
	"strings"

	"gonum.org/v1/gonum/floats"
)

const (
	// DefaultH is the internal RK4 step size used when callers do not choose one.
	DefaultH = 0.01
	// DefaultFetch is the default output stride, in completed steps.
	DefaultFetch = 5
)

// DerivativeFunc returns dy_i/dx for one component i, evaluated on the whole vector y.
type DerivativeFunc func(x float64, y []float64) float64

// Stepper advances a state vector by one fixed step. Step must not modify y.
type Stepper interface {
	Name() string
	Step(f []DerivativeFunc, x float64, y []float64, h float64) []float64
}

// NewStepper resolves a stepper by name ("euler" or "rk4").
func NewStepper(name string) (Stepper, error) {
	switch strings.ToLower(name) {
	case "euler":
		return Euler{}, nil
	case "rk4", "runge-kutta", "rungekutta4":
		return RK4{}, nil
	default:
		return nil, &UnknownStepperError{Name: name}
	}
}

// Euler is the explicit forward Euler method. Every right-hand side is
// evaluated on the start-of-step state before any component is updated.
type Euler struct{}

func (Euler) Name() string { return "euler" }

func (Euler) Step(f []DerivativeFunc, x float64, y []float64, h float64) []float64 {
	dy := evaluate(f, x, y)
	out := make([]float64, len(y))
	return floats.AddScaledTo(out, y, h, dy)
}

// RK4 is the classical four-stage Runge-Kutta method.
type RK4 struct{}

func (RK4) Name() string { return "rk4" }

func (RK4) Step(f []DerivativeFunc, x float64, y []float64, h float64) []float64 {
	n := len(y)
	tmp := make([]float64, n)

	k1 := evaluate(f, x, y)
	floats.Scale(h, k1)

	floats.AddScaledTo(tmp, y, 0.5, k1)
	k2 := evaluate(f, x+h/2, tmp)
	floats.Scale(h, k2)

	floats.AddScaledTo(tmp, y, 0.5, k2)
	k3 := evaluate(f, x+h/2, tmp)
	floats.Scale(h, k3)

	floats.AddScaledTo(tmp, y, 1, k3)
	k4 := evaluate(f, x+h, tmp)
	floats.Scale(h, k4)

	out := make([]float64, n)
	copy(out, y)
	floats.AddScaled(out, 1.0/6.0, k1)
	floats.AddScaled(out, 2.0/6.0, k2)
	floats.AddScaled(out, 2.0/6.0, k3)
	floats.AddScaled(out, 1.0/6.0, k4)
	return out
}

func evaluate(f []DerivativeFunc, x float64, y []float64) []float64 {
	dy := make([]float64, len(f))
	for i, fi := range f {
		dy[i] = fi(x, y)
	}
	return dy
}

// Iterations returns floor((x-x0)/h), or 0 when h <= 0 or x <= x0.
func Iterations(x0, x, h float64) int {
	if h <= 0 || x <= x0 {
		return 0
	}
	return int((x - x0) / h)
}

// RungeKutta4 integrates from x0 to x with fixed step h and returns a copy of
// the state after every fetch-th completed step. A degenerate request
// (h <= 0, x <= x0, fetch <= 0) yields an empty result, not an error.
func RungeKutta4(x0 float64, y0 []float64, f []DerivativeFunc, x, h float64, fetch int) [][]float64 {
	return sample(RK4{}, x0, y0, f, x, h, fetch)
}

// Integrate is the strict form of RungeKutta4 for any stepper: degenerate
// requests and dimension mismatches are reported as errors.
func Integrate(stepper Stepper, x0 float64, y0 []float64, f []DerivativeFunc, x, h float64, fetch int) ([][]float64, error) {
	if len(f) != len(y0) {
		return nil, fmt.Errorf("%w: %d derivative functions for %d components", ErrDimensionMismatch, len(f), len(y0))
	}
	if h <= 0 {
		return nil, &DegenerateIntegrationError{Start: x0, End: x, Step: h, Reason: "step size must be positive"}
	}
	if x <= x0 {
		return nil, &DegenerateIntegrationError{Start: x0, End: x, Step: h, Reason: "horizon must be after start"}
	}
	if fetch <= 0 {
		return nil, &DegenerateIntegrationError{Start: x0, End: x, Step: h, Reason: "fetch stride must be positive"}
	}
	return sample(stepper, x0, y0, f, x, h, fetch), nil
}

func sample(stepper Stepper, x0 float64, y0 []float64, f []DerivativeFunc, x, h float64, fetch int) [][]float64 {
	iterations := Iterations(x0, x, h)
	if fetch <= 0 || iterations == 0 {
		return [][]float64{}
	}

	out := make([][]float64, 0, iterations/fetch)
	y := append([]float64(nil), y0...)
	xi := x0
	counter := 0
	for i := 0; i < iterations; i++ {
		y = stepper.Step(f, xi, y, h)
		xi += h
		counter++
		if counter == fetch {
			out = append(out, append([]float64(nil), y...))
			counter = 0
		}
	}
	return out
}
