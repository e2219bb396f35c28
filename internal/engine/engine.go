// Package engine drives compartment models through time. Engine is the
// stateful single-run stepper; Run and RunRK4 produce sampled trajectories.
package engine

import (
	"log/slog"

	"github.com/AmoghJohri/Epidemic-Modeling/internal/integrate"
	"github.com/AmoghJohri/Epidemic-Modeling/internal/model"
	"github.com/AmoghJohri/Epidemic-Modeling/pkg/logger"
)

// Engine threads a model's state through repeated fixed steps
type Engine struct {
	model     model.Model
	stepper   integrate.Stepper
	f         []integrate.DerivativeFunc
	initial   model.State
	state     model.State
	t         float64
	residual  float64
	iteration int
	logger    *slog.Logger
}

// New creates an engine positioned at the model's initial state. A nil
// stepper selects forward Euler.
func New(m model.Model, stepper integrate.Stepper) *Engine {
	if stepper == nil {
		stepper = integrate.Euler{}
	}
	initial := m.InitialState()
	return &Engine{
		model:   m,
		stepper: stepper,
		f:       m.Derivatives(),
		initial: initial,
		state:   initial.Clone(),
		logger:  logger.Default,
	}
}

// SetLogger sets the engine's logger
func (e *Engine) SetLogger(l *slog.Logger) {
	e.logger = logger.OrDefault(l)
}

// Step advances the state by dt and returns the new state. The residual is
// the negated sum of the per-compartment changes of this step.
func (e *Engine) Step(dt float64) model.State {
	next := model.State(e.stepper.Step(e.f, e.t, e.state, dt))

	var delta float64
	for i := range next {
		delta += next[i] - e.state[i]
	}
	e.residual = -delta
	e.state = next
	e.t += dt
	e.iteration++
	return next.Clone()
}

// Reset restores the initial state, T=0 and D=0.
func (e *Engine) Reset() {
	e.state = e.initial.Clone()
	e.t = 0
	e.residual = 0
	e.iteration = 0
	e.logger.Debug("Engine reset", "model", e.model.Name())
}

// State returns a copy of the current state.
func (e *Engine) State() model.State { return e.state.Clone() }

// Time returns the simulated time in days.
func (e *Engine) Time() float64 { return e.t }

// Residual returns D for the last step.
func (e *Engine) Residual() float64 { return e.residual }

// Iteration returns the number of steps taken since construction or Reset.
func (e *Engine) Iteration() int { return e.iteration }

// Model returns the driven model.
func (e *Engine) Model() model.Model { return e.model }

// Stepper returns the integration method in use.
func (e *Engine) Stepper() integrate.Stepper { return e.stepper }
