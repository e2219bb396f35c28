package engine

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/AmoghJohri/Epidemic-Modeling/internal/integrate"
	"github.com/AmoghJohri/Epidemic-Modeling/internal/model"
	"github.com/AmoghJohri/Epidemic-Modeling/pkg/logger"
)

// cancelCheckInterval is how many steps pass between context checks.
const cancelCheckInterval = 1024

// Sampler decides whether step i (at t = i*dt) is recorded.
type Sampler func(i int, dt float64) bool

// DailySampler samples once per day: when t is within dt/2 of an integer.
func DailySampler(i int, dt float64) bool {
	t := float64(i) * dt
	return math.Abs(t-math.Round(t)) < dt/2
}

// EverySampler returns a sampler that records every n-th step.
func EverySampler(n int) Sampler {
	if n < 1 {
		n = 1
	}
	return func(i int, _ float64) bool { return i%n == 0 }
}

// RunConfig configures a fixed-step run.
type RunConfig struct {
	Dt      float64
	Days    float64
	Stepper integrate.Stepper // nil selects Euler
	Sampler Sampler           // nil selects DailySampler

	// InfectedIndex is the compartment summed into the cumulative series.
	// Zero selects the model's "I" compartment.
	InfectedIndex int

	// CumulativeOffset is added to the first cumulative sample.
	CumulativeOffset float64

	Logger *slog.Logger
}

// Result is a sampled trajectory.
type Result struct {
	Model        string        `json:"model"`
	Compartments []string      `json:"compartments"`
	Times        []float64     `json:"times"`
	States       []model.State `json:"states"`
	Infected     []float64     `json:"infected"`
	Cumulative   []float64     `json:"cumulative,omitempty"`
	Residuals    []float64     `json:"residuals,omitempty"`
	Steps        int           `json:"steps"`
}

// Series returns the sampled values of one compartment, or nil if the name is unknown.
func (r *Result) Series(compartment string) []float64 {
	idx := -1
	for i, c := range r.Compartments {
		if c == compartment {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil
	}
	out := make([]float64, len(r.States))
	for k, s := range r.States {
		out[k] = s[idx]
	}
	return out
}

// Len returns the number of samples.
func (r *Result) Len() int { return len(r.Times) }

// Run steps m from its initial state while i*dt < days, recording the
// samples chosen by cfg.Sampler. The cumulative series is a running sum of
// sampled infected levels: cumulative[0] = offset + I, then
// cumulative[k] = cumulative[k-1] + I.
func Run(ctx context.Context, m model.Model, cfg RunConfig) (*Result, error) {
	if cfg.Dt <= 0 || math.IsNaN(cfg.Dt) {
		return nil, &integrate.DegenerateIntegrationError{Start: 0, End: cfg.Days, Step: cfg.Dt, Reason: "time step must be positive"}
	}
	if cfg.Days <= 0 || math.IsNaN(cfg.Days) {
		return nil, &integrate.DegenerateIntegrationError{Start: 0, End: cfg.Days, Step: cfg.Dt, Reason: "horizon must be after start"}
	}

	sampler := cfg.Sampler
	if sampler == nil {
		sampler = DailySampler
	}
	infected, err := infectedIndex(m, cfg.InfectedIndex)
	if err != nil {
		return nil, err
	}

	log := logger.OrDefault(cfg.Logger)
	eng := New(m, cfg.Stepper)
	eng.SetLogger(log)

	log.Debug("Starting run",
		"model", m.Name(),
		"stepper", eng.stepper.Name(),
		"dt", cfg.Dt,
		"days", cfg.Days)

	res := &Result{Model: m.Name(), Compartments: m.Compartments()}
	i := 0
	for ; float64(i)*cfg.Dt < cfg.Days; i++ {
		if i%cancelCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		if sampler(i, cfg.Dt) {
			state := eng.State()
			level := state[infected]
			res.Times = append(res.Times, float64(i)*cfg.Dt)
			res.States = append(res.States, state)
			res.Infected = append(res.Infected, level)
			res.Residuals = append(res.Residuals, eng.Residual())
			if n := len(res.Cumulative); n == 0 {
				res.Cumulative = append(res.Cumulative, cfg.CumulativeOffset+level)
			} else {
				res.Cumulative = append(res.Cumulative, res.Cumulative[n-1]+level)
			}
		}
		eng.Step(cfg.Dt)
	}
	res.Steps = i

	log.Debug("Run finished", "model", m.Name(), "steps", i, "samples", res.Len())
	return res, nil
}

// RK4Config configures a stride-sampled Runge-Kutta run from x=0.
type RK4Config struct {
	X     float64 // horizon
	H     float64 // zero selects integrate.DefaultH
	Fetch int     // zero selects integrate.DefaultFetch
}

// RunRK4 integrates m with classical RK4 and keeps every Fetch-th state.
// Times are the abscissae of the kept states.
func RunRK4(ctx context.Context, m model.Model, cfg RK4Config) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	h := cfg.H
	if h == 0 {
		h = integrate.DefaultH
	}
	fetch := cfg.Fetch
	if fetch == 0 {
		fetch = integrate.DefaultFetch
	}
	infected, err := infectedIndex(m, 0)
	if err != nil {
		return nil, err
	}

	samples, err := integrate.Integrate(integrate.RK4{}, 0, m.InitialState(), m.Derivatives(), cfg.X, h, fetch)
	if err != nil {
		return nil, err
	}

	res := &Result{
		Model:        m.Name(),
		Compartments: m.Compartments(),
		Times:        make([]float64, len(samples)),
		States:       make([]model.State, len(samples)),
		Infected:     make([]float64, len(samples)),
		Steps:        integrate.Iterations(0, cfg.X, h),
	}
	for k, s := range samples {
		res.Times[k] = float64((k+1)*fetch) * h
		res.States[k] = model.State(s)
		res.Infected[k] = s[infected]
	}
	return res, nil
}

func infectedIndex(m model.Model, idx int) (int, error) {
	n := len(m.Compartments())
	if idx == 0 {
		idx = model.InfectedIndex(m)
	}
	if idx < 0 || idx >= n {
		return 0, fmt.Errorf("model %s has no infected compartment at index %d", m.Name(), idx)
	}
	return idx, nil
}
