package simd

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/AmoghJohri/Epidemic-Modeling/internal/calibration"
	"github.com/AmoghJohri/Epidemic-Modeling/internal/dataprovider"
	"github.com/AmoghJohri/Epidemic-Modeling/internal/engine"
	"github.com/AmoghJohri/Epidemic-Modeling/internal/integrate"
	"github.com/AmoghJohri/Epidemic-Modeling/internal/model"
	"github.com/AmoghJohri/Epidemic-Modeling/pkg/config"
	"github.com/AmoghJohri/Epidemic-Modeling/pkg/utils"
)

const (
	// maxSimulationSteps bounds the steps of one simulation or one calibration trial.
	maxSimulationSteps = 10_000_000
	// maxGridPoints bounds the size of a calibration grid (gran 31 is just under).
	maxGridPoints = 1_000_000
)

// ErrInvalidRequest marks a malformed simulation or calibration request.
var ErrInvalidRequest = errors.New("invalid request")

func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidRequest, fmt.Sprintf(format, args...))
}

// SIRRequest overrides the configured SIR model.
type SIRRequest struct {
	A               float64 `json:"a"`
	B               float64 `json:"b"`
	N               float64 `json:"n"`
	InitialInfected float64 `json:"initial_infected"`
}

// SimulationRequest is the body of POST /v1/simulations and of the Simulate RPC.
// Zero fields take the daemon's configured values.
type SimulationRequest struct {
	Model      string            `json:"model"` // seir (default) or sir
	Parameters *model.Parameters `json:"parameters,omitempty"`
	Initial    []float64         `json:"initial,omitempty"` // S, E, I, R for seir
	SIR        *SIRRequest       `json:"sir,omitempty"`

	// seir: fixed-step run sampled once per day
	Stepper string  `json:"stepper,omitempty"`
	Dt      float64 `json:"dt,omitempty"`
	Days    float64 `json:"days,omitempty"`

	// sir: RK4 integration keeping every fetch-th state
	X     float64 `json:"x,omitempty"`
	H     float64 `json:"h,omitempty"`
	Fetch int     `json:"fetch,omitempty"`
}

// Simulate runs req synchronously against the defaults in cfg.
func Simulate(ctx context.Context, cfg *config.Config, req SimulationRequest) (*engine.Result, error) {
	switch strings.ToLower(req.Model) {
	case "", "seir":
		return simulateSEIR(ctx, cfg, req)
	case "sir":
		return simulateSIR(ctx, cfg, req)
	default:
		return nil, invalidf("unknown model %q (must be seir or sir)", req.Model)
	}
}

func simulateSEIR(ctx context.Context, cfg *config.Config, req SimulationRequest) (*engine.Result, error) {
	if len(req.Initial) == 0 {
		return nil, invalidf("initial state is required for the seir model")
	}
	params := cfg.Model.Parameters
	if req.Parameters != nil {
		params = *req.Parameters
	}
	m, err := model.NewSEIR(params, model.State(req.Initial))
	if err != nil {
		return nil, err
	}
	stepper, err := integrate.NewStepper(firstNonEmpty(req.Stepper, cfg.Simulation.Stepper, "euler"))
	if err != nil {
		return nil, err
	}
	dt := orDefault(req.Dt, cfg.Simulation.Dt)
	days := orDefault(req.Days, cfg.Simulation.Days)
	if dt > 0 && days/dt > maxSimulationSteps {
		return nil, invalidf("days/dt = %g exceeds the limit of %d steps", days/dt, maxSimulationSteps)
	}
	return engine.Run(ctx, m, engine.RunConfig{Dt: dt, Days: days, Stepper: stepper})
}

func simulateSIR(ctx context.Context, cfg *config.Config, req SimulationRequest) (*engine.Result, error) {
	sir := SIRRequest{
		A:               cfg.Model.SIR.A,
		B:               cfg.Model.SIR.B,
		N:               cfg.Model.SIR.N,
		InitialInfected: cfg.Model.SIR.InitialInfected,
	}
	if req.SIR != nil {
		sir = *req.SIR
	}
	m, err := model.NewSIR(sir.A, sir.B, sir.N, sir.InitialInfected)
	if err != nil {
		return nil, err
	}
	rk := engine.RK4Config{
		X:     orDefault(req.X, cfg.Simulation.X),
		H:     orDefault(req.H, cfg.Simulation.H),
		Fetch: req.Fetch,
	}
	if rk.Fetch == 0 {
		rk.Fetch = cfg.Simulation.Fetch
	}
	if rk.H > 0 && rk.X/rk.H > maxSimulationSteps {
		return nil, invalidf("x/h = %g exceeds the limit of %d steps", rk.X/rk.H, maxSimulationSteps)
	}
	return engine.RunRK4(ctx, m, rk)
}

// CalibrationRequest is the body of POST /v1/calibrations and of the
// StartCalibration RPC. The start state is either Initial or derived from
// Minima with the configured initial conditions.
type CalibrationRequest struct {
	RunID     string            `json:"run_id,omitempty"`
	Reference []float64         `json:"reference"`
	Grid      *calibration.Grid `json:"grid,omitempty"`
	Gran      int               `json:"gran,omitempty"`
	Objective string            `json:"objective,omitempty"`
	Dt        float64           `json:"dt,omitempty"`
	Workers   int               `json:"workers,omitempty"`

	Refine       int     `json:"refine,omitempty"`
	RefineFactor float64 `json:"refine_factor,omitempty"`

	Parameters *model.Parameters    `json:"parameters,omitempty"` // wedge, mu and theta are kept fixed
	Initial    []float64            `json:"initial,omitempty"`
	Minima     *dataprovider.Minima `json:"minima,omitempty"`

	// CumulativeOffset defaults to Minima.Infected when Minima is used.
	CumulativeOffset *float64 `json:"cumulative_offset,omitempty"`

	CallbackURL    string `json:"callback_url,omitempty"`
	CallbackSecret string `json:"callback_secret,omitempty"`
}

// calibrationPlan is a validated request ready to execute.
type calibrationPlan struct {
	search    *calibration.Search
	reference []float64
	rounds    int
	factor    float64
}

func (r CalibrationRequest) plan(cfg *config.Config) (*calibrationPlan, error) {
	if len(r.Reference) == 0 {
		return nil, &calibration.IncompleteReferenceDataError{Reason: "reference series is empty"}
	}
	for i, v := range r.Reference {
		if !utils.IsFinite(v) {
			return nil, invalidf("reference[%d] is not finite", i)
		}
	}
	dt := orDefault(r.Dt, cfg.Calibration.Dt)
	if !(dt > 0) || !utils.IsFinite(dt) {
		return nil, invalidf("dt must be positive, got %g", dt)
	}
	if steps := float64(len(r.Reference)) / dt; steps > maxSimulationSteps {
		return nil, invalidf("len(reference)/dt = %g exceeds the limit of %d steps per trial", steps, maxSimulationSteps)
	}

	grid := cfg.Calibration.Grid
	if r.Grid != nil {
		grid = *r.Grid
	}
	if r.Gran > 0 {
		grid.Gran = r.Gran
	}
	if err := grid.Validate(); err != nil {
		return nil, err
	}
	if grid.Gran > 31 || grid.Size() > maxGridPoints {
		return nil, invalidf("grid of granularity %d exceeds %d points", grid.Gran, maxGridPoints)
	}

	objective, err := calibration.NewObjective(firstNonEmpty(r.Objective, cfg.Calibration.Objective))
	if err != nil {
		return nil, err
	}

	params := cfg.Model.Parameters
	if r.Parameters != nil {
		params = *r.Parameters
	}
	var offset float64
	var initial model.State
	switch {
	case len(r.Initial) > 0:
		initial = model.State(r.Initial)
	case r.Minima != nil:
		initial, err = cfg.Model.Initial.Derive(r.Minima.Infected, r.Minima.Recovered, r.Minima.Deaths)
		if err != nil {
			return nil, err
		}
		offset = r.Minima.Infected
	default:
		return nil, invalidf("one of initial or minima is required")
	}
	if r.CumulativeOffset != nil {
		offset = *r.CumulativeOffset
	}

	factory := calibration.SEIRFactory(params, initial)
	first, err := grid.At(0)
	if err != nil {
		return nil, err
	}
	if _, err := factory(first); err != nil {
		return nil, err
	}

	factor := orDefault(r.RefineFactor, cfg.Calibration.Factor)
	if r.Refine < 0 {
		return nil, invalidf("refine cannot be negative, got %d", r.Refine)
	}
	if r.Refine > 0 && !(factor > 0 && factor < 1) {
		return nil, invalidf("refine_factor must be in (0, 1), got %g", factor)
	}
	if r.CallbackURL != "" {
		if err := validateCallbackURL(r.CallbackURL); err != nil {
			return nil, err
		}
	}

	workers := r.Workers
	if workers <= 0 {
		workers = cfg.Calibration.Workers
	}
	search := calibration.NewSearch(factory, grid).
		WithObjective(objective).
		WithDt(dt).
		WithCumulativeOffset(offset)
	if workers > 0 {
		search = search.WithWorkers(workers)
	}

	return &calibrationPlan{
		search:    search,
		reference: append([]float64(nil), r.Reference...),
		rounds:    r.Refine,
		factor:    factor,
	}, nil
}

// isClientError reports whether err was caused by the request rather than the daemon.
func isClientError(err error) bool {
	var (
		paramErr   *model.InvalidParameterError
		degenerate *integrate.DegenerateIntegrationError
		stepperErr *integrate.UnknownStepperError
		refErr     *calibration.IncompleteReferenceDataError
		objErr     *calibration.UnknownObjectiveError
		gridErr    *calibration.InvalidGridError
	)
	return errors.Is(err, ErrInvalidRequest) ||
		errors.Is(err, ErrInvalidURL) ||
		errors.Is(err, ErrMetadataEndpoint) ||
		errors.Is(err, ErrInternalHost) ||
		errors.As(err, &paramErr) ||
		errors.As(err, &degenerate) ||
		errors.As(err, &stepperErr) ||
		errors.As(err, &refErr) ||
		errors.As(err, &objErr) ||
		errors.As(err, &gridErr)
}

func orDefault(v, def float64) float64 {
	if v == 0 {
		return def
	}
	return v
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
