package simd

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AmoghJohri/Epidemic-Modeling/internal/dataprovider"
	"github.com/AmoghJohri/Epidemic-Modeling/internal/model"
)

func TestSimulateUsesConfiguredDefaults(t *testing.T) {
	cfg := testConfig()
	cfg.Simulation.Days = 4
	cfg.Simulation.Dt = 0.5

	res, err := Simulate(context.Background(), cfg, SimulationRequest{Initial: []float64{1000, 10, 5, 0}})
	require.NoError(t, err)
	assert.Equal(t, "seir", res.Model)
	assert.Equal(t, []float64{0, 1, 2, 3}, res.Times)
	assert.Equal(t, 8, res.Steps)
}

func TestSimulateSteppers(t *testing.T) {
	cfg := testConfig()
	req := SimulationRequest{Initial: []float64{1e6, 100, 50, 0}, Days: 5}

	req.Stepper = "euler"
	euler, err := Simulate(context.Background(), cfg, req)
	require.NoError(t, err)
	req.Stepper = "rk4"
	rk4, err := Simulate(context.Background(), cfg, req)
	require.NoError(t, err)

	require.Equal(t, euler.Len(), rk4.Len())
	assert.NotEqual(t, euler.Infected, rk4.Infected)
	for k := range euler.Infected {
		assert.InEpsilon(t, rk4.Infected[k], euler.Infected[k], 5e-2, "day %d", k)
	}
}

func TestSimulateSIROverride(t *testing.T) {
	res, err := Simulate(context.Background(), testConfig(), SimulationRequest{
		Model: "SIR",
		SIR:   &SIRRequest{A: 0.02, B: 0.1, N: 50, InitialInfected: 2},
		X:     5,
		H:     0.1,
		Fetch: 1,
	})
	require.NoError(t, err)
	assert.Len(t, res.Times, 50)
	assert.InDelta(t, 0.1, res.Times[0], 1e-12)
	first := res.States[0]
	assert.InDelta(t, 50, first[0]+first[1]+first[2], 1e-9)

	_, err = Simulate(context.Background(), testConfig(), SimulationRequest{
		Model: "sir",
		SIR:   &SIRRequest{A: 0.02, B: 0.1, N: 5, InitialInfected: 10},
	})
	var paramErr *model.InvalidParameterError
	assert.ErrorAs(t, err, &paramErr)
	assert.True(t, isClientError(err))
}

func TestCalibrationPlanStartState(t *testing.T) {
	cfg := testConfig()

	withInitial := smallCalibration()
	withInitial.Minima = nil
	withInitial.Initial = []float64{1e9, 1000, 20000, 1e7}
	_, err := withInitial.plan(cfg)
	require.NoError(t, err)

	badInitial := withInitial
	badInitial.Initial = []float64{1, 2, 3}
	_, err = badInitial.plan(cfg)
	var paramErr *model.InvalidParameterError
	assert.ErrorAs(t, err, &paramErr)

	overflow := smallCalibration()
	overflow.Minima = &dataprovider.Minima{Infected: 1e3, Recovered: 2e9, Deaths: 0}
	_, err = overflow.plan(cfg)
	assert.ErrorAs(t, err, &paramErr, "S0 below zero must be rejected")
}

func TestCalibrationPlanRuns(t *testing.T) {
	cfg := testConfig()
	req := smallCalibration()
	offset := 12345.0
	req.CumulativeOffset = &offset

	p, err := req.plan(cfg)
	require.NoError(t, err)
	results, err := p.search.Run(context.Background(), p.reference)
	require.NoError(t, err)
	assert.Len(t, results, 16)
	assert.Equal(t, 0, p.rounds)
	assert.Equal(t, cfg.Calibration.Factor, p.factor)
}
