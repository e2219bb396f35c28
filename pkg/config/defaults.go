package config

import (
	"github.com/AmoghJohri/Epidemic-Modeling/internal/calibration"
	"github.com/AmoghJohri/Epidemic-Modeling/internal/dataprovider"
	"github.com/AmoghJohri/Epidemic-Modeling/internal/integrate"
	"github.com/AmoghJohri/Epidemic-Modeling/internal/model"
)

// Default returns the configuration of the India March-April 2021 study.
func Default() *Config {
	return &Config{
		LogLevel:  "info",
		LogFormat: "json",
		Model: Model{
			Parameters: model.DefaultParameters(),
			Initial:    model.DefaultInitialConditions(),
			SIR:        SIR{A: 0.01, B: 0.1, N: 100, InitialInfected: 1},
		},
		Simulation: Simulation{
			Dt:      0.01,
			Days:    52,
			Stepper: "euler",
			X:       30,
			H:       integrate.DefaultH,
			Fetch:   integrate.DefaultFetch,
		},
		Calibration: Calibration{
			Grid:      calibration.DefaultGrid(),
			Objective: string(calibration.DefaultObjective),
			Dt:        calibration.DefaultDt,
			Factor:    0.5,
		},
		Data: Data{
			URL:     dataprovider.DefaultURL,
			From:    "2021-03-01",
			To:      "2021-04-21",
			Retries: 3,
			Backoff: "exponential",
			BaseMs:  500,
			MaxMs:   10000,
		},
		Server: Server{
			HTTPAddr: ":8080",
			GRPCAddr: ":50051",
		},
		Policies: Policies{
			RateLimit: RateLimit{Enabled: false, PerSecond: 10},
			CallbackBreaker: CircuitBreaker{
				Enabled:          true,
				FailureThreshold: 3,
				SuccessThreshold: 1,
				CooldownMs:       60000,
			},
		},
	}
}
