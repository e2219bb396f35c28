package config

import (
	"github.com/AmoghJohri/Epidemic-Modeling/internal/calibration"
	"github.com/AmoghJohri/Epidemic-Modeling/internal/model"
)

// Config represents the epidemic simulation configuration
type Config struct {
	LogLevel    string      `yaml:"log_level"`
	LogFormat   string      `yaml:"log_format"` // json or text
	Model       Model       `yaml:"model"`
	Simulation  Simulation  `yaml:"simulation"`
	Calibration Calibration `yaml:"calibration"`
	Data        Data        `yaml:"data"`
	Server      Server      `yaml:"server"`
	Policies    Policies    `yaml:"policies"`
}

// Model holds the SEIR rates and initial-condition assumptions, plus the SIR demo model
type Model struct {
	Parameters model.Parameters        `yaml:"parameters"`
	Initial    model.InitialConditions `yaml:"initial"`
	SIR        SIR                     `yaml:"sir"`
}

// SIR configures the three-compartment model
type SIR struct {
	A               float64 `yaml:"a"`
	B               float64 `yaml:"b"`
	N               float64 `yaml:"n"`
	InitialInfected float64 `yaml:"initial_infected"`
}

// Simulation configures single runs
type Simulation struct {
	Dt      float64 `yaml:"dt"`      // Euler step, days
	Days    float64 `yaml:"days"`    // horizon of daily-sampled runs
	Stepper string  `yaml:"stepper"` // euler or rk4
	X       float64 `yaml:"x"`       // RK4 horizon
	H       float64 `yaml:"h"`       // RK4 step
	Fetch   int     `yaml:"fetch"`   // RK4 output stride
}

// Calibration configures the grid search
type Calibration struct {
	Grid      calibration.Grid `yaml:"grid"`
	Objective string           `yaml:"objective"`
	Workers   int              `yaml:"workers"` // 0 means one per CPU
	Dt        float64          `yaml:"dt"`
	Days      int              `yaml:"days"` // truncate the reference to this many days; 0 keeps all
	Refine    int              `yaml:"refine"`
	Factor    float64          `yaml:"refine_factor"`
}

// Data configures where observed case counts come from
type Data struct {
	URL     string `yaml:"url"`
	CSV     string `yaml:"csv,omitempty"` // takes precedence over url
	From    string `yaml:"from"`          // YYYY-MM-DD, inclusive
	To      string `yaml:"to"`            // YYYY-MM-DD, inclusive
	Retries int    `yaml:"retries"`
	Backoff string `yaml:"backoff"` // exponential, linear or constant
	BaseMs  int    `yaml:"base_ms"`
	MaxMs   int    `yaml:"max_ms"`
}

// Server configures the daemon listeners
type Server struct {
	HTTPAddr string `yaml:"http_addr"`
	GRPCAddr string `yaml:"grpc_addr"`
}

// Policies configures daemon admission controls
type Policies struct {
	RateLimit       RateLimit      `yaml:"rate_limit"`       // per client, on POST routes
	CallbackBreaker CircuitBreaker `yaml:"callback_breaker"` // per callback host
}

// RateLimit configures the token bucket on submissions
type RateLimit struct {
	Enabled   bool `yaml:"enabled"`
	PerSecond int  `yaml:"per_second"`
}

// CircuitBreaker configures when callbacks to a failing host are skipped
type CircuitBreaker struct {
	Enabled          bool `yaml:"enabled"`
	FailureThreshold int  `yaml:"failure_threshold"`
	SuccessThreshold int  `yaml:"success_threshold"`
	CooldownMs       int  `yaml:"cooldown_ms"`
}
