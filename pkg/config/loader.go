package config

import (
	"fmt"
	"math"
	"os"

	"github.com/AmoghJohri/Epidemic-Modeling/internal/calibration"
	"github.com/AmoghJohri/Epidemic-Modeling/internal/dataprovider"
	"github.com/AmoghJohri/Epidemic-Modeling/internal/integrate"
)

// LoadConfig loads and parses a configuration file. An empty path yields Default().
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	cfg, err := ParseConfigYAML(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return cfg, nil
}

// validateConfig performs validation on the configuration
func validateConfig(cfg *Config) error {
	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[cfg.LogLevel] {
		return fmt.Errorf("invalid log_level: %s (must be debug, info, warn, or error)", cfg.LogLevel)
	}
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		return fmt.Errorf("invalid log_format: %s (must be json or text)", cfg.LogFormat)
	}

	if err := validateModel(&cfg.Model); err != nil {
		return fmt.Errorf("model validation failed: %w", err)
	}
	if err := validateSimulation(&cfg.Simulation); err != nil {
		return fmt.Errorf("simulation validation failed: %w", err)
	}
	if err := validateCalibration(&cfg.Calibration); err != nil {
		return fmt.Errorf("calibration validation failed: %w", err)
	}
	if err := validateData(&cfg.Data); err != nil {
		return fmt.Errorf("data validation failed: %w", err)
	}

	if cfg.Server.HTTPAddr == "" && cfg.Server.GRPCAddr == "" {
		return fmt.Errorf("at least one of server.http_addr or server.grpc_addr must be set")
	}
	if err := validatePolicies(&cfg.Policies); err != nil {
		return fmt.Errorf("policies validation failed: %w", err)
	}
	return nil
}

// validateModel validates rates and initial-condition assumptions
func validateModel(m *Model) error {
	if err := m.Parameters.Validate(); err != nil {
		return err
	}
	if m.Initial.N0 <= 0 {
		return fmt.Errorf("initial.n0 must be positive, got %g", m.Initial.N0)
	}
	if m.Initial.E0 < 0 {
		return fmt.Errorf("initial.e0 cannot be negative, got %g", m.Initial.E0)
	}
	if m.Initial.InfectedScale <= 0 {
		return fmt.Errorf("initial.infected_scale must be positive, got %g", m.Initial.InfectedScale)
	}
	if m.SIR.A < 0 || m.SIR.B < 0 {
		return fmt.Errorf("sir rates cannot be negative (a=%g, b=%g)", m.SIR.A, m.SIR.B)
	}
	if m.SIR.N <= 0 {
		return fmt.Errorf("sir.n must be positive, got %g", m.SIR.N)
	}
	if m.SIR.InitialInfected < 0 || m.SIR.InitialInfected > m.SIR.N {
		return fmt.Errorf("sir.initial_infected must be between 0 and n, got %g", m.SIR.InitialInfected)
	}
	return nil
}

// validateSimulation validates step sizes and horizons
func validateSimulation(s *Simulation) error {
	if !(s.Dt > 0) {
		return fmt.Errorf("dt must be positive, got %g", s.Dt)
	}
	if !(s.Days > 0) {
		return fmt.Errorf("days must be positive, got %g", s.Days)
	}
	if _, err := integrate.NewStepper(s.Stepper); err != nil {
		return err
	}
	if !(s.X > 0) {
		return fmt.Errorf("x must be positive, got %g", s.X)
	}
	if !(s.H > 0) {
		return fmt.Errorf("h must be positive, got %g", s.H)
	}
	if s.Fetch <= 0 {
		return fmt.Errorf("fetch must be positive, got %d", s.Fetch)
	}
	if integrate.Iterations(0, s.X, s.H) < s.Fetch {
		return fmt.Errorf("x/h must cover at least one fetch stride (x=%g, h=%g, fetch=%d)", s.X, s.H, s.Fetch)
	}
	return nil
}

// validateCalibration validates the search grid and scoring
func validateCalibration(c *Calibration) error {
	if err := c.Grid.Validate(); err != nil {
		return err
	}
	if _, err := calibration.NewObjective(c.Objective); err != nil {
		return err
	}
	if c.Workers < 0 {
		return fmt.Errorf("workers cannot be negative, got %d", c.Workers)
	}
	if !(c.Dt > 0) {
		return fmt.Errorf("dt must be positive, got %g", c.Dt)
	}
	if c.Days < 0 {
		return fmt.Errorf("days cannot be negative, got %d", c.Days)
	}
	if c.Refine < 0 {
		return fmt.Errorf("refine cannot be negative, got %d", c.Refine)
	}
	if c.Refine > 0 && (!(c.Factor > 0) || c.Factor >= 1 || math.IsInf(c.Factor, 0)) {
		return fmt.Errorf("refine_factor must be in (0, 1), got %g", c.Factor)
	}
	return nil
}

// validateData validates the data window and retry policy
func validateData(d *Data) error {
	if d.URL == "" && d.CSV == "" {
		return fmt.Errorf("one of url or csv must be set")
	}
	from, err := dataprovider.ParseDay(d.From)
	if err != nil {
		return fmt.Errorf("invalid from date %q: %w", d.From, err)
	}
	to, err := dataprovider.ParseDay(d.To)
	if err != nil {
		return fmt.Errorf("invalid to date %q: %w", d.To, err)
	}
	if !from.IsZero() && !to.IsZero() && to.Before(from) {
		return fmt.Errorf("to date %s is before from date %s", d.To, d.From)
	}
	if d.Retries < 0 {
		return fmt.Errorf("retries cannot be negative, got %d", d.Retries)
	}
	validBackoffs := map[string]bool{
		"exponential": true,
		"linear":      true,
		"constant":    true,
	}
	if !validBackoffs[d.Backoff] {
		return fmt.Errorf("invalid backoff type: %s (must be exponential, linear, or constant)", d.Backoff)
	}
	if d.BaseMs < 0 || d.MaxMs < 0 {
		return fmt.Errorf("base_ms and max_ms cannot be negative")
	}
	return nil
}

// validatePolicies validates the enabled admission controls
func validatePolicies(p *Policies) error {
	if p.RateLimit.Enabled && p.RateLimit.PerSecond <= 0 {
		return fmt.Errorf("rate_limit.per_second must be positive, got %d", p.RateLimit.PerSecond)
	}
	cb := p.CallbackBreaker
	if cb.Enabled {
		if cb.FailureThreshold <= 0 || cb.SuccessThreshold <= 0 {
			return fmt.Errorf("callback_breaker thresholds must be positive (failure=%d, success=%d)",
				cb.FailureThreshold, cb.SuccessThreshold)
		}
		if cb.CooldownMs < 0 {
			return fmt.Errorf("callback_breaker.cooldown_ms cannot be negative, got %d", cb.CooldownMs)
		}
	}
	return nil
}
