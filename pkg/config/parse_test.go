package config

import (
	"strings"
	"testing"
)

func TestParseConfigYAMLStringOverridesDefaults(t *testing.T) {
	yamlText := `
log_level: debug
model:
  parameters:
    beta: 0.435
    gamma: 0.15
simulation:
  stepper: rk4
calibration:
  grid:
    gran: 3
  objective: rmse
`
	cfg, err := ParseConfigYAMLString(yamlText)
	if err != nil {
		t.Fatalf("ParseConfigYAMLString failed: %v", err)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("expected log_level debug, got %q", cfg.LogLevel)
	}
	if cfg.Model.Parameters.Beta != 0.435 {
		t.Errorf("expected beta 0.435, got %g", cfg.Model.Parameters.Beta)
	}
	if cfg.Model.Parameters.Alpha != 0.006 {
		t.Errorf("expected default alpha 0.006 to survive, got %g", cfg.Model.Parameters.Alpha)
	}
	if cfg.Simulation.Stepper != "rk4" {
		t.Errorf("expected stepper rk4, got %q", cfg.Simulation.Stepper)
	}
	if cfg.Calibration.Grid.Gran != 3 {
		t.Errorf("expected gran 3, got %d", cfg.Calibration.Grid.Gran)
	}
	if cfg.Calibration.Grid.Beta.Low != 0.36 {
		t.Errorf("expected default beta range to survive, got %+v", cfg.Calibration.Grid.Beta)
	}
	if cfg.Data.From != "2021-03-01" {
		t.Errorf("expected default from date, got %q", cfg.Data.From)
	}
}

func TestParseConfigYAMLEmpty(t *testing.T) {
	for _, doc := range []string{"", "# nothing here\n"} {
		cfg, err := ParseConfigYAMLString(doc)
		if err != nil {
			t.Fatalf("ParseConfigYAMLString(%q) failed: %v", doc, err)
		}
		if cfg.Model.Initial.N0 != 1.38e9 {
			t.Errorf("expected default N0, got %g", cfg.Model.Initial.N0)
		}
	}
}

func TestParseConfigYAMLStringInvalid(t *testing.T) {
	tests := []struct {
		name     string
		yamlText string
		wantErr  string
	}{
		{"Invalid log level", `log_level: loud`, "invalid log_level"},
		{"Invalid log format", `log_format: xml`, "invalid log_format"},
		{"Unknown field", `modle: {}`, "failed to parse config yaml"},
		{"Negative rate", "model:\n  parameters:\n    beta: -1", "beta"},
		{"Zero population", "model:\n  initial:\n    n0: 0", "n0"},
		{"Zero infected scale", "model:\n  initial:\n    infected_scale: 0", "infected_scale"},
		{"SIR infected above n", "model:\n  sir:\n    initial_infected: 500", "initial_infected"},
		{"Zero dt", "simulation:\n  dt: 0", "dt must be positive"},
		{"Unknown stepper", "simulation:\n  stepper: leapfrog", "unknown integration method"},
		{"Fetch longer than run", "simulation:\n  x: 0.01\n  fetch: 5", "fetch stride"},
		{"Zero gran", "calibration:\n  grid:\n    gran: 0", "gran"},
		{"Inverted range", "calibration:\n  grid:\n    alpha: {low: 0.5, high: 0.1}", "alpha"},
		{"Unknown objective", "calibration:\n  objective: p95_latency_ms", "unknown objective type"},
		{"Bad refine factor", "calibration:\n  refine: 2\n  refine_factor: 1.5", "refine_factor"},
		{"Bad date", "data:\n  from: 2021-13-01", "invalid from date"},
		{"Reversed window", "data:\n  from: 2021-05-01\n  to: 2021-04-01", "before from date"},
		{"Bad backoff", "data:\n  backoff: random", "invalid backoff type"},
		{"No data source", "data:\n  url: \"\"", "one of url or csv"},
		{"No listeners", "server:\n  http_addr: \"\"\n  grpc_addr: \"\"", "server.http_addr"},
		{"Zero rate limit", "policies:\n  rate_limit:\n    enabled: true\n    per_second: 0", "per_second"},
		{"Zero breaker threshold", "policies:\n  callback_breaker:\n    failure_threshold: 0", "thresholds"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseConfigYAMLString(tt.yamlText)
			if err == nil {
				t.Fatalf("expected error containing %q, got nil", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestMarshalRoundTrip(t *testing.T) {
	out, err := Marshal(Default())
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if !strings.Contains(string(out), "infected_scale: 10") {
		t.Errorf("expected infected_scale in output, got:\n%s", out)
	}
	cfg, err := ParseConfigYAML(out)
	if err != nil {
		t.Fatalf("re-parsing marshalled default failed: %v", err)
	}
	if cfg.Calibration.Grid.Gran != 5 {
		t.Errorf("expected gran 5, got %d", cfg.Calibration.Grid.Gran)
	}
}
