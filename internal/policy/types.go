// Package policy holds the admission controls of the calibration daemon:
// a per-client rate limit on submissions and a per-host circuit breaker on
// completion callbacks.
package policy

import (
	"time"

	"github.com/AmoghJohri/Epidemic-Modeling/pkg/config"
)

// Policy represents a generic policy interface
type Policy interface {
	// Enabled returns whether the policy is enabled
	Enabled() bool
	// Name returns the policy name for identification
	Name() string
}

// RateLimitingPolicy throttles requests per client and route
type RateLimitingPolicy interface {
	Policy
	// AllowRequest consumes one token if the client has any left
	AllowRequest(client, route string, now time.Time) bool
	// GetRemainingQuota returns the tokens left, or -1 when disabled
	GetRemainingQuota(client, route string, now time.Time) int
}

// CircuitBreakerPolicy stops calling targets that keep failing
type CircuitBreakerPolicy interface {
	Policy
	// AllowRequest reports whether target may be called (circuit not open)
	AllowRequest(target string, now time.Time) bool
	// RecordSuccess records a successful call
	RecordSuccess(target string, now time.Time)
	// RecordFailure records a failed call
	RecordFailure(target string, now time.Time)
	// CheckAndGetState returns the state after applying any due transition
	CheckAndGetState(target string, now time.Time) CircuitState
}

// CircuitState represents the state of a circuit breaker
type CircuitState string

const (
	CircuitStateClosed   CircuitState = "closed"   // Normal operation
	CircuitStateOpen     CircuitState = "open"     // Failing, rejecting calls
	CircuitStateHalfOpen CircuitState = "halfopen" // Probing whether the target recovered
)

// Manager manages all active policies
type Manager struct {
	rateLimiting   RateLimitingPolicy
	circuitBreaker CircuitBreakerPolicy
}

// NewPolicyManager creates a new policy manager from configuration. Disabled
// policies are still constructed so callers never see nil.
func NewPolicyManager(policies config.Policies) *Manager {
	rl := policies.RateLimit
	cb := policies.CallbackBreaker
	return &Manager{
		rateLimiting: NewRateLimitingPolicy(rl.Enabled, rl.PerSecond),
		circuitBreaker: NewCircuitBreakerPolicy(cb.Enabled, cb.FailureThreshold, cb.SuccessThreshold,
			time.Duration(cb.CooldownMs)*time.Millisecond),
	}
}

// GetRateLimiting returns the submission rate limit
func (pm *Manager) GetRateLimiting() RateLimitingPolicy {
	return pm.rateLimiting
}

// GetCircuitBreaker returns the callback circuit breaker
func (pm *Manager) GetCircuitBreaker() CircuitBreakerPolicy {
	return pm.circuitBreaker
}
