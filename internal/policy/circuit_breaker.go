package policy

import (
	"sync"
	"time"
)

// circuitBreakerPolicy implements CircuitBreakerPolicy
type circuitBreakerPolicy struct {
	enabled bool
	// failureThreshold is the number of consecutive failures before opening the circuit
	failureThreshold int
	// successThreshold is the number of successes needed in half-open state to close
	successThreshold int
	// cooldown is how long the circuit stays open before transitioning to half-open
	cooldown time.Duration
	circuits map[string]*circuitState
	mu       sync.RWMutex
}

// circuitState tracks the state of a circuit breaker for one target
type circuitState struct {
	state           CircuitState
	failureCount    int
	successCount    int
	lastStateChange time.Time
	mu              sync.Mutex
}

// NewCircuitBreakerPolicy creates a new circuit breaker policy
func NewCircuitBreakerPolicy(enabled bool, failureThreshold, successThreshold int, cooldown time.Duration) CircuitBreakerPolicy {
	return &circuitBreakerPolicy{
		enabled:          enabled,
		failureThreshold: max(failureThreshold, 1),
		successThreshold: max(successThreshold, 1),
		cooldown:         cooldown,
		circuits:         make(map[string]*circuitState),
	}
}

func (p *circuitBreakerPolicy) Enabled() bool {
	return p.enabled
}

func (p *circuitBreakerPolicy) Name() string {
	return "circuit_breaker"
}

func (p *circuitBreakerPolicy) AllowRequest(target string, now time.Time) bool {
	return p.CheckAndGetState(target, now) != CircuitStateOpen
}

func (p *circuitBreakerPolicy) RecordSuccess(target string, now time.Time) {
	if !p.enabled {
		return
	}
	p.mu.RLock()
	circuit, exists := p.circuits[target]
	p.mu.RUnlock()
	if !exists {
		return
	}

	circuit.mu.Lock()
	defer circuit.mu.Unlock()

	switch circuit.state {
	case CircuitStateHalfOpen:
		circuit.successCount++
		if circuit.successCount >= p.successThreshold {
			circuit.state = CircuitStateClosed
			circuit.failureCount = 0
			circuit.lastStateChange = now
		}
	case CircuitStateClosed:
		circuit.failureCount = 0
	}
}

func (p *circuitBreakerPolicy) RecordFailure(target string, now time.Time) {
	if !p.enabled {
		return
	}
	circuit := p.circuit(target, now)

	circuit.mu.Lock()
	defer circuit.mu.Unlock()

	circuit.failureCount++
	switch circuit.state {
	case CircuitStateHalfOpen:
		// Any failure while probing reopens the circuit
		circuit.state = CircuitStateOpen
		circuit.successCount = 0
		circuit.lastStateChange = now
	case CircuitStateClosed:
		if circuit.failureCount >= p.failureThreshold {
			circuit.state = CircuitStateOpen
			circuit.lastStateChange = now
		}
	}
}

func (p *circuitBreakerPolicy) CheckAndGetState(target string, now time.Time) CircuitState {
	if !p.enabled {
		return CircuitStateClosed
	}
	p.mu.RLock()
	circuit, exists := p.circuits[target]
	p.mu.RUnlock()
	if !exists {
		return CircuitStateClosed
	}

	circuit.mu.Lock()
	defer circuit.mu.Unlock()

	if circuit.state == CircuitStateOpen && now.Sub(circuit.lastStateChange) >= p.cooldown {
		circuit.state = CircuitStateHalfOpen
		circuit.successCount = 0
		circuit.lastStateChange = now
	}
	return circuit.state
}

func (p *circuitBreakerPolicy) circuit(target string, now time.Time) *circuitState {
	p.mu.RLock()
	circuit, exists := p.circuits[target]
	p.mu.RUnlock()
	if exists {
		return circuit
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if circuit, exists = p.circuits[target]; !exists {
		circuit = &circuitState{state: CircuitStateClosed, lastStateChange: now}
		p.circuits[target] = circuit
	}
	return circuit
}
