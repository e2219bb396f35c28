package policy

import (
	"testing"
	"time"
)

func TestNewRateLimitingPolicy(t *testing.T) {
	policy := NewRateLimitingPolicy(true, 10)
	if !policy.Enabled() {
		t.Fatalf("expected policy to be enabled")
	}
	if policy.Name() != "rate_limiting" {
		t.Fatalf("expected name to be 'rate_limiting', got %s", policy.Name())
	}
	if NewRateLimitingPolicy(true, 0).Enabled() {
		t.Fatalf("expected a zero rate to disable the policy")
	}
}

func TestRateLimitingPolicyAllowRequest(t *testing.T) {
	policy := NewRateLimitingPolicy(true, 2)
	now := time.Now()

	if !policy.AllowRequest("10.0.0.1", "/v1/calibrations", now) {
		t.Fatalf("expected first request to be allowed")
	}
	if !policy.AllowRequest("10.0.0.1", "/v1/calibrations", now) {
		t.Fatalf("expected second request to be allowed")
	}
	if policy.AllowRequest("10.0.0.1", "/v1/calibrations", now) {
		t.Fatalf("expected third request to be rejected")
	}
	if !policy.AllowRequest("10.0.0.1", "/v1/calibrations", now.Add(time.Second)) {
		t.Fatalf("expected request after 1 second to be allowed")
	}
}

func TestRateLimitingPolicyDifferentKeys(t *testing.T) {
	policy := NewRateLimitingPolicy(true, 1)
	now := time.Now()

	if !policy.AllowRequest("10.0.0.1", "/v1/calibrations", now) {
		t.Fatalf("expected request for first client to be allowed")
	}
	if !policy.AllowRequest("10.0.0.2", "/v1/calibrations", now) {
		t.Fatalf("expected request for second client to be allowed")
	}
	if !policy.AllowRequest("10.0.0.1", "/v1/simulations", now) {
		t.Fatalf("expected request for a different route to be allowed")
	}
	if policy.AllowRequest("10.0.0.1", "/v1/calibrations", now) {
		t.Fatalf("expected repeated request to be rejected")
	}
}

func TestRateLimitingPolicyGetRemainingQuota(t *testing.T) {
	policy := NewRateLimitingPolicy(true, 5)
	now := time.Now()

	if quota := policy.GetRemainingQuota("c", "/r", now); quota != 5 {
		t.Fatalf("expected remaining quota 5, got %d", quota)
	}

	policy.AllowRequest("c", "/r", now)
	policy.AllowRequest("c", "/r", now)
	if quota := policy.GetRemainingQuota("c", "/r", now); quota != 3 {
		t.Fatalf("expected remaining quota 3, got %d", quota)
	}

	for i := 0; i < 5; i++ {
		policy.AllowRequest("c", "/r", now)
	}
	if quota := policy.GetRemainingQuota("c", "/r", now); quota != 0 {
		t.Fatalf("expected remaining quota 0, got %d", quota)
	}

	// Refill never exceeds capacity
	if quota := policy.GetRemainingQuota("c", "/r", now.Add(10*time.Second)); quota != 5 {
		t.Fatalf("expected quota capped at 5, got %d", quota)
	}
}

func TestRateLimitingPolicyWhenDisabled(t *testing.T) {
	policy := NewRateLimitingPolicy(false, 1)
	now := time.Now()

	for i := 0; i < 10; i++ {
		if !policy.AllowRequest("c", "/r", now) {
			t.Fatalf("expected request %d to be allowed when disabled", i)
		}
	}
	if quota := policy.GetRemainingQuota("c", "/r", now); quota != -1 {
		t.Fatalf("expected quota -1 (unlimited) when disabled, got %d", quota)
	}
}
