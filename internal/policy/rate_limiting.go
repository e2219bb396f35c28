package policy

import (
	"sync"
	"time"
)

// rateLimitingPolicy implements RateLimitingPolicy using a token bucket per client and route
type rateLimitingPolicy struct {
	enabled   bool
	perSecond int
	buckets   map[string]*tokenBucket
	mu        sync.RWMutex
}

// tokenBucket holds up to capacity tokens and regains refillRate per second
type tokenBucket struct {
	capacity   int
	tokens     int
	refillRate int
	lastRefill time.Time
	mu         sync.Mutex
}

// NewRateLimitingPolicy creates a limit of perSecond requests per client and route.
func NewRateLimitingPolicy(enabled bool, perSecond int) RateLimitingPolicy {
	return &rateLimitingPolicy{
		enabled:   enabled && perSecond > 0,
		perSecond: perSecond,
		buckets:   make(map[string]*tokenBucket),
	}
}

func (p *rateLimitingPolicy) Enabled() bool {
	return p.enabled
}

func (p *rateLimitingPolicy) Name() string {
	return "rate_limiting"
}

func (p *rateLimitingPolicy) AllowRequest(client, route string, now time.Time) bool {
	if !p.enabled {
		return true
	}

	bucket := p.bucket(client+" "+route, now)
	bucket.mu.Lock()
	defer bucket.mu.Unlock()

	bucket.refill(now)
	if bucket.tokens > 0 {
		bucket.tokens--
		return true
	}
	return false
}

func (p *rateLimitingPolicy) GetRemainingQuota(client, route string, now time.Time) int {
	if !p.enabled {
		return -1
	}

	key := client + " " + route
	p.mu.RLock()
	bucket, exists := p.buckets[key]
	p.mu.RUnlock()
	if !exists {
		return p.perSecond
	}

	bucket.mu.Lock()
	defer bucket.mu.Unlock()
	bucket.refill(now)
	return bucket.tokens
}

func (p *rateLimitingPolicy) bucket(key string, now time.Time) *tokenBucket {
	p.mu.RLock()
	bucket, exists := p.buckets[key]
	p.mu.RUnlock()
	if exists {
		return bucket
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	// Double-check after acquiring write lock
	if bucket, exists = p.buckets[key]; !exists {
		bucket = &tokenBucket{
			capacity:   p.perSecond,
			tokens:     p.perSecond,
			refillRate: p.perSecond,
			lastRefill: now,
		}
		p.buckets[key] = bucket
	}
	return bucket
}

// refill adds the whole tokens earned since lastRefill. Caller holds b.mu.
func (b *tokenBucket) refill(now time.Time) {
	tokensToAdd := int(now.Sub(b.lastRefill).Seconds() * float64(b.refillRate))
	if tokensToAdd > 0 {
		b.tokens = min(b.tokens+tokensToAdd, b.capacity)
		b.lastRefill = now
	}
}
