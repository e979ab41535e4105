package resolver

import (
	"context"
	"strings"
	"sync"

	"golang.org/x/time/rate"
)

// RateLimiterMap paces requests per provider. Limiters are created lazily at
// the default rate unless one was set explicitly.
type RateLimiterMap struct {
	mu       sync.Mutex
	limit    rate.Limit
	burst    int
	limiters map[string]*rate.Limiter
}

// NewRateLimiterMap paces every provider at rps requests per second.
// A non-positive rps disables pacing.
func NewRateLimiterMap(rps float64, burst int) *RateLimiterMap {
	if burst <= 0 {
		burst = 1
	}
	limit := rate.Inf
	if rps > 0 {
		limit = rate.Limit(rps)
	}
	return &RateLimiterMap{
		limit:    limit,
		burst:    burst,
		limiters: make(map[string]*rate.Limiter),
	}
}

// Set overrides the rate for one provider.
func (m *RateLimiterMap) Set(name string, rps float64, burst int) {
	if burst <= 0 {
		burst = 1
	}
	limit := rate.Inf
	if rps > 0 {
		limit = rate.Limit(rps)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.limiters[strings.ToLower(strings.TrimSpace(name))] = rate.NewLimiter(limit, burst)
}

// Wait blocks until the provider may issue a request or ctx is done.
func (m *RateLimiterMap) Wait(ctx context.Context, name string) error {
	if m == nil {
		return nil
	}
	return m.limiter(name).Wait(ctx)
}

func (m *RateLimiterMap) limiter(name string) *rate.Limiter {
	key := strings.ToLower(strings.TrimSpace(name))
	m.mu.Lock()
	defer m.mu.Unlock()
	limiter, ok := m.limiters[key]
	if !ok {
		limiter = rate.NewLimiter(m.limit, m.burst)
		m.limiters[key] = limiter
	}
	return limiter
}
