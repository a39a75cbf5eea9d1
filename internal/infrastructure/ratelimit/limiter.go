package ratelimit

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// Limiters hands out one token-bucket limiter per provider key
type Limiters struct {
	limiters map[string]*rate.Limiter
	mu       sync.RWMutex

	limit rate.Limit
	burst int
}

// NewLimiters creates a registry where every provider gets rps requests per second.
// A non-positive rps disables limiting.
func NewLimiters(rps float64, burst int) *Limiters {
	limit := rate.Limit(rps)
	if rps <= 0 {
		limit = rate.Inf
	}
	if burst < 1 {
		burst = 1
	}
	return &Limiters{
		limiters: make(map[string]*rate.Limiter),
		limit:    limit,
		burst:    burst,
	}
}

// For returns the limiter of a provider, creating it on first use
func (l *Limiters) For(key string) *rate.Limiter {
	l.mu.RLock()
	limiter, exists := l.limiters[key]
	l.mu.RUnlock()

	if exists {
		return limiter
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	// Double-check in case another goroutine created it
	if limiter, exists := l.limiters[key]; exists {
		return limiter
	}

	limiter = rate.NewLimiter(l.limit, l.burst)
	l.limiters[key] = limiter
	return limiter
}

// Wait blocks until the provider may make another call or ctx is done
func (l *Limiters) Wait(ctx context.Context, key string) error {
	if l == nil {
		return nil
	}
	return l.For(key).Wait(ctx)
}
