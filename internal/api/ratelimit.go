package api

import (
	"golang.org/x/time/rate"
)

// RateLimiter bounds the request rate of the whole server. Alertmanager
// retries aggressively during an outage; this keeps a burst of redeliveries
// from hammering the control plane.
type RateLimiter struct {
	limiter *rate.Limiter
	limit   float64
	burst   int
}

func NewRateLimiter(requestsPerSecond float64, burst int) *RateLimiter {
	return &RateLimiter{
		limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), burst),
		limit:   requestsPerSecond,
		burst:   burst,
	}
}

func (rl *RateLimiter) Allow() bool {
	return rl.limiter.Allow()
}

// Remaining reports the tokens currently available, rounded down
func (rl *RateLimiter) Remaining() int {
	tokens := int(rl.limiter.Tokens())
	if tokens < 0 {
		return 0
	}
	return tokens
}
