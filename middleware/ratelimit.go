package middleware

import (
	"fmt"
	"net/http"

	"golang.org/x/time/rate"

	"github.com/petal-labs/showroom/core"
)

// WithRateLimit limits outgoing requests to perSecond with the given burst.
// Requests wait for a token; a context that ends first fails the request.
func WithRateLimit(perSecond float64, burst int) core.Middleware {
	if burst < 1 {
		burst = 1
	}
	return WithRateLimiter(rate.NewLimiter(rate.Limit(perSecond), burst))
}

// WithRateLimiter uses an existing limiter, which may be shared between
// clients.
func WithRateLimiter(limiter *rate.Limiter) core.Middleware {
	return func(next core.RoundTripFunc) core.RoundTripFunc {
		return func(req *http.Request) (*http.Response, error) {
			if err := limiter.Wait(req.Context()); err != nil {
				return nil, fmt.Errorf("rate limit: %w", err)
			}
			return next(req)
		}
	}
}
