package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/sony/gobreaker"

	"github.com/petal-labs/showroom/core"
)

// ErrCircuitOpen is returned while the breaker rejects requests.
var ErrCircuitOpen = errors.New("circuit breaker open: too many failures")

// CircuitBreakerConfig configures circuit breaker behavior.
type CircuitBreakerConfig struct {
	Name             string
	FailureThreshold int           // Consecutive failures before opening.
	SuccessThreshold int           // Successes in half-open to close.
	OpenDuration     time.Duration // How long to stay open.

	// OnStateChange is called on every transition, with states "closed",
	// "open" and "half-open".
	OnStateChange func(name, from, to string)
}

// DefaultCircuitBreakerConfig returns sensible circuit breaker defaults.
func DefaultCircuitBreakerConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{
		Name:             "showroom",
		FailureThreshold: 5,
		SuccessThreshold: 2,
		OpenDuration:     30 * time.Second,
	}
}

// errServerStatus marks a 5xx response as a breaker failure without losing
// the response itself.
var errServerStatus = errors.New("server error status")

// WithCircuitBreaker stops sending requests after FailureThreshold
// consecutive failures, where a failure is a connection error or a 5xx
// response. Responses still reach the caller unchanged; while open, requests
// fail with ErrCircuitOpen, which the client classifies as a transport error.
func WithCircuitBreaker(cfg CircuitBreakerConfig) core.Middleware {
	def := DefaultCircuitBreakerConfig()
	if cfg.Name == "" {
		cfg.Name = def.Name
	}
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = def.FailureThreshold
	}
	if cfg.SuccessThreshold <= 0 {
		cfg.SuccessThreshold = def.SuccessThreshold
	}
	if cfg.OpenDuration <= 0 {
		cfg.OpenDuration = def.OpenDuration
	}

	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: uint32(cfg.SuccessThreshold),
		Timeout:     cfg.OpenDuration,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= uint32(cfg.FailureThreshold)
		},
	}
	if cfg.OnStateChange != nil {
		settings.OnStateChange = func(name string, from, to gobreaker.State) {
			cfg.OnStateChange(name, from.String(), to.String())
		}
	}
	cb := gobreaker.NewCircuitBreaker(settings)

	return func(next core.RoundTripFunc) core.RoundTripFunc {
		return func(req *http.Request) (*http.Response, error) {
			var resp *http.Response
			_, err := cb.Execute(func() (any, error) {
				var err error
				resp, err = next(req)
				if err != nil {
					return nil, err
				}
				if resp.StatusCode >= 500 {
					return nil, errServerStatus
				}
				return nil, nil
			})
			switch {
			case errors.Is(err, errServerStatus):
				return resp, nil
			case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
				return nil, fmt.Errorf("%w (%s)", ErrCircuitOpen, cfg.Name)
			case err != nil:
				return nil, err
			}
			return resp, nil
		}
	}
}
