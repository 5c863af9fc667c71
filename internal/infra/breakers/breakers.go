package breakers

import (
	"time"

	cb "github.com/sony/gobreaker"
)

// Breaker wraps a circuit breaker around an external provider call so a
// flapping upstream degrades its own dashboard section instead of stalling
// every render behind repeated timeouts.
type Breaker struct {
	cb *cb.CircuitBreaker
}

// New creates a breaker that opens after 3 consecutive failures, or a >10%
// failure rate once at least 10 requests have been seen, and probes again
// after 30 seconds.
func New(name string) *Breaker {
	st := cb.Settings{Name: name}
	st.Interval = 60 * time.Second
	st.Timeout = 30 * time.Second
	st.ReadyToTrip = func(counts cb.Counts) bool {
		if counts.ConsecutiveFailures >= 3 {
			return true
		}
		if counts.Requests < 10 {
			return false
		}
		return float64(counts.TotalFailures)/float64(counts.Requests) > 0.10
	}
	return &Breaker{cb: cb.NewCircuitBreaker(st)}
}

// Execute runs fn under the breaker.
func (b *Breaker) Execute(fn func() (any, error)) (any, error) {
	return b.cb.Execute(fn)
}

// State reports the breaker state for health endpoints.
func (b *Breaker) State() string {
	return b.cb.State().String()
}
