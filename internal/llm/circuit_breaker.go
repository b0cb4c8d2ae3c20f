package llm

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker"
)

// ErrCircuitOpen is returned while the breaker is shedding calls. Callers
// treat it like any other transient collaborator failure and degrade.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// Defaults applied when NewCircuitBreaker is given zero values.
const (
	defaultBreakerTrip     = 3
	defaultBreakerCooldown = 30 * time.Second
)

// CircuitBreaker sheds calls to a flapping collaborator (embedding endpoint,
// summarizer, remote graph tier) instead of letting every store and
// retrieval stall on it. After trip consecutive failures it rejects calls
// outright; after the cooldown it lets a single probe through, and one
// probe success closes it again.
type CircuitBreaker struct {
	cb *gobreaker.CircuitBreaker
}

// NewCircuitBreaker builds a breaker tripping after trip consecutive
// failures and probing again after cooldown. Zero values select the
// defaults (3 failures, 30s).
func NewCircuitBreaker(trip uint32, cooldown time.Duration) *CircuitBreaker {
	if trip == 0 {
		trip = defaultBreakerTrip
	}
	if cooldown == 0 {
		cooldown = defaultBreakerCooldown
	}
	return &CircuitBreaker{
		cb: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "collaborator",
			MaxRequests: 1, // one probe while half-open
			Timeout:     cooldown,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= trip
			},
		}),
	}
}

// Do runs fn through the breaker. An open breaker returns ErrCircuitOpen
// without invoking fn; a cancelled context fails fast without counting
// against the breaker.
func (b *CircuitBreaker) Do(ctx context.Context, fn func() (interface{}, error)) (interface{}, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	result, err := b.cb.Execute(func() (interface{}, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return fn()
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, ErrCircuitOpen
	}
	return result, err
}
