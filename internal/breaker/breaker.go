// Package breaker builds the circuit breakers that guard cloud dependencies.
// A breaker opens after a run of consecutive failures, stays open for a
// cooldown period, then admits a single probe; the probe's outcome decides
// between closing and re-opening.
package breaker

import (
	"log"
	"time"

	"github.com/sony/gobreaker/v2"
)

const (
	// DefaultFailureThreshold is the number of consecutive failures that
	// opens a breaker.
	DefaultFailureThreshold = 3

	// DefaultCooldown is how long an open breaker rejects calls before
	// admitting a probe.
	DefaultCooldown = 60 * time.Second
)

// Config holds breaker tuning. Zero fields fall back to defaults.
type Config struct {
	FailureThreshold uint32
	Cooldown         time.Duration
}

// Settings translates a Config into gobreaker settings. State transitions are
// logged so operators can see cloud degradation in the serve log.
func Settings(name string, cfg Config) gobreaker.Settings {
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = DefaultFailureThreshold
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = DefaultCooldown
	}
	return gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     cfg.Cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Printf("circuit breaker %q: %s -> %s", name, from, to)
		},
	}
}

// New builds a typed circuit breaker for one cloud dependency.
func New[T any](name string, cfg Config) *gobreaker.CircuitBreaker[T] {
	return gobreaker.NewCircuitBreaker[T](Settings(name, cfg))
}
