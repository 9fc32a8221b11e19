package embed

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/kozaktomas/derm-match/internal/breaker"
)

const (
	defaultRetries = 2
	defaultBackoff = 200 * time.Millisecond
)

// Config holds embedding client tuning. Zero fields fall back to defaults.
type Config struct {
	Retries int           // retry attempts after the first try
	Backoff time.Duration // initial backoff, doubled after each retry
	Dim     int           // expected vector dimension, 0 disables the check

	// CloudPrimary marks the primary provider as a cloud dependency, which
	// puts a circuit breaker in front of it.
	CloudPrimary bool
	Breaker      breaker.Config
}

// Client is the embedding component of the pipeline: a primary provider with
// retries, and an optional fallback tried only after the primary chain is
// exhausted. All-or-nothing: it returns a validated full vector or an error.
type Client struct {
	primary  Provider
	fallback Provider
	cfg      Config
	cb       *gobreaker.CircuitBreaker[[]float32]
}

// NewClient builds the client. A fallback must serve the same model version
// as the primary, otherwise identical inputs could yield different vectors
// and poison the cache.
func NewClient(primary, fallback Provider, cfg Config) (*Client, error) {
	if primary == nil {
		return nil, errors.New("embedding client needs a primary provider")
	}
	if fallback != nil && fallback.ModelVersion() != primary.ModelVersion() {
		return nil, fmt.Errorf("fallback model %q does not match primary model %q",
			fallback.ModelVersion(), primary.ModelVersion())
	}
	if cfg.Retries <= 0 {
		cfg.Retries = defaultRetries
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = defaultBackoff
	}

	c := &Client{primary: primary, fallback: fallback, cfg: cfg}
	if cfg.CloudPrimary {
		c.cb = breaker.New[[]float32]("cloud-embedder", cfg.Breaker)
	}
	return c, nil
}

// ModelVersion identifies the embedding model, used in cache keys.
func (c *Client) ModelVersion() string {
	return c.primary.ModelVersion()
}

// BreakerStatus describes the primary breaker for observability. Enabled is
// false when the primary is not a cloud provider and no breaker guards it.
type BreakerStatus struct {
	Enabled bool             `json:"enabled"`
	State   string           `json:"state,omitempty"`
	Counts  gobreaker.Counts `json:"counts"`
}

// BreakerStatus reports the primary breaker state for observability.
func (c *Client) BreakerStatus() BreakerStatus {
	if c.cb == nil {
		return BreakerStatus{}
	}
	return BreakerStatus{
		Enabled: true,
		State:   c.cb.State().String(),
		Counts:  c.cb.Counts(),
	}
}

// Embed runs the provider chain: primary with retries, then the fallback
// with retries. After exhaustion the error wraps ErrUnavailable.
func (c *Client) Embed(ctx context.Context, imageData []byte) ([]float32, error) {
	vec, err := c.withRetry(ctx, func(ctx context.Context) ([]float32, error) {
		return c.callPrimary(ctx, imageData)
	})
	if err == nil {
		return vec, nil
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	if c.fallback != nil {
		log.Printf("primary embedder failed, trying fallback: %v", err)
		vec, ferr := c.withRetry(ctx, func(ctx context.Context) ([]float32, error) {
			return c.embedOnce(ctx, c.fallback, imageData)
		})
		if ferr == nil {
			return vec, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		err = ferr
	}

	return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
}

func (c *Client) callPrimary(ctx context.Context, imageData []byte) ([]float32, error) {
	if c.cb == nil {
		return c.embedOnce(ctx, c.primary, imageData)
	}
	return c.cb.Execute(func() ([]float32, error) {
		return c.embedOnce(ctx, c.primary, imageData)
	})
}

func (c *Client) embedOnce(ctx context.Context, p Provider, imageData []byte) ([]float32, error) {
	vec, err := p.Embed(ctx, imageData)
	if err != nil {
		return nil, err
	}
	if err := validateVector(vec, c.cfg.Dim); err != nil {
		return nil, err
	}
	return vec, nil
}

func (c *Client) withRetry(ctx context.Context, call func(context.Context) ([]float32, error)) ([]float32, error) {
	backoff := c.cfg.Backoff
	var lastErr error
	for attempt := 0; attempt <= c.cfg.Retries; attempt++ {
		if attempt > 0 {
			if err := sleepCtx(ctx, backoff); err != nil {
				return nil, err
			}
			backoff *= 2
		}
		vec, err := call(ctx)
		if err == nil {
			return vec, nil
		}
		lastErr = err
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			// Retrying against an open breaker cannot succeed.
			break
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}
	return nil, lastErr
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
