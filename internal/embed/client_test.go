package embed

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"
)

// stubProvider fails for the first len(errs) non-nil entries, then returns vec.
type stubProvider struct {
	mu    sync.Mutex
	calls int
	vec   []float32
	errs  []error
	model string
}

func (s *stubProvider) Embed(ctx context.Context, imageData []byte) ([]float32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.calls
	s.calls++
	if idx < len(s.errs) && s.errs[idx] != nil {
		return nil, s.errs[idx]
	}
	return s.vec, nil
}

func (s *stubProvider) ModelVersion() string {
	if s.model == "" {
		return "clip-test"
	}
	return s.model
}

func (s *stubProvider) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

var errProvider = errors.New("provider down")

func fastConfig() Config {
	return Config{Backoff: time.Millisecond}
}

func TestClientSuccessFirstTry(t *testing.T) {
	primary := &stubProvider{vec: []float32{0.1, 0.2, 0.3}}
	client, err := NewClient(primary, nil, fastConfig())
	if err != nil {
		t.Fatalf("NewClient() unexpected error: %v", err)
	}

	vec, err := client.Embed(context.Background(), []byte("crop"))
	if err != nil {
		t.Fatalf("Embed() unexpected error: %v", err)
	}
	if len(vec) != 3 {
		t.Errorf("vector length = %d, want 3", len(vec))
	}
	if primary.callCount() != 1 {
		t.Errorf("primary called %d times, want 1", primary.callCount())
	}
}

func TestClientRetriesThenSucceeds(t *testing.T) {
	primary := &stubProvider{
		vec:  []float32{1, 0},
		errs: []error{errProvider, errProvider},
	}
	client, err := NewClient(primary, nil, fastConfig())
	if err != nil {
		t.Fatalf("NewClient() unexpected error: %v", err)
	}

	vec, err := client.Embed(context.Background(), []byte("crop"))
	if err != nil {
		t.Fatalf("Embed() unexpected error: %v", err)
	}
	if len(vec) != 2 {
		t.Errorf("vector length = %d, want 2", len(vec))
	}
	if primary.callCount() != 3 {
		t.Errorf("primary called %d times, want 3 (initial try + 2 retries)", primary.callCount())
	}
}

func TestClientExhaustionWrapsErrUnavailable(t *testing.T) {
	primary := &stubProvider{errs: []error{errProvider, errProvider, errProvider}}
	client, err := NewClient(primary, nil, fastConfig())
	if err != nil {
		t.Fatalf("NewClient() unexpected error: %v", err)
	}

	_, err = client.Embed(context.Background(), []byte("crop"))
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("error = %v, want ErrUnavailable", err)
	}
	if primary.callCount() != 3 {
		t.Errorf("primary called %d times, want 3", primary.callCount())
	}
}

func TestClientDimensionValidation(t *testing.T) {
	primary := &stubProvider{vec: []float32{1, 2, 3}}
	cfg := fastConfig()
	cfg.Dim = 4
	client, err := NewClient(primary, nil, cfg)
	if err != nil {
		t.Fatalf("NewClient() unexpected error: %v", err)
	}

	_, err = client.Embed(context.Background(), []byte("crop"))
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("error = %v, want ErrUnavailable", err)
	}
	if primary.callCount() != 3 {
		t.Errorf("dimension mismatch must be retried like a provider error, got %d calls", primary.callCount())
	}
}

func TestClientRejectsNonFiniteVectors(t *testing.T) {
	primary := &stubProvider{vec: []float32{1, float32(math.NaN()), 3}}
	client, err := NewClient(primary, nil, fastConfig())
	if err != nil {
		t.Fatalf("NewClient() unexpected error: %v", err)
	}

	if _, err := client.Embed(context.Background(), []byte("crop")); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("error = %v, want ErrUnavailable for NaN vector", err)
	}
}

func TestClientFallback(t *testing.T) {
	primary := &stubProvider{errs: []error{errProvider, errProvider, errProvider}}
	fallback := &stubProvider{vec: []float32{0.5, 0.5}}
	client, err := NewClient(primary, fallback, fastConfig())
	if err != nil {
		t.Fatalf("NewClient() unexpected error: %v", err)
	}

	vec, err := client.Embed(context.Background(), []byte("crop"))
	if err != nil {
		t.Fatalf("Embed() unexpected error: %v", err)
	}
	if len(vec) != 2 {
		t.Errorf("vector length = %d, want 2", len(vec))
	}
	if primary.callCount() != 3 {
		t.Errorf("primary must be exhausted before the fallback runs, got %d calls", primary.callCount())
	}
	if fallback.callCount() != 1 {
		t.Errorf("fallback called %d times, want 1", fallback.callCount())
	}
}

func TestClientFallbackModelMustMatch(t *testing.T) {
	primary := &stubProvider{model: "clip-vit-b32"}
	fallback := &stubProvider{model: "clip-vit-l14"}

	if _, err := NewClient(primary, fallback, fastConfig()); err == nil {
		t.Error("NewClient() must reject a fallback with a different model version")
	}
}

func TestClientBreakerShortCircuitsRetries(t *testing.T) {
	primary := &stubProvider{errs: []error{errProvider, errProvider, errProvider}}
	fallback := &stubProvider{vec: []float32{1}}

	cfg := fastConfig()
	cfg.CloudPrimary = true
	cfg.Breaker.FailureThreshold = 1
	client, err := NewClient(primary, fallback, cfg)
	if err != nil {
		t.Fatalf("NewClient() unexpected error: %v", err)
	}

	vec, err := client.Embed(context.Background(), []byte("crop"))
	if err != nil {
		t.Fatalf("Embed() unexpected error: %v", err)
	}
	if len(vec) != 1 {
		t.Errorf("vector length = %d, want 1", len(vec))
	}
	if primary.callCount() != 1 {
		t.Errorf("open breaker must stop further primary attempts, got %d calls", primary.callCount())
	}

	status := client.BreakerStatus()
	if !status.Enabled || status.State != "open" {
		t.Errorf("breaker status = %+v, want open and enabled", status)
	}
}

func TestClientContextExpiresDuringBackoff(t *testing.T) {
	primary := &stubProvider{errs: []error{errProvider, errProvider, errProvider}}
	client, err := NewClient(primary, nil, Config{Backoff: 200 * time.Millisecond})
	if err != nil {
		t.Fatalf("NewClient() unexpected error: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err = client.Embed(ctx, []byte("crop"))
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("error = %v, want context.DeadlineExceeded", err)
	}
}

func TestClientModelVersion(t *testing.T) {
	primary := &stubProvider{model: "clip-vit-b32"}
	client, err := NewClient(primary, nil, fastConfig())
	if err != nil {
		t.Fatalf("NewClient() unexpected error: %v", err)
	}
	if got := client.ModelVersion(); got != "clip-vit-b32" {
		t.Errorf("ModelVersion() = %q, want clip-vit-b32", got)
	}
}
