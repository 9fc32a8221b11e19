package breaker

import (
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"
)

var errBoom = errors.New("boom")

func TestOpensAfterConsecutiveFailures(t *testing.T) {
	cb := New[int]("test", Config{})

	calls := 0
	fail := func() (int, error) {
		calls++
		return 0, errBoom
	}

	for i := range 3 {
		if _, err := cb.Execute(fail); !errors.Is(err, errBoom) {
			t.Fatalf("call %d: expected upstream error, got %v", i, err)
		}
	}
	if cb.State() != gobreaker.StateOpen {
		t.Fatalf("state = %v, want open after 3 consecutive failures", cb.State())
	}

	_, err := cb.Execute(fail)
	if !errors.Is(err, gobreaker.ErrOpenState) {
		t.Fatalf("expected ErrOpenState while open, got %v", err)
	}
	if calls != 3 {
		t.Errorf("open breaker must not invoke the call, got %d invocations", calls)
	}
}

func TestSuccessResetsConsecutiveCount(t *testing.T) {
	cb := New[int]("test", Config{})

	fail := func() (int, error) { return 0, errBoom }
	ok := func() (int, error) { return 1, nil }

	cb.Execute(fail)
	cb.Execute(fail)
	cb.Execute(ok)
	cb.Execute(fail)

	if cb.State() != gobreaker.StateClosed {
		t.Errorf("state = %v, want closed: success must reset the failure run", cb.State())
	}
	if got := cb.Counts().ConsecutiveFailures; got != 1 {
		t.Errorf("consecutive failures = %d, want 1", got)
	}
}

func TestHalfOpenAdmitsSingleProbe(t *testing.T) {
	cb := New[int]("test", Config{Cooldown: 20 * time.Millisecond})

	fail := func() (int, error) { return 0, errBoom }
	for range 3 {
		cb.Execute(fail)
	}
	if cb.State() != gobreaker.StateOpen {
		t.Fatalf("state = %v, want open", cb.State())
	}

	time.Sleep(40 * time.Millisecond)

	entered := make(chan struct{})
	release := make(chan struct{})
	probeDone := make(chan error, 1)
	go func() {
		_, err := cb.Execute(func() (int, error) {
			close(entered)
			<-release
			return 1, nil
		})
		probeDone <- err
	}()

	<-entered
	_, err := cb.Execute(func() (int, error) { return 2, nil })
	if !errors.Is(err, gobreaker.ErrTooManyRequests) {
		t.Errorf("second call during half-open probe: got %v, want ErrTooManyRequests", err)
	}

	close(release)
	if err := <-probeDone; err != nil {
		t.Fatalf("probe failed: %v", err)
	}
	if cb.State() != gobreaker.StateClosed {
		t.Errorf("state = %v, want closed after successful probe", cb.State())
	}
}

func TestFailedProbeReopens(t *testing.T) {
	cb := New[int]("test", Config{Cooldown: 20 * time.Millisecond})

	fail := func() (int, error) { return 0, errBoom }
	for range 3 {
		cb.Execute(fail)
	}

	time.Sleep(40 * time.Millisecond)

	if _, err := cb.Execute(fail); !errors.Is(err, errBoom) {
		t.Fatalf("probe should reach the call, got %v", err)
	}
	if cb.State() != gobreaker.StateOpen {
		t.Errorf("state = %v, want open again after failed probe", cb.State())
	}
}

func TestConfigThresholdOverride(t *testing.T) {
	cb := New[int]("test", Config{FailureThreshold: 1})

	cb.Execute(func() (int, error) { return 0, errBoom })
	if cb.State() != gobreaker.StateOpen {
		t.Errorf("state = %v, want open after a single failure with threshold 1", cb.State())
	}
}
