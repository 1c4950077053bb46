package tracker

import (
	"errors"
	"sync"
	"testing"
	"time"
)

func TestNewBreaker_AppliesDefaults(t *testing.T) {
	t.Parallel()

	b := NewBreaker(BreakerConfig{})

	if b.failureThreshold <= 0 || b.successThreshold <= 0 || b.cooldown <= 0 {
		t.Error("zero config should pick up defaults")
	}
	if b.State() != BreakerClosed {
		t.Error("breaker should start closed")
	}
	if err := b.Allow(); err != nil {
		t.Errorf("Allow() on a fresh breaker: %v", err)
	}
}

func TestBreaker_OpensAfterThreshold(t *testing.T) {
	t.Parallel()

	b := NewBreaker(BreakerConfig{FailureThreshold: 3, SuccessThreshold: 2, Cooldown: time.Minute})

	b.Failure()
	b.Failure()
	if b.State() != BreakerClosed {
		t.Fatal("should stay closed below the threshold")
	}

	b.Failure()
	if b.State() != BreakerOpen {
		t.Fatal("should open at the threshold")
	}
	if err := b.Allow(); !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("Allow() while open = %v, want ErrCircuitOpen", err)
	}
}

func TestBreaker_SuccessResetsFailureCount(t *testing.T) {
	t.Parallel()

	b := NewBreaker(BreakerConfig{FailureThreshold: 3, SuccessThreshold: 2, Cooldown: time.Minute})

	b.Failure()
	b.Failure()
	b.Success()
	b.Failure()
	b.Failure()
	if b.State() != BreakerClosed {
		t.Error("success should reset the consecutive failure count")
	}

	b.Failure()
	if b.State() != BreakerOpen {
		t.Error("three consecutive failures should open the breaker")
	}
}

func TestBreaker_Recovery(t *testing.T) {
	t.Parallel()

	b := NewBreaker(BreakerConfig{FailureThreshold: 2, SuccessThreshold: 2, Cooldown: 20 * time.Millisecond})

	b.Failure()
	b.Failure()
	if b.State() != BreakerOpen {
		t.Fatal("breaker should be open")
	}

	time.Sleep(30 * time.Millisecond)

	if err := b.Allow(); err != nil {
		t.Fatalf("Allow() after cooldown: %v", err)
	}
	if b.State() != BreakerHalfOpen {
		t.Fatal("breaker should probe in half-open after cooldown")
	}

	b.Success()
	if b.State() != BreakerHalfOpen {
		t.Error("one success should not close the breaker yet")
	}
	b.Success()
	if b.State() != BreakerClosed {
		t.Error("reaching the success threshold should close the breaker")
	}
}

func TestBreaker_HalfOpenFailureReopens(t *testing.T) {
	t.Parallel()

	b := NewBreaker(BreakerConfig{FailureThreshold: 2, SuccessThreshold: 2, Cooldown: 20 * time.Millisecond})

	b.Failure()
	b.Failure()
	time.Sleep(30 * time.Millisecond)
	_ = b.Allow()

	if b.State() != BreakerHalfOpen {
		t.Fatal("breaker should be half-open")
	}

	b.Failure()
	if b.State() != BreakerOpen {
		t.Error("a failed probe should reopen the breaker immediately")
	}
}

func TestBreaker_Reset(t *testing.T) {
	t.Parallel()

	b := NewBreaker(BreakerConfig{FailureThreshold: 1, SuccessThreshold: 1, Cooldown: time.Minute})

	b.Failure()
	if b.State() != BreakerOpen {
		t.Fatal("breaker should be open")
	}

	b.Reset()
	if b.State() != BreakerClosed {
		t.Error("reset should close the breaker")
	}
	if err := b.Allow(); err != nil {
		t.Errorf("Allow() after reset: %v", err)
	}
}

func TestBreakerState_String(t *testing.T) {
	t.Parallel()

	tests := []struct {
		state BreakerState
		want  string
	}{
		{state: BreakerClosed, want: "closed"},
		{state: BreakerOpen, want: "open"},
		{state: BreakerHalfOpen, want: "half-open"},
		{state: BreakerState(42), want: "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			t.Parallel()

			if got := tt.state.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestBreaker_ConcurrentAccess(t *testing.T) {
	t.Parallel()

	// High threshold so the breaker never opens mid-test.
	b := NewBreaker(BreakerConfig{FailureThreshold: 10000, SuccessThreshold: 2, Cooldown: time.Minute})

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				switch id % 4 {
				case 0:
					_ = b.Allow()
				case 1:
					b.Success()
				case 2:
					b.Failure()
				case 3:
					_ = b.State()
				}
			}
		}(i)
	}
	wg.Wait()
}
