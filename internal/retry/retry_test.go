package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestDo_SucceedsFirstAttempt(t *testing.T) {
	p := Policy{MaxAttempts: 3}

	calls := 0
	err := p.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return nil
	})

	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestDo_RetriesUntilSuccess(t *testing.T) {
	p := Policy{MaxAttempts: 3, Delay: time.Millisecond}

	calls := 0
	err := p.Do(context.Background(), func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})

	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestDo_ExhaustsBudget(t *testing.T) {
	p := Policy{MaxAttempts: 3, Delay: time.Millisecond}

	boom := errors.New("boom")
	calls := 0
	err := p.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return boom
	})

	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
	if !errors.Is(err, boom) {
		t.Errorf("err = %v, want wrapped boom", err)
	}
}

func TestDo_PermanentStopsImmediately(t *testing.T) {
	p := Policy{MaxAttempts: 5, Delay: time.Millisecond}

	cancelled := errors.New("user cancelled")
	calls := 0
	err := p.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return Permanent(cancelled)
	})

	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
	// The permanent wrapper is stripped before returning.
	if err != cancelled {
		t.Errorf("err = %v, want the underlying error", err)
	}
}

func TestDo_PerAttemptTimeout(t *testing.T) {
	p := Policy{MaxAttempts: 2, Timeout: 10 * time.Millisecond, Delay: time.Millisecond}

	var deadlines int
	err := p.Do(context.Background(), func(ctx context.Context) error {
		<-ctx.Done()
		deadlines++
		return ctx.Err()
	})

	if deadlines != 2 {
		t.Errorf("timed-out attempts = %d, want 2", deadlines)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v, want deadline exceeded", err)
	}
}

func TestDo_ParentCancellation(t *testing.T) {
	p := Policy{MaxAttempts: 10, Delay: 50 * time.Millisecond}

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	err := p.Do(ctx, func(ctx context.Context) error {
		calls++
		return errors.New("transient")
	})

	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
	if calls > 2 {
		t.Errorf("calls = %d, cancellation should stop the loop", calls)
	}
}

func TestDo_BackoffCapped(t *testing.T) {
	p := Policy{
		MaxAttempts: 4,
		Delay:       time.Millisecond,
		MaxDelay:    2 * time.Millisecond,
		BackoffMult: 10,
	}

	start := time.Now()
	_ = p.Do(context.Background(), func(ctx context.Context) error {
		return errors.New("transient")
	})

	// Without the cap the delays would be 1ms + 10ms + 100ms.
	if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
		t.Errorf("elapsed = %v, cap not applied", elapsed)
	}
}

func TestPermanent_NilPassthrough(t *testing.T) {
	if Permanent(nil) != nil {
		t.Error("Permanent(nil) != nil")
	}
}
