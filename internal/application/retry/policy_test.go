package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestPolicyDelayDoubles(t *testing.T) {
	p := Policy{MaxAttempts: 5, BaseDelay: 5 * time.Second, Factor: 2}

	want := []time.Duration{5 * time.Second, 10 * time.Second, 20 * time.Second, 40 * time.Second}
	for i, w := range want {
		if got := p.Delay(i + 1); got != w {
			t.Errorf("attempt %d: expected %s, got %s", i+1, w, got)
		}
	}
}

func TestPolicyDelayCapped(t *testing.T) {
	p := Policy{BaseDelay: time.Second, Factor: 2, MaxDelay: 3 * time.Second}
	if got := p.Delay(5); got != 3*time.Second {
		t.Errorf("expected cap 3s, got %s", got)
	}
}

func TestPolicyDoStopsAfterMaxAttempts(t *testing.T) {
	p := Policy{MaxAttempts: 3, BaseDelay: time.Millisecond, Factor: 2}
	boom := errors.New("boom")

	calls := 0
	err := p.Do(context.Background(), nil, func(ctx context.Context, attempt int) error {
		calls++
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
}

func TestPolicyDoSkipsNonRetryable(t *testing.T) {
	p := Policy{MaxAttempts: 5, BaseDelay: time.Millisecond}
	fatal := errors.New("fatal")

	calls := 0
	err := p.Do(context.Background(), func(err error) bool { return !errors.Is(err, fatal) },
		func(ctx context.Context, attempt int) error {
			calls++
			return fatal
		})
	if !errors.Is(err, fatal) {
		t.Fatalf("expected fatal, got %v", err)
	}
	if calls != 1 {
		t.Errorf("expected a single call, got %d", calls)
	}
}

func TestPolicyDoSucceedsEventually(t *testing.T) {
	p := Policy{MaxAttempts: 5, BaseDelay: time.Millisecond, Factor: 2}

	err := p.Do(context.Background(), nil, func(ctx context.Context, attempt int) error {
		if attempt < 3 {
			return errors.New("not yet")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
}

func TestPolicyDoHonoursCancel(t *testing.T) {
	p := Policy{MaxAttempts: 5, BaseDelay: time.Hour}
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- p.Do(ctx, nil, func(ctx context.Context, attempt int) error {
			return errors.New("fail")
		})
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Do did not return after cancel")
	}
}
