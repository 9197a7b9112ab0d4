package retry

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// Policy is an exponential backoff retry configuration.
type Policy struct {
	Name        string        // used in logs
	MaxAttempts int           // total attempts, including the first
	BaseDelay   time.Duration // delay after the first failed attempt
	Factor      float64       // delay growth per attempt
	MaxDelay    time.Duration // 0 means no cap
}

// Default mirrors the session refresh policy: 5 attempts, 5s doubling.
var Default = Policy{
	Name:        "default",
	MaxAttempts: 5,
	BaseDelay:   5 * time.Second,
	Factor:      2,
}

// Delay returns how long to wait after the given failed attempt (1-based).
func (p Policy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	factor := p.Factor
	if factor < 1 {
		factor = 1
	}
	d := float64(p.BaseDelay)
	for i := 1; i < attempt; i++ {
		d *= factor
		if p.MaxDelay > 0 && d >= float64(p.MaxDelay) {
			return p.MaxDelay
		}
	}
	if p.MaxDelay > 0 && time.Duration(d) > p.MaxDelay {
		return p.MaxDelay
	}
	return time.Duration(d)
}

// Do runs fn until it succeeds, returns an error retryable rejects, or the
// attempts are used up. The last error is returned. retryable may be nil,
// in which case every error is retried. Waiting between attempts stops
// early when ctx is done.
func (p Policy) Do(ctx context.Context, retryable func(error) bool, fn func(ctx context.Context, attempt int) error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = fn(ctx, attempt); err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if retryable != nil && !retryable(err) {
			return err
		}
		if attempt == attempts {
			break
		}

		delay := p.Delay(attempt)
		log.Warn().
			Str("policy", p.Name).
			Int("attempt", attempt).
			Int64("delay_ms", delay.Milliseconds()).
			Err(err).
			Msg("attempt failed, retrying")
		if serr := Sleep(ctx, delay); serr != nil {
			return serr
		}
	}
	return err
}

// Sleep waits for d or until ctx is done. A non-positive d returns at once.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
