// Package retry runs an operation until it succeeds, a classifier declares the failure permanent,
// or the attempt budget runs out.
package retry

import (
	"context"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
)

// Action tells Do how to treat a failed attempt.
type Action int

const (
	Stop  Action = iota // give up now
	Retry               // wait the current backoff
	After               // wait at least RateLimitBackoff
)

// Policy bounds a retry loop. Backoff doubles after every wait.
type Policy struct {
	MaxAttempts      int
	InitialBackoff   time.Duration
	RateLimitBackoff time.Duration
	MaxBackoff       time.Duration // zero means uncapped
	Clock            clockwork.Clock
	OnRetry          func(attempt int, err error, backoff time.Duration)
}

func (p Policy) validate() error {
	if p.MaxAttempts < 1 {
		return fmt.Errorf("invalid retry policy: MaxAttempts must be >= 1, got %d", p.MaxAttempts)
	}
	return nil
}

func (p Policy) clock() clockwork.Clock {
	if p.Clock != nil {
		return p.Clock
	}
	return clockwork.NewRealClock()
}

// delay returns how long to sleep before the next attempt.
func (p Policy) delay(backoff time.Duration, action Action) time.Duration {
	d := backoff
	if action == After {
		d = max(d, p.RateLimitBackoff)
	}
	if p.MaxBackoff > 0 {
		d = min(d, p.MaxBackoff)
	}
	return d
}

// grow doubles backoff, saturating at MaxBackoff so long-running loops never overflow.
func (p Policy) grow(backoff time.Duration) time.Duration {
	if p.MaxBackoff > 0 && backoff >= p.MaxBackoff/2 {
		return p.MaxBackoff
	}
	return backoff * 2
}

type Classify func(err error) Action

// PermanentError marks a failure the classifier refused to retry.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }

// ExhaustedError carries the last failure once every attempt was spent.
type ExhaustedError struct {
	Attempts int
	Err      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("gave up after %d attempts: %v", e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() error { return e.Err }

func Do[T any](ctx context.Context, p Policy, classify Classify, op func() (T, error)) (T, error) {
	var zero T
	if err := p.validate(); err != nil {
		return zero, err
	}
	clock := p.clock()

	backoff := p.InitialBackoff
	for attempt := 1; ; attempt++ {
		val, err := op()
		if err == nil {
			return val, nil
		}

		action := classify(err)
		switch {
		case action == Stop:
			return zero, &PermanentError{Err: err}
		case attempt >= p.MaxAttempts:
			return zero, &ExhaustedError{Attempts: attempt, Err: err}
		}

		wait := p.delay(backoff, action)
		if p.OnRetry != nil {
			p.OnRetry(attempt, err, wait)
		}

		timer := clock.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, fmt.Errorf("retry interrupted: %w", ctx.Err())
		case <-timer.Chan():
		}
		backoff = p.grow(backoff)
	}
}

// DoVoid is Do for operations without a result.
func DoVoid(ctx context.Context, p Policy, classify Classify, op func() error) error {
	_, err := Do(ctx, p, classify, func() (struct{}, error) { return struct{}{}, op() })
	return err
}
