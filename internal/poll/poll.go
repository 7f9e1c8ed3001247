// Package poll repeats a fetch at a fixed interval until a classifier
// declares a terminal outcome or the attempt budget runs out.
package poll

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// Verdict is a classifier's decision about one fetched result.
type Verdict int

const (
	// Continue keeps polling.
	Continue Verdict = iota
	// Succeed stops with success.
	Succeed
	// Fail stops with ErrRejected.
	Fail
)

var (
	// ErrExhausted means every attempt returned Continue.
	ErrExhausted = errors.New("poll attempts exhausted")
	// ErrRejected means the classifier returned Fail.
	ErrRejected = errors.New("poll rejected")

	errContinue = errors.New("continue polling")
)

// Config bounds a poll.
type Config struct {
	Interval    time.Duration
	MaxAttempts int
}

// ForTimeout derives a Config whose attempts fit in timeout, at least one.
func ForTimeout(timeout, interval time.Duration) Config {
	attempts := 1
	if interval > 0 && timeout > interval {
		attempts = int(timeout / interval)
	}
	return Config{Interval: interval, MaxAttempts: attempts}
}

// Fetch reads the current value. Errors are passed to the classifier, not
// treated as terminal.
type Fetch[T any] func(ctx context.Context) (T, error)

// Classifier decides what to do with attempt n (1-based).
type Classifier[T any] func(attempt int, v T, err error) Verdict

// Until runs fetch until classify returns Succeed or Fail, the attempts run
// out (ErrExhausted) or ctx is done. The last fetched value is returned in
// every case.
func Until[T any](ctx context.Context, cfg Config, fetch Fetch[T], classify Classifier[T]) (T, error) {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}

	var (
		attempt int
		last    T
	)
	operation := func() (T, error) {
		attempt++
		v, err := fetch(ctx)
		last = v
		switch classify(attempt, v, err) {
		case Succeed:
			return v, nil
		case Fail:
			return v, backoff.Permanent(fmt.Errorf("%w after %d attempt(s)", ErrRejected, attempt))
		default:
			return v, errContinue
		}
	}

	_, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(backoff.NewConstantBackOff(cfg.Interval)),
		backoff.WithMaxTries(uint(cfg.MaxAttempts)),
		backoff.WithMaxElapsedTime(0),
	)
	switch {
	case err == nil:
		return last, nil
	case errors.Is(err, errContinue):
		return last, fmt.Errorf("%w after %d attempt(s)", ErrExhausted, attempt)
	default:
		return last, err
	}
}
