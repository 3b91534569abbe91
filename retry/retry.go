package retry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Defaults for DefaultPolicy.
const (
	DefaultMaxAttempts     = 3
	DefaultInitialInterval = 1 * time.Second
	DefaultMaxInterval     = 30 * time.Second
	DefaultMultiplier      = 2.0
	DefaultJitter          = 0.5
)

// Policy describes how often and how long to wait between attempts.
type Policy struct {
	// MaxAttempts is the total number of invocations, including the first.
	// Values below 1 are treated as 1.
	MaxAttempts int `yaml:"max_attempts"`

	// InitialInterval is the wait before the second attempt.
	InitialInterval time.Duration `yaml:"initial_interval"`

	// MaxInterval caps the wait between attempts.
	MaxInterval time.Duration `yaml:"max_interval"`

	// Multiplier grows the interval after every attempt.
	Multiplier float64 `yaml:"multiplier"`

	// Jitter randomizes each wait by +/- Jitter*interval. Zero disables it.
	Jitter float64 `yaml:"jitter"`

	// Logger receives a warning for every failed attempt that will be retried.
	Logger *slog.Logger `yaml:"-"`
}

// DefaultPolicy returns three attempts with exponential backoff starting at
// one second.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:     DefaultMaxAttempts,
		InitialInterval: DefaultInitialInterval,
		MaxInterval:     DefaultMaxInterval,
		Multiplier:      DefaultMultiplier,
		Jitter:          DefaultJitter,
	}
}

// Immediate returns a policy that retries without waiting. Useful in tests.
func Immediate(attempts int) Policy {
	return Policy{MaxAttempts: attempts}
}

func (p Policy) attempts() int {
	if p.MaxAttempts < 1 {
		return 1
	}
	return p.MaxAttempts
}

// backOff builds a fresh backoff for a single Do call.
func (p Policy) backOff(ctx context.Context) backoff.BackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = p.InitialInterval
	bo.RandomizationFactor = p.Jitter
	bo.Multiplier = p.Multiplier
	if bo.Multiplier < 1 {
		bo.Multiplier = 1
	}
	bo.MaxInterval = p.MaxInterval
	if bo.MaxInterval < bo.InitialInterval {
		bo.MaxInterval = bo.InitialInterval
	}
	// Attempts bound the loop, not wall time.
	bo.MaxElapsedTime = 0
	bo.Reset()

	return backoff.WithContext(backoff.WithMaxRetries(bo, uint64(p.attempts()-1)), ctx)
}

// Predicate reports whether a failed attempt may be retried.
type Predicate func(error) bool

// Always retries every error.
func Always(error) bool { return true }

// Never treats every error as permanent.
func Never(error) bool { return false }

// Error is the terminal error returned once an operation gives up.
type Error struct {
	// Attempts is the number of times the operation was invoked.
	Attempts int

	// Permanent is true when the last failure was not retryable.
	Permanent bool

	// Err is the last error returned by the operation.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Permanent {
		return fmt.Sprintf("attempt %d failed permanently: %v", e.Attempts, e.Err)
	}
	return fmt.Sprintf("gave up after %d attempts: %v", e.Attempts, e.Err)
}

// Unwrap returns the last error.
func (e *Error) Unwrap() error {
	return e.Err
}

// Attempts returns the number of attempts recorded in err, or 0 when err
// did not come from this package.
func Attempts(err error) int {
	var retryErr *Error
	if errors.As(err, &retryErr) {
		return retryErr.Attempts
	}
	return 0
}

// Do invokes op until it succeeds, returns an error the predicate rejects,
// or the policy runs out of attempts. A nil predicate retries nothing.
func Do(ctx context.Context, p Policy, retryable Predicate, op func(context.Context) error) error {
	_, err := DoValue(ctx, p, retryable, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, op(ctx)
	})
	return err
}

// DoValue is Do for operations that return a value.
func DoValue[T any](ctx context.Context, p Policy, retryable Predicate, op func(context.Context) (T, error)) (T, error) {
	if retryable == nil {
		retryable = Never
	}

	var (
		result    T
		attempts  int
		permanent bool
	)

	operation := func() error {
		if err := ctx.Err(); err != nil {
			permanent = true
			return backoff.Permanent(err)
		}

		attempts++
		value, err := op(ctx)
		if err == nil {
			result = value
			return nil
		}
		if !retryable(err) {
			permanent = true
			return backoff.Permanent(err)
		}
		return err
	}

	notify := func(err error, wait time.Duration) {
		if p.Logger != nil {
			p.Logger.Warn("attempt failed, retrying",
				"attempt", attempts,
				"max_attempts", p.attempts(),
				"wait", wait,
				"error", err,
			)
		}
	}

	err := backoff.RetryNotify(operation, p.backOff(ctx), notify)
	if err == nil {
		return result, nil
	}

	var zero T
	if attempts == 0 {
		// Canceled before the first attempt.
		return zero, err
	}
	if ctx.Err() != nil && errors.Is(err, ctx.Err()) && !permanent {
		permanent = true
	}
	if p.Logger != nil && !permanent {
		p.Logger.Error("retries exhausted", "attempts", attempts, "error", err)
	}
	return zero, &Error{Attempts: attempts, Permanent: permanent, Err: err}
}
