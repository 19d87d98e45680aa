// Package retry runs an operation under a bounded exponential-backoff policy.
// It knows nothing about the operation; an error classifier decides whether a
// failure is worth another attempt.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	DefaultBase       = time.Second
	DefaultMaxRetries = 3
)

// DefaultRetryable is the allow-list of transient failure classes.
var DefaultRetryable = map[codes.Code]bool{
	codes.Unavailable:       true,
	codes.DeadlineExceeded:  true,
	codes.ResourceExhausted: true,
	codes.Aborted:           true,
	codes.Internal:          true,
}

// Classifier maps an error onto a failure class.
type Classifier func(error) codes.Code

// ClassifyStatus reads the class from a gRPC status carried by err, falling
// back to context errors. Anything else is Unknown and therefore fatal.
func ClassifyStatus(err error) codes.Code {
	if err == nil {
		return codes.OK
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return codes.DeadlineExceeded
	}
	if errors.Is(err, context.Canceled) {
		return codes.Canceled
	}
	if s, ok := status.FromError(err); ok {
		return s.Code()
	}
	return codes.Unknown
}

// ExhaustedError is returned once every allowed attempt has failed.
type ExhaustedError struct {
	Attempts int
	Err      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("gave up after %d attempts: %v", e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() error { return e.Err }

// Retrier is safe for concurrent use; it holds no mutable state.
type Retrier struct {
	base       time.Duration
	maxRetries int
	classify   Classifier
	retryable  map[codes.Code]bool
	onRetry    func(attempt int, code codes.Code, delay time.Duration, err error)
	sleep      func(ctx context.Context, d time.Duration) error
}

type Option func(*Retrier)

func WithBase(d time.Duration) Option {
	return func(r *Retrier) {
		if d > 0 {
			r.base = d
		}
	}
}

// WithMaxRetries sets how many retries follow the first try.
func WithMaxRetries(n int) Option {
	return func(r *Retrier) {
		if n >= 0 {
			r.maxRetries = n
		}
	}
}

func WithClassifier(c Classifier) Option {
	return func(r *Retrier) {
		if c != nil {
			r.classify = c
		}
	}
}

func WithRetryable(set map[codes.Code]bool) Option {
	return func(r *Retrier) {
		if set != nil {
			r.retryable = set
		}
	}
}

// OnRetry registers a hook called before each backoff wait.
func OnRetry(fn func(attempt int, code codes.Code, delay time.Duration, err error)) Option {
	return func(r *Retrier) {
		r.onRetry = fn
	}
}

func withSleep(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(r *Retrier) {
		r.sleep = fn
	}
}

func New(opts ...Option) *Retrier {
	r := &Retrier{
		base:       DefaultBase,
		maxRetries: DefaultMaxRetries,
		classify:   ClassifyStatus,
		retryable:  DefaultRetryable,
		sleep:      sleepContext,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Backoff returns the wait before retry number attempt (0-based).
func (r *Retrier) Backoff(attempt int) time.Duration {
	return r.base * time.Duration(1<<uint(attempt))
}

// Do runs op until it succeeds, fails with a non-retryable class, the retry
// budget is spent, or ctx is done.
func (r *Retrier) Do(ctx context.Context, op func(ctx context.Context) error) error {
	var lastErr error
	for attempt := 0; ; attempt++ {
		err := op(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		code := r.classify(err)
		if !r.retryable[code] {
			return err
		}
		if attempt >= r.maxRetries {
			return &ExhaustedError{Attempts: attempt + 1, Err: lastErr}
		}

		delay := r.Backoff(attempt)
		if r.onRetry != nil {
			r.onRetry(attempt+1, code, delay, err)
		}
		if err := r.sleep(ctx, delay); err != nil {
			return fmt.Errorf("retry interrupted: %w", errors.Join(err, lastErr))
		}
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
