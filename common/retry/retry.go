// Package retry re-runs read-only calls against external stores with
// exponential backoff.
//
// Mutations must never go through this package: a create that timed out may
// still have been applied upstream, and replaying it would duplicate records.
//
//	services, err := retry.Value(ctx, retry.Reads, func(ctx context.Context) ([]store.Service, error) {
//	    return business.GetServices(ctx, tenantID)
//	})
package retry

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// Policy controls how many times a call is attempted and how long to wait
// between attempts.
type Policy struct {
	// Attempts is the total number of calls, including the first one.
	// Values below 1 are treated as 1.
	Attempts int
	// BaseDelay is the wait before the second attempt; it doubles after
	// every failure, capped at MaxDelay.
	BaseDelay time.Duration
	MaxDelay  time.Duration
}

// Reads is the policy used for analytics and listing queries.
var Reads = Policy{
	Attempts:  2,
	BaseDelay: 150 * time.Millisecond,
	MaxDelay:  2 * time.Second,
}

// permanentError marks an error that must not be retried.
type permanentError struct{ err error }

func (p *permanentError) Error() string { return p.err.Error() }
func (p *permanentError) Unwrap() error { return p.err }

// Permanent wraps err so Do returns it immediately without further attempts.
// A nil err stays nil.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// Do calls fn until it succeeds, returns a Permanent error, the attempts are
// exhausted, or ctx is done. The returned error is the last one fn produced
// (unwrapped from Permanent), joined with the context error when the context
// ended the loop.
func Do(ctx context.Context, p Policy, fn func(ctx context.Context) error) error {
	_, err := Value(ctx, p, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// Value is Do for calls that produce a result.
func Value[T any](ctx context.Context, p Policy, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}
	delay := p.BaseDelay
	if delay <= 0 {
		delay = Reads.BaseDelay
	}
	maxDelay := p.MaxDelay
	if maxDelay <= 0 {
		maxDelay = Reads.MaxDelay
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, errors.Join(lastErr, err)
		}

		v, err := fn(ctx)
		if err == nil {
			return v, nil
		}

		var perm *permanentError
		if errors.As(err, &perm) {
			return zero, perm.err
		}
		lastErr = err

		if attempt == attempts {
			break
		}
		slog.Debug("retry: read failed, backing off",
			"attempt", attempt, "attempts", attempts, "delay", delay, "err", err)

		select {
		case <-ctx.Done():
			return zero, errors.Join(lastErr, ctx.Err())
		case <-time.After(delay):
		}
		delay *= 2
		if delay > maxDelay {
			delay = maxDelay
		}
	}
	return zero, lastErr
}
