// Package fetch wraps a BarSource with bounded retry and backoff,
// producing either a reliable bar batch or a terminal FetchError.
//
// Transient upstream failures are retried with exponential backoff;
// permanent ones (unknown symbol, invalid timeframe) surface immediately.
package fetch

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"

	"signal-enginev1/internal/model"
)

// Policy configures the retry behavior of a Retrying fetcher.
type Policy struct {
	MaxAttempts int           // total attempts including the first (default 3)
	BackoffBase time.Duration // first retry delay, doubled per attempt (default 500ms)
	BackoffCap  time.Duration // upper bound on any single delay (default 10s)
}

// DefaultPolicy returns the standard retry policy.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 3,
		BackoffBase: 500 * time.Millisecond,
		BackoffCap:  10 * time.Second,
	}
}

func (p Policy) withDefaults() Policy {
	def := DefaultPolicy()
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = def.MaxAttempts
	}
	if p.BackoffBase <= 0 {
		p.BackoffBase = def.BackoffBase
	}
	if p.BackoffCap <= 0 {
		p.BackoffCap = def.BackoffCap
	}
	return p
}

// Retrying delegates to a BarSource with bounded retry and exponential
// backoff. It satisfies model.BarSource itself, so sessions can use it
// transparently in place of the raw source.
type Retrying struct {
	source model.BarSource
	policy Policy

	// OnAttempt, if set, is called before every delivery attempt.
	// OnRetry, if set, is called after each failed attempt that will be
	// retried. Both are used for metrics.
	OnAttempt func(symbol string)
	OnRetry   func(symbol string, attempt int, err error)
}

// NewRetrying wraps source with the given policy. Zero policy fields fall
// back to DefaultPolicy.
func NewRetrying(source model.BarSource, policy Policy) *Retrying {
	return &Retrying{source: source, policy: policy.withDefaults()}
}

// Fetch attempts up to MaxAttempts deliveries from the underlying source.
// Permanent errors and context cancellation stop retrying immediately.
// On exhaustion the returned error is a *FetchError carrying the last
// underlying cause.
func (f *Retrying) Fetch(ctx context.Context, symbol string, tf model.Timeframe, count int) ([]model.Bar, error) {
	var bars []model.Bar
	attempts := 0

	op := func() error {
		attempts++
		if f.OnAttempt != nil {
			f.OnAttempt(symbol)
		}
		got, err := f.source.Fetch(ctx, symbol, tf, count)
		if err != nil {
			if IsPermanent(err) {
				return backoff.Permanent(err)
			}
			if f.OnRetry != nil && attempts < f.policy.MaxAttempts {
				f.OnRetry(symbol, attempts, err)
			}
			return err
		}
		bars = got
		return nil
	}

	bo := backoff.WithContext(
		backoff.WithMaxRetries(f.newBackOff(), uint64(f.policy.MaxAttempts-1)),
		ctx)

	if err := backoff.Retry(op, bo); err != nil {
		return nil, &FetchError{
			Symbol:    symbol,
			Timeframe: string(tf),
			Attempts:  attempts,
			Cause:     err,
		}
	}
	return bars, nil
}

// newBackOff builds the exponential schedule: base * 2^attempt, capped.
// Randomization is disabled so retry timing stays deterministic.
func (f *Retrying) newBackOff() backoff.BackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = f.policy.BackoffBase
	bo.Multiplier = 2
	bo.MaxInterval = f.policy.BackoffCap
	bo.RandomizationFactor = 0
	bo.MaxElapsedTime = 0 // bounded by attempt count, not wall time
	bo.Reset()
	return bo
}
