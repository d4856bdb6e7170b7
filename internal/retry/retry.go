// SPDX-License-Identifier: Apache-2.0

// Package retry provides the "retry a fallible operation until success,
// deduping identical in-flight calls" primitive the sync core leans on.
// Concurrent calls that share an operation id collapse into a single retry
// loop and all receive its result.
package retry

import (
	"context"
	"time"

	"github.com/sethvargo/go-retry"
	"golang.org/x/sync/singleflight"

	"github.com/MKhiriev/kegsync/internal/logger"
)

// Runner executes fallible operations with backoff. The zero value is not
// usable; construct with NewRunner.
type Runner struct {
	group  singleflight.Group
	logger *logger.Logger

	baseDelay time.Duration
	maxDelay  time.Duration
}

// NewRunner constructs a Runner with fibonacci backoff starting at 500ms
// and capped at one minute.
func NewRunner(log *logger.Logger) *Runner {
	return &Runner{
		logger:    log,
		baseDelay: 500 * time.Millisecond,
		maxDelay:  time.Minute,
	}
}

// Do runs fn until it succeeds or ctx is cancelled. Calls sharing opID
// while one is in flight join it instead of starting their own loop and
// receive the shared result.
func (r *Runner) Do(ctx context.Context, opID string, fn func(ctx context.Context) error) error {
	return r.run(ctx, opID, fn, 0)
}

// DoBounded is Do with a bounded attempt budget: fn runs at most
// 1+maxRetries times. The last error is returned once the budget is
// exhausted.
func (r *Runner) DoBounded(ctx context.Context, opID string, maxRetries uint64, fn func(ctx context.Context) error) error {
	return r.run(ctx, opID, fn, maxRetries)
}

func (r *Runner) run(ctx context.Context, opID string, fn func(ctx context.Context) error, maxRetries uint64) error {
	_, err, shared := r.group.Do(opID, func() (any, error) {
		b := retry.WithCappedDuration(r.maxDelay, retry.NewFibonacci(r.baseDelay))
		if maxRetries > 0 {
			b = retry.WithMaxRetries(maxRetries, b)
		}

		attempt := 0
		return nil, retry.Do(ctx, b, func(ctx context.Context) error {
			attempt++
			if err := fn(ctx); err != nil {
				r.logger.Debug().
					Str("op", opID).
					Int("attempt", attempt).
					Err(err).
					Msg("operation failed, will retry")
				return retry.RetryableError(err)
			}
			return nil
		})
	})
	if shared {
		r.logger.Debug().Str("op", opID).Msg("joined in-flight operation")
	}
	return err
}
