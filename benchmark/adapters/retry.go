// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package adapters

import (
	"context"
	"time"
)

// -----------------------------------------------------------------------------
// Retry Policy
// -----------------------------------------------------------------------------

// RetryPolicy defines bounded exponential backoff for transient failures.
//
// Description:
//
//	A single policy instance is shared by both external adapters so
//	retry behavior stays uniform across the pipeline. Only errors
//	classified transient are retried; permanent and malformed errors
//	return immediately.
//
// Thread Safety: RetryPolicy is immutable after construction and safe
// for concurrent use.
type RetryPolicy struct {
	// MaxAttempts is the total number of tries including the first.
	// Default: 3
	MaxAttempts int

	// InitialBackoff is the delay before the first retry.
	// Default: 500ms
	InitialBackoff time.Duration

	// MaxBackoff caps the delay between retries.
	// Default: 8s
	MaxBackoff time.Duration

	// Multiplier scales the backoff after each failed attempt.
	// Default: 2.0
	Multiplier float64
}

// DefaultRetryPolicy returns the policy used by the pipeline: three
// attempts with 500ms initial backoff doubling up to 8s.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:    3,
		InitialBackoff: 500 * time.Millisecond,
		MaxBackoff:     8 * time.Second,
		Multiplier:     2.0,
	}
}

// Do runs fn until it succeeds, fails non-transiently, or attempts are
// exhausted.
//
// Inputs:
//   - ctx: Cancels the backoff sleep as well as the operation.
//   - op: Operation name used when classifying raw errors.
//   - fn: The operation. Errors are classified via Classify unless
//     already an *AdapterError.
//
// Outputs:
//   - error: nil on success; the last classified error otherwise.
func (p RetryPolicy) Do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	backoff := p.InitialBackoff
	if backoff <= 0 {
		backoff = 500 * time.Millisecond
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return Transient(op, err)
		}

		err := fn(ctx)
		if err == nil {
			return nil
		}

		classified := Classify(op, err)
		lastErr = classified
		if classified.Kind != KindTransient || attempt == attempts {
			return classified
		}

		select {
		case <-ctx.Done():
			return Transient(op, ctx.Err())
		case <-time.After(backoff):
		}

		backoff = time.Duration(float64(backoff) * p.Multiplier)
		if p.MaxBackoff > 0 && backoff > p.MaxBackoff {
			backoff = p.MaxBackoff
		}
	}
	return lastErr
}
