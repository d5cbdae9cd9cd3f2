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
	"errors"
	"fmt"
	"net"

	openai "github.com/sashabaranov/go-openai"
)

// -----------------------------------------------------------------------------
// Error Taxonomy
// -----------------------------------------------------------------------------

// ErrorKind classifies adapter failures for retry and escalation policy.
//
// Description:
//
//	Every failure crossing an adapter boundary is classified into one of
//	three kinds. Transient failures are retried with backoff, permanent
//	failures short-circuit all remaining calls to that adapter within
//	the run, and malformed failures indicate the remote service answered
//	but the payload did not conform to the expected schema.
type ErrorKind int

const (
	// KindTransient covers rate limits, timeouts, and 5xx responses.
	KindTransient ErrorKind = iota

	// KindPermanent covers auth failures and misconfiguration. Once
	// seen, the adapter stops issuing requests for the rest of the run.
	KindPermanent

	// KindMalformed covers schema-nonconforming responses from the
	// judge service.
	KindMalformed
)

// String returns a human-readable kind name.
func (k ErrorKind) String() string {
	switch k {
	case KindTransient:
		return "transient"
	case KindPermanent:
		return "permanent"
	case KindMalformed:
		return "malformed"
	default:
		return fmt.Sprintf("unknown(%d)", int(k))
	}
}

// AdapterError wraps an underlying failure with its classification and
// the operation that produced it.
type AdapterError struct {
	// Kind is the failure classification.
	Kind ErrorKind

	// Op names the failing operation (e.g. "embed", "judge").
	Op string

	// Err is the underlying error. May be nil for synthesized errors.
	Err error
}

// Error implements the error interface.
func (e *AdapterError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s failure", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s failure: %v", e.Op, e.Kind, e.Err)
}

// Unwrap exposes the underlying error to errors.Is / errors.As.
func (e *AdapterError) Unwrap() error {
	return e.Err
}

// Transient wraps err as a retryable adapter failure.
func Transient(op string, err error) *AdapterError {
	return &AdapterError{Kind: KindTransient, Op: op, Err: err}
}

// Permanent wraps err as a non-retryable adapter failure.
func Permanent(op string, err error) *AdapterError {
	return &AdapterError{Kind: KindPermanent, Op: op, Err: err}
}

// Malformed wraps err as a schema-nonconformance failure.
func Malformed(op string, err error) *AdapterError {
	return &AdapterError{Kind: KindMalformed, Op: op, Err: err}
}

// IsTransient reports whether err is classified transient.
func IsTransient(err error) bool {
	var ae *AdapterError
	return errors.As(err, &ae) && ae.Kind == KindTransient
}

// IsPermanent reports whether err is classified permanent.
func IsPermanent(err error) bool {
	var ae *AdapterError
	return errors.As(err, &ae) && ae.Kind == KindPermanent
}

// IsMalformed reports whether err is classified malformed.
func IsMalformed(err error) bool {
	var ae *AdapterError
	return errors.As(err, &ae) && ae.Kind == KindMalformed
}

// -----------------------------------------------------------------------------
// Classification
// -----------------------------------------------------------------------------

// Classify maps a raw client error onto the taxonomy.
//
// Description:
//
//	HTTP 401/403 and request-construction errors are permanent; 429,
//	5xx, network errors, and context deadline expiry are transient.
//	Errors already carrying a classification pass through unchanged.
//
// Inputs:
//   - op: The operation name for the wrapped error.
//   - err: The raw error from the API client. Must not be nil.
//
// Outputs:
//   - *AdapterError: The classified error. Never nil.
func Classify(op string, err error) *AdapterError {
	var ae *AdapterError
	if errors.As(err, &ae) {
		return ae
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.HTTPStatusCode == 401 || apiErr.HTTPStatusCode == 403:
			return Permanent(op, err)
		case apiErr.HTTPStatusCode == 429 || apiErr.HTTPStatusCode >= 500:
			return Transient(op, err)
		default:
			return Permanent(op, err)
		}
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		if reqErr.HTTPStatusCode == 429 || reqErr.HTTPStatusCode >= 500 {
			return Transient(op, err)
		}
		return Permanent(op, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return Transient(op, err)
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return Transient(op, err)
	}

	// Unrecognized failures are treated as transient so one odd network
	// hiccup does not poison the rest of the run.
	return Transient(op, err)
}
