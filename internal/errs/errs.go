// Package errs defines the error taxonomy shared across the pipeline
// (adapters, repository, lock manager, queue, ingestion, worker). Each
// kind carries a distinct retry policy, documented next to its
// constant; callers branch on kind with errors.Is / errors.As rather
// than string matching.
package errs

import "fmt"

// Kind classifies a pipeline error by how the caller should react to it.
type Kind string

const (
	// KindBadSignature: webhook HMAC mismatch. 401, dropped, never enqueued.
	KindBadSignature Kind = "bad_signature"
	// KindBadPayload: adapter validation failure. 400 synchronously, or
	// skipped in a batch.
	KindBadPayload Kind = "bad_payload"
	// KindLockUnavailable: lock manager exhausted its retries. Retriable
	// by the queue with exponential backoff.
	KindLockUnavailable Kind = "lock_unavailable"
	// KindTransientStorage: DB connection, serialization, or deadlock
	// failure. Retriable.
	KindTransientStorage Kind = "transient_storage"
	// KindPermanentStorage: constraint violation. Terminal, no retry.
	KindPermanentStorage Kind = "permanent_storage"
	// KindUpstreamUnavailable: marketplace B 5xx or timeout. Increments
	// the circuit breaker counter.
	KindUpstreamUnavailable Kind = "upstream_unavailable"
	// KindCircuitOpen: polling circuit breaker is open. Cycle skipped.
	KindCircuitOpen Kind = "circuit_open"
	// KindQueueUnavailable: enqueue failed. Surfaced as 500 to the
	// webhook caller.
	KindQueueUnavailable Kind = "queue_unavailable"
)

// Error is a typed pipeline error. It wraps an underlying cause so
// callers can still unwrap down to the driver-level error when needed.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// Is enables errors.Is(err, errs.KindTransientStorage-shaped sentinels)
// by comparing kinds when the target is also an *Error.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// Retriable reports whether the queue should reschedule a job that
// failed with this error, per the policy table in the error handling
// design (spec §7).
func Retriable(err error) bool {
	var e *Error
	if !asError(err, &e) {
		return false
	}
	switch e.Kind {
	case KindLockUnavailable, KindTransientStorage, KindQueueUnavailable:
		return true
	default:
		return false
	}
}

func asError(err error, target **Error) bool {
	for err != nil {
		if e, ok := err.(*Error); ok {
			*target = e
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

// Sentinel, kind-less errors for simple validation messages raised
// inside the canonical package, wrapped into KindBadPayload by
// canonical.Record.Validate.
var (
	ErrMissingProductID = fmt.Errorf("product_id is required")
	ErrNegativeQuantity = fmt.Errorf("quantity must be non-negative")
	ErrUnknownSource    = fmt.Errorf("unknown source")
)
