package domain

import "fmt"

// ErrorKind classifies exchange-facing failures per the error-handling
// policy: some kinds retry locally, some trip the circuit breaker
// immediately, others are routine and logged without escalation.
type ErrorKind int

const (
	ErrTransportTimeout ErrorKind = iota
	ErrTransportUnavailable
	ErrAuthExpired
	ErrOrderRejected
	ErrNotFound
	ErrRateLimited
	ErrStreamGap
	ErrMalformedMessage
	ErrInsufficientBalance
	ErrInternal
)

func (k ErrorKind) String() string {
	switch k {
	case ErrTransportTimeout:
		return "transport_timeout"
	case ErrTransportUnavailable:
		return "transport_unavailable"
	case ErrAuthExpired:
		return "auth_expired"
	case ErrOrderRejected:
		return "order_rejected"
	case ErrNotFound:
		return "not_found"
	case ErrRateLimited:
		return "rate_limited"
	case ErrStreamGap:
		return "stream_gap"
	case ErrMalformedMessage:
		return "malformed_message"
	case ErrInsufficientBalance:
		return "insufficient_balance"
	default:
		return "internal"
	}
}

// APIError wraps an exchange-facing failure with its classification and
// an optional reason (used for OrderRejected).
type APIError struct {
	Kind   ErrorKind
	Reason string
	Err    error
}

func (e *APIError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Reason)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return e.Kind.String()
}

func (e *APIError) Unwrap() error { return e.Err }

// NewAPIError constructs a classified error, optionally wrapping a
// transport-level cause.
func NewAPIError(kind ErrorKind, reason string, cause error) *APIError {
	return &APIError{Kind: kind, Reason: reason, Err: cause}
}

// TripsBreakerImmediately reports whether this error kind must open the
// circuit breaker without waiting for a consecutive-error count (§7).
func (k ErrorKind) TripsBreakerImmediately() bool {
	switch k {
	case ErrAuthExpired, ErrInsufficientBalance, ErrInternal:
		return true
	default:
		return false
	}
}

// CountsAsConsecutiveError reports whether this kind increments the
// breaker's transient-error counter (reset on the next successful call).
func (k ErrorKind) CountsAsConsecutiveError() bool {
	switch k {
	case ErrTransportTimeout, ErrTransportUnavailable, ErrRateLimited:
		return true
	default:
		return false
	}
}
