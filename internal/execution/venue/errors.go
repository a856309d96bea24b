package venue

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// ErrorKind classifies a venue failure for retry and surfacing decisions.
type ErrorKind int

const (
	// KindUnavailable covers 5xx responses and connection failures.
	KindUnavailable ErrorKind = iota
	// KindRateLimited covers 429 responses.
	KindRateLimited
	// KindTimeout covers per-attempt deadline expiry.
	KindTimeout
	// KindValidation covers 4xx request errors other than auth and rate
	// limiting. Never retried.
	KindValidation
	// KindAuth covers 401/403. Never retried.
	KindAuth
	// KindCircuitOpen is produced by the gateway itself when the breaker
	// rejects the call without a network attempt.
	KindCircuitOpen
)

func (k ErrorKind) String() string {
	switch k {
	case KindUnavailable:
		return "unavailable"
	case KindRateLimited:
		return "rate_limited"
	case KindTimeout:
		return "timeout"
	case KindValidation:
		return "validation"
	case KindAuth:
		return "auth"
	case KindCircuitOpen:
		return "circuit_open"
	default:
		return "unknown"
	}
}

// Error is the typed failure surfaced by the gateway and the venue client.
type Error struct {
	Kind    ErrorKind
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("venue %s (status %d): %s", e.Kind, e.Status, e.Message)
	}
	return fmt.Sprintf("venue %s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Retryable reports whether the gateway may retry the failed attempt.
func (e *Error) Retryable() bool {
	switch e.Kind {
	case KindUnavailable, KindRateLimited, KindTimeout:
		return true
	default:
		return false
	}
}

// AsError extracts a *Error from err, classifying raw transport errors on
// the way: context deadline becomes a timeout, net errors become
// unavailable. Returns nil only for a nil error.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	var ve *Error
	if errors.As(err, &ve) {
		return ve
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &Error{Kind: KindTimeout, Message: err.Error(), Err: err}
	}
	var ne net.Error
	if errors.As(err, &ne) {
		if ne.Timeout() {
			return &Error{Kind: KindTimeout, Message: err.Error(), Err: err}
		}
		return &Error{Kind: KindUnavailable, Message: err.Error(), Err: err}
	}
	return &Error{Kind: KindUnavailable, Message: err.Error(), Err: err}
}

// ClassifyStatus maps an HTTP status code to an error kind.
func ClassifyStatus(status int) ErrorKind {
	switch {
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		return KindAuth
	case status == http.StatusTooManyRequests:
		return KindRateLimited
	case status >= 500:
		return KindUnavailable
	default:
		return KindValidation
	}
}

// IsCircuitOpen reports whether err is the gateway's fail-fast rejection.
func IsCircuitOpen(err error) bool {
	var ve *Error
	return errors.As(err, &ve) && ve.Kind == KindCircuitOpen
}
