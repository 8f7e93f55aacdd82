// internal/provider/errors.go
//
// Error taxonomy for Site Provider calls.
//
// Every failure leaving this package is a *Error carrying exactly one of
// three kinds:
//
//   • Unavailable – network failure, 5xx, 429, or an unusable response.
//     Retryable.
//   • Rejected    – the provider refused the input (4xx).  Not retryable.
//   • Timeout     – the bounded wait elapsed.  Retryable with backoff.
//
// Callers match with errors.Is against the Err* sentinels or inspect the
// struct with errors.As.
package provider

import (
	"errors"
	"fmt"
)

// Kind classifies a provider failure.
type Kind string

const (
	KindUnavailable Kind = "unavailable"
	KindRejected    Kind = "rejected"
	KindTimeout     Kind = "timeout"
)

// Sentinels for errors.Is matching by kind.
var (
	ErrUnavailable = errors.New("provider unavailable")
	ErrRejected    = errors.New("provider rejected request")
	ErrTimeout     = errors.New("provider timeout")
)

// Error is the only error type returned by Client methods.
type Error struct {
	Kind    Kind
	Op      string // generate_sitemap, create_site, …
	Status  int    // HTTP status when one was received, else 0
	Message string // provider-supplied or synthesized detail
	Err     error  // transport cause, if any
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Status != 0 {
		return fmt.Sprintf("provider %s %s (%d): %s", e.Op, e.Kind, e.Status, msg)
	}
	return fmt.Sprintf("provider %s %s: %s", e.Op, e.Kind, msg)
}

func (e *Error) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrRejected) and friends match by kind.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrUnavailable:
		return e.Kind == KindUnavailable
	case ErrRejected:
		return e.Kind == KindRejected
	case ErrTimeout:
		return e.Kind == KindTimeout
	}
	return false
}

// Retryable reports whether backing off and trying again can help.
func (e *Error) Retryable() bool { return e.Kind != KindRejected }

// KindOf extracts the kind from err.  Non-provider errors report false.
func KindOf(err error) (Kind, bool) {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind, true
	}
	return "", false
}

// IsRetryable reports whether err is a transient provider failure.
func IsRetryable(err error) bool {
	var pe *Error
	return errors.As(err, &pe) && pe.Retryable()
}
