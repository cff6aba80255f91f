package service

import (
	"errors"
)

// Error kinds. Every failure returned by this package wraps exactly one.
var (
	ErrMissingData       = errors.New("missing data")
	ErrConflict          = errors.New("conflict")
	ErrNotFound          = errors.New("not found")
	ErrUnauthenticated   = errors.New("unauthenticated")
	ErrInvalidCredential = errors.New("invalid credential")
	ErrInternal          = errors.New("internal error")
)

// Error is the outcome of a failed operation. Message is safe to show to
// clients; Err is the cause and is only logged.
type Error struct {
	Kind    error
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() []error {
	if e.Err != nil {
		return []error{e.Kind, e.Err}
	}
	return []error{e.Kind}
}

func newError(kind error, message string, cause error) error {
	return &Error{Kind: kind, Message: message, Err: cause}
}

// KindOf reports the kind of err. Anything that is not a *Error is internal.
func KindOf(err error) error {
	var se *Error
	if errors.As(err, &se) && se.Kind != nil {
		return se.Kind
	}
	return ErrInternal
}

// MessageOf returns the client-facing message for err.
func MessageOf(err error, fallback string) string {
	var se *Error
	if errors.As(err, &se) && se.Message != "" {
		return se.Message
	}
	return fallback
}

// kindLabel is the metric and log label for a kind.
func kindLabel(kind error) string {
	switch kind {
	case ErrMissingData:
		return "missing_data"
	case ErrConflict:
		return "conflict"
	case ErrNotFound:
		return "not_found"
	case ErrUnauthenticated:
		return "unauthenticated"
	case ErrInvalidCredential:
		return "invalid_credential"
	default:
		return "internal"
	}
}

// Outcome labels err for metrics: "ok" for nil, else the kind.
func Outcome(err error) string {
	if err == nil {
		return "ok"
	}
	return kindLabel(KindOf(err))
}
