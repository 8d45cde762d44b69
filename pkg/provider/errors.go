package provider

import (
	"errors"
	"fmt"

	"github.com/verdant-ai/verdant/pkg/models"
)

// Kind categorizes a provider failure.
type Kind string

const (
	KindTransport       Kind = "transport"
	KindTimeout         Kind = "timeout"
	KindProvider        Kind = "provider"
	KindMalformed       Kind = "malformed"
	KindContentTooLarge Kind = "content_too_large"
	KindEmpty           Kind = "empty"
	KindRefused         Kind = "refused"
)

// Error families. Match them with errors.Is against any *Error.
var (
	ErrTransport       = errors.New("transport error")
	ErrProvider        = errors.New("provider error")
	ErrContentTooLarge = errors.New("content too large")
	ErrEmptyOrRefused  = errors.New("empty or refused response")
)

// ErrImageUnavailable is returned when an image reference cannot be loaded.
var ErrImageUnavailable = errors.New("image unavailable")

// Error is a classified failure of a single provider call.
type Error struct {
	Kind       Kind
	StatusCode int
	Err        error
}

func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.StatusCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is maps kinds onto their error family.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrTransport:
		return e.Kind == KindTransport || e.Kind == KindTimeout
	case ErrProvider:
		return e.Kind == KindProvider || e.Kind == KindMalformed
	case ErrContentTooLarge:
		return e.Kind == KindContentTooLarge
	case ErrEmptyOrRefused:
		return e.Kind == KindEmpty || e.Kind == KindRefused
	}
	return false
}

// Outcome converts the failure into an attempt outcome.
func (e *Error) Outcome() models.Outcome {
	switch e.Kind {
	case KindTimeout:
		return models.OutcomeTimeout
	case KindProvider:
		return models.OutcomeHTTPError
	case KindMalformed:
		return models.OutcomeMalformed
	case KindEmpty:
		return models.OutcomeEmpty
	case KindRefused:
		return models.OutcomeDeclined
	default:
		return models.OutcomeTransport
	}
}

func newError(kind Kind, status int, err error) *Error {
	return &Error{Kind: kind, StatusCode: status, Err: err}
}
