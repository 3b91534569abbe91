package errors

import (
	"context"
	"errors"
	"net"

	prhttp "github.com/randalmurphal/proref/http"
)

// Kind is the class of a failure.
type Kind string

// Failure kinds.
const (
	KindTransient   Kind = "transient"
	KindPermanent   Kind = "permanent"
	KindValidation  Kind = "validation"
	KindConsistency Kind = "consistency"
)

// Classified is implemented by errors that know their own kind.
type Classified interface {
	Kind() Kind
}

// Classify returns the kind of err. Unknown errors are permanent so they
// are never retried blindly.
func Classify(err error) Kind {
	if err == nil {
		return ""
	}

	var c Classified
	if errors.As(err, &c) {
		return c.Kind()
	}

	switch {
	case errors.Is(err, ErrValidation), errors.Is(err, prhttp.ErrBadRequest) && isValidation(err):
		return KindValidation
	case errors.Is(err, ErrStale), errors.Is(err, ErrNotGenerated), errors.Is(err, ErrAlreadyPublished),
		errors.Is(err, ErrContentChanged):
		return KindConsistency
	case errors.Is(err, context.Canceled):
		return KindPermanent
	case prhttp.IsRetryable(err):
		return KindTransient
	case errors.Is(err, prhttp.ErrUnauthorized), errors.Is(err, prhttp.ErrForbidden),
		errors.Is(err, prhttp.ErrBadRequest), errors.Is(err, prhttp.ErrNotFound):
		return KindPermanent
	case errors.Is(err, context.DeadlineExceeded):
		return KindTransient
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindTransient
	}
	if IsConnectionError(err) {
		return KindTransient
	}
	return KindPermanent
}

func isValidation(err error) bool {
	var v *prhttp.ValidationError
	return errors.As(err, &v)
}

// Retryable reports whether err is transient. It is the predicate passed to
// retry.Do for calls to external services.
func Retryable(err error) bool {
	return Classify(err) == KindTransient
}

// Validation wraps msg as a validation failure.
func Validation(format string, args ...any) error {
	return &validationError{msg: sprintf(format, args...)}
}

type validationError struct {
	msg string
}

func (e *validationError) Error() string { return e.msg }
func (e *validationError) Unwrap() error { return ErrValidation }
