package domain

import (
	"errors"
	"net/http"
)

// Kind classifies an error for transport mapping.
type Kind string

const (
	KindValidation          Kind = "validation"
	KindUnauthorized        Kind = "unauthorized"
	KindForbidden           Kind = "forbidden"
	KindNotFound            Kind = "not_found"
	KindSignatureMismatch   Kind = "signature_mismatch"
	KindGateway             Kind = "gateway"
	KindRefundExceedsAmount Kind = "refund_exceeds_amount"
	KindConflict            Kind = "conflict"
	KindRateLimited         Kind = "rate_limited"
	KindInternal            Kind = "internal"
)

// Error is a domain error carrying a Kind tag and a user-facing message.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches two *Error values by kind and message so that wrapped copies
// produced by Wrap still satisfy errors.Is against the sentinel.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind && e.Msg == t.Msg
}

func newErr(kind Kind, msg string) *Error { return &Error{Kind: kind, Msg: msg} }

// Wrap attaches a cause to a sentinel without losing errors.Is on the sentinel.
func Wrap(sentinel *Error, cause error) error {
	return &Error{Kind: sentinel.Kind, Msg: sentinel.Msg, Err: cause}
}

// Invalid returns a validation error with a custom message.
func Invalid(msg string) error { return newErr(KindValidation, msg) }

var (
	// Common domain errors
	ErrNotFound           = newErr(KindNotFound, "entity not found")
	ErrAlreadyExists      = newErr(KindConflict, "entity already exists")
	ErrInvalidArgument    = newErr(KindValidation, "invalid argument")
	ErrOperationFailed    = newErr(KindInternal, "database operation failed")
	ErrReadDatabaseRow    = newErr(KindInternal, "failed to read database row")
	ErrInvalidExecContext = newErr(KindInternal, "invalid execution context")

	ErrUnauthorized = newErr(KindUnauthorized, "authentication required")
	ErrForbidden    = newErr(KindForbidden, "insufficient permissions")
	ErrRateLimited  = newErr(KindRateLimited, "too many requests")

	// Payment lifecycle
	ErrPaymentNotFound      = newErr(KindNotFound, "payment not found")
	ErrUnknownPlan          = newErr(KindValidation, "unknown subscription plan")
	ErrInvalidAmount        = newErr(KindValidation, "amount must be a positive number")
	ErrSignatureMismatch    = newErr(KindSignatureMismatch, "invalid payment signature")
	ErrPaymentIDMismatch    = newErr(KindValidation, "payment id does not match the recorded payment")
	ErrPaymentFailed        = newErr(KindValidation, "payment has already failed")
	ErrPaymentNotRefundable = newErr(KindConflict, "payment is not in a refundable state")
	ErrPaymentRefunded      = newErr(KindConflict, "payment has been refunded")
	ErrRefundExceedsAmount  = newErr(KindRefundExceedsAmount, "refund amount exceeds payment amount")
	ErrRefundInProgress     = newErr(KindConflict, "another refund for this payment is in progress")
	ErrGateway              = newErr(KindGateway, "payment gateway error")
)

// KindOf extracts the Kind of err, defaulting to KindInternal.
func KindOf(err error) Kind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindInternal
}

// MessageOf returns the user-facing message for err.
func MessageOf(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Msg
	}
	return "internal error"
}

// HTTPStatus maps a Kind to its HTTP status code.
func HTTPStatus(k Kind) int {
	switch k {
	case KindValidation, KindSignatureMismatch, KindRefundExceedsAmount:
		return http.StatusBadRequest
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindRateLimited:
		return http.StatusTooManyRequests
	case KindGateway:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
