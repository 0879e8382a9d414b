package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a service failure so transports can map it to a response.
type Kind string

const (
	KindNotFound          Kind = "NOT_FOUND"
	KindBadRequest        Kind = "BAD_REQUEST"
	KindConflict          Kind = "CONFLICT"
	KindInsufficientStock Kind = "INSUFFICIENT_STOCK"
	KindInvalidCoupon     Kind = "INVALID_COUPON"
	KindOrderExpired      Kind = "ORDER_EXPIRED"
	KindUnauthorized      Kind = "UNAUTHORIZED"
	KindForbidden         Kind = "FORBIDDEN"
	KindInternal          Kind = "INTERNAL_ERROR"
)

// Error is a service error tagged with a Kind.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error of the same kind when the target carries no message,
// so errors.Is(err, apperr.ErrNotFound) works for any not-found error.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Message == "" && t.Kind == e.Kind
}

// Kind-only targets for errors.Is.
var (
	ErrNotFound          = &Error{Kind: KindNotFound}
	ErrBadRequest        = &Error{Kind: KindBadRequest}
	ErrConflict          = &Error{Kind: KindConflict}
	ErrInsufficientStock = &Error{Kind: KindInsufficientStock}
	ErrInvalidCoupon     = &Error{Kind: KindInvalidCoupon}
	ErrOrderExpired      = &Error{Kind: KindOrderExpired}
	ErrInternal          = &Error{Kind: KindInternal}
)

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

func NotFound(resource string) *Error {
	return New(KindNotFound, resource+" not found")
}

func BadRequest(message string) *Error {
	return New(KindBadRequest, message)
}

func Conflict(message string) *Error {
	return New(KindConflict, message)
}

func InsufficientStock(productID string) *Error {
	return New(KindInsufficientStock, "insufficient stock for product "+productID)
}

func InvalidCoupon(reason string) *Error {
	return New(KindInvalidCoupon, "invalid coupon: "+reason)
}

func OrderExpired() *Error {
	return New(KindOrderExpired, "order has expired")
}

func Internal(message string, err error) *Error {
	return Wrap(KindInternal, message, err)
}

// KindOf reports the kind of err, or KindInternal for untagged errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// HTTPStatus maps a kind to its response status code.
func HTTPStatus(kind Kind) int {
	switch kind {
	case KindNotFound:
		return http.StatusNotFound
	case KindBadRequest, KindInsufficientStock, KindInvalidCoupon, KindOrderExpired:
		return http.StatusBadRequest
	case KindConflict:
		return http.StatusConflict
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// Message returns the client-facing text for err. Untagged errors are hidden.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		if e.Kind == KindInternal {
			return e.Message
		}
		return e.Error()
	}
	return "internal server error"
}
