// Package apperr carries error kinds from services to handlers so HTTP
// status codes are picked in one place.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind int

const (
	KindUnknown Kind = iota
	KindValidation
	KindNotFound
	KindConflict
	KindUnauthorized
	KindInsufficientFunds
	KindUpstream
)

type Error struct {
	kind Kind
	msg  string
	err  error
}

func (e *Error) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %v", e.msg, e.err)
	}
	return e.msg
}

func (e *Error) Unwrap() error {
	return e.err
}

// Message is the client-facing text without any wrapped cause.
func (e *Error) Message() string {
	return e.msg
}

func (e *Error) Kind() Kind {
	return e.kind
}

func New(kind Kind, msg string) error {
	return &Error{kind: kind, msg: msg}
}

func Validation(format string, args ...interface{}) error {
	return &Error{kind: KindValidation, msg: fmt.Sprintf(format, args...)}
}

func NotFound(format string, args ...interface{}) error {
	return &Error{kind: KindNotFound, msg: fmt.Sprintf(format, args...)}
}

func Conflict(format string, args ...interface{}) error {
	return &Error{kind: KindConflict, msg: fmt.Sprintf(format, args...)}
}

func Unauthorized(format string, args ...interface{}) error {
	return &Error{kind: KindUnauthorized, msg: fmt.Sprintf(format, args...)}
}

func InsufficientFunds(format string, args ...interface{}) error {
	return &Error{kind: KindInsufficientFunds, msg: fmt.Sprintf(format, args...)}
}

// FundsError reports a charge the balance cannot cover. It carries the
// numbers the response body exposes alongside the status.
type FundsError struct {
	BalanceCents  int64
	RequiredCents int64
}

func (e *FundsError) Error() string {
	return fmt.Sprintf("insufficient funds: balance %d, required %d", e.BalanceCents, e.RequiredCents)
}

func (e *FundsError) Kind() Kind {
	return KindInsufficientFunds
}

// Upstream wraps a failure from an external dependency (payment
// provider, mail relay) so callers can tell it from our own faults.
func Upstream(msg string, err error) error {
	return &Error{kind: KindUpstream, msg: msg, err: err}
}

type kinder interface {
	Kind() Kind
}

// KindOf walks the error chain and returns the first kind it finds,
// KindUnknown otherwise.
func KindOf(err error) Kind {
	var k kinder
	if errors.As(err, &k) {
		return k.Kind()
	}
	return KindUnknown
}

// HTTPStatus maps an error to the response status. Unknown errors are
// internal faults.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindValidation:
		return http.StatusBadRequest
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindInsufficientFunds:
		return http.StatusPaymentRequired
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindUpstream:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
