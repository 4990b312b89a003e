package errors

import (
	stdErrors "errors"
	"net/http"
	"strings"
)

// Code is the stable, client-visible identifier of an error class.
type Code string

const (
	CodeValidation        Code = "VALIDATION_ERROR"
	CodeUnauthorized      Code = "UNAUTHORIZED"
	CodeForbidden         Code = "FORBIDDEN"
	CodeNotFound          Code = "NOT_FOUND"
	CodeConflict          Code = "CONFLICT"
	CodeIdempotency       Code = "IDEMPOTENCY_KEY_REUSED"
	CodeRateLimit         Code = "RATE_LIMITED"
	CodeInsufficientFunds Code = "INSUFFICIENT_FUNDS"
	CodeInvalidSignature  Code = "INVALID_SIGNATURE"
	CodePaymentFailed     Code = "PAYMENT_FAILED"
	CodeGatewayConfig     Code = "GATEWAY_CONFIG_ERROR"
	CodePersistence       Code = "PERSISTENCE_ERROR"
	CodeInternal          Code = "INTERNAL_ERROR"
	CodeDependency        Code = "DEPENDENCY_ERROR"
)

// Metadata controls how a code is rendered on the wire and retried.
//
// ExposeMessage lets the caller-supplied message replace PublicMessage.
// DetailsAllowed lets Details reach the response body.
type Metadata struct {
	HTTPStatus     int
	Retryable      bool
	PublicMessage  string
	DetailsAllowed bool
	ExposeMessage  bool
}

type flag uint8

const (
	retryable flag = 1 << iota
	withDetails
	exposeMessage
)

func meta(status int, public string, flags flag) Metadata {
	return Metadata{
		HTTPStatus:     status,
		PublicMessage:  public,
		Retryable:      flags&retryable != 0,
		DetailsAllowed: flags&withDetails != 0,
		ExposeMessage:  flags&exposeMessage != 0,
	}
}

var registry = map[Code]Metadata{
	CodeValidation:        meta(http.StatusBadRequest, "validation failed", withDetails|exposeMessage),
	CodeUnauthorized:      meta(http.StatusUnauthorized, "authentication required", exposeMessage),
	CodeForbidden:         meta(http.StatusForbidden, "access denied", exposeMessage),
	CodeNotFound:          meta(http.StatusNotFound, "resource not found", exposeMessage),
	CodeConflict:          meta(http.StatusConflict, "conflict detected", withDetails|exposeMessage),
	CodeIdempotency:       meta(http.StatusConflict, "idempotency key reused", withDetails|exposeMessage),
	CodeRateLimit:         meta(http.StatusTooManyRequests, "too many requests", exposeMessage),
	CodeInsufficientFunds: meta(http.StatusPaymentRequired, "insufficient wallet balance", 0),
	CodeInvalidSignature:  meta(http.StatusPaymentRequired, "payment verification failed", 0),
	CodePaymentFailed:     meta(http.StatusPaymentRequired, "payment verification failed", 0),
	CodeGatewayConfig:     meta(http.StatusInternalServerError, "payment gateway not configured", 0),
	CodePersistence:       meta(http.StatusInternalServerError, "internal server error", retryable),
	CodeInternal:          meta(http.StatusInternalServerError, "internal server error", retryable),
	CodeDependency:        meta(http.StatusServiceUnavailable, "dependency unavailable", retryable|withDetails),
}

// MetadataFor falls back to CodeInternal for codes it does not know.
func MetadataFor(code Code) Metadata {
	if m, ok := registry[code]; ok {
		return m
	}
	return registry[CodeInternal]
}

// Error is the typed error carried through repositories, services and
// controllers. The zero Code is never produced by New or Wrap.
type Error struct {
	code    Code
	message string
	details any
	cause   error
}

func New(code Code, message string) *Error {
	return &Error{code: code, message: message}
}

// Wrap attaches code and message to err. A nil err behaves like New.
func Wrap(code Code, err error, message string) *Error {
	return &Error{code: code, message: message, cause: err}
}

func (e *Error) Code() Code {
	if e == nil {
		return CodeInternal
	}
	return e.code
}

func (e *Error) Message() string {
	if e == nil {
		return ""
	}
	return e.message
}

func (e *Error) Details() any {
	if e == nil {
		return nil
	}
	return e.details
}

// WithDetails sets the structured details in place and returns e.
func (e *Error) WithDetails(details any) *Error {
	if e != nil {
		e.details = details
	}
	return e
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	parts := []string{string(e.code), e.message}
	if e.cause != nil {
		parts = append(parts, e.cause.Error())
	}
	return strings.Join(parts, ": ")
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// As returns the outermost typed error in err's chain.
func As(err error) *Error {
	var typed *Error
	if err != nil && stdErrors.As(err, &typed) {
		return typed
	}
	return nil
}

// HasCode reports whether the outermost typed error in err's chain carries code.
func HasCode(err error, code Code) bool {
	typed := As(err)
	return typed != nil && typed.code == code
}

// IsRetryable reports whether err is worth another attempt. Untyped errors are
// treated as transient store failures.
func IsRetryable(err error) bool {
	switch typed := As(err); {
	case err == nil:
		return false
	case typed == nil:
		return true
	default:
		return MetadataFor(typed.code).Retryable
	}
}
