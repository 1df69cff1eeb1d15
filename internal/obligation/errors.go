package obligation

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes obligation errors.
type ErrorCode string

const (
	// CodeNotFound: the obligation or message does not exist or is soft-deleted.
	CodeNotFound ErrorCode = "NOT_FOUND"

	// CodeInvalidState: a resolved message was resolved again, or an exhausted
	// obligation was advanced.
	CodeInvalidState ErrorCode = "INVALID_STATE"

	// CodeDelivery: the outbound notification could not be sent.
	CodeDelivery ErrorCode = "DELIVERY_FAILED"

	// CodeValidation: malformed input to create or update.
	CodeValidation ErrorCode = "VALIDATION"

	// CodeConflict: a conditional update lost to a concurrent writer.
	CodeConflict ErrorCode = "CONFLICT"
)

// Error is the error type returned by the obligation engine and its stores.
type Error struct {
	Code    ErrorCode
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func NotFoundError(format string, args ...any) *Error {
	return &Error{Code: CodeNotFound, Message: fmt.Sprintf(format, args...)}
}

func InvalidStateError(format string, args ...any) *Error {
	return &Error{Code: CodeInvalidState, Message: fmt.Sprintf(format, args...)}
}

func ValidationError(format string, args ...any) *Error {
	return &Error{Code: CodeValidation, Message: fmt.Sprintf(format, args...)}
}

func ConflictError(format string, args ...any) *Error {
	return &Error{Code: CodeConflict, Message: fmt.Sprintf(format, args...)}
}

// DeliveryError wraps a Notifier failure.
func DeliveryError(err error, format string, args ...any) *Error {
	return &Error{Code: CodeDelivery, Message: fmt.Sprintf(format, args...), Err: err}
}

func hasCode(err error, code ErrorCode) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

func IsNotFound(err error) bool     { return hasCode(err, CodeNotFound) }
func IsInvalidState(err error) bool { return hasCode(err, CodeInvalidState) }
func IsDelivery(err error) bool     { return hasCode(err, CodeDelivery) }
func IsValidation(err error) bool   { return hasCode(err, CodeValidation) }
func IsConflict(err error) bool     { return hasCode(err, CodeConflict) }
