package errors

import (
	"errors"
	"fmt"
)

// Code is a stable, machine-readable error type mapped to process exit codes.
type Code int

const (
	CodeSuccess       Code = 0
	CodeInternal      Code = 1
	CodeUsage         Code = 2
	CodeUnavailable   Code = 12
	CodeUnsupported   Code = 13
	CodeSigner        Code = 20
	CodeDecode        Code = 21
	CodeDispatch      Code = 22
	CodeSubmitTimeout Code = 23
)

// Error is a typed CLI error that carries a stable error code and, for
// chain-reported failures, a structured payload.
type Error struct {
	Code    Code
	Message string
	Cause   error
	Details any
}

func (e *Error) Error() string {
	if e.Cause == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Cause)
}

func (e *Error) Unwrap() error { return e.Cause }

func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

// WithDetails returns a dispatch-style error whose payload is rendered verbatim
// in structured output.
func WithDetails(code Code, message string, details any) *Error {
	return &Error{Code: code, Message: message, Details: details}
}

func As(err error) (*Error, bool) {
	var target *Error
	if errors.As(err, &target) {
		return target, true
	}
	return nil, false
}

func ExitCode(err error) int {
	if err == nil {
		return int(CodeSuccess)
	}
	if cliErr, ok := As(err); ok {
		return int(cliErr.Code)
	}
	return int(CodeInternal)
}

func TypeName(code Code) string {
	switch code {
	case CodeUsage:
		return "usage_error"
	case CodeUnavailable:
		return "unavailable"
	case CodeUnsupported:
		return "unsupported"
	case CodeSigner:
		return "signer_error"
	case CodeDecode:
		return "decode_error"
	case CodeDispatch:
		return "dispatch_error"
	case CodeSubmitTimeout:
		return "submission_timeout"
	default:
		return "internal_error"
	}
}
