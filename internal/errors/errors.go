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
	CodeAuth          Code = 10
	CodeRateLimited   Code = 11
	CodeUnavailable   Code = 12
	CodeUnsupported   Code = 13
	CodeBlocked       Code = 16
	CodeActionPlan    Code = 17
	CodeWrongNetwork  Code = 20
	CodeUnknownChain  Code = 21
	CodeUserRejected  Code = 22
	CodeApproval      Code = 23
	CodeReverted      Code = 24
	CodeSuperseded    Code = 25
	CodeSigner        Code = 26
	CodeActionTimeout Code = 27
	CodeNotConnected  Code = 28
)

// Error is a typed CLI error that carries a stable error code.
type Error struct {
	Code    Code
	Message string
	Cause   error
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

func As(err error) (*Error, bool) {
	var target *Error
	if errors.As(err, &target) {
		return target, true
	}
	return nil, false
}

// HasCode reports whether any typed error in the chain carries code.
func HasCode(err error, code Code) bool {
	for err != nil {
		var target *Error
		if !errors.As(err, &target) {
			return false
		}
		if target.Code == code {
			return true
		}
		err = target.Cause
	}
	return false
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

// TypeName is the envelope error type reported for a code.
func TypeName(code Code) string {
	switch code {
	case CodeUsage:
		return "usage_error"
	case CodeAuth:
		return "auth_error"
	case CodeRateLimited:
		return "rate_limited"
	case CodeUnavailable:
		return "provider_unavailable"
	case CodeUnsupported:
		return "unsupported"
	case CodeBlocked:
		return "command_blocked"
	case CodeActionPlan:
		return "action_plan_error"
	case CodeWrongNetwork:
		return "wrong_network"
	case CodeUnknownChain:
		return "unknown_chain"
	case CodeUserRejected:
		return "user_rejected"
	case CodeApproval:
		return "approval_failed"
	case CodeReverted:
		return "reverted"
	case CodeSuperseded:
		return "superseded"
	case CodeSigner:
		return "signer_error"
	case CodeActionTimeout:
		return "timeout"
	case CodeNotConnected:
		return "not_connected"
	default:
		return "internal_error"
	}
}
