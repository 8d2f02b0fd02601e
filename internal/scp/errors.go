package scp

import (
	"errors"
	"fmt"

	"github.com/roach88/scp/internal/graph"
)

// ErrorCode categorizes operator failures. Unsuccessful is not an error.
type ErrorCode string

const (
	// CodeInvalidType means the operator kind is missing or ambiguous.
	CodeInvalidType ErrorCode = "INVALID_TYPE"

	// CodeInvalidParams means operand modifiers, bindings or parameter lists
	// do not fit the operator.
	CodeInvalidParams ErrorCode = "INVALID_PARAMS"

	// CodeExec means the operator could not proceed structurally.
	CodeExec ErrorCode = "EXEC_ERROR"
)

// Error is returned by parsing and execution of a single operator.
type Error struct {
	Code     ErrorCode
	Kind     OperatorKind
	Operator graph.Handle
	Message  string
	Err      error
}

func (e *Error) Error() string {
	msg := e.Message
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	if e.Kind != KindUnknown {
		return fmt.Sprintf("%s: %s: %s", e.Code, e.Kind, msg)
	}
	return fmt.Sprintf("%s: %s", e.Code, msg)
}

func (e *Error) Unwrap() error { return e.Err }

// NewInvalidType reports a missing or ambiguous operator kind.
func NewInvalidType(op graph.Handle, format string, args ...any) *Error {
	return &Error{Code: CodeInvalidType, Operator: op, Message: fmt.Sprintf(format, args...)}
}

// NewInvalidParams reports an operand problem for kind.
func NewInvalidParams(kind OperatorKind, format string, args ...any) *Error {
	return &Error{Code: CodeInvalidParams, Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// NewExecError reports a structural failure, wrapping err if non-nil.
func NewExecError(kind OperatorKind, err error, format string, args ...any) *Error {
	return &Error{Code: CodeExec, Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// IsInvalidType reports whether err carries CodeInvalidType.
func IsInvalidType(err error) bool { return hasCode(err, CodeInvalidType) }

// IsInvalidParams reports whether err carries CodeInvalidParams.
func IsInvalidParams(err error) bool { return hasCode(err, CodeInvalidParams) }

// IsExecError reports whether err carries CodeExec.
func IsExecError(err error) bool { return hasCode(err, CodeExec) }

func hasCode(err error, code ErrorCode) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}
