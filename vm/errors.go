package vm

import (
	"fmt"

	"github.com/rove-lang/rove/ast"
)

// ---------------------------------------------------------------------------
// Error taxonomy
// ---------------------------------------------------------------------------

// ErrorKind classifies evaluation errors.
type ErrorKind int

const (
	// TypeMismatch: a value had the wrong variant for an operation.
	TypeMismatch ErrorKind = iota
	// VariableNotFound: an identifier or property did not resolve.
	VariableNotFound
	// AssignmentToConstant: write through a const binding.
	AssignmentToConstant
	// FunctionNotFound: no registry entry matched name and arguments.
	FunctionNotFound
	// ArityMismatch: a callable was invoked with the wrong argument count.
	ArityMismatch
	// CallStackOverflow: call depth exceeded the configured limit.
	CallStackOverflow
	// OperationLimitExceeded: the operation counter hit its cap.
	OperationLimitExceeded
	// DataTooLarge: a string/array/map would exceed its size cap.
	DataTooLarge
	// ScriptTerminated: the cancellation flag was observed.
	ScriptTerminated
	// ArithmeticError: overflow or division by zero.
	ArithmeticError
	// IndexOutOfBounds: array or string index outside the valid range.
	IndexOutOfBounds
	// NotSerializable: FnPtr and native objects have no serial form.
	NotSerializable
	// NativeFunctionError wraps an opaque host-provided failure.
	NativeFunctionError
)

// String returns the stable name of the kind.
func (k ErrorKind) String() string {
	switch k {
	case TypeMismatch:
		return "TypeMismatch"
	case VariableNotFound:
		return "VariableNotFound"
	case AssignmentToConstant:
		return "AssignmentToConstant"
	case FunctionNotFound:
		return "FunctionNotFound"
	case ArityMismatch:
		return "ArityMismatch"
	case CallStackOverflow:
		return "CallStackOverflow"
	case OperationLimitExceeded:
		return "OperationLimitExceeded"
	case DataTooLarge:
		return "DataTooLarge"
	case ScriptTerminated:
		return "ScriptTerminated"
	case ArithmeticError:
		return "ArithmeticError"
	case IndexOutOfBounds:
		return "IndexOutOfBounds"
	case NotSerializable:
		return "NotSerializable"
	case NativeFunctionError:
		return "NativeFunctionError"
	default:
		return fmt.Sprintf("ErrorKind(%d)", int(k))
	}
}

// Error is the structured evaluation error. Every failure inside the
// evaluator is an *Error; host failures are wrapped with kind
// NativeFunctionError and carry the original error for Unwrap.
type Error struct {
	Kind ErrorKind
	Msg  string
	Pos  ast.Position
	Err  error // wrapped host error, nil otherwise
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Pos.Line > 0 {
		return fmt.Sprintf("%s at %d:%d: %s", e.Kind, e.Pos.Line, e.Pos.Col, e.Msg)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

// Unwrap returns the wrapped host error, if any.
func (e *Error) Unwrap() error {
	return e.Err
}

// Fatal reports whether the error is a Safety Governor error. Fatal
// errors bound an adversarial script unconditionally: script-level
// try/catch must not intercept them.
func (e *Error) Fatal() bool {
	switch e.Kind {
	case CallStackOverflow, OperationLimitExceeded, DataTooLarge, ScriptTerminated:
		return true
	}
	return false
}

// NewError constructs an evaluation error.
func NewError(kind ErrorKind, pos ast.Position, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Pos: pos, Msg: fmt.Sprintf(format, args...)}
}

// wrapHostError turns a host failure into a NativeFunctionError,
// passing evaluator errors through untouched.
func wrapHostError(err error, pos ast.Position) error {
	if err == nil {
		return nil
	}
	if ee, ok := err.(*Error); ok {
		if ee.Pos.Line == 0 {
			ee.Pos = pos
		}
		return ee
	}
	return &Error{Kind: NativeFunctionError, Pos: pos, Msg: err.Error(), Err: err}
}

// ---------------------------------------------------------------------------
// Control-flow signals (break/continue/return travel as errors)
// ---------------------------------------------------------------------------

type breakSignal struct{}

type continueSignal struct{}

type returnSignal struct {
	value Dynamic
}

func (breakSignal) Error() string    { return "break outside loop" }
func (continueSignal) Error() string { return "continue outside loop" }
func (returnSignal) Error() string   { return "return outside function" }
