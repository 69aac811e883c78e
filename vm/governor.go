package vm

import (
	"sync/atomic"

	"github.com/rove-lang/rove/ast"
)

// ---------------------------------------------------------------------------
// Safety Governor: operation/depth/size limits and cancellation
// ---------------------------------------------------------------------------
//
// Every limit is cooperative: the evaluator calls the checks before each
// statement, call and loop iteration, and before any size-changing
// mutation. A script cannot be preempted between checks. Limits of zero
// mean unlimited.

// Limits configures the Safety Governor.
type Limits struct {
	MaxOperations uint64 // statements + calls + loop iterations
	MaxCallDepth  int    // nested function calls
	MaxStringLen  int    // bytes
	MaxArrayLen   int    // elements
	MaxMapLen     int    // entries
	MaxExprDepth  int    // expression nesting
}

// Governor tracks the counters for a single evaluation. Each concurrent
// evaluation owns its own instance; only the cancellation flag is shared
// with the engine.
type Governor struct {
	limits    Limits
	ops       uint64
	depth     int
	exprDepth int
	cancel    *atomic.Bool
}

// NewGovernor returns a governor with fresh counters. The cancel flag
// may be shared with a supervisor; nil means not cancellable.
func NewGovernor(limits Limits, cancel *atomic.Bool) *Governor {
	return &Governor{limits: limits, cancel: cancel}
}

// Operations returns the operations consumed so far.
func (g *Governor) Operations() uint64 {
	return g.ops
}

// tick consumes one operation and observes the cancellation flag. Called
// before every statement, call and loop iteration.
func (g *Governor) tick(pos ast.Position) *Error {
	if g.cancel != nil && g.cancel.Load() {
		return NewError(ScriptTerminated, pos, "script terminated by host")
	}
	g.ops++
	if g.limits.MaxOperations > 0 && g.ops > g.limits.MaxOperations {
		return NewError(OperationLimitExceeded, pos, "operation limit of %d exceeded", g.limits.MaxOperations)
	}
	return nil
}

// enterCall checks and claims one level of call depth. Each successful
// enterCall is paired with leaveCall on every exit path.
func (g *Governor) enterCall(pos ast.Position) *Error {
	g.depth++
	if g.limits.MaxCallDepth > 0 && g.depth > g.limits.MaxCallDepth {
		g.depth--
		return NewError(CallStackOverflow, pos, "call depth limit of %d exceeded", g.limits.MaxCallDepth)
	}
	return nil
}

func (g *Governor) leaveCall() {
	g.depth--
}

// enterExpr bounds expression nesting, paired with leaveExpr.
func (g *Governor) enterExpr(pos ast.Position) *Error {
	g.exprDepth++
	if g.limits.MaxExprDepth > 0 && g.exprDepth > g.limits.MaxExprDepth {
		g.exprDepth--
		return NewError(CallStackOverflow, pos, "expression nesting limit of %d exceeded", g.limits.MaxExprDepth)
	}
	return nil
}

func (g *Governor) leaveExpr() {
	g.exprDepth--
}

// CheckStringLen fails when a string of n bytes would exceed the cap.
// Exposed for native functions that build strings.
func (g *Governor) CheckStringLen(n int, pos ast.Position) *Error {
	if g.limits.MaxStringLen > 0 && n > g.limits.MaxStringLen {
		return NewError(DataTooLarge, pos, "string of %d bytes exceeds limit of %d", n, g.limits.MaxStringLen)
	}
	return nil
}

// CheckArrayLen fails when an array of n elements would exceed the cap.
func (g *Governor) CheckArrayLen(n int, pos ast.Position) *Error {
	if g.limits.MaxArrayLen > 0 && n > g.limits.MaxArrayLen {
		return NewError(DataTooLarge, pos, "array of %d elements exceeds limit of %d", n, g.limits.MaxArrayLen)
	}
	return nil
}

// CheckMapLen fails when a map of n entries would exceed the cap.
func (g *Governor) CheckMapLen(n int, pos ast.Position) *Error {
	if g.limits.MaxMapLen > 0 && n > g.limits.MaxMapLen {
		return NewError(DataTooLarge, pos, "map of %d entries exceeds limit of %d", n, g.limits.MaxMapLen)
	}
	return nil
}
