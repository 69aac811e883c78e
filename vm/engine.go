package vm

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/tliron/commonlog"

	"github.com/rove-lang/rove/ast"
	"github.com/rove-lang/rove/compiler"
)

// ---------------------------------------------------------------------------
// Engine: the host-facing entry point
// ---------------------------------------------------------------------------

// Config carries engine-wide settings. The zero value means no limits,
// 64-bit integers, floats enabled, and no optimization pass.
type Config struct {
	Limits Limits

	// IntWidth is 32 or 64; 0 means 64. At 32 every integer result is
	// range-checked and overflow is an arithmetic error.
	IntWidth int

	// DisableFloat rejects float literals and skips the float builtins.
	DisableFloat bool

	OptLevel compiler.OptLevel
}

// Engine holds the function registry, configuration and script cache.
// One engine serves many evaluations; each evaluation gets its own
// scope, governor and script-function overlay, so evaluations on
// different goroutines do not interfere. Registration is not
// synchronized with evaluation: register everything first.
type Engine struct {
	cfg      Config
	registry *Registry
	cache    *scriptCache
	cancel   atomic.Bool
	log      commonlog.Logger

	// Print and Debug receive the output of the print and debug
	// builtins. Both default to the engine log.
	Print func(string)
	Debug func(string)

	registerMu sync.Mutex
	sealed     atomic.Bool
}

// NewEngine builds an engine with the builtin function library
// installed.
func NewEngine(cfg Config) *Engine {
	if cfg.IntWidth == 0 {
		cfg.IntWidth = 64
	}
	e := &Engine{
		cfg:      cfg,
		registry: NewRegistry(),
		cache:    newScriptCache(),
		log:      commonlog.GetLogger("rove.vm"),
	}
	e.Print = func(s string) { e.log.Info(s) }
	e.Debug = func(s string) { e.log.Debug(s) }
	registerBuiltins(e)
	return e
}

// Config returns the engine configuration.
func (e *Engine) Config() Config { return e.cfg }

// ---- Registration ----

// RegisterFn installs a native function under name. Parameter patterns
// give the exact variant expected per position; use AnyParam for a
// wildcard. Registration after the first evaluation panics: the
// registry is immutable once evaluation starts.
func (e *Engine) RegisterFn(name string, params []ParamPattern, fn NativeFunc, opts ...RegisterOption) {
	e.registerMu.Lock()
	defer e.registerMu.Unlock()
	if e.sealed.Load() {
		panic(fmt.Sprintf("vm: RegisterFn(%q) after first evaluation", name))
	}
	e.registry.RegisterNative(name, params, fn, opts...)
}

// RegisterOperator overloads an operator token for an exact operand
// pattern. Operators resolve through the registry exactly like named
// functions, so this is RegisterFn with the token as the name.
func (e *Engine) RegisterOperator(op string, params []ParamPattern, fn NativeFunc) {
	e.RegisterFn(op, params, fn)
}

// ---- Interruption ----

// Interrupt requests termination of every in-flight evaluation on this
// engine. Safe to call from any goroutine; running scripts observe it
// at their next governor check and fail with a fatal termination error.
func (e *Engine) Interrupt() { e.cancel.Store(true) }

// Resume clears a previous Interrupt so new evaluations can run.
func (e *Engine) Resume() { e.cancel.Store(false) }

// ---- Evaluation ----

// Eval compiles and runs source, returning the value of its last
// statement. Compiled programs are cached by content hash, so repeated
// evaluation of the same source skips parsing.
func (e *Engine) Eval(src string) (Dynamic, error) {
	return e.EvalWithScope(src, NewScope())
}

// EvalWithScope runs source against a caller-provided scope, letting
// the host pre-bind variables and read them back afterward.
func (e *Engine) EvalWithScope(src string, scope *Scope) (Dynamic, error) {
	prog, ok := e.cache.get(src)
	if !ok {
		parsed, err := compiler.Parse(src)
		if err != nil {
			return Unit(), err
		}
		prog = compiler.Optimize(parsed, e.cfg.OptLevel)
		e.cache.put(src, prog)
	}
	return e.EvalASTWithScope(prog, scope)
}

// EvalAST runs an already-compiled program in a fresh scope.
func (e *Engine) EvalAST(prog *ast.Program) (Dynamic, error) {
	return e.EvalASTWithScope(prog, NewScope())
}

// EvalASTWithScope runs a compiled program against a caller-provided
// scope.
func (e *Engine) EvalASTWithScope(prog *ast.Program, scope *Scope) (Dynamic, error) {
	e.sealed.Store(true)

	id := uuid.NewString()
	e.log.Debugf("eval %s: %d top-level statements", id, len(prog.Stmts))

	ev := &evaluator{
		engine: e,
		gov:    NewGovernor(e.cfg.Limits, &e.cancel),
		scope:  scope,
		fns:    NewRegistry(),
		hoist:  make(map[*ast.FnDef]bool),
	}

	v, err := ev.execProgram(prog)
	switch sig := err.(type) {
	case nil:
		e.log.Debugf("eval %s: ok", id)
		return v, nil
	case returnSignal:
		// A top-level return ends the script with its value.
		e.log.Debugf("eval %s: ok (explicit return)", id)
		return sig.value, nil
	case breakSignal, continueSignal:
		return Unit(), NewError(TypeMismatch, ast.Position{}, "%s", err.Error())
	default:
		e.log.Errorf("eval %s: %s", id, err.Error())
		return Unit(), err
	}
}

// CallFn invokes a function through the registry from host code, with
// host-supplied arguments. Script functions defined in previous
// evaluations are not retained; this reaches native registrations and
// builtins.
func (e *Engine) CallFn(name string, args ...Dynamic) (Dynamic, error) {
	e.sealed.Store(true)
	ev := &evaluator{
		engine: e,
		gov:    NewGovernor(e.cfg.Limits, &e.cancel),
		scope:  NewScope(),
		fns:    NewRegistry(),
		hoist:  make(map[*ast.FnDef]bool),
	}
	ptrs := make([]*Dynamic, len(args))
	for i := range args {
		ptrs[i] = &args[i]
	}
	return ev.callResolved(name, ptrs, nil, ast.Position{})
}
