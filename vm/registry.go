package vm

import (
	"fmt"

	"github.com/rove-lang/rove/ast"
)

// ---------------------------------------------------------------------------
// Function Registry: one dispatch table for natives, script functions
// and operators
// ---------------------------------------------------------------------------
//
// Every call in the language resolves here: plain calls, method-style
// calls, and operators (an operator token is simply the canonical name
// of a registered function, which is what makes operator overloading
// work for native and scripted types alike).
//
// Overload resolution: collect entries matching name and arity, score
// each by the number of parameter positions whose pattern is an exact
// match for the argument's runtime variant (exact beats the `any`
// wildcard), and take the highest score. On a tie, a scripted function
// beats a native one, the most recently defined scripted function wins,
// and remaining native ties resolve to the earliest registration. All
// of this is deterministic across repeated calls.

// ParamPattern is an accepted parameter kind: an exact variant tag, or
// the AnyParam wildcard.
type ParamPattern int16

// AnyParam matches every variant.
const AnyParam ParamPattern = -1

// ExactParam matches only the given variant.
func ExactParam(t Tag) ParamPattern {
	return ParamPattern(t)
}

func (p ParamPattern) matches(t Tag) bool {
	return p == AnyParam || Tag(p) == t
}

// RunContext is handed to native functions: the engine, the governor of
// the running evaluation (for size checks), and the call-site position.
type RunContext struct {
	Engine *Engine
	Gov    *Governor
	Pos    ast.Position
}

// NativeFunc is a host-provided callable. Arguments arrive as pointers;
// whether args[0] aliases the caller's live storage is decided by the
// call-site rules (method syntax on a plain variable aliases, transient
// expression results never do). A returned error is wrapped into the
// evaluator's taxonomy unless it already is a *Error.
type NativeFunc func(rc *RunContext, args []*Dynamic) (Dynamic, error)

// ScriptFn is a function defined by script code.
type ScriptFn struct {
	Name   string
	Params []string
	Body   *ast.Block
}

type fnEntry struct {
	name     string
	params   []ParamPattern
	variadic bool // extra trailing arguments allowed
	firstRef bool // first parameter taken by mutable reference
	native   NativeFunc
	script   *ScriptFn
	seq      int
}

func (e *fnEntry) arity() int {
	return len(e.params)
}

// accepts reports whether the entry can take a call of n arguments.
func (e *fnEntry) accepts(n int) bool {
	if e.variadic {
		return n >= len(e.params)
	}
	return n == len(e.params)
}

// score counts exact-variant parameter matches, or -1 when any exact
// pattern rejects its argument: such an entry is ineligible for the
// call, it never falls back to wildcard behavior.
func (e *fnEntry) score(tags []Tag) int {
	s := 0
	for i, p := range e.params {
		if p == AnyParam {
			continue
		}
		if !p.matches(tags[i]) {
			return -1
		}
		s++
	}
	return s
}

// RegisterOption adjusts a native registration.
type RegisterOption func(*fnEntry)

// FirstParamByRef marks the first parameter as taken by mutable
// reference: in method-call syntax the callee receives the call-site
// container directly, with no clone.
func FirstParamByRef() RegisterOption {
	return func(e *fnEntry) { e.firstRef = true }
}

// Variadic allows any number of extra trailing arguments beyond the
// declared patterns.
func Variadic() RegisterOption {
	return func(e *fnEntry) { e.variadic = true }
}

// Registry maps function names to their overload sets. The engine's
// registry is populated during setup and read-only during evaluation;
// script `fn` declarations go to a per-evaluation overlay table of the
// same shape.
type Registry struct {
	entries map[string][]*fnEntry
	nextSeq int
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string][]*fnEntry)}
}

// RegisterNative adds a host callable under the given name and
// parameter patterns.
func (r *Registry) RegisterNative(name string, params []ParamPattern, fn NativeFunc, opts ...RegisterOption) {
	e := &fnEntry{name: name, params: params, native: fn, seq: r.nextSeq}
	r.nextSeq++
	for _, opt := range opts {
		opt(e)
	}
	r.entries[name] = append(r.entries[name], e)
}

// RegisterScriptFn adds a script function definition. Parameters of a
// script function accept any variant.
func (r *Registry) RegisterScriptFn(fn *ScriptFn) {
	params := make([]ParamPattern, len(fn.Params))
	for i := range params {
		params[i] = AnyParam
	}
	e := &fnEntry{name: fn.Name, params: params, script: fn, seq: r.nextSeq}
	r.nextSeq++
	r.entries[fn.Name] = append(r.entries[fn.Name], e)
}

func (r *Registry) candidates(name string, n int, out []*fnEntry) []*fnEntry {
	for _, e := range r.entries[name] {
		if e.accepts(n) {
			out = append(out, e)
		}
	}
	return out
}

func (r *Registry) hasName(name string) bool {
	return len(r.entries[name]) > 0
}

// resolve picks the best entry for the call, consulting the
// per-evaluation overlay (script definitions) before the engine
// registry. Overlay sequence numbers are offset past the registry's so
// "defined later" is a plain comparison.
func resolve(global, overlay *Registry, name string, tags []Tag, pos ast.Position) (*fnEntry, *Error) {
	n := len(tags)
	var cands []*fnEntry
	cands = global.candidates(name, n, cands)
	if overlay != nil {
		cands = overlay.candidates(name, n, cands)
	}
	if len(cands) == 0 {
		if global.hasName(name) || (overlay != nil && overlay.hasName(name)) {
			return nil, NewError(ArityMismatch, pos, "function %q has no overload taking %d argument(s)", name, n)
		}
		return nil, NewError(FunctionNotFound, pos, "function not found: %s", signature(name, n))
	}

	overlayBase := global.nextSeq
	effectiveSeq := func(e *fnEntry) int {
		if e.script != nil && overlay != nil && containsEntry(overlay.entries[name], e) {
			return overlayBase + e.seq
		}
		return e.seq
	}

	var best *fnEntry
	bestScore := -1
	for _, e := range cands {
		s := e.score(tags)
		if s < 0 {
			continue
		}
		switch {
		case best == nil || s > bestScore:
			best, bestScore = e, s
		case s == bestScore:
			if better(e, best, effectiveSeq) {
				best = e
			}
		}
	}
	if best == nil {
		return nil, NewError(FunctionNotFound, pos, "function not found: %s", signatureTags(name, tags))
	}
	return best, nil
}

// better reports whether a beats b under the tie-break rules.
func better(a, b *fnEntry, seq func(*fnEntry) int) bool {
	aScript := a.script != nil
	bScript := b.script != nil
	if aScript != bScript {
		return aScript
	}
	if aScript {
		// most recently defined scripted function wins
		return seq(a) > seq(b)
	}
	// native ties: earliest registration wins
	return seq(a) < seq(b)
}

func containsEntry(es []*fnEntry, e *fnEntry) bool {
	for _, x := range es {
		if x == e {
			return true
		}
	}
	return false
}

// compoundOps maps a compound-assignment token to the operator it
// desugars to.
var compoundOps = map[string]string{
	"+=": "+",
	"-=": "-",
	"*=": "*",
	"/=": "/",
	"%=": "%",
}

// signature renders a name/arity pair for error payloads.
func signature(name string, n int) string {
	return fmt.Sprintf("%s/%d", name, n)
}

// signatureTags renders the call's name and argument variants.
func signatureTags(name string, tags []Tag) string {
	s := name + " ("
	for i, t := range tags {
		if i > 0 {
			s += ", "
		}
		s += t.String()
	}
	return s + ")"
}
