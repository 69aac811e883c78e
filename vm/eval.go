package vm

import (
	"math"

	"github.com/rove-lang/rove/ast"
)

// ---------------------------------------------------------------------------
// Evaluator: recursive tree walk over statements and expressions
// ---------------------------------------------------------------------------
//
// Control outcomes (Normal / Return / Break / Continue / Error) travel as
// Go errors: break/continue/return are private signal types translated by
// the enclosing construct, everything else is a *Error propagating to the
// top-level caller. The governor is consulted before every statement,
// every call and every loop iteration.

type evaluator struct {
	engine *Engine
	gov    *Governor
	scope  *Scope
	fns    *Registry // per-evaluation script function table
	this   *Dynamic  // receiver binding inside method-style calls
	hoist  map[*ast.FnDef]bool
}

// execProgram runs a parsed program and returns the value of its last
// statement.
func (ev *evaluator) execProgram(prog *ast.Program) (Dynamic, error) {
	// Script functions at the top level are visible before their textual
	// definition.
	for _, s := range prog.Stmts {
		if fd, ok := s.(*ast.FnDef); ok {
			ev.fns.RegisterScriptFn(&ScriptFn{Name: fd.Name, Params: fd.Params, Body: fd.Body})
			ev.hoist[fd] = true
		}
	}
	return ev.execStmts(prog.Stmts)
}

// execStmts runs a statement sequence, returning the last statement's
// value. Intermediate values are released.
func (ev *evaluator) execStmts(stmts []ast.Stmt) (Dynamic, error) {
	result := Unit()
	for _, s := range stmts {
		if err := ev.gov.tick(s.Pos()); err != nil {
			result.Release()
			return Unit(), err
		}
		v, err := ev.evalStmt(s)
		if err != nil {
			result.Release()
			return Unit(), err
		}
		result.Release()
		result = v
	}
	return result, nil
}

// execBlock runs a block in a child scope, truncated on every exit path.
func (ev *evaluator) execBlock(b *ast.Block) (Dynamic, error) {
	mark := ev.scope.Len()
	defer ev.scope.Truncate(mark)
	return ev.execStmts(b.Stmts)
}

func (ev *evaluator) evalStmt(s ast.Stmt) (Dynamic, error) {
	switch x := s.(type) {
	case *ast.Let:
		init := Unit()
		if x.Init != nil {
			v, err := ev.evalExpr(x.Init)
			if err != nil {
				return Unit(), err
			}
			init = v
		}
		ev.scope.Push(x.Name, init, x.Const)
		return Unit(), nil

	case *ast.Assign:
		return Unit(), ev.evalAssign(x)

	case *ast.ExprStmt:
		return ev.evalExpr(x.X)

	case *ast.Block:
		return ev.execBlock(x)

	case *ast.If:
		cond, err := ev.evalCondition(x.Cond)
		if err != nil {
			return Unit(), err
		}
		if cond {
			return ev.execBlock(x.Then)
		}
		if x.Else != nil {
			return ev.evalStmt(x.Else)
		}
		return Unit(), nil

	case *ast.While:
		for {
			if err := ev.gov.tick(x.Pos()); err != nil {
				return Unit(), err
			}
			if x.Cond != nil {
				cond, err := ev.evalCondition(x.Cond)
				if err != nil {
					return Unit(), err
				}
				if !cond {
					return Unit(), nil
				}
			}
			v, err := ev.execBlock(x.Body)
			v.Release()
			switch err.(type) {
			case nil:
			case breakSignal:
				return Unit(), nil
			case continueSignal:
			default:
				return Unit(), err
			}
		}

	case *ast.For:
		return Unit(), ev.evalFor(x)

	case *ast.Break:
		return Unit(), breakSignal{}

	case *ast.Continue:
		return Unit(), continueSignal{}

	case *ast.Return:
		val := Unit()
		if x.X != nil {
			v, err := ev.evalExpr(x.X)
			if err != nil {
				return Unit(), err
			}
			val = v
		}
		return Unit(), returnSignal{value: val}

	case *ast.FnDef:
		if !ev.hoist[x] {
			ev.fns.RegisterScriptFn(&ScriptFn{Name: x.Name, Params: x.Params, Body: x.Body})
		}
		return Unit(), nil

	case *ast.TryCatch:
		v, err := ev.execBlock(x.Body)
		if err == nil {
			return v, nil
		}
		ee, ok := err.(*Error)
		if !ok || ee.Fatal() {
			// Control signals pass through; governor errors bound the
			// script unconditionally and are never catchable.
			return Unit(), err
		}
		mark := ev.scope.Len()
		defer ev.scope.Truncate(mark)
		if x.ErrVar != "" {
			ev.scope.Push(x.ErrVar, errorInfo(ee), false)
		}
		return ev.execStmts(x.Catch.Stmts)

	default:
		return Unit(), NewError(TypeMismatch, s.Pos(), "unsupported statement")
	}
}

// errorInfo builds the map bound in a catch block.
func errorInfo(e *Error) Dynamic {
	return NewMap(map[string]Dynamic{
		"kind":    Str(e.Kind.String()),
		"message": Str(e.Msg),
	})
}

// evalCondition evaluates a condition, requiring a bool.
func (ev *evaluator) evalCondition(e ast.Expr) (bool, error) {
	v, err := ev.evalExpr(e)
	if err != nil {
		return false, err
	}
	defer v.Release()
	if v.Tag() != TagBool {
		return false, NewError(TypeMismatch, e.Pos(), "condition must be bool, got %s", v.TypeName())
	}
	return v.Bool(), nil
}

// ---------------------------------------------------------------------------
// Loops
// ---------------------------------------------------------------------------

func (ev *evaluator) evalFor(x *ast.For) error {
	// Ranges iterate without materializing an array.
	if r, ok := x.Iter.(*ast.Range); ok {
		from, to, err := ev.evalRangeBounds(r)
		if err != nil {
			return err
		}
		return ev.runForLoop(x, to-from, func(i int64) Dynamic {
			return Int(from + i)
		})
	}

	iter, err := ev.evalExpr(x.Iter)
	if err != nil {
		return err
	}
	defer iter.Release()

	switch iter.Tag() {
	case TagArray:
		elems := iter.arrayElems()
		return ev.runForLoop(x, int64(len(elems)), func(i int64) Dynamic {
			return elems[i].Clone()
		})
	case TagString:
		runes := []rune(iter.Str())
		return ev.runForLoop(x, int64(len(runes)), func(i int64) Dynamic {
			return Char(runes[i])
		})
	default:
		return NewError(TypeMismatch, x.Iter.Pos(), "cannot iterate a %s", iter.TypeName())
	}
}

func (ev *evaluator) evalRangeBounds(r *ast.Range) (int64, int64, error) {
	from, err := ev.evalExpr(r.From)
	if err != nil {
		return 0, 0, err
	}
	defer from.Release()
	to, err := ev.evalExpr(r.To)
	if err != nil {
		return 0, 0, err
	}
	defer to.Release()
	if from.Tag() != TagInt || to.Tag() != TagInt {
		return 0, 0, NewError(TypeMismatch, r.Pos(), "range bounds must be int")
	}
	return from.Int(), to.Int(), nil
}

// runForLoop binds the loop variable once and rebinds it per element.
func (ev *evaluator) runForLoop(x *ast.For, n int64, element func(int64) Dynamic) error {
	mark := ev.scope.Len()
	defer ev.scope.Truncate(mark)
	ev.scope.Push(x.Name, Unit(), false)

	for i := int64(0); i < n; i++ {
		if err := ev.gov.tick(x.Pos()); err != nil {
			return err
		}
		// Re-fetch the slot: body blocks may have grown the scope's
		// backing array since the last iteration.
		slot, _, _ := ev.scope.slot(x.Name)
		slot.Release()
		*slot = element(i)
		v, err := ev.execBlock(x.Body)
		v.Release()
		switch err.(type) {
		case nil:
		case breakSignal:
			return nil
		case continueSignal:
		default:
			return err
		}
	}
	return nil
}

// ---------------------------------------------------------------------------
// Assignment
// ---------------------------------------------------------------------------

func (ev *evaluator) evalAssign(x *ast.Assign) error {
	rhs, err := ev.evalExpr(x.RHS)
	if err != nil {
		return err
	}
	defer rhs.Release()

	op, compound := compoundOps[x.Op]
	return ev.withLValue(x.LHS, !compound, func(slot *Dynamic) error {
		if !compound {
			old := *slot
			*slot = rhs.Clone()
			old.Release()
			return nil
		}
		// Compound assignment desugars to the registry-resolved operator
		// applied to the current value, then a write back.
		res, err := ev.callOperator(op, slot, &rhs, x.Position)
		if err != nil {
			return err
		}
		old := *slot
		*slot = res
		old.Release()
		return nil
	})
}

// withLValue resolves an lvalue chain to live storage and applies f to
// it. Map entries are copied out and written back because Go map values
// are not addressable. When create is set, a missing map key is brought
// into existence first (plain `=` into a fresh property).
func (ev *evaluator) withLValue(e ast.Expr, create bool, f func(slot *Dynamic) error) error {
	switch x := e.(type) {
	case *ast.Ident:
		if x.Name == "this" && ev.this != nil {
			return f(ev.this)
		}
		slot, constant, found := ev.scope.slot(x.Name)
		if !found {
			return NewError(VariableNotFound, x.Position, "variable not found: %s", x.Name)
		}
		if constant {
			return NewError(AssignmentToConstant, x.Position, "cannot assign to constant: %s", x.Name)
		}
		return f(slot)

	case *ast.Index:
		idx, err := ev.evalExpr(x.Idx)
		if err != nil {
			return err
		}
		defer idx.Release()
		return ev.withLValueBase(x.Target, func(base *Dynamic) error {
			switch base.Tag() {
			case TagArray:
				if idx.Tag() != TagInt {
					return NewError(TypeMismatch, x.Idx.Pos(), "array index must be int, got %s", idx.TypeName())
				}
				sa := base.mutArray()
				i := idx.Int()
				if i < 0 || i >= int64(len(sa.elems)) {
					return NewError(IndexOutOfBounds, x.Position, "index %d out of bounds for array of length %d", i, len(sa.elems))
				}
				return f(&sa.elems[i])
			case TagMap:
				if idx.Tag() != TagString {
					return NewError(TypeMismatch, x.Idx.Pos(), "map key must be string, got %s", idx.TypeName())
				}
				return ev.withMapEntry(base, idx.Str(), create, x.Position, f)
			default:
				return NewError(TypeMismatch, x.Position, "cannot index-assign a %s", base.TypeName())
			}
		})

	case *ast.Prop:
		return ev.withLValueBase(x.Target, func(base *Dynamic) error {
			if base.Tag() != TagMap {
				return NewError(TypeMismatch, x.Position, "cannot access property %q of a %s", x.Name, base.TypeName())
			}
			return ev.withMapEntry(base, x.Name, create, x.Position, f)
		})

	default:
		return NewError(TypeMismatch, e.Pos(), "invalid assignment target")
	}
}

// withLValueBase resolves the container an lvalue writes into. A
// container that is itself a transient expression result (for example a
// call return) is mutated as an owned temporary and dropped, matching
// the aliasing rules for transients.
func (ev *evaluator) withLValueBase(e ast.Expr, f func(base *Dynamic) error) error {
	switch e.(type) {
	case *ast.Ident, *ast.Index, *ast.Prop:
		return ev.withLValue(e, false, f)
	default:
		tmp, err := ev.evalExpr(e)
		if err != nil {
			return err
		}
		defer tmp.Release()
		return f(&tmp)
	}
}

// withMapEntry gives f a mutable slot for one map entry, writing the
// entry back afterward.
func (ev *evaluator) withMapEntry(base *Dynamic, key string, create bool, pos ast.Position, f func(slot *Dynamic) error) error {
	sm := base.mutMap()
	entry, ok := sm.entries[key]
	if !ok {
		if !create {
			return NewError(VariableNotFound, pos, "property not found: %s", key)
		}
		if err := ev.gov.CheckMapLen(len(sm.entries)+1, pos); err != nil {
			return err
		}
		entry = Unit()
	}
	err := f(&entry)
	sm.entries[key] = entry
	return err
}

// ---------------------------------------------------------------------------
// Expressions
// ---------------------------------------------------------------------------

func (ev *evaluator) evalExpr(e ast.Expr) (Dynamic, error) {
	if err := ev.gov.enterExpr(e.Pos()); err != nil {
		return Unit(), err
	}
	defer ev.gov.leaveExpr()

	switch x := e.(type) {
	case *ast.UnitLit:
		return Unit(), nil
	case *ast.BoolLit:
		return Bool(x.Value), nil
	case *ast.IntLit:
		// Literals folded by the optimizer land here too, so the width
		// check keeps folding transparent at 32-bit integer width.
		if ev.engine.cfg.IntWidth == 32 && (x.Value < math.MinInt32 || x.Value > math.MaxInt32) {
			return Unit(), NewError(ArithmeticError, x.Position, "integer overflow: %d exceeds 32-bit range", x.Value)
		}
		return Int(x.Value), nil
	case *ast.FloatLit:
		if ev.engine.cfg.DisableFloat {
			return Unit(), NewError(TypeMismatch, x.Position, "float support is disabled")
		}
		return Float(x.Value), nil
	case *ast.CharLit:
		return Char(x.Value), nil
	case *ast.StringLit:
		if err := ev.gov.CheckStringLen(len(x.Value), x.Position); err != nil {
			return Unit(), err
		}
		return Str(x.Value), nil

	case *ast.Ident:
		if x.Name == "this" {
			if ev.this == nil {
				return Unit(), NewError(VariableNotFound, x.Position, "'this' is not bound here")
			}
			return ev.this.Clone(), nil
		}
		v, ok := ev.scope.Get(x.Name)
		if !ok {
			return Unit(), NewError(VariableNotFound, x.Position, "variable not found: %s", x.Name)
		}
		return v, nil

	case *ast.ArrayLit:
		if err := ev.gov.CheckArrayLen(len(x.Elems), x.Position); err != nil {
			return Unit(), err
		}
		elems := make([]Dynamic, 0, len(x.Elems))
		for _, el := range x.Elems {
			v, err := ev.evalExpr(el)
			if err != nil {
				for i := range elems {
					elems[i].Release()
				}
				return Unit(), err
			}
			elems = append(elems, v)
		}
		return NewArray(elems), nil

	case *ast.MapLit:
		if err := ev.gov.CheckMapLen(len(x.Keys), x.Position); err != nil {
			return Unit(), err
		}
		entries := make(map[string]Dynamic, len(x.Keys))
		for i, k := range x.Keys {
			v, err := ev.evalExpr(x.Values[i])
			if err != nil {
				for _, e := range entries {
					e.Release()
				}
				return Unit(), err
			}
			if old, ok := entries[k]; ok {
				old.Release()
			}
			entries[k] = v
		}
		return NewMap(entries), nil

	case *ast.Unary:
		v, err := ev.evalExpr(x.X)
		if err != nil {
			return Unit(), err
		}
		defer v.Release()
		return ev.callOperator(x.Op, &v, nil, x.Position)

	case *ast.Binary:
		return ev.evalBinary(x)

	case *ast.Range:
		return Unit(), NewError(TypeMismatch, x.Position, "a range is only usable as a for-loop iterable")

	case *ast.Call:
		return ev.evalCall(x)

	case *ast.MethodCall:
		return ev.evalMethodCall(x)

	case *ast.Prop:
		v, err := ev.evalExpr(x.Target)
		if err != nil {
			return Unit(), err
		}
		defer v.Release()
		if v.Tag() != TagMap {
			return Unit(), NewError(TypeMismatch, x.Position, "cannot access property %q of a %s", x.Name, v.TypeName())
		}
		entry, ok := v.mapEntries()[x.Name]
		if !ok {
			return Unit(), NewError(VariableNotFound, x.Position, "property not found: %s", x.Name)
		}
		return entry.Clone(), nil

	case *ast.Index:
		return ev.evalIndex(x)

	default:
		return Unit(), NewError(TypeMismatch, e.Pos(), "unsupported expression")
	}
}

func (ev *evaluator) evalIndex(x *ast.Index) (Dynamic, error) {
	target, err := ev.evalExpr(x.Target)
	if err != nil {
		return Unit(), err
	}
	defer target.Release()
	idx, err := ev.evalExpr(x.Idx)
	if err != nil {
		return Unit(), err
	}
	defer idx.Release()

	switch target.Tag() {
	case TagArray:
		if idx.Tag() != TagInt {
			return Unit(), NewError(TypeMismatch, x.Idx.Pos(), "array index must be int, got %s", idx.TypeName())
		}
		elems := target.arrayElems()
		i := idx.Int()
		if i < 0 || i >= int64(len(elems)) {
			return Unit(), NewError(IndexOutOfBounds, x.Position, "index %d out of bounds for array of length %d", i, len(elems))
		}
		return elems[i].Clone(), nil
	case TagString:
		if idx.Tag() != TagInt {
			return Unit(), NewError(TypeMismatch, x.Idx.Pos(), "string index must be int, got %s", idx.TypeName())
		}
		runes := []rune(target.Str())
		i := idx.Int()
		if i < 0 || i >= int64(len(runes)) {
			return Unit(), NewError(IndexOutOfBounds, x.Position, "index %d out of bounds for string of length %d", i, len(runes))
		}
		return Char(runes[i]), nil
	case TagMap:
		if idx.Tag() != TagString {
			return Unit(), NewError(TypeMismatch, x.Idx.Pos(), "map key must be string, got %s", idx.TypeName())
		}
		entry, ok := target.mapEntries()[idx.Str()]
		if !ok {
			// A missing key indexes to unit; property syntax is the
			// strict form.
			return Unit(), nil
		}
		return entry.Clone(), nil
	default:
		return Unit(), NewError(TypeMismatch, x.Position, "cannot index a %s", target.TypeName())
	}
}

// ---------------------------------------------------------------------------
// Operators
// ---------------------------------------------------------------------------

var comparisonOps = map[string]bool{
	"==": true, "!=": true, "<": true, "<=": true, ">": true, ">=": true,
}

func (ev *evaluator) evalBinary(x *ast.Binary) (Dynamic, error) {
	// Short-circuit forms never evaluate the right operand's side
	// effects once the left decides the result.
	if x.Op == "&&" || x.Op == "||" {
		left, err := ev.evalCondition(x.X)
		if err != nil {
			return Unit(), err
		}
		if x.Op == "&&" && !left {
			return Bool(false), nil
		}
		if x.Op == "||" && left {
			return Bool(true), nil
		}
		right, err := ev.evalCondition(x.Y)
		if err != nil {
			return Unit(), err
		}
		return Bool(right), nil
	}

	left, err := ev.evalExpr(x.X)
	if err != nil {
		return Unit(), err
	}
	defer left.Release()
	right, err := ev.evalExpr(x.Y)
	if err != nil {
		return Unit(), err
	}
	defer right.Release()

	// `value in collection` asks the collection, so it dispatches as
	// contains(collection, value).
	if x.Op == "in" {
		return ev.callOperator("contains", &right, &left, x.Position)
	}

	res, err := ev.callOperator(x.Op, &left, &right, x.Position)
	if err == nil {
		return res, nil
	}
	// Comparison across unrelated variants is defined, not an error:
	// only != holds. This covers native objects without an equality
	// capability too.
	if ee, ok := err.(*Error); ok && ee.Kind == FunctionNotFound && comparisonOps[x.Op] {
		return Bool(x.Op == "!="), nil
	}
	return Unit(), err
}

// callOperator resolves an operator token through the registry, exactly
// like a named function call.
func (ev *evaluator) callOperator(op string, a, b *Dynamic, pos ast.Position) (Dynamic, error) {
	args := []*Dynamic{a}
	if b != nil {
		args = append(args, b)
	}
	return ev.callResolved(op, args, nil, pos)
}

// ---------------------------------------------------------------------------
// Calls
// ---------------------------------------------------------------------------

func (ev *evaluator) evalCall(x *ast.Call) (Dynamic, error) {
	// A variable holding a function pointer shadows registry functions
	// of the same name: late binding happens through the pointer.
	if v, ok := ev.scope.Get(x.Name); ok {
		if v.Tag() == TagFnPtr {
			defer v.Release()
			return ev.callFnPtr(v.FnPtr(), nil, x.Args, x.Position)
		}
		v.Release()
	}

	ptrs, release, err := ev.evalArgs(x.Args, nil)
	if err != nil {
		return Unit(), err
	}
	defer release()
	return ev.callResolved(x.Name, ptrs, nil, x.Position)
}

// evalArgs evaluates call arguments left to right. A leading plain
// variable reference is passed as its live scope slot so a native with a
// mutable first parameter can mutate it; every computed argument is an
// owned temporary released by the returned func. recvPtr, when non-nil,
// is prepended untouched.
func (ev *evaluator) evalArgs(exprs []ast.Expr, recvPtr *Dynamic) ([]*Dynamic, func(), error) {
	owned := make([]Dynamic, 0, len(exprs))
	ptrs := make([]*Dynamic, 0, len(exprs)+1)
	if recvPtr != nil {
		ptrs = append(ptrs, recvPtr)
	}
	release := func() {
		for i := range owned {
			owned[i].Release()
		}
	}
	for i, ae := range exprs {
		// First-position plain variables alias live storage; transient
		// expression results never do.
		if i == 0 && recvPtr == nil {
			if id, ok := ae.(*ast.Ident); ok && !(id.Name == "this" && ev.this == nil) {
				if id.Name == "this" {
					ptrs = append(ptrs, ev.this)
					continue
				}
				slot, constant, found := ev.scope.slot(id.Name)
				if found && !constant {
					ptrs = append(ptrs, slot)
					continue
				}
			}
		}
		v, err := ev.evalExpr(ae)
		if err != nil {
			release()
			return nil, nil, err
		}
		owned = append(owned, v)
		ptrs = append(ptrs, &owned[len(owned)-1])
	}
	return ptrs, release, nil
}

// callResolved dispatches a call through the registry. Argument pointers
// are borrows: the callee never releases them.
func (ev *evaluator) callResolved(name string, args []*Dynamic, this *Dynamic, pos ast.Position) (Dynamic, error) {
	if err := ev.gov.tick(pos); err != nil {
		return Unit(), err
	}
	if err := ev.gov.enterCall(pos); err != nil {
		return Unit(), err
	}
	defer ev.gov.leaveCall()

	tags := make([]Tag, len(args))
	for i, a := range args {
		tags[i] = a.Tag()
	}
	entry, rerr := resolve(ev.engine.registry, ev.fns, name, tags, pos)
	if rerr != nil {
		return Unit(), rerr
	}

	if entry.native != nil {
		rc := &RunContext{Engine: ev.engine, Gov: ev.gov, Pos: pos}
		ret, err := entry.native(rc, args)
		if err != nil {
			return Unit(), wrapHostError(err, pos)
		}
		return ret, nil
	}

	return ev.callScriptFn(entry.script, args, this)
}

// callScriptFn executes a script function body in a fresh scope seeded
// with the bound parameters. Caller locals are invisible to the callee.
func (ev *evaluator) callScriptFn(fn *ScriptFn, args []*Dynamic, this *Dynamic) (Dynamic, error) {
	callerScope, callerThis := ev.scope, ev.this
	ev.scope = NewScope()
	ev.this = this
	defer func() {
		ev.scope.Truncate(0)
		ev.scope = callerScope
		ev.this = callerThis
	}()

	for i, p := range fn.Params {
		ev.scope.Push(p, args[i].Clone(), false)
	}

	v, err := ev.execStmts(fn.Body.Stmts)
	switch sig := err.(type) {
	case nil:
		return v, nil
	case returnSignal:
		return sig.value, nil
	default:
		return Unit(), err
	}
}

// callFnPtr invokes a function pointer: curried arguments first, then
// call-site arguments, resolved against the registry now (late binding).
func (ev *evaluator) callFnPtr(fp *FnPtr, this *Dynamic, argExprs []ast.Expr, pos ast.Position) (Dynamic, error) {
	curried := make([]Dynamic, len(fp.Curry))
	ptrs := make([]*Dynamic, 0, len(fp.Curry)+len(argExprs))
	for i, c := range fp.Curry {
		curried[i] = c.Clone()
		ptrs = append(ptrs, &curried[i])
	}
	defer func() {
		for i := range curried {
			curried[i].Release()
		}
	}()

	morePtrs, release, err := ev.evalArgsNoAlias(argExprs)
	if err != nil {
		return Unit(), err
	}
	defer release()
	ptrs = append(ptrs, morePtrs...)

	return ev.callResolved(fp.Name, ptrs, this, pos)
}

// evalArgsNoAlias evaluates arguments as owned temporaries only.
func (ev *evaluator) evalArgsNoAlias(exprs []ast.Expr) ([]*Dynamic, func(), error) {
	owned := make([]Dynamic, 0, len(exprs))
	ptrs := make([]*Dynamic, 0, len(exprs))
	release := func() {
		for i := range owned {
			owned[i].Release()
		}
	}
	for _, ae := range exprs {
		v, err := ev.evalExpr(ae)
		if err != nil {
			release()
			return nil, nil, err
		}
		owned = append(owned, v)
		ptrs = append(ptrs, &owned[len(owned)-1])
	}
	return ptrs, release, nil
}

// ---------------------------------------------------------------------------
// Method dispatch
// ---------------------------------------------------------------------------

func (ev *evaluator) evalMethodCall(x *ast.MethodCall) (Dynamic, error) {
	return ev.withReceiver(x.Target, func(recv *Dynamic, transient bool) (Dynamic, error) {
		// Function-pointer surface: call and curry work on the pointer
		// itself, before any property lookup.
		if recv.Tag() == TagFnPtr {
			switch x.Name {
			case "call":
				return ev.callFnPtr(recv.FnPtr(), nil, x.Args, x.Position)
			case "curry":
				return ev.curryFnPtr(recv.FnPtr(), x.Args)
			}
		}

		// OOP dispatch: a map property holding a function pointer is a
		// method; the container becomes the callee's `this`.
		if recv.Tag() == TagMap {
			if entry, ok := recv.mapEntries()[x.Name]; ok && entry.Tag() == TagFnPtr {
				fp := entry.FnPtr()
				// Mutations through `this` reach the caller's container
				// only when the caller holds the sole reference at call
				// time; otherwise a private copy is mutated and the
				// change is lost.
				if transient || recv.RefCount() > 1 {
					tmp := recv.Clone()
					defer tmp.Release()
					return ev.callFnPtr(fp, &tmp, x.Args, x.Position)
				}
				return ev.callFnPtr(fp, recv, x.Args, x.Position)
			}
		}

		// Plain registry method call: the receiver is the first
		// argument. Method syntax passes the call-site container
		// directly (no clone) unless the receiver is transient.
		ptrs, release, err := ev.evalArgs(x.Args, recv)
		if err != nil {
			return Unit(), err
		}
		defer release()
		return ev.callResolved(x.Name, ptrs, nil, x.Position)
	})
}

func (ev *evaluator) curryFnPtr(fp *FnPtr, argExprs []ast.Expr) (Dynamic, error) {
	curry := make([]Dynamic, 0, len(fp.Curry)+len(argExprs))
	for _, c := range fp.Curry {
		curry = append(curry, c.Clone())
	}
	for _, ae := range argExprs {
		v, err := ev.evalExpr(ae)
		if err != nil {
			for i := range curry {
				curry[i].Release()
			}
			return Unit(), err
		}
		curry = append(curry, v)
	}
	return NewFnPtr(fp.Name, curry), nil
}

// withReceiver resolves the receiver of a method call. Plain variables
// and property chains alias live storage; an indexing expression or any
// other computed result is an owned temporary, so mutation through it
// is silently discarded (the transient-result rule).
func (ev *evaluator) withReceiver(e ast.Expr, f func(recv *Dynamic, transient bool) (Dynamic, error)) (Dynamic, error) {
	switch x := e.(type) {
	case *ast.Ident:
		if x.Name == "this" && ev.this != nil {
			return f(ev.this, false)
		}
		slot, constant, found := ev.scope.slot(x.Name)
		if !found {
			return Unit(), NewError(VariableNotFound, x.Position, "variable not found: %s", x.Name)
		}
		if constant {
			tmp := slot.Clone()
			defer tmp.Release()
			return f(&tmp, true)
		}
		return f(slot, false)

	case *ast.Prop:
		return ev.withReceiver(x.Target, func(base *Dynamic, transient bool) (Dynamic, error) {
			if base.Tag() != TagMap {
				return Unit(), NewError(TypeMismatch, x.Position, "cannot access property %q of a %s", x.Name, base.TypeName())
			}
			// Unshare the base before handing out the entry: mutation
			// through a property chain must stay invisible to other
			// references to the map. The entry slot is copied out and
			// written back, as in withMapEntry.
			sm := base.mutMap()
			entry, ok := sm.entries[x.Name]
			if !ok {
				return Unit(), NewError(VariableNotFound, x.Position, "property not found: %s", x.Name)
			}
			v, err := f(&entry, transient)
			sm.entries[x.Name] = entry
			return v, err
		})

	default:
		tmp, err := ev.evalExpr(e)
		if err != nil {
			return Unit(), err
		}
		defer tmp.Release()
		return f(&tmp, true)
	}
}
