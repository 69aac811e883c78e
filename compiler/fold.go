package compiler

import (
	"github.com/rove-lang/rove/ast"
)

// ---------------------------------------------------------------------------
// Optimizer: constant folding and dead-branch pruning
// ---------------------------------------------------------------------------
//
// The optimizer is a pure AST-to-AST transform. It must be semantically
// transparent: on a script that evaluates without error, an optimized tree
// produces exactly the observable behavior of the original. Subexpressions
// whose evaluation could fail (division, modulo, overflowing arithmetic)
// are only folded at OptimizeFull, and even then a failing fold is left
// for the evaluator rather than turned into a compile-time error.

// OptLevel selects how aggressive the optimizer pass is.
type OptLevel int

const (
	// OptimizeNone disables the pass entirely.
	OptimizeNone OptLevel = iota
	// OptimizeSimple folds literal subexpressions that cannot fail and
	// prunes statically-decided branches.
	OptimizeSimple
	// OptimizeFull additionally folds failable operators when the fold
	// provably succeeds (e.g. division by a nonzero literal).
	OptimizeFull
)

// Optimize returns an optimized copy of prog. The input tree is not
// modified. At OptimizeNone the input is returned unchanged.
func Optimize(prog *ast.Program, level OptLevel) *ast.Program {
	if level == OptimizeNone || prog == nil {
		return prog
	}
	f := &folder{level: level}
	out := &ast.Program{}
	for _, s := range prog.Stmts {
		if os := f.stmt(s); os != nil {
			out.Stmts = append(out.Stmts, os)
		}
	}
	out.Stmts = dropDeadExprs(out.Stmts)
	return out
}

// dropDeadExprs removes pure expression statements whose value is
// discarded. The final statement is kept: it carries the block's value.
func dropDeadExprs(stmts []ast.Stmt) []ast.Stmt {
	out := stmts[:0]
	for i, s := range stmts {
		if es, ok := s.(*ast.ExprStmt); ok && i < len(stmts)-1 && ast.IsPure(es.X) {
			continue
		}
		out = append(out, s)
	}
	return out
}

type folder struct {
	level OptLevel
}

func (f *folder) block(b *ast.Block) *ast.Block {
	if b == nil {
		return nil
	}
	out := &ast.Block{Position: b.Position}
	for _, s := range b.Stmts {
		if os := f.stmt(s); os != nil {
			out.Stmts = append(out.Stmts, os)
		}
	}
	out.Stmts = dropDeadExprs(out.Stmts)
	return out
}

func (f *folder) stmt(s ast.Stmt) ast.Stmt {
	switch x := s.(type) {
	case *ast.Let:
		if x.Init != nil {
			return &ast.Let{Position: x.Position, Name: x.Name, Init: f.expr(x.Init), Const: x.Const}
		}
		return x
	case *ast.Assign:
		return &ast.Assign{Position: x.Position, LHS: f.expr(x.LHS), Op: x.Op, RHS: f.expr(x.RHS)}
	case *ast.ExprStmt:
		return &ast.ExprStmt{X: f.expr(x.X)}
	case *ast.Block:
		return f.block(x)
	case *ast.If:
		cond := f.expr(x.Cond)
		// A literal condition decides the branch at compile time. The
		// kept branch stays a block so its locals remain scoped.
		if b, ok := cond.(*ast.BoolLit); ok {
			if b.Value {
				return f.block(x.Then)
			}
			if x.Else != nil {
				return f.stmt(x.Else)
			}
			return nil
		}
		out := &ast.If{Position: x.Position, Cond: cond, Then: f.block(x.Then)}
		if x.Else != nil {
			out.Else = f.stmt(x.Else)
		}
		return out
	case *ast.While:
		if x.Cond == nil {
			return &ast.While{Position: x.Position, Body: f.block(x.Body)}
		}
		cond := f.expr(x.Cond)
		if b, ok := cond.(*ast.BoolLit); ok && !b.Value {
			return nil // while false { } never runs
		}
		return &ast.While{Position: x.Position, Cond: cond, Body: f.block(x.Body)}
	case *ast.For:
		return &ast.For{Position: x.Position, Name: x.Name, Iter: f.expr(x.Iter), Body: f.block(x.Body)}
	case *ast.Return:
		if x.X != nil {
			return &ast.Return{Position: x.Position, X: f.expr(x.X)}
		}
		return x
	case *ast.FnDef:
		return &ast.FnDef{Position: x.Position, Name: x.Name, Params: x.Params, Body: f.block(x.Body)}
	case *ast.TryCatch:
		return &ast.TryCatch{Position: x.Position, Body: f.block(x.Body), ErrVar: x.ErrVar, Catch: f.block(x.Catch)}
	default:
		return s
	}
}

func (f *folder) expr(e ast.Expr) ast.Expr {
	switch x := e.(type) {
	case *ast.Unary:
		inner := f.expr(x.X)
		if folded := foldUnary(x, inner); folded != nil {
			return folded
		}
		return &ast.Unary{Position: x.Position, Op: x.Op, X: inner}
	case *ast.Binary:
		l := f.expr(x.X)
		r := f.expr(x.Y)
		if folded := f.foldBinary(x, l, r); folded != nil {
			return folded
		}
		return &ast.Binary{Position: x.Position, Op: x.Op, X: l, Y: r}
	case *ast.Range:
		return &ast.Range{Position: x.Position, From: f.expr(x.From), To: f.expr(x.To)}
	case *ast.ArrayLit:
		out := &ast.ArrayLit{Position: x.Position}
		for _, el := range x.Elems {
			out.Elems = append(out.Elems, f.expr(el))
		}
		return out
	case *ast.MapLit:
		out := &ast.MapLit{Position: x.Position, Keys: x.Keys}
		for _, v := range x.Values {
			out.Values = append(out.Values, f.expr(v))
		}
		return out
	case *ast.Call:
		out := &ast.Call{Position: x.Position, Name: x.Name}
		for _, a := range x.Args {
			out.Args = append(out.Args, f.expr(a))
		}
		return out
	case *ast.MethodCall:
		out := &ast.MethodCall{Position: x.Position, Target: f.expr(x.Target), Name: x.Name}
		for _, a := range x.Args {
			out.Args = append(out.Args, f.expr(a))
		}
		return out
	case *ast.Prop:
		return &ast.Prop{Position: x.Position, Target: f.expr(x.Target), Name: x.Name}
	case *ast.Index:
		return &ast.Index{Position: x.Position, Target: f.expr(x.Target), Idx: f.expr(x.Idx)}
	default:
		return e
	}
}

func foldUnary(u *ast.Unary, x ast.Expr) ast.Expr {
	switch u.Op {
	case "-":
		if i, ok := x.(*ast.IntLit); ok && i.Value != -i.Value {
			return &ast.IntLit{Position: u.Position, Value: -i.Value}
		}
		if fl, ok := x.(*ast.FloatLit); ok {
			return &ast.FloatLit{Position: u.Position, Value: -fl.Value}
		}
	case "!":
		if b, ok := x.(*ast.BoolLit); ok {
			return &ast.BoolLit{Position: u.Position, Value: !b.Value}
		}
	}
	return nil
}

// foldBinary folds a binary operator over literal operands, or returns
// nil when the expression must be left for the evaluator. Mixed numeric
// variants are never folded: int/float pairs resolve through the registry
// at runtime, where an explicit overload may exist.
func (f *folder) foldBinary(b *ast.Binary, l, r ast.Expr) ast.Expr {
	pos := b.Position

	// Short-circuit operators: `false && x` never evaluates x, so the
	// fold cannot lose a side effect. `true && x` keeps x only when x is
	// a literal bool, since a non-bool x must still raise TypeMismatch.
	if b.Op == "&&" || b.Op == "||" {
		lb, lok := l.(*ast.BoolLit)
		if !lok {
			return nil
		}
		if b.Op == "&&" && !lb.Value {
			return &ast.BoolLit{Position: pos, Value: false}
		}
		if b.Op == "||" && lb.Value {
			return &ast.BoolLit{Position: pos, Value: true}
		}
		if rb, rok := r.(*ast.BoolLit); rok {
			return &ast.BoolLit{Position: pos, Value: rb.Value}
		}
		return nil
	}

	switch lv := l.(type) {
	case *ast.IntLit:
		rv, ok := r.(*ast.IntLit)
		if !ok {
			return nil
		}
		return f.foldIntPair(pos, b.Op, lv.Value, rv.Value)
	case *ast.FloatLit:
		rv, ok := r.(*ast.FloatLit)
		if !ok {
			return nil
		}
		return foldFloatPair(pos, b.Op, lv.Value, rv.Value)
	case *ast.StringLit:
		rv, ok := r.(*ast.StringLit)
		if !ok {
			return nil
		}
		return foldStringPair(pos, b.Op, lv.Value, rv.Value)
	case *ast.BoolLit:
		rv, ok := r.(*ast.BoolLit)
		if !ok {
			return nil
		}
		switch b.Op {
		case "==":
			return &ast.BoolLit{Position: pos, Value: lv.Value == rv.Value}
		case "!=":
			return &ast.BoolLit{Position: pos, Value: lv.Value != rv.Value}
		case "&":
			return &ast.BoolLit{Position: pos, Value: lv.Value && rv.Value}
		case "|":
			return &ast.BoolLit{Position: pos, Value: lv.Value || rv.Value}
		}
	}
	return nil
}

func (f *folder) foldIntPair(pos ast.Position, op string, a, b int64) ast.Expr {
	switch op {
	case "+":
		if c, ok := addCheck(a, b); ok {
			return &ast.IntLit{Position: pos, Value: c}
		}
	case "-":
		if c, ok := subCheck(a, b); ok {
			return &ast.IntLit{Position: pos, Value: c}
		}
	case "*":
		if c, ok := mulCheck(a, b); ok {
			return &ast.IntLit{Position: pos, Value: c}
		}
	case "/", "%":
		// Failable: only folded at OptimizeFull, and only when the fold
		// provably succeeds.
		if f.level < OptimizeFull || b == 0 {
			return nil
		}
		if a == -1<<63 && b == -1 {
			return nil
		}
		if op == "/" {
			return &ast.IntLit{Position: pos, Value: a / b}
		}
		return &ast.IntLit{Position: pos, Value: a % b}
	case "==":
		return &ast.BoolLit{Position: pos, Value: a == b}
	case "!=":
		return &ast.BoolLit{Position: pos, Value: a != b}
	case "<":
		return &ast.BoolLit{Position: pos, Value: a < b}
	case "<=":
		return &ast.BoolLit{Position: pos, Value: a <= b}
	case ">":
		return &ast.BoolLit{Position: pos, Value: a > b}
	case ">=":
		return &ast.BoolLit{Position: pos, Value: a >= b}
	}
	return nil
}

func foldFloatPair(pos ast.Position, op string, a, b float64) ast.Expr {
	switch op {
	case "+":
		return &ast.FloatLit{Position: pos, Value: a + b}
	case "-":
		return &ast.FloatLit{Position: pos, Value: a - b}
	case "*":
		return &ast.FloatLit{Position: pos, Value: a * b}
	case "/":
		return &ast.FloatLit{Position: pos, Value: a / b}
	case "==":
		return &ast.BoolLit{Position: pos, Value: a == b}
	case "!=":
		return &ast.BoolLit{Position: pos, Value: a != b}
	case "<":
		return &ast.BoolLit{Position: pos, Value: a < b}
	case "<=":
		return &ast.BoolLit{Position: pos, Value: a <= b}
	case ">":
		return &ast.BoolLit{Position: pos, Value: a > b}
	case ">=":
		return &ast.BoolLit{Position: pos, Value: a >= b}
	}
	return nil
}

func foldStringPair(pos ast.Position, op string, a, b string) ast.Expr {
	switch op {
	case "+":
		return &ast.StringLit{Position: pos, Value: a + b}
	case "==":
		return &ast.BoolLit{Position: pos, Value: a == b}
	case "!=":
		return &ast.BoolLit{Position: pos, Value: a != b}
	case "<":
		return &ast.BoolLit{Position: pos, Value: a < b}
	case "<=":
		return &ast.BoolLit{Position: pos, Value: a <= b}
	case ">":
		return &ast.BoolLit{Position: pos, Value: a > b}
	case ">=":
		return &ast.BoolLit{Position: pos, Value: a >= b}
	}
	return nil
}

// addCheck adds with overflow detection.
func addCheck(a, b int64) (int64, bool) {
	c := a + b
	if (a > 0 && b > 0 && c < 0) || (a < 0 && b < 0 && c >= 0) {
		return 0, false
	}
	return c, true
}

// subCheck subtracts with overflow detection.
func subCheck(a, b int64) (int64, bool) {
	c := a - b
	if (a >= 0 && b < 0 && c < 0) || (a < 0 && b > 0 && c >= 0) {
		return 0, false
	}
	return c, true
}

// mulCheck multiplies with overflow detection.
func mulCheck(a, b int64) (int64, bool) {
	if a == 0 || b == 0 {
		return 0, true
	}
	c := a * b
	if c/b != a {
		return 0, false
	}
	return c, true
}
