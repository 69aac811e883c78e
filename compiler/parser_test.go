package compiler

import (
	"testing"

	"github.com/rove-lang/rove/ast"
)

func parseOne(t *testing.T, src string) ast.Stmt {
	t.Helper()
	prog, err := Parse(src)
	if err != nil {
		t.Fatalf("parse %q: %v", src, err)
	}
	if len(prog.Stmts) != 1 {
		t.Fatalf("parse %q: expected 1 statement, got %d", src, len(prog.Stmts))
	}
	return prog.Stmts[0]
}

func TestParsePrecedence(t *testing.T) {
	stmt := parseOne(t, "1 + 2 * 3")
	bin := stmt.(*ast.ExprStmt).X.(*ast.Binary)
	if bin.Op != "+" {
		t.Fatalf("top operator: %s", bin.Op)
	}
	inner := bin.Y.(*ast.Binary)
	if inner.Op != "*" {
		t.Errorf("inner operator: %s", inner.Op)
	}
}

func TestParseLogicalBindsLooserThanComparison(t *testing.T) {
	stmt := parseOne(t, "a == 1 && b < 2")
	bin := stmt.(*ast.ExprStmt).X.(*ast.Binary)
	if bin.Op != "&&" {
		t.Fatalf("top operator: %s", bin.Op)
	}
	if l := bin.X.(*ast.Binary); l.Op != "==" {
		t.Errorf("left: %s", l.Op)
	}
	if r := bin.Y.(*ast.Binary); r.Op != "<" {
		t.Errorf("right: %s", r.Op)
	}
}

func TestParseAssignmentForms(t *testing.T) {
	stmt := parseOne(t, "x = 1")
	a := stmt.(*ast.Assign)
	if a.Op != "=" {
		t.Errorf("op: %s", a.Op)
	}
	if _, ok := a.LHS.(*ast.Ident); !ok {
		t.Errorf("LHS: %T", a.LHS)
	}

	stmt = parseOne(t, "xs[0] += 2")
	a = stmt.(*ast.Assign)
	if a.Op != "+=" {
		t.Errorf("op: %s", a.Op)
	}
	if _, ok := a.LHS.(*ast.Index); !ok {
		t.Errorf("LHS: %T", a.LHS)
	}

	stmt = parseOne(t, "obj.field = 3")
	a = stmt.(*ast.Assign)
	if _, ok := a.LHS.(*ast.Prop); !ok {
		t.Errorf("LHS: %T", a.LHS)
	}

	if _, err := Parse("1 + 2 = 3"); err == nil {
		t.Error("assignment to a computed expression must not parse")
	}
}

func TestParsePostfixChain(t *testing.T) {
	stmt := parseOne(t, "a[0].items.push(1)")
	mc := stmt.(*ast.ExprStmt).X.(*ast.MethodCall)
	if mc.Name != "push" || len(mc.Args) != 1 {
		t.Fatalf("method: %s/%d", mc.Name, len(mc.Args))
	}
	prop := mc.Target.(*ast.Prop)
	if prop.Name != "items" {
		t.Errorf("property: %s", prop.Name)
	}
	if _, ok := prop.Target.(*ast.Index); !ok {
		t.Errorf("base: %T", prop.Target)
	}
}

func TestParseEmptyArgListAsUnit(t *testing.T) {
	stmt := parseOne(t, "f()")
	call := stmt.(*ast.ExprStmt).X.(*ast.Call)
	if call.Name != "f" || len(call.Args) != 0 {
		t.Errorf("call: %s/%d", call.Name, len(call.Args))
	}

	stmt = parseOne(t, "x.m()")
	mc := stmt.(*ast.ExprStmt).X.(*ast.MethodCall)
	if mc.Name != "m" || len(mc.Args) != 0 {
		t.Errorf("method: %s/%d", mc.Name, len(mc.Args))
	}
}

func TestParseFnDef(t *testing.T) {
	stmt := parseOne(t, "fn add(a, b) { a + b }")
	fd := stmt.(*ast.FnDef)
	if fd.Name != "add" || len(fd.Params) != 2 {
		t.Fatalf("fn: %s/%d", fd.Name, len(fd.Params))
	}
	if len(fd.Body.Stmts) != 1 {
		t.Errorf("body statements: %d", len(fd.Body.Stmts))
	}

	stmt = parseOne(t, "fn nullary() { 1 }")
	fd = stmt.(*ast.FnDef)
	if len(fd.Params) != 0 {
		t.Errorf("nullary params: %d", len(fd.Params))
	}
}

func TestParseLoopForms(t *testing.T) {
	stmt := parseOne(t, "loop { }")
	w := stmt.(*ast.While)
	if w.Cond != nil {
		t.Error("loop must have a nil condition")
	}

	stmt = parseOne(t, "while x { }")
	w = stmt.(*ast.While)
	if w.Cond == nil {
		t.Error("while must keep its condition")
	}

	stmt = parseOne(t, "for i in 0..10 { }")
	fr := stmt.(*ast.For)
	if fr.Name != "i" {
		t.Errorf("loop variable: %s", fr.Name)
	}
	if _, ok := fr.Iter.(*ast.Range); !ok {
		t.Errorf("iterable: %T", fr.Iter)
	}
}

func TestParseIfElseChain(t *testing.T) {
	stmt := parseOne(t, "if a { } else if b { } else { }")
	i := stmt.(*ast.If)
	elseIf, ok := i.Else.(*ast.If)
	if !ok {
		t.Fatalf("else-if: %T", i.Else)
	}
	if _, ok := elseIf.Else.(*ast.Block); !ok {
		t.Errorf("final else: %T", elseIf.Else)
	}
}

func TestParseMapLiteral(t *testing.T) {
	stmt := parseOne(t, `#{ a: 1, "b c": 2 }`)
	m := stmt.(*ast.ExprStmt).X.(*ast.MapLit)
	if len(m.Keys) != 2 || m.Keys[0] != "a" || m.Keys[1] != "b c" {
		t.Errorf("keys: %v", m.Keys)
	}
}

func TestParseTryCatch(t *testing.T) {
	stmt := parseOne(t, "try { f() } catch (e) { g() }")
	tc := stmt.(*ast.TryCatch)
	if tc.ErrVar != "e" {
		t.Errorf("catch variable: %s", tc.ErrVar)
	}

	stmt = parseOne(t, "try { f() } catch { }")
	tc = stmt.(*ast.TryCatch)
	if tc.ErrVar != "" {
		t.Errorf("bare catch variable: %q", tc.ErrVar)
	}
}

func TestParseErrors(t *testing.T) {
	bad := []string{
		"let = 1",
		"fn () { }",
		"if x { ",
		"try { } ",
		"for in xs { }",
		"#{ 1: 2 }",
	}
	for _, src := range bad {
		if _, err := Parse(src); err == nil {
			t.Errorf("%q: expected a parse error", src)
		}
	}
}

func TestParsePositions(t *testing.T) {
	prog, err := Parse("let a = 1;\nlet b = 2;")
	if err != nil {
		t.Fatal(err)
	}
	if p := prog.Stmts[0].Pos(); p.Line != 1 {
		t.Errorf("first statement line: %d", p.Line)
	}
	if p := prog.Stmts[1].Pos(); p.Line != 2 {
		t.Errorf("second statement line: %d", p.Line)
	}
}

func TestParseMembership(t *testing.T) {
	stmt := parseOne(t, "x + 1 in xs")
	bin, ok := stmt.(*ast.ExprStmt).X.(*ast.Binary)
	if !ok || bin.Op != "in" {
		t.Fatalf("expected `in` at the top, got %#v", stmt)
	}
	if inner, ok := bin.X.(*ast.Binary); !ok || inner.Op != "+" {
		t.Errorf("`in` must bind looser than +, got %#v", bin.X)
	}
}
