package vm

import (
	"testing"

	"github.com/rove-lang/rove/compiler"
)

func mustEval(t *testing.T, e *Engine, src string) Dynamic {
	t.Helper()
	v, err := e.Eval(src)
	if err != nil {
		t.Fatalf("eval %q: %v", src, err)
	}
	return v
}

func evalKind(t *testing.T, e *Engine, src string) ErrorKind {
	t.Helper()
	_, err := e.Eval(src)
	if err == nil {
		t.Fatalf("eval %q: expected error", src)
	}
	ee, ok := err.(*Error)
	if !ok {
		t.Fatalf("eval %q: expected *Error, got %T: %v", src, err, err)
	}
	return ee.Kind
}

func TestLiteralsAndLet(t *testing.T) {
	e := NewEngine(Config{})

	v := mustEval(t, e, "let a = 1; a += 2; a")
	if v.Tag() != TagInt || v.Int() != 3 {
		t.Errorf("expected 3, got %s", v.String())
	}

	v = mustEval(t, e, `let s = "he"; s += "llo"; s`)
	if v.Tag() != TagString || v.Str() != "hello" {
		t.Errorf("expected hello, got %s", v.String())
	}

	v = mustEval(t, e, "let b = true; !b")
	if v.Tag() != TagBool || v.Bool() {
		t.Errorf("expected false, got %s", v.String())
	}

	v = mustEval(t, e, "()")
	if !v.IsUnit() {
		t.Errorf("expected unit, got %s", v.String())
	}
}

func TestArithmetic(t *testing.T) {
	e := NewEngine(Config{})

	cases := []struct {
		src  string
		want int64
	}{
		{"1 + 2 * 3", 7},
		{"(1 + 2) * 3", 9},
		{"10 / 3", 3},
		{"10 % 3", 1},
		{"-5 + 2", -3},
		{"0x10 + 0b10", 18},
	}
	for _, c := range cases {
		v := mustEval(t, e, c.src)
		if v.Tag() != TagInt || v.Int() != c.want {
			t.Errorf("%q: expected %d, got %s", c.src, c.want, v.String())
		}
	}

	if k := evalKind(t, e, "1 / 0"); k != ArithmeticError {
		t.Errorf("division by zero: expected ArithmeticError, got %s", k)
	}
	if k := evalKind(t, e, "9223372036854775807 + 1"); k != ArithmeticError {
		t.Errorf("overflow: expected ArithmeticError, got %s", k)
	}
}

func TestNoNumericPromotion(t *testing.T) {
	e := NewEngine(Config{})

	// int + float has no builtin: resolution must fail, not coerce.
	if k := evalKind(t, e, "1 + 2.0"); k != FunctionNotFound {
		t.Errorf("expected FunctionNotFound, got %s", k)
	}

	// Cross-variant comparison is defined: == false, != true.
	v := mustEval(t, e, "1 == 1.0")
	if v.Bool() {
		t.Error("1 == 1.0 must be false")
	}
	v = mustEval(t, e, "1 != 1.0")
	if !v.Bool() {
		t.Error("1 != 1.0 must be true")
	}
	v = mustEval(t, e, `1 < "x"`)
	if v.Tag() != TagBool || v.Bool() {
		t.Error("cross-variant < must be false")
	}
}

func TestMixedPairOverloadWins(t *testing.T) {
	e := NewEngine(Config{})
	e.RegisterFn("+", []ParamPattern{ExactParam(TagInt), ExactParam(TagFloat)}, func(rc *RunContext, args []*Dynamic) (Dynamic, error) {
		return Float(float64(args[0].Int()) + args[1].Float()), nil
	})

	v := mustEval(t, e, "1 + 2.5")
	if v.Tag() != TagFloat || v.Float() != 3.5 {
		t.Errorf("expected 3.5, got %s", v.String())
	}
}

func TestControlFlow(t *testing.T) {
	e := NewEngine(Config{})

	v := mustEval(t, e, `
		let total = 0;
		for i in 1..5 {
			if i == 3 { continue; }
			total += i;
		}
		total
	`)
	if v.Int() != 1+2+4 {
		t.Errorf("expected 7, got %s", v.String())
	}

	v = mustEval(t, e, `
		let n = 0;
		while true {
			n += 1;
			if n >= 10 { break; }
		}
		n
	`)
	if v.Int() != 10 {
		t.Errorf("expected 10, got %s", v.String())
	}

	v = mustEval(t, e, `
		let n = 0;
		loop {
			n += 1;
			if n == 3 { break; }
		}
		n
	`)
	if v.Int() != 3 {
		t.Errorf("expected 3, got %s", v.String())
	}

	if k := evalKind(t, e, "if 1 { 2 }"); k != TypeMismatch {
		t.Errorf("non-bool condition: expected TypeMismatch, got %s", k)
	}
}

func TestForIteration(t *testing.T) {
	e := NewEngine(Config{})

	v := mustEval(t, e, `
		let sum = 0;
		for x in [10, 20, 30] { sum += x; }
		sum
	`)
	if v.Int() != 60 {
		t.Errorf("array iteration: expected 60, got %s", v.String())
	}

	v = mustEval(t, e, `
		let n = 0;
		for c in "abc" { n += 1; }
		n
	`)
	if v.Int() != 3 {
		t.Errorf("string iteration: expected 3, got %s", v.String())
	}

	if k := evalKind(t, e, "for x in 42 { }"); k != TypeMismatch {
		t.Errorf("iterating int: expected TypeMismatch, got %s", k)
	}
}

func TestScriptFunctions(t *testing.T) {
	e := NewEngine(Config{})

	v := mustEval(t, e, `
		fn fib(n) {
			if n < 2 { return n; }
			fib(n - 1) + fib(n - 2)
		}
		fib(10)
	`)
	if v.Int() != 55 {
		t.Errorf("fib(10): expected 55, got %s", v.String())
	}

	// Definitions hoist: callable before their textual position.
	v = mustEval(t, e, `
		let r = double(21);
		fn double(x) { x * 2 }
		r
	`)
	if v.Int() != 42 {
		t.Errorf("hoisted call: expected 42, got %s", v.String())
	}

	// Caller locals are invisible inside a function body.
	if k := evalKind(t, e, `
		let secret = 1;
		fn peek() { secret }
		peek()
	`); k != VariableNotFound {
		t.Errorf("expected VariableNotFound, got %s", k)
	}
}

func TestScriptOverridesNative(t *testing.T) {
	e := NewEngine(Config{})

	// A scripted exact-arity definition beats the builtin on ties, and
	// the latest scripted definition wins.
	v := mustEval(t, e, `
		fn type_of(x) { "first" }
		fn type_of(x) { "second" }
		type_of(1)
	`)
	if v.Str() != "second" {
		t.Errorf("expected second, got %s", v.String())
	}
}

func TestHostOperatorOverload(t *testing.T) {
	e := NewEngine(Config{})
	e.RegisterOperator("*", []ParamPattern{ExactParam(TagString), ExactParam(TagInt)}, func(rc *RunContext, args []*Dynamic) (Dynamic, error) {
		s, n := args[0].Str(), args[1].Int()
		if err := rc.Gov.CheckStringLen(len(s)*int(n), rc.Pos); err != nil {
			return Unit(), err
		}
		out := ""
		for i := int64(0); i < n; i++ {
			out += s
		}
		return Str(out), nil
	})

	v := mustEval(t, e, `"ab" * 3`)
	if v.Str() != "ababab" {
		t.Errorf("expected ababab, got %s", v.String())
	}
}

func TestArityAndNotFound(t *testing.T) {
	e := NewEngine(Config{})

	if k := evalKind(t, e, "no_such_fn(1)"); k != FunctionNotFound {
		t.Errorf("expected FunctionNotFound, got %s", k)
	}
	if k := evalKind(t, e, `
		fn f(a, b) { a }
		f(1)
	`); k != ArityMismatch {
		t.Errorf("expected ArityMismatch, got %s", k)
	}

	// A name with overloads of the right arity but no variant match
	// must fail resolution, never dispatch a mismatched entry.
	if k := evalKind(t, e, "len(5)"); k != FunctionNotFound {
		t.Errorf("len(5): expected FunctionNotFound, got %s", k)
	}
}

func TestArraysAndMaps(t *testing.T) {
	e := NewEngine(Config{})

	v := mustEval(t, e, `
		let a = [1, 2];
		a.push(3);
		a[0] = 10;
		a[0] + a[2]
	`)
	if v.Int() != 13 {
		t.Errorf("expected 13, got %s", v.String())
	}

	v = mustEval(t, e, `
		let m = #{ x: 1 };
		m.y = 2;
		m["z"] = 3;
		m.x + m.y + m.z
	`)
	if v.Int() != 6 {
		t.Errorf("expected 6, got %s", v.String())
	}

	// Missing key: index form yields unit, property form is an error.
	v = mustEval(t, e, `let m = #{}; m["nope"]`)
	if !v.IsUnit() {
		t.Errorf("missing key index: expected unit, got %s", v.String())
	}
	if k := evalKind(t, e, "let m = #{}; m.nope"); k != VariableNotFound {
		t.Errorf("missing property: expected VariableNotFound, got %s", k)
	}

	if k := evalKind(t, e, "let a = [1]; a[5]"); k != IndexOutOfBounds {
		t.Errorf("expected IndexOutOfBounds, got %s", k)
	}
}

func TestValueSemanticsOnAssignment(t *testing.T) {
	e := NewEngine(Config{})

	// Copy-on-write: mutating one handle never shows through another.
	v := mustEval(t, e, `
		let a = [1, 2, 3];
		let b = a;
		b.push(4);
		a.len()
	`)
	if v.Int() != 3 {
		t.Errorf("expected 3, got %s", v.String())
	}

	v = mustEval(t, e, `
		let a = [1, 2, 3];
		let b = a;
		b.push(4);
		b.len()
	`)
	if v.Int() != 4 {
		t.Errorf("expected 4, got %s", v.String())
	}
}

func TestConstants(t *testing.T) {
	e := NewEngine(Config{})

	if k := evalKind(t, e, "const c = 1; c = 2"); k != AssignmentToConstant {
		t.Errorf("expected AssignmentToConstant, got %s", k)
	}
	if k := evalKind(t, e, "const c = 1; c += 1"); k != AssignmentToConstant {
		t.Errorf("compound: expected AssignmentToConstant, got %s", k)
	}

	v := mustEval(t, e, "const c = 5; c * 2")
	if v.Int() != 10 {
		t.Errorf("expected 10, got %s", v.String())
	}
}

func TestShadowing(t *testing.T) {
	e := NewEngine(Config{})

	v := mustEval(t, e, `
		let x = 1;
		{
			let x = 2;
		}
		x
	`)
	if v.Int() != 1 {
		t.Errorf("expected outer binding restored, got %s", v.String())
	}

	v = mustEval(t, e, `
		let x = 1;
		let x = "two";
		x
	`)
	if v.Str() != "two" {
		t.Errorf("redeclaration: expected two, got %s", v.String())
	}
}

func TestMethodCallsWithThis(t *testing.T) {
	e := NewEngine(Config{})

	// A map property holding a function pointer dispatches as a
	// method, with the container bound mutably as `this`.
	v := mustEval(t, e, `
		fn add_to_data(x) { this.data += x; }
		let obj = #{ data: 0, inc: Fn("add_to_data") };
		obj.inc(5);
		obj.data
	`)
	if v.Int() != 5 {
		t.Errorf("expected 5, got %s", v.String())
	}

	// A second live reference at call time forces a private copy: the
	// mutation is lost.
	v = mustEval(t, e, `
		fn add_to_data(x) { this.data += x; }
		let obj = #{ data: 0, inc: Fn("add_to_data") };
		let alias = obj;
		obj.inc(5);
		obj.data
	`)
	if v.Int() != 0 {
		t.Errorf("shared receiver: expected 0, got %s", v.String())
	}
}

func TestTransientReceiverDiscardsMutation(t *testing.T) {
	e := NewEngine(Config{})

	// A method on an indexing result operates on a temporary.
	v := mustEval(t, e, `
		let arr = [[1, 2]];
		arr[0].push(3);
		arr[0].len()
	`)
	if v.Int() != 2 {
		t.Errorf("expected 2, got %s", v.String())
	}

	// Indexed assignment, by contrast, writes through.
	v = mustEval(t, e, `
		let arr = [[1, 2]];
		arr[0][0] = 9;
		arr[0][0]
	`)
	if v.Int() != 9 {
		t.Errorf("expected 9, got %s", v.String())
	}
}

func TestSharedMapUnsharesOnPropertyMutation(t *testing.T) {
	e := NewEngine(Config{})

	// Mutating through a property chain must copy the shared map, not
	// write through its aliases.
	v := mustEval(t, e, `
		let m = #{a: [1]};
		let n = m;
		m.a.push(2);
		n.a.len()
	`)
	if v.Int() != 1 {
		t.Errorf("alias must keep the original, got len %s", v.String())
	}

	// The mutated side sees its own change.
	v = mustEval(t, e, `
		let m = #{a: [1]};
		let n = m;
		m.a.push(2);
		m.a.len()
	`)
	if v.Int() != 2 {
		t.Errorf("owner must see the mutation, got len %s", v.String())
	}

	// Nested property chains unshare every level.
	v = mustEval(t, e, `
		let m = #{inner: #{xs: [1]}};
		let n = m;
		m.inner.xs.push(2);
		n.inner.xs.len()
	`)
	if v.Int() != 1 {
		t.Errorf("nested alias must keep the original, got len %s", v.String())
	}
}

func TestFnPtrCallAndCurry(t *testing.T) {
	e := NewEngine(Config{})

	v := mustEval(t, e, `
		fn add(a, b) { a + b }
		let f = Fn("add");
		f.call(1, 2)
	`)
	if v.Int() != 3 {
		t.Errorf("call: expected 3, got %s", v.String())
	}

	v = mustEval(t, e, `
		fn add(a, b) { a + b }
		let f = Fn("add").curry(10);
		f.call(5)
	`)
	if v.Int() != 15 {
		t.Errorf("curry: expected 15, got %s", v.String())
	}

	// A variable holding a pointer is callable directly.
	v = mustEval(t, e, `
		fn add(a, b) { a + b }
		let f = Fn("add");
		f(2, 3)
	`)
	if v.Int() != 5 {
		t.Errorf("direct call: expected 5, got %s", v.String())
	}
}

func TestMutableFirstParamNative(t *testing.T) {
	e := NewEngine(Config{})
	e.RegisterFn("bump", []ParamPattern{ExactParam(TagArray)}, func(rc *RunContext, args []*Dynamic) (Dynamic, error) {
		sa := args[0].mutArray()
		sa.elems = append(sa.elems, Int(99))
		return Unit(), nil
	}, FirstParamByRef())

	// Method syntax on a plain variable mutates in place.
	v := mustEval(t, e, `
		let a = [1];
		a.bump();
		a.len()
	`)
	if v.Int() != 2 {
		t.Errorf("method syntax: expected 2, got %s", v.String())
	}

	// Plain-call syntax with a leading variable also aliases.
	v = mustEval(t, e, `
		let a = [1];
		bump(a);
		a.len()
	`)
	if v.Int() != 2 {
		t.Errorf("plain call: expected 2, got %s", v.String())
	}

	// A computed first argument is a transient: the mutation is
	// discarded and the stored element stays untouched.
	v = mustEval(t, e, `
		let arr = [[1]];
		bump(arr[0]);
		arr[0].len()
	`)
	if v.Int() != 1 {
		t.Errorf("transient first arg: expected 1, got %s", v.String())
	}
}

func TestShortCircuit(t *testing.T) {
	e := NewEngine(Config{})

	// The right side must not run once the left decides.
	v := mustEval(t, e, `
		fn poisoned() { 1 / 0 }
		false && poisoned() == 1;
		true || poisoned() == 1;
		true
	`)
	if !v.Bool() {
		t.Error("short-circuit evaluated the poisoned side")
	}

	// Eager forms evaluate both operands.
	if k := evalKind(t, e, "false & (1 / 0 == 0)"); k != ArithmeticError {
		t.Errorf("eager &: expected ArithmeticError, got %s", k)
	}
}

func TestTryCatch(t *testing.T) {
	e := NewEngine(Config{})

	v := mustEval(t, e, `
		let r = 0;
		try {
			1 / 0;
			r = 1;
		} catch (err) {
			r = 2;
		}
		r
	`)
	if v.Int() != 2 {
		t.Errorf("expected 2, got %s", v.String())
	}

	v = mustEval(t, e, `
		let kind = "";
		try {
			undefined_var;
		} catch (err) {
			kind = err.kind;
		}
		kind
	`)
	if v.Str() != "VariableNotFound" {
		t.Errorf("expected VariableNotFound kind, got %s", v.String())
	}
}

func TestTryCannotCatchGovernorErrors(t *testing.T) {
	e := NewEngine(Config{Limits: Limits{MaxOperations: 100}})

	if k := evalKind(t, e, `
		try {
			loop { }
		} catch (err) { }
		1
	`); k != OperationLimitExceeded {
		t.Errorf("expected OperationLimitExceeded, got %s", k)
	}
}

func TestTopLevelReturn(t *testing.T) {
	e := NewEngine(Config{})

	v := mustEval(t, e, "return 42; 1 / 0")
	if v.Int() != 42 {
		t.Errorf("expected 42, got %s", v.String())
	}
}

func TestTypeOfAndToString(t *testing.T) {
	e := NewEngine(Config{})

	cases := map[string]string{
		`type_of(1)`:       "int",
		`type_of(1.5)`:     "float",
		`type_of("x")`:     "string",
		`type_of('x')`:     "char",
		`type_of(true)`:    "bool",
		`type_of([1])`:     "array",
		`type_of(#{})`:     "map",
		`type_of(())`:      "unit",
		`type_of(Fn("f"))`: "fn",
	}
	for src, want := range cases {
		v := mustEval(t, e, src)
		if v.Str() != want {
			t.Errorf("%q: expected %s, got %s", src, want, v.String())
		}
	}

	v := mustEval(t, e, "to_string(12) + to_string(true)")
	if v.Str() != "12true" {
		t.Errorf("expected 12true, got %s", v.String())
	}
}

func TestHostScope(t *testing.T) {
	e := NewEngine(Config{})
	scope := NewScope()
	scope.Push("seed", Int(40), false)

	v, err := e.EvalWithScope("seed += 2; seed", scope)
	if err != nil {
		t.Fatalf("eval: %v", err)
	}
	if v.Int() != 42 {
		t.Errorf("expected 42, got %s", v.String())
	}

	got, ok := scope.Get("seed")
	if !ok || got.Int() != 42 {
		t.Errorf("host readback: expected 42, got %v %s", ok, got.String())
	}
}

func TestScriptCacheReuse(t *testing.T) {
	e := NewEngine(Config{})

	mustEval(t, e, "1 + 1")
	mustEval(t, e, "1 + 1")
	mustEval(t, e, "2 + 2")
	if n := e.cache.size(); n != 2 {
		t.Errorf("expected 2 cached programs, got %d", n)
	}
}

func TestHostCallFn(t *testing.T) {
	e := NewEngine(Config{})

	v, err := e.CallFn("len", Str("hello"))
	if err != nil {
		t.Fatalf("CallFn: %v", err)
	}
	if v.Int() != 5 {
		t.Errorf("expected 5, got %s", v.String())
	}
}

func TestInt32Width(t *testing.T) {
	e := NewEngine(Config{IntWidth: 32})

	if k := evalKind(t, e, "2147483647 + 1"); k != ArithmeticError {
		t.Errorf("expected ArithmeticError, got %s", k)
	}
	v := mustEval(t, e, "2147483646 + 1")
	if v.Int() != 2147483647 {
		t.Errorf("expected max int32, got %s", v.String())
	}

	// A bare literal outside the range fails the same way.
	if k := evalKind(t, e, "4000000000"); k != ArithmeticError {
		t.Errorf("out-of-range literal: expected ArithmeticError, got %s", k)
	}
	if k := evalKind(t, e, "let a = -3000000000; a"); k != ArithmeticError {
		t.Errorf("negative out-of-range literal: expected ArithmeticError, got %s", k)
	}

	// Constant folding must not change the outcome: the folded literal
	// is range-checked exactly like the unfolded addition.
	opt := NewEngine(Config{IntWidth: 32, OptLevel: compiler.OptimizeSimple})
	if k := evalKind(t, opt, "2000000000 + 2000000000"); k != ArithmeticError {
		t.Errorf("folded overflow: expected ArithmeticError, got %s", k)
	}
	v = mustEval(t, opt, "1000000000 + 1000000000")
	if v.Int() != 2000000000 {
		t.Errorf("folded in-range sum: got %s", v.String())
	}
}

func TestDisableFloat(t *testing.T) {
	e := NewEngine(Config{DisableFloat: true})

	if k := evalKind(t, e, "1.5 + 1.5"); k != TypeMismatch {
		t.Errorf("expected TypeMismatch, got %s", k)
	}
}

func TestNativeObjectRoundTrip(t *testing.T) {
	type handle struct{ id int }

	e := NewEngine(Config{})
	e.RegisterFn("new_handle", nil, func(rc *RunContext, args []*Dynamic) (Dynamic, error) {
		return NewNative(&NativeObject{TypeName: "handle", Value: &handle{id: 7}}), nil
	})
	e.RegisterFn("handle_id", []ParamPattern{ExactParam(TagNative)}, func(rc *RunContext, args []*Dynamic) (Dynamic, error) {
		h := args[0].Native().Value.(*handle)
		return Int(int64(h.id)), nil
	})

	v := mustEval(t, e, `
		let h = new_handle();
		h.handle_id()
	`)
	if v.Int() != 7 {
		t.Errorf("expected 7, got %s", v.String())
	}

	// No equality capability: == is false even for the same instance.
	v = mustEval(t, e, `
		let h = new_handle();
		let g = h;
		h == g
	`)
	if v.Bool() {
		t.Error("native without equality must compare false")
	}
}

func TestOptimizerLevelsAgree(t *testing.T) {
	scripts := []string{
		"let total = 0; for i in 0..10 { if i % 2 == 0 { total += i } }; total",
		`let parts = "a" + "b"; parts += "c"; parts.len()`,
		"fn double(x) { x * 2 } let r = []; r.push(double(3)); 1 + 2; r[0]",
		"let n = 10 / 2; while false { n = 0 }; if true { n + 1 } else { 0 }",
	}
	engines := []*Engine{
		NewEngine(Config{OptLevel: compiler.OptimizeNone}),
		NewEngine(Config{OptLevel: compiler.OptimizeSimple}),
		NewEngine(Config{OptLevel: compiler.OptimizeFull}),
	}
	for _, src := range scripts {
		base := mustEval(t, engines[0], src)
		for _, e := range engines[1:] {
			got := mustEval(t, e, src)
			if !Equal(base, got) {
				t.Errorf("optimizer changed %q: %s vs %s", src, base.String(), got.String())
			}
		}
	}
}

func TestInOperator(t *testing.T) {
	e := NewEngine(Config{})

	cases := []struct {
		src  string
		want bool
	}{
		{"2 in [1, 2, 3]", true},
		{"5 in [1, 2, 3]", false},
		{`"a" in #{a: 1}`, true},
		{`"b" in #{a: 1}`, false},
		{`"ell" in "hello"`, true},
		{`"z" in "hello"`, false},
	}
	for _, c := range cases {
		v := mustEval(t, e, c.src)
		if v.Tag() != TagBool || v.Bool() != c.want {
			t.Errorf("%s: expected %v, got %s", c.src, c.want, v.String())
		}
	}

	// No contains overload takes an int collection.
	if k := evalKind(t, e, "1 in 2"); k != FunctionNotFound {
		t.Errorf("expected FunctionNotFound, got %s", k)
	}
}
