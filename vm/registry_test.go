package vm

import (
	"testing"

	"github.com/rove-lang/rove/ast"
)

func nativeReturning(n int64) NativeFunc {
	return func(rc *RunContext, args []*Dynamic) (Dynamic, error) {
		return Int(n), nil
	}
}

func TestExactMatchBeatsWildcard(t *testing.T) {
	r := NewRegistry()
	r.RegisterNative("f", []ParamPattern{AnyParam}, nativeReturning(1))
	r.RegisterNative("f", []ParamPattern{ExactParam(TagInt)}, nativeReturning(2))

	entry, err := resolve(r, NewRegistry(), "f", []Tag{TagInt}, ast.Position{})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	v, _ := entry.native(nil, nil)
	if v.Int() != 2 {
		t.Error("exact pattern must outscore wildcard")
	}

	entry, err = resolve(r, NewRegistry(), "f", []Tag{TagString}, ast.Position{})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	v, _ = entry.native(nil, nil)
	if v.Int() != 1 {
		t.Error("wildcard must catch non-int")
	}
}

func TestMismatchedExactEntryIsIneligible(t *testing.T) {
	r := NewRegistry()
	r.RegisterNative("f", []ParamPattern{ExactParam(TagInt), ExactParam(TagInt)}, nativeReturning(1))

	// An exact pattern that rejects its argument disqualifies the whole
	// entry; it must not win as a zero-score candidate.
	_, err := resolve(r, NewRegistry(), "f", []Tag{TagInt, TagFloat}, ast.Position{})
	if err == nil {
		t.Fatal("expected resolution failure")
	}
	if err.Kind != FunctionNotFound {
		t.Errorf("expected FunctionNotFound, got %s", err.Kind)
	}
}

func TestNativeTieResolvesToEarliest(t *testing.T) {
	r := NewRegistry()
	r.RegisterNative("g", []ParamPattern{AnyParam}, nativeReturning(1))
	r.RegisterNative("g", []ParamPattern{AnyParam}, nativeReturning(2))

	// Deterministic: repeated resolution always picks the same entry.
	for i := 0; i < 10; i++ {
		entry, err := resolve(r, NewRegistry(), "g", []Tag{TagInt}, ast.Position{})
		if err != nil {
			t.Fatalf("resolve: %v", err)
		}
		v, _ := entry.native(nil, nil)
		if v.Int() != 1 {
			t.Fatal("equal-score native tie must resolve to the earliest registration")
		}
	}
}

func TestScriptBeatsNativeOnTie(t *testing.T) {
	global := NewRegistry()
	global.RegisterNative("h", []ParamPattern{AnyParam}, nativeReturning(1))

	overlay := NewRegistry()
	overlay.RegisterScriptFn(&ScriptFn{Name: "h", Params: []string{"x"}, Body: &ast.Block{}})

	entry, err := resolve(global, overlay, "h", []Tag{TagInt}, ast.Position{})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if entry.script == nil {
		t.Error("scripted definition must win an equal-score tie")
	}
}

func TestLatestScriptDefinitionWins(t *testing.T) {
	overlay := NewRegistry()
	first := &ScriptFn{Name: "h", Params: []string{"x"}, Body: &ast.Block{}}
	second := &ScriptFn{Name: "h", Params: []string{"x"}, Body: &ast.Block{}}
	overlay.RegisterScriptFn(first)
	overlay.RegisterScriptFn(second)

	entry, err := resolve(NewRegistry(), overlay, "h", []Tag{TagInt}, ast.Position{})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if entry.script != second {
		t.Error("most recent scripted definition must win")
	}
}

func TestArityVersusNotFound(t *testing.T) {
	r := NewRegistry()
	r.RegisterNative("two", []ParamPattern{AnyParam, AnyParam}, nativeReturning(1))

	_, err := resolve(r, NewRegistry(), "two", []Tag{TagInt}, ast.Position{})
	if err == nil || err.Kind != ArityMismatch {
		t.Errorf("expected ArityMismatch, got %v", err)
	}

	_, err = resolve(r, NewRegistry(), "nope", []Tag{TagInt}, ast.Position{})
	if err == nil || err.Kind != FunctionNotFound {
		t.Errorf("expected FunctionNotFound, got %v", err)
	}
}

func TestVariadicEntry(t *testing.T) {
	r := NewRegistry()
	r.RegisterNative("v", []ParamPattern{ExactParam(TagString)}, nativeReturning(1), Variadic())

	for _, n := range []int{1, 2, 5} {
		tags := make([]Tag, n)
		tags[0] = TagString
		if _, err := resolve(r, NewRegistry(), "v", tags, ast.Position{}); err != nil {
			t.Errorf("arity %d: %v", n, err)
		}
	}
	if _, err := resolve(r, NewRegistry(), "v", nil, ast.Position{}); err == nil {
		t.Error("fewer than the declared parameters must not resolve")
	}
}
