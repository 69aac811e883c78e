package vm

import "math"

// Float builtins follow IEEE semantics: division by zero gives an
// infinity, not an error.

func registerFloatBuiltins(e *Engine) {
	ff := []ParamPattern{ExactParam(TagFloat), ExactParam(TagFloat)}
	f := []ParamPattern{ExactParam(TagFloat)}

	bin := func(op string, fn func(a, b float64) float64) {
		e.registry.RegisterNative(op, ff, func(rc *RunContext, args []*Dynamic) (Dynamic, error) {
			return Float(fn(args[0].Float(), args[1].Float())), nil
		})
	}
	bin("+", func(a, b float64) float64 { return a + b })
	bin("-", func(a, b float64) float64 { return a - b })
	bin("*", func(a, b float64) float64 { return a * b })
	bin("/", func(a, b float64) float64 { return a / b })
	bin("%", math.Mod)

	cmp := func(op string, fn func(a, b float64) bool) {
		e.registry.RegisterNative(op, ff, func(rc *RunContext, args []*Dynamic) (Dynamic, error) {
			return Bool(fn(args[0].Float(), args[1].Float())), nil
		})
	}
	cmp("<", func(a, b float64) bool { return a < b })
	cmp("<=", func(a, b float64) bool { return a <= b })
	cmp(">", func(a, b float64) bool { return a > b })
	cmp(">=", func(a, b float64) bool { return a >= b })

	e.registry.RegisterNative("-", f, func(rc *RunContext, args []*Dynamic) (Dynamic, error) {
		return Float(-args[0].Float()), nil
	})
	e.registry.RegisterNative("abs", f, func(rc *RunContext, args []*Dynamic) (Dynamic, error) {
		return Float(math.Abs(args[0].Float())), nil
	})
	e.registry.RegisterNative("floor", f, func(rc *RunContext, args []*Dynamic) (Dynamic, error) {
		return Float(math.Floor(args[0].Float())), nil
	})
	e.registry.RegisterNative("ceil", f, func(rc *RunContext, args []*Dynamic) (Dynamic, error) {
		return Float(math.Ceil(args[0].Float())), nil
	})
	e.registry.RegisterNative("sqrt", f, func(rc *RunContext, args []*Dynamic) (Dynamic, error) {
		return Float(math.Sqrt(args[0].Float())), nil
	})

	// to_int truncates toward zero; out-of-range is an error.
	e.registry.RegisterNative("to_int", f, func(rc *RunContext, args []*Dynamic) (Dynamic, error) {
		v := args[0].Float()
		if math.IsNaN(v) || v >= math.MaxInt64 || v < math.MinInt64 {
			return Unit(), NewError(ArithmeticError, rc.Pos, "cannot convert %g to int", v)
		}
		r := int64(v)
		if err := checkIntWidth(rc, r); err != nil {
			return Unit(), err
		}
		return Int(r), nil
	})
}
