package vm

import "math"

// ---------------------------------------------------------------------------
// Integer builtins
// ---------------------------------------------------------------------------
//
// Overflow is an arithmetic error, never a silent wrap. There is no
// implicit numeric promotion: an int/float operand pair does not match
// any of these, so it fails resolution unless the host registers an
// overload for that exact pair.

func registerIntBuiltins(e *Engine) {
	ii := []ParamPattern{ExactParam(TagInt), ExactParam(TagInt)}
	i := []ParamPattern{ExactParam(TagInt)}

	bin := func(op string, fn func(rc *RunContext, a, b int64) (int64, error)) {
		e.registry.RegisterNative(op, ii, func(rc *RunContext, args []*Dynamic) (Dynamic, error) {
			r, err := fn(rc, args[0].Int(), args[1].Int())
			if err != nil {
				return Unit(), err
			}
			if err := checkIntWidth(rc, r); err != nil {
				return Unit(), err
			}
			return Int(r), nil
		})
	}

	bin("+", func(rc *RunContext, a, b int64) (int64, error) {
		r := a + b
		if (r > a) != (b > 0) {
			return 0, NewError(ArithmeticError, rc.Pos, "integer overflow in %d + %d", a, b)
		}
		return r, nil
	})
	bin("-", func(rc *RunContext, a, b int64) (int64, error) {
		r := a - b
		if (r < a) != (b > 0) {
			return 0, NewError(ArithmeticError, rc.Pos, "integer overflow in %d - %d", a, b)
		}
		return r, nil
	})
	bin("*", func(rc *RunContext, a, b int64) (int64, error) {
		if a != 0 && b != 0 {
			r := a * b
			if r/b != a {
				return 0, NewError(ArithmeticError, rc.Pos, "integer overflow in %d * %d", a, b)
			}
			return r, nil
		}
		return 0, nil
	})
	bin("/", func(rc *RunContext, a, b int64) (int64, error) {
		if b == 0 {
			return 0, NewError(ArithmeticError, rc.Pos, "division by zero")
		}
		if a == math.MinInt64 && b == -1 {
			return 0, NewError(ArithmeticError, rc.Pos, "integer overflow in %d / %d", a, b)
		}
		return a / b, nil
	})
	bin("%", func(rc *RunContext, a, b int64) (int64, error) {
		if b == 0 {
			return 0, NewError(ArithmeticError, rc.Pos, "modulo by zero")
		}
		if a == math.MinInt64 && b == -1 {
			return 0, nil
		}
		return a % b, nil
	})

	bin("&", func(rc *RunContext, a, b int64) (int64, error) { return a & b, nil })
	bin("|", func(rc *RunContext, a, b int64) (int64, error) { return a | b, nil })
	bin("^", func(rc *RunContext, a, b int64) (int64, error) { return a ^ b, nil })

	cmp := func(op string, fn func(a, b int64) bool) {
		e.registry.RegisterNative(op, ii, func(rc *RunContext, args []*Dynamic) (Dynamic, error) {
			return Bool(fn(args[0].Int(), args[1].Int())), nil
		})
	}
	cmp("<", func(a, b int64) bool { return a < b })
	cmp("<=", func(a, b int64) bool { return a <= b })
	cmp(">", func(a, b int64) bool { return a > b })
	cmp(">=", func(a, b int64) bool { return a >= b })

	e.registry.RegisterNative("-", i, func(rc *RunContext, args []*Dynamic) (Dynamic, error) {
		v := args[0].Int()
		if v == math.MinInt64 {
			return Unit(), NewError(ArithmeticError, rc.Pos, "integer overflow in -%d", v)
		}
		if err := checkIntWidth(rc, -v); err != nil {
			return Unit(), err
		}
		return Int(-v), nil
	})

	e.registry.RegisterNative("abs", i, func(rc *RunContext, args []*Dynamic) (Dynamic, error) {
		v := args[0].Int()
		if v == math.MinInt64 {
			return Unit(), NewError(ArithmeticError, rc.Pos, "integer overflow in abs(%d)", v)
		}
		if v < 0 {
			v = -v
		}
		return Int(v), nil
	})

	if !e.cfg.DisableFloat {
		e.registry.RegisterNative("to_float", i, func(rc *RunContext, args []*Dynamic) (Dynamic, error) {
			return Float(float64(args[0].Int())), nil
		})
	}
}

// checkIntWidth enforces the configured integer width.
func checkIntWidth(rc *RunContext, v int64) error {
	if rc.Engine.cfg.IntWidth == 32 && (v < math.MinInt32 || v > math.MaxInt32) {
		return NewError(ArithmeticError, rc.Pos, "integer overflow: %d exceeds 32-bit range", v)
	}
	return nil
}
