package vm

import "strings"

// String builtins. Growth goes through the governor's string cap, and
// in-place mutation uses the mutable-first-parameter convention so
// `s.append(x)` grows the caller's string without a copy.

func registerStringBuiltins(e *Engine) {
	ss := []ParamPattern{ExactParam(TagString), ExactParam(TagString)}
	s := []ParamPattern{ExactParam(TagString)}

	e.registry.RegisterNative("+", ss, func(rc *RunContext, args []*Dynamic) (Dynamic, error) {
		a, b := args[0].Str(), args[1].Str()
		if err := rc.Gov.CheckStringLen(len(a)+len(b), rc.Pos); err != nil {
			return Unit(), err
		}
		return Str(a + b), nil
	})

	// Mixed concatenation stringifies the non-string side.
	sAny := []ParamPattern{ExactParam(TagString), AnyParam}
	e.registry.RegisterNative("+", sAny, func(rc *RunContext, args []*Dynamic) (Dynamic, error) {
		a, b := args[0].Str(), args[1].String()
		if err := rc.Gov.CheckStringLen(len(a)+len(b), rc.Pos); err != nil {
			return Unit(), err
		}
		return Str(a + b), nil
	})

	cmp := func(op string, fn func(a, b string) bool) {
		e.registry.RegisterNative(op, ss, func(rc *RunContext, args []*Dynamic) (Dynamic, error) {
			return Bool(fn(args[0].Str(), args[1].Str())), nil
		})
	}
	cmp("<", func(a, b string) bool { return a < b })
	cmp("<=", func(a, b string) bool { return a <= b })
	cmp(">", func(a, b string) bool { return a > b })
	cmp(">=", func(a, b string) bool { return a >= b })

	e.registry.RegisterNative("len", s, func(rc *RunContext, args []*Dynamic) (Dynamic, error) {
		return Int(int64(len([]rune(args[0].Str())))), nil
	})
	e.registry.RegisterNative("contains", ss, func(rc *RunContext, args []*Dynamic) (Dynamic, error) {
		return Bool(strings.Contains(args[0].Str(), args[1].Str())), nil
	})
	e.registry.RegisterNative("starts_with", ss, func(rc *RunContext, args []*Dynamic) (Dynamic, error) {
		return Bool(strings.HasPrefix(args[0].Str(), args[1].Str())), nil
	})
	e.registry.RegisterNative("ends_with", ss, func(rc *RunContext, args []*Dynamic) (Dynamic, error) {
		return Bool(strings.HasSuffix(args[0].Str(), args[1].Str())), nil
	})
	e.registry.RegisterNative("to_upper", s, func(rc *RunContext, args []*Dynamic) (Dynamic, error) {
		return Str(strings.ToUpper(args[0].Str())), nil
	})
	e.registry.RegisterNative("to_lower", s, func(rc *RunContext, args []*Dynamic) (Dynamic, error) {
		return Str(strings.ToLower(args[0].Str())), nil
	})
	e.registry.RegisterNative("trim", s, func(rc *RunContext, args []*Dynamic) (Dynamic, error) {
		return Str(strings.TrimSpace(args[0].Str())), nil
	})

	e.registry.RegisterNative("split", ss, func(rc *RunContext, args []*Dynamic) (Dynamic, error) {
		parts := strings.Split(args[0].Str(), args[1].Str())
		if err := rc.Gov.CheckArrayLen(len(parts), rc.Pos); err != nil {
			return Unit(), err
		}
		elems := make([]Dynamic, len(parts))
		for i, p := range parts {
			elems[i] = Str(p)
		}
		return NewArray(elems), nil
	})

	e.registry.RegisterNative("append", sAny, func(rc *RunContext, args []*Dynamic) (Dynamic, error) {
		extra := args[1].String()
		cur := args[0].Str()
		if err := rc.Gov.CheckStringLen(len(cur)+len(extra), rc.Pos); err != nil {
			return Unit(), err
		}
		sh := args[0].mutString()
		sh.s += extra
		return Unit(), nil
	}, FirstParamByRef())

	e.registry.RegisterNative("clear", s, func(rc *RunContext, args []*Dynamic) (Dynamic, error) {
		args[0].mutString().s = ""
		return Unit(), nil
	}, FirstParamByRef())
}
