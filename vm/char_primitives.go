package vm

// Char builtins.

func registerCharBuiltins(e *Engine) {
	cc := []ParamPattern{ExactParam(TagChar), ExactParam(TagChar)}
	c := []ParamPattern{ExactParam(TagChar)}

	cmp := func(op string, fn func(a, b rune) bool) {
		e.registry.RegisterNative(op, cc, func(rc *RunContext, args []*Dynamic) (Dynamic, error) {
			return Bool(fn(args[0].Char(), args[1].Char())), nil
		})
	}
	cmp("<", func(a, b rune) bool { return a < b })
	cmp("<=", func(a, b rune) bool { return a <= b })
	cmp(">", func(a, b rune) bool { return a > b })
	cmp(">=", func(a, b rune) bool { return a >= b })

	e.registry.RegisterNative("to_int", c, func(rc *RunContext, args []*Dynamic) (Dynamic, error) {
		return Int(int64(args[0].Char())), nil
	})
}
