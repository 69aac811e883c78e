package vm

// Bool builtins. The eager forms `&` and `|` always evaluate both
// operands; `&&` and `||` short-circuit in the evaluator and never
// reach the registry.

func registerBoolBuiltins(e *Engine) {
	bb := []ParamPattern{ExactParam(TagBool), ExactParam(TagBool)}

	e.registry.RegisterNative("&", bb, func(rc *RunContext, args []*Dynamic) (Dynamic, error) {
		return Bool(args[0].Bool() && args[1].Bool()), nil
	})
	e.registry.RegisterNative("|", bb, func(rc *RunContext, args []*Dynamic) (Dynamic, error) {
		return Bool(args[0].Bool() || args[1].Bool()), nil
	})
	e.registry.RegisterNative("^", bb, func(rc *RunContext, args []*Dynamic) (Dynamic, error) {
		return Bool(args[0].Bool() != args[1].Bool()), nil
	})

	e.registry.RegisterNative("!", []ParamPattern{ExactParam(TagBool)}, func(rc *RunContext, args []*Dynamic) (Dynamic, error) {
		return Bool(!args[0].Bool()), nil
	})
}
