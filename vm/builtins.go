package vm

// registerBuiltins installs the builtin function library into a fresh
// engine. Everything here goes through the same registry as host
// registrations, so scripts can overload any of it.
func registerBuiltins(e *Engine) {
	registerCoreBuiltins(e)
	registerIntBuiltins(e)
	if !e.cfg.DisableFloat {
		registerFloatBuiltins(e)
	}
	registerBoolBuiltins(e)
	registerCharBuiltins(e)
	registerStringBuiltins(e)
	registerArrayBuiltins(e)
	registerMapBuiltins(e)
}

// ---- Builtins shared by every variant ----

func registerCoreBuiltins(e *Engine) {
	anyAny := []ParamPattern{AnyParam, AnyParam}

	// Deep structural equality is the default for every variant pair;
	// exact-pair overloads (including host ones) outscore it.
	e.registry.RegisterNative("==", anyAny, func(rc *RunContext, args []*Dynamic) (Dynamic, error) {
		return Bool(Equal(*args[0], *args[1])), nil
	})
	e.registry.RegisterNative("!=", anyAny, func(rc *RunContext, args []*Dynamic) (Dynamic, error) {
		return Bool(!Equal(*args[0], *args[1])), nil
	})

	e.registry.RegisterNative("type_of", []ParamPattern{AnyParam}, func(rc *RunContext, args []*Dynamic) (Dynamic, error) {
		return Str(args[0].TypeName()), nil
	})
	e.registry.RegisterNative("to_string", []ParamPattern{AnyParam}, func(rc *RunContext, args []*Dynamic) (Dynamic, error) {
		s := args[0].String()
		if err := rc.Gov.CheckStringLen(len(s), rc.Pos); err != nil {
			return Unit(), err
		}
		return Str(s), nil
	})

	e.registry.RegisterNative("print", []ParamPattern{AnyParam}, func(rc *RunContext, args []*Dynamic) (Dynamic, error) {
		rc.Engine.Print(args[0].String())
		return Unit(), nil
	})
	e.registry.RegisterNative("debug", []ParamPattern{AnyParam}, func(rc *RunContext, args []*Dynamic) (Dynamic, error) {
		rc.Engine.Debug(args[0].debugString())
		return Unit(), nil
	})

	// Fn("name") builds a function pointer; call/curry on it are
	// evaluator forms.
	e.registry.RegisterNative("Fn", []ParamPattern{ExactParam(TagString)}, func(rc *RunContext, args []*Dynamic) (Dynamic, error) {
		return NewFnPtr(args[0].Str(), nil), nil
	})
}
