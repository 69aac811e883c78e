package vm

// Array builtins. Mutating forms take the array by mutable reference:
// `a.push(x)` grows the caller's array in place when it holds the sole
// reference, and copy-on-write isolates other holders otherwise.

func registerArrayBuiltins(e *Engine) {
	aa := []ParamPattern{ExactParam(TagArray), ExactParam(TagArray)}
	a := []ParamPattern{ExactParam(TagArray)}
	aAny := []ParamPattern{ExactParam(TagArray), AnyParam}

	e.registry.RegisterNative("len", a, func(rc *RunContext, args []*Dynamic) (Dynamic, error) {
		return Int(int64(len(args[0].arrayElems()))), nil
	})

	e.registry.RegisterNative("push", aAny, func(rc *RunContext, args []*Dynamic) (Dynamic, error) {
		if err := rc.Gov.CheckArrayLen(len(args[0].arrayElems())+1, rc.Pos); err != nil {
			return Unit(), err
		}
		sa := args[0].mutArray()
		sa.elems = append(sa.elems, args[1].Clone())
		return Unit(), nil
	}, FirstParamByRef())

	e.registry.RegisterNative("pop", a, func(rc *RunContext, args []*Dynamic) (Dynamic, error) {
		sa := args[0].mutArray()
		n := len(sa.elems)
		if n == 0 {
			return Unit(), nil
		}
		last := sa.elems[n-1]
		sa.elems = sa.elems[:n-1]
		return last, nil
	}, FirstParamByRef())

	e.registry.RegisterNative("insert", []ParamPattern{ExactParam(TagArray), ExactParam(TagInt), AnyParam}, func(rc *RunContext, args []*Dynamic) (Dynamic, error) {
		if err := rc.Gov.CheckArrayLen(len(args[0].arrayElems())+1, rc.Pos); err != nil {
			return Unit(), err
		}
		sa := args[0].mutArray()
		i := args[1].Int()
		if i < 0 || i > int64(len(sa.elems)) {
			return Unit(), NewError(IndexOutOfBounds, rc.Pos, "insert index %d out of bounds for array of length %d", i, len(sa.elems))
		}
		sa.elems = append(sa.elems, Unit())
		copy(sa.elems[i+1:], sa.elems[i:])
		sa.elems[i] = args[2].Clone()
		return Unit(), nil
	}, FirstParamByRef())

	e.registry.RegisterNative("remove", []ParamPattern{ExactParam(TagArray), ExactParam(TagInt)}, func(rc *RunContext, args []*Dynamic) (Dynamic, error) {
		sa := args[0].mutArray()
		i := args[1].Int()
		if i < 0 || i >= int64(len(sa.elems)) {
			return Unit(), NewError(IndexOutOfBounds, rc.Pos, "remove index %d out of bounds for array of length %d", i, len(sa.elems))
		}
		removed := sa.elems[i]
		sa.elems = append(sa.elems[:i], sa.elems[i+1:]...)
		return removed, nil
	}, FirstParamByRef())

	e.registry.RegisterNative("clear", a, func(rc *RunContext, args []*Dynamic) (Dynamic, error) {
		sa := args[0].mutArray()
		for i := range sa.elems {
			sa.elems[i].Release()
		}
		sa.elems = nil
		return Unit(), nil
	}, FirstParamByRef())

	e.registry.RegisterNative("reverse", a, func(rc *RunContext, args []*Dynamic) (Dynamic, error) {
		sa := args[0].mutArray()
		for i, j := 0, len(sa.elems)-1; i < j; i, j = i+1, j-1 {
			sa.elems[i], sa.elems[j] = sa.elems[j], sa.elems[i]
		}
		return Unit(), nil
	}, FirstParamByRef())

	e.registry.RegisterNative("contains", aAny, func(rc *RunContext, args []*Dynamic) (Dynamic, error) {
		for _, el := range args[0].arrayElems() {
			if Equal(el, *args[1]) {
				return Bool(true), nil
			}
		}
		return Bool(false), nil
	})

	e.registry.RegisterNative("+", aa, func(rc *RunContext, args []*Dynamic) (Dynamic, error) {
		left, right := args[0].arrayElems(), args[1].arrayElems()
		if err := rc.Gov.CheckArrayLen(len(left)+len(right), rc.Pos); err != nil {
			return Unit(), err
		}
		elems := make([]Dynamic, 0, len(left)+len(right))
		for _, el := range left {
			elems = append(elems, el.Clone())
		}
		for _, el := range right {
			elems = append(elems, el.Clone())
		}
		return NewArray(elems), nil
	})
}
