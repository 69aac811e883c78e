package vm

import "sort"

// Map builtins. Key order is not observable except through keys(),
// which sorts for determinism.

func registerMapBuiltins(e *Engine) {
	m := []ParamPattern{ExactParam(TagMap)}
	ms := []ParamPattern{ExactParam(TagMap), ExactParam(TagString)}

	e.registry.RegisterNative("len", m, func(rc *RunContext, args []*Dynamic) (Dynamic, error) {
		return Int(int64(len(args[0].mapEntries()))), nil
	})

	e.registry.RegisterNative("contains", ms, func(rc *RunContext, args []*Dynamic) (Dynamic, error) {
		_, ok := args[0].mapEntries()[args[1].Str()]
		return Bool(ok), nil
	})

	e.registry.RegisterNative("remove", ms, func(rc *RunContext, args []*Dynamic) (Dynamic, error) {
		sm := args[0].mutMap()
		key := args[1].Str()
		removed, ok := sm.entries[key]
		if !ok {
			return Unit(), nil
		}
		delete(sm.entries, key)
		return removed, nil
	}, FirstParamByRef())

	e.registry.RegisterNative("clear", m, func(rc *RunContext, args []*Dynamic) (Dynamic, error) {
		sm := args[0].mutMap()
		for k, v := range sm.entries {
			v.Release()
			delete(sm.entries, k)
		}
		return Unit(), nil
	}, FirstParamByRef())

	e.registry.RegisterNative("keys", m, func(rc *RunContext, args []*Dynamic) (Dynamic, error) {
		entries := args[0].mapEntries()
		keys := make([]string, 0, len(entries))
		for k := range entries {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		elems := make([]Dynamic, len(keys))
		for i, k := range keys {
			elems[i] = Str(k)
		}
		return NewArray(elems), nil
	})

	e.registry.RegisterNative("values", m, func(rc *RunContext, args []*Dynamic) (Dynamic, error) {
		entries := args[0].mapEntries()
		keys := make([]string, 0, len(entries))
		for k := range entries {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		elems := make([]Dynamic, len(keys))
		for i, k := range keys {
			elems[i] = entries[k].Clone()
		}
		return NewArray(elems), nil
	})

	// mixin merges the second map into the first, overwriting on key
	// collision.
	e.registry.RegisterNative("mixin", []ParamPattern{ExactParam(TagMap), ExactParam(TagMap)}, func(rc *RunContext, args []*Dynamic) (Dynamic, error) {
		src := args[1].mapEntries()
		if err := rc.Gov.CheckMapLen(len(args[0].mapEntries())+len(src), rc.Pos); err != nil {
			return Unit(), err
		}
		sm := args[0].mutMap()
		for k, v := range src {
			if old, ok := sm.entries[k]; ok {
				old.Release()
			}
			sm.entries[k] = v.Clone()
		}
		return Unit(), nil
	}, FirstParamByRef())
}
