package vm

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// ---------------------------------------------------------------------------
// Dynamic: the tagged-union runtime value
// ---------------------------------------------------------------------------
//
// Small variants (unit, bool, int, float, char) are stored inline and are
// free to copy. Strings, arrays and maps are reference-counted shared
// payloads with copy-on-write: Clone is O(1) and increments the count; a
// mutation first checks the count and clones the payload when it is not
// the sole owner. Reference counts are only touched by the evaluation
// that owns the value, so they are plain integers, not atomics.
//
// Ownership discipline: constructors and Clone return owned values; the
// holder calls Release exactly once when dropping one. The count is what
// makes the aliasing rules of method calls observable, so the evaluator
// is strict about releasing temporaries.
//
// Cycles through arrays/maps that contain themselves are a caller error:
// the runtime neither detects nor breaks them.

// Tag identifies the variant of a Dynamic.
type Tag uint8

const (
	TagUnit Tag = iota
	TagBool
	TagInt
	TagFloat
	TagChar
	TagString
	TagArray
	TagMap
	TagFnPtr
	TagNative
)

// String returns the stable type name for the tag, as reported by
// type_of() inside scripts.
func (t Tag) String() string {
	switch t {
	case TagUnit:
		return "unit"
	case TagBool:
		return "bool"
	case TagInt:
		return "int"
	case TagFloat:
		return "float"
	case TagChar:
		return "char"
	case TagString:
		return "string"
	case TagArray:
		return "array"
	case TagMap:
		return "map"
	case TagFnPtr:
		return "fn"
	case TagNative:
		return "native"
	default:
		return fmt.Sprintf("Tag(%d)", int(t))
	}
}

// Dynamic is a script-level value.
type Dynamic struct {
	tag Tag
	num uint64 // inline payload for bool/int/float/char
	ref any    // *sharedString, *sharedArray, *sharedMap, *FnPtr, *NativeObject
}

type sharedString struct {
	refs int32
	s    string
}

type sharedArray struct {
	refs  int32
	elems []Dynamic
}

type sharedMap struct {
	refs    int32
	entries map[string]Dynamic
}

// FnPtr is a late-bound reference to a callable by name, optionally with
// curried arguments captured at creation. The target is resolved against
// the registry at call time, never at creation time.
type FnPtr struct {
	Name  string
	Curry []Dynamic
}

// NativeObject is an opaque host-registered value. The runtime compares
// and clones it only through the registered capability hooks.
type NativeObject struct {
	TypeName string
	Value    any
	EqualFn  func(a, b any) bool // nil: instances never compare equal
	CloneFn  func(a any) any     // nil: shared, never deep-copied
}

// ---------------------------------------------------------------------------
// Constructors
// ---------------------------------------------------------------------------

// Unit returns the unit value.
func Unit() Dynamic {
	return Dynamic{tag: TagUnit}
}

// Bool returns a boolean value.
func Bool(b bool) Dynamic {
	var n uint64
	if b {
		n = 1
	}
	return Dynamic{tag: TagBool, num: n}
}

// Int returns an integer value.
func Int(n int64) Dynamic {
	return Dynamic{tag: TagInt, num: uint64(n)}
}

// Float returns a float value.
func Float(f float64) Dynamic {
	return Dynamic{tag: TagFloat, num: math.Float64bits(f)}
}

// Char returns a character value.
func Char(r rune) Dynamic {
	return Dynamic{tag: TagChar, num: uint64(uint32(r))}
}

// Str returns a string value with a fresh reference count.
func Str(s string) Dynamic {
	return Dynamic{tag: TagString, ref: &sharedString{refs: 1, s: s}}
}

// NewArray returns an array value taking ownership of elems.
func NewArray(elems []Dynamic) Dynamic {
	return Dynamic{tag: TagArray, ref: &sharedArray{refs: 1, elems: elems}}
}

// NewMap returns a map value taking ownership of entries. A nil map is
// replaced with an empty one.
func NewMap(entries map[string]Dynamic) Dynamic {
	if entries == nil {
		entries = make(map[string]Dynamic)
	}
	return Dynamic{tag: TagMap, ref: &sharedMap{refs: 1, entries: entries}}
}

// NewFnPtr returns a function-pointer value. Curried arguments are owned
// by the pointer.
func NewFnPtr(name string, curry []Dynamic) Dynamic {
	return Dynamic{tag: TagFnPtr, ref: &FnPtr{Name: name, Curry: curry}}
}

// NewNative wraps a host object.
func NewNative(obj *NativeObject) Dynamic {
	return Dynamic{tag: TagNative, ref: obj}
}

// ---------------------------------------------------------------------------
// Inspection
// ---------------------------------------------------------------------------

// Tag returns the variant tag.
func (d Dynamic) Tag() Tag {
	return d.tag
}

// TypeName returns the stable type name, using the registered name for
// native objects.
func (d Dynamic) TypeName() string {
	if d.tag == TagNative {
		return d.ref.(*NativeObject).TypeName
	}
	return d.tag.String()
}

// IsUnit reports whether d is the unit value.
func (d Dynamic) IsUnit() bool { return d.tag == TagUnit }

// Bool returns the payload of a bool value.
// Panics if d is not a bool.
func (d Dynamic) Bool() bool {
	if d.tag != TagBool {
		panic("Dynamic.Bool: not a bool")
	}
	return d.num != 0
}

// Int returns the payload of an int value.
// Panics if d is not an int.
func (d Dynamic) Int() int64 {
	if d.tag != TagInt {
		panic("Dynamic.Int: not an int")
	}
	return int64(d.num)
}

// Float returns the payload of a float value.
// Panics if d is not a float.
func (d Dynamic) Float() float64 {
	if d.tag != TagFloat {
		panic("Dynamic.Float: not a float")
	}
	return math.Float64frombits(d.num)
}

// Char returns the payload of a char value.
// Panics if d is not a char.
func (d Dynamic) Char() rune {
	if d.tag != TagChar {
		panic("Dynamic.Char: not a char")
	}
	return rune(uint32(d.num))
}

// Str returns the payload of a string value.
// Panics if d is not a string.
func (d Dynamic) Str() string {
	if d.tag != TagString {
		panic("Dynamic.Str: not a string")
	}
	return d.ref.(*sharedString).s
}

// FnPtr returns the function pointer payload.
// Panics if d is not a fn value.
func (d Dynamic) FnPtr() *FnPtr {
	if d.tag != TagFnPtr {
		panic("Dynamic.FnPtr: not a fn")
	}
	return d.ref.(*FnPtr)
}

// Native returns the native object payload.
// Panics if d is not a native value.
func (d Dynamic) Native() *NativeObject {
	if d.tag != TagNative {
		panic("Dynamic.Native: not a native object")
	}
	return d.ref.(*NativeObject)
}

// AsBool is the checked accessor used by host code.
func (d Dynamic) AsBool() (bool, error) {
	if d.tag != TagBool {
		return false, &Error{Kind: TypeMismatch, Msg: "expected bool, got " + d.TypeName()}
	}
	return d.Bool(), nil
}

// AsInt is the checked accessor used by host code.
func (d Dynamic) AsInt() (int64, error) {
	if d.tag != TagInt {
		return 0, &Error{Kind: TypeMismatch, Msg: "expected int, got " + d.TypeName()}
	}
	return d.Int(), nil
}

// AsFloat is the checked accessor used by host code.
func (d Dynamic) AsFloat() (float64, error) {
	if d.tag != TagFloat {
		return 0, &Error{Kind: TypeMismatch, Msg: "expected float, got " + d.TypeName()}
	}
	return d.Float(), nil
}

// AsString is the checked accessor used by host code.
func (d Dynamic) AsString() (string, error) {
	if d.tag != TagString {
		return "", &Error{Kind: TypeMismatch, Msg: "expected string, got " + d.TypeName()}
	}
	return d.Str(), nil
}

// AsChar is the checked accessor used by host code.
func (d Dynamic) AsChar() (rune, error) {
	if d.tag != TagChar {
		return 0, &Error{Kind: TypeMismatch, Msg: "expected char, got " + d.TypeName()}
	}
	return d.Char(), nil
}

// ---------------------------------------------------------------------------
// Reference counting
// ---------------------------------------------------------------------------

// Clone returns a new owned reference to d. O(1): shared payloads bump
// their reference count; inline variants are copied.
func (d Dynamic) Clone() Dynamic {
	switch d.tag {
	case TagString:
		d.ref.(*sharedString).refs++
	case TagArray:
		d.ref.(*sharedArray).refs++
	case TagMap:
		d.ref.(*sharedMap).refs++
	}
	return d
}

// Release drops one owned reference. When the last reference to an array
// or map goes away its elements are released too.
func (d *Dynamic) Release() {
	switch d.tag {
	case TagString:
		d.ref.(*sharedString).refs--
	case TagArray:
		sa := d.ref.(*sharedArray)
		sa.refs--
		if sa.refs == 0 {
			for i := range sa.elems {
				sa.elems[i].Release()
			}
			sa.elems = nil
		}
	case TagMap:
		sm := d.ref.(*sharedMap)
		sm.refs--
		if sm.refs == 0 {
			for k, v := range sm.entries {
				v.Release()
				delete(sm.entries, k)
			}
		}
	}
	*d = Unit()
}

// RefCount returns the current share count of a reference-counted
// variant, or 0 for inline variants. Exposed for tests.
func (d Dynamic) RefCount() int32 {
	switch d.tag {
	case TagString:
		return d.ref.(*sharedString).refs
	case TagArray:
		return d.ref.(*sharedArray).refs
	case TagMap:
		return d.ref.(*sharedMap).refs
	default:
		return 0
	}
}

// mutString returns the string payload for in-place mutation, cloning it
// first when the count shows other holders (copy-on-write).
func (d *Dynamic) mutString() *sharedString {
	ss := d.ref.(*sharedString)
	if ss.refs > 1 {
		ss.refs--
		ss = &sharedString{refs: 1, s: ss.s}
		d.ref = ss
	}
	return ss
}

// mutArray returns the array payload for in-place mutation, cloning it
// first when the count shows other holders.
func (d *Dynamic) mutArray() *sharedArray {
	sa := d.ref.(*sharedArray)
	if sa.refs > 1 {
		sa.refs--
		elems := make([]Dynamic, len(sa.elems))
		for i, e := range sa.elems {
			elems[i] = e.Clone()
		}
		sa = &sharedArray{refs: 1, elems: elems}
		d.ref = sa
	}
	return sa
}

// mutMap returns the map payload for in-place mutation, cloning it first
// when the count shows other holders.
func (d *Dynamic) mutMap() *sharedMap {
	sm := d.ref.(*sharedMap)
	if sm.refs > 1 {
		sm.refs--
		entries := make(map[string]Dynamic, len(sm.entries))
		for k, v := range sm.entries {
			entries[k] = v.Clone()
		}
		sm = &sharedMap{refs: 1, entries: entries}
		d.ref = sm
	}
	return sm
}

// arrayElems returns the elements for read access.
func (d Dynamic) arrayElems() []Dynamic {
	return d.ref.(*sharedArray).elems
}

// mapEntries returns the entries for read access.
func (d Dynamic) mapEntries() map[string]Dynamic {
	return d.ref.(*sharedMap).entries
}

// Len returns the length of a string (in runes), array or map, and -1
// for every other variant.
func (d Dynamic) Len() int {
	switch d.tag {
	case TagString:
		return len([]rune(d.Str()))
	case TagArray:
		return len(d.arrayElems())
	case TagMap:
		return len(d.mapEntries())
	default:
		return -1
	}
}

// ---------------------------------------------------------------------------
// Equality
// ---------------------------------------------------------------------------

// Equal reports deep structural equality. Values of different variants
// are never equal; this is defined behavior, not an error. Native
// objects compare through their registered hook, and never compare
// equal without one, even for two instances of the same native type.
func Equal(a, b Dynamic) bool {
	if a.tag != b.tag {
		return false
	}
	switch a.tag {
	case TagUnit:
		return true
	case TagBool, TagInt, TagChar:
		return a.num == b.num
	case TagFloat:
		return a.Float() == b.Float()
	case TagString:
		return a.Str() == b.Str()
	case TagArray:
		ae, be := a.arrayElems(), b.arrayElems()
		if len(ae) != len(be) {
			return false
		}
		for i := range ae {
			if !Equal(ae[i], be[i]) {
				return false
			}
		}
		return true
	case TagMap:
		am, bm := a.mapEntries(), b.mapEntries()
		if len(am) != len(bm) {
			return false
		}
		for k, av := range am {
			bv, ok := bm[k]
			if !ok || !Equal(av, bv) {
				return false
			}
		}
		return true
	case TagFnPtr:
		af, bf := a.FnPtr(), b.FnPtr()
		if af.Name != bf.Name || len(af.Curry) != len(bf.Curry) {
			return false
		}
		for i := range af.Curry {
			if !Equal(af.Curry[i], bf.Curry[i]) {
				return false
			}
		}
		return true
	case TagNative:
		an, bn := a.Native(), b.Native()
		if an.TypeName != bn.TypeName || an.EqualFn == nil {
			return false
		}
		return an.EqualFn(an.Value, bn.Value)
	default:
		return false
	}
}

// ---------------------------------------------------------------------------
// Display
// ---------------------------------------------------------------------------

// String renders the value the way print does.
func (d Dynamic) String() string {
	switch d.tag {
	case TagUnit:
		return "()"
	case TagBool:
		if d.Bool() {
			return "true"
		}
		return "false"
	case TagInt:
		return strconv.FormatInt(d.Int(), 10)
	case TagFloat:
		return strconv.FormatFloat(d.Float(), 'g', -1, 64)
	case TagChar:
		return string(d.Char())
	case TagString:
		return d.Str()
	case TagArray:
		var sb strings.Builder
		sb.WriteByte('[')
		for i, e := range d.arrayElems() {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(e.debugString())
		}
		sb.WriteByte(']')
		return sb.String()
	case TagMap:
		entries := d.mapEntries()
		keys := make([]string, 0, len(entries))
		for k := range entries {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		var sb strings.Builder
		sb.WriteString("#{")
		for i, k := range keys {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(k)
			sb.WriteString(": ")
			sb.WriteString(entries[k].debugString())
		}
		sb.WriteByte('}')
		return sb.String()
	case TagFnPtr:
		return "Fn(" + d.FnPtr().Name + ")"
	case TagNative:
		return "<" + d.Native().TypeName + ">"
	default:
		return "<invalid>"
	}
}

// debugString quotes strings and chars, for container display.
func (d Dynamic) debugString() string {
	switch d.tag {
	case TagString:
		return strconv.Quote(d.Str())
	case TagChar:
		return strconv.QuoteRune(d.Char())
	default:
		return d.String()
	}
}
