package vm

import (
	"fmt"
	"math"
	"reflect"

	"github.com/fxamacker/cbor/v2"

	"github.com/rove-lang/rove/ast"
)

// ---------------------------------------------------------------------------
// Serialization bridge: Dynamic <-> canonical CBOR
// ---------------------------------------------------------------------------
//
// Unit, bool, int, float, char, string, array and map round-trip;
// function pointers and native objects do not serialize. Canonical
// encoding keeps the byte form deterministic, so equal trees encode
// equally.

// charTag distinguishes a char from a plain integer on the wire.
const charTag = 1004

var (
	cborEncMode cbor.EncMode
	cborDecMode cbor.DecMode
)

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("vm: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em

	dm, err := cbor.DecOptions{
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
	}.DecMode()
	if err != nil {
		panic(fmt.Sprintf("vm: failed to create CBOR dec mode: %v", err))
	}
	cborDecMode = dm
}

// Marshal encodes a value as canonical CBOR.
func Marshal(d Dynamic) ([]byte, error) {
	tree, err := toWire(d)
	if err != nil {
		return nil, err
	}
	return cborEncMode.Marshal(tree)
}

// Unmarshal decodes CBOR bytes into a fresh value tree.
func Unmarshal(data []byte) (Dynamic, error) {
	var tree any
	if err := cborDecMode.Unmarshal(data, &tree); err != nil {
		return Unit(), fmt.Errorf("vm: unmarshal value: %w", err)
	}
	return fromWire(tree)
}

func toWire(d Dynamic) (any, error) {
	switch d.Tag() {
	case TagUnit:
		return nil, nil
	case TagBool:
		return d.Bool(), nil
	case TagInt:
		return d.Int(), nil
	case TagFloat:
		return d.Float(), nil
	case TagChar:
		return cbor.Tag{Number: charTag, Content: int64(d.Char())}, nil
	case TagString:
		return d.Str(), nil
	case TagArray:
		elems := d.arrayElems()
		out := make([]any, len(elems))
		for i, el := range elems {
			w, err := toWire(el)
			if err != nil {
				return nil, err
			}
			out[i] = w
		}
		return out, nil
	case TagMap:
		out := make(map[string]any, d.Len())
		for k, v := range d.mapEntries() {
			w, err := toWire(v)
			if err != nil {
				return nil, err
			}
			out[k] = w
		}
		return out, nil
	default:
		return nil, NewError(NotSerializable, ast.Position{}, "a %s value is not serializable", d.TypeName())
	}
}

func fromWire(v any) (Dynamic, error) {
	switch x := v.(type) {
	case nil:
		return Unit(), nil
	case bool:
		return Bool(x), nil
	case int64:
		return Int(x), nil
	case uint64:
		if x > math.MaxInt64 {
			return Unit(), fmt.Errorf("vm: integer %d out of range", x)
		}
		return Int(int64(x)), nil
	case float64:
		return Float(x), nil
	case string:
		return Str(x), nil
	case cbor.Tag:
		if x.Number != charTag {
			return Unit(), fmt.Errorf("vm: unknown CBOR tag %d", x.Number)
		}
		c, err := fromWire(x.Content)
		if err != nil {
			return Unit(), err
		}
		defer c.Release()
		if c.Tag() != TagInt {
			return Unit(), fmt.Errorf("vm: malformed char encoding")
		}
		return Char(rune(c.Int())), nil
	case []any:
		elems := make([]Dynamic, 0, len(x))
		for _, el := range x {
			d, err := fromWire(el)
			if err != nil {
				for i := range elems {
					elems[i].Release()
				}
				return Unit(), err
			}
			elems = append(elems, d)
		}
		return NewArray(elems), nil
	case map[string]any:
		entries := make(map[string]Dynamic, len(x))
		for k, el := range x {
			d, err := fromWire(el)
			if err != nil {
				for _, e := range entries {
					e.Release()
				}
				return Unit(), err
			}
			entries[k] = d
		}
		return NewMap(entries), nil
	default:
		return Unit(), fmt.Errorf("vm: cannot decode %T", v)
	}
}
