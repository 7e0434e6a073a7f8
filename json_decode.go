package avro

import (
	"errors"
	"fmt"
	"math"
)

// jsonDecoder turns a JSON tree into a Value under a schema node. With wrapped
// set, union values are expected in their {name: value} wrapper and unwrapped
// values fall back to structural matching; without it, as for field defaults,
// union values are always matched structurally.
type jsonDecoder struct {
	s        *Schema
	maxDepth int
	wrapped  bool
}

// defaultValue interprets a field default under node id.
func (s *Schema) defaultValue(id int, raw any) (Value, error) {
	d := jsonDecoder{s: s, maxDepth: DefaultMaxDepth}
	return d.decode(id, raw, 0)
}

func jsonMismatch(want string, x any) error {
	return fmt.Errorf("%w: expected %s, got JSON %s", ErrJSONEncoding, want, jsonTypeName(x))
}

// fromCodepoints reverses codepoints: every character must be in 0-255.
func fromCodepoints(s string) ([]byte, error) {
	out := make([]byte, 0, len(s))
	for _, r := range s {
		if r > 0xff {
			return nil, fmt.Errorf("%w: character %U does not encode a byte", ErrJSONEncoding, r)
		}
		out = append(out, byte(r))
	}
	return out, nil
}

func (d *jsonDecoder) decode(id int, x any, depth int) (Value, error) {
	if depth > d.maxDepth {
		return Value{}, ErrDepthExceeded
	}
	n := &d.s.nodes[id]
	switch n.typ {
	case NullType:
		if x != nil {
			return Value{}, jsonMismatch("null", x)
		}
		return Null(), nil
	case BooleanType:
		b, ok := x.(bool)
		if !ok {
			return Value{}, jsonMismatch("boolean", x)
		}
		return Bool(b), nil
	case IntType, LongType:
		l, ok := jsonInt(x)
		if !ok {
			if isJSONNumber(x) {
				return Value{}, fmt.Errorf("%w: %v is not an integral %s", ErrEncoding, x, n.typ)
			}
			return Value{}, jsonMismatch(n.typ.String(), x)
		}
		if n.typ == IntType && !isInt32(l) {
			return Value{}, fmt.Errorf("%w: %d is out of range for int", ErrEncoding, l)
		}
		return Long(l), nil
	case FloatType:
		f, ok := jsonFloat(x)
		if !ok {
			return Value{}, jsonMismatch("float", x)
		}
		if math.Abs(f) > math.MaxFloat32 {
			return Value{}, fmt.Errorf("%w: %g is out of range for float", ErrEncoding, f)
		}
		return Float(float32(f)), nil
	case DoubleType:
		f, ok := jsonFloat(x)
		if !ok {
			return Value{}, jsonMismatch("double", x)
		}
		return Double(f), nil
	case BytesType, FixedType:
		s, ok := x.(string)
		if !ok {
			return Value{}, jsonMismatch(n.typ.String(), x)
		}
		b, err := fromCodepoints(s)
		if err != nil {
			return Value{}, err
		}
		if n.typ == FixedType && len(b) != n.size {
			return Value{}, fmt.Errorf("%w: fixed %s needs %d bytes, got %d", ErrJSONEncoding, d.s.typeName(id), n.size, len(b))
		}
		return Bytes(b), nil
	case StringType:
		s, ok := x.(string)
		if !ok {
			return Value{}, jsonMismatch("string", x)
		}
		return String(s), nil
	case EnumType:
		s, ok := x.(string)
		if !ok {
			return Value{}, jsonMismatch("enum symbol", x)
		}
		if _, ok := n.symbolIndex[s]; !ok {
			return Value{}, fmt.Errorf("%w: %q is not a symbol of %s", ErrJSONEncoding, s, d.s.typeName(id))
		}
		return String(s), nil
	case RecordType:
		obj, ok := objectOf(x)
		if !ok {
			return Value{}, jsonMismatch("record", x)
		}
		entries := make([]Entry, len(n.fields))
		for i, f := range n.fields {
			var v Value
			var err error
			if fx, ok := obj.get(f.name); ok {
				v, err = d.decode(f.typ, fx, depth+1)
			} else if f.hasDef {
				v, err = d.s.defaultValue(f.typ, f.def)
			} else {
				err = fmt.Errorf("%w: missing field with no default", ErrJSONEncoding)
			}
			if err != nil {
				return Value{}, atField(f.name, err)
			}
			entries[i] = Entry{Key: f.name, Value: v}
		}
		return Map(entries...), nil
	case ArrayType:
		arr, ok := x.([]any)
		if !ok {
			return Value{}, jsonMismatch("array", x)
		}
		items := make([]Value, len(arr))
		for i, item := range arr {
			v, err := d.decode(n.items, item, depth+1)
			if err != nil {
				return Value{}, atIndex(i, err)
			}
			items[i] = v
		}
		return Array(items...), nil
	case MapType:
		obj, ok := objectOf(x)
		if !ok {
			return Value{}, jsonMismatch("map", x)
		}
		entries := make([]Entry, len(obj))
		for i, m := range obj {
			v, err := d.decode(n.items, m.Value, depth+1)
			if err != nil {
				return Value{}, atKey(m.Key, err)
			}
			entries[i] = Entry{Key: m.Key, Value: v}
		}
		return Map(entries...), nil
	case UnionType:
		_, _, v, err := d.union(id, x, depth)
		return v, err
	}
	return Value{}, fmt.Errorf("%w: unknown schema type %s", ErrSchema, n.typ)
}

// union picks the branch of union id that x was written under. It returns the
// branch position, the JSON value inside any wrapper and the decoded value.
func (d *jsonDecoder) union(id int, x any, depth int) (int, any, Value, error) {
	n := &d.s.nodes[id]
	if x == nil {
		for i, b := range n.branches {
			if d.s.nodes[b].typ == NullType {
				return i, nil, Null(), nil
			}
		}
		return 0, nil, Value{}, fmt.Errorf("%w: null matches no branch of %s", ErrJSONEncoding, d.s.canonical(id))
	}

	obj, isObject := objectOf(x)
	if d.wrapped && isObject && len(obj) == 1 {
		if i, ok := n.branchByName[obj[0].Key]; ok {
			v, err := d.decode(n.branches[i], obj[0].Value, depth+1)
			if err != nil {
				return 0, nil, Value{}, atField(obj[0].Key, err)
			}
			return i, obj[0].Value, v, nil
		}
	}

	// unwrapped: the first branch, in declaration order, that accepts x
	for i, b := range n.branches {
		if d.s.nodes[b].typ == NullType || !d.shape(b, x) {
			continue
		}
		v, err := d.decode(b, x, depth+1)
		if err == nil {
			return i, x, v, nil
		}
		if errors.Is(err, ErrDepthExceeded) {
			return 0, nil, Value{}, err
		}
	}

	if d.wrapped && isObject && len(obj) > 1 {
		for _, m := range obj {
			if _, ok := n.branchByName[m.Key]; ok {
				return 0, nil, Value{}, fmt.Errorf("%w: malformed union wrapper with %d keys for %s", ErrJSONEncoding, len(obj), d.s.canonical(id))
			}
		}
	}
	return 0, nil, Value{}, fmt.Errorf("%w: JSON %s matches no branch of %s", ErrJSONEncoding, jsonTypeName(x), d.s.canonical(id))
}

// shape is the structural test for unwrapped union values: scalars match their
// primitive kinds, arrays match arrays, any object matches a map, and an object
// carrying every required field name matches a record.
func (d *jsonDecoder) shape(id int, x any) bool {
	n := &d.s.nodes[id]
	switch n.typ {
	case NullType:
		return x == nil
	case BooleanType:
		_, ok := x.(bool)
		return ok
	case IntType, LongType:
		_, ok := jsonInt(x)
		return ok
	case FloatType:
		f, ok := jsonFloat(x)
		return ok && float32Exact(f)
	case DoubleType:
		return isJSONNumber(x)
	case BytesType, StringType, EnumType, FixedType:
		_, ok := x.(string)
		return ok
	case ArrayType:
		_, ok := x.([]any)
		return ok
	case MapType:
		_, ok := objectOf(x)
		return ok
	case RecordType:
		obj, ok := objectOf(x)
		if !ok {
			return false
		}
		for _, f := range n.fields {
			if f.hasDef {
				continue
			}
			if _, ok := obj.get(f.name); !ok {
				return false
			}
		}
		return true
	}
	return false
}
