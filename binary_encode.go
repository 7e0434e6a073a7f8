package avro

import (
	"fmt"
	"math"
	"unicode/utf8"
)

type encoder struct {
	s        *Schema
	w        *Writer
	maxDepth int
}

func mismatch(want string, v Value) error {
	return fmt.Errorf("%w: expected %s, got %s", ErrEncoding, want, v.kind)
}

// encode writes v under node id. Shape checks happen as the value is walked; the
// caller discards whatever was written when an error comes back.
func (e *encoder) encode(id int, v Value, depth int) error {
	if depth > e.maxDepth {
		return ErrDepthExceeded
	}
	n := &e.s.nodes[id]
	switch n.typ {
	case NullType:
		if v.kind != NullValue {
			return mismatch("null", v)
		}
	case BooleanType:
		if v.kind != BooleanValue {
			return mismatch("boolean", v)
		}
		e.w.WriteBoolean(v.b)
	case IntType:
		if v.kind != LongValue {
			return mismatch("int", v)
		}
		if !isInt32(v.l) {
			return fmt.Errorf("%w: %d is out of range for int", ErrEncoding, v.l)
		}
		e.w.WriteInt(int32(v.l))
	case LongType:
		if v.kind != LongValue {
			return mismatch("long", v)
		}
		e.w.WriteLong(v.l)
	case FloatType:
		f, ok := numeric(v)
		if !ok {
			return mismatch("float", v)
		}
		if !math.IsInf(f, 0) && !math.IsNaN(f) && math.Abs(f) > math.MaxFloat32 {
			return fmt.Errorf("%w: %g is out of range for float", ErrEncoding, f)
		}
		e.w.WriteFloat(float32(f))
	case DoubleType:
		f, ok := numeric(v)
		if !ok {
			return mismatch("double", v)
		}
		e.w.WriteDouble(f)
	case BytesType:
		if v.kind != BytesValue {
			return mismatch("bytes", v)
		}
		e.w.WriteBytes(v.raw)
	case StringType:
		if v.kind != StringValue {
			return mismatch("string", v)
		}
		if !utf8.ValidString(v.s) {
			return fmt.Errorf("%w: string is not valid UTF-8", ErrEncoding)
		}
		e.w.WriteString(v.s)
	case RecordType:
		return e.encodeRecord(n, v, depth)
	case EnumType:
		if v.kind != StringValue {
			return mismatch("enum symbol", v)
		}
		i, ok := n.symbolIndex[v.s]
		if !ok {
			return fmt.Errorf("%w: %q is not a symbol of %s", ErrEncoding, v.s, e.s.typeName(id))
		}
		e.w.WriteInt(int32(i))
	case ArrayType:
		if v.kind != ArrayValue {
			return mismatch("array", v)
		}
		if len(v.items) > 0 {
			e.w.WriteLong(int64(len(v.items)))
			for i, item := range v.items {
				if err := e.encode(n.items, item, depth+1); err != nil {
					return atIndex(i, err)
				}
			}
		}
		e.w.WriteLong(0)
	case MapType:
		if v.kind != MapValue {
			return mismatch("map", v)
		}
		if len(v.entries) > 0 {
			e.w.WriteLong(int64(len(v.entries)))
			for _, entry := range v.entries {
				if !utf8.ValidString(entry.Key) {
					return atKey(entry.Key, fmt.Errorf("%w: map key is not valid UTF-8", ErrEncoding))
				}
				e.w.WriteString(entry.Key)
				if err := e.encode(n.items, entry.Value, depth+1); err != nil {
					return atKey(entry.Key, err)
				}
			}
		}
		e.w.WriteLong(0)
	case UnionType:
		i, ok := e.s.selectBranch(id, v)
		if !ok {
			return fmt.Errorf("%w: %s value matches no branch of union %s", ErrEncoding, v.kind, e.s.canonical(id))
		}
		e.w.WriteLong(int64(i))
		return e.encode(n.branches[i], v, depth+1)
	case FixedType:
		if v.kind != BytesValue {
			return mismatch("fixed", v)
		}
		if len(v.raw) != n.size {
			return fmt.Errorf("%w: fixed %s needs %d bytes, got %d", ErrEncoding, e.s.typeName(id), n.size, len(v.raw))
		}
		e.w.WriteFixed(v.raw)
	default:
		return fmt.Errorf("%w: unknown schema type %s", ErrSchema, n.typ)
	}
	return e.w.Err()
}

// encodeRecord writes fields in declaration order. A field missing from the value
// is written from its default.
func (e *encoder) encodeRecord(n *node, v Value, depth int) error {
	if v.kind != MapValue {
		return mismatch("record", v)
	}
	for _, f := range n.fields {
		fv, ok := v.Get(f.name)
		if !ok {
			if !f.hasDef {
				return atField(f.name, fmt.Errorf("%w: missing field with no default", ErrEncoding))
			}
			def, err := e.s.defaultValue(f.typ, f.def)
			if err != nil {
				return atField(f.name, err)
			}
			fv = def
		}
		if err := e.encode(f.typ, fv, depth+1); err != nil {
			return atField(f.name, err)
		}
	}
	return e.w.Err()
}

func numeric(v Value) (float64, bool) {
	switch v.kind {
	case LongValue:
		return float64(v.l), true
	case DoubleValue:
		return v.d, true
	}
	return 0, false
}
