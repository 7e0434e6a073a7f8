package avro

import (
	"bytes"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"
)

type jsonEncoder struct {
	s        *Schema
	buf      *bytes.Buffer
	maxDepth int
}

// codepoints renders bytes as a string holding one code point (0-255) per byte.
func codepoints(b []byte) string {
	var sb strings.Builder
	sb.Grow(len(b))
	for _, c := range b {
		sb.WriteRune(rune(c))
	}
	return sb.String()
}

func (e *jsonEncoder) str(s string) {
	e.buf.Write(appendJSONString(e.buf.AvailableBuffer(), s))
}

func (e *jsonEncoder) number(f float64, bits int) error {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return fmt.Errorf("%w: %g has no JSON representation", ErrJSONEncoding, f)
	}
	e.buf.Write(strconv.AppendFloat(e.buf.AvailableBuffer(), f, 'g', -1, bits))
	return nil
}

// encode writes v under node id as JSON. Union values are wrapped in a single-key
// object naming the branch, except null which stays bare.
func (e *jsonEncoder) encode(id int, v Value, depth int) error {
	if depth > e.maxDepth {
		return ErrDepthExceeded
	}
	n := &e.s.nodes[id]
	switch n.typ {
	case NullType:
		if v.kind != NullValue {
			return mismatch("null", v)
		}
		e.buf.WriteString("null")
	case BooleanType:
		if v.kind != BooleanValue {
			return mismatch("boolean", v)
		}
		e.buf.WriteString(strconv.FormatBool(v.b))
	case IntType, LongType:
		if v.kind != LongValue {
			return mismatch(n.typ.String(), v)
		}
		if n.typ == IntType && !isInt32(v.l) {
			return fmt.Errorf("%w: %d is out of range for int", ErrEncoding, v.l)
		}
		e.buf.Write(strconv.AppendInt(e.buf.AvailableBuffer(), v.l, 10))
	case FloatType:
		f, ok := numeric(v)
		if !ok {
			return mismatch("float", v)
		}
		if !math.IsInf(f, 0) && !math.IsNaN(f) && math.Abs(f) > math.MaxFloat32 {
			return fmt.Errorf("%w: %g is out of range for float", ErrEncoding, f)
		}
		return e.number(float64(float32(f)), 32)
	case DoubleType:
		f, ok := numeric(v)
		if !ok {
			return mismatch("double", v)
		}
		return e.number(f, 64)
	case BytesType:
		if v.kind != BytesValue {
			return mismatch("bytes", v)
		}
		e.str(codepoints(v.raw))
	case StringType:
		if v.kind != StringValue {
			return mismatch("string", v)
		}
		if !utf8.ValidString(v.s) {
			return fmt.Errorf("%w: string is not valid UTF-8", ErrEncoding)
		}
		e.str(v.s)
	case FixedType:
		if v.kind != BytesValue {
			return mismatch("fixed", v)
		}
		if len(v.raw) != n.size {
			return fmt.Errorf("%w: fixed %s needs %d bytes, got %d", ErrEncoding, e.s.typeName(id), n.size, len(v.raw))
		}
		e.str(codepoints(v.raw))
	case EnumType:
		if v.kind != StringValue {
			return mismatch("enum symbol", v)
		}
		if _, ok := n.symbolIndex[v.s]; !ok {
			return fmt.Errorf("%w: %q is not a symbol of %s", ErrEncoding, v.s, e.s.typeName(id))
		}
		e.str(v.s)
	case RecordType:
		return e.encodeRecord(n, v, depth)
	case ArrayType:
		if v.kind != ArrayValue {
			return mismatch("array", v)
		}
		e.buf.WriteByte('[')
		for i, item := range v.items {
			if i > 0 {
				e.buf.WriteByte(',')
			}
			if err := e.encode(n.items, item, depth+1); err != nil {
				return atIndex(i, err)
			}
		}
		e.buf.WriteByte(']')
	case MapType:
		if v.kind != MapValue {
			return mismatch("map", v)
		}
		e.buf.WriteByte('{')
		for i, entry := range v.entries {
			if !utf8.ValidString(entry.Key) {
				return atKey(entry.Key, fmt.Errorf("%w: map key is not valid UTF-8", ErrEncoding))
			}
			if i > 0 {
				e.buf.WriteByte(',')
			}
			e.str(entry.Key)
			e.buf.WriteByte(':')
			if err := e.encode(n.items, entry.Value, depth+1); err != nil {
				return atKey(entry.Key, err)
			}
		}
		e.buf.WriteByte('}')
	case UnionType:
		i, ok := e.s.selectBranch(id, v)
		if !ok {
			return fmt.Errorf("%w: %s value matches no branch of union %s", ErrJSONEncoding, v.kind, e.s.canonical(id))
		}
		b := n.branches[i]
		if e.s.nodes[b].typ == NullType {
			e.buf.WriteString("null")
			return nil
		}
		e.buf.WriteByte('{')
		e.str(e.s.typeName(b))
		e.buf.WriteByte(':')
		if err := e.encode(b, v, depth+1); err != nil {
			return err
		}
		e.buf.WriteByte('}')
	default:
		return fmt.Errorf("%w: unknown schema type %s", ErrSchema, n.typ)
	}
	return nil
}

func (e *jsonEncoder) encodeRecord(n *node, v Value, depth int) error {
	if v.kind != MapValue {
		return mismatch("record", v)
	}
	e.buf.WriteByte('{')
	for i, f := range n.fields {
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
		if i > 0 {
			e.buf.WriteByte(',')
		}
		e.str(f.name)
		e.buf.WriteByte(':')
		if err := e.encode(f.typ, fv, depth+1); err != nil {
			return atField(f.name, err)
		}
	}
	e.buf.WriteByte('}')
	return nil
}
