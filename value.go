package avro

import (
	"bytes"
	"fmt"
	"math"
	"reflect"
	"sort"
	"strconv"
	"strings"
)

// ValueKind is the tag of a Value.
type ValueKind uint8

const (
	NullValue ValueKind = iota
	BooleanValue
	LongValue
	DoubleValue
	BytesValue
	StringValue
	ArrayValue
	MapValue
)

func (k ValueKind) String() string {
	switch k {
	case NullValue:
		return "null"
	case BooleanValue:
		return "boolean"
	case LongValue:
		return "long"
	case DoubleValue:
		return "double"
	case BytesValue:
		return "bytes"
	case StringValue:
		return "string"
	case ArrayValue:
		return "array"
	case MapValue:
		return "map"
	}
	return "ValueKind(" + strconv.Itoa(int(k)) + ")"
}

// Entry is one key/value pair of a map or record value.
type Entry struct {
	Key   string
	Value Value
}

// Value is the in-memory form of one Avro datum: a closed sum over null, boolean,
// long, double, bytes, string, array and ordered map. Int and float data decode to
// Long and Double; records and maps both decode to ordered maps, records in field
// declaration order.
//
// The zero Value is null.
type Value struct {
	kind    ValueKind
	b       bool
	l       int64
	d       float64
	raw     []byte
	s       string
	items   []Value
	entries []Entry
}

func Null() Value                { return Value{} }
func Bool(b bool) Value          { return Value{kind: BooleanValue, b: b} }
func Long(n int64) Value         { return Value{kind: LongValue, l: n} }
func Int(n int32) Value          { return Value{kind: LongValue, l: int64(n)} }
func Double(f float64) Value     { return Value{kind: DoubleValue, d: f} }
func Float(f float32) Value      { return Value{kind: DoubleValue, d: float64(f)} }
func Bytes(b []byte) Value       { return Value{kind: BytesValue, raw: b} }
func String(s string) Value      { return Value{kind: StringValue, s: s} }
func Array(items ...Value) Value { return Value{kind: ArrayValue, items: items} }
func Map(entries ...Entry) Value { return Value{kind: MapValue, entries: entries} }

// Record is Map under another name, for call sites building record values.
func Record(fields ...Entry) Value { return Map(fields...) }

// E builds an Entry.
func E(key string, v Value) Entry { return Entry{Key: key, Value: v} }

func (v Value) Kind() ValueKind   { return v.kind }
func (v Value) IsNull() bool      { return v.kind == NullValue }
func (v Value) AsBool() bool      { return v.b }
func (v Value) AsLong() int64     { return v.l }
func (v Value) AsDouble() float64 { return v.d }
func (v Value) AsBytes() []byte   { return v.raw }
func (v Value) AsString() string  { return v.s }
func (v Value) Items() []Value    { return v.items }
func (v Value) Entries() []Entry  { return v.entries }
func (v Value) Len() int {
	switch v.kind {
	case ArrayValue:
		return len(v.items)
	case MapValue:
		return len(v.entries)
	case BytesValue:
		return len(v.raw)
	case StringValue:
		return len(v.s)
	}
	return 0
}

// Get returns the value stored under key in a map or record value.
func (v Value) Get(key string) (Value, bool) {
	for _, e := range v.entries {
		if e.Key == key {
			return e.Value, true
		}
	}
	return Value{}, false
}

// Equal reports whether two values are the same datum. Map entries compare in order.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case NullValue:
		return true
	case BooleanValue:
		return v.b == o.b
	case LongValue:
		return v.l == o.l
	case DoubleValue:
		return v.d == o.d || (math.IsNaN(v.d) && math.IsNaN(o.d))
	case BytesValue:
		return bytes.Equal(v.raw, o.raw)
	case StringValue:
		return v.s == o.s
	case ArrayValue:
		if len(v.items) != len(o.items) {
			return false
		}
		for i := range v.items {
			if !v.items[i].Equal(o.items[i]) {
				return false
			}
		}
		return true
	case MapValue:
		if len(v.entries) != len(o.entries) {
			return false
		}
		for i := range v.entries {
			if v.entries[i].Key != o.entries[i].Key || !v.entries[i].Value.Equal(o.entries[i].Value) {
				return false
			}
		}
		return true
	}
	return false
}

func (v Value) String() string {
	var sb strings.Builder
	v.format(&sb)
	return sb.String()
}

func (v Value) format(sb *strings.Builder) {
	switch v.kind {
	case NullValue:
		sb.WriteString("null")
	case BooleanValue:
		sb.WriteString(strconv.FormatBool(v.b))
	case LongValue:
		sb.WriteString(strconv.FormatInt(v.l, 10))
	case DoubleValue:
		sb.WriteString(strconv.FormatFloat(v.d, 'g', -1, 64))
	case BytesValue:
		fmt.Fprintf(sb, "%q", v.raw)
	case StringValue:
		sb.WriteString(strconv.Quote(v.s))
	case ArrayValue:
		sb.WriteByte('[')
		for i, item := range v.items {
			if i > 0 {
				sb.WriteString(", ")
			}
			item.format(sb)
		}
		sb.WriteByte(']')
	case MapValue:
		sb.WriteByte('{')
		for i, e := range v.entries {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(strconv.Quote(e.Key))
			sb.WriteString(": ")
			e.Value.format(sb)
		}
		sb.WriteByte('}')
	}
}

// Clone returns a deep copy of v that shares no slices with it.
func (v Value) Clone() Value {
	switch v.kind {
	case BytesValue:
		if v.raw != nil {
			v.raw = bytes.Clone(v.raw)
		}
	case ArrayValue:
		items := make([]Value, len(v.items))
		for i, item := range v.items {
			items[i] = item.Clone()
		}
		v.items = items
	case MapValue:
		entries := make([]Entry, len(v.entries))
		for i, e := range v.entries {
			entries[i] = Entry{Key: e.Key, Value: e.Value.Clone()}
		}
		v.entries = entries
	}
	return v
}

// Native converts the value to plain Go data: nil, bool, int64, float64, []byte,
// string, []any and map[string]any.
func (v Value) Native() any {
	switch v.kind {
	case BooleanValue:
		return v.b
	case LongValue:
		return v.l
	case DoubleValue:
		return v.d
	case BytesValue:
		return v.raw
	case StringValue:
		return v.s
	case ArrayValue:
		out := make([]any, len(v.items))
		for i, item := range v.items {
			out[i] = item.Native()
		}
		return out
	case MapValue:
		out := make(map[string]any, len(v.entries))
		for _, e := range v.entries {
			out[e.Key] = e.Value.Native()
		}
		return out
	}
	return nil
}

// ValueOf converts plain Go data into a Value. Go maps become ordered maps with keys
// sorted, since Go map iteration order carries no meaning. Values that are already a
// Value pass through.
func ValueOf(x any) (Value, error) {
	switch t := x.(type) {
	case nil:
		return Null(), nil
	case Value:
		return t, nil
	case bool:
		return Bool(t), nil
	case int:
		return Long(int64(t)), nil
	case int8:
		return Long(int64(t)), nil
	case int16:
		return Long(int64(t)), nil
	case int32:
		return Long(int64(t)), nil
	case int64:
		return Long(t), nil
	case uint8:
		return Long(int64(t)), nil
	case uint16:
		return Long(int64(t)), nil
	case uint32:
		return Long(int64(t)), nil
	case uint:
		if uint64(t) > math.MaxInt64 {
			return Value{}, fmt.Errorf("%w: %d overflows long", ErrEncoding, t)
		}
		return Long(int64(t)), nil
	case uint64:
		if t > math.MaxInt64 {
			return Value{}, fmt.Errorf("%w: %d overflows long", ErrEncoding, t)
		}
		return Long(int64(t)), nil
	case float32:
		return Float(t), nil
	case float64:
		return Double(t), nil
	case []byte:
		return Bytes(t), nil
	case string:
		return String(t), nil
	case []any:
		items := make([]Value, len(t))
		for i, item := range t {
			v, err := ValueOf(item)
			if err != nil {
				return Value{}, atIndex(i, err)
			}
			items[i] = v
		}
		return Array(items...), nil
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		entries := make([]Entry, len(keys))
		for i, k := range keys {
			v, err := ValueOf(t[k])
			if err != nil {
				return Value{}, atKey(k, err)
			}
			entries[i] = Entry{Key: k, Value: v}
		}
		return Map(entries...), nil
	}
	return valueOfReflect(reflect.ValueOf(x))
}

// valueOfReflect covers typed slices and maps such as []string or map[string]int64.
func valueOfReflect(rv reflect.Value) (Value, error) {
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return Null(), nil
		}
		return ValueOf(rv.Elem().Interface())
	case reflect.Slice, reflect.Array:
		items := make([]Value, rv.Len())
		for i := range items {
			v, err := ValueOf(rv.Index(i).Interface())
			if err != nil {
				return Value{}, atIndex(i, err)
			}
			items[i] = v
		}
		return Array(items...), nil
	case reflect.Bool:
		return Bool(rv.Bool()), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return Long(rv.Int()), nil
	case reflect.Float32, reflect.Float64:
		return Double(rv.Float()), nil
	case reflect.String:
		return String(rv.String()), nil
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			break
		}
		keys := make([]string, 0, rv.Len())
		for _, k := range rv.MapKeys() {
			keys = append(keys, k.String())
		}
		sort.Strings(keys)
		entries := make([]Entry, len(keys))
		for i, k := range keys {
			v, err := ValueOf(rv.MapIndex(reflect.ValueOf(k).Convert(rv.Type().Key())).Interface())
			if err != nil {
				return Value{}, atKey(k, err)
			}
			entries[i] = Entry{Key: k, Value: v}
		}
		return Map(entries...), nil
	}
	return Value{}, fmt.Errorf("%w: unsupported Go type %s", ErrEncoding, rv.Type())
}
