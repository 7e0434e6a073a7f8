package avro

import (
	"bytes"
	"math"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const everythingSchema = `{
	"type": "record",
	"name": "Everything",
	"namespace": "test",
	"fields": [
		{"name": "n", "type": "null"},
		{"name": "b", "type": "boolean"},
		{"name": "i", "type": "int"},
		{"name": "l", "type": "long"},
		{"name": "f", "type": "float"},
		{"name": "d", "type": "double"},
		{"name": "raw", "type": "bytes"},
		{"name": "s", "type": "string"},
		{"name": "e", "type": {"type": "enum", "name": "Suit", "symbols": ["SPADES", "HEARTS", "CLUBS"]}},
		{"name": "fx", "type": {"type": "fixed", "name": "Pair", "size": 2}},
		{"name": "arr", "type": {"type": "array", "items": "Suit"}},
		{"name": "m", "type": {"type": "map", "values": ["null", "Pair", "string"]}},
		{"name": "u", "type": ["null", {"type": "record", "name": "Inner", "fields": [{"name": "x", "type": "int"}]}]}
	]
}`

func everythingValue() Value {
	return Record(
		E("n", Null()),
		E("b", Bool(true)),
		E("i", Int(-7)),
		E("l", Long(math.MaxInt64)),
		E("f", Float(1.25)),
		E("d", Double(-3.5e100)),
		E("raw", Bytes([]byte{0, 1, 0xff})),
		E("s", String("héllo")),
		E("e", String("CLUBS")),
		E("fx", Bytes([]byte{9, 8})),
		E("arr", Array(String("HEARTS"), String("SPADES"))),
		E("m", Map(E("a", Null()), E("b", Bytes([]byte{1, 2})), E("c", String("see")))),
		E("u", Record(E("x", Int(42)))),
	)
}

func TestBinaryWireFormat(t *testing.T) {
	tests := []struct {
		name   string
		schema string
		value  Value
		wire   []byte
	}{
		{"Null", `"null"`, Null(), nil},
		{"True", `"boolean"`, Bool(true), []byte{0x01}},
		{"False", `"boolean"`, Bool(false), []byte{0x00}},
		{"Int", `"int"`, Int(-64), []byte{0x7f}},
		{"Long", `"long"`, Long(64), []byte{0x80, 0x01}},
		{"Float", `"float"`, Float(1), []byte{0x00, 0x00, 0x80, 0x3f}},
		{"Double", `"double"`, Double(1), []byte{0, 0, 0, 0, 0, 0, 0xf0, 0x3f}},
		{"Bytes", `"bytes"`, Bytes([]byte{0xaa}), []byte{0x02, 0xaa}},
		{"String", `"string"`, String("foo"), []byte{0x06, 'f', 'o', 'o'}},
		{"Record", `{"type": "record", "name": "R", "fields": [{"name": "name", "type": "string"}, {"name": "age", "type": "int"}]}`,
			Record(E("name", String("foo")), E("age", Int(30))), []byte{0x06, 'f', 'o', 'o', 0x3c}},
		{"Enum", `{"type": "enum", "name": "E", "symbols": ["A", "B", "C"]}`, String("C"), []byte{0x04}},
		{"Array", `{"type": "array", "items": "int"}`, Array(Int(1), Int(2), Int(3)), []byte{0x06, 0x02, 0x04, 0x06, 0x00}},
		{"EmptyArray", `{"type": "array", "items": "int"}`, Array(), []byte{0x00}},
		{"Map", `{"type": "map", "values": "int"}`, Map(E("a", Int(1))), []byte{0x02, 0x02, 'a', 0x02, 0x00}},
		{"UnionNull", `["null", "string"]`, Null(), []byte{0x00}},
		{"UnionString", `["null", "string"]`, String("a"), []byte{0x02, 0x02, 'a'}},
		{"Fixed", `{"type": "fixed", "name": "F", "size": 3}`, Bytes([]byte{1, 2, 3}), []byte{1, 2, 3}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := mustParse(t, tt.schema)
			var buf bytes.Buffer
			require.NoError(t, SchemalessWriter(&buf, s, tt.value))
			assert.Equal(t, tt.wire, buf.Bytes())

			got, err := SchemalessReader(&buf, s, nil)
			require.NoError(t, err)
			assertValue(t, tt.value, got)
			assert.Zero(t, buf.Len(), "the value must be consumed exactly")
		})
	}
}

func TestBinaryRoundTrip(t *testing.T) {
	s := mustParse(t, everythingSchema)
	v := everythingValue()

	data, err := Marshal(s, v)
	require.NoError(t, err)
	got, err := Unmarshal(data, s, nil)
	require.NoError(t, err)
	assertValue(t, v, got)

	dst := make([]byte, len(data))
	n, err := MarshalTo(dst, s, v)
	require.NoError(t, err)
	assert.Equal(t, data, dst[:n])

	_, err = MarshalTo(make([]byte, len(data)-1), s, v)
	assert.Error(t, err)

	_, err = Unmarshal(append(data, 0), s, nil)
	assert.ErrorIs(t, err, ErrEncoding)
}

func TestBinaryRecursive(t *testing.T) {
	s := mustParse(t, linkedListSchema)
	list := Null()
	for i := 5; i > 0; i-- {
		list = Record(E("value", Long(int64(i))), E("next", list))
	}
	data, err := Marshal(s, list)
	require.NoError(t, err)
	got, err := Unmarshal(data, s, nil)
	require.NoError(t, err)
	assertValue(t, list, got)

	_, err = Marshal(s, list, WithMaxDepth(4))
	assert.ErrorIs(t, err, ErrDepthExceeded)
	_, err = Unmarshal(data, s, nil, WithMaxDepth(4))
	assert.ErrorIs(t, err, ErrDepthExceeded)
}

func TestBinaryBooleanExactness(t *testing.T) {
	s := mustParse(t, `{"type": "record", "fields": [{"name": "field", "type": "boolean"}]}`)
	for _, b := range []bool{true, false} {
		record := Record(E("field", Bool(b)))
		data, err := Marshal(s, record)
		require.NoError(t, err)
		if b {
			assert.Equal(t, []byte{0x01}, data)
		} else {
			assert.Equal(t, []byte{0x00}, data)
		}
		got, err := Unmarshal(data, s, nil)
		require.NoError(t, err)
		assertValue(t, record, got)
	}

	got, err := Unmarshal([]byte{0x7f}, s, nil)
	require.NoError(t, err)
	assertValue(t, Record(E("field", Bool(true))), got)
}

func TestBinaryNegativeBlocks(t *testing.T) {
	s := mustParse(t, `{"type": "array", "items": "int"}`)
	// -2 items in 2 bytes, then 1 item, then the terminator
	data := []byte{0x03, 0x04, 0x02, 0x04, 0x02, 0x06, 0x00}
	got, err := Unmarshal(data, s, nil)
	require.NoError(t, err)
	assertValue(t, Array(Int(1), Int(2), Int(3)), got)

	m := mustParse(t, `{"type": "map", "values": "string"}`)
	data = []byte{0x01, 0x08, 0x02, 'k', 0x02, 'v', 0x00}
	got, err = Unmarshal(data, m, nil)
	require.NoError(t, err)
	assertValue(t, Map(E("k", String("v"))), got)
}

func TestBinaryStreamAdvancesExactly(t *testing.T) {
	s := mustParse(t, everythingSchema)
	v := everythingValue()
	var buf bytes.Buffer
	require.NoError(t, SchemalessWriter(&buf, s, v))
	single := buf.Len()
	require.NoError(t, SchemalessWriter(&buf, s, v))
	buf.WriteString("tail")

	// a reader without ReadByte must not be read past the value either
	r := iotest.OneByteReader(&buf)
	for range 2 {
		got, err := SchemalessReader(r, s, nil)
		require.NoError(t, err)
		assertValue(t, v, got)
	}
	assert.Equal(t, "tail", buf.String())
	assert.Positive(t, single)
}

func TestBinaryTruncated(t *testing.T) {
	s := mustParse(t, everythingSchema)
	data, err := Marshal(s, everythingValue())
	require.NoError(t, err)
	for n := range len(data) {
		got, err := SchemalessReader(bytes.NewReader(data[:n]), s, nil)
		require.ErrorIs(t, err, ErrStreamTruncated, "prefix of %d bytes", n)
		assertValue(t, Null(), got)
	}
}

func TestBinaryDecodeErrors(t *testing.T) {
	enum := mustParse(t, `{"type": "enum", "name": "E", "symbols": ["A", "B", "C"]}`)
	_, err := Unmarshal([]byte{0x06}, enum, nil)
	assert.ErrorIs(t, err, ErrSchemaResolution)

	union := mustParse(t, `["null", "int"]`)
	_, err = Unmarshal([]byte{0x04}, union, nil)
	assert.ErrorIs(t, err, ErrSchemaResolution)
	_, err = Unmarshal([]byte{0x01}, union, nil)
	assert.ErrorIs(t, err, ErrSchemaResolution)

	i := mustParse(t, `"int"`)
	_, err = Unmarshal([]byte{0xff, 0xff, 0xff, 0xff, 0x1f}, i, nil)
	assert.ErrorIs(t, err, ErrOverflow)

	rec := mustParse(t, `{"type": "record", "name": "R", "fields": [{"name": "tags", "type": {"type": "array", "items": "string"}}]}`)
	_, err = Unmarshal([]byte{0x04, 0x02, 'a', 0x02, 0xff, 0x00}, rec, nil)
	assert.ErrorIs(t, err, ErrEncoding)
	var pe *PathError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "tags[1]", pe.Path)
}

func TestBinaryEncodeErrors(t *testing.T) {
	s := mustParse(t, `{
		"type": "record",
		"name": "R",
		"fields": [
			{"name": "id", "type": "int"},
			{"name": "items", "type": {"type": "array", "items": {"type": "record", "name": "Item", "fields": [{"name": "n", "type": "long"}]}}},
			{"name": "label", "type": ["null", "string"], "default": null}
		]
	}`)
	good := func(items ...Value) Value {
		return Record(E("id", Int(1)), E("items", Array(items...)))
	}

	tests := []struct {
		name  string
		value Value
		err   error
		path  string
	}{
		{"NotARecord", Long(1), ErrEncoding, ""},
		{"WrongFieldType", Record(E("id", String("x")), E("items", Array())), ErrEncoding, "id"},
		{"IntOutOfRange", Record(E("id", Long(math.MaxInt32+1)), E("items", Array())), ErrEncoding, "id"},
		{"MissingField", Record(E("items", Array())), ErrEncoding, "id"},
		{"NestedField", good(Record(E("n", Long(1))), Record(E("n", Double(0.5)))), ErrEncoding, "items[1].n"},
		{"NoUnionBranch", Record(E("id", Int(1)), E("items", Array()), E("label", Long(3))), ErrEncoding, "label"},
		{"InvalidUTF8", Record(E("id", Int(1)), E("items", Array()), E("label", String("\xff"))), ErrEncoding, "label"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			err := SchemalessWriter(&buf, s, tt.value)
			require.ErrorIs(t, err, tt.err)
			assert.Zero(t, buf.Len(), "nothing is written on failure")
			if tt.path != "" {
				var pe *PathError
				require.ErrorAs(t, err, &pe)
				assert.Equal(t, tt.path, pe.Path)
			}
		})
	}

	data, err := Marshal(s, good())
	require.NoError(t, err)
	got, err := Unmarshal(data, s, nil)
	require.NoError(t, err)
	assertValue(t, Record(E("id", Int(1)), E("items", Array()), E("label", Null())), got)

	e := mustParse(t, `{"type": "enum", "name": "E", "symbols": ["A"]}`)
	_, err = Marshal(e, String("Z"))
	assert.ErrorIs(t, err, ErrEncoding)

	f := mustParse(t, `{"type": "fixed", "name": "F", "size": 2}`)
	_, err = Marshal(f, Bytes([]byte{1}))
	assert.ErrorIs(t, err, ErrEncoding)

	fl := mustParse(t, `"float"`)
	_, err = Marshal(fl, Double(math.MaxFloat64))
	assert.ErrorIs(t, err, ErrEncoding)

	// strings are not bytes
	_, err = Marshal(mustParse(t, `"bytes"`), String("x"))
	assert.ErrorIs(t, err, ErrEncoding)

	_, err = Marshal(nil, Null())
	assert.ErrorIs(t, err, ErrSchema)
	assert.ErrorIs(t, SchemalessWriter(nil, e, String("A")), ErrNilIO)
}

func TestBinaryInvalidMapKey(t *testing.T) {
	s := mustParse(t, `{"type": "map", "values": "int"}`)
	var buf bytes.Buffer
	err := SchemalessWriter(&buf, s, Map(E("ok", Int(1)), E("\xff", Int(2))))
	require.ErrorIs(t, err, ErrEncoding)
	var pe *PathError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "{\xff}", pe.Path)
	assert.Zero(t, buf.Len())
}

func TestBinaryItemLimit(t *testing.T) {
	// 2^62 nulls declared in a handful of bytes
	var buf bytes.Buffer
	w, err := NewWriter(&buf)
	require.NoError(t, err)
	w.WriteLong(1 << 62)
	w.WriteLong(0)
	_, err = w.Result()
	require.NoError(t, err)
	huge := buf.Bytes()

	nulls := mustParse(t, `{"type": "array", "items": "null"}`)
	_, err = Unmarshal(huge, nulls, nil)
	assert.ErrorIs(t, err, ErrEncoding)

	// the same block inside a field the reader skips
	writer := mustParse(t, `{"type": "record", "name": "R", "fields": [
		{"name": "junk", "type": {"type": "array", "items": "null"}},
		{"name": "keep", "type": "int"}
	]}`)
	reader := mustParse(t, `{"type": "record", "name": "R", "fields": [{"name": "keep", "type": "int"}]}`)
	_, err = Unmarshal(huge, writer, reader)
	require.ErrorIs(t, err, ErrEncoding)
	var pe *PathError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "junk", pe.Path)

	// the limit counts across blocks
	_, err = Unmarshal([]byte{0x04, 0x04, 0x00}, nulls, nil, WithMaxItems(3))
	assert.ErrorIs(t, err, ErrEncoding)
	got, err := Unmarshal([]byte{0x04, 0x04, 0x00}, nulls, nil, WithMaxItems(4))
	require.NoError(t, err)
	assertValue(t, Array(Null(), Null(), Null(), Null()), got)
}

func TestBinaryUnionBranchOrder(t *testing.T) {
	s := mustParse(t, `["int", "long", "float", "double", "bytes", "string"]`)
	tests := []struct {
		value  Value
		branch byte
	}{
		{Int(1), 0},
		{Long(math.MaxInt32 + 1), 1},
		{Double(0.5), 2},
		{Double(0.1), 3},
		{Bytes([]byte("x")), 4},
		{String("x"), 5},
	}
	for _, tt := range tests {
		data, err := Marshal(s, tt.value)
		require.NoError(t, err)
		assert.Equal(t, zigzag(int64(tt.branch)), uint64(data[0]), "value %s", tt.value)
	}
}
