package avro

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const linkedListSchema = `{
	"type": "record",
	"name": "LongList",
	"fields": [
		{"name": "value", "type": "long"},
		{"name": "next", "type": ["null", "LongList"]}
	]
}`

func TestParsePrimitives(t *testing.T) {
	for name, typ := range primitiveTypes {
		for _, text := range []string{name, `"` + name + `"`, `{"type": "` + name + `"}`, " " + name + "\n"} {
			s, err := Parse(text)
			require.NoError(t, err, text)
			assert.Equal(t, typ, s.Root().Type(), text)
			assert.True(t, s.Root().Type().IsPrimitive())
		}
	}
}

func TestParseNamedTypes(t *testing.T) {
	s := mustParse(t, `{
		"type": "record",
		"name": "Person",
		"namespace": "com.example",
		"doc": "a person",
		"aliases": ["Human"],
		"fields": [
			{"name": "name", "type": "string", "doc": "full name", "order": "descending"},
			{"name": "kind", "type": {"type": "enum", "name": "Kind", "symbols": ["A", "B"]}},
			{"name": "id", "type": {"type": "fixed", "name": "org.other.Id", "size": 4}},
			{"name": "again", "type": "Kind", "aliases": ["kind2"], "default": "B"},
			{"name": "created", "type": {"type": "long", "logicalType": "timestamp-millis"}}
		]
	}`)

	root := s.Root()
	assert.Equal(t, RecordType, root.Type())
	assert.Equal(t, "com.example.Person", root.FullName())
	assert.Equal(t, "Person", root.Name())
	assert.Equal(t, "com.example", root.Namespace())
	assert.Equal(t, []string{"com.example.Human"}, root.Aliases())
	assert.Equal(t, "a person", root.Doc())
	assert.ElementsMatch(t, []string{"com.example.Person", "com.example.Kind", "org.other.Id"}, s.Names())

	fields := root.Fields()
	require.Len(t, fields, 5)
	assert.Equal(t, "full name", fields[0].Doc)
	assert.Equal(t, "descending", fields[0].Order)
	assert.Equal(t, []string{"A", "B"}, fields[1].Type.Symbols())
	assert.Equal(t, "com.example.Kind", fields[1].Type.FullName())
	assert.Equal(t, 4, fields[2].Type.Size())
	assert.Equal(t, "org.other.Id", fields[2].Type.TypeName())

	// a reference resolves to the same node as the definition
	kind, ok := s.Lookup("com.example.Kind")
	require.True(t, ok)
	assert.Equal(t, kind, fields[3].Type)
	assert.True(t, fields[3].HasDefault)
	assert.Equal(t, "B", fields[3].Default)
	assert.Equal(t, []string{"kind2"}, fields[3].Aliases)

	assert.Equal(t, LongType, fields[4].Type.Type())
	assert.Equal(t, "timestamp-millis", fields[4].Type.LogicalType())

	_, ok = s.Lookup("Kind")
	assert.False(t, ok)
}

func TestParseRecursive(t *testing.T) {
	s := mustParse(t, linkedListSchema)
	next := s.Root().Fields()[1].Type
	require.Equal(t, UnionType, next.Type())
	assert.Equal(t, s.Root(), next.Branches()[1])
}

func TestParseForwardReference(t *testing.T) {
	s := mustParse(t, `{
		"type": "record",
		"name": "Outer",
		"namespace": "ns",
		"fields": [
			{"name": "first", "type": ["null", "Later"]},
			{"name": "second", "type": {"type": "fixed", "name": "Later", "size": 2}}
		]
	}`)
	fields := s.Root().Fields()
	assert.Equal(t, FixedType, fields[0].Type.Branches()[1].Type())
	assert.Equal(t, fields[1].Type, fields[0].Type.Branches()[1])
}

func TestParseContainers(t *testing.T) {
	s := mustParse(t, `{"type": "map", "values": {"type": "array", "items": ["null", "double"]}}`)
	root := s.Root()
	assert.Equal(t, MapType, root.Type())
	assert.Equal(t, ArrayType, root.Values().Type())
	assert.Equal(t, UnionType, root.Values().Items().Type())
	assert.Len(t, root.Values().Items().Branches(), 2)

	s = mustParse(t, `["null", "string"]`)
	assert.Equal(t, UnionType, s.Root().Type())

	// records may be anonymous
	s = mustParse(t, `{"type": "record", "fields": [{"name": "a", "type": "int"}]}`)
	assert.Equal(t, RecordType, s.Root().Type())
	assert.Empty(t, s.Root().FullName())
}

func TestParseErrors(t *testing.T) {
	tests := map[string]string{
		"UnknownType":         `"com.example.Missing"`,
		"UnknownFieldType":    `{"type": "record", "name": "R", "fields": [{"name": "a", "type": "Missing"}]}`,
		"DuplicateBranch":     `["int", "string", "int"]`,
		"DuplicateArrays":     `[{"type": "array", "items": "int"}, {"type": "array", "items": "long"}]`,
		"DuplicateNamed":      `[{"type": "enum", "name": "E", "symbols": ["A"]}, "E"]`,
		"NestedUnion":         `["null", ["int"]]`,
		"FieldWithoutName":    `{"type": "record", "name": "R", "fields": [{"type": "int"}]}`,
		"FieldWithoutType":    `{"type": "record", "name": "R", "fields": [{"name": "a"}]}`,
		"DuplicateField":      `{"type": "record", "name": "R", "fields": [{"name": "a", "type": "int"}, {"name": "a", "type": "int"}]}`,
		"RecordWithoutFields": `{"type": "record", "name": "R"}`,
		"EnumWithoutSymbols":  `{"type": "enum", "name": "E"}`,
		"EnumWithoutName":     `{"type": "enum", "symbols": ["A"]}`,
		"FixedWithoutName":    `{"type": "fixed", "size": 4}`,
		"DuplicateSymbol":     `{"type": "enum", "name": "E", "symbols": ["A", "A"]}`,
		"FixedWithoutSize":    `{"type": "fixed", "name": "F"}`,
		"NegativeSize":        `{"type": "fixed", "name": "F", "size": -1}`,
		"ArrayWithoutItems":   `{"type": "array"}`,
		"MapWithoutValues":    `{"type": "map"}`,
		"MissingType":         `{"name": "R"}`,
		"NameDefinedTwice":    `{"type": "record", "name": "R", "fields": [{"name": "a", "type": {"type": "fixed", "name": "R", "size": 1}}]}`,
		"NotJSON":             `{"type": `,
		"TrailingData":        `"int" "long"`,
		"Number":              `42`,
	}
	for name, text := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Parse(text)
			assert.ErrorIs(t, err, ErrSchema)
		})
	}
}

func TestNormalize(t *testing.T) {
	s, err := Normalize(map[string]any{
		"type": "record",
		"name": "R",
		"fields": []any{
			map[string]any{"name": "a", "type": "int"},
			map[string]any{"name": "b", "type": []string{"null", "string"}, "default": nil},
		},
	})
	require.NoError(t, err)
	fields := s.Root().Fields()
	require.Len(t, fields, 2)
	assert.Equal(t, IntType, fields[0].Type.Type())
	assert.Equal(t, UnionType, fields[1].Type.Type())
	assert.True(t, fields[1].HasDefault)

	_, err = Normalize(42)
	assert.ErrorIs(t, err, ErrSchema)

	assert.Panics(t, func() { MustParse(`"nope"`) })
}

func TestSchemaString(t *testing.T) {
	assert.Equal(t, `"int"`, mustParse(t, "int").String())
	assert.Equal(t, `{"type":"array","items":"int"}`, mustParse(t, `{"type": "array", "items": "int"}`).String())
	assert.Equal(t,
		`{"type":"record","name":"com.example.R","fields":[{"name":"a","type":"int","default":1}]}`,
		mustParse(t, `{"type":"record","namespace":"com.example","name":"R","fields":[{"name":"a","type":"int","default":1}]}`).String())

	for _, text := range []string{linkedListSchema, nameUnionSchema} {
		s := mustParse(t, text)
		again := mustParse(t, s.String())
		assert.Equal(t, s.String(), again.String())
	}
}
