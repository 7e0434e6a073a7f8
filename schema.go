package avro

import (
	"strconv"

	"github.com/puzpuzpuz/xsync/v4"
)

// Type is the tag of a schema node.
type Type uint8

const (
	NullType Type = iota
	BooleanType
	IntType
	LongType
	FloatType
	DoubleType
	BytesType
	StringType
	RecordType
	EnumType
	ArrayType
	MapType
	UnionType
	FixedType
)

var typeNames = [...]string{
	NullType:    "null",
	BooleanType: "boolean",
	IntType:     "int",
	LongType:    "long",
	FloatType:   "float",
	DoubleType:  "double",
	BytesType:   "bytes",
	StringType:  "string",
	RecordType:  "record",
	EnumType:    "enum",
	ArrayType:   "array",
	MapType:     "map",
	UnionType:   "union",
	FixedType:   "fixed",
}

func (t Type) String() string {
	if int(t) < len(typeNames) {
		return typeNames[t]
	}
	return "Type(" + strconv.Itoa(int(t)) + ")"
}

// IsPrimitive reports whether t is one of the eight primitive types.
func (t Type) IsPrimitive() bool { return t <= StringType }

// IsNamed reports whether t is a record, enum or fixed.
func (t Type) IsNamed() bool { return t == RecordType || t == EnumType || t == FixedType }

var primitiveTypes = map[string]Type{
	"null":    NullType,
	"boolean": BooleanType,
	"int":     IntType,
	"long":    LongType,
	"float":   FloatType,
	"double":  DoubleType,
	"bytes":   BytesType,
	"string":  StringType,
}

type field struct {
	name    string
	typ     int
	def     any // raw JSON tree of the default
	hasDef  bool
	aliases []string
	doc     string
	order   string
}

// node is one entry of the schema arena. Children are referenced by index, so
// recursive named types need no cyclic pointers.
type node struct {
	typ         Type
	name        string // full name of named types
	aliases     []string
	doc         string
	logicalType string

	fields     []field
	fieldIndex map[string]int

	symbols     []string
	symbolIndex map[string]int

	items int // array items or map values

	branches     []int
	branchByName map[string]int // union branch type name to branch position

	size int
}

// Schema is a normalized schema: an arena of nodes plus the full-name table of
// the named types it defines. A Schema is immutable once built and safe for
// concurrent use.
type Schema struct {
	nodes []node
	root  int
	names map[string]int

	// resolution plans against reader schemas, built on first use
	plans *xsync.Map[*Schema, *Resolution]
}

func newSchema() *Schema {
	s := &Schema{
		names: make(map[string]int),
		plans: xsync.NewMap[*Schema, *Resolution](),
	}
	// ids 0..7 are the shared primitive nodes
	for t := NullType; t <= StringType; t++ {
		s.nodes = append(s.nodes, node{typ: t})
	}
	return s
}

func (s *Schema) add(n node) int {
	s.nodes = append(s.nodes, n)
	return len(s.nodes) - 1
}

// Root returns the top-level node.
func (s *Schema) Root() Node { return Node{s: s, id: s.root} }

// Lookup finds a named type by its full name.
func (s *Schema) Lookup(fullName string) (Node, bool) {
	id, ok := s.names[fullName]
	if !ok {
		return Node{}, false
	}
	return Node{s: s, id: id}, true
}

// Names returns the full names of all named types defined in the schema.
func (s *Schema) Names() []string {
	names := make([]string, 0, len(s.names))
	for name := range s.names {
		names = append(names, name)
	}
	return names
}

// typeName is the name a union branch is known by: the primitive name, the full
// name of a named type, or "array"/"map".
func (s *Schema) typeName(id int) string {
	n := &s.nodes[id]
	if n.typ.IsNamed() && n.name != "" {
		return n.name
	}
	return n.typ.String()
}

// Node is a read-only view of one schema node.
type Node struct {
	s  *Schema
	id int
}

func (n Node) n() *node { return &n.s.nodes[n.id] }

func (n Node) Type() Type          { return n.n().typ }
func (n Node) FullName() string    { return n.n().name }
func (n Node) Aliases() []string   { return n.n().aliases }
func (n Node) Doc() string         { return n.n().doc }
func (n Node) LogicalType() string { return n.n().logicalType }
func (n Node) Symbols() []string   { return n.n().symbols }
func (n Node) Size() int           { return n.n().size }
func (n Node) Items() Node         { return Node{s: n.s, id: n.n().items} }
func (n Node) Values() Node        { return Node{s: n.s, id: n.n().items} }
func (n Node) TypeName() string    { return n.s.typeName(n.id) }
func (n Node) Schema() *Schema     { return n.s }
func (n Node) String() string      { return n.s.canonical(n.id) }

// Name returns the unqualified name of a named type.
func (n Node) Name() string {
	name, _ := splitFullName(n.n().name)
	return name
}

// Namespace returns the namespace of a named type.
func (n Node) Namespace() string {
	_, ns := splitFullName(n.n().name)
	return ns
}

// Branches returns the branches of a union.
func (n Node) Branches() []Node {
	out := make([]Node, len(n.n().branches))
	for i, b := range n.n().branches {
		out[i] = Node{s: n.s, id: b}
	}
	return out
}

// Field describes one record field.
type Field struct {
	Name       string
	Type       Node
	Default    any
	HasDefault bool
	Aliases    []string
	Doc        string
	Order      string
}

// Fields returns the fields of a record in declaration order.
func (n Node) Fields() []Field {
	out := make([]Field, len(n.n().fields))
	for i, f := range n.n().fields {
		out[i] = Field{
			Name:       f.name,
			Type:       Node{s: n.s, id: f.typ},
			Default:    f.def,
			HasDefault: f.hasDef,
			Aliases:    f.aliases,
			Doc:        f.doc,
			Order:      f.order,
		}
	}
	return out
}
