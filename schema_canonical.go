package avro

import (
	"strconv"

	"github.com/goccy/go-json"
)

// String renders the schema as a JSON document that Parse accepts. Named types are
// written with full names, once, and referenced by name afterwards.
func (s *Schema) String() string { return s.canonical(s.root) }

func (s *Schema) canonical(id int) string {
	seen := make(map[int]bool)
	return string(s.appendSchema(nil, id, seen))
}

func (s *Schema) appendSchema(buf []byte, id int, seen map[int]bool) []byte {
	n := &s.nodes[id]
	if n.typ.IsPrimitive() && n.logicalType == "" {
		return appendJSONString(buf, n.typ.String())
	}
	if n.typ.IsNamed() && n.name != "" {
		if seen[id] {
			return appendJSONString(buf, n.name)
		}
		seen[id] = true
	}
	if n.typ == UnionType {
		buf = append(buf, '[')
		for i, b := range n.branches {
			if i > 0 {
				buf = append(buf, ',')
			}
			buf = s.appendSchema(buf, b, seen)
		}
		return append(buf, ']')
	}

	buf = append(buf, `{"type":`...)
	buf = appendJSONString(buf, n.typ.String())
	if n.typ.IsNamed() && n.name != "" {
		buf = append(buf, `,"name":`...)
		buf = appendJSONString(buf, n.name)
	}
	if len(n.aliases) > 0 {
		buf = append(buf, `,"aliases":`...)
		buf = appendStringList(buf, n.aliases)
	}
	if n.logicalType != "" {
		buf = append(buf, `,"logicalType":`...)
		buf = appendJSONString(buf, n.logicalType)
	}
	switch n.typ {
	case RecordType:
		buf = append(buf, `,"fields":[`...)
		for i, f := range n.fields {
			if i > 0 {
				buf = append(buf, ',')
			}
			buf = append(buf, `{"name":`...)
			buf = appendJSONString(buf, f.name)
			buf = append(buf, `,"type":`...)
			buf = s.appendSchema(buf, f.typ, seen)
			if f.hasDef {
				buf = append(buf, `,"default":`...)
				buf = appendJSONTree(buf, f.def)
			}
			if len(f.aliases) > 0 {
				buf = append(buf, `,"aliases":`...)
				buf = appendStringList(buf, f.aliases)
			}
			buf = append(buf, '}')
		}
		buf = append(buf, ']')
	case EnumType:
		buf = append(buf, `,"symbols":`...)
		buf = appendStringList(buf, n.symbols)
	case FixedType:
		buf = append(buf, `,"size":`...)
		buf = strconv.AppendInt(buf, int64(n.size), 10)
	case ArrayType:
		buf = append(buf, `,"items":`...)
		buf = s.appendSchema(buf, n.items, seen)
	case MapType:
		buf = append(buf, `,"values":`...)
		buf = s.appendSchema(buf, n.items, seen)
	}
	return append(buf, '}')
}

func appendStringList(buf []byte, list []string) []byte {
	buf = append(buf, '[')
	for i, item := range list {
		if i > 0 {
			buf = append(buf, ',')
		}
		buf = appendJSONString(buf, item)
	}
	return append(buf, ']')
}

func appendJSONString(buf []byte, s string) []byte {
	b, err := json.Marshal(s)
	if err != nil {
		return append(buf, strconv.Quote(s)...)
	}
	return append(buf, b...)
}

// appendJSONTree writes a raw JSON tree back out, keeping object key order.
func appendJSONTree(buf []byte, x any) []byte {
	if obj, ok := objectOf(x); ok {
		buf = append(buf, '{')
		for i, m := range obj {
			if i > 0 {
				buf = append(buf, ',')
			}
			buf = appendJSONString(buf, m.Key)
			buf = append(buf, ':')
			buf = appendJSONTree(buf, m.Value)
		}
		return append(buf, '}')
	}
	switch t := x.(type) {
	case []any:
		buf = append(buf, '[')
		for i, item := range t {
			if i > 0 {
				buf = append(buf, ',')
			}
			buf = appendJSONTree(buf, item)
		}
		return append(buf, ']')
	case json.Number:
		return append(buf, t...)
	case string:
		return appendJSONString(buf, t)
	}
	b, err := json.Marshal(x)
	if err != nil {
		return append(buf, "null"...)
	}
	return append(buf, b...)
}
