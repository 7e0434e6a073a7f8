package avro

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/goccy/go-json"
)

// maxSchemaDepth bounds nesting while reading schema documents.
const maxSchemaDepth = 1000

// refPlaceholder marks an arena slot standing in for a named type that was
// referenced before its definition.
const refPlaceholder Type = 0xff

// Parse normalizes a schema given as JSON text. The text may be a bare primitive
// name such as "string" (with or without quotes) or a full schema document.
func Parse(text string) (*Schema, error) {
	return ParseBytes([]byte(text))
}

// ParseBytes is like Parse for a byte slice.
func ParseBytes(text []byte) (*Schema, error) {
	trimmed := bytes.TrimSpace(text)
	if _, ok := primitiveTypes[string(trimmed)]; ok {
		return Normalize(string(trimmed))
	}
	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()
	raw, err := readJSONTree(dec, maxSchemaDepth)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSchema, err)
	}
	if dec.More() {
		return nil, fmt.Errorf("%w: trailing data after schema document", ErrSchema)
	}
	return Normalize(raw)
}

// MustParse is like Parse but panics on error.
func MustParse(text string) *Schema {
	s, err := Parse(text)
	if err != nil {
		panic(err)
	}
	return s
}

// Normalize builds a Schema from a decoded schema description: a type name string,
// an object (map[string]any or an ordered object) or a union list ([]any).
func Normalize(raw any) (*Schema, error) {
	p := &parser{s: newSchema(), pending: make(map[int][]string)}
	root, err := p.parse(raw, "", 0)
	if err != nil {
		return nil, err
	}
	p.s.root = root
	if err := p.link(); err != nil {
		return nil, err
	}
	return p.s, nil
}

type parser struct {
	s       *Schema
	pending map[int][]string // placeholder id to candidate full names
}

func (p *parser) parse(raw any, namespace string, depth int) (int, error) {
	if depth > maxSchemaDepth {
		return 0, fmt.Errorf("%w: %w", ErrSchema, ErrDepthExceeded)
	}
	switch t := raw.(type) {
	case string:
		if typ, ok := primitiveTypes[t]; ok {
			return int(typ), nil
		}
		return p.reference(t, namespace), nil
	case []any:
		return p.parseUnion(t, namespace, depth)
	case []string:
		branches := make([]any, len(t))
		for i, b := range t {
			branches[i] = b
		}
		return p.parseUnion(branches, namespace, depth)
	}
	obj, ok := objectOf(raw)
	if !ok {
		return 0, fmt.Errorf("%w: unexpected %s where a schema was expected", ErrSchema, jsonTypeName(raw))
	}
	return p.parseObject(obj, namespace, depth)
}

func (p *parser) reference(name, namespace string) int {
	candidates := []string{name}
	if !strings.Contains(name, ".") && namespace != "" {
		candidates = []string{namespace + "." + name, name}
	}
	for _, c := range candidates {
		if id, ok := p.s.names[c]; ok {
			return id
		}
	}
	id := p.s.add(node{typ: refPlaceholder, name: name})
	p.pending[id] = candidates
	return id
}

func (p *parser) parseObject(obj jsonObject, namespace string, depth int) (int, error) {
	rawType, ok := obj.get("type")
	if !ok {
		return 0, fmt.Errorf("%w: missing \"type\" attribute", ErrSchema)
	}
	typeName, ok := rawType.(string)
	if !ok {
		// {"type": {...}} or {"type": [...]}: the attribute is itself a schema
		return p.parse(rawType, namespace, depth+1)
	}
	logicalType, _ := stringAttr(obj, "logicalType")

	if typ, ok := primitiveTypes[typeName]; ok {
		if logicalType == "" {
			return int(typ), nil
		}
		return p.s.add(node{typ: typ, logicalType: logicalType}), nil
	}

	switch typeName {
	case "record", "error":
		return p.parseRecord(obj, namespace, depth)
	case "enum":
		return p.parseEnum(obj, namespace)
	case "fixed":
		return p.parseFixed(obj, namespace, logicalType)
	case "array":
		items, ok := obj.get("items")
		if !ok {
			return 0, fmt.Errorf("%w: array is missing \"items\"", ErrSchema)
		}
		id := p.s.add(node{typ: ArrayType, logicalType: logicalType})
		child, err := p.parse(items, namespace, depth+1)
		if err != nil {
			return 0, err
		}
		p.s.nodes[id].items = child
		return id, nil
	case "map":
		values, ok := obj.get("values")
		if !ok {
			return 0, fmt.Errorf("%w: map is missing \"values\"", ErrSchema)
		}
		id := p.s.add(node{typ: MapType, logicalType: logicalType})
		child, err := p.parse(values, namespace, depth+1)
		if err != nil {
			return 0, err
		}
		p.s.nodes[id].items = child
		return id, nil
	}
	// {"type": "com.example.Name"}
	return p.reference(typeName, namespace), nil
}

// define registers a named type under its full name and returns the namespace
// its children inherit.
func (p *parser) define(obj jsonObject, namespace string, n node) (int, string, error) {
	name, _ := stringAttr(obj, "name")
	if name == "" && n.typ != RecordType {
		return 0, "", fmt.Errorf("%w: %s is missing \"name\"", ErrSchema, n.typ)
	}
	ns := namespace
	if v, ok := stringAttr(obj, "namespace"); ok {
		ns = v
	}
	fullName := qualify(name, ns)
	_, childNS := splitFullName(fullName)
	if name == "" {
		childNS = ns
	}
	n.name = fullName
	n.doc, _ = stringAttr(obj, "doc")
	aliases, err := stringListAttr(obj, "aliases")
	if err != nil {
		return 0, "", err
	}
	for _, a := range aliases {
		n.aliases = append(n.aliases, qualify(a, childNS))
	}
	id := p.s.add(n)
	if fullName != "" {
		if _, dup := p.s.names[fullName]; dup {
			return 0, "", fmt.Errorf("%w: named type %q is defined twice", ErrSchema, fullName)
		}
		p.s.names[fullName] = id
	}
	return id, childNS, nil
}

func (p *parser) parseRecord(obj jsonObject, namespace string, depth int) (int, error) {
	rawFields, ok := obj.get("fields")
	if !ok {
		return 0, fmt.Errorf("%w: record is missing \"fields\"", ErrSchema)
	}
	list, ok := rawFields.([]any)
	if !ok {
		return 0, fmt.Errorf("%w: record \"fields\" must be an array", ErrSchema)
	}
	id, childNS, err := p.define(obj, namespace, node{typ: RecordType})
	if err != nil {
		return 0, err
	}
	fields := make([]field, 0, len(list))
	index := make(map[string]int, len(list))
	for i, rawField := range list {
		fobj, ok := objectOf(rawField)
		if !ok {
			return 0, fmt.Errorf("%w: field %d of %q is not an object", ErrSchema, i, p.s.nodes[id].name)
		}
		name, ok := stringAttr(fobj, "name")
		if !ok || name == "" {
			return 0, fmt.Errorf("%w: field %d of %q has no name", ErrSchema, i, p.s.nodes[id].name)
		}
		if _, dup := index[name]; dup {
			return 0, fmt.Errorf("%w: field %q of %q is declared twice", ErrSchema, name, p.s.nodes[id].name)
		}
		rawType, ok := fobj.get("type")
		if !ok {
			return 0, fmt.Errorf("%w: field %q of %q has no type", ErrSchema, name, p.s.nodes[id].name)
		}
		typ, err := p.parse(rawType, childNS, depth+1)
		if err != nil {
			return 0, atField(name, err)
		}
		f := field{name: name, typ: typ}
		f.def, f.hasDef = fobj.get("default")
		f.doc, _ = stringAttr(fobj, "doc")
		f.order, _ = stringAttr(fobj, "order")
		if f.aliases, err = stringListAttr(fobj, "aliases"); err != nil {
			return 0, atField(name, err)
		}
		index[name] = len(fields)
		fields = append(fields, f)
	}
	p.s.nodes[id].fields = fields
	p.s.nodes[id].fieldIndex = index
	return id, nil
}

func (p *parser) parseEnum(obj jsonObject, namespace string) (int, error) {
	symbols, err := stringListAttr(obj, "symbols")
	if err != nil {
		return 0, err
	}
	if _, ok := obj.get("symbols"); !ok {
		return 0, fmt.Errorf("%w: enum is missing \"symbols\"", ErrSchema)
	}
	index := make(map[string]int, len(symbols))
	for i, sym := range symbols {
		if _, dup := index[sym]; dup {
			return 0, fmt.Errorf("%w: enum symbol %q is declared twice", ErrSchema, sym)
		}
		index[sym] = i
	}
	id, _, err := p.define(obj, namespace, node{typ: EnumType, symbols: symbols, symbolIndex: index})
	return id, err
}

func (p *parser) parseFixed(obj jsonObject, namespace, logicalType string) (int, error) {
	rawSize, ok := obj.get("size")
	if !ok {
		return 0, fmt.Errorf("%w: fixed is missing \"size\"", ErrSchema)
	}
	size, ok := jsonInt(rawSize)
	if !ok || size < 0 {
		return 0, fmt.Errorf("%w: fixed \"size\" must be a non-negative integer", ErrSchema)
	}
	id, _, err := p.define(obj, namespace, node{typ: FixedType, size: int(size), logicalType: logicalType})
	return id, err
}

func (p *parser) parseUnion(list []any, namespace string, depth int) (int, error) {
	id := p.s.add(node{typ: UnionType})
	branches := make([]int, len(list))
	for i, raw := range list {
		b, err := p.parse(raw, namespace, depth+1)
		if err != nil {
			return 0, atIndex(i, err)
		}
		branches[i] = b
	}
	p.s.nodes[id].branches = branches
	return id, nil
}

// link replaces forward-reference placeholders with the named types they refer to
// and validates unions, which can only be checked once every branch is known.
func (p *parser) link() error {
	target := make(map[int]int, len(p.pending))
	for id, candidates := range p.pending {
		found := false
		for _, c := range candidates {
			if t, ok := p.s.names[c]; ok {
				target[id] = t
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("%w: unknown type %q", ErrSchema, p.s.nodes[id].name)
		}
	}
	fix := func(id int) int {
		if t, ok := target[id]; ok {
			return t
		}
		return id
	}
	p.s.root = fix(p.s.root)
	for i := range p.s.nodes {
		n := &p.s.nodes[i]
		switch n.typ {
		case RecordType:
			for j := range n.fields {
				n.fields[j].typ = fix(n.fields[j].typ)
			}
		case ArrayType, MapType:
			n.items = fix(n.items)
		case UnionType:
			for j := range n.branches {
				n.branches[j] = fix(n.branches[j])
			}
		}
	}
	for i := range p.s.nodes {
		if p.s.nodes[i].typ == UnionType {
			if err := p.checkUnion(i); err != nil {
				return err
			}
		}
	}
	return nil
}

func (p *parser) checkUnion(id int) error {
	n := &p.s.nodes[id]
	n.branchByName = make(map[string]int, len(n.branches))
	for i, b := range n.branches {
		if p.s.nodes[b].typ == UnionType {
			return fmt.Errorf("%w: union branch %d is itself a union", ErrSchema, i)
		}
		name := p.s.typeName(b)
		if _, dup := n.branchByName[name]; dup {
			return fmt.Errorf("%w: union contains %q more than once", ErrSchema, name)
		}
		n.branchByName[name] = i
	}
	return nil
}

func stringAttr(obj jsonObject, key string) (string, bool) {
	v, ok := obj.get(key)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

func stringListAttr(obj jsonObject, key string) ([]string, error) {
	v, ok := obj.get(key)
	if !ok || v == nil {
		return nil, nil
	}
	switch t := v.(type) {
	case []string:
		return t, nil
	case []any:
		out := make([]string, len(t))
		for i, item := range t {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("%w: %q must contain only strings", ErrSchema, key)
			}
			out[i] = s
		}
		return out, nil
	}
	return nil, fmt.Errorf("%w: %q must be an array of strings", ErrSchema, key)
}

// qualify returns the full name of name declared in namespace.
func qualify(name, namespace string) string {
	if name == "" || strings.Contains(name, ".") || namespace == "" {
		return name
	}
	return namespace + "." + name
}

// splitFullName splits "a.b.C" into ("C", "a.b").
func splitFullName(fullName string) (name, namespace string) {
	i := strings.LastIndexByte(fullName, '.')
	if i < 0 {
		return fullName, ""
	}
	return fullName[i+1:], fullName[:i]
}
