package avro

import (
	"fmt"
	"slices"
)

type planKind uint8

const (
	planPending planKind = iota
	planDirect           // same primitive or fixed, read under the writer node
	planPromote          // numeric widening
	planRecord
	planEnum
	planArray
	planMap
	planWriterUnion
	planReaderUnion
	planError
)

// fieldStep reads one writer field. A step with plan -1 is skipped.
type fieldStep struct {
	name   string // writer field name
	writer int    // writer field node
	plan   int
	out    int // position of the reader field
}

type fieldDefault struct {
	out   int
	value Value
}

type plan struct {
	kind   planKind
	writer int
	reader int
	to     Type // promotion target

	steps    []fieldStep
	defaults []fieldDefault
	fields   []string // reader field names in declaration order

	symbols []int // writer symbol index to reader symbol index, -1 when absent

	items    int   // element plan of arrays and maps, chosen branch plan of reader unions
	branches []int // plan per writer union branch

	err error
}

// Resolution is the decode plan that reads data written under one schema into the
// shape of another. A Resolution is immutable and safe for concurrent use.
type Resolution struct {
	writer *Schema
	reader *Schema
	plans  []plan
	root   int
}

func (r *Resolution) Writer() *Schema { return r.writer }
func (r *Resolution) Reader() *Schema { return r.reader }

// Resolve builds the plan that reads data written under writer into the shape of
// reader. A nil reader resolves writer against itself. Plans are cached on the
// writer schema, so repeated calls with the same pair are cheap.
func Resolve(writer, reader *Schema) (*Resolution, error) {
	if writer == nil {
		return nil, fmt.Errorf("%w: nil writer schema", ErrSchema)
	}
	if reader == nil {
		reader = writer
	}
	if res, ok := writer.plans.Load(reader); ok {
		return res, nil
	}
	b := &planBuilder{
		res:  &Resolution{writer: writer, reader: reader},
		memo: make(map[[2]int]int),
	}
	root, err := b.build(writer.root, reader.root)
	if err != nil {
		return nil, err
	}
	b.res.root = root
	writer.plans.Store(reader, b.res)
	return b.res, nil
}

type planBuilder struct {
	res  *Resolution
	memo map[[2]int]int
}

func resolutionError(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrSchemaResolution}, args...)...)
}

// build returns the plan index for the writer node w read as reader node r. Pairs
// are memoized before their children are built, so recursive types terminate.
func (b *planBuilder) build(w, r int) (int, error) {
	key := [2]int{w, r}
	if i, ok := b.memo[key]; ok {
		return i, b.res.plans[i].err
	}
	i := len(b.res.plans)
	b.res.plans = append(b.res.plans, plan{kind: planPending, writer: w, reader: r})
	b.memo[key] = i

	p, err := b.plan(w, r)
	if err != nil {
		p = plan{kind: planError, writer: w, reader: r, err: err}
	}
	b.res.plans[i] = p
	return i, err
}

func (b *planBuilder) plan(w, r int) (plan, error) {
	ws, rs := b.res.writer, b.res.reader
	wn, rn := &ws.nodes[w], &rs.nodes[r]
	p := plan{writer: w, reader: r}

	if wn.typ == UnionType {
		p.kind = planWriterUnion
		p.branches = make([]int, len(wn.branches))
		for i, wb := range wn.branches {
			// an unresolvable branch fails only when data written under it is read
			p.branches[i], _ = b.build(wb, r)
		}
		return p, nil
	}
	if rn.typ == UnionType {
		return b.readerUnion(w, r)
	}

	switch {
	case wn.typ == rn.typ && wn.typ.IsPrimitive():
		p.kind = planDirect
		return p, nil
	case wn.typ.IsPrimitive() && rn.typ.IsPrimitive():
		if !promotable(wn.typ, rn.typ) {
			return p, resolutionError("cannot read %s as %s", wn.typ, rn.typ)
		}
		p.kind = planPromote
		p.to = rn.typ
		return p, nil
	case wn.typ != rn.typ:
		return p, resolutionError("cannot read %s as %s", ws.typeName(w), rs.typeName(r))
	}

	switch wn.typ {
	case RecordType:
		return b.record(p, wn, rn)
	case EnumType:
		p.kind = planEnum
		p.symbols = make([]int, len(wn.symbols))
		for i, sym := range wn.symbols {
			j, ok := rn.symbolIndex[sym]
			if !ok {
				j = -1
			}
			p.symbols[i] = j
		}
		return p, nil
	case FixedType:
		if wn.size != rn.size {
			return p, resolutionError("fixed %s has size %d, reader %s expects %d", wn.name, wn.size, rn.name, rn.size)
		}
		p.kind = planDirect
		return p, nil
	case ArrayType, MapType:
		p.kind = planArray
		if wn.typ == MapType {
			p.kind = planMap
		}
		items, err := b.build(wn.items, rn.items)
		if err != nil {
			return p, err
		}
		p.items = items
		return p, nil
	}
	return p, resolutionError("cannot read %s as %s", wn.typ, rn.typ)
}

// promotable lists the numeric widenings a reader may apply.
func promotable(from, to Type) bool {
	switch from {
	case IntType:
		return to == LongType || to == FloatType || to == DoubleType
	case LongType:
		return to == FloatType || to == DoubleType
	case FloatType:
		return to == DoubleType
	}
	return false
}

// readerUnion picks the reader branch a non-union writer node is read into. A
// branch of the same type name is preferred; otherwise the first branch, in
// declaration order, that resolves.
func (b *planBuilder) readerUnion(w, r int) (plan, error) {
	ws, rs := b.res.writer, b.res.reader
	p := plan{kind: planReaderUnion, writer: w, reader: r}
	branches := rs.nodes[r].branches

	order := make([]int, 0, len(branches))
	if i, ok := rs.nodes[r].branchByName[ws.typeName(w)]; ok {
		order = append(order, i)
	} else {
		for i, rb := range branches {
			if rs.nodes[rb].typ.IsNamed() && slices.Contains(rs.nodes[rb].aliases, ws.typeName(w)) {
				order = append(order, i)
			}
		}
	}
	for i := range branches {
		if !slices.Contains(order, i) {
			order = append(order, i)
		}
	}
	for _, i := range order {
		items, err := b.build(w, branches[i])
		if err == nil {
			p.items = items
			return p, nil
		}
	}
	return p, resolutionError("%s matches no branch of %s", ws.typeName(w), rs.canonical(r))
}

// record matches reader fields to writer fields by name, then by the writer
// field's aliases, then by the reader field's aliases. Reader fields the writer
// lacks take their default.
func (b *planBuilder) record(p plan, wn, rn *node) (plan, error) {
	p.kind = planRecord
	p.fields = make([]string, len(rn.fields))
	source := make([]int, len(rn.fields)) // reader field to writer field, -1 for none
	used := make([]bool, len(wn.fields))
	for i, rf := range rn.fields {
		p.fields[i] = rf.name
		source[i] = matchField(wn, rf, used)
		if source[i] >= 0 {
			used[source[i]] = true
		}
	}

	target := make([]int, len(wn.fields))
	for i := range target {
		target[i] = -1
	}
	for i, j := range source {
		if j >= 0 {
			target[j] = i
			continue
		}
		rf := rn.fields[i]
		if !rf.hasDef {
			return p, atField(rf.name, resolutionError("reader field has no default and the writer does not provide it"))
		}
		v, err := b.res.reader.defaultValue(rf.typ, rf.def)
		if err != nil {
			return p, atField(rf.name, fmt.Errorf("%w: default: %w", ErrSchemaResolution, err))
		}
		p.defaults = append(p.defaults, fieldDefault{out: i, value: v})
	}

	p.steps = make([]fieldStep, len(wn.fields))
	for j, wf := range wn.fields {
		step := fieldStep{name: wf.name, writer: wf.typ, plan: -1, out: target[j]}
		if step.out >= 0 {
			rf := rn.fields[step.out]
			child, err := b.build(wf.typ, rf.typ)
			if err != nil {
				return p, atField(rf.name, err)
			}
			step.plan = child
		}
		p.steps[j] = step
	}
	return p, nil
}

func matchField(wn *node, rf field, used []bool) int {
	if j, ok := wn.fieldIndex[rf.name]; ok && !used[j] {
		return j
	}
	for j, wf := range wn.fields {
		if !used[j] && slices.Contains(wf.aliases, rf.name) {
			return j
		}
	}
	for _, alias := range rf.aliases {
		if j, ok := wn.fieldIndex[alias]; ok && !used[j] {
			return j
		}
	}
	return -1
}

// promote widens a numeric value read under from into the reader type to.
func promote(v Value, to Type) Value {
	switch to {
	case LongType:
		return Long(v.l)
	case FloatType:
		if v.kind == LongValue {
			return Float(float32(v.l))
		}
		return Float(float32(v.d))
	case DoubleType:
		if v.kind == LongValue {
			return Double(float64(v.l))
		}
		return Double(v.d)
	}
	return v
}

// record assembles the reader record from the fields read so far and copies of
// the defaults. The plan's own default values are never handed out.
func (p *plan) record(values []Value) Value {
	entries := make([]Entry, len(p.fields))
	for i, name := range p.fields {
		entries[i] = Entry{Key: name, Value: values[i]}
	}
	for _, d := range p.defaults {
		entries[d.out].Value = d.value.Clone()
	}
	return Map(entries...)
}

// symbol maps a writer enum index to the reader symbol.
func (res *Resolution) symbol(p *plan, i int64) (Value, error) {
	wn := &res.writer.nodes[p.writer]
	if i < 0 || i >= int64(len(wn.symbols)) {
		return Value{}, resolutionError("enum index %d out of range for %s", i, wn.name)
	}
	j := p.symbols[i]
	if j < 0 {
		return Value{}, resolutionError("symbol %q of %s is not in reader enum %s", wn.symbols[i], wn.name, res.reader.nodes[p.reader].name)
	}
	return String(res.reader.nodes[p.reader].symbols[j]), nil
}
