package avro

import "fmt"

// resolvingJSONDecoder runs a Resolution over a JSON tree written under the
// writer schema. Union branches are identified from the JSON itself, so the
// plan for the branch actually written is the one applied.
type resolvingJSONDecoder struct {
	res *Resolution
	d   jsonDecoder
}

func newResolvingJSONDecoder(res *Resolution, maxDepth int) *resolvingJSONDecoder {
	return &resolvingJSONDecoder{res: res, d: jsonDecoder{s: res.writer, maxDepth: maxDepth, wrapped: true}}
}

func (rd *resolvingJSONDecoder) read(i int, x any, depth int) (Value, error) {
	if depth > rd.d.maxDepth {
		return Value{}, ErrDepthExceeded
	}
	p := &rd.res.plans[i]
	switch p.kind {
	case planDirect:
		return rd.d.decode(p.writer, x, depth)
	case planPromote:
		v, err := rd.d.decode(p.writer, x, depth)
		if err != nil {
			return Value{}, err
		}
		return promote(v, p.to), nil
	case planRecord:
		obj, ok := objectOf(x)
		if !ok {
			return Value{}, jsonMismatch("record", x)
		}
		wn := &rd.res.writer.nodes[p.writer]
		values := make([]Value, len(p.fields))
		for j, step := range p.steps {
			if step.plan < 0 {
				continue
			}
			var v Value
			var err error
			if fx, ok := obj.get(step.name); ok {
				v, err = rd.read(step.plan, fx, depth+1)
			} else if wf := wn.fields[j]; wf.hasDef {
				// the writer's default, read as if the writer had written it
				v, err = rd.unwrapped().read(step.plan, wf.def, depth+1)
			} else {
				err = fmt.Errorf("%w: missing field with no default", ErrJSONEncoding)
			}
			if err != nil {
				return Value{}, atField(p.fields[step.out], err)
			}
			values[step.out] = v
		}
		return p.record(values), nil
	case planEnum:
		s, ok := x.(string)
		if !ok {
			return Value{}, jsonMismatch("enum symbol", x)
		}
		idx, ok := rd.res.writer.nodes[p.writer].symbolIndex[s]
		if !ok {
			return Value{}, fmt.Errorf("%w: %q is not a symbol of %s", ErrJSONEncoding, s, rd.res.writer.typeName(p.writer))
		}
		return rd.res.symbol(p, int64(idx))
	case planArray:
		arr, ok := x.([]any)
		if !ok {
			return Value{}, jsonMismatch("array", x)
		}
		items := make([]Value, len(arr))
		for n, item := range arr {
			v, err := rd.read(p.items, item, depth+1)
			if err != nil {
				return Value{}, atIndex(n, err)
			}
			items[n] = v
		}
		return Array(items...), nil
	case planMap:
		obj, ok := objectOf(x)
		if !ok {
			return Value{}, jsonMismatch("map", x)
		}
		entries := make([]Entry, len(obj))
		for n, m := range obj {
			v, err := rd.read(p.items, m.Value, depth+1)
			if err != nil {
				return Value{}, atKey(m.Key, err)
			}
			entries[n] = Entry{Key: m.Key, Value: v}
		}
		return Map(entries...), nil
	case planWriterUnion:
		b, inner, _, err := rd.d.union(p.writer, x, depth)
		if err != nil {
			return Value{}, err
		}
		child := p.branches[b]
		if err := rd.res.plans[child].err; err != nil {
			return Value{}, err
		}
		return rd.read(child, inner, depth+1)
	case planReaderUnion:
		return rd.read(p.items, x, depth+1)
	case planError:
		return Value{}, p.err
	}
	return Value{}, resolutionError("incomplete plan for %s", rd.res.writer.typeName(p.writer))
}

func (rd *resolvingJSONDecoder) unwrapped() *resolvingJSONDecoder {
	sub := *rd
	sub.d.wrapped = false
	return &sub
}
