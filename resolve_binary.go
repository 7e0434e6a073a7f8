package avro

// resolvingDecoder reads binary data under a Resolution. Writer-only data is
// skipped with the plain decoder over the writer schema.
type resolvingDecoder struct {
	res *Resolution
	d   decoder
}

func newResolvingDecoder(res *Resolution, r *Reader, o options) *resolvingDecoder {
	return &resolvingDecoder{res: res, d: newDecoder(res.writer, r, o)}
}

func (rd *resolvingDecoder) read(i int, depth int) (Value, error) {
	if depth > rd.d.maxDepth {
		return Value{}, ErrDepthExceeded
	}
	p := &rd.res.plans[i]
	switch p.kind {
	case planDirect:
		return rd.d.decode(p.writer, depth)
	case planPromote:
		v, err := rd.d.decode(p.writer, depth)
		if err != nil {
			return Value{}, err
		}
		return promote(v, p.to), nil
	case planRecord:
		values := make([]Value, len(p.fields))
		for _, step := range p.steps {
			if step.plan < 0 {
				if err := rd.d.skip(step.writer, depth+1); err != nil {
					return Value{}, atField(step.name, err)
				}
				continue
			}
			v, err := rd.read(step.plan, depth+1)
			if err != nil {
				return Value{}, atField(p.fields[step.out], err)
			}
			values[step.out] = v
		}
		return p.record(values), nil
	case planEnum:
		idx := rd.d.r.ReadInt()
		if err := rd.d.r.Err(); err != nil {
			return Value{}, err
		}
		return rd.res.symbol(p, int64(idx))
	case planArray:
		items := []Value{}
		err := rd.d.blocks(func(n int) error {
			item, err := rd.read(p.items, depth+1)
			if err != nil {
				return atIndex(n, err)
			}
			items = append(items, item)
			return nil
		})
		if err != nil {
			return Value{}, err
		}
		return Array(items...), nil
	case planMap:
		entries := []Entry{}
		err := rd.d.blocks(func(int) error {
			key := rd.d.r.ReadString()
			if err := rd.d.r.Err(); err != nil {
				return err
			}
			val, err := rd.read(p.items, depth+1)
			if err != nil {
				return atKey(key, err)
			}
			entries = append(entries, Entry{Key: key, Value: val})
			return nil
		})
		if err != nil {
			return Value{}, err
		}
		return Map(entries...), nil
	case planWriterUnion:
		b, err := rd.d.branch(p.writer)
		if err != nil {
			return Value{}, err
		}
		child := p.branches[b]
		if err := rd.res.plans[child].err; err != nil {
			return Value{}, err
		}
		return rd.read(child, depth+1)
	case planReaderUnion:
		return rd.read(p.items, depth+1)
	case planError:
		return Value{}, p.err
	}
	return Value{}, resolutionError("incomplete plan for %s", rd.res.writer.typeName(p.writer))
}
