package avro

import (
	"fmt"
)

type decoder struct {
	s        *Schema
	r        *Reader
	maxDepth int
	maxItems int64
}

func newDecoder(s *Schema, r *Reader, o options) decoder {
	return decoder{s: s, r: r, maxDepth: o.maxDepth, maxItems: int64(o.maxItems)}
}

// decode reads one value written under node id.
func (d *decoder) decode(id int, depth int) (Value, error) {
	if depth > d.maxDepth {
		return Value{}, ErrDepthExceeded
	}
	n := &d.s.nodes[id]
	var v Value
	switch n.typ {
	case NullType:
	case BooleanType:
		v = Bool(d.r.ReadBoolean())
	case IntType:
		v = Int(d.r.ReadInt())
	case LongType:
		v = Long(d.r.ReadLong())
	case FloatType:
		v = Float(d.r.ReadFloat())
	case DoubleType:
		v = Double(d.r.ReadDouble())
	case BytesType:
		v = Bytes(d.r.ReadBytes())
	case StringType:
		v = String(d.r.ReadString())
	case FixedType:
		v = Bytes(d.r.ReadFixed(n.size))
	case EnumType:
		i := d.r.ReadInt()
		if err := d.r.Err(); err != nil {
			return Value{}, err
		}
		if i < 0 || int(i) >= len(n.symbols) {
			return Value{}, fmt.Errorf("%w: enum index %d out of range for %s", ErrSchemaResolution, i, d.s.typeName(id))
		}
		v = String(n.symbols[i])
	case RecordType:
		entries := make([]Entry, len(n.fields))
		for i, f := range n.fields {
			fv, err := d.decode(f.typ, depth+1)
			if err != nil {
				return Value{}, atField(f.name, err)
			}
			entries[i] = Entry{Key: f.name, Value: fv}
		}
		v = Map(entries...)
	case ArrayType:
		items := []Value{}
		err := d.blocks(func(i int) error {
			item, err := d.decode(n.items, depth+1)
			if err != nil {
				return atIndex(i, err)
			}
			items = append(items, item)
			return nil
		})
		if err != nil {
			return Value{}, err
		}
		v = Array(items...)
	case MapType:
		entries := []Entry{}
		err := d.blocks(func(int) error {
			key := d.r.ReadString()
			if err := d.r.Err(); err != nil {
				return err
			}
			val, err := d.decode(n.items, depth+1)
			if err != nil {
				return atKey(key, err)
			}
			entries = append(entries, Entry{Key: key, Value: val})
			return nil
		})
		if err != nil {
			return Value{}, err
		}
		v = Map(entries...)
	case UnionType:
		i, err := d.branch(id)
		if err != nil {
			return Value{}, err
		}
		return d.decode(n.branches[i], depth+1)
	default:
		return Value{}, fmt.Errorf("%w: unknown schema type %s", ErrSchema, n.typ)
	}
	if err := d.r.Err(); err != nil {
		return Value{}, err
	}
	return v, nil
}

// branch reads a union branch index and checks it against the union.
func (d *decoder) branch(union int) (int, error) {
	i := d.r.ReadLong()
	if err := d.r.Err(); err != nil {
		return 0, err
	}
	if i < 0 || i >= int64(len(d.s.nodes[union].branches)) {
		return 0, fmt.Errorf("%w: union index %d out of range for %s", ErrSchemaResolution, i, d.s.canonical(union))
	}
	return int(i), nil
}

// blocks walks the block structure shared by arrays and maps, calling item once
// per element with its running index.
func (d *decoder) blocks(item func(i int) error) error {
	i := 0
	for {
		count, _ := d.r.ReadBlockCount()
		if err := d.r.Err(); err != nil {
			return err
		}
		if count == 0 {
			return nil
		}
		if err := d.checkItems(int64(i), count); err != nil {
			return err
		}
		for range count {
			if err := item(i); err != nil {
				return err
			}
			i++
		}
	}
}

// checkItems rejects a block of count items arriving after seen items when the
// total would pass the limit.
func (d *decoder) checkItems(seen, count int64) error {
	if count > d.maxItems-seen {
		return fmt.Errorf("%w: block of %d items after %d exceeds the limit of %d", ErrEncoding, count, seen, d.maxItems)
	}
	return nil
}

// skip consumes one value written under node id without building it. Blocks that
// carry their byte size are skipped whole.
func (d *decoder) skip(id int, depth int) error {
	if depth > d.maxDepth {
		return ErrDepthExceeded
	}
	n := &d.s.nodes[id]
	switch n.typ {
	case NullType:
	case BooleanType:
		d.r.Skip(1)
	case IntType:
		d.r.ReadInt()
	case LongType:
		d.r.ReadLong()
	case FloatType:
		d.r.Skip(4)
	case DoubleType:
		d.r.Skip(8)
	case BytesType, StringType:
		d.r.SkipBytes()
	case FixedType:
		d.r.Skip(int64(n.size))
	case EnumType:
		d.r.ReadInt()
	case RecordType:
		for _, f := range n.fields {
			if err := d.skip(f.typ, depth+1); err != nil {
				return atField(f.name, err)
			}
		}
	case ArrayType, MapType:
		var seen int64
		for {
			count, size := d.r.ReadBlockCount()
			if err := d.r.Err(); err != nil {
				return err
			}
			if count == 0 {
				break
			}
			if size >= 0 {
				d.r.Skip(size)
				continue
			}
			if err := d.checkItems(seen, count); err != nil {
				return err
			}
			seen += count
			for range count {
				if n.typ == MapType {
					d.r.SkipBytes()
				}
				if err := d.skip(n.items, depth+1); err != nil {
					return err
				}
			}
		}
	case UnionType:
		i, err := d.branch(id)
		if err != nil {
			return err
		}
		return d.skip(n.branches[i], depth+1)
	default:
		return fmt.Errorf("%w: unknown schema type %s", ErrSchema, n.typ)
	}
	return d.r.Err()
}
