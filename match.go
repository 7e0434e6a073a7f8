package avro

// selectBranch picks the union branch a value is written under: the first branch,
// in declaration order, whose shape accepts the value.
func (s *Schema) selectBranch(union int, v Value) (int, bool) {
	for i, b := range s.nodes[union].branches {
		if s.matches(b, v) {
			return i, true
		}
	}
	return 0, false
}

// matches reports whether v can be written under node id.
func (s *Schema) matches(id int, v Value) bool {
	n := &s.nodes[id]
	switch n.typ {
	case NullType:
		return v.kind == NullValue
	case BooleanType:
		return v.kind == BooleanValue
	case IntType:
		return v.kind == LongValue && isInt32(v.l)
	case LongType:
		return v.kind == LongValue
	case FloatType:
		// doubles that float would round go to a later branch
		return v.kind == LongValue || (v.kind == DoubleValue && float32Exact(v.d))
	case DoubleType:
		return v.kind == LongValue || v.kind == DoubleValue
	case BytesType:
		return v.kind == BytesValue
	case StringType:
		return v.kind == StringValue
	case EnumType:
		if v.kind != StringValue {
			return false
		}
		_, ok := n.symbolIndex[v.s]
		return ok
	case FixedType:
		return v.kind == BytesValue && len(v.raw) == n.size
	case ArrayType:
		if v.kind != ArrayValue {
			return false
		}
		for _, item := range v.items {
			if !s.matches(n.items, item) {
				return false
			}
		}
		return true
	case MapType:
		if v.kind != MapValue {
			return false
		}
		for _, e := range v.entries {
			if !s.matches(n.items, e.Value) {
				return false
			}
		}
		return true
	case RecordType:
		return s.matchesRecord(n, v)
	case UnionType:
		_, ok := s.selectBranch(id, v)
		return ok
	}
	return false
}

// matchesRecord accepts a map value whose keys are all fields of the record, that
// carries every field lacking a default, and whose values fit their fields.
func (s *Schema) matchesRecord(n *node, v Value) bool {
	if v.kind != MapValue {
		return false
	}
	for _, e := range v.entries {
		i, ok := n.fieldIndex[e.Key]
		if !ok || !s.matches(n.fields[i].typ, e.Value) {
			return false
		}
	}
	for _, f := range n.fields {
		if f.hasDef {
			continue
		}
		if _, ok := v.Get(f.name); !ok {
			return false
		}
	}
	return true
}
