package avro

import (
	"errors"
	"io"

	"github.com/goccy/go-json"
)

// ValueEncoder writes values to a stream one at a time.
type ValueEncoder interface {
	Encode(Value) error
}

// ValueDecoder reads values from a stream one at a time. Decode returns io.EOF
// when the stream ends cleanly between two values.
type ValueDecoder interface {
	Decode() (Value, error)
}

var (
	_ ValueEncoder = (*Encoder)(nil)
	_ ValueDecoder = (*Decoder)(nil)
	_ ValueEncoder = (*JSONEncoder)(nil)
	_ ValueDecoder = (*JSONDecoder)(nil)
)

// Codec binds a writer schema, and optionally a reader schema, to streams of
// values in either encoding. The resolution plan is built once, up front.
type Codec struct {
	writer *Schema
	reader *Schema
	res    *Resolution
	opts   options
}

// NewCodec creates a Codec. reader may be nil to read values in the writer's
// shape; otherwise the two schemas must resolve.
func NewCodec(writer, reader *Schema, opts ...Option) (*Codec, error) {
	if writer == nil {
		return nil, errNilSchema
	}
	c := &Codec{writer: writer, reader: reader, opts: newOptions(opts)}
	if reader != nil && reader != writer {
		res, err := Resolve(writer, reader)
		if err != nil {
			return nil, err
		}
		c.res = res
	}
	return c, nil
}

func (c *Codec) Writer() *Schema { return c.writer }

// Reader returns the schema decoded values are shaped by.
func (c *Codec) Reader() *Schema {
	if c.reader == nil {
		return c.writer
	}
	return c.reader
}

// NewEncoder returns an encoder of binary values under the writer schema.
func (c *Codec) NewEncoder(w io.Writer) *Encoder {
	return &Encoder{c: c, w: w}
}

// NewDecoder returns a decoder of consecutive binary values.
func (c *Codec) NewDecoder(r io.Reader) *Decoder {
	rd, err := NewReader(r)
	return &Decoder{c: c, r: rd, err: err}
}

// NewJSONEncoder returns an encoder of JSON values, one per line.
func (c *Codec) NewJSONEncoder(w io.Writer) *JSONEncoder {
	return &JSONEncoder{c: c, w: w}
}

// NewJSONDecoder returns a decoder of consecutive JSON values, separated by any
// whitespace.
func (c *Codec) NewJSONDecoder(r io.Reader) *JSONDecoder {
	if r == nil {
		return &JSONDecoder{c: c, err: ErrNilIO}
	}
	return &JSONDecoder{c: c, dec: newJSONStream(r)}
}

type Encoder struct {
	c *Codec
	w io.Writer
}

// Encode writes the binary encoding of v. A value that does not fit the schema
// writes nothing.
func (e *Encoder) Encode(v Value) error {
	return SchemalessWriter(e.w, e.c.writer, v, WithMaxDepth(e.c.opts.maxDepth))
}

type Decoder struct {
	c   *Codec
	r   *Reader
	err error
}

// Decode reads the next value. After an error every call returns it again,
// except for a clean end of stream which keeps returning io.EOF.
func (d *Decoder) Decode() (Value, error) {
	if d.err != nil {
		return Value{}, d.err
	}
	start := d.r.Count()
	var v Value
	var err error
	if d.c.res != nil {
		v, err = newResolvingDecoder(d.c.res, d.r, d.c.opts).read(d.c.res.root, 0)
	} else {
		dec := newDecoder(d.c.writer, d.r, d.c.opts)
		v, err = dec.decode(d.c.writer.root, 0)
	}
	if err != nil {
		if d.r.Count() == start && errors.Is(err, io.EOF) {
			err = io.EOF
		}
		d.err = err
		return Value{}, err
	}
	return v, nil
}

// InputOffset returns the number of bytes consumed so far.
func (d *Decoder) InputOffset() int64 {
	if d.r == nil {
		return 0
	}
	return d.r.Count()
}

type JSONEncoder struct {
	c *Codec
	w io.Writer
}

func (e *JSONEncoder) Encode(v Value) error {
	return SchemalessJSONWriter(e.w, e.c.writer, v, WithMaxDepth(e.c.opts.maxDepth))
}

type JSONDecoder struct {
	c   *Codec
	dec *json.Decoder
	err error
}

// Decode reads the next JSON value.
func (d *JSONDecoder) Decode() (Value, error) {
	if d.err != nil {
		return Value{}, d.err
	}
	tok, err := d.dec.Token()
	if err != nil {
		if errors.Is(err, io.EOF) {
			d.err = io.EOF
		} else {
			d.err = jsonReadError(err)
		}
		return Value{}, d.err
	}
	x, err := readJSONTreeFrom(d.dec, tok, jsonTreeDepth(d.c.opts))
	if err != nil {
		d.err = err
		return Value{}, err
	}
	var v Value
	if d.c.res != nil {
		v, err = newResolvingJSONDecoder(d.c.res, d.c.opts.maxDepth).read(d.c.res.root, x, 0)
	} else {
		jd := jsonDecoder{s: d.c.writer, maxDepth: d.c.opts.maxDepth, wrapped: true}
		v, err = jd.decode(d.c.writer.root, x, 0)
	}
	if err != nil {
		return Value{}, err
	}
	return v, nil
}
