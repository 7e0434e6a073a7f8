package avro

import (
	"bytes"
	"fmt"
	"io"

	"github.com/goccy/go-json"
)

var errNilSchema = fmt.Errorf("%w: nil schema", ErrSchema)

// SchemalessWriter writes v as the Avro binary encoding under schema, with no
// framing, length prefix or fingerprint. The value is validated while encoding
// and nothing is written to w when it does not fit the schema.
func SchemalessWriter(w io.Writer, schema *Schema, v Value, opts ...Option) error {
	if w == nil {
		return ErrNilIO
	}
	buf := getBuffer()
	defer putBuffer(buf)
	if err := encodeBinary(buf, schema, v, newOptions(opts)); err != nil {
		return err
	}
	_, err := w.Write(buf.Bytes())
	return err
}

// SchemalessReader reads one binary value written under writer. When reader is
// non-nil and differs from writer, the value is resolved into the reader's shape.
// Streams that implement io.ByteReader advance by exactly the bytes of the value;
// other streams are read one byte at a time for the same guarantee.
func SchemalessReader(r io.Reader, writer, reader *Schema, opts ...Option) (Value, error) {
	rd, err := NewReader(r)
	if err != nil {
		return Value{}, err
	}
	return decodeBinary(rd, writer, reader, newOptions(opts))
}

// SchemalessJSONWriter writes v as Avro JSON under schema, followed by a newline.
func SchemalessJSONWriter(w io.Writer, schema *Schema, v Value, opts ...Option) error {
	if w == nil {
		return ErrNilIO
	}
	buf := getBuffer()
	defer putBuffer(buf)
	if err := encodeJSON(buf, schema, v, newOptions(opts)); err != nil {
		return err
	}
	buf.WriteByte('\n')
	_, err := w.Write(buf.Bytes())
	return err
}

// SchemalessJSONReader reads one Avro JSON value written under writer, resolving
// it into reader when one is given. The JSON decoder buffers, so r may be read
// past the end of the value; use Codec.NewJSONDecoder for a stream of values.
func SchemalessJSONReader(r io.Reader, writer, reader *Schema, opts ...Option) (Value, error) {
	if r == nil {
		return Value{}, ErrNilIO
	}
	o := newOptions(opts)
	dec := newJSONStream(r)
	x, err := readJSONTree(dec, jsonTreeDepth(o))
	if err != nil {
		return Value{}, err
	}
	return decodeJSON(x, writer, reader, o)
}

// Marshal returns the binary encoding of v under schema.
func Marshal(schema *Schema, v Value, opts ...Option) ([]byte, error) {
	buf := getBuffer()
	defer putBuffer(buf)
	if err := encodeBinary(buf, schema, v, newOptions(opts)); err != nil {
		return nil, err
	}
	return bytes.Clone(buf.Bytes()), nil
}

// MarshalTo encodes v into dst without allocating and returns the number of bytes
// used. It fails with io.ErrShortWrite when dst is too small.
func MarshalTo(dst []byte, schema *Schema, v Value, opts ...Option) (int, error) {
	if schema == nil {
		return 0, errNilSchema
	}
	bw := NewBytesWriter(dst)
	w, err := NewWriter(bw)
	if err != nil {
		return 0, err
	}
	e := encoder{s: schema, w: w, maxDepth: newOptions(opts).maxDepth}
	if err := e.encode(schema.root, v, 0); err != nil {
		return 0, err
	}
	if _, err := w.Result(); err != nil {
		return 0, err
	}
	return bw.Len(), nil
}

// Unmarshal decodes the single binary value in data. Bytes left over after the
// value are an error.
func Unmarshal(data []byte, writer, reader *Schema, opts ...Option) (Value, error) {
	br := NewBytesReader(data)
	rd, _ := NewReader(br)
	v, err := decodeBinary(rd, writer, reader, newOptions(opts))
	if err != nil {
		return Value{}, err
	}
	if br.Available() > 0 {
		return Value{}, fmt.Errorf("%w: %d trailing bytes after value", ErrEncoding, br.Available())
	}
	return v, nil
}

// MarshalJSON returns the Avro JSON encoding of v under schema.
func MarshalJSON(schema *Schema, v Value, opts ...Option) ([]byte, error) {
	buf := getBuffer()
	defer putBuffer(buf)
	if err := encodeJSON(buf, schema, v, newOptions(opts)); err != nil {
		return nil, err
	}
	return bytes.Clone(buf.Bytes()), nil
}

// UnmarshalJSON decodes the single Avro JSON value in data.
func UnmarshalJSON(data []byte, writer, reader *Schema, opts ...Option) (Value, error) {
	o := newOptions(opts)
	dec := newJSONStream(bytes.NewReader(data))
	x, err := readJSONTree(dec, jsonTreeDepth(o))
	if err != nil {
		return Value{}, err
	}
	if dec.More() {
		return Value{}, fmt.Errorf("%w: trailing data after value", ErrJSONEncoding)
	}
	return decodeJSON(x, writer, reader, o)
}

func encodeBinary(buf *bytes.Buffer, schema *Schema, v Value, o options) error {
	if schema == nil {
		return errNilSchema
	}
	w, err := NewWriter(buf)
	if err != nil {
		return err
	}
	e := encoder{s: schema, w: w, maxDepth: o.maxDepth}
	if err := e.encode(schema.root, v, 0); err != nil {
		return err
	}
	_, err = w.Result()
	return err
}

func encodeJSON(buf *bytes.Buffer, schema *Schema, v Value, o options) error {
	if schema == nil {
		return errNilSchema
	}
	e := jsonEncoder{s: schema, buf: buf, maxDepth: o.maxDepth}
	return e.encode(schema.root, v, 0)
}

// decodeBinary reads one value, directly under writer or through a resolution
// plan when a distinct reader schema is given.
func decodeBinary(r *Reader, writer, reader *Schema, o options) (Value, error) {
	if writer == nil {
		return Value{}, errNilSchema
	}
	if reader == nil || reader == writer {
		d := newDecoder(writer, r, o)
		return d.decode(writer.root, 0)
	}
	res, err := Resolve(writer, reader)
	if err != nil {
		return Value{}, err
	}
	return newResolvingDecoder(res, r, o).read(res.root, 0)
}

func decodeJSON(x any, writer, reader *Schema, o options) (Value, error) {
	if writer == nil {
		return Value{}, errNilSchema
	}
	if reader == nil || reader == writer {
		d := jsonDecoder{s: writer, maxDepth: o.maxDepth, wrapped: true}
		return d.decode(writer.root, x, 0)
	}
	res, err := Resolve(writer, reader)
	if err != nil {
		return Value{}, err
	}
	return newResolvingJSONDecoder(res, o.maxDepth).read(res.root, x, 0)
}

func newJSONStream(r io.Reader) *json.Decoder {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	return dec
}

// jsonTreeDepth allows for one wrapper object per nested value.
func jsonTreeDepth(o options) int {
	return 2*o.maxDepth + 1
}
