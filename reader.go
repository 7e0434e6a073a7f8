package avro

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"unicode/utf8"
)

// byteSource is what the Reader pulls from. Sources that cannot read single bytes
// are adapted without read-ahead, so the caller's stream advances exactly by the
// bytes a value occupies.
type byteSource interface {
	io.Reader
	io.ByteReader
}

// Reader reads Avro binary primitives from a stream.
// It tracks the first error; subsequent reads become no-ops returning zero values.
type Reader struct {
	r     byteSource
	count int64 // total bytes read
	err   error // first error encountered.
	order binary.ByteOrder
}

// NewReader creates a Reader. Streams that already implement io.ByteReader
// (bytes.Reader, bytes.Buffer, bufio.Reader, BytesReader) are read directly.
func NewReader(r io.Reader) (*Reader, error) {
	if r == nil {
		return nil, ErrNilIO
	}

	switch reader := r.(type) {
	// Reuse the underlying source if it's already a Reader.
	case *Reader:
		return &Reader{r: reader.r, order: Order}, nil
	case byteSource:
		return &Reader{r: reader, order: Order}, nil
	}
	return &Reader{r: &byteReaderAdapter{Reader: r}, order: Order}, nil
}

// Read implements the io.Reader interface.
func (r *Reader) Read(p []byte) (int, error) {
	if r.err != nil {
		return 0, r.err
	}
	n, err := r.r.Read(p)
	r.count += int64(n)
	r.setError(err)
	return n, r.err
}

// ReadByte implements the io.ByteReader interface.
func (r *Reader) ReadByte() (byte, error) {
	if r.err != nil {
		return 0, r.err
	}
	b, err := r.r.ReadByte()
	if err == nil {
		r.count++
	} else {
		r.setError(err)
	}
	return b, r.err
}

func (r *Reader) Count() int64 { return r.count }
func (r *Reader) Err() error   { return r.err }

// setError records the first non-nil error. Running out of input inside a value
// is always reported as ErrStreamTruncated.
func (r *Reader) setError(err error) {
	if r.err != nil || err == nil {
		return
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		err = fmt.Errorf("%w: after %d bytes: %w", ErrStreamTruncated, r.count, err)
	}
	r.err = err
}

// fail records a decoding error that did not come from the stream.
func (r *Reader) fail(err error) {
	if r.err == nil {
		r.err = err
	}
}

// Result returns the total bytes read and the final error state.
func (r *Reader) Result() (int64, error) {
	return r.count, r.err
}

// largeRead is the size above which readFull grows its buffer as data arrives
// instead of trusting a length prefix for one allocation.
const largeRead = 1 << 20

// readFull is an internal helper to read an exact number of bytes.
func (r *Reader) readFull(n int64) []byte {
	if r.err != nil {
		return nil
	}
	if n <= largeRead {
		buf := make([]byte, n)
		read, err := io.ReadFull(r.r, buf)
		r.count += int64(read)
		if err != nil {
			r.setError(io.ErrUnexpectedEOF)
			return nil
		}
		return buf
	}
	var buf bytes.Buffer
	read, err := io.CopyN(&buf, r.r, n)
	r.count += read
	if err != nil {
		r.setError(io.ErrUnexpectedEOF)
		return nil
	}
	return buf.Bytes()
}

// Skip discards n bytes.
func (r *Reader) Skip(n int64) {
	if r.err != nil {
		return
	}
	skipped, err := Discard(r.r, n)
	r.count += skipped
	if err != nil {
		r.setError(io.ErrUnexpectedEOF)
	}
}

// --- Primitive Read Operations ---

// ReadBoolean reads one byte; any non-zero byte is true.
func (r *Reader) ReadBoolean() bool {
	b, err := r.ReadByte()
	return err == nil && b != 0
}

// readVarint reads a variable-length unsigned integer of at most bits bits.
func (r *Reader) readVarint(bits uint) uint64 {
	var u uint64
	var shift uint
	for {
		b, err := r.ReadByte()
		if err != nil {
			return 0
		}
		if shift >= bits {
			r.fail(overflowError("more than %d bits", bits))
			return 0
		}
		payload := uint64(b & 0x7f)
		if bits-shift < 7 && payload>>(bits-shift) != 0 {
			r.fail(overflowError("more than %d bits", bits))
			return 0
		}
		u |= payload << shift
		if b&0x80 == 0 {
			return u
		}
		shift += 7
	}
}

// ReadInt reads a zigzag varint that must fit in 32 bits.
func (r *Reader) ReadInt() int32 {
	return int32(unzigzag(r.readVarint(32)))
}

// ReadLong reads a zigzag varint that must fit in 64 bits.
func (r *Reader) ReadLong() int64 {
	return unzigzag(r.readVarint(64))
}

// ReadFloat reads 4 bytes of IEEE-754 single precision.
func (r *Reader) ReadFloat() float32 {
	buf := r.readFull(4)
	if r.err != nil {
		return 0
	}
	return math.Float32frombits(r.order.Uint32(buf))
}

// ReadDouble reads 8 bytes of IEEE-754 double precision.
func (r *Reader) ReadDouble() float64 {
	buf := r.readFull(8)
	if r.err != nil {
		return 0
	}
	return math.Float64frombits(r.order.Uint64(buf))
}

func (r *Reader) readLength() int64 {
	n := r.ReadLong()
	if r.err == nil && n < 0 {
		r.fail(fmt.Errorf("%w: negative length %d", ErrEncoding, n))
		return 0
	}
	return n
}

// ReadBytes reads a long length followed by that many bytes.
func (r *Reader) ReadBytes() []byte {
	n := r.readLength()
	if r.err != nil {
		return nil
	}
	if n == 0 {
		return []byte{}
	}
	return r.readFull(n)
}

// ReadString reads a length-prefixed UTF-8 string.
func (r *Reader) ReadString() string {
	b := r.ReadBytes()
	if r.err != nil {
		return ""
	}
	if !utf8.Valid(b) {
		r.fail(fmt.Errorf("%w: string is not valid UTF-8", ErrEncoding))
		return ""
	}
	return string(b)
}

// ReadFixed reads exactly n raw bytes.
func (r *Reader) ReadFixed(n int) []byte {
	if n == 0 {
		return []byte{}
	}
	return r.readFull(int64(n))
}

// ReadBlockCount reads the header of an array or map block. A negative count on
// the wire is followed by the block size in bytes, returned as size; size is -1
// when the writer did not record one.
func (r *Reader) ReadBlockCount() (count, size int64) {
	count = r.ReadLong()
	if r.err != nil {
		return 0, -1
	}
	if count >= 0 {
		return count, -1
	}
	if count == math.MinInt64 {
		r.fail(overflowError("block count %d", count))
		return 0, -1
	}
	size = r.ReadLong()
	if r.err == nil && size < 0 {
		r.fail(fmt.Errorf("%w: negative block size %d", ErrEncoding, size))
	}
	return -count, size
}

// SkipBytes skips a length-prefixed bytes or string value.
func (r *Reader) SkipBytes() {
	n := r.readLength()
	r.Skip(n)
}
