package avro

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"io"
	"math"
)

type WriterPro interface {
	io.Writer
	io.ByteWriter
	io.StringWriter
	Size() int
	Flush() error
}

// Writer writes Avro binary primitives to a stream.
// It wraps bufio.Writer for efficiency and tracks the first error that occurs.
// After an error, all subsequent write operations become no-ops.
type Writer struct {
	w     WriterPro
	count int64 // total bytes written
	err   error // first error encountered. Subsequent writes become no-ops.
	depth int
	order binary.ByteOrder
}

// NewWriterSize creates a new Writer with a specified buffer size.
// It returns an error to prevent double-buffering, a common source of bugs.
func NewWriterSize(w io.Writer, size int) (*Writer, error) {
	if w == nil {
		return nil, ErrNilIO
	}

	switch bw := w.(type) {
	// Reuse the underlying buffer if it's already a compatible Writer.
	case *Writer:
		if bw.w.Size() >= size {
			return &Writer{w: bw.w, depth: bw.depth + 1, order: Order}, nil
		}

	// prevent unpredictable double-buffering.
	case *bufio.Writer:
		if bw.Size() >= size {
			return &Writer{w: &bufioWriterAdapter{bw}, depth: 1, order: Order}, nil
		}
		return nil, ErrAlreadyBuffered

	// underlying is a buf so we don't need buffering
	case *BytesWriter:
		return &Writer{w: bw, order: Order}, nil
	case *bytes.Buffer:
		return &Writer{w: &bytesBufferWriterAdapter{bw}, order: Order}, nil
	}

	// default use bufio
	return &Writer{w: &bufioWriterAdapter{bufio.NewWriterSize(w, size)}, order: Order}, nil
}

// NewWriter creates a new Writer with a default buffer size.
func NewWriter(w io.Writer) (*Writer, error) {
	return NewWriterSize(w, 0)
}

// Write implements the io.Writer interface. It writes raw bytes.
func (w *Writer) Write(buf []byte) (int, error) {
	if len(buf) == 0 || w.err != nil {
		return 0, w.err
	}
	n, err := w.w.Write(buf)
	w.count += int64(n)
	w.setError(err)
	return n, w.err
}

// WriteByte implements the io.ByteWriter interface.
func (w *Writer) WriteByte(v byte) error {
	if w.err != nil {
		return w.err
	}
	err := w.w.WriteByte(v)
	if err == nil {
		w.count++
	} else {
		w.err = err
	}
	return err
}

func (w *Writer) Count() int64 { return w.count }
func (w *Writer) Err() error   { return w.err }

// setError records the first non-nil error.
// This preserves the root cause of a failure chain instead of a later,
// less relevant error.
func (w *Writer) setError(err error) {
	if w.err == nil && err != nil {
		w.err = err
	}
}

// Result flushes the buffer and returns the final count and error state.
func (w *Writer) Result() (int64, error) {
	w.Flush()
	return w.count, w.err
}

// Flush writes any buffered data to the underlying io.Writer.
func (w *Writer) Flush() error {
	// To prevent nested writers from flushing the buffer prematurely.
	// Only the outermost writer should be responsible for the final flush.
	if w.depth > 0 || w.err != nil {
		return w.err
	}
	err := w.w.Flush()
	w.setError(err)
	return err
}

// --- Primitive Write Operations ---

// WriteBoolean writes 0x01 for true and 0x00 for false.
func (w *Writer) WriteBoolean(v bool) {
	if v {
		_ = w.WriteByte(1)
	} else {
		_ = w.WriteByte(0)
	}
}

// WriteInt writes a zigzag varint.
func (w *Writer) WriteInt(v int32) {
	w.WriteLong(int64(v))
}

// WriteLong writes a zigzag varint.
func (w *Writer) WriteLong(v int64) {
	if w.err != nil {
		return
	}
	var buf [maxVarintLen64]byte
	_, _ = w.Write(appendVarint(buf[:0], v))
}

// WriteFloat writes 4 little-endian bytes.
func (w *Writer) WriteFloat(v float32) {
	if w.err != nil {
		return
	}
	var buf [4]byte
	w.order.PutUint32(buf[:], math.Float32bits(v))
	_, _ = w.Write(buf[:])
}

// WriteDouble writes 8 little-endian bytes.
func (w *Writer) WriteDouble(v float64) {
	if w.err != nil {
		return
	}
	var buf [8]byte
	w.order.PutUint64(buf[:], math.Float64bits(v))
	_, _ = w.Write(buf[:])
}

// WriteBytes writes a long length followed by the bytes.
func (w *Writer) WriteBytes(v []byte) {
	w.WriteLong(int64(len(v)))
	_, _ = w.Write(v)
}

// WriteString writes a long length followed by the UTF-8 bytes.
func (w *Writer) WriteString(v string) {
	w.WriteLong(int64(len(v)))
	if v == "" || w.err != nil {
		return
	}
	n, err := w.w.WriteString(v)
	w.count += int64(n)
	w.setError(err)
}

// WriteFixed writes raw bytes with no length.
func (w *Writer) WriteFixed(v []byte) {
	_, _ = w.Write(v)
}
