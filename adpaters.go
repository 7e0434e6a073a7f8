package avro

import (
	"bufio"
	"bytes"
	"io"
)

type (
	bytesBufferWriterAdapter struct{ *bytes.Buffer }
	bufioWriterAdapter       struct{ *bufio.Writer }

	// byteReaderAdapter reads single bytes through Read, never buffering ahead.
	byteReaderAdapter struct {
		io.Reader
		one [1]byte
	}
)

func (w *bytesBufferWriterAdapter) Flush() error { return nil }
func (w *bytesBufferWriterAdapter) Size() int    { return w.Available() }

// ReadByte implements io.ByteReader on top of a plain io.Reader.
func (r *byteReaderAdapter) ReadByte() (byte, error) {
	for {
		n, err := r.Reader.Read(r.one[:])
		if n == 1 {
			return r.one[0], nil
		}
		if err != nil {
			return 0, err
		}
	}
}
