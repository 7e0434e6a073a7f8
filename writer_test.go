package avro

import (
	"bufio"
	"bytes"
	"io"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

// mockFlushingWriter helps verify that a writer's Flush method is called.
type mockFlushingWriter struct {
	bytes.Buffer
	flushed bool
}

func (m *mockFlushingWriter) Flush() error {
	m.flushed = true
	return nil
}

// varintVectors pairs longs with their zigzag varint encoding.
var varintVectors = []struct {
	n    int64
	wire []byte
}{
	{0, []byte{0x00}},
	{-1, []byte{0x01}},
	{1, []byte{0x02}},
	{-2, []byte{0x03}},
	{2, []byte{0x04}},
	{63, []byte{0x7e}},
	{-64, []byte{0x7f}},
	{64, []byte{0x80, 0x01}},
	{-65, []byte{0x81, 0x01}},
	{8191, []byte{0xfe, 0x7f}},
	{math.MaxInt32, []byte{0xfe, 0xff, 0xff, 0xff, 0x0f}},
	{math.MinInt32, []byte{0xff, 0xff, 0xff, 0xff, 0x0f}},
	{math.MaxInt64, []byte{0xfe, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0x01}},
	{math.MinInt64, []byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0x01}},
}

type WriterTestSuite struct {
	suite.Suite
	buf    *bytes.Buffer
	writer *Writer
}

// SetupTest runs before each test in the suite, ensuring a clean state.
func (s *WriterTestSuite) SetupTest() {
	s.buf = &bytes.Buffer{}
	s.writer, _ = NewWriter(s.buf)
}

func (s *WriterTestSuite) TestConstructors() {
	s.T().Run("NilWriter", func(t *testing.T) {
		_, err := NewWriter(nil)
		assert.ErrorIs(t, err, ErrNilIO)
	})

	s.T().Run("SmallBufioIsRejected", func(t *testing.T) {
		bw := bufio.NewWriterSize(&bytes.Buffer{}, 16)
		_, err := NewWriterSize(bw, 4096)
		assert.ErrorIs(t, err, ErrAlreadyBuffered)
	})

	s.T().Run("BufioIsReused", func(t *testing.T) {
		var out bytes.Buffer
		bw := bufio.NewWriter(&out)
		w, err := NewWriter(bw)
		require.NoError(t, err)
		w.WriteLong(1)
		_, err = w.Result()
		require.NoError(t, err)
		assert.Zero(t, out.Len(), "the caller owns the bufio.Writer and its flushing")
		require.NoError(t, bw.Flush())
		assert.Equal(t, []byte{0x02}, out.Bytes())
	})
}

func (s *WriterTestSuite) TestVarints() {
	for _, tc := range varintVectors {
		s.buf.Reset()
		w, _ := NewWriter(s.buf)
		w.WriteLong(tc.n)
		_, err := w.Result()
		s.Require().NoError(err)
		s.Assert().Equal(tc.wire, s.buf.Bytes(), "long %d", tc.n)

		if isInt32(tc.n) {
			s.buf.Reset()
			w, _ = NewWriter(s.buf)
			w.WriteInt(int32(tc.n))
			_, err = w.Result()
			s.Require().NoError(err)
			s.Assert().Equal(tc.wire, s.buf.Bytes(), "int %d", tc.n)
		}
	}
}

func (s *WriterTestSuite) TestPrimitives() {
	s.writer.WriteBoolean(true)
	s.writer.WriteBoolean(false)
	s.writer.WriteFloat(1)
	s.writer.WriteDouble(1)
	s.writer.WriteBytes([]byte{0xaa, 0xbb})
	s.writer.WriteString("foo")
	s.writer.WriteString("")
	s.writer.WriteFixed([]byte{1, 2, 3})

	n, err := s.writer.Result()
	s.Require().NoError(err)
	s.Assert().EqualValues(s.buf.Len(), n)

	expected := []byte{
		0x01, 0x00, // booleans
		0x00, 0x00, 0x80, 0x3f, // float 1.0, little endian
		0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0xf0, 0x3f, // double 1.0, little endian
		0x04, 0xaa, 0xbb, // bytes
		0x06, 'f', 'o', 'o', // string
		0x00,    // empty string
		1, 2, 3, // fixed
	}
	s.Assert().Equal(expected, s.buf.Bytes())
}

func (s *WriterTestSuite) TestErrorHandling() {
	s.T().Run("ShortBufferError", func(t *testing.T) {
		fixedBuf := make([]byte, 3)
		writer, _ := NewWriter(NewBytesWriter(fixedBuf))

		writer.WriteString("foo")

		_, err := writer.Result()
		require.Error(t, err)
		assert.ErrorIs(t, err, io.ErrShortWrite)
	})

	s.T().Run("WriteAfterErrorIsNoOp", func(t *testing.T) {
		fixedBuf := make([]byte, 2)
		writer, _ := NewWriter(NewBytesWriter(fixedBuf))

		writer.WriteFixed([]byte{1, 2, 3})
		firstErr := writer.Err()
		require.ErrorIs(t, firstErr, io.ErrShortWrite)

		writer.WriteBoolean(true)
		writer.WriteLong(100)
		assert.Equal(t, firstErr, writer.Err(), "The latched error should not change")
		assert.Equal(t, []byte{1, 2}, fixedBuf)
		assert.EqualValues(t, 2, writer.Count())
	})
}

func (s *WriterTestSuite) TestFlush() {
	mock := &mockFlushingWriter{}
	writer, _ := NewWriterSize(mock, 128)
	writer.WriteBoolean(true)

	// Before flush, data is in the buffer, but not in the underlying writer.
	s.Assert().True(writer.w.(*bufioWriterAdapter).Buffered() > 0)
	s.Assert().Zero(mock.Len())

	writer.Flush()

	s.Assert().Zero(writer.w.(*bufioWriterAdapter).Buffered())
	s.Assert().Equal([]byte{0x01}, mock.Buffer.Bytes())
}

func TestWriter(t *testing.T) {
	suite.Run(t, new(WriterTestSuite))
}
