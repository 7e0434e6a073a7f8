package avro

import (
	"encoding/binary"
	"io"
	"math"

	"golang.org/x/exp/constraints"
)

// Order is the byte order of float and double; Avro fixes it to little endian.
var Order binary.ByteOrder = binary.LittleEndian

// maxVarintLen64 is the longest encoding of a zigzag long.
const maxVarintLen64 = 10

// Discard reads and drops n bytes from r, through a pooled scratch chunk.
func Discard(r io.Reader, n int64) (int64, error) {
	if n == 0 {
		return 0, nil
	}
	if n < 0 {
		return 0, ErrDiscardNegative
	}
	chunk := bufPool.Get().(*[]byte)
	defer bufPool.Put(chunk)
	var skipped int64
	for skipped < n {
		want := min(n-skipped, int64(len(*chunk)))
		read, err := io.ReadFull(r, (*chunk)[:want])
		skipped += int64(read)
		if err != nil {
			return skipped, err
		}
	}
	return skipped, nil
}

// zigzag maps signed integers to unsigned ones so that small magnitudes of either
// sign get short encodings: 0, -1, 1, -2, 2 become 0, 1, 2, 3, 4.
func zigzag[T constraints.Signed](n T) uint64 {
	v := int64(n)
	return uint64(v<<1) ^ uint64(v>>63)
}

// unzigzag reverses zigzag.
func unzigzag(u uint64) int64 {
	return int64(u>>1) ^ -int64(u&1)
}

// appendVarint appends the zigzag varint encoding of n.
func appendVarint[T constraints.Signed](buf []byte, n T) []byte {
	u := zigzag(n)
	for u >= 0x80 {
		buf = append(buf, byte(u)|0x80)
		u >>= 7
	}
	return append(buf, byte(u))
}

// inRange reports whether n fits in T.
func inRange[T constraints.Signed](n int64) bool {
	return int64(T(n)) == n
}

func isInt32(n int64) bool { return inRange[int32](n) }

// float32Exact reports whether f survives a round trip through float32.
func float32Exact(f float64) bool {
	return math.IsNaN(f) || float64(float32(f)) == f
}
