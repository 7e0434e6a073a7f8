package avro

import (
	"bytes"
	"sync"
)

// bytesBufPool reuses buffers for encoding. Values are encoded in full into a
// pooled buffer before anything reaches the caller's stream, so a failed encode
// writes nothing.
var bytesBufPool = sync.Pool{
	New: func() any {
		// A 4KB default is chosen to avoid re-allocations for common record sizes.
		return bytes.NewBuffer(make([]byte, 0, 4096))
	},
}

// maxPooledBuffer keeps one huge value from pinning its buffer in the pool.
const maxPooledBuffer = 1 << 20

func getBuffer() *bytes.Buffer {
	buf := bytesBufPool.Get().(*bytes.Buffer)
	buf.Reset()
	return buf
}

func putBuffer(buf *bytes.Buffer) {
	if buf.Cap() > maxPooledBuffer {
		return
	}
	bytesBufPool.Put(buf)
}

const CHUNK_SIZE = 32 * 1024

// bufPool holds scratch chunks for discarding skipped data. 32KB is a common
// default size used by io.Copy.
var bufPool = sync.Pool{
	New: func() interface{} {
		b := make([]byte, CHUNK_SIZE)
		return &b
	},
}
