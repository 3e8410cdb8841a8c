// Package bufpool pools the bytes.Buffers templates render into and OOXML
// packages are zipped into. Every finding renders several rich-text
// fields, so reusing buffers keeps allocations flat as reports grow.
package bufpool

import (
	"bytes"
	"sync"
)

// maxBufferSize is the largest buffer returned to the pool. Whole
// document packages grow well past it and are left to the GC.
const maxBufferSize = 256 * 1024

var bufferPool = sync.Pool{
	New: func() any {
		return new(bytes.Buffer)
	},
}

// Get retrieves an empty bytes.Buffer from the pool. Call Put when done
// and do not retain buf.Bytes() past that point.
func Get() *bytes.Buffer {
	buf := bufferPool.Get().(*bytes.Buffer)
	buf.Reset()
	return buf
}

// GetSized retrieves an empty buffer with at least size bytes of capacity.
func GetSized(size int) *bytes.Buffer {
	buf := Get()
	if buf.Cap() < size {
		buf.Grow(size)
	}
	return buf
}

// Put returns buf to the pool. Nil and oversized buffers are dropped.
func Put(buf *bytes.Buffer) {
	if buf == nil || buf.Cap() > maxBufferSize {
		return
	}
	buf.Reset()
	bufferPool.Put(buf)
}
