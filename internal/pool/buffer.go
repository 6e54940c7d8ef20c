// Package pool provides reusable copy buffers for streaming file contents.
package pool

import (
	"sync"
)

const (
	// CopyBufferSize is the size of buffers used to stream file contents (64KB)
	CopyBufferSize = 64 * 1024
	// HeadSize is how many leading bytes are kept for content sniffing (3KB)
	HeadSize = 3 * 1024
)

// BufferPool hands out fixed-size byte slices.
type BufferPool struct {
	size int
	pool *sync.Pool
}

// NewBufferPool creates a pool of buffers with the given length.
func NewBufferPool(size int) *BufferPool {
	return &BufferPool{
		size: size,
		pool: &sync.Pool{
			New: func() interface{} {
				buf := make([]byte, size)
				return &buf
			},
		},
	}
}

// Get returns a full-length buffer from the pool.
// The caller is responsible for calling Put to return the buffer to the pool.
func (bp *BufferPool) Get() []byte {
	bufPtr := bp.pool.Get().(*[]byte)
	return (*bufPtr)[:bp.size]
}

// Put returns buf to the pool. Buffers of a different capacity are dropped.
func (bp *BufferPool) Put(buf []byte) {
	if cap(buf) != bp.size {
		return
	}
	buf = buf[:bp.size]
	bp.pool.Put(&buf)
}

var (
	copyBuffers = NewBufferPool(CopyBufferSize)
	headBuffers = NewBufferPool(HeadSize)
)

// GetCopyBuffer returns a buffer from the global copy pool.
func GetCopyBuffer() []byte {
	return copyBuffers.Get()
}

// PutCopyBuffer returns a buffer to the global copy pool.
func PutCopyBuffer(buf []byte) {
	copyBuffers.Put(buf)
}

// GetHeadBuffer returns a buffer from the global sniffing pool.
func GetHeadBuffer() []byte {
	return headBuffers.Get()
}

// PutHeadBuffer returns a buffer to the global sniffing pool.
func PutHeadBuffer(buf []byte) {
	headBuffers.Put(buf)
}
