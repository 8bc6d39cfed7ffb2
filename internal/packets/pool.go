package packets

import "sync"

const defaultBufferSize = 4096

// bufferPool holds scratch buffers used while encoding outgoing packets.
// Control packets and small publishes fit in the default size; bigger ones
// grow the slice through append and are not returned to the pool.
var bufferPool = sync.Pool{
	New: func() any {
		buf := make([]byte, 0, defaultBufferSize)
		return &buf
	},
}

// getBuffer returns a buffer with at least size bytes of capacity.
func getBuffer(size int) *[]byte {
	if size > defaultBufferSize {
		buf := make([]byte, 0, size)
		return &buf
	}
	return bufferPool.Get().(*[]byte)
}

// putBuffer returns a buffer to the pool if it still has the pooled capacity.
func putBuffer(bufPtr *[]byte) {
	if cap(*bufPtr) != defaultBufferSize {
		return
	}
	*bufPtr = (*bufPtr)[:0]
	bufferPool.Put(bufPtr)
}
