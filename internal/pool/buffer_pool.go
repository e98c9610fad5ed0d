package pool

import "sync"

// Buffer is a pooled byte slice.
type Buffer struct {
	B []byte
}

var bufferPool = sync.Pool{
	New: func() any { return &Buffer{B: make([]byte, 0, 512)} },
}

// GetBuffer returns an empty buffer holding a copy of p.
func GetBuffer(p []byte) *Buffer {
	buf, _ := bufferPool.Get().(*Buffer)
	buf.B = append(buf.B[:0], p...)

	return buf
}

// PutBuffer returns buf to the pool. buf cannot be accessed afterwards.
// Oversized buffers are dropped so one burst does not pin memory.
func PutBuffer(buf *Buffer) {
	if buf == nil || cap(buf.B) > 64*1024 {
		return
	}
	buf.B = buf.B[:0]
	bufferPool.Put(buf)
}
