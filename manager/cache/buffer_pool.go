package cache

// BufferPool lends a fixed set of encode scratch buffers. Borrowers never
// wait: when every buffer is out they encode into one of their own.
type BufferPool struct {
	free chan []byte
}

func NewBufferPool(n int, bufSize int) *BufferPool {
	free := make(chan []byte, n)
	for i := 0; i < n; i++ {
		free <- make([]byte, 0, bufSize)
	}
	return &BufferPool{free: free}
}

// TryGet returns an empty buffer, or ok=false when the pool is drained.
func (p *BufferPool) TryGet() (buf []byte, ok bool) {
	select {
	case buf = <-p.free:
		return buf[:0], true
	default:
		return nil, false
	}
}

// Return gives buf back. Buffers beyond the pool size are dropped.
func (p *BufferPool) Return(buf []byte) {
	select {
	case p.free <- buf[:0]:
	default:
	}
}
