package proxy

import (
	"sync"
)

// RelayBufferSize is the chunk size used by each copy direction.
const RelayBufferSize = 1024

type BufferPool struct {
	pool sync.Pool
}

func NewBufferPool(size int) *BufferPool {
	bp := &BufferPool{}
	bp.pool.New = func() any {
		b := make([]byte, size)
		return &b
	}

	return bp
}

func (p *BufferPool) Get() []byte {
	b := p.pool.Get().(*[]byte)
	return *b
}

func (p *BufferPool) Put(b []byte) {
	// This &b forces a 32-byte heap allocation.  There's no way to avoid this when converting a non-pointer to an interface{}.
	p.pool.Put(&b)
}

var relayBuffers = NewBufferPool(RelayBufferSize)
