// Package pools provides buffer reuse for hot simulation paths
package pools

import (
	"sync"
)

// Float64SlicePool recycles float64 buffers between simulation runs.
// Buffers come back with the requested length and arbitrary contents;
// callers must overwrite every element.
type Float64SlicePool struct {
	pool sync.Pool
	size int
}

// NewFloat64SlicePool creates a pool whose fresh buffers have capacity
// size. Requests beyond that capacity allocate and are still recycled.
func NewFloat64SlicePool(size int) *Float64SlicePool {
	if size <= 0 {
		size = 1024
	}
	return &Float64SlicePool{
		pool: sync.Pool{
			New: func() interface{} {
				return make([]float64, 0, size)
			},
		},
		size: size,
	}
}

// Get retrieves a buffer of length n from the pool
func (p *Float64SlicePool) Get(n int) []float64 {
	buf := p.pool.Get().([]float64)
	if cap(buf) < n {
		return make([]float64, n)
	}
	return buf[:n]
}

// Put returns a buffer to the pool
func (p *Float64SlicePool) Put(buf []float64) {
	if cap(buf) >= p.size {
		p.pool.Put(buf[:0])
	}
	// Undersized buffers are left to the GC
}
