// Package generic holds small type-parameterized helpers shared across
// the engine.
package generic

import "sync"

// Pool is a typed wrapper over sync.Pool. The zero value is not usable;
// construct with NewPool so Get always has a generator to fall back on.
type Pool[T any] struct {
	pool sync.Pool
}

func NewPool[T any](generate func() T) *Pool[T] {
	return &Pool[T]{
		pool: sync.Pool{
			New: func() any {
				return generate()
			},
		},
	}
}

// NewHotPool pre-fills the pool so the first hotSize Gets avoid the
// generator. Used for message buffers on the replication path.
func NewHotPool[T any](generate func() T, hotSize int) *Pool[T] {
	p := NewPool[T](generate)
	for i := 0; i < hotSize; i++ {
		p.pool.Put(generate())
	}
	return p
}

func (p *Pool[T]) Get() T {
	return p.pool.Get().(T)
}

// Put returns a value to the pool. The caller resets the value (truncate
// a buffer, clear a map) before Put or after the next Get; the pool
// itself never touches it.
func (p *Pool[T]) Put(value T) {
	p.pool.Put(value)
}
