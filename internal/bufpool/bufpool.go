// Package bufpool provides tiered, reusable scratch buffers; the
// connection uses one for its per-response write scratch buffer.
// Generalized from the teacher's internal/server/bufferpool.go.
package bufpool

import "sync"

var pools = struct {
	small  sync.Pool // 4 KiB
	medium sync.Pool // 32 KiB
	large  sync.Pool // 128 KiB
}{
	small: sync.Pool{New: func() any {
		b := make([]byte, 4096)
		return &b
	}},
	medium: sync.Pool{New: func() any {
		b := make([]byte, 32768)
		return &b
	}},
	large: sync.Pool{New: func() any {
		b := make([]byte, 131072)
		return &b
	}},
}

// Get returns a buffer of at least size bytes. Buffers larger than the
// largest tier are allocated fresh and not pooled.
func Get(size int) []byte {
	switch {
	case size <= 4096:
		b := pools.small.Get().(*[]byte)
		return (*b)[:size]
	case size <= 32768:
		b := pools.medium.Get().(*[]byte)
		return (*b)[:size]
	case size <= 131072:
		b := pools.large.Get().(*[]byte)
		if cap(*b) < size {
			return make([]byte, size)
		}
		return (*b)[:size]
	default:
		return make([]byte, size)
	}
}

// Put returns buf to the pool matching its capacity. Non-tiered capacities
// are left for the garbage collector.
func Put(buf []byte) {
	switch cap(buf) {
	case 4096:
		b := buf[:4096]
		pools.small.Put(&b)
	case 32768:
		b := buf[:32768]
		pools.medium.Put(&b)
	case 131072:
		b := buf[:131072]
		pools.large.Put(&b)
	}
}
