// Package memory provides the block allocator used for stream windows,
// memory store pages and per-tile pixel buffers.
package memory

import (
	"fmt"
	"math"
	"sync/atomic"
	"unsafe"

	"github.com/samcharles93/dngpack/pkg/dngerr"
)

// Allocator hands out zeroed blocks of memory. Implementations report
// dngerr.ErrMemoryFull instead of panicking when a request cannot be served.
type Allocator interface {
	Allocate(size int) (*Block, error)
}

// Block is an owned region of memory. Release returns it to its allocator;
// calling Release more than once is a no-op.
type Block struct {
	buf     []byte
	release func(n int)
}

// Bytes returns the block contents. The slice is nil after Release.
func (b *Block) Bytes() []byte {
	if b == nil {
		return nil
	}
	return b.buf
}

// Len returns the size of the block in bytes.
func (b *Block) Len() int {
	if b == nil {
		return 0
	}
	return len(b.buf)
}

func (b *Block) Release() {
	if b == nil || b.buf == nil {
		return
	}
	n := len(b.buf)
	b.buf = nil
	if b.release != nil {
		b.release(n)
	}
}

// Heap is an Allocator backed by the Go heap with an optional byte budget.
// A zero limit means unlimited.
type Heap struct {
	limit int64
	inUse atomic.Int64
	peak  atomic.Int64
}

func NewHeap(limit int64) *Heap {
	return &Heap{limit: limit}
}

var defaultHeap = NewHeap(0)

// Default returns the shared unlimited heap allocator.
func Default() Allocator { return defaultHeap }

func (h *Heap) Allocate(size int) (*Block, error) {
	if size < 0 || size > math.MaxInt-7 {
		return nil, fmt.Errorf("%w: invalid block size %d", dngerr.ErrMemoryFull, size)
	}
	n := h.inUse.Add(int64(size))
	if h.limit > 0 && n > h.limit {
		h.inUse.Add(-int64(size))
		return nil, fmt.Errorf("%w: %d bytes requested, %d of %d in use", dngerr.ErrMemoryFull, size, n-int64(size), h.limit)
	}
	for {
		p := h.peak.Load()
		if n <= p || h.peak.CompareAndSwap(p, n) {
			break
		}
	}
	// Round up so typed views over the block stay 8-byte aligned.
	buf := make([]byte, size, (size+7)&^7)
	return &Block{buf: buf, release: h.free}, nil
}

func (h *Heap) free(n int) {
	h.inUse.Add(-int64(n))
}

// InUse reports the bytes currently allocated and not yet released.
func (h *Heap) InUse() int64 { return h.inUse.Load() }

// Peak reports the high-water mark of InUse.
func (h *Heap) Peak() int64 { return h.peak.Load() }

// Uint16s views b as native-order 16-bit samples.
func Uint16s(b []byte) []uint16 {
	if len(b) < 2 {
		return nil
	}
	return unsafe.Slice((*uint16)(unsafe.Pointer(&b[0])), len(b)/2)
}

// Uint32s views b as native-order 32-bit samples.
func Uint32s(b []byte) []uint32 {
	if len(b) < 4 {
		return nil
	}
	return unsafe.Slice((*uint32)(unsafe.Pointer(&b[0])), len(b)/4)
}

// Float32s views b as native-order 32-bit floats.
func Float32s(b []byte) []float32 {
	if len(b) < 4 {
		return nil
	}
	return unsafe.Slice((*float32)(unsafe.Pointer(&b[0])), len(b)/4)
}
