package stream

import (
	"fmt"
	"io"

	"github.com/samcharles93/dngpack/pkg/dngerr"
	"github.com/samcharles93/dngpack/pkg/memory"
)

const (
	DefaultPageSize = 64 * 1024

	// Floor for the page slot array when it has to grow.
	minPageSlots = 32
)

// MemoryStore is a Store made of fixed-size pages. After every call the
// pages cover [0, Length()), and each byte maps to exactly one
// (page, offset) pair.
type MemoryStore struct {
	alloc    memory.Allocator
	pageSize uint64
	pages    []*memory.Block
	length   uint64
}

// NewMemoryStore creates an empty paged store. A pageSize of zero selects
// DefaultPageSize; a nil allocator selects memory.Default().
func NewMemoryStore(alloc memory.Allocator, pageSize int) *MemoryStore {
	if alloc == nil {
		alloc = memory.Default()
	}
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &MemoryStore{alloc: alloc, pageSize: uint64(pageSize)}
}

func (m *MemoryStore) PageSize() int { return int(m.pageSize) }

func (m *MemoryStore) PageCount() int { return len(m.pages) }

func (m *MemoryStore) Length() (uint64, error) { return m.length, nil }

func (m *MemoryStore) Flush() error { return nil }

// SetLength grows the page list until it covers n bytes. Shrinking only
// moves the length; pages are kept until Shrink. Bytes beyond the old length
// always read back as zero.
func (m *MemoryStore) SetLength(n uint64) error {
	if n < m.length {
		m.zeroRange(n, m.length)
		m.length = n
		return nil
	}
	need := (n + m.pageSize - 1) / m.pageSize
	if need > uint64(len(m.pages)) {
		if need > uint64(cap(m.pages)) {
			slots := max(uint64(cap(m.pages))*2, minPageSlots, need)
			grown := make([]*memory.Block, len(m.pages), slots)
			copy(grown, m.pages)
			m.pages = grown
		}
		for uint64(len(m.pages)) < need {
			page, err := m.alloc.Allocate(int(m.pageSize))
			if err != nil {
				return err
			}
			m.pages = append(m.pages, page)
		}
	}
	m.length = n
	return nil
}

// Shrink releases pages no longer needed to cover the current length.
func (m *MemoryStore) Shrink() {
	need := int((m.length + m.pageSize - 1) / m.pageSize)
	for i := need; i < len(m.pages); i++ {
		m.pages[i].Release()
		m.pages[i] = nil
	}
	m.pages = m.pages[:need]
}

// Release returns every page to the allocator and empties the store.
func (m *MemoryStore) Release() {
	for _, p := range m.pages {
		p.Release()
	}
	m.pages = nil
	m.length = 0
}

func (m *MemoryStore) zeroRange(from, to uint64) {
	for from < to {
		idx, off := from/m.pageSize, from%m.pageSize
		if idx >= uint64(len(m.pages)) {
			return
		}
		step := min(m.pageSize-off, to-from)
		clear(m.pages[idx].Bytes()[off : off+step])
		from += step
	}
}

func (m *MemoryStore) ReadAt(p []byte, off uint64) error {
	if off+uint64(len(p)) > m.length {
		return fmt.Errorf("%w: memory read of %d bytes at %d, length %d", dngerr.ErrEndOfFile, len(p), off, m.length)
	}
	for len(p) > 0 {
		idx, pageOff := off/m.pageSize, off%m.pageSize
		step := min(m.pageSize-pageOff, uint64(len(p)))
		copy(p[:step], m.pages[idx].Bytes()[pageOff:])
		p = p[step:]
		off += step
	}
	return nil
}

func (m *MemoryStore) WriteAt(p []byte, off uint64) error {
	end := off + uint64(len(p))
	if end > m.length {
		if err := m.SetLength(end); err != nil {
			return err
		}
	}
	for len(p) > 0 {
		idx, pageOff := off/m.pageSize, off%m.pageSize
		step := min(m.pageSize-pageOff, uint64(len(p)))
		copy(m.pages[idx].Bytes()[pageOff:], p[:step])
		p = p[step:]
		off += step
	}
	return nil
}

// WriteTo copies the store contents to w.
func (m *MemoryStore) WriteTo(w io.Writer) (int64, error) {
	var written int64
	remaining := m.length
	for _, page := range m.pages {
		if remaining == 0 {
			break
		}
		step := min(m.pageSize, remaining)
		n, err := w.Write(page.Bytes()[:step])
		written += int64(n)
		if err != nil {
			return written, dngerr.Wrap(dngerr.ErrWriteFile, err)
		}
		remaining -= step
	}
	return written, nil
}

// Bytes returns a contiguous copy of the store contents.
func (m *MemoryStore) Bytes() ([]byte, error) {
	out := make([]byte, m.length)
	if err := m.ReadAt(out, 0); err != nil {
		return nil, err
	}
	return out, nil
}
