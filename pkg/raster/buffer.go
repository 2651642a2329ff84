package raster

import (
	"fmt"
	"math"

	"github.com/samcharles93/dngpack/pkg/dngerr"
	"github.com/samcharles93/dngpack/pkg/memory"
)

// Buffer is a chunky pixel buffer covering Area. Sample (row, col, plane)
// lives at index (row-Area.Top)*RowStep + (col-Area.Left)*Planes + plane.
type Buffer struct {
	Area    Rect
	Planes  int
	Type    PixelType
	RowStep int

	data  []byte
	block *memory.Block
}

// NewBuffer allocates a zeroed buffer for area through alloc.
func NewBuffer(alloc memory.Allocator, area Rect, planes int, typ PixelType) (*Buffer, error) {
	if planes < 1 || typ.Size() == 0 {
		return nil, dngerr.Programf("raster: invalid buffer layout %d planes of %s", planes, typ)
	}
	if alloc == nil {
		alloc = memory.Default()
	}
	n := uint64(area.W()) * uint64(area.H()) * uint64(planes) * uint64(typ.Size())
	if n > math.MaxInt-7 {
		return nil, fmt.Errorf("%w: raster buffer of %d bytes", dngerr.ErrMemoryFull, n)
	}
	block, err := alloc.Allocate(int(n))
	if err != nil {
		return nil, err
	}
	return &Buffer{
		Area:    area,
		Planes:  planes,
		Type:    typ,
		RowStep: area.W() * planes,
		data:    block.Bytes(),
		block:   block,
	}, nil
}

// WrapBytes builds a buffer over caller-owned bytes.
func WrapBytes(data []byte, area Rect, planes int, typ PixelType) (*Buffer, error) {
	need := area.W() * area.H() * planes * typ.Size()
	if planes < 1 || typ.Size() == 0 || len(data) < need {
		return nil, dngerr.Programf("raster: %d bytes cannot hold %s with %d planes of %s", len(data), area, planes, typ)
	}
	return &Buffer{Area: area, Planes: planes, Type: typ, RowStep: area.W() * planes, data: data}, nil
}

// Release returns allocated memory. Views and wrapped buffers own nothing.
func (b *Buffer) Release() {
	if b.block != nil {
		b.block.Release()
		b.block = nil
	}
	b.data = nil
}

// Bytes returns the raw sample bytes.
func (b *Buffer) Bytes() []byte { return b.data }

// Contiguous reports whether rows follow each other with no gap.
func (b *Buffer) Contiguous() bool { return b.RowStep == b.Area.W()*b.Planes }

// Reshape reuses the buffer's memory for a smaller area. The buffer must
// own its data (not be a view).
func (b *Buffer) Reshape(area Rect) error {
	need := area.W() * area.H() * b.Planes * b.Type.Size()
	if need > cap(b.data) {
		return dngerr.Programf("raster: reshape to %s needs %d bytes, have %d", area, need, cap(b.data))
	}
	b.Area = area
	b.RowStep = area.W() * b.Planes
	b.data = b.data[:need]
	return nil
}

// Clear zeroes every sample.
func (b *Buffer) Clear() {
	if b.Contiguous() {
		clear(b.data)
		return
	}
	size := b.Type.Size()
	rowBytes := b.Area.W() * b.Planes * size
	for r := 0; r < b.Area.H(); r++ {
		start := r * b.RowStep * size
		clear(b.data[start : start+rowBytes])
	}
}

// Index returns the sample index of (row, col, plane).
func (b *Buffer) Index(row, col, plane int) int {
	return (row-b.Area.Top)*b.RowStep + (col-b.Area.Left)*b.Planes + plane
}

// Sub returns a view of area sharing b's memory. area must lie inside b.Area.
func (b *Buffer) Sub(area Rect) (*Buffer, error) {
	if !b.Area.Contains(area) {
		return nil, dngerr.Programf("raster: sub area %s outside %s", area, b.Area)
	}
	start := b.Index(area.Top, area.Left, 0) * b.Type.Size()
	end := start
	if !area.Empty() {
		end = (b.Index(area.Bottom-1, area.Right-1, b.Planes-1) + 1) * b.Type.Size()
	}
	return &Buffer{
		Area:    area,
		Planes:  b.Planes,
		Type:    b.Type,
		RowStep: b.RowStep,
		data:    b.data[start:end],
	}, nil
}

// Row returns the bytes of one row restricted to the buffer's columns.
func (b *Buffer) Row(row int) []byte {
	size := b.Type.Size()
	start := (row - b.Area.Top) * b.RowStep * size
	return b.data[start : start+b.Area.W()*b.Planes*size]
}

func (b *Buffer) Uint16s() []uint16   { return memory.Uint16s(b.data) }
func (b *Buffer) Uint32s() []uint32   { return memory.Uint32s(b.data) }
func (b *Buffer) Float32s() []float32 { return memory.Float32s(b.data) }

// Sample returns an integer sample widened to uint32. Float samples are
// returned as their bit pattern.
func (b *Buffer) Sample(row, col, plane int) uint32 {
	i := b.Index(row, col, plane)
	switch b.Type {
	case Uint8:
		return uint32(b.data[i])
	case Uint16:
		return uint32(b.Uint16s()[i])
	default:
		return b.Uint32s()[i]
	}
}

// SetSample stores v, truncated to the buffer's sample width.
func (b *Buffer) SetSample(row, col, plane int, v uint32) {
	i := b.Index(row, col, plane)
	switch b.Type {
	case Uint8:
		b.data[i] = uint8(v)
	case Uint16:
		b.Uint16s()[i] = uint16(v)
	default:
		b.Uint32s()[i] = v
	}
}

// Float returns a float sample.
func (b *Buffer) Float(row, col, plane int) float32 {
	return math.Float32frombits(b.Sample(row, col, plane))
}

func (b *Buffer) SetFloat(row, col, plane int, v float32) {
	b.SetSample(row, col, plane, math.Float32bits(v))
}

// CopyFrom copies area from src into b. Both buffers must cover area and
// share a layout.
func (b *Buffer) CopyFrom(src *Buffer, area Rect) error {
	if src.Type != b.Type || src.Planes != b.Planes {
		return dngerr.Programf("raster: copy between %s/%d and %s/%d", src.Type, src.Planes, b.Type, b.Planes)
	}
	if !src.Area.Contains(area) || !b.Area.Contains(area) {
		return dngerr.Programf("raster: copy area %s outside %s or %s", area, src.Area, b.Area)
	}
	size := b.Type.Size()
	n := area.W() * b.Planes * size
	for r := area.Top; r < area.Bottom; r++ {
		d := b.Index(r, area.Left, 0) * size
		s := src.Index(r, area.Left, 0) * size
		copy(b.data[d:d+n], src.data[s:s+n])
	}
	return nil
}
