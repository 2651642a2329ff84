package raster

import (
	"github.com/samcharles93/dngpack/pkg/dngerr"
	"github.com/samcharles93/dngpack/pkg/memory"
)

// MemImage is an Image held entirely in memory.
type MemImage struct {
	buf *Buffer
}

// NewMemImage allocates a zeroed image.
func NewMemImage(alloc memory.Allocator, width, height, planes int, typ PixelType) (*MemImage, error) {
	if width < 1 || height < 1 {
		return nil, dngerr.Programf("raster: invalid image size %dx%d", width, height)
	}
	buf, err := NewBuffer(alloc, RectWH(width, height), planes, typ)
	if err != nil {
		return nil, err
	}
	return &MemImage{buf: buf}, nil
}

// MemImageFromBytes wraps host-order chunky samples without copying.
func MemImageFromBytes(data []byte, width, height, planes int, typ PixelType) (*MemImage, error) {
	if width < 1 || height < 1 {
		return nil, dngerr.Programf("raster: invalid image size %dx%d", width, height)
	}
	buf, err := WrapBytes(data, RectWH(width, height), planes, typ)
	if err != nil {
		return nil, err
	}
	return &MemImage{buf: buf}, nil
}

func (m *MemImage) Width() int           { return m.buf.Area.W() }
func (m *MemImage) Height() int          { return m.buf.Area.H() }
func (m *MemImage) Planes() int          { return m.buf.Planes }
func (m *MemImage) PixelType() PixelType { return m.buf.Type }

// Pixels exposes the backing buffer for direct sample access.
func (m *MemImage) Pixels() *Buffer { return m.buf }

func (m *MemImage) Get(dst *Buffer, area Rect) error {
	if err := checkGet(m, dst, area); err != nil {
		return err
	}
	return dst.CopyFrom(m.buf, area)
}

// Release frees the pixel memory when it was allocated by NewMemImage.
func (m *MemImage) Release() { m.buf.Release() }
