// Package raster defines the pull-style image contract consumed by the
// container writer, plus in-memory images and views used to feed it.
package raster

import (
	"fmt"

	"github.com/samcharles93/dngpack/pkg/dngerr"
)

// PixelType is the in-memory sample representation of an image.
type PixelType uint8

const (
	Uint8 PixelType = iota + 1
	Uint16
	Uint32
	Float32
)

// Size returns the size of one sample in bytes.
func (p PixelType) Size() int {
	switch p {
	case Uint8:
		return 1
	case Uint16:
		return 2
	case Uint32, Float32:
		return 4
	default:
		return 0
	}
}

// Bits returns the sample width in bits.
func (p PixelType) Bits() int { return p.Size() * 8 }

func (p PixelType) String() string {
	switch p {
	case Uint8:
		return "uint8"
	case Uint16:
		return "uint16"
	case Uint32:
		return "uint32"
	case Float32:
		return "float32"
	default:
		return fmt.Sprintf("PixelType(%d)", uint8(p))
	}
}

// Rect is a half-open region of rows [Top, Bottom) and columns [Left, Right).
type Rect struct {
	Top, Left, Bottom, Right int
}

// RectWH returns the rectangle of the given size anchored at the origin.
func RectWH(width, height int) Rect {
	return Rect{Bottom: height, Right: width}
}

func (r Rect) W() int { return max(r.Right-r.Left, 0) }
func (r Rect) H() int { return max(r.Bottom-r.Top, 0) }

func (r Rect) Empty() bool { return r.W() == 0 || r.H() == 0 }

// Intersect returns the overlap of r and o, or the zero Rect if none.
func (r Rect) Intersect(o Rect) Rect {
	out := Rect{
		Top:    max(r.Top, o.Top),
		Left:   max(r.Left, o.Left),
		Bottom: min(r.Bottom, o.Bottom),
		Right:  min(r.Right, o.Right),
	}
	if out.Empty() {
		return Rect{}
	}
	return out
}

// Contains reports whether o lies entirely inside r.
func (r Rect) Contains(o Rect) bool {
	return o.Top >= r.Top && o.Left >= r.Left && o.Bottom <= r.Bottom && o.Right <= r.Right
}

// Offset shifts r by the given number of rows and columns.
func (r Rect) Offset(rows, cols int) Rect {
	return Rect{r.Top + rows, r.Left + cols, r.Bottom + rows, r.Right + cols}
}

func (r Rect) String() string {
	return fmt.Sprintf("[%d,%d)x[%d,%d)", r.Top, r.Bottom, r.Left, r.Right)
}

// Image is a pull-based raster source. Get copies the samples of area into
// dst at the positions dst.Area assigns them; area always lies inside both
// the image bounds and dst.Area. Samples are chunky (planes interleaved)
// and in host byte order.
type Image interface {
	Width() int
	Height() int
	Planes() int
	PixelType() PixelType
	Get(dst *Buffer, area Rect) error
}

// Bounds returns the full extent of img.
func Bounds(img Image) Rect {
	return RectWH(img.Width(), img.Height())
}

func checkGet(img Image, dst *Buffer, area Rect) error {
	if dst == nil {
		return dngerr.Programf("raster: nil buffer")
	}
	if dst.Type != img.PixelType() || dst.Planes != img.Planes() {
		return dngerr.Programf("raster: buffer %s/%d planes does not match image %s/%d planes",
			dst.Type, dst.Planes, img.PixelType(), img.Planes())
	}
	if !Bounds(img).Contains(area) || !dst.Area.Contains(area) {
		return dngerr.Programf("raster: area %s outside image %s or buffer %s", area, Bounds(img), dst.Area)
	}
	return nil
}
