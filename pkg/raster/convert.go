package raster

import (
	"image"
	"image/color"
	"math"

	"golang.org/x/image/draw"

	"github.com/samcharles93/dngpack/pkg/dngerr"
	"github.com/samcharles93/dngpack/pkg/memory"
)

// FromImage copies a decoded image into a MemImage. Gray images keep one
// plane; everything else becomes RGB with alpha dropped. 16-bit colour
// models keep 16-bit samples.
func FromImage(alloc memory.Allocator, src image.Image) (*MemImage, error) {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()

	switch src.ColorModel() {
	case color.GrayModel:
		m, err := NewMemImage(alloc, w, h, 1, Uint8)
		if err != nil {
			return nil, err
		}
		px := m.Pixels()
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				g := color.GrayModel.Convert(src.At(b.Min.X+x, b.Min.Y+y)).(color.Gray)
				px.SetSample(y, x, 0, uint32(g.Y))
			}
		}
		return m, nil
	case color.Gray16Model:
		m, err := NewMemImage(alloc, w, h, 1, Uint16)
		if err != nil {
			return nil, err
		}
		px := m.Pixels()
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				g := color.Gray16Model.Convert(src.At(b.Min.X+x, b.Min.Y+y)).(color.Gray16)
				px.SetSample(y, x, 0, uint32(g.Y))
			}
		}
		return m, nil
	case color.RGBA64Model, color.NRGBA64Model:
		m, err := NewMemImage(alloc, w, h, 3, Uint16)
		if err != nil {
			return nil, err
		}
		px := m.Pixels()
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				c := color.NRGBA64Model.Convert(src.At(b.Min.X+x, b.Min.Y+y)).(color.NRGBA64)
				px.SetSample(y, x, 0, uint32(c.R))
				px.SetSample(y, x, 1, uint32(c.G))
				px.SetSample(y, x, 2, uint32(c.B))
			}
		}
		return m, nil
	}

	m, err := NewMemImage(alloc, w, h, 3, Uint8)
	if err != nil {
		return nil, err
	}
	px := m.Pixels()
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := color.NRGBAModel.Convert(src.At(b.Min.X+x, b.Min.Y+y)).(color.NRGBA)
			px.SetSample(y, x, 0, uint32(c.R))
			px.SetSample(y, x, 1, uint32(c.G))
			px.SetSample(y, x, 2, uint32(c.B))
		}
	}
	return m, nil
}

// ToImage renders img as a standard library image. One plane becomes
// Gray or Gray16, three planes RGBA or RGBA64 (opaque). 32-bit integer
// samples keep their high 16 bits; float samples are clamped to [0,1].
func ToImage(img Image) (image.Image, error) {
	planes := img.Planes()
	if planes != 1 && planes != 3 {
		return nil, dngerr.Programf("raster: cannot render %d planes", planes)
	}
	buf, err := NewBuffer(nil, Bounds(img), planes, img.PixelType())
	if err != nil {
		return nil, err
	}
	defer buf.Release()
	if err := img.Get(buf, buf.Area); err != nil {
		return nil, err
	}

	w, h := img.Width(), img.Height()
	r := image.Rect(0, 0, w, h)
	if img.PixelType() == Uint8 {
		if planes == 1 {
			out := image.NewGray(r)
			for y := 0; y < h; y++ {
				copy(out.Pix[y*out.Stride:], buf.Row(y))
			}
			return out, nil
		}
		out := image.NewRGBA(r)
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				out.SetRGBA(x, y, color.RGBA{
					R: uint8(buf.Sample(y, x, 0)),
					G: uint8(buf.Sample(y, x, 1)),
					B: uint8(buf.Sample(y, x, 2)),
					A: 0xFF,
				})
			}
		}
		return out, nil
	}

	sample := func(y, x, p int) uint16 {
		switch img.PixelType() {
		case Uint16:
			return uint16(buf.Sample(y, x, p))
		case Uint32:
			return uint16(buf.Sample(y, x, p) >> 16)
		default:
			f := float64(buf.Float(y, x, p))
			if math.IsNaN(f) {
				return 0
			}
			return uint16(math.Round(min(max(f, 0), 1) * 0xFFFF))
		}
	}
	if planes == 1 {
		out := image.NewGray16(r)
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				out.SetGray16(x, y, color.Gray16{Y: sample(y, x, 0)})
			}
		}
		return out, nil
	}
	out := image.NewRGBA64(r)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			out.SetRGBA64(x, y, color.RGBA64{R: sample(y, x, 0), G: sample(y, x, 1), B: sample(y, x, 2), A: 0xFFFF})
		}
	}
	return out, nil
}

// Thumbnail renders an 8-bit preview of img whose longer side is at most
// maxSide pixels. One-plane sources give gray previews, others RGB.
func Thumbnail(alloc memory.Allocator, img Image, maxSide int) (*MemImage, error) {
	if maxSide < 1 {
		return nil, dngerr.Programf("raster: thumbnail size %d", maxSide)
	}
	src, err := ToImage(img)
	if err != nil {
		return nil, err
	}
	w, h := img.Width(), img.Height()
	if w > maxSide || h > maxSide {
		if w >= h {
			h = max(1, int(math.Round(float64(h)*float64(maxSide)/float64(w))))
			w = maxSide
		} else {
			w = max(1, int(math.Round(float64(w)*float64(maxSide)/float64(h))))
			h = maxSide
		}
	}
	r := image.Rect(0, 0, w, h)
	var dst draw.Image
	if img.Planes() == 1 {
		dst = image.NewGray(r)
	} else {
		dst = image.NewRGBA(r)
	}
	draw.ApproxBiLinear.Scale(dst, r, src, src.Bounds(), draw.Src, nil)
	return FromImage(alloc, dst)
}
