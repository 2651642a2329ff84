package dng

import (
	"github.com/samcharles93/dngpack/pkg/raster"
	"github.com/samcharles93/dngpack/pkg/tiff"
)

// DefaultThumbnailSize bounds the longer side of generated thumbnails.
const DefaultThumbnailSize = 256

// thumbnailImage returns the 8-bit preview stored in the main directory
// and a func releasing it.
func thumbnailImage(o options, neg *Negative, maxSide int) (raster.Image, func(), error) {
	src := neg.Thumbnail
	if src != nil && src.PixelType() == raster.Uint8 && (src.Planes() == 1 || src.Planes() == 3) {
		return src, func() {}, nil
	}
	if maxSide <= 0 {
		maxSide = DefaultThumbnailSize
	}
	if src == nil {
		src = neg.Raw
	} else {
		maxSide = max(src.Width(), src.Height())
	}
	if p := src.Planes(); p != 1 && p != 3 {
		src = &planeView{src: src, plane: 0}
	}
	thumb, err := raster.Thumbnail(o.alloc, src, maxSide)
	if err != nil {
		return nil, nil, err
	}
	return thumb, thumb.Release, nil
}

func thumbnailGeometry(img raster.Image) *Geometry {
	g := NewGeometry(img.Width(), img.Height(), img.Planes(), 8)
	g.NewSubFileType = tiff.SubFilePreview
	if img.Planes() == 3 {
		g.Photometric = tiff.PhotometricRGB
	}
	return g
}

// planeView shows a single plane of a multi-plane image.
type planeView struct {
	src   raster.Image
	plane int
}

func (v *planeView) Width() int                  { return v.src.Width() }
func (v *planeView) Height() int                 { return v.src.Height() }
func (v *planeView) Planes() int                 { return 1 }
func (v *planeView) PixelType() raster.PixelType { return v.src.PixelType() }

func (v *planeView) Get(dst *raster.Buffer, area raster.Rect) error {
	tmp, err := raster.NewBuffer(nil, area, v.src.Planes(), v.src.PixelType())
	if err != nil {
		return err
	}
	defer tmp.Release()
	if err := v.src.Get(tmp, area); err != nil {
		return err
	}
	for r := area.Top; r < area.Bottom; r++ {
		for c := area.Left; c < area.Right; c++ {
			dst.SetSample(r, c, 0, tmp.Sample(r, c, v.plane))
		}
	}
	return nil
}
