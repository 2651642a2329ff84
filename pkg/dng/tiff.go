package dng

import (
	"fmt"
	"time"

	"github.com/samcharles93/dngpack/pkg/dngerr"
	"github.com/samcharles93/dngpack/pkg/raster"
	"github.com/samcharles93/dngpack/pkg/stream"
	"github.com/samcharles93/dngpack/pkg/tiff"
)

// Layout reports where the parts of a written file ended up.
type Layout struct {
	ByteOrder  string        `json:"byte_order"`
	FileSize   uint64        `json:"file_size"`
	ExifOffset uint32        `json:"exif_offset,omitempty"`
	Images     []ImageLayout `json:"images"`
}

func newLayout(s *stream.Stream) *Layout {
	order := "II"
	if s.BigEndian() {
		order = "MM"
	}
	return &Layout{ByteOrder: order}
}

// Resolution is the physical pixel density of an image.
type Resolution struct {
	X, Y float64
	// Unit is 2 for inches, 3 for centimetres.
	Unit uint16
}

// TIFFOptions controls WriteTIFF.
type TIFFOptions struct {
	// Compression is one of the tiff.Compression codes. Zero means none.
	Compression uint16
	// TileSize, when positive, stores tiles of about that many bytes
	// instead of strips.
	TileSize int

	Resolution *Resolution
	ICCProfile []byte
	XMP        []byte
	IPTC       []byte
	Exif       *Exif

	Make, Model, Software string
	Artist, Copyright     string
	Description           string
	DateTime              time.Time
}

// WriteTIFF writes img as a baseline TIFF into s: one main directory,
// an optional Exif directory, then the pixel data. Uncompressed images are
// stored as a single strip, compressed ones as strips of about
// DefaultChunkSize bytes with the horizontal predictor.
func WriteTIFF(s *stream.Stream, img raster.Image, opts TIFFOptions, wopts ...Option) (*Layout, error) {
	if s == nil || img == nil {
		return nil, dngerr.Programf("dng: WriteTIFF needs a stream and an image")
	}
	o := resolve(wopts)

	geo := tiffGeometry(img, opts)
	var main tiff.Directory
	tags, err := NewBasicTagSet(&main, geo)
	if err != nil {
		return nil, err
	}
	if err := addTIFFTags(&main, opts); err != nil {
		return nil, err
	}

	var exifDir *tiff.Directory
	var exifLink *tiff.OffsetTable
	if opts.Exif != nil {
		if exifDir, err = opts.Exif.directory(img.Width(), img.Height()); err != nil {
			return nil, err
		}
		exifLink = tiff.NewOffsetTable(tiff.TagExifIFD, 1)
		if err := main.Add(exifLink); err != nil {
			return nil, err
		}
	}

	exifOffset := uint64(tiff.HeaderSize) + uint64(main.Size())
	dataOffset := exifOffset
	if exifDir != nil {
		dataOffset += uint64(exifDir.Size())
	}
	if dataOffset > o.maxFileSize {
		return nil, fmt.Errorf("%w: directories end at %d", dngerr.ErrImageTooBig, dataOffset)
	}

	var spool *exifSpool
	if exifDir != nil {
		if err := exifLink.Fill([]uint32{uint32(exifOffset)}); err != nil {
			return nil, err
		}
		if spool, err = spoolExif(exifDir, uint32(exifOffset), s.BigEndian(), o.alloc); err != nil {
			return nil, err
		}
		defer spool.release()
	}

	s.SetWritePosition(dataOffset)
	w := newImageWriter(o)
	if err := w.WriteImage(s, img, geo, tags); err != nil {
		return nil, err
	}

	if err := finishLength(s, o.maxFileSize); err != nil {
		return nil, err
	}
	if err := tiff.PutHeader(s, tiff.HeaderSize); err != nil {
		return nil, err
	}
	if err := main.Put(s, tiff.OffsetsRelativeToStream, 0); err != nil {
		return nil, err
	}
	layout := newLayout(s)
	if spool != nil {
		s.SetWritePosition(exifOffset)
		if err := spool.copyTo(s); err != nil {
			return nil, err
		}
		layout.ExifOffset = uint32(exifOffset)
	}
	if err := s.Flush(); err != nil {
		return nil, err
	}

	il := w.Layout()
	il.IFDOffset = tiff.HeaderSize
	layout.Images = append(layout.Images, il)
	layout.FileSize = s.Length()
	o.log.Debug("wrote tiff", "size", layout.FileSize, "order", layout.ByteOrder)
	return layout, nil
}

func tiffGeometry(img raster.Image, opts TIFFOptions) *Geometry {
	typ := img.PixelType()
	planes := img.Planes()
	geo := NewGeometry(img.Width(), img.Height(), planes, typ.Bits())

	colors := 1
	geo.Photometric = tiff.PhotometricBlackIsZero
	if planes >= 3 {
		colors = 3
		geo.Photometric = tiff.PhotometricRGB
	}
	if extra := planes - colors; extra > 0 {
		geo.ExtraSamples = make([]uint16, extra)
	}
	if typ == raster.Float32 {
		geo.SampleFormat = tiff.SampleFormatFloat
	}

	geo.Compression = opts.Compression
	if geo.Compression == 0 {
		geo.Compression = tiff.CompressionNone
	}
	if geo.Compression != tiff.CompressionNone && typ != raster.Float32 {
		geo.Predictor = tiff.PredictorHorizontal
	}
	switch {
	case opts.TileSize > 0:
		geo.FindTileSize(opts.TileSize, DefaultCell, DefaultCell)
	case geo.Compression != tiff.CompressionNone:
		geo.FindStripSize(DefaultChunkSize, DefaultCell)
	default:
		geo.SetSingleStrip()
	}
	return geo
}

func addTIFFTags(dir *tiff.Directory, opts TIFFOptions) error {
	var vals []tiff.Value
	for _, t := range []struct {
		code uint16
		text string
	}{
		{tiff.TagImageDescription, opts.Description},
		{tiff.TagMake, opts.Make},
		{tiff.TagModel, opts.Model},
		{tiff.TagSoftware, opts.Software},
		{tiff.TagArtist, opts.Artist},
		{tiff.TagCopyright, opts.Copyright},
	} {
		if t.text != "" {
			vals = append(vals, tiff.NewString(t.code, t.text))
		}
	}
	if !opts.DateTime.IsZero() {
		vals = append(vals, tiff.NewDateTime(tiff.TagDateTime, opts.DateTime))
	}
	if r := opts.Resolution; r != nil {
		unit := r.Unit
		if unit == 0 {
			unit = 2
		}
		vals = append(vals,
			tiff.NewRationals(tiff.TagXResolution, tiff.URationalOf(r.X, 0)),
			tiff.NewRationals(tiff.TagYResolution, tiff.URationalOf(r.Y, 0)),
			tiff.NewShorts(tiff.TagResolutionUnit, unit))
	}
	if len(opts.ICCProfile) > 0 {
		vals = append(vals, tiff.NewUndefined(tiff.TagICCProfile, opts.ICCProfile))
	}
	if len(opts.XMP) > 0 {
		vals = append(vals, tiff.NewBytes(tiff.TagXMP, opts.XMP...))
	}
	if len(opts.IPTC) > 0 {
		vals = append(vals, tiff.NewIPTC(opts.IPTC))
	}
	for _, v := range vals {
		if err := dir.Add(v); err != nil {
			return err
		}
	}
	return nil
}

// finishLength trims the stream to its write position and enforces the
// size ceiling.
func finishLength(s *stream.Stream, ceiling uint64) error {
	if err := s.SetLength(s.Position()); err != nil {
		return err
	}
	if s.Length() > ceiling {
		return fmt.Errorf("%w: file is %d bytes, limit %d", dngerr.ErrImageTooBig, s.Length(), ceiling)
	}
	return nil
}
