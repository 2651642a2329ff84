package dng

import (
	"bytes"
	"encoding/binary"
	"testing"
	"time"

	tiff66 "github.com/garyhouston/tiff66"
	xtiff "golang.org/x/image/tiff"

	"github.com/samcharles93/dngpack/pkg/raster"
	"github.com/samcharles93/dngpack/pkg/tiff"
)

func TestWriteTIFFDecodes(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name     string
		w, h     int
		planes   int
		typ      raster.PixelType
		big      bool
		compress uint16
		tileSize int
	}{
		{"gray8 strip", 33, 21, 1, raster.Uint8, false, 0, 0},
		{"gray16 big endian", 40, 17, 1, raster.Uint16, true, 0, 0},
		{"rgb8 tiles", 50, 37, 3, raster.Uint8, false, 0, 2048},
		{"rgb16 big endian tiles", 45, 31, 3, raster.Uint16, true, 0, 4096},
		{"gray8 deflate", 70, 90, 1, raster.Uint8, false, tiff.CompressionDeflate, 0},
		{"rgb8 deflate tiles", 64, 48, 3, raster.Uint8, true, tiff.CompressionDeflate, 4096},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			img := ramp(t, tc.w, tc.h, tc.planes, tc.typ)
			s, store := newStream(t, tc.big)
			layout, err := WriteTIFF(s, img, TIFFOptions{
				Compression: tc.compress,
				TileSize:    tc.tileSize,
				Software:    "dngpack",
			})
			if err != nil {
				t.Fatalf("write tiff: %v", err)
			}
			buf := written(t, s, store)
			if layout.FileSize != uint64(len(buf)) {
				t.Fatalf("layout size %d, file %d", layout.FileSize, len(buf))
			}
			if len(layout.Images) != 1 || layout.Images[0].Tiled != (tc.tileSize > 0) {
				t.Fatalf("layout %+v", layout.Images)
			}

			if tc.tileSize > 0 && tc.compress == 0 {
				var order binary.ByteOrder = binary.LittleEndian
				if tc.big {
					order = binary.BigEndian
				}
				checkTileSamples(t, buf, order, layout.Images[0], img)
			}
			// x/image/tiff drops the right-edge padding of 16-bit RGB tiles;
			// those are checked from the tile bytes above only.
			if tc.tileSize > 0 && tc.typ == raster.Uint16 && tc.planes > 1 {
				return
			}

			got, err := xtiff.Decode(bytes.NewReader(buf))
			if err != nil {
				t.Fatalf("decode: %v", err)
			}
			if b := got.Bounds(); b.Dx() != tc.w || b.Dy() != tc.h {
				t.Fatalf("decoded bounds %v", b)
			}
			px := img.Pixels()
			for y := range tc.h {
				for x := range tc.w {
					r, g, b, _ := got.At(x, y).RGBA()
					decoded := []uint32{r, g, b}
					for p := range tc.planes {
						want := px.Sample(y, x, p)
						if tc.typ == raster.Uint8 {
							want *= 0x101
						}
						if decoded[p] != want {
							t.Fatalf("(%d,%d) plane %d = %d, want %d", x, y, p, decoded[p], want)
						}
					}
				}
			}
		})
	}
}

// checkTileSamples compares every sample of img with the uncompressed tile
// data at the offsets recorded in im.
func checkTileSamples(t *testing.T, buf []byte, order binary.ByteOrder, im ImageLayout, img *raster.MemImage) {
	t.Helper()
	tw, tl := im.TileWidth, im.TileLength
	across := (im.Width + tw - 1) / tw
	size := img.PixelType().Size()
	planes := img.Planes()
	px := img.Pixels()
	for y := range im.Height {
		for x := range im.Width {
			tile := im.Tiles[(y/tl)*across+x/tw]
			if tile.ByteCount != uint32(tw*tl*planes*size) {
				t.Fatalf("tile at (%d,%d) holds %d bytes", x, y, tile.ByteCount)
			}
			for p := range planes {
				at := int(tile.Offset) + (((y%tl)*tw+x%tw)*planes+p)*size
				var got uint32
				switch size {
				case 1:
					got = uint32(buf[at])
				case 2:
					got = uint32(order.Uint16(buf[at:]))
				default:
					got = order.Uint32(buf[at:])
				}
				if want := px.Sample(y, x, p); got != want {
					t.Fatalf("tile sample (%d,%d) plane %d = %d, want %d", x, y, p, got, want)
				}
			}
		}
	}
}

func TestWriteTIFFExif(t *testing.T) {
	t.Parallel()

	flash := uint16(16)
	taken := time.Date(2024, 5, 17, 9, 30, 0, 0, time.UTC)
	for _, big := range []bool{false, true} {
		img := ramp(t, 16, 12, 3, raster.Uint8)
		s, store := newStream(t, big)
		layout, err := WriteTIFF(s, img, TIFFOptions{
			Make:     "Acme",
			Model:    "R1",
			DateTime: taken,
			Exif: &Exif{
				ExposureTime:     1.0 / 250,
				FNumber:          5.6,
				ISO:              400,
				DateTimeOriginal: taken,
				Flash:            &flash,
				LensModel:        "35mm",
			},
		})
		if err != nil {
			t.Fatalf("write tiff: %v", err)
		}
		buf := written(t, s, store)

		valid, order, pos := tiff66.GetHeader(buf)
		if !valid || pos != tiff.HeaderSize {
			t.Fatalf("big=%v: header valid=%v pos=%d", big, valid, pos)
		}
		if (order == binary.BigEndian) != big {
			t.Fatalf("big=%v: byte order %v", big, order)
		}
		root, err := tiff66.GetIFDTree(buf, order, pos, tiff66.TIFFSpace)
		if err != nil {
			t.Fatalf("parse: %v", err)
		}
		var exif *tiff66.IFDNode
		for _, sub := range root.SubIFDs {
			if uint16(sub.Tag) == tiff.TagExifIFD {
				exif = sub.Node
			}
		}
		if exif == nil {
			t.Fatalf("big=%v: no exif directory", big)
		}
		if layout.ExifOffset == 0 {
			t.Fatal("layout has no exif offset")
		}
		seen := map[uint16]bool{}
		for _, f := range exif.Fields {
			seen[uint16(f.Tag)] = true
			switch uint16(f.Tag) {
			case tiff.TagExposureTime:
				if n, d := f.Rational(0, order); n != 1 || d != 250 {
					t.Fatalf("exposure %d/%d", n, d)
				}
			case tiff.TagISOSpeedRatings:
				if f.Short(0, order) != 400 {
					t.Fatalf("iso %d", f.Short(0, order))
				}
			case tiff.TagDateTimeOriginal:
				if f.ASCII() != "2024:05:17 09:30:00" {
					t.Fatalf("date %q", f.ASCII())
				}
			case tiff.TagLensModel:
				if f.ASCII() != "35mm" {
					t.Fatalf("lens %q", f.ASCII())
				}
			}
		}
		for _, code := range []uint16{tiff.TagExifVersion, tiff.TagFNumber, tiff.TagFlash, tiff.TagPixelXDimension} {
			if !seen[code] {
				t.Fatalf("big=%v: exif tag %d missing", big, code)
			}
		}
	}
}

func TestTIFFGeometry(t *testing.T) {
	t.Parallel()

	img := ramp(t, 100, 80, 4, raster.Uint16)
	g := tiffGeometry(img, TIFFOptions{Compression: tiff.CompressionZstd})
	if g.Photometric != tiff.PhotometricRGB || len(g.ExtraSamples) != 1 {
		t.Fatalf("photometric %d extra %v", g.Photometric, g.ExtraSamples)
	}
	if g.Predictor != tiff.PredictorHorizontal || g.UsesTiles {
		t.Fatalf("predictor %d tiled %v", g.Predictor, g.UsesTiles)
	}

	f, err := raster.NewMemImage(nil, 10, 10, 1, raster.Float32)
	if err != nil {
		t.Fatalf("new image: %v", err)
	}
	defer f.Release()
	g = tiffGeometry(f, TIFFOptions{Compression: tiff.CompressionDeflate})
	if g.Predictor != tiff.PredictorNone || g.SampleFormat != tiff.SampleFormatFloat {
		t.Fatalf("float layout %+v", g)
	}
	if err := g.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
}
