package dng

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"testing"

	tiff66 "github.com/garyhouston/tiff66"

	"github.com/samcharles93/dngpack/pkg/dngerr"
	"github.com/samcharles93/dngpack/pkg/raster"
	"github.com/samcharles93/dngpack/pkg/stream"
	"github.com/samcharles93/dngpack/pkg/tiff"
)

func bayerNegative(t *testing.T, w, h int) *Negative {
	t.Helper()
	return &Negative{
		Raw: ramp(t, w, h, 1, raster.Uint16),
		Camera: Camera{
			Make:  "Acme",
			Model: "R1",
			CFA:   &CFA{Rows: 2, Cols: 2, Pattern: []uint8{0, 1, 1, 2}},
			ColorMatrix1: [][]float64{
				{0.7, -0.1, -0.05},
				{-0.4, 1.2, 0.2},
				{-0.05, 0.1, 0.6},
			},
			CalibrationIlluminant1: 21,
			AsShotNeutral:          []float64{0.5, 1, 0.7},
			BlackLevel:             []float64{64},
			WhiteLevel:             []uint32{16383},
			RawDataUniqueID:        "00112233445566778899aabbccddeeff",
		},
	}
}

type parsedDNG struct {
	order binary.ByteOrder
	main  *tiff66.IFDNode
	raw   *tiff66.IFDNode
	exif  *tiff66.IFDNode
}

func parseDNG(t *testing.T, buf []byte) parsedDNG {
	t.Helper()
	valid, order, pos := tiff66.GetHeader(buf)
	if !valid || pos != tiff.HeaderSize {
		t.Fatalf("header valid=%v pos=%d", valid, pos)
	}
	root, err := tiff66.GetIFDTree(buf, order, pos, tiff66.TIFFSpace)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	p := parsedDNG{order: order, main: root}
	for _, sub := range root.SubIFDs {
		switch uint16(sub.Tag) {
		case tiff.TagSubIFDs:
			p.raw = sub.Node
		case tiff.TagExifIFD:
			p.exif = sub.Node
		}
	}
	if p.raw == nil {
		t.Fatal("no raw sub-directory")
	}
	return p
}

func field(t *testing.T, node *tiff66.IFDNode, code uint16) tiff66.Field {
	t.Helper()
	for _, f := range node.Fields {
		if uint16(f.Tag) == code {
			return f
		}
	}
	t.Fatalf("tag %d missing", code)
	return tiff66.Field{}
}

func hasField(node *tiff66.IFDNode, code uint16) bool {
	for _, f := range node.Fields {
		if uint16(f.Tag) == code {
			return true
		}
	}
	return false
}

func TestWriteDNGStructure(t *testing.T) {
	t.Parallel()

	for _, big := range []bool{false, true} {
		neg := bayerNegative(t, 64, 48)
		neg.Camera.Exif = &Exif{ISO: 200}
		s, store := newStream(t, big)
		layout, err := WriteDNG(s, neg, DNGOptions{ThumbnailSize: 32})
		if err != nil {
			t.Fatalf("write dng: %v", err)
		}
		buf := written(t, s, store)
		if uint64(len(buf)) != layout.FileSize {
			t.Fatalf("file is %d bytes, layout says %d", len(buf), layout.FileSize)
		}
		p := parseDNG(t, buf)
		o := p.order

		if v := field(t, p.main, tiff.TagDNGVersion).Data; v[0] != 1 || v[1] != 3 {
			t.Fatalf("dng version % x", v)
		}
		if v := field(t, p.main, tiff.TagDNGBackwardVersion).Data; v[1] != 1 {
			t.Fatalf("backward version % x", v)
		}
		if got := field(t, p.main, tiff.TagUniqueCameraModel).ASCII(); got != "Acme R1" {
			t.Fatalf("unique camera model %q", got)
		}
		if field(t, p.main, tiff.TagNewSubFileType).Long(0, o) != tiff.SubFilePreview {
			t.Fatal("main image is not a preview")
		}
		if w := field(t, p.main, tiff.TagImageWidth).Long(0, o); w != 32 {
			t.Fatalf("thumbnail width %d", w)
		}
		if id := field(t, p.main, tiff.TagRawDataUniqueID).Data; id[0] != 0x00 || id[15] != 0xff {
			t.Fatalf("unique id % x", id)
		}
		if m := field(t, p.main, tiff.TagColorMatrix1); m.Count != 9 {
			t.Fatalf("color matrix count %d", m.Count)
		}
		if p.exif == nil || field(t, p.exif, tiff.TagISOSpeedRatings).Short(0, o) != 200 {
			t.Fatal("exif directory missing")
		}

		raw := p.raw
		if field(t, raw, tiff.TagPhotometricInterpretation).Short(0, o) != tiff.PhotometricCFA {
			t.Fatal("raw photometric is not CFA")
		}
		if d := field(t, raw, tiff.TagCFARepeatPatternDim); d.Short(0, o) != 2 || d.Short(1, o) != 2 {
			t.Fatalf("cfa dim %d x %d", d.Short(0, o), d.Short(1, o))
		}
		if pat := field(t, raw, tiff.TagCFAPattern).Data; string(pat) != "\x00\x01\x01\x02" {
			t.Fatalf("cfa pattern % x", pat)
		}
		if field(t, raw, tiff.TagWhiteLevel).Short(0, o) != 16383 {
			t.Fatal("white level")
		}
		if n, d := field(t, raw, tiff.TagBlackLevel).Rational(0, o); n != 6400 || d != 100 {
			t.Fatalf("black level %d/%d", n, d)
		}
		if !hasField(raw, tiff.TagBayerGreenSplit) || hasField(raw, tiff.TagActiveArea) {
			t.Fatal("unexpected mosaic tags")
		}

		// Uncompressed raw data is a single strip in file byte order.
		off := field(t, raw, tiff.TagStripOffsets).Long(0, o)
		count := field(t, raw, tiff.TagStripByteCounts).Long(0, o)
		if count != 64*48*2 {
			t.Fatalf("strip byte count %d", count)
		}
		if rl := layout.Images[1]; rl.Tiles[0].Offset != off || rl.IFDOffset == 0 {
			t.Fatalf("raw layout %+v", rl)
		}
		px := neg.Raw.(*raster.MemImage).Pixels()
		for i, v := range px.Uint16s() {
			if got := o.Uint16(buf[int(off)+2*i:]); got != v {
				t.Fatalf("big=%v: raw sample %d = %d, want %d", big, i, got, v)
			}
		}
	}
}

func TestWriteDNGCompressedTiles(t *testing.T) {
	t.Parallel()

	neg := bayerNegative(t, 300, 200)
	s, store := newStream(t, false)
	layout, err := WriteDNG(s, neg, DNGOptions{Compression: tiff.CompressionDeflate, TileSize: 16 * 1024})
	if err != nil {
		t.Fatalf("write dng: %v", err)
	}
	p := parseDNG(t, written(t, s, store))
	if !hasField(p.raw, tiff.TagTileOffsets) || hasField(p.raw, tiff.TagStripOffsets) {
		t.Fatal("compressed raw data is not tiled")
	}
	if field(t, p.raw, tiff.TagPredictor).Short(0, p.order) != tiff.PredictorHorizontal {
		t.Fatal("no predictor")
	}
	if field(t, p.raw, tiff.TagCompression).Short(0, p.order) != tiff.CompressionDeflate {
		t.Fatal("compression tag")
	}
	rl := layout.Images[1]
	if rl.Compression != "deflate" || len(rl.Tiles) < 2 || rl.TileWidth%16 != 0 {
		t.Fatalf("raw layout %+v", rl)
	}
	for _, tile := range rl.Tiles {
		if tile.Offset%2 != 0 {
			t.Fatalf("tile at odd offset %d", tile.Offset)
		}
	}
}

func TestWriteDNGBackwardVersion(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name  string
		opts  DNGOptions
		setup func(*Negative)
		want  byte
	}{
		{"plain", DNGOptions{}, nil, 1},
		{"interleaved", DNGOptions{RowInterleaveFactor: 2}, nil, 2},
		{"sub-tile blocks", DNGOptions{SubTileBlockRows: 2, SubTileBlockCols: 2}, nil, 2},
		{"cfa layout 6", DNGOptions{}, func(n *Negative) { n.Camera.CFA.Layout = 6 }, 3},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			neg := bayerNegative(t, 32, 32)
			if tc.setup != nil {
				tc.setup(neg)
			}
			s, store := newStream(t, false)
			if _, err := WriteDNG(s, neg, tc.opts); err != nil {
				t.Fatalf("write dng: %v", err)
			}
			p := parseDNG(t, written(t, s, store))
			if v := field(t, p.main, tiff.TagDNGBackwardVersion).Data; v[1] != tc.want {
				t.Fatalf("backward version % x, want 1.%d", v, tc.want)
			}
		})
	}
}

func TestWriteDNGLinearRaw(t *testing.T) {
	t.Parallel()

	neg := &Negative{
		Raw: ramp(t, 20, 10, 4, raster.Uint16),
		Camera: Camera{
			UniqueCameraModel: "Scanner",
			ActiveArea:        &Area{Top: 1, Left: 2, Bottom: 9, Right: 18},
			BlackLevelRepeat:  []int{1, 2},
			BlackLevel:        []float64{1, 2, 3, 4, 5, 6, 7, 8},
			WhiteLevel:        []uint32{70000},
		},
	}
	s, store := newStream(t, true)
	if _, err := WriteDNG(s, neg, DNGOptions{}); err != nil {
		t.Fatalf("write dng: %v", err)
	}
	p := parseDNG(t, written(t, s, store))
	o := p.order
	if field(t, p.raw, tiff.TagPhotometricInterpretation).Short(0, o) != tiff.PhotometricLinearRaw {
		t.Fatal("photometric is not linear raw")
	}
	if hasField(p.raw, tiff.TagCFAPattern) {
		t.Fatal("linear raw has a cfa pattern")
	}
	if f := field(t, p.raw, tiff.TagBlackLevel); f.Count != 8 {
		t.Fatalf("black level count %d", f.Count)
	}
	wl := field(t, p.raw, tiff.TagWhiteLevel)
	if wl.Type != tiff66.LONG || wl.Count != 4 || wl.Long(3, o) != 70000 {
		t.Fatalf("white level %+v", wl)
	}
	if a := field(t, p.raw, tiff.TagActiveArea); a.Long(0, o) != 1 || a.Long(3, o) != 18 {
		t.Fatal("active area")
	}
	if n, _ := field(t, p.raw, tiff.TagDefaultCropSize).Rational(0, o); n != 16000 {
		t.Fatalf("crop width %d", n)
	}
	// Four-plane raw data gets a gray thumbnail from its first plane.
	if field(t, p.main, tiff.TagSamplesPerPixel).Short(0, o) != 1 {
		t.Fatal("thumbnail planes")
	}
}

func TestWriteDNGLinearizationNarrows(t *testing.T) {
	t.Parallel()

	neg := bayerNegative(t, 16, 16)
	neg.Camera.WhiteLevel = nil
	neg.Camera.LinearizationTable = make([]uint16, 256)
	for i := range neg.Camera.LinearizationTable {
		neg.Camera.LinearizationTable[i] = uint16(i * i)
	}
	s, store := newStream(t, false)
	if _, err := WriteDNG(s, neg, DNGOptions{}); err != nil {
		t.Fatalf("write dng: %v", err)
	}
	p := parseDNG(t, written(t, s, store))
	if field(t, p.raw, tiff.TagBitsPerSample).Short(0, p.order) != 8 {
		t.Fatal("raw data not narrowed")
	}
	if field(t, p.raw, tiff.TagLinearizationTable).Count != 256 {
		t.Fatal("linearization table")
	}
	if field(t, p.raw, tiff.TagWhiteLevel).Short(0, p.order) != 0xFFFF {
		t.Fatal("white level after linearization")
	}
}

func TestWriteDNGOriginalRawFile(t *testing.T) {
	t.Parallel()

	data := make([]byte, 1000)
	for i := range data {
		data[i] = byte(i)
	}
	orig, err := PackOriginalRawFile("IMG_0001.CR2", bytes.NewReader(data), uint32(len(data)), nil)
	if err != nil {
		t.Fatalf("pack: %v", err)
	}
	neg := bayerNegative(t, 16, 16)
	neg.Original = orig
	s, store := newStream(t, false)
	if _, err := WriteDNG(s, neg, DNGOptions{}); err != nil {
		t.Fatalf("write dng: %v", err)
	}
	p := parseDNG(t, written(t, s, store))
	if got := field(t, p.main, tiff.TagOriginalRawFileName).ASCII(); got != "IMG_0001.CR2" {
		t.Fatalf("original name %q", got)
	}
	if f := field(t, p.main, tiff.TagOriginalRawFileData); int(f.Count) != len(orig.Data) {
		t.Fatalf("original data count %d", f.Count)
	}
	if d := field(t, p.main, tiff.TagOriginalRawFileDigest).Data; string(d) != string(orig.Digest[:]) {
		t.Fatal("original digest")
	}
}

func TestWriteDNGCancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	neg := bayerNegative(t, 64, 64)
	s, _ := newStream(t, false, stream.WithSniffer(ContextSniffer(ctx, nil)))
	if _, err := WriteDNG(s, neg, DNGOptions{}); !errors.Is(err, dngerr.ErrCancelled) {
		t.Fatalf("write dng = %v, want cancelled", err)
	}
}

func TestWriteDNGTooBig(t *testing.T) {
	t.Parallel()

	neg := bayerNegative(t, 64, 64)
	s, _ := newStream(t, false)
	_, err := WriteDNG(s, neg, DNGOptions{}, WithMaxFileSize(4096))
	if !errors.Is(err, dngerr.ErrImageTooBig) {
		t.Fatalf("write dng = %v, want too big", err)
	}
}

func TestWriteDNGRejects(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name  string
		setup func(*Negative)
	}{
		{"float raw", func(n *Negative) {
			f, err := raster.NewMemImage(nil, 8, 8, 1, raster.Float32)
			if err != nil {
				t.Fatalf("new image: %v", err)
			}
			n.Raw = f
		}},
		{"short matrix", func(n *Negative) { n.Camera.ColorMatrix1 = n.Camera.ColorMatrix1[:2] }},
		{"cfa pattern size", func(n *Negative) { n.Camera.CFA.Pattern = []uint8{0, 1, 2} }},
		{"cfa colour index", func(n *Negative) { n.Camera.CFA.Pattern = []uint8{0, 1, 1, 3} }},
		{"black levels", func(n *Negative) { n.Camera.BlackLevel = []float64{1, 2} }},
		{"unique id", func(n *Negative) { n.Camera.RawDataUniqueID = "xyz" }},
		{"active area", func(n *Negative) { n.Camera.ActiveArea = &Area{Bottom: 100, Right: 4} }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			neg := bayerNegative(t, 16, 16)
			tc.setup(neg)
			s, _ := newStream(t, false)
			if _, err := WriteDNG(s, neg, DNGOptions{}); !errors.Is(err, dngerr.ErrProgram) {
				t.Fatalf("write dng = %v, want program error", err)
			}
		})
	}
}

func TestRawGeometryFakeChannels(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name      string
		cols      int
		opts      DNGOptions
		wantFake  int
		wantCellW int
	}{
		{"2x2 cfa", 2, DNGOptions{Compression: tiff.CompressionJPEG}, 2, 16},
		{"4 column cfa", 4, DNGOptions{Compression: tiff.CompressionJPEG}, 4, 16},
		{"blocks promote to 4", 2, DNGOptions{Compression: tiff.CompressionJPEG, SubTileBlockRows: 2, SubTileBlockCols: 3}, 4, 48},
		{"deflate", 2, DNGOptions{Compression: tiff.CompressionDeflate}, 1, 16},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			raw := ramp(t, 200, 100, 1, raster.Uint16)
			cam := &Camera{CFA: &CFA{Rows: 2, Cols: tc.cols, Pattern: make([]uint8, 2*tc.cols)}}
			geo, fake, err := rawGeometry(raw, cam, tc.opts)
			if err != nil {
				t.Fatalf("raw geometry: %v", err)
			}
			if fake != tc.wantFake {
				t.Fatalf("fake channels %d, want %d", fake, tc.wantFake)
			}
			if !geo.UsesTiles || geo.TileWidth%tc.wantCellW != 0 || geo.TileWidth%fake != 0 {
				t.Fatalf("tile width %d", geo.TileWidth)
			}
		})
	}
}

func TestLCM(t *testing.T) {
	t.Parallel()

	for _, tc := range []struct{ a, b, want int }{
		{16, 1, 16}, {16, 3, 48}, {4, 6, 12}, {16, 16, 16}, {0, 5, 5},
	} {
		if got := lcm(tc.a, tc.b); got != tc.want {
			t.Fatalf("lcm(%d, %d) = %d, want %d", tc.a, tc.b, got, tc.want)
		}
	}
}
