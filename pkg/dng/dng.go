// Package dng lays out images in TIFF and DNG containers: it plans strips
// and tiles, streams pixel data through the predictor and coders, and
// writes the directories once every offset is known.
package dng

import (
	"fmt"

	"github.com/samcharles93/dngpack/pkg/dngerr"
	"github.com/samcharles93/dngpack/pkg/raster"
	"github.com/samcharles93/dngpack/pkg/stream"
	"github.com/samcharles93/dngpack/pkg/tiff"
)

// FormatVersion is the DNGVersion written into every file.
const FormatVersion = "1.3.0.0"

var (
	dngVersion11 = []byte{1, 1, 0, 0}
	dngVersion12 = []byte{1, 2, 0, 0}
	dngVersion13 = []byte{1, 3, 0, 0}
)

// DNGOptions controls how WriteDNG stores the raw data.
type DNGOptions struct {
	// Compression is one of the tiff.Compression codes. Zero means none.
	// 32-bit data is always stored uncompressed.
	Compression uint16
	// TileSize is the tile budget in bytes for compressed data. When
	// positive it also makes uncompressed data tiled.
	TileSize int

	RowInterleaveFactor int
	SubTileBlockRows    int
	SubTileBlockCols    int

	// ThumbnailSize bounds a generated thumbnail, DefaultThumbnailSize
	// when zero.
	ThumbnailSize int
}

// WriteDNG writes neg into s. The main directory holds the thumbnail and
// the camera description and links the raw directory through SubIFDs:
//
//	header | main IFD | raw IFD | Exif IFD | thumbnail | raw data
//
// Pixel data is written first; the header and directories follow once
// every strip or tile offset is known.
func WriteDNG(s *stream.Stream, neg *Negative, opts DNGOptions, wopts ...Option) (*Layout, error) {
	if s == nil || neg == nil || neg.Raw == nil {
		return nil, dngerr.Programf("dng: WriteDNG needs a stream and a raw image")
	}
	o := resolve(wopts)
	cam := &neg.Camera
	raw := neg.Raw

	rawGeo, fakeChannels, err := rawGeometry(raw, cam, opts)
	if err != nil {
		return nil, err
	}
	thumb, releaseThumb, err := thumbnailImage(o, neg, opts.ThumbnailSize)
	if err != nil {
		return nil, err
	}
	defer releaseThumb()
	thumbGeo := thumbnailGeometry(thumb)

	var mainDir, rawDir tiff.Directory
	thumbTags, err := NewBasicTagSet(&mainDir, thumbGeo)
	if err != nil {
		return nil, err
	}
	rawTags, err := NewBasicTagSet(&rawDir, rawGeo)
	if err != nil {
		return nil, err
	}
	if err := addMainTags(&mainDir, neg, rawGeo); err != nil {
		return nil, err
	}
	if err := addRawTags(&rawDir, neg, rawGeo); err != nil {
		return nil, err
	}

	subIFDs := tiff.NewOffsetTable(tiff.TagSubIFDs, 1)
	if err := mainDir.Add(subIFDs); err != nil {
		return nil, err
	}
	var exifDir *tiff.Directory
	var exifLink *tiff.OffsetTable
	if cam.Exif != nil {
		if exifDir, err = cam.Exif.directory(0, 0); err != nil {
			return nil, err
		}
		exifLink = tiff.NewOffsetTable(tiff.TagExifIFD, 1)
		if err := mainDir.Add(exifLink); err != nil {
			return nil, err
		}
	}

	rawOffset := uint64(tiff.HeaderSize) + uint64(mainDir.Size())
	exifOffset := rawOffset + uint64(rawDir.Size())
	dataOffset := exifOffset
	if exifDir != nil {
		dataOffset += uint64(exifDir.Size())
	}
	if dataOffset > o.maxFileSize {
		return nil, fmt.Errorf("%w: directories end at %d", dngerr.ErrImageTooBig, dataOffset)
	}
	if err := subIFDs.Fill([]uint32{uint32(rawOffset)}); err != nil {
		return nil, err
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
	thumbWriter := newImageWriter(o)
	if err := thumbWriter.WriteImage(s, thumb, thumbGeo, thumbTags); err != nil {
		return nil, fmt.Errorf("thumbnail: %w", err)
	}
	rawWriter := newImageWriter(o)
	if err := rawWriter.writeImage(s, raw, rawGeo, rawTags, fakeChannels); err != nil {
		return nil, fmt.Errorf("raw data: %w", err)
	}

	if err := finishLength(s, o.maxFileSize); err != nil {
		return nil, err
	}
	if err := tiff.PutHeader(s, tiff.HeaderSize); err != nil {
		return nil, err
	}
	if err := mainDir.Put(s, tiff.OffsetsRelativeToStream, 0); err != nil {
		return nil, err
	}
	if err := rawDir.Put(s, tiff.OffsetsRelativeToStream, 0); err != nil {
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

	thumbLayout := thumbWriter.Layout()
	thumbLayout.IFDOffset = tiff.HeaderSize
	rawLayout := rawWriter.Layout()
	rawLayout.IFDOffset = uint32(rawOffset)
	layout.Images = append(layout.Images, thumbLayout, rawLayout)
	layout.FileSize = s.Length()
	o.log.Debug("wrote dng",
		"size", layout.FileSize,
		"order", layout.ByteOrder,
		"raw_tiles", len(rawLayout.Tiles),
	)
	return layout, nil
}

// rawGeometry decides how the raw data is stored and how many adjacent
// pixels are merged into one for a lossless JPEG coder.
func rawGeometry(raw raster.Image, cam *Camera, opts DNGOptions) (*Geometry, int, error) {
	typ := raw.PixelType()
	if typ == raster.Float32 {
		return nil, 0, dngerr.Programf("dng: floating point raw data")
	}
	planes := raw.Planes()
	if cam.CFA != nil {
		if err := cam.CFA.validate(); err != nil {
			return nil, 0, err
		}
		if planes != 1 {
			return nil, 0, dngerr.Programf("dng: mosaic data with %d planes", planes)
		}
	}

	bits := typ.Bits()
	if n := len(cam.LinearizationTable); typ == raster.Uint16 && n > 0 && n <= 256 {
		bits = 8
	}
	compression := opts.Compression
	if compression == 0 || bits == 32 {
		compression = tiff.CompressionNone
	}

	geo := NewGeometry(raw.Width(), raw.Height(), planes, bits)
	geo.NewSubFileType = tiff.SubFileMain
	geo.Photometric = tiff.PhotometricLinearRaw
	if cam.CFA != nil {
		geo.Photometric = tiff.PhotometricCFA
	}
	geo.Compression = compression
	geo.RowInterleaveFactor = max(opts.RowInterleaveFactor, 1)
	geo.SubTileBlockRows = max(opts.SubTileBlockRows, 1)
	geo.SubTileBlockCols = max(opts.SubTileBlockCols, 1)

	fake := 1
	if compression == tiff.CompressionJPEG && cam.CFA != nil {
		switch cam.CFA.Cols {
		case 4:
			fake = 4
		case 2:
			fake = 2
		}
		// Lossless JPEG is limited to four components.
		for fake*planes > 4 && fake > 1 {
			fake >>= 1
		}
	}
	if geo.hasSubTileBlocks() && fake == 2 {
		fake = 4
	}

	if compression != tiff.CompressionNone || opts.TileSize > 0 || geo.hasSubTileBlocks() {
		budget := opts.TileSize
		if budget <= 0 {
			budget = DefaultChunkSize
		}
		geo.FindTileSize(budget, lcm(DefaultCell, lcm(geo.SubTileBlockCols, fake)), lcm(DefaultCell, geo.SubTileBlockRows))
		if compression == tiff.CompressionDeflate || compression == tiff.CompressionZstd {
			geo.Predictor = tiff.PredictorHorizontal
		}
	} else {
		geo.SetSingleStrip()
	}
	return geo, fake, geo.Validate()
}

func addMainTags(dir *tiff.Directory, neg *Negative, rawGeo *Geometry) error {
	cam := &neg.Camera

	backward := dngVersion11
	if rawGeo.RowInterleaveFactor > 1 || rawGeo.hasSubTileBlocks() {
		backward = dngVersion12
	}
	if cam.CFA != nil && cam.CFA.Layout >= 6 {
		backward = dngVersion13
	}
	model := cam.UniqueCameraModel
	if model == "" {
		model = joinNonEmpty(cam.Make, cam.Model)
	}
	if model == "" {
		model = "Unknown"
	}
	orientation := cam.Orientation
	if orientation == 0 {
		orientation = 1
	}
	id, err := cam.uniqueID()
	if err != nil {
		return err
	}

	vals := []tiff.Value{
		tiff.NewBytes(tiff.TagDNGVersion, dngVersion13...),
		tiff.NewBytes(tiff.TagDNGBackwardVersion, backward...),
		tiff.NewASCII(tiff.TagUniqueCameraModel, model),
		tiff.NewShorts(tiff.TagOrientation, orientation),
		tiff.NewSRationals(tiff.TagBaselineExposure, tiff.SRationalOf(cam.BaselineExposure, 100)),
		tiff.NewRationals(tiff.TagBaselineNoise, tiff.URationalOf(orDefault(cam.BaselineNoise, 1), 100)),
		tiff.NewRationals(tiff.TagBaselineSharpness, tiff.URationalOf(orDefault(cam.BaselineSharpness, 1), 100)),
		tiff.NewRationals(tiff.TagLinearResponseLimit, tiff.URationalOf(orDefault(cam.LinearResponseLimit, 1), 100)),
		tiff.NewBytes(tiff.TagRawDataUniqueID, id...),
	}
	for _, t := range []struct {
		code uint16
		text string
	}{
		{tiff.TagMake, cam.Make},
		{tiff.TagModel, cam.Model},
		{tiff.TagSoftware, cam.Software},
		{tiff.TagLocalizedCameraModel, cam.LocalizedCameraModel},
		{tiff.TagCameraSerialNumber, cam.SerialNumber},
		{tiff.TagOriginalRawFileName, originalName(neg)},
	} {
		if t.text != "" {
			vals = append(vals, tiff.NewString(t.code, t.text))
		}
	}
	if !cam.DateTime.IsZero() {
		vals = append(vals, tiff.NewDateTime(tiff.TagDateTime, cam.DateTime))
	}
	if s := cam.ShadowScale; s > 0 && s != 1 {
		vals = append(vals, tiff.NewRationals(tiff.TagShadowScale, tiff.URationalOf(s, 10000)))
	}
	if orig := neg.Original; orig != nil && len(orig.Data) > 0 {
		vals = append(vals,
			tiff.NewUndefined(tiff.TagOriginalRawFileData, orig.Data),
			tiff.NewBytes(tiff.TagOriginalRawFileDigest, orig.Digest[:]...))
	}
	if len(cam.XMP) > 0 {
		vals = append(vals, tiff.NewBytes(tiff.TagXMP, cam.XMP...))
	}
	if len(cam.PrivateData) > 0 {
		vals = append(vals, tiff.NewBytes(tiff.TagDNGPrivateData, cam.PrivateData...))
	}

	colorVals, err := colorTags(cam, cam.colorPlanes(neg.Raw))
	if err != nil {
		return err
	}
	vals = append(vals, colorVals...)

	for _, v := range vals {
		if err := dir.Add(v); err != nil {
			return err
		}
	}
	return nil
}

func originalName(neg *Negative) string {
	if neg.Camera.OriginalRawFileName != "" {
		return neg.Camera.OriginalRawFileName
	}
	if neg.Original != nil {
		return neg.Original.Name
	}
	return ""
}

// colorTags returns the camera colour description. Matrices map XYZ to
// camera colours, so they have one row per colour plane.
func colorTags(cam *Camera, colors int) ([]tiff.Value, error) {
	var vals []tiff.Value
	matrix := func(code uint16, m [][]float64, cols int) error {
		if len(m) == 0 {
			return nil
		}
		if len(m) != colors {
			return dngerr.Programf("dng: matrix %d has %d rows for %d colour planes", code, len(m), colors)
		}
		for _, row := range m {
			if len(row) != cols {
				return dngerr.Programf("dng: matrix %d row has %d columns, want %d", code, len(row), cols)
			}
		}
		vals = append(vals, tiff.NewMatrix(code, m))
		return nil
	}
	vector := func(code uint16, v []float64, n int) error {
		if len(v) == 0 {
			return nil
		}
		if len(v) != n {
			return dngerr.Programf("dng: tag %d has %d values, want %d", code, len(v), n)
		}
		r := make([]tiff.URational, n)
		for i, x := range v {
			r[i] = tiff.URationalOf(x, 0)
		}
		vals = append(vals, tiff.NewRationals(code, r...))
		return nil
	}

	for _, step := range []func() error{
		func() error { return matrix(tiff.TagColorMatrix1, cam.ColorMatrix1, 3) },
		func() error { return matrix(tiff.TagColorMatrix2, cam.ColorMatrix2, 3) },
		func() error { return matrix(tiff.TagCameraCalibration1, cam.CameraCalibration1, colors) },
		func() error { return matrix(tiff.TagCameraCalibration2, cam.CameraCalibration2, colors) },
		func() error { return vector(tiff.TagAnalogBalance, cam.AnalogBalance, colors) },
		func() error { return vector(tiff.TagAsShotNeutral, cam.AsShotNeutral, colors) },
	} {
		if err := step(); err != nil {
			return nil, err
		}
	}
	if len(cam.AsShotNeutral) == 0 {
		if err := vector(tiff.TagAsShotWhiteXY, cam.AsShotWhiteXY, 2); err != nil {
			return nil, err
		}
	}
	if len(cam.ColorMatrix1) > 0 && cam.CalibrationIlluminant1 != 0 {
		vals = append(vals, tiff.NewShorts(tiff.TagCalibrationIlluminant1, cam.CalibrationIlluminant1))
	}
	if len(cam.ColorMatrix2) > 0 && cam.CalibrationIlluminant2 != 0 {
		vals = append(vals, tiff.NewShorts(tiff.TagCalibrationIlluminant2, cam.CalibrationIlluminant2))
	}
	return vals, nil
}

func addRawTags(dir *tiff.Directory, neg *Negative, geo *Geometry) error {
	cam := &neg.Camera
	active := cam.activeArea(neg.Raw)

	scale := cam.DefaultScale
	if len(scale) != 2 {
		scale = []float64{1, 1}
	}
	origin := cam.DefaultCropOrigin
	if len(origin) != 2 {
		origin = []float64{0, 0}
	}
	size := cam.DefaultCropSize
	if len(size) != 2 {
		size = []float64{float64(active.Right - active.Left), float64(active.Bottom - active.Top)}
	}
	vals := []tiff.Value{
		tiff.NewRationals(tiff.TagDefaultScale, tiff.URationalOf(scale[0], 0), tiff.URationalOf(scale[1], 0)),
		tiff.NewRationals(tiff.TagBestQualityScale, tiff.URationalOf(orDefault(cam.BestQualityScale, 1), 0)),
		tiff.NewRationals(tiff.TagDefaultCropOrigin, tiff.URationalOf(origin[0], 1000), tiff.URationalOf(origin[1], 1000)),
		tiff.NewRationals(tiff.TagDefaultCropSize, tiff.URationalOf(size[0], 1000), tiff.URationalOf(size[1], 1000)),
	}

	rangeVals, err := rangeTags(cam, neg.Raw, geo)
	if err != nil {
		return err
	}
	vals = append(vals, rangeVals...)
	if cam.CFA != nil {
		mosaicVals, err := mosaicTags(cam)
		if err != nil {
			return err
		}
		vals = append(vals, mosaicVals...)
	}

	for _, v := range vals {
		if err := dir.Add(v); err != nil {
			return err
		}
	}
	return nil
}

// rangeTags describes how stored values map to linear light: active and
// masked areas, linearization, black and white levels.
func rangeTags(cam *Camera, raw raster.Image, geo *Geometry) ([]tiff.Value, error) {
	var vals []tiff.Value
	planes := raw.Planes()

	if a := cam.ActiveArea; a != nil && !a.empty() {
		if a.Top < 0 || a.Left < 0 || a.Bottom > raw.Height() || a.Right > raw.Width() {
			return nil, dngerr.Programf("dng: active area %+v outside %dx%d", *a, raw.Width(), raw.Height())
		}
		vals = append(vals, tiff.NewLongs(tiff.TagActiveArea,
			uint32(a.Top), uint32(a.Left), uint32(a.Bottom), uint32(a.Right)))
	}
	if len(cam.MaskedAreas) > 0 {
		rects := make([]uint32, 0, 4*len(cam.MaskedAreas))
		for _, a := range cam.MaskedAreas {
			rects = append(rects, uint32(a.Top), uint32(a.Left), uint32(a.Bottom), uint32(a.Right))
		}
		vals = append(vals, tiff.NewLongs(tiff.TagMaskedAreas, rects...))
	}
	if len(cam.LinearizationTable) > 0 {
		vals = append(vals, tiff.NewShorts(tiff.TagLinearizationTable, cam.LinearizationTable...))
	}

	rows, cols := 1, 1
	if len(cam.BlackLevelRepeat) == 2 {
		rows, cols = cam.BlackLevelRepeat[0], cam.BlackLevelRepeat[1]
	}
	if rows < 1 || cols < 1 || rows > 0xFFFF || cols > 0xFFFF {
		return nil, dngerr.Programf("dng: black level repeat %dx%d", rows, cols)
	}
	blacks := make([]tiff.URational, rows*cols*planes)
	switch len(cam.BlackLevel) {
	case 0:
		for i := range blacks {
			blacks[i] = tiff.URational{N: 0, D: 1}
		}
	case len(blacks):
		for i, b := range cam.BlackLevel {
			blacks[i] = tiff.URationalOf(b, 100)
		}
	default:
		return nil, dngerr.Programf("dng: %d black levels for a %dx%d pattern of %d planes",
			len(cam.BlackLevel), rows, cols, planes)
	}
	vals = append(vals,
		tiff.NewShorts(tiff.TagBlackLevelRepeatDim, uint16(rows), uint16(cols)),
		tiff.NewRationals(tiff.TagBlackLevel, blacks...))
	if len(cam.BlackLevelDeltaH) > 0 {
		vals = append(vals, tiff.NewSRationals(tiff.TagBlackLevelDeltaH, signedRationals(cam.BlackLevelDeltaH)...))
	}
	if len(cam.BlackLevelDeltaV) > 0 {
		vals = append(vals, tiff.NewSRationals(tiff.TagBlackLevelDeltaV, signedRationals(cam.BlackLevelDeltaV)...))
	}

	whites := make([]uint32, planes)
	switch len(cam.WhiteLevel) {
	case 0:
		white := uint32(1)<<geo.BitsPerSample - 1
		if geo.BitsPerSample >= 32 {
			white = 0xFFFFFFFF
		}
		if len(cam.LinearizationTable) > 0 {
			white = 0xFFFF
		}
		for i := range whites {
			whites[i] = white
		}
	case 1:
		for i := range whites {
			whites[i] = cam.WhiteLevel[0]
		}
	case planes:
		copy(whites, cam.WhiteLevel)
	default:
		return nil, dngerr.Programf("dng: %d white levels for %d planes", len(cam.WhiteLevel), planes)
	}
	needs32 := false
	for _, w := range whites {
		if w > 0xFFFF {
			needs32 = true
		}
	}
	if needs32 {
		vals = append(vals, tiff.NewLongs(tiff.TagWhiteLevel, whites...))
	} else {
		shorts := make([]uint16, planes)
		for i, w := range whites {
			shorts[i] = uint16(w)
		}
		vals = append(vals, tiff.NewShorts(tiff.TagWhiteLevel, shorts...))
	}
	return vals, nil
}

func signedRationals(v []float64) []tiff.SRational {
	out := make([]tiff.SRational, len(v))
	for i, x := range v {
		out[i] = tiff.SRationalOf(x, 100)
	}
	return out
}

// mosaicTags describes the colour filter array.
func mosaicTags(cam *Camera) ([]tiff.Value, error) {
	cfa := cam.CFA
	colors := cam.planeColor()
	for _, c := range cfa.Pattern {
		if int(c) >= len(colors) {
			return nil, dngerr.Programf("dng: cfa colour index %d with %d plane colours", c, len(colors))
		}
	}
	layout := cfa.Layout
	if layout == 0 {
		layout = 1
	}
	vals := []tiff.Value{
		tiff.NewShorts(tiff.TagCFARepeatPatternDim, uint16(cfa.Rows), uint16(cfa.Cols)),
		tiff.NewBytes(tiff.TagCFAPattern, cfa.Pattern...),
		tiff.NewBytes(tiff.TagCFAPlaneColor, colors...),
		tiff.NewShorts(tiff.TagCFALayout, layout),
	}
	if cfa.Rows == 2 && cfa.Cols == 2 && len(colors) == 3 {
		vals = append(vals, tiff.NewLongs(tiff.TagBayerGreenSplit, cfa.BayerGreenSplit))
	}
	return vals, nil
}

func joinNonEmpty(a, b string) string {
	switch {
	case a == "":
		return b
	case b == "":
		return a
	default:
		return a + " " + b
	}
}

func lcm(a, b int) int {
	if a <= 0 || b <= 0 {
		return max(a, b, 1)
	}
	x, y := a, b
	for y != 0 {
		x, y = y, x%y
	}
	return a / x * b
}
