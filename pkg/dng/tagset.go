package dng

import (
	"slices"

	"github.com/samcharles93/dngpack/pkg/tiff"
)

// BasicTagSet is the group of tags every image directory carries: shape,
// sample layout, compression and the strip or tile offset tables. The
// offset tables are reserved when the directory is built and filled by
// ImageWriter.Patch after the pixel data has been written.
type BasicTagSet struct {
	Offsets    *tiff.OffsetTable
	ByteCounts *tiff.OffsetTable
}

// NewBasicTagSet adds the basic tags for g to dir.
func NewBasicTagSet(dir *tiff.Directory, g *Geometry) (*BasicTagSet, error) {
	if err := g.Validate(); err != nil {
		return nil, err
	}
	n := g.TilesPerImage()
	set := &BasicTagSet{}
	if g.UsesTiles {
		set.Offsets = tiff.NewOffsetTable(tiff.TagTileOffsets, n)
		set.ByteCounts = tiff.NewOffsetTable(tiff.TagTileByteCounts, n)
	} else {
		set.Offsets = tiff.NewOffsetTable(tiff.TagStripOffsets, n)
		set.ByteCounts = tiff.NewOffsetTable(tiff.TagStripByteCounts, n)
	}

	bits := make([]uint16, g.SamplesPerPixel)
	for i := range bits {
		bits[i] = uint16(g.BitsPerSample)
	}
	vals := []tiff.Value{
		tiff.NewLongs(tiff.TagNewSubFileType, g.NewSubFileType),
		tiff.NewLongs(tiff.TagImageWidth, uint32(g.Width)),
		tiff.NewLongs(tiff.TagImageLength, uint32(g.Height)),
		tiff.NewShorts(tiff.TagPhotometricInterpretation, g.Photometric),
		tiff.NewShorts(tiff.TagSamplesPerPixel, uint16(g.SamplesPerPixel)),
		tiff.NewShorts(tiff.TagBitsPerSample, bits...),
		tiff.NewShorts(tiff.TagPlanarConfiguration, 1),
		tiff.NewShorts(tiff.TagCompression, g.Compression),
		set.Offsets,
		set.ByteCounts,
	}
	if g.UsesTiles {
		vals = append(vals,
			tiff.NewLongs(tiff.TagTileWidth, uint32(g.TileWidth)),
			tiff.NewLongs(tiff.TagTileLength, uint32(g.TileLength)))
	} else {
		vals = append(vals, tiff.NewLongs(tiff.TagRowsPerStrip, uint32(g.TileLength)))
	}
	if g.Predictor != tiff.PredictorNone {
		vals = append(vals, tiff.NewShorts(tiff.TagPredictor, g.Predictor))
	}
	if len(g.ExtraSamples) > 0 {
		vals = append(vals, tiff.NewShorts(tiff.TagExtraSamples, slices.Clone(g.ExtraSamples)...))
	}
	if g.SampleFormat != 0 && g.SampleFormat != tiff.SampleFormatUint {
		formats := make([]uint16, g.SamplesPerPixel)
		for i := range formats {
			formats[i] = g.SampleFormat
		}
		vals = append(vals, tiff.NewShorts(tiff.TagSampleFormat, formats...))
	}
	if g.RowInterleaveFactor > 1 {
		vals = append(vals, tiff.NewShorts(tiff.TagRowInterleaveFactor, uint16(g.RowInterleaveFactor)))
	}
	if g.hasSubTileBlocks() {
		vals = append(vals, tiff.NewShorts(tiff.TagSubTileBlockSize,
			uint16(g.SubTileBlockRows), uint16(g.SubTileBlockCols)))
	}

	for _, v := range vals {
		if err := dir.Add(v); err != nil {
			return nil, err
		}
	}
	return set, nil
}

// Patch fills the offset tables.
func (b *BasicTagSet) Patch(offsets, byteCounts []uint32) error {
	if err := b.Offsets.Fill(offsets); err != nil {
		return err
	}
	return b.ByteCounts.Fill(byteCounts)
}
