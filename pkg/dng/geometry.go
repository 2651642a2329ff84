package dng

import (
	"fmt"
	"math"

	"github.com/samcharles93/dngpack/pkg/dngerr"
	"github.com/samcharles93/dngpack/pkg/raster"
	"github.com/samcharles93/dngpack/pkg/tiff"
)

// DefaultChunkSize is the byte budget for one strip, tile or sub-tile write.
const DefaultChunkSize = 128 * 1024

// DefaultCell is the granularity tile sizes are rounded up to.
const DefaultCell = 16

// Geometry describes how one image is laid out in a directory: its shape,
// sample encoding and the strip or tile grid covering it.
type Geometry struct {
	Width, Height   int
	SamplesPerPixel int
	BitsPerSample   int
	SampleFormat    uint16
	ExtraSamples    []uint16

	NewSubFileType uint32
	Photometric    uint16
	Compression    uint16
	Predictor      uint16

	UsesTiles  bool
	TileWidth  int
	TileLength int

	RowInterleaveFactor int
	SubTileBlockRows    int
	SubTileBlockCols    int
}

// NewGeometry returns an uncompressed single-strip layout for an image of
// the given shape.
func NewGeometry(width, height, samplesPerPixel, bitsPerSample int) *Geometry {
	g := &Geometry{
		Width:               width,
		Height:              height,
		SamplesPerPixel:     samplesPerPixel,
		BitsPerSample:       bitsPerSample,
		SampleFormat:        tiff.SampleFormatUint,
		Photometric:         tiff.PhotometricBlackIsZero,
		Compression:         tiff.CompressionNone,
		Predictor:           tiff.PredictorNone,
		RowInterleaveFactor: 1,
		SubTileBlockRows:    1,
		SubTileBlockCols:    1,
	}
	g.SetSingleStrip()
	return g
}

// SetSingleStrip stores the whole image as one strip.
func (g *Geometry) SetSingleStrip() {
	g.UsesTiles = false
	g.TileWidth = g.Width
	g.TileLength = g.Height
}

func (g *Geometry) bytesPerPixel() int {
	return g.SamplesPerPixel * ((g.BitsPerSample + 7) >> 3)
}

// FindTileSize picks a near-square tile holding about bytesPerTile bytes,
// then evens the tiles out across the image and rounds each side up to a
// multiple of the cell size.
func (g *Geometry) FindTileSize(bytesPerTile, cellH, cellV int) {
	cellH = max(cellH, 1)
	cellV = max(cellV, 1)
	samplesPerTile := max(bytesPerTile/max(g.bytesPerPixel(), 1), 1)
	side := int(math.Round(math.Sqrt(float64(samplesPerTile))))

	g.UsesTiles = true
	g.TileWidth = max(min(g.Width, side), 1)
	across := g.TilesAcross()
	g.TileWidth = ceilDiv(g.Width, across)
	g.TileWidth = ceilDiv(g.TileWidth, cellH) * cellH

	g.TileLength = pin(1, samplesPerTile/g.TileWidth, g.Height)
	down := g.TilesDown()
	g.TileLength = ceilDiv(g.Height, down)
	g.TileLength = ceilDiv(g.TileLength, cellV) * cellV
}

// FindStripSize splits the image into full-width strips of about
// bytesPerStrip bytes with a row count that is a multiple of cellV.
func (g *Geometry) FindStripSize(bytesPerStrip, cellV int) {
	cellV = max(cellV, 1)
	samplesPerStrip := max(bytesPerStrip/max(g.bytesPerPixel(), 1), 1)

	g.UsesTiles = false
	g.TileWidth = g.Width
	g.TileLength = pin(1, samplesPerStrip/max(g.Width, 1), g.Height)
	down := g.TilesDown()
	g.TileLength = ceilDiv(g.Height, down)
	g.TileLength = ceilDiv(g.TileLength, cellV) * cellV
}

func (g *Geometry) TilesAcross() int {
	if g.TileWidth <= 0 {
		return 0
	}
	return ceilDiv(g.Width, g.TileWidth)
}

func (g *Geometry) TilesDown() int {
	if g.TileLength <= 0 {
		return 0
	}
	return ceilDiv(g.Height, g.TileLength)
}

func (g *Geometry) TilesPerImage() int { return g.TilesAcross() * g.TilesDown() }

// TileArea returns the area of tile (row, col). Tiles always have the full
// tile size and may reach past the image edge; strips are clipped to it.
func (g *Geometry) TileArea(row, col int) raster.Rect {
	r := raster.Rect{
		Top:    row * g.TileLength,
		Left:   col * g.TileWidth,
		Bottom: (row + 1) * g.TileLength,
		Right:  (col + 1) * g.TileWidth,
	}
	if !g.UsesTiles {
		r.Bottom = min(r.Bottom, g.Height)
		r.Right = min(r.Right, g.Width)
	}
	return r
}

// TileByteCount is the stored size of an uncompressed tile. Compressed
// sizes are only known once written, so zero is returned for them.
func (g *Geometry) TileByteCount(area raster.Rect) uint64 {
	if g.Compression != tiff.CompressionNone {
		return 0
	}
	bitsPerRow := uint64(area.W()) * uint64(g.BitsPerSample) * uint64(g.SamplesPerPixel)
	return ((bitsPerRow + 7) >> 3) * uint64(area.H())
}

// Validate checks that the layout can be written.
func (g *Geometry) Validate() error {
	switch {
	case g.Width < 1 || g.Height < 1:
		return dngerr.Programf("dng: image size %dx%d", g.Width, g.Height)
	case g.SamplesPerPixel < 1 || g.SamplesPerPixel > 8:
		return dngerr.Programf("dng: %d samples per pixel", g.SamplesPerPixel)
	case g.BitsPerSample != 8 && g.BitsPerSample != 16 && g.BitsPerSample != 32:
		return dngerr.Programf("dng: %d bits per sample", g.BitsPerSample)
	case g.TileWidth < 1 || g.TileLength < 1:
		return dngerr.Programf("dng: tile size %dx%d", g.TileWidth, g.TileLength)
	case g.Predictor != tiff.PredictorNone && g.Predictor != tiff.PredictorHorizontal:
		return dngerr.Programf("dng: predictor %d", g.Predictor)
	case g.Predictor == tiff.PredictorHorizontal && g.SampleFormat == tiff.SampleFormatFloat:
		return dngerr.Programf("dng: horizontal predictor on floating point samples")
	case g.SampleFormat == tiff.SampleFormatFloat && g.BitsPerSample != 32:
		return dngerr.Programf("dng: %d bit floating point samples", g.BitsPerSample)
	case g.RowInterleaveFactor < 1 || g.RowInterleaveFactor > g.Height:
		return dngerr.Programf("dng: row interleave factor %d outside [1,%d]", g.RowInterleaveFactor, g.Height)
	case g.SubTileBlockRows < 1 || g.SubTileBlockCols < 1:
		return dngerr.Programf("dng: sub-tile block %dx%d", g.SubTileBlockRows, g.SubTileBlockCols)
	case g.TileLength%g.SubTileBlockRows != 0 || g.TileWidth%g.SubTileBlockCols != 0:
		return dngerr.Programf("dng: tile %dx%d is not a multiple of sub-tile block %dx%d",
			g.TileWidth, g.TileLength, g.SubTileBlockCols, g.SubTileBlockRows)
	case g.hasSubTileBlocks() && (g.Height%g.SubTileBlockRows != 0 || g.Width%g.SubTileBlockCols != 0) && !g.UsesTiles:
		return dngerr.Programf("dng: strips of %dx%d image do not split into %dx%d blocks",
			g.Width, g.Height, g.SubTileBlockCols, g.SubTileBlockRows)
	case len(g.ExtraSamples) >= g.SamplesPerPixel:
		return dngerr.Programf("dng: %d extra samples of %d", len(g.ExtraSamples), g.SamplesPerPixel)
	}
	if g.TilesPerImage() > math.MaxUint32/4 {
		return fmt.Errorf("%w: %d tiles", dngerr.ErrImageTooBig, g.TilesPerImage())
	}
	return nil
}

func (g *Geometry) hasSubTileBlocks() bool {
	return g.SubTileBlockRows > 1 || g.SubTileBlockCols > 1
}

func ceilDiv(a, b int) int {
	if b <= 0 {
		return 0
	}
	return (a + b - 1) / b
}

func pin(lo, x, hi int) int {
	return max(lo, min(x, hi))
}
