package dng

import (
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/samcharles93/dngpack/pkg/codec"
	"github.com/samcharles93/dngpack/pkg/dngerr"
	"github.com/samcharles93/dngpack/pkg/memory"
	"github.com/samcharles93/dngpack/pkg/raster"
	"github.com/samcharles93/dngpack/pkg/stream"
	"github.com/samcharles93/dngpack/pkg/tiff"
)

// State is the lifecycle position of an ImageWriter.
type State int

const (
	StateIdle State = iota
	StateTilingPlanned
	StateWritingTiles
	StatePatched
	StateDone
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateTilingPlanned:
		return "tiling planned"
	case StateWritingTiles:
		return "writing tiles"
	case StatePatched:
		return "patched"
	case StateDone:
		return "done"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// TileExtent is where one strip or tile landed in the file.
type TileExtent struct {
	Offset    uint32 `json:"offset"`
	ByteCount uint32 `json:"byte_count"`
}

// ImageLayout reports how one image was stored.
type ImageLayout struct {
	IFDOffset   uint32       `json:"ifd_offset"`
	Width       int          `json:"width"`
	Height      int          `json:"height"`
	Samples     int          `json:"samples_per_pixel"`
	Bits        int          `json:"bits_per_sample"`
	Tiled       bool         `json:"tiled"`
	TileWidth   int          `json:"tile_width"`
	TileLength  int          `json:"tile_length"`
	SubTileRows int          `json:"sub_tile_rows"`
	Compression string       `json:"compression"`
	Tiles       []TileExtent `json:"tiles"`
}

// ImageWriter serializes the pixels of one image as strips or tiles and
// patches the resulting offsets into the image's BasicTagSet.
//
// The calls must follow Plan, WriteTiles, Patch, Finish. A writer can be
// reused for another image after Reset. It is not safe for concurrent use.
type ImageWriter struct {
	opts  options
	state State
	// complete is set once every tile has been written.
	complete bool

	img          raster.Image
	geo          *Geometry
	tags         *BasicTagSet
	enc          codec.Encoder
	fakeChannels int

	subTileLength int
	buf           *raster.Buffer
	scratch       *memory.Block

	offsets    []uint32
	byteCounts []uint32

	progressLog rate.Sometimes
}

func NewImageWriter(opts ...Option) *ImageWriter {
	return newImageWriter(resolve(opts))
}

func newImageWriter(o options) *ImageWriter {
	return &ImageWriter{
		opts:        o,
		progressLog: rate.Sometimes{First: 1, Interval: time.Second},
	}
}

func (w *ImageWriter) State() State { return w.state }

// SubTileLength is the number of rows handled per write, known after Plan.
func (w *ImageWriter) SubTileLength() int { return w.subTileLength }

// Plan prepares writing img with layout geo. tags must have been built
// from the same geometry.
func (w *ImageWriter) Plan(img raster.Image, geo *Geometry, tags *BasicTagSet) error {
	return w.plan(img, geo, tags, 1)
}

// plan with fakeChannels > 1 presents groups of fakeChannels adjacent
// pixels to the coder as one pixel with more samples.
func (w *ImageWriter) plan(img raster.Image, geo *Geometry, tags *BasicTagSet, fakeChannels int) error {
	if w.state != StateIdle {
		return dngerr.Programf("dng: plan in state %s", w.state)
	}
	if img == nil || geo == nil || tags == nil {
		return dngerr.Programf("dng: plan needs an image, a geometry and a tag set")
	}
	if err := geo.Validate(); err != nil {
		return err
	}
	if err := checkImage(img, geo); err != nil {
		return err
	}
	n := geo.TilesPerImage()
	if int(tags.Offsets.Count()) != n || int(tags.ByteCounts.Count()) != n {
		return dngerr.Programf("dng: tag set has %d slots for %d tiles", tags.Offsets.Count(), n)
	}
	if fakeChannels < 1 || geo.TileWidth%fakeChannels != 0 {
		return dngerr.Programf("dng: %d fake channels for tile width %d", fakeChannels, geo.TileWidth)
	}

	if geo.Compression != tiff.CompressionNone {
		enc, err := w.opts.encoder(geo.Compression)
		if err != nil {
			return err
		}
		w.enc = enc
	}

	if geo.RowInterleaveFactor > 1 {
		view, err := raster.NewRowInterleaved(img, geo.RowInterleaveFactor)
		if err != nil {
			return err
		}
		img = view
	}

	pixelBytes := img.Planes() * img.PixelType().Size()
	tileRowBytes := geo.TileWidth * pixelBytes
	w.subTileLength = geo.TileLength
	if geo.TileByteCount(geo.TileArea(0, 0)) != 0 {
		rows := pin(geo.SubTileBlockRows, w.opts.chunkSize/tileRowBytes, geo.TileLength)
		w.subTileLength = rows - rows%geo.SubTileBlockRows
	}

	buf, err := raster.NewBuffer(w.opts.alloc, raster.RectWH(geo.TileWidth, w.subTileLength), img.Planes(), img.PixelType())
	if err != nil {
		return err
	}

	w.img = img
	w.geo = geo
	w.tags = tags
	w.fakeChannels = fakeChannels
	w.buf = buf
	w.offsets = make([]uint32, n)
	w.byteCounts = make([]uint32, n)
	w.state = StateTilingPlanned

	w.opts.log.Debug("planned image",
		"width", geo.Width,
		"height", geo.Height,
		"tiles", n,
		"tile_width", geo.TileWidth,
		"tile_length", geo.TileLength,
		"sub_tile_rows", w.subTileLength,
		"compression", codec.CompressionName(geo.Compression),
	)
	return nil
}

func checkImage(img raster.Image, geo *Geometry) error {
	if img.Width() != geo.Width || img.Height() != geo.Height || img.Planes() != geo.SamplesPerPixel {
		return dngerr.Programf("dng: image %dx%dx%d does not match layout %dx%dx%d",
			img.Width(), img.Height(), img.Planes(), geo.Width, geo.Height, geo.SamplesPerPixel)
	}
	typ := img.PixelType()
	if (typ == raster.Float32) != (geo.SampleFormat == tiff.SampleFormatFloat) {
		return dngerr.Programf("dng: %s samples with sample format %d", typ, geo.SampleFormat)
	}
	if typ.Bits() == geo.BitsPerSample {
		return nil
	}
	if typ == raster.Uint16 && geo.BitsPerSample == 8 {
		return nil
	}
	return dngerr.Programf("dng: cannot store %s samples with %d bits", typ, geo.BitsPerSample)
}

// WriteTiles writes every tile in row-major order at the stream position,
// each padded to an even length. The sniffer attached to s is polled before
// every sub-tile; on abort the offsets stay unpatched.
func (w *ImageWriter) WriteTiles(s *stream.Stream) error {
	if w.state != StateTilingPlanned {
		return dngerr.Programf("dng: write tiles in state %s", w.state)
	}
	w.state = StateWritingTiles

	geo := w.geo
	across, down := geo.TilesAcross(), geo.TilesDown()
	total := uint64(across * down)
	progress, _ := s.Sniffer().(stream.ProgressSniffer)

	idx := 0
	for row := range down {
		for col := range across {
			area := geo.TileArea(row, col)
			offset := s.Position()
			if offset > w.opts.maxFileSize {
				return fmt.Errorf("%w: tile %d starts at %d", dngerr.ErrImageTooBig, idx, offset)
			}
			for top := area.Top; top < area.Bottom; top += w.subTileLength {
				if err := s.Sniff(); err != nil {
					return err
				}
				sub := raster.Rect{
					Top:    top,
					Left:   area.Left,
					Bottom: min(top+w.subTileLength, area.Bottom),
					Right:  area.Right,
				}
				if err := w.writeTile(s, sub); err != nil {
					return fmt.Errorf("tile %d: %w", idx, err)
				}
			}
			count := s.Position() - offset
			// Pad once per tile, after all its sub-tiles, so every tile offset is even.
			if count&1 != 0 {
				if err := s.PutU8(0); err != nil {
					return err
				}
			}
			if end := s.Position(); end > w.opts.maxFileSize {
				return fmt.Errorf("%w: tile %d ends at %d, limit %d", dngerr.ErrImageTooBig, idx, end, w.opts.maxFileSize)
			}
			w.offsets[idx] = uint32(offset)
			w.byteCounts[idx] = uint32(count)
			idx++

			if progress != nil {
				progress.Progress(uint64(idx), total)
			}
			w.progressLog.Do(func() {
				w.opts.log.Debug("writing tiles", "done", idx, "total", total)
			})
		}
	}
	w.complete = true
	return nil
}

func (w *ImageWriter) writeTile(s *stream.Stream, area raster.Rect) error {
	buf := w.buf
	if err := buf.Reshape(area); err != nil {
		return err
	}
	valid := area.Intersect(raster.Bounds(w.img))
	if valid != area {
		buf.Clear()
	}
	if !valid.Empty() {
		view, err := buf.Sub(valid)
		if err != nil {
			return err
		}
		if err := w.img.Get(view, valid); err != nil {
			return err
		}
	}

	if w.geo.hasSubTileBlocks() {
		scratch, err := w.scratchBytes(len(buf.Bytes()))
		if err != nil {
			return err
		}
		reorderBlocks(scratch, buf.Bytes(), area.W(), area.H(),
			w.geo.SubTileBlockRows, w.geo.SubTileBlockCols, buf.Planes*buf.Type.Size())
		copy(buf.Bytes(), scratch)
	}
	if w.geo.Predictor == tiff.PredictorHorizontal {
		predictHorizontal(buf)
	}
	return w.writeData(s, buf)
}

// writeData stores the samples of buf at the stored sample width in stream
// byte order, either raw or through the coder.
func (w *ImageWriter) writeData(s *stream.Stream, buf *raster.Buffer) error {
	data := buf.Bytes()
	switch {
	case buf.Type == raster.Uint16 && w.geo.BitsPerSample == 8:
		out, err := w.scratchBytes(len(data) / 2)
		if err != nil {
			return err
		}
		for i, v := range buf.Uint16s() {
			out[i] = uint8(v)
		}
		data = out
	case buf.Type.Size() > 1 && s.SwapBytes():
		out, err := w.scratchBytes(len(data))
		if err != nil {
			return err
		}
		swapSamples(out, data, buf.Type.Size())
		data = out
	}

	if w.enc == nil {
		return s.Put(data)
	}
	info := codec.TileInfo{
		Width:         buf.Area.W(),
		Height:        buf.Area.H(),
		Planes:        buf.Planes,
		BitsPerSample: w.geo.BitsPerSample,
		Order:         s.ByteOrder(),
	}
	if w.fakeChannels > 1 {
		info.Planes *= w.fakeChannels
		info.Width /= w.fakeChannels
	}
	if err := w.enc.Encode(s, data, info); err != nil {
		return dngerr.Wrap(dngerr.ErrWriteFile, err)
	}
	return nil
}

func (w *ImageWriter) scratchBytes(n int) ([]byte, error) {
	if w.scratch.Len() < n {
		w.scratch.Release()
		block, err := w.opts.alloc.Allocate(max(n, len(w.buf.Bytes())))
		if err != nil {
			return nil, err
		}
		w.scratch = block
	}
	return w.scratch.Bytes()[:n], nil
}

// Patch copies the recorded offsets and byte counts into the tag set.
func (w *ImageWriter) Patch() error {
	if w.state != StateWritingTiles || !w.complete {
		return dngerr.Programf("dng: patch in state %s before all tiles were written", w.state)
	}
	if err := w.tags.Patch(w.offsets, w.byteCounts); err != nil {
		return err
	}
	w.state = StatePatched
	w.opts.log.Debug("patched offsets", "tiles", len(w.offsets))
	return nil
}

// Finish releases the working buffers of a patched writer.
func (w *ImageWriter) Finish() error {
	if w.state != StatePatched {
		return dngerr.Programf("dng: finish in state %s", w.state)
	}
	w.release()
	w.state = StateDone
	return nil
}

// Reset releases any buffers and returns the writer to StateIdle.
func (w *ImageWriter) Reset() {
	w.release()
	w.img, w.geo, w.tags, w.enc = nil, nil, nil, nil
	w.offsets, w.byteCounts = nil, nil
	w.complete = false
	w.state = StateIdle
}

func (w *ImageWriter) release() {
	if w.buf != nil {
		w.buf.Release()
		w.buf = nil
	}
	w.scratch.Release()
	w.scratch = nil
}

// Tiles returns the recorded extents.
func (w *ImageWriter) Tiles() []TileExtent {
	out := make([]TileExtent, len(w.offsets))
	for i := range out {
		out[i] = TileExtent{Offset: w.offsets[i], ByteCount: w.byteCounts[i]}
	}
	return out
}

// Layout describes the image written by the writer.
func (w *ImageWriter) Layout() ImageLayout {
	if w.geo == nil {
		return ImageLayout{}
	}
	return ImageLayout{
		Width:       w.geo.Width,
		Height:      w.geo.Height,
		Samples:     w.geo.SamplesPerPixel,
		Bits:        w.geo.BitsPerSample,
		Tiled:       w.geo.UsesTiles,
		TileWidth:   w.geo.TileWidth,
		TileLength:  w.geo.TileLength,
		SubTileRows: w.subTileLength,
		Compression: codec.CompressionName(w.geo.Compression),
		Tiles:       w.Tiles(),
	}
}

// WriteImage runs the whole writer lifecycle for one image.
func (w *ImageWriter) WriteImage(s *stream.Stream, img raster.Image, geo *Geometry, tags *BasicTagSet) error {
	return w.writeImage(s, img, geo, tags, 1)
}

func (w *ImageWriter) writeImage(s *stream.Stream, img raster.Image, geo *Geometry, tags *BasicTagSet, fakeChannels int) error {
	if w.state == StateDone {
		w.Reset()
	}
	defer w.release()
	if err := w.plan(img, geo, tags, fakeChannels); err != nil {
		return err
	}
	if err := w.WriteTiles(s); err != nil {
		return err
	}
	if err := w.Patch(); err != nil {
		return err
	}
	return w.Finish()
}

// reorderBlocks copies a w x h tile from src into dst so that every
// blockRows x blockCols block becomes contiguous, blocks in row-major order.
func reorderBlocks(dst, src []byte, w, h, blockRows, blockCols, pixelBytes int) {
	rowBytes := w * pixelBytes
	blockColBytes := blockCols * pixelBytes
	d := 0
	for rb := 0; rb < h/blockRows; rb++ {
		for cb := 0; cb < w/blockCols; cb++ {
			for r := 0; r < blockRows; r++ {
				s := (rb*blockRows+r)*rowBytes + cb*blockColBytes
				d += copy(dst[d:d+blockColBytes], src[s:s+blockColBytes])
			}
		}
	}
}

// predictHorizontal replaces every sample but the first of each row with
// its difference from the same plane of the pixel to its left.
func predictHorizontal(b *raster.Buffer) {
	planes := b.Planes
	rowLen := b.Area.W() * planes
	for r := 0; r < b.Area.H(); r++ {
		start := r * b.RowStep
		switch b.Type {
		case raster.Uint8:
			differenceRow(b.Bytes()[start:start+rowLen], planes)
		case raster.Uint16:
			differenceRow(b.Uint16s()[start:start+rowLen], planes)
		case raster.Uint32:
			differenceRow(b.Uint32s()[start:start+rowLen], planes)
		}
	}
}

func differenceRow[T uint8 | uint16 | uint32](row []T, planes int) {
	for i := len(row) - 1; i >= planes; i-- {
		row[i] -= row[i-planes]
	}
}

func swapSamples(dst, src []byte, size int) {
	switch size {
	case 2:
		for i := 0; i+1 < len(src); i += 2 {
			dst[i], dst[i+1] = src[i+1], src[i]
		}
	case 4:
		for i := 0; i+3 < len(src); i += 4 {
			dst[i], dst[i+1], dst[i+2], dst[i+3] = src[i+3], src[i+2], src[i+1], src[i]
		}
	default:
		copy(dst, src)
	}
}
