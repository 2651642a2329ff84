// Package codec holds the entropy coders the image writer hands compressed
// tiles to.
package codec

import (
	"encoding/binary"
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/compress/zlib"
	"github.com/klauspost/compress/zstd"

	"github.com/samcharles93/dngpack/pkg/dngerr"
	"github.com/samcharles93/dngpack/pkg/tiff"
)

// TileInfo describes the samples handed to an Encoder.
type TileInfo struct {
	Width, Height int
	Planes        int
	// BitsPerSample is the stored sample width.
	BitsPerSample int
	// Order is the byte order multi-byte samples are laid out in.
	Order binary.ByteOrder
}

// Encoder compresses one tile of contiguous chunky samples into w.
// Encoders are used by one writer at a time.
type Encoder interface {
	// Compression is the TIFF compression code the output is tagged with.
	Compression() uint16
	Encode(w io.Writer, samples []byte, tile TileInfo) error
}

// Deflate is the Adobe deflate scheme (zlib framing).
type Deflate struct {
	Level int

	zw *zlib.Writer
}

// NewDeflate returns a deflate coder. A level of zero selects the default.
func NewDeflate(level int) *Deflate {
	if level == 0 {
		level = zlib.DefaultCompression
	}
	return &Deflate{Level: level}
}

func (d *Deflate) Compression() uint16 { return tiff.CompressionDeflate }

func (d *Deflate) Encode(w io.Writer, samples []byte, _ TileInfo) error {
	if d.zw == nil {
		zw, err := zlib.NewWriterLevel(w, d.Level)
		if err != nil {
			return dngerr.Programf("codec: deflate level %d: %v", d.Level, err)
		}
		d.zw = zw
	} else {
		d.zw.Reset(w)
	}
	if _, err := d.zw.Write(samples); err != nil {
		return fmt.Errorf("deflate tile: %w", err)
	}
	if err := d.zw.Close(); err != nil {
		return fmt.Errorf("deflate tile: %w", err)
	}
	return nil
}

// Zstd stores tiles as Zstandard frames.
type Zstd struct {
	Level zstd.EncoderLevel

	enc *zstd.Encoder
}

// NewZstd returns a Zstandard coder. A level of zero selects the default.
func NewZstd(level int) *Zstd {
	l := zstd.SpeedDefault
	if level != 0 {
		l = zstd.EncoderLevelFromZstd(level)
	}
	return &Zstd{Level: l}
}

func (z *Zstd) Compression() uint16 { return tiff.CompressionZstd }

func (z *Zstd) Encode(w io.Writer, samples []byte, _ TileInfo) error {
	if z.enc == nil {
		enc, err := zstd.NewWriter(w, zstd.WithEncoderLevel(z.Level), zstd.WithEncoderConcurrency(1))
		if err != nil {
			return dngerr.Programf("codec: zstd encoder: %v", err)
		}
		z.enc = enc
	} else {
		z.enc.Reset(w)
	}
	if _, err := z.enc.Write(samples); err != nil {
		return fmt.Errorf("zstd tile: %w", err)
	}
	if err := z.enc.Close(); err != nil {
		return fmt.Errorf("zstd tile: %w", err)
	}
	return nil
}

// Builtin returns the coder implemented here for a compression code.
// JPEG has no built-in coder; callers must supply one.
func Builtin(compression uint16, level int) (Encoder, error) {
	switch compression {
	case tiff.CompressionDeflate:
		return NewDeflate(level), nil
	case tiff.CompressionZstd:
		return NewZstd(level), nil
	default:
		return nil, dngerr.Programf("codec: no built-in coder for compression %d", compression)
	}
}

// ParseCompression maps a configuration name to a compression code.
func ParseCompression(name string) (uint16, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "none", "uncompressed":
		return tiff.CompressionNone, nil
	case "deflate", "zip":
		return tiff.CompressionDeflate, nil
	case "zstd", "zstandard":
		return tiff.CompressionZstd, nil
	case "jpeg", "ljpeg":
		return tiff.CompressionJPEG, nil
	default:
		return 0, fmt.Errorf("unknown compression %q", name)
	}
}

// CompressionName is the inverse of ParseCompression.
func CompressionName(code uint16) string {
	switch code {
	case tiff.CompressionNone:
		return "none"
	case tiff.CompressionDeflate:
		return "deflate"
	case tiff.CompressionZstd:
		return "zstd"
	case tiff.CompressionJPEG:
		return "jpeg"
	default:
		return fmt.Sprintf("compression(%d)", code)
	}
}
