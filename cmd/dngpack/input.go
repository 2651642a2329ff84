package main

import (
	"encoding/binary"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"strings"

	"github.com/goccy/go-json"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/samcharles93/dngpack/pkg/dng"
	"github.com/samcharles93/dngpack/pkg/raster"
)

// rawInput describes headerless sample data: rows of chunky pixels, no
// padding.
type rawInput struct {
	width, height int
	planes        int
	bits          int
	bigEndian     bool
}

func (r rawInput) pixelType() (raster.PixelType, error) {
	switch r.bits {
	case 8:
		return raster.Uint8, nil
	case 16:
		return raster.Uint16, nil
	case 32:
		return raster.Uint32, nil
	default:
		return 0, fmt.Errorf("unsupported sample size %d bits", r.bits)
	}
}

// readRaw loads headerless samples in the given byte order.
func readRaw(path string, in rawInput) (*raster.MemImage, error) {
	typ, err := in.pixelType()
	if err != nil {
		return nil, err
	}
	if in.width < 1 || in.height < 1 || in.planes < 1 {
		return nil, fmt.Errorf("invalid raw size %dx%dx%d", in.width, in.height, in.planes)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	want := in.width * in.height * in.planes * typ.Size()
	if len(data) != want {
		return nil, fmt.Errorf("%s holds %d bytes, a %dx%dx%d %d-bit image needs %d",
			path, len(data), in.width, in.height, in.planes, in.bits, want)
	}

	img, err := raster.NewMemImage(nil, in.width, in.height, in.planes, typ)
	if err != nil {
		return nil, err
	}
	var order binary.ByteOrder = binary.LittleEndian
	if in.bigEndian {
		order = binary.BigEndian
	}
	px := img.Pixels()
	switch typ {
	case raster.Uint8:
		copy(px.Bytes(), data)
	case raster.Uint16:
		for i, dst := 0, px.Uint16s(); i < len(dst); i++ {
			dst[i] = order.Uint16(data[2*i:])
		}
	case raster.Uint32:
		for i, dst := 0, px.Uint32s(); i < len(dst); i++ {
			dst[i] = order.Uint32(data[4*i:])
		}
	}
	return img, nil
}

// readImage decodes any registered image format.
func readImage(path string) (*raster.MemImage, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	src, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return raster.FromImage(nil, src)
}

// readCamera decodes a metadata sidecar.
func readCamera(path string) (dng.Camera, error) {
	var cam dng.Camera
	data, err := os.ReadFile(path)
	if err != nil {
		return cam, err
	}
	if err := json.Unmarshal(data, &cam); err != nil {
		return cam, fmt.Errorf("metadata %s: %w", path, err)
	}
	return cam, nil
}

// parseCFA reads a pattern such as RGGB or GRBG, row by row. Four letters
// give a 2x2 pattern, sixteen a 4x4 one.
func parseCFA(pattern string) (*dng.CFA, error) {
	pattern = strings.ToUpper(strings.TrimSpace(pattern))
	var rows int
	switch len(pattern) {
	case 4:
		rows = 2
	case 16:
		rows = 4
	default:
		return nil, fmt.Errorf("cfa pattern %q: want 4 or 16 colours", pattern)
	}
	cfa := &dng.CFA{Rows: rows, Cols: rows, Pattern: make([]uint8, len(pattern))}
	for i, c := range pattern {
		switch c {
		case 'R':
			cfa.Pattern[i] = 0
		case 'G':
			cfa.Pattern[i] = 1
		case 'B':
			cfa.Pattern[i] = 2
		default:
			return nil, fmt.Errorf("cfa pattern %q: unknown colour %q", pattern, c)
		}
	}
	return cfa, nil
}
