package codec

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/klauspost/compress/zlib"
	"github.com/klauspost/compress/zstd"

	"github.com/samcharles93/dngpack/pkg/dngerr"
	"github.com/samcharles93/dngpack/pkg/tiff"
)

func samplePayload() []byte {
	b := make([]byte, 4096)
	for i := range b {
		b[i] = byte(i / 16)
	}
	return b
}

func TestDeflateRoundTrip(t *testing.T) {
	t.Parallel()

	enc := NewDeflate(0)
	payload := samplePayload()
	// Encode twice to exercise writer reuse.
	for i := 0; i < 2; i++ {
		var buf bytes.Buffer
		if err := enc.Encode(&buf, payload, TileInfo{}); err != nil {
			t.Fatalf("encode: %v", err)
		}
		zr, err := zlib.NewReader(&buf)
		if err != nil {
			t.Fatalf("reader: %v", err)
		}
		got, err := io.ReadAll(zr)
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		if !bytes.Equal(got, payload) {
			t.Fatalf("pass %d: payload differs", i)
		}
	}
}

func TestZstdRoundTrip(t *testing.T) {
	t.Parallel()

	enc := NewZstd(3)
	payload := samplePayload()
	for i := 0; i < 2; i++ {
		var buf bytes.Buffer
		if err := enc.Encode(&buf, payload, TileInfo{}); err != nil {
			t.Fatalf("encode: %v", err)
		}
		dec, err := zstd.NewReader(nil)
		if err != nil {
			t.Fatalf("decoder: %v", err)
		}
		got, err := dec.DecodeAll(buf.Bytes(), nil)
		dec.Close()
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		if !bytes.Equal(got, payload) {
			t.Fatalf("pass %d: payload differs", i)
		}
	}
}

func TestBuiltin(t *testing.T) {
	t.Parallel()

	for _, code := range []uint16{tiff.CompressionDeflate, tiff.CompressionZstd} {
		enc, err := Builtin(code, 0)
		if err != nil {
			t.Fatalf("builtin %d: %v", code, err)
		}
		if enc.Compression() != code {
			t.Fatalf("coder for %d tags %d", code, enc.Compression())
		}
	}
	if _, err := Builtin(tiff.CompressionJPEG, 0); !errors.Is(err, dngerr.ErrProgram) {
		t.Fatalf("jpeg err = %v, want ErrProgram", err)
	}
}

func TestParseCompression(t *testing.T) {
	t.Parallel()

	cases := map[string]uint16{
		"":        tiff.CompressionNone,
		"None":    tiff.CompressionNone,
		"deflate": tiff.CompressionDeflate,
		"zstd":    tiff.CompressionZstd,
		"jpeg":    tiff.CompressionJPEG,
	}
	for in, want := range cases {
		got, err := ParseCompression(in)
		if err != nil || got != want {
			t.Fatalf("ParseCompression(%q) = %d, %v", in, got, err)
		}
		if in != "" && in != "None" && CompressionName(got) != in {
			t.Fatalf("CompressionName(%d) = %q", got, CompressionName(got))
		}
	}
	if _, err := ParseCompression("lzw"); err == nil {
		t.Fatal("lzw accepted")
	}
}
