package dng

import (
	"bytes"
	"crypto/md5"
	"encoding/binary"
	"errors"
	"io"
	"testing"

	"github.com/klauspost/compress/zlib"

	"github.com/samcharles93/dngpack/pkg/dngerr"
)

func TestPackOriginalRawFileLayout(t *testing.T) {
	t.Parallel()

	data := make([]byte, 150_000)
	for i := range data {
		data[i] = byte(i * 31 >> 4)
	}
	orig, err := PackOriginalRawFile("a.raw", bytes.NewReader(data), uint32(len(data)), nil)
	if err != nil {
		t.Fatalf("pack: %v", err)
	}
	if orig.Digest != md5.Sum(orig.Data) {
		t.Fatal("digest does not cover the packed data")
	}

	be := binary.BigEndian
	packed := orig.Data
	if be.Uint32(packed) != uint32(len(data)) {
		t.Fatalf("fork length %d", be.Uint32(packed))
	}
	const blocks = 3
	offsets := make([]uint32, blocks+1)
	for i := range offsets {
		offsets[i] = be.Uint32(packed[4+4*i:])
	}
	if offsets[0] != (2+blocks)*4 {
		t.Fatalf("first block at %d", offsets[0])
	}

	var out []byte
	for i := range blocks {
		zr, err := zlib.NewReader(bytes.NewReader(packed[offsets[i]:offsets[i+1]]))
		if err != nil {
			t.Fatalf("block %d: %v", i, err)
		}
		chunk, err := io.ReadAll(zr)
		if err != nil {
			t.Fatalf("block %d: %v", i, err)
		}
		want := originalChunk
		if i == blocks-1 {
			want = len(data) - 2*originalChunk
		}
		if len(chunk) != want {
			t.Fatalf("block %d holds %d bytes", i, len(chunk))
		}
		out = append(out, chunk...)
	}
	if !bytes.Equal(out, data) {
		t.Fatal("unpacked data differs")
	}
	tail := packed[offsets[blocks]:]
	if len(tail) != 7*4 || !bytes.Equal(tail, make([]byte, 7*4)) {
		t.Fatalf("trailer % x", tail)
	}
}

func TestPackOriginalRawFileEmpty(t *testing.T) {
	t.Parallel()

	orig, err := PackOriginalRawFile("empty", bytes.NewReader(nil), 0, nil)
	if err != nil {
		t.Fatalf("pack: %v", err)
	}
	if len(orig.Data) != 8+7*4 || binary.BigEndian.Uint32(orig.Data[4:]) != 8 {
		t.Fatalf("packed % x", orig.Data)
	}
}

func TestPackOriginalRawFileShortRead(t *testing.T) {
	t.Parallel()

	_, err := PackOriginalRawFile("short", bytes.NewReader(make([]byte, 10)), 100, nil)
	if !errors.Is(err, dngerr.ErrEndOfFile) {
		t.Fatalf("pack = %v, want end of file", err)
	}
}
