package dng

import (
	"bytes"
	"crypto/md5"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/zlib"

	"github.com/samcharles93/dngpack/pkg/dngerr"
	"github.com/samcharles93/dngpack/pkg/memory"
	"github.com/samcharles93/dngpack/pkg/stream"
)

// originalChunk is the uncompressed size of one block of an embedded
// original file.
const originalChunk = 64 * 1024

// OriginalRawFile is a source file packed for embedding in a DNG.
type OriginalRawFile struct {
	Name   string
	Data   []byte
	Digest [md5.Size]byte
}

// PackOriginalRawFile packs size bytes read from r into the embedded
// original file layout: a big-endian header with the data fork length and
// the offsets of its zlib compressed 64 KiB blocks, the blocks, and an
// empty resource fork and Finder info trailer.
func PackOriginalRawFile(name string, r io.Reader, size uint32, alloc memory.Allocator) (*OriginalRawFile, error) {
	store := stream.NewMemoryStore(alloc, originalChunk)
	defer store.Release()
	s, err := stream.New(store, stream.WithBigEndian(true), stream.WithAllocator(alloc))
	if err != nil {
		return nil, err
	}
	defer s.Close()

	blocks := (uint64(size) + originalChunk - 1) / originalChunk
	offsets := make([]uint32, 0, blocks+1)
	offset := (2 + blocks) * 4
	offsets = append(offsets, uint32(offset))

	// Blocks go after the header, which is written once their sizes are known.
	s.SetWritePosition(offset)
	var packed bytes.Buffer
	zw := zlib.NewWriter(&packed)
	chunk := make([]byte, originalChunk)
	remaining := uint64(size)
	for range blocks {
		n := min(remaining, originalChunk)
		if _, err := io.ReadFull(r, chunk[:n]); err != nil {
			if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
				return nil, fmt.Errorf("%w: original file shorter than %d bytes", dngerr.ErrEndOfFile, size)
			}
			return nil, dngerr.Wrap(dngerr.ErrReadFile, err)
		}
		remaining -= n

		packed.Reset()
		zw.Reset(&packed)
		if _, err := zw.Write(chunk[:n]); err != nil {
			return nil, err
		}
		if err := zw.Close(); err != nil {
			return nil, err
		}
		if err := s.Put(packed.Bytes()); err != nil {
			return nil, err
		}
		offset += uint64(packed.Len())
		if offset > 0xFFFFFFFF {
			return nil, fmt.Errorf("%w: packed original file exceeds 4 GiB", dngerr.ErrImageTooBig)
		}
		offsets = append(offsets, uint32(offset))
	}
	// Resource fork length and offsets, then Finder type, creator and
	// two reserved words.
	if err := s.PutZeros(7 * 4); err != nil {
		return nil, err
	}
	end := s.Position()

	s.SetWritePosition(0)
	if err := s.PutU32(size); err != nil {
		return nil, err
	}
	for _, off := range offsets {
		if err := s.PutU32(off); err != nil {
			return nil, err
		}
	}
	if err := s.Flush(); err != nil {
		return nil, err
	}

	data := make([]byte, end)
	if err := s.SetReadPosition(0); err != nil {
		return nil, err
	}
	if err := s.Get(data); err != nil {
		return nil, err
	}
	return &OriginalRawFile{Name: name, Data: data, Digest: md5.Sum(data)}, nil
}
