package tiff

import (
	"fmt"
	"math"
	"slices"

	"github.com/samcharles93/dngpack/pkg/dngerr"
	"github.com/samcharles93/dngpack/pkg/stream"
)

// MaxEntries bounds the number of tags in one directory.
const MaxEntries = 100

// HeaderSize is the size of the file header written by PutHeader.
const HeaderSize = 8

const entrySize = 12

// OffsetsBase selects what out-of-line value offsets are relative to.
type OffsetsBase int

const (
	// OffsetsRelativeToStream counts from the start of the stream the
	// directory is written into.
	OffsetsRelativeToStream OffsetsBase = iota
	// OffsetsRelativeToExplicitBase adds a caller supplied base, for
	// directories spooled separately and copied into a file later.
	OffsetsRelativeToExplicitBase
	// OffsetsRelativeToZero counts from the start of the directory.
	OffsetsRelativeToZero
)

// Directory is one IFD: values kept in ascending code order plus the offset
// of the next directory in the chain. It references values and does not
// copy them, so an OffsetTable filled after Add is serialized with its
// final contents.
type Directory struct {
	entries []Value
	chained uint32
}

// Add inserts v in code order. Duplicate codes and more than MaxEntries
// values are rejected.
func (d *Directory) Add(v Value) error {
	if v == nil {
		return dngerr.Programf("tiff: nil value")
	}
	if len(d.entries) >= MaxEntries {
		return dngerr.Programf("tiff: directory full at %d entries", MaxEntries)
	}
	idx := len(d.entries)
	for i, e := range d.entries {
		if e.Code() == v.Code() {
			return dngerr.Programf("tiff: duplicate tag %d", v.Code())
		}
		if v.Code() < e.Code() {
			idx = i
			break
		}
	}
	d.entries = slices.Insert(d.entries, idx, v)
	return nil
}

// SetChained sets the next-directory offset written after the entries.
func (d *Directory) SetChained(offset uint32) { d.chained = offset }

func (d *Directory) Chained() uint32 { return d.chained }

func (d *Directory) Len() int { return len(d.entries) }

// Entries returns the values in serialization order.
func (d *Directory) Entries() []Value { return slices.Clone(d.entries) }

// Find returns the value with the given code.
func (d *Directory) Find(code uint16) (Value, bool) {
	for _, e := range d.entries {
		if e.Code() == code {
			return e, true
		}
	}
	return nil, false
}

// Size returns the exact number of bytes Put writes: the entry table plus
// every out-of-line value rounded up to an even length. An empty
// directory has size zero.
func (d *Directory) Size() uint32 {
	if len(d.entries) == 0 {
		return 0
	}
	size := uint32(len(d.entries))*entrySize + 6
	for _, e := range d.entries {
		if n := e.Size(); n > 4 {
			size += (n + 1) &^ 1
		}
	}
	return size
}

// Put writes the directory at the stream position in two passes: first
// the entry table with inline values and forward offsets, then the
// out-of-line values each padded to even length.
func (d *Directory) Put(s *stream.Stream, base OffsetsBase, explicitBase uint32) error {
	if len(d.entries) == 0 {
		return nil
	}

	bigData := uint64(len(d.entries))*entrySize + 6
	switch base {
	case OffsetsRelativeToStream:
		bigData += s.Position()
	case OffsetsRelativeToExplicitBase:
		bigData += uint64(explicitBase)
	case OffsetsRelativeToZero:
	default:
		return dngerr.Programf("tiff: unknown offsets base %d", base)
	}
	if bigData+uint64(d.Size()) > math.MaxUint32 {
		return fmt.Errorf("%w: directory data would end at %d", dngerr.ErrImageTooBig, bigData+uint64(d.Size()))
	}

	if err := s.PutU16(uint16(len(d.entries))); err != nil {
		return err
	}
	for _, e := range d.entries {
		if err := s.PutU16(e.Code()); err != nil {
			return err
		}
		if err := s.PutU16(uint16(e.Type())); err != nil {
			return err
		}
		if err := s.PutU32(e.Count()); err != nil {
			return err
		}
		size := e.Size()
		if size <= 4 {
			if err := Encode(s, e); err != nil {
				return fmt.Errorf("tag %d: %w", e.Code(), err)
			}
			if err := s.PutZeros(uint64(4 - size)); err != nil {
				return err
			}
			continue
		}
		if err := s.PutU32(uint32(bigData)); err != nil {
			return err
		}
		bigData += uint64((size + 1) &^ 1)
	}
	if err := s.PutU32(d.chained); err != nil {
		return err
	}

	for _, e := range d.entries {
		if e.Size() <= 4 {
			continue
		}
		if err := Encode(s, e); err != nil {
			return fmt.Errorf("tag %d: %w", e.Code(), err)
		}
		if e.Size()&1 != 0 {
			if err := s.PutU8(0); err != nil {
				return err
			}
		}
	}
	return nil
}

// PutHeader writes the 8 byte file header at offset 0: the byte order
// mark, the magic number 42 and the offset of the first directory. The
// stream is left positioned after the header.
func PutHeader(s *stream.Stream, firstIFD uint32) error {
	s.SetWritePosition(0)
	mark := []byte("II")
	if s.BigEndian() {
		mark = []byte("MM")
	}
	if err := s.Put(mark); err != nil {
		return err
	}
	if err := s.PutU16(42); err != nil {
		return err
	}
	return s.PutU32(firstIFD)
}
