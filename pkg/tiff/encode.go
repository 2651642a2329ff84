package tiff

import (
	"github.com/samcharles93/dngpack/pkg/dngerr"
	"github.com/samcharles93/dngpack/pkg/stream"
)

var (
	asciiPrefix   = []byte("ASCII\x00\x00\x00")
	unicodePrefix = []byte("UNICODE\x00")
)

// Encode writes the payload of v at the stream position. Multi-byte
// elements are written one at a time in the stream's byte order.
func Encode(s *stream.Stream, v Value) error {
	switch v := v.(type) {
	case *Bytes:
		return s.Put(v.data)
	case *Shorts:
		for _, x := range v.vals {
			if err := s.PutU16(x); err != nil {
				return err
			}
		}
		return nil
	case *Longs:
		return putLongs(s, v.vals)
	case *Rationals:
		for _, r := range v.vals {
			if err := s.PutU32(r.N); err != nil {
				return err
			}
			if err := s.PutU32(r.D); err != nil {
				return err
			}
		}
		return nil
	case *SRationals:
		for _, r := range v.vals {
			if err := s.PutI32(r.N); err != nil {
				return err
			}
			if err := s.PutI32(r.D); err != nil {
				return err
			}
		}
		return nil
	case *Floats:
		for _, x := range v.vals {
			if err := s.PutF32(x); err != nil {
				return err
			}
		}
		return nil
	case *Doubles:
		for _, x := range v.vals {
			if err := s.PutF64(x); err != nil {
				return err
			}
		}
		return nil
	case *String:
		if err := s.Put([]byte(v.text)); err != nil {
			return err
		}
		return s.PutU8(0)
	case *EncodedText:
		if v.utf16 == nil {
			if err := s.Put(asciiPrefix); err != nil {
				return err
			}
			return s.Put([]byte(v.text))
		}
		if err := s.Put(unicodePrefix); err != nil {
			return err
		}
		for _, u := range v.utf16 {
			if err := s.PutU16(u); err != nil {
				return err
			}
		}
		return nil
	case *IPTC:
		if err := s.Put(v.data); err != nil {
			return err
		}
		return s.PutZeros(uint64(v.Size()) - uint64(len(v.data)))
	case *CFAPattern:
		if err := s.PutU16(uint16(v.cols)); err != nil {
			return err
		}
		if err := s.PutU16(uint16(v.rows)); err != nil {
			return err
		}
		for col := 0; col < v.cols; col++ {
			for row := 0; row < v.rows; row++ {
				if err := s.PutU8(v.pattern[row*v.cols+col]); err != nil {
					return err
				}
			}
		}
		return nil
	case *OffsetTable:
		if !v.filled {
			return dngerr.Programf("tiff: tag %d encoded before its offsets were patched", v.code)
		}
		return putLongs(s, v.slots)
	default:
		return dngerr.Programf("tiff: unknown value %T", v)
	}
}

func putLongs(s *stream.Stream, vals []uint32) error {
	for _, x := range vals {
		if err := s.PutU32(x); err != nil {
			return err
		}
	}
	return nil
}
