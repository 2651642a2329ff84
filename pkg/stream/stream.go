// Package stream implements the buffered, seekable, endian-aware byte stream
// used to lay out TIFF-family containers, together with its two backings: a
// paged in-memory store and a file store.
package stream

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/samcharles93/dngpack/pkg/dngerr"
	"github.com/samcharles93/dngpack/pkg/memory"
)

const DefaultBufferSize = 64 * 1024

var hostBigEndian = binary.NativeEndian.Uint16([]byte{0x12, 0x34}) == 0x1234

// Stream is a single-owner cursor over a Store. A small window mirrors the
// most recently touched region so that typed gets and puts do not hit the
// store one primitive at a time.
//
// Stream is not safe for concurrent use.
type Stream struct {
	store Store
	order binary.ByteOrder
	big   bool

	pos    uint64
	length uint64

	window   *memory.Block
	buf      []byte
	bufStart uint64
	bufEnd   uint64
	dirty    bool

	sniffer Sniffer
}

type Option func(*config)

type config struct {
	bufferSize int
	bigEndian  bool
	alloc      memory.Allocator
	sniffer    Sniffer
}

// WithBufferSize sets the size of the buffering window.
func WithBufferSize(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.bufferSize = n
		}
	}
}

// WithBigEndian selects Motorola (MM) byte order. The default is Intel (II).
func WithBigEndian(big bool) Option {
	return func(c *config) { c.bigEndian = big }
}

func WithAllocator(a memory.Allocator) Option {
	return func(c *config) {
		if a != nil {
			c.alloc = a
		}
	}
}

// WithSniffer attaches a cancellation handle polled by Sniff.
func WithSniffer(s Sniffer) Option {
	return func(c *config) { c.sniffer = s }
}

// New creates a Stream over store. The initial length is taken from the
// store, the position starts at zero.
func New(store Store, opts ...Option) (*Stream, error) {
	if store == nil {
		return nil, dngerr.Programf("stream: nil store")
	}
	cfg := config{
		bufferSize: DefaultBufferSize,
		alloc:      memory.Default(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	length, err := store.Length()
	if err != nil {
		return nil, dngerr.Wrap(dngerr.ErrReadFile, err)
	}
	window, err := cfg.alloc.Allocate(cfg.bufferSize)
	if err != nil {
		return nil, err
	}

	s := &Stream{
		store:   store,
		length:  length,
		window:  window,
		buf:     window.Bytes(),
		sniffer: cfg.sniffer,
	}
	s.SetBigEndian(cfg.bigEndian)
	return s, nil
}

// Close flushes any buffered bytes and releases the window. The store is
// left open; it belongs to the caller.
func (s *Stream) Close() error {
	if s.window == nil {
		return nil
	}
	err := s.flushWindow()
	s.window.Release()
	s.window = nil
	s.buf = nil
	return err
}

func (s *Stream) BigEndian() bool { return s.big }

func (s *Stream) SetBigEndian(big bool) {
	s.big = big
	if big {
		s.order = binary.BigEndian
	} else {
		s.order = binary.LittleEndian
	}
}

// ByteOrder returns the order multi-byte values are written in.
func (s *Stream) ByteOrder() binary.ByteOrder { return s.order }

// SwapBytes reports whether the stream order differs from the host order,
// i.e. whether in-memory multi-byte samples must be swapped on output.
func (s *Stream) SwapBytes() bool { return s.big != hostBigEndian }

func (s *Stream) Position() uint64 { return s.pos }

func (s *Stream) Length() uint64 { return s.length }

func (s *Stream) Sniffer() Sniffer { return s.sniffer }

func (s *Stream) SetSniffer(sn Sniffer) { s.sniffer = sn }

// Sniff polls the attached sniffer and reports dngerr.ErrCancelled when an
// abort was requested.
func (s *Stream) Sniff() error {
	if s.sniffer != nil && s.sniffer.ShouldAbort() {
		return dngerr.ErrCancelled
	}
	return nil
}

// SetReadPosition moves the cursor for reading; it cannot pass the end.
func (s *Stream) SetReadPosition(off uint64) error {
	if off > s.length {
		return fmt.Errorf("%w: seek to %d past length %d", dngerr.ErrEndOfFile, off, s.length)
	}
	s.pos = off
	return nil
}

// SetWritePosition moves the cursor for writing. Positions past the end
// are allowed; the gap is zero-filled when data is written there.
func (s *Stream) SetWritePosition(off uint64) {
	s.pos = off
}

// Skip advances the write position by n bytes.
func (s *Stream) Skip(n uint64) {
	s.pos += n
}

// SetLength truncates or extends the stream. The position is clamped to
// the new length.
func (s *Stream) SetLength(n uint64) error {
	if err := s.flushWindow(); err != nil {
		return err
	}
	if err := s.store.SetLength(n); err != nil {
		return dngerr.Wrap(dngerr.ErrWriteFile, err)
	}
	s.length = n
	s.bufStart, s.bufEnd = 0, 0
	if s.pos > n {
		s.pos = n
	}
	return nil
}

// Flush writes the window back and asks the store to persist.
func (s *Stream) Flush() error {
	if err := s.flushWindow(); err != nil {
		return err
	}
	if err := s.store.Flush(); err != nil {
		return dngerr.Wrap(dngerr.ErrWriteFile, err)
	}
	return nil
}

func (s *Stream) flushWindow() error {
	if !s.dirty {
		return nil
	}
	if err := s.store.WriteAt(s.buf[:s.bufEnd-s.bufStart], s.bufStart); err != nil {
		return dngerr.Wrap(dngerr.ErrWriteFile, err)
	}
	s.dirty = false
	return nil
}

// Get fills p from the current position.
func (s *Stream) Get(p []byte) error {
	n := uint64(len(p))
	if n == 0 {
		return nil
	}
	if s.pos+n > s.length || s.pos+n < s.pos {
		return fmt.Errorf("%w: read of %d bytes at %d, length %d", dngerr.ErrEndOfFile, n, s.pos, s.length)
	}

	// Fast path: the whole span is inside the window.
	if s.pos >= s.bufStart && s.pos+n <= s.bufEnd {
		copy(p, s.buf[s.pos-s.bufStart:])
		s.pos += n
		return nil
	}

	for len(p) > 0 {
		if s.pos >= s.bufStart && s.pos < s.bufEnd {
			c := copy(p, s.buf[s.pos-s.bufStart:s.bufEnd-s.bufStart])
			p = p[c:]
			s.pos += uint64(c)
			continue
		}
		if err := s.flushWindow(); err != nil {
			return err
		}
		if len(p) >= len(s.buf) {
			if err := s.store.ReadAt(p, s.pos); err != nil {
				return dngerr.Wrap(dngerr.ErrReadFile, err)
			}
			s.pos += uint64(len(p))
			return nil
		}
		if err := s.fill(s.pos); err != nil {
			return err
		}
	}
	return nil
}

func (s *Stream) fill(at uint64) error {
	end := min(at+uint64(len(s.buf)), s.length)
	if err := s.store.ReadAt(s.buf[:end-at], at); err != nil {
		s.bufStart, s.bufEnd = 0, 0
		return dngerr.Wrap(dngerr.ErrReadFile, err)
	}
	s.bufStart, s.bufEnd = at, end
	return nil
}

// Put writes p at the current position, extending the length as needed.
func (s *Stream) Put(p []byte) error {
	n := uint64(len(p))
	if n == 0 {
		return nil
	}
	if s.pos+n < s.pos {
		return fmt.Errorf("%w: write offset overflow", dngerr.ErrImageTooBig)
	}
	limit := s.bufStart + uint64(len(s.buf))

	// Fast path: append to or overwrite inside the window without leaving it.
	if s.pos >= s.bufStart && s.pos <= s.bufEnd && s.pos+n <= limit {
		copy(s.buf[s.pos-s.bufStart:], p)
		s.pos += n
		s.bufEnd = max(s.bufEnd, s.pos)
		s.dirty = true
		s.length = max(s.length, s.pos)
		return nil
	}

	if err := s.flushWindow(); err != nil {
		return err
	}
	if n >= uint64(len(s.buf)) {
		if err := s.store.WriteAt(p, s.pos); err != nil {
			return dngerr.Wrap(dngerr.ErrWriteFile, err)
		}
		// The window may hold stale bytes of the range just written.
		if s.pos < s.bufEnd && s.pos+n > s.bufStart {
			s.bufStart, s.bufEnd = 0, 0
		}
		s.pos += n
		s.length = max(s.length, s.pos)
		return nil
	}

	// Start a fresh window at the cursor. Bytes already in the store are
	// loaded first so a partial overwrite keeps the rest of the window valid.
	s.bufStart, s.bufEnd = s.pos, s.pos
	if s.pos < s.length {
		if err := s.fill(s.pos); err != nil {
			return err
		}
	}
	copy(s.buf, p)
	s.pos += n
	s.bufEnd = max(s.bufEnd, s.pos)
	s.dirty = true
	s.length = max(s.length, s.pos)
	return nil
}

// Write implements io.Writer.
func (s *Stream) Write(p []byte) (int, error) {
	if err := s.Put(p); err != nil {
		return 0, err
	}
	return len(p), nil
}

// Read implements io.Reader; it returns io.EOF at the end of the stream.
func (s *Stream) Read(p []byte) (int, error) {
	if s.pos >= s.length {
		return 0, io.EOF
	}
	n := min(uint64(len(p)), s.length-s.pos)
	if err := s.Get(p[:n]); err != nil {
		return 0, err
	}
	return int(n), nil
}

var zeros [512]byte

// PutZeros writes n zero bytes.
func (s *Stream) PutZeros(n uint64) error {
	for n > 0 {
		c := min(n, uint64(len(zeros)))
		if err := s.Put(zeros[:c]); err != nil {
			return err
		}
		n -= c
	}
	return nil
}

// PadToEven writes a single zero byte when the position is odd.
func (s *Stream) PadToEven() error {
	if s.pos&1 == 0 {
		return nil
	}
	return s.Put(zeros[:1])
}

// CopyToStream copies count bytes from the current position of s to the
// current position of dst, chunking through the window so the range is
// never materialized at once.
func (s *Stream) CopyToStream(dst *Stream, count uint64) error {
	if s.pos+count > s.length {
		return fmt.Errorf("%w: copy of %d bytes at %d, length %d", dngerr.ErrEndOfFile, count, s.pos, s.length)
	}
	if err := s.flushWindow(); err != nil {
		return err
	}
	for count > 0 {
		if s.pos < s.bufStart || s.pos >= s.bufEnd {
			if err := s.fill(s.pos); err != nil {
				return err
			}
		}
		avail := min(s.bufEnd-s.pos, count)
		chunk := s.buf[s.pos-s.bufStart : s.pos-s.bufStart+avail]
		if err := dst.Put(chunk); err != nil {
			return err
		}
		s.pos += avail
		count -= avail
	}
	return nil
}

func (s *Stream) GetU8() (uint8, error) {
	var b [1]byte
	if err := s.Get(b[:]); err != nil {
		return 0, err
	}
	return b[0], nil
}

func (s *Stream) GetU16() (uint16, error) {
	var b [2]byte
	if err := s.Get(b[:]); err != nil {
		return 0, err
	}
	return s.order.Uint16(b[:]), nil
}

func (s *Stream) GetU32() (uint32, error) {
	var b [4]byte
	if err := s.Get(b[:]); err != nil {
		return 0, err
	}
	return s.order.Uint32(b[:]), nil
}

func (s *Stream) GetU64() (uint64, error) {
	var b [8]byte
	if err := s.Get(b[:]); err != nil {
		return 0, err
	}
	return s.order.Uint64(b[:]), nil
}

func (s *Stream) GetI8() (int8, error) {
	v, err := s.GetU8()
	return int8(v), err
}

func (s *Stream) GetI16() (int16, error) {
	v, err := s.GetU16()
	return int16(v), err
}

func (s *Stream) GetI32() (int32, error) {
	v, err := s.GetU32()
	return int32(v), err
}

func (s *Stream) GetI64() (int64, error) {
	v, err := s.GetU64()
	return int64(v), err
}

func (s *Stream) GetF32() (float32, error) {
	v, err := s.GetU32()
	return math.Float32frombits(v), err
}

func (s *Stream) GetF64() (float64, error) {
	v, err := s.GetU64()
	return math.Float64frombits(v), err
}

func (s *Stream) PutU8(v uint8) error {
	b := [1]byte{v}
	return s.Put(b[:])
}

func (s *Stream) PutU16(v uint16) error {
	var b [2]byte
	s.order.PutUint16(b[:], v)
	return s.Put(b[:])
}

func (s *Stream) PutU32(v uint32) error {
	var b [4]byte
	s.order.PutUint32(b[:], v)
	return s.Put(b[:])
}

func (s *Stream) PutU64(v uint64) error {
	var b [8]byte
	s.order.PutUint64(b[:], v)
	return s.Put(b[:])
}

func (s *Stream) PutI8(v int8) error   { return s.PutU8(uint8(v)) }
func (s *Stream) PutI16(v int16) error { return s.PutU16(uint16(v)) }
func (s *Stream) PutI32(v int32) error { return s.PutU32(uint32(v)) }
func (s *Stream) PutI64(v int64) error { return s.PutU64(uint64(v)) }

func (s *Stream) PutF32(v float32) error { return s.PutU32(math.Float32bits(v)) }
func (s *Stream) PutF64(v float64) error { return s.PutU64(math.Float64bits(v)) }
