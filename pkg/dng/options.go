package dng

import (
	"context"
	"math"

	"github.com/samcharles93/dngpack/internal/logger"
	"github.com/samcharles93/dngpack/pkg/codec"
	"github.com/samcharles93/dngpack/pkg/memory"
	"github.com/samcharles93/dngpack/pkg/stream"
)

type Option func(*options)

type options struct {
	chunkSize   int
	maxFileSize uint64
	level       int
	alloc       memory.Allocator
	log         logger.Logger
	encoders    map[uint16]codec.Encoder
}

func defaultOptions() options {
	return options{
		chunkSize:   DefaultChunkSize,
		maxFileSize: math.MaxUint32,
		alloc:       memory.Default(),
		log:         logger.Discard(),
		encoders:    map[uint16]codec.Encoder{},
	}
}

func resolve(opts []Option) options {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithChunkSize sets the byte budget of one uncompressed sub-tile write.
func WithChunkSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.chunkSize = n
		}
	}
}

// WithMaxFileSize lowers the size ceiling. Values above 2^32-1 are
// clamped, since offsets are 32 bits wide.
func WithMaxFileSize(n uint64) Option {
	return func(o *options) {
		if n > 0 {
			o.maxFileSize = min(n, math.MaxUint32)
		}
	}
}

// WithCompressionLevel sets the level handed to the built-in coders.
func WithCompressionLevel(level int) Option {
	return func(o *options) { o.level = level }
}

func WithAllocator(a memory.Allocator) Option {
	return func(o *options) {
		if a != nil {
			o.alloc = a
		}
	}
}

func WithLogger(l logger.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.log = l
		}
	}
}

// WithEncoder registers a coder for the compression code it reports,
// replacing any built-in one. JPEG output needs one.
func WithEncoder(enc codec.Encoder) Option {
	return func(o *options) {
		if enc != nil {
			o.encoders[enc.Compression()] = enc
		}
	}
}

func (o *options) encoder(compression uint16) (codec.Encoder, error) {
	if enc, ok := o.encoders[compression]; ok {
		return enc, nil
	}
	enc, err := codec.Builtin(compression, o.level)
	if err != nil {
		return nil, err
	}
	o.encoders[compression] = enc
	return enc, nil
}

// ProgressFunc receives the number of tiles written so far.
type ProgressFunc func(done, total uint64)

type contextSniffer struct {
	ctx      context.Context
	progress ProgressFunc
}

// ContextSniffer adapts ctx to a stream sniffer: writes abort once ctx is
// done. progress may be nil.
func ContextSniffer(ctx context.Context, progress ProgressFunc) stream.ProgressSniffer {
	return &contextSniffer{ctx: ctx, progress: progress}
}

func (c *contextSniffer) ShouldAbort() bool { return c.ctx.Err() != nil }

func (c *contextSniffer) Progress(done, total uint64) {
	if c.progress != nil {
		c.progress(done, total)
	}
}
