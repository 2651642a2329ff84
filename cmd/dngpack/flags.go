package main

import (
	"io"
	"log/slog"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/dngpack/internal/logger"
	"github.com/samcharles93/dngpack/pkg/codec"
	"github.com/samcharles93/dngpack/pkg/dng"
	"github.com/samcharles93/dngpack/pkg/stream"
)

func (a *app) loggingFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "log-level",
			Usage:       "log level (debug, info, warn, error)",
			Value:       "info",
			Destination: &a.logLevel,
		},
		&cli.StringFlag{
			Name:        "log-format",
			Usage:       "log format (pretty, json, text)",
			Value:       "pretty",
			Destination: &a.logFormat,
		},
		&cli.BoolFlag{
			Name:        "debug",
			Usage:       "enable debug logging (shorthand for --log-level=debug)",
			Destination: &a.debug,
		},
	}
}

func newLogger(w io.Writer, format, level string, debug bool) (logger.Logger, error) {
	lvl, err := logger.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	if debug {
		lvl = slog.LevelDebug
	}
	return logger.ForFormat(w, format, lvl)
}

// writeSettings are the output options shared by pack and tiff.
type writeSettings struct {
	out         string
	compression string
	level       int64
	bigEndian   bool
	tileSize    int64
	chunkSize   int64
	bufferSize  int64
	report      string
}

func (w *writeSettings) flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "out",
			Aliases:     []string{"o"},
			Usage:       "output file",
			Required:    true,
			Destination: &w.out,
		},
		&cli.StringFlag{
			Name:        "compression",
			Usage:       "compression (none, deflate, zstd)",
			Value:       "none",
			Destination: &w.compression,
		},
		&cli.Int64Flag{
			Name:        "level",
			Usage:       "compression level, 0 for the coder default",
			Destination: &w.level,
		},
		&cli.BoolFlag{
			Name:        "big-endian",
			Usage:       "write Motorola (MM) byte order",
			Destination: &w.bigEndian,
		},
		&cli.Int64Flag{
			Name:        "tile-size",
			Usage:       "store tiles of about this many bytes",
			Destination: &w.tileSize,
		},
		&cli.Int64Flag{
			Name:        "chunk-size",
			Usage:       "bytes per uncompressed write",
			Value:       dng.DefaultChunkSize,
			Destination: &w.chunkSize,
		},
		&cli.Int64Flag{
			Name:        "buffer-size",
			Usage:       "stream buffer size in bytes",
			Value:       stream.DefaultBufferSize,
			Destination: &w.bufferSize,
		},
		&cli.StringFlag{
			Name:        "report",
			Usage:       "write the file layout as JSON to this path",
			Destination: &w.report,
		},
	}
}

// apply fills settings from the config file where no flag was given.
func (w *writeSettings) apply(cmd *cli.Command, cfg Config) {
	if cfg.Compression != nil && !cmd.IsSet("compression") {
		w.compression = *cfg.Compression
	}
	if cfg.CompressionLevel != nil && !cmd.IsSet("level") {
		w.level = *cfg.CompressionLevel
	}
	if cfg.BigEndian != nil && !cmd.IsSet("big-endian") {
		w.bigEndian = *cfg.BigEndian
	}
	if cfg.TileSize != nil && !cmd.IsSet("tile-size") {
		w.tileSize = *cfg.TileSize
	}
	if cfg.ChunkSize != nil && !cmd.IsSet("chunk-size") {
		w.chunkSize = *cfg.ChunkSize
	}
	if cfg.BufferSize != nil && !cmd.IsSet("buffer-size") {
		w.bufferSize = *cfg.BufferSize
	}
}

func (w *writeSettings) compressionCode() (uint16, error) {
	return codec.ParseCompression(w.compression)
}

func (w *writeSettings) options(log logger.Logger) []dng.Option {
	return []dng.Option{
		dng.WithChunkSize(int(w.chunkSize)),
		dng.WithCompressionLevel(int(w.level)),
		dng.WithLogger(log),
	}
}
