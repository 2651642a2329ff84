package main

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/dngpack/internal/version"
	"github.com/samcharles93/dngpack/pkg/dng"
	"github.com/samcharles93/dngpack/pkg/raster"
	"github.com/samcharles93/dngpack/pkg/stream"
)

type packSettings struct {
	writeSettings

	in             string
	width, height  int64
	planes         int64
	bits           int64
	inBigEndian    bool
	cfa            string
	meta           string
	backupOriginal bool
	thumbnailSize  int64
	interleave     int64
	blockRows      int64
	blockCols      int64
}

func (a *app) packCmd() *cli.Command {
	var ps packSettings
	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "in",
			Aliases:     []string{"i"},
			Usage:       "raw samples, or an image file when --width is not given",
			Required:    true,
			Destination: &ps.in,
		},
		&cli.Int64Flag{Name: "width", Usage: "raw image width", Destination: &ps.width},
		&cli.Int64Flag{Name: "height", Usage: "raw image height", Destination: &ps.height},
		&cli.Int64Flag{Name: "planes", Usage: "raw samples per pixel", Value: 1, Destination: &ps.planes},
		&cli.Int64Flag{Name: "bits", Usage: "raw bits per sample (8, 16, 32)", Value: 16, Destination: &ps.bits},
		&cli.BoolFlag{Name: "in-big-endian", Usage: "raw samples are big-endian", Destination: &ps.inBigEndian},
		&cli.StringFlag{Name: "cfa", Usage: "colour filter pattern, e.g. RGGB", Destination: &ps.cfa},
		&cli.StringFlag{Name: "meta", Usage: "camera metadata JSON sidecar", Destination: &ps.meta},
		&cli.BoolFlag{Name: "backup-original", Usage: "embed the input file", Destination: &ps.backupOriginal},
		&cli.Int64Flag{Name: "thumbnail-size", Usage: "longest thumbnail side", Value: dng.DefaultThumbnailSize, Destination: &ps.thumbnailSize},
		&cli.Int64Flag{Name: "interleave", Usage: "row interleave factor", Value: 1, Destination: &ps.interleave},
		&cli.Int64Flag{Name: "block-rows", Usage: "sub-tile block rows", Value: 1, Destination: &ps.blockRows},
		&cli.Int64Flag{Name: "block-cols", Usage: "sub-tile block columns", Value: 1, Destination: &ps.blockCols},
	}
	return &cli.Command{
		Name:  "pack",
		Usage: "Write a raw negative as DNG",
		Flags: append(flags, ps.writeSettings.flags()...),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			ps.apply(cmd, a.cfg)
			if a.cfg.ThumbnailSize != nil && !cmd.IsSet("thumbnail-size") {
				ps.thumbnailSize = *a.cfg.ThumbnailSize
			}
			if a.cfg.BackupOriginal != nil && !cmd.IsSet("backup-original") {
				ps.backupOriginal = *a.cfg.BackupOriginal
			}
			return a.pack(ctx, &ps)
		},
	}
}

func (a *app) pack(ctx context.Context, ps *packSettings) error {
	compression, err := ps.compressionCode()
	if err != nil {
		return err
	}
	neg, err := ps.negative()
	if err != nil {
		return err
	}
	if img, ok := neg.Raw.(*raster.MemImage); ok {
		defer img.Release()
	}

	opts := dng.DNGOptions{
		Compression:         compression,
		TileSize:            int(ps.tileSize),
		RowInterleaveFactor: int(ps.interleave),
		SubTileBlockRows:    int(ps.blockRows),
		SubTileBlockCols:    int(ps.blockCols),
		ThumbnailSize:       int(ps.thumbnailSize),
	}
	log := a.log.With("out", ps.out)
	log.Debug("packing", "in", ps.in, "width", neg.Raw.Width(), "height", neg.Raw.Height(), "compression", ps.compression)

	layout, err := writeOutput(ctx, log, ps.out, &ps.writeSettings, func(s *stream.Stream) (*dng.Layout, error) {
		return dng.WriteDNG(s, neg, opts, ps.options(log)...)
	})
	if err != nil {
		return err
	}
	if ps.report != "" {
		if err := writeReport(ps.report, layout); err != nil {
			return err
		}
	}
	log.Info("wrote dng", "bytes", layout.FileSize)
	_, err = fmt.Fprintf(a.stdout, "%s: %d bytes\n", ps.out, layout.FileSize)
	return err
}

// negative loads the raw data, metadata and optional original file.
func (ps *packSettings) negative() (*dng.Negative, error) {
	neg := &dng.Negative{}
	if ps.meta != "" {
		cam, err := readCamera(ps.meta)
		if err != nil {
			return nil, err
		}
		neg.Camera = cam
	}
	if ps.cfa != "" {
		cfa, err := parseCFA(ps.cfa)
		if err != nil {
			return nil, err
		}
		neg.Camera.CFA = cfa
	}
	if neg.Camera.Software == "" {
		neg.Camera.Software = "dngpack " + version.String()
	}

	var err error
	if ps.width > 0 || ps.height > 0 {
		neg.Raw, err = readRaw(ps.in, rawInput{
			width:     int(ps.width),
			height:    int(ps.height),
			planes:    int(ps.planes),
			bits:      int(ps.bits),
			bigEndian: ps.inBigEndian,
		})
	} else {
		neg.Raw, err = readImage(ps.in)
	}
	if err != nil {
		return nil, err
	}

	if ps.backupOriginal {
		orig, err := packOriginal(ps.in)
		if err != nil {
			if img, ok := neg.Raw.(*raster.MemImage); ok {
				img.Release()
			}
			return nil, err
		}
		neg.Original = orig
	}
	return neg, nil
}

func packOriginal(path string) (*dng.OriginalRawFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	if info.Size() > math.MaxUint32 {
		return nil, fmt.Errorf("%s is too large to embed (%d bytes)", path, info.Size())
	}
	return dng.PackOriginalRawFile(filepath.Base(path), f, uint32(info.Size()), nil)
}
