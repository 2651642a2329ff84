package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/dngpack/internal/version"
	"github.com/samcharles93/dngpack/pkg/dng"
	"github.com/samcharles93/dngpack/pkg/stream"
)

type tiffSettings struct {
	writeSettings

	in          string
	meta        string
	icc         string
	dpi         float64
	description string
}

func (a *app) tiffCmd() *cli.Command {
	var ts tiffSettings
	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "in",
			Aliases:     []string{"i"},
			Usage:       "image file (png, jpeg, bmp, tiff, webp)",
			Required:    true,
			Destination: &ts.in,
		},
		&cli.StringFlag{Name: "meta", Usage: "camera metadata JSON sidecar", Destination: &ts.meta},
		&cli.StringFlag{Name: "icc", Usage: "ICC profile to embed", Destination: &ts.icc},
		&cli.FloatFlag{Name: "dpi", Usage: "resolution in pixels per inch", Destination: &ts.dpi},
		&cli.StringFlag{Name: "description", Usage: "ImageDescription tag", Destination: &ts.description},
	}
	return &cli.Command{
		Name:  "tiff",
		Usage: "Write an image as baseline TIFF",
		Flags: append(flags, ts.writeSettings.flags()...),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			ts.apply(cmd, a.cfg)
			return a.writeTIFF(ctx, &ts)
		},
	}
}

func (a *app) writeTIFF(ctx context.Context, ts *tiffSettings) error {
	compression, err := ts.compressionCode()
	if err != nil {
		return err
	}
	opts := dng.TIFFOptions{
		Compression: compression,
		TileSize:    int(ts.tileSize),
		Software:    "dngpack " + version.String(),
		Description: ts.description,
	}
	if ts.dpi > 0 {
		opts.Resolution = &dng.Resolution{X: ts.dpi, Y: ts.dpi, Unit: 2}
	}
	if ts.icc != "" {
		if opts.ICCProfile, err = os.ReadFile(ts.icc); err != nil {
			return err
		}
	}
	if ts.meta != "" {
		cam, err := readCamera(ts.meta)
		if err != nil {
			return err
		}
		opts.Make, opts.Model = cam.Make, cam.Model
		opts.DateTime = cam.DateTime
		opts.XMP = cam.XMP
		opts.Exif = cam.Exif
	}

	img, err := readImage(ts.in)
	if err != nil {
		return err
	}
	defer img.Release()

	log := a.log.With("out", ts.out)
	log.Debug("writing tiff", "in", ts.in, "width", img.Width(), "height", img.Height(), "planes", img.Planes())
	layout, err := writeOutput(ctx, log, ts.out, &ts.writeSettings, func(s *stream.Stream) (*dng.Layout, error) {
		return dng.WriteTIFF(s, img, opts, ts.options(log)...)
	})
	if err != nil {
		return err
	}
	if ts.report != "" {
		if err := writeReport(ts.report, layout); err != nil {
			return err
		}
	}
	log.Info("wrote tiff", "bytes", layout.FileSize)
	_, err = fmt.Fprintf(a.stdout, "%s: %d bytes\n", ts.out, layout.FileSize)
	return err
}
