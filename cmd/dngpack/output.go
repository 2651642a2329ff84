package main

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"time"

	"github.com/goccy/go-json"
	"github.com/hashicorp/go-multierror"
	"golang.org/x/time/rate"

	"github.com/samcharles93/dngpack/internal/logger"
	"github.com/samcharles93/dngpack/pkg/dng"
	"github.com/samcharles93/dngpack/pkg/stream"
)

// writeOutput creates path, runs write over a stream on it and removes the
// file again if anything fails, including cancellation through ctx.
func writeOutput(ctx context.Context, log logger.Logger, path string, ws *writeSettings,
	write func(*stream.Stream) (*dng.Layout, error),
) (layout *dng.Layout, err error) {
	store, err := stream.CreateFile(path)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := store.Close(); cerr != nil && err == nil {
			err = cerr
		}
		if err != nil {
			if rerr := os.Remove(path); rerr != nil && !errors.Is(rerr, fs.ErrNotExist) {
				err = multierror.Append(err, rerr)
			}
			layout = nil
		}
	}()

	progressLog := rate.Sometimes{Interval: time.Second}
	progress := func(done, total uint64) {
		progressLog.Do(func() {
			log.Info("writing", "tiles", done, "of", total)
		})
	}
	s, err := stream.New(store,
		stream.WithBigEndian(ws.bigEndian),
		stream.WithBufferSize(int(ws.bufferSize)),
		stream.WithSniffer(dng.ContextSniffer(ctx, progress)),
	)
	if err != nil {
		return nil, err
	}
	layout, err = write(s)
	if cerr := s.Close(); cerr != nil && err == nil {
		err = cerr
	}
	if err != nil {
		return nil, err
	}
	return layout, nil
}

func writeReport(path string, layout *dng.Layout) error {
	data, err := json.MarshalIndent(layout, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}
