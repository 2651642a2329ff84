package main

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/goccy/go-json"

	"github.com/samcharles93/dngpack/pkg/dng"
	"github.com/samcharles93/dngpack/pkg/dngerr"
)

// runApp runs the CLI with an empty config file so the user's own config
// never leaks into a test.
func runApp(t *testing.T, ctx context.Context, args ...string) (string, error) {
	t.Helper()
	var stdout bytes.Buffer
	cfg := filepath.Join(t.TempDir(), "config.yaml")
	full := append([]string{"dngpack", "--config", cfg, "--log-level", "error"}, args...)
	err := newApp(&stdout).Run(ctx, full)
	return stdout.String(), err
}

func writeBayerRaw(t *testing.T, dir string, w, h int) string {
	t.Helper()
	data := make([]byte, 0, 2*w*h)
	for y := range h {
		for x := range w {
			data = binary.LittleEndian.AppendUint16(data, uint16(64+y*40+x*9))
		}
	}
	path := filepath.Join(dir, "frame.raw")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write raw: %v", err)
	}
	return path
}

func readReport(t *testing.T, path string) dng.Layout {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	var layout dng.Layout
	if err := json.Unmarshal(data, &layout); err != nil {
		t.Fatalf("decode report: %v", err)
	}
	return layout
}

func TestPackDNG(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	in := writeBayerRaw(t, dir, 64, 48)
	meta := filepath.Join(dir, "camera.json")
	sidecar := `{"make":"Acme","model":"R1","color_matrix_1":[[0.7,-0.1,-0.05],[-0.4,1.2,0.2],[-0.05,0.1,0.6]],` +
		`"calibration_illuminant_1":21,"white_level":[4095],"black_level":[64]}`
	if err := os.WriteFile(meta, []byte(sidecar), 0o644); err != nil {
		t.Fatalf("write sidecar: %v", err)
	}

	tests := []struct {
		name  string
		args  []string
		order string
		tiled bool
	}{
		{name: "strip", order: "II"},
		{name: "big endian deflate", args: []string{"--big-endian", "--compression", "deflate"}, order: "MM", tiled: true},
		{name: "zstd tiles", args: []string{"--compression", "zstd", "--tile-size", "2048"}, order: "II", tiled: true},
		{name: "backup original", args: []string{"--backup-original", "--thumbnail-size", "32"}, order: "II"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			out := filepath.Join(t.TempDir(), "frame.dng")
			report := out + ".json"
			args := append([]string{"pack", "--in", in, "--width", "64", "--height", "48",
				"--cfa", "RGGB", "--meta", meta, "-o", out, "--report", report}, tc.args...)
			stdout, err := runApp(t, context.Background(), args...)
			if err != nil {
				t.Fatalf("pack: %v", err)
			}

			data, err := os.ReadFile(out)
			if err != nil {
				t.Fatalf("read output: %v", err)
			}
			if string(data[:2]) != tc.order {
				t.Fatalf("byte order %q, want %q", data[:2], tc.order)
			}
			layout := readReport(t, report)
			if layout.FileSize != uint64(len(data)) || layout.ByteOrder != tc.order {
				t.Fatalf("report %+v does not match %d byte file", layout, len(data))
			}
			if len(layout.Images) != 2 {
				t.Fatalf("expected thumbnail and raw images, got %d", len(layout.Images))
			}
			raw := layout.Images[1]
			if raw.Width != 64 || raw.Height != 48 || raw.Bits != 16 || raw.Tiled != tc.tiled {
				t.Fatalf("raw layout %+v", raw)
			}
			if !strings.Contains(stdout, out) {
				t.Fatalf("summary %q does not name the output", stdout)
			}
		})
	}
}

func TestPackImageInput(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	src := image.NewNRGBA(image.Rect(0, 0, 40, 30))
	for y := range 30 {
		for x := range 40 {
			src.Set(x, y, color.NRGBA{R: uint8(x * 6), G: uint8(y * 8), B: 90, A: 255})
		}
	}
	in := filepath.Join(dir, "in.png")
	f, err := os.Create(in)
	if err != nil {
		t.Fatalf("create png: %v", err)
	}
	if err := png.Encode(f, src); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("close png: %v", err)
	}

	t.Run("linear raw dng", func(t *testing.T) {
		t.Parallel()
		out := filepath.Join(t.TempDir(), "linear.dng")
		report := out + ".json"
		if _, err := runApp(t, context.Background(), "pack", "--in", in, "-o", out, "--report", report); err != nil {
			t.Fatalf("pack: %v", err)
		}
		raw := readReport(t, report).Images[1]
		if raw.Samples != 3 || raw.Width != 40 {
			t.Fatalf("raw layout %+v", raw)
		}
	})

	t.Run("tiff", func(t *testing.T) {
		t.Parallel()
		out := filepath.Join(t.TempDir(), "out.tif")
		report := out + ".json"
		if _, err := runApp(t, context.Background(), "tiff", "--in", in, "-o", out,
			"--compression", "deflate", "--dpi", "300", "--report", report); err != nil {
			t.Fatalf("tiff: %v", err)
		}
		layout := readReport(t, report)
		if len(layout.Images) != 1 || layout.Images[0].Compression != "deflate" {
			t.Fatalf("layout %+v", layout)
		}
		info, err := os.Stat(out)
		if err != nil {
			t.Fatalf("stat output: %v", err)
		}
		if uint64(info.Size()) != layout.FileSize {
			t.Fatalf("file size %d, report says %d", info.Size(), layout.FileSize)
		}
	})
}

func TestPackErrors(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	in := writeBayerRaw(t, dir, 16, 16)

	tests := []struct {
		name string
		args []string
	}{
		{name: "size mismatch", args: []string{"--width", "17", "--height", "16"}},
		{name: "bad cfa", args: []string{"--width", "16", "--height", "16", "--cfa", "RGBX"}},
		{name: "bad compression", args: []string{"--width", "16", "--height", "16", "--compression", "lzw"}},
		{name: "jpeg needs encoder", args: []string{"--width", "16", "--height", "16", "--cfa", "RGGB", "--compression", "jpeg"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			out := filepath.Join(t.TempDir(), "x.dng")
			args := append([]string{"pack", "--in", in, "-o", out}, tc.args...)
			if _, err := runApp(t, context.Background(), args...); err == nil {
				t.Fatal("expected error")
			}
			if _, err := os.Stat(out); !errors.Is(err, fs.ErrNotExist) {
				t.Fatalf("output should not exist after failure: %v", err)
			}
		})
	}
}

func TestPackCancelledRemovesOutput(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	in := writeBayerRaw(t, dir, 32, 32)
	out := filepath.Join(dir, "cancelled.dng")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := runApp(t, ctx, "pack", "--in", in, "--width", "32", "--height", "32", "--cfa", "RGGB", "-o", out)
	if !errors.Is(err, dngerr.ErrCancelled) {
		t.Fatalf("expected ErrCancelled, got %v", err)
	}
	if _, err := os.Stat(out); !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("cancelled output should be removed: %v", err)
	}
}

func TestConfigDefaults(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	in := writeBayerRaw(t, dir, 32, 32)
	cfg := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(cfg, []byte("compression: zstd\nbig_endian: true\nlog_level: error\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	out := filepath.Join(dir, "cfg.dng")
	report := out + ".json"

	var stdout bytes.Buffer
	err := newApp(&stdout).Run(context.Background(), []string{"dngpack", "--config", cfg,
		"pack", "--in", in, "--width", "32", "--height", "32", "--cfa", "RGGB", "-o", out, "--report", report})
	if err != nil {
		t.Fatalf("pack: %v", err)
	}
	layout := readReport(t, report)
	if layout.ByteOrder != "MM" || layout.Images[1].Compression != "zstd" {
		t.Fatalf("config defaults not applied: %+v", layout)
	}
}

func TestVersionCommand(t *testing.T) {
	t.Parallel()
	stdout, err := runApp(t, context.Background(), "version")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if !strings.Contains(stdout, "version:") || !strings.Contains(stdout, dng.FormatVersion) {
		t.Fatalf("unexpected version output %q", stdout)
	}
}

func TestMalformedConfigFails(t *testing.T) {
	t.Parallel()
	cfg := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(cfg, []byte("tile_size: [\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	var stdout bytes.Buffer
	if err := newApp(&stdout).Run(context.Background(), []string{"dngpack", "--config", cfg, "version"}); err == nil {
		t.Fatal("expected error for malformed config")
	}
}
