package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/urfave/cli/v3"
)

func TestLoadConfig(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	t.Run("missing file", func(t *testing.T) {
		cfg, err := LoadConfig(filepath.Join(dir, "absent.yaml"))
		if err != nil {
			t.Fatalf("LoadConfig: %v", err)
		}
		if cfg.Compression != nil || cfg.LogLevel != "" {
			t.Fatalf("expected zero config, got %+v", cfg)
		}
	})

	t.Run("parsed", func(t *testing.T) {
		path := filepath.Join(dir, "config.yaml")
		data := "compression: zstd\ncompression_level: 3\nbig_endian: true\nthumbnail_size: 128\nlog_level: debug\n"
		if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
			t.Fatalf("write config: %v", err)
		}
		cfg, err := LoadConfig(path)
		if err != nil {
			t.Fatalf("LoadConfig: %v", err)
		}
		if cfg.Compression == nil || *cfg.Compression != "zstd" {
			t.Fatalf("compression: %v", cfg.Compression)
		}
		if cfg.CompressionLevel == nil || *cfg.CompressionLevel != 3 {
			t.Fatalf("compression level: %v", cfg.CompressionLevel)
		}
		if cfg.BigEndian == nil || !*cfg.BigEndian {
			t.Fatalf("big endian: %v", cfg.BigEndian)
		}
		if cfg.ThumbnailSize == nil || *cfg.ThumbnailSize != 128 {
			t.Fatalf("thumbnail size: %v", cfg.ThumbnailSize)
		}
		if cfg.TileSize != nil {
			t.Fatalf("tile size should be unset, got %d", *cfg.TileSize)
		}
		if cfg.LogLevel != "debug" {
			t.Fatalf("log level: %q", cfg.LogLevel)
		}
	})

	t.Run("malformed", func(t *testing.T) {
		path := filepath.Join(dir, "bad.yaml")
		if err := os.WriteFile(path, []byte("compression: [zstd\n"), 0o644); err != nil {
			t.Fatalf("write config: %v", err)
		}
		if _, err := LoadConfig(path); err == nil {
			t.Fatal("expected error for malformed config")
		}
	})
}

func TestWriteSettingsApply(t *testing.T) {
	t.Parallel()
	zstd, level, big, tile := "zstd", int64(7), true, int64(4096)
	cfg := Config{Compression: &zstd, CompressionLevel: &level, BigEndian: &big, TileSize: &tile}

	run := func(args ...string) writeSettings {
		t.Helper()
		var ws writeSettings
		cmd := &cli.Command{
			Name:  "apply",
			Flags: ws.flags(),
			Action: func(ctx context.Context, cmd *cli.Command) error {
				ws.apply(cmd, cfg)
				return nil
			},
		}
		if err := cmd.Run(context.Background(), append([]string{"apply", "-o", "x.dng"}, args...)); err != nil {
			t.Fatalf("run: %v", err)
		}
		return ws
	}

	ws := run()
	if ws.compression != "zstd" || ws.level != 7 || !ws.bigEndian || ws.tileSize != 4096 {
		t.Fatalf("config not applied: %+v", ws)
	}

	ws = run("--compression", "deflate", "--tile-size", "0")
	if ws.compression != "deflate" || ws.tileSize != 0 {
		t.Fatalf("flags should win over config: %+v", ws)
	}
	if ws.level != 7 {
		t.Fatalf("unset flag should take config value, got level %d", ws.level)
	}
}
