package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config represents the dngpack configuration file (~/.config/dngpack/config.yaml).
// Pointer fields distinguish "not set" from zero values.
type Config struct {
	// Output
	Compression      *string `yaml:"compression"`
	CompressionLevel *int64  `yaml:"compression_level"`
	BigEndian        *bool   `yaml:"big_endian"`
	TileSize         *int64  `yaml:"tile_size"`
	ChunkSize        *int64  `yaml:"chunk_size"`
	BufferSize       *int64  `yaml:"buffer_size"`

	// DNG
	ThumbnailSize  *int64 `yaml:"thumbnail_size"`
	BackupOriginal *bool  `yaml:"backup_original"`

	// Logging
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
}

func configPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "dngpack", "config.yaml")
}

// LoadConfig reads the config file. A missing file gives a zero Config; a
// malformed one is an error.
func LoadConfig(path string) (Config, error) {
	if path == "" {
		return Config{}, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Config{}, nil
	}
	if err != nil {
		return Config{}, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}
