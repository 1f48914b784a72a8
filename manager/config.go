package manager

import (
	"fmt"
	"log/slog"

	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"

	"github.com/dot5enko/extent-store/codec"
	"github.com/dot5enko/extent-store/compression"
	"github.com/dot5enko/extent-store/io"
)

type Config struct {
	// byte budget of the page cache
	MaxMemory int64
	// item budget of the page cache
	MaxItems int

	// codec version used for writes; reads dispatch on the file's own version
	Version     byte
	Compression compression.State

	// scratch buffers kept for encoding file images
	EncodeBuffers    int
	EncodeBufferSize int

	Logger *slog.Logger
}

// DefaultConfig caches up to 256MB in at most 4096 items and writes
// lz4 compressed v2 files.
func DefaultConfig() Config {
	return Config{
		MaxMemory:        256 << 20,
		MaxItems:         4096,
		Version:          codec.DefaultVersion,
		Compression:      compression.StateLz4,
		EncodeBuffers:    4,
		EncodeBufferSize: 256 << 10,
		Logger:           slog.Default(),
	}
}

// fileConfig is the yaml form of Config. Sizes accept units ("64MiB").
type fileConfig struct {
	MaxMemory        string `yaml:"max_memory"`
	MaxItems         *int   `yaml:"max_items"`
	Version          *int   `yaml:"version"`
	Compression      string `yaml:"compression"`
	EncodeBuffers    *int   `yaml:"encode_buffers"`
	EncodeBufferSize string `yaml:"encode_buffer_size"`
}

// ParseConfig overlays yaml settings on DefaultConfig.
func ParseConfig(data []byte) (Config, error) {
	config := DefaultConfig()

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return config, fmt.Errorf("unable to parse kernel config: %w", err)
	}

	if fc.MaxMemory != "" {
		v, err := humanize.ParseBytes(fc.MaxMemory)
		if err != nil {
			return config, fmt.Errorf("max_memory `%s`: %w", fc.MaxMemory, err)
		}
		config.MaxMemory = int64(v)
	}
	if fc.MaxItems != nil {
		config.MaxItems = *fc.MaxItems
	}
	if fc.Version != nil {
		if _, err := codec.ForVersion(byte(*fc.Version)); err != nil || *fc.Version > 255 {
			return config, fmt.Errorf("kernel config: version %d: %w", *fc.Version, codec.ErrUnknownVersion)
		}
		config.Version = byte(*fc.Version)
	}
	if fc.Compression != "" {
		state, err := compression.ParseState(fc.Compression)
		if err != nil {
			return config, fmt.Errorf("kernel config: %w", err)
		}
		config.Compression = state
	}
	if fc.EncodeBuffers != nil {
		config.EncodeBuffers = *fc.EncodeBuffers
	}
	if fc.EncodeBufferSize != "" {
		v, err := humanize.ParseBytes(fc.EncodeBufferSize)
		if err != nil {
			return config, fmt.Errorf("encode_buffer_size `%s`: %w", fc.EncodeBufferSize, err)
		}
		config.EncodeBufferSize = int(v)
	}

	return config, nil
}

func LoadConfig(path string) (Config, error) {
	data, err := io.ReadFile(path)
	if err != nil {
		return DefaultConfig(), err
	}
	return ParseConfig(data)
}
