package manager

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dot5enko/extent-store/codec"
	"github.com/dot5enko/extent-store/compression"
	"github.com/dot5enko/extent-store/io"
)

func TestParseConfig(t *testing.T) {
	config, err := ParseConfig([]byte(`
max_memory: 64MiB
max_items: 12
version: 1
compression: zstd
encode_buffer_size: 1 KiB
`))
	require.NoError(t, err)
	assert.Equal(t, int64(64<<20), config.MaxMemory)
	assert.Equal(t, 12, config.MaxItems)
	assert.Equal(t, codec.VersionBasic, config.Version)
	assert.Equal(t, compression.StateZstd, config.Compression)
	assert.Equal(t, 1024, config.EncodeBufferSize)
	assert.Equal(t, DefaultConfig().EncodeBuffers, config.EncodeBuffers)
	assert.NotNil(t, config.Logger)
}

func TestParseConfigErrors(t *testing.T) {
	_, err := ParseConfig([]byte("version: 3"))
	assert.ErrorIs(t, err, codec.ErrUnknownVersion)

	_, err = ParseConfig([]byte("compression: brotli"))
	assert.ErrorIs(t, err, compression.ErrUnknownState)

	_, err = ParseConfig([]byte("max_memory: lots"))
	assert.Error(t, err)

	_, err = ParseConfig([]byte("max_items: [1"))
	assert.Error(t, err)
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kernel.yaml")
	require.NoError(t, io.WriteFile(path, []byte("max_items: 0\n")))

	config, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Zero(t, config.MaxItems)

	k, err := New(config)
	require.NoError(t, err)
	assert.Contains(t, k.Stats().String(), "0 items")
}
