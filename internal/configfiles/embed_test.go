package configfiles

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/reviewflow/reviewflow/internal/config"
)

func TestGetConfigExample(t *testing.T) {
	data, err := GetConfigExample()
	require.NoError(t, err)
	require.NotEmpty(t, data)

	// The example must parse into the real config structure
	var cfg config.Config
	require.NoError(t, yaml.Unmarshal(data, &cfg))
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "memory", cfg.Queue.Backend)
	assert.Equal(t, "anthropic", cfg.AI.DefaultProvider)
}

func TestWriteConfigExample(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config", "config.yaml")

	require.NoError(t, WriteConfigExample(path))

	written, err := os.ReadFile(path)
	require.NoError(t, err)
	embedded, err := GetConfigExample()
	require.NoError(t, err)
	assert.Equal(t, embedded, written)

	// Refuses to overwrite
	assert.Error(t, WriteConfigExample(path))
}
