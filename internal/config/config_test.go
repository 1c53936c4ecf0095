package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0x5844/particle-sim/internal/config"
)

func TestLoadEmptyPathReturnsDefaults(t *testing.T) {
	tuning, err := config.Load("")
	require.NoError(t, err)
	assert.Equal(t, config.Defaults(), tuning)
}

func TestLoadOverridesFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tuning.gcfg")
	content := "[tuning]\nredistributeevery = 4\nleafcapacity = 128\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	tuning, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, 4, tuning.RedistributeEvery)
	assert.Equal(t, 128, tuning.LeafCapacity)
	assert.Equal(t, config.Defaults().HaloTag, tuning.HaloTag)
}

func TestLoadMissingFileReturnsError(t *testing.T) {
	_, err := config.Load("/nonexistent/tuning.gcfg")
	assert.Error(t, err)
}
