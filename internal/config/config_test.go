package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg, err := Default()
	require.NoError(t, err)

	assert.Equal(t, []string{"aa", "aar", "aac"}, cfg.Engine.Analysis)
	assert.Equal(t, "jmp_", cfg.Rename.ImportJumpPrefix)
	assert.Equal(t, "wrapper_", cfg.Rename.WrapperPrefix)
	assert.Equal(t, "globalassign_", cfg.Rename.GlobalAssignPrefix)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.NoError(t, cfg.Validate())
}

func TestLoadFromFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[log]
level = "debug"
`), 0644))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, []string{"aa", "aar", "aac"}, cfg.Engine.Analysis)
	assert.Equal(t, "wrapper_", cfg.Rename.WrapperPrefix)
}

func TestLoadFromFileRejectsEmptyPrefix(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[rename]
wrapper_prefix = ""
`), 0644))

	_, err := LoadFromFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rename.wrapper_prefix")
}

func TestLoadEmptyPathUsesDefault(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, []string{"aa", "aar", "aac"}, cfg.Engine.Analysis)
}

func TestLoadFromFileRejectsUnknownLogLevel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[log]
level = "loud"
`), 0644))

	_, err := LoadFromFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "log.level")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}
