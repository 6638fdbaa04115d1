package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withTempHome(t *testing.T) string {
	t.Helper()
	tmp := t.TempDir()
	SetConfigDir(tmp)
	t.Cleanup(func() { SetConfigDir("") })
	return tmp
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	withTempHome(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 0, cfg.WrapWidth)
	assert.False(t, cfg.Follow)
	assert.Equal(t, 0, cfg.TabWidth)
}

func TestLoadValidConfig(t *testing.T) {
	tmp := withTempHome(t)

	content := `wrap_width = 120
follow = true
tab_width = 4
shrink_threshold = 2097152
`
	require.NoError(t, os.WriteFile(filepath.Join(tmp, "config.toml"), []byte(content), 0o644))

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 120, cfg.WrapWidth)
	assert.True(t, cfg.Follow)
	assert.Equal(t, 4, cfg.TabWidth)
	assert.Equal(t, 2097152, cfg.ShrinkThreshold)
}

func TestLoadMalformedTOML(t *testing.T) {
	tmp := withTempHome(t)

	require.NoError(t, os.WriteFile(filepath.Join(tmp, "config.toml"), []byte("not valid [[ toml"), 0o644))

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parsing config.toml")
}

func TestHomePrecedence(t *testing.T) {
	tmp := withTempHome(t)
	assert.Equal(t, tmp, Home())

	SetConfigDir("")
	t.Setenv("VISTA_HOME", "/tmp/vista-env-home")
	assert.Equal(t, "/tmp/vista-env-home", Home())
}

func TestPathJoinsHomeAndFilename(t *testing.T) {
	tmp := withTempHome(t)
	assert.Equal(t, filepath.Join(tmp, "config.toml"), Path())
}
