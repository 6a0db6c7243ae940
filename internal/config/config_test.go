package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 5000, cfg.ServerPort)
	assert.Equal(t, "full", cfg.DefaultFidelity)
	assert.Equal(t, "Region", cfg.SchemaLabel)
	assert.Len(t, cfg.SchemaColumns, 5)
	assert.NotEmpty(t, cfg.StudiesDir)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "config.yaml")
	in := &Global{
		StudiesDir:    "/tmp/studies",
		LogLevel:      "debug",
		SchemaLabel:   "Country",
		SchemaColumns: []string{"Rice_Intake", "Tea_Intake"},
		ServerPort:    8080,
		BatchJobs:     2,
	}
	require.NoError(t, Save(in, path))

	out, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", out.LogLevel)
	assert.Equal(t, 8080, out.ServerPort)
	assert.Equal(t, "/tmp/studies", out.StudiesDir)

	s := out.Schema()
	assert.Equal(t, "Country", s.Label)
	assert.Equal(t, []string{"Rice_Intake", "Tea_Intake"}, s.Columns)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("MICROLENS_SERVER_PORT", "9090")
	t.Setenv("MICROLENS_LOG_FORMAT", "json")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.ServerPort)
	assert.Equal(t, "json", cfg.LogFormat)
}

func TestDotEnvLoaded(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("MICROLENS_CACHE_SIZE=7\n"), 0o644))
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() {
		_ = os.Chdir(wd)
		_ = os.Unsetenv("MICROLENS_CACHE_SIZE")
	})

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.CacheSize)
}

func TestSchemaNilConfig(t *testing.T) {
	var c *Global
	assert.Equal(t, "Region", c.Schema().Label)
}
