package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrite_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", ConfigFileName)
	off := false

	cfg := DefaultConfig()
	cfg.Window = 90 * time.Second
	cfg.Listen = ":8080"
	cfg.Sources = []Source{
		{ID: "host-1", Host: "192.168.0.58", Username: "fio", Password: "${RADAR_PASS}", Command: "sudo seamless_dev_spi", Tag: "Sentai"},
		{ID: "host-2", Host: "radar-right", Command: "seamless_dev_spi", PTY: &off},
	}

	require.NoError(t, Write(path, cfg))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "# radarmon configuration")
	assert.Contains(t, string(data), "window: 1m30s")
	assert.Contains(t, string(data), "${RADAR_PASS}", "password reference is written unexpanded")

	t.Setenv("RADAR_PASS", "hunter2")
	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 90*time.Second, loaded.Window)
	assert.Equal(t, ":8080", loaded.Listen)
	require.Len(t, loaded.Sources, 2)
	assert.Equal(t, "hunter2", loaded.Sources[0].Password)
	assert.True(t, loaded.Sources[0].UsePTY())
	assert.False(t, loaded.Sources[1].UsePTY())
	assert.NoError(t, Validate(loaded))
}

func TestAppendSource(t *testing.T) {
	path := writeConfig(t, `# my radars
version: 1
window: 60s # keep a minute
sources:
  - id: host-1
    host: h1
    command: c
`)

	require.NoError(t, AppendSource(path, Source{ID: "host-2", Host: "h2", Command: "c2", Tag: "Right"}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "# my radars")
	assert.Contains(t, string(data), "# keep a minute")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Len(t, cfg.Sources, 2)
	assert.Equal(t, "host-2", cfg.Sources[1].ID)
	assert.Equal(t, "Right", cfg.Sources[1].Tag)
	assert.Equal(t, 60*time.Second, cfg.Window)
}

func TestAppendSource_Duplicate(t *testing.T) {
	path := writeConfig(t, "sources:\n  - id: host-1\n    host: h1\n    command: c\n")

	err := AppendSource(path, Source{ID: "host-1", Host: "h2", Command: "c"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")
}

func TestAppendSource_CreatesList(t *testing.T) {
	for name, content := range map[string]string{
		"missing key": "version: 1\n",
		"empty key":   "version: 1\nsources:\n",
	} {
		t.Run(name, func(t *testing.T) {
			path := writeConfig(t, content)
			require.NoError(t, AppendSource(path, Source{ID: "a", Host: "h", Command: "c"}))

			cfg, err := Load(path)
			require.NoError(t, err)
			require.Len(t, cfg.Sources, 1)
			assert.Equal(t, "a", cfg.Sources[0].ID)
		})
	}
}

func TestAppendSource_Errors(t *testing.T) {
	err := AppendSource(filepath.Join(t.TempDir(), "missing.yaml"), Source{ID: "a"})
	assert.Error(t, err)

	err = AppendSource(writeConfig(t, "sources: 3\n"), Source{ID: "a"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must be a list")
}
