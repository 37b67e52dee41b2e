package repoconfig

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg := Load(t.TempDir())
	assert.Equal(t, Default(), cfg)
}

func TestLoadParsesConfig(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, FileName, `
schedule: weekly
aggressiveCompression: true
ignoredFiles:
  - "vendor/*"
  - "assets/raw"
minKBReduced: 5
`)

	cfg := Load(dir)
	assert.Equal(t, "weekly", cfg.Schedule)
	assert.True(t, cfg.AggressiveCompression)
	assert.Equal(t, []string{"vendor/*", "assets/raw"}, cfg.IgnoredFiles)
	assert.InDelta(t, 5.0, cfg.MinKBReduced, 0.001)
}

func TestLoadAltSpelling(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, altFileName, "schedule: daily\n")

	cfg := Load(dir)
	assert.Equal(t, "daily", cfg.Schedule)
}

func TestLoadMalformedFileUsesDefaults(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, FileName, "schedule: [unclosed\n")

	cfg := Load(dir)
	assert.Equal(t, Default(), cfg)
}

func TestLoadPrefersPrimaryName(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, FileName, "schedule: monthly\n")
	writeConfig(t, dir, altFileName, "schedule: daily\n")

	cfg := Load(dir)
	assert.Equal(t, "monthly", cfg.Schedule)
}
