package compress

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiscover(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root,
		"logo.png",
		"docs/banner.jpg",
		"docs/photo.JPEG",
		"vendor/lib/sprite.png",
		"anim.gif",
		"readme.md",
	)
	// Repository metadata must never be a candidate.
	require.NoError(t, os.MkdirAll(filepath.Join(root, ".git", "objects"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, ".git", "icon.png"), []byte("x"), 0o644))

	t.Run("finds images outside ignores", func(t *testing.T) {
		got, err := Discover(root, []string{"vendor/*"})
		require.NoError(t, err)
		assert.Equal(t, []string{"anim.gif", "docs/banner.jpg", "docs/photo.JPEG", "logo.png"}, got)
	})

	t.Run("no ignores", func(t *testing.T) {
		got, err := Discover(root, nil)
		require.NoError(t, err)
		assert.Contains(t, got, "vendor/lib/sprite.png")
	})

	t.Run("base name pattern", func(t *testing.T) {
		got, err := Discover(root, []string{"*.gif"})
		require.NoError(t, err)
		assert.NotContains(t, got, "anim.gif")
	})
}

func TestIgnoredPath(t *testing.T) {
	tests := []struct {
		name     string
		rel      string
		patterns []string
		want     bool
	}{
		{"exact path", "a/b.png", []string{"a/b.png"}, true},
		{"base name glob", "deep/dir/thumb.png", []string{"thumb.*"}, true},
		{"directory wildcard", "vendor/x/y.png", []string{"vendor/*"}, true},
		{"directory itself", "vendor", []string{"vendor/*"}, true},
		{"no match", "assets/a.png", []string{"vendor/*", "*.gif"}, false},
		{"empty pattern skipped", "a.png", []string{""}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ignoredPath(tt.rel, tt.patterns))
		})
	}
}
