// Package repoconfig loads the optional per-repository configuration file
// committed at the repository root. The file tunes scheduling and
// compression; its absence, or any parse failure, falls back to defaults
// without aborting the run.
package repoconfig

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/optibot-run/optibot/pkg/log"
)

// FileName is the configuration file looked up at the repository root.
const FileName = ".optibot.yml"

// altFileName is accepted as a fallback spelling.
const altFileName = ".optibot.yaml"

// Config is the decoded repository configuration. It is read once per run
// and never mutated.
type Config struct {
	// Schedule throttles how often the bot commits to this repository:
	// "daily", "weekly", "monthly", or empty for every eligible run.
	Schedule string `yaml:"schedule"`

	// AggressiveCompression trades image fidelity for smaller output.
	AggressiveCompression bool `yaml:"aggressiveCompression"`

	// IgnoredFiles are path patterns (relative to the repository root,
	// matched per path segment or as a path suffix) excluded from
	// optimization.
	IgnoredFiles []string `yaml:"ignoredFiles"`

	// MinKBReduced suppresses the commit when the aggregate saving is below
	// this many kilobytes. Zero keeps every strict reduction.
	MinKBReduced float64 `yaml:"minKBReduced"`
}

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{}
}

// Load reads the configuration from root. Missing file, unreadable file, and
// malformed YAML all yield the defaults; only the malformed case is logged,
// since that is the one a repository owner would want to know about.
func Load(root string) Config {
	data, err := readFirst(root, FileName, altFileName)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			log.Warn("repository config unreadable, using defaults", "error", err)
		}
		return Default()
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		log.Warn("repository config malformed, using defaults", "error", err)
		return Default()
	}
	return cfg
}

func readFirst(root string, names ...string) ([]byte, error) {
	var lastErr error = fs.ErrNotExist
	for _, name := range names {
		data, err := os.ReadFile(filepath.Join(root, name))
		if err == nil {
			return data, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			lastErr = err
		}
	}
	return nil, lastErr
}
