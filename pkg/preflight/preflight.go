// Package preflight validates a run's inputs before the pipeline touches
// the network: the signing key must parse and decrypt, the working path
// must be usable, and a configured fallback queue must be complete.
package preflight

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/optibot-run/optibot/pkg/commit"
	"github.com/optibot-run/optibot/pkg/log"
	"github.com/optibot-run/optibot/pkg/queue"
)

// Level is the severity of a check result.
type Level int

const (
	// LevelError blocks the run.
	LevelError Level = iota
	// LevelWarn is reported but does not block.
	LevelWarn
	// LevelOK passes silently at default verbosity.
	LevelOK
)

// Result is the outcome of one check.
type Result struct {
	Name    string
	Level   Level
	Message string
	Err     error
}

// Check is a single preflight check.
type Check interface {
	Name() string
	Run(ctx context.Context) Result
}

// Checker runs a set of checks and aggregates failures.
type Checker struct {
	checks []Check
	skip   bool
}

// Config selects which checks run.
type Config struct {
	// Skip disables all checks.
	Skip bool

	// SigningKey and Passphrase are validated by parsing and decrypting.
	SigningKey string
	Passphrase string

	// WorkingPath is checked for usability (must not already exist, parent
	// must be writable).
	WorkingPath string

	// Queue, when configured, must validate.
	Queue queue.Config
}

// NewChecker assembles the checks for cfg.
func NewChecker(cfg Config) *Checker {
	c := &Checker{skip: cfg.Skip}
	c.checks = append(c.checks,
		&signingKeyCheck{key: cfg.SigningKey, passphrase: cfg.Passphrase},
		&workingPathCheck{path: cfg.WorkingPath},
	)
	if cfg.Queue.Configured() {
		c.checks = append(c.checks, &queueCheck{cfg: cfg.Queue})
	}
	return c
}

// Run executes all checks and returns an error when any reports LevelError.
func (c *Checker) Run(ctx context.Context) error {
	if c.skip {
		log.Debug("preflight checks skipped")
		return nil
	}

	var failed []Result
	for _, check := range c.checks {
		res := check.Run(ctx)
		switch res.Level {
		case LevelError:
			log.Error("preflight check failed", "check", res.Name, "message", res.Message)
			failed = append(failed, res)
		case LevelWarn:
			log.Warn("preflight check warning", "check", res.Name, "message", res.Message)
		default:
			log.Debug("preflight check passed", "check", res.Name)
		}
	}

	if len(failed) > 0 {
		return fmt.Errorf("%d preflight check(s) failed, first: %s: %s",
			len(failed), failed[0].Name, failed[0].Message)
	}
	return nil
}

type signingKeyCheck struct {
	key        string
	passphrase string
}

func (c *signingKeyCheck) Name() string { return "signing-key" }

func (c *signingKeyCheck) Run(context.Context) Result {
	if c.key == "" {
		return Result{Name: c.Name(), Level: LevelError, Message: "signing key is required"}
	}
	if _, err := commit.NewSigner(c.key, c.passphrase); err != nil {
		return Result{Name: c.Name(), Level: LevelError, Message: err.Error(), Err: err}
	}
	return Result{Name: c.Name(), Level: LevelOK}
}

type workingPathCheck struct {
	path string
}

func (c *workingPathCheck) Name() string { return "working-path" }

func (c *workingPathCheck) Run(context.Context) Result {
	if c.path == "" {
		return Result{Name: c.Name(), Level: LevelError, Message: "working path is required"}
	}
	if _, err := os.Stat(c.path); err == nil {
		// A leftover working copy means another run may own the path.
		return Result{Name: c.Name(), Level: LevelError,
			Message: fmt.Sprintf("working path %s already exists", c.path)}
	}

	parent := filepath.Dir(c.path)
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return Result{Name: c.Name(), Level: LevelError,
			Message: fmt.Sprintf("cannot create parent directory %s: %v", parent, err), Err: err}
	}
	probe, err := os.CreateTemp(parent, ".optibot-probe-*")
	if err != nil {
		return Result{Name: c.Name(), Level: LevelError,
			Message: fmt.Sprintf("parent directory %s is not writable: %v", parent, err), Err: err}
	}
	probe.Close()
	os.Remove(probe.Name())

	return Result{Name: c.Name(), Level: LevelOK}
}

type queueCheck struct {
	cfg queue.Config
}

func (c *queueCheck) Name() string { return "fallback-queue" }

func (c *queueCheck) Run(context.Context) Result {
	if err := c.cfg.Validate(); err != nil {
		return Result{Name: c.Name(), Level: LevelError, Message: err.Error(), Err: err}
	}
	return Result{Name: c.Name(), Level: LevelOK}
}
