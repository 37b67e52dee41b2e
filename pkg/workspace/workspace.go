// Package workspace obtains and inspects the local working copy of a target
// repository. A working path is exclusive to one run; concurrent runs must
// not share one.
package workspace

import (
	"context"
	"errors"
	"fmt"
	"os"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/transport"

	"github.com/optibot-run/optibot/pkg/log"
	"github.com/optibot-run/optibot/pkg/logs/redact"
	"github.com/optibot-run/optibot/pkg/queue"
)

// ErrEmptyRemote reports that the remote exists but holds no references.
// There is nothing to optimize and no tip to branch from, so callers treat
// it as a no-op condition, never as a failure to retry or hand off.
var ErrEmptyRemote = errors.New("remote repository is empty")

// WorkingCopy is a cloned repository rooted at Path.
type WorkingCopy struct {
	Path string
	Repo *git.Repository
}

// Open attaches to an existing working copy, for callers that prepared the
// checkout themselves.
func Open(path string) (*WorkingCopy, error) {
	repo, err := git.PlainOpen(path)
	if err != nil {
		return nil, fmt.Errorf("open repository at %s: %w", path, err)
	}
	return &WorkingCopy{Path: path, Repo: repo}, nil
}

// Remove deletes the working copy from disk.
func (w *WorkingCopy) Remove() error {
	return os.RemoveAll(w.Path)
}

// Coordinator obtains working copies, with an optional hand-off to a
// fallback queue when the primary clone path fails. The queue represents a
// different execution environment, not an in-process retry.
type Coordinator struct {
	// Fallback receives the job when cloning fails. Nil disables hand-off.
	Fallback queue.Enqueuer
}

// Obtain clones url into path. The returned deferred flag is true when the
// clone failed and the job was successfully handed to the fallback queue;
// the caller must then treat the run as handled elsewhere. An empty remote
// returns ErrEmptyRemote without touching the queue. Any other clone failure
// with no fallback configured (or a nil job) is fatal.
func (c *Coordinator) Obtain(ctx context.Context, url, path string, creds CredentialsProvider, fallback *queue.Job) (*WorkingCopy, bool, error) {
	auth, err := creds.AuthMethod()
	if err != nil {
		return nil, false, fmt.Errorf("resolve credentials: %w", err)
	}

	repo, cloneErr := git.PlainCloneContext(ctx, path, false, &git.CloneOptions{
		URL:  url,
		Auth: auth,
	})
	if cloneErr == nil {
		return &WorkingCopy{Path: path, Repo: repo}, false, nil
	}

	// The clone may have left a partial checkout behind.
	if rmErr := os.RemoveAll(path); rmErr != nil {
		log.Warn("failed to clean partial clone", "path", path, "error", rmErr)
	}

	// An empty remote is a classification, not a clone failure. Another
	// environment would only hit the same condition, so it never goes to
	// the fallback queue.
	if errors.Is(cloneErr, transport.ErrEmptyRemoteRepository) {
		return nil, false, ErrEmptyRemote
	}

	if c.Fallback == nil || fallback == nil {
		return nil, false, fmt.Errorf("clone %s: %w", redact.URL(url), cloneErr)
	}

	log.Warn("clone failed, handing off to fallback queue",
		"url", redact.URL(url), "error", redact.New("").ScrubError(cloneErr))
	if qErr := c.Fallback.Enqueue(ctx, *fallback); qErr != nil {
		return nil, false, errors.Join(
			fmt.Errorf("clone %s: %w", redact.URL(url), cloneErr),
			fmt.Errorf("fallback enqueue: %w", qErr),
		)
	}
	return nil, true, nil
}
