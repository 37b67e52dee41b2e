// Package publish pushes the finished optimization branch. This is the
// single externally observable state-changing operation in a run; every
// stage before it is local-only.
package publish

import (
	"context"
	"errors"
	"fmt"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"

	"github.com/optibot-run/optibot/pkg/log"
	"github.com/optibot-run/optibot/pkg/workspace"
)

// DefaultRemote is the remote pushed to when none is configured.
const DefaultRemote = "origin"

// Publisher pushes a branch of a working copy to its remote.
type Publisher struct {
	// Remote defaults to DefaultRemote.
	Remote string
}

// NewPublisher returns a Publisher targeting the default remote.
func NewPublisher() *Publisher {
	return &Publisher{}
}

// Push publishes branch to the remote. A push failure is fatal to the run;
// there is no in-process retry.
func (p *Publisher) Push(ctx context.Context, wc *workspace.WorkingCopy, branch string, creds workspace.CredentialsProvider) error {
	remote := p.Remote
	if remote == "" {
		remote = DefaultRemote
	}

	auth, err := creds.AuthMethod()
	if err != nil {
		return fmt.Errorf("resolve credentials: %w", err)
	}

	refSpec := config.RefSpec(fmt.Sprintf("refs/heads/%s:refs/heads/%s", branch, branch))
	err = wc.Repo.PushContext(ctx, &git.PushOptions{
		RemoteName: remote,
		RefSpecs:   []config.RefSpec{refSpec},
		Auth:       auth,
	})
	if err != nil {
		if errors.Is(err, git.NoErrAlreadyUpToDate) {
			log.Info("branch already up to date on remote", "branch", branch)
			return nil
		}
		return fmt.Errorf("push branch %s: %w", branch, err)
	}

	log.Info("pushed branch", "branch", branch, "remote", remote)
	return nil
}
