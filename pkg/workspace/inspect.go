package workspace

import (
	"context"
	"errors"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/go-git/go-git/v5/storage/memory"

	"github.com/optibot-run/optibot/pkg/log"
	"github.com/optibot-run/optibot/pkg/logs/redact"
)

// Eligibility classifies the remote repository's readiness for a run.
type Eligibility int

const (
	// Eligible means the run may proceed.
	Eligible Eligibility = iota
	// Empty means the remote has no references; there is nothing to optimize
	// and no tip to branch from.
	Empty
	// BranchAlreadyExists means a previous run's branch is still open on the
	// remote; a new run would clobber or duplicate it.
	BranchAlreadyExists
)

func (e Eligibility) String() string {
	switch e {
	case Eligible:
		return "eligible"
	case Empty:
		return "empty"
	case BranchAlreadyExists:
		return "branch-already-exists"
	default:
		return "unknown"
	}
}

// Inspect lists the remote's references without cloning and classifies the
// repository. Listing is itself a fallible network call; on failure the
// remote is treated as Eligible rather than blocking the run. That is
// permissive by default: a real authorization or connectivity problem shows
// up only as a warning here and fails later at clone or push instead.
func Inspect(ctx context.Context, remoteURL, branch string, creds CredentialsProvider) Eligibility {
	auth, err := creds.AuthMethod()
	if err != nil {
		log.Warn("credential resolution failed during inspection, proceeding",
			"url", redact.URL(remoteURL), "error", err)
		return Eligible
	}

	remote := git.NewRemote(memory.NewStorage(), &config.RemoteConfig{
		Name: "origin",
		URLs: []string{remoteURL},
	})

	refs, err := remote.ListContext(ctx, &git.ListOptions{Auth: auth})
	if err != nil {
		if errors.Is(err, transport.ErrEmptyRemoteRepository) {
			return Empty
		}
		log.Warn("remote reference listing failed, proceeding as eligible",
			"url", redact.URL(remoteURL), "error", redact.New("").ScrubError(err))
		return Eligible
	}

	if len(refs) == 0 {
		return Empty
	}

	want := plumbing.NewBranchReferenceName(branch)
	for _, ref := range refs {
		if ref.Name() == want {
			return BranchAlreadyExists
		}
	}
	return Eligible
}
