package publish

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/optibot-run/optibot/pkg/workspace"
)

// newLocalPair returns a working copy wired to a local bare remote.
func newLocalPair(t *testing.T) (*workspace.WorkingCopy, *git.Repository) {
	t.Helper()

	bareDir := t.TempDir()
	bare, err := git.PlainInit(bareDir, true)
	require.NoError(t, err)

	workDir := t.TempDir()
	repo, err := git.PlainInit(workDir, false)
	require.NoError(t, err)

	_, err = repo.CreateRemote(&config.RemoteConfig{
		Name: DefaultRemote,
		URLs: []string{bareDir},
	})
	require.NoError(t, err)

	wt, err := repo.Worktree()
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(workDir, "a.txt"), []byte("a"), 0o644))
	_, err = wt.Add("a.txt")
	require.NoError(t, err)
	sig := &object.Signature{Name: "tester", Email: "t@example.com", When: time.Now()}
	_, err = wt.Commit("initial", &git.CommitOptions{Author: sig, Committer: sig})
	require.NoError(t, err)

	return &workspace.WorkingCopy{Path: workDir, Repo: repo}, bare
}

func TestPushPublishesBranch(t *testing.T) {
	wc, bare := newLocalPair(t)

	wt, err := wc.Repo.Worktree()
	require.NoError(t, err)
	require.NoError(t, wt.Checkout(&git.CheckoutOptions{
		Branch: plumbing.NewBranchReferenceName("optibot"),
		Create: true,
	}))

	p := NewPublisher()
	require.NoError(t, p.Push(context.Background(), wc, "optibot", workspace.AnonymousCredentials{}))

	ref, err := bare.Reference(plumbing.NewBranchReferenceName("optibot"), true)
	require.NoError(t, err)

	head, err := wc.Repo.Head()
	require.NoError(t, err)
	assert.Equal(t, head.Hash(), ref.Hash())
}

func TestPushIdempotentWhenUpToDate(t *testing.T) {
	wc, _ := newLocalPair(t)

	wt, err := wc.Repo.Worktree()
	require.NoError(t, err)
	require.NoError(t, wt.Checkout(&git.CheckoutOptions{
		Branch: plumbing.NewBranchReferenceName("optibot"),
		Create: true,
	}))

	p := NewPublisher()
	require.NoError(t, p.Push(context.Background(), wc, "optibot", workspace.AnonymousCredentials{}))
	assert.NoError(t, p.Push(context.Background(), wc, "optibot", workspace.AnonymousCredentials{}))
}

func TestPushUnknownBranchFails(t *testing.T) {
	wc, _ := newLocalPair(t)

	p := NewPublisher()
	err := p.Push(context.Background(), wc, "no-such-branch", workspace.AnonymousCredentials{})
	assert.Error(t, err)
}

func TestPushMissingRemoteFails(t *testing.T) {
	workDir := t.TempDir()
	repo, err := git.PlainInit(workDir, false)
	require.NoError(t, err)
	wc := &workspace.WorkingCopy{Path: workDir, Repo: repo}

	p := &Publisher{Remote: "upstream"}
	err = p.Push(context.Background(), wc, "optibot", workspace.AnonymousCredentials{})
	assert.Error(t, err)
}
