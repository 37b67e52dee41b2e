// Package commit stages compressed assets, builds the optimization commit,
// re-derives it with an embedded detached OpenPGP signature, and verifies
// the checked-out tree before anything is pushed.
//
// Signing is modeled as two pure value constructions: a draft commit is
// persisted once to obtain its canonical bytes, the branch pointer is rolled
// back, and a second commit with identical logical content plus the
// signature replaces it. The signature never alters tree, parents, message,
// or either identity.
package commit

import (
	"errors"
	"fmt"
	"io"
	"time"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/optibot-run/optibot/pkg/compress"
	"github.com/optibot-run/optibot/pkg/log"
	"github.com/optibot-run/optibot/pkg/workspace"
)

const (
	// BotName and BotEmail form the fixed identity on every generated commit.
	BotName  = "optibot"
	BotEmail = "bot@optibot.dev"

	// BranchName is the dedicated branch the optimization commit lands on.
	BranchName = "optibot"
)

// Identity is a commit author or committer.
type Identity struct {
	Name  string
	Email string
}

// BotIdentity returns the fixed identity used for generated commits.
func BotIdentity() Identity {
	return Identity{Name: BotName, Email: BotEmail}
}

// Signed describes the finished, push-ready commit.
type Signed struct {
	Hash      plumbing.Hash
	Branch    string
	Message   string
	Signature string
}

// Composer builds the signed optimization commit on a working copy.
type Composer struct {
	// Branch defaults to BranchName.
	Branch string
	// Identity defaults to BotIdentity().
	Identity Identity
	// Now supplies the commit timestamp; defaults to time.Now.
	Now func() time.Time
}

// NewComposer returns a Composer with the fixed bot defaults.
func NewComposer() *Composer {
	return &Composer{}
}

// Compose runs the full stage-commit-resign-verify sequence. On success the
// working copy's branch points at the signed commit and the worktree matches
// it exactly. On any failure nothing has left the local working copy.
func (c *Composer) Compose(wc *workspace.WorkingCopy, results []compress.Result, signer *Signer) (*Signed, error) {
	if len(results) == 0 {
		return nil, errors.New("no compression results to commit")
	}

	branch := c.Branch
	if branch == "" {
		branch = BranchName
	}
	identity := c.Identity
	if identity == (Identity{}) {
		identity = BotIdentity()
	}
	now := time.Now
	if c.Now != nil {
		now = c.Now
	}

	wt, err := wc.Repo.Worktree()
	if err != nil {
		return nil, fmt.Errorf("open worktree: %w", err)
	}

	// The branch is created here and mutated nowhere else until push. Keep
	// preserves the compressed files sitting in the worktree.
	branchRef := plumbing.NewBranchReferenceName(branch)
	if err := wt.Checkout(&git.CheckoutOptions{Branch: branchRef, Create: true, Keep: true}); err != nil {
		return nil, fmt.Errorf("create branch %s: %w", branch, err)
	}

	for _, r := range results {
		if _, err := wt.Add(r.Path); err != nil {
			return nil, fmt.Errorf("stage %s: %w", r.Path, err)
		}
	}

	message := BuildMessage(results)
	when := now()
	sig := object.Signature{Name: identity.Name, Email: identity.Email, When: when}

	draftHash, err := wt.Commit(message, &git.CommitOptions{
		Author:    &sig,
		Committer: &sig,
	})
	if err != nil {
		return nil, fmt.Errorf("commit draft: %w", err)
	}

	draft, err := wc.Repo.CommitObject(draftHash)
	if err != nil {
		return nil, fmt.Errorf("read draft commit: %w", err)
	}
	if len(draft.ParentHashes) == 0 {
		return nil, errors.New("refusing to rewrite a parentless commit")
	}

	canonical, err := canonicalBytes(draft)
	if err != nil {
		return nil, err
	}

	// The signed payload is the canonical buffer with a trailing line
	// terminator appended.
	signature, err := signer.DetachSign(append(append([]byte{}, canonical...), '\n'))
	if err != nil {
		return nil, err
	}

	// Roll the branch pointer back to the pre-draft tip. Content-preserving:
	// index and worktree stay at the draft state.
	if err := wt.Reset(&git.ResetOptions{Commit: draft.ParentHashes[0], Mode: git.SoftReset}); err != nil {
		return nil, fmt.Errorf("roll back draft: %w", err)
	}

	signedHash, err := persistSigned(wc.Repo, draft, signature)
	if err != nil {
		return nil, err
	}

	if err := wc.Repo.Storer.SetReference(plumbing.NewHashReference(branchRef, signedHash)); err != nil {
		return nil, fmt.Errorf("move branch to signed commit: %w", err)
	}
	if err := wt.Reset(&git.ResetOptions{Commit: signedHash, Mode: git.HardReset}); err != nil {
		return nil, fmt.Errorf("check out signed commit: %w", err)
	}

	if err := VerifyImages(wc.Path, results); err != nil {
		return nil, err
	}

	log.Info("composed signed commit",
		"branch", branch, "commit", signedHash.String(), "files", len(results))
	return &Signed{
		Hash:      signedHash,
		Branch:    branch,
		Message:   message,
		Signature: signature,
	}, nil
}

// persistSigned stores a commit with the draft's exact logical content plus
// the detached signature.
func persistSigned(repo *git.Repository, draft *object.Commit, signature string) (plumbing.Hash, error) {
	signed := &object.Commit{
		Author:       draft.Author,
		Committer:    draft.Committer,
		Message:      draft.Message,
		TreeHash:     draft.TreeHash,
		ParentHashes: draft.ParentHashes,
		PGPSignature: signature,
	}

	obj := repo.Storer.NewEncodedObject()
	if err := signed.Encode(obj); err != nil {
		return plumbing.ZeroHash, fmt.Errorf("encode signed commit: %w", err)
	}
	hash, err := repo.Storer.SetEncodedObject(obj)
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("store signed commit: %w", err)
	}
	return hash, nil
}

// canonicalBytes returns the commit's encoding with any signature stripped,
// the exact bytes a verifier reconstructs.
func canonicalBytes(c *object.Commit) ([]byte, error) {
	obj := &plumbing.MemoryObject{}
	if err := c.EncodeWithoutSignature(obj); err != nil {
		return nil, fmt.Errorf("encode canonical commit: %w", err)
	}
	r, err := obj.Reader()
	if err != nil {
		return nil, fmt.Errorf("read canonical commit: %w", err)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read canonical commit: %w", err)
	}
	return data, nil
}
