package commit

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ProtonMail/go-crypto/openpgp"
	"github.com/ProtonMail/go-crypto/openpgp/armor"
	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/optibot-run/optibot/pkg/compress"
	"github.com/optibot-run/optibot/pkg/workspace"
)

func newTestEntity(t *testing.T) *openpgp.Entity {
	t.Helper()
	entity, err := openpgp.NewEntity("optibot test", "", "test@optibot.dev", nil)
	require.NoError(t, err)
	return entity
}

func armorEntity(t *testing.T, entity *openpgp.Entity, signingAllowed bool) string {
	t.Helper()
	var buf bytes.Buffer
	w, err := armor.Encode(&buf, openpgp.PrivateKeyType, nil)
	require.NoError(t, err)
	if signingAllowed {
		require.NoError(t, entity.SerializePrivate(w, nil))
	} else {
		require.NoError(t, entity.SerializePrivateWithoutSigning(w, nil))
	}
	require.NoError(t, w.Close())
	return buf.String()
}

func newTestSigner(t *testing.T) *Signer {
	t.Helper()
	signer, err := NewSigner(armorEntity(t, newTestEntity(t), true), "")
	require.NoError(t, err)
	return signer
}

// initWorkingCopy builds a repository with one human commit so the bot
// commit has a parent to hang off.
func initWorkingCopy(t *testing.T) *workspace.WorkingCopy {
	t.Helper()
	dir := t.TempDir()
	repo, err := git.PlainInit(dir, false)
	require.NoError(t, err)

	wt, err := repo.Worktree()
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("# assets\n"), 0o644))
	_, err = wt.Add("README.md")
	require.NoError(t, err)
	sig := &object.Signature{Name: "human", Email: "human@example.com", When: time.Now()}
	_, err = wt.Commit("initial", &git.CommitOptions{Author: sig, Committer: sig})
	require.NoError(t, err)

	return &workspace.WorkingCopy{Path: dir, Repo: repo}
}

func writeTestPNG(t *testing.T, dir, name string) compress.Result {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	img.Set(0, 0, color.RGBA{R: 0xff, A: 0xff})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))

	full := filepath.Join(dir, filepath.FromSlash(name))
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(t, os.WriteFile(full, buf.Bytes(), 0o644))
	return compress.Result{Path: name, SizeBefore: int64(buf.Len()) * 2, SizeAfter: int64(buf.Len())}
}

func TestComposeCreatesSignedCommit(t *testing.T) {
	wc := initWorkingCopy(t)
	initialHead, err := wc.Repo.Head()
	require.NoError(t, err)

	results := []compress.Result{
		writeTestPNG(t, wc.Path, "assets/logo.png"),
		writeTestPNG(t, wc.Path, "banner.png"),
	}
	signer := newTestSigner(t)

	when := time.Date(2026, 8, 20, 10, 30, 0, 0, time.UTC)
	composer := &Composer{Now: func() time.Time { return when }}

	signed, err := composer.Compose(wc, results, signer)
	require.NoError(t, err)
	require.NotNil(t, signed)
	assert.Equal(t, BranchName, signed.Branch)

	// The branch points at the signed commit.
	ref, err := wc.Repo.Reference(plumbing.NewBranchReferenceName(BranchName), true)
	require.NoError(t, err)
	assert.Equal(t, signed.Hash, ref.Hash())

	final, err := wc.Repo.CommitObject(signed.Hash)
	require.NoError(t, err)

	// Fixed bot identity on both sides, parent is the pre-run tip.
	assert.Equal(t, BotName, final.Author.Name)
	assert.Equal(t, BotEmail, final.Author.Email)
	assert.Equal(t, BotName, final.Committer.Name)
	require.Len(t, final.ParentHashes, 1)
	assert.Equal(t, initialHead.Hash(), final.ParentHashes[0])

	assert.Equal(t, BuildMessage(results), final.Message)
	assert.NotEmpty(t, final.PGPSignature)
}

func TestComposeSignatureCoversCanonicalBytes(t *testing.T) {
	wc := initWorkingCopy(t)
	results := []compress.Result{writeTestPNG(t, wc.Path, "logo.png")}
	signer := newTestSigner(t)

	signed, err := NewComposer().Compose(wc, results, signer)
	require.NoError(t, err)

	final, err := wc.Repo.CommitObject(signed.Hash)
	require.NoError(t, err)

	// Stripping the signature must reproduce the exact signed payload
	// (minus the trailing line terminator added at signing time).
	canonical, err := canonicalBytes(final)
	require.NoError(t, err)
	payload := append(canonical, '\n')

	_, err = openpgp.CheckArmoredDetachedSignature(
		signer.Keyring(),
		bytes.NewReader(payload),
		strings.NewReader(final.PGPSignature),
		nil,
	)
	assert.NoError(t, err, "signature must verify against the canonical bytes")
}

func TestComposeWorktreeMatchesSignedCommit(t *testing.T) {
	wc := initWorkingCopy(t)
	result := writeTestPNG(t, wc.Path, "logo.png")
	signer := newTestSigner(t)

	signed, err := NewComposer().Compose(wc, []compress.Result{result}, signer)
	require.NoError(t, err)

	head, err := wc.Repo.Head()
	require.NoError(t, err)
	assert.Equal(t, signed.Hash, head.Hash())

	// The checked-out file decodes and matches the committed blob.
	onDisk, err := os.ReadFile(filepath.Join(wc.Path, "logo.png"))
	require.NoError(t, err)
	_, err = png.Decode(bytes.NewReader(onDisk))
	require.NoError(t, err)

	final, err := wc.Repo.CommitObject(signed.Hash)
	require.NoError(t, err)
	tree, err := final.Tree()
	require.NoError(t, err)
	entry, err := tree.File("logo.png")
	require.NoError(t, err)
	blob, err := entry.Contents()
	require.NoError(t, err)
	assert.Equal(t, string(onDisk), blob)
}

func TestComposeRejectsEmptyResults(t *testing.T) {
	wc := initWorkingCopy(t)
	_, err := NewComposer().Compose(wc, nil, newTestSigner(t))
	assert.Error(t, err)
}

func TestComposeAbortsOnCorruptImage(t *testing.T) {
	wc := initWorkingCopy(t)
	// A result whose file is not actually an image.
	full := filepath.Join(wc.Path, "broken.png")
	require.NoError(t, os.WriteFile(full, []byte("definitely not a png"), 0o644))
	results := []compress.Result{{Path: "broken.png", SizeBefore: 100, SizeAfter: 20}}

	_, err := NewComposer().Compose(wc, results, newTestSigner(t))
	require.Error(t, err)

	var corruption *CorruptionError
	assert.ErrorAs(t, err, &corruption)
	assert.Equal(t, "broken.png", corruption.Path)
}

func TestComposeMessageIndependentOfResultOrder(t *testing.T) {
	a := compress.Result{Path: "a.png", SizeBefore: 100, SizeAfter: 60}
	b := compress.Result{Path: "b.png", SizeBefore: 200, SizeAfter: 150}
	c := compress.Result{Path: "c/deep.png", SizeBefore: 50, SizeAfter: 10}

	m1 := BuildMessage([]compress.Result{a, b, c})
	m2 := BuildMessage([]compress.Result{c, a, b})
	assert.Equal(t, m1, m2)
}
