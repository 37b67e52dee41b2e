// Package run orchestrates one optimization run end to end: obtain a working
// copy, decide whether optimization is due, compress assets, compose the
// signed commit, and push the branch.
//
// Every stage before the push is local-only, so the externally visible
// effect is all-or-nothing: either the pushed branch exists afterwards, or
// the remote is untouched.
package run

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/optibot-run/optibot/pkg/commit"
	"github.com/optibot-run/optibot/pkg/compress"
	"github.com/optibot-run/optibot/pkg/log"
	"github.com/optibot-run/optibot/pkg/publish"
	"github.com/optibot-run/optibot/pkg/queue"
	"github.com/optibot-run/optibot/pkg/repoconfig"
	"github.com/optibot-run/optibot/pkg/schedule"
	"github.com/optibot-run/optibot/pkg/workspace"
)

// Status classifies how a run ended.
type Status string

const (
	// StatusPushed means the signed branch is on the remote.
	StatusPushed Status = "pushed"
	// StatusDeferred means the clone failed and the run was handed to the
	// fallback queue; another environment owns it now.
	StatusDeferred Status = "deferred"
	// StatusNoAction means a short-circuit condition ended the run with the
	// remote untouched. Not an error.
	StatusNoAction Status = "no-action"
)

// No-action reasons.
const (
	ReasonEmptyRepository = "empty repository"
	ReasonBranchExists    = "optimization branch already exists"
	ReasonNotDue          = "schedule not due"
	ReasonNothingShrank   = "no compressible files"
	ReasonBelowThreshold  = "reduction below configured threshold"
)

// Outcome is the result of a completed (non-error) run.
type Outcome struct {
	Status  Status
	Reason  string
	Branch  string
	Commit  string
	Results []compress.Result
}

// Cloner obtains the working copy, optionally deferring to a fallback queue.
type Cloner interface {
	Obtain(ctx context.Context, url, path string, creds workspace.CredentialsProvider, fallback *queue.Job) (*workspace.WorkingCopy, bool, error)
}

// InspectFunc classifies the remote before any clone is used further.
type InspectFunc func(ctx context.Context, remoteURL, branch string, creds workspace.CredentialsProvider) workspace.Eligibility

// Compressor fans compression out over the candidate set.
type Compressor interface {
	Compress(ctx context.Context, root string, paths []string, aggressive bool) []compress.Result
}

// Composer builds the signed commit on the working copy.
type Composer interface {
	Compose(wc *workspace.WorkingCopy, results []compress.Result, signer *commit.Signer) (*commit.Signed, error)
}

// Pusher publishes the finished branch.
type Pusher interface {
	Push(ctx context.Context, wc *workspace.WorkingCopy, branch string, creds workspace.CredentialsProvider) error
}

// Pipeline wires the stages together. Construct it with New, which fills in
// the production stages; tests overwrite individual fields with fakes. An
// empty Branch or Now falls back to the defaults inside Run.
type Pipeline struct {
	Cloner    Cloner
	Inspect   InspectFunc
	Engine    Compressor
	Composer  Composer
	Publisher Pusher
	Branch    string
	Now       func() time.Time
}

// New returns a Pipeline with production stages. fallback may be nil when no
// queue is configured.
func New(fallback queue.Enqueuer) *Pipeline {
	return &Pipeline{
		Cloner:    &workspace.Coordinator{Fallback: fallback},
		Inspect:   workspace.Inspect,
		Engine:    compress.NewEngine(),
		Composer:  commit.NewComposer(),
		Publisher: publish.NewPublisher(),
	}
}

// Run executes one pipeline run. Short-circuit conditions return a
// StatusNoAction or StatusDeferred outcome; commit-composition and push
// failures return errors.
func (p *Pipeline) Run(ctx context.Context, params Params) (*Outcome, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	branch := p.Branch
	if branch == "" {
		branch = commit.BranchName
	}
	now := p.Now
	if now == nil {
		now = time.Now
	}

	// Parse the signing key before any network traffic; a bad key would
	// otherwise waste a clone.
	signer, err := commit.NewSigner(params.SigningKey, params.Passphrase)
	if err != nil {
		return nil, err
	}

	creds := params.Credentials()

	wc, deferred, err := p.Cloner.Obtain(ctx, params.CloneURL, params.WorkingPath, creds, params.Fallback)
	if errors.Is(err, workspace.ErrEmptyRemote) {
		return &Outcome{Status: StatusNoAction, Reason: ReasonEmptyRepository}, nil
	}
	if err != nil {
		return nil, err
	}
	if deferred {
		return &Outcome{Status: StatusDeferred}, nil
	}

	switch state := p.Inspect(ctx, params.CloneURL, branch, creds); state {
	case workspace.Empty:
		return &Outcome{Status: StatusNoAction, Reason: ReasonEmptyRepository}, nil
	case workspace.BranchAlreadyExists:
		return &Outcome{Status: StatusNoAction, Reason: ReasonBranchExists}, nil
	}

	cfg := repoconfig.Load(wc.Path)

	policy, err := schedule.ParsePolicy(cfg.Schedule)
	if err != nil {
		log.Warn("unrecognized schedule policy, running unthrottled", "error", err)
	}
	var lastRun time.Time
	if last, ok, err := schedule.LastRun(wc.Repo, commit.BotEmail); err != nil {
		log.Warn("could not determine last optimization, assuming none", "error", err)
	} else if ok {
		lastRun = last
	}
	if !schedule.Due(policy, lastRun, now()) {
		return &Outcome{Status: StatusNoAction, Reason: ReasonNotDue}, nil
	}

	paths, err := compress.Discover(wc.Path, cfg.IgnoredFiles)
	if err != nil {
		return nil, err
	}
	log.Info("discovered candidates", "repo", params.Owner+"/"+params.Name, "count", len(paths))

	results := p.Engine.Compress(ctx, wc.Path, paths, cfg.AggressiveCompression)
	if len(results) == 0 {
		return &Outcome{Status: StatusNoAction, Reason: ReasonNothingShrank}, nil
	}

	if cfg.MinKBReduced > 0 {
		before, after := compress.Total(results)
		if float64(before-after)/1024 < cfg.MinKBReduced {
			return &Outcome{Status: StatusNoAction, Reason: ReasonBelowThreshold, Results: results}, nil
		}
	}

	signed, err := p.Composer.Compose(wc, results, signer)
	if err != nil {
		return nil, fmt.Errorf("compose commit: %w", err)
	}

	if err := p.Publisher.Push(ctx, wc, signed.Branch, creds); err != nil {
		return nil, err
	}

	return &Outcome{
		Status:  StatusPushed,
		Branch:  signed.Branch,
		Commit:  signed.Hash.String(),
		Results: results,
	}, nil
}
