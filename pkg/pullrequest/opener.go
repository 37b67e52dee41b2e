// Package pullrequest opens a pull request for a pushed optimization branch.
// The step is optional and runs strictly after a successful push; the
// pipeline's all-or-nothing guarantee does not cover it.
package pullrequest

import (
	"context"
	"fmt"

	"github.com/google/go-github/v68/github"
	"golang.org/x/oauth2"

	"github.com/optibot-run/optibot/pkg/log"
)

// DefaultTitle is the PR title when the caller supplies none.
const DefaultTitle = "[optibot] optimize images"

// Opener creates pull requests on GitHub.
type Opener struct {
	client *github.Client
	owner  string
	repo   string
}

// NewOpener builds an Opener authenticated with a token.
func NewOpener(ctx context.Context, token, owner, repo string) *Opener {
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	tc := oauth2.NewClient(ctx, ts)
	return &Opener{client: github.NewClient(tc), owner: owner, repo: repo}
}

// NewOpenerForClient wires an existing client, used by tests.
func NewOpenerForClient(client *github.Client, owner, repo string) *Opener {
	return &Opener{client: client, owner: owner, repo: repo}
}

// Open creates a pull request from branch into the repository's default
// branch and returns its URL. Idempotent: when an open PR for the branch
// already exists, its URL is returned and nothing is created.
func (o *Opener) Open(ctx context.Context, branch, title, body string) (string, error) {
	if title == "" {
		title = DefaultTitle
	}

	repoInfo, _, err := o.client.Repositories.Get(ctx, o.owner, o.repo)
	if err != nil {
		return "", fmt.Errorf("get repository %s/%s: %w", o.owner, o.repo, err)
	}
	base := repoInfo.GetDefaultBranch()

	existing, _, err := o.client.PullRequests.List(ctx, o.owner, o.repo, &github.PullRequestListOptions{
		Head:  fmt.Sprintf("%s:%s", o.owner, branch),
		State: "open",
	})
	if err != nil {
		return "", fmt.Errorf("list pull requests: %w", err)
	}
	if len(existing) > 0 {
		url := existing[0].GetHTMLURL()
		log.Info("pull request already open", "branch", branch, "url", url)
		return url, nil
	}

	pr, _, err := o.client.PullRequests.Create(ctx, o.owner, o.repo, &github.NewPullRequest{
		Title:               github.Ptr(title),
		Head:                github.Ptr(branch),
		Base:                github.Ptr(base),
		Body:                github.Ptr(body),
		MaintainerCanModify: github.Ptr(true),
	})
	if err != nil {
		return "", fmt.Errorf("create pull request: %w", err)
	}

	url := pr.GetHTMLURL()
	log.Info("opened pull request", "branch", branch, "base", base, "url", url)
	return url, nil
}
