package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/optibot-run/optibot/pkg/compress"
	"github.com/optibot-run/optibot/pkg/log"
	"github.com/optibot-run/optibot/pkg/logs/redact"
	"github.com/optibot-run/optibot/pkg/preflight"
	"github.com/optibot-run/optibot/pkg/pullrequest"
	"github.com/optibot-run/optibot/pkg/queue"
	"github.com/optibot-run/optibot/pkg/run"
)

var cloneURL string
var workingPath string
var repoOwner string
var repoName string
var signingKeyPath string
var openPR bool
var skipPreflight bool
var keepWorkingCopy bool
var logLevel string

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Optimize one repository's images and push a signed commit",
	Long: `Clone the repository, compress its images, and push the result as a
single PGP-signed commit on the optibot branch.

Credentials come from the environment: OPTIBOT_TOKEN for git and GitHub
access, OPTIBOT_PASSPHRASE for an encrypted signing key. The fallback queue
is picked up from OPTIBOT_QUEUE_* when set.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		log.Init(log.Config{Level: log.Level(logLevel)})
		defer log.Sync()

		owner, name := repoOwner, repoName
		if owner == "" || name == "" {
			inferredOwner, inferredName, err := splitRepoPath(cloneURL)
			if err != nil {
				return err
			}
			if owner == "" {
				owner = inferredOwner
			}
			if name == "" {
				name = inferredName
			}
		}

		key, err := os.ReadFile(signingKeyPath)
		if err != nil {
			return fmt.Errorf("read signing key: %w", err)
		}

		token := os.Getenv("OPTIBOT_TOKEN")
		passphrase := os.Getenv("OPTIBOT_PASSPHRASE")

		queueCfg := queue.ConfigFromEnv()

		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}

		checker := preflight.NewChecker(preflight.Config{
			Skip:        skipPreflight,
			SigningKey:  string(key),
			Passphrase:  passphrase,
			WorkingPath: workingPath,
			Queue:       queueCfg,
		})
		if err := checker.Run(ctx); err != nil {
			return err
		}

		var enqueuer queue.Enqueuer
		var fallback *queue.Job
		if queueCfg.Configured() {
			oq, err := queue.NewObjectQueue(queueCfg)
			if err != nil {
				return fmt.Errorf("fallback queue: %w", err)
			}
			enqueuer = oq
			fallback = &queue.Job{CloneURL: cloneURL, Owner: owner, Name: name}
		}

		params := run.Params{
			CloneURL:    cloneURL,
			WorkingPath: workingPath,
			Owner:       owner,
			Name:        name,
			Token:       token,
			SigningKey:  string(key),
			Passphrase:  passphrase,
			Fallback:    fallback,
		}

		if !keepWorkingCopy {
			defer os.RemoveAll(workingPath)
		}

		scrubber := redact.New(redact.DefaultReplacement)
		outcome, err := run.New(enqueuer).Run(ctx, params)
		if err != nil {
			return fmt.Errorf("%s", scrubber.ScrubError(err))
		}

		switch outcome.Status {
		case run.StatusPushed:
			before, after := compress.Total(outcome.Results)
			fmt.Printf("pushed %s to %s (%d files, %.2fkb -> %.2fkb)\n",
				outcome.Commit, outcome.Branch, len(outcome.Results),
				float64(before)/1024, float64(after)/1024)
		case run.StatusDeferred:
			fmt.Println("clone failed, run handed to fallback queue")
			return nil
		case run.StatusNoAction:
			fmt.Printf("no action: %s\n", outcome.Reason)
			return nil
		}

		if openPR {
			if token == "" {
				return fmt.Errorf("--open-pr requires OPTIBOT_TOKEN")
			}
			opener := pullrequest.NewOpener(ctx, token, owner, name)
			url, err := opener.Open(ctx, outcome.Branch, "", prBody(outcome.Results))
			if err != nil {
				return fmt.Errorf("%s", scrubber.ScrubError(err))
			}
			fmt.Printf("pull request: %s\n", url)
		}
		return nil
	},
}

var rootCmd = &cobra.Command{
	Use:   "optibot",
	Short: "optibot compresses repository images and pushes the savings as a signed commit.",
}

// splitRepoPath infers owner and name from the last two path segments of a
// clone URL, e.g. https://github.com/acme/site.git -> acme, site.
func splitRepoPath(url string) (string, string, error) {
	trimmed := strings.TrimSuffix(strings.TrimSuffix(url, "/"), ".git")
	parts := strings.Split(trimmed, "/")
	if len(parts) < 2 || parts[len(parts)-1] == "" || parts[len(parts)-2] == "" {
		return "", "", fmt.Errorf("cannot infer owner/name from %q, pass --owner and --name", url)
	}
	owner := parts[len(parts)-2]
	// scp-like syntax: git@github.com:acme/site
	if i := strings.LastIndex(owner, ":"); i >= 0 {
		owner = owner[i+1:]
	}
	return owner, parts[len(parts)-1], nil
}

func prBody(results []compress.Result) string {
	before, after := compress.Total(results)
	var b strings.Builder
	fmt.Fprintf(&b, "Compressed %d image(s), %.2fkb -> %.2fkb.\n\n", len(results), float64(before)/1024, float64(after)/1024)
	for _, r := range results {
		fmt.Fprintf(&b, "- `%s` %.2fkb -> %.2fkb\n", r.Path, float64(r.SizeBefore)/1024, float64(r.SizeAfter)/1024)
	}
	return b.String()
}

func init() {
	runCmd.Flags().StringVarP(&cloneURL, "repo", "r", "", "Clone URL of the repository to optimize")
	runCmd.Flags().StringVarP(&workingPath, "workdir", "w", "", "Path for the working copy (must not exist)")
	runCmd.Flags().StringVar(&repoOwner, "owner", "", "Repository owner (inferred from --repo when omitted)")
	runCmd.Flags().StringVar(&repoName, "name", "", "Repository name (inferred from --repo when omitted)")
	runCmd.Flags().StringVarP(&signingKeyPath, "signing-key", "k", "", "Path to the armored OpenPGP private key")
	runCmd.Flags().BoolVar(&openPR, "open-pr", false, "Open a pull request for the pushed branch")
	runCmd.Flags().BoolVar(&skipPreflight, "skip-preflight", false, "Skip environment preflight checks")
	runCmd.Flags().BoolVar(&keepWorkingCopy, "keep", false, "Keep the working copy after the run")
	runCmd.Flags().StringVar(&logLevel, "log-level", "info", "Log level: debug, info, warn, error")
	runCmd.MarkFlagRequired("repo")
	runCmd.MarkFlagRequired("workdir")
	runCmd.MarkFlagRequired("signing-key")
	rootCmd.AddCommand(runCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
