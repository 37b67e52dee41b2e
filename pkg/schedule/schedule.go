// Package schedule decides whether an optimization run is due for a
// repository, based on its configured policy and the timestamp of the most
// recent prior bot commit in history.
package schedule

import (
	"errors"
	"fmt"
	"strings"
	"time"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/storer"
)

// Policy is a throttle on how often the bot commits to a repository.
type Policy int

const (
	// PolicyAlways runs on every eligible invocation.
	PolicyAlways Policy = iota
	// PolicyDaily runs at most once per day.
	PolicyDaily
	// PolicyWeekly runs at most once per week.
	PolicyWeekly
	// PolicyMonthly runs at most once per 30 days.
	PolicyMonthly
)

func (p Policy) String() string {
	switch p {
	case PolicyAlways:
		return "always"
	case PolicyDaily:
		return "daily"
	case PolicyWeekly:
		return "weekly"
	case PolicyMonthly:
		return "monthly"
	default:
		return "unknown"
	}
}

// Interval returns the minimum gap between runs under the policy.
func (p Policy) Interval() time.Duration {
	switch p {
	case PolicyDaily:
		return 24 * time.Hour
	case PolicyWeekly:
		return 7 * 24 * time.Hour
	case PolicyMonthly:
		return 30 * 24 * time.Hour
	default:
		return 0
	}
}

// ParsePolicy maps the configuration string to a Policy. An empty string is
// PolicyAlways. Unknown values return PolicyAlways and an error so callers
// can log and fall back without aborting.
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "always":
		return PolicyAlways, nil
	case "daily":
		return PolicyDaily, nil
	case "weekly":
		return PolicyWeekly, nil
	case "monthly":
		return PolicyMonthly, nil
	default:
		return PolicyAlways, fmt.Errorf("unknown schedule policy %q", s)
	}
}

// Due reports whether a run is due at now, given the policy and the time of
// the last prior optimization. A zero lastRun means no prior optimization
// exists and the run is always due.
func Due(policy Policy, lastRun, now time.Time) bool {
	if lastRun.IsZero() {
		return true
	}
	if policy == PolicyAlways {
		return true
	}
	return now.Sub(lastRun) >= policy.Interval()
}

// LastRun walks the history from HEAD and returns the committer timestamp of
// the most recent commit authored with authorEmail, or ok=false when none
// exists.
func LastRun(repo *git.Repository, authorEmail string) (time.Time, bool, error) {
	head, err := repo.Head()
	if err != nil {
		return time.Time{}, false, fmt.Errorf("resolve HEAD: %w", err)
	}

	iter, err := repo.Log(&git.LogOptions{From: head.Hash()})
	if err != nil {
		return time.Time{}, false, fmt.Errorf("walk history: %w", err)
	}
	defer iter.Close()

	var found time.Time
	errFound := errors.New("found")
	err = iter.ForEach(func(c *object.Commit) error {
		if c.Author.Email == authorEmail {
			found = c.Committer.When
			return errFound
		}
		return nil
	})
	if err != nil && !errors.Is(err, errFound) && !errors.Is(err, storer.ErrStop) {
		return time.Time{}, false, fmt.Errorf("walk history: %w", err)
	}

	if found.IsZero() {
		return time.Time{}, false, nil
	}
	return found, true, nil
}
