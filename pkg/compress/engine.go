// Package compress discovers candidate image assets in a working copy and
// compresses them concurrently. Each file is an independent failure domain:
// a per-file optimizer error is logged and excluded, never fatal to the
// batch.
package compress

import (
	"context"
	"path/filepath"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/optibot-run/optibot/pkg/log"
)

// Result records one file whose compressed size ended strictly smaller than
// the original. Immutable once created.
type Result struct {
	// Path is the slash-separated path relative to the repository root.
	Path       string
	SizeBefore int64
	SizeAfter  int64
}

// Saved returns the byte reduction.
func (r Result) Saved() int64 {
	return r.SizeBefore - r.SizeAfter
}

// Percent returns the reduction as a percentage of the original size.
func (r Result) Percent() float64 {
	if r.SizeBefore == 0 {
		return 0
	}
	return float64(r.Saved()) / float64(r.SizeBefore) * 100
}

// Total sums the before and after sizes across results.
func Total(results []Result) (before, after int64) {
	for _, r := range results {
		before += r.SizeBefore
		after += r.SizeAfter
	}
	return before, after
}

// DefaultWorkers bounds the compression fan-out.
const DefaultWorkers = 4

// Engine fans compression out across the discovered file set.
type Engine struct {
	Optimizer Optimizer
	// Workers limits concurrent optimizations; <=0 selects DefaultWorkers.
	Workers int
}

// NewEngine returns an Engine backed by the built-in codec optimizer.
func NewEngine() *Engine {
	return &Engine{Optimizer: &CodecOptimizer{}}
}

// Compress optimizes every path (relative to root) concurrently and returns
// the results ordered by path. Files the optimizer could not shrink are
// omitted; files it failed on are logged and omitted.
func (e *Engine) Compress(ctx context.Context, root string, paths []string, aggressive bool) []Result {
	workers := e.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}

	var (
		mu      sync.Mutex
		results []Result
	)

	g := new(errgroup.Group)
	g.SetLimit(workers)
	for _, rel := range paths {
		g.Go(func() error {
			abs := filepath.Join(root, filepath.FromSlash(rel))
			shrunk, before, after, err := e.Optimizer.Optimize(ctx, abs, aggressive)
			if err != nil {
				log.Warn("compression failed, skipping file", "path", rel, "error", err)
				return nil
			}
			if !shrunk {
				log.Debug("no reduction, leaving file untouched", "path", rel)
				return nil
			}

			mu.Lock()
			results = append(results, Result{Path: rel, SizeBefore: before, SizeAfter: after})
			mu.Unlock()
			return nil
		})
	}
	// Tasks swallow their own errors; Wait only joins the fan-out.
	_ = g.Wait()

	sort.Slice(results, func(i, j int) bool { return results[i].Path < results[j].Path })
	return results
}
