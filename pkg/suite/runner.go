package suite

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/devicelab-dev/guilocator/pkg/cache"
	"github.com/devicelab-dev/guilocator/pkg/logger"
)

// Runner checks a list of suites, optionally on several workers.
type Runner struct {
	Checker Checker

	// Workers is the number of suites checked at once. Values below 2
	// check suites one after another on Checker's caches.
	Workers int

	// Lookups sizes the element and finder layers each worker forks from
	// Checker.Caches. Parse and normalization results are shared.
	Lookups cache.Config
}

// RunResult aggregates the reports of one run, in suite order.
type RunResult struct {
	Reports      []*Report
	Suites       int
	FailedSuites int
	Passed       int
	Failed       int
	Duration     time.Duration // wall clock
}

// OK reports whether every case of every suite passed.
func (r *RunResult) OK() bool {
	return r.Failed == 0
}

// workItem is a suite and its position in the input.
type workItem struct {
	suite *Suite
	index int
}

// Run checks every suite. Workers pull from one queue until it is empty.
// The first suite-level error cancels the remaining work and is returned.
func (r *Runner) Run(ctx context.Context, suites []*Suite) (*RunResult, error) {
	if len(suites) == 0 {
		return nil, fmt.Errorf("no suites to check")
	}
	start := time.Now()

	workers := min(max(r.Workers, 1), len(suites))
	if workers == 1 {
		reports := make([]*Report, 0, len(suites))
		for _, s := range suites {
			rep, err := r.Checker.Run(ctx, s)
			if err != nil {
				return nil, err
			}
			reports = append(reports, rep)
		}
		return buildRunResult(reports, time.Since(start)), nil
	}

	parent := r.Checker.Caches
	if parent == nil {
		parent = cache.Default()
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	queue := make(chan workItem, len(suites))
	for i, s := range suites {
		queue <- workItem{suite: s, index: i}
	}
	close(queue)

	reports := make([]*Report, len(suites))
	var (
		wg       sync.WaitGroup
		errOnce  sync.Once
		firstErr error
	)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()

			// Each worker evaluates its own component trees.
			checker := r.Checker
			checker.Caches = parent.Fork(r.Lookups)

			for item := range queue {
				if ctx.Err() != nil {
					return
				}
				rep, err := checker.Run(ctx, item.suite)
				if err != nil {
					errOnce.Do(func() {
						logger.Error("worker %d: %s: %v", id, item.suite.SourcePath, err)
						firstErr = err
						cancel()
					})
					return
				}
				logger.Debug("worker %d: %s done", id, item.suite.SourcePath)
				reports[item.index] = rep
			}
		}(w)
	}
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return buildRunResult(reports, time.Since(start)), nil
}

func buildRunResult(reports []*Report, wallClock time.Duration) *RunResult {
	res := &RunResult{Reports: reports, Suites: len(reports), Duration: wallClock}
	for _, rep := range reports {
		res.Passed += rep.Passed
		res.Failed += rep.Failed
		if !rep.OK() {
			res.FailedSuites++
			logger.Warn("suite %s: %d case(s) failed", rep.Path, rep.Failed)
		}
	}
	return res
}
