package harness

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"
)

// Executor runs a list of scenarios and aggregates their results.
type Executor struct {
	Runner *Runner

	// Parallel is the maximum number of scenarios in flight. Values below
	// two run sequentially. Scenarios whose paths overlap always run
	// sequentially.
	Parallel int

	Logger *slog.Logger
}

// RunSuite runs scenarios and returns results in declaration order.
//
// Scenario failures are reported in the SuiteResult, never as an error. The
// returned error is non-nil only when the build tool could not be launched
// or ctx was cancelled; the SuiteResult then holds the scenarios that
// finished before the abort.
func (e *Executor) RunSuite(ctx context.Context, suite string, scenarios []Scenario) (*SuiteResult, error) {
	logger := e.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	sr := &SuiteResult{Suite: suite, Results: make([]*Result, 0, len(scenarios))}
	sr.StartedAt = e.Runner.clock.Now()

	var results []*Result
	var err error
	if e.Parallel > 1 && len(scenarios) > 1 {
		if a, b, overlap := overlappingScenarios(e.Runner, scenarios); overlap {
			logger.Warn("scenarios share filesystem paths, running sequentially",
				"first", a, "second", b)
			results, err = e.runSequential(ctx, scenarios)
		} else {
			results, err = e.runParallel(ctx, scenarios)
		}
	} else {
		results, err = e.runSequential(ctx, scenarios)
	}

	for _, r := range results {
		if r != nil {
			sr.Add(r)
		}
	}
	sr.FinishedAt = e.Runner.clock.Now()

	logger.Info("suite finished",
		"suite", suite,
		"total", sr.Total,
		"passed", sr.Passed,
		"failed", sr.Failed,
		"timed_out", sr.TimedOut,
		"errored", sr.Errored,
	)
	return sr, err
}

func (e *Executor) runSequential(ctx context.Context, scenarios []Scenario) ([]*Result, error) {
	results := make([]*Result, 0, len(scenarios))
	for i := range scenarios {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		r, err := e.Runner.Run(ctx, &scenarios[i])
		if r != nil {
			results = append(results, r)
		}
		if err != nil {
			return results, err
		}
	}
	return results, nil
}

func (e *Executor) runParallel(ctx context.Context, scenarios []Scenario) ([]*Result, error) {
	results := make([]*Result, len(scenarios))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.Parallel)
	for i := range scenarios {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			r, err := e.Runner.Run(gctx, &scenarios[i])
			results[i] = r
			return err
		})
	}
	// Wait returns the first error, so a launch failure is reported ahead
	// of the cancellations it causes in sibling scenarios.
	err := g.Wait()
	return results, err
}

// overlappingScenarios returns the names of the first two scenarios whose
// paths are equal or nested, if any.
func overlappingScenarios(r *Runner, scenarios []Scenario) (string, string, bool) {
	owner := make(map[string]string)
	var paths []string
	for i := range scenarios {
		sc := &scenarios[i]
		for _, p := range sc.Paths() {
			abs := filepath.Clean(r.resolve(p))
			for _, other := range paths {
				if owner[other] != sc.Name && pathsOverlap(abs, other) {
					return owner[other], sc.Name, true
				}
			}
			if _, ok := owner[abs]; !ok {
				owner[abs] = sc.Name
				paths = append(paths, abs)
			}
		}
	}
	return "", "", false
}

// pathsOverlap reports whether a and b are the same path or one contains
// the other.
func pathsOverlap(a, b string) bool {
	if a == b {
		return true
	}
	sep := string(filepath.Separator)
	return strings.HasPrefix(a, strings.TrimSuffix(b, sep)+sep) ||
		strings.HasPrefix(b, strings.TrimSuffix(a, sep)+sep)
}
