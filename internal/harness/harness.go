package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/roach88/docharness/internal/proc"
)

// NoColorFlag is always passed to the build tool. Fragment checks are
// literal and would not survive ANSI escape sequences.
const NoColorFlag = "--no-color"

// DefaultTimeout bounds a scenario when neither the scenario nor the suite
// sets a timeout.
const DefaultTimeout = 5 * time.Minute

// Clock supplies wall time for result timestamps.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// Runner executes scenarios of one suite.
type Runner struct {
	tool    Tool
	plugin  string
	match   string
	timeout time.Duration
	golden  GoldenStore
	exprs   *ExprEvaluator
	logger  *slog.Logger
	clock   Clock
}

// Option configures a Runner.
type Option func(*Runner)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *slog.Logger) Option {
	return func(r *Runner) { r.logger = l }
}

// WithClock sets the clock used for result timestamps.
func WithClock(c Clock) Option {
	return func(r *Runner) { r.clock = c }
}

// WithGolden configures stdout_golden snapshots.
func WithGolden(g GoldenStore) Option {
	return func(r *Runner) { r.golden = g }
}

// NewRunner creates a runner for the suite's tool settings.
func NewRunner(suite *Suite, opts ...Option) (*Runner, error) {
	if len(suite.Tool.Command) == 0 {
		return nil, fmt.Errorf("suite %q: tool command is required", suite.Name)
	}
	if suite.Plugin == "" {
		return nil, fmt.Errorf("suite %q: plugin is required", suite.Name)
	}

	exprs, err := NewExprEvaluator()
	if err != nil {
		return nil, err
	}

	r := &Runner{
		tool:    suite.Tool,
		plugin:  suite.Plugin,
		match:   suite.Match,
		timeout: suite.Timeout.Std(),
		golden:  GoldenStore{Dir: DefaultGoldenDir},
		exprs:   exprs,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		clock:   systemClock{},
	}
	if r.match == "" {
		r.match = MatchContains
	}
	if r.timeout == 0 {
		r.timeout = DefaultTimeout
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Args returns the build tool arguments for a scenario.
func (r *Runner) Args(sc *Scenario) []string {
	return []string{r.plugin + ":" + sc.Name, NoColorFlag}
}

// resolve makes a scenario path relative to the tool working directory.
func (r *Runner) resolve(path string) string {
	if filepath.IsAbs(path) || r.tool.Dir == "" {
		return path
	}
	return filepath.Join(r.tool.Dir, path)
}

// Run executes one scenario and returns its result.
//
// The returned error is reserved for harness-level problems. A launch
// failure returns a StatusError result together with the *proc.LaunchError;
// cancellation returns the partial result with the context error. A tool
// that ran and failed is a normal result with Pass == false.
//
// Execution flow:
// 1. Remove the expected directory and clean paths; a path that cannot be
//    removed fails the scenario without spawning the tool
// 2. Check preconditions (expected directory absent)
// 3. Spawn "<tool> <plugin>:<name> --no-color" and wait
// 4. Check the exit code, logging stdout and stderr when it is nonzero
// 5. Evaluate every postcondition, collecting all failures
// 6. Compare the executed check count with the declared one
func (r *Runner) Run(ctx context.Context, sc *Scenario) (*Result, error) {
	result := NewResult(sc.Name)
	result.StartedAt = r.clock.Now()
	logger := r.logger.With("scenario", sc.Name)

	checks := 0
	if err := r.prepare(sc); err != nil {
		// The fixture is part of the scenario: report it and move on.
		if sc.ExpectedDirectory != "" {
			checks++
		}
		result.Checks = checks
		result.AddError("precondition: " + err.Error())
		result.FinishedAt = r.clock.Now()
		logger.Warn("scenario fixture could not be prepared", "error", err)
		return result, nil
	}

	if sc.ExpectedDirectory != "" {
		checks++
		if err := assertDirAbsent(sc.ExpectedDirectory, r.resolve(sc.ExpectedDirectory)); err != nil {
			result.AddError("precondition: " + err.Error())
		}
	}

	spec := proc.Spec{
		Command: r.tool.Command,
		Args:    r.Args(sc),
		Dir:     r.tool.Dir,
		Env:     r.tool.Env,
		Timeout: r.timeout,
	}
	if sc.Timeout > 0 {
		spec.Timeout = sc.Timeout.Std()
	}
	result.Command = spec.String()
	logger.Debug("spawning build tool", "command", result.Command, "timeout", spec.Timeout)

	inv, err := proc.Run(ctx, spec)
	result.Invocation = inv
	if err != nil {
		result.FinishedAt = r.clock.Now()
		result.Checks = checks

		var launchErr *proc.LaunchError
		var timeoutErr *proc.TimeoutError
		switch {
		case errors.As(err, &launchErr):
			result.SetStatus(StatusError, err.Error())
			logger.Error("build tool could not be launched", "command", result.Command, "error", err)
			return result, err
		case errors.As(err, &timeoutErr):
			result.SetStatus(StatusTimeout, err.Error())
			logger.Warn("build tool timed out",
				"timeout", timeoutErr.Timeout,
				"stdout", inv.Stdout,
				"stderr", inv.Stderr,
			)
			return result, nil
		default:
			result.SetStatus(StatusError, err.Error())
			return result, err
		}
	}

	if inv.ExitCode != 0 {
		logger.Warn("build tool exited with nonzero status",
			"exit_code", inv.ExitCode,
			"stdout", inv.Stdout,
			"stderr", inv.Stderr,
		)
	}
	if inv.ExitCode != sc.ExitCode {
		result.AddError(fmt.Sprintf("exit code %d, expected %d", inv.ExitCode, sc.ExitCode))
	}

	obs := newObservation(inv)
	for _, a := range r.postconditions(sc) {
		checks++
		if err := r.evaluate(sc, a, obs); err != nil {
			result.AddError(err.Error())
		}
	}

	result.Checks = checks
	if sc.Expect > 0 && checks != sc.Expect {
		result.AddError(fmt.Sprintf("executed %d checks, scenario declares %d", checks, sc.Expect))
	}

	result.FinishedAt = r.clock.Now()
	logger.Info("scenario finished",
		"status", result.Status,
		"exit_code", inv.ExitCode,
		"checks", result.Checks,
		"failures", len(result.Errors),
		"duration", inv.Duration,
	)
	return result, nil
}

// prepare removes paths the scenario must find absent.
func (r *Runner) prepare(sc *Scenario) error {
	paths := append([]string{}, sc.Clean...)
	if sc.ExpectedDirectory != "" {
		paths = append(paths, sc.ExpectedDirectory)
	}
	for _, p := range paths {
		if err := os.RemoveAll(r.resolve(p)); err != nil {
			return fmt.Errorf("failed to clean %s: %w", p, err)
		}
	}
	return nil
}

// postconditions expands a scenario into the checks evaluated after the run.
func (r *Runner) postconditions(sc *Scenario) []Assertion {
	checks := make([]Assertion, 0, sc.CheckCount())
	for _, fragment := range sc.StdoutContains {
		checks = append(checks, Assertion{Type: AssertStdoutContains, Value: fragment})
	}
	if sc.ExpectedDirectory != "" {
		checks = append(checks, Assertion{Type: AssertDirExists, Path: sc.ExpectedDirectory})
	}
	return append(checks, sc.Assertions...)
}

// evaluate runs a single check.
func (r *Runner) evaluate(sc *Scenario, a Assertion, obs *observation) error {
	switch a.Type {
	case AssertStdoutContains:
		return assertStdoutContains(obs, a.Value, r.match)
	case AssertStdoutNotContains:
		return assertStdoutNotContains(obs, a.Value)
	case AssertStderrContains:
		return assertStderrContains(obs, a.Value)
	case AssertDirExists:
		return assertDirExists(a.Path, r.resolve(a.Path))
	case AssertDirAbsent:
		return assertDirAbsent(a.Path, r.resolve(a.Path))
	case AssertFileExists:
		return assertFileExists(a.Path, r.resolve(a.Path))
	case AssertExitCode:
		return assertExitCode(obs, a.Code)
	case AssertExpr:
		return assertExpr(r.exprs, a.Expr, obs)
	case AssertStdoutGolden:
		return r.golden.Compare(sc.Name, []byte(obs.invocation.Stdout))
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
}
