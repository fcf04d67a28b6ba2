package cli

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/docharness/internal/harness"
	"github.com/roach88/docharness/internal/store"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Filter    string        // scenario filter (glob pattern)
	Parallel  int           // maximum concurrent scenarios
	Timeout   time.Duration // per-scenario timeout override
	Update    bool          // regenerate stdout_golden snapshots
	GoldenDir string        // snapshot directory
	NoHistory bool          // skip recording the run
	DB        string        // history database path
}

// RunReport is the payload of the run command.
type RunReport struct {
	RunID string `json:"run_id,omitempty"`
	*harness.SuiteResult
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run [suite-file]",
		Short: "Run scenarios against the build tool",
		Long: `Run every scenario of a suite by spawning

  <tool> <plugin>:<scenario> --no-color

and checking the output and filesystem effects of each invocation.
Without a suite file the bundled phpdocumentor suite is run.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (invalid suite, build tool cannot be launched, etc.)

Examples:
  docharness run
  docharness run --filter "testWith*"
  docharness run suites/smoke.yaml --parallel 4
  docharness run --update --format json`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSuite(opts, optionalArg(args), cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Filter, "filter", "", "filter scenarios by glob pattern")
	cmd.Flags().IntVar(&opts.Parallel, "parallel", 1, "maximum scenarios run concurrently")
	cmd.Flags().DurationVar(&opts.Timeout, "timeout", 0, "per-scenario timeout (overrides suite and config)")
	cmd.Flags().BoolVar(&opts.Update, "update", false, "regenerate stdout_golden snapshots")
	cmd.Flags().StringVar(&opts.GoldenDir, "golden-dir", harness.DefaultGoldenDir, "directory of stdout_golden snapshots")
	cmd.Flags().BoolVar(&opts.NoHistory, "no-history", false, "do not record the run in the history database")
	cmd.Flags().StringVar(&opts.DB, "db", "", "history database path (overrides config)")

	return cmd
}

func runSuite(opts *RunOptions, path string, cmd *cobra.Command) error {
	f := opts.formatter(cmd)
	logger := opts.logger(cmd.ErrOrStderr())

	cfg, err := opts.loadConfig(f)
	if err != nil {
		return err
	}

	suite, err := loadSuite(path, cfg)
	if err != nil {
		return reportLoadError(f, path, err)
	}

	// Explicit flags win over suite and config values.
	flags := cmd.Flags()
	parallel := cfg.Parallel
	if flags.Changed("parallel") {
		parallel = opts.Parallel
	}
	if parallel < 1 {
		return NewExitError(ExitCommandError, fmt.Sprintf("--parallel must be at least 1, got %d", parallel))
	}
	if flags.Changed("timeout") {
		if opts.Timeout <= 0 {
			return NewExitError(ExitCommandError, "--timeout must be positive")
		}
		suite.Timeout = harness.Duration(opts.Timeout)
	}
	goldenDir := cfg.Golden.Dir
	if flags.Changed("golden-dir") {
		goldenDir = opts.GoldenDir
	}
	record := cfg.History.Enabled
	dbPath := cfg.History.Path
	if flags.Changed("db") {
		record = true
		dbPath = opts.DB
	}
	if opts.NoHistory {
		record = false
	}

	scenarios, err := suite.Select(opts.Filter)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid --filter", err)
	}
	if len(scenarios) == 0 {
		if opts.Format == "json" {
			return f.Success(RunReport{SuiteResult: &harness.SuiteResult{Suite: suite.Name, Results: []*harness.Result{}}})
		}
		fmt.Fprintln(f.Writer, "No scenarios matched.")
		return nil
	}

	runner, err := harness.NewRunner(suite,
		harness.WithLogger(logger),
		harness.WithGolden(harness.GoldenStore{Dir: goldenDir, Update: opts.Update}),
	)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid suite settings", err)
	}

	f.VerboseLog("Running %d scenario(s) from %s (parallel %d)", len(scenarios), suiteLabel(path), parallel)

	executor := &harness.Executor{Runner: runner, Parallel: parallel, Logger: logger}
	sr, runErr := executor.RunSuite(cmd.Context(), suite.Name, scenarios)

	report := RunReport{SuiteResult: sr}
	if record && sr.Total > 0 {
		// Record even when interrupted; the finished scenarios are still history.
		id, err := recordRun(context.WithoutCancel(cmd.Context()), dbPath, sr)
		if err != nil {
			logger.Warn("failed to record run history", "path", dbPath, "error", err)
		} else {
			report.RunID = id
			f.VerboseLog("Recorded run %s in %s", id, dbPath)
		}
	}

	if runErr != nil {
		return outputRunAborted(f, report, runErr)
	}
	return outputRunReport(f, report)
}

// recordRun appends a suite result to the history database.
func recordRun(ctx context.Context, dbPath string, sr *harness.SuiteResult) (string, error) {
	s, err := store.Open(dbPath)
	if err != nil {
		return "", err
	}
	defer s.Close()
	return s.RecordRun(ctx, sr)
}

// outputRunReport writes the results and maps failures to exit code 1.
func outputRunReport(f *OutputFormatter, report RunReport) error {
	sr := report.SuiteResult
	failed := sr.Total - sr.Passed

	if f.Format == "json" {
		resp := CLIResponse{Status: "ok", Data: report}
		if failed > 0 {
			resp.Status = "error"
			resp.Error = &CLIError{
				Code:    ErrCodeScenariosFailed,
				Message: fmt.Sprintf("%d scenario(s) failed", failed),
			}
		}
		if err := f.Response(resp); err != nil {
			return err
		}
	} else {
		writeRunText(f.Writer, report, f.Verbose)
	}

	if failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d scenario(s) failed", failed))
	}
	return nil
}

// outputRunAborted reports a run cut short by a launch failure or
// cancellation.
func outputRunAborted(f *OutputFormatter, report RunReport, runErr error) error {
	if f.Format == "json" {
		err := f.Response(CLIResponse{
			Status: "error",
			Data:   report,
			Error:  &CLIError{Code: ErrCodeHarness, Message: runErr.Error()},
		})
		if err != nil {
			return err
		}
	} else {
		writeRunText(f.Writer, report, f.Verbose)
		fmt.Fprintf(f.Writer, "Aborted: %v\n", runErr)
	}
	return WrapExitError(ExitCommandError, "harness aborted", runErr)
}

func writeRunText(w io.Writer, report RunReport, verbose bool) {
	sr := report.SuiteResult
	for _, r := range sr.Results {
		extra := fmt.Sprintf("%d checks", r.Checks)
		if verbose {
			extra += fmt.Sprintf(", exit %d, %s", r.ExitCode(), r.Duration().Round(time.Millisecond))
		}
		writeScenarioLine(w, r.Pass, r.Scenario, string(r.Status), extra, r.Errors)
		if verbose && !r.Pass && r.Invocation != nil {
			writeOutputBlock(w, "stdout", r.Invocation.Stdout)
			writeOutputBlock(w, "stderr", r.Invocation.Stderr)
		}
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Summary: %d passed, %d failed, %d timed out, %d errored, %d total\n",
		sr.Passed, sr.Failed, sr.TimedOut, sr.Errored, sr.Total)
	if report.RunID != "" {
		fmt.Fprintf(w, "Run ID: %s\n", report.RunID)
	}
	if sr.Pass() {
		fmt.Fprintln(w, "✓ All scenarios passed")
	}
}

// writeScenarioLine prints one scenario with its failures indented below.
func writeScenarioLine(w io.Writer, pass bool, name, status, extra string, failures []string) {
	if pass {
		fmt.Fprintf(w, "✓ %s (%s)\n", name, extra)
		return
	}
	fmt.Fprintf(w, "✗ %s [%s] (%s)\n", name, status, extra)
	for _, failure := range failures {
		writeIndented(w, "    ", failure)
	}
}

func writeOutputBlock(w io.Writer, label, content string) {
	if content == "" {
		return
	}
	fmt.Fprintf(w, "    --- %s ---\n", label)
	writeIndented(w, "    ", strings.TrimRight(content, "\n"))
}

func writeIndented(w io.Writer, indent, text string) {
	for _, line := range strings.Split(text, "\n") {
		fmt.Fprintf(w, "%s%s\n", indent, line)
	}
}
