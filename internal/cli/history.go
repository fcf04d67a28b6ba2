package cli

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/docharness/internal/store"
)

// HistoryOptions holds flags for the history commands.
type HistoryOptions struct {
	*RootOptions
	DB       string // history database path
	Limit    int    // maximum rows listed
	Scenario string // show one scenario across runs
}

// NewHistoryCommand creates the history command and its show subcommand.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recorded suite runs",
		Long: `List recent suite runs from the history database, newest first.
With --scenario, list the recorded outcomes of one scenario instead.

Examples:
  docharness history
  docharness history --limit 5
  docharness history --scenario testWithTarget
  docharness history show <run-id>`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(opts, cmd)
		},
	}

	cmd.PersistentFlags().StringVar(&opts.DB, "db", "", "history database path (overrides config)")
	cmd.Flags().IntVar(&opts.Limit, "limit", 20, "maximum entries to list (0 for all)")
	cmd.Flags().StringVar(&opts.Scenario, "scenario", "", "list the history of one scenario")

	cmd.AddCommand(newHistoryShowCommand(opts))

	return cmd
}

func newHistoryShowCommand(opts *HistoryOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "show <run-id>",
		Short:         "Show one recorded run with its scenario results",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistoryShow(opts, args[0], cmd)
		},
	}
}

// openHistory opens the configured database. It returns a nil store when
// no database has been written yet.
func (o *HistoryOptions) openHistory(cmd *cobra.Command, f *OutputFormatter) (*store.Store, string, error) {
	path := o.DB
	if !cmd.Flags().Changed("db") {
		cfg, err := o.loadConfig(f)
		if err != nil {
			return nil, "", err
		}
		path = cfg.History.Path
	}

	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil, path, nil
	}

	s, err := store.Open(path)
	if err != nil {
		if outErr := f.Error(ErrCodeHistory, err.Error(), map[string]string{"db": path}); outErr != nil {
			return nil, path, outErr
		}
		return nil, path, WrapExitError(ExitCommandError, "failed to open history", err)
	}
	f.VerboseLog("Opened history %s", path)
	return s, path, nil
}

func runHistory(opts *HistoryOptions, cmd *cobra.Command) error {
	f := opts.formatter(cmd)
	if opts.Limit < 0 {
		return NewExitError(ExitCommandError, "--limit must not be negative")
	}

	s, _, err := opts.openHistory(cmd, f)
	if err != nil {
		return err
	}
	if s != nil {
		defer s.Close()
	}

	if opts.Scenario != "" {
		records := []store.ScenarioRecord{}
		if s != nil {
			records, err = s.ScenarioHistory(cmd.Context(), opts.Scenario, opts.Limit)
			if err != nil {
				return historyError(f, err)
			}
		}
		if opts.Format == "json" {
			return f.Success(records)
		}
		writeScenarioHistoryText(f.Writer, opts.Scenario, records)
		return nil
	}

	runs := []store.Run{}
	if s != nil {
		runs, err = s.ListRuns(cmd.Context(), opts.Limit)
		if err != nil {
			return historyError(f, err)
		}
	}
	if opts.Format == "json" {
		return f.Success(runs)
	}
	writeRunsText(f.Writer, runs)
	return nil
}

func runHistoryShow(opts *HistoryOptions, id string, cmd *cobra.Command) error {
	f := opts.formatter(cmd)

	s, path, err := opts.openHistory(cmd, f)
	if err != nil {
		return err
	}
	if s == nil {
		return notFound(f, id, fmt.Errorf("run %s: %w (no history at %s)", id, store.ErrNotFound, path))
	}
	defer s.Close()

	run, err := s.GetRun(cmd.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		return notFound(f, id, err)
	}
	if err != nil {
		return historyError(f, err)
	}

	if opts.Format == "json" {
		return f.Success(run)
	}
	writeRunDetailText(f.Writer, run, opts.Verbose)
	return nil
}

func notFound(f *OutputFormatter, id string, err error) error {
	if outErr := f.Error(ErrCodeNotFound, err.Error(), map[string]string{"run_id": id}); outErr != nil {
		return outErr
	}
	return WrapExitError(ExitCommandError, "run not found", err)
}

func historyError(f *OutputFormatter, err error) error {
	if outErr := f.Error(ErrCodeHistory, err.Error(), nil); outErr != nil {
		return outErr
	}
	return WrapExitError(ExitCommandError, "failed to read history", err)
}

func writeRunsText(w io.Writer, runs []store.Run) {
	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs recorded.")
		return
	}
	for _, r := range runs {
		mark := "✓"
		if !r.Pass() {
			mark = "✗"
		}
		fmt.Fprintf(w, "%s %-36s  %-16s  %s  %d/%d passed\n",
			mark, r.ID, r.Suite, r.StartedAt.UTC().Format(time.RFC3339), r.Passed, r.Total)
	}
}

func writeScenarioHistoryText(w io.Writer, scenario string, records []store.ScenarioRecord) {
	if len(records) == 0 {
		fmt.Fprintf(w, "No history for scenario %s.\n", scenario)
		return
	}
	fmt.Fprintf(w, "History of %s\n\n", scenario)
	for _, rec := range records {
		fmt.Fprintf(w, "  %-36s  %-8s  exit %-3d  %s\n", rec.RunID, rec.Status, rec.ExitCode, rec.Duration)
	}
}

func writeRunDetailText(w io.Writer, run *store.Run, verbose bool) {
	fmt.Fprintf(w, "Run %s (%s)\n", run.ID, run.Suite)
	fmt.Fprintf(w, "Started:  %s\n", run.StartedAt.UTC().Format(time.RFC3339))
	fmt.Fprintf(w, "Finished: %s\n", run.FinishedAt.UTC().Format(time.RFC3339))
	fmt.Fprintf(w, "Result:   %d/%d passed, %d failed, %d timed out, %d errored\n\n",
		run.Passed, run.Total, run.Failed, run.TimedOut, run.Errored)

	for _, rec := range run.Scenarios {
		extra := fmt.Sprintf("%d checks, exit %d, %s", rec.Checks, rec.ExitCode, rec.Duration)
		writeScenarioLine(w, rec.Status == "passed", rec.Scenario, rec.Status, extra, rec.Failures)
		if verbose && rec.Status != "passed" {
			fmt.Fprintf(w, "    $ %s\n", rec.Command)
			writeOutputBlock(w, "stdout", rec.Stdout)
			writeOutputBlock(w, "stderr", rec.Stderr)
		}
	}
}
