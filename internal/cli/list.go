package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

// ListEntry describes one scenario in list output.
type ListEntry struct {
	Name              string `json:"name"`
	Description       string `json:"description,omitempty"`
	Checks            int    `json:"checks"`
	ExpectedDirectory string `json:"expected_directory,omitempty"`
}

// ListResult is the payload of the list command.
type ListResult struct {
	Suite     string      `json:"suite"`
	Plugin    string      `json:"plugin"`
	Scenarios []ListEntry `json:"scenarios"`
}

// NewListCommand creates the list command.
func NewListCommand(rootOpts *RootOptions) *cobra.Command {
	var filter string

	cmd := &cobra.Command{
		Use:   "list [suite-file]",
		Short: "List the scenarios of a suite",
		Long: `List scenario names with their check counts and the directory each
one is expected to create. Nothing is executed.

Examples:
  docharness list
  docharness list suites/smoke.yaml --filter "testFor*"`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(rootOpts, optionalArg(args), filter, cmd)
		},
	}

	cmd.Flags().StringVar(&filter, "filter", "", "filter scenarios by glob pattern")

	return cmd
}

func runList(opts *RootOptions, path, filter string, cmd *cobra.Command) error {
	f := opts.formatter(cmd)

	cfg, err := opts.loadConfig(f)
	if err != nil {
		return err
	}

	suite, err := loadSuite(path, cfg)
	if err != nil {
		return reportLoadError(f, path, err)
	}

	scenarios, err := suite.Select(filter)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid --filter", err)
	}

	result := ListResult{
		Suite:     suite.Name,
		Plugin:    suite.Plugin,
		Scenarios: make([]ListEntry, 0, len(scenarios)),
	}
	for i := range scenarios {
		sc := &scenarios[i]
		result.Scenarios = append(result.Scenarios, ListEntry{
			Name:              sc.Name,
			Description:       sc.Description,
			Checks:            sc.CheckCount(),
			ExpectedDirectory: sc.ExpectedDirectory,
		})
	}

	if opts.Format == "json" {
		return f.Success(result)
	}
	writeListText(f.Writer, result, opts.Verbose)
	return nil
}

func writeListText(w io.Writer, result ListResult, verbose bool) {
	fmt.Fprintf(w, "Suite %s (plugin %s, %d scenarios)\n\n", result.Suite, result.Plugin, len(result.Scenarios))
	for _, e := range result.Scenarios {
		line := fmt.Sprintf("  %-32s %2d checks", e.Name, e.Checks)
		if e.ExpectedDirectory != "" {
			line += "  creates " + e.ExpectedDirectory
		}
		fmt.Fprintln(w, line)
		if verbose && e.Description != "" {
			fmt.Fprintf(w, "      %s\n", e.Description)
		}
	}
}
