package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// ValidationResult is the payload of a successful validate command.
type ValidationResult struct {
	Valid     bool   `json:"valid"`
	Suite     string `json:"suite"`
	File      string `json:"file"`
	Scenarios int    `json:"scenarios"`
	Checks    int    `json:"checks"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <suite-file>",
		Short: "Validate a suite file without running it",
		Long: `Parse a YAML or CUE suite file and check it against the suite schema.

Exit codes:
  0 - Suite is valid
  1 - Suite is invalid
  2 - Command error

Examples:
  docharness validate suites/phpdocumentor.yaml
  docharness validate suites/phpdocumentor.cue --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	f := opts.formatter(cmd)

	suite, err := loadSuite(path, nil)
	if err != nil {
		if outErr := f.Error(ErrCodeSuiteInvalid, err.Error(), map[string]string{"file": path}); outErr != nil {
			return outErr
		}
		return WrapExitError(ExitFailure, "suite is invalid", err)
	}

	result := ValidationResult{
		Valid:     true,
		Suite:     suite.Name,
		File:      path,
		Scenarios: len(suite.Scenarios),
	}
	for i := range suite.Scenarios {
		result.Checks += suite.Scenarios[i].CheckCount()
	}

	if opts.Format == "json" {
		return f.Success(result)
	}
	fmt.Fprintf(f.Writer, "✓ %s is valid (%d scenarios, %d checks)\n", path, result.Scenarios, result.Checks)
	return nil
}
