package cli

import (
	"github.com/roach88/docharness/internal/config"
	"github.com/roach88/docharness/internal/harness"
)

// builtinSuiteLabel names the bundled suite in messages.
const builtinSuiteLabel = "<builtin>"

// loadSuite loads the suite at path, or the bundled suite when path is
// empty, and fills tool settings the suite leaves unset from cfg.
func loadSuite(path string, cfg *config.Config) (*harness.Suite, error) {
	var suite *harness.Suite
	var err error
	if path == "" {
		suite, err = harness.BuiltinSuite()
	} else {
		suite, err = harness.LoadSuite(path)
	}
	if err != nil {
		return nil, err
	}

	if cfg != nil {
		cfg.ApplyToSuite(suite)
	}
	return suite, nil
}

// suiteLabel returns a display name for a suite argument.
func suiteLabel(path string) string {
	if path == "" {
		return builtinSuiteLabel
	}
	return path
}

// optionalArg returns the first argument, or "".
func optionalArg(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}

// reportLoadError writes a suite load failure and returns a command error.
// Only the validate command treats an invalid suite as a plain failure.
func reportLoadError(f *OutputFormatter, path string, err error) error {
	if outErr := f.Error(ErrCodeSuiteLoad, err.Error(), map[string]string{"suite": suiteLabel(path)}); outErr != nil {
		return outErr
	}
	return WrapExitError(ExitCommandError, "failed to load suite "+suiteLabel(path), err)
}
