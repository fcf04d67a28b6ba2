package harness

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/roach88/docharness/internal/proc"
)

// AssertionError is returned when a check fails.
// It carries enough context to debug the failure without re-running.
type AssertionError struct {
	Type     string // Check type for categorization
	Expected string // Human-readable expected outcome
	Actual   string // Human-readable actual outcome
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s", e.Actual)
	return buf.String()
}

// observation is what a finished invocation left behind.
type observation struct {
	invocation *proc.Result
	stdout     string // NFC-normalized
	stderr     string // NFC-normalized
}

func newObservation(inv *proc.Result) *observation {
	return &observation{
		invocation: inv,
		stdout:     norm.NFC.String(inv.Stdout),
		stderr:     norm.NFC.String(inv.Stderr),
	}
}

// assertStdoutContains checks that fragment occurs in stdout.
// In positive-offset mode the first occurrence must not start at byte 0.
func assertStdoutContains(obs *observation, fragment, mode string) error {
	idx := strings.Index(obs.stdout, norm.NFC.String(fragment))
	switch {
	case idx < 0:
		return &AssertionError{
			Type:     AssertStdoutContains,
			Expected: fmt.Sprintf("stdout to contain %q", fragment),
			Actual:   fmt.Sprintf("not found in %d bytes of stdout", len(obs.stdout)),
		}
	case idx == 0 && mode == MatchPositiveOffset:
		return &AssertionError{
			Type:     AssertStdoutContains,
			Expected: fmt.Sprintf("stdout to contain %q after offset 0", fragment),
			Actual:   "found only at the very start of stdout",
		}
	}
	return nil
}

// assertStdoutNotContains checks that fragment does not occur in stdout.
func assertStdoutNotContains(obs *observation, fragment string) error {
	if idx := strings.Index(obs.stdout, norm.NFC.String(fragment)); idx >= 0 {
		return &AssertionError{
			Type:     AssertStdoutNotContains,
			Expected: fmt.Sprintf("stdout not to contain %q", fragment),
			Actual:   fmt.Sprintf("found at byte offset %d", idx),
		}
	}
	return nil
}

// assertStderrContains checks that fragment occurs in stderr.
func assertStderrContains(obs *observation, fragment string) error {
	if !strings.Contains(obs.stderr, norm.NFC.String(fragment)) {
		return &AssertionError{
			Type:     AssertStderrContains,
			Expected: fmt.Sprintf("stderr to contain %q", fragment),
			Actual:   fmt.Sprintf("not found in %d bytes of stderr", len(obs.stderr)),
		}
	}
	return nil
}

// assertExitCode checks the tool's exit code.
func assertExitCode(obs *observation, code int) error {
	if obs.invocation.ExitCode != code {
		return &AssertionError{
			Type:     AssertExitCode,
			Expected: fmt.Sprintf("exit code %d", code),
			Actual:   fmt.Sprintf("exit code %d", obs.invocation.ExitCode),
		}
	}
	return nil
}

// assertDirExists checks that path exists and is a directory.
// display is the path as written in the scenario.
func assertDirExists(display, path string) error {
	info, err := os.Stat(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return &AssertionError{
			Type:     AssertDirExists,
			Expected: fmt.Sprintf("directory %s to exist", display),
			Actual:   "not found",
		}
	case err != nil:
		return &AssertionError{
			Type:     AssertDirExists,
			Expected: fmt.Sprintf("directory %s to exist", display),
			Actual:   fmt.Sprintf("stat error: %v", err),
		}
	case !info.IsDir():
		return &AssertionError{
			Type:     AssertDirExists,
			Expected: fmt.Sprintf("directory %s to exist", display),
			Actual:   "exists but is not a directory",
		}
	}
	return nil
}

// assertDirAbsent checks that nothing exists at path.
func assertDirAbsent(display, path string) error {
	_, err := os.Stat(path)
	switch {
	case err == nil:
		return &AssertionError{
			Type:     AssertDirAbsent,
			Expected: fmt.Sprintf("%s not to exist", display),
			Actual:   "exists",
		}
	case !errors.Is(err, fs.ErrNotExist):
		return &AssertionError{
			Type:     AssertDirAbsent,
			Expected: fmt.Sprintf("%s not to exist", display),
			Actual:   fmt.Sprintf("stat error: %v", err),
		}
	}
	return nil
}

// assertFileExists checks that path exists and is a regular file.
func assertFileExists(display, path string) error {
	info, err := os.Stat(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return &AssertionError{
			Type:     AssertFileExists,
			Expected: fmt.Sprintf("file %s to exist", display),
			Actual:   "not found",
		}
	case err != nil:
		return &AssertionError{
			Type:     AssertFileExists,
			Expected: fmt.Sprintf("file %s to exist", display),
			Actual:   fmt.Sprintf("stat error: %v", err),
		}
	case !info.Mode().IsRegular():
		return &AssertionError{
			Type:     AssertFileExists,
			Expected: fmt.Sprintf("file %s to exist", display),
			Actual:   fmt.Sprintf("exists but is a %s", info.Mode().Type()),
		}
	}
	return nil
}
