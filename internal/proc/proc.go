package proc

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"
)

// waitDelay bounds how long Wait blocks on output pipes after the child was
// killed. Grandchildren that escaped the process group may hold them open.
const waitDelay = 5 * time.Second

// Spec describes one child process invocation.
type Spec struct {
	// Command is the executable followed by fixed leading arguments
	// (e.g. ["npx", "grunt"]).
	Command []string

	// Args are appended after Command.
	Args []string

	// Dir is the working directory. Empty means the current directory.
	Dir string

	// Env entries ("KEY=value") are appended to the parent environment.
	Env []string

	// Timeout kills the child when exceeded. Zero disables the timeout.
	Timeout time.Duration
}

// Argv returns the full argument vector.
func (s Spec) Argv() []string {
	argv := make([]string, 0, len(s.Command)+len(s.Args))
	argv = append(argv, s.Command...)
	return append(argv, s.Args...)
}

// String renders the command line for diagnostics.
func (s Spec) String() string {
	return strings.Join(s.Argv(), " ")
}

// Result is the outcome of one child process run.
type Result struct {
	ExitCode int           `json:"exit_code"`
	Stdout   string        `json:"stdout"`
	Stderr   string        `json:"stderr"`
	Duration time.Duration `json:"duration"`
}

// Success reports whether the child exited with status 0.
func (r *Result) Success() bool {
	return r.ExitCode == 0
}

// LaunchError is returned when the child could not be started.
type LaunchError struct {
	Command string
	Err     error
}

func (e *LaunchError) Error() string {
	return fmt.Sprintf("failed to launch %q: %v", e.Command, e.Err)
}

func (e *LaunchError) Unwrap() error {
	return e.Err
}

// TimeoutError is returned when the child was killed after its timeout.
type TimeoutError struct {
	Command string
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%q did not finish within %s and was killed", e.Command, e.Timeout)
}

// Run starts the child described by spec, waits for it, and returns its
// captured output.
//
// A non-nil Result is returned whenever the child was started, including
// alongside a TimeoutError or a context error, so partial output remains
// available for diagnostics.
func Run(ctx context.Context, spec Spec) (*Result, error) {
	argv := spec.Argv()
	if len(argv) == 0 {
		return nil, &LaunchError{Err: errors.New("empty command")}
	}

	if spec.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, spec.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = spec.Dir
	if len(spec.Env) > 0 {
		cmd.Env = append(os.Environ(), spec.Env...)
	}
	configureProcessGroup(cmd)
	cmd.WaitDelay = waitDelay

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	if err := cmd.Start(); err != nil {
		// Start fails with the context error when ctx is already done.
		if ctxErr := ctx.Err(); ctxErr != nil {
			return &Result{ExitCode: -1}, contextError(ctxErr, spec)
		}
		return nil, &LaunchError{Command: spec.String(), Err: err}
	}

	waitErr := cmd.Wait()
	result := &Result{
		ExitCode: exitCode(cmd, waitErr),
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(start),
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		return result, contextError(ctxErr, spec)
	}

	var exitErr *exec.ExitError
	if waitErr != nil && !errors.As(waitErr, &exitErr) {
		return result, fmt.Errorf("wait for %q: %w", spec.String(), waitErr)
	}

	return result, nil
}

// contextError maps the expiry of the spec's own timeout to *TimeoutError
// and passes other context errors through.
func contextError(ctxErr error, spec Spec) error {
	if errors.Is(ctxErr, context.DeadlineExceeded) && spec.Timeout > 0 {
		return &TimeoutError{Command: spec.String(), Timeout: spec.Timeout}
	}
	return ctxErr
}

// exitCode extracts the exit status. A child terminated by a signal reports
// -1, which is never mistaken for success.
func exitCode(cmd *exec.Cmd, waitErr error) int {
	if cmd.ProcessState != nil {
		return cmd.ProcessState.ExitCode()
	}
	if waitErr != nil {
		return -1
	}
	return 0
}
