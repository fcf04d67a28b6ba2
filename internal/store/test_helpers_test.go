package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/roach88/docharness/internal/harness"
	"github.com/roach88/docharness/internal/proc"
	"github.com/roach88/docharness/internal/testutil"
)

// createTestStore creates a new store in a temporary directory with
// predictable run IDs.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "history.db")
	ids := testutil.NewSequentialIDs("run")
	s, err := Open(path, WithIDGenerator(ids.Generate))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestSuiteResult builds a suite result with one passing and one
// failing scenario, starting at start.
func createTestSuiteResult(suite string, start time.Time) *harness.SuiteResult {
	passed := harness.NewResult("testForList")
	passed.Checks = 9
	passed.Command = "grunt phpdocumentor:testForList --no-color"
	passed.Invocation = &proc.Result{ExitCode: 0, Stdout: "Running task\n  list  Lists commands\n"}
	passed.StartedAt = start
	passed.FinishedAt = start.Add(1500 * time.Millisecond)

	failed := harness.NewResult("testWithTarget")
	failed.Checks = 2
	failed.Command = "grunt phpdocumentor:testWithTarget --no-color"
	failed.Invocation = &proc.Result{ExitCode: 6, Stdout: "Warning: <target> missing", Stderr: "PHP Fatal error"}
	failed.AddError("exit code 6, expected 0")
	failed.AddError("Assertion failed: dir_exists\n  Expected: directory target/testWithTarget to exist\n  Actual: not found")
	failed.StartedAt = start.Add(2 * time.Second)
	failed.FinishedAt = start.Add(3 * time.Second)

	sr := &harness.SuiteResult{Suite: suite, StartedAt: start, FinishedAt: start.Add(3 * time.Second)}
	sr.Add(passed)
	sr.Add(failed)
	return sr
}
