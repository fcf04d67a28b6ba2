package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/docharness/internal/harness"
)

// RecordRun stores a suite result and its scenario results in one
// transaction. Returns the generated run ID.
func (s *Store) RecordRun(ctx context.Context, sr *harness.SuiteResult) (string, error) {
	id := s.newID()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("record run: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs
		(id, suite, started_at, finished_at, total, passed, failed, timed_out, errored)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		id,
		sr.Suite,
		formatTime(sr.StartedAt),
		formatTime(sr.FinishedAt),
		sr.Total,
		sr.Passed,
		sr.Failed,
		sr.TimedOut,
		sr.Errored,
	)
	if err != nil {
		return "", fmt.Errorf("record run: %w", err)
	}

	for seq, r := range sr.Results {
		if err := insertScenarioResult(ctx, tx, id, seq, r); err != nil {
			return "", fmt.Errorf("record run: scenario %s: %w", r.Scenario, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("record run: commit: %w", err)
	}
	return id, nil
}

func insertScenarioResult(ctx context.Context, tx *sql.Tx, runID string, seq int, r *harness.Result) error {
	failures, err := marshalFailures(r.Errors)
	if err != nil {
		return err
	}

	var stdout, stderr string
	if r.Invocation != nil {
		stdout = r.Invocation.Stdout
		stderr = r.Invocation.Stderr
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO scenario_results
		(run_id, seq, scenario, status, exit_code, checks, duration_ms, command, failures, stdout, stderr)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		runID,
		seq,
		r.Scenario,
		string(r.Status),
		r.ExitCode(),
		r.Checks,
		r.Duration().Milliseconds(),
		r.Command,
		failures,
		stdout,
		stderr,
	)
	return err
}
