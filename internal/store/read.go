package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Run is a stored suite run.
type Run struct {
	ID         string           `json:"id"`
	Suite      string           `json:"suite"`
	StartedAt  time.Time        `json:"started_at"`
	FinishedAt time.Time        `json:"finished_at"`
	Total      int              `json:"total"`
	Passed     int              `json:"passed"`
	Failed     int              `json:"failed"`
	TimedOut   int              `json:"timed_out"`
	Errored    int              `json:"errored"`
	Scenarios  []ScenarioRecord `json:"scenarios,omitempty"`
}

// Pass reports whether every scenario of the run passed.
func (r *Run) Pass() bool {
	return r.Passed == r.Total
}

// ScenarioRecord is a stored scenario result.
type ScenarioRecord struct {
	RunID    string        `json:"run_id"`
	Seq      int           `json:"seq"`
	Scenario string        `json:"scenario"`
	Status   string        `json:"status"`
	ExitCode int           `json:"exit_code"`
	Checks   int           `json:"checks"`
	Duration time.Duration `json:"duration"`
	Command  string        `json:"command"`
	Failures []string      `json:"failures"`
	Stdout   string        `json:"stdout,omitempty"`
	Stderr   string        `json:"stderr,omitempty"`
}

const runColumns = `id, suite, started_at, finished_at, total, passed, failed, timed_out, errored`

const scenarioColumns = `run_id, seq, scenario, status, exit_code, checks, duration_ms, command, failures, stdout, stderr`

// ListRuns returns the most recent runs, newest first, without scenario
// records. A limit of zero or less returns every run.
//
// Returns an empty slice (not nil) if no runs exist.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs ORDER BY started_at DESC, id COLLATE BINARY ASC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// GetRun returns a run with its scenario records in run order.
// Returns an error wrapping ErrNotFound if the run does not exist.
func (s *Store) GetRun(ctx context.Context, id string) (*Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+scenarioColumns+`
		FROM scenario_results
		WHERE run_id = ?
		ORDER BY seq ASC
	`, id)
	if err != nil {
		return nil, fmt.Errorf("query scenario results: %w", err)
	}
	defer rows.Close()

	run.Scenarios, err = scanScenarioRecords(rows)
	if err != nil {
		return nil, err
	}
	return &run, nil
}

// ScenarioHistory returns the most recent records for one scenario across
// runs, newest first.
func (s *Store) ScenarioHistory(ctx context.Context, scenario string, limit int) ([]ScenarioRecord, error) {
	query := `
		SELECT sr.run_id, sr.seq, sr.scenario, sr.status, sr.exit_code, sr.checks,
		       sr.duration_ms, sr.command, sr.failures, sr.stdout, sr.stderr
		FROM scenario_results sr
		JOIN runs r ON sr.run_id = r.id
		WHERE sr.scenario = ?
		ORDER BY r.started_at DESC, r.id COLLATE BINARY ASC`
	args := []any{scenario}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query scenario history: %w", err)
	}
	defer rows.Close()

	return scanScenarioRecords(rows)
}

// scanner is implemented by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (Run, error) {
	var run Run
	var started, finished string
	err := sc.Scan(
		&run.ID,
		&run.Suite,
		&started,
		&finished,
		&run.Total,
		&run.Passed,
		&run.Failed,
		&run.TimedOut,
		&run.Errored,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, err
	}
	if err != nil {
		return Run{}, fmt.Errorf("scan run: %w", err)
	}

	if run.StartedAt, err = parseTime(started); err != nil {
		return Run{}, err
	}
	if run.FinishedAt, err = parseTime(finished); err != nil {
		return Run{}, err
	}
	return run, nil
}

func scanScenarioRecords(rows *sql.Rows) ([]ScenarioRecord, error) {
	records := []ScenarioRecord{}
	for rows.Next() {
		var rec ScenarioRecord
		var durationMS int64
		var failures string
		err := rows.Scan(
			&rec.RunID,
			&rec.Seq,
			&rec.Scenario,
			&rec.Status,
			&rec.ExitCode,
			&rec.Checks,
			&durationMS,
			&rec.Command,
			&failures,
			&rec.Stdout,
			&rec.Stderr,
		)
		if err != nil {
			return nil, fmt.Errorf("scan scenario result: %w", err)
		}
		rec.Duration = time.Duration(durationMS) * time.Millisecond
		if rec.Failures, err = unmarshalFailures(failures); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate scenario results: %w", err)
	}
	return records, nil
}
