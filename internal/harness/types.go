package harness

import (
	"time"

	"github.com/roach88/docharness/internal/proc"
)

// Status classifies the outcome of a scenario run.
type Status string

const (
	// StatusPassed means every check held and the exit code matched.
	StatusPassed Status = "passed"
	// StatusFailed means the tool ran to completion but a check failed.
	StatusFailed Status = "failed"
	// StatusTimeout means the tool was killed after the scenario timeout.
	StatusTimeout Status = "timeout"
	// StatusError means the tool could not be launched at all.
	StatusError Status = "error"
)

// Result is the outcome of a scenario execution.
type Result struct {
	// Scenario is the scenario name.
	Scenario string `json:"scenario"`

	// Status classifies the outcome.
	Status Status `json:"status"`

	// Pass indicates overall success.
	// True only if Status is StatusPassed.
	Pass bool `json:"pass"`

	// Checks is the number of checks executed.
	Checks int `json:"checks"`

	// Errors contains failure messages, one per failed check.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Command is the command line that was spawned.
	Command string `json:"command,omitempty"`

	// Invocation holds the captured exit code and output.
	// Nil if the tool could not be launched or its fixture failed.
	Invocation *proc.Result `json:"invocation,omitempty"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// NewResult creates a new passing result.
// Used as the starting point for scenario execution.
func NewResult(scenario string) *Result {
	return &Result{
		Scenario: scenario,
		Status:   StatusPassed,
		Pass:     true,
		Errors:   []string{},
	}
}

// AddError records a check failure and marks the result as failed.
// A timeout or launch error status is never downgraded to failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
	if r.Status == StatusPassed {
		r.Status = StatusFailed
	}
}

// SetStatus forces the status and records the reason.
func (r *Result) SetStatus(status Status, reason string) {
	r.Status = status
	r.Errors = append(r.Errors, reason)
	r.Pass = status == StatusPassed
}

// Duration returns the wall time spent on the scenario.
func (r *Result) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// ExitCode returns the tool's exit code, or -1 if it never ran.
func (r *Result) ExitCode() int {
	if r.Invocation == nil {
		return -1
	}
	return r.Invocation.ExitCode
}

// SuiteResult aggregates the results of a suite run.
type SuiteResult struct {
	Suite      string    `json:"suite"`
	Results    []*Result `json:"results"`
	Total      int       `json:"total"`
	Passed     int       `json:"passed"`
	Failed     int       `json:"failed"`
	TimedOut   int       `json:"timed_out"`
	Errored    int       `json:"errored"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// Add appends a scenario result and updates the counters.
func (s *SuiteResult) Add(r *Result) {
	s.Results = append(s.Results, r)
	s.Total++
	switch r.Status {
	case StatusPassed:
		s.Passed++
	case StatusTimeout:
		s.TimedOut++
	case StatusError:
		s.Errored++
	default:
		s.Failed++
	}
}

// Pass reports whether every scenario passed.
func (s *SuiteResult) Pass() bool {
	return s.Passed == s.Total
}
