package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/roach88/docharness/internal/testutil"
)

func TestRecordRun_RoundTrip(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	id, err := s.RecordRun(ctx, createTestSuiteResult("phpdocumentor", testutil.Epoch))
	if err != nil {
		t.Fatalf("RecordRun() failed: %v", err)
	}
	if id != "run-0001" {
		t.Errorf("id = %q, want run-0001", id)
	}

	run, err := s.GetRun(ctx, id)
	if err != nil {
		t.Fatalf("GetRun() failed: %v", err)
	}

	if run.Suite != "phpdocumentor" {
		t.Errorf("Suite = %q", run.Suite)
	}
	if !run.StartedAt.Equal(testutil.Epoch) {
		t.Errorf("StartedAt = %v, want %v", run.StartedAt, testutil.Epoch)
	}
	if run.Total != 2 || run.Passed != 1 || run.Failed != 1 {
		t.Errorf("counts = %d/%d/%d, want 2/1/1", run.Total, run.Passed, run.Failed)
	}
	if run.Pass() {
		t.Error("Pass() = true for a run with a failure")
	}

	if len(run.Scenarios) != 2 {
		t.Fatalf("len(Scenarios) = %d, want 2", len(run.Scenarios))
	}

	first := run.Scenarios[0]
	if first.Scenario != "testForList" || first.Status != "passed" || first.Seq != 0 {
		t.Errorf("first record = %+v", first)
	}
	if first.Duration != 1500*time.Millisecond {
		t.Errorf("Duration = %v, want 1.5s", first.Duration)
	}
	if len(first.Failures) != 0 {
		t.Errorf("Failures = %v, want empty", first.Failures)
	}

	second := run.Scenarios[1]
	if second.Status != "failed" || second.ExitCode != 6 {
		t.Errorf("second record = %+v", second)
	}
	if len(second.Failures) != 2 || second.Failures[0] != "exit code 6, expected 0" {
		t.Errorf("Failures = %q", second.Failures)
	}
	if second.Stdout != "Warning: <target> missing" {
		t.Errorf("Stdout = %q", second.Stdout)
	}
	if second.Stderr != "PHP Fatal error" {
		t.Errorf("Stderr = %q", second.Stderr)
	}
}

func TestRecordRun_LaunchErrorHasNoOutput(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	sr := createTestSuiteResult("phpdocumentor", testutil.Epoch)
	sr.Results[1].Invocation = nil

	id, err := s.RecordRun(ctx, sr)
	if err != nil {
		t.Fatalf("RecordRun() failed: %v", err)
	}

	run, err := s.GetRun(ctx, id)
	if err != nil {
		t.Fatalf("GetRun() failed: %v", err)
	}
	if got := run.Scenarios[1].ExitCode; got != -1 {
		t.Errorf("ExitCode = %d, want -1", got)
	}
}

func TestGetRun_NotFound(t *testing.T) {
	s := createTestStore(t)

	_, err := s.GetRun(context.Background(), "nope")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestListRuns_NewestFirst(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		start := testutil.Epoch.Add(time.Duration(i) * time.Hour)
		if _, err := s.RecordRun(ctx, createTestSuiteResult("phpdocumentor", start)); err != nil {
			t.Fatalf("RecordRun() failed: %v", err)
		}
	}

	runs, err := s.ListRuns(ctx, 0)
	if err != nil {
		t.Fatalf("ListRuns() failed: %v", err)
	}
	if len(runs) != 3 {
		t.Fatalf("len(runs) = %d, want 3", len(runs))
	}
	want := []string{"run-0003", "run-0002", "run-0001"}
	for i, run := range runs {
		if run.ID != want[i] {
			t.Errorf("runs[%d].ID = %q, want %q", i, run.ID, want[i])
		}
		if run.Scenarios != nil {
			t.Errorf("runs[%d] should not carry scenario records", i)
		}
	}

	limited, err := s.ListRuns(ctx, 2)
	if err != nil {
		t.Fatalf("ListRuns(2) failed: %v", err)
	}
	if len(limited) != 2 || limited[0].ID != "run-0003" {
		t.Errorf("limited = %+v", limited)
	}
}

func TestListRuns_Empty(t *testing.T) {
	s := createTestStore(t)

	runs, err := s.ListRuns(context.Background(), 10)
	if err != nil {
		t.Fatalf("ListRuns() failed: %v", err)
	}
	if runs == nil || len(runs) != 0 {
		t.Errorf("runs = %#v, want empty non-nil slice", runs)
	}
}

func TestScenarioHistory(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		start := testutil.Epoch.Add(time.Duration(i) * time.Minute)
		if _, err := s.RecordRun(ctx, createTestSuiteResult("phpdocumentor", start)); err != nil {
			t.Fatalf("RecordRun() failed: %v", err)
		}
	}

	records, err := s.ScenarioHistory(ctx, "testWithTarget", 2)
	if err != nil {
		t.Fatalf("ScenarioHistory() failed: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("len(records) = %d, want 2", len(records))
	}
	if records[0].RunID != "run-0003" || records[1].RunID != "run-0002" {
		t.Errorf("run ids = %s, %s", records[0].RunID, records[1].RunID)
	}
	for _, rec := range records {
		if rec.Scenario != "testWithTarget" || rec.Status != "failed" {
			t.Errorf("record = %+v", rec)
		}
	}

	none, err := s.ScenarioHistory(ctx, "unknown", 0)
	if err != nil {
		t.Fatalf("ScenarioHistory() failed: %v", err)
	}
	if len(none) != 0 {
		t.Errorf("records for unknown scenario = %v", none)
	}
}

func TestMarshalFailures(t *testing.T) {
	got, err := marshalFailures(nil)
	if err != nil {
		t.Fatal(err)
	}
	if got != "[]" {
		t.Errorf("marshalFailures(nil) = %q, want []", got)
	}

	got, err = marshalFailures([]string{"a <b> & c"})
	if err != nil {
		t.Fatal(err)
	}
	if got != `["a <b> & c"]` {
		t.Errorf("marshalFailures = %q, HTML must not be escaped", got)
	}
}

func TestFormatTime_SortsLexicographically(t *testing.T) {
	a := formatTime(testutil.Epoch)
	b := formatTime(testutil.Epoch.Add(500 * time.Millisecond))
	if !(a < b) {
		t.Errorf("%q should sort before %q", a, b)
	}

	parsed, err := parseTime(b)
	if err != nil {
		t.Fatal(err)
	}
	if !parsed.Equal(testutil.Epoch.Add(500 * time.Millisecond)) {
		t.Errorf("parseTime(%q) = %v", b, parsed)
	}
}
