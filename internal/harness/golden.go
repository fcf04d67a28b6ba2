package harness

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// DefaultGoldenDir is where stdout_golden snapshots live unless configured.
const DefaultGoldenDir = "testdata/golden"

// GoldenStore reads and writes stdout snapshots for stdout_golden checks.
// Snapshots are stored as <Dir>/<scenario>.golden.
type GoldenStore struct {
	Dir    string
	Update bool // rewrite snapshots instead of comparing
}

// Path returns the snapshot path for a scenario.
func (g GoldenStore) Path(scenario string) string {
	dir := g.Dir
	if dir == "" {
		dir = DefaultGoldenDir
	}
	return filepath.Join(dir, scenario+".golden")
}

// Compare checks actual against the stored snapshot, or rewrites the
// snapshot when Update is set.
func (g GoldenStore) Compare(scenario string, actual []byte) error {
	path := g.Path(scenario)

	if g.Update {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return fmt.Errorf("failed to create golden directory: %w", err)
		}
		if err := os.WriteFile(path, actual, 0644); err != nil {
			return fmt.Errorf("failed to write golden file: %w", err)
		}
		return nil
	}

	expected, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return &AssertionError{
			Type:     AssertStdoutGolden,
			Expected: fmt.Sprintf("stdout to match %s", path),
			Actual:   "golden file missing (run with --update to create it)",
		}
	}
	if err != nil {
		return fmt.Errorf("failed to read golden file: %w", err)
	}

	if bytes.Equal(expected, actual) {
		return nil
	}

	line, want, got := firstDifference(expected, actual)
	return &AssertionError{
		Type:     AssertStdoutGolden,
		Expected: fmt.Sprintf("stdout to match %s; line %d: %q", path, line, want),
		Actual:   fmt.Sprintf("line %d: %q (run with --update to regenerate)", line, got),
	}
}

// firstDifference returns the 1-based number of the first line that differs
// and that line's content on both sides.
func firstDifference(expected, actual []byte) (int, string, string) {
	want := bytes.Split(expected, []byte("\n"))
	got := bytes.Split(actual, []byte("\n"))
	for i := 0; i < len(want) || i < len(got); i++ {
		var w, g []byte
		if i < len(want) {
			w = want[i]
		}
		if i < len(got) {
			g = got[i]
		}
		if !bytes.Equal(w, g) || i >= len(want) || i >= len(got) {
			return i + 1, string(w), string(g)
		}
	}
	return 0, "", ""
}
