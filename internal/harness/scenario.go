package harness

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Scenario defines one named invocation of the plugin under test.
type Scenario struct {
	// Name uniquely identifies this scenario within its suite.
	// It is also the plugin target passed to the build tool.
	Name string `yaml:"name" json:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description,omitempty" json:"description,omitempty"`

	// ExpectedDirectory must not exist before the run and must exist after.
	// Relative paths resolve against the tool working directory.
	ExpectedDirectory string `yaml:"expected_directory,omitempty" json:"expected_directory,omitempty"`

	// StdoutContains lists literal fragments that must each appear in stdout.
	// Order among fragments is not significant.
	StdoutContains []string `yaml:"stdout_contains,omitempty" json:"stdout_contains,omitempty"`

	// Clean lists extra paths removed before the run.
	Clean []string `yaml:"clean,omitempty" json:"clean,omitempty"`

	// Assertions are additional checks evaluated after the run.
	Assertions []Assertion `yaml:"assertions,omitempty" json:"assertions,omitempty"`

	// Expect is the declared number of checks. Zero means "not declared".
	Expect int `yaml:"expect,omitempty" json:"expect,omitempty"`

	// ExitCode is the expected exit code of the build tool.
	ExitCode int `yaml:"exit_code,omitempty" json:"exit_code,omitempty"`

	// Timeout overrides the suite timeout for this scenario.
	Timeout Duration `yaml:"timeout,omitempty" json:"timeout,omitempty"`
}

// Assertion is an additional check declared on a scenario.
type Assertion struct {
	// Type selects the check; see the Assert* constants.
	Type string `yaml:"type" json:"type"`

	// Value is the fragment for the *_contains checks.
	Value string `yaml:"value,omitempty" json:"value,omitempty"`

	// Path is the filesystem path for dir_* and file_exists.
	Path string `yaml:"path,omitempty" json:"path,omitempty"`

	// Expr is the CEL expression for expr.
	Expr string `yaml:"expr,omitempty" json:"expr,omitempty"`

	// Code is the expected exit code for exit_code.
	Code int `yaml:"code,omitempty" json:"code,omitempty"`
}

// Assertion type constants.
const (
	AssertStdoutContains    = "stdout_contains"
	AssertStdoutNotContains = "stdout_not_contains"
	AssertStderrContains    = "stderr_contains"
	AssertDirExists         = "dir_exists"
	AssertDirAbsent         = "dir_absent"
	AssertFileExists        = "file_exists"
	AssertExitCode          = "exit_code"
	AssertExpr              = "expr"
	AssertStdoutGolden      = "stdout_golden"
)

// CheckCount returns the number of checks the scenario expands into.
func (s *Scenario) CheckCount() int {
	n := len(s.StdoutContains) + len(s.Assertions)
	if s.ExpectedDirectory != "" {
		n += 2
	}
	return n
}

// Paths returns every filesystem path the scenario creates, removes or
// inspects. Used to decide whether scenarios may run concurrently.
func (s *Scenario) Paths() []string {
	var paths []string
	if s.ExpectedDirectory != "" {
		paths = append(paths, s.ExpectedDirectory)
	}
	paths = append(paths, s.Clean...)
	for _, a := range s.Assertions {
		if a.Path != "" {
			paths = append(paths, a.Path)
		}
	}
	return paths
}

// Duration is a time.Duration written as a Go duration string ("90s", "5m").
type Duration time.Duration

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	return d.parse(s)
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	return d.parse(s)
}

// MarshalJSON implements json.Marshaler.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) parse(s string) error {
	if s == "" {
		*d = 0
		return nil
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	if v < 0 {
		return fmt.Errorf("invalid duration %q: must not be negative", s)
	}
	*d = Duration(v)
	return nil
}

// validName matches scenario names. They end up in a command-line argument
// after "<plugin>:", so separators and whitespace are rejected.
var validName = regexp.MustCompile(`^[A-Za-z0-9_.-]+$`)

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if !validName.MatchString(s.Name) {
		return fmt.Errorf("name %q: must match %s", s.Name, validName.String())
	}

	if s.ExpectedDirectory != "" && filepath.Clean(s.ExpectedDirectory) == "." {
		return fmt.Errorf("expected_directory must not be the working directory")
	}
	for i, p := range s.Clean {
		if p == "" || filepath.Clean(p) == "." {
			return fmt.Errorf("clean[%d]: must name a path below the working directory", i)
		}
	}

	for i, fragment := range s.StdoutContains {
		if fragment == "" {
			return fmt.Errorf("stdout_contains[%d]: fragment must not be empty", i)
		}
	}

	for i := range s.Assertions {
		if err := validateAssertion(i, &s.Assertions[i]); err != nil {
			return err
		}
	}

	if s.CheckCount() == 0 {
		return fmt.Errorf("scenario defines no checks")
	}
	if s.Expect < 0 {
		return fmt.Errorf("expect must be non-negative")
	}
	if s.Expect > 0 && s.Expect != s.CheckCount() {
		return fmt.Errorf("expect declares %d checks but the scenario defines %d", s.Expect, s.CheckCount())
	}

	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertStdoutContains, AssertStdoutNotContains, AssertStderrContains:
		if a.Value == "" {
			return fmt.Errorf("assertions[%d]: value is required for %s", index, a.Type)
		}
	case AssertDirExists, AssertDirAbsent, AssertFileExists:
		if a.Path == "" {
			return fmt.Errorf("assertions[%d]: path is required for %s", index, a.Type)
		}
	case AssertExpr:
		if a.Expr == "" {
			return fmt.Errorf("assertions[%d]: expr is required for expr", index)
		}
	case AssertExitCode, AssertStdoutGolden:
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
