package harness

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"gopkg.in/yaml.v3"
)

//go:embed schema.cue
var schemaCUE string

//go:embed builtin/phpdocumentor.yaml
var builtinSuite []byte

// Match modes for stdout fragments.
const (
	// MatchContains accepts a fragment anywhere in stdout.
	MatchContains = "contains"
	// MatchPositiveOffset rejects a fragment found only at byte offset 0.
	MatchPositiveOffset = "positive-offset"
)

// Suite is a named list of scenarios plus the tool settings they share.
type Suite struct {
	// Name identifies the suite in reports and history.
	Name string `yaml:"name,omitempty" json:"name,omitempty"`

	// Tool describes how to launch the build tool.
	Tool Tool `yaml:"tool,omitempty" json:"tool,omitempty"`

	// Plugin is the plugin (task) name prefixed to every scenario name.
	Plugin string `yaml:"plugin,omitempty" json:"plugin,omitempty"`

	// Match is the fragment match mode: "contains" (default) or
	// "positive-offset".
	Match string `yaml:"match,omitempty" json:"match,omitempty"`

	// Timeout applies to every scenario that does not set its own.
	Timeout Duration `yaml:"timeout,omitempty" json:"timeout,omitempty"`

	// Scenarios are run in declaration order.
	Scenarios []Scenario `yaml:"scenarios" json:"scenarios"`
}

// Tool describes the build tool executable.
type Tool struct {
	// Command is the executable and any fixed leading arguments.
	Command []string `yaml:"command,omitempty" json:"command,omitempty"`

	// Env entries ("KEY=value") are added to the inherited environment.
	Env []string `yaml:"env,omitempty" json:"env,omitempty"`

	// Dir is the working directory of the build tool. Scenario paths are
	// resolved against it.
	Dir string `yaml:"dir,omitempty" json:"dir,omitempty"`
}

// Scenario returns the scenario with the given name.
func (s *Suite) Scenario(name string) (*Scenario, bool) {
	for i := range s.Scenarios {
		if s.Scenarios[i].Name == name {
			return &s.Scenarios[i], true
		}
	}
	return nil, false
}

// Select returns the scenarios whose names match the glob pattern.
// An empty pattern selects every scenario.
func (s *Suite) Select(pattern string) ([]Scenario, error) {
	if pattern == "" {
		return s.Scenarios, nil
	}
	var selected []Scenario
	for _, sc := range s.Scenarios {
		matched, err := filepath.Match(pattern, sc.Name)
		if err != nil {
			return nil, fmt.Errorf("invalid filter pattern: %w", err)
		}
		if matched {
			selected = append(selected, sc)
		}
	}
	return selected, nil
}

// BuiltinSuite returns the phpDocumentor plugin suite bundled with the
// harness.
func BuiltinSuite() (*Suite, error) {
	suite, err := ParseSuiteYAML(builtinSuite)
	if err != nil {
		return nil, fmt.Errorf("builtin suite: %w", err)
	}
	return suite, nil
}

// LoadSuite reads and parses a suite file. The format is chosen by
// extension: .yaml/.yml or .cue.
func LoadSuite(path string) (*Suite, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read suite file: %w", err)
	}

	var suite *Suite
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		suite, err = ParseSuiteYAML(data)
	case ".cue":
		suite, err = ParseSuiteCUE(data, filepath.Base(path))
	default:
		return nil, fmt.Errorf("unsupported suite format %q (want .yaml, .yml or .cue)", ext)
	}
	if err != nil {
		return nil, err
	}

	if suite.Name == "" {
		suite.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return suite, nil
}

// ParseSuiteYAML parses a YAML suite.
// Unknown fields are rejected so typos ("stdout_contain:") fail loudly.
func ParseSuiteYAML(data []byte) (*Suite, error) {
	var suite Suite
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&suite); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := ValidateSuite(&suite); err != nil {
		return nil, fmt.Errorf("invalid suite: %w", err)
	}
	return &suite, nil
}

// ParseSuiteCUE evaluates a CUE suite against the #Suite schema.
// filename is only used for error positions.
func ParseSuiteCUE(data []byte, filename string) (*Suite, error) {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("compiling suite schema: %w", err)
	}

	value := ctx.CompileBytes(data, cue.Filename(filename))
	if err := value.Err(); err != nil {
		return nil, fmt.Errorf("failed to parse CUE: %s", cueerrors.Details(err, nil))
	}

	unified := schema.LookupPath(cue.ParsePath("#Suite")).Unify(value)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return nil, fmt.Errorf("invalid suite: %s", cueerrors.Details(err, nil))
	}

	raw, err := unified.MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("exporting CUE suite: %w", err)
	}

	var suite Suite
	if err := json.Unmarshal(raw, &suite); err != nil {
		return nil, fmt.Errorf("decoding CUE suite: %w", err)
	}

	if err := ValidateSuite(&suite); err != nil {
		return nil, fmt.Errorf("invalid suite: %w", err)
	}
	return &suite, nil
}

// ValidateSuite checks suite-level settings and every scenario.
func ValidateSuite(s *Suite) error {
	if len(s.Scenarios) == 0 {
		return fmt.Errorf("scenarios list is required and must be non-empty")
	}

	switch s.Match {
	case "", MatchContains, MatchPositiveOffset:
	default:
		return fmt.Errorf("match %q: must be %q or %q", s.Match, MatchContains, MatchPositiveOffset)
	}

	if strings.Contains(s.Plugin, " ") {
		return fmt.Errorf("plugin %q: must not contain spaces", s.Plugin)
	}

	var exprs *ExprEvaluator
	seen := make(map[string]int, len(s.Scenarios))
	for i := range s.Scenarios {
		sc := &s.Scenarios[i]
		if err := validateScenario(sc); err != nil {
			return fmt.Errorf("scenarios[%d]: %w", i, err)
		}
		if prev, dup := seen[sc.Name]; dup {
			return fmt.Errorf("scenarios[%d]: duplicate name %q (first declared at scenarios[%d])", i, sc.Name, prev)
		}
		seen[sc.Name] = i

		for j, a := range sc.Assertions {
			if a.Type != AssertExpr {
				continue
			}
			if exprs == nil {
				var err error
				if exprs, err = NewExprEvaluator(); err != nil {
					return err
				}
			}
			if err := exprs.Check(a.Expr); err != nil {
				return fmt.Errorf("scenarios[%d].assertions[%d]: %w", i, j, err)
			}
		}
	}

	return nil
}
