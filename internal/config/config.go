// Package config loads harness settings from defaults, an optional YAML
// file and DOCHARNESS_* environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"

	"github.com/roach88/docharness/internal/harness"
)

const (
	// EnvPrefix marks environment variables read as configuration.
	// DOCHARNESS_HISTORY_PATH sets history.path.
	EnvPrefix = "DOCHARNESS_"

	// DefaultFile is loaded from the working directory when no config file
	// is given explicitly.
	DefaultFile = "docharness.yaml"

	DefaultPlugin      = "phpdocumentor"
	DefaultTimeout     = harness.DefaultTimeout
	DefaultParallel    = 1
	DefaultHistoryPath = ".docharness/history.db"
)

// DefaultCommand is the build tool used when nothing else is configured.
var DefaultCommand = []string{"grunt"}

// Config holds the resolved settings.
type Config struct {
	Tool     ToolConfig    `koanf:"tool"`
	Plugin   string        `koanf:"plugin"`
	Timeout  time.Duration `koanf:"timeout"`
	Parallel int           `koanf:"parallel"`
	History  HistoryConfig `koanf:"history"`
	Golden   GoldenConfig  `koanf:"golden"`

	// Source is the config file that was loaded, empty if none.
	Source string `koanf:"-"`
}

type ToolConfig struct {
	Command []string `koanf:"command"`
	Env     []string `koanf:"env"`
	Dir     string   `koanf:"dir"`
}

type HistoryConfig struct {
	Enabled bool   `koanf:"enabled"`
	Path    string `koanf:"path"`
}

type GoldenConfig struct {
	Dir string `koanf:"dir"`
}

func defaults() map[string]interface{} {
	return map[string]interface{}{
		"tool": map[string]interface{}{
			"command": DefaultCommand,
			"env":     []string{},
			"dir":     "",
		},
		"plugin":   DefaultPlugin,
		"timeout":  DefaultTimeout.String(),
		"parallel": DefaultParallel,
		"history": map[string]interface{}{
			"enabled": true,
			"path":    DefaultHistoryPath,
		},
		"golden": map[string]interface{}{
			"dir": harness.DefaultGoldenDir,
		},
	}
}

// Load resolves the configuration. path names a YAML config file; when it is
// empty, DefaultFile is loaded if it exists. An explicitly named file that
// does not exist is an error.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	source := path
	if source == "" {
		if _, err := os.Stat(DefaultFile); err == nil {
			source = DefaultFile
		} else if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to stat %s: %w", DefaultFile, err)
		}
	}
	if source != "" {
		if err := k.Load(file.Provider(source), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", source, err)
		}
	}

	if err := k.Load(envProvider(), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.Source = source

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// envProvider maps DOCHARNESS_TOOL_COMMAND to tool.command and so on.
func envProvider() *env.Env {
	return env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "_", ".")
	})
}

// Validate checks the resolved values.
func (c *Config) Validate() error {
	if len(c.Tool.Command) == 0 || strings.TrimSpace(c.Tool.Command[0]) == "" {
		return fmt.Errorf("config: tool.command must not be empty")
	}
	if c.Plugin == "" {
		return fmt.Errorf("config: plugin must not be empty")
	}
	if c.Timeout < 0 {
		return fmt.Errorf("config: timeout must not be negative")
	}
	if c.Parallel < 1 {
		return fmt.Errorf("config: parallel must be at least 1, got %d", c.Parallel)
	}
	if c.History.Enabled && c.History.Path == "" {
		return fmt.Errorf("config: history.path is required when history is enabled")
	}
	return nil
}

// ApplyToSuite fills the tool settings a suite leaves unset. Values the
// suite file declares take precedence over configuration.
func (c *Config) ApplyToSuite(s *harness.Suite) {
	if len(s.Tool.Command) == 0 {
		s.Tool.Command = append([]string(nil), c.Tool.Command...)
	}
	if len(c.Tool.Env) > 0 {
		env := append([]string(nil), c.Tool.Env...)
		s.Tool.Env = append(env, s.Tool.Env...)
	}
	if s.Tool.Dir == "" {
		s.Tool.Dir = c.Tool.Dir
	}
	if s.Plugin == "" {
		s.Plugin = c.Plugin
	}
	if s.Timeout == 0 {
		s.Timeout = harness.Duration(c.Timeout)
	}
}
