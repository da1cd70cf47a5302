// Package config implements steptrace configuration loading.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

const (
	// ProjectFile is looked up in the project directory.
	ProjectFile = ".steptrace.yaml"
	// UserDir and UserFile form the per-user config path under $HOME.
	UserDir  = ".steptrace"
	UserFile = "config.yaml"
)

// Output formats understood by the CLI.
const (
	FormatJSON  = "json"
	FormatTable = "table"
	FormatText  = "text"
)

// Config holds the settings that shape an execution and its output.
type Config struct {
	IterationCap    int    `yaml:"iterationCap"`
	MaxCallDepth    int    `yaml:"maxCallDepth"`
	LocalAssignment bool   `yaml:"localAssignment"`
	LogLevel        string `yaml:"logLevel"`
	Format          string `yaml:"format"`
	Parallel        int    `yaml:"parallel"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		IterationCap: 1000,
		MaxCallDepth: 512,
		LogLevel:     "warn",
		Format:       FormatJSON,
		Parallel:     1,
	}
}

// Load finds and reads the effective configuration.
// Precedence: project (.steptrace.yaml) → user (~/.steptrace/config.yaml) → defaults.
// It returns the path the configuration came from, or "" for the defaults.
// A missing file falls through to the next candidate; a malformed one is an error.
func Load(projectDir string) (*Config, string, error) {
	candidates := []string{filepath.Join(projectDir, ProjectFile)}
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, UserDir, UserFile))
	}

	for _, path := range candidates {
		cfg, err := LoadFile(path)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, path, err
		}
		return cfg, path, nil
	}
	return Default(), "", nil
}

// LoadFile reads a single config file. Fields the file omits keep their
// default values.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse decodes YAML over the defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports the first invalid field.
func (c *Config) Validate() error {
	if c.IterationCap <= 0 {
		return fmt.Errorf("invalid config: iterationCap must be positive, got %d", c.IterationCap)
	}
	if c.MaxCallDepth <= 0 {
		return fmt.Errorf("invalid config: maxCallDepth must be positive, got %d", c.MaxCallDepth)
	}
	if c.Parallel <= 0 {
		return fmt.Errorf("invalid config: parallel must be positive, got %d", c.Parallel)
	}
	switch c.Format {
	case FormatJSON, FormatTable, FormatText:
	default:
		return fmt.Errorf("invalid config: unknown format %q (want json, table or text)", c.Format)
	}
	if _, err := c.Level(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Level parses LogLevel into a zerolog level.
func (c *Config) Level() (zerolog.Level, error) {
	if c.LogLevel == "" {
		return zerolog.WarnLevel, nil
	}
	return zerolog.ParseLevel(c.LogLevel)
}

// YAML renders the configuration as a YAML document.
func (c *Config) YAML() (string, error) {
	out, err := yaml.Marshal(c)
	if err != nil {
		return "", err
	}
	return string(out), nil
}
