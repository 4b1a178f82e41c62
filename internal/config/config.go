// Package config loads the indexer's recognised options — ignore_patterns,
// languages, log_level — from an optional HCL file, with functional-option
// overrides for programmatic callers.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/hashicorp/hcl/v2/hclsimple"
)

// Config is the recognised option set from spec §6.
type Config struct {
	IgnorePatterns []string `hcl:"ignore_patterns,optional"`
	Languages      []string `hcl:"languages,optional"`
	LogLevel       string   `hcl:"log_level,optional"`
}

// InvalidConfigError reports an unknown option or malformed glob. Per §7
// this class of error is fatal before any I/O.
type InvalidConfigError struct {
	Field string
	Err   error
}

func (e *InvalidConfigError) Error() string {
	return fmt.Sprintf("invalid config: %s: %v", e.Field, e.Err)
}

func (e *InvalidConfigError) Unwrap() error { return e.Err }

var validLogLevels = map[string]bool{
	"": true, "error": true, "warn": true, "info": true, "debug": true, "trace": true,
}

// Default returns a Config with the default log level and no restrictions.
func Default() *Config {
	return &Config{LogLevel: "info"}
}

// Load reads an optional HCL config file at path. A missing file is not an
// error; Load returns Default() in that case.
func Load(path string) (*Config, error) {
	cfg := Default()
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err := hclsimple.DecodeFile(path, nil, cfg); err != nil {
		return nil, &InvalidConfigError{Field: path, Err: err}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks every ignore_patterns glob compiles and log_level is one
// of the recognised levels.
func (c *Config) Validate() error {
	for _, p := range c.IgnorePatterns {
		pattern := strings.TrimPrefix(p, "!")
		if !doublestar.ValidatePattern(pattern) {
			return &InvalidConfigError{Field: "ignore_patterns", Err: fmt.Errorf("malformed glob %q", p)}
		}
	}
	if !validLogLevels[c.LogLevel] {
		return &InvalidConfigError{Field: "log_level", Err: fmt.Errorf("unknown level %q", c.LogLevel)}
	}
	return nil
}

// Option is a functional override applied after Load, for programmatic
// callers that don't want a config file.
type Option func(*Config)

func WithIgnorePatterns(patterns []string) Option {
	return func(c *Config) { c.IgnorePatterns = patterns }
}

func WithLanguages(tags []string) Option {
	return func(c *Config) { c.Languages = tags }
}

func WithLogLevel(level string) Option {
	return func(c *Config) { c.LogLevel = level }
}

// Apply mutates c with each Option in order and returns it for chaining.
func (c *Config) Apply(opts ...Option) *Config {
	for _, opt := range opts {
		opt(c)
	}
	return c
}
