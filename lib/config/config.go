// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/bureau-foundation/xcdr/lib/buffer"
	"github.com/bureau-foundation/xcdr/lib/cdr"
	"github.com/bureau-foundation/xcdr/lib/typelib"
	"github.com/bureau-foundation/xcdr/lib/typeresolve"
)

// EnvironmentVariable names the variable [Load] reads the config path
// from.
const EnvironmentVariable = "XCDR_CONFIG"

// Environment represents the deployment environment.
type Environment string

const (
	// Development is for local development machines.
	Development Environment = "development"
	// Staging is for pre-production testing.
	Staging Environment = "staging"
	// Production is for production deployments.
	Production Environment = "production"
)

// Config is the configuration of the xcdr tools and services.
type Config struct {
	// Environment identifies the deployment type (development, staging, production).
	Environment Environment `yaml:"environment"`

	// Paths configures directory locations.
	Paths PathsConfig `yaml:"paths"`

	// Encoding configures codecs built from this config.
	Encoding EncodingConfig `yaml:"encoding"`

	// Resolve configures type resolution against remote type objects.
	Resolve ResolveConfig `yaml:"resolve"`

	// Library configures the persistent type library.
	Library LibraryConfig `yaml:"library"`

	// Lookup configures the type lookup service.
	Lookup LookupConfig `yaml:"lookup"`

	// Schemas lists schema files (YAML or JSONC) whose types are
	// registered at startup.
	Schemas []string `yaml:"schemas"`

	// EnvironmentOverrides contains per-environment overrides.
	// These are applied after the base config is loaded.
	Development *ConfigOverrides `yaml:"development,omitempty"`
	Staging     *ConfigOverrides `yaml:"staging,omitempty"`
	Production  *ConfigOverrides `yaml:"production,omitempty"`
}

// ConfigOverrides contains fields that can be overridden per environment.
type ConfigOverrides struct {
	Paths   *PathsConfig   `yaml:"paths,omitempty"`
	Resolve *ResolveConfig `yaml:"resolve,omitempty"`
	Library *LibraryConfig `yaml:"library,omitempty"`
	Lookup  *LookupConfig  `yaml:"lookup,omitempty"`
}

// PathsConfig configures directory locations.
type PathsConfig struct {
	// Root is the base directory for xcdr data.
	Root string `yaml:"root"`

	// State is where runtime state is stored.
	State string `yaml:"state"`
}

// EncodingConfig selects the defaults of codecs built from the config.
type EncodingConfig struct {
	// Version is "auto", "basic" (alias "xcdr1"), or "xcdr2".
	// Default: xcdr2
	Version string `yaml:"version"`

	// Endianness is "little", "big", or "native".
	// Default: little
	Endianness string `yaml:"endianness"`

	// KeySizeLimit is the serialized key size beyond which keys are
	// hashed as unbounded. Zero means the codec default.
	KeySizeLimit int `yaml:"key_size_limit"`
}

// ResolveConfig configures type resolution.
type ResolveConfig struct {
	// Timeout bounds one resolution.
	// Default: 5s
	Timeout time.Duration `yaml:"timeout"`

	// RetryInterval is the pause between fetch rounds.
	// Default: 250ms
	RetryInterval time.Duration `yaml:"retry_interval"`

	// Concurrency bounds the fetches in flight per resolution.
	// Default: 8
	Concurrency int `yaml:"concurrency"`
}

// LibraryConfig configures the type library database.
type LibraryConfig struct {
	// Path is the SQLite database file.
	// Default: ~/.cache/xcdr/typelib.db
	Path string `yaml:"path"`

	// PoolSize is the number of database connections.
	// Default: 4
	PoolSize int `yaml:"pool_size"`

	// Compression is "auto", "none", "lz4", or "zstd".
	// Default: auto
	Compression string `yaml:"compression"`
}

// LookupConfig configures the type lookup service.
type LookupConfig struct {
	// SocketPath is the Unix socket the service listens on.
	// Default: /run/xcdr/lookup.sock
	SocketPath string `yaml:"socket_path"`
}

// Default returns the default configuration.
// These defaults are used as a base before loading the config file.
func Default() *Config {
	homeDir, _ := os.UserHomeDir()
	defaultRoot := filepath.Join(homeDir, ".cache", "xcdr")

	return &Config{
		Environment: Development,
		Paths: PathsConfig{
			Root:  defaultRoot,
			State: filepath.Join(defaultRoot, "state"),
		},
		Encoding: EncodingConfig{
			Version:    "xcdr2",
			Endianness: "little",
		},
		Resolve: ResolveConfig{
			Timeout:       typeresolve.DefaultTimeout,
			RetryInterval: typeresolve.DefaultRetryInterval,
			Concurrency:   typeresolve.DefaultConcurrency,
		},
		Library: LibraryConfig{
			Path:        filepath.Join(defaultRoot, "typelib.db"),
			PoolSize:    4,
			Compression: "auto",
		},
		Lookup: LookupConfig{
			SocketPath: "/run/xcdr/lookup.sock",
		},
	}
}

// Load loads configuration from the XCDR_CONFIG environment variable.
//
// There are no fallbacks: if XCDR_CONFIG is not set, this fails.
func Load() (*Config, error) {
	configPath := os.Getenv(EnvironmentVariable)
	if configPath == "" {
		return nil, fmt.Errorf("%s environment variable not set; "+
			"set it to the path of your xcdr.yaml config file, or use --config flag", EnvironmentVariable)
	}

	return LoadFile(configPath)
}

// LoadFile loads configuration from a specific file path.
//
// Environment variables do not override config values. The only
// expansion performed is ${VAR} and ${VAR:-default} in path fields.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	if err := cfg.loadFile(path); err != nil {
		return nil, err
	}

	cfg.applyEnvironmentOverrides()
	cfg.expandVariables()

	return cfg, nil
}

// loadFile merges a single configuration file into the current config.
// Unknown keys are errors.
func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	return nil
}

// applyEnvironmentOverrides applies the section matching Environment.
func (c *Config) applyEnvironmentOverrides() {
	var overrides *ConfigOverrides

	switch c.Environment {
	case Development:
		overrides = c.Development
	case Staging:
		overrides = c.Staging
	case Production:
		overrides = c.Production
	}

	if overrides == nil {
		return
	}

	if overrides.Paths != nil {
		if overrides.Paths.Root != "" {
			c.Paths.Root = overrides.Paths.Root
		}
		if overrides.Paths.State != "" {
			c.Paths.State = overrides.Paths.State
		}
	}

	if overrides.Resolve != nil {
		if overrides.Resolve.Timeout != 0 {
			c.Resolve.Timeout = overrides.Resolve.Timeout
		}
		if overrides.Resolve.RetryInterval != 0 {
			c.Resolve.RetryInterval = overrides.Resolve.RetryInterval
		}
		if overrides.Resolve.Concurrency != 0 {
			c.Resolve.Concurrency = overrides.Resolve.Concurrency
		}
	}

	if overrides.Library != nil {
		if overrides.Library.Path != "" {
			c.Library.Path = overrides.Library.Path
		}
		if overrides.Library.PoolSize != 0 {
			c.Library.PoolSize = overrides.Library.PoolSize
		}
		if overrides.Library.Compression != "" {
			c.Library.Compression = overrides.Library.Compression
		}
	}

	if overrides.Lookup != nil && overrides.Lookup.SocketPath != "" {
		c.Lookup.SocketPath = overrides.Lookup.SocketPath
	}
}

// expandVariables expands ${VAR} and ${VAR:-default} patterns in paths.
func (c *Config) expandVariables() {
	vars := map[string]string{
		"XCDR_ROOT": c.Paths.Root,
		"HOME":      os.Getenv("HOME"),
	}

	c.Paths.Root = expandVars(c.Paths.Root, vars)
	vars["XCDR_ROOT"] = c.Paths.Root // Update for dependent paths.

	c.Paths.State = expandVars(c.Paths.State, vars)
	c.Library.Path = expandVars(c.Library.Path, vars)
	c.Lookup.SocketPath = expandVars(c.Lookup.SocketPath, vars)
	for index, schema := range c.Schemas {
		c.Schemas[index] = expandVars(schema, vars)
	}
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

// expandVars expands ${VAR} and ${VAR:-default} patterns. Known vars
// take precedence over the process environment.
func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		name := parts[1]
		defaultValue := ""
		if len(parts) >= 3 {
			defaultValue = parts[2]
		}

		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if c.Environment != Development && c.Environment != Staging && c.Environment != Production {
		errs = append(errs, fmt.Errorf("invalid environment: %s", c.Environment))
	}

	if c.Paths.Root == "" {
		errs = append(errs, fmt.Errorf("paths.root is required"))
	}

	if _, err := c.CodecConfig(); err != nil {
		errs = append(errs, err)
	}

	if c.Resolve.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("resolve.timeout must be positive"))
	}
	if c.Resolve.RetryInterval <= 0 {
		errs = append(errs, fmt.Errorf("resolve.retry_interval must be positive"))
	}
	if c.Resolve.Concurrency <= 0 {
		errs = append(errs, fmt.Errorf("resolve.concurrency must be positive"))
	}

	if c.Library.Path == "" {
		errs = append(errs, fmt.Errorf("library.path is required"))
	}
	if c.Library.PoolSize <= 0 {
		errs = append(errs, fmt.Errorf("library.pool_size must be positive"))
	}
	if _, err := typelib.ParseCompression(c.Library.Compression); err != nil {
		errs = append(errs, fmt.Errorf("library.compression: %w", err))
	}

	if c.Lookup.SocketPath == "" {
		errs = append(errs, fmt.Errorf("lookup.socket_path is required"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// CodecConfig converts the encoding section into a codec configuration.
func (c *Config) CodecConfig() (cdr.Config, error) {
	version, err := cdr.ParseVersion(c.Encoding.Version)
	if err != nil {
		return cdr.Config{}, fmt.Errorf("encoding.version: %w", err)
	}
	endianness, err := buffer.ParseEndianness(c.Encoding.Endianness)
	if err != nil {
		return cdr.Config{}, fmt.Errorf("encoding.endianness: %w", err)
	}
	if c.Encoding.KeySizeLimit < 0 {
		return cdr.Config{}, fmt.Errorf("encoding.key_size_limit must not be negative")
	}
	return cdr.Config{Version: version, Endianness: endianness, KeySizeLimit: c.Encoding.KeySizeLimit}, nil
}

// TypeLibraryConfig converts the library section into a type library
// configuration.
func (c *Config) TypeLibraryConfig() (typelib.Config, error) {
	compression, err := typelib.ParseCompression(c.Library.Compression)
	if err != nil {
		return typelib.Config{}, fmt.Errorf("library.compression: %w", err)
	}
	return typelib.Config{Path: c.Library.Path, PoolSize: c.Library.PoolSize, Compression: compression}, nil
}

// ResolverConfig converts the resolve section into a resolver
// configuration. The caller supplies the Fetcher.
func (c *Config) ResolverConfig() (typeresolve.Config, error) {
	if c.Resolve.Timeout <= 0 || c.Resolve.RetryInterval <= 0 {
		return typeresolve.Config{}, fmt.Errorf("resolve.timeout and resolve.retry_interval must be positive")
	}
	if c.Resolve.Concurrency <= 0 {
		return typeresolve.Config{}, fmt.Errorf("resolve.concurrency must be positive")
	}
	return typeresolve.Config{
		Timeout:       c.Resolve.Timeout,
		RetryInterval: c.Resolve.RetryInterval,
		Concurrency:   c.Resolve.Concurrency,
	}, nil
}

// EnsurePaths creates the configured directories and the parents of
// the library database and lookup socket.
func (c *Config) EnsurePaths() error {
	paths := []string{
		c.Paths.Root,
		c.Paths.State,
		filepath.Dir(c.Library.Path),
		filepath.Dir(c.Lookup.SocketPath),
	}

	for _, path := range paths {
		if path == "" || path == "." {
			continue
		}
		if err := os.MkdirAll(path, 0755); err != nil {
			return fmt.Errorf("creating %s: %w", path, err)
		}
	}

	return nil
}
