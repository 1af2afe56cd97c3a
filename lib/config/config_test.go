// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/bureau-foundation/xcdr/lib/buffer"
	"github.com/bureau-foundation/xcdr/lib/cdr"
	"github.com/bureau-foundation/xcdr/lib/typelib"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	configPath := filepath.Join(t.TempDir(), "xcdr.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return configPath
}

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Environment != Development {
		t.Errorf("expected environment=development, got %s", cfg.Environment)
	}
	if cfg.Lookup.SocketPath != "/run/xcdr/lookup.sock" {
		t.Errorf("expected socket_path=/run/xcdr/lookup.sock, got %s", cfg.Lookup.SocketPath)
	}
	if cfg.Resolve.Timeout != 5*time.Second {
		t.Errorf("expected resolve.timeout=5s, got %s", cfg.Resolve.Timeout)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config does not validate: %v", err)
	}
}

func TestLoad_RequiresConfigVariable(t *testing.T) {
	t.Setenv(EnvironmentVariable, "")

	_, err := Load()
	if err == nil {
		t.Fatal("expected error when XCDR_CONFIG not set, got nil")
	}
	if !strings.HasPrefix(err.Error(), "XCDR_CONFIG environment variable not set") {
		t.Errorf("unexpected error message %q", err)
	}
}

func TestLoad_WithConfigVariable(t *testing.T) {
	configPath := writeConfig(t, `
environment: staging
paths:
  root: /test/root
lookup:
  socket_path: /test/lookup.sock
`)
	t.Setenv(EnvironmentVariable, configPath)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.Environment != Staging {
		t.Errorf("expected environment=staging, got %s", cfg.Environment)
	}
	if cfg.Paths.Root != "/test/root" {
		t.Errorf("expected root=/test/root, got %s", cfg.Paths.Root)
	}
	if cfg.Lookup.SocketPath != "/test/lookup.sock" {
		t.Errorf("expected socket_path=/test/lookup.sock, got %s", cfg.Lookup.SocketPath)
	}
}

func TestLoadFile(t *testing.T) {
	configPath := writeConfig(t, `
paths:
  root: /srv/xcdr
encoding:
  version: basic
  endianness: big
  key_size_limit: 32
resolve:
  timeout: 2s
  retry_interval: 50ms
  concurrency: 3
library:
  path: ${XCDR_ROOT}/types.db
  pool_size: 2
  compression: zstd
schemas:
  - ${XCDR_ROOT}/schemas/fleet.yaml
  - /etc/xcdr/geo.jsonc
`)

	cfg, err := LoadFile(configPath)
	if err != nil {
		t.Fatalf("LoadFile() failed: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() failed: %v", err)
	}

	if cfg.Resolve.Timeout != 2*time.Second || cfg.Resolve.RetryInterval != 50*time.Millisecond || cfg.Resolve.Concurrency != 3 {
		t.Errorf("unexpected resolve section %+v", cfg.Resolve)
	}
	if cfg.Library.Path != "/srv/xcdr/types.db" {
		t.Errorf("expected library.path=/srv/xcdr/types.db, got %s", cfg.Library.Path)
	}
	if cfg.Schemas[0] != "/srv/xcdr/schemas/fleet.yaml" || cfg.Schemas[1] != "/etc/xcdr/geo.jsonc" {
		t.Errorf("unexpected schemas %v", cfg.Schemas)
	}

	codecConfig, err := cfg.CodecConfig()
	if err != nil {
		t.Fatalf("CodecConfig() failed: %v", err)
	}
	want := cdr.Config{Version: cdr.VersionBasic, Endianness: buffer.BigEndian, KeySizeLimit: 32}
	if codecConfig != want {
		t.Errorf("CodecConfig() = %+v, want %+v", codecConfig, want)
	}

	libraryConfig, err := cfg.TypeLibraryConfig()
	if err != nil {
		t.Fatalf("TypeLibraryConfig() failed: %v", err)
	}
	if libraryConfig.Path != "/srv/xcdr/types.db" || libraryConfig.PoolSize != 2 || libraryConfig.Compression != typelib.CompressionZstd {
		t.Errorf("unexpected library config %+v", libraryConfig)
	}

	resolverConfig, err := cfg.ResolverConfig()
	if err != nil {
		t.Fatalf("ResolverConfig() failed: %v", err)
	}
	if resolverConfig.Timeout != 2*time.Second || resolverConfig.RetryInterval != 50*time.Millisecond || resolverConfig.Concurrency != 3 {
		t.Errorf("unexpected resolver config %+v", resolverConfig)
	}
	if resolverConfig.Fetcher != nil {
		t.Error("ResolverConfig() must leave the fetcher to the caller")
	}
}

func TestResolverConfig_RejectsNonPositive(t *testing.T) {
	for name, mutate := range map[string]func(*Config){
		"timeout":     func(c *Config) { c.Resolve.Timeout = 0 },
		"retry":       func(c *Config) { c.Resolve.RetryInterval = -time.Second },
		"concurrency": func(c *Config) { c.Resolve.Concurrency = 0 },
	} {
		t.Run(name, func(t *testing.T) {
			cfg := Default()
			mutate(cfg)
			if _, err := cfg.ResolverConfig(); err == nil {
				t.Fatal("expected error, got nil")
			}
		})
	}
}

func TestLoadFile_RejectsUnknownKeys(t *testing.T) {
	configPath := writeConfig(t, `
library:
  path: /tmp/types.db
  compresion: zstd
`)
	if _, err := LoadFile(configPath); err == nil {
		t.Fatal("expected error for misspelled key, got nil")
	}
}

func TestLoadFile_Missing(t *testing.T) {
	if _, err := LoadFile(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for missing file, got nil")
	}
}

func TestEnvironmentOverrides(t *testing.T) {
	configPath := writeConfig(t, `
environment: production
library:
  path: /dev-only/types.db
production:
  library:
    path: /var/lib/xcdr/types.db
    pool_size: 16
  resolve:
    timeout: 30s
  lookup:
    socket_path: /run/xcdr/production.sock
staging:
  library:
    path: /staging/types.db
`)

	cfg, err := LoadFile(configPath)
	if err != nil {
		t.Fatalf("LoadFile() failed: %v", err)
	}
	if cfg.Library.Path != "/var/lib/xcdr/types.db" {
		t.Errorf("expected production library path, got %s", cfg.Library.Path)
	}
	if cfg.Library.PoolSize != 16 {
		t.Errorf("expected pool_size=16, got %d", cfg.Library.PoolSize)
	}
	if cfg.Library.Compression != "auto" {
		t.Errorf("override without compression changed it to %q", cfg.Library.Compression)
	}
	if cfg.Resolve.Timeout != 30*time.Second {
		t.Errorf("expected timeout=30s, got %s", cfg.Resolve.Timeout)
	}
	if cfg.Resolve.RetryInterval != 250*time.Millisecond {
		t.Errorf("override without retry_interval changed it to %s", cfg.Resolve.RetryInterval)
	}
	if cfg.Lookup.SocketPath != "/run/xcdr/production.sock" {
		t.Errorf("expected production socket, got %s", cfg.Lookup.SocketPath)
	}
}

func TestEnvVarsDoNotOverride(t *testing.T) {
	configPath := writeConfig(t, `
lookup:
  socket_path: /file/lookup.sock
`)
	t.Setenv("XCDR_LOOKUP_SOCKET_PATH", "/env/lookup.sock")

	cfg, err := LoadFile(configPath)
	if err != nil {
		t.Fatalf("LoadFile() failed: %v", err)
	}
	if cfg.Lookup.SocketPath != "/file/lookup.sock" {
		t.Errorf("expected socket_path from file, got %s (env vars should not override)", cfg.Lookup.SocketPath)
	}
}

func TestExpandVars(t *testing.T) {
	tests := []struct {
		input    string
		vars     map[string]string
		expected string
	}{
		{
			input:    "${HOME}/xcdr",
			vars:     map[string]string{"HOME": "/home/user"},
			expected: "/home/user/xcdr",
		},
		{
			input:    "${XCDR_TEST_MISSING:-default}",
			vars:     map[string]string{},
			expected: "default",
		},
		{
			input:    "${PRESENT:-default}",
			vars:     map[string]string{"PRESENT": "value"},
			expected: "value",
		},
		{
			input:    "${A}/${B}",
			vars:     map[string]string{"A": "first", "B": "second"},
			expected: "first/second",
		},
		{
			input:    "no variables here",
			vars:     map[string]string{},
			expected: "no variables here",
		},
	}

	for _, tt := range tests {
		result := expandVars(tt.input, tt.vars)
		if result != tt.expected {
			t.Errorf("expandVars(%q) = %q, want %q", tt.input, result, tt.expected)
		}
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr string
	}{
		{
			name:   "valid default config",
			modify: func(c *Config) {},
		},
		{
			name:    "invalid environment",
			modify:  func(c *Config) { c.Environment = "invalid" },
			wantErr: "invalid environment",
		},
		{
			name:    "empty root path",
			modify:  func(c *Config) { c.Paths.Root = "" },
			wantErr: "paths.root",
		},
		{
			name:    "unknown version",
			modify:  func(c *Config) { c.Encoding.Version = "xcdr3" },
			wantErr: "encoding.version",
		},
		{
			name:    "unknown endianness",
			modify:  func(c *Config) { c.Encoding.Endianness = "middle" },
			wantErr: "encoding.endianness",
		},
		{
			name:    "negative key size limit",
			modify:  func(c *Config) { c.Encoding.KeySizeLimit = -1 },
			wantErr: "encoding.key_size_limit",
		},
		{
			name:    "zero timeout",
			modify:  func(c *Config) { c.Resolve.Timeout = 0 },
			wantErr: "resolve.timeout",
		},
		{
			name:    "zero concurrency",
			modify:  func(c *Config) { c.Resolve.Concurrency = 0 },
			wantErr: "resolve.concurrency",
		},
		{
			name:    "unknown compression",
			modify:  func(c *Config) { c.Library.Compression = "brotli" },
			wantErr: "library.compression",
		},
		{
			name:    "empty socket path",
			modify:  func(c *Config) { c.Lookup.SocketPath = "" },
			wantErr: "lookup.socket_path",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want one mentioning %q", err, tt.wantErr)
			}
		})
	}
}

func TestEnsurePaths(t *testing.T) {
	tmpDir := t.TempDir()

	cfg := Default()
	cfg.Paths.Root = filepath.Join(tmpDir, "xcdr")
	cfg.Paths.State = filepath.Join(cfg.Paths.Root, "state")
	cfg.Library.Path = filepath.Join(tmpDir, "data", "types.db")
	cfg.Lookup.SocketPath = filepath.Join(tmpDir, "run", "lookup.sock")

	if err := cfg.EnsurePaths(); err != nil {
		t.Fatalf("EnsurePaths() failed: %v", err)
	}

	for _, path := range []string{cfg.Paths.Root, cfg.Paths.State, filepath.Join(tmpDir, "data"), filepath.Join(tmpDir, "run")} {
		info, err := os.Stat(path)
		if err != nil {
			t.Errorf("path %s not created: %v", path, err)
			continue
		}
		if !info.IsDir() {
			t.Errorf("path %s is not a directory", path)
		}
	}
}
