// Package config loads the optional chicc.yaml that tunes the core's
// backends: FFI search paths, the CPU multi-versioning tier table, and
// WASM host-IO capability flags.
package config

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Tier is one ISA level of the multiversioning profile.
type Tier struct {
	Name     string `yaml:"name"`
	Features string `yaml:"features"`
}

// HostIOCaps holds the WASM host-IO settings. The driver applies
// CaptureStdout and CaptureStderr; AllowFiles and AllowSockets are parsed
// but not consulted, so file and socket access is not gated by them.
type HostIOCaps struct {
	AllowFiles    bool `yaml:"allow_files"`
	AllowSockets  bool `yaml:"allow_sockets"`
	CaptureStdout bool `yaml:"capture_stdout"`
	CaptureStderr bool `yaml:"capture_stderr"`
}

// Config is the parsed chicc.yaml.
type Config struct {
	TargetTriple   string     `yaml:"target_triple"`
	FFISearchPaths []string   `yaml:"ffi_search_paths"`
	FFIPattern     string     `yaml:"ffi_pattern"`
	Tiers          []Tier     `yaml:"multiversion_tiers"`
	HostIO         HostIOCaps `yaml:"host_io"`
}

// Default returns the configuration used when no chicc.yaml exists.
func Default() *Config {
	return &Config{
		TargetTriple: "x86_64-unknown-linux-gnu",
		FFIPattern:   "lib{}.so",
		HostIO: HostIOCaps{
			AllowFiles: true,
		},
	}
}

// Load reads path, or when path is "" probes chicc.yaml in dir and its
// parents. A missing file yields Default() without error; a malformed
// file is an error.
func Load(path, dir string) (*Config, error) {
	if path == "" {
		found, ok := probe(dir)
		if !ok {
			return Default(), nil
		}
		path = found
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func probe(dir string) (string, bool) {
	if dir == "" {
		dir = "."
	}
	for {
		candidate := filepath.Join(dir, "chicc.yaml")
		if _, err := os.Stat(candidate); err == nil {
			return candidate, true
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", false
		}
		dir = parent
	}
}
