package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_MissingFileYieldsDefault(t *testing.T) {
	cfg, err := Load("", t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if cfg.FFIPattern != "lib{}.so" || !cfg.HostIO.AllowFiles {
		t.Fatalf("defaults = %+v", cfg)
	}
}

func TestLoad_ParsesTiersAndCaps(t *testing.T) {
	dir := t.TempDir()
	content := `
target_triple: arm64-apple-macosx13.0.0
ffi_search_paths: ["/opt/native"]
multiversion_tiers:
  - name: baseline
  - name: neon
    features: "+neon"
host_io:
  allow_files: true
  capture_stdout: true
`
	if err := os.WriteFile(filepath.Join(dir, "chicc.yaml"), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load("", dir)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.TargetTriple != "arm64-apple-macosx13.0.0" {
		t.Errorf("triple = %q", cfg.TargetTriple)
	}
	if len(cfg.Tiers) != 2 || cfg.Tiers[1].Features != "+neon" {
		t.Errorf("tiers = %+v", cfg.Tiers)
	}
	if !cfg.HostIO.CaptureStdout {
		t.Error("capture_stdout must parse")
	}
	if len(cfg.FFISearchPaths) != 1 || cfg.FFISearchPaths[0] != "/opt/native" {
		t.Errorf("search paths = %v", cfg.FFISearchPaths)
	}
}

func TestLoad_MalformedFileErrors(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "chicc.yaml")
	if err := os.WriteFile(path, []byte("multiversion_tiers: {not: [valid"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path, ""); err == nil {
		t.Fatal("malformed yaml must error")
	}
}
