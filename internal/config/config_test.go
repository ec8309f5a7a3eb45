// Package config tests.
package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// TestLoad_missingFileUsesDefaults verifies a missing config file is
// not an error.
func TestLoad_missingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.BaseURL != "http://localhost:8000/api" {
		t.Errorf("BaseURL = %q, want default", cfg.BaseURL)
	}
	if cfg.ListenAddr != "127.0.0.1:8090" {
		t.Errorf("ListenAddr = %q, want default", cfg.ListenAddr)
	}
	if cfg.ProbeTimeout != 3*time.Second {
		t.Errorf("ProbeTimeout = %v, want 3s", cfg.ProbeTimeout)
	}
	if cfg.DataDir == "" {
		t.Error("DataDir should have a default")
	}
}

// TestLoad_overridesFromFile verifies file values replace defaults and
// the base URL is normalized.
func TestLoad_overridesFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
base_url = "https://api.example.com/v1/"
listen_addr = "127.0.0.1:9999"
probe_timeout_ms = 500
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.BaseURL != "https://api.example.com/v1" {
		t.Errorf("BaseURL = %q, want trailing slash trimmed", cfg.BaseURL)
	}
	if cfg.ListenAddr != "127.0.0.1:9999" {
		t.Errorf("ListenAddr = %q", cfg.ListenAddr)
	}
	if cfg.ProbeTimeout != 500*time.Millisecond {
		t.Errorf("ProbeTimeout = %v, want 500ms", cfg.ProbeTimeout)
	}
}

// TestLoad_malformedFile verifies a broken file is reported rather
// than silently defaulted.
func TestLoad_malformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("base_url = ["), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	if _, err := Load(path); err == nil {
		t.Error("Load() with malformed TOML should fail")
	}
}
