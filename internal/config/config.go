// Package config loads the maintkeeper configuration file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

// Config captures everything the core needs to run.
type Config struct {
	BaseURL      string
	DataDir      string
	ListenAddr   string
	ProbeTimeout time.Duration
}

const (
	defaultConfigPath = "~/.config/maintkeeper/config.toml"
	defaultDataDir    = "~/.local/share/maintkeeper"
	defaultBaseURL    = "http://localhost:8000/api"
	defaultListenAddr = "127.0.0.1:8090"
	defaultProbeMs    = 3000
)

// DefaultPath returns the default config file location.
func DefaultPath() string {
	return mustExpand(defaultConfigPath)
}

// Load locates and parses the config file, falling back to defaults when missing.
func Load(path string) (Config, error) {
	if path == "" {
		path = defaultConfigPath
	}
	resolved := mustExpand(path)

	cfg := Config{
		BaseURL:      defaultBaseURL,
		DataDir:      mustExpand(defaultDataDir),
		ListenAddr:   defaultListenAddr,
		ProbeTimeout: defaultProbeMs * time.Millisecond,
	}

	bytes, err := os.ReadFile(resolved)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	var raw struct {
		BaseURL        string `toml:"base_url"`
		DataDir        string `toml:"data_dir"`
		ListenAddr     string `toml:"listen_addr"`
		ProbeTimeoutMs int    `toml:"probe_timeout_ms"`
	}
	if err := toml.Unmarshal(bytes, &raw); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}

	if v := strings.TrimSpace(raw.BaseURL); v != "" {
		cfg.BaseURL = strings.TrimRight(v, "/")
	}
	if v := strings.TrimSpace(raw.DataDir); v != "" {
		cfg.DataDir = mustExpand(v)
	}
	if v := strings.TrimSpace(raw.ListenAddr); v != "" {
		cfg.ListenAddr = v
	}
	if raw.ProbeTimeoutMs > 0 {
		cfg.ProbeTimeout = time.Duration(raw.ProbeTimeoutMs) * time.Millisecond
	}

	return cfg, nil
}

func mustExpand(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
