package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	StateDir string `toml:"state_dir"`
	LogDir   string `toml:"log_dir"`
}

// Services contains configuration for the remote collaborators.
type Services struct {
	BaseURL        string `toml:"base_url"`
	APIToken       string `toml:"api_token"`
	RequestTimeout int    `toml:"request_timeout"`
}

// Playback contains tuning for the session engine.
type Playback struct {
	RevealIntervalMS     int     `toml:"reveal_interval_ms"`
	RefetchMarginSeconds float64 `toml:"refetch_margin_seconds"`
	SeekStepSeconds      float64 `toml:"seek_step_seconds"`
	AutoResume           bool    `toml:"auto_resume"`
}

// Logging contains log output configuration.
type Logging struct {
	LogLevel  string `toml:"log_level"`
	LogFormat string `toml:"log_format"`
}

// Config is the root configuration document.
type Config struct {
	Paths    `toml:"paths"`
	Services `toml:"services"`
	Playback `toml:"playback"`
	Logging  `toml:"logging"`
}

// DefaultPath returns the conventional config file location.
func DefaultPath() string {
	return "~/.config/playhead/config.toml"
}

// Load reads configuration from path, falling back to defaults when the file
// does not exist. An empty path means DefaultPath().
func Load(path string) (*Config, error) {
	if strings.TrimSpace(path) == "" {
		path = DefaultPath()
	}
	expanded, err := ExpandPath(path)
	if err != nil {
		return nil, fmt.Errorf("expand config path: %w", err)
	}

	cfg := Default()
	data, err := os.ReadFile(expanded)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", expanded, err)
	}

	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// WriteSample writes the embedded sample config to path, refusing to
// overwrite an existing file.
func WriteSample(path string) error {
	expanded, err := ExpandPath(path)
	if err != nil {
		return fmt.Errorf("expand config path: %w", err)
	}
	if _, err := os.Stat(expanded); err == nil {
		return fmt.Errorf("config file already exists at %s", expanded)
	}
	if err := os.MkdirAll(filepath.Dir(expanded), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	if err := os.WriteFile(expanded, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// EnsureDirectories creates the directories the session needs at runtime.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.StateDir, c.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
}

func (c *Config) normalize() error {
	var err error
	if c.StateDir, err = ExpandPath(c.StateDir); err != nil {
		return fmt.Errorf("expand state_dir: %w", err)
	}
	if c.LogDir, err = ExpandPath(c.LogDir); err != nil {
		return fmt.Errorf("expand log_dir: %w", err)
	}
	c.BaseURL = strings.TrimRight(strings.TrimSpace(c.BaseURL), "/")
	c.APIToken = strings.TrimSpace(c.APIToken)
	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
	c.LogFormat = strings.ToLower(strings.TrimSpace(c.LogFormat))
	return nil
}

// ExpandPath resolves a leading ~ against the current user's home directory.
func ExpandPath(path string) (string, error) {
	path = strings.TrimSpace(path)
	if path == "" || !strings.HasPrefix(path, "~") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	if path == "~" {
		return home, nil
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~/")), nil
}
