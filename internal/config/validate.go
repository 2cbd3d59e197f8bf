package config

import (
	"fmt"
	"net/url"
	"strings"
)

var validLogLevels = map[string]struct{}{
	"debug": {},
	"info":  {},
	"warn":  {},
	"error": {},
}

var validLogFormats = map[string]struct{}{
	"console": {},
	"json":    {},
}

// Validate checks the configuration for values the session cannot run with.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.StateDir) == "" {
		return fmt.Errorf("paths.state_dir must not be empty")
	}
	if c.BaseURL != "" {
		parsed, err := url.Parse(c.BaseURL)
		if err != nil || parsed.Scheme == "" || parsed.Host == "" {
			return fmt.Errorf("services.base_url %q is not an absolute URL", c.BaseURL)
		}
	}
	if c.RequestTimeout < 0 {
		return fmt.Errorf("services.request_timeout must not be negative")
	}
	if c.RevealIntervalMS <= 0 {
		return fmt.Errorf("playback.reveal_interval_ms must be positive")
	}
	if c.RefetchMarginSeconds <= 0 {
		return fmt.Errorf("playback.refetch_margin_seconds must be positive")
	}
	if c.SeekStepSeconds <= 0 {
		return fmt.Errorf("playback.seek_step_seconds must be positive")
	}
	if _, ok := validLogLevels[c.LogLevel]; !ok {
		return fmt.Errorf("logging.log_level %q is not one of debug, info, warn, error", c.LogLevel)
	}
	if _, ok := validLogFormats[c.LogFormat]; !ok {
		return fmt.Errorf("logging.log_format %q is not one of console, json", c.LogFormat)
	}
	return nil
}
