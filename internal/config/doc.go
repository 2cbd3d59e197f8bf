// Package config loads and validates playhead configuration.
//
// Configuration is a single TOML file. Load starts from Default(), overlays
// the file when present, expands home-relative paths, and validates the
// result. Components receive a *Config and read promoted section fields
// rather than re-parsing anything themselves.
package config
