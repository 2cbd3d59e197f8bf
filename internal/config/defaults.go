package config

const (
	defaultStateDir             = "~/.local/share/playhead/state"
	defaultLogDir               = "~/.local/share/playhead/logs"
	defaultBaseURL              = "http://localhost:32773"
	defaultRequestTimeout       = 10
	defaultRevealIntervalMS     = 10
	defaultRefetchMarginSeconds = 10
	defaultSeekStepSeconds      = 10
	defaultLogLevel             = "info"
	defaultLogFormat            = "console"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StateDir: defaultStateDir,
			LogDir:   defaultLogDir,
		},
		Services: Services{
			BaseURL:        defaultBaseURL,
			RequestTimeout: defaultRequestTimeout,
		},
		Playback: Playback{
			RevealIntervalMS:     defaultRevealIntervalMS,
			RefetchMarginSeconds: defaultRefetchMarginSeconds,
			SeekStepSeconds:      defaultSeekStepSeconds,
			AutoResume:           true,
		},
		Logging: Logging{
			LogLevel:  defaultLogLevel,
			LogFormat: defaultLogFormat,
		},
	}
}
