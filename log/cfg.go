package log

// LogCfg configures the linkmux logger. It is loadable through
// config.ConfigManager and supports hot reload of the log level and
// rotation thresholds without a restart.
type LogCfg struct {
	// LogPath is the target file for the file appender.
	LogPath string `mapstructure:"path"`

	// LogLevel is the minimum level that produces output.
	LogLevel Level `mapstructure:"level"`

	// FileSplitMB rotates the log file once it exceeds this many MiB.
	FileSplitMB int `mapstructure:"splitmb"`

	// IsAsync buffers file writes on a background goroutine.
	IsAsync bool `mapstructure:"isasync"`

	// AsyncCacheSize bounds the buffered entries in async mode.
	AsyncCacheSize int `mapstructure:"asynccachesize"`

	// CallerSkip is the number of stack frames skipped when resolving
	// caller information. Wrapper layers bump this.
	CallerSkip int `mapstructure:"callerSkip"`

	// FileAppender enables file output.
	FileAppender bool `mapstructure:"fileAppender"`

	// ConsoleAppender enables stdout output.
	ConsoleAppender bool `mapstructure:"consoleAppender"`

	// EnabledCallerInfo captures file:line for every event.
	EnabledCallerInfo bool `mapstructure:"enabledCallerInfo"`
}

// GetName implements config.Config.
func (cfg *LogCfg) GetName() string { return "logger" }

// Validate implements config.Config.
func (cfg *LogCfg) Validate() error { return nil }

var _defaultCfg = &LogCfg{
	LogPath:         "./linkmux.log",
	LogLevel:        DebugLevel,
	FileSplitMB:     50,
	IsAsync:         false,
	AsyncCacheSize:  1024,
	CallerSkip:      1,
	ConsoleAppender: true,
}

func getDefaultCfg() *LogCfg {
	return _defaultCfg
}
