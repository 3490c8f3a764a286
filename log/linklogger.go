package log

import (
	"runtime"
	"strconv"
	"sync"

	"github.com/lcx/linkmux/config"
)

// LinkLogger is the concrete logger used across linkmux. It gates events
// on a minimum level, renders them through pooled LogEvent instances, and
// fans finished events out to its appenders. Configuration hot reload is
// supported through the config manager's change-listener mechanism.
type LinkLogger struct {
	mu            sync.RWMutex
	appenders     []LogAppender
	minLevel      Level
	callerSkip    int
	enabledCaller bool
	eventPool     *sync.Pool
	currentConfig *LogCfg
}

// NewLogger creates a LinkLogger from cfg, falling back to defaults when
// cfg is nil.
func NewLogger(cfg *LogCfg) *LinkLogger {
	if cfg == nil {
		cfg = getDefaultCfg()
	}

	logger := &LinkLogger{
		minLevel:      cfg.LogLevel,
		callerSkip:    cfg.CallerSkip,
		enabledCaller: cfg.EnabledCallerInfo,
		currentConfig: cfg,
	}
	logger.eventPool = &sync.Pool{
		New: func() any {
			return newEvent(logger)
		},
	}

	if cfg.FileAppender {
		logger.AddAppender(NewFileAppender(cfg))
	}
	if cfg.ConsoleAppender {
		logger.AddAppender(NewConsoleAppender())
	}
	return logger
}

// NewLoggerWithConfigManager creates a LinkLogger and registers it for
// configuration hot reload.
func NewLoggerWithConfigManager(cfg *LogCfg, configManager config.ConfigManager) *LinkLogger {
	logger := NewLogger(cfg)
	if configManager != nil {
		configManager.AddChangeListener(logger)
	}
	return logger
}

// OnConfigChanged implements config.ConfigChangeListener. Only the level,
// caller capture, and rotation threshold are applied live; appender
// topology changes require a new logger.
func (x *LinkLogger) OnConfigChanged(configName string, newConfig, oldConfig config.Config) error {
	newCfg, ok := newConfig.(*LogCfg)
	if !ok {
		return nil
	}

	x.mu.Lock()
	x.minLevel = newCfg.LogLevel
	x.enabledCaller = newCfg.EnabledCallerInfo
	x.currentConfig = newCfg
	x.mu.Unlock()
	return nil
}

// GetConfigName implements config.ConfigChangeListener.
func (x *LinkLogger) GetConfigName() string { return "logger" }

// GetCurrentConfig returns the configuration currently in effect.
func (x *LinkLogger) GetCurrentConfig() *LogCfg {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.currentConfig
}

// AddAppender attaches an output target.
func (x *LinkLogger) AddAppender(appender LogAppender) {
	x.mu.Lock()
	x.appenders = append(x.appenders, appender)
	x.mu.Unlock()
}

// GetAppender returns the current appenders.
func (x *LinkLogger) GetAppender() []LogAppender {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.appenders
}

// Refresh flushes all appenders.
func (x *LinkLogger) Refresh() {
	for _, a := range x.GetAppender() {
		a.Refresh()
	}
}

// Close flushes and closes all appenders.
func (x *LinkLogger) Close() {
	for _, a := range x.GetAppender() {
		a.Refresh()
		a.Close()
	}
}

func (x *LinkLogger) checkLevel(level Level) bool {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return level >= x.minLevel
}

// OnEventEnd dispatches a finished event and returns it to the pool.
func (x *LinkLogger) OnEventEnd(e *LogEvent) {
	for _, a := range x.GetAppender() {
		a.Append(e)
	}
	x.eventPool.Put(e)
}

func (x *LinkLogger) log(level Level) *LogEvent {
	if !x.checkLevel(level) {
		return nil
	}
	e, _ := x.eventPool.Get().(*LogEvent)
	e.reset(level, x.caller())
	return e
}

func (x *LinkLogger) caller() string {
	x.mu.RLock()
	enabled, skip := x.enabledCaller, x.callerSkip
	x.mu.RUnlock()
	if !enabled {
		return ""
	}
	_, file, line, ok := runtime.Caller(skip + 3)
	if !ok {
		return ""
	}
	short := file
	for i := len(file) - 1; i > 0; i-- {
		if file[i] == '/' {
			short = file[i+1:]
			break
		}
	}
	return short + ":" + strconv.Itoa(line)
}

// Debug starts a debug-level event. Returns nil when debug is disabled.
func (x *LinkLogger) Debug() *LogEvent { return x.log(DebugLevel) }

// Info starts an info-level event.
func (x *LinkLogger) Info() *LogEvent { return x.log(InfoLevel) }

// Warn starts a warn-level event.
func (x *LinkLogger) Warn() *LogEvent { return x.log(WarnLevel) }

// Error starts an error-level event.
func (x *LinkLogger) Error() *LogEvent { return x.log(ErrorLevel) }

// Fatal starts a fatal-level event. The logger does not exit the process;
// that decision belongs to the caller.
func (x *LinkLogger) Fatal() *LogEvent { return x.log(FatalLevel) }
