// Package log implements the structured logging facade used across the
// linkmux transport shim. The design favors a pooled event object with
// chained field methods so that disabled levels stay allocation-free.
package log

import (
	"github.com/lcx/linkmux/config"
)

// Logger is the interface satisfied by LinkLogger.
type Logger interface {
	Debug() *LogEvent
	Info() *LogEvent
	Warn() *LogEvent
	Error() *LogEvent
	Fatal() *LogEvent
	GetAppender() []LogAppender
	AddAppender(appender LogAppender)
	OnEventEnd(e *LogEvent)
}

var _defaultLogger *LinkLogger

func init() {
	_defaultLogger = NewLogger(nil)
}

// AddAppender adds an appender to the default logger.
func AddAppender(appender LogAppender) {
	_defaultLogger.AddAppender(appender)
}

// Refresh flushes the default logger's appenders.
func Refresh() {
	_defaultLogger.Refresh()
}

// SetDefaultLogger replaces the default logger.
func SetDefaultLogger(logger *LinkLogger) {
	_defaultLogger = logger
}

// Initialize loads the "logger" configuration from the singleton config
// manager and installs a hot-reloadable default logger.
func Initialize() error {
	return InitializeWithConfigManager(config.GetInstance())
}

// InitializeWithConfigManager loads the "logger" configuration from the
// given manager and installs a hot-reloadable default logger.
func InitializeWithConfigManager(configManager config.ConfigManager) error {
	if configManager == nil {
		return nil
	}

	logCfg := &LogCfg{}
	if err := configManager.LoadConfig("logger", logCfg); err != nil {
		return err
	}

	SetDefaultLogger(NewLoggerWithConfigManager(logCfg, configManager))
	return nil
}

// Debug starts a debug event on the default logger.
func Debug() *LogEvent {
	return _defaultLogger.Debug()
}

// Info starts an info event on the default logger.
func Info() *LogEvent {
	return _defaultLogger.Info()
}

// Warn starts a warn event on the default logger.
func Warn() *LogEvent {
	return _defaultLogger.Warn()
}

// Error starts an error event on the default logger.
func Error() *LogEvent {
	return _defaultLogger.Error()
}

// Fatal starts a fatal event on the default logger.
func Fatal() *LogEvent {
	return _defaultLogger.Fatal()
}
