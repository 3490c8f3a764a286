package log

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captureAppender struct {
	lines     []string
	refreshed int
	closed    int
}

func (a *captureAppender) Append(e *LogEvent) {
	a.lines = append(a.lines, string(e.Bytes()))
}

func (a *captureAppender) Refresh() { a.refreshed++ }
func (a *captureAppender) Close()   { a.closed++ }

func newCaptureLogger(level Level) (*LinkLogger, *captureAppender) {
	logger := NewLogger(&LogCfg{LogLevel: level})
	capture := &captureAppender{}
	logger.AddAppender(capture)
	return logger, capture
}

func TestLoggerRendersFields(t *testing.T) {
	logger, capture := newCaptureLogger(DebugLevel)

	logger.Info().
		Str("tag", "gate").
		Int("count", 3).
		Uint64("conn", 42).
		Bool("live", true).
		Err(errors.New("link reset")).
		Msg("peer dropped")

	require.Len(t, capture.lines, 1)
	line := capture.lines[0]
	assert.Contains(t, line, "INFO")
	assert.Contains(t, line, `tag="gate"`)
	assert.Contains(t, line, "count=3")
	assert.Contains(t, line, "conn=42")
	assert.Contains(t, line, "live=true")
	assert.Contains(t, line, `error="link reset"`)
	assert.True(t, strings.HasSuffix(line, "peer dropped\n"))
}

func TestLoggerDisabledLevelIsNilSafe(t *testing.T) {
	logger, capture := newCaptureLogger(WarnLevel)

	// The whole chain must tolerate the nil event a gated level returns.
	logger.Debug().Str("k", "v").Int("n", 1).Err(errors.New("x")).Msg("dropped")
	logger.Info().Msg("also dropped")
	assert.Empty(t, capture.lines)

	logger.Warn().Msg("kept")
	logger.Error().Msg("kept")
	assert.Len(t, capture.lines, 2)
}

func TestLoggerNilErrAppendsNothing(t *testing.T) {
	logger, capture := newCaptureLogger(DebugLevel)
	logger.Info().Err(nil).Msg("fine")

	require.Len(t, capture.lines, 1)
	assert.NotContains(t, capture.lines[0], "error=")
}

type connInfo struct {
	id   uint64
	live bool
}

func (c connInfo) MarshalLogObj(e *LogEvent) {
	e.Uint64("id", c.id).Bool("live", c.live)
}

func TestLoggerObjectMarshaller(t *testing.T) {
	logger, capture := newCaptureLogger(DebugLevel)
	logger.Info().Obj(connInfo{id: 7, live: true}).Msg("state")

	require.Len(t, capture.lines, 1)
	assert.Contains(t, capture.lines[0], "id=7")
	assert.Contains(t, capture.lines[0], "live=true")
}

func TestLoggerEventPoolReuse(t *testing.T) {
	logger, capture := newCaptureLogger(DebugLevel)

	for i := 0; i < 100; i++ {
		logger.Info().Int("i", i).Msg("cycle")
	}
	require.Len(t, capture.lines, 100)
	assert.Contains(t, capture.lines[99], "i=99")
}

func TestLoggerLevelHotReload(t *testing.T) {
	logger, capture := newCaptureLogger(InfoLevel)

	logger.Debug().Msg("before reload")
	assert.Empty(t, capture.lines)

	err := logger.OnConfigChanged("logger", &LogCfg{LogLevel: DebugLevel}, logger.GetCurrentConfig())
	require.NoError(t, err)

	logger.Debug().Msg("after reload")
	assert.Len(t, capture.lines, 1)
	assert.Equal(t, DebugLevel, logger.GetCurrentConfig().LogLevel)
}

func TestLoggerRefreshAndClose(t *testing.T) {
	logger, capture := newCaptureLogger(DebugLevel)
	logger.Refresh()
	logger.Close()
	assert.Equal(t, 2, capture.refreshed, "close flushes once more")
	assert.Equal(t, 1, capture.closed)
}

func TestFileAppenderWritesAndSyncs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "linkmux.log")
	logger := NewLogger(&LogCfg{
		LogLevel:     DebugLevel,
		LogPath:      path,
		FileSplitMB:  1,
		FileAppender: true,
	})

	logger.Info().Str("tag", "file").Msg("persisted")
	logger.Close()

	body, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(body), `tag="file"`)
	assert.Contains(t, string(body), "persisted")
}

func TestLevelParsing(t *testing.T) {
	tests := []struct {
		level Level
		name  string
	}{
		{DebugLevel, "DEBUG"},
		{InfoLevel, "INFO"},
		{WarnLevel, "WARN"},
		{ErrorLevel, "ERROR"},
		{FatalLevel, "FATAL"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.name, tt.level.String())
	}
}
