package log

import (
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"
)

// LogAppender consumes finished log events.
type LogAppender interface {
	// Append writes one rendered event. The event buffer is only valid for
	// the duration of the call; appenders that defer writing must copy.
	Append(e *LogEvent)

	// Refresh flushes buffered output.
	Refresh()

	// Close releases the appender's resources.
	Close()
}

// ConsoleAppender writes events to stdout.
type ConsoleAppender struct {
	mu sync.Mutex
}

// NewConsoleAppender creates a stdout appender.
func NewConsoleAppender() *ConsoleAppender {
	return &ConsoleAppender{}
}

// Append implements LogAppender.
func (a *ConsoleAppender) Append(e *LogEvent) {
	a.mu.Lock()
	_, _ = os.Stdout.Write(e.Bytes())
	a.mu.Unlock()
}

// Refresh implements LogAppender.
func (a *ConsoleAppender) Refresh() {}

// Close implements LogAppender.
func (a *ConsoleAppender) Close() {}

// FileAppender writes events to a log file with size-based rotation and
// optional asynchronous buffering.
type FileAppender struct {
	mu       sync.Mutex
	path     string
	splitMB  int
	file     *os.File
	written  int64
	async    bool
	entries  chan []byte
	done     chan struct{}
	doneOnce sync.Once
}

// NewFileAppender creates a file appender from cfg. The directory is
// created on demand; open failures fall back to dropping output rather
// than failing the logger.
func NewFileAppender(cfg *LogCfg) *FileAppender {
	a := &FileAppender{
		path:    cfg.LogPath,
		splitMB: cfg.FileSplitMB,
		async:   cfg.IsAsync,
	}
	if a.async {
		cache := cfg.AsyncCacheSize
		if cache <= 0 {
			cache = 1024
		}
		a.entries = make(chan []byte, cache)
		a.done = make(chan struct{})
		go a.serveAsync()
	}
	return a
}

// Append implements LogAppender.
func (a *FileAppender) Append(e *LogEvent) {
	if a.async {
		line := make([]byte, len(e.Bytes()))
		copy(line, e.Bytes())
		select {
		case a.entries <- line:
		default:
			// Cache full, drop rather than block the caller.
		}
		return
	}

	a.mu.Lock()
	a.write(e.Bytes())
	a.mu.Unlock()
}

// Refresh implements LogAppender.
func (a *FileAppender) Refresh() {
	a.mu.Lock()
	if a.file != nil {
		_ = a.file.Sync()
	}
	a.mu.Unlock()
}

// Close implements LogAppender.
func (a *FileAppender) Close() {
	if a.async {
		a.doneOnce.Do(func() { close(a.done) })
	}
	a.mu.Lock()
	if a.file != nil {
		_ = a.file.Close()
		a.file = nil
	}
	a.mu.Unlock()
}

func (a *FileAppender) serveAsync() {
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case line := <-a.entries:
			a.mu.Lock()
			a.write(line)
			a.mu.Unlock()
		case <-ticker.C:
			a.Refresh()
		case <-a.done:
			for {
				select {
				case line := <-a.entries:
					a.mu.Lock()
					a.write(line)
					a.mu.Unlock()
				default:
					return
				}
			}
		}
	}
}

// write appends one line, rotating first if the size threshold is hit.
// Caller holds a.mu.
func (a *FileAppender) write(line []byte) {
	if a.file == nil && !a.open() {
		return
	}
	if a.splitMB > 0 && a.written+int64(len(line)) > int64(a.splitMB)*1024*1024 {
		a.rotate()
	}
	n, err := a.file.Write(line)
	if err == nil {
		a.written += int64(n)
	}
}

func (a *FileAppender) open() bool {
	if err := os.MkdirAll(filepath.Dir(a.path), 0o755); err != nil {
		return false
	}
	f, err := os.OpenFile(a.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return false
	}
	info, err := f.Stat()
	if err == nil {
		a.written = info.Size()
	}
	a.file = f
	return true
}

func (a *FileAppender) rotate() {
	_ = a.file.Close()
	a.file = nil
	rotated := a.path + "." + strconv.FormatInt(time.Now().Unix(), 10)
	_ = os.Rename(a.path, rotated)
	a.written = 0
	a.open()
}
