// Package logger provides the process-scoped run log. Entries are written
// asynchronously to a per-PID file in the temp directory so a crashed run
// leaves its log behind for inspection.
package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"
)

const (
	// logQueueSize bounds the async write queue. Writers block when the
	// worker falls this far behind.
	logQueueSize = 256

	// maxErrorEntries bounds the in-memory cache of recent warnings and
	// errors echoed to the user after a failed run.
	maxErrorEntries = 100
)

type logEntry struct {
	level zerolog.Level
	msg   string
	flush chan struct{}
}

// Logger writes structured log lines to a temp file through a single worker
// goroutine. All methods are safe for concurrent use and nil receivers.
type Logger struct {
	path string
	file *os.File
	zl   zerolog.Logger

	mu     sync.Mutex
	closed bool
	ch     chan logEntry
	done   chan struct{}

	errMu      sync.Mutex
	recentErrs []string
}

// NewLogger creates the log file for this process in the temp directory.
func NewLogger() (*Logger, error) {
	return newLogger("")
}

// NewLoggerWithSuffix creates a log file whose name carries an extra suffix,
// for auxiliary commands that must not collide with the main run log.
func NewLoggerWithSuffix(suffix string) (*Logger, error) {
	return newLogger(sanitizeLogSuffix(suffix))
}

func newLogger(suffix string) (*Logger, error) {
	name := fmt.Sprintf("%s-%d.log", ToolName, os.Getpid())
	if suffix != "" {
		name = fmt.Sprintf("%s-%d-%s.log", ToolName, os.Getpid(), suffix)
	}
	path := filepath.Join(os.TempDir(), name)

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, fmt.Errorf("failed to create log file %s: %w", path, err)
	}

	l := &Logger{
		path: path,
		file: file,
		zl:   zerolog.New(file).With().Timestamp().Logger().Level(zerolog.TraceLevel),
		ch:   make(chan logEntry, logQueueSize),
		done: make(chan struct{}),
	}
	go l.worker()
	return l, nil
}

// sanitizeLogSuffix maps a caller-provided suffix to something safe in a file
// name. Distinct inputs stay distinct so concurrent auxiliary logs cannot
// collide.
func sanitizeLogSuffix(suffix string) string {
	out := make([]rune, 0, len(suffix))
	for _, r := range suffix {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			out = append(out, r)
		case r == '-' || r == '_' || r == '.':
			out = append(out, r)
		default:
			out = append(out, '_')
		}
	}
	const maxSuffixLen = 48
	if len(out) > maxSuffixLen {
		out = out[:maxSuffixLen]
	}
	return string(out)
}

func (l *Logger) worker() {
	defer close(l.done)
	for e := range l.ch {
		if e.flush != nil {
			_ = l.file.Sync()
			close(e.flush)
			continue
		}
		l.zl.WithLevel(e.level).Msg(e.msg)
	}
	_ = l.file.Sync()
}

// Path returns the log file path, or "" for a nil logger.
func (l *Logger) Path() string {
	if l == nil {
		return ""
	}
	return l.path
}

func (l *Logger) Debug(msg string) { l.log(zerolog.DebugLevel, msg) }
func (l *Logger) Info(msg string)  { l.log(zerolog.InfoLevel, msg) }
func (l *Logger) Warn(msg string)  { l.log(zerolog.WarnLevel, msg) }
func (l *Logger) Error(msg string) { l.log(zerolog.ErrorLevel, msg) }

func (l *Logger) log(level zerolog.Level, msg string) {
	if l == nil || l.ch == nil {
		return
	}
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	l.ch <- logEntry{level: level, msg: msg}
	l.mu.Unlock()

	if level == zerolog.WarnLevel || level == zerolog.ErrorLevel {
		l.cacheError(msg)
	}
}

func (l *Logger) cacheError(msg string) {
	l.errMu.Lock()
	defer l.errMu.Unlock()
	l.recentErrs = append(l.recentErrs, msg)
	if len(l.recentErrs) > maxErrorEntries {
		l.recentErrs = l.recentErrs[len(l.recentErrs)-maxErrorEntries:]
	}
}

// Flush blocks until every entry queued so far has reached the file.
func (l *Logger) Flush() {
	if l == nil || l.ch == nil {
		return
	}
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	flushed := make(chan struct{})
	l.ch <- logEntry{flush: flushed}
	l.mu.Unlock()
	<-flushed
}

// Close stops the worker and closes the file. The file itself is kept so a
// failed run can be inspected afterwards.
func (l *Logger) Close() error {
	if l == nil || l.ch == nil {
		return nil
	}
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	close(l.ch)
	l.mu.Unlock()

	<-l.done
	return l.file.Close()
}

// RemoveLogFile deletes the log file. Safe on nil loggers and idempotent.
func (l *Logger) RemoveLogFile() error {
	if l == nil || l.path == "" {
		return nil
	}
	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// ExtractRecentErrors returns up to maxEntries of the most recent warning and
// error messages, oldest first.
func (l *Logger) ExtractRecentErrors(maxEntries int) []string {
	if l == nil || l.path == "" || maxEntries <= 0 {
		return nil
	}
	l.errMu.Lock()
	defer l.errMu.Unlock()
	if len(l.recentErrs) == 0 {
		return nil
	}
	start := len(l.recentErrs) - maxEntries
	if start < 0 {
		start = 0
	}
	out := make([]string, len(l.recentErrs)-start)
	copy(out, l.recentErrs[start:])
	return out
}
