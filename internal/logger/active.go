package logger

import "sync/atomic"

// active holds the process-wide logger behind the package-level Log* helpers.
// Components log through those so they stay decoupled from the lifecycle the
// CLI drives.
var active atomic.Pointer[Logger]

// SetLogger installs l as the active logger for the process.
func SetLogger(l *Logger) {
	active.Store(l)
}

// CloseLogger detaches the active logger and closes it. Calling it with no
// logger installed is a no-op.
func CloseLogger() error {
	l := active.Swap(nil)
	if l == nil {
		return nil
	}
	return l.Close()
}

// ActiveLogger returns the installed logger, or nil outside a run.
func ActiveLogger() *Logger {
	return active.Load()
}

// The helpers below are no-ops while no logger is installed; Logger methods
// tolerate nil receivers.

func LogDebug(msg string) { ActiveLogger().Debug(msg) }

func LogInfo(msg string) { ActiveLogger().Info(msg) }

func LogWarn(msg string) { ActiveLogger().Warn(msg) }

func LogError(msg string) { ActiveLogger().Error(msg) }
