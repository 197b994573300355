package logger

import (
	"os"
	"path/filepath"
	"time"
)

// Seams for the cleanup tests. Passing nil reinstalls the real
// implementation; each call returns a restore func.

// SetProcessRunningCheck overrides how PID liveness is probed.
func SetProcessRunningCheck(fn func(int) bool) (restore func()) {
	prev := processRunningCheck
	if fn != nil {
		processRunningCheck = fn
	} else {
		processRunningCheck = isProcessRunning
	}
	return func() { processRunningCheck = prev }
}

// SetProcessStartTimeFn overrides how process start times are read.
func SetProcessStartTimeFn(fn func(int) time.Time) (restore func()) {
	prev := processStartTimeFn
	if fn != nil {
		processStartTimeFn = fn
	} else {
		processStartTimeFn = getProcessStartTime
	}
	return func() { processStartTimeFn = prev }
}

// SetRemoveLogFileFn overrides file deletion during the sweep.
func SetRemoveLogFileFn(fn func(string) error) (restore func()) {
	prev := removeLogFileFn
	if fn != nil {
		removeLogFileFn = fn
	} else {
		removeLogFileFn = os.Remove
	}
	return func() { removeLogFileFn = prev }
}

// SetGlobLogFilesFn overrides how candidate log files are listed.
func SetGlobLogFilesFn(fn func(string) ([]string, error)) (restore func()) {
	prev := globLogFiles
	if fn != nil {
		globLogFiles = fn
	} else {
		globLogFiles = filepath.Glob
	}
	return func() { globLogFiles = prev }
}

// SetFileStatFn overrides the lstat used to vet sweep candidates.
func SetFileStatFn(fn func(string) (os.FileInfo, error)) (restore func()) {
	prev := fileStatFn
	if fn != nil {
		fileStatFn = fn
	} else {
		fileStatFn = os.Lstat
	}
	return func() { fileStatFn = prev }
}

// SetEvalSymlinksFn overrides symlink resolution during candidate vetting.
func SetEvalSymlinksFn(fn func(string) (string, error)) (restore func()) {
	prev := evalSymlinksFn
	if fn != nil {
		evalSymlinksFn = fn
	} else {
		evalSymlinksFn = filepath.EvalSymlinks
	}
	return func() { evalSymlinksFn = prev }
}
