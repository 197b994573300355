package logger

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// staleLogAge is how old a log file must be before an unknown process start
// time is treated as proof of a dead owner.
const staleLogAge = 7 * 24 * time.Hour

// CleanupStats summarizes one sweep over leftover log files.
type CleanupStats struct {
	Scanned      int
	Deleted      int
	Kept         int
	Errors       int
	DeletedFiles []string
	KeptFiles    []string
}

// Seams for the cleanup path; tests swap these via the Set*Fn helpers.
var (
	processRunningCheck = isProcessRunning
	processStartTimeFn  = getProcessStartTime
	removeLogFileFn     = os.Remove
	globLogFiles        = filepath.Glob
	fileStatFn          = os.Lstat
	evalSymlinksFn      = filepath.EvalSymlinks
)

// CleanupOldLogs deletes log files whose owning process is gone. Files that
// belong to live processes, fail to parse, or look unsafe to delete are kept.
func CleanupOldLogs() (CleanupStats, error) {
	return cleanupOldLogs()
}

func cleanupOldLogs() (CleanupStats, error) {
	var stats CleanupStats
	tempDir := os.TempDir()

	matches, err := globLogFiles(filepath.Join(tempDir, ToolName+"-*.log"))
	if err != nil {
		return stats, fmt.Errorf("failed to list log files: %w", err)
	}

	var errs []error
	for _, path := range matches {
		stats.Scanned++

		pid, ok := parsePIDFromLog(path)
		if !ok {
			stats.Kept++
			stats.KeptFiles = append(stats.KeptFiles, path)
			continue
		}

		if processRunningCheck(pid) && !isPIDReused(path, pid) {
			stats.Kept++
			stats.KeptFiles = append(stats.KeptFiles, path)
			continue
		}

		if unsafe, _ := isUnsafeFile(path, tempDir); unsafe {
			stats.Kept++
			stats.KeptFiles = append(stats.KeptFiles, path)
			continue
		}

		if err := removeLogFileFn(path); err != nil {
			stats.Errors++
			errs = append(errs, err)
			continue
		}
		stats.Deleted++
		stats.DeletedFiles = append(stats.DeletedFiles, path)
	}

	return stats, errors.Join(errs...)
}

// parsePIDFromLog extracts the owning PID from a log file name of the form
// <tool>-<pid>.log or <tool>-<pid>-<suffix>.log.
func parsePIDFromLog(path string) (int, bool) {
	base := filepath.Base(path)
	prefix := ToolName + "-"
	if !strings.HasPrefix(base, prefix) || !strings.HasSuffix(base, ".log") {
		return 0, false
	}
	core := strings.TrimSuffix(strings.TrimPrefix(base, prefix), ".log")
	pidPart := core
	if idx := strings.Index(core, "-"); idx >= 0 {
		pidPart = core[:idx]
	}
	pid, err := strconv.Atoi(pidPart)
	if err != nil || pid <= 0 {
		return 0, false
	}
	return pid, true
}

// isPIDReused guards against deleting the log of a PID that was recycled: if
// the current owner of the PID started after the log file was written, the
// writer is long gone.
func isPIDReused(path string, pid int) bool {
	info, err := fileStatFn(path)
	if err != nil {
		return false
	}
	start := processStartTimeFn(pid)
	if start.IsZero() {
		return time.Since(info.ModTime()) > staleLogAge
	}
	return start.After(info.ModTime())
}

// isUnsafeFile rejects deletion targets that are symlinks or resolve outside
// the temp directory.
func isUnsafeFile(path, tempDir string) (bool, string) {
	info, err := fileStatFn(path)
	if err != nil {
		return true, "cannot stat file"
	}
	if info.Mode()&os.ModeSymlink != 0 {
		return true, "refusing to delete symlink"
	}

	resolved, err := evalSymlinksFn(path)
	if err != nil {
		return true, "cannot resolve path"
	}
	resolvedTemp, err := evalSymlinksFn(tempDir)
	if err != nil {
		resolvedTemp = tempDir
	}
	absTemp, err := filepath.Abs(resolvedTemp)
	if err != nil {
		return true, "cannot resolve tempDir"
	}
	if !strings.HasPrefix(resolved, absTemp+string(os.PathSeparator)) {
		return true, "file is outside tempDir"
	}
	return false, ""
}
