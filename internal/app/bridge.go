package app

import (
	"context"
	"errors"
	"os"
	"os/user"
	"strings"

	"setupwiz/internal/config"
	"setupwiz/internal/engine"
	ilogger "setupwiz/internal/logger"
	"setupwiz/internal/pkgmgr"
	"setupwiz/internal/plan"
	"setupwiz/internal/sysprobe"
)

// Aliases keeping the CLI code terse; the types live in the internal packages.
type (
	Logger       = ilogger.Logger
	CleanupStats = ilogger.CleanupStats
	Report       = engine.Report
)

func setLogger(l *Logger)                   { ilogger.SetLogger(l) }
func closeLogger() error                    { return ilogger.CloseLogger() }
func activeLogger() *Logger                 { return ilogger.ActiveLogger() }
func logInfo(msg string)                    { ilogger.LogInfo(msg) }
func logWarn(msg string)                    { ilogger.LogWarn(msg) }
func logError(msg string)                   { ilogger.LogError(msg) }
func cleanupOldLogs() (CleanupStats, error) { return ilogger.CleanupOldLogs() }

// Seams for the CLI tests. Each default delegates to the real implementation;
// tests reassign and restore via t.Cleanup.
var (
	newLoggerFn       = ilogger.NewLogger
	detectFn          = sysprobe.Detect
	selectManagerFn   = pkgmgr.Select
	currentProfileFn  = config.CurrentProfile
	loadProfileFileFn = config.LoadProfileFile
	geteuidFn         = os.Geteuid
	userHomeDirFn     = os.UserHomeDir
	currentUserFn     = defaultCurrentUser
	runPlanFn         = defaultRunPlan
)

// loadProfile resolves the task profile: an explicit --profile path wins,
// otherwise the cached default profile (built-ins merged with
// ~/.setupwiz/profile.json) is used.
func loadProfile(path string) (*config.Profile, error) {
	if strings.TrimSpace(path) != "" {
		return loadProfileFileFn(path)
	}
	return currentProfileFn(), nil
}

func defaultCurrentUser() (string, error) {
	if u, err := user.Current(); err == nil && strings.TrimSpace(u.Username) != "" {
		return u.Username, nil
	}
	if name := strings.TrimSpace(os.Getenv("USER")); name != "" {
		return name, nil
	}
	return "", errors.New("cannot determine the invoking user")
}

func defaultRunPlan(ctx context.Context, p *plan.Plan, mgr pkgmgr.Manager, dist sysprobe.Distribution, opts engine.Options) *Report {
	return engine.New(p, mgr, nil, dist, opts).Run(ctx)
}
