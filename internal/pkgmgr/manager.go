// Package pkgmgr adapts the host package manager behind a uniform interface.
package pkgmgr

import (
	"context"

	"setupwiz/internal/sysprobe"
)

// Manager describes one package manager. Implementations only build argv;
// execution happens in the Adapter through an injected RunFunc.
type Manager interface {
	Kind() sysprobe.ManagerKind
	// InstallArgs returns the full non-interactive install command.
	InstallArgs(pkgs []string) []string
	// QueryArgs returns the installed-state query for a single package.
	QueryArgs(pkg string) []string
	// RefreshArgs returns the metadata refresh command, or nil when the
	// manager refreshes implicitly on install.
	RefreshArgs() []string
	// InstalledMarker is a substring that must appear on a successful
	// query's stdout for the package to count as installed. Empty means
	// the exit code alone decides.
	InstalledMarker() string
	// Env lists extra KEY=VALUE entries required for non-interactive runs.
	Env() []string
	// NeedsRoot reports whether mutating commands must run as root.
	NeedsRoot() bool
}

// Result captures one finished command.
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// RunFunc executes argv with extra environment entries and captures the
// outcome. Implementations return an error only when the command could not
// run at all (spawn failure, cancelled context); non-zero exits are reported
// through Result.
type RunFunc func(ctx context.Context, argv []string, env []string) (Result, error)

var (
	logWarnFn  = func(string) {}
	logErrorFn = func(string) {}
)

// SetLogFuncs configures optional logging hooks used by the adapter.
// Callers can safely pass nil to disable a hook.
func SetLogFuncs(warnFn, errorFn func(string)) {
	if warnFn != nil {
		logWarnFn = warnFn
	} else {
		logWarnFn = func(string) {}
	}
	if errorFn != nil {
		logErrorFn = errorFn
	} else {
		logErrorFn = func(string) {}
	}
}
