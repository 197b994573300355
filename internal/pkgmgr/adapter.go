package pkgmgr

import (
	"context"
	"fmt"
	"strings"

	"setupwiz/internal/sysprobe"
	"setupwiz/internal/utils"
)

// stderrCap bounds how much captured stderr an error carries.
const stderrCap = 2000

// Adapter binds a Manager to a command runner and applies the query/install
// semantics shared by all managers.
type Adapter struct {
	mgr  Manager
	run  RunFunc
	sudo bool
}

// NewAdapter wires a manager to a runner. sudo controls whether commands
// that need root are prefixed with sudo; callers pass false when the process
// already runs as root.
func NewAdapter(mgr Manager, run RunFunc, sudo bool) *Adapter {
	if mgr == nil {
		panic("pkgmgr: nil Manager")
	}
	if run == nil {
		panic("pkgmgr: nil RunFunc")
	}
	return &Adapter{mgr: mgr, run: run, sudo: sudo}
}

func (a *Adapter) Kind() sysprobe.ManagerKind { return a.mgr.Kind() }

func (a *Adapter) argv(args []string) []string {
	if a.sudo && a.mgr.NeedsRoot() {
		return append([]string{"sudo"}, args...)
	}
	return args
}

// IsInstalled reports whether pkg is present. Exit 0 carrying the manager's
// installed marker means installed, exit 1 means absent; any other exit or a
// spawn failure is a query failure.
func (a *Adapter) IsInstalled(ctx context.Context, pkg string) (bool, error) {
	res, err := a.run(ctx, a.mgr.QueryArgs(pkg), a.mgr.Env())
	if err != nil {
		return false, &QueryError{Pkg: pkg, Cause: err}
	}
	switch res.ExitCode {
	case 0:
		marker := a.mgr.InstalledMarker()
		if marker != "" && !strings.Contains(res.Stdout, marker) {
			return false, nil
		}
		return true, nil
	case 1:
		return false, nil
	default:
		return false, &QueryError{
			Pkg:      pkg,
			ExitCode: res.ExitCode,
			Stderr:   utils.SafeTruncate(strings.TrimSpace(res.Stderr), stderrCap),
		}
	}
}

// Missing filters pkgs down to those not currently installed, preserving
// order. The first query failure aborts.
func (a *Adapter) Missing(ctx context.Context, pkgs []string) ([]string, error) {
	var missing []string
	for _, pkg := range pkgs {
		installed, err := a.IsInstalled(ctx, pkg)
		if err != nil {
			return nil, err
		}
		if !installed {
			missing = append(missing, pkg)
		}
	}
	return missing, nil
}

// Install installs pkgs without prompting. Non-zero exits map to
// *InstallError; stderr is scanned for lock signatures so callers can retry
// on contention.
func (a *Adapter) Install(ctx context.Context, pkgs ...string) error {
	if len(pkgs) == 0 {
		return nil
	}
	return a.runMutation(ctx, a.mgr.InstallArgs(pkgs))
}

func (a *Adapter) runMutation(ctx context.Context, args []string) error {
	argv := a.argv(args)
	res, err := a.run(ctx, argv, a.mgr.Env())
	if err != nil {
		logErrorFn(fmt.Sprintf("%s: command %q did not run: %v", a.mgr.Kind(), strings.Join(argv, " "), err))
		return &InstallError{Manager: string(a.mgr.Kind()), Cause: err}
	}
	if res.ExitCode == 0 {
		return nil
	}
	stderr := strings.TrimSpace(res.Stderr)
	locked := IsLockContention(stderr)
	if locked {
		logWarnFn(fmt.Sprintf("%s: package database locked while running %q", a.mgr.Kind(), strings.Join(argv, " ")))
	}
	return &InstallError{
		Manager:  string(a.mgr.Kind()),
		ExitCode: res.ExitCode,
		Stderr:   utils.SafeTruncate(stderr, stderrCap),
		Locked:   locked,
	}
}
