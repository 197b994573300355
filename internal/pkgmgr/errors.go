package pkgmgr

import (
	"errors"
	"fmt"
)

// ErrQueryFailed classifies installed-state queries that could not answer.
// A query failure is never treated as "not installed".
var ErrQueryFailed = errors.New("package query failed")

// ErrLockContention classifies failures caused by a concurrently held
// package database lock. The engine retries only these.
var ErrLockContention = errors.New("package database locked")

// QueryError reports an installed-state query that failed to answer.
type QueryError struct {
	Pkg      string
	ExitCode int
	Stderr   string
	Cause    error
}

func (e *QueryError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("query %s: %v", e.Pkg, e.Cause)
	}
	if e.Stderr != "" {
		return fmt.Sprintf("query %s: exit code %d: %s", e.Pkg, e.ExitCode, e.Stderr)
	}
	return fmt.Sprintf("query %s: exit code %d", e.Pkg, e.ExitCode)
}

func (e *QueryError) Unwrap() error { return e.Cause }

func (e *QueryError) Is(target error) bool { return target == ErrQueryFailed }

// InstallError reports a failed install or refresh command.
type InstallError struct {
	Manager  string
	ExitCode int
	Stderr   string
	Locked   bool
	Cause    error
}

func (e *InstallError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Manager, e.Cause)
	}
	if e.Locked {
		return fmt.Sprintf("%s: package database locked (exit code %d)", e.Manager, e.ExitCode)
	}
	if e.Stderr != "" {
		return fmt.Sprintf("%s failed with exit code %d: %s", e.Manager, e.ExitCode, e.Stderr)
	}
	return fmt.Sprintf("%s failed with exit code %d", e.Manager, e.ExitCode)
}

func (e *InstallError) Unwrap() error { return e.Cause }

func (e *InstallError) Is(target error) bool { return target == ErrLockContention && e.Locked }
