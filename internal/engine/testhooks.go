package engine

import (
	"context"
	"os/exec"
	"time"
)

// CommandRunner re-exports the subprocess seam for tests.
type CommandRunner = commandRunner

// SetForceKillDelay overrides the SIGTERM-to-SIGKILL grace period in seconds.
func SetForceKillDelay(seconds int32) (restore func()) {
	prev := forceKillDelay.Load()
	forceKillDelay.Store(seconds)
	return func() { forceKillDelay.Store(prev) }
}

// SetCommandContextFn overrides how exec.Cmd values are created.
func SetCommandContextFn(fn func(context.Context, string, ...string) *exec.Cmd) (restore func()) {
	prev := commandContext
	if fn != nil {
		commandContext = fn
	} else {
		commandContext = exec.CommandContext
	}
	return func() { commandContext = prev }
}

// SetNewCommandRunner replaces the runner factory so tests can script
// subprocess behavior without spawning anything.
func SetNewCommandRunner(fn func(context.Context, string, ...string) CommandRunner) (restore func()) {
	prev := newCommandRunner
	if fn != nil {
		newCommandRunner = fn
	} else {
		newCommandRunner = defaultNewCommandRunner
	}
	return func() { newCommandRunner = prev }
}

// SetSleepFn replaces the retry delay sleep.
func SetSleepFn(fn func(time.Duration)) (restore func()) {
	prev := sleepFn
	if fn != nil {
		sleepFn = fn
	} else {
		sleepFn = time.Sleep
	}
	return func() { sleepFn = prev }
}
