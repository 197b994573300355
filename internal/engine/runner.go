package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"setupwiz/internal/logger"
)

// captureLimit bounds the separately captured stdout and stderr of one
// command. The combined tail for the report has its own limit.
const captureLimit = 8192

// command describes one subprocess.
type command struct {
	argv  []string
	env   []string // extra KEY=VALUE entries appended to the environment
	stdin string
}

// runResult is what a finished subprocess leaves behind.
type runResult struct {
	exitCode int
	stdout   string
	stderr   string
}

// commandRunner abstracts exec.Cmd so tests can script process behavior.
type commandRunner interface {
	SetStdin(r io.Reader)
	SetStdout(w io.Writer)
	SetStderr(w io.Writer)
	SetEnv(env []string)
	// Run executes the command and returns its exit code. The error is
	// non-nil only when the command could not run to completion.
	Run() (int, error)
}

// processHandle is the part of *os.Process the cancel path needs.
type processHandle interface {
	Signal(sig os.Signal) error
}

// forceKillDelay is how many seconds a cancelled subprocess gets between
// SIGTERM and SIGKILL.
var forceKillDelay atomic.Int32

func init() {
	forceKillDelay.Store(5)
}

// sendTermSignal asks a subprocess to shut down gracefully.
func sendTermSignal(proc processHandle) error {
	if proc == nil {
		return nil
	}
	return proc.Signal(syscall.SIGTERM)
}

var commandContext = exec.CommandContext

var newCommandRunner = defaultNewCommandRunner

func defaultNewCommandRunner(ctx context.Context, name string, args ...string) commandRunner {
	cmd := commandContext(ctx, name, args...)
	if cmd.Cancel != nil {
		// CommandContext installs a hard kill. Prefer SIGTERM with a
		// bounded grace period so package managers can release their
		// locks before the process dies.
		cmd.Cancel = func() error { return sendTermSignal(cmd.Process) }
		cmd.WaitDelay = time.Duration(forceKillDelay.Load()) * time.Second
	}
	return &realCmd{cmd: cmd}
}

type realCmd struct {
	cmd *exec.Cmd
}

func (c *realCmd) SetStdin(r io.Reader)  { c.cmd.Stdin = r }
func (c *realCmd) SetStdout(w io.Writer) { c.cmd.Stdout = w }
func (c *realCmd) SetStderr(w io.Writer) { c.cmd.Stderr = w }

func (c *realCmd) SetEnv(env []string) {
	if len(env) == 0 {
		return
	}
	c.cmd.Env = append(os.Environ(), env...)
}

func (c *realCmd) Run() (int, error) {
	err := c.cmd.Run()
	if err == nil {
		return 0, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode(), nil
	}
	return 0, err
}

// Log sinks, swappable in tests.
var (
	logInfo  = logger.LogInfo
	logWarn  = logger.LogWarn
	logError = logger.LogError
)

// runCommand executes cmd, streaming combined output into the run log and
// the task tail while capturing bounded stdout/stderr. A non-zero exit is
// not an error here; errors mean the command did not run to completion
// (spawn failure or cancellation).
func runCommand(ctx context.Context, cmd command, tail *tailBuffer) (runResult, error) {
	if len(cmd.argv) == 0 {
		return runResult{}, errors.New("empty argv")
	}

	runner := newCommandRunner(ctx, cmd.argv[0], cmd.argv[1:]...)

	lw := newLogWriter("  | ", 0)
	defer lw.Flush()

	stdout := &tailBuffer{limit: captureLimit}
	stderr := &tailBuffer{limit: captureLimit}

	outWriters := []io.Writer{stdout, lw}
	errWriters := []io.Writer{stderr, lw}
	if tail != nil {
		outWriters = append(outWriters, tail)
		errWriters = append(errWriters, tail)
	}
	runner.SetStdout(io.MultiWriter(outWriters...))
	runner.SetStderr(io.MultiWriter(errWriters...))
	runner.SetEnv(cmd.env)
	if cmd.stdin != "" {
		runner.SetStdin(strings.NewReader(cmd.stdin))
	}

	code, err := runner.Run()
	if ctxErr := ctx.Err(); ctxErr != nil {
		return runResult{stdout: stdout.String(), stderr: stderr.String()}, ctxErr
	}
	if err != nil {
		return runResult{}, fmt.Errorf("command %q: %w", cmd.argv[0], err)
	}
	return runResult{
		exitCode: code,
		stdout:   stdout.String(),
		stderr:   stderr.String(),
	}, nil
}
