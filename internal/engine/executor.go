package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"setupwiz/internal/fsops"
	"setupwiz/internal/pkgmgr"
	"setupwiz/internal/plan"
	"setupwiz/internal/sysprobe"
	"setupwiz/internal/utils"
)

// BackupSuffix is appended to a config destination when the existing file is
// preserved before overwrite.
const BackupSuffix = ".bak"

const (
	defaultRetryAttempts = 3
	defaultRetryDelay    = 2 * time.Second
	defaultTailLimit     = 4096
)

var sleepFn = time.Sleep

// Options tune executor policy. Zero values pick the defaults.
type Options struct {
	// RetryAttempts bounds how often a lock-contended command is tried.
	RetryAttempts int
	// RetryDelay is the fixed pause between lock-contention retries.
	RetryDelay time.Duration
	// TailLimit bounds the captured combined output per task.
	TailLimit int
	// Sudo prefixes root-requiring commands with sudo.
	Sudo bool
}

// Executor runs a plan sequentially against one detected environment. It
// exclusively owns the running plan and the in-progress report; both
// subprocesses and file mutations flow through the adapter and the fs seam.
type Executor struct {
	plan    *plan.Plan
	adapter *pkgmgr.Adapter
	fs      fsops.FS
	distro  sysprobe.Distribution
	kind    sysprobe.ManagerKind

	retryAttempts int
	retryDelay    time.Duration
	tailLimit     int
	sudo          bool

	// tail captures the current task's combined output. Execution is
	// strictly sequential, so a single field suffices.
	tail *tailBuffer
}

// New builds an executor. mgr may be nil when the plan contains no
// install tasks and no caller needs the adapter.
func New(p *plan.Plan, mgr pkgmgr.Manager, fs fsops.FS, distro sysprobe.Distribution, opts Options) *Executor {
	e := &Executor{
		plan:          p,
		fs:            fs,
		distro:        distro,
		retryAttempts: opts.RetryAttempts,
		retryDelay:    opts.RetryDelay,
		tailLimit:     opts.TailLimit,
		sudo:          opts.Sudo,
	}
	if e.retryAttempts <= 0 {
		e.retryAttempts = defaultRetryAttempts
	}
	if e.retryDelay <= 0 {
		e.retryDelay = defaultRetryDelay
	}
	if e.tailLimit <= 0 {
		e.tailLimit = defaultTailLimit
	}
	if fs == nil {
		e.fs = fsops.NewRealFS()
	}
	if mgr != nil {
		e.kind = mgr.Kind()
		e.adapter = pkgmgr.NewAdapter(mgr, e.adapterRun, opts.Sudo)
	}
	return e
}

// adapterRun routes package-manager commands through the shared runner so
// their output lands in the run log and the task tail.
func (e *Executor) adapterRun(ctx context.Context, argv []string, env []string) (pkgmgr.Result, error) {
	res, err := runCommand(ctx, command{argv: argv, env: env}, e.tail)
	if err != nil {
		return pkgmgr.Result{}, err
	}
	return pkgmgr.Result{ExitCode: res.exitCode, Stdout: res.stdout, Stderr: res.stderr}, nil
}

// Run executes the plan in order and returns the report. Individual task
// failures never abort the run; they only skip dependents. Cancelling ctx
// fails the running task, skips the rest, and performs no rollback.
func (e *Executor) Run(ctx context.Context) *Report {
	report := NewReport(e.distro.String(), e.kind.String())
	order := e.plan.Order()

	states := make(map[string]State, len(order))
	for _, id := range order {
		states[id] = StatePending
	}
	outcomes := make(map[string]*Outcome, len(order))

	logInfo(fmt.Sprintf("run started: %d tasks on %s via %s", len(order), report.Distro, report.Manager))

	for _, id := range order {
		task, ok := e.plan.Task(id)
		if !ok {
			// Plans are immutable after Build; this cannot happen.
			logError("plan order references unknown task " + id)
			continue
		}

		if report.Cancelled || ctx.Err() != nil {
			report.Cancelled = true
			outcomes[id] = e.skip(report, states, task, ReasonCancelled)
			continue
		}

		if blocker := blockedBy(task, outcomes); blocker != "" {
			logWarn(fmt.Sprintf("task %s skipped: dependency %s not satisfied", id, blocker))
			outcomes[id] = e.skip(report, states, task, ReasonDependency)
			continue
		}

		outcome := e.runTask(ctx, task, states)
		if outcome.State == StateFailed && outcome.Detail == ReasonCancelled {
			report.Cancelled = true
		}
		outcomes[id] = &outcome
		report.append(outcome)
	}

	report.finalize()
	logInfo("run finished: " + report.Summary())
	return report
}

// blockedBy returns the id of the first dependency that does not satisfy the
// gate, or "" when the task may run. A dependency satisfies the gate when it
// succeeded, or when it failed but was allowed to fail.
func blockedBy(task plan.Task, outcomes map[string]*Outcome) string {
	for _, dep := range task.DependsOn {
		o, ok := outcomes[dep]
		if !ok {
			return dep
		}
		switch o.State {
		case StateSucceeded:
			continue
		case StateFailed:
			if o.AllowFailure {
				continue
			}
		}
		return dep
	}
	return ""
}

func (e *Executor) skip(report *Report, states map[string]State, task plan.Task, reason string) *Outcome {
	if err := Transition(states, task.ID, StatePending, StateSkipped); err != nil {
		logError(err.Error())
	}
	o := Outcome{
		TaskID:       task.ID,
		Name:         task.Name,
		State:        StateSkipped,
		Detail:       reason,
		AllowFailure: task.AllowFailure,
	}
	report.append(o)
	return &o
}

func (e *Executor) runTask(ctx context.Context, task plan.Task, states map[string]State) Outcome {
	if err := Transition(states, task.ID, StatePending, StateRunning); err != nil {
		logError(err.Error())
	}

	outcome := Outcome{
		TaskID:       task.ID,
		Name:         task.Name,
		AllowFailure: task.AllowFailure,
		StartedAt:    time.Now(),
	}
	logInfo(fmt.Sprintf("task %s started (%s)", task.ID, task.Kind))

	e.tail = &tailBuffer{limit: e.tailLimit}
	defer func() { e.tail = nil }()

	var res stepResult
	var err error
	for attempt := 1; ; attempt++ {
		outcome.Attempts = attempt
		res, err = e.runStep(ctx, task)
		if err == nil || !errors.Is(err, pkgmgr.ErrLockContention) || attempt >= e.retryAttempts {
			break
		}
		logWarn(fmt.Sprintf("task %s: package database locked, retrying in %s (attempt %d/%d)",
			task.ID, e.retryDelay, attempt, e.retryAttempts))
		sleepFn(e.retryDelay)
		if ctx.Err() != nil {
			err = ctx.Err()
			break
		}
	}

	outcome.Duration = time.Since(outcome.StartedAt)
	outcome.Output = e.tail.String()

	if err == nil {
		if terr := Transition(states, task.ID, StateRunning, StateSucceeded); terr != nil {
			logError(terr.Error())
		}
		outcome.State = StateSucceeded
		outcome.Detail = res.detail
		logInfo(fmt.Sprintf("task %s succeeded in %s", task.ID, outcome.Duration.Round(time.Millisecond)))
		return outcome
	}

	if terr := Transition(states, task.ID, StateRunning, StateFailed); terr != nil {
		logError(terr.Error())
	}
	outcome.State = StateFailed
	outcome.ExitCode = failureExitCode(err)
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		outcome.Detail = ReasonCancelled
	} else {
		outcome.Detail = describeFailure(err)
	}
	logError(fmt.Sprintf("task %s failed: %s", task.ID, outcome.Detail))
	return outcome
}

func failureExitCode(err error) int {
	var installErr *pkgmgr.InstallError
	if errors.As(err, &installErr) {
		return installErr.ExitCode
	}
	var sErr *stepError
	if errors.As(err, &sErr) {
		return sErr.exitCode
	}
	return 0
}

// describeFailure turns a step error into the outcome detail, preferring the
// most informative stderr lines over raw error text.
func describeFailure(err error) string {
	var installErr *pkgmgr.InstallError
	if errors.As(err, &installErr) && installErr.Stderr != "" {
		if detail := failureDetail(installErr.Stderr, detailLimit); detail != "" {
			return fmt.Sprintf("exit code %d: %s", installErr.ExitCode, detail)
		}
	}
	var sErr *stepError
	if errors.As(err, &sErr) && sErr.output != "" {
		if detail := failureDetail(sErr.output, detailLimit); detail != "" {
			return fmt.Sprintf("exit code %d: %s", sErr.exitCode, detail)
		}
	}
	return utils.SafeTruncate(err.Error(), detailLimit)
}
