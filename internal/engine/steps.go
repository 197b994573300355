package engine

import (
	"context"
	"fmt"
	"strings"

	"setupwiz/internal/pkgmgr"
	"setupwiz/internal/plan"
	"setupwiz/internal/utils"
)

// stepResult carries what a successful step wants to say in its outcome.
type stepResult struct {
	detail string
}

// stepError reports a shell step that exited non-zero.
type stepError struct {
	exitCode int
	output   string
	locked   bool
}

func (e *stepError) Error() string {
	return fmt.Sprintf("exit code %d", e.exitCode)
}

func (e *stepError) Is(target error) bool {
	return target == pkgmgr.ErrLockContention && e.locked
}

func (e *Executor) runStep(ctx context.Context, task plan.Task) (stepResult, error) {
	switch task.Kind {
	case plan.KindInstallPackages:
		return e.installStep(ctx, task)
	case plan.KindWriteConfigFile:
		return e.writeStep(task)
	case plan.KindRunShellStep:
		return e.shellStep(ctx, task)
	}
	// The planner validates kinds; this is unreachable for built plans.
	return stepResult{}, fmt.Errorf("unknown task kind %q", task.Kind)
}

// installStep is install-if-absent: query first, install only the missing
// subset. Query failures fail the task instead of triggering a blind
// install.
func (e *Executor) installStep(ctx context.Context, task plan.Task) (stepResult, error) {
	if e.adapter == nil {
		return stepResult{}, fmt.Errorf("no package manager available")
	}
	if len(task.Packages) == 0 {
		return stepResult{detail: "no packages requested"}, nil
	}
	missing, err := e.adapter.Missing(ctx, task.Packages)
	if err != nil {
		return stepResult{}, err
	}
	if len(missing) == 0 {
		return stepResult{detail: "already installed"}, nil
	}
	if err := e.adapter.Install(ctx, missing...); err != nil {
		return stepResult{}, err
	}
	detail := "installed " + strings.Join(missing, " ")
	return stepResult{detail: utils.SafeTruncate(detail, detailLimit)}, nil
}

// writeStep deploys a config file all-or-nothing: back up an existing
// destination first (a backup failure aborts with the destination
// untouched), then write atomically.
func (e *Executor) writeStep(task plan.Task) (stepResult, error) {
	content := task.Content
	if task.Source != "" {
		data, err := e.fs.ReadFile(task.Source)
		if err != nil {
			return stepResult{}, fmt.Errorf("read source: %w", err)
		}
		content = data
	}

	mode := task.Mode
	if mode == 0 {
		mode = 0o644
	}

	detail := "wrote " + task.Dest
	if task.Backup {
		exists, err := e.fs.Exists(task.Dest)
		if err != nil {
			return stepResult{}, fmt.Errorf("stat destination: %w", err)
		}
		if exists {
			backupPath, err := e.fs.Backup(task.Dest, BackupSuffix)
			if err != nil {
				return stepResult{}, fmt.Errorf("backup before overwrite: %w", err)
			}
			detail = fmt.Sprintf("wrote %s (backup: %s)", task.Dest, backupPath)
		}
	}

	if err := e.fs.AtomicWrite(task.Dest, content, mode); err != nil {
		return stepResult{}, fmt.Errorf("write %s: %w", task.Dest, err)
	}
	return stepResult{detail: detail}, nil
}

// shellStep runs one command, honoring the Creates idempotence guard and the
// per-task sudo flag. Lock-contention signatures in the output classify the
// failure as retryable.
func (e *Executor) shellStep(ctx context.Context, task plan.Task) (stepResult, error) {
	if task.Creates != "" {
		if exists, err := e.fs.Exists(task.Creates); err == nil && exists {
			return stepResult{detail: "already configured"}, nil
		}
	}

	argv := task.Argv
	if task.Sudo && e.sudo {
		argv = append([]string{"sudo"}, argv...)
	}

	res, err := runCommand(ctx, command{argv: argv, stdin: task.Stdin}, e.tail)
	if err != nil {
		return stepResult{}, err
	}
	if res.exitCode != 0 {
		output := res.stderr
		if output == "" {
			output = res.stdout
		}
		return stepResult{}, &stepError{
			exitCode: res.exitCode,
			output:   output,
			locked:   pkgmgr.IsLockContention(output),
		}
	}
	return stepResult{}, nil
}
