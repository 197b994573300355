package app

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/fatih/color"
	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"setupwiz/internal/config"
	"setupwiz/internal/engine"
	"setupwiz/internal/pkgmgr"
	"setupwiz/internal/plan"
	"setupwiz/internal/sysprobe"
)

// pipelineStub swaps every external seam for a happy-path fixture and records
// what the CLI hands to the engine.
type pipelineStub struct {
	report   *engine.Report
	runCalls int
	lastPlan *plan.Plan
	lastOpts engine.Options
	lastCtx  context.Context
}

// stubPipeline isolates the environment (TMPDIR, HOME, SETUPWIZ_*) and
// installs deterministic probe, profile, and engine stubs. The default report
// is a clean two-task success.
func stubPipeline(t *testing.T) *pipelineStub {
	t.Helper()

	t.Setenv("TMPDIR", t.TempDir())
	t.Setenv("HOME", t.TempDir())
	t.Setenv("USERPROFILE", t.TempDir())
	t.Setenv("SETUPWIZ_LOG_CLEANUP", "0")
	t.Setenv("SETUPWIZ_RETRY_ATTEMPTS", "")

	prevNoColor := color.NoColor
	color.NoColor = true
	t.Cleanup(func() { color.NoColor = prevNoColor })

	restoreSeams(t)

	s := &pipelineStub{
		report: &engine.Report{
			Distro:  "Arch Linux",
			Manager: "pacman",
			Outcomes: []engine.Outcome{
				{TaskID: "refresh", Name: "refresh package index", State: engine.StateSucceeded, Attempts: 1},
				{TaskID: "packages", Name: "install packages", State: engine.StateSucceeded, Attempts: 1},
			},
		},
	}

	detectFn = func() (sysprobe.Distribution, sysprobe.ManagerKind, error) {
		dist := sysprobe.Distribution{ID: "arch", PrettyName: "Arch Linux", Family: sysprobe.FamilyArch}
		return dist, sysprobe.ManagerPacman, nil
	}
	currentProfileFn = func() *config.Profile {
		return &config.Profile{Packages: []string{"git", "zsh"}, Zram: true}
	}
	currentUserFn = func() (string, error) { return "alice", nil }
	userHomeDirFn = func() (string, error) { return "/home/alice", nil }
	geteuidFn = func() int { return 1000 }
	runPlanFn = func(ctx context.Context, p *plan.Plan, mgr pkgmgr.Manager, dist sysprobe.Distribution, opts engine.Options) *engine.Report {
		s.runCalls++
		s.lastPlan = p
		s.lastOpts = opts
		s.lastCtx = ctx
		return s.report
	}
	return s
}

func restoreSeams(t *testing.T) {
	t.Helper()
	prevDetect := detectFn
	prevSelect := selectManagerFn
	prevProfile := currentProfileFn
	prevLoad := loadProfileFileFn
	prevUser := currentUserFn
	prevHome := userHomeDirFn
	prevEuid := geteuidFn
	prevRun := runPlanFn
	prevLogger := newLoggerFn
	t.Cleanup(func() {
		detectFn = prevDetect
		selectManagerFn = prevSelect
		currentProfileFn = prevProfile
		loadProfileFileFn = prevLoad
		currentUserFn = prevUser
		userHomeDirFn = prevHome
		geteuidFn = prevEuid
		runPlanFn = prevRun
		newLoggerFn = prevLogger
	})
}

// executeCLI runs the root command with captured output, mapping errors to
// exit codes the way Run does.
func executeCLI(t *testing.T, args ...string) (code int, stdout, stderr string) {
	t.Helper()

	cmd := newRootCommand()
	var out, errBuf bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errBuf)
	cmd.SetArgs(args)

	code = exitOK
	if err := cmd.Execute(); err != nil {
		var ee exitError
		if errors.As(err, &ee) {
			code = ee.code
		} else {
			code = exitFailure
			fmt.Fprintf(&errBuf, "Error: %v\n", err)
		}
	}
	return code, out.String(), errBuf.String()
}

func TestVersionFlagAndSubcommand(t *testing.T) {
	code, stdout, _ := executeCLI(t, "--version")
	assert.Equal(t, exitOK, code)
	assert.Contains(t, stdout, "setupwiz version dev")

	code, stdout, _ = executeCLI(t, "version")
	assert.Equal(t, exitOK, code)
	assert.Contains(t, stdout, "setupwiz version dev")
}

func TestRunReturnsZeroForVersion(t *testing.T) {
	if got := Run([]string{"--version"}); got != exitOK {
		t.Fatalf("Run() = %d, want %d", got, exitOK)
	}
}

func TestUnknownFlagFails(t *testing.T) {
	code, _, stderr := executeCLI(t, "--bogus")
	assert.Equal(t, exitFailure, code)
	assert.Contains(t, stderr, "unknown flag")
}

func TestRefusesRoot(t *testing.T) {
	s := stubPipeline(t)
	geteuidFn = func() int { return 0 }

	code, _, stderr := executeCLI(t)
	assert.Equal(t, exitFailure, code)
	assert.Contains(t, stderr, "refusing to run as root")
	assert.Zero(t, s.runCalls)
}

func TestAllowRootFlagOverridesGuard(t *testing.T) {
	s := stubPipeline(t)
	geteuidFn = func() int { return 0 }

	code, _, _ := executeCLI(t, "--allow-root")
	assert.Equal(t, exitOK, code)
	assert.Equal(t, 1, s.runCalls)
	// Running as root means no sudo prefix.
	assert.False(t, s.lastOpts.Sudo)
}

func TestAllowRootEnvOverridesGuard(t *testing.T) {
	s := stubPipeline(t)
	geteuidFn = func() int { return 0 }
	t.Setenv("SETUPWIZ_ALLOW_ROOT", "1")

	code, _, _ := executeCLI(t)
	assert.Equal(t, exitOK, code)
	assert.Equal(t, 1, s.runCalls)
}

func TestHappyPathRunsPlanInOrder(t *testing.T) {
	s := stubPipeline(t)

	code, stdout, stderr := executeCLI(t)
	require.Equal(t, exitOK, code)

	require.Equal(t, 1, s.runCalls)
	require.NotNil(t, s.lastPlan)
	assert.Equal(t, []string{"refresh", "packages", "zram"}, s.lastPlan.Order())
	assert.Equal(t, 3, s.lastOpts.RetryAttempts)
	assert.True(t, s.lastOpts.Sudo)

	assert.Contains(t, stderr, "Distribution: Arch Linux")
	assert.Contains(t, stderr, "Manager:      pacman")
	assert.Contains(t, stdout, "✓ refresh")
	assert.Contains(t, stdout, "2 succeeded, 0 failed, 0 skipped")
}

func TestUnsupportedSystemExitCode(t *testing.T) {
	s := stubPipeline(t)
	detectFn = func() (sysprobe.Distribution, sysprobe.ManagerKind, error) {
		return sysprobe.Distribution{}, "", fmt.Errorf("%w: no supported package manager on PATH", sysprobe.ErrUnsupportedSystem)
	}

	code, _, stderr := executeCLI(t)
	assert.Equal(t, exitUnsupported, code)
	assert.Contains(t, stderr, "Error:")
	assert.Zero(t, s.runCalls)
}

func TestManagerSelectionFailureExitCode(t *testing.T) {
	s := stubPipeline(t)
	selectManagerFn = func(kind sysprobe.ManagerKind) (pkgmgr.Manager, error) {
		return nil, fmt.Errorf("unsupported package manager %q", kind)
	}

	code, _, _ := executeCLI(t)
	assert.Equal(t, exitUnsupported, code)
	assert.Zero(t, s.runCalls)
}

func TestUnknownSkipIDIsPlanError(t *testing.T) {
	s := stubPipeline(t)

	code, _, stderr := executeCLI(t, "--skip", "no-such-task")
	assert.Equal(t, exitPlanError, code)
	assert.Contains(t, stderr, "no-such-task")
	assert.Zero(t, s.runCalls)
}

func TestOnlyKeepsDependencyClosure(t *testing.T) {
	s := stubPipeline(t)

	code, _, _ := executeCLI(t, "--only", "packages")
	require.Equal(t, exitOK, code)
	require.NotNil(t, s.lastPlan)
	assert.Equal(t, []string{"refresh", "packages"}, s.lastPlan.Order())
}

func TestSkipPrunesDependencyEdges(t *testing.T) {
	s := stubPipeline(t)

	code, _, _ := executeCLI(t, "--skip", "refresh")
	require.Equal(t, exitOK, code)
	require.NotNil(t, s.lastPlan)
	assert.Equal(t, []string{"packages", "zram"}, s.lastPlan.Order())

	task, ok := s.lastPlan.Task("packages")
	require.True(t, ok)
	assert.Empty(t, task.DependsOn)
}

func TestTaskFailureExitCode(t *testing.T) {
	s := stubPipeline(t)
	s.report.Outcomes[1] = engine.Outcome{
		TaskID:   "packages",
		State:    engine.StateFailed,
		Detail:   "exit status 1",
		ExitCode: 1,
		Attempts: 1,
	}

	code, stdout, _ := executeCLI(t)
	assert.Equal(t, exitFailure, code)
	assert.Contains(t, stdout, "✗ packages")
	assert.Contains(t, stdout, "exit status 1")
}

func TestAllowedFailureStillSucceeds(t *testing.T) {
	s := stubPipeline(t)
	s.report.Outcomes[1] = engine.Outcome{
		TaskID:       "packages",
		State:        engine.StateFailed,
		Detail:       "exit status 1",
		Attempts:     1,
		AllowFailure: true,
	}

	code, stdout, _ := executeCLI(t)
	assert.Equal(t, exitOK, code)
	assert.Contains(t, stdout, "(allowed)")
}

func TestCancelledRunExitCode(t *testing.T) {
	s := stubPipeline(t)
	s.report.Cancelled = true

	code, stdout, _ := executeCLI(t)
	assert.Equal(t, exitFailure, code)
	assert.Contains(t, stdout, "(run cancelled)")
}

func TestJSONReportWritten(t *testing.T) {
	stubPipeline(t)
	path := filepath.Join(t.TempDir(), "report.json")

	code, stdout, _ := executeCLI(t, "--json", path)
	require.Equal(t, exitOK, code)
	assert.Contains(t, stdout, "Report written to "+path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var doc struct {
		Distribution string           `json:"distribution"`
		Manager      string           `json:"package_manager"`
		Outcomes     []engine.Outcome `json:"outcomes"`
		OK           bool             `json:"ok"`
	}
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, "Arch Linux", doc.Distribution)
	assert.Equal(t, "pacman", doc.Manager)
	assert.Len(t, doc.Outcomes, 2)
	assert.True(t, doc.OK)
}

func TestRetryAttemptsPrecedence(t *testing.T) {
	t.Run("flag beats environment", func(t *testing.T) {
		s := stubPipeline(t)
		t.Setenv("SETUPWIZ_RETRY_ATTEMPTS", "9")

		code, _, _ := executeCLI(t, "--retry-attempts", "5")
		require.Equal(t, exitOK, code)
		assert.Equal(t, 5, s.lastOpts.RetryAttempts)
	})

	t.Run("environment when no flag", func(t *testing.T) {
		s := stubPipeline(t)
		t.Setenv("SETUPWIZ_RETRY_ATTEMPTS", "9")

		code, _, _ := executeCLI(t)
		require.Equal(t, exitOK, code)
		assert.Equal(t, 9, s.lastOpts.RetryAttempts)
	})

	t.Run("flag above cap is clamped", func(t *testing.T) {
		s := stubPipeline(t)

		code, _, _ := executeCLI(t, "--retry-attempts", "99")
		require.Equal(t, exitOK, code)
		assert.Equal(t, 10, s.lastOpts.RetryAttempts)
	})
}

func TestConfigFileSettingsApply(t *testing.T) {
	s := stubPipeline(t)
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("retry-attempts: 7\n"), 0o644))

	code, _, _ := executeCLI(t, "--config", cfgPath)
	require.Equal(t, exitOK, code)
	assert.Equal(t, 7, s.lastOpts.RetryAttempts)
}

func TestMissingExplicitConfigFails(t *testing.T) {
	s := stubPipeline(t)

	code, _, stderr := executeCLI(t, "--config", filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Equal(t, exitFailure, code)
	assert.Contains(t, stderr, "Error:")
	assert.Zero(t, s.runCalls)
}

func TestTimeoutSetsDeadline(t *testing.T) {
	s := stubPipeline(t)

	code, _, _ := executeCLI(t, "--timeout", "60")
	require.Equal(t, exitOK, code)
	require.NotNil(t, s.lastCtx)
	_, hasDeadline := s.lastCtx.Deadline()
	assert.True(t, hasDeadline)
}

func TestNoTimeoutMeansNoDeadline(t *testing.T) {
	s := stubPipeline(t)

	code, _, _ := executeCLI(t)
	require.Equal(t, exitOK, code)
	require.NotNil(t, s.lastCtx)
	_, hasDeadline := s.lastCtx.Deadline()
	assert.False(t, hasDeadline)
}

func TestProfileFlagLoadsFile(t *testing.T) {
	s := stubPipeline(t)

	var loadedPath string
	loadProfileFileFn = func(path string) (*config.Profile, error) {
		loadedPath = path
		return &config.Profile{Packages: []string{"vim"}}, nil
	}
	currentProfileFn = func() *config.Profile {
		t.Error("default profile should not be consulted with --profile")
		return nil
	}

	code, _, _ := executeCLI(t, "--profile", "/etc/setupwiz/profile.json")
	require.Equal(t, exitOK, code)
	assert.Equal(t, "/etc/setupwiz/profile.json", loadedPath)
	require.NotNil(t, s.lastPlan)
	assert.Equal(t, []string{"refresh", "packages"}, s.lastPlan.Order())
}

func TestPlanSubcommandPrintsWithoutExecuting(t *testing.T) {
	s := stubPipeline(t)

	code, stdout, _ := executeCLI(t, "plan")
	require.Equal(t, exitOK, code)
	assert.Zero(t, s.runCalls)
	assert.Contains(t, stdout, "1. refresh")
	assert.Contains(t, stdout, "2. packages")
	assert.Contains(t, stdout, "(after refresh)")
}

func TestPlanSubcommandHonorsSelection(t *testing.T) {
	stubPipeline(t)

	code, stdout, _ := executeCLI(t, "plan", "--only", "zram")
	require.Equal(t, exitOK, code)
	assert.Contains(t, stdout, "1 task(s)")
	assert.Contains(t, stdout, "1. zram")
	assert.NotContains(t, stdout, "packages")
}

func TestDetectSubcommand(t *testing.T) {
	stubPipeline(t)

	code, stdout, _ := executeCLI(t, "detect")
	require.Equal(t, exitOK, code)
	assert.Contains(t, stdout, "Arch Linux")
	assert.Contains(t, stdout, "package manager: pacman")
}

func TestDetectSubcommandUnsupported(t *testing.T) {
	stubPipeline(t)
	detectFn = func() (sysprobe.Distribution, sysprobe.ManagerKind, error) {
		return sysprobe.Distribution{}, "", fmt.Errorf("%w: nothing on PATH", sysprobe.ErrUnsupportedSystem)
	}

	code, _, stderr := executeCLI(t, "detect")
	assert.Equal(t, exitUnsupported, code)
	assert.Contains(t, stderr, "Error:")
}

func TestCleanupSubcommandDeletesStaleLogs(t *testing.T) {
	tmp := t.TempDir()
	t.Setenv("TMPDIR", tmp)

	// A log named after a vacant pid counts as owned by a dead run.
	stale := filepath.Join(tmp, "setupwiz-1073741824.log")
	require.NoError(t, os.WriteFile(stale, []byte("old run\n"), 0o600))

	code, stdout, _ := executeCLI(t, "cleanup")
	assert.Equal(t, exitOK, code)
	assert.Contains(t, stdout, "Scanned 1 log file(s): 1 deleted, 0 kept")
	assert.NoFileExists(t, stale)
}

func TestRunLogRemovedOnSuccessKeptOnFailure(t *testing.T) {
	s := stubPipeline(t)

	code, _, _ := executeCLI(t)
	require.Equal(t, exitOK, code)
	logs, err := filepath.Glob(filepath.Join(os.TempDir(), "setupwiz-*.log"))
	require.NoError(t, err)
	assert.Empty(t, logs, "clean run should remove its log file")

	s.report.Cancelled = true
	code, _, _ = executeCLI(t)
	require.Equal(t, exitFailure, code)
	logs, err = filepath.Glob(filepath.Join(os.TempDir(), "setupwiz-*.log"))
	require.NoError(t, err)
	assert.Len(t, logs, 1, "failed run should keep its log file")
}

func TestExitCodeFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, exitOK},
		{"unsupported", sysprobe.ErrUnsupportedSystem, exitUnsupported},
		{"wrapped unsupported", fmt.Errorf("probe: %w", sysprobe.ErrUnsupportedSystem), exitUnsupported},
		{"cycle", plan.ErrCycle, exitPlanError},
		{"invalid plan", plan.ErrInvalidPlan, exitPlanError},
		{"selection", &UnknownSelectionError{Flag: "skip", ID: "x"}, exitPlanError},
		{"other", errors.New("boom"), exitFailure},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := exitCodeFor(tt.err); got != tt.want {
				t.Errorf("exitCodeFor(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}
