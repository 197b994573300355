// Package app wires the command line: flag parsing, system probing, plan
// assembly, execution, and report rendering.
package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"setupwiz/internal/config"
	"setupwiz/internal/engine"
	"setupwiz/internal/pkgmgr"
	"setupwiz/internal/plan"
	"setupwiz/internal/sysprobe"
)

// Process exit codes. Scripts rely on these to tell an unsupported host from
// a failed run.
const (
	exitOK          = 0
	exitFailure     = 1 // task failure, cancellation, or internal error
	exitUnsupported = 2 // no recognizable distribution or package manager
	exitPlanError   = 3 // cycle, unknown dependency, or bad task selection
)

var version = "dev"

// SetVersion overrides the reported version, normally called from main with
// the ldflags-stamped value.
func SetVersion(v string) {
	if strings.TrimSpace(v) != "" {
		version = v
	}
}

// exitError carries a process exit code through cobra's error return.
type exitError struct {
	code int
}

func (e exitError) Error() string {
	return fmt.Sprintf("exit %d", e.code)
}

// cliOptions holds raw flag values before they are merged with the config
// file and environment.
type cliOptions struct {
	ConfigFile  string
	ProfileFile string
	Skip        []string
	Only        []string

	RetryAttempts int
	TimeoutSec    int
	JSONPath      string
	NoColor       bool
	Verbose       bool
	AllowRoot     bool
	Version       bool
}

// Run executes the CLI with the given arguments and returns the process exit
// code.
func Run(args []string) int {
	cmd := newRootCommand()
	cmd.SetArgs(args)
	if err := cmd.Execute(); err != nil {
		var ee exitError
		if errors.As(err, &ee) {
			return ee.code
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return exitFailure
	}
	return exitOK
}

func newRootCommand() *cobra.Command {
	opts := &cliOptions{}

	cmd := &cobra.Command{
		Use:   "setupwiz",
		Short: "Post-installation setup assistant for GNU/Linux",
		Long: `setupwiz configures a freshly installed GNU/Linux system: it detects the
distribution and its package manager, assembles a dependency-ordered plan
from the active profile (packages, dotfiles, shell, firewall, zram), and
executes it with per-task outcome tracking. Steps that are already applied
are recognized and skipped, so re-running after a partial failure is safe.`,
		Args:          cobra.NoArgs,
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.Version {
				fmt.Fprintf(cmd.OutOrStdout(), "setupwiz version %s\n", version)
				return nil
			}
			if err := refuseRoot(opts); err != nil {
				return err
			}
			code := runWithLoggerAndCleanup(func() int {
				return runSetup(cmd, opts)
			})
			if code == exitOK {
				return nil
			}
			return exitError{code: code}
		},
	}
	cmd.CompletionOptions.DisableDefaultCmd = true

	addPersistentFlags(cmd.PersistentFlags(), opts)
	addRootFlags(cmd.Flags(), opts)

	cmd.AddCommand(
		newVersionCommand(),
		newDetectCommand(opts),
		newPlanCommand(opts),
		newCleanupCommand(),
	)

	return cmd
}

// addPersistentFlags registers the flags shared by the root run and the plan
// subcommand.
func addPersistentFlags(fs *pflag.FlagSet, opts *cliOptions) {
	fs.StringVar(&opts.ConfigFile, "config", "", "Config file path (default: $HOME/.setupwiz/config.*)")
	fs.StringVar(&opts.ProfileFile, "profile", "", "Profile file path (default: $HOME/.setupwiz/profile.json)")
	fs.StringSliceVar(&opts.Skip, "skip", nil, "Task id to drop from the plan (repeatable)")
	fs.StringSliceVar(&opts.Only, "only", nil, "Run only this task id and its dependencies (repeatable)")
	fs.BoolVar(&opts.NoColor, "no-color", false, "Disable colored output (also via NO_COLOR)")
	fs.BoolVar(&opts.Verbose, "verbose", false, "Include captured output of failed tasks in the summary")
}

func addRootFlags(fs *pflag.FlagSet, opts *cliOptions) {
	fs.IntVar(&opts.RetryAttempts, "retry-attempts", 0, "Package-lock retry attempts, 1-10 (also via SETUPWIZ_RETRY_ATTEMPTS)")
	fs.IntVar(&opts.TimeoutSec, "timeout", 0, "Abort the run after this many seconds (0 = no limit)")
	fs.StringVar(&opts.JSONPath, "json", "", "Write the full report as JSON to this path")
	fs.BoolVar(&opts.AllowRoot, "allow-root", false, "Allow running with euid 0 (default is sudo per command)")
	fs.BoolVarP(&opts.Version, "version", "v", false, "Print version and exit")
}

// refuseRoot rejects running the mutating command as root. The executor
// escalates per command with sudo instead, which keeps user files (dotfiles,
// shell plugins) from ending up owned by root.
func refuseRoot(opts *cliOptions) error {
	if opts.AllowRoot || config.EnvFlagEnabled("SETUPWIZ_ALLOW_ROOT") {
		return nil
	}
	if geteuidFn() != 0 {
		return nil
	}
	return errors.New("refusing to run as root: user config would end up root-owned; privileged commands use sudo (override with --allow-root)")
}

// runSetup is the root command body: probe, assemble, execute, render.
func runSetup(cmd *cobra.Command, opts *cliOptions) int {
	v, err := config.NewViper(opts.ConfigFile)
	if err != nil {
		return fail(cmd, err)
	}
	cfg := resolveConfig(cmd, opts, v)
	applyColorMode(cfg.NoColor)

	p, mgr, dist, err := buildPlan(cfg)
	if err != nil {
		return fail(cmd, err)
	}

	fmt.Fprintf(cmd.ErrOrStderr(), "[setupwiz]\n")
	fmt.Fprintf(cmd.ErrOrStderr(), "  Distribution: %s\n", dist)
	fmt.Fprintf(cmd.ErrOrStderr(), "  Manager:      %s\n", mgr.Kind())
	fmt.Fprintf(cmd.ErrOrStderr(), "  Tasks:        %d\n", p.Len())
	if l := activeLogger(); l != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "  Log:          %s\n", l.Path())
	}

	ctx, cancel := runContext(cmd.Context(), cfg.Timeout)
	defer cancel()

	report := runPlanFn(ctx, p, mgr, dist, engine.Options{
		RetryAttempts: cfg.RetryAttempts,
		Sudo:          geteuidFn() != 0,
	})

	renderReport(cmd.OutOrStdout(), report, cfg.Verbose)

	if cfg.JSONPath != "" {
		if err := writeJSONReport(cfg.JSONPath, report); err != nil {
			return fail(cmd, fmt.Errorf("write report: %w", err))
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Report written to %s\n", cfg.JSONPath)
	}

	if !report.OK() {
		return exitFailure
	}
	return exitOK
}

// buildPlan runs the shared probe, profile, selection, and ordering pipeline
// used by both the root run and the plan subcommand.
func buildPlan(cfg *config.Config) (*plan.Plan, pkgmgr.Manager, sysprobe.Distribution, error) {
	dist, kind, err := detectFn()
	if err != nil {
		return nil, nil, dist, err
	}
	logInfo(fmt.Sprintf("detected %s, package manager %s", dist, kind))

	mgr, err := selectManagerFn(kind)
	if err != nil {
		return nil, nil, dist, fmt.Errorf("%w: %v", sysprobe.ErrUnsupportedSystem, err)
	}

	profile, err := loadProfile(cfg.ProfileFile)
	if err != nil {
		return nil, nil, dist, err
	}
	userName, err := currentUserFn()
	if err != nil {
		return nil, nil, dist, err
	}
	home, err := userHomeDirFn()
	if err != nil {
		return nil, nil, dist, err
	}

	tasks, err := selectTasks(profile.Tasks(mgr, userName, home), cfg.Only, cfg.Skip)
	if err != nil {
		return nil, nil, dist, err
	}

	p, err := plan.Build(tasks)
	if err != nil {
		return nil, nil, dist, err
	}
	logInfo(fmt.Sprintf("plan ready: %d task(s)", p.Len()))
	return p, mgr, dist, nil
}

// resolveConfig merges explicit flags over the viper layer (config file plus
// SETUPWIZ_* environment) over built-in defaults.
func resolveConfig(cmd *cobra.Command, opts *cliOptions, v *viper.Viper) *config.Config {
	cfg := &config.Config{
		ConfigFile:  opts.ConfigFile,
		ProfileFile: opts.ProfileFile,
		Skip:        opts.Skip,
		Only:        opts.Only,
		JSONPath:    opts.JSONPath,
		Verbose:     opts.Verbose,
		AllowRoot:   opts.AllowRoot,
	}

	if cfg.ProfileFile == "" {
		cfg.ProfileFile = strings.TrimSpace(v.GetString("profile"))
	}

	switch {
	case cmd.Flags().Changed("retry-attempts"):
		cfg.RetryAttempts = config.ClampRetryAttempts(opts.RetryAttempts)
	case v.IsSet("retry-attempts"):
		cfg.RetryAttempts = config.ClampRetryAttempts(v.GetInt("retry-attempts"))
	default:
		cfg.RetryAttempts = config.ResolveRetryAttempts()
	}

	if cmd.Flags().Changed("timeout") {
		cfg.Timeout = opts.TimeoutSec
	} else {
		cfg.Timeout = v.GetInt("timeout")
	}
	if cfg.Timeout < 0 {
		cfg.Timeout = 0
	}

	cfg.NoColor = opts.NoColor || v.GetBool("no-color") || config.EnvFlagEnabled("NO_COLOR")
	if !cfg.Verbose {
		cfg.Verbose = v.GetBool("verbose")
	}
	return cfg
}

// runContext derives the execution context: SIGINT and SIGTERM cancel it, and
// once it is done the default signal disposition is restored, so a second
// signal kills the process outright.
func runContext(parent context.Context, timeoutSec int) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	cancel := stop
	if timeoutSec > 0 {
		var cancelTimeout context.CancelFunc
		ctx, cancelTimeout = context.WithTimeout(ctx, time.Duration(timeoutSec)*time.Second)
		cancel = func() {
			cancelTimeout()
			stop()
		}
	}
	go func() {
		<-ctx.Done()
		stop()
	}()
	return ctx, cancel
}

// fail logs err, echoes it to stderr, and maps it to an exit code.
func fail(cmd *cobra.Command, err error) int {
	logError(err.Error())
	fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
	return exitCodeFor(err)
}

func exitCodeFor(err error) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, sysprobe.ErrUnsupportedSystem):
		return exitUnsupported
	case errors.Is(err, plan.ErrCycle), errors.Is(err, plan.ErrInvalidPlan):
		return exitPlanError
	default:
		return exitFailure
	}
}

// runWithLoggerAndCleanup brackets fn with the run-log lifecycle: it installs
// the per-run logger, routes package-manager warnings into it, sweeps logs
// left behind by dead runs, and echoes recent errors when fn fails. The log
// file is removed after a clean run and kept for inspection otherwise.
func runWithLoggerAndCleanup(fn func() int) (exitCode int) {
	logger, err := newLoggerFn()
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: failed to initialize logger: %v\n", err)
		return exitFailure
	}
	setLogger(logger)
	pkgmgr.SetLogFuncs(logWarn, logError)

	defer func() {
		logger := activeLogger()
		if logger != nil {
			logger.Flush()
		}
		if err := closeLogger(); err != nil {
			fmt.Fprintf(os.Stderr, "ERROR: failed to close logger: %v\n", err)
		}
		if logger == nil {
			return
		}
		if exitCode != exitOK {
			if entries := logger.ExtractRecentErrors(10); len(entries) > 0 {
				fmt.Fprintln(os.Stderr, "\n=== Recent Errors ===")
				for _, entry := range entries {
					fmt.Fprintln(os.Stderr, entry)
				}
			}
			fmt.Fprintf(os.Stderr, "Log file: %s\n", logger.Path())
			return
		}
		if err := logger.RemoveLogFile(); err != nil {
			fmt.Fprintf(os.Stderr, "WARN: failed to remove log file: %v\n", err)
		}
	}()
	defer func() {
		if config.EnvFlagDefaultTrue("SETUPWIZ_LOG_CLEANUP") {
			_, _ = cleanupOldLogs()
		}
	}()

	return fn()
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:           "version",
		Short:         "Print version and exit",
		Args:          cobra.NoArgs,
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "setupwiz version %s\n", version)
			return nil
		},
	}
}

func newCleanupCommand() *cobra.Command {
	return &cobra.Command{
		Use:           "cleanup",
		Short:         "Delete log files left behind by dead runs",
		Args:          cobra.NoArgs,
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			stats, err := cleanupOldLogs()
			fmt.Fprintf(cmd.OutOrStdout(), "Scanned %d log file(s): %d deleted, %d kept\n",
				stats.Scanned, stats.Deleted, stats.Kept)
			if err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
				return exitError{code: exitFailure}
			}
			return nil
		},
	}
}

func newDetectCommand(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "detect",
		Short:         "Probe the distribution and package manager, then exit",
		Args:          cobra.NoArgs,
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			applyColorMode(opts.NoColor || config.EnvFlagEnabled("NO_COLOR"))
			dist, kind, err := detectFn()
			if err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
				return exitError{code: exitCodeFor(err)}
			}
			renderDetection(cmd.OutOrStdout(), dist, kind)
			return nil
		},
	}
}

func newPlanCommand(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "plan",
		Short:         "Print the resolved task order without executing anything",
		Args:          cobra.NoArgs,
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := config.NewViper(opts.ConfigFile)
			if err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
				return exitError{code: exitFailure}
			}
			cfg := resolveConfig(cmd, opts, v)
			applyColorMode(cfg.NoColor)

			p, _, dist, err := buildPlan(cfg)
			if err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
				return exitError{code: exitCodeFor(err)}
			}
			renderPlan(cmd.OutOrStdout(), p, dist)
			return nil
		},
	}
}
