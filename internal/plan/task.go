// Package plan models configuration tasks and orders them for execution.
package plan

import "os"

// Kind discriminates the task payloads the executor knows how to run.
type Kind string

const (
	KindInstallPackages Kind = "install-packages"
	KindWriteConfigFile Kind = "write-config-file"
	KindRunShellStep    Kind = "run-shell-step"
)

// Task is a single unit of configuration work. Exactly one payload group is
// meaningful, selected by Kind.
type Task struct {
	ID           string
	Name         string
	Kind         Kind
	DependsOn    []string
	AllowFailure bool

	// KindInstallPackages
	Packages []string

	// KindWriteConfigFile. Source names a file to copy; when empty, Content
	// is written instead.
	Source  string
	Content []byte
	Dest    string
	Mode    os.FileMode
	Backup  bool

	// KindRunShellStep. Creates is an optional idempotence guard: when the
	// path exists the step is considered already done. Stdin is piped to the
	// command when non-empty.
	Argv    []string
	Stdin   string
	Sudo    bool
	Creates string
}

// validate rejects structurally unusable tasks before planning.
func (t Task) validate() error {
	if t.ID == "" {
		return invalidf("task id is required")
	}
	switch t.Kind {
	case KindInstallPackages:
		// An empty package list is a legal no-op.
	case KindWriteConfigFile:
		if t.Dest == "" {
			return invalidf("task %q: write destination is required", t.ID)
		}
	case KindRunShellStep:
		if len(t.Argv) == 0 {
			return invalidf("task %q: argv is required", t.ID)
		}
	default:
		return invalidf("task %q: unknown kind %q", t.ID, t.Kind)
	}
	return nil
}
