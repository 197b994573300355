package plan

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidPlan covers structural problems other than cycles:
	// duplicate ids, unknown dependencies, unusable task payloads.
	ErrInvalidPlan = errors.New("invalid plan")
	// ErrCycle marks dependency cycles.
	ErrCycle = errors.New("dependency cycle")
)

// CycleError reports one concrete cycle as a witness path; the first id is
// repeated at the end.
type CycleError struct {
	Cycle []string
}

func (e *CycleError) Error() string {
	return "dependency cycle: " + strings.Join(e.Cycle, " -> ")
}

func (e *CycleError) Is(target error) bool { return target == ErrCycle }

// UnknownDependencyError reports a dependency id absent from the task set.
type UnknownDependencyError struct {
	TaskID  string
	Missing string
}

func (e *UnknownDependencyError) Error() string {
	return fmt.Sprintf("task %q depends on unknown task %q", e.TaskID, e.Missing)
}

func (e *UnknownDependencyError) Is(target error) bool { return target == ErrInvalidPlan }

// DuplicateIDError reports two tasks sharing an id.
type DuplicateIDError struct {
	ID string
}

func (e *DuplicateIDError) Error() string {
	return fmt.Sprintf("duplicate task id %q", e.ID)
}

func (e *DuplicateIDError) Is(target error) bool { return target == ErrInvalidPlan }

type planError struct {
	msg string
}

func (e *planError) Error() string        { return e.msg }
func (e *planError) Is(target error) bool { return target == ErrInvalidPlan }

func invalidf(format string, args ...any) error {
	return &planError{msg: fmt.Sprintf(format, args...)}
}
