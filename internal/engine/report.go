package engine

import (
	"fmt"
	"strings"
	"time"

	"setupwiz/internal/utils"
)

// Skip and cancellation reasons recorded in outcomes. Renderers and tests
// match on these strings, so they stay fixed.
const (
	ReasonDependency = "dependency not satisfied"
	ReasonCancelled  = "run cancelled"
)

// detailLimit caps the failure detail extracted from subprocess output.
const detailLimit = 300

// Outcome is the per-task execution record.
type Outcome struct {
	TaskID       string        `json:"task_id"`
	Name         string        `json:"name,omitempty"`
	State        State         `json:"state"`
	Detail       string        `json:"detail,omitempty"`
	ExitCode     int           `json:"exit_code,omitempty"`
	Attempts     int           `json:"attempts,omitempty"`
	AllowFailure bool          `json:"allow_failure,omitempty"`
	StartedAt    time.Time     `json:"started_at,omitempty"`
	Duration     time.Duration `json:"duration,omitempty"`
	Output       string        `json:"output,omitempty"`
}

// Report aggregates a whole run. Outcomes appear in plan order.
type Report struct {
	Distro    string    `json:"distribution"`
	Manager   string    `json:"package_manager"`
	Outcomes  []Outcome `json:"outcomes"`
	Cancelled bool      `json:"cancelled"`
	Started   time.Time `json:"started"`
	Finished  time.Time `json:"finished"`
}

// NewReport creates an empty report for the given environment.
func NewReport(distro, manager string) *Report {
	return &Report{Distro: distro, Manager: manager, Started: time.Now()}
}

func (r *Report) append(o Outcome) {
	r.Outcomes = append(r.Outcomes, o)
}

func (r *Report) finalize() {
	r.Finished = time.Now()
}

// Counts returns the number of succeeded, failed, and skipped outcomes.
func (r *Report) Counts() (succeeded, failed, skipped int) {
	for _, o := range r.Outcomes {
		switch o.State {
		case StateSucceeded:
			succeeded++
		case StateFailed:
			failed++
		case StateSkipped:
			skipped++
		}
	}
	return succeeded, failed, skipped
}

// OK reports overall success: the run was not cancelled, and every failed or
// skipped task was marked AllowFailure. In a non-cancelled run a skip can
// only stem from failure propagation, so tolerating the skip follows the
// same flag as tolerating the failure.
func (r *Report) OK() bool {
	if r.Cancelled {
		return false
	}
	for _, o := range r.Outcomes {
		switch o.State {
		case StateFailed, StateSkipped:
			if !o.AllowFailure {
				return false
			}
		}
	}
	return true
}

// Summary renders a one-line aggregate for the run log.
func (r *Report) Summary() string {
	succeeded, failed, skipped := r.Counts()
	line := fmt.Sprintf("%d succeeded, %d failed, %d skipped", succeeded, failed, skipped)
	if r.Cancelled {
		line += " (cancelled)"
	}
	return line
}

// failureDetail extracts the most informative lines from subprocess output
// for a failed task. Lines matching common failure markers win; otherwise
// the last few non-empty lines stand in.
func failureDetail(output string, maxLen int) string {
	if output == "" || maxLen <= 0 {
		return ""
	}

	lines := strings.Split(output, "\n")
	var errorLines []string

	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		lower := strings.ToLower(line)
		if strings.Contains(lower, "error") ||
			strings.Contains(lower, "fail") ||
			strings.Contains(lower, "fatal") ||
			strings.Contains(lower, "denied") ||
			strings.Contains(lower, "permission") ||
			strings.Contains(lower, "unable") ||
			strings.Contains(lower, "cannot") ||
			strings.Contains(lower, "not found") ||
			strings.Contains(lower, "no such") ||
			strings.Contains(lower, "conflict") ||
			strings.Contains(lower, "lock") {
			errorLines = append(errorLines, line)
		}
	}

	if len(errorLines) == 0 {
		start := len(lines) - 5
		if start < 0 {
			start = 0
		}
		for _, line := range lines[start:] {
			line = strings.TrimSpace(line)
			if line != "" {
				errorLines = append(errorLines, line)
			}
		}
	}

	result := strings.Join(errorLines, " | ")
	return utils.SafeTruncate(result, maxLen)
}
