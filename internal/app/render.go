package app

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/goccy/go-json"

	"setupwiz/internal/engine"
	"setupwiz/internal/fsops"
	"setupwiz/internal/plan"
	"setupwiz/internal/sysprobe"
	"setupwiz/internal/utils"
)

// detailWidth caps the detail column so one noisy task cannot flood the
// summary. The full output is always in the run log and the JSON report.
const detailWidth = 100

// idColumnCap bounds the task-id column width.
const idColumnCap = 28

var (
	okColor     = color.New(color.FgGreen, color.Bold)
	failColor   = color.New(color.FgRed, color.Bold)
	skipColor   = color.New(color.FgYellow)
	headerColor = color.New(color.FgCyan, color.Bold)
	dimColor    = color.New(color.FgHiBlack)
)

// applyColorMode force-disables colors for --no-color and NO_COLOR runs.
// fatih/color handles non-TTY detection on its own.
func applyColorMode(noColor bool) {
	if noColor {
		color.NoColor = true
	}
}

// renderReport prints the human summary: one line per task in plan order,
// then counters. With verbose, the captured output of failed tasks follows
// each failure line.
func renderReport(w io.Writer, r *engine.Report, verbose bool) {
	fmt.Fprintln(w)
	_, _ = headerColor.Fprintf(w, "%s via %s\n", r.Distro, r.Manager)

	idWidth := 0
	for _, o := range r.Outcomes {
		idWidth = max(idWidth, len(o.TaskID))
	}
	idWidth = min(idWidth, idColumnCap)

	for _, o := range r.Outcomes {
		mark, clr := outcomeMark(o)
		_, _ = clr.Fprintf(w, "  %s ", mark)
		fmt.Fprintf(w, "%-*s", idWidth, o.TaskID)
		if detail := outcomeDetail(o); detail != "" {
			_, _ = dimColor.Fprintf(w, "  %s", detail)
		}
		fmt.Fprintln(w)

		if verbose && o.State == engine.StateFailed && strings.TrimSpace(o.Output) != "" {
			tail := strings.TrimRight(utils.SanitizeOutput(o.Output), "\n")
			for _, line := range strings.Split(tail, "\n") {
				_, _ = dimColor.Fprintf(w, "      %s\n", line)
			}
		}
	}

	fmt.Fprintln(w)
	succeeded, failed, skipped := r.Counts()
	_, _ = okColor.Fprintf(w, "%d succeeded", succeeded)
	fmt.Fprint(w, ", ")
	_, _ = failColor.Fprintf(w, "%d failed", failed)
	fmt.Fprint(w, ", ")
	_, _ = skipColor.Fprintf(w, "%d skipped", skipped)
	if r.Cancelled {
		_, _ = failColor.Fprint(w, "  (run cancelled)")
	}
	fmt.Fprintln(w)
}

func outcomeMark(o engine.Outcome) (string, *color.Color) {
	switch o.State {
	case engine.StateSucceeded:
		return "✓", okColor
	case engine.StateFailed:
		if o.AllowFailure {
			return "✗", skipColor
		}
		return "✗", failColor
	default:
		return "-", skipColor
	}
}

// outcomeDetail folds status detail, retry count, and the allow-failure
// marker into one display string.
func outcomeDetail(o engine.Outcome) string {
	parts := make([]string, 0, 3)
	if detail := utils.SafeTruncate(utils.SanitizeOutput(o.Detail), detailWidth); detail != "" {
		parts = append(parts, detail)
	}
	if o.Attempts > 1 {
		parts = append(parts, fmt.Sprintf("(attempt %d)", o.Attempts))
	}
	if o.State == engine.StateFailed && o.AllowFailure {
		parts = append(parts, "(allowed)")
	}
	return strings.Join(parts, " ")
}

// renderPlan prints the resolved execution order with dependencies.
func renderPlan(w io.Writer, p *plan.Plan, dist sysprobe.Distribution) {
	_, _ = headerColor.Fprintf(w, "%s: %d task(s)\n", dist, p.Len())
	for i, id := range p.Order() {
		task, _ := p.Task(id)
		fmt.Fprintf(w, "  %2d. %s", i+1, id)
		if task.Name != "" && task.Name != id {
			_, _ = dimColor.Fprintf(w, "  %s", task.Name)
		}
		if len(task.DependsOn) > 0 {
			_, _ = dimColor.Fprintf(w, "  (after %s)", strings.Join(task.DependsOn, ", "))
		}
		fmt.Fprintln(w)
	}
}

// renderDetection prints the probe result for the detect subcommand.
func renderDetection(w io.Writer, dist sysprobe.Distribution, kind sysprobe.ManagerKind) {
	_, _ = headerColor.Fprintln(w, dist.String())
	fmt.Fprintf(w, "  family:          %s\n", dist.Family)
	if dist.ID != "" {
		fmt.Fprintf(w, "  id:              %s\n", dist.ID)
	}
	if len(dist.IDLike) > 0 {
		fmt.Fprintf(w, "  id_like:         %s\n", strings.Join(dist.IDLike, " "))
	}
	fmt.Fprintf(w, "  package manager: %s\n", kind)
}

// reportDocument augments the report with the aggregate verdict, which lives
// in a method on the Go type and would otherwise be lost in encoding.
type reportDocument struct {
	*engine.Report
	OK bool `json:"ok"`
}

// writeJSONReport writes the machine-readable report. The write goes through
// a temp file and rename so a consumer watching the path never reads a
// partial document.
func writeJSONReport(path string, r *engine.Report) error {
	data, err := json.MarshalIndent(reportDocument{Report: r, OK: r.OK()}, "", "  ")
	if err != nil {
		return err
	}
	return fsops.NewRealFS().AtomicWrite(path, append(data, '\n'), 0o644)
}
