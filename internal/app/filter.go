package app

import (
	"fmt"
	"strings"

	"setupwiz/internal/config"
	"setupwiz/internal/plan"
)

// UnknownSelectionError reports a --skip or --only id that names no task in
// the assembled set.
type UnknownSelectionError struct {
	Flag string
	ID   string
}

func (e *UnknownSelectionError) Error() string {
	return fmt.Sprintf("--%s: no task with id %q", e.Flag, e.ID)
}

// Is maps selection mistakes to the planning error class, so they surface
// before anything runs and share the plan-error exit code.
func (e *UnknownSelectionError) Is(target error) bool {
	return target == plan.ErrInvalidPlan
}

// selectTasks applies --only and then --skip to the assembled task set.
//
// --only keeps the named tasks plus everything they transitively depend on.
// --skip drops tasks outright; remaining tasks that depended on a dropped id
// lose that edge, the explicit selection overriding the default gating.
// Unknown or malformed ids are rejected.
func selectTasks(tasks []plan.Task, only, skip []string) ([]plan.Task, error) {
	only = normalizeSelection(only)
	skip = normalizeSelection(skip)
	if len(only) == 0 && len(skip) == 0 {
		return tasks, nil
	}

	byID := make(map[string]plan.Task, len(tasks))
	for _, t := range tasks {
		byID[t.ID] = t
	}
	if err := checkSelection("only", only, byID); err != nil {
		return nil, err
	}
	if err := checkSelection("skip", skip, byID); err != nil {
		return nil, err
	}

	keep := make(map[string]bool, len(tasks))
	if len(only) == 0 {
		for id := range byID {
			keep[id] = true
		}
	} else {
		var include func(id string)
		include = func(id string) {
			if keep[id] {
				return
			}
			keep[id] = true
			for _, dep := range byID[id].DependsOn {
				include(dep)
			}
		}
		for _, id := range only {
			include(id)
		}
	}
	for _, id := range skip {
		delete(keep, id)
	}

	out := make([]plan.Task, 0, len(keep))
	for _, t := range tasks {
		if !keep[t.ID] {
			continue
		}
		t.DependsOn = pruneDeps(t.DependsOn, keep)
		out = append(out, t)
	}
	return out, nil
}

func checkSelection(flag string, ids []string, byID map[string]plan.Task) error {
	for _, id := range ids {
		if err := config.ValidateTaskID(id); err != nil {
			return fmt.Errorf("--%s: %w", flag, err)
		}
		if _, ok := byID[id]; !ok {
			return &UnknownSelectionError{Flag: flag, ID: id}
		}
	}
	return nil
}

// pruneDeps returns deps restricted to kept ids. The input slice is shared
// with the caller's task set and stays untouched.
func pruneDeps(deps []string, keep map[string]bool) []string {
	if len(deps) == 0 {
		return deps
	}
	out := make([]string, 0, len(deps))
	for _, dep := range deps {
		if keep[dep] {
			out = append(out, dep)
		}
	}
	return out
}

// normalizeSelection trims whitespace and drops empties and duplicates while
// preserving order.
func normalizeSelection(ids []string) []string {
	var out []string
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
