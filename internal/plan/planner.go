package plan

import (
	"container/heap"
	"sort"
)

// Plan is an immutable, dependency-respecting ordering of a task set.
type Plan struct {
	order []string
	tasks map[string]Task
}

// Build validates tasks and produces a deterministic execution order.
//
// Ordering: Kahn's algorithm with a min-heap over task ids, so among tasks
// whose dependencies are all satisfied the lexicographically smallest id
// runs first. Equal inputs always produce byte-equal orders.
//
// Failures: *DuplicateIDError, *UnknownDependencyError, or *CycleError with
// a concrete witness path. No partial plan is ever returned.
func Build(tasks []Task) (*Plan, error) {
	if len(tasks) == 0 {
		return nil, invalidf("no tasks")
	}

	byID := make(map[string]Task, len(tasks))
	for _, t := range tasks {
		if err := t.validate(); err != nil {
			return nil, err
		}
		if _, exists := byID[t.ID]; exists {
			return nil, &DuplicateIDError{ID: t.ID}
		}
		byID[t.ID] = t
	}

	// Edges run dependency -> dependent. Duplicate entries in DependsOn are
	// collapsed so indegrees stay correct.
	dependents := make(map[string][]string, len(tasks))
	indeg := make(map[string]int, len(tasks))
	for id := range byID {
		indeg[id] = 0
	}
	for _, t := range tasks {
		seen := make(map[string]struct{}, len(t.DependsOn))
		for _, dep := range t.DependsOn {
			if _, ok := byID[dep]; !ok {
				return nil, &UnknownDependencyError{TaskID: t.ID, Missing: dep}
			}
			if dep == t.ID {
				return nil, &CycleError{Cycle: []string{t.ID, t.ID}}
			}
			if _, dup := seen[dep]; dup {
				continue
			}
			seen[dep] = struct{}{}
			dependents[dep] = append(dependents[dep], t.ID)
			indeg[t.ID]++
		}
	}
	for id := range dependents {
		sort.Strings(dependents[id])
	}

	ready := &idMinHeap{}
	heap.Init(ready)
	for id, d := range indeg {
		if d == 0 {
			heap.Push(ready, id)
		}
	}

	order := make([]string, 0, len(tasks))
	for ready.Len() > 0 {
		id := heap.Pop(ready).(string)
		order = append(order, id)
		for _, next := range dependents[id] {
			indeg[next]--
			if indeg[next] == 0 {
				heap.Push(ready, next)
			}
		}
	}

	if len(order) != len(tasks) {
		return nil, &CycleError{Cycle: findCycle(byID, dependents)}
	}

	return &Plan{order: order, tasks: byID}, nil
}

// Order returns the execution order. The returned slice is a copy.
func (p *Plan) Order() []string {
	out := make([]string, len(p.order))
	copy(out, p.order)
	return out
}

// Task returns the task for id.
func (p *Plan) Task(id string) (Task, bool) {
	t, ok := p.tasks[id]
	return t, ok
}

// Len returns the number of tasks in the plan.
func (p *Plan) Len() int { return len(p.order) }

type idMinHeap []string

func (h idMinHeap) Len() int           { return len(h) }
func (h idMinHeap) Less(i, j int) bool { return h[i] < h[j] }
func (h idMinHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *idMinHeap) Push(x any)        { *h = append(*h, x.(string)) }
func (h *idMinHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// findCycle extracts one stable cycle witness via DFS with white/gray/black
// coloring. Traversal order is sorted, so the same input always yields the
// same witness. Called only after Kahn's algorithm proved a cycle exists.
func findCycle(byID map[string]Task, dependents map[string][]string) []string {
	const (
		white = 0
		gray  = 1
		black = 2
	)

	ids := make([]string, 0, len(byID))
	for id := range byID {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	color := make(map[string]int, len(ids))
	parent := make(map[string]string, len(ids))

	var cycle []string
	var dfs func(u string) bool
	dfs = func(u string) bool {
		color[u] = gray
		for _, v := range dependents[u] {
			if color[v] == white {
				parent[v] = u
				if dfs(v) {
					return true
				}
				continue
			}
			if color[v] == gray {
				// Back-edge u -> v closes the cycle v ... u -> v.
				cycle = append(cycle, v)
				cur := u
				for cur != "" && cur != v {
					cycle = append(cycle, cur)
					cur = parent[cur]
				}
				cycle = append(cycle, v)
				return true
			}
		}
		color[u] = black
		return false
	}

	for _, id := range ids {
		if color[id] == white && dfs(id) {
			break
		}
	}

	if len(cycle) == 0 {
		return nil
	}
	// The walk recorded the path backwards; reverse into forward order.
	out := make([]string, len(cycle))
	for i := range cycle {
		out[i] = cycle[len(cycle)-1-i]
	}
	return out
}
