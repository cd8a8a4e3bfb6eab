package pipeline

import (
	"container/heap"
	"sort"
)

// JobSpec declares a job and the jobs it needs.
type JobSpec struct {
	Name  string
	Needs []string
	// ContinueOnError makes a failure of this job count as satisfied for
	// its dependents and keeps it out of the pipeline verdict.
	ContinueOnError bool
}

// Graph is an immutable, validated job graph.
// It is safe for concurrent read access.
type Graph struct {
	specs   []JobSpec // sorted by name; index is the canonical index
	byName  map[string]int
	needs   [][]int // by canonical index, sorted
	outputs [][]int // dependents by canonical index, sorted
	indeg   []int
	depth   []int
}

// NewGraph builds and validates a Graph.
//
// Validation rejects:
//   - an empty spec list
//   - empty or duplicate job names
//   - needs referencing unknown jobs
//   - duplicate needs and self-loops
//   - any cycle (direct or indirect)
func NewGraph(specs []JobSpec) (*Graph, error) {
	if len(specs) == 0 {
		return nil, invalidf("no jobs")
	}

	sorted := make([]JobSpec, len(specs))
	copy(sorted, specs)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	byName := make(map[string]int, len(sorted))
	for i, s := range sorted {
		if s.Name == "" {
			return nil, invalidf("job name is required")
		}
		if _, dup := byName[s.Name]; dup {
			return nil, invalidf("duplicate job name: %q", s.Name)
		}
		byName[s.Name] = i
	}

	g := &Graph{
		specs:   sorted,
		byName:  byName,
		needs:   make([][]int, len(sorted)),
		outputs: make([][]int, len(sorted)),
		indeg:   make([]int, len(sorted)),
	}

	for i, s := range sorted {
		seen := make(map[string]bool, len(s.Needs))
		for _, need := range s.Needs {
			if need == s.Name {
				return nil, invalidf("self-loop: %q", s.Name)
			}
			j, ok := byName[need]
			if !ok {
				return nil, invalidf("job %q needs unknown job %q", s.Name, need)
			}
			if seen[need] {
				return nil, invalidf("job %q needs %q twice", s.Name, need)
			}
			seen[need] = true
			g.needs[i] = append(g.needs[i], j)
			g.outputs[j] = append(g.outputs[j], i)
			g.indeg[i]++
		}
		// Keep the caller's needs order out of the canonical form.
		g.specs[i].Needs = append([]string(nil), s.Needs...)
		sort.Strings(g.specs[i].Needs)
	}
	for i := range g.needs {
		sort.Ints(g.needs[i])
		sort.Ints(g.outputs[i])
	}

	if err := g.validateAcyclic(); err != nil {
		return nil, err
	}
	g.depth = g.computeDepth()
	return g, nil
}

// Len returns the number of jobs.
func (g *Graph) Len() int { return len(g.specs) }

// Names returns job names in lexical order.
func (g *Graph) Names() []string {
	out := make([]string, len(g.specs))
	for i, s := range g.specs {
		out[i] = s.Name
	}
	return out
}

// Spec returns the spec of the named job.
func (g *Graph) Spec(name string) (JobSpec, bool) {
	i, ok := g.byName[name]
	if !ok {
		return JobSpec{}, false
	}
	s := g.specs[i]
	s.Needs = append([]string(nil), s.Needs...)
	return s, true
}

// Dependents returns the jobs that directly need name, in lexical order.
func (g *Graph) Dependents(name string) []string {
	i, ok := g.byName[name]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(g.outputs[i]))
	for _, j := range g.outputs[i] {
		out = append(out, g.specs[j].Name)
	}
	return out
}

// Depth returns the length of the longest need chain leading to name.
// Jobs without needs have depth 0.
func (g *Graph) Depth(name string) (int, bool) {
	i, ok := g.byName[name]
	if !ok {
		return 0, false
	}
	return g.depth[i], true
}

// TopologicalOrder returns job names so that every job follows the jobs it
// needs. Ties are broken lexically, so the order is deterministic.
func (g *Graph) TopologicalOrder() []string {
	order := g.topoOrderIndices()
	out := make([]string, len(order))
	for i, idx := range order {
		out[i] = g.specs[idx].Name
	}
	return out
}

func (g *Graph) computeDepth() []int {
	depth := make([]int, len(g.specs))
	for _, u := range g.topoOrderIndices() {
		for _, p := range g.needs[u] {
			if d := depth[p] + 1; d > depth[u] {
				depth[u] = d
			}
		}
	}
	return depth
}

type intMinHeap []int

func (h intMinHeap) Len() int           { return len(h) }
func (h intMinHeap) Less(i, j int) bool { return h[i] < h[j] }
func (h intMinHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *intMinHeap) Push(x any)        { *h = append(*h, x.(int)) }
func (h *intMinHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// topoOrderIndices runs Kahn's algorithm with a min-heap ready queue.
// The result is shorter than the job count when the graph has a cycle.
func (g *Graph) topoOrderIndices() []int {
	indeg := make([]int, len(g.indeg))
	copy(indeg, g.indeg)

	ready := &intMinHeap{}
	for i, d := range indeg {
		if d == 0 {
			heap.Push(ready, i)
		}
	}

	out := make([]int, 0, len(indeg))
	for ready.Len() > 0 {
		n := heap.Pop(ready).(int)
		out = append(out, n)
		for _, m := range g.outputs[n] {
			indeg[m]--
			if indeg[m] == 0 {
				heap.Push(ready, m)
			}
		}
	}
	return out
}

func (g *Graph) validateAcyclic() error {
	if len(g.topoOrderIndices()) == len(g.specs) {
		return nil
	}
	return cycleError(g.findCycle())
}

// findCycle returns one cycle as a name path whose first and last elements
// are equal. The DFS visits nodes in canonical order, so the witness is stable.
func (g *Graph) findCycle() []string {
	const (
		white = iota
		gray
		black
	)
	color := make([]int, len(g.specs))
	parent := make([]int, len(g.specs))
	for i := range parent {
		parent[i] = -1
	}

	var cycle []int
	var dfs func(u int) bool
	dfs = func(u int) bool {
		color[u] = gray
		for _, v := range g.outputs[u] {
			switch color[v] {
			case white:
				parent[v] = u
				if dfs(v) {
					return true
				}
			case gray:
				cycle = append(cycle, v)
				for cur := u; cur != v && cur != -1; cur = parent[cur] {
					cycle = append(cycle, cur)
				}
				cycle = append(cycle, v)
				return true
			}
		}
		color[u] = black
		return false
	}

	for i := range g.specs {
		if color[i] == white && dfs(i) {
			break
		}
	}

	// cycle was collected backwards along parent links.
	out := make([]string, len(cycle))
	for i, idx := range cycle {
		out[len(cycle)-1-i] = g.specs[idx].Name
	}
	return out
}
