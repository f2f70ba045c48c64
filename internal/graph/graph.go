// Package graph builds the dependency graph over a blueprint's nodes,
// providing the level-based scheduling order and cycle detection the
// compiler's IR pass relies on.
package graph

import (
	"sort"

	"github.com/orbitalflow/engine/internal/node"
	"github.com/orbitalflow/engine/internal/orcherr"
)

// Graph is the compiled dependency structure over a set of nodes.
type Graph struct {
	nodes map[string]*node.Spec
	order []string // deterministic iteration order: insertion order of nodes
}

// New builds a Graph and detects cycles; it does not itself run schema
// compatibility checks (that belongs to the compiler, which owns ordering
// of validation phases).
func New(nodes []*node.Spec) (*Graph, error) {
	g := &Graph{nodes: make(map[string]*node.Spec, len(nodes))}
	for _, n := range nodes {
		g.nodes[n.ID] = n
		g.order = append(g.order, n.ID)
	}
	if err := g.detectCycle(); err != nil {
		return nil, err
	}
	return g, nil
}

func (g *Graph) detectCycle() error {
	const (
		unvisited = 0
		visiting  = 1
		done      = 2
	)
	state := make(map[string]int, len(g.nodes))
	var stack []string

	var visit func(id string) error
	visit = func(id string) error {
		switch state[id] {
		case done:
			return nil
		case visiting:
			return orcherr.New(orcherr.KindCircularDependency, id, "cycle detected: %v -> %s", stack, id)
		}
		state[id] = visiting
		stack = append(stack, id)
		n := g.nodes[id]
		deps := append([]string(nil), n.DependsOn...)
		sort.Strings(deps)
		for _, dep := range deps {
			if _, ok := g.nodes[dep]; !ok {
				return orcherr.New(orcherr.KindValidation, id, "depends_on references unknown node %q", dep)
			}
			if err := visit(dep); err != nil {
				return err
			}
		}
		stack = stack[:len(stack)-1]
		state[id] = done
		return nil
	}

	for _, id := range g.order {
		if err := visit(id); err != nil {
			return err
		}
	}
	return nil
}

// Levels groups nodes by the longest-path distance from any root (a node
// with no dependencies): level 0 are the roots, level N depends only on
// nodes in levels < N. Within a level, node IDs are sorted alphabetically
// to make scheduling order deterministic.
func (g *Graph) Levels() [][]string {
	level := make(map[string]int, len(g.nodes))
	var compute func(id string) int
	memo := make(map[string]int)
	compute = func(id string) int {
		if v, ok := memo[id]; ok {
			return v
		}
		n := g.nodes[id]
		if len(n.DependsOn) == 0 {
			memo[id] = 0
			return 0
		}
		max := 0
		for _, dep := range n.DependsOn {
			if d := compute(dep) + 1; d > max {
				max = d
			}
		}
		memo[id] = max
		return max
	}
	maxLevel := 0
	for _, id := range g.order {
		l := compute(id)
		level[id] = l
		if l > maxLevel {
			maxLevel = l
		}
	}
	levels := make([][]string, maxLevel+1)
	for id, l := range level {
		levels[l] = append(levels[l], id)
	}
	for _, l := range levels {
		sort.Strings(l)
	}
	return levels
}

// Depth returns the graph's longest dependency chain measured in levels
// (a single node with no dependencies has depth 1).
func (g *Graph) Depth() int {
	return len(g.Levels())
}

// TopologicalOrder flattens Levels into one deterministic total order.
func (g *Graph) TopologicalOrder() []string {
	var out []string
	for _, l := range g.Levels() {
		out = append(out, l...)
	}
	return out
}

// CriticalPath returns the longest dependency chain by node count,
// alphabetically tie-broken at each step.
func (g *Graph) CriticalPath() []string {
	memo := make(map[string][]string)
	var longest func(id string) []string
	longest = func(id string) []string {
		if v, ok := memo[id]; ok {
			return v
		}
		n := g.nodes[id]
		deps := append([]string(nil), n.DependsOn...)
		sort.Strings(deps)
		var best []string
		for _, dep := range deps {
			p := longest(dep)
			if len(p) > len(best) || (len(p) == len(best) && dep < bestTail(best)) {
				best = p
			}
		}
		path := append(append([]string(nil), best...), id)
		memo[id] = path
		return path
	}
	var best []string
	ids := append([]string(nil), g.order...)
	sort.Strings(ids)
	for _, id := range ids {
		p := longest(id)
		if len(p) > len(best) {
			best = p
		}
	}
	return best
}

func bestTail(p []string) string {
	if len(p) == 0 {
		return ""
	}
	return p[len(p)-1]
}

// ParallelizableSets returns, for each level, the node IDs that can run
// concurrently — identical to Levels() since a level is by construction
// mutually independent, exposed separately to keep the naming distinct.
func (g *Graph) ParallelizableSets() [][]string {
	return g.Levels()
}
