package graph

import (
	"fmt"
	"sort"
	"strings"
)

// #region types
// Edge is a directed parent -> child link.
type Edge struct {
	Parent string `json:"parent" yaml:"parent"`
	Child  string `json:"child" yaml:"child"`
}

// DAG is a name-keyed adjacency structure. Nodes keep their declaration order,
// which every accessor and traversal uses for deterministic output.
type DAG struct {
	nodes    []string
	index    map[string]int
	parents  [][]int
	children [][]int
	edges    []Edge
}

// UnknownNodeError is returned when an edge references an undeclared node.
type UnknownNodeError struct {
	Edge Edge
	Node string
}

func (e *UnknownNodeError) Error() string {
	return fmt.Sprintf("edge %s -> %s references undeclared node %q", e.Edge.Parent, e.Edge.Child, e.Node)
}

// CycleError carries the nodes of one directed cycle, in edge order.
type CycleError struct {
	Nodes []string
}

func (e *CycleError) Error() string {
	if len(e.Nodes) == 0 {
		return "cycle detected"
	}
	return fmt.Sprintf("cycle detected: %s -> %s", strings.Join(e.Nodes, " -> "), e.Nodes[0])
}

// #endregion types

// #region constructor
// New creates a DAG over the given nodes. Duplicate names are ignored after the first.
func New(nodes []string) *DAG {
	g := &DAG{index: make(map[string]int, len(nodes))}
	for _, n := range nodes {
		if _, ok := g.index[n]; ok {
			continue
		}
		g.index[n] = len(g.nodes)
		g.nodes = append(g.nodes, n)
	}
	g.parents = make([][]int, len(g.nodes))
	g.children = make([][]int, len(g.nodes))
	return g
}

// #endregion constructor

// #region add-edge
// AddEdge links parent -> child. Both endpoints must already be declared.
// Adding the same edge twice is a no-op.
func (g *DAG) AddEdge(parent, child string) error {
	e := Edge{Parent: parent, Child: child}
	p, ok := g.index[parent]
	if !ok {
		return &UnknownNodeError{Edge: e, Node: parent}
	}
	c, ok := g.index[child]
	if !ok {
		return &UnknownNodeError{Edge: e, Node: child}
	}
	for _, existing := range g.children[p] {
		if existing == c {
			return nil
		}
	}
	g.children[p] = append(g.children[p], c)
	g.parents[c] = append(g.parents[c], p)
	g.edges = append(g.edges, e)
	return nil
}

// #endregion add-edge

// #region accessors
// Nodes returns node names in declaration order.
func (g *DAG) Nodes() []string {
	out := make([]string, len(g.nodes))
	copy(out, g.nodes)
	return out
}

// Has reports whether name is a declared node.
func (g *DAG) Has(name string) bool {
	_, ok := g.index[name]
	return ok
}

// Index returns the declaration index of name, or -1.
func (g *DAG) Index(name string) int {
	if i, ok := g.index[name]; ok {
		return i
	}
	return -1
}

// Edges returns edges in insertion order.
func (g *DAG) Edges() []Edge {
	out := make([]Edge, len(g.edges))
	copy(out, g.edges)
	return out
}

// Parents returns the parents of name in declaration order.
func (g *DAG) Parents(name string) []string {
	i, ok := g.index[name]
	if !ok {
		return nil
	}
	return g.names(g.parents[i])
}

// Children returns the children of name in declaration order.
func (g *DAG) Children(name string) []string {
	i, ok := g.index[name]
	if !ok {
		return nil
	}
	return g.names(g.children[i])
}

func (g *DAG) names(ids []int) []string {
	sorted := make([]int, len(ids))
	copy(sorted, ids)
	sort.Ints(sorted)
	out := make([]string, len(sorted))
	for i, id := range sorted {
		out[i] = g.nodes[id]
	}
	return out
}

// #endregion accessors

// #region topo-sort
// TopoSort orders nodes so every parent precedes its children. Among nodes that
// are ready at the same time the earliest declared goes first.
func (g *DAG) TopoSort() ([]string, error) {
	indeg := make([]int, len(g.nodes))
	for i := range g.nodes {
		indeg[i] = len(g.parents[i])
	}

	var ready []int
	for i, d := range indeg {
		if d == 0 {
			ready = append(ready, i)
		}
	}

	order := make([]string, 0, len(g.nodes))
	for len(ready) > 0 {
		cur := ready[0]
		ready = ready[1:]
		order = append(order, g.nodes[cur])
		for _, c := range g.children[cur] {
			indeg[c]--
			if indeg[c] == 0 {
				pos := sort.SearchInts(ready, c)
				ready = append(ready, 0)
				copy(ready[pos+1:], ready[pos:])
				ready[pos] = c
			}
		}
	}

	if len(order) < len(g.nodes) {
		return nil, &CycleError{Nodes: g.findCycle(indeg)}
	}
	return order, nil
}

// findCycle walks parent links among the nodes Kahn's algorithm could not
// release. Each of them still has an unreleased parent, so the walk must revisit
// a node; the revisited stretch is a cycle.
func (g *DAG) findCycle(indeg []int) []string {
	start := -1
	for i, d := range indeg {
		if d > 0 {
			start = i
			break
		}
	}
	if start < 0 {
		return nil
	}

	seenAt := map[int]int{}
	var path []int
	cur := start
	for {
		if pos, ok := seenAt[cur]; ok {
			path = path[pos:]
			break
		}
		seenAt[cur] = len(path)
		path = append(path, cur)
		next := -1
		for _, p := range g.parents[cur] {
			if indeg[p] > 0 {
				next = p
				break
			}
		}
		if next < 0 {
			return nil
		}
		cur = next
	}

	// path follows child -> parent; reverse into edge direction
	out := make([]string, len(path))
	for i, id := range path {
		out[len(path)-1-i] = g.nodes[id]
	}
	return out
}

// #endregion topo-sort

// #region walk
// Ancestors performs a BFS over parent links from the given entry nodes and
// returns every visited node (entries included) in declaration order.
func (g *DAG) Ancestors(entries ...string) []string {
	visited := make([]bool, len(g.nodes))
	var queue []int
	for _, name := range entries {
		i, ok := g.index[name]
		if !ok || visited[i] {
			continue
		}
		visited[i] = true
		queue = append(queue, i)
	}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, p := range g.parents[cur] {
			if visited[p] {
				continue
			}
			visited[p] = true
			queue = append(queue, p)
		}
	}

	var out []string
	for i, ok := range visited {
		if ok {
			out = append(out, g.nodes[i])
		}
	}
	return out
}

// #endregion walk

// #region dot
// DOT renders the structure as Graphviz source. Rendering itself is left to
// external tools.
func (g *DAG) DOT(title string) string {
	var b strings.Builder
	b.WriteString("digraph G {\n")
	if title != "" {
		fmt.Fprintf(&b, "  label=%q;\n", title)
	}
	b.WriteString("  node [shape=ellipse, style=filled, fillcolor=skyblue];\n")
	for _, n := range g.nodes {
		fmt.Fprintf(&b, "  %q;\n", n)
	}
	for _, e := range g.edges {
		fmt.Fprintf(&b, "  %q -> %q;\n", e.Parent, e.Child)
	}
	b.WriteString("}\n")
	return b.String()
}

// #endregion dot
