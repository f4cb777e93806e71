package network

import "github.com/esteb4an/redes-bayesianas/go-diagnoser/internal/graph"

// #region model
// Model is a validated discrete Bayesian network. It is never mutated after
// Build, so one instance may serve any number of concurrent queries.
type Model struct {
	name      string
	variables []Variable
	index     map[string]int
	dag       *graph.DAG
	topo      []string
	cpts      map[string]*CPT
}

// #endregion model

// #region accessors
// Name returns the model label.
func (m *Model) Name() string { return m.name }

// Variables returns the variables in declaration order.
func (m *Model) Variables() []Variable {
	out := make([]Variable, len(m.variables))
	copy(out, m.variables)
	return out
}

// Variable looks up a declared variable.
func (m *Model) Variable(name string) (Variable, bool) {
	i, ok := m.index[name]
	if !ok {
		return Variable{}, false
	}
	return m.variables[i], true
}

// Index returns the declaration position of name, or -1.
func (m *Model) Index(name string) int {
	if i, ok := m.index[name]; ok {
		return i
	}
	return -1
}

// Parents returns the parents of name in declaration order.
func (m *Model) Parents(name string) []string { return m.dag.Parents(name) }

// Children returns the children of name in declaration order.
func (m *Model) Children(name string) []string { return m.dag.Children(name) }

// TopologicalOrder returns variable names with parents before children.
func (m *Model) TopologicalOrder() []string {
	out := make([]string, len(m.topo))
	copy(out, m.topo)
	return out
}

// Edges returns the parent -> child edges, for visualization.
func (m *Model) Edges() []Edge { return m.dag.Edges() }

// Ancestors returns the given variables plus all of their ancestors.
func (m *Model) Ancestors(names ...string) []string { return m.dag.Ancestors(names...) }

// DOT renders the structure as Graphviz source.
func (m *Model) DOT() string { return m.dag.DOT(m.name) }

// CPT returns the table attached to name.
func (m *Model) CPT(name string) (*CPT, bool) {
	c, ok := m.cpts[name]
	return c, ok
}

// #endregion accessors
