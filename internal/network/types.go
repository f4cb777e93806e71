package network

import "github.com/esteb4an/redes-bayesianas/go-diagnoser/internal/graph"

// #region variable
// Variable is a discrete random quantity with states 0..Cardinality-1.
type Variable struct {
	Name        string `json:"name" yaml:"name"`
	Cardinality int    `json:"cardinality" yaml:"cardinality"`
}

// Edge is a parent -> child dependency.
type Edge = graph.Edge

// #endregion variable

// #region cpt-def
// Row is one conditional distribution of a CPT: the parent states it is
// conditioned on (in CPTDef.Parents order) and a probability per child state.
type Row struct {
	Given []int     `json:"given" yaml:"given"`
	Probs []float64 `json:"probs" yaml:"probs"`
}

// CPTDef is the caller-facing conditional probability table of one variable.
// A root variable has no parents and a single row with an empty Given tuple.
type CPTDef struct {
	Variable string   `json:"variable" yaml:"variable"`
	Parents  []string `json:"parents" yaml:"parents"`
	Rows     []Row    `json:"rows" yaml:"rows"`
}

// #endregion cpt-def

// #region cpt
// CPT is a validated conditional probability table stored densely: one row per
// joint parent assignment (last parent varies fastest), each row holding the
// child distribution.
type CPT struct {
	variable Variable
	parents  []Variable
	values   []float64
}

// Variable returns the variable this table belongs to.
func (c *CPT) Variable() Variable { return c.variable }

// Parents returns the conditioning variables in table order.
func (c *CPT) Parents() []Variable {
	out := make([]Variable, len(c.parents))
	copy(out, c.parents)
	return out
}

// Values returns a copy of the dense table.
func (c *CPT) Values() []float64 {
	out := make([]float64, len(c.values))
	copy(out, c.values)
	return out
}

// NumRows returns the number of parent assignments.
func (c *CPT) NumRows() int {
	return len(c.values) / c.variable.Cardinality
}

// Row returns the child distribution for the given parent states.
func (c *CPT) Row(given []int) ([]float64, bool) {
	idx, ok := rowIndex(c.parents, given)
	if !ok {
		return nil, false
	}
	card := c.variable.Cardinality
	out := make([]float64, card)
	copy(out, c.values[idx*card:(idx+1)*card])
	return out, true
}

// rowIndex maps a parent assignment to its mixed-radix row number.
func rowIndex(parents []Variable, given []int) (int, bool) {
	if len(given) != len(parents) {
		return 0, false
	}
	idx := 0
	for i, p := range parents {
		s := given[i]
		if s < 0 || s >= p.Cardinality {
			return 0, false
		}
		idx = idx*p.Cardinality + s
	}
	return idx, true
}

// rowAssignment is the inverse of rowIndex.
func rowAssignment(parents []Variable, idx int) []int {
	given := make([]int, len(parents))
	for i := len(parents) - 1; i >= 0; i-- {
		card := parents[i].Cardinality
		given[i] = idx % card
		idx /= card
	}
	return given
}

// #endregion cpt
