package network

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/esteb4an/redes-bayesianas/go-diagnoser/internal/graph"
)

// DefaultTolerance bounds how far a CPT row may sum away from 1.
const DefaultTolerance = 1e-6

// #region options
type buildConfig struct {
	name      string
	tolerance float64
}

// BuildOption customizes Build.
type BuildOption func(*buildConfig)

// WithName labels the model (used in logs and persisted runs).
func WithName(name string) BuildOption {
	return func(c *buildConfig) { c.name = name }
}

// WithTolerance overrides DefaultTolerance for the row-sum check.
func WithTolerance(tol float64) BuildOption {
	return func(c *buildConfig) { c.tolerance = tol }
}

// #endregion options

// #region build
// Build validates a network definition and returns an immutable Model.
// Checks run in order and stop at the first failure:
//
//  0. variable declarations (unique non-empty names, cardinality >= 2)
//  1. edge endpoints are declared
//  2. edges form a DAG
//  3. one CPT per variable whose parents set-equal the variable's in-edges,
//     with exactly one well-shaped row per parent assignment
//  4. probabilities lie in [0, 1]
//  5. rows sum to 1 within tolerance
//
// On failure the error is a *ModelInvalidError and no model is returned.
func Build(vars []Variable, edges []Edge, cpts []CPTDef, opts ...BuildOption) (*Model, error) {
	cfg := buildConfig{name: "network", tolerance: DefaultTolerance}
	for _, o := range opts {
		o(&cfg)
	}

	// 0. declarations
	byName := make(map[string]Variable, len(vars))
	names := make([]string, 0, len(vars))
	for _, v := range vars {
		if strings.TrimSpace(v.Name) == "" {
			return nil, &ModelInvalidError{Check: CheckDeclaration, Detail: "variable with empty name"}
		}
		if _, dup := byName[v.Name]; dup {
			return nil, &ModelInvalidError{Check: CheckDeclaration, Variable: v.Name, Detail: "declared more than once"}
		}
		if v.Cardinality < 2 {
			return nil, &ModelInvalidError{
				Check:    CheckDeclaration,
				Variable: v.Name,
				Detail:   fmt.Sprintf("cardinality %d, need at least 2", v.Cardinality),
			}
		}
		byName[v.Name] = v
		names = append(names, v.Name)
	}

	// 1. edge endpoints
	dag := graph.New(names)
	for _, e := range edges {
		if err := dag.AddEdge(e.Parent, e.Child); err != nil {
			edge := e
			return nil, &ModelInvalidError{
				Check:  CheckEdgeEndpoints,
				Edge:   &edge,
				Detail: err.Error(),
				Err:    err,
			}
		}
	}

	// 2. acyclic
	topo, err := dag.TopoSort()
	if err != nil {
		var cycle *graph.CycleError
		if errors.As(err, &cycle) {
			return nil, &ModelInvalidError{
				Check:  CheckAcyclic,
				Cycle:  cycle.Nodes,
				Detail: fmt.Sprintf("cycle through {%s}", strings.Join(cycle.Nodes, ", ")),
				Err:    err,
			}
		}
		return nil, &ModelInvalidError{Check: CheckAcyclic, Detail: err.Error(), Err: err}
	}

	// 3. CPT assignment and shape
	defs := make(map[string]CPTDef, len(cpts))
	for _, def := range cpts {
		if _, ok := byName[def.Variable]; !ok {
			return nil, &ModelInvalidError{Check: CheckCPTAssignment, Variable: def.Variable, Detail: "CPT for undeclared variable"}
		}
		if _, dup := defs[def.Variable]; dup {
			return nil, &ModelInvalidError{Check: CheckCPTAssignment, Variable: def.Variable, Detail: "more than one CPT"}
		}
		defs[def.Variable] = def
	}

	compiled := make(map[string]*CPT, len(vars))
	for _, v := range vars {
		def, ok := defs[v.Name]
		if !ok {
			return nil, &ModelInvalidError{Check: CheckCPTAssignment, Variable: v.Name, Detail: "missing CPT"}
		}
		if !sameSet(def.Parents, dag.Parents(v.Name)) {
			return nil, &ModelInvalidError{
				Check:    CheckCPTAssignment,
				Variable: v.Name,
				Detail: fmt.Sprintf("CPT parents [%s] differ from graph parents [%s]",
					strings.Join(def.Parents, ", "), strings.Join(dag.Parents(v.Name), ", ")),
			}
		}
		cpt, err := compileCPT(v, def, byName)
		if err != nil {
			return nil, err
		}
		compiled[v.Name] = cpt
	}

	// 4. probability range
	for _, v := range vars {
		cpt := compiled[v.Name]
		card := v.Cardinality
		for i, p := range cpt.values {
			if !(p >= 0 && p <= 1) {
				return nil, &ModelInvalidError{
					Check:    CheckProbabilityRange,
					Variable: v.Name,
					Row:      rowAssignment(cpt.parents, i/card),
					Detail:   fmt.Sprintf("P(state %d) = %v outside [0, 1]", i%card, p),
				}
			}
		}
	}

	// 5. row sums
	for _, v := range vars {
		cpt := compiled[v.Name]
		card := v.Cardinality
		for r := 0; r < cpt.NumRows(); r++ {
			var sum float64
			for _, p := range cpt.values[r*card : (r+1)*card] {
				sum += p
			}
			if math.Abs(sum-1) > cfg.tolerance {
				return nil, &ModelInvalidError{
					Check:    CheckRowSum,
					Variable: v.Name,
					Row:      rowAssignment(cpt.parents, r),
					Detail:   fmt.Sprintf("row sums to %v", sum),
				}
			}
		}
	}

	varsCopy := make([]Variable, len(vars))
	copy(varsCopy, vars)
	index := make(map[string]int, len(vars))
	for i, v := range vars {
		index[v.Name] = i
	}

	return &Model{
		name:      cfg.name,
		variables: varsCopy,
		index:     index,
		dag:       dag,
		topo:      topo,
		cpts:      compiled,
	}, nil
}

// #endregion build

// #region compile
// compileCPT lays the definition's rows out densely, rejecting malformed,
// duplicate, or missing rows.
func compileCPT(v Variable, def CPTDef, byName map[string]Variable) (*CPT, error) {
	parents := make([]Variable, len(def.Parents))
	numRows := 1
	for i, name := range def.Parents {
		parents[i] = byName[name]
		numRows *= parents[i].Cardinality
	}

	card := v.Cardinality
	values := make([]float64, numRows*card)
	filled := make([]bool, numRows)

	for _, row := range def.Rows {
		given := row.Given
		if given == nil {
			given = []int{}
		}
		idx, ok := rowIndex(parents, given)
		if !ok {
			return nil, &ModelInvalidError{
				Check:    CheckCPTAssignment,
				Variable: v.Name,
				Row:      given,
				Detail:   fmt.Sprintf("parent assignment does not match parents [%s]", strings.Join(def.Parents, ", ")),
			}
		}
		if filled[idx] {
			return nil, &ModelInvalidError{Check: CheckCPTAssignment, Variable: v.Name, Row: given, Detail: "duplicate row"}
		}
		if len(row.Probs) != card {
			return nil, &ModelInvalidError{
				Check:    CheckCPTAssignment,
				Variable: v.Name,
				Row:      given,
				Detail:   fmt.Sprintf("%d probabilities for %d states", len(row.Probs), card),
			}
		}
		copy(values[idx*card:], row.Probs)
		filled[idx] = true
	}

	for idx, ok := range filled {
		if !ok {
			return nil, &ModelInvalidError{
				Check:    CheckCPTAssignment,
				Variable: v.Name,
				Row:      rowAssignment(parents, idx),
				Detail:   "missing row",
			}
		}
	}

	return &CPT{variable: v, parents: parents, values: values}, nil
}

func sameSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	x := append([]string(nil), a...)
	y := append([]string(nil), b...)
	sort.Strings(x)
	sort.Strings(y)
	for i := range x {
		if x[i] != y[i] {
			return false
		}
	}
	return true
}

// #endregion compile
