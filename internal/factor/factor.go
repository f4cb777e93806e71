package factor

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/esteb4an/redes-bayesianas/go-diagnoser/internal/network"
)

var (
	// ErrZeroMass is returned by Normalize when the values sum to zero.
	ErrZeroMass = errors.New("factor has zero total mass")
	// ErrNotInScope is returned when an operation names a variable the factor lacks.
	ErrNotInScope = errors.New("variable not in factor scope")
	// ErrScopeConflict is returned when two factors disagree on a variable's cardinality.
	ErrScopeConflict = errors.New("conflicting cardinality for variable")
	// ErrStateOutOfRange is returned for assignments outside a variable's cardinality.
	ErrStateOutOfRange = errors.New("state index out of range")
)

// #region factor
// Factor is an immutable non-negative table over an ordered scope. Values are
// stored row-major with the last scope variable varying fastest.
type Factor struct {
	scope  []network.Variable
	values []float64
}

// New builds a factor, copying scope and values.
func New(scope []network.Variable, values []float64) (Factor, error) {
	size := 1
	seen := make(map[string]bool, len(scope))
	for _, v := range scope {
		if seen[v.Name] {
			return Factor{}, fmt.Errorf("duplicate variable %q in scope", v.Name)
		}
		if v.Cardinality < 1 {
			return Factor{}, fmt.Errorf("variable %q has cardinality %d", v.Name, v.Cardinality)
		}
		seen[v.Name] = true
		size *= v.Cardinality
	}
	if len(values) != size {
		return Factor{}, fmt.Errorf("scope needs %d values, got %d", size, len(values))
	}
	for i, x := range values {
		if x < 0 || math.IsNaN(x) {
			return Factor{}, fmt.Errorf("value %v at index %d is not a non-negative number", x, i)
		}
	}
	f := Factor{
		scope:  make([]network.Variable, len(scope)),
		values: make([]float64, len(values)),
	}
	copy(f.scope, scope)
	copy(f.values, values)
	return f, nil
}

// Unit returns the neutral element of Multiply: empty scope, value 1.
func Unit() Factor {
	return Factor{values: []float64{1}}
}

// FromCPT converts a conditional probability table into a factor whose scope is
// the table's parents followed by its variable.
func FromCPT(cpt *network.CPT) Factor {
	scope := append(cpt.Parents(), cpt.Variable())
	return Factor{scope: scope, values: cpt.Values()}
}

// #endregion factor

// #region accessors
// Scope returns a copy of the ordered scope.
func (f Factor) Scope() []network.Variable {
	out := make([]network.Variable, len(f.scope))
	copy(out, f.scope)
	return out
}

// Names returns the scope variable names in order.
func (f Factor) Names() []string {
	out := make([]string, len(f.scope))
	for i, v := range f.scope {
		out[i] = v.Name
	}
	return out
}

// Has reports whether name is in scope.
func (f Factor) Has(name string) bool {
	return f.position(name) >= 0
}

// Values returns a copy of the table.
func (f Factor) Values() []float64 {
	out := make([]float64, len(f.values))
	copy(out, f.values)
	return out
}

// Len returns the number of table entries.
func (f Factor) Len() int { return len(f.values) }

// Value returns the entry at a full assignment given in scope order.
func (f Factor) Value(assignment []int) (float64, error) {
	if len(assignment) != len(f.scope) {
		return 0, fmt.Errorf("assignment has %d states for a scope of %d", len(assignment), len(f.scope))
	}
	idx := 0
	for i, v := range f.scope {
		s := assignment[i]
		if s < 0 || s >= v.Cardinality {
			return 0, fmt.Errorf("%w: %s=%d (cardinality %d)", ErrStateOutOfRange, v.Name, s, v.Cardinality)
		}
		idx = idx*v.Cardinality + s
	}
	return f.values[idx], nil
}

// Sum returns the total mass, accumulated in table order.
func (f Factor) Sum() float64 {
	var s float64
	for _, x := range f.values {
		s += x
	}
	return s
}

func (f Factor) String() string {
	names := f.Names()
	return fmt.Sprintf("Factor(%s)%v", strings.Join(names, ","), f.values)
}

func (f Factor) position(name string) int {
	for i, v := range f.scope {
		if v.Name == name {
			return i
		}
	}
	return -1
}

// strides returns the step of each scope variable in the flat table.
func (f Factor) strides() []int {
	st := make([]int, len(f.scope))
	step := 1
	for i := len(f.scope) - 1; i >= 0; i-- {
		st[i] = step
		step *= f.scope[i].Cardinality
	}
	return st
}

// #endregion accessors

// #region reduce
// Reduce keeps the rows consistent with evidence and drops the observed
// variables from the scope. Evidence on variables outside the scope is ignored;
// a factor sharing no variable with the evidence is returned as is.
func Reduce(f Factor, evidence map[string]int) (Factor, error) {
	fixed := make([]int, len(f.scope))
	observed := false
	for i, v := range f.scope {
		fixed[i] = -1
		s, ok := evidence[v.Name]
		if !ok {
			continue
		}
		if s < 0 || s >= v.Cardinality {
			return Factor{}, fmt.Errorf("%w: %s=%d (cardinality %d)", ErrStateOutOfRange, v.Name, s, v.Cardinality)
		}
		fixed[i] = s
		observed = true
	}
	if !observed {
		return f, nil
	}

	var scope []network.Variable
	for i, v := range f.scope {
		if fixed[i] < 0 {
			scope = append(scope, v)
		}
	}

	st := f.strides()
	base := 0
	for i, s := range fixed {
		if s >= 0 {
			base += s * st[i]
		}
	}

	out := Factor{scope: scope}
	size := 1
	for _, v := range scope {
		size *= v.Cardinality
	}
	out.values = make([]float64, size)

	// odometer over the free variables
	free := make([]int, 0, len(scope))
	for i := range f.scope {
		if fixed[i] < 0 {
			free = append(free, i)
		}
	}
	counter := make([]int, len(free))
	for k := 0; k < size; k++ {
		idx := base
		for j, pos := range free {
			idx += counter[j] * st[pos]
		}
		out.values[k] = f.values[idx]
		for j := len(counter) - 1; j >= 0; j-- {
			counter[j]++
			if counter[j] < scope[j].Cardinality {
				break
			}
			counter[j] = 0
		}
	}
	return out, nil
}

// #endregion reduce

// #region multiply
// Multiply returns the pointwise product over the union of both scopes. The
// result scope lists a's variables first, then b's variables not in a.
func Multiply(a, b Factor) (Factor, error) {
	scope := make([]network.Variable, 0, len(a.scope)+len(b.scope))
	scope = append(scope, a.scope...)
	for _, v := range b.scope {
		if p := a.position(v.Name); p >= 0 {
			if a.scope[p].Cardinality != v.Cardinality {
				return Factor{}, fmt.Errorf("%w %q: %d vs %d", ErrScopeConflict, v.Name, a.scope[p].Cardinality, v.Cardinality)
			}
			continue
		}
		scope = append(scope, v)
	}

	size := 1
	for _, v := range scope {
		size *= v.Cardinality
	}

	// per result variable, its stride in a and in b (0 when absent)
	aSt, bSt := a.strides(), b.strides()
	stepA := make([]int, len(scope))
	stepB := make([]int, len(scope))
	for i, v := range scope {
		if p := a.position(v.Name); p >= 0 {
			stepA[i] = aSt[p]
		}
		if p := b.position(v.Name); p >= 0 {
			stepB[i] = bSt[p]
		}
	}

	out := Factor{scope: scope, values: make([]float64, size)}
	counter := make([]int, len(scope))
	ia, ib := 0, 0
	for k := 0; k < size; k++ {
		out.values[k] = a.values[ia] * b.values[ib]
		for j := len(counter) - 1; j >= 0; j-- {
			counter[j]++
			ia += stepA[j]
			ib += stepB[j]
			if counter[j] < scope[j].Cardinality {
				break
			}
			ia -= stepA[j] * scope[j].Cardinality
			ib -= stepB[j] * scope[j].Cardinality
			counter[j] = 0
		}
	}
	return out, nil
}

// Product folds Multiply over fs, starting from Unit.
func Product(fs ...Factor) (Factor, error) {
	acc := Unit()
	for _, f := range fs {
		var err error
		acc, err = Multiply(acc, f)
		if err != nil {
			return Factor{}, err
		}
	}
	return acc, nil
}

// #endregion multiply

// #region marginalize
// Marginalize sums name out of the factor.
func Marginalize(f Factor, name string) (Factor, error) {
	pos := f.position(name)
	if pos < 0 {
		return Factor{}, fmt.Errorf("%w: %s", ErrNotInScope, name)
	}

	scope := make([]network.Variable, 0, len(f.scope)-1)
	scope = append(scope, f.scope[:pos]...)
	scope = append(scope, f.scope[pos+1:]...)

	card := f.scope[pos].Cardinality
	inner := 1
	for _, v := range f.scope[pos+1:] {
		inner *= v.Cardinality
	}
	outer := len(f.values) / (card * inner)

	out := Factor{scope: scope, values: make([]float64, outer*inner)}
	for o := 0; o < outer; o++ {
		for s := 0; s < card; s++ {
			src := f.values[(o*card+s)*inner : (o*card+s+1)*inner]
			dst := out.values[o*inner : (o+1)*inner]
			for i, x := range src {
				dst[i] += x
			}
		}
	}
	return out, nil
}

// #endregion marginalize

// #region normalize
// Normalize divides every value by the total mass.
func Normalize(f Factor) (Factor, error) {
	total := f.Sum()
	if !(total > 0) {
		return Factor{}, ErrZeroMass
	}
	out := Factor{scope: f.Scope(), values: make([]float64, len(f.values))}
	for i, x := range f.values {
		out.values[i] = x / total
	}
	return out, nil
}

// #endregion normalize

// #region reorder
// Reorder returns the same function laid out over scope order names, which must
// be a permutation of the current scope.
func Reorder(f Factor, names []string) (Factor, error) {
	if len(names) != len(f.scope) {
		return Factor{}, fmt.Errorf("reorder: %d names for a scope of %d", len(names), len(f.scope))
	}
	scope := make([]network.Variable, len(names))
	src := make([]int, len(names))
	used := make([]bool, len(f.scope))
	for i, n := range names {
		p := f.position(n)
		if p < 0 || used[p] {
			return Factor{}, fmt.Errorf("%w: %s", ErrNotInScope, n)
		}
		used[p] = true
		scope[i] = f.scope[p]
		src[i] = p
	}

	st := f.strides()
	out := Factor{scope: scope, values: make([]float64, len(f.values))}
	counter := make([]int, len(scope))
	for k := range out.values {
		idx := 0
		for j, c := range counter {
			idx += c * st[src[j]]
		}
		out.values[k] = f.values[idx]
		for j := len(counter) - 1; j >= 0; j-- {
			counter[j]++
			if counter[j] < scope[j].Cardinality {
				break
			}
			counter[j] = 0
		}
	}
	return out, nil
}

// ApproxEqual compares two factors as functions, ignoring scope order.
func ApproxEqual(a, b Factor, tol float64) bool {
	if len(a.scope) != len(b.scope) {
		return false
	}
	aligned, err := Reorder(b, a.Names())
	if err != nil {
		return false
	}
	for i, v := range a.scope {
		if aligned.scope[i].Cardinality != v.Cardinality {
			return false
		}
	}
	for i := range a.values {
		if math.Abs(a.values[i]-aligned.values[i]) > tol {
			return false
		}
	}
	return true
}

// #endregion reorder
