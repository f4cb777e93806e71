package factor

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/esteb4an/redes-bayesianas/go-diagnoser/internal/network"
)

var (
	varA = network.Variable{Name: "A", Cardinality: 2}
	varB = network.Variable{Name: "B", Cardinality: 3}
	varC = network.Variable{Name: "C", Cardinality: 2}
)

func mustNew(t *testing.T, scope []network.Variable, values []float64) Factor {
	t.Helper()
	f, err := New(scope, values)
	require.NoError(t, err)
	return f
}

// f(A,B) = 1..6
func factorAB(t *testing.T) Factor {
	return mustNew(t, []network.Variable{varA, varB}, []float64{1, 2, 3, 4, 5, 6})
}

// g(B,C) = 0.1..0.6
func factorBC(t *testing.T) Factor {
	return mustNew(t, []network.Variable{varB, varC}, []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6})
}

func TestNewValidates(t *testing.T) {
	_, err := New([]network.Variable{varA, varA}, []float64{1, 2, 3, 4})
	assert.Error(t, err)

	_, err = New([]network.Variable{varA}, []float64{1})
	assert.Error(t, err)

	_, err = New([]network.Variable{varA}, []float64{1, -1})
	assert.Error(t, err)

	values := []float64{1, 2}
	f, err := New([]network.Variable{varA}, values)
	require.NoError(t, err)
	values[0] = 99
	v, _ := f.Value([]int{0})
	assert.Equal(t, 1.0, v, "New must copy its input")
}

func TestValueIndexing(t *testing.T) {
	f := factorAB(t)

	v, err := f.Value([]int{1, 2})
	require.NoError(t, err)
	assert.Equal(t, 6.0, v)

	v, err = f.Value([]int{0, 1})
	require.NoError(t, err)
	assert.Equal(t, 2.0, v)

	_, err = f.Value([]int{2, 0})
	assert.True(t, errors.Is(err, ErrStateOutOfRange))
}

func TestFromCPT(t *testing.T) {
	m, err := network.Build(
		[]network.Variable{varA, varC},
		[]network.Edge{{Parent: "A", Child: "C"}},
		[]network.CPTDef{
			{Variable: "A", Rows: []network.Row{{Probs: []float64{0.7, 0.3}}}},
			{Variable: "C", Parents: []string{"A"}, Rows: []network.Row{
				{Given: []int{0}, Probs: []float64{0.9, 0.1}},
				{Given: []int{1}, Probs: []float64{0.4, 0.6}},
			}},
		},
	)
	require.NoError(t, err)

	cpt, _ := m.CPT("C")
	f := FromCPT(cpt)
	assert.Equal(t, []string{"A", "C"}, f.Names())
	v, _ := f.Value([]int{1, 1})
	assert.Equal(t, 0.6, v)

	prior, _ := m.CPT("A")
	assert.Equal(t, []string{"A"}, FromCPT(prior).Names())
}

func TestReduce(t *testing.T) {
	f := factorAB(t)

	t.Run("empty evidence returns input", func(t *testing.T) {
		r, err := Reduce(f, map[string]int{})
		require.NoError(t, err)
		assert.Equal(t, f, r)
	})

	t.Run("disjoint evidence returns input", func(t *testing.T) {
		r, err := Reduce(f, map[string]int{"C": 1})
		require.NoError(t, err)
		assert.Equal(t, f, r)
	})

	t.Run("fix one variable", func(t *testing.T) {
		r, err := Reduce(f, map[string]int{"B": 1})
		require.NoError(t, err)
		assert.Equal(t, []string{"A"}, r.Names())
		assert.Equal(t, []float64{2, 5}, r.Values())

		r, err = Reduce(f, map[string]int{"A": 1})
		require.NoError(t, err)
		assert.Equal(t, []string{"B"}, r.Names())
		assert.Equal(t, []float64{4, 5, 6}, r.Values())
	})

	t.Run("fix all variables", func(t *testing.T) {
		r, err := Reduce(f, map[string]int{"A": 0, "B": 2})
		require.NoError(t, err)
		assert.Empty(t, r.Names())
		assert.Equal(t, []float64{3}, r.Values())
	})

	t.Run("out of range", func(t *testing.T) {
		_, err := Reduce(f, map[string]int{"A": 2})
		assert.True(t, errors.Is(err, ErrStateOutOfRange))
	})

	// input untouched
	assert.Equal(t, []float64{1, 2, 3, 4, 5, 6}, f.Values())
}

func TestMultiply(t *testing.T) {
	f, g := factorAB(t), factorBC(t)

	p, err := Multiply(f, g)
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B", "C"}, p.Names())
	assert.Equal(t, 12, p.Len())

	for a := 0; a < 2; a++ {
		for b := 0; b < 3; b++ {
			for c := 0; c < 2; c++ {
				fv, _ := f.Value([]int{a, b})
				gv, _ := g.Value([]int{b, c})
				pv, _ := p.Value([]int{a, b, c})
				assert.InDelta(t, fv*gv, pv, 1e-12, "a=%d b=%d c=%d", a, b, c)
			}
		}
	}
}

func TestMultiplyCommutative(t *testing.T) {
	f, g := factorAB(t), factorBC(t)

	fg, err := Multiply(f, g)
	require.NoError(t, err)
	gf, err := Multiply(g, f)
	require.NoError(t, err)

	assert.Equal(t, []string{"B", "C", "A"}, gf.Names())
	assert.True(t, ApproxEqual(fg, gf, 1e-12))

	canonical, err := Reorder(gf, fg.Names())
	require.NoError(t, err)
	assert.Equal(t, fg.Values(), canonical.Values())
}

func TestMultiplyAssociative(t *testing.T) {
	f, g := factorAB(t), factorBC(t)
	h := mustNew(t, []network.Variable{varC}, []float64{0.25, 0.75})

	left, err := Multiply(f, g)
	require.NoError(t, err)
	left, err = Multiply(left, h)
	require.NoError(t, err)

	right, err := Multiply(g, h)
	require.NoError(t, err)
	right, err = Multiply(f, right)
	require.NoError(t, err)

	assert.True(t, ApproxEqual(left, right, 1e-12))
}

func TestMultiplyUnitAndConflict(t *testing.T) {
	f := factorAB(t)

	p, err := Multiply(Unit(), f)
	require.NoError(t, err)
	assert.True(t, ApproxEqual(f, p, 0))

	p, err = Product()
	require.NoError(t, err)
	assert.Equal(t, []float64{1}, p.Values())

	wrong := mustNew(t, []network.Variable{{Name: "B", Cardinality: 2}}, []float64{1, 1})
	_, err = Multiply(f, wrong)
	assert.True(t, errors.Is(err, ErrScopeConflict))
}

func TestMarginalize(t *testing.T) {
	f := factorAB(t)

	mA, err := Marginalize(f, "A")
	require.NoError(t, err)
	assert.Equal(t, []string{"B"}, mA.Names())
	assert.Equal(t, []float64{5, 7, 9}, mA.Values())

	mB, err := Marginalize(f, "B")
	require.NoError(t, err)
	assert.Equal(t, []float64{6, 15}, mB.Values())

	// total mass is preserved
	assert.InDelta(t, f.Sum(), mA.Sum(), 1e-12)
	assert.InDelta(t, f.Sum(), mB.Sum(), 1e-12)

	empty, err := Marginalize(mB, "A")
	require.NoError(t, err)
	assert.Empty(t, empty.Names())
	assert.InDelta(t, 21.0, empty.Values()[0], 1e-12)

	_, err = Marginalize(f, "C")
	assert.True(t, errors.Is(err, ErrNotInScope))
}

func TestMarginalizeMiddleVariable(t *testing.T) {
	p, err := Multiply(factorAB(t), factorBC(t))
	require.NoError(t, err)

	m, err := Marginalize(p, "B")
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "C"}, m.Names())
	assert.InDelta(t, p.Sum(), m.Sum(), 1e-12)

	// A=0,C=1: 1*0.2 + 2*0.4 + 3*0.6
	v, _ := m.Value([]int{0, 1})
	assert.InDelta(t, 2.8, v, 1e-12)
}

func TestNormalize(t *testing.T) {
	f := mustNew(t, []network.Variable{varA}, []float64{1, 3})
	n, err := Normalize(f)
	require.NoError(t, err)
	assert.Equal(t, []float64{0.25, 0.75}, n.Values())

	zero := mustNew(t, []network.Variable{varA}, []float64{0, 0})
	_, err = Normalize(zero)
	assert.ErrorIs(t, err, ErrZeroMass)
}
