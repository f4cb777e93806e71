package infer

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/esteb4an/redes-bayesianas/go-diagnoser/internal/network"
)

// #region fixtures
var sensors = []string{"UsoAltoCPU", "AltaTemperatura", "ErroresMemoria", "FallosRed"}

func diagnosisModel(t *testing.T) *network.Model {
	t.Helper()
	vars := []network.Variable{{Name: "FalloSistema", Cardinality: 2}}
	var edges []network.Edge
	for _, s := range sensors {
		vars = append(vars, network.Variable{Name: s, Cardinality: 2})
		edges = append(edges, network.Edge{Parent: "FalloSistema", Child: s})
	}
	tables := map[string][2][]float64{
		"UsoAltoCPU":      {{0.9, 0.1}, {0.4, 0.6}},
		"AltaTemperatura": {{0.85, 0.15}, {0.3, 0.7}},
		"ErroresMemoria":  {{0.8, 0.2}, {0.2, 0.8}},
		"FallosRed":       {{0.75, 0.25}, {0.25, 0.75}},
	}
	cpts := []network.CPTDef{{Variable: "FalloSistema", Rows: []network.Row{{Probs: []float64{0.7, 0.3}}}}}
	for _, s := range sensors {
		cpts = append(cpts, network.CPTDef{
			Variable: s,
			Parents:  []string{"FalloSistema"},
			Rows: []network.Row{
				{Given: []int{0}, Probs: tables[s][0]},
				{Given: []int{1}, Probs: tables[s][1]},
			},
		})
	}
	m, err := network.Build(vars, edges, cpts, network.WithName("fallo-sistema"))
	require.NoError(t, err)
	return m
}

// syntheticRows fills every parent assignment with a deterministic distribution.
func syntheticRows(seed int, parentCards []int, card int) []network.Row {
	n := 1
	for _, c := range parentCards {
		n *= c
	}
	rows := make([]network.Row, 0, n)
	for r := 0; r < n; r++ {
		given := make([]int, len(parentCards))
		rem := r
		for i := len(parentCards) - 1; i >= 0; i-- {
			given[i] = rem % parentCards[i]
			rem /= parentCards[i]
		}
		probs := make([]float64, card)
		var total float64
		for s := range probs {
			probs[s] = float64(1 + (seed*5+r*7+s*3)%11)
			total += probs[s]
		}
		for s := range probs {
			probs[s] /= total
		}
		rows = append(rows, network.Row{Given: given, Probs: probs})
	}
	return rows
}

// alarmModel mixes cardinalities and has a v-structure plus a second root.
func alarmModel(t *testing.T) *network.Model {
	t.Helper()
	vars := []network.Variable{
		{Name: "Burglary", Cardinality: 2},
		{Name: "Earthquake", Cardinality: 2},
		{Name: "Alarm", Cardinality: 2},
		{Name: "JohnCalls", Cardinality: 2},
		{Name: "MaryCalls", Cardinality: 2},
		{Name: "Weather", Cardinality: 3},
		{Name: "Sprinkler", Cardinality: 2},
		{Name: "WetGrass", Cardinality: 3},
	}
	edges := []network.Edge{
		{Parent: "Burglary", Child: "Alarm"},
		{Parent: "Earthquake", Child: "Alarm"},
		{Parent: "Alarm", Child: "JohnCalls"},
		{Parent: "Alarm", Child: "MaryCalls"},
		{Parent: "Weather", Child: "Sprinkler"},
		{Parent: "Sprinkler", Child: "WetGrass"},
		{Parent: "Alarm", Child: "WetGrass"},
	}
	cpts := []network.CPTDef{
		{Variable: "Burglary", Rows: syntheticRows(1, nil, 2)},
		{Variable: "Earthquake", Rows: syntheticRows(2, nil, 2)},
		{Variable: "Alarm", Parents: []string{"Burglary", "Earthquake"}, Rows: syntheticRows(3, []int{2, 2}, 2)},
		{Variable: "JohnCalls", Parents: []string{"Alarm"}, Rows: syntheticRows(4, []int{2}, 2)},
		{Variable: "MaryCalls", Parents: []string{"Alarm"}, Rows: syntheticRows(5, []int{2}, 2)},
		{Variable: "Weather", Rows: syntheticRows(6, nil, 3)},
		{Variable: "Sprinkler", Parents: []string{"Weather"}, Rows: syntheticRows(7, []int{3}, 2)},
		{Variable: "WetGrass", Parents: []string{"Sprinkler", "Alarm"}, Rows: syntheticRows(8, []int{2, 2}, 3)},
	}
	m, err := network.Build(vars, edges, cpts)
	require.NoError(t, err)
	return m
}

// enumerate computes P(query | ev) by summing the full joint.
func enumerate(t *testing.T, m *network.Model, query string, ev Evidence) []float64 {
	t.Helper()
	vars := m.Variables()
	assign := make(map[string]int, len(vars))
	q, _ := m.Variable(query)
	out := make([]float64, q.Cardinality)

	var walk func(i int)
	walk = func(i int) {
		if i == len(vars) {
			p := 1.0
			for _, v := range vars {
				cpt, _ := m.CPT(v.Name)
				var given []int
				for _, par := range cpt.Parents() {
					given = append(given, assign[par.Name])
				}
				row, ok := cpt.Row(given)
				require.True(t, ok)
				p *= row[assign[v.Name]]
			}
			out[assign[query]] += p
			return
		}
		v := vars[i]
		for s := 0; s < v.Cardinality; s++ {
			if obs, ok := ev[v.Name]; ok && obs != s {
				continue
			}
			assign[v.Name] = s
			walk(i + 1)
		}
	}
	walk(0)

	var total float64
	for _, x := range out {
		total += x
	}
	for i := range out {
		out[i] /= total
	}
	return out
}

func permutations(items []string) [][]string {
	if len(items) <= 1 {
		return [][]string{append([]string(nil), items...)}
	}
	var out [][]string
	for i := range items {
		rest := make([]string, 0, len(items)-1)
		rest = append(rest, items[:i]...)
		rest = append(rest, items[i+1:]...)
		for _, p := range permutations(rest) {
			out = append(out, append([]string{items[i]}, p...))
		}
	}
	return out
}

// #endregion fixtures

// #region diagnosis-tests
func TestQueryAllAbnormalIsFault(t *testing.T) {
	e := NewEngine(diagnosisModel(t))

	post, err := e.Query("FalloSistema", Evidence{
		"UsoAltoCPU": 1, "AltaTemperatura": 1, "ErroresMemoria": 1, "FallosRed": 1,
	})
	require.NoError(t, err)

	// 0.3*0.6*0.7*0.8*0.75 vs 0.7*0.1*0.15*0.2*0.25
	assert.InDelta(t, 0.0756/(0.0756+0.000525), post.P(1), 1e-9)
	assert.Greater(t, post.P(1), 0.5)
	assert.InDelta(t, 1.0, post.Sum(), 1e-6)
	assert.Equal(t, "FalloSistema", post.Variable.Name)
}

func TestQueryAllNormalIsNoFault(t *testing.T) {
	e := NewEngine(diagnosisModel(t))

	post, err := e.Query("FalloSistema", Evidence{
		"UsoAltoCPU": 0, "AltaTemperatura": 0, "ErroresMemoria": 0, "FallosRed": 0,
	})
	require.NoError(t, err)

	assert.InDelta(t, 0.0018/(0.0018+0.3213), post.P(1), 1e-9)
	assert.Less(t, post.P(1), 0.5)
}

func TestQueryNoEvidenceReturnsPrior(t *testing.T) {
	for _, prune := range []bool{false, true} {
		e := NewEngine(diagnosisModel(t), WithBarrenPruning(prune))
		post, err := e.Query("FalloSistema", Evidence{})
		require.NoError(t, err)
		assert.InDelta(t, 0.7, post.P(0), 1e-12)
		assert.InDelta(t, 0.3, post.P(1), 1e-12)
	}
}

func TestQueryPartialEvidence(t *testing.T) {
	m := diagnosisModel(t)
	ev := Evidence{"AltaTemperatura": 1}

	post, err := Infer(m, "FalloSistema", ev)
	require.NoError(t, err)
	assert.InDeltaSlice(t, enumerate(t, m, "FalloSistema", ev), post.Probs, 1e-12)

	// predictive direction: a sensor given another sensor
	post, err = Infer(m, "FallosRed", ev)
	require.NoError(t, err)
	assert.InDeltaSlice(t, enumerate(t, m, "FallosRed", ev), post.Probs, 1e-12)
}

// #endregion diagnosis-tests

// #region property-tests
func TestQueryMatchesEnumeration(t *testing.T) {
	m := alarmModel(t)
	cases := []struct {
		query string
		ev    Evidence
	}{
		{"Burglary", Evidence{}},
		{"Burglary", Evidence{"JohnCalls": 1, "MaryCalls": 1}},
		{"Earthquake", Evidence{"Burglary": 1, "Alarm": 1}},
		{"Weather", Evidence{"WetGrass": 2}},
		{"Alarm", Evidence{"WetGrass": 0, "Sprinkler": 1}},
		{"WetGrass", Evidence{"Burglary": 0}},
	}
	for _, prune := range []bool{false, true} {
		e := NewEngine(m, WithBarrenPruning(prune))
		for _, c := range cases {
			post, err := e.Query(c.query, c.ev)
			require.NoError(t, err, "%s | %v", c.query, c.ev)
			assert.InDelta(t, 1.0, post.Sum(), 1e-6)
			assert.InDeltaSlice(t, enumerate(t, m, c.query, c.ev), post.Probs, 1e-9,
				"prune=%v %s | %v", prune, c.query, c.ev)
		}
	}
}

func TestQueryOrderIndependent(t *testing.T) {
	m := alarmModel(t)
	e := NewEngine(m)
	ev := Evidence{"JohnCalls": 1, "WetGrass": 2}

	reference, err := e.Query("Burglary", ev)
	require.NoError(t, err)

	order, err := e.EliminationOrder("Burglary", ev)
	require.NoError(t, err)
	require.Len(t, order, 5)

	for _, perm := range permutations(order) {
		post, err := e.QueryWithOrder("Burglary", ev, perm)
		require.NoError(t, err)
		assert.InDeltaSlice(t, reference.Probs, post.Probs, 1e-12, "order %v", perm)
	}
}

func TestQueryDeterministic(t *testing.T) {
	e := NewEngine(alarmModel(t))
	ev := Evidence{"MaryCalls": 0, "Weather": 2}

	first, err := e.Query("Alarm", ev)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := e.Query("Alarm", ev)
		require.NoError(t, err)
		assert.Equal(t, first.Probs, again.Probs)
	}
}

func TestEliminationOrderMinNeighbors(t *testing.T) {
	e := NewEngine(diagnosisModel(t))

	// each sensor is touched by one factor; the root by five
	order, err := e.EliminationOrder("FalloSistema", Evidence{})
	require.NoError(t, err)
	assert.Equal(t, sensors, order)

	order, err = e.EliminationOrder("FallosRed", Evidence{"UsoAltoCPU": 1})
	require.NoError(t, err)
	assert.Equal(t, []string{"AltaTemperatura", "ErroresMemoria", "FalloSistema"}, order)
}

// #endregion property-tests

// #region error-tests
func TestQueryEvidenceOutOfRange(t *testing.T) {
	e := NewEngine(diagnosisModel(t))

	_, err := e.Query("FalloSistema", Evidence{"UsoAltoCPU": 2})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrEvidenceOutOfRange))
	var oor *EvidenceOutOfRangeError
	require.True(t, errors.As(err, &oor))
	assert.Equal(t, "UsoAltoCPU", oor.Variable)
	assert.Equal(t, 2, oor.State)
	assert.Equal(t, 2, oor.Cardinality)

	_, err = e.Query("FalloSistema", Evidence{"UsoAltoCPU": -1})
	assert.ErrorIs(t, err, ErrEvidenceOutOfRange)

	_, err = e.Query("FalloSistema", Evidence{"Disco": 1})
	require.True(t, errors.As(err, &oor))
	assert.True(t, oor.Undeclared)

	// the model keeps working after a rejected query
	_, err = e.Query("FalloSistema", Evidence{"UsoAltoCPU": 1})
	assert.NoError(t, err)
}

func TestQueryUnknownOrObservedVariable(t *testing.T) {
	e := NewEngine(diagnosisModel(t))

	_, err := e.Query("Disco", Evidence{})
	assert.ErrorIs(t, err, ErrUnknownQuery)

	_, err = e.Query("FallosRed", Evidence{"FallosRed": 1})
	assert.ErrorIs(t, err, ErrQueryObserved)
}

func TestQueryZeroProbabilityEvidence(t *testing.T) {
	m, err := network.Build(
		[]network.Variable{{Name: "A", Cardinality: 2}, {Name: "B", Cardinality: 2}},
		[]network.Edge{{Parent: "A", Child: "B"}},
		[]network.CPTDef{
			{Variable: "A", Rows: []network.Row{{Probs: []float64{0.5, 0.5}}}},
			{Variable: "B", Parents: []string{"A"}, Rows: []network.Row{
				{Given: []int{0}, Probs: []float64{1, 0}},
				{Given: []int{1}, Probs: []float64{1, 0}},
			}},
		},
	)
	require.NoError(t, err)

	_, err = Infer(m, "A", Evidence{"B": 1})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrZeroProbabilityEvidence)
	var zero *ZeroProbabilityEvidenceError
	require.True(t, errors.As(err, &zero))
	assert.Equal(t, "A", zero.Query)
	assert.Equal(t, Evidence{"B": 1}, zero.Evidence)
}

func TestQueryWithOrderRejectsBadOrder(t *testing.T) {
	e := NewEngine(diagnosisModel(t))

	_, err := e.QueryWithOrder("FalloSistema", Evidence{}, []string{"UsoAltoCPU"})
	assert.ErrorIs(t, err, ErrBadOrder)

	_, err = e.QueryWithOrder("FalloSistema", Evidence{},
		[]string{"UsoAltoCPU", "UsoAltoCPU", "ErroresMemoria", "FallosRed"})
	assert.ErrorIs(t, err, ErrBadOrder)
}

// #endregion error-tests
