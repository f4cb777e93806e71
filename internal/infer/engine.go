package infer

import (
	"errors"
	"fmt"

	"github.com/esteb4an/redes-bayesianas/go-diagnoser/internal/factor"
	"github.com/esteb4an/redes-bayesianas/go-diagnoser/internal/network"
)

// #region engine
// Engine answers exact posterior queries by variable elimination. It holds no
// per-query state and is safe for concurrent use.
type Engine struct {
	model *network.Model
	prune bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithBarrenPruning restricts each query to the query and evidence variables
// and their ancestors. Other variables sum to one and cannot change the result.
func WithBarrenPruning(on bool) Option {
	return func(e *Engine) { e.prune = on }
}

// NewEngine wraps a validated model.
func NewEngine(m *network.Model, opts ...Option) *Engine {
	e := &Engine{model: m}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Model returns the wrapped model.
func (e *Engine) Model() *network.Model { return e.model }

// Infer is a one-shot Query on m without pruning.
func Infer(m *network.Model, query string, ev Evidence) (Posterior, error) {
	return NewEngine(m).Query(query, ev)
}

// #endregion engine

// #region query
// Query computes P(query | ev).
func (e *Engine) Query(query string, ev Evidence) (Posterior, error) {
	work, hidden, err := e.prepare(query, ev)
	if err != nil {
		return Posterior{}, err
	}
	for len(hidden) > 0 {
		v := e.nextVariable(work, hidden)
		hidden = remove(hidden, v)
		if work, err = eliminate(work, v); err != nil {
			return Posterior{}, fmt.Errorf("eliminate %s: %w", v, err)
		}
	}
	return e.finish(query, ev, work)
}

// QueryWithOrder computes P(query | ev) eliminating hidden variables in the
// given order, which must be a permutation of the variables that are neither
// the query nor observed.
func (e *Engine) QueryWithOrder(query string, ev Evidence, order []string) (Posterior, error) {
	work, hidden, err := e.prepare(query, ev)
	if err != nil {
		return Posterior{}, err
	}
	if !samePermutation(order, hidden) {
		return Posterior{}, fmt.Errorf("%w: got %v, need a permutation of %v", ErrBadOrder, order, hidden)
	}
	for _, v := range order {
		if work, err = eliminate(work, v); err != nil {
			return Posterior{}, fmt.Errorf("eliminate %s: %w", v, err)
		}
	}
	return e.finish(query, ev, work)
}

// EliminationOrder returns the order Query would use, without computing it.
func (e *Engine) EliminationOrder(query string, ev Evidence) ([]string, error) {
	work, hidden, err := e.prepare(query, ev)
	if err != nil {
		return nil, err
	}
	order := make([]string, 0, len(hidden))
	for len(hidden) > 0 {
		v := e.nextVariable(work, hidden)
		hidden = remove(hidden, v)
		order = append(order, v)
		if work, err = eliminate(work, v); err != nil {
			return nil, fmt.Errorf("eliminate %s: %w", v, err)
		}
	}
	return order, nil
}

// #endregion query

// #region prepare
// prepare validates the request, builds one factor per relevant CPT reduced by
// the evidence, and lists the hidden variables in declaration order.
func (e *Engine) prepare(query string, ev Evidence) ([]factor.Factor, []string, error) {
	if _, ok := e.model.Variable(query); !ok {
		return nil, nil, fmt.Errorf("%w: %q", ErrUnknownQuery, query)
	}
	for _, name := range ev.Names() {
		state := ev[name]
		v, ok := e.model.Variable(name)
		if !ok {
			return nil, nil, &EvidenceOutOfRangeError{Variable: name, State: state, Undeclared: true}
		}
		if state < 0 || state >= v.Cardinality {
			return nil, nil, &EvidenceOutOfRangeError{Variable: name, State: state, Cardinality: v.Cardinality}
		}
	}
	if _, observed := ev[query]; observed {
		return nil, nil, fmt.Errorf("%w: %s", ErrQueryObserved, query)
	}

	var relevant []string
	if e.prune {
		relevant = e.model.Ancestors(append([]string{query}, ev.Names()...)...)
	} else {
		for _, v := range e.model.Variables() {
			relevant = append(relevant, v.Name)
		}
	}

	work := make([]factor.Factor, 0, len(relevant))
	var hidden []string
	for _, name := range relevant {
		cpt, _ := e.model.CPT(name)
		f, err := factor.Reduce(factor.FromCPT(cpt), ev)
		if err != nil {
			return nil, nil, fmt.Errorf("reduce %s: %w", name, err)
		}
		work = append(work, f)
		if _, observed := ev[name]; !observed && name != query {
			hidden = append(hidden, name)
		}
	}
	return work, hidden, nil
}

// #endregion prepare

// #region eliminate
// nextVariable picks the hidden variable that appears in the fewest current
// factors. hidden is in declaration order and only a strictly smaller count
// replaces the current pick, so ties go to the earliest declared.
func (e *Engine) nextVariable(work []factor.Factor, hidden []string) string {
	best, bestCount := hidden[0], -1
	for _, v := range hidden {
		n := 0
		for _, f := range work {
			if f.Has(v) {
				n++
			}
		}
		if bestCount < 0 || n < bestCount {
			best, bestCount = v, n
		}
	}
	return best
}

// eliminate multiplies the factors mentioning v, sums v out, and puts the
// result at the end of the working set. If no factor mentions v the neutral
// factor stands in; summing a constant over v only rescales, which the final
// normalization removes, so the working set is left unchanged.
func eliminate(work []factor.Factor, v string) ([]factor.Factor, error) {
	var touched, rest []factor.Factor
	for _, f := range work {
		if f.Has(v) {
			touched = append(touched, f)
		} else {
			rest = append(rest, f)
		}
	}
	if len(touched) == 0 {
		return work, nil
	}

	combined, err := factor.Product(touched...)
	if err != nil {
		return nil, err
	}
	summed, err := factor.Marginalize(combined, v)
	if err != nil {
		return nil, err
	}
	return append(rest, summed), nil
}

// finish multiplies what is left into a factor over the query and normalizes it.
func (e *Engine) finish(query string, ev Evidence, work []factor.Factor) (Posterior, error) {
	joint, err := factor.Product(work...)
	if err != nil {
		return Posterior{}, err
	}
	names := joint.Names()
	if len(names) != 1 || names[0] != query {
		return Posterior{}, fmt.Errorf("elimination left scope %v, expected [%s]", names, query)
	}

	norm, err := factor.Normalize(joint)
	if errors.Is(err, factor.ErrZeroMass) {
		return Posterior{}, &ZeroProbabilityEvidenceError{Query: query, Evidence: copyEvidence(ev)}
	}
	if err != nil {
		return Posterior{}, err
	}

	v, _ := e.model.Variable(query)
	return Posterior{Variable: v, Probs: norm.Values()}, nil
}

// #endregion eliminate

// #region helpers
func remove(names []string, target string) []string {
	out := make([]string, 0, len(names))
	for _, n := range names {
		if n != target {
			out = append(out, n)
		}
	}
	return out
}

func samePermutation(order, hidden []string) bool {
	if len(order) != len(hidden) {
		return false
	}
	want := make(map[string]bool, len(hidden))
	for _, h := range hidden {
		want[h] = true
	}
	for _, o := range order {
		if !want[o] {
			return false
		}
		delete(want, o)
	}
	return len(want) == 0
}

func copyEvidence(ev Evidence) Evidence {
	out := make(Evidence, len(ev))
	for k, v := range ev {
		out[k] = v
	}
	return out
}

// #endregion helpers
