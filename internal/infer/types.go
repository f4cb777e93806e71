package infer

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/esteb4an/redes-bayesianas/go-diagnoser/internal/factor"
	"github.com/esteb4an/redes-bayesianas/go-diagnoser/internal/network"
)

// #region evidence
// Evidence maps observed variables to their state index.
type Evidence map[string]int

// Names returns the observed variables sorted by name.
func (e Evidence) Names() []string {
	out := make([]string, 0, len(e))
	for n := range e {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

func (e Evidence) String() string {
	parts := make([]string, 0, len(e))
	for _, n := range e.Names() {
		parts = append(parts, fmt.Sprintf("%s=%d", n, e[n]))
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// #endregion evidence

// #region posterior
// Posterior is the normalized distribution of the query variable.
type Posterior struct {
	Variable network.Variable `json:"variable"`
	Probs    []float64        `json:"probs"`
}

// P returns the probability of state, or 0 for an unknown state.
func (p Posterior) P(state int) float64 {
	if state < 0 || state >= len(p.Probs) {
		return 0
	}
	return p.Probs[state]
}

// Sum returns the total mass (1 within rounding).
func (p Posterior) Sum() float64 {
	var s float64
	for _, x := range p.Probs {
		s += x
	}
	return s
}

// Factor returns the posterior as a single-variable factor.
func (p Posterior) Factor() (factor.Factor, error) {
	return factor.New([]network.Variable{p.Variable}, p.Probs)
}

// #endregion posterior

// #region errors
var (
	// ErrEvidenceOutOfRange matches every *EvidenceOutOfRangeError.
	ErrEvidenceOutOfRange = errors.New("evidence out of range")
	// ErrZeroProbabilityEvidence matches every *ZeroProbabilityEvidenceError.
	ErrZeroProbabilityEvidence = errors.New("evidence has zero probability")
	// ErrUnknownQuery is returned when the query variable is not in the model.
	ErrUnknownQuery = errors.New("unknown query variable")
	// ErrQueryObserved is returned when the query variable is also in the evidence.
	ErrQueryObserved = errors.New("query variable is observed")
	// ErrBadOrder is returned when a caller-supplied elimination order is not a
	// permutation of the hidden variables.
	ErrBadOrder = errors.New("invalid elimination order")
)

// EvidenceOutOfRangeError reports evidence on an undeclared variable or with a
// state index outside the variable's cardinality.
type EvidenceOutOfRangeError struct {
	Variable    string
	State       int
	Cardinality int
	Undeclared  bool
}

func (e *EvidenceOutOfRangeError) Error() string {
	if e.Undeclared {
		return fmt.Sprintf("evidence references undeclared variable %q", e.Variable)
	}
	return fmt.Sprintf("evidence %s=%d outside [0, %d)", e.Variable, e.State, e.Cardinality)
}

func (e *EvidenceOutOfRangeError) Is(target error) bool { return target == ErrEvidenceOutOfRange }

// ZeroProbabilityEvidenceError reports evidence the model deems impossible.
type ZeroProbabilityEvidenceError struct {
	Query    string
	Evidence Evidence
}

func (e *ZeroProbabilityEvidenceError) Error() string {
	return fmt.Sprintf("P(%s) is undefined: evidence %s has zero probability", e.Query, e.Evidence)
}

func (e *ZeroProbabilityEvidenceError) Is(target error) bool {
	return target == ErrZeroProbabilityEvidence
}

// #endregion errors
