package network

import (
	"errors"
	"fmt"
)

// ErrModelInvalid matches every *ModelInvalidError via errors.Is.
var ErrModelInvalid = errors.New("model invalid")

// Check names the validation step that rejected a model definition.
type Check string

const (
	CheckDeclaration      Check = "declaration"
	CheckEdgeEndpoints    Check = "edge_endpoints"
	CheckAcyclic          Check = "acyclic"
	CheckCPTAssignment    Check = "cpt_assignment"
	CheckProbabilityRange Check = "probability_range"
	CheckRowSum           Check = "row_sum"
)

// ModelInvalidError reports the first failed check and what it failed on.
type ModelInvalidError struct {
	Check    Check
	Variable string
	Edge     *Edge
	Cycle    []string
	Row      []int
	Detail   string
	Err      error
}

func (e *ModelInvalidError) Error() string {
	msg := fmt.Sprintf("model invalid [%s]", e.Check)
	if e.Variable != "" {
		msg += fmt.Sprintf(" variable %q", e.Variable)
	}
	if e.Edge != nil {
		msg += fmt.Sprintf(" edge %s -> %s", e.Edge.Parent, e.Edge.Child)
	}
	if e.Row != nil {
		msg += fmt.Sprintf(" row %v", e.Row)
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

func (e *ModelInvalidError) Is(target error) bool {
	return target == ErrModelInvalid
}

func (e *ModelInvalidError) Unwrap() error {
	return e.Err
}
