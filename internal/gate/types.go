package gate

import (
	"errors"
	"fmt"
)

// ErrFaultStateOutOfRange matches every *FaultStateOutOfRangeError.
var ErrFaultStateOutOfRange = errors.New("fault state out of range")

// #region label
// Label is the diagnosis attached to a posterior.
type Label string

const (
	LabelFault   Label = "fault"
	LabelNoFault Label = "no-fault"
)

// #endregion label

// #region gate-config
// GateConfig holds the decision rule applied to the query posterior.
type GateConfig struct {
	FaultState int     // state index of the query variable that means "fault"
	Threshold  float64 // P(FaultState) must be strictly greater than this
}

// DefaultGateConfig returns the 0.5 majority rule on state 1.
func DefaultGateConfig() GateConfig {
	return GateConfig{
		FaultState: 1,
		Threshold:  0.5,
	}
}

// #endregion gate-config

// #region gate-decision
// GateDecision is the output of the gate evaluation.
type GateDecision struct {
	Label       Label
	Probability float64 // posterior mass at FaultState
	Margin      float64 // Probability - Threshold
	Reason      string
}

// Fault reports whether the decision is LabelFault.
func (d GateDecision) Fault() bool { return d.Label == LabelFault }

// #endregion gate-decision

// #region errors
// FaultStateOutOfRangeError reports a FaultState the query variable does not have.
type FaultStateOutOfRangeError struct {
	Variable    string
	State       int
	Cardinality int
}

func (e *FaultStateOutOfRangeError) Error() string {
	return fmt.Sprintf("fault state %d outside [0, %d) of %s", e.State, e.Cardinality, e.Variable)
}

func (e *FaultStateOutOfRangeError) Is(target error) bool { return target == ErrFaultStateOutOfRange }

// #endregion errors
