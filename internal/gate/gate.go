package gate

import (
	"fmt"

	"github.com/esteb4an/redes-bayesianas/go-diagnoser/internal/infer"
	"github.com/esteb4an/redes-bayesianas/go-diagnoser/internal/network"
)

// #region gate
// Gate turns a posterior into a fault / no-fault label.
type Gate struct {
	config GateConfig
}

// NewGate creates a gate with the given configuration.
func NewGate(config GateConfig) *Gate {
	return &Gate{config: config}
}

// Config returns the active configuration.
func (g *Gate) Config() GateConfig { return g.config }

// Check returns a *FaultStateOutOfRangeError unless v has the configured FaultState.
func (g *Gate) Check(v network.Variable) error {
	if g.config.FaultState < 0 || g.config.FaultState >= v.Cardinality {
		return &FaultStateOutOfRangeError{Variable: v.Name, State: g.config.FaultState, Cardinality: v.Cardinality}
	}
	return nil
}

// Evaluate labels the posterior "fault" iff P(FaultState) > Threshold.
// A posterior without FaultState counts as zero mass there.
func (g *Gate) Evaluate(post infer.Posterior) GateDecision {
	p := post.P(g.config.FaultState)
	margin := p - g.config.Threshold

	if p > g.config.Threshold {
		return GateDecision{
			Label:       LabelFault,
			Probability: p,
			Margin:      margin,
			Reason: fmt.Sprintf("P(%s=%d)=%.4f > %.4f",
				post.Variable.Name, g.config.FaultState, p, g.config.Threshold),
		}
	}

	return GateDecision{
		Label:       LabelNoFault,
		Probability: p,
		Margin:      margin,
		Reason: fmt.Sprintf("P(%s=%d)=%.4f <= %.4f",
			post.Variable.Name, g.config.FaultState, p, g.config.Threshold),
	}
}

// #endregion gate
