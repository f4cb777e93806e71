package gate

import (
	"errors"
	"strings"
	"testing"

	"github.com/esteb4an/redes-bayesianas/go-diagnoser/internal/infer"
	"github.com/esteb4an/redes-bayesianas/go-diagnoser/internal/network"
)

func makePosterior(probs ...float64) infer.Posterior {
	return infer.Posterior{
		Variable: network.Variable{Name: "FalloSistema", Cardinality: len(probs)},
		Probs:    probs,
	}
}

func TestGateFaultAboveThreshold(t *testing.T) {
	g := NewGate(DefaultGateConfig())

	decision := g.Evaluate(makePosterior(0.007, 0.993))

	if decision.Label != LabelFault {
		t.Fatalf("expected fault, got %s: %s", decision.Label, decision.Reason)
	}
	if !decision.Fault() {
		t.Fatal("Fault() should be true")
	}
	if decision.Probability != 0.993 {
		t.Errorf("expected probability 0.993, got %f", decision.Probability)
	}
	if !strings.Contains(decision.Reason, "FalloSistema=1") {
		t.Errorf("reason should name the query state: %s", decision.Reason)
	}
}

func TestGateNoFaultBelowThreshold(t *testing.T) {
	g := NewGate(DefaultGateConfig())

	decision := g.Evaluate(makePosterior(0.994, 0.006))

	if decision.Label != LabelNoFault {
		t.Fatalf("expected no-fault, got %s", decision.Label)
	}
	if decision.Margin >= 0 {
		t.Errorf("expected negative margin, got %f", decision.Margin)
	}
}

func TestGateExactlyAtThresholdIsNoFault(t *testing.T) {
	g := NewGate(DefaultGateConfig())

	decision := g.Evaluate(makePosterior(0.5, 0.5))

	if decision.Label != LabelNoFault {
		t.Fatalf("expected no-fault at exactly 0.5, got %s", decision.Label)
	}
}

func TestGateCustomStateAndThreshold(t *testing.T) {
	g := NewGate(GateConfig{FaultState: 2, Threshold: 0.2})

	if d := g.Evaluate(makePosterior(0.5, 0.25, 0.25)); d.Label != LabelFault {
		t.Fatalf("expected fault on state 2, got %s", d.Label)
	}
	if d := g.Evaluate(makePosterior(0.5, 0.35, 0.15)); d.Label != LabelNoFault {
		t.Fatalf("expected no-fault on state 2, got %s", d.Label)
	}
}

func TestGateMissingStateIsNoFault(t *testing.T) {
	g := NewGate(GateConfig{FaultState: 5, Threshold: 0.5})

	if d := g.Evaluate(makePosterior(0.1, 0.9)); d.Label != LabelNoFault || d.Probability != 0 {
		t.Fatalf("expected no-fault with zero mass, got %+v", d)
	}
}

func TestGateCheck(t *testing.T) {
	v := network.Variable{Name: "FalloSistema", Cardinality: 2}

	if err := NewGate(DefaultGateConfig()).Check(v); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, state := range []int{2, 5, -1} {
		err := NewGate(GateConfig{FaultState: state, Threshold: 0.5}).Check(v)
		if !errors.Is(err, ErrFaultStateOutOfRange) {
			t.Errorf("state %d: expected ErrFaultStateOutOfRange, got %v", state, err)
		}
	}
}
