package replay

import (
	"fmt"

	"github.com/esteb4an/redes-bayesianas/go-diagnoser/internal/gate"
	"github.com/esteb4an/redes-bayesianas/go-diagnoser/internal/infer"
	"github.com/esteb4an/redes-bayesianas/go-diagnoser/internal/network"
	"github.com/esteb4an/redes-bayesianas/go-diagnoser/internal/orchestrator"
	"github.com/esteb4an/redes-bayesianas/go-diagnoser/internal/signals"
)

// #region types
// ReplayConfig bundles the pipeline settings for a replay run.
type ReplayConfig struct {
	Query          string
	GateConfig     gate.GateConfig
	ProducerConfig signals.ProducerConfig
}

// DefaultReplayConfig returns the reference query, gate and thresholds.
func DefaultReplayConfig() ReplayConfig {
	return ReplayConfig{
		Query:          orchestrator.DefaultConfig().Query,
		GateConfig:     gate.DefaultGateConfig(),
		ProducerConfig: signals.DefaultProducerConfig(),
	}
}

// ReplayResult captures the outcome of replaying one record.
type ReplayResult struct {
	RecordID    string
	Evidence    infer.Evidence
	Posterior   []float64
	Label       string // "fault" | "no-fault" | "error"
	Probability float64
	Reason      string
}

// Mismatch is a record whose replayed label differs from the expected one.
// Got is empty when the fixture expects a record the replay did not produce.
type Mismatch struct {
	RecordID string
	Expected string
	Got      string
}

// ReplaySummary provides aggregate stats from a replay run.
type ReplaySummary struct {
	TotalRecords int
	Faults       int
	NoFaults     int
	Errors       int
	Mismatches   int
}

// #endregion types

// #region replay
// Replay diagnoses records one at a time, in order, entirely in memory.
func Replay(m *network.Model, records []signals.Reading, config ReplayConfig) ([]ReplayResult, error) {
	p, err := orchestrator.NewPipeline(
		infer.NewEngine(m),
		signals.NewProducer(config.ProducerConfig),
		gate.NewGate(config.GateConfig),
		orchestrator.Config{Query: config.Query, Workers: 1},
	)
	if err != nil {
		return nil, fmt.Errorf("replay: %w", err)
	}

	results := make([]ReplayResult, 0, len(records))
	for _, r := range records {
		o := p.Diagnose(r)
		res := ReplayResult{
			RecordID:    o.RecordID,
			Evidence:    o.Evidence,
			Posterior:   o.Posterior.Probs,
			Label:       o.Label(),
			Probability: o.Decision.Probability,
			Reason:      o.Decision.Reason,
		}
		if o.Err != nil {
			res.Reason = o.Err.Error()
		}
		results = append(results, res)
	}
	return results, nil
}

// Compare lists every expected result whose label was not reproduced, in
// fixture order.
func Compare(results []ReplayResult, expected []FixtureExpectedResult) []Mismatch {
	got := make(map[string]string, len(results))
	for _, r := range results {
		got[r.RecordID] = r.Label
	}
	var out []Mismatch
	for _, e := range expected {
		if g := got[e.RecordID]; g != e.Label {
			out = append(out, Mismatch{RecordID: e.RecordID, Expected: e.Label, Got: g})
		}
	}
	return out
}

// Summarize computes aggregate stats from replay results.
func Summarize(results []ReplayResult, mismatches []Mismatch) ReplaySummary {
	s := ReplaySummary{
		TotalRecords: len(results),
		Mismatches:   len(mismatches),
	}
	for _, r := range results {
		switch r.Label {
		case string(gate.LabelFault):
			s.Faults++
		case string(gate.LabelNoFault):
			s.NoFaults++
		case orchestrator.LabelError:
			s.Errors++
		}
	}
	return s
}

// #endregion replay
