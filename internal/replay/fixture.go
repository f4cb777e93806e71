package replay

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/esteb4an/redes-bayesianas/go-diagnoser/internal/gate"
	"github.com/esteb4an/redes-bayesianas/go-diagnoser/internal/orchestrator"
	"github.com/esteb4an/redes-bayesianas/go-diagnoser/internal/signals"
	"github.com/esteb4an/redes-bayesianas/go-diagnoser/internal/store"
)

// #region fixture-types

// Fixture is the top-level JSON structure for a replay fixture.
type Fixture struct {
	Description     string                  `json:"description"`
	Model           string                  `json:"model,omitempty"` // network file; empty = built-in
	Config          FixtureConfig           `json:"config"`
	Records         []FixtureRecord         `json:"records"`
	ExpectedResults []FixtureExpectedResult `json:"expected_results"`
}

// FixtureRecord mirrors signals.Reading with JSON tags.
type FixtureRecord struct {
	ID     string             `json:"id"`
	Values map[string]float64 `json:"values"`
}

// FixtureExpectedResult captures the expected label per record.
type FixtureExpectedResult struct {
	RecordID string `json:"record_id"`
	Label    string `json:"label"` // "fault" | "no-fault" | "error"
}

// FixtureConfig bundles the decision rule and discretization thresholds.
type FixtureConfig struct {
	Query      string                      `json:"query"`
	FaultState int                         `json:"fault_state"`
	Threshold  float64                     `json:"threshold"`
	Sensors    map[string]FixtureThreshold `json:"sensors"`
}

// FixtureThreshold mirrors signals.Threshold with JSON tags.
type FixtureThreshold struct {
	Low  float64 `json:"low"`
	High float64 `json:"high"`
}

// #endregion fixture-types

// #region fixture-loader

// LoadFixture reads and parses a JSON fixture file.
func LoadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture %s: %w", path, err)
	}
	var f Fixture
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse fixture %s: %w", path, err)
	}
	return &f, nil
}

// WriteFixture writes f as indented JSON.
func WriteFixture(f Fixture, path string) error {
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal fixture: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// Readings converts the fixture records to domain readings.
func (f *Fixture) Readings() []signals.Reading {
	out := make([]signals.Reading, len(f.Records))
	for i, r := range f.Records {
		out[i] = signals.Reading{ID: r.ID, Values: r.Values}
	}
	return out
}

// ToReplayConfig converts a FixtureConfig to a domain ReplayConfig. Missing
// sensors fall back to the reference thresholds.
func (fc *FixtureConfig) ToReplayConfig() ReplayConfig {
	cfg := ReplayConfig{
		Query:      fc.Query,
		GateConfig: gate.GateConfig{FaultState: fc.FaultState, Threshold: fc.Threshold},
	}
	if cfg.Query == "" {
		cfg.Query = orchestrator.DefaultConfig().Query
	}
	if len(fc.Sensors) == 0 {
		cfg.ProducerConfig = signals.DefaultProducerConfig()
		return cfg
	}
	cfg.ProducerConfig = signals.ProducerConfig{Thresholds: make(map[string]signals.Threshold, len(fc.Sensors))}
	for name, t := range fc.Sensors {
		cfg.ProducerConfig.Thresholds[name] = signals.Threshold{Low: t.Low, High: t.High}
	}
	return cfg
}

// #endregion fixture-loader

// #region fixture-export

// FixtureFromDiagnoses rebuilds a fixture from a stored run. The decision rule
// and thresholds come from the first logged record; each logged label becomes
// the expected result.
func FixtureFromDiagnoses(run store.Run, modelPath string, diags []store.Diagnosis) (Fixture, error) {
	if len(diags) == 0 {
		return Fixture{}, fmt.Errorf("run %s has no logged diagnoses", run.RunID)
	}

	th := diags[0].Record.Thresholds
	f := Fixture{
		Description: fmt.Sprintf("Export of run %s: %d records of model %s", run.RunID, len(diags), run.Model),
		Model:       modelPath,
		Config: FixtureConfig{
			Query:      run.Query,
			FaultState: th.FaultState,
			Threshold:  th.Threshold,
			Sensors:    make(map[string]FixtureThreshold, len(th.Sensors)),
		},
		Records:         make([]FixtureRecord, len(diags)),
		ExpectedResults: make([]FixtureExpectedResult, len(diags)),
	}
	for name, s := range th.Sensors {
		f.Config.Sensors[name] = FixtureThreshold{Low: s.Low, High: s.High}
	}
	for i, d := range diags {
		f.Records[i] = FixtureRecord{ID: d.RecordID, Values: d.Record.Readings}
		f.ExpectedResults[i] = FixtureExpectedResult{RecordID: d.RecordID, Label: d.Label}
	}
	return f, nil
}

// #endregion fixture-export
