package replay

import (
	"path/filepath"
	"testing"

	"github.com/esteb4an/redes-bayesianas/go-diagnoser/internal/logging"
	"github.com/esteb4an/redes-bayesianas/go-diagnoser/internal/modeldef"
	"github.com/esteb4an/redes-bayesianas/go-diagnoser/internal/network"
	"github.com/esteb4an/redes-bayesianas/go-diagnoser/internal/store"
)

// helper: the built-in network.
func defaultModel(t *testing.T) *network.Model {
	t.Helper()
	def, err := modeldef.Default()
	if err != nil {
		t.Fatalf("Default: %v", err)
	}
	m, err := def.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return m
}

func loadReference(t *testing.T) *Fixture {
	t.Helper()
	f, err := LoadFixture(filepath.Join("testdata", "reference_fleet.json"))
	if err != nil {
		t.Fatalf("LoadFixture: %v", err)
	}
	return f
}

// 1. The reference fixture reproduces exactly.
func TestReplay_ReferenceFixture(t *testing.T) {
	f := loadReference(t)
	results, err := Replay(defaultModel(t), f.Readings(), f.Config.ToReplayConfig())
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}
	if len(results) != 6 {
		t.Fatalf("expected 6 results, got %d", len(results))
	}

	mismatches := Compare(results, f.ExpectedResults)
	if len(mismatches) != 0 {
		t.Fatalf("expected no mismatches, got %+v", mismatches)
	}

	s := Summarize(results, mismatches)
	if s.TotalRecords != 6 || s.Faults != 1 || s.NoFaults != 4 || s.Errors != 1 {
		t.Errorf("unexpected summary %+v", s)
	}

	if results[0].Evidence["UsoAltoCPU"] != 1 {
		t.Errorf("PC1 CPU should be abnormal, got %v", results[0].Evidence)
	}
	if results[5].Reason == "" {
		t.Error("error result should carry the failure reason")
	}
}

// 2. A stricter threshold flips PC1 and the diff reports it.
func TestReplay_ThresholdChangeDetected(t *testing.T) {
	f := loadReference(t)
	cfg := f.Config.ToReplayConfig()
	cfg.GateConfig.Threshold = 0.999

	results, err := Replay(defaultModel(t), f.Readings(), cfg)
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}
	mismatches := Compare(results, f.ExpectedResults)
	if len(mismatches) != 1 {
		t.Fatalf("expected 1 mismatch, got %+v", mismatches)
	}
	m := mismatches[0]
	if m.RecordID != "PC1" || m.Expected != "fault" || m.Got != "no-fault" {
		t.Errorf("unexpected mismatch %+v", m)
	}
}

// 3. Expected records absent from the replay show up with an empty Got.
func TestCompare_MissingRecord(t *testing.T) {
	results := []ReplayResult{{RecordID: "a", Label: "fault"}}
	expected := []FixtureExpectedResult{{RecordID: "a", Label: "fault"}, {RecordID: "b", Label: "no-fault"}}

	mismatches := Compare(results, expected)
	if len(mismatches) != 1 || mismatches[0].RecordID != "b" || mismatches[0].Got != "" {
		t.Fatalf("unexpected mismatches %+v", mismatches)
	}
}

// 4. Unknown query variables fail up front.
func TestReplay_UnknownQuery(t *testing.T) {
	cfg := DefaultReplayConfig()
	cfg.Query = "Nope"
	if _, err := Replay(defaultModel(t), nil, cfg); err == nil {
		t.Fatal("expected error for unknown query")
	}
}

// 5. Empty sensors fall back to the reference thresholds.
func TestToReplayConfig_Defaults(t *testing.T) {
	fc := FixtureConfig{Threshold: 0.5, FaultState: 1}
	cfg := fc.ToReplayConfig()
	if cfg.Query != "FalloSistema" {
		t.Errorf("expected default query, got %q", cfg.Query)
	}
	if len(cfg.ProducerConfig.Thresholds) != 4 {
		t.Errorf("expected 4 default sensors, got %d", len(cfg.ProducerConfig.Thresholds))
	}
}

func TestLoadFixture_Errors(t *testing.T) {
	if _, err := LoadFixture(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

// 6. A stored run exports to a fixture that replays cleanly.
func TestFixtureFromDiagnoses_RoundTrip(t *testing.T) {
	s, err := store.NewStore(":memory:")
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	defer s.Close()

	run, err := s.BeginRun("fallo_sistema", "FalloSistema", "batch")
	if err != nil {
		t.Fatalf("BeginRun: %v", err)
	}

	ref := loadReference(t)
	results, err := Replay(defaultModel(t), ref.Readings(), ref.Config.ToReplayConfig())
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}
	readings := ref.Readings()
	for i, r := range results {
		recJSON, _ := logging.EncodeRecord(logging.DiagnosisRecord{
			RecordID: r.RecordID,
			Readings: readings[i].Values,
			Query:    "FalloSistema",
			Thresholds: logging.DiagnosisThresholds{
				FaultState: 1,
				Threshold:  0.5,
				Sensors: map[string]logging.SensorThreshold{
					"UsoAltoCPU":      {Low: 70, High: 100},
					"AltaTemperatura": {Low: 60, High: 100},
					"ErroresMemoria":  {Low: 5, High: 10},
					"FallosRed":       {Low: 3, High: 10},
				},
			},
			Label: r.Label,
		})
		err := logging.LogDiagnosis(s.DB(), logging.ProvenanceEntry{
			RunID: run.RunID, RecordID: r.RecordID, TriggerType: "batch", RecordJSON: recJSON, Label: r.Label,
		})
		if err != nil {
			t.Fatalf("LogDiagnosis: %v", err)
		}
	}

	diags, err := s.ListDiagnoses(run.RunID)
	if err != nil {
		t.Fatalf("ListDiagnoses: %v", err)
	}
	f, err := FixtureFromDiagnoses(run, "", diags)
	if err != nil {
		t.Fatalf("FixtureFromDiagnoses: %v", err)
	}

	path := filepath.Join(t.TempDir(), "export.json")
	if err := WriteFixture(f, path); err != nil {
		t.Fatalf("WriteFixture: %v", err)
	}
	back, err := LoadFixture(path)
	if err != nil {
		t.Fatalf("LoadFixture: %v", err)
	}

	replayed, err := Replay(defaultModel(t), back.Readings(), back.Config.ToReplayConfig())
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}
	if mm := Compare(replayed, back.ExpectedResults); len(mm) != 0 {
		t.Fatalf("exported fixture does not replay: %+v", mm)
	}
}

func TestFixtureFromDiagnoses_Empty(t *testing.T) {
	if _, err := FixtureFromDiagnoses(store.Run{RunID: "r"}, "", nil); err == nil {
		t.Fatal("expected error for run without diagnoses")
	}
}

