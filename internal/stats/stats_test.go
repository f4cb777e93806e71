package stats

import (
	"errors"
	"math"
	"testing"

	"github.com/esteb4an/redes-bayesianas/go-diagnoser/internal/infer"
)

func fleet() []infer.Evidence {
	abnormal := infer.Evidence{"UsoAltoCPU": 1, "AltaTemperatura": 1, "ErroresMemoria": 1, "FallosRed": 1}
	normal := func() infer.Evidence {
		return infer.Evidence{"UsoAltoCPU": 0, "AltaTemperatura": 0, "ErroresMemoria": 0, "FallosRed": 0}
	}
	return []infer.Evidence{abnormal, normal(), normal(), normal(), normal()}
}

func TestAggregateOneInFive(t *testing.T) {
	report, err := Aggregate(fleet())
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}
	if report.Total != 5 {
		t.Fatalf("expected 5 records, got %d", report.Total)
	}

	cpu, ok := report.Variables["UsoAltoCPU"]
	if !ok {
		t.Fatal("missing UsoAltoCPU")
	}
	if math.Abs(cpu.PresentPercent-20.0) > 1e-9 {
		t.Errorf("expected present 20%%, got %f", cpu.PresentPercent)
	}
	if math.Abs(cpu.AbsentPercent-80.0) > 1e-9 {
		t.Errorf("expected absent 80%%, got %f", cpu.AbsentPercent)
	}
	if cpu.Present != 1 || cpu.Absent != 4 {
		t.Errorf("unexpected counts %+v", cpu)
	}

	names := report.Names()
	if len(names) != 4 || names[0] != "AltaTemperatura" {
		t.Errorf("unexpected names %v", names)
	}
}

func TestAggregateEmptyBatch(t *testing.T) {
	_, err := Aggregate(nil)
	if !errors.Is(err, ErrInsufficientBatchData) {
		t.Fatalf("expected ErrInsufficientBatchData, got %v", err)
	}
	var insufficient *InsufficientBatchDataError
	if !errors.As(err, &insufficient) {
		t.Fatalf("expected InsufficientBatchDataError, got %T", err)
	}
}

func TestMergeMatchesSinglePass(t *testing.T) {
	batch := fleet()

	left, right := NewAggregator(), NewAggregator()
	for i, ev := range batch {
		if i%2 == 0 {
			left.Add(ev)
		} else {
			right.Add(ev)
		}
	}
	left.Merge(right)

	merged, err := left.Report()
	if err != nil {
		t.Fatalf("Report: %v", err)
	}
	single, _ := Aggregate(batch)

	if merged.Total != single.Total {
		t.Fatalf("total mismatch: %d vs %d", merged.Total, single.Total)
	}
	for name, s := range single.Variables {
		if merged.Variables[name] != s {
			t.Errorf("%s: merged %+v, single %+v", name, merged.Variables[name], s)
		}
	}
}

func TestAggregateMissingVariable(t *testing.T) {
	a := NewAggregator()
	a.Add(infer.Evidence{"FallosRed": 1})
	a.Add(infer.Evidence{})

	report, err := a.Report()
	if err != nil {
		t.Fatalf("Report: %v", err)
	}
	red := report.Variables["FallosRed"]
	if red.PresentPercent != 50 || red.AbsentPercent != 0 {
		t.Errorf("unexpected stats %+v", red)
	}
}
