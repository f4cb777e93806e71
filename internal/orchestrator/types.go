package orchestrator

// #region imports
import (
	"time"

	"github.com/esteb4an/redes-bayesianas/go-diagnoser/internal/gate"
	"github.com/esteb4an/redes-bayesianas/go-diagnoser/internal/infer"
	"github.com/esteb4an/redes-bayesianas/go-diagnoser/internal/signals"
	"github.com/esteb4an/redes-bayesianas/go-diagnoser/internal/stats"
)

// #endregion

// #region config

// Config controls a Pipeline.
type Config struct {
	Query   string // variable whose posterior is gated
	Workers int    // batch fan-out; values below 1 mean 1
}

// DefaultConfig diagnoses FalloSistema with four workers.
func DefaultConfig() Config {
	return Config{
		Query:   "FalloSistema",
		Workers: 4,
	}
}

// #endregion

// #region outcome

// LabelError is recorded for records that could not be diagnosed.
const LabelError = "error"

// Outcome is the result of diagnosing one record. Err is set when the record
// failed discretization or inference; the other fields are then partial.
type Outcome struct {
	RecordID  string
	Reading   signals.Reading
	Evidence  infer.Evidence
	Posterior infer.Posterior
	Decision  gate.GateDecision
	Elapsed   time.Duration
	Err       error
}

// Failed reports whether the record produced an error.
func (o Outcome) Failed() bool { return o.Err != nil }

// Label returns the gate label, or LabelError.
func (o Outcome) Label() string {
	if o.Err != nil {
		return LabelError
	}
	return string(o.Decision.Label)
}

// #endregion

// #region batch-result

// BatchResult holds per-record outcomes in input order plus the batch report.
type BatchResult struct {
	Outcomes []Outcome
	Report   stats.Report
	Faults   int
	Errors   int
}

// #endregion

// #region interfaces

// Recorder persists outcomes. Record is called once per outcome, in input
// order, after the batch has been computed.
type Recorder interface {
	Record(o Outcome) error
}

// Observer receives timing and error signals, e.g. for metrics.
type Observer interface {
	ObserveDiagnosis(label string, elapsed time.Duration)
	ObserveError(stage string)
}

// #endregion
