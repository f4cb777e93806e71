package orchestrator

import (
	"database/sql"

	"github.com/esteb4an/redes-bayesianas/go-diagnoser/internal/logging"
)

// #region provenance-recorder

// ProvenanceRecorder writes each outcome to diagnosis_log under one run.
type ProvenanceRecorder struct {
	db         *sql.DB
	runID      string
	trigger    string
	query      string
	thresholds logging.DiagnosisThresholds
}

// NewProvenanceRecorder binds a recorder to a run. The decision rule and
// sensor thresholds are captured from p so every row can be replayed.
func NewProvenanceRecorder(db *sql.DB, runID, trigger string, p *Pipeline) *ProvenanceRecorder {
	gc := p.Gate().Config()
	th := logging.DiagnosisThresholds{
		FaultState: gc.FaultState,
		Threshold:  gc.Threshold,
		Sensors:    make(map[string]logging.SensorThreshold),
	}
	for name, t := range p.Producer().Config().Thresholds {
		th.Sensors[name] = logging.SensorThreshold{Low: t.Low, High: t.High}
	}
	return &ProvenanceRecorder{
		db:         db,
		runID:      runID,
		trigger:    trigger,
		query:      p.Config().Query,
		thresholds: th,
	}
}

// Record implements Recorder.
func (r *ProvenanceRecorder) Record(o Outcome) error {
	rec := NewDiagnosisRecord(o, r.query, r.thresholds)
	recJSON, err := logging.EncodeRecord(rec)
	if err != nil {
		return err
	}
	reason := o.Decision.Reason
	if o.Err != nil {
		reason = o.Err.Error()
	}
	return logging.LogDiagnosis(r.db, logging.ProvenanceEntry{
		RunID:       r.runID,
		RecordID:    o.RecordID,
		TriggerType: r.trigger,
		RecordJSON:  recJSON,
		Label:       o.Label(),
		Reason:      reason,
	})
}

// #endregion

// #region diagnosis-record

// NewDiagnosisRecord flattens an outcome for the provenance log.
func NewDiagnosisRecord(o Outcome, query string, th logging.DiagnosisThresholds) logging.DiagnosisRecord {
	rec := logging.DiagnosisRecord{
		RecordID:    o.RecordID,
		Readings:    o.Reading.Values,
		Query:       query,
		Thresholds:  th,
		Probability: o.Decision.Probability,
		Label:       o.Label(),
	}
	if o.Evidence != nil {
		rec.Evidence = map[string]int(o.Evidence)
	}
	if len(o.Posterior.Probs) > 0 {
		rec.Posterior = o.Posterior.Probs
	}
	if o.Err != nil {
		rec.Error = o.Err.Error()
	}
	return rec
}

// #endregion
