package store

import (
	"errors"
	"time"

	"github.com/esteb4an/redes-bayesianas/go-diagnoser/internal/logging"
)

// ErrRunNotFound is returned when a run id has no row.
var ErrRunNotFound = errors.New("run not found")

// #region run
// Run is one batch diagnosis over a model.
type Run struct {
	RunID       string
	Model       string
	Query       string
	TriggerType string // "batch" | "replay"
	StartedAt   time.Time
	FinishedAt  time.Time // zero until FinishRun
	Records     int
	Faults      int
	Errors      int
	ReportJSON  string
}

// Finished reports whether FinishRun has been called for the run.
func (r Run) Finished() bool { return !r.FinishedAt.IsZero() }

// #endregion run

// #region run-summary
// RunSummary is what FinishRun writes back to the run row.
type RunSummary struct {
	Records    int
	Faults     int
	Errors     int
	ReportJSON string
}

// #endregion run-summary

// #region diagnosis
// Diagnosis pairs a diagnosis_log row with its decoded record.
type Diagnosis struct {
	ID          int64
	RunID       string
	RecordID    string
	TriggerType string
	Label       string
	Reason      string
	Record      logging.DiagnosisRecord
	CreatedAt   time.Time
}

// #endregion diagnosis
