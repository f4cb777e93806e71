package logging

import "time"

// #region provenance-entry
// ProvenanceEntry is a single row in the diagnosis_log table.
type ProvenanceEntry struct {
	RunID       string
	RecordID    string
	TriggerType string // "batch" | "replay" | "query"
	RecordJSON  string
	Label       string // "fault" | "no-fault" | "error"
	Reason      string
	CreatedAt   time.Time
}

// #endregion provenance-entry

// #region diagnosis-record
// DiagnosisRecord captures everything that went into one diagnosis.
// Serialized as JSON into diagnosis_log.record_json so a run can be replayed.
type DiagnosisRecord struct {
	RecordID string `json:"record_id"`

	// Raw sensor values and the evidence they were discretized to
	Readings map[string]float64 `json:"readings,omitempty"`
	Evidence map[string]int     `json:"evidence,omitempty"`

	Query     string    `json:"query"`
	Posterior []float64 `json:"posterior,omitempty"`

	// Decision rule active at diagnosis time
	Thresholds DiagnosisThresholds `json:"thresholds"`

	Probability float64 `json:"probability"`
	Label       string  `json:"label"`
	Error       string  `json:"error,omitempty"`
}

// DiagnosisThresholds records the discretization cut-offs and the gate rule.
type DiagnosisThresholds struct {
	FaultState int                        `json:"fault_state"`
	Threshold  float64                    `json:"threshold"`
	Sensors    map[string]SensorThreshold `json:"sensors,omitempty"`
}

// SensorThreshold mirrors signals.Threshold.
type SensorThreshold struct {
	Low  float64 `json:"low"`
	High float64 `json:"high"`
}

// #endregion diagnosis-record
