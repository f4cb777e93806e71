package logging

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// #region log-diagnosis
// LogDiagnosis writes a provenance entry to the diagnosis_log table.
func LogDiagnosis(db *sql.DB, entry ProvenanceEntry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	_, err := db.Exec(
		`INSERT INTO diagnosis_log (run_id, record_id, trigger_type, record_json, label, reason, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		entry.RunID,
		entry.RecordID,
		entry.TriggerType,
		nullIfEmpty(entry.RecordJSON),
		entry.Label,
		nullIfEmpty(entry.Reason),
		entry.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("log diagnosis %s: %w", entry.RecordID, err)
	}
	return nil
}

// #endregion log-diagnosis

// #region record-json
// EncodeRecord serializes a DiagnosisRecord for the record_json column.
func EncodeRecord(rec DiagnosisRecord) (string, error) {
	b, err := json.Marshal(rec)
	if err != nil {
		return "", fmt.Errorf("marshal diagnosis record: %w", err)
	}
	return string(b), nil
}

// DecodeRecord parses a record_json value. An empty string yields a zero record.
func DecodeRecord(s string) (DiagnosisRecord, error) {
	var rec DiagnosisRecord
	if s == "" {
		return rec, nil
	}
	if err := json.Unmarshal([]byte(s), &rec); err != nil {
		return DiagnosisRecord{}, fmt.Errorf("unmarshal diagnosis record: %w", err)
	}
	return rec, nil
}

// #endregion record-json

// #region helpers
func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// #endregion helpers
