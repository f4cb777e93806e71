package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/esteb4an/redes-bayesianas/go-diagnoser/internal/logging"
)

// #region schema
// timeLayout is fixed-width so started_at sorts lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

const schema = `
CREATE TABLE IF NOT EXISTS diagnosis_runs (
	run_id        TEXT PRIMARY KEY,
	model         TEXT NOT NULL,
	query         TEXT NOT NULL,
	trigger_type  TEXT NOT NULL,
	started_at    TEXT NOT NULL,
	finished_at   TEXT,
	records       INTEGER NOT NULL DEFAULT 0,
	faults        INTEGER NOT NULL DEFAULT 0,
	errors        INTEGER NOT NULL DEFAULT 0,
	report_json   TEXT
);

CREATE TABLE IF NOT EXISTS diagnosis_log (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id        TEXT NOT NULL,
	record_id     TEXT NOT NULL,
	trigger_type  TEXT NOT NULL,
	record_json   TEXT,
	label         TEXT NOT NULL,
	reason        TEXT,
	created_at    TEXT NOT NULL,
	FOREIGN KEY (run_id) REFERENCES diagnosis_runs(run_id)
);

CREATE INDEX IF NOT EXISTS idx_diagnosis_log_run ON diagnosis_log(run_id);
`

// #endregion schema

// #region store-struct
// Store keeps diagnosis runs and their provenance log in SQLite.
type Store struct {
	db *sql.DB
}

// #endregion store-struct

// #region constructor
// NewStore opens a SQLite database and runs migrations.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// pragmas are per connection
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma fk: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// NewStoreWithDB wraps an already-open database. The caller owns migrations.
func NewStoreWithDB(db *sql.DB) *Store {
	return &Store{db: db}
}

// #endregion constructor

// #region close
// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// #endregion close

// #region db-accessor
// DB returns the underlying *sql.DB for use by other packages (e.g. logging).
func (s *Store) DB() *sql.DB {
	return s.db
}

// #endregion db-accessor

// #region begin-run
// BeginRun inserts a new run row with a fresh id.
func (s *Store) BeginRun(model, query, trigger string) (Run, error) {
	run := Run{
		RunID:       uuid.New().String(),
		Model:       model,
		Query:       query,
		TriggerType: trigger,
		StartedAt:   time.Now().UTC(),
	}
	_, err := s.db.Exec(
		`INSERT INTO diagnosis_runs (run_id, model, query, trigger_type, started_at)
		 VALUES (?, ?, ?, ?, ?)`,
		run.RunID, run.Model, run.Query, run.TriggerType, run.StartedAt.Format(timeLayout),
	)
	if err != nil {
		return Run{}, fmt.Errorf("insert run: %w", err)
	}
	return run, nil
}

// #endregion begin-run

// #region finish-run
// FinishRun stamps the run as finished and stores its counts.
func (s *Store) FinishRun(runID string, sum RunSummary) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec(
		`UPDATE diagnosis_runs
		 SET finished_at = ?, records = ?, faults = ?, errors = ?, report_json = ?
		 WHERE run_id = ?`,
		time.Now().UTC().Format(timeLayout), sum.Records, sum.Faults, sum.Errors,
		nullIfEmpty(sum.ReportJSON), runID,
	)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("finish run %s: %w", runID, ErrRunNotFound)
	}
	return tx.Commit()
}

// #endregion finish-run

// #region get-run
const runColumns = `run_id, model, query, trigger_type, started_at, finished_at, records, faults, errors, report_json`

// GetRun retrieves a run by id.
func (s *Store) GetRun(id string) (Run, error) {
	row := s.db.QueryRow(`SELECT `+runColumns+` FROM diagnosis_runs WHERE run_id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("get run %s: %w", id, ErrRunNotFound)
	}
	if err != nil {
		return Run{}, fmt.Errorf("get run %s: %w", id, err)
	}
	return run, nil
}

// LatestRun returns the most recently started run.
func (s *Store) LatestRun() (Run, error) {
	row := s.db.QueryRow(`SELECT ` + runColumns + ` FROM diagnosis_runs ORDER BY started_at DESC, rowid DESC LIMIT 1`)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("latest run: %w", ErrRunNotFound)
	}
	if err != nil {
		return Run{}, fmt.Errorf("latest run: %w", err)
	}
	return run, nil
}

// #endregion get-run

// #region list-runs
// ListRuns returns the most recent runs.
func (s *Store) ListRuns(limit int) ([]Run, error) {
	rows, err := s.db.Query(
		`SELECT `+runColumns+` FROM diagnosis_runs ORDER BY started_at DESC, rowid DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// #endregion list-runs

// #region list-diagnoses
// ListDiagnoses returns every logged diagnosis of a run in insertion order.
func (s *Store) ListDiagnoses(runID string) ([]Diagnosis, error) {
	rows, err := s.db.Query(
		`SELECT id, run_id, record_id, trigger_type, record_json, label, reason, created_at
		 FROM diagnosis_log WHERE run_id = ? ORDER BY id`, runID,
	)
	if err != nil {
		return nil, fmt.Errorf("list diagnoses: %w", err)
	}
	defer rows.Close()

	var out []Diagnosis
	for rows.Next() {
		var d Diagnosis
		var recordJSON, reason sql.NullString
		var createdStr string
		if err := rows.Scan(&d.ID, &d.RunID, &d.RecordID, &d.TriggerType, &recordJSON, &d.Label, &reason, &createdStr); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		if reason.Valid {
			d.Reason = reason.String
		}
		rec, err := logging.DecodeRecord(recordJSON.String)
		if err != nil {
			return nil, fmt.Errorf("diagnosis %d: %w", d.ID, err)
		}
		d.Record = rec
		d.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
		out = append(out, d)
	}
	return out, rows.Err()
}

// #endregion list-diagnoses

// #region helpers
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(sc scanner) (Run, error) {
	var run Run
	var startedStr string
	var finishedStr, reportJSON sql.NullString
	err := sc.Scan(&run.RunID, &run.Model, &run.Query, &run.TriggerType, &startedStr,
		&finishedStr, &run.Records, &run.Faults, &run.Errors, &reportJSON)
	if err != nil {
		return Run{}, err
	}
	run.StartedAt, _ = time.Parse(timeLayout, startedStr)
	if finishedStr.Valid {
		run.FinishedAt, _ = time.Parse(timeLayout, finishedStr.String)
	}
	if reportJSON.Valid {
		run.ReportJSON = reportJSON.String
	}
	return run, nil
}

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// #endregion helpers
