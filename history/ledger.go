// Package history keeps an optional SQLite record of training runs: the
// config each run used, its per-epoch losses and the strings it generated.
package history

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/QubitExplorer/AI-Models/params"
	"gopkg.in/yaml.v3"
	_ "modernc.org/sqlite"
)

type Ledger struct {
	db *sql.DB
}

// Epoch is one row of the epochs table.
type Epoch struct {
	Epoch          int
	Loss           float64
	Reconstruction float64
	KL             float64
	Seconds        float64
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS runs(
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		started REAL NOT NULL,
		finished REAL,
		status TEXT NOT NULL,
		sequences INTEGER NOT NULL,
		config TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS epochs(
		run_id INTEGER NOT NULL REFERENCES runs(id),
		epoch INTEGER NOT NULL,
		loss REAL NOT NULL,
		reconstruction REAL NOT NULL,
		kl REAL NOT NULL,
		seconds REAL NOT NULL,
		PRIMARY KEY(run_id, epoch)
	)`,
	`CREATE TABLE IF NOT EXISTS samples(
		run_id INTEGER NOT NULL REFERENCES runs(id),
		idx INTEGER NOT NULL,
		text TEXT NOT NULL,
		PRIMARY KEY(run_id, idx)
	)`,
}

func now() float64 { return float64(time.Now().UnixMilli()) / 1000.0 }

// Open creates the database file and tables if needed.
func Open(path string) (*Ledger, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("history schema: %w", err)
		}
	}
	return &Ledger{db: db}, nil
}

func (l *Ledger) Close() error { return l.db.Close() }

// StartRun records a new run in state "running" and returns its id.
func (l *Ledger) StartRun(cfg params.TrainingConfig, sequences int) (int64, error) {
	raw, err := yaml.Marshal(cfg)
	if err != nil {
		return 0, err
	}
	res, err := l.db.Exec("INSERT INTO runs(started, status, sequences, config) VALUES(?,?,?,?)",
		now(), "running", sequences, string(raw))
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (l *Ledger) RecordEpoch(runID int64, e Epoch) error {
	_, err := l.db.Exec("INSERT INTO epochs(run_id, epoch, loss, reconstruction, kl, seconds) VALUES(?,?,?,?,?,?)",
		runID, e.Epoch, e.Loss, e.Reconstruction, e.KL, e.Seconds)
	return err
}

// RecordSamples stores generated strings in one transaction.
func (l *Ledger) RecordSamples(runID int64, samples []string) error {
	tx, err := l.db.Begin()
	if err != nil {
		return err
	}
	stmt, err := tx.Prepare("INSERT INTO samples(run_id, idx, text) VALUES(?,?,?)")
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()
	for i, s := range samples {
		if _, err := stmt.Exec(runID, i, s); err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

func (l *Ledger) FinishRun(runID int64, status string) error {
	_, err := l.db.Exec("UPDATE runs SET finished = ?, status = ? WHERE id = ?", now(), status, runID)
	return err
}

// Epochs returns the recorded epochs of a run in order.
func (l *Ledger) Epochs(runID int64) ([]Epoch, error) {
	rows, err := l.db.Query("SELECT epoch, loss, reconstruction, kl, seconds FROM epochs WHERE run_id = ? ORDER BY epoch ASC", runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Epoch
	for rows.Next() {
		var e Epoch
		if err := rows.Scan(&e.Epoch, &e.Loss, &e.Reconstruction, &e.KL, &e.Seconds); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Samples returns the strings stored for a run in generation order.
func (l *Ledger) Samples(runID int64) ([]string, error) {
	rows, err := l.db.Query("SELECT text FROM samples WHERE run_id = ? ORDER BY idx ASC", runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Run reports a run's status and the config it was started with.
func (l *Ledger) Run(runID int64) (string, params.TrainingConfig, error) {
	var status, raw string
	var cfg params.TrainingConfig
	err := l.db.QueryRow("SELECT status, config FROM runs WHERE id = ?", runID).Scan(&status, &raw)
	if err != nil {
		return "", cfg, err
	}
	if err := yaml.Unmarshal([]byte(raw), &cfg); err != nil {
		return "", cfg, err
	}
	return status, cfg, nil
}
