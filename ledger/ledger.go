// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package ledger keeps a local SQLite history of harness runs: the outcome
// of every scenario and every measurement made while verifying it. Baselines
// only hold the last accepted values; the ledger shows how a metric drifted
// across runs.
package ledger

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/vgci/tally"
	"github.com/grailbio/vgci/verify"
	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// Ledger appends to a history database. Each Ledger value is one harness run
// with its own run ID.
type Ledger struct {
	db    *sql.DB
	runID string
	now   func() time.Time
}

// Open opens or creates the database at path and starts a new run.
func Open(path string) (*Ledger, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, errors.E(fmt.Sprintf("ledger: open %s", path), err)
	}
	if err := db.Ping(); err != nil {
		db.Close() // nolint: errcheck
		return nil, errors.E(fmt.Sprintf("ledger: open %s", path), err)
	}
	db.SetMaxOpenConns(1)
	for _, stmt := range []string{"PRAGMA journal_mode = WAL", "PRAGMA busy_timeout = 5000", schemaSQL} {
		if _, err := db.Exec(stmt); err != nil {
			db.Close() // nolint: errcheck
			return nil, errors.E(fmt.Sprintf("ledger: init %s", path), err)
		}
	}
	return &Ledger{db: db, runID: uuid.New().String(), now: time.Now}, nil
}

// RunID identifies this run's rows.
func (l *Ledger) RunID() string { return l.runID }

// Close closes the database.
func (l *Ledger) Close() error { return l.db.Close() }

func (l *Ledger) timestamp() string {
	return l.now().UTC().Format(time.RFC3339Nano)
}

// Outcome is the recorded result of one scenario.
type Outcome struct {
	RunID    string
	Scenario string
	Tag      string
	Result   tally.Result
	// Error is the failure message, if any.
	Error    string
	Duration time.Duration
}

// RecordOutcome stores a scenario's result. Recording the same scenario
// twice in one run replaces the earlier result.
func (l *Ledger) RecordOutcome(ctx context.Context, o Outcome) error {
	_, err := l.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO outcomes (run_id, scenario, tag, result, error, duration_ms, recorded_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		l.runID, o.Scenario, o.Tag, string(o.Result), o.Error, o.Duration.Nanoseconds()/int64(time.Millisecond), l.timestamp())
	if err != nil {
		return errors.E(fmt.Sprintf("ledger: record outcome of %s", o.Scenario), err)
	}
	return nil
}

// RecordMeasurements stores the measurements of a verified scenario in one
// transaction.
func (l *Ledger) RecordMeasurements(ctx context.Context, scenario, tag string, ms []verify.Measurement) (err error) {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.E("ledger: begin", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback() // nolint: errcheck
			return
		}
		if err = tx.Commit(); err != nil {
			err = errors.E("ledger: commit", err)
		}
	}()
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO measurements (run_id, scenario, tag, metric, method, against, current, baseline, threshold, bound, passed, recorded_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return errors.E("ledger: prepare", err)
	}
	defer stmt.Close() // nolint: errcheck
	ts := l.timestamp()
	for _, m := range ms {
		passed := 0
		if m.Passed {
			passed = 1
		}
		if _, err = stmt.ExecContext(ctx, l.runID, scenario, tag, m.Metric, m.Method, m.Against,
			m.Current, m.Baseline, m.Threshold, m.Bound, passed, ts); err != nil {
			return errors.E(fmt.Sprintf("ledger: record %s", m), err)
		}
	}
	return nil
}

// Outcomes returns the outcomes recorded under runID, by scenario name.
func (l *Ledger) Outcomes(ctx context.Context, runID string) ([]Outcome, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT run_id, scenario, tag, result, error, duration_ms FROM outcomes WHERE run_id = ? ORDER BY scenario`, runID)
	if err != nil {
		return nil, errors.E("ledger: query outcomes", err)
	}
	defer rows.Close() // nolint: errcheck
	var out []Outcome
	for rows.Next() {
		var (
			o      Outcome
			result string
			ms     int64
		)
		if err := rows.Scan(&o.RunID, &o.Scenario, &o.Tag, &result, &o.Error, &ms); err != nil {
			return nil, errors.E("ledger: scan outcome", err)
		}
		o.Result = tally.Result(result)
		o.Duration = time.Duration(ms) * time.Millisecond
		out = append(out, o)
	}
	return out, rows.Err()
}

// Entry is one historical value of a metric.
type Entry struct {
	RunID      string
	RecordedAt time.Time
	Current    float64
	Baseline   float64
	Passed     bool
}

// History returns the last limit values of a scenario's metric for method,
// oldest first.
func (l *Ledger) History(ctx context.Context, scenario, metric, method string, limit int) ([]Entry, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT run_id, recorded_at, current, baseline, passed FROM (
		   SELECT rowid, run_id, recorded_at, current, baseline, passed FROM measurements
		   WHERE scenario = ? AND metric = ? AND method = ?
		   ORDER BY rowid DESC LIMIT ?
		 ) ORDER BY rowid`,
		scenario, metric, method, limit)
	if err != nil {
		return nil, errors.E("ledger: query history", err)
	}
	defer rows.Close() // nolint: errcheck
	var out []Entry
	for rows.Next() {
		var (
			e      Entry
			ts     string
			passed int
		)
		if err := rows.Scan(&e.RunID, &ts, &e.Current, &e.Baseline, &passed); err != nil {
			return nil, errors.E("ledger: scan history", err)
		}
		if e.RecordedAt, err = time.Parse(time.RFC3339Nano, ts); err != nil {
			return nil, errors.E(errors.Invalid, fmt.Sprintf("ledger: bad timestamp %q", ts), err)
		}
		e.Passed = passed != 0
		out = append(out, e)
	}
	return out, rows.Err()
}
