// Package store keeps a sqlite log of sweeps run by the master node.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/teslashibe/go-pepper/pkg/protocol"
	"github.com/teslashibe/go-pepper/pkg/sweep"
	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a sweep id is unknown.
var ErrNotFound = errors.New("sweep not found")

const schema = `
	CREATE TABLE IF NOT EXISTS sweeps (
		sweep_id TEXT PRIMARY KEY,
		started_ns INTEGER NOT NULL,
		finished_ns INTEGER NOT NULL,
		success INTEGER NOT NULL,
		error TEXT NOT NULL DEFAULT ''
	);
	CREATE TABLE IF NOT EXISTS sweep_steps (
		sweep_id TEXT NOT NULL,
		seq INTEGER NOT NULL,
		direction INTEGER NOT NULL,
		outcome TEXT NOT NULL,
		error TEXT NOT NULL DEFAULT '',
		PRIMARY KEY (sweep_id, seq),
		FOREIGN KEY (sweep_id) REFERENCES sweeps(sweep_id)
	);
	CREATE INDEX IF NOT EXISTS idx_sweeps_started ON sweeps(started_ns);
`

// DB is the sweep history database. It embeds *sql.DB so callers can run
// ad hoc queries and Close it directly.
type DB struct {
	*sql.DB
}

// Open opens or creates the database at path.
func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// One writer; sqlite serialises anyway.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &DB{db}, nil
}

// RecordSweep stores r and its steps in one transaction.
func (db *DB) RecordSweep(ctx context.Context, r sweep.Result) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		"INSERT INTO sweeps (sweep_id, started_ns, finished_ns, success, error) VALUES (?, ?, ?, ?, ?)",
		r.ID, r.Started.UnixNano(), r.Finished.UnixNano(), r.Success, r.Error)
	if err != nil {
		return fmt.Errorf("insert sweep %s: %w", r.ID, err)
	}

	for i, s := range r.Steps {
		_, err := tx.ExecContext(ctx,
			"INSERT INTO sweep_steps (sweep_id, seq, direction, outcome, error) VALUES (?, ?, ?, ?, ?)",
			r.ID, i, int(s.Direction), s.Outcome.String(), s.Error)
		if err != nil {
			return fmt.Errorf("insert step %d of %s: %w", i, r.ID, err)
		}
	}
	return tx.Commit()
}

// RecentSweeps returns up to limit sweeps, newest first.
func (db *DB) RecentSweeps(ctx context.Context, limit int) ([]sweep.Result, error) {
	rows, err := db.QueryContext(ctx,
		"SELECT sweep_id, started_ns, finished_ns, success, error FROM sweeps ORDER BY started_ns DESC LIMIT ?",
		limit)
	if err != nil {
		return nil, err
	}

	var results []sweep.Result
	for rows.Next() {
		r, err := scanSweep(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	for i := range results {
		steps, err := db.steps(ctx, results[i].ID)
		if err != nil {
			return nil, err
		}
		results[i].Steps = steps
	}
	return results, nil
}

// Sweep returns one sweep by id.
func (db *DB) Sweep(ctx context.Context, id string) (sweep.Result, error) {
	row := db.QueryRowContext(ctx,
		"SELECT sweep_id, started_ns, finished_ns, success, error FROM sweeps WHERE sweep_id = ?", id)
	r, err := scanSweep(row)
	if errors.Is(err, sql.ErrNoRows) {
		return sweep.Result{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return sweep.Result{}, err
	}
	r.Steps, err = db.steps(ctx, id)
	return r, err
}

// Stats counts recorded sweeps.
type Stats struct {
	Total     int `json:"total"`
	Succeeded int `json:"succeeded"`
}

// Stats returns how many sweeps ran and how many succeeded.
func (db *DB) Stats(ctx context.Context) (Stats, error) {
	var s Stats
	err := db.QueryRowContext(ctx,
		"SELECT COUNT(*), COALESCE(SUM(success), 0) FROM sweeps").Scan(&s.Total, &s.Succeeded)
	return s, err
}

func (db *DB) steps(ctx context.Context, id string) ([]sweep.Step, error) {
	rows, err := db.QueryContext(ctx,
		"SELECT direction, outcome, error FROM sweep_steps WHERE sweep_id = ? ORDER BY seq", id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var steps []sweep.Step
	for rows.Next() {
		var (
			dir     int
			outcome string
			msg     string
		)
		if err := rows.Scan(&dir, &outcome, &msg); err != nil {
			return nil, err
		}
		o, err := sweep.ParseOutcome(outcome)
		if err != nil {
			return nil, err
		}
		steps = append(steps, sweep.Step{Direction: protocol.Direction(dir), Outcome: o, Error: msg})
	}
	return steps, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSweep(s scanner) (sweep.Result, error) {
	var (
		r                 sweep.Result
		started, finished int64
		success           bool
	)
	if err := s.Scan(&r.ID, &started, &finished, &success, &r.Error); err != nil {
		return r, err
	}
	r.Started = time.Unix(0, started)
	r.Finished = time.Unix(0, finished)
	r.Success = success
	return r, nil
}
