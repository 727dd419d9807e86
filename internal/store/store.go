// Package store persists appointments, pipelines and imported records in a
// single SQLite file.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	appLog "gabinet/internal/log"
)

var (
	ErrNotFound = errors.New("store: not found")
	ErrInvalid  = errors.New("store: invalid input")
)

const schema = `
CREATE TABLE IF NOT EXISTS appointments (
	id           TEXT PRIMARY KEY,
	patient_id   TEXT NOT NULL DEFAULT '',
	patient_name TEXT NOT NULL DEFAULT '',
	treatment    TEXT NOT NULL DEFAULT '',
	date         TEXT NOT NULL,
	start_time   TEXT NOT NULL,
	end_time     TEXT NOT NULL,
	status       TEXT NOT NULL DEFAULT 'scheduled',
	notes        TEXT NOT NULL DEFAULT '',
	series_id    TEXT NOT NULL DEFAULT '',
	source       TEXT NOT NULL DEFAULT '',
	created_at   TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_appointments_date ON appointments(date, start_time, end_time);
CREATE INDEX IF NOT EXISTS idx_appointments_source ON appointments(source, date);

CREATE TABLE IF NOT EXISTS stages (
	id          TEXT PRIMARY KEY,
	pipeline_id TEXT NOT NULL,
	name        TEXT NOT NULL,
	position    INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_stages_pipeline ON stages(pipeline_id, position);

CREATE TABLE IF NOT EXISTS cards (
	id          TEXT PRIMARY KEY,
	pipeline_id TEXT NOT NULL,
	stage_id    TEXT NOT NULL REFERENCES stages(id),
	stage_order REAL NOT NULL DEFAULT 0,
	title       TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_cards_stage ON cards(stage_id, stage_order);

CREATE TABLE IF NOT EXISTS records (
	id         TEXT PRIMARY KEY,
	entity     TEXT NOT NULL,
	email      TEXT,
	data       TEXT NOT NULL,
	created_at TEXT NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_records_email ON records(entity, email) WHERE email IS NOT NULL;
`

type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path and applies the
// schema.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("store: database path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, err
	}

	dsn := "file:" + path + "?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// SQLite allows one writer; a single connection keeps transactions
	// from tripping over each other.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	appLog.Info("store opened", "path", path)
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// withTx runs fn in a transaction, committing only when fn succeeds.
func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}
