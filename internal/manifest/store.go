// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package manifest keeps a SQLite ledger of completed conversion runs so
// operators can see which runs were converted, where the artifacts went,
// and which geometry values were attached.
package manifest

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const dbFile = "runs.db"

// Run is one recorded conversion.
type Run struct {
	// Number is the beamline run number.
	Number int

	// ProductName is the product the run was converted into.
	ProductName string

	// OutputDir holds the reconstruction outputs.
	OutputDir string

	// Tarball is the packaged artifact path.
	Tarball string

	// Geometry holds the geometry scalars attached to the outputs.
	Geometry map[string]float64

	// CreatedAt is the recording time, UTC.
	CreatedAt time.Time
}

// Store manages the run-ledger SQLite database.
type Store struct {
	db *sql.DB
}

// Open opens or creates the ledger at dir/runs.db, creating the schema if
// it does not exist.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating manifest directory: %w", err)
	}

	dbPath := filepath.Join(dir, dbFile)
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("opening manifest database: %w", err)
	}

	s := &Store{db: db}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating manifest schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS runs (
		rowid INTEGER PRIMARY KEY AUTOINCREMENT,
		run_number INTEGER NOT NULL,
		product_name TEXT NOT NULL,
		output_dir TEXT,
		tarball TEXT,
		geometry TEXT,
		created_at TEXT NOT NULL
	)`)
	return err
}

// Record appends one run to the ledger. Re-converting the same run number
// adds a new row; the ledger is append-only history, not state.
func (s *Store) Record(ctx context.Context, r Run) error {
	geomJSON, err := json.Marshal(r.Geometry)
	if err != nil {
		return fmt.Errorf("marshaling geometry: %w", err)
	}

	created := r.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO runs (run_number, product_name, output_dir, tarball, geometry, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		r.Number, r.ProductName, r.OutputDir, r.Tarball, string(geomJSON),
		created.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("recording run %d: %w", r.Number, err)
	}
	return nil
}

// List returns all recorded runs, newest first.
func (s *Store) List(ctx context.Context) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_number, product_name, output_dir, tarball, geometry, created_at
		 FROM runs ORDER BY rowid DESC`)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		var r Run
		var geomJSON, created string
		if err := rows.Scan(&r.Number, &r.ProductName, &r.OutputDir, &r.Tarball, &geomJSON, &created); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		if geomJSON != "" && geomJSON != "null" {
			if err := json.Unmarshal([]byte(geomJSON), &r.Geometry); err != nil {
				return nil, fmt.Errorf("parsing geometry for run %d: %w", r.Number, err)
			}
		}
		if t, err := time.Parse(time.RFC3339Nano, created); err == nil {
			r.CreatedAt = t
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
