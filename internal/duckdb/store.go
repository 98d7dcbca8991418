// Package duckdb stores gene test results in DuckDB so that runs can be
// queried after the fact.
package duckdb

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/marcboeker/go-duckdb"
)

// Store manages a DuckDB connection holding gene results.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens or creates a DuckDB database at the given path.
// Use an empty string for an in-memory database.
func Open(path string) (*Store, error) {
	if path != "" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}

	s := &Store{db: db, path: path}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB for direct access.
func (s *Store) DB() *sql.DB {
	return s.db
}

// ensureSchema creates tables if they don't exist.
// gene_results has one row per gene and test; skipped genes have a single
// row with a NULL test.
func (s *Store) ensureSchema() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS gene_results (
			gene_id VARCHAR,
			transcript_id VARCHAR,
			coding_length INTEGER,
			mutations INTEGER,
			invalid INTEGER,
			recurrent INTEGER,
			test VARCHAR,
			observed DOUBLE,
			p_value DOUBLE,
			q_value DOUBLE,
			null_mean DOUBLE,
			null_sd DOUBLE,
			rounds INTEGER,
			skip_reason VARCHAR
		)`,
		`CREATE TABLE IF NOT EXISTS run_info (
			started_at TIMESTAMP,
			rounds INTEGER,
			seed VARCHAR,
			sampling VARCHAR,
			tests VARCHAR
		)`,
		`CREATE TABLE IF NOT EXISTS run_inputs (
			path VARCHAR,
			size BIGINT,
			mod_time TIMESTAMP
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}
