package duckdb

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// FileFingerprint holds stat-based identity for an input file.
type FileFingerprint struct {
	Path    string
	Size    int64
	ModTime time.Time
}

// StatFile creates a FileFingerprint from an on-disk file. ModTime is kept
// at the microsecond precision DuckDB timestamps store.
func StatFile(path string) (FileFingerprint, error) {
	info, err := os.Stat(path)
	if err != nil {
		return FileFingerprint{}, err
	}
	return FileFingerprint{
		Path:    path,
		Size:    info.Size(),
		ModTime: info.ModTime().UTC().Truncate(time.Microsecond),
	}, nil
}

// RunInfo describes the run that produced the stored results.
type RunInfo struct {
	StartedAt time.Time
	Rounds    int
	Seed      uint64
	Sampling  string
	Tests     []string
	Inputs    []FileFingerprint
}

// WriteRunInfo replaces the stored run description.
func (s *Store) WriteRunInfo(info RunInfo) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	for _, stmt := range []string{"DELETE FROM run_info", "DELETE FROM run_inputs"} {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("clear run info: %w", err)
		}
	}
	if _, err := tx.Exec(`INSERT INTO run_info VALUES (?, ?, ?, ?, ?)`,
		info.StartedAt, info.Rounds, strconv.FormatUint(info.Seed, 10), info.Sampling, strings.Join(info.Tests, ",")); err != nil {
		return fmt.Errorf("insert run info: %w", err)
	}
	for _, in := range info.Inputs {
		if _, err := tx.Exec(`INSERT INTO run_inputs VALUES (?, ?, ?)`, in.Path, in.Size, in.ModTime); err != nil {
			return fmt.Errorf("insert run input: %w", err)
		}
	}
	return tx.Commit()
}

// ReadRunInfo returns the stored run description, or nil if none was written.
func (s *Store) ReadRunInfo() (*RunInfo, error) {
	var info RunInfo
	var seed, tests string
	err := s.db.QueryRow(`SELECT started_at, rounds, seed, sampling, tests FROM run_info LIMIT 1`).
		Scan(&info.StartedAt, &info.Rounds, &seed, &info.Sampling, &tests)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("query run info: %w", err)
	}
	if info.Seed, err = strconv.ParseUint(seed, 10, 64); err != nil {
		return nil, fmt.Errorf("parse stored seed: %w", err)
	}
	if tests != "" {
		info.Tests = strings.Split(tests, ",")
	}

	rows, err := s.db.Query(`SELECT path, size, mod_time FROM run_inputs ORDER BY path`)
	if err != nil {
		return nil, fmt.Errorf("query run inputs: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var fp FileFingerprint
		if err := rows.Scan(&fp.Path, &fp.Size, &fp.ModTime); err != nil {
			return nil, fmt.Errorf("scan run input: %w", err)
		}
		info.Inputs = append(info.Inputs, fp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate run inputs: %w", err)
	}
	return &info, nil
}

// Matches reports whether the file on disk still has the recorded size and
// modification time.
func (fp FileFingerprint) Matches() bool {
	cur, err := StatFile(fp.Path)
	if err != nil {
		return false
	}
	return cur.Size == fp.Size && cur.ModTime.Equal(fp.ModTime)
}
