// Package store is the SQLite-backed program library: named programs and
// a log of their runs.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// ErrProgramNotFound indicates the requested program doesn't exist.
var ErrProgramNotFound = errors.New("program not found")

// Store handles SQLite storage for programs and run history.
type Store struct {
	db     *sql.DB
	dbPath string
	mu     sync.Mutex
}

// Program is a named source text in the library.
type Program struct {
	Name      string
	Source    string
	CreatedAt time.Time
}

// Run is one recorded execution of a library program. Error is empty for
// successful runs.
type Run struct {
	ID          int64
	ProgramName string
	Operations  uint64
	OutputBytes int64
	Error       string
	RanAt       time.Time
}

// Open opens (or creates) the library database at dbPath, creating parent
// directories as needed.
func Open(dbPath string) (*Store, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating store directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Set busy timeout for concurrent access
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	for _, stmt := range []string{
		`CREATE TABLE IF NOT EXISTS programs (
			name       TEXT PRIMARY KEY,
			source     TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS runs (
			id           INTEGER PRIMARY KEY AUTOINCREMENT,
			program_name TEXT NOT NULL,
			operations   INTEGER NOT NULL,
			output_bytes INTEGER NOT NULL,
			error        TEXT NOT NULL DEFAULT '',
			ran_at       TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
	} {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("creating table: %w", err)
		}
	}

	return &Store{db: db, dbPath: dbPath}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// SaveProgram stores a program under the given name, replacing any
// existing program with that name.
func (s *Store) SaveProgram(name, source string) error {
	if name == "" {
		return fmt.Errorf("saving program: empty name")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(
		"INSERT OR REPLACE INTO programs (name, source) VALUES (?, ?)",
		name, source,
	)
	if err != nil {
		return fmt.Errorf("saving program: %w", err)
	}
	return nil
}

// GetProgram retrieves a program by name.
func (s *Store) GetProgram(name string) (*Program, error) {
	var p Program
	err := s.db.QueryRow(
		"SELECT name, source, created_at FROM programs WHERE name = ?", name,
	).Scan(&p.Name, &p.Source, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrProgramNotFound
		}
		return nil, fmt.Errorf("querying program: %w", err)
	}
	return &p, nil
}

// ListPrograms returns all programs in the library ordered by name.
func (s *Store) ListPrograms() ([]*Program, error) {
	rows, err := s.db.Query("SELECT name, source, created_at FROM programs ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("listing programs: %w", err)
	}
	defer rows.Close()

	var programs []*Program
	for rows.Next() {
		var p Program
		if err := rows.Scan(&p.Name, &p.Source, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning program: %w", err)
		}
		programs = append(programs, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing programs: %w", err)
	}
	return programs, nil
}

// DeleteProgram removes a program from the library.
func (s *Store) DeleteProgram(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec("DELETE FROM programs WHERE name = ?", name)
	if err != nil {
		return fmt.Errorf("deleting program: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrProgramNotFound
	}
	return nil
}

// RecordRun appends a run record for a program. errText is empty for a
// successful run.
func (s *Store) RecordRun(programName string, operations uint64, outputBytes int64, errText string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(
		"INSERT INTO runs (program_name, operations, output_bytes, error) VALUES (?, ?, ?, ?)",
		programName, operations, outputBytes, errText,
	)
	if err != nil {
		return fmt.Errorf("recording run: %w", err)
	}
	return nil
}

// History returns the most recent runs of a program, newest first.
func (s *Store) History(programName string, limit int) ([]*Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Query(
		`SELECT id, program_name, operations, output_bytes, error, ran_at
		 FROM runs WHERE program_name = ? ORDER BY id DESC LIMIT ?`,
		programName, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying history: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.ID, &r.ProgramName, &r.Operations, &r.OutputBytes, &r.Error, &r.RanAt); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		runs = append(runs, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("querying history: %w", err)
	}
	return runs, nil
}
