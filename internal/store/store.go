// Package store handles SQLite persistence of generated digitization
// processes.
package store

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver.
)

// Generation is one completed process-generation run for a course snapshot.
type Generation struct {
	ID           string
	Target       string
	Granularity  string
	ProcessCount int
	CreatedAt    time.Time
}

// Process is a single digitization workflow unit: one physical item to scan,
// covering a slice of the course of appearance.
type Process struct {
	ID           string
	GenerationID string
	Title        string
	FirstDate    time.Time
	LastDate     time.Time
	IssueCount   int
	CreatedAt    time.Time
}

// Store wraps SQLite access for process data.
type Store struct {
	db *sql.DB
}

// Open opens or creates the SQLite database and applies migrations.
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		if cerr := db.Close(); cerr != nil {
			// Best-effort close on migration failure.
			_ = cerr
		}
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS generations (
			id TEXT PRIMARY KEY,
			target TEXT NOT NULL,
			granularity TEXT NOT NULL,
			process_count INTEGER NOT NULL,
			created_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS processes (
			id TEXT PRIMARY KEY,
			generation_id TEXT NOT NULL REFERENCES generations(id),
			title TEXT NOT NULL,
			first_date TEXT NOT NULL,
			last_date TEXT NOT NULL,
			issue_count INTEGER NOT NULL,
			created_at TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_processes_generation_id ON processes(generation_id);`,
		`CREATE INDEX IF NOT EXISTS idx_processes_first_date ON processes(first_date);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// InsertGeneration stores a generation run and all of its processes in one
// transaction.
func (s *Store) InsertGeneration(ctx context.Context, gen Generation, processes []Process) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			if rerr := tx.Rollback(); rerr != nil {
				// Best-effort rollback.
				_ = rerr
			}
		}
	}()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO generations (id, target, granularity, process_count, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		gen.ID, gen.Target, gen.Granularity, gen.ProcessCount,
		gen.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return err
	}

	if len(processes) > 0 {
		stmt, perr := tx.PrepareContext(ctx,
			`INSERT INTO processes (id, generation_id, title, first_date, last_date, issue_count, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`)
		if perr != nil {
			err = perr
			return err
		}
		defer func() {
			if cerr := stmt.Close(); cerr != nil {
				// Best-effort statement close.
				_ = cerr
			}
		}()
		for _, p := range processes {
			if _, err = stmt.ExecContext(ctx,
				p.ID, p.GenerationID, p.Title,
				p.FirstDate.Format(time.RFC3339Nano),
				p.LastDate.Format(time.RFC3339Nano),
				p.IssueCount,
				p.CreatedAt.Format(time.RFC3339Nano),
			); err != nil {
				return err
			}
		}
	}

	return tx.Commit()
}

// ListGenerations returns all generation runs, most recent first.
func (s *Store) ListGenerations(ctx context.Context) ([]Generation, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, target, granularity, process_count, created_at
		 FROM generations ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			// Best-effort rows close.
			_ = cerr
		}
	}()

	var generations []Generation
	for rows.Next() {
		var gen Generation
		var createdAt string
		if err := rows.Scan(&gen.ID, &gen.Target, &gen.Granularity, &gen.ProcessCount, &createdAt); err != nil {
			return nil, err
		}
		parsed, err := time.Parse(time.RFC3339Nano, createdAt)
		if err != nil {
			return nil, err
		}
		gen.CreatedAt = parsed
		generations = append(generations, gen)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return generations, nil
}

// ListProcesses returns the processes of one generation in date order, or
// all processes when generationID is empty.
func (s *Store) ListProcesses(ctx context.Context, generationID string) ([]Process, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, generation_id, title, first_date, last_date, issue_count, created_at
		 FROM processes
		 WHERE (? = '' OR generation_id = ?)
		 ORDER BY first_date ASC`, generationID, generationID)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			// Best-effort rows close.
			_ = cerr
		}
	}()

	var processes []Process
	for rows.Next() {
		var p Process
		var firstDate, lastDate, createdAt string
		if err := rows.Scan(&p.ID, &p.GenerationID, &p.Title, &firstDate, &lastDate, &p.IssueCount, &createdAt); err != nil {
			return nil, err
		}
		if p.FirstDate, err = time.Parse(time.RFC3339Nano, firstDate); err != nil {
			return nil, err
		}
		if p.LastDate, err = time.Parse(time.RFC3339Nano, lastDate); err != nil {
			return nil, err
		}
		if p.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
			return nil, err
		}
		processes = append(processes, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return processes, nil
}

// CountProcesses returns the total number of stored processes.
func (s *Store) CountProcesses(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM processes`).Scan(&count)
	return count, err
}
