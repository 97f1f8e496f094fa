// Package history persists executed shell commands and their outcomes to a
// local sqlite database so past runs can be inspected and pruned.
package history

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog/log"

	"github.com/shelldon-ai/shelldon/pkg/shell"
)

// Entry is one recorded command execution.
type Entry struct {
	ID        int64     `json:"id"`
	SessionID string    `json:"session_id"`
	Command   string    `json:"command"`
	Outcome   string    `json:"outcome"`
	ExitCode  int       `json:"exit_code"`
	Stdout    string    `json:"stdout"`
	Stderr    string    `json:"stderr"`
	Duration  int64     `json:"duration_ms"`
	RanAt     time.Time `json:"ran_at"`
}

// Store records command executions in sqlite.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the history database at path.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("history database path is required")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create history directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	s := &Store{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return s, nil
}

// initSchema creates database tables
func (s *Store) initSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS commands (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL,
			command TEXT NOT NULL,
			outcome TEXT NOT NULL,
			exit_code INTEGER NOT NULL,
			stdout TEXT NOT NULL,
			stderr TEXT NOT NULL,
			duration_ms INTEGER NOT NULL,
			ran_at INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_commands_ran_at ON commands(ran_at);
		CREATE INDEX IF NOT EXISTS idx_commands_session ON commands(session_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Record stores one command execution.
func (s *Store) Record(sessionID, command string, res shell.Result) error {
	_, err := s.db.Exec(
		`INSERT INTO commands (session_id, command, outcome, exit_code, stdout, stderr, duration_ms, ran_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		sessionID, command, res.Outcome.String(), res.ExitCode,
		res.Stdout, res.Stderr, res.Duration.Milliseconds(), time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to record command: %w", err)
	}
	return nil
}

// Recent returns the most recent entries, newest first. A non-empty filter
// restricts to commands containing the substring.
func (s *Store) Recent(limit int, filter string) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `SELECT id, session_id, command, outcome, exit_code, stdout, stderr, duration_ms, ran_at
		FROM commands`
	args := []any{}
	if strings.TrimSpace(filter) != "" {
		query += ` WHERE command LIKE ?`
		args = append(args, "%"+filter+"%")
	}
	query += ` ORDER BY ran_at DESC, id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var ranAt int64
		if err := rows.Scan(&e.ID, &e.SessionID, &e.Command, &e.Outcome,
			&e.ExitCode, &e.Stdout, &e.Stderr, &e.Duration, &ranAt); err != nil {
			return nil, fmt.Errorf("failed to scan history row: %w", err)
		}
		e.RanAt = time.Unix(ranAt, 0)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Prune deletes entries older than the retention window and returns how
// many rows were removed. A zero or negative retention disables pruning.
func (s *Store) Prune(retention time.Duration) (int64, error) {
	if retention <= 0 {
		return 0, nil
	}

	cutoff := time.Now().Add(-retention).Unix()
	res, err := s.db.Exec(`DELETE FROM commands WHERE ran_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune history: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if n > 0 {
		log.Info().Int64("removed", n).Msg("Pruned command history")
	}
	return n, nil
}

// Count returns the total number of stored entries.
func (s *Store) Count() (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM commands`).Scan(&n)
	return n, err
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
