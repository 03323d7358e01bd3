// Package history implements the SQLite-backed audit log of every command
// executed through the console, with schema migration and recent-query APIs.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"

	"github.com/rconsole-project/rconsole/internal/events"
)

// Entry is one recorded command exchange.
type Entry struct {
	ID         string        `json:"id"`
	Server     string        `json:"server"`
	Command    string        `json:"command"`
	Response   string        `json:"response"`
	Error      string        `json:"error,omitempty"`
	OK         bool          `json:"ok"`
	Duration   time.Duration `json:"duration_ms"`
	ExecutedAt time.Time     `json:"executed_at"`
}

// Store wraps a SQLite database holding the command audit log.
type Store struct {
	mu   sync.Mutex
	db   *sql.DB
	path string
}

// Open opens or creates the audit database at the given path and applies
// the schema.
func Open(dbPath string) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create history directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database %s: %w", dbPath, err)
	}

	// SQLite doesn't support concurrent writes
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		log.Warn().Err(err).Msg("failed to enable WAL mode")
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("history database ping failed: %w", err)
	}

	s := &Store{db: db, path: dbPath}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}

	log.Info().Str("path", dbPath).Msg("history database opened")
	return s, nil
}

// migrate creates the schema when it does not exist yet.
func (s *Store) migrate() error {
	const schema = `
CREATE TABLE IF NOT EXISTS command_log (
	id          TEXT PRIMARY KEY,
	server      TEXT NOT NULL,
	command     TEXT NOT NULL,
	response    TEXT NOT NULL DEFAULT '',
	error       TEXT NOT NULL DEFAULT '',
	ok          INTEGER NOT NULL,
	duration_ms INTEGER NOT NULL,
	executed_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_command_log_server_time
	ON command_log(server, executed_at DESC);
`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to migrate history schema: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Record inserts one command exchange into the log. A missing id or
// timestamp is filled in.
func (s *Store) Record(e Entry) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.ExecutedAt.IsZero() {
		e.ExecutedAt = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(
		`INSERT INTO command_log (id, server, command, response, error, ok, duration_ms, executed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Server, e.Command, e.Response, e.Error, boolToInt(e.OK),
		e.Duration.Milliseconds(), e.ExecutedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record command: %w", err)
	}
	return nil
}

// Recent returns the most recent entries, newest first. An empty server
// name returns entries for the whole fleet.
func (s *Store) Recent(server string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}

	var rows *sql.Rows
	var err error
	if server == "" {
		rows, err = s.db.Query(
			`SELECT id, server, command, response, error, ok, duration_ms, executed_at
			 FROM command_log ORDER BY executed_at DESC LIMIT ?`, limit)
	} else {
		rows, err = s.db.Query(
			`SELECT id, server, command, response, error, ok, duration_ms, executed_at
			 FROM command_log WHERE server = ? ORDER BY executed_at DESC LIMIT ?`, server, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var ok int
		var durationMS int64
		if err := rows.Scan(&e.ID, &e.Server, &e.Command, &e.Response, &e.Error, &ok, &durationMS, &e.ExecutedAt); err != nil {
			return nil, fmt.Errorf("failed to scan history row: %w", err)
		}
		e.OK = ok == 1
		e.Duration = time.Duration(durationMS) * time.Millisecond
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Count returns the total number of recorded entries.
func (s *Store) Count() (int, error) {
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM command_log`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count history: %w", err)
	}
	return n, nil
}

// SubscribeEvents records every executed command flowing over the bus.
func (s *Store) SubscribeEvents(eventBus *events.EventBus) {
	eventBus.Subscribe(events.EventCommandExecuted, "history.record", func(ctx context.Context, event events.Event) error {
		payload, ok := event.Payload.(events.CommandPayload)
		if !ok {
			return nil
		}
		return s.Record(Entry{
			Server:   payload.Server,
			Command:  payload.Command,
			Response: payload.Response,
			Error:    payload.Error,
			OK:       payload.OK,
			Duration: payload.Duration,
		})
	})
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
