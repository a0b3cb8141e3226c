// Package storage provides SQLite implementation of the MeetingStore interface.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/openmeetings/meetsearch/internal/engine"
)

// SQLiteStorage implements MeetingStore using SQLite.
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS meetings (
		id TEXT PRIMARY KEY,
		body TEXT NOT NULL,
		meeting_dt INTEGER NOT NULL,
		document TEXT NOT NULL,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_meetings_body ON meetings(body);
	CREATE INDEX IF NOT EXISTS idx_meetings_meeting_dt ON meetings(meeting_dt);
	`
	_, err := db.Exec(schema)
	return err
}

// PutMeetings upserts docs in a transaction.
func (s *SQLiteStorage) PutMeetings(ctx context.Context, docs []*engine.Document) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO meetings (id, body, meeting_dt, document, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   body = excluded.body, meeting_dt = excluded.meeting_dt,
		   document = excluded.document, updated_at = excluded.updated_at`,
	)
	if err != nil {
		return err
	}
	defer stmt.Close()

	now := time.Now()
	for _, doc := range docs {
		id := doc.DocID()
		if id == "" {
			return fmt.Errorf("meeting without id")
		}
		raw, err := json.Marshal(doc)
		if err != nil {
			return fmt.Errorf("failed to marshal meeting %s: %w", id, err)
		}
		var body string
		if doc.Body != nil {
			body = *doc.Body
		}
		var dt int64
		if doc.MeetingDT != nil {
			dt = *doc.MeetingDT
		}
		if _, err := stmt.ExecContext(ctx, id, body, dt, string(raw), now); err != nil {
			return fmt.Errorf("failed to store meeting %s: %w", id, err)
		}
	}
	return tx.Commit()
}

// GetMeeting returns a meeting by ID.
func (s *SQLiteStorage) GetMeeting(ctx context.Context, id string) (*engine.Document, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT document FROM meetings WHERE id = ?`, id).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("meeting %s: %w", id, engine.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	var doc engine.Document
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal meeting %s: %w", id, err)
	}
	return &doc, nil
}

// GetMeetings returns the stored meetings among ids.
func (s *SQLiteStorage) GetMeetings(ctx context.Context, ids []string) (map[string]*engine.Document, error) {
	out := make(map[string]*engine.Document, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, document FROM meetings WHERE id IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var id, raw string
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, err
		}
		var doc engine.Document
		if err := json.Unmarshal([]byte(raw), &doc); err != nil {
			return nil, fmt.Errorf("failed to unmarshal meeting %s: %w", id, err)
		}
		out[id] = &doc
	}
	return out, rows.Err()
}

// DeleteAll removes every meeting.
func (s *SQLiteStorage) DeleteAll(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM meetings`)
	return err
}

// CountMeetings returns the total number of meetings.
func (s *SQLiteStorage) CountMeetings(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM meetings`).Scan(&count)
	return count, err
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}
