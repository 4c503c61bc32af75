// Package store provides storage backends for coaching session state.
//
// This file implements the SQLite-backed session store.
package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "embed"

	"github.com/growthloop/coachflow/internal/models"
	_ "github.com/mattn/go-sqlite3"
)

// DefaultDirPermissions defines the default permissions for database directories.
const DefaultDirPermissions = 0755

//go:embed migrations_sqlite.sql
var sqliteMigrations string

type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store with the given DSN. The DSN is a
// file path to the SQLite database file; the parent directory is created if
// it does not exist.
func NewSQLiteStore(opts ...Option) (*SQLiteStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewSQLiteStore invoked", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("SQLiteStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	dir := filepath.Dir(dsn)
	if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
		slog.Error("Failed to create database directory", "error", err, "dir", dir)
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		slog.Error("Failed to open SQLite connection", "error", err)
		return nil, err
	}
	if err := db.Ping(); err != nil {
		slog.Error("SQLite ping failed", "error", err)
		return nil, err
	}

	if _, err := db.Exec(sqliteMigrations); err != nil {
		slog.Error("Failed to run SQLite migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("SQLite migrations applied successfully")

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) SaveSession(state models.ConversationState) error {
	row, err := encodeSession(state)
	if err != nil {
		slog.Error("SQLiteStore SaveSession encode failed", "error", err, "sessionID", state.SessionID)
		return err
	}
	_, err = s.db.Exec(`INSERT OR REPLACE INTO sessions (`+sessionColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		state.SessionID, state.UserID, state.Topic, string(state.CurrentStage),
		row.historyJSON, row.insightsJSON, row.actionsJSON, row.trackerJSON,
		state.CreatedAt, state.UpdatedAt)
	if err != nil {
		slog.Error("SQLiteStore SaveSession failed", "error", err, "sessionID", state.SessionID)
		return fmt.Errorf("failed to save session %s: %w", state.SessionID, err)
	}
	slog.Debug("SQLiteStore SaveSession succeeded", "sessionID", state.SessionID, "stage", state.CurrentStage)
	return nil
}

func (s *SQLiteStore) GetSession(sessionID string) (*models.ConversationState, error) {
	var state models.ConversationState
	var row sessionRow
	var stage string
	err := s.db.QueryRow(`SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, sessionID).Scan(
		&state.SessionID, &state.UserID, &state.Topic, &stage,
		&row.historyJSON, &row.insightsJSON, &row.actionsJSON, &row.trackerJSON,
		&state.CreatedAt, &state.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Error("SQLiteStore GetSession failed", "error", err, "sessionID", sessionID)
		return nil, fmt.Errorf("failed to get session %s: %w", sessionID, err)
	}
	state.CurrentStage = models.Stage(stage)
	if err := decodeSession(&state, row); err != nil {
		slog.Error("SQLiteStore GetSession decode failed", "error", err, "sessionID", sessionID)
		return nil, err
	}
	return &state, nil
}

func (s *SQLiteStore) DeleteSession(sessionID string) error {
	_, err := s.db.Exec(`DELETE FROM sessions WHERE id = ?`, sessionID)
	if err != nil {
		slog.Error("SQLiteStore DeleteSession failed", "error", err, "sessionID", sessionID)
		return fmt.Errorf("failed to delete session %s: %w", sessionID, err)
	}
	return nil
}

func (s *SQLiteStore) ListSessions() ([]models.ConversationState, error) {
	rows, err := s.db.Query(`SELECT ` + sessionColumns + ` FROM sessions ORDER BY updated_at DESC`)
	if err != nil {
		slog.Error("SQLiteStore ListSessions query failed", "error", err)
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	var sessions []models.ConversationState
	for rows.Next() {
		var state models.ConversationState
		var row sessionRow
		var stage string
		if err := rows.Scan(&state.SessionID, &state.UserID, &state.Topic, &stage,
			&row.historyJSON, &row.insightsJSON, &row.actionsJSON, &row.trackerJSON,
			&state.CreatedAt, &state.UpdatedAt); err != nil {
			slog.Error("SQLiteStore ListSessions scan failed", "error", err)
			return nil, fmt.Errorf("failed to scan session row: %w", err)
		}
		state.CurrentStage = models.Stage(stage)
		if err := decodeSession(&state, row); err != nil {
			return nil, err
		}
		sessions = append(sessions, state)
	}
	if err := rows.Err(); err != nil {
		slog.Error("SQLiteStore ListSessions rows iteration failed", "error", err)
		return nil, fmt.Errorf("failed to iterate session rows: %w", err)
	}
	slog.Debug("SQLiteStore ListSessions succeeded", "count", len(sessions))
	return sessions, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
