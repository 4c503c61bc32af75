// Package store provides storage backends for coaching session state.
//
// This file implements the PostgreSQL-backed session store.
package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "embed"

	"github.com/growthloop/coachflow/internal/models"
	_ "github.com/lib/pq"
)

// Database connection pool configuration constants
const (
	DefaultMaxOpenConns    = 25
	DefaultMaxIdleConns    = 25
	DefaultConnMaxLifetime = 5 * time.Minute
)

//go:embed migrations_postgres.sql
var postgresMigrations string

type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new Postgres store based on provided options.
func NewPostgresStore(opts ...Option) (*PostgresStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("PostgresStore.NewPostgresStore: creating Postgres store", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("PostgresStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		slog.Error("Failed to open Postgres connection", "error", err)
		return nil, err
	}
	db.SetMaxOpenConns(DefaultMaxOpenConns)
	db.SetMaxIdleConns(DefaultMaxIdleConns)
	db.SetConnMaxLifetime(DefaultConnMaxLifetime)

	if err := db.Ping(); err != nil {
		slog.Error("Postgres ping failed", "error", err)
		return nil, err
	}

	if _, err := db.Exec(postgresMigrations); err != nil {
		slog.Error("Failed to run Postgres migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("Postgres migrations applied successfully")

	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) SaveSession(state models.ConversationState) error {
	row, err := encodeSession(state)
	if err != nil {
		slog.Error("PostgresStore SaveSession encode failed", "error", err, "sessionID", state.SessionID)
		return err
	}
	_, err = s.db.Exec(`INSERT INTO sessions (`+sessionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			user_id = EXCLUDED.user_id,
			topic = EXCLUDED.topic,
			current_stage = EXCLUDED.current_stage,
			conversation_history = EXCLUDED.conversation_history,
			insights = EXCLUDED.insights,
			actions = EXCLUDED.actions,
			tracker = EXCLUDED.tracker,
			updated_at = EXCLUDED.updated_at`,
		state.SessionID, state.UserID, state.Topic, string(state.CurrentStage),
		row.historyJSON, row.insightsJSON, row.actionsJSON, row.trackerJSON,
		state.CreatedAt, state.UpdatedAt)
	if err != nil {
		slog.Error("PostgresStore SaveSession failed", "error", err, "sessionID", state.SessionID)
		return fmt.Errorf("failed to save session %s: %w", state.SessionID, err)
	}
	slog.Debug("PostgresStore SaveSession succeeded", "sessionID", state.SessionID, "stage", state.CurrentStage)
	return nil
}

func (s *PostgresStore) GetSession(sessionID string) (*models.ConversationState, error) {
	var state models.ConversationState
	var row sessionRow
	var stage string
	err := s.db.QueryRow(`SELECT `+sessionColumns+` FROM sessions WHERE id = $1`, sessionID).Scan(
		&state.SessionID, &state.UserID, &state.Topic, &stage,
		&row.historyJSON, &row.insightsJSON, &row.actionsJSON, &row.trackerJSON,
		&state.CreatedAt, &state.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore GetSession failed", "error", err, "sessionID", sessionID)
		return nil, fmt.Errorf("failed to get session %s: %w", sessionID, err)
	}
	state.CurrentStage = models.Stage(stage)
	if err := decodeSession(&state, row); err != nil {
		slog.Error("PostgresStore GetSession decode failed", "error", err, "sessionID", sessionID)
		return nil, err
	}
	return &state, nil
}

func (s *PostgresStore) DeleteSession(sessionID string) error {
	_, err := s.db.Exec(`DELETE FROM sessions WHERE id = $1`, sessionID)
	if err != nil {
		slog.Error("PostgresStore DeleteSession failed", "error", err, "sessionID", sessionID)
		return fmt.Errorf("failed to delete session %s: %w", sessionID, err)
	}
	return nil
}

func (s *PostgresStore) ListSessions() ([]models.ConversationState, error) {
	rows, err := s.db.Query(`SELECT ` + sessionColumns + ` FROM sessions ORDER BY updated_at DESC`)
	if err != nil {
		slog.Error("PostgresStore ListSessions query failed", "error", err)
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
			slog.Error("PostgresStore ListSessions scan failed", "error", err)
			return nil, fmt.Errorf("failed to scan session row: %w", err)
		}
		state.CurrentStage = models.Stage(stage)
		if err := decodeSession(&state, row); err != nil {
			return nil, err
		}
		sessions = append(sessions, state)
	}
	if err := rows.Err(); err != nil {
		slog.Error("PostgresStore ListSessions rows iteration failed", "error", err)
		return nil, fmt.Errorf("failed to iterate session rows: %w", err)
	}
	return sessions, nil
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}
