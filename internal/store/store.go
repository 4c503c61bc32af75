// Package store provides storage backends for coaching session state.
//
// It includes an in-memory store for tests and single-process deployments,
// plus SQLite and PostgreSQL backends for persistence across restarts.
package store

import (
	"sort"
	"strings"
	"sync"

	"github.com/growthloop/coachflow/internal/models"
)

// DetectDSNType classifies a DSN as "postgres" or "sqlite". Postgres DSNs use
// URL schemes or key-value form; anything else is treated as a SQLite file path.
func DetectDSNType(dsn string) string {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") || strings.Contains(dsn, "host=") {
		return "postgres"
	}
	return "sqlite"
}

// Opts holds shared configuration for store backends.
type Opts struct {
	DSN string
}

// Option defines a configuration option for a store backend.
type Option func(*Opts)

// WithDSN sets the database connection string. For SQLite this is the
// database file path; for Postgres a connection URL or key-value DSN.
func WithDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// Store is the persistence interface for coaching sessions. GetSession
// returns (nil, nil) when the session does not exist.
type Store interface {
	SaveSession(state models.ConversationState) error
	GetSession(sessionID string) (*models.ConversationState, error)
	DeleteSession(sessionID string) error
	ListSessions() ([]models.ConversationState, error)
	Close() error
}

// InMemoryStore keeps sessions in a map. Reads and writes exchange deep
// copies so callers never share slices with the stored state.
type InMemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*models.ConversationState
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{sessions: make(map[string]*models.ConversationState)}
}

func (s *InMemoryStore) SaveSession(state models.ConversationState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[state.SessionID] = state.Clone()
	return nil
}

func (s *InMemoryStore) GetSession(sessionID string) (*models.ConversationState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	state, ok := s.sessions[sessionID]
	if !ok {
		return nil, nil
	}
	return state.Clone(), nil
}

func (s *InMemoryStore) DeleteSession(sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
	return nil
}

func (s *InMemoryStore) ListSessions() ([]models.ConversationState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.ConversationState, 0, len(s.sessions))
	for _, state := range s.sessions {
		out = append(out, *state.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SessionID < out[j].SessionID })
	return out, nil
}

func (s *InMemoryStore) Close() error {
	return nil
}
