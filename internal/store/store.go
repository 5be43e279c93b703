// Package store provides storage backends for ScriptAgent.
//
// Scripts and ended-call logs are persisted through the Store interface; an
// in-memory implementation backs tests and ephemeral runs, with SQLite and
// PostgreSQL for durable deployments.
package store

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/keshavmahale005/ScriptAgent-CHATBOT/internal/models"
)

// Opts holds configuration options for store implementations.
type Opts struct {
	// DSN is the database connection string (file path for SQLite).
	DSN string
}

// Option defines a functional option for store configuration.
type Option func(*Opts)

// WithDSN sets the database connection string.
func WithDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// DetectDSNType reports "postgres" for PostgreSQL-style connection strings
// and "sqlite" for anything else, which is treated as a file path.
func DetectDSNType(dsn string) string {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") || strings.Contains(dsn, "host=") {
		return "postgres"
	}
	return "sqlite"
}

// Store is the persistence surface the API server depends on.
type Store interface {
	SaveScript(s models.Script) error
	GetScript(id string) (*models.Script, error)
	ListScripts() ([]models.Script, error)
	DeleteScript(id string) error

	AddCallLog(l models.CallLog) error
	GetCallLog(id string) (*models.CallLog, error)
	ListCallLogs() ([]models.CallLog, error)

	Close() error
}

// InMemoryStore keeps everything in process memory. Safe for concurrent use.
type InMemoryStore struct {
	mu       sync.RWMutex
	scripts  map[string]models.Script
	callLogs map[string]models.CallLog
}

// NewInMemoryStore returns an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		scripts:  make(map[string]models.Script),
		callLogs: make(map[string]models.CallLog),
	}
}

func (s *InMemoryStore) SaveScript(sc models.Script) error {
	if sc.ID == "" {
		return fmt.Errorf("script ID is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scripts[sc.ID] = sc
	return nil
}

func (s *InMemoryStore) GetScript(id string) (*models.Script, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sc, ok := s.scripts[id]
	if !ok {
		return nil, nil
	}
	return &sc, nil
}

func (s *InMemoryStore) ListScripts() ([]models.Script, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Script, 0, len(s.scripts))
	for _, sc := range s.scripts {
		out = append(out, sc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *InMemoryStore) DeleteScript(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.scripts, id)
	return nil
}

func (s *InMemoryStore) AddCallLog(l models.CallLog) error {
	if l.ID == "" {
		return fmt.Errorf("call log ID is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.callLogs[l.ID] = l
	return nil
}

func (s *InMemoryStore) GetCallLog(id string) (*models.CallLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	l, ok := s.callLogs[id]
	if !ok {
		return nil, nil
	}
	return &l, nil
}

func (s *InMemoryStore) ListCallLogs() ([]models.CallLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.CallLog, 0, len(s.callLogs))
	for _, l := range s.callLogs {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EndedAt.Before(out[j].EndedAt) })
	return out, nil
}

func (s *InMemoryStore) Close() error {
	return nil
}
