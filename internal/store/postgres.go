// Package store provides storage backends for ScriptAgent.
//
// This file implements the PostgreSQL-backed store.
package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "embed"

	_ "github.com/lib/pq"

	"github.com/keshavmahale005/ScriptAgent-CHATBOT/internal/models"
)

// Database connection pool configuration constants.
const (
	// DefaultMaxOpenConns is the default maximum number of open connections to the database.
	DefaultMaxOpenConns = 25
	// DefaultMaxIdleConns is the default maximum number of idle connections in the pool.
	DefaultMaxIdleConns = 25
	// DefaultConnMaxLifetime is the default maximum amount of time a connection may be reused.
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
	slog.Debug("PostgresStore.NewPostgresStore: creating store", "DSN_set", cfg.DSN != "")

	if cfg.DSN == "" {
		slog.Error("PostgresStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		slog.Error("PostgresStore failed to open connection", "error", err)
		return nil, err
	}

	db.SetMaxOpenConns(DefaultMaxOpenConns)
	db.SetMaxIdleConns(DefaultMaxIdleConns)
	db.SetConnMaxLifetime(DefaultConnMaxLifetime)

	if err := db.Ping(); err != nil {
		slog.Error("PostgresStore ping failed", "error", err)
		return nil, err
	}

	if _, err := db.Exec(postgresMigrations); err != nil {
		slog.Error("PostgresStore failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("PostgresStore.NewPostgresStore: migrations applied")

	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) SaveScript(sc models.Script) error {
	metadata, variables, err := marshalScriptFields(sc)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`INSERT INTO scripts (id, name, text, call_type, metadata, variables, sections, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET name=EXCLUDED.name, text=EXCLUDED.text, call_type=EXCLUDED.call_type,
		metadata=EXCLUDED.metadata, variables=EXCLUDED.variables, sections=EXCLUDED.sections, updated_at=EXCLUDED.updated_at`,
		sc.ID, sc.Name, sc.Text, sc.CallType, metadata, variables, sc.Sections, sc.CreatedAt, sc.UpdatedAt)
	if err != nil {
		slog.Error("PostgresStore.SaveScript failed", "error", err, "id", sc.ID)
		return fmt.Errorf("failed to save script %s: %w", sc.ID, err)
	}
	slog.Debug("PostgresStore.SaveScript succeeded", "id", sc.ID)
	return nil
}

func (s *PostgresStore) GetScript(id string) (*models.Script, error) {
	row := s.db.QueryRow(`SELECT id, name, text, call_type, metadata, variables, sections, created_at, updated_at FROM scripts WHERE id = $1`, id)
	sc, err := scanScript(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore.GetScript failed", "error", err, "id", id)
		return nil, fmt.Errorf("failed to get script %s: %w", id, err)
	}
	return sc, nil
}

func (s *PostgresStore) ListScripts() ([]models.Script, error) {
	rows, err := s.db.Query(`SELECT id, name, text, call_type, metadata, variables, sections, created_at, updated_at FROM scripts ORDER BY created_at`)
	if err != nil {
		slog.Error("PostgresStore.ListScripts query failed", "error", err)
		return nil, fmt.Errorf("failed to query scripts: %w", err)
	}
	defer rows.Close()

	var scripts []models.Script
	for rows.Next() {
		sc, err := scanScript(rows)
		if err != nil {
			slog.Error("PostgresStore.ListScripts scan failed", "error", err)
			return nil, fmt.Errorf("failed to scan script row: %w", err)
		}
		scripts = append(scripts, *sc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate script rows: %w", err)
	}
	return scripts, nil
}

func (s *PostgresStore) DeleteScript(id string) error {
	if _, err := s.db.Exec(`DELETE FROM scripts WHERE id = $1`, id); err != nil {
		slog.Error("PostgresStore.DeleteScript failed", "error", err, "id", id)
		return fmt.Errorf("failed to delete script %s: %w", id, err)
	}
	return nil
}

func (s *PostgresStore) AddCallLog(l models.CallLog) error {
	turns, completed, collected, err := marshalCallLogFields(l)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`INSERT INTO call_logs (id, session_id, script_id, call_type, turns, completed_sections, progress, collected_data, started_at, ended_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		l.ID, l.SessionID, l.ScriptID, l.CallType, turns, completed, l.Progress, collected, l.StartedAt, l.EndedAt)
	if err != nil {
		slog.Error("PostgresStore.AddCallLog failed", "error", err, "id", l.ID)
		return fmt.Errorf("failed to insert call log %s: %w", l.ID, err)
	}
	return nil
}

func (s *PostgresStore) GetCallLog(id string) (*models.CallLog, error) {
	row := s.db.QueryRow(`SELECT id, session_id, script_id, call_type, turns, completed_sections, progress, collected_data, started_at, ended_at FROM call_logs WHERE id = $1`, id)
	l, err := scanCallLog(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore.GetCallLog failed", "error", err, "id", id)
		return nil, fmt.Errorf("failed to get call log %s: %w", id, err)
	}
	return l, nil
}

func (s *PostgresStore) ListCallLogs() ([]models.CallLog, error) {
	rows, err := s.db.Query(`SELECT id, session_id, script_id, call_type, turns, completed_sections, progress, collected_data, started_at, ended_at FROM call_logs ORDER BY ended_at`)
	if err != nil {
		slog.Error("PostgresStore.ListCallLogs query failed", "error", err)
		return nil, fmt.Errorf("failed to query call logs: %w", err)
	}
	defer rows.Close()

	var logs []models.CallLog
	for rows.Next() {
		l, err := scanCallLog(rows)
		if err != nil {
			slog.Error("PostgresStore.ListCallLogs scan failed", "error", err)
			return nil, fmt.Errorf("failed to scan call log row: %w", err)
		}
		logs = append(logs, *l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate call log rows: %w", err)
	}
	return logs, nil
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}
