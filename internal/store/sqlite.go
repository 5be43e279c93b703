// Package store provides storage backends for ScriptAgent.
//
// This file implements the SQLite-backed store.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "embed"

	_ "github.com/mattn/go-sqlite3"

	"github.com/keshavmahale005/ScriptAgent-CHATBOT/internal/models"
)

// DefaultDirPermissions defines the default permissions for database directories.
const DefaultDirPermissions = 0755

//go:embed migrations_sqlite.sql
var sqliteMigrations string

type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store with the given DSN. The DSN is a
// file path; its directory is created when missing.
func NewSQLiteStore(opts ...Option) (*SQLiteStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("SQLiteStore.NewSQLiteStore: creating store", "DSN_set", cfg.DSN != "")

	if cfg.DSN == "" {
		slog.Error("SQLiteStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	dir := filepath.Dir(cfg.DSN)
	if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
		slog.Error("SQLiteStore failed to create database directory", "error", err, "dir", dir)
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", cfg.DSN)
	if err != nil {
		slog.Error("SQLiteStore failed to open connection", "error", err)
		return nil, err
	}
	if err := db.Ping(); err != nil {
		slog.Error("SQLiteStore ping failed", "error", err)
		return nil, err
	}

	if _, err := db.Exec(sqliteMigrations); err != nil {
		slog.Error("SQLiteStore failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("SQLiteStore.NewSQLiteStore: migrations applied")

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) SaveScript(sc models.Script) error {
	metadata, variables, err := marshalScriptFields(sc)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`INSERT INTO scripts (id, name, text, call_type, metadata, variables, sections, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name=excluded.name, text=excluded.text, call_type=excluded.call_type,
		metadata=excluded.metadata, variables=excluded.variables, sections=excluded.sections, updated_at=excluded.updated_at`,
		sc.ID, sc.Name, sc.Text, sc.CallType, metadata, variables, sc.Sections, sc.CreatedAt, sc.UpdatedAt)
	if err != nil {
		slog.Error("SQLiteStore.SaveScript failed", "error", err, "id", sc.ID)
		return fmt.Errorf("failed to save script %s: %w", sc.ID, err)
	}
	slog.Debug("SQLiteStore.SaveScript succeeded", "id", sc.ID)
	return nil
}

func (s *SQLiteStore) GetScript(id string) (*models.Script, error) {
	row := s.db.QueryRow(`SELECT id, name, text, call_type, metadata, variables, sections, created_at, updated_at FROM scripts WHERE id = ?`, id)
	sc, err := scanScript(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Error("SQLiteStore.GetScript failed", "error", err, "id", id)
		return nil, fmt.Errorf("failed to get script %s: %w", id, err)
	}
	return sc, nil
}

func (s *SQLiteStore) ListScripts() ([]models.Script, error) {
	rows, err := s.db.Query(`SELECT id, name, text, call_type, metadata, variables, sections, created_at, updated_at FROM scripts ORDER BY created_at`)
	if err != nil {
		slog.Error("SQLiteStore.ListScripts query failed", "error", err)
		return nil, fmt.Errorf("failed to query scripts: %w", err)
	}
	defer rows.Close()

	var scripts []models.Script
	for rows.Next() {
		sc, err := scanScript(rows)
		if err != nil {
			slog.Error("SQLiteStore.ListScripts scan failed", "error", err)
			return nil, fmt.Errorf("failed to scan script row: %w", err)
		}
		scripts = append(scripts, *sc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate script rows: %w", err)
	}
	slog.Debug("SQLiteStore.ListScripts succeeded", "count", len(scripts))
	return scripts, nil
}

func (s *SQLiteStore) DeleteScript(id string) error {
	if _, err := s.db.Exec(`DELETE FROM scripts WHERE id = ?`, id); err != nil {
		slog.Error("SQLiteStore.DeleteScript failed", "error", err, "id", id)
		return fmt.Errorf("failed to delete script %s: %w", id, err)
	}
	return nil
}

func (s *SQLiteStore) AddCallLog(l models.CallLog) error {
	turns, completed, collected, err := marshalCallLogFields(l)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`INSERT INTO call_logs (id, session_id, script_id, call_type, turns, completed_sections, progress, collected_data, started_at, ended_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		l.ID, l.SessionID, l.ScriptID, l.CallType, turns, completed, l.Progress, collected, l.StartedAt, l.EndedAt)
	if err != nil {
		slog.Error("SQLiteStore.AddCallLog failed", "error", err, "id", l.ID)
		return fmt.Errorf("failed to insert call log %s: %w", l.ID, err)
	}
	slog.Debug("SQLiteStore.AddCallLog succeeded", "id", l.ID)
	return nil
}

func (s *SQLiteStore) GetCallLog(id string) (*models.CallLog, error) {
	row := s.db.QueryRow(`SELECT id, session_id, script_id, call_type, turns, completed_sections, progress, collected_data, started_at, ended_at FROM call_logs WHERE id = ?`, id)
	l, err := scanCallLog(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Error("SQLiteStore.GetCallLog failed", "error", err, "id", id)
		return nil, fmt.Errorf("failed to get call log %s: %w", id, err)
	}
	return l, nil
}

func (s *SQLiteStore) ListCallLogs() ([]models.CallLog, error) {
	rows, err := s.db.Query(`SELECT id, session_id, script_id, call_type, turns, completed_sections, progress, collected_data, started_at, ended_at FROM call_logs ORDER BY ended_at`)
	if err != nil {
		slog.Error("SQLiteStore.ListCallLogs query failed", "error", err)
		return nil, fmt.Errorf("failed to query call logs: %w", err)
	}
	defer rows.Close()

	var logs []models.CallLog
	for rows.Next() {
		l, err := scanCallLog(rows)
		if err != nil {
			slog.Error("SQLiteStore.ListCallLogs scan failed", "error", err)
			return nil, fmt.Errorf("failed to scan call log row: %w", err)
		}
		logs = append(logs, *l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate call log rows: %w", err)
	}
	slog.Debug("SQLiteStore.ListCallLogs succeeded", "count", len(logs))
	return logs, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// marshalScriptFields encodes the JSON columns of a script row.
func marshalScriptFields(sc models.Script) (metadata, variables interface{}, err error) {
	m, err := json.Marshal(sc.Metadata)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal script metadata: %w", err)
	}
	v, err := json.Marshal(sc.Variables)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal script variables: %w", err)
	}
	return string(m), string(v), nil
}

// marshalCallLogFields encodes the JSON columns of a call log row.
func marshalCallLogFields(l models.CallLog) (turns, completed, collected interface{}, err error) {
	t, err := json.Marshal(l.Turns)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to marshal call log turns: %w", err)
	}
	c, err := json.Marshal(l.CompletedSections)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to marshal completed sections: %w", err)
	}
	d, err := json.Marshal(l.CollectedData)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to marshal collected data: %w", err)
	}
	return string(t), string(c), string(d), nil
}

// rowScanner covers *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanScript(row rowScanner) (*models.Script, error) {
	var sc models.Script
	var metadata, variables sql.NullString
	if err := row.Scan(&sc.ID, &sc.Name, &sc.Text, &sc.CallType, &metadata, &variables, &sc.Sections, &sc.CreatedAt, &sc.UpdatedAt); err != nil {
		return nil, err
	}
	if metadata.Valid && metadata.String != "" {
		if err := json.Unmarshal([]byte(metadata.String), &sc.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal script metadata: %w", err)
		}
	}
	if variables.Valid && variables.String != "" {
		if err := json.Unmarshal([]byte(variables.String), &sc.Variables); err != nil {
			return nil, fmt.Errorf("failed to unmarshal script variables: %w", err)
		}
	}
	return &sc, nil
}

func scanCallLog(row rowScanner) (*models.CallLog, error) {
	var l models.CallLog
	var turns, completed, collected sql.NullString
	if err := row.Scan(&l.ID, &l.SessionID, &l.ScriptID, &l.CallType, &turns, &completed, &l.Progress, &collected, &l.StartedAt, &l.EndedAt); err != nil {
		return nil, err
	}
	if turns.Valid && turns.String != "" {
		if err := json.Unmarshal([]byte(turns.String), &l.Turns); err != nil {
			return nil, fmt.Errorf("failed to unmarshal call log turns: %w", err)
		}
	}
	if completed.Valid && completed.String != "" {
		if err := json.Unmarshal([]byte(completed.String), &l.CompletedSections); err != nil {
			return nil, fmt.Errorf("failed to unmarshal completed sections: %w", err)
		}
	}
	if collected.Valid && collected.String != "" {
		if err := json.Unmarshal([]byte(collected.String), &l.CollectedData); err != nil {
			return nil, fmt.Errorf("failed to unmarshal collected data: %w", err)
		}
	}
	return &l, nil
}
