package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/keshavmahale005/ScriptAgent-CHATBOT/internal/models"
)

func sampleScript(id string) models.Script {
	now := time.Now().UTC().Truncate(time.Second)
	return models.Script{
		ID:        id,
		Name:      "Solar Qualification",
		Text:      "OPENING\nAgent: Hi!",
		CallType:  models.CallTypeOutbound,
		Metadata:  map[string]string{"agent_name": "Clare"},
		Variables: []string{"first_name"},
		Sections:  1,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func sampleCallLog(id string) models.CallLog {
	now := time.Now().UTC().Truncate(time.Second)
	return models.CallLog{
		ID:        id,
		SessionID: "sess_1",
		ScriptID:  "scr_1",
		CallType:  models.CallTypeOutbound,
		Turns: []models.Turn{
			{Role: models.RoleAgent, Content: "Hi!", Section: "OPENING", Time: now},
			{Role: models.RoleUser, Content: "yes", Time: now},
		},
		CompletedSections: []string{"OPENING"},
		Progress:          50,
		CollectedData:     map[string]string{"first_name": "Jane"},
		StartedAt:         now.Add(-time.Minute),
		EndedAt:           now,
	}
}

// exerciseStore runs the shared contract against any Store implementation.
func exerciseStore(t *testing.T, s Store) {
	t.Helper()

	sc := sampleScript("scr_1")
	if err := s.SaveScript(sc); err != nil {
		t.Fatalf("SaveScript failed: %v", err)
	}

	got, err := s.GetScript("scr_1")
	if err != nil {
		t.Fatalf("GetScript failed: %v", err)
	}
	if got == nil {
		t.Fatal("expected script, got nil")
	}
	if got.Name != sc.Name || got.CallType != sc.CallType {
		t.Errorf("round-trip mismatch: %+v", got)
	}
	if got.Metadata["agent_name"] != "Clare" {
		t.Errorf("expected metadata preserved, got %v", got.Metadata)
	}
	if len(got.Variables) != 1 || got.Variables[0] != "first_name" {
		t.Errorf("expected variables preserved, got %v", got.Variables)
	}

	missing, err := s.GetScript("scr_missing")
	if err != nil {
		t.Fatalf("GetScript missing failed: %v", err)
	}
	if missing != nil {
		t.Errorf("expected nil for missing script, got %+v", missing)
	}

	// Saving again updates in place.
	sc.Name = "Renamed"
	if err := s.SaveScript(sc); err != nil {
		t.Fatalf("SaveScript update failed: %v", err)
	}
	scripts, err := s.ListScripts()
	if err != nil {
		t.Fatalf("ListScripts failed: %v", err)
	}
	if len(scripts) != 1 || scripts[0].Name != "Renamed" {
		t.Errorf("expected single renamed script, got %+v", scripts)
	}

	l := sampleCallLog("call_1")
	if err := s.AddCallLog(l); err != nil {
		t.Fatalf("AddCallLog failed: %v", err)
	}
	gotLog, err := s.GetCallLog("call_1")
	if err != nil {
		t.Fatalf("GetCallLog failed: %v", err)
	}
	if gotLog == nil {
		t.Fatal("expected call log, got nil")
	}
	if len(gotLog.Turns) != 2 || gotLog.Turns[0].Role != models.RoleAgent {
		t.Errorf("expected turns preserved, got %+v", gotLog.Turns)
	}
	if gotLog.Progress != 50 {
		t.Errorf("expected progress 50, got %f", gotLog.Progress)
	}
	if gotLog.CollectedData["first_name"] != "Jane" {
		t.Errorf("expected collected data preserved, got %v", gotLog.CollectedData)
	}

	logs, err := s.ListCallLogs()
	if err != nil {
		t.Fatalf("ListCallLogs failed: %v", err)
	}
	if len(logs) != 1 {
		t.Errorf("expected one call log, got %d", len(logs))
	}

	if err := s.DeleteScript("scr_1"); err != nil {
		t.Fatalf("DeleteScript failed: %v", err)
	}
	gone, err := s.GetScript("scr_1")
	if err != nil {
		t.Fatalf("GetScript after delete failed: %v", err)
	}
	if gone != nil {
		t.Error("expected script deleted")
	}
}

func TestInMemoryStore(t *testing.T) {
	s := NewInMemoryStore()
	defer s.Close()
	exerciseStore(t, s)
}

func TestSQLiteStore(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "scriptagent.db")
	s, err := NewSQLiteStore(WithDSN(dsn))
	if err != nil {
		t.Fatalf("failed to open sqlite store: %v", err)
	}
	defer s.Close()
	exerciseStore(t, s)
}

func TestSQLiteStoreRequiresDSN(t *testing.T) {
	if _, err := NewSQLiteStore(); err == nil {
		t.Error("expected error when DSN missing")
	}
}

func TestPostgresStoreRequiresDSN(t *testing.T) {
	if _, err := NewPostgresStore(); err == nil {
		t.Error("expected error when DSN missing")
	}
}

func TestInMemoryStoreRequiresIDs(t *testing.T) {
	s := NewInMemoryStore()
	if err := s.SaveScript(models.Script{}); err == nil {
		t.Error("expected error for script without ID")
	}
	if err := s.AddCallLog(models.CallLog{}); err == nil {
		t.Error("expected error for call log without ID")
	}
}
