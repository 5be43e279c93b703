package session

import (
	"context"
	"strings"
	"testing"

	"github.com/keshavmahale005/ScriptAgent-CHATBOT/internal/flow"
	"github.com/keshavmahale005/ScriptAgent-CHATBOT/internal/genai"
	"github.com/keshavmahale005/ScriptAgent-CHATBOT/internal/messaging"
	"github.com/keshavmahale005/ScriptAgent-CHATBOT/internal/models"
	"github.com/keshavmahale005/ScriptAgent-CHATBOT/internal/store"
)

const sessionScript = `Script Name: Solar Consultation
Agent Name: Alex

OPENING
Agent: "Hi, is this {{first_name}}? This is Alex calling from Sunrise Solar."

INTRODUCTION
Agent: "We help homeowners cut their electricity bills with rooftop solar."

PRICING DETAILS
Agent: "A typical installation costs between four and six thousand pounds and pays for itself in seven years."

BOOKING CONFIRMATION
Agent: "Great, I will book your free consultation for {{appointment_time}}."

CLOSING
Agent: "Thank you so much for your time today. Goodbye!"
`

// fixedResponder returns a canned response without calling any model.
type fixedResponder struct {
	resp   genai.Response
	called bool
}

func (f *fixedResponder) Respond(_ context.Context, _ flow.Decision, _ []genai.Turn, _ map[string]string) genai.Response {
	f.called = true
	return f.resp
}

func testScript() models.Script {
	return models.Script{
		ID:       "scr_test",
		Name:     "Solar Consultation",
		Text:     sessionScript,
		CallType: models.CallTypeOutbound,
		Metadata: map[string]string{"agent_name": "Alex"},
	}
}

func newTestManager(t *testing.T, opts ManagerOpts) (*Manager, *Session) {
	t.Helper()
	m := NewManager(store.NewInMemoryStore(), opts)
	s, dec, err := m.Create(context.Background(), testScript(), "")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if dec.AgentLine == "" {
		t.Fatal("expected a non-empty opening line")
	}
	return m, s
}

func TestCreateStartsAtOpening(t *testing.T) {
	m, s := newTestManager(t, ManagerOpts{})
	if m.Count() != 1 {
		t.Fatalf("expected 1 live session, got %d", m.Count())
	}
	if !strings.HasPrefix(s.ID, "sess_") {
		t.Errorf("expected sess_ prefix, got %q", s.ID)
	}
	turns := s.Transcript()
	if len(turns) != 1 {
		t.Fatalf("expected 1 opening turn, got %d", len(turns))
	}
	if turns[0].Role != models.RoleAgent {
		t.Errorf("expected agent opening turn, got role %q", turns[0].Role)
	}
	if turns[0].Section != "OPENING" {
		t.Errorf("expected OPENING section, got %q", turns[0].Section)
	}
}

func TestTurnAdvancesAndRecordsTranscript(t *testing.T) {
	m, s := newTestManager(t, ManagerOpts{})
	res, err := m.Turn(context.Background(), s.ID, "Yes, speaking")
	if err != nil {
		t.Fatalf("Turn failed: %v", err)
	}
	if res.Decision.Section != "INTRODUCTION" {
		t.Errorf("expected INTRODUCTION after affirmation, got %q", res.Decision.Section)
	}
	if res.Method != genai.MethodScriptExact {
		t.Errorf("expected script_exact without a responder, got %q", res.Method)
	}
	if res.Reply != res.Decision.AgentLine {
		t.Errorf("expected reply to equal the script line, got %q", res.Reply)
	}
	turns := s.Transcript()
	if len(turns) != 3 {
		t.Fatalf("expected 3 turns (opening, user, agent), got %d", len(turns))
	}
	if turns[1].Role != models.RoleUser || turns[1].Content != "Yes, speaking" {
		t.Errorf("unexpected user turn: %+v", turns[1])
	}
	if res.Progress.Percentage <= 0 {
		t.Errorf("expected progress after one completed section, got %v", res.Progress.Percentage)
	}
}

func TestTurnUsesResponder(t *testing.T) {
	responder := &fixedResponder{resp: genai.Response{
		Text:   "We help homeowners cut their electricity bills. Shall I explain?",
		Method: genai.MethodGenerated,
	}}
	m, s := newTestManager(t, ManagerOpts{Responder: responder})
	res, err := m.Turn(context.Background(), s.ID, "yes please")
	if err != nil {
		t.Fatalf("Turn failed: %v", err)
	}
	if !responder.called {
		t.Fatal("expected responder to be invoked")
	}
	if res.Method != genai.MethodGenerated {
		t.Errorf("expected generated method, got %q", res.Method)
	}
	if res.Reply != responder.resp.Text {
		t.Errorf("expected responder text, got %q", res.Reply)
	}
}

func TestTurnRejectsInvalidGeneratedReply(t *testing.T) {
	responder := &fixedResponder{resp: genai.Response{Text: "ok", Method: genai.MethodGenerated}}
	m, s := newTestManager(t, ManagerOpts{Responder: responder})
	res, err := m.Turn(context.Background(), s.ID, "yes")
	if err != nil {
		t.Fatalf("Turn failed: %v", err)
	}
	if res.Method != genai.MethodFallback {
		t.Errorf("expected fallback after validation rejection, got %q", res.Method)
	}
	if res.Reply != res.Decision.AgentLine {
		t.Errorf("expected the script line after rejection, got %q", res.Reply)
	}
}

func TestQuestionSurfacesRelatedSection(t *testing.T) {
	m, s := newTestManager(t, ManagerOpts{})
	res, err := m.Turn(context.Background(), s.ID, "how much does a typical installation cost in pounds?")
	if err != nil {
		t.Fatalf("Turn failed: %v", err)
	}
	if !res.Signal.IsQuestion {
		t.Fatal("expected the utterance to classify as a question")
	}
	if res.Related == nil {
		t.Fatal("expected a related section for a pricing question")
	}
	if res.Related.Section != "PRICING DETAILS" {
		t.Errorf("expected PRICING DETAILS, got %q", res.Related.Section)
	}
}

func TestEndPersistsCallLogAndNotifies(t *testing.T) {
	st := store.NewInMemoryStore()
	sim := messaging.NewSimService()
	m := NewManager(st, ManagerOpts{Notifier: sim})
	s, _, err := m.Create(context.Background(), testScript(), "+44 7700 900123")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, err := m.Turn(context.Background(), s.ID, "yes"); err != nil {
		t.Fatalf("Turn failed: %v", err)
	}

	log, err := m.End(context.Background(), s.ID)
	if err != nil {
		t.Fatalf("End failed: %v", err)
	}
	if m.Count() != 0 {
		t.Errorf("expected session removal, %d remain", m.Count())
	}
	if !strings.HasPrefix(log.ID, "call_") {
		t.Errorf("expected call_ prefix, got %q", log.ID)
	}
	if len(log.Turns) != 3 {
		t.Errorf("expected 3 transcript turns, got %d", len(log.Turns))
	}

	stored, err := st.GetCallLog(log.ID)
	if err != nil {
		t.Fatalf("GetCallLog failed: %v", err)
	}
	if stored == nil || stored.SessionID != s.ID {
		t.Fatalf("expected persisted call log for session %s, got %+v", s.ID, stored)
	}

	sent := sim.Sent()
	if len(sent) != 1 {
		t.Fatalf("expected 1 summary notification, got %d", len(sent))
	}
	if sent[0].To != "+447700900123" {
		t.Errorf("expected canonicalized recipient, got %q", sent[0].To)
	}
	if !strings.Contains(sent[0].Body, s.ID) {
		t.Errorf("expected session ID in summary, got %q", sent[0].Body)
	}
}

func TestCreateRejectsInvalidNotifyNumber(t *testing.T) {
	m := NewManager(store.NewInMemoryStore(), ManagerOpts{Notifier: messaging.NewSimService()})
	if _, _, err := m.Create(context.Background(), testScript(), "not-a-number"); err == nil {
		t.Fatal("expected an error for an invalid notify number")
	}
}

func TestTurnOnMissingSession(t *testing.T) {
	m := NewManager(store.NewInMemoryStore(), ManagerOpts{})
	if _, err := m.Turn(context.Background(), "sess_missing", "hello"); err == nil {
		t.Fatal("expected an error for a missing session")
	}
}

func TestEndTwice(t *testing.T) {
	m, s := newTestManager(t, ManagerOpts{})
	if _, err := m.End(context.Background(), s.ID); err != nil {
		t.Fatalf("first End failed: %v", err)
	}
	if _, err := m.End(context.Background(), s.ID); err == nil {
		t.Fatal("expected an error ending an already-ended session")
	}
}

func TestResetRestartsCall(t *testing.T) {
	m, s := newTestManager(t, ManagerOpts{})
	if _, err := m.Turn(context.Background(), s.ID, "yes"); err != nil {
		t.Fatalf("Turn failed: %v", err)
	}

	dec := s.Reset()
	if dec.Section != "OPENING" {
		t.Errorf("expected OPENING after reset, got %q", dec.Section)
	}
	turns := s.Transcript()
	if len(turns) != 1 {
		t.Errorf("expected transcript reset to the opening turn, got %d turns", len(turns))
	}
	progress := s.Progress()
	if len(progress.CompletedSections) != 0 {
		t.Errorf("expected no completed sections after reset, got %v", progress.CompletedSections)
	}
}
