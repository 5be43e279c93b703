// Package session owns live call state. Each session binds one script's flow
// engine to one caller: it serializes turns, keeps the transcript, and emits
// a call log when the call ends. Sessions never share mutable state; the
// manager only guards its own registry.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/keshavmahale005/ScriptAgent-CHATBOT/internal/flow"
	"github.com/keshavmahale005/ScriptAgent-CHATBOT/internal/genai"
	"github.com/keshavmahale005/ScriptAgent-CHATBOT/internal/intent"
	"github.com/keshavmahale005/ScriptAgent-CHATBOT/internal/match"
	"github.com/keshavmahale005/ScriptAgent-CHATBOT/internal/messaging"
	"github.com/keshavmahale005/ScriptAgent-CHATBOT/internal/models"
	"github.com/keshavmahale005/ScriptAgent-CHATBOT/internal/script"
	"github.com/keshavmahale005/ScriptAgent-CHATBOT/internal/store"
	"github.com/keshavmahale005/ScriptAgent-CHATBOT/internal/util"
	"github.com/keshavmahale005/ScriptAgent-CHATBOT/internal/validate"
)

// Responder turns a flow decision into final spoken text. Implemented by
// genai.Client; nil means decisions are delivered as script text directly.
type Responder interface {
	Respond(ctx context.Context, dec flow.Decision, transcript []genai.Turn, metadata map[string]string) genai.Response
}

// TurnResult is everything one conversation turn produces.
type TurnResult struct {
	Decision flow.Decision       `json:"decision"`
	Reply    string              `json:"reply"`
	Method   string              `json:"method"`
	Signal   intent.Result       `json:"signal"`
	Progress flow.ProgressReport `json:"progress"`
	// Related is the best script match for a user question, when one exists
	// and the turn did not advance past it.
	Related *match.Result `json:"related,omitempty"`
}

// Session is one live call.
type Session struct {
	ID       string
	ScriptID string
	CallType string

	mu       sync.Mutex
	engine   *flow.Engine
	state    *flow.ConversationState
	matcher  *match.Matcher
	metadata map[string]string
	turns    []models.Turn
	started  time.Time
	ended    bool
	notify   string
}

// Manager creates, tracks and ends sessions. Safe for concurrent use.
type Manager struct {
	mu        sync.RWMutex
	sessions  map[string]*Session
	st        store.Store
	responder Responder
	notifier  messaging.Service
}

// ManagerOpts configures optional collaborators of a Manager.
type ManagerOpts struct {
	Responder Responder
	Notifier  messaging.Service
}

// NewManager builds a session manager over the given store. Responder and
// notifier are optional.
func NewManager(st store.Store, opts ManagerOpts) *Manager {
	return &Manager{
		sessions:  make(map[string]*Session),
		st:        st,
		responder: opts.Responder,
		notifier:  opts.Notifier,
	}
}

// Create parses the script, builds its engine and matcher, and registers a
// new session. The returned decision is the opening line.
func (m *Manager) Create(ctx context.Context, sc models.Script, notifyNumber string) (*Session, flow.Decision, error) {
	doc := script.Parse(sc.Text)
	engine := flow.NewEngine(doc)
	matcher, err := match.New(ctx, doc)
	if err != nil {
		return nil, flow.Decision{}, fmt.Errorf("failed to build section matcher: %w", err)
	}

	if notifyNumber != "" && m.notifier != nil {
		canonical, err := m.notifier.ValidateAndCanonicalizeRecipient(notifyNumber)
		if err != nil {
			return nil, flow.Decision{}, fmt.Errorf("invalid notify number: %w", err)
		}
		notifyNumber = canonical
	}

	s := &Session{
		ID:       util.GenerateSessionID(),
		ScriptID: sc.ID,
		CallType: sc.CallType,
		engine:   engine,
		state:    flow.NewConversationState(),
		matcher:  matcher,
		metadata: sc.Metadata,
		started:  time.Now().UTC(),
		notify:   notifyNumber,
	}

	dec := engine.Start(s.state)
	s.appendAgentTurn(dec)

	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()

	slog.Info("session.Manager.Create: session started",
		"sessionID", s.ID, "scriptID", sc.ID, "callType", sc.CallType, "openingSection", dec.Section)
	return s, dec, nil
}

// Get returns a live session by ID, or nil.
func (m *Manager) Get(id string) *Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sessions[id]
}

// Turn runs one conversation turn on a session. Turns on the same session
// are serialized; sessions never block each other.
func (m *Manager) Turn(ctx context.Context, id, input string) (*TurnResult, error) {
	s := m.Get(id)
	if s == nil {
		return nil, fmt.Errorf("session %s not found", id)
	}
	return s.turn(ctx, m.responder, input)
}

func (s *Session) turn(ctx context.Context, responder Responder, input string) (*TurnResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		return nil, fmt.Errorf("session %s already ended", s.ID)
	}

	signal := intent.Classify(input)
	s.turns = append(s.turns, models.Turn{
		Role:      models.RoleUser,
		Content:   input,
		Section:   s.state.CurrentSection,
		Phase:     s.state.Phase,
		Intent:    signal.Intent,
		Sentiment: signal.Sentiment,
		Time:      time.Now().UTC(),
	})

	dec := s.engine.Step(s.state, input, signal)

	reply := dec.AgentLine
	method := genai.MethodScriptExact
	if responder != nil {
		resp := responder.Respond(ctx, dec, s.recentGenaiTurns(), s.metadata)
		reply = resp.Text
		method = resp.Method
	}
	if method == genai.MethodGenerated {
		if report := validate.Response(reply, dec.AgentLine); !report.Valid {
			slog.Warn("session.Session.turn: generated reply failed validation, using script line",
				"sessionID", s.ID, "issues", report.Issues, "confidence", report.Confidence)
			reply = dec.AgentLine
			method = genai.MethodFallback
		}
	}

	result := &TurnResult{
		Decision: dec,
		Reply:    reply,
		Method:   method,
		Signal:   signal,
		Progress: s.engine.Progress(s.state),
	}

	// A question that does not move the script forward gets the closest
	// matching section surfaced so the caller can quote it.
	if signal.IsQuestion && !dec.Terminal {
		if best, ok := s.matcher.Best(ctx, input); ok {
			result.Related = &best
		}
	}

	s.turns = append(s.turns, models.Turn{
		Role:    models.RoleAgent,
		Content: reply,
		Section: dec.Section,
		Phase:   dec.Phase,
		Time:    time.Now().UTC(),
	})

	slog.Debug("session.Session.turn: turn handled",
		"sessionID", s.ID, "intent", signal.Intent, "section", dec.Section, "phase", dec.Phase, "terminal", dec.Terminal)
	return result, nil
}

// recentGenaiTurns converts the tail of the transcript for generation
// context. Caller holds the session mutex.
func (s *Session) recentGenaiTurns() []genai.Turn {
	const window = 6
	start := 0
	if len(s.turns) > window {
		start = len(s.turns) - window
	}
	out := make([]genai.Turn, 0, len(s.turns)-start)
	for _, t := range s.turns[start:] {
		out = append(out, genai.Turn{Role: t.Role, Content: t.Content})
	}
	return out
}

// End finalizes a session: persists the call log, sends the optional SMS
// summary and removes the session from the registry.
func (m *Manager) End(ctx context.Context, id string) (*models.CallLog, error) {
	m.mu.Lock()
	s, ok := m.sessions[id]
	if ok {
		delete(m.sessions, id)
	}
	m.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("session %s not found", id)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.ended = true

	progress := s.engine.Progress(s.state)
	log := models.CallLog{
		ID:                util.GenerateCallID(),
		SessionID:         s.ID,
		ScriptID:          s.ScriptID,
		CallType:          s.CallType,
		Turns:             append([]models.Turn(nil), s.turns...),
		CompletedSections: progress.CompletedSections,
		Progress:          progress.Percentage,
		CollectedData:     progress.CollectedData,
		StartedAt:         s.started,
		EndedAt:           time.Now().UTC(),
	}
	if err := m.st.AddCallLog(log); err != nil {
		return nil, fmt.Errorf("failed to persist call log: %w", err)
	}

	if s.notify != "" && m.notifier != nil {
		body := fmt.Sprintf("Call %s finished: %.0f%% of script completed, %d turns.",
			s.ID, log.Progress, len(log.Turns))
		if err := m.notifier.SendMessage(ctx, s.notify, body); err != nil {
			slog.Warn("session.Manager.End: summary notification failed", "sessionID", s.ID, "error", err)
		}
	}

	slog.Info("session.Manager.End: session ended",
		"sessionID", s.ID, "progress", log.Progress, "turns", len(log.Turns))
	return &log, nil
}

// Count returns the number of live sessions.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Progress snapshots a session without mutating it.
func (s *Session) Progress() flow.ProgressReport {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine.Progress(s.state)
}

// Reset restarts the call from the opening line, clearing the transcript
// and collected data. The session keeps its ID and registration.
func (s *Session) Reset() flow.Decision {
	s.mu.Lock()
	defer s.mu.Unlock()
	dec := s.engine.Start(s.state)
	s.turns = nil
	s.ended = false
	s.appendAgentTurn(dec)
	slog.Info("session.Session.Reset: call restarted", "sessionID", s.ID, "openingSection", dec.Section)
	return dec
}

// Transcript returns a copy of the turns so far.
func (s *Session) Transcript() []models.Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Turn(nil), s.turns...)
}

func (s *Session) appendAgentTurn(dec flow.Decision) {
	s.turns = append(s.turns, models.Turn{
		Role:    models.RoleAgent,
		Content: dec.AgentLine,
		Section: dec.Section,
		Phase:   dec.Phase,
		Time:    time.Now().UTC(),
	})
}
