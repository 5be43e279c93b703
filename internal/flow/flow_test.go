package flow

import (
	"testing"

	"github.com/keshavmahale005/ScriptAgent-CHATBOT/internal/intent"
	"github.com/keshavmahale005/ScriptAgent-CHATBOT/internal/script"
)

const flowScript = `OPENING
Agent: Hi, is this Jane?

INTRODUCTION
Agent: I'm calling about the solar quote you requested.

CONTACT DETAILS
Agent: Could I grab your email address?

BOOKING
Agent: Shall I book you in for Thursday?

CLOSING
Agent: Thanks, bye!

OBJECTION NOT A GOOD TIME
Agent: No worries, I'll keep this under two minutes.

OBJECTION NOT INTERESTED
Agent: I understand, may I ask what put you off?
`

func newTestEngine(t *testing.T, text string) *Engine {
	t.Helper()
	return NewEngine(script.Parse(text))
}

func step(e *Engine, state *ConversationState, utterance string) Decision {
	return e.Step(state, utterance, intent.Classify(utterance))
}

func TestStartFindsOpening(t *testing.T) {
	e := newTestEngine(t, flowScript)
	state := NewConversationState()

	dec := e.Start(state)
	if dec.Section != "OPENING" {
		t.Errorf("expected OPENING section, got %q", dec.Section)
	}
	if dec.AgentLine != "Hi, is this Jane?" {
		t.Errorf("expected opening dialogue, got %q", dec.AgentLine)
	}
	if state.Phase != string(TypeOpening) {
		t.Errorf("expected OPENING phase, got %q", state.Phase)
	}
}

func TestStartEmptyDocument(t *testing.T) {
	e := newTestEngine(t, "")
	state := NewConversationState()

	dec := e.Start(state)
	if dec.AgentLine == "" {
		t.Error("expected a default greeting for an empty document")
	}
	if dec.SectionType != TypeConversation {
		t.Errorf("expected CONVERSATION type, got %s", dec.SectionType)
	}
}

func TestOpeningAffirmationAdvancesToIntroduction(t *testing.T) {
	e := newTestEngine(t, flowScript)
	state := NewConversationState()
	e.Start(state)

	dec := step(e, state, "Yes, speaking")
	if dec.Section != "INTRODUCTION" {
		t.Errorf("expected INTRODUCTION, got %q", dec.Section)
	}
	if !state.isCompleted("OPENING") {
		t.Error("expected OPENING in completed sections")
	}
}

func TestOpeningNonAffirmationReasks(t *testing.T) {
	e := newTestEngine(t, flowScript)
	state := NewConversationState()
	e.Start(state)

	dec := step(e, state, "who is this")
	if dec.Section != "OPENING" {
		t.Errorf("expected to stay on OPENING, got %q", dec.Section)
	}
	if len(state.CompletedSections) != 0 {
		t.Errorf("expected no completed sections, got %v", state.CompletedSections)
	}
	if len(dec.RequiredFields) != 1 || dec.RequiredFields[0] != "first_name" {
		t.Errorf("expected first_name clarification field, got %v", dec.RequiredFields)
	}
}

func TestExampleThreeSectionWalk(t *testing.T) {
	text := `OPENING
Agent: Hi, is this Jane?

INTRODUCTION
Agent: I'm calling about...

CLOSING
Agent: Thanks, bye!
`
	e := newTestEngine(t, text)
	state := NewConversationState()

	start := e.Start(state)
	if start.AgentLine != "Hi, is this Jane?" {
		t.Fatalf("unexpected start line %q", start.AgentLine)
	}

	first := step(e, state, "yes")
	if first.Section != "INTRODUCTION" || first.AgentLine != "I'm calling about..." {
		t.Fatalf("unexpected first step: %+v", first)
	}

	second := step(e, state, "yes")
	if !second.Terminal {
		t.Fatal("expected terminal decision on reaching CLOSING")
	}
	if second.AgentLine != "Thanks, bye!" {
		t.Errorf("expected closing dialogue, got %q", second.AgentLine)
	}
	if state.CurrentSection != SectionEnd {
		t.Errorf("expected current section END, got %q", state.CurrentSection)
	}
	if second.Phase != string(TypeClosing) {
		t.Errorf("expected CLOSING phase, got %q", second.Phase)
	}
}

func TestObjectionPrecedence(t *testing.T) {
	e := newTestEngine(t, flowScript)
	state := NewConversationState()
	e.Start(state)

	dec := step(e, state, "sorry, I'm really busy right now")
	if dec.Phase != PhaseObjection {
		t.Fatalf("expected OBJECTION phase, got %q", dec.Phase)
	}
	if dec.ObjectionCategory != "not_good_time" {
		t.Errorf("expected not_good_time category, got %q", dec.ObjectionCategory)
	}
	if dec.Section != "OBJECTION NOT A GOOD TIME" {
		t.Errorf("expected matching objection section, got %q", dec.Section)
	}
	if len(state.CompletedSections) != 0 {
		t.Errorf("objection must not complete sections, got %v", state.CompletedSections)
	}
}

func TestObjectionRequiresMatchingSection(t *testing.T) {
	e := newTestEngine(t, flowScript)
	state := NewConversationState()
	e.Start(state)

	// bad_reviews triggers exist but no objection section names that
	// category, so the opening handler runs instead.
	dec := step(e, state, "is this a scam")
	if dec.Phase == PhaseObjection {
		t.Fatalf("expected no objection interception, got %+v", dec)
	}
	if dec.Section != "OPENING" {
		t.Errorf("expected opening clarification, got %q", dec.Section)
	}
}

func TestDataCollection(t *testing.T) {
	e := newTestEngine(t, flowScript)
	state := NewConversationState()
	e.Start(state)
	step(e, state, "yes")
	step(e, state, "sure, go ahead")

	if state.CurrentSection != "CONTACT DETAILS" {
		t.Fatalf("expected CONTACT DETAILS, got %q", state.CurrentSection)
	}
	dec := step(e, state, "jane@example.com, 07700 900123")
	if got := state.CollectedData["email"]; got != "jane@example.com" {
		t.Errorf("expected email collected, got %q", got)
	}
	if got := state.CollectedData["phone"]; got != "07700900123" {
		t.Errorf("expected phone collected, got %q", got)
	}
	if dec.Section != "BOOKING" {
		t.Errorf("expected advance to BOOKING, got %q", dec.Section)
	}
}

func TestBookingAffirmation(t *testing.T) {
	e := newTestEngine(t, flowScript)
	state := NewConversationState()
	e.Start(state)
	step(e, state, "yes")
	step(e, state, "sure, go ahead")
	step(e, state, "jane@example.com")

	dec := step(e, state, "hmm let me see")
	if dec.Section != "BOOKING" || dec.AgentLine == "" {
		t.Fatalf("expected booking prompt, got %+v", dec)
	}

	dec = step(e, state, "yes please")
	if !dec.Terminal {
		t.Fatalf("expected terminal closing after booking, got %+v", dec)
	}
}

func TestMonotonicCompletion(t *testing.T) {
	e := newTestEngine(t, flowScript)
	state := NewConversationState()
	e.Start(state)

	inputs := []string{"busy", "yes", "go ahead", "jane@example.com", "not interested", "yes", "anything", "more"}
	prev := 0
	for _, in := range inputs {
		step(e, state, in)
		if len(state.CompletedSections) < prev {
			t.Fatalf("completed sections shrank after %q: %v", in, state.CompletedSections)
		}
		prev = len(state.CompletedSections)
	}
}

func TestTerminationAllAffirm(t *testing.T) {
	text := `OPENING
Agent: Hi, is this Jane?

INTRODUCTION
Agent: I'm calling about the survey.

SURVEY QUESTIONS
Agent: Do you have two minutes?

CLOSING
Agent: Goodbye!
`
	e := newTestEngine(t, text)
	state := NewConversationState()
	e.Start(state)

	var dec Decision
	steps := 0
	for steps < 10 {
		dec = step(e, state, "yes")
		steps++
		if dec.Terminal {
			break
		}
	}
	if !dec.Terminal {
		t.Fatal("conversation never terminated")
	}
	if steps != 3 {
		t.Errorf("expected terminal decision on step 3, got %d", steps)
	}
	seen := map[string]int{}
	for _, name := range state.CompletedSections {
		seen[name]++
	}
	for _, name := range []string{"OPENING", "INTRODUCTION", "SURVEY QUESTIONS", "CLOSING"} {
		if seen[name] != 1 {
			t.Errorf("expected %s completed exactly once, got %d", name, seen[name])
		}
	}
}

func TestStepAfterEndStaysTerminal(t *testing.T) {
	e := newTestEngine(t, "CLOSING\nAgent: Bye now!\n")
	state := NewConversationState()
	e.Start(state)

	dec := step(e, state, "hello?")
	if !dec.Terminal {
		t.Errorf("expected terminal decision after END, got %+v", dec)
	}
}

func TestUnknownCurrentSectionFallback(t *testing.T) {
	e := newTestEngine(t, flowScript)
	state := NewConversationState()
	e.Start(state)
	state.CurrentSection = "GHOST SECTION"

	dec := step(e, state, "hello")
	if dec.AgentLine == "" {
		t.Error("expected a clarification line for unknown section")
	}
	if dec.Terminal {
		t.Error("fallback must not terminate the call")
	}
}

func TestProgress(t *testing.T) {
	e := newTestEngine(t, flowScript)
	state := NewConversationState()
	e.Start(state)

	report := e.Progress(state)
	if report.TotalSections != 5 {
		t.Errorf("expected 5 non-objection sections, got %d", report.TotalSections)
	}
	if report.Percentage != 0 {
		t.Errorf("expected 0%% at start, got %f", report.Percentage)
	}

	step(e, state, "yes")
	report = e.Progress(state)
	if report.Percentage != 20 {
		t.Errorf("expected 20%% after one section, got %f", report.Percentage)
	}
	if report.Percentage < 0 || report.Percentage > 100 {
		t.Errorf("progress out of bounds: %f", report.Percentage)
	}
}

func TestProgressEmptyDocument(t *testing.T) {
	e := newTestEngine(t, "")
	state := NewConversationState()

	report := e.Progress(state)
	if report.TotalSections != 0 || report.Percentage != 0 {
		t.Errorf("expected zero totals for empty document, got %+v", report)
	}
}

func TestReset(t *testing.T) {
	e := newTestEngine(t, flowScript)
	state := NewConversationState()
	e.Start(state)
	step(e, state, "yes")
	step(e, state, "go ahead")

	state.Reset()
	if state.CurrentSection != "" || len(state.CompletedSections) != 0 || len(state.CollectedData) != 0 {
		t.Errorf("expected cleared state, got %+v", state)
	}
	if state.Phase != PhaseStart {
		t.Errorf("expected START phase, got %q", state.Phase)
	}
}

func TestDuplicateSectionNamesWarn(t *testing.T) {
	text := `GREETING
Agent: Hello!

GREETING
Agent: Hello again!
`
	e := newTestEngine(t, text)
	if len(e.Warnings()) == 0 {
		t.Error("expected a duplicate-name structural warning")
	}
}

func TestClassifySection(t *testing.T) {
	cases := []struct {
		name string
		want SectionType
	}{
		{"OPENING", TypeOpening},
		{"CALL START", TypeOpening},
		{"INTRODUCTION", TypeIntroduction},
		{"CONTACT DETAILS", TypeDataCollection},
		{"PROPERTY ADDRESS", TypePropertyInfo},
		{"BOOKING CONFIRMATION", TypeBooking},
		{"OBJECTION HANDLING", TypeObjectionHandling},
		{"IF USER SAYS NO", TypeObjectionHandling},
		{"CLOSING", TypeClosing},
		{"RANDOM CHATTER", TypeConversation},
	}
	for _, c := range cases {
		if got := ClassifySection(c.name); got != c.want {
			t.Errorf("ClassifySection(%q) = %s, expected %s", c.name, got, c.want)
		}
	}
}
