// Package flow implements the per-conversation state machine that walks a
// parsed script. An Engine is built once from a Document and is read-only
// after construction; all mutable call state lives in ConversationState,
// owned by exactly one call session. Steps for one state must be serialized;
// independent sessions never share state.
package flow

import (
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/keshavmahale005/ScriptAgent-CHATBOT/internal/intent"
	"github.com/keshavmahale005/ScriptAgent-CHATBOT/internal/script"
)

// SectionType classifies a script section by its header keywords. It is
// computed once at engine construction and stable for the document lifetime.
type SectionType string

const (
	TypeOpening           SectionType = "OPENING"
	TypeIntroduction      SectionType = "INTRODUCTION"
	TypeDataCollection    SectionType = "DATA_COLLECTION"
	TypePropertyInfo      SectionType = "PROPERTY_INFO"
	TypeBooking           SectionType = "BOOKING"
	TypeObjectionHandling SectionType = "OBJECTION_HANDLING"
	TypeClosing           SectionType = "CLOSING"
	TypeConversation      SectionType = "CONVERSATION"
)

// Phase values that are not plain section types. START precedes the first
// turn, OBJECTION marks an interception, END marks the terminal state.
const (
	PhaseStart     = "START"
	PhaseObjection = "OBJECTION"
	PhaseEnd       = "END"
)

// Sentinel section names for non-script positions.
const (
	SectionEnd      = "END"
	sectionFallback = "FALLBACK"
)

// Fixed lines the engine emits when the script has nothing suitable.
const (
	defaultGreeting    = "Hello! Thank you for your interest."
	openingClarify     = "Sorry, may I confirm who I'm speaking with?"
	introductionAnswer = "I'd be happy to answer any questions you have. What would you like to know?"
	bookingPrompt      = "Would you like to proceed with booking the consultation?"
	terminalGoodbye    = "Thank you for your time. Goodbye!"
	fallbackClarify    = "I'm sorry, could you repeat that?"
)

// Decision is the engine's per-turn output: what the agent should say and
// where the conversation now stands.
type Decision struct {
	Section           string      `json:"section"`
	SectionType       SectionType `json:"section_type"`
	AgentLine         string      `json:"agent_line"`
	RequiredFields    []string    `json:"required_fields,omitempty"`
	Phase             string      `json:"phase"`
	ObjectionCategory string      `json:"objection_category,omitempty"`
	// Terminal is true once the script is exhausted and the goodbye line was
	// issued. Further steps keep returning terminal decisions.
	Terminal bool `json:"terminal"`
}

// ConversationState is the mutable per-call position. It is owned by the
// call session and must not be shared across calls.
type ConversationState struct {
	// CurrentSection is the active section name, "" before start, "END"
	// after the terminal decision.
	CurrentSection string `json:"current_section"`
	// CompletedSections holds section names already passed through, in
	// completion order. Names never repeat.
	CompletedSections []string `json:"completed_sections"`
	// CollectedData maps required field names to user-supplied values.
	CollectedData map[string]string `json:"collected_data"`
	// Phase is the SectionType of the active section, or START / OBJECTION /
	// END.
	Phase string `json:"phase"`
}

// NewConversationState returns a state positioned before the first turn.
func NewConversationState() *ConversationState {
	return &ConversationState{
		CollectedData: make(map[string]string),
		Phase:         PhaseStart,
	}
}

// Reset returns the state to the pre-call position. Used at the start of
// every call when states are reused.
func (s *ConversationState) Reset() {
	s.CurrentSection = ""
	s.CompletedSections = nil
	s.CollectedData = make(map[string]string)
	s.Phase = PhaseStart
}

func (s *ConversationState) isCompleted(name string) bool {
	for _, n := range s.CompletedSections {
		if n == name {
			return true
		}
	}
	return false
}

func (s *ConversationState) markCompleted(name string) {
	if name == "" || s.isCompleted(name) {
		return
	}
	s.CompletedSections = append(s.CompletedSections, name)
}

// ProgressReport is a read-only snapshot for observability and call logs.
type ProgressReport struct {
	CurrentSection    string            `json:"current_section"`
	Phase             string            `json:"phase"`
	CompletedSections []string          `json:"completed_sections"`
	TotalSections     int               `json:"total_sections"`
	Percentage        float64           `json:"progress_percentage"`
	CollectedData     map[string]string `json:"collected_data"`
}

// objectionCategory pairs a pushback category with the utterance keywords
// that trigger it. A category only fires when the script also carries an
// objection section whose name mentions the same category.
type objectionCategory struct {
	name     string
	triggers []string
}

var objectionCategories = []objectionCategory{
	{"not_good_time", []string{"not a good time", "busy", "call back", "later", "not now"}},
	{"not_interested", []string{"not interested", "don't want", "no thanks", "not for me"}},
	{"too_long", []string{"how long", "too long", "quick", "time"}},
	{"bad_reviews", []string{"review", "scam", "trust", "legitimate"}},
	{"thought_instant", []string{"instant", "immediate", "now", "straight away"}},
}

// Affirmation vocabularies per handling stage. INTRODUCTION accepts a
// broader set since users acknowledge a pitch in more varied ways.
var (
	openingAffirmations = []string{
		"yes", "yeah", "speaking", "this is", "yep", "yea", "sure", "ok", "okay",
	}
	introductionAffirmations = []string{
		"yes", "yeah", "yep", "yea", "sure", "ok", "okay", "go ahead", "right",
		"correct", "that's right", "fine", "good", "absolutely", "definitely",
	}
	bookingAffirmations = []string{
		"yes", "ok", "okay", "sure", "fine", "good", "yeah",
	}
)

var (
	flowEmailRe = regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)
	flowPhoneRe = regexp.MustCompile(`\b\d{10,11}\b`)
)

// sectionInfo is the engine's per-section record, keyed by document index.
// Name lookups resolve to the first section with a given name; later
// duplicates are reachable only by sequential advance.
type sectionInfo struct {
	index    int
	name     string
	typ      SectionType
	dialogue string
	fields   []string
}

// Engine walks one parsed document. Read-only after construction, so it is
// safe to share across independent sessions.
type Engine struct {
	doc      *script.Document
	sections []sectionInfo
	byName   map[string]int
	warnings []string
}

// NewEngine classifies every section of the document and freezes the
// traversal tables.
func NewEngine(doc *script.Document) *Engine {
	e := &Engine{
		doc:    doc,
		byName: make(map[string]int, len(doc.Sections)),
	}
	for i, sec := range doc.Sections {
		info := sectionInfo{
			index:    i,
			name:     sec.Name,
			typ:      ClassifySection(sec.Name),
			dialogue: sec.Dialogue,
			fields:   sec.RequiredFields,
		}
		if _, dup := e.byName[sec.Name]; dup {
			e.warnings = append(e.warnings, fmt.Sprintf("duplicate section name %q at index %d", sec.Name, i))
		} else {
			e.byName[sec.Name] = i
		}
		e.sections = append(e.sections, info)
	}
	if len(e.warnings) > 0 {
		slog.Warn("flow.NewEngine: structural warnings in script", "warnings", e.warnings)
	}
	slog.Debug("flow.NewEngine: engine built", "sections", len(e.sections))
	return e
}

// Warnings returns structural problems found at construction time, such as
// duplicate section names. The engine still operates on such scripts.
func (e *Engine) Warnings() []string {
	return append([]string(nil), e.warnings...)
}

// Document returns the parsed document the engine was built from.
func (e *Engine) Document() *script.Document {
	return e.doc
}

// ClassifySection maps a header name to its SectionType. Keyword groups are
// checked in a fixed order so overlapping names resolve consistently.
func ClassifySection(name string) SectionType {
	lower := strings.ToLower(name)
	contains := func(kws ...string) bool {
		for _, kw := range kws {
			if strings.Contains(lower, kw) {
				return true
			}
		}
		return false
	}
	switch {
	case contains("start", "greeting", "opening"):
		return TypeOpening
	case contains("introduction", "intro"):
		return TypeIntroduction
	case contains("personal details", "contact", "name", "title"):
		return TypeDataCollection
	case contains("property", "address"):
		return TypePropertyInfo
	case contains("booking", "appointment", "confirm"):
		return TypeBooking
	case contains("objection", "if user", "handle"):
		return TypeObjectionHandling
	case contains("end", "goodbye", "closing"):
		return TypeClosing
	default:
		return TypeConversation
	}
}

// Start positions the state at the first OPENING section, falling back to
// the first section in document order, then to a fixed greeting when the
// document has no sections at all.
func (e *Engine) Start(state *ConversationState) Decision {
	state.Reset()
	for _, info := range e.sections {
		if info.typ == TypeOpening {
			return e.enter(state, info)
		}
	}
	if len(e.sections) > 0 {
		return e.enter(state, e.sections[0])
	}
	state.CurrentSection = sectionFallback
	state.Phase = string(TypeConversation)
	slog.Debug("flow.Start: document has no sections, using default greeting")
	return Decision{
		Section:     sectionFallback,
		SectionType: TypeConversation,
		AgentLine:   defaultGreeting,
		Phase:       string(TypeConversation),
	}
}

// Step runs one turn. The signal must come from classifying the same
// utterance; the engine never calls the classifier itself.
func (e *Engine) Step(state *ConversationState, utterance string, signal intent.Result) Decision {
	lower := strings.ToLower(strings.TrimSpace(utterance))

	// Objections intercept everything, every turn, without touching the
	// completed set, so the conversation can resume where it left off.
	if dec, ok := e.interceptObjection(state, lower); ok {
		return dec
	}

	if state.CurrentSection == SectionEnd {
		return e.terminal(state)
	}

	current, ok := e.lookup(state.CurrentSection)
	if !ok {
		slog.Warn("flow.Step: current section not found, issuing fallback",
			"currentSection", state.CurrentSection)
		return Decision{
			Section:     sectionFallback,
			SectionType: TypeConversation,
			AgentLine:   fallbackClarify,
			Phase:       state.Phase,
		}
	}

	switch current.typ {
	case TypeOpening:
		return e.stepOpening(state, current, lower)
	case TypeIntroduction:
		return e.stepIntroduction(state, current, lower)
	case TypeDataCollection, TypePropertyInfo:
		return e.stepDataCollection(state, current, utterance, signal)
	case TypeBooking:
		return e.stepBooking(state, current, lower)
	default:
		return e.advance(state, current)
	}
}

// interceptObjection checks every objection category against the utterance
// and, on a hit, jumps to a same-category objection section.
func (e *Engine) interceptObjection(state *ConversationState, lower string) (Decision, bool) {
	if lower == "" {
		return Decision{}, false
	}
	for _, cat := range objectionCategories {
		if !matchesAny(lower, cat.triggers) {
			continue
		}
		for _, info := range e.sections {
			if info.typ != TypeObjectionHandling || !categoryInName(info.name, cat) {
				continue
			}
			state.CurrentSection = info.name
			state.Phase = PhaseObjection
			slog.Debug("flow.interceptObjection: objection intercepted",
				"category", cat.name, "section", info.name)
			return Decision{
				Section:           info.name,
				SectionType:       TypeObjectionHandling,
				AgentLine:         info.dialogue,
				RequiredFields:    info.fields,
				Phase:             PhaseObjection,
				ObjectionCategory: cat.name,
			}, true
		}
	}
	return Decision{}, false
}

// categoryInName reports whether an objection section's header mentions the
// category, either by its spelled-out name or one of its trigger keywords.
func categoryInName(name string, cat objectionCategory) bool {
	lower := strings.ToLower(name)
	if strings.Contains(lower, strings.ReplaceAll(cat.name, "_", " ")) {
		return true
	}
	return matchesAny(lower, cat.triggers)
}

func (e *Engine) stepOpening(state *ConversationState, current sectionInfo, lower string) Decision {
	if matchesAny(lower, openingAffirmations) {
		state.markCompleted(current.name)
		for _, info := range e.sections {
			if info.typ == TypeIntroduction && !state.isCompleted(info.name) {
				return e.enter(state, info)
			}
		}
		// No introduction section in this script: continue sequentially so
		// the conversation cannot stall.
		return e.advanceFrom(state, current)
	}
	return Decision{
		Section:        current.name,
		SectionType:    current.typ,
		AgentLine:      openingClarify,
		RequiredFields: []string{"first_name"},
		Phase:          string(current.typ),
	}
}

func (e *Engine) stepIntroduction(state *ConversationState, current sectionInfo, lower string) Decision {
	if matchesAny(lower, introductionAffirmations) {
		return e.advance(state, current)
	}
	return Decision{
		Section:        current.name,
		SectionType:    current.typ,
		AgentLine:      introductionAnswer,
		RequiredFields: current.fields,
		Phase:          string(current.typ),
	}
}

func (e *Engine) stepDataCollection(state *ConversationState, current sectionInfo, utterance string, signal intent.Result) Decision {
	extractData(state, current, utterance, signal)
	return e.advance(state, current)
}

func (e *Engine) stepBooking(state *ConversationState, current sectionInfo, lower string) Decision {
	if matchesAny(lower, bookingAffirmations) {
		dec := e.advance(state, current)
		if !dec.Terminal {
			dec.Phase = string(TypeBooking)
			state.Phase = string(TypeBooking)
		}
		return dec
	}
	return Decision{
		Section:        current.name,
		SectionType:    current.typ,
		AgentLine:      bookingPrompt,
		RequiredFields: current.fields,
		Phase:          string(current.typ),
	}
}

// extractData merges values from the utterance into collected_data. Typed
// extractors run first; an untyped utterance lands under the first
// still-empty required field.
func extractData(state *ConversationState, current sectionInfo, utterance string, signal intent.Result) {
	trimmed := strings.TrimSpace(utterance)
	if trimmed == "" {
		return
	}
	stored := false
	if email := flowEmailRe.FindString(trimmed); email != "" {
		state.CollectedData["email"] = email
		stored = true
	}
	if phone := flowPhoneRe.FindString(strings.ReplaceAll(trimmed, " ", "")); phone != "" {
		state.CollectedData["phone"] = phone
		stored = true
	}
	for kind, values := range signal.Entities {
		if kind == "potential_names" || len(values) == 0 {
			continue
		}
		if _, exists := state.CollectedData[kind]; !exists {
			state.CollectedData[kind] = values[0]
		}
	}
	if stored {
		return
	}
	for _, field := range current.fields {
		if _, exists := state.CollectedData[field]; !exists {
			state.CollectedData[field] = trimmed
			return
		}
	}
}

// advance implements the generic rule: complete the current section and move
// to the first later uncompleted non-objection section, or terminate.
func (e *Engine) advance(state *ConversationState, current sectionInfo) Decision {
	state.markCompleted(current.name)
	return e.advanceFrom(state, current)
}

func (e *Engine) advanceFrom(state *ConversationState, current sectionInfo) Decision {
	for i := current.index + 1; i < len(e.sections); i++ {
		info := e.sections[i]
		if info.typ == TypeObjectionHandling || state.isCompleted(info.name) {
			continue
		}
		return e.enter(state, info)
	}
	return e.terminal(state)
}

// enter moves the state onto a section and builds its decision. Empty
// dialogue falls back to a clarification so the agent always has a line.
func (e *Engine) enter(state *ConversationState, info sectionInfo) Decision {
	state.CurrentSection = info.name
	state.Phase = string(info.typ)
	line := info.dialogue
	if line == "" {
		line = fallbackClarify
	}
	dec := Decision{
		Section:        info.name,
		SectionType:    info.typ,
		AgentLine:      line,
		RequiredFields: info.fields,
		Phase:          string(info.typ),
	}
	// A closing section with nothing uncompleted after it is the end of the
	// script: its own dialogue doubles as the goodbye.
	if info.typ == TypeClosing && !e.hasRemainingAfter(state, info.index) {
		state.markCompleted(info.name)
		state.CurrentSection = SectionEnd
		state.Phase = PhaseEnd
		dec.Terminal = true
	}
	return dec
}

func (e *Engine) hasRemainingAfter(state *ConversationState, index int) bool {
	for i := index + 1; i < len(e.sections); i++ {
		info := e.sections[i]
		if info.typ == TypeObjectionHandling || state.isCompleted(info.name) {
			continue
		}
		return true
	}
	return false
}

// terminal issues the fixed goodbye and pins the state at END.
func (e *Engine) terminal(state *ConversationState) Decision {
	state.CurrentSection = SectionEnd
	state.Phase = PhaseEnd
	return Decision{
		Section:     SectionEnd,
		SectionType: TypeClosing,
		AgentLine:   terminalGoodbye,
		Phase:       string(TypeClosing),
		Terminal:    true,
	}
}

// Progress snapshots the conversation without mutating state. Objection
// sections are excluded from the total since they are detours, not steps.
func (e *Engine) Progress(state *ConversationState) ProgressReport {
	total := 0
	for _, info := range e.sections {
		if info.typ != TypeObjectionHandling {
			total++
		}
	}
	completed := 0
	for _, name := range state.CompletedSections {
		if idx, ok := e.byName[name]; ok && e.sections[idx].typ != TypeObjectionHandling {
			completed++
		}
	}
	pct := 0.0
	if total > 0 {
		pct = float64(completed) / float64(total) * 100
		if pct > 100 {
			pct = 100
		}
	}
	data := make(map[string]string, len(state.CollectedData))
	for k, v := range state.CollectedData {
		data[k] = v
	}
	return ProgressReport{
		CurrentSection:    state.CurrentSection,
		Phase:             state.Phase,
		CompletedSections: append([]string(nil), state.CompletedSections...),
		TotalSections:     total,
		Percentage:        pct,
		CollectedData:     data,
	}
}

func (e *Engine) lookup(name string) (sectionInfo, bool) {
	idx, ok := e.byName[name]
	if !ok {
		return sectionInfo{}, false
	}
	return e.sections[idx], true
}

func matchesAny(lower string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(lower, n) {
			return true
		}
	}
	return false
}
