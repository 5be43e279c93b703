// Package script provides the structural parser for call scripts.
//
// Scripts arrive as free text with no fixed schema. The parser recovers the
// document structure (metadata header, ordered sections, spoken agent lines,
// {{placeholder}} variables) using heuristics only, and never fails: the
// worst case is an empty-metadata document with a single fallback section.
package script

import (
	"log/slog"
	"regexp"
	"sort"
	"strings"
	"unicode"
)

// Agent-line conventions a script may use. Pattern discovery scans the start
// of the script and accepts every convention it finds for the rest of the
// parse; a script is free to mix them.
const (
	patternAgentColon = "agent_colon" // "Agent:" or "Agent (Name):"
	patternNameColon  = "name_colon"  // "Clare:", "Sarah:"
	patternNameParens = "name_parens" // "(Sarah):"
	patternQuotedOnly = "quoted_only" // standalone quoted line
)

// FallbackSectionName is the synthetic section created when a script has
// spoken lines but no detectable section headers.
const FallbackSectionName = "CONVERSATION"

const (
	// patternScanLimit bounds how many non-empty lines pattern discovery inspects.
	patternScanLimit = 100
	// metadataScanLimit bounds how many lines the metadata extractor inspects.
	metadataScanLimit = 30
	// headerScoreThreshold is the minimum heuristic score for a line to be
	// accepted as a section header.
	headerScoreThreshold = 2.0
)

var (
	agentColonRe   = regexp.MustCompile(`(?i)^Agent\s*(\([^)]*\))?:`)
	nameColonRe    = regexp.MustCompile(`^[A-Z][a-z]{2,15}:`)
	nameColonAnyRe = regexp.MustCompile(`^[A-Z][a-z]+:`)
	nameParensRe   = regexp.MustCompile(`^\([A-Z][a-z\s]+\):`)
	quotedOnlyRe   = regexp.MustCompile(`^"[^"]+"$`)
	roleMarkerRe   = regexp.MustCompile(`(?i)^(Agent|If|When|Unless|User|Customer)\s*[:(]`)
	conditionalRe  = regexp.MustCompile(`(?i)^(If|When|Unless)\s`)
	variableRe     = regexp.MustCompile(`\{\{([a-zA-Z_][a-zA-Z0-9_]*)\}\}`)

	// Cleaning patterns for spoken lines.
	cleanAgentPrefixRe = regexp.MustCompile(`(?i)^Agent\s*(\([^)]*\))?:\s*`)
	cleanNamePrefixRe  = regexp.MustCompile(`^[A-Z][a-z]+:\s*`)
	cleanParenPrefixRe = regexp.MustCompile(`^\([A-Z][a-z\s]+\):\s*`)
)

// sectionKeywords are stems that strongly suggest a line is a section header.
var sectionKeywords = []string{
	"start", "end", "opening", "closing", "introduction", "greeting",
	"collection", "details", "information", "booking", "confirmation",
	"objection", "handling", "qualification", "verification", "call",
}

// Section is one named block of a script. It belongs to exactly one Document.
type Section struct {
	// Name is the raw header text.
	Name string `json:"name"`
	// AgentLines holds the cleaned spoken lines in document order.
	AgentLines []string `json:"agent_lines"`
	// Content holds every line of the section, spoken or not.
	Content []string `json:"content"`
	// Dialogue is AgentLines joined with single spaces: the literal text the
	// agent says while this section is active.
	Dialogue string `json:"dialogue"`
	// RequiredFields lists placeholder names this section needs collected,
	// sorted for determinism.
	RequiredFields []string `json:"required_fields"`
	// IsConditional reports whether the header carries an IF/WHEN marker.
	IsConditional bool `json:"is_conditional"`
}

// Document is the immutable parse result for one script.
type Document struct {
	// Metadata maps normalized keys ("Script Name" becomes "script_name") to
	// values, recovered from "Key: Value" lines preceding the first section
	// header.
	Metadata map[string]string `json:"metadata"`
	// Sections in document order. This order is the flow engine's default
	// traversal order.
	Sections []Section `json:"sections"`
	// Variables lists every {{placeholder}} name found anywhere in the
	// script, sorted.
	Variables []string `json:"variables"`
}

// TotalAgentLines counts spoken lines across all sections.
func (d *Document) TotalAgentLines() int {
	n := 0
	for _, s := range d.Sections {
		n += len(s.AgentLines)
	}
	return n
}

// parser carries the per-parse state.
type parser struct {
	raw      string
	lines    []string
	patterns map[string]bool
	doc      *Document
}

// Parse converts raw script text into a Document. It never fails; malformed
// or empty input degrades to an empty document or a single fallback section.
func Parse(text string) *Document {
	p := &parser{
		raw: text,
		doc: &Document{Metadata: make(map[string]string)},
	}
	for _, line := range strings.Split(text, "\n") {
		p.lines = append(p.lines, strings.TrimRight(line, " \t\r"))
	}

	p.patterns = p.detectAgentPatterns()
	p.extractVariables()
	p.extractMetadata()
	p.parseSections()

	slog.Debug("script.Parse: parsed document",
		"sections", len(p.doc.Sections),
		"metadataKeys", len(p.doc.Metadata),
		"variables", len(p.doc.Variables),
		"agentLines", p.doc.TotalAgentLines())
	return p.doc
}

// detectAgentPatterns scans the start of the script for the spoken-line
// conventions it uses. If nothing is found the parser accepts all
// conventions, so an unusual script still yields dialogue.
func (p *parser) detectAgentPatterns() map[string]bool {
	found := make(map[string]bool)
	scanned := 0
	for _, line := range p.lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		scanned++
		if scanned > patternScanLimit {
			break
		}
		if agentColonRe.MatchString(line) {
			found[patternAgentColon] = true
		}
		if nameColonAnyRe.MatchString(line) {
			found[patternNameColon] = true
		}
		if nameParensRe.MatchString(line) {
			found[patternNameParens] = true
		}
		if quotedOnlyRe.MatchString(line) {
			found[patternQuotedOnly] = true
		}
	}
	if len(found) == 0 {
		slog.Debug("script.detectAgentPatterns: no conventions detected, accepting all")
		return map[string]bool{
			patternAgentColon: true,
			patternNameColon:  true,
			patternNameParens: true,
			patternQuotedOnly: true,
		}
	}
	slog.Debug("script.detectAgentPatterns: conventions detected", "count", len(found))
	return found
}

// isAgentLine reports whether a trimmed line is a spoken agent line under the
// detected conventions.
func (p *parser) isAgentLine(line string) bool {
	if line == "" {
		return false
	}
	if p.patterns[patternAgentColon] && agentColonRe.MatchString(line) {
		return true
	}
	if p.patterns[patternNameColon] && nameColonRe.MatchString(line) {
		return true
	}
	if p.patterns[patternNameParens] && nameParensRe.MatchString(line) {
		return true
	}
	if p.patterns[patternQuotedOnly] && quotedOnlyRe.MatchString(line) && len(line) > 10 {
		return true
	}
	return false
}

// isSectionHeader applies the score-based header heuristic. The threshold is
// a design constant: lines that barely miss it are absorbed into the previous
// section's content.
func (p *parser) isSectionHeader(line string) bool {
	line = strings.TrimSpace(line)
	if len(line) < 3 {
		return false
	}
	if roleMarkerRe.MatchString(line) {
		return false
	}
	if strings.HasPrefix(line, `"`) || strings.HasSuffix(line, `"`) {
		return false
	}
	if strings.HasPrefix(line, "(") {
		return false
	}
	// "Key: value" lines are metadata or content, not headers, unless the
	// whole line is shouted ("OBJECTION: NOT INTERESTED").
	if idx := strings.Index(line, ":"); idx >= 0 {
		if strings.TrimSpace(line[idx+1:]) != "" && !isAllUpper(line) {
			return false
		}
	}

	words := strings.Fields(line)
	if len(words) < 1 || len(words) > 8 {
		return false
	}
	if !hasUpper(line) {
		return false
	}

	score := 0.0
	if isAllUpper(line) {
		score += 3
	}
	if isTitleCase(line) {
		score += 2
	}
	lower := strings.ToLower(line)
	for _, kw := range sectionKeywords {
		if strings.Contains(lower, kw) {
			score += 2
			break
		}
	}
	if len(words) <= 4 {
		score++
	} else {
		score += 0.5
	}
	return score >= headerScoreThreshold
}

// extractMetadata pulls "Key: Value" pairs from the lines preceding the first
// accepted section header.
func (p *parser) extractMetadata() {
	for i, line := range p.lines {
		if i >= metadataScanLimit {
			break
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if p.isSectionHeader(line) {
			break
		}
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		lowerKey := strings.ToLower(key)
		if len(key) >= 30 || strings.HasPrefix(line, `"`) {
			continue
		}
		if strings.HasPrefix(lowerKey, "agent ") || strings.HasPrefix(lowerKey, "if ") || strings.HasPrefix(lowerKey, "when ") {
			continue
		}
		p.doc.Metadata[strings.ReplaceAll(lowerKey, " ", "_")] = value
	}
}

// extractVariables collects every {{identifier}} placeholder in the raw text.
func (p *parser) extractVariables() {
	seen := make(map[string]bool)
	for _, m := range variableRe.FindAllStringSubmatch(p.raw, -1) {
		seen[m[1]] = true
	}
	p.doc.Variables = sortedKeys(seen)
}

// parseSections walks the line sequence once, segmenting it into sections.
func (p *parser) parseSections() {
	var (
		name       string
		content    []string
		agentLines []string
		open       bool
	)
	flush := func() {
		if open {
			p.appendSection(name, content, agentLines)
		}
		content = nil
		agentLines = nil
	}

	for i := 0; i < len(p.lines); {
		line := strings.TrimSpace(p.lines[i])
		if line == "" {
			i++
			continue
		}
		if p.isSectionHeader(line) {
			flush()
			name = line
			open = true
			i++
			continue
		}
		if p.isAgentLine(line) {
			dialogue, consumed := p.absorbDialogue(i)
			if dialogue != "" {
				agentLines = append(agentLines, dialogue)
				content = append(content, dialogue)
			}
			i += consumed
			continue
		}
		content = append(content, line)
		i++
	}
	flush()

	// No headers anywhere: fall back to one synthetic section holding every
	// spoken line, so the document is never sectionless when dialogue exists.
	if len(p.doc.Sections) == 0 {
		all := p.collectAllAgentLines()
		if len(all) > 0 {
			p.appendSection(FallbackSectionName, all, all)
			slog.Debug("script.parseSections: no headers found, using fallback section", "agentLines", len(all))
		}
	}
}

// absorbDialogue greedily joins an agent line with the immediately following
// continuation lines into one spoken unit, then cleans it. Returns the
// cleaned dialogue and the number of raw lines consumed.
func (p *parser) absorbDialogue(start int) (string, int) {
	parts := []string{strings.TrimSpace(p.lines[start])}
	consumed := 1
	for i := start + 1; i < len(p.lines); i++ {
		next := strings.TrimSpace(p.lines[i])
		if next == "" || p.isSectionHeader(next) || p.isAgentLine(next) || conditionalRe.MatchString(next) {
			break
		}
		parts = append(parts, next)
		consumed++
	}
	return CleanAgentText(strings.Join(parts, " ")), consumed
}

// collectAllAgentLines gathers every spoken line in the script, used when no
// section structure was detected.
func (p *parser) collectAllAgentLines() []string {
	var out []string
	for _, line := range p.lines {
		line = strings.TrimSpace(line)
		if p.isAgentLine(line) {
			if cleaned := CleanAgentText(line); cleaned != "" {
				out = append(out, cleaned)
			}
		}
	}
	return out
}

// appendSection closes a section and derives its dialogue and required fields.
func (p *parser) appendSection(name string, content, agentLines []string) {
	dialogue := strings.TrimSpace(strings.Join(agentLines, " "))
	upper := strings.ToUpper(name)
	p.doc.Sections = append(p.doc.Sections, Section{
		Name:           name,
		AgentLines:     append([]string(nil), agentLines...),
		Content:        append([]string(nil), content...),
		Dialogue:       dialogue,
		RequiredFields: extractFields(dialogue, content),
		IsConditional:  strings.Contains(upper, "IF ") || strings.Contains(upper, "WHEN "),
	})
}

// extractFields returns the placeholder names appearing in a section's
// dialogue or content lines, sorted.
func extractFields(dialogue string, content []string) []string {
	seen := make(map[string]bool)
	for _, m := range variableRe.FindAllStringSubmatch(dialogue, -1) {
		seen[m[1]] = true
	}
	for _, line := range content {
		for _, m := range variableRe.FindAllStringSubmatch(line, -1) {
			seen[m[1]] = true
		}
	}
	return sortedKeys(seen)
}

// CleanAgentText strips role-label prefixes and wrapping quotes from a spoken
// line and collapses interior whitespace.
func CleanAgentText(text string) string {
	text = cleanAgentPrefixRe.ReplaceAllString(text, "")
	text = cleanNamePrefixRe.ReplaceAllString(text, "")
	text = cleanParenPrefixRe.ReplaceAllString(text, "")
	text = strings.Trim(text, `"'`)
	return strings.Join(strings.Fields(text), " ")
}

// OpeningMessage returns the first spoken line of the first opening-like
// section, falling back to the first spoken line anywhere, then to a fixed
// default greeting.
func (d *Document) OpeningMessage() string {
	startKeywords := []string{"start", "open", "greet", "begin", "hello"}
	for _, s := range d.Sections {
		lower := strings.ToLower(s.Name)
		for _, kw := range startKeywords {
			if strings.Contains(lower, kw) && len(s.AgentLines) > 0 {
				return s.AgentLines[0]
			}
		}
	}
	for _, s := range d.Sections {
		if len(s.AgentLines) > 0 {
			return s.AgentLines[0]
		}
	}
	return "Hello! How can I help you today?"
}

// hasUpper reports whether the line contains at least one uppercase letter.
func hasUpper(s string) bool {
	for _, r := range s {
		if unicode.IsUpper(r) {
			return true
		}
	}
	return false
}

// isAllUpper reports whether every cased character is uppercase (and at least
// one cased character exists).
func isAllUpper(s string) bool {
	cased := false
	for _, r := range s {
		if unicode.IsLower(r) {
			return false
		}
		if unicode.IsUpper(r) {
			cased = true
		}
	}
	return cased
}

// isTitleCase reports whether every alphabetic word starts with an uppercase
// letter followed only by lowercase letters.
func isTitleCase(s string) bool {
	words := strings.Fields(s)
	if len(words) == 0 {
		return false
	}
	sawWord := false
	for _, w := range words {
		runes := []rune(w)
		first := -1
		for i, r := range runes {
			if unicode.IsLetter(r) {
				first = i
				break
			}
		}
		if first == -1 {
			continue
		}
		sawWord = true
		if !unicode.IsUpper(runes[first]) {
			return false
		}
		for _, r := range runes[first+1:] {
			if unicode.IsUpper(r) {
				return false
			}
		}
	}
	return sawWord
}

func sortedKeys(m map[string]bool) []string {
	if len(m) == 0 {
		return nil
	}
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
