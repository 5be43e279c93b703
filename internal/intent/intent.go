// Package intent implements the deterministic user-input classifier used by
// the flow engine. It scores a fixed label set with keyword, phrase and
// fuzzy-keyword matches; no model call is ever made here, so classification
// is fast and reproducible.
package intent

import (
	"log/slog"
	"regexp"
	"sort"
	"strings"

	"github.com/agext/levenshtein"
)

// Intent labels, strongest-evidence first. Tie scores resolve in this order.
const (
	Positive    = "POSITIVE"
	Negative    = "NEGATIVE"
	Question    = "QUESTION"
	Uncertain   = "UNCERTAIN"
	Objection   = "OBJECTION"
	RequestInfo = "REQUEST_INFO"
	Busy        = "BUSY"
	Frustrated  = "FRUSTRATED"
	Neutral     = "NEUTRAL"
)

// Sentiment values derived from intent scores, checked in fixed priority
// order NEGATIVE, POSITIVE, UNCERTAIN, NEUTRAL.
const (
	SentimentPositive  = "POSITIVE"
	SentimentNegative  = "NEGATIVE"
	SentimentUncertain = "UNCERTAIN"
	SentimentNeutral   = "NEUTRAL"
)

const (
	keywordWeight = 1.0
	phraseWeight  = 1.5
	fuzzyWeight   = 0.5
	// fuzzyThreshold is the minimum levenshtein similarity for a token to
	// count as a fuzzy keyword hit.
	fuzzyThreshold = 0.80
	// secondaryThreshold is the minimum score for an intent to appear in
	// Result.AllIntents alongside the primary one.
	secondaryThreshold = 0.5
)

// pattern pairs a label with its scoring vocabulary. Order in the patterns
// slice is the tie-break priority.
type pattern struct {
	label    string
	keywords []string
	phrases  []string
}

var patterns = []pattern{
	{
		label:    Positive,
		keywords: []string{"yes", "yeah", "yep", "yea", "sure", "ok", "okay", "definitely", "absolutely", "correct", "right", "great", "good", "fine", "perfect", "sounds good"},
		phrases:  []string{"that works", "go ahead", "let's do it", "i agree", "that's right", "sounds great", "why not"},
	},
	{
		label:    Negative,
		keywords: []string{"no", "nope", "nah", "not", "never", "wrong", "incorrect", "disagree"},
		phrases:  []string{"no thanks", "not really", "i don't think so", "not interested", "no way"},
	},
	{
		label:    Question,
		keywords: []string{"what", "when", "where", "who", "why", "how", "which", "can", "could", "would", "will", "do", "does", "is", "are"},
		phrases:  []string{"tell me", "i want to know", "can you explain", "what about"},
	},
	{
		label:    Uncertain,
		keywords: []string{"maybe", "perhaps", "possibly", "unsure", "dunno", "hmm", "um", "uh"},
		phrases:  []string{"i'm not sure", "i don't know", "let me think", "i need to think", "not certain", "hard to say"},
	},
	{
		label:    Objection,
		keywords: []string{"expensive", "cost", "scam", "suspicious", "pushy", "salesy"},
		phrases:  []string{"too expensive", "can't afford", "not worth it", "sounds like a scam", "don't trust", "already have", "don't need"},
	},
	{
		label:    RequestInfo,
		keywords: []string{"details", "information", "info", "explain", "clarify", "specifics"},
		phrases:  []string{"more information", "more details", "tell me more", "how does it work", "what does that mean", "send me"},
	},
	{
		label:    Busy,
		keywords: []string{"busy", "later", "driving", "working", "meeting"},
		phrases:  []string{"not a good time", "call back", "call me later", "in a meeting", "can't talk", "another time", "bad time"},
	},
	{
		label:    Frustrated,
		keywords: []string{"stop", "annoying", "ridiculous", "harassing", "angry"},
		phrases:  []string{"stop calling", "leave me alone", "take me off", "don't call again", "how many times", "fed up", "sick of"},
	},
}

var questionWords = map[string]bool{
	"what": true, "when": true, "where": true, "who": true, "why": true,
	"how": true, "which": true, "can": true, "could": true, "would": true,
	"will": true, "do": true, "does": true, "is": true, "are": true,
	"should": true, "may": true,
}

// Result is the full classification of one user utterance.
type Result struct {
	// Intent is the single best label, Neutral when nothing scored.
	Intent string `json:"intent"`
	// Confidence is the winning normalized score in [0,1].
	Confidence float64 `json:"confidence"`
	// AllIntents maps every label scoring at least 0.5 to its score. The
	// primary intent is always present when it scored above zero.
	AllIntents map[string]float64 `json:"all_intents"`
	// Entities groups extracted values by kind (amounts, phones, emails,
	// dates, times, potential_names).
	Entities map[string][]string `json:"entities,omitempty"`
	// Sentiment is POSITIVE, NEGATIVE, UNCERTAIN or NEUTRAL.
	Sentiment string `json:"sentiment"`
	// IsQuestion reports whether the input reads as a question.
	IsQuestion bool `json:"is_question"`
}

var (
	amountRe  = regexp.MustCompile(`\$?(\d+(?:,\d{3})*(?:\.\d{2})?)\s*(?:dollars|usd|pounds)?`)
	phoneRe   = regexp.MustCompile(`\b\d{3}[-.]?\d{3}[-.]?\d{4}\b`)
	emailRe   = regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)
	dateRe    = regexp.MustCompile(`(?i)\b(today|tomorrow|yesterday|monday|tuesday|wednesday|thursday|friday|saturday|sunday|january|february|march|april|may|june|july|august|september|october|november|december)\b`)
	timeRe    = regexp.MustCompile(`(?i)\b\d{1,2}:\d{2}\s*(?:am|pm)?\b`)
	capWordRe = regexp.MustCompile(`\b[A-Z][a-z]+\b`)
)

// Classify scores the input against every intent pattern and extracts
// entities. It always returns a usable Result; empty input is Neutral.
func Classify(input string) Result {
	res := Result{
		Intent:     Neutral,
		AllIntents: make(map[string]float64),
		Sentiment:  SentimentNeutral,
	}
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return res
	}
	lower := strings.ToLower(trimmed)

	scores := scoreAll(lower)
	best, bestScore := pickBest(scores)
	if bestScore > 0 {
		res.Intent = best
		res.Confidence = bestScore
		res.AllIntents[best] = bestScore
		for label, score := range scores {
			if label != best && score >= secondaryThreshold {
				res.AllIntents[label] = score
			}
		}
	}

	res.Entities = ExtractEntities(trimmed)
	res.IsQuestion = isQuestion(trimmed, lower)
	res.Sentiment = deriveSentiment(res.Intent, scores)

	slog.Debug("intent.Classify: classified input",
		"intent", res.Intent,
		"confidence", res.Confidence,
		"sentiment", res.Sentiment,
		"isQuestion", res.IsQuestion)
	return res
}

// scoreAll computes the normalized score for every label.
func scoreAll(lower string) map[string]float64 {
	tokens := tokenize(lower)
	scores := make(map[string]float64, len(patterns))
	for _, p := range patterns {
		score := 0.0
		for _, kw := range p.keywords {
			if containsToken(tokens, lower, kw) {
				score += keywordWeight
			} else if fuzzyHit(tokens, kw) {
				score += fuzzyWeight
			}
		}
		for _, ph := range p.phrases {
			if strings.Contains(lower, ph) {
				score += phraseWeight
			}
		}
		if score > 0 {
			norm := score / float64(len(p.keywords)+len(p.phrases))
			if norm > 1 {
				norm = 1
			}
			scores[p.label] = norm
		}
	}
	return scores
}

// pickBest returns the highest-scoring label, breaking ties by pattern
// declaration order so results never depend on map iteration.
func pickBest(scores map[string]float64) (string, float64) {
	best, bestScore := Neutral, 0.0
	for _, p := range patterns {
		if s, ok := scores[p.label]; ok && s > bestScore {
			best, bestScore = p.label, s
		}
	}
	return best, bestScore
}

// fuzzyHit reports whether any token is close enough to the keyword.
func fuzzyHit(tokens []string, keyword string) bool {
	if strings.Contains(keyword, " ") {
		return false
	}
	for _, tok := range tokens {
		if len(tok) < 3 || len(keyword) < 3 {
			continue
		}
		if levenshtein.Similarity(tok, keyword, nil) >= fuzzyThreshold {
			return true
		}
	}
	return false
}

// containsToken matches multi-word keywords as substrings, single words as
// whole tokens to avoid "not" matching inside "nothing".
func containsToken(tokens []string, lower, keyword string) bool {
	if strings.Contains(keyword, " ") {
		return strings.Contains(lower, keyword)
	}
	for _, tok := range tokens {
		if tok == keyword {
			return true
		}
	}
	return false
}

func tokenize(lower string) []string {
	return strings.FieldsFunc(lower, func(r rune) bool {
		return !(r >= 'a' && r <= 'z') && !(r >= '0' && r <= '9') && r != '\''
	})
}

// ExtractEntities pulls structured values from raw input. Capitalized words
// that are not sentence-leading are surfaced as potential names for the data
// collection stage to confirm.
func ExtractEntities(input string) map[string][]string {
	entities := make(map[string][]string)
	add := func(kind string, values []string) {
		if len(values) > 0 {
			entities[kind] = values
		}
	}

	var amounts []string
	for _, m := range amountRe.FindAllStringSubmatch(input, -1) {
		amounts = append(amounts, m[1])
	}
	add("amounts", amounts)
	add("phones", phoneRe.FindAllString(input, -1))
	add("emails", emailRe.FindAllString(input, -1))
	add("dates", dateRe.FindAllString(input, -1))
	add("times", timeRe.FindAllString(input, -1))

	var names []string
	for _, loc := range capWordRe.FindAllStringIndex(input, -1) {
		if loc[0] == 0 {
			continue
		}
		names = append(names, input[loc[0]:loc[1]])
	}
	add("potential_names", names)

	if len(entities) == 0 {
		return nil
	}
	return entities
}

// isQuestion checks for a question mark or an interrogative first word.
func isQuestion(trimmed, lower string) bool {
	if strings.Contains(trimmed, "?") {
		return true
	}
	fields := strings.Fields(lower)
	if len(fields) == 0 {
		return false
	}
	return questionWords[strings.Trim(fields[0], ".,!")]
}

// deriveSentiment maps the classification to a coarse polarity. Strong
// frustration or objection scores dominate positivity so an annoyed
// "yes fine whatever" still reads negative.
func deriveSentiment(primary string, scores map[string]float64) string {
	if scores[Frustrated] > 0.5 || scores[Objection] > 0.5 {
		return SentimentNegative
	}
	switch primary {
	case Negative, Frustrated, Objection:
		return SentimentNegative
	case Positive:
		return SentimentPositive
	case Uncertain:
		return SentimentUncertain
	}
	if scores[Positive] > 0.5 {
		return SentimentPositive
	}
	if scores[Uncertain] > 0.5 {
		return SentimentUncertain
	}
	return SentimentNeutral
}

// Labels returns every known intent label in priority order, Neutral last.
func Labels() []string {
	out := make([]string, 0, len(patterns)+1)
	for _, p := range patterns {
		out = append(out, p.label)
	}
	out = append(out, Neutral)
	return out
}

var stopWords = map[string]bool{
	"a": true, "an": true, "the": true, "is": true, "are": true, "was": true,
	"were": true, "be": true, "been": true, "i": true, "you": true, "he": true,
	"she": true, "it": true, "we": true, "they": true, "me": true, "my": true,
	"your": true, "this": true, "that": true, "and": true, "or": true,
	"but": true, "if": true, "of": true, "to": true, "in": true, "on": true,
	"at": true, "for": true, "with": true, "do": true, "does": true,
	"did": true, "have": true, "has": true, "had": true, "so": true,
	"just": true, "can": true, "will": true, "would": true, "there": true,
}

// ExtractKeywords returns the content words of an utterance: lowercased
// tokens with stop words and short tokens removed, deduplicated in order of
// first appearance.
func ExtractKeywords(input string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, tok := range tokenize(strings.ToLower(input)) {
		if len(tok) < 3 || stopWords[tok] || seen[tok] {
			continue
		}
		seen[tok] = true
		out = append(out, tok)
	}
	return out
}

// Keywords returns a copy of the vocabulary for a label, keywords then
// phrases, sorted within each group. Unknown labels yield nil.
func Keywords(label string) []string {
	for _, p := range patterns {
		if p.label != label {
			continue
		}
		kws := append([]string(nil), p.keywords...)
		phs := append([]string(nil), p.phrases...)
		sort.Strings(kws)
		sort.Strings(phs)
		return append(kws, phs...)
	}
	return nil
}
