// Package validate scores generated agent responses before delivery. A
// validation never blocks a call; it produces issues, warnings and a
// confidence score the caller can log or act on.
package validate

import (
	"fmt"
	"strings"
)

const (
	minResponseLength = 10
	maxResponseLength = 500

	// Overlap of response vocabulary with the script line below issueOverlap
	// is an issue, below warnOverlap a warning.
	issueOverlap = 0.2
	warnOverlap  = 0.4

	issuePenalty   = 0.3
	warningPenalty = 0.1
)

// hedging phrases suggest the model is editorializing instead of speaking.
var hedgingPhrases = []string{
	"as an ai", "i'm just an ai", "i cannot", "i am not able",
	"language model", "i don't have access", "as a chatbot",
}

// sensitiveTerms must never be requested over an outbound call.
var sensitiveTerms = []string{
	"password", "credit card", "card number", "ssn", "social security",
	"pin number", "bank account", "sort code", "cvv",
}

// Report is the outcome of validating one response.
type Report struct {
	Valid bool `json:"valid"`
	// Confidence starts at 1.0 and loses 0.3 per issue, 0.1 per warning,
	// floored at 0.
	Confidence float64  `json:"confidence"`
	Issues     []string `json:"issues,omitempty"`
	Warnings   []string `json:"warnings,omitempty"`
}

// Response checks a candidate agent line against the script line it should
// reflect. scriptLine may be empty when the turn is free-form.
func Response(text, scriptLine string) Report {
	r := Report{Valid: true, Confidence: 1.0}

	trimmed := strings.TrimSpace(text)
	if len(trimmed) < minResponseLength {
		r.issue(&r.Issues, fmt.Sprintf("response too short (%d chars)", len(trimmed)))
	}
	if len(trimmed) > maxResponseLength {
		r.issue(&r.Warnings, fmt.Sprintf("response too long (%d chars)", len(trimmed)))
	}

	lower := strings.ToLower(trimmed)
	for _, phrase := range hedgingPhrases {
		if strings.Contains(lower, phrase) {
			r.issue(&r.Issues, fmt.Sprintf("hedging phrase %q", phrase))
		}
	}
	for _, term := range sensitiveTerms {
		if strings.Contains(lower, term) {
			r.issue(&r.Issues, fmt.Sprintf("sensitive term %q", term))
		}
	}

	if rep := repeatedWord(lower); rep != "" {
		r.issue(&r.Warnings, fmt.Sprintf("word %q repeated excessively", rep))
	}

	if scriptLine != "" {
		overlap := vocabularyOverlap(lower, strings.ToLower(scriptLine))
		switch {
		case overlap < issueOverlap:
			r.issue(&r.Issues, fmt.Sprintf("response diverges from script (overlap %.2f)", overlap))
		case overlap < warnOverlap:
			r.issue(&r.Warnings, fmt.Sprintf("weak script overlap (%.2f)", overlap))
		}
	}

	for range r.Issues {
		r.Confidence -= issuePenalty
	}
	for range r.Warnings {
		r.Confidence -= warningPenalty
	}
	if r.Confidence < 0 {
		r.Confidence = 0
	}
	r.Valid = len(r.Issues) == 0
	return r
}

func (r *Report) issue(bucket *[]string, msg string) {
	*bucket = append(*bucket, msg)
}

// vocabularyOverlap returns the share of script words that appear in the
// response. Short stop-like words are ignored.
func vocabularyOverlap(response, scriptLine string) float64 {
	scriptWords := contentWords(scriptLine)
	if len(scriptWords) == 0 {
		return 1.0
	}
	responseWords := make(map[string]bool)
	for _, w := range contentWords(response) {
		responseWords[w] = true
	}
	hits := 0
	for _, w := range scriptWords {
		if responseWords[w] {
			hits++
		}
	}
	return float64(hits) / float64(len(scriptWords))
}

func contentWords(s string) []string {
	var out []string
	for _, w := range strings.Fields(s) {
		w = strings.Trim(w, ".,!?\"';:()")
		if len(w) > 3 {
			out = append(out, w)
		}
	}
	return out
}

// repeatedWord returns a content word occurring more than four times, or "".
func repeatedWord(lower string) string {
	counts := make(map[string]int)
	for _, w := range contentWords(lower) {
		counts[w]++
		if counts[w] > 4 {
			return w
		}
	}
	return ""
}
