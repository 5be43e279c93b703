// Package messaging delivers post-call SMS notifications, e.g. booking
// confirmations and call summaries sent after a session ends.
package messaging

import (
	"context"
	"fmt"
	"regexp"
	"strings"
)

// Service defines a pluggable message delivery abstraction.
type Service interface {
	// ValidateAndCanonicalizeRecipient validates and canonicalizes a
	// recipient phone number into E.164 form.
	ValidateAndCanonicalizeRecipient(recipient string) (string, error)

	// SendMessage sends a message to a recipient.
	SendMessage(ctx context.Context, to string, body string) error
}

var e164Re = regexp.MustCompile(`^\+[1-9]\d{6,14}$`)

// CanonicalizePhone strips separators and validates the number as E.164. A
// leading 00 international prefix is rewritten to +.
func CanonicalizePhone(recipient string) (string, error) {
	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '-', '(', ')', '.':
			return -1
		}
		return r
	}, strings.TrimSpace(recipient))
	if strings.HasPrefix(cleaned, "00") {
		cleaned = "+" + cleaned[2:]
	}
	if !e164Re.MatchString(cleaned) {
		return "", fmt.Errorf("invalid phone number %q", recipient)
	}
	return cleaned, nil
}
