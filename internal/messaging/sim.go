package messaging

import (
	"context"
	"log/slog"
	"sync"
)

// SimMessage is one message recorded by the simulator.
type SimMessage struct {
	To   string
	Body string
}

// SimService records messages instead of sending them. Used in tests and in
// local runs without Twilio credentials.
type SimService struct {
	mu   sync.Mutex
	sent []SimMessage
}

// NewSimService returns an empty simulator.
func NewSimService() *SimService {
	return &SimService{}
}

// ValidateAndCanonicalizeRecipient validates a phone number as E.164.
func (s *SimService) ValidateAndCanonicalizeRecipient(recipient string) (string, error) {
	return CanonicalizePhone(recipient)
}

// SendMessage records the message.
func (s *SimService) SendMessage(ctx context.Context, to string, body string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, SimMessage{To: to, Body: body})
	slog.Debug("SimService.SendMessage recorded", "to", to)
	return nil
}

// Sent returns a copy of every recorded message.
func (s *SimService) Sent() []SimMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]SimMessage(nil), s.sent...)
}
