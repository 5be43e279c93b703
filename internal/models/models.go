// Package models defines the shared domain and API types for ScriptAgent.
package models

import (
	"errors"
	"strings"
	"time"
)

// APIStatus represents the status of an API response.
type APIStatus string

const (
	APIStatusOK    APIStatus = "ok"
	APIStatusError APIStatus = "error"
)

// Call directions recorded on a call log.
const (
	CallTypeInbound  = "inbound"
	CallTypeOutbound = "outbound"
)

// Turn roles in a transcript.
const (
	RoleAgent = "agent"
	RoleUser  = "user"
)

// Script is a stored call script together with metadata recovered at upload.
type Script struct {
	ID        string            `json:"id"`
	Name      string            `json:"name"`
	Text      string            `json:"text"`
	CallType  string            `json:"call_type"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	Variables []string          `json:"variables,omitempty"`
	Sections  int               `json:"sections"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// Validate checks the fields a caller must supply when uploading a script.
func (s *Script) Validate() error {
	if strings.TrimSpace(s.Text) == "" {
		return errors.New("script text is required")
	}
	return nil
}

// Turn is one transcript entry of a call.
type Turn struct {
	Role    string    `json:"role"`
	Content string    `json:"content"`
	Section string    `json:"section,omitempty"`
	Phase   string    `json:"phase,omitempty"`
	// Intent and Sentiment are set on user turns only.
	Intent    string    `json:"intent,omitempty"`
	Sentiment string    `json:"sentiment,omitempty"`
	Time      time.Time `json:"time"`
}

// CallLog is the persisted record of one ended call: its type, the full turn
// history and the final progress snapshot.
type CallLog struct {
	ID                string            `json:"id"`
	SessionID         string            `json:"session_id"`
	ScriptID          string            `json:"script_id"`
	CallType          string            `json:"call_type"`
	Turns             []Turn            `json:"turns"`
	CompletedSections []string          `json:"completed_sections"`
	Progress          float64           `json:"progress_percentage"`
	CollectedData     map[string]string `json:"collected_data,omitempty"`
	StartedAt         time.Time         `json:"started_at"`
	EndedAt           time.Time         `json:"ended_at"`
}

// ScriptRequest is the body of a script upload. Name is optional; the parsed
// metadata supplies one when the text carries a "Script Name" line.
type ScriptRequest struct {
	Name string `json:"name,omitempty"`
	Text string `json:"text"`
}

// Validate ensures the upload carries script text.
func (r *ScriptRequest) Validate() error {
	if strings.TrimSpace(r.Text) == "" {
		return errors.New("text is required")
	}
	return nil
}

// TurnRequest is the body of a session turn submission.
type TurnRequest struct {
	Input string `json:"input"`
}

// Validate ensures a turn carries user input.
func (r *TurnRequest) Validate() error {
	if strings.TrimSpace(r.Input) == "" {
		return errors.New("input is required")
	}
	return nil
}

// SessionRequest is the body of a session creation call.
type SessionRequest struct {
	ScriptID string `json:"script_id"`
	// NotifyNumber, when set, receives an SMS summary after the call ends.
	NotifyNumber string `json:"notify_number,omitempty"`
}

// Validate ensures the session references a script.
func (r *SessionRequest) Validate() error {
	if strings.TrimSpace(r.ScriptID) == "" {
		return errors.New("script_id is required")
	}
	return nil
}

// APIResponse represents a standard API response with a status and optional data.
type APIResponse struct {
	Status  string      `json:"status"`            // status of the API response
	Message string      `json:"message,omitempty"` // optional message for error responses or additional info
	Result  interface{} `json:"result,omitempty"`  // optional result data for successful responses
}

// APIResponseBuilder provides a fluent interface for building API responses.
type APIResponseBuilder struct {
	response APIResponse
}

// NewAPIResponseBuilder creates a new APIResponseBuilder instance.
func NewAPIResponseBuilder() *APIResponseBuilder {
	return &APIResponseBuilder{}
}

// WithStatus sets the status of the API response.
func (b *APIResponseBuilder) WithStatus(status APIStatus) *APIResponseBuilder {
	b.response.Status = string(status)
	return b
}

// WithMessage sets the message of the API response.
func (b *APIResponseBuilder) WithMessage(message string) *APIResponseBuilder {
	b.response.Message = message
	return b
}

// WithResult sets the result data of the API response.
func (b *APIResponseBuilder) WithResult(result interface{}) *APIResponseBuilder {
	b.response.Result = result
	return b
}

// Build constructs and returns the final APIResponse.
func (b *APIResponseBuilder) Build() APIResponse {
	return b.response
}

// Success creates a successful API response with optional result data.
func Success(result interface{}) APIResponse {
	return NewAPIResponseBuilder().
		WithStatus(APIStatusOK).
		WithResult(result).
		Build()
}

// SuccessWithMessage creates a successful API response with a message and optional result data.
func SuccessWithMessage(message string, result interface{}) APIResponse {
	return NewAPIResponseBuilder().
		WithStatus(APIStatusOK).
		WithMessage(message).
		WithResult(result).
		Build()
}

// Error creates an error API response with a message.
func Error(message string) APIResponse {
	return NewAPIResponseBuilder().
		WithStatus(APIStatusError).
		WithMessage(message).
		Build()
}
