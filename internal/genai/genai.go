// Package genai turns flow decisions into final spoken text using the OpenAI
// API. Script lines that are already substantial are delivered verbatim
// without a model call; only thin or empty lines are synthesized, constrained
// to the script's content. Every failure path falls back to the script line,
// so a broken or unconfigured backend never breaks a call.
package genai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/keshavmahale005/ScriptAgent-CHATBOT/internal/flow"
)

// ErrNoChoicesReturned indicates the completion API returned an empty choice
// list.
var ErrNoChoicesReturned = errors.New("no choices returned")

// Delivery methods recorded on each Response.
const (
	MethodScriptExact = "script_exact"
	MethodGenerated   = "generated"
	MethodFallback    = "fallback"
)

const (
	// verbatimMinLength is the cleaned-line length above which the script
	// text is delivered as-is, with no model call.
	verbatimMinLength = 10

	generationTemperature = 0.2
	generationTopP        = 0.5
	generationMaxTokens   = 200
)

const fallbackLine = "I'm sorry, could you repeat that?"

// chatService defines the minimal completions surface used by the client.
type chatService interface {
	Create(ctx context.Context, params openai.ChatCompletionNewParams) (openai.ChatCompletion, error)
}

// completionsService adapts the real OpenAI client to chatService.
type completionsService struct {
	client openai.Client
}

func (s *completionsService) Create(ctx context.Context, params openai.ChatCompletionNewParams) (openai.ChatCompletion, error) {
	resp, err := s.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return openai.ChatCompletion{}, err
	}
	return *resp, nil
}

// Opts holds configuration for the client.
type Opts struct {
	APIKey string
	Model  string
}

// Option customizes client construction.
type Option func(*Opts)

// WithAPIKey overrides the OPENAI_API_KEY environment variable.
func WithAPIKey(key string) Option {
	return func(o *Opts) { o.APIKey = key }
}

// WithModel selects the completion model.
func WithModel(model string) Option {
	return func(o *Opts) { o.Model = model }
}

// Client generates spoken agent text from flow decisions.
type Client struct {
	chat  chatService
	model string
}

// NewClient builds a client from options, defaulting the key to the
// OPENAI_API_KEY environment variable.
func NewClient(opts ...Option) (*Client, error) {
	cfg := Opts{
		APIKey: os.Getenv("OPENAI_API_KEY"),
		Model:  openai.ChatModelGPT4oMini,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY not set")
	}
	cli := openai.NewClient(option.WithAPIKey(cfg.APIKey))
	slog.Debug("genai.NewClient: client initialized", "model", cfg.Model)
	return &Client{chat: &completionsService{client: cli}, model: cfg.Model}, nil
}

// Response is the finalized agent output for one turn.
type Response struct {
	// Text is the cleaned spoken line.
	Text string `json:"text"`
	// Method records how the text was produced: script_exact, generated or
	// fallback.
	Method string `json:"method"`
}

// Turn is one transcript entry passed in as generation context.
type Turn struct {
	Role    string `json:"role"` // "agent" or "user"
	Content string `json:"content"`
}

// Respond produces the final agent text for a decision. Substantial script
// lines are returned verbatim; otherwise a constrained completion is
// requested with the recent transcript and script metadata as context.
func (c *Client) Respond(ctx context.Context, dec flow.Decision, transcript []Turn, metadata map[string]string) Response {
	line := CleanResponse(dec.AgentLine)
	if len(line) > verbatimMinLength {
		return Response{Text: line, Method: MethodScriptExact}
	}

	generated, err := c.generate(ctx, dec, transcript, metadata)
	if err != nil {
		slog.Warn("genai.Respond: generation failed, falling back to script line", "error", err, "section", dec.Section)
		if line != "" {
			return Response{Text: line, Method: MethodFallback}
		}
		return Response{Text: fallbackLine, Method: MethodFallback}
	}
	return Response{Text: generated, Method: MethodGenerated}
}

// GeneratePrompt runs a plain system+user completion. Used by callers that
// need free-form generation outside the per-turn path.
func (c *Client) GeneratePrompt(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	resp, err := c.chat.Create(ctx, openai.ChatCompletionNewParams{
		Model: c.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(userPrompt),
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to create completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrNoChoicesReturned
	}
	return resp.Choices[0].Message.Content, nil
}

// generate asks the model for a short in-character line constrained to the
// current script position.
func (c *Client) generate(ctx context.Context, dec flow.Decision, transcript []Turn, metadata map[string]string) (string, error) {
	messages := []openai.ChatCompletionMessageParamUnion{
		openai.SystemMessage(buildSystemPrompt(dec, metadata)),
	}
	for _, turn := range recentTurns(transcript, 6) {
		if turn.Role == "user" {
			messages = append(messages, openai.UserMessage(turn.Content))
		} else {
			messages = append(messages, openai.AssistantMessage(turn.Content))
		}
	}
	if len(transcript) == 0 || transcript[len(transcript)-1].Role != "user" {
		messages = append(messages, openai.UserMessage("(continue the call)"))
	}

	resp, err := c.chat.Create(ctx, openai.ChatCompletionNewParams{
		Model:               c.model,
		Messages:            messages,
		Temperature:         openai.Float(generationTemperature),
		TopP:                openai.Float(generationTopP),
		MaxCompletionTokens: openai.Int(generationMaxTokens),
	})
	if err != nil {
		return "", fmt.Errorf("failed to create completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrNoChoicesReturned
	}
	text := CleanResponse(resp.Choices[0].Message.Content)
	if text == "" {
		return "", fmt.Errorf("completion produced empty text")
	}
	return text, nil
}

func buildSystemPrompt(dec flow.Decision, metadata map[string]string) string {
	var b strings.Builder
	b.WriteString("You are a phone call agent following a script. ")
	if name, ok := metadata["agent_name"]; ok && name != "" {
		fmt.Fprintf(&b, "Your name is %s. ", name)
	}
	if tone, ok := metadata["tone"]; ok && tone != "" {
		fmt.Fprintf(&b, "Your tone is %s. ", tone)
	}
	fmt.Fprintf(&b, "The call is in the %s stage. ", dec.Phase)
	if dec.AgentLine != "" {
		fmt.Fprintf(&b, "The script says: %q. Stay true to its content. ", dec.AgentLine)
	}
	if len(dec.RequiredFields) > 0 {
		fmt.Fprintf(&b, "You still need to collect: %s. ", strings.Join(dec.RequiredFields, ", "))
	}
	b.WriteString("Reply with one short natural spoken sentence. No stage directions, no markdown.")
	return b.String()
}

func recentTurns(transcript []Turn, n int) []Turn {
	if len(transcript) <= n {
		return transcript
	}
	return transcript[len(transcript)-n:]
}

var (
	responsePrefixRe = regexp.MustCompile(`(?i)^(agent|assistant|response|answer)\s*:\s*`)
	markdownRe       = regexp.MustCompile("[*_`#]+")
)

var questionStarters = map[string]bool{
	"what": true, "when": true, "where": true, "who": true, "why": true,
	"how": true, "which": true, "would": true, "could": true, "can": true,
	"do": true, "does": true, "is": true, "are": true, "shall": true,
	"may": true, "will": true,
}

// CleanResponse strips role prefixes, wrapping quotes and markdown from model
// or script text, collapses whitespace, and ensures the line ends with
// terminal punctuation.
func CleanResponse(text string) string {
	text = strings.TrimSpace(text)
	text = responsePrefixRe.ReplaceAllString(text, "")
	text = markdownRe.ReplaceAllString(text, "")
	text = strings.Trim(text, `"'`)
	text = strings.Join(strings.Fields(text), " ")
	if text == "" {
		return ""
	}
	if !strings.ContainsAny(text[len(text)-1:], ".!?") {
		first := strings.ToLower(strings.Trim(strings.Fields(text)[0], ",.!?"))
		if questionStarters[first] {
			text += "?"
		} else {
			text += "."
		}
	}
	return text
}
