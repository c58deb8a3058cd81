// Package llm provides the chat completion capability consumed by
// extraction, reranking, and answer synthesis. The Client interface is
// implemented by an OpenAI-compatible backend and composable wrappers for
// retry and circuit breaking; components receive a Client by injection so
// tests can substitute deterministic fakes.
package llm

import (
	"context"
	"errors"
)

// Role identifies the author of a chat message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one turn of a chat completion request.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Response is the model's reply.
type Response struct {
	Content      string `json:"content"`
	FinishReason string `json:"finish_reason,omitempty"`
	Model        string `json:"model,omitempty"`
}

// Client defines the chat completion capability.
type Client interface {
	// Chat sends a chat completion request and returns the response.
	Chat(ctx context.Context, messages []Message) (*Response, error)

	// ChatJSON sends a chat completion request constrained to return a
	// JSON object. Callers decode the content with DecodeJSON, which
	// repairs mildly malformed output before unmarshaling.
	ChatJSON(ctx context.Context, messages []Message) (*Response, error)

	// Close cleans up any resources.
	Close() error
}

var (
	// ErrMissingAPIKey is returned at construction when no credential is
	// configured. Fatal, never retried.
	ErrMissingAPIKey = errors.New("llm: api key is required")
	// ErrEmptyResponse is returned when the backend produced no choices.
	ErrEmptyResponse = errors.New("llm: no choices returned")
)

// NewSystemMessage creates a system message.
func NewSystemMessage(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

// NewUserMessage creates a user message.
func NewUserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}
