// Package provider abstracts the external LLM providers behind a small
// completion interface. Handlers depend on Completer so tests can swap in
// fakes and the two providers stay interchangeable per pipeline.
package provider

import (
	"context"
	"encoding/json"
)

// Request is one completion call.
type Request struct {
	// System is the system prompt, optional.
	System string
	// User is the user prompt.
	User string
	// Tools are function definitions offered to the model. When set the
	// response may carry tool calls instead of text.
	Tools []ToolDefinition
	// ForceJSON constrains the model to emit a single JSON object.
	ForceJSON bool
	// MaxTokens bounds the response size, 0 for the provider default.
	MaxTokens int
}

// ToolDefinition describes one callable function in JSON-schema terms.
type ToolDefinition struct {
	Name        string
	Description string
	// Parameters is a JSON-schema object describing the arguments.
	Parameters map[string]any
}

// ToolCall is one function invocation proposed by the model.
type ToolCall struct {
	Name      string
	Arguments json.RawMessage
}

// Response is the model output: free text and/or proposed tool calls.
type Response struct {
	Text      string
	ToolCalls []ToolCall
}

// Completer executes one completion against an LLM provider.
type Completer interface {
	Complete(ctx context.Context, req Request) (Response, error)
}
