// Package gatekeeper pre-filters transcribed voice input with a cheap
// classification call before the expensive full analysis runs.
package gatekeeper

import (
	"context"
	"encoding/json"
	"log"
	"strings"

	"github.com/AndrewDeWitt/grimlog/internal/ai/provider"
	"github.com/AndrewDeWitt/grimlog/internal/ai/schema"
)

const systemPrompt = `You classify transcribed tabletop wargame voice input.
Mark input as relevant when it describes a game action or game state change:
spending command points, using stratagems, dealing or healing damage,
advancing rounds, turns or phases, deploying or destroying units, or noting
something about the battle. Casual table talk, rules questions and anything
unrelated to the tracked game is irrelevant.
Respond with a single JSON object: {"relevant": boolean, "reason": string}.`

var verdictSchema = schema.MustCompile(`{
	"type": "object",
	"required": ["relevant"],
	"properties": {
		"relevant": {"type": "boolean"},
		"reason": {"type": "string"}
	}
}`)

// Verdict is the classification outcome.
type Verdict struct {
	Relevant bool   `json:"relevant"`
	Reason   string `json:"reason"`
	// FailedOpen reports that the classifier call errored and the input was
	// allowed through to full analysis anyway.
	FailedOpen bool `json:"failed_open,omitempty"`
}

// Gatekeeper classifies transcripts ahead of the tool-calling pipeline.
type Gatekeeper struct {
	completer provider.Completer
}

// New builds a gatekeeper over the given completer.
func New(completer provider.Completer) *Gatekeeper {
	return &Gatekeeper{completer: completer}
}

// Check classifies one transcript. The gatekeeper fails open: when the
// provider call errors or returns output that fails validation, the input
// proceeds to full analysis rather than being dropped.
func (g *Gatekeeper) Check(ctx context.Context, transcript string) Verdict {
	transcript = strings.TrimSpace(transcript)
	if transcript == "" {
		return Verdict{Relevant: false, Reason: "empty transcript"}
	}

	response, err := g.completer.Complete(ctx, provider.Request{
		System:    systemPrompt,
		User:      transcript,
		ForceJSON: true,
		MaxTokens: 200,
	})
	if err != nil {
		log.Printf("gatekeeper classification failed open: %v", err)
		return Verdict{Relevant: true, FailedOpen: true, Reason: "classifier unavailable"}
	}

	raw := []byte(response.Text)
	if err := verdictSchema.Validate(raw); err != nil {
		log.Printf("gatekeeper output rejected, failing open: %v", err)
		return Verdict{Relevant: true, FailedOpen: true, Reason: "classifier output invalid"}
	}
	var verdict Verdict
	if err := json.Unmarshal(raw, &verdict); err != nil {
		log.Printf("gatekeeper output unreadable, failing open: %v", err)
		return Verdict{Relevant: true, FailedOpen: true, Reason: "classifier output invalid"}
	}
	return verdict
}
