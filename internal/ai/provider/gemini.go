package provider

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// GeminiConfig configures the Gemini adapter.
type GeminiConfig struct {
	APIKey string
	Model  string
}

type geminiAdapter struct {
	client *genai.Client
	model  string
}

// NewGemini builds a Completer backed by the Gemini API. Gemini serves the
// long-context extraction pipelines; it does text and JSON output only, so
// requests carrying tool definitions are rejected.
func NewGemini(ctx context.Context, cfg GeminiConfig) (Completer, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	if strings.TrimSpace(cfg.Model) == "" {
		cfg.Model = "gemini-2.0-flash"
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: cfg.APIKey})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &geminiAdapter{client: client, model: cfg.Model}, nil
}

func (a *geminiAdapter) Complete(ctx context.Context, request Request) (Response, error) {
	if len(request.Tools) > 0 {
		return Response{}, fmt.Errorf("gemini adapter does not support tool calls")
	}
	if strings.TrimSpace(request.User) == "" {
		return Response{}, fmt.Errorf("prompt is required")
	}

	config := &genai.GenerateContentConfig{}
	if strings.TrimSpace(request.System) != "" {
		config.SystemInstruction = genai.NewContentFromText(request.System, genai.RoleUser)
	}
	if request.ForceJSON {
		config.ResponseMIMEType = "application/json"
	}
	if request.MaxTokens > 0 {
		config.MaxOutputTokens = int32(request.MaxTokens)
	}

	result, err := a.client.Models.GenerateContent(ctx, a.model, genai.Text(request.User), config)
	if err != nil {
		return Response{}, fmt.Errorf("gemini generate failed: %w", err)
	}
	text := strings.TrimSpace(result.Text())
	if text == "" {
		return Response{}, fmt.Errorf("gemini response missing output text")
	}
	return Response{Text: text}, nil
}
