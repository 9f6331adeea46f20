package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// OpenAIConfig configures the OpenAI chat completions adapter.
type OpenAIConfig struct {
	// CompletionsURL defaults to the public chat completions endpoint.
	CompletionsURL string
	APIKey         string
	Model          string
	HTTPClient     *http.Client
}

type openAIAdapter struct {
	cfg OpenAIConfig
}

// NewOpenAI builds a Completer backed by the OpenAI chat completions API.
func NewOpenAI(cfg OpenAIConfig) Completer {
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = http.DefaultClient
	}
	if strings.TrimSpace(cfg.CompletionsURL) == "" {
		cfg.CompletionsURL = "https://api.openai.com/v1/chat/completions"
	}
	return &openAIAdapter{cfg: cfg}
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAITool struct {
	Type     string `json:"type"`
	Function struct {
		Name        string         `json:"name"`
		Description string         `json:"description,omitempty"`
		Parameters  map[string]any `json:"parameters,omitempty"`
	} `json:"function"`
}

func (a *openAIAdapter) Complete(ctx context.Context, request Request) (Response, error) {
	apiKey := strings.TrimSpace(a.cfg.APIKey)
	model := strings.TrimSpace(a.cfg.Model)
	if apiKey == "" {
		return Response{}, fmt.Errorf("openai api key is required")
	}
	if model == "" {
		return Response{}, fmt.Errorf("openai model is required")
	}
	if strings.TrimSpace(request.User) == "" {
		return Response{}, fmt.Errorf("prompt is required")
	}

	var messages []openAIMessage
	if strings.TrimSpace(request.System) != "" {
		messages = append(messages, openAIMessage{Role: "system", Content: request.System})
	}
	messages = append(messages, openAIMessage{Role: "user", Content: request.User})

	body := map[string]any{
		"model":    model,
		"messages": messages,
	}
	if request.MaxTokens > 0 {
		body["max_tokens"] = request.MaxTokens
	}
	if request.ForceJSON {
		body["response_format"] = map[string]string{"type": "json_object"}
	}
	if len(request.Tools) > 0 {
		tools := make([]openAITool, 0, len(request.Tools))
		for _, definition := range request.Tools {
			var tool openAITool
			tool.Type = "function"
			tool.Function.Name = definition.Name
			tool.Function.Description = definition.Description
			tool.Function.Parameters = definition.Parameters
			tools = append(tools, tool)
		}
		body["tools"] = tools
	}

	requestBody, err := json.Marshal(body)
	if err != nil {
		return Response{}, fmt.Errorf("marshal completion request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.CompletionsURL, bytes.NewReader(requestBody))
	if err != nil {
		return Response{}, fmt.Errorf("build completion request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	// Credential material goes only into the Authorization header and is
	// never echoed in errors or response payloads.
	req.Header.Set("Authorization", "Bearer "+apiKey)

	res, err := a.cfg.HTTPClient.Do(req)
	if err != nil {
		return Response{}, fmt.Errorf("completion request failed: %w", err)
	}
	defer res.Body.Close()
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		errorBody, err := io.ReadAll(io.LimitReader(res.Body, 4096))
		if err != nil {
			return Response{}, fmt.Errorf("read completion error body: %w", err)
		}
		return Response{}, fmt.Errorf("completion request status %d: %s", res.StatusCode, strings.TrimSpace(string(errorBody)))
	}

	var payload struct {
		Choices []struct {
			Message struct {
				Content   string `json:"content"`
				ToolCalls []struct {
					Function struct {
						Name      string          `json:"name"`
						Arguments json.RawMessage `json:"arguments"`
					} `json:"function"`
				} `json:"tool_calls"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(res.Body).Decode(&payload); err != nil {
		return Response{}, fmt.Errorf("decode completion response: %w", err)
	}
	if len(payload.Choices) == 0 {
		return Response{}, fmt.Errorf("completion response has no choices")
	}

	message := payload.Choices[0].Message
	response := Response{Text: strings.TrimSpace(message.Content)}
	for _, call := range message.ToolCalls {
		arguments := call.Function.Arguments
		// The API serializes arguments as a JSON string; unwrap it so
		// callers always see the object form.
		var unwrapped string
		if json.Unmarshal(arguments, &unwrapped) == nil {
			arguments = json.RawMessage(unwrapped)
		}
		response.ToolCalls = append(response.ToolCalls, ToolCall{
			Name:      call.Function.Name,
			Arguments: arguments,
		})
	}
	if response.Text == "" && len(response.ToolCalls) == 0 {
		return Response{}, fmt.Errorf("completion response missing output")
	}
	return response, nil
}
