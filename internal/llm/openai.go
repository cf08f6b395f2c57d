// Package llm holds the inference providers the conversation engine streams
// from: OpenAI-compatible HTTP (OpenAI, OpenRouter, Ollama), Gemini, and an
// offline echo provider.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"peek/internal/domain"
)

const (
	OllamaBaseURL     = "http://localhost:11434/v1"
	OpenAIBaseURL     = "https://api.openai.com/v1"
	OpenRouterBaseURL = "https://openrouter.ai/api/v1"
)

// OpenAIProvider streams from any server speaking the OpenAI Chat Completions
// protocol with server-sent events.
type OpenAIProvider struct {
	apiKey      string
	model       string
	baseURL     string
	client      *http.Client
	marshalFunc func(v any) ([]byte, error) // for testing
}

// NewOpenAIProvider returns a provider posting to <baseURL>/chat/completions.
// apiKey may be empty for servers that do not authenticate (Ollama).
func NewOpenAIProvider(baseURL, apiKey, model string) *OpenAIProvider {
	return &OpenAIProvider{
		apiKey:      apiKey,
		model:       model,
		baseURL:     strings.TrimRight(baseURL, "/"),
		client:      &http.Client{},
		marshalFunc: json.Marshal,
	}
}

// openAIRequest sets Parallel to false whenever tools are sent: results go
// back one call per request, so a reply holding several calls would leave
// some of them unanswered in the history.
type openAIRequest struct {
	Model      string          `json:"model"`
	Messages   []openAIMessage `json:"messages"`
	Tools      []openAITool    `json:"tools,omitempty"`
	ToolChoice string          `json:"tool_choice,omitempty"`
	Parallel   *bool           `json:"parallel_tool_calls,omitempty"`
	Stream     bool            `json:"stream"`
}

type openAIMessage struct {
	Role       string           `json:"role"`
	Content    string           `json:"content"`
	ToolCallID string           `json:"tool_call_id,omitempty"`
	ToolCalls  []openAIToolCall `json:"tool_calls,omitempty"`
}

type openAITool struct {
	Type     string         `json:"type"`
	Function openAIFunction `json:"function"`
}

type openAIFunction struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

type openAIToolCall struct {
	Index    *int               `json:"index,omitempty"`
	ID       string             `json:"id,omitempty"`
	Type     string             `json:"type,omitempty"`
	Function openAIFunctionCall `json:"function"`
}

type openAIFunctionCall struct {
	Name      string `json:"name,omitempty"`
	Arguments string `json:"arguments"`
}

type openAIChunk struct {
	Choices []struct {
		Delta struct {
			Content   *string          `json:"content"`
			ToolCalls []openAIToolCall `json:"tool_calls"`
		} `json:"delta"`
		FinishReason *string `json:"finish_reason"`
	} `json:"choices"`
}

// StreamChat implements domain.InferenceProvider.
func (p *OpenAIProvider) StreamChat(ctx context.Context, chat domain.ChatRequest) (domain.ChatStream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	body := openAIRequest{
		Model:    p.model,
		Messages: toOpenAIMessages(chat.Turns),
		Stream:   true,
	}
	if len(chat.Tools) > 0 {
		body.Tools = toOpenAITools(chat.Tools)
		body.ToolChoice = string(chat.ToolChoice)
		parallel := false
		body.Parallel = &parallel
	}
	raw, err := p.marshalFunc(body)
	if err != nil {
		return nil, fmt.Errorf("openai marshal: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/chat/completions", bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("openai request: %w", err)
	}
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("openai do: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("openai api: %s: %s", resp.Status, strings.TrimSpace(string(detail)))
	}
	return newSSEStream(resp.Body), nil
}

func toOpenAIMessages(turns []domain.Turn) []openAIMessage {
	out := make([]openAIMessage, 0, len(turns))
	for _, t := range turns {
		m := openAIMessage{Role: string(t.Role), Content: t.Content, ToolCallID: t.ToolCallID}
		for _, c := range t.ToolCalls {
			m.ToolCalls = append(m.ToolCalls, openAIToolCall{
				ID:       c.ID,
				Type:     "function",
				Function: openAIFunctionCall{Name: c.Name, Arguments: c.Arguments},
			})
		}
		out = append(out, m)
	}
	return out
}

func toOpenAITools(defs []domain.ToolDefinition) []openAITool {
	out := make([]openAITool, len(defs))
	for i, d := range defs {
		out[i] = openAITool{
			Type:     "function",
			Function: openAIFunction{Name: d.Name, Description: d.Description, Parameters: d.Parameters},
		}
	}
	return out
}

// Ensure OpenAIProvider implements domain.InferenceProvider at compile time.
var _ domain.InferenceProvider = (*OpenAIProvider)(nil)
