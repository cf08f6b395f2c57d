package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"iter"

	"github.com/google/uuid"
	"google.golang.org/genai"

	"peek/internal/domain"
)

// generateStreamFunc matches genai's Models.GenerateContentStream so tests can
// replay canned responses.
type generateStreamFunc func(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) iter.Seq2[*genai.GenerateContentResponse, error]

// GeminiProvider streams from the Gemini API through google.golang.org/genai.
type GeminiProvider struct {
	model    string
	generate generateStreamFunc
}

// NewGeminiProvider returns a Gemini-backed provider.
func NewGeminiProvider(ctx context.Context, apiKey, model string) (*GeminiProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	return &GeminiProvider{model: model, generate: client.Models.GenerateContentStream}, nil
}

// StreamChat implements domain.InferenceProvider.
func (p *GeminiProvider) StreamChat(ctx context.Context, chat domain.ChatRequest) (domain.ChatStream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	contents, system := toGeminiContents(chat.Turns)
	config := &genai.GenerateContentConfig{SystemInstruction: system}
	if len(chat.Tools) > 0 {
		config.Tools = []*genai.Tool{{FunctionDeclarations: toGeminiDeclarations(chat.Tools)}}
		mode := genai.FunctionCallingConfigModeAuto
		if chat.ToolChoice == domain.ToolChoiceNone {
			mode = genai.FunctionCallingConfigModeNone
		}
		config.ToolConfig = &genai.ToolConfig{FunctionCallingConfig: &genai.FunctionCallingConfig{Mode: mode}}
	}
	next, stop := iter.Pull2(p.generate(ctx, p.model, contents, config))
	return &geminiStream{next: next, stop: stop}, nil
}

// toGeminiContents maps turns to Gemini contents. System turns are joined into
// the system instruction; tool turns become function responses named after the
// call they answer.
func toGeminiContents(turns []domain.Turn) ([]*genai.Content, *genai.Content) {
	var system *genai.Content
	callNames := make(map[string]string)
	var contents []*genai.Content
	for _, t := range turns {
		switch t.Role {
		case domain.RoleSystem:
			if system == nil {
				system = &genai.Content{Role: string(genai.RoleUser)}
			}
			system.Parts = append(system.Parts, &genai.Part{Text: t.Content})
		case domain.RoleAssistant:
			c := &genai.Content{Role: string(genai.RoleModel)}
			if t.Content != "" {
				c.Parts = append(c.Parts, &genai.Part{Text: t.Content})
			}
			for _, call := range t.ToolCalls {
				callNames[call.ID] = call.Name
				args := map[string]any{}
				_ = json.Unmarshal([]byte(call.Arguments), &args)
				c.Parts = append(c.Parts, &genai.Part{FunctionCall: &genai.FunctionCall{ID: call.ID, Name: call.Name, Args: args}})
			}
			if len(c.Parts) == 0 {
				c.Parts = append(c.Parts, &genai.Part{Text: ""})
			}
			contents = append(contents, c)
		case domain.RoleToolResult:
			id, result, err := domain.ParseToolResultContent(t.Content)
			if err != nil {
				id, result = t.ToolCallID, t.Content
			}
			contents = append(contents, &genai.Content{Role: string(genai.RoleUser), Parts: []*genai.Part{{
				FunctionResponse: &genai.FunctionResponse{
					ID:       id,
					Name:     callNames[id],
					Response: map[string]any{"content": result},
				},
			}}})
		default:
			contents = append(contents, genai.NewContentFromText(t.Content, genai.RoleUser))
		}
	}
	return contents, system
}

func toGeminiDeclarations(defs []domain.ToolDefinition) []*genai.FunctionDeclaration {
	out := make([]*genai.FunctionDeclaration, len(defs))
	for i, d := range defs {
		out[i] = &genai.FunctionDeclaration{
			Name:                 d.Name,
			Description:          d.Description,
			ParametersJsonSchema: d.Parameters,
		}
	}
	return out
}

type geminiStream struct {
	next  func() (*genai.GenerateContentResponse, error, bool)
	stop  func()
	queue []domain.ChatChunk
}

// Next implements domain.ChatStream.
func (s *geminiStream) Next(ctx context.Context) (domain.ChatChunk, error) {
	for len(s.queue) == 0 {
		if err := ctx.Err(); err != nil {
			return domain.ChatChunk{}, err
		}
		resp, err, ok := s.next()
		if !ok {
			return domain.ChatChunk{}, io.EOF
		}
		if err != nil {
			return domain.ChatChunk{}, fmt.Errorf("gemini stream: %w", err)
		}
		s.queue = fromGeminiResponse(resp)
	}
	c := s.queue[0]
	s.queue = s.queue[1:]
	return c, nil
}

// Close implements domain.ChatStream.
func (s *geminiStream) Close() error {
	s.stop()
	return nil
}

// fromGeminiResponse splits the first candidate into one chunk per part so
// text and function calls keep their order.
func fromGeminiResponse(resp *genai.GenerateContentResponse) []domain.ChatChunk {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil
	}
	cand := resp.Candidates[0]
	var out []domain.ChatChunk
	for _, part := range cand.Content.Parts {
		switch {
		case part == nil || part.Thought:
		case part.FunctionCall != nil:
			fc := part.FunctionCall
			id := fc.ID
			if id == "" {
				id = "call_" + uuid.NewString()
			}
			args, err := json.Marshal(fc.Args)
			if err != nil || fc.Args == nil {
				args = []byte("{}")
			}
			out = append(out, domain.ChatChunk{Choices: []domain.ChunkChoice{{
				Delta: domain.ChunkDelta{ToolCalls: []domain.ToolCallDelta{{ID: id, Name: fc.Name, Arguments: string(args)}}},
			}}})
		case part.Text != "":
			text := part.Text
			out = append(out, domain.ChatChunk{Choices: []domain.ChunkChoice{{
				Delta: domain.ChunkDelta{Content: &text},
			}}})
		}
	}
	if len(out) > 0 && cand.FinishReason != "" {
		out[len(out)-1].Choices[0].FinishReason = string(cand.FinishReason)
	}
	return out
}

// Ensure GeminiProvider implements domain.InferenceProvider at compile time.
var _ domain.InferenceProvider = (*GeminiProvider)(nil)
