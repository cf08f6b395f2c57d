// Package brain is the conversation engine: it owns the turn history of one
// session, streams model replies, and splits them into text and tool calls.
package brain

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"peek/internal/domain"
	"peek/internal/tooling"
)

// ErrNoTokenizer is returned by ContextTokens when no tokenizer was configured.
var ErrNoTokenizer = errors.New("brain: no tokenizer configured")

// Option is a functional option for configuring Session.
type Option func(*Session)

// WithLogger sets a structured logger for the Session.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Session) {
		s.logger = l
	}
}

// WithTranscript mirrors every appended turn to store. If store is nil it is ignored.
func WithTranscript(store domain.TranscriptStore) Option {
	return func(s *Session) {
		if store != nil {
			s.transcript = store
		}
	}
}

// WithTokenizer enables ContextTokens. If tk is nil it is ignored.
func WithTokenizer(tk domain.Tokenizer) Option {
	return func(s *Session) {
		if tk != nil {
			s.tokenizer = tk
		}
	}
}

// Session is one conversation with a model. History only grows: every
// StreamCompletion or AddToolResult call appends its request turn, and a
// successful call appends exactly one assistant turn after it. Calls are
// serialized; at most one exchange is in flight.
type Session struct {
	mu         sync.Mutex
	provider   domain.InferenceProvider
	tools      *tooling.Registry
	history    []domain.Turn
	transcript domain.TranscriptStore // optional
	tokenizer  domain.Tokenizer       // optional
	logger     zerolog.Logger
}

// NewSession returns an empty session bound to provider. Provider must not be nil.
func NewSession(provider domain.InferenceProvider, opts ...Option) *Session {
	if provider == nil {
		panic("brain: provider must not be nil")
	}
	s := &Session{
		provider: provider,
		tools:    tooling.NewRegistry(),
		logger:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetSystemPrompt appends a system turn. Callers set it before the first
// exchange; a later call still appends rather than replacing.
func (s *Session) SetSystemPrompt(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.appendTurn(domain.Turn{Role: domain.RoleSystem, Content: text})
}

// SetTools replaces the tool definitions offered on later requests.
func (s *Session) SetTools(defs []domain.ToolDefinition) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tools.Set(defs)
}

// AddTool appends one tool definition. Names are not deduplicated.
func (s *Session) AddTool(def domain.ToolDefinition) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tools.Add(def)
}

// Tools returns the registered definitions in order.
func (s *Session) Tools() []domain.ToolDefinition {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tools.Definitions()
}

// History returns a copy of every turn so far.
func (s *Session) History() []domain.Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot()
}

// Restore appends turns read back from an earlier transcript. System turns are
// skipped, and the rest is cut to whole exchanges: it starts at the first user
// turn and ends at the last assistant turn that asked for no tools. Restored
// turns are not mirrored to the transcript again. Restore reports how many
// turns it kept.
func (s *Session) Restore(turns []domain.Turn) int {
	kept := make([]domain.Turn, 0, len(turns))
	for _, t := range turns {
		if t.Role == domain.RoleSystem {
			continue
		}
		if len(kept) == 0 && t.Role != domain.RoleUser {
			continue
		}
		kept = append(kept, t)
	}
	end := 0
	for i, t := range kept {
		if t.Role == domain.RoleAssistant && len(t.ToolCalls) == 0 {
			end = i + 1
		}
	}
	kept = kept[:end]

	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history, kept...)
	return len(kept)
}

// ContextTokens counts the tokens of every turn's content.
func (s *Session) ContextTokens() (int, error) {
	if s.tokenizer == nil {
		return 0, ErrNoTokenizer
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	total := 0
	for _, t := range s.history {
		n, err := s.tokenizer.CountTokens(t.Content)
		if err != nil {
			return 0, err
		}
		total += n
	}
	return total, nil
}

// StreamCompletion sends prompt as a user turn and streams the reply. Text
// fragments and tool calls are passed to onEvent (which may be nil) in
// arrival order; the tool calls are also returned. On a provider error the
// user turn stays in history, no assistant turn is added, and the error is a
// *domain.InferenceError.
func (s *Session) StreamCompletion(ctx context.Context, prompt string, onEvent func(domain.StreamEvent)) ([]domain.ToolCall, error) {
	return s.exchange(ctx, domain.Turn{Role: domain.RoleUser, Content: prompt}, onEvent)
}

// AddToolResult feeds the result of tool call toolCallID back to the model and
// streams the follow-up reply exactly as StreamCompletion does.
func (s *Session) AddToolResult(ctx context.Context, toolCallID, result string, onEvent func(domain.StreamEvent)) ([]domain.ToolCall, error) {
	return s.exchange(ctx, domain.NewToolResultTurn(toolCallID, result), onEvent)
}

func (s *Session) exchange(ctx context.Context, turn domain.Turn, onEvent func(domain.StreamEvent)) ([]domain.ToolCall, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.appendTurn(turn)

	defs := s.tools.Definitions()
	choice := domain.ToolChoiceNone
	if s.tools.Len() > 0 {
		choice = domain.ToolChoiceAuto
	}
	req := domain.ChatRequest{Turns: s.snapshot(), Tools: defs, ToolChoice: choice}

	stream, err := s.provider.StreamChat(ctx, req)
	if err != nil {
		return nil, &domain.InferenceError{Op: "open stream", Err: err}
	}
	defer stream.Close()

	emit := func(ev domain.StreamEvent) {
		if onEvent != nil {
			onEvent(ev)
		}
	}

	var text strings.Builder
	var calls []domain.ToolCall
	for {
		chunk, err := stream.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			s.logger.Debug().Err(err).Int("partial_chars", text.Len()).Msg("stream aborted")
			return nil, &domain.InferenceError{Op: "read stream", Err: err}
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		if len(chunk.Choices) > 1 {
			s.logger.Debug().Int("choices", len(chunk.Choices)).Msg("ignoring extra choices")
		}
		delta := chunk.Choices[0].Delta

		if delta.Content != nil && *delta.Content != "" {
			text.WriteString(*delta.Content)
			emit(domain.TextEvent{Text: *delta.Content})
		}
		if len(delta.ToolCalls) > 0 {
			if len(delta.ToolCalls) > 1 {
				s.logger.Warn().Int("tool_calls", len(delta.ToolCalls)).Msg("chunk carried several tool calls; keeping the first")
			}
			tc := delta.ToolCalls[0]
			call := domain.ToolCall{ID: tc.ID, Name: tc.Name, Arguments: tc.Arguments}
			calls = append(calls, call)
			emit(domain.ToolCallEvent{Call: call})
		}
	}

	s.appendTurn(domain.Turn{Role: domain.RoleAssistant, Content: text.String(), ToolCalls: calls})
	s.logger.Debug().Int("turns", len(s.history)).Int("tool_calls", len(calls)).Msg("exchange complete")
	return calls, nil
}

// appendTurn must be called with mu held.
func (s *Session) appendTurn(t domain.Turn) {
	s.history = append(s.history, t)
	if s.transcript == nil {
		return
	}
	if err := s.transcript.Append(t); err != nil {
		s.logger.Warn().Err(err).Str("role", string(t.Role)).Msg("transcript append failed")
	}
}

// snapshot must be called with mu held.
func (s *Session) snapshot() []domain.Turn {
	out := make([]domain.Turn, len(s.history))
	copy(out, s.history)
	return out
}
