package llm

import (
	"context"
	"io"
	"strings"

	"peek/internal/domain"
)

// LocalProvider is a model-agnostic stub that streams back the last turn's
// content word by word, for manual testing without a model server.
type LocalProvider struct {
	Prefix string // prepended to the echoed content
}

// NewLocalProvider returns a local provider that echoes with an optional prefix.
func NewLocalProvider(prefix string) *LocalProvider {
	return &LocalProvider{Prefix: prefix}
}

// StreamChat implements domain.InferenceProvider.
func (p *LocalProvider) StreamChat(ctx context.Context, req domain.ChatRequest) (domain.ChatStream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var last string
	if n := len(req.Turns); n > 0 {
		last = req.Turns[n-1].Content
	}
	words := strings.SplitAfter(p.Prefix+last, " ")
	return &localStream{words: words}, nil
}

type localStream struct {
	words []string
}

func (s *localStream) Next(ctx context.Context) (domain.ChatChunk, error) {
	if err := ctx.Err(); err != nil {
		return domain.ChatChunk{}, err
	}
	for len(s.words) > 0 {
		w := s.words[0]
		s.words = s.words[1:]
		if w == "" {
			continue
		}
		return domain.ChatChunk{Choices: []domain.ChunkChoice{{Delta: domain.ChunkDelta{Content: &w}}}}, nil
	}
	return domain.ChatChunk{}, io.EOF
}

func (s *localStream) Close() error { return nil }

// Ensure LocalProvider implements domain.InferenceProvider at compile time.
var _ domain.InferenceProvider = (*LocalProvider)(nil)
