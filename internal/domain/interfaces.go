package domain

import "context"

// InferenceProvider is the model-agnostic interface for streamed chat completion.
// Implementations may be OpenAI-compatible HTTP, Gemini, local stubs, or mocks.
type InferenceProvider interface {
	// StreamChat opens a stream for the given request. Errors opening the
	// stream are returned here; errors while streaming come from Next.
	StreamChat(ctx context.Context, req ChatRequest) (ChatStream, error)
}

// ChatStream is a pull-based sequence of chunks. Next returns io.EOF once the
// reply is complete.
type ChatStream interface {
	Next(ctx context.Context) (ChatChunk, error)
	Close() error
}

// TranscriptStore persists conversation turns in append order.
type TranscriptStore interface {
	// Append writes one turn as a single line.
	Append(turn Turn) error

	// Load reads the last n turns. Returns empty slice when nothing was written or n <= 0.
	Load(n int) ([]Turn, error)
}

// Tokenizer counts tokens in a string for context size reporting.
type Tokenizer interface {
	// CountTokens returns the number of tokens in the given text.
	CountTokens(text string) (int, error)
}
