// Package tokenizer counts tokens for context-size reporting.
package tokenizer

import (
	"fmt"

	tiktoken "github.com/pkoukk/tiktoken-go"

	"peek/internal/domain"
)

// DefaultEncoding is used when a model has no known encoding. Local models
// tokenize differently, so counts are an estimate.
const DefaultEncoding = "cl100k_base"

// getEncoding and encodingForModel are swapped by tests to stay offline.
var (
	getEncoding      = tiktoken.GetEncoding
	encodingForModel = tiktoken.EncodingForModel
)

// TikToken wraps tiktoken-go to implement domain.Tokenizer.
type TikToken struct {
	encoding *tiktoken.Tiktoken
}

// NewTikToken creates a tokenizer with the given encoding name
// ("cl100k_base", "o200k_base", ...).
func NewTikToken(encodingName string) (*TikToken, error) {
	enc, err := getEncoding(encodingName)
	if err != nil {
		return nil, fmt.Errorf("tokenizer: unknown encoding %q: %w", encodingName, err)
	}
	return &TikToken{encoding: enc}, nil
}

// ForModel picks the encoding tiktoken associates with model, falling back to
// DefaultEncoding for models it does not know (e.g. "qwen3:8b").
func ForModel(model string) (*TikToken, error) {
	if enc, err := encodingForModel(model); err == nil {
		return &TikToken{encoding: enc}, nil
	}
	return NewTikToken(DefaultEncoding)
}

// CountTokens returns the number of tokens in the given text.
func (t *TikToken) CountTokens(text string) (int, error) {
	if text == "" {
		return 0, nil
	}
	return len(t.encoding.Encode(text, nil, nil)), nil
}

// Ensure TikToken implements domain.Tokenizer at compile time.
var _ domain.Tokenizer = (*TikToken)(nil)
