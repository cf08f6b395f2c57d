package tokenizer

import (
	"errors"
	"testing"

	tiktoken "github.com/pkoukk/tiktoken-go"
)

// loadOrSkip builds the default tokenizer, skipping when the BPE ranks
// cannot be fetched (offline CI).
func loadOrSkip(t *testing.T) *TikToken {
	t.Helper()
	tok, err := NewTikToken(DefaultEncoding)
	if err != nil {
		t.Skipf("encoding unavailable: %v", err)
	}
	return tok
}

func TestNewTikToken_WhenInvalidEncoding_ShouldReturnError(t *testing.T) {
	tok, err := NewTikToken("totally_invalid_encoding_xyz")
	if err == nil {
		t.Fatal("expected error for invalid encoding")
	}
	if tok != nil {
		t.Fatal("expected nil tokenizer on error")
	}
}

func TestForModel_WhenModelUnknown_ShouldFallBackToDefaultEncoding(t *testing.T) {
	origModel, origEnc := encodingForModel, getEncoding
	defer func() { encodingForModel, getEncoding = origModel, origEnc }()
	encodingForModel = func(string) (*tiktoken.Tiktoken, error) { return nil, errors.New("no encoding for model") }
	var requested string
	getEncoding = func(name string) (*tiktoken.Tiktoken, error) {
		requested = name
		return nil, errors.New("offline")
	}

	_, err := ForModel("qwen3:8b")

	if requested != DefaultEncoding {
		t.Errorf("expected fallback to %s, got %q", DefaultEncoding, requested)
	}
	if err == nil {
		t.Error("expected the fallback error to surface")
	}
}

func TestTikToken_CountTokens_WhenEmptyString_ShouldReturnZero(t *testing.T) {
	tok := loadOrSkip(t)

	count, err := tok.CountTokens("")
	if err != nil {
		t.Fatalf("CountTokens: %v", err)
	}
	if count != 0 {
		t.Errorf("expected 0 tokens for empty string, got %d", count)
	}
}

func TestTikToken_CountTokens_WhenLongerText_ShouldReturnMoreTokens(t *testing.T) {
	tok := loadOrSkip(t)

	short, err := tok.CountTokens("SELECT 1")
	if err != nil {
		t.Fatalf("CountTokens short: %v", err)
	}
	long, err := tok.CountTokens("SELECT o.id, c.email FROM orders o JOIN customers c ON c.id = o.customer_id")
	if err != nil {
		t.Fatalf("CountTokens long: %v", err)
	}

	if short <= 0 || long <= short {
		t.Errorf("expected 0 < short (%d) < long (%d)", short, long)
	}
}
