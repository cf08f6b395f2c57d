package llm

import (
	"context"
	"strings"
	"testing"

	"peek/internal/domain"
)

func envOf(m map[string]string) Getenv {
	return func(k string) string { return m[k] }
}

func TestNewProvider_WhenProviderEmpty_ShouldDefaultToOllama(t *testing.T) {
	p, err := NewProvider(context.Background(), domain.AIConfig{}, envOf(nil))
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	op, ok := p.(*OpenAIProvider)
	if !ok {
		t.Fatalf("expected *OpenAIProvider, got %T", p)
	}
	if op.baseURL != OllamaBaseURL || op.model != DefaultModel {
		t.Errorf("unexpected defaults: %s %s", op.baseURL, op.model)
	}
}

func TestNewProvider_ShouldHonourConfiguredURLAndModel(t *testing.T) {
	cfg := domain.AIConfig{Provider: "ollama", URL: "http://gpu-box:11434/v1", Model: "llama3.1"}

	p, err := NewProvider(context.Background(), cfg, envOf(nil))
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	op := p.(*OpenAIProvider)
	if op.baseURL != "http://gpu-box:11434/v1" || op.model != "llama3.1" {
		t.Errorf("unexpected provider: %s %s", op.baseURL, op.model)
	}
}

func TestNewProvider_WhenKeyedProviderHasKey_ShouldReturnProvider(t *testing.T) {
	cases := []struct {
		provider string
		env      map[string]string
		cfgEnv   string
		wantURL  string
	}{
		{"openai", map[string]string{"OPENAI_API_KEY": "sk"}, "", OpenAIBaseURL},
		{"openrouter", map[string]string{"OPENROUTER_API_KEY": "or"}, "", OpenRouterBaseURL},
		{"openai", map[string]string{"MY_KEY": "sk"}, "MY_KEY", OpenAIBaseURL},
	}
	for _, tc := range cases {
		p, err := NewProvider(context.Background(), domain.AIConfig{Provider: tc.provider, APIKeyEnv: tc.cfgEnv}, envOf(tc.env))
		if err != nil {
			t.Errorf("%s: unexpected error %v", tc.provider, err)
			continue
		}
		if op := p.(*OpenAIProvider); op.baseURL != tc.wantURL || op.apiKey == "" {
			t.Errorf("%s: unexpected provider %+v", tc.provider, op)
		}
	}
}

func TestNewProvider_WhenKeyMissing_ShouldNameEnvVar(t *testing.T) {
	for _, name := range []string{"openai", "openrouter", "gemini"} {
		_, err := NewProvider(context.Background(), domain.AIConfig{Provider: name}, envOf(nil))
		if err == nil || !strings.Contains(err.Error(), "API key not set") {
			t.Errorf("%s: expected missing key error, got %v", name, err)
		}
	}
}

func TestNewProvider_WhenGemini_ShouldUseConstructor(t *testing.T) {
	original := newGeminiFunc
	var gotKey, gotModel string
	newGeminiFunc = func(ctx context.Context, key, model string) (domain.InferenceProvider, error) {
		gotKey, gotModel = key, model
		return NewLocalProvider(""), nil
	}
	defer func() { newGeminiFunc = original }()

	_, err := NewProvider(context.Background(), domain.AIConfig{Provider: "gemini"}, envOf(map[string]string{"GEMINI_API_KEY": "g"}))

	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if gotKey != "g" || gotModel != "gemini-2.5-flash" {
		t.Errorf("unexpected constructor args %q %q", gotKey, gotModel)
	}
}

func TestNewProvider_WhenLocal_ShouldReturnLocalProvider(t *testing.T) {
	p, err := NewProvider(context.Background(), domain.AIConfig{Provider: "local"}, envOf(nil))
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if _, ok := p.(*LocalProvider); !ok {
		t.Errorf("expected *LocalProvider, got %T", p)
	}
}

func TestNewProvider_WhenUnknown_ShouldReturnError(t *testing.T) {
	if _, err := NewProvider(context.Background(), domain.AIConfig{Provider: "anthropic"}, envOf(nil)); err == nil {
		t.Error("expected error for unknown provider")
	}
}
