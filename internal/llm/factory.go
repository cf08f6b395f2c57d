package llm

import (
	"context"
	"fmt"

	"peek/internal/domain"
)

// DefaultModel is the model used with Ollama when none is configured.
const DefaultModel = "qwen3:8b"

// Getenv resolves an environment variable. os.Getenv satisfies it.
type Getenv func(key string) string

// NewProvider returns an InferenceProvider for the given AI config. Provider
// may be "ollama" (default), "openai", "openrouter", "gemini", or "local".
// API keys are read from the environment variable named by cfg.APIKeyEnv,
// falling back to the provider's conventional variable.
func NewProvider(ctx context.Context, cfg domain.AIConfig, getenv Getenv) (domain.InferenceProvider, error) {
	provider := cfg.Provider
	if provider == "" {
		provider = "ollama"
	}
	switch provider {
	case "local":
		return NewLocalProvider("Local: "), nil
	case "ollama":
		return NewOpenAIProvider(orDefault(cfg.URL, OllamaBaseURL), getenv(cfg.APIKeyEnv), orDefault(cfg.Model, DefaultModel)), nil
	case "openai":
		key, err := resolveKey("openai", cfg.APIKeyEnv, "OPENAI_API_KEY", getenv)
		if err != nil {
			return nil, err
		}
		return NewOpenAIProvider(orDefault(cfg.URL, OpenAIBaseURL), key, orDefault(cfg.Model, "gpt-4o-mini")), nil
	case "openrouter":
		key, err := resolveKey("openrouter", cfg.APIKeyEnv, "OPENROUTER_API_KEY", getenv)
		if err != nil {
			return nil, err
		}
		return NewOpenAIProvider(orDefault(cfg.URL, OpenRouterBaseURL), key, orDefault(cfg.Model, "openai/gpt-4o-mini")), nil
	case "gemini":
		key, err := resolveKey("gemini", cfg.APIKeyEnv, "GEMINI_API_KEY", getenv)
		if err != nil {
			return nil, err
		}
		return newGeminiFunc(ctx, key, orDefault(cfg.Model, "gemini-2.5-flash"))
	default:
		return nil, fmt.Errorf("unknown LLM provider %q (use: ollama, openai, openrouter, gemini, local)", provider)
	}
}

// newGeminiFunc is the Gemini constructor. Package-level var for test injection.
var newGeminiFunc = func(ctx context.Context, key, model string) (domain.InferenceProvider, error) {
	p, err := NewGeminiProvider(ctx, key, model)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func resolveKey(providerName, envName, fallbackEnv string, getenv Getenv) (string, error) {
	if envName == "" {
		envName = fallbackEnv
	}
	key := getenv(envName)
	if key == "" {
		return "", fmt.Errorf("%s provider: API key not set (export %s)", providerName, envName)
	}
	return key, nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
