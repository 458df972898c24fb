// Package llm adapts language model backends to a single request/response
// shape and selects the active backend from configuration.
package llm

import (
	"context"

	"blog_sync/internal/config"
)

// Canonical finish reasons.
const (
	FinishStop   = "stop"
	FinishLength = "length"
	FinishSafety = "safety"
	FinishOther  = "other"
)

// Provider is one language model backend.
type Provider interface {
	Name() string
	Generate(ctx context.Context, prompt string, settings Settings) (*Response, error)
}

// Settings are the per-request options.
type Settings struct {
	Model           string
	Temperature     *float64
	System          string
	MaxOutputTokens int
	SafetySettings  []config.SafetySetting
}

type Usage struct {
	InputTokens  int
	OutputTokens int
	TotalTokens  int
}

type Response struct {
	Text         string
	FinishReason string
	Usage        Usage
}

// BuildProviders creates an adapter for every configured provider key that
// has one. Keys without an adapter are reported by the registry when
// selected.
func BuildProviders(cfg config.LLMConfig) map[string]Provider {
	providers := make(map[string]Provider, len(cfg.Providers))
	for key, p := range cfg.Providers {
		switch key {
		case "openai":
			providers[key] = NewOpenAI(OpenAIConfig{APIKey: p.APIKey, BaseURL: p.BaseURL, Timeout: cfg.Timeout, MaxRetries: 2})
		case "gemini":
			providers[key] = NewGemini(GeminiConfig{APIKey: p.APIKey, BaseURL: p.BaseURL, Timeout: cfg.Timeout})
		case "claude", "anthropic":
			providers[key] = NewAnthropic(AnthropicConfig{APIKey: p.APIKey, BaseURL: p.BaseURL, Timeout: cfg.Timeout})
		}
	}
	return providers
}
