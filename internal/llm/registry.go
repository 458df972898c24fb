package llm

import (
	"context"
	"log/slog"
	"time"

	"blog_sync/internal/config"
	"blog_sync/internal/domain"
	"blog_sync/internal/metrics"
	"blog_sync/internal/prompt"
)

const (
	fallbackInputTokenLimit  = 8000
	fallbackOutputTokenLimit = 2048
)

// Registry resolves the active provider and model on every call, so a
// configuration error surfaces before any request is sent.
type Registry struct {
	cfg       config.LLMConfig
	providers map[string]Provider
	logger    *slog.Logger
}

func NewRegistry(cfg config.LLMConfig, providers map[string]Provider, logger *slog.Logger) *Registry {
	return &Registry{
		cfg:       cfg,
		providers: providers,
		logger:    logger.With("component", "llm"),
	}
}

// Selection is a resolved provider/model pair ready to serve requests for
// one target language.
type Selection struct {
	ProviderKey      string
	ModelKey         string
	Model            config.ModelConfig
	StandardTemplate string
	JSONTemplate     string
	Settings         Settings

	provider Provider
}

// Active resolves the configured provider and model and renders the system
// prompt for targetLanguage.
func (r *Registry) Active(targetLanguage string) (*Selection, error) {
	key := r.cfg.ActiveProvider
	if key == "" {
		return nil, domain.NewConfigurationError("llm", "no active provider configured")
	}

	pc, ok := r.cfg.Providers[key]
	if !ok {
		return nil, domain.NewConfigurationError("llm", "provider %q is not configured", key)
	}

	provider, ok := r.providers[key]
	if !ok || provider == nil {
		return nil, domain.NewConfigurationError("llm", "provider %q has no client", key)
	}

	if pc.ActiveModel == "" {
		return nil, domain.NewConfigurationError("llm", "provider %q has no active model", key)
	}

	model, ok := pc.Models[pc.ActiveModel]
	if !ok {
		return nil, domain.NewConfigurationError("llm", "model %q is not configured for provider %q", pc.ActiveModel, key)
	}
	if model.Name == "" {
		return nil, domain.NewConfigurationError("llm", "model %q of provider %q has no name", pc.ActiveModel, key)
	}

	if pc.StandardPromptTemplate == "" || pc.JSONPromptTemplate == "" {
		return nil, domain.NewConfigurationError("llm", "provider %q is missing a prompt template", key)
	}

	if model.InputTokenLimit <= 0 {
		r.logger.Warn("invalid input token limit, using fallback",
			"provider", key, "model", model.Name, "fallback", fallbackInputTokenLimit)
		model.InputTokenLimit = fallbackInputTokenLimit
	}
	if model.OutputTokenLimit <= 0 {
		r.logger.Warn("invalid output token limit, using fallback",
			"provider", key, "model", model.Name, "fallback", fallbackOutputTokenLimit)
		model.OutputTokenLimit = fallbackOutputTokenLimit
	}

	maxTokens := pc.Defaults.MaxOutputTokens
	if maxTokens <= 0 {
		maxTokens = model.OutputTokenLimit
	}

	system := pc.Defaults.System
	if system != "" {
		system = prompt.Render(system, map[string]string{prompt.VarTargetLanguage: targetLanguage})
	}

	return &Selection{
		ProviderKey:      key,
		ModelKey:         pc.ActiveModel,
		Model:            model,
		StandardTemplate: pc.StandardPromptTemplate,
		JSONTemplate:     pc.JSONPromptTemplate,
		Settings: Settings{
			Model:           model.Name,
			Temperature:     pc.Defaults.Temperature,
			System:          system,
			MaxOutputTokens: maxTokens,
			SafetySettings:  pc.Defaults.SafetySettings,
		},
		provider: provider,
	}, nil
}

// Validate checks that the active selection resolves.
func (r *Registry) Validate() error {
	sel, err := r.Active("en")
	if err != nil {
		return err
	}
	r.logger.Info("llm provider selected",
		"provider", sel.ProviderKey,
		"model", sel.Model.Name,
		"max_output_tokens", sel.Settings.MaxOutputTokens,
	)
	return nil
}

// Generate sends prompt to the selected backend and records metrics.
func (s *Selection) Generate(ctx context.Context, promptText string) (*Response, error) {
	start := time.Now()
	resp, err := s.provider.Generate(ctx, promptText, s.Settings)
	if err != nil {
		metrics.RecordLLMRequest(s.ProviderKey, s.Model.Name, "error", 0, 0, time.Since(start))
		return nil, err
	}
	metrics.RecordLLMRequest(s.ProviderKey, s.Model.Name, resp.FinishReason,
		resp.Usage.InputTokens, resp.Usage.OutputTokens, time.Since(start))
	return resp, nil
}
