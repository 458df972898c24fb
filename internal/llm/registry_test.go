package llm

import (
	"context"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"blog_sync/internal/config"
	"blog_sync/internal/domain"
)

type stubProvider struct {
	name     string
	response *Response
	err      error

	prompts  []string
	settings []Settings
}

func (p *stubProvider) Name() string { return p.name }

func (p *stubProvider) Generate(_ context.Context, prompt string, settings Settings) (*Response, error) {
	p.prompts = append(p.prompts, prompt)
	p.settings = append(p.settings, settings)
	return p.response, p.err
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func testLLMConfig() config.LLMConfig {
	temp := 0.7
	return config.LLMConfig{
		ActiveProvider: "claude",
		Providers: map[string]config.ProviderConfig{
			"claude": {
				ActiveModel:            "sonnet",
				StandardPromptTemplate: "To {targetLanguage}: {content}",
				JSONPromptTemplate:     "To {targetLanguage}: {jsonString}",
				Defaults: config.RequestDefaults{
					Temperature: &temp,
					System:      "Translate into {targetLanguage} carefully.",
				},
				Models: map[string]config.ModelConfig{
					"sonnet":   {Name: "claude-3-5-sonnet-20240620", InputTokenLimit: 200000, OutputTokenLimit: 8192},
					"broken":   {Name: "claude-broken"},
					"nameless": {OutputTokenLimit: 10},
				},
			},
		},
	}
}

func TestRegistry_Active(t *testing.T) {
	provider := &stubProvider{name: "claude"}
	reg := NewRegistry(testLLMConfig(), map[string]Provider{"claude": provider}, testLogger())

	sel, err := reg.Active("fr")
	require.NoError(t, err)

	assert.Equal(t, "claude", sel.ProviderKey)
	assert.Equal(t, "sonnet", sel.ModelKey)
	assert.Equal(t, "claude-3-5-sonnet-20240620", sel.Settings.Model)
	assert.Equal(t, 8192, sel.Settings.MaxOutputTokens)
	assert.Equal(t, "Translate into fr carefully.", sel.Settings.System)
	require.NotNil(t, sel.Settings.Temperature)
	assert.InDelta(t, 0.7, *sel.Settings.Temperature, 1e-9)
	assert.Equal(t, "To {targetLanguage}: {content}", sel.StandardTemplate)
}

func TestRegistry_Active_MaxOutputOverride(t *testing.T) {
	cfg := testLLMConfig()
	pc := cfg.Providers["claude"]
	pc.Defaults.MaxOutputTokens = 1000
	cfg.Providers["claude"] = pc

	reg := NewRegistry(cfg, map[string]Provider{"claude": &stubProvider{}}, testLogger())

	sel, err := reg.Active("de")
	require.NoError(t, err)
	assert.Equal(t, 1000, sel.Settings.MaxOutputTokens)
}

func TestRegistry_Active_InvalidTokenLimitsFallBack(t *testing.T) {
	cfg := testLLMConfig()
	pc := cfg.Providers["claude"]
	pc.ActiveModel = "broken"
	cfg.Providers["claude"] = pc

	reg := NewRegistry(cfg, map[string]Provider{"claude": &stubProvider{}}, testLogger())

	sel, err := reg.Active("de")
	require.NoError(t, err)
	assert.Equal(t, fallbackInputTokenLimit, sel.Model.InputTokenLimit)
	assert.Equal(t, fallbackOutputTokenLimit, sel.Settings.MaxOutputTokens)
}

func TestRegistry_Active_ConfigurationErrors(t *testing.T) {
	tests := map[string]struct {
		mutate    func(cfg *config.LLMConfig)
		providers map[string]Provider
	}{
		"no active provider": {
			mutate: func(cfg *config.LLMConfig) { cfg.ActiveProvider = "" },
		},
		"unknown provider": {
			mutate: func(cfg *config.LLMConfig) { cfg.ActiveProvider = "mistral" },
		},
		"provider without client": {
			mutate:    func(cfg *config.LLMConfig) {},
			providers: map[string]Provider{},
		},
		"unknown model": {
			mutate: func(cfg *config.LLMConfig) {
				pc := cfg.Providers["claude"]
				pc.ActiveModel = "opus-9"
				cfg.Providers["claude"] = pc
			},
		},
		"model without name": {
			mutate: func(cfg *config.LLMConfig) {
				pc := cfg.Providers["claude"]
				pc.ActiveModel = "nameless"
				cfg.Providers["claude"] = pc
			},
		},
		"missing template": {
			mutate: func(cfg *config.LLMConfig) {
				pc := cfg.Providers["claude"]
				pc.JSONPromptTemplate = ""
				cfg.Providers["claude"] = pc
			},
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			cfg := testLLMConfig()
			tc.mutate(&cfg)

			provider := &stubProvider{}
			providers := tc.providers
			if providers == nil {
				providers = map[string]Provider{"claude": provider}
			}

			reg := NewRegistry(cfg, providers, testLogger())
			sel, err := reg.Active("fr")

			require.Error(t, err)
			assert.Nil(t, sel)
			assert.True(t, domain.IsConfigurationError(err))
			assert.Empty(t, provider.prompts)
			assert.Error(t, reg.Validate())
		})
	}
}

func TestRegistry_BuiltInCatalogResolves(t *testing.T) {
	catalog, err := config.DefaultCatalog()
	require.NoError(t, err)

	for _, key := range []string{"openai", "gemini", "claude"} {
		t.Run(key, func(t *testing.T) {
			cfg := catalog
			cfg.ActiveProvider = key

			reg := NewRegistry(cfg, BuildProviders(cfg), testLogger())
			sel, err := reg.Active("es")
			require.NoError(t, err)
			assert.NotEmpty(t, sel.Settings.Model)
			assert.Positive(t, sel.Settings.MaxOutputTokens)
		})
	}
}

func TestSelection_Generate(t *testing.T) {
	provider := &stubProvider{response: &Response{Text: "Bonjour", FinishReason: FinishStop}}
	reg := NewRegistry(testLLMConfig(), map[string]Provider{"claude": provider}, testLogger())

	sel, err := reg.Active("fr")
	require.NoError(t, err)

	resp, err := sel.Generate(context.Background(), "Hello")
	require.NoError(t, err)
	assert.Equal(t, "Bonjour", resp.Text)
	require.Len(t, provider.prompts, 1)
	assert.Equal(t, "Hello", provider.prompts[0])
	assert.Equal(t, "claude-3-5-sonnet-20240620", provider.settings[0].Model)
}
