// Package translate turns single content units into target-language text
// through the active language model.
package translate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"blog_sync/internal/config"
	"blog_sync/internal/domain"
	"blog_sync/internal/llm"
	"blog_sync/internal/metrics"
	"blog_sync/internal/prompt"
	"blog_sync/internal/sanitize"
)

// FieldTranslator translates one field at a time. A false result means the
// caller should keep the source value.
type FieldTranslator struct {
	registry *llm.Registry
	cfg      config.TranslationConfig
	detector *LanguageDetector
	logger   *slog.Logger
}

// NewFieldTranslator creates a translator. detector may be nil.
func NewFieldTranslator(registry *llm.Registry, cfg config.TranslationConfig, detector *LanguageDetector, logger *slog.Logger) *FieldTranslator {
	return &FieldTranslator{
		registry: registry,
		cfg:      cfg,
		detector: detector,
		logger:   logger.With("component", "field_translator"),
	}
}

// TranslatePlain translates prose, HTML or Markdown.
func (t *FieldTranslator) TranslatePlain(ctx context.Context, content, targetLanguage, unitID string) (string, bool) {
	logger := t.logger.With("unit", unitID, "language", targetLanguage)

	if strings.TrimSpace(content) == "" {
		logger.Debug("empty content, nothing to translate")
		return "", false
	}

	sel, err := t.selection(targetLanguage)
	if err != nil {
		t.report(logger, err)
		return "", false
	}

	text, err := t.generate(ctx, sel, prompt.Standard(sel.StandardTemplate, targetLanguage, content), logger)
	if err != nil {
		t.report(logger, err)
		return "", false
	}

	t.checkLanguage(text, targetLanguage, logger)

	return text, true
}

// TranslateStructured translates the text leaves of a JSON object or array.
// null, scalars, {} and [] are returned unchanged.
func (t *FieldTranslator) TranslateStructured(ctx context.Context, value json.RawMessage, targetLanguage, unitID string) (json.RawMessage, bool) {
	logger := t.logger.With("unit", unitID, "language", targetLanguage)

	if passThrough(value) {
		return value, true
	}

	var indented bytes.Buffer
	if err := json.Indent(&indented, value, "", "  "); err != nil {
		logger.Warn("source value is not valid json", "error", err)
		return nil, false
	}

	sel, err := t.selection(targetLanguage)
	if err != nil {
		t.report(logger, err)
		return nil, false
	}

	text, err := t.generate(ctx, sel, prompt.JSON(sel.JSONTemplate, targetLanguage, indented.String()), logger)
	if err != nil {
		t.report(logger, err)
		return nil, false
	}

	if !json.Valid([]byte(text)) {
		logger.Warn("translated value is not valid json")
		metrics.ContentWarningsTotal.WithLabelValues("invalid_json").Inc()
		return nil, false
	}

	if !t.cfg.SkipStructureGuard {
		if err := CompareStructure(value, []byte(text)); err != nil {
			logger.Warn("translated value changed structure", "error", err)
			metrics.ContentWarningsTotal.WithLabelValues("structure_changed").Inc()
			return nil, false
		}
	}

	var compact bytes.Buffer
	if err := json.Compact(&compact, []byte(text)); err != nil {
		return nil, false
	}
	return json.RawMessage(compact.Bytes()), true
}

// CheckMarkup logs a warning when a translated HTML body lost or gained
// elements.
func (t *FieldTranslator) CheckMarkup(source, translated, targetLanguage, unitID string) {
	if err := CompareMarkup(source, translated); err != nil {
		t.logger.Warn("translated html differs in markup",
			"unit", unitID,
			"language", targetLanguage,
			"error", err,
		)
		metrics.ContentWarningsTotal.WithLabelValues("markup_changed").Inc()
	}
}

func (t *FieldTranslator) selection(targetLanguage string) (*llm.Selection, error) {
	if !t.cfg.IsTargetLanguage(targetLanguage) {
		return nil, fmt.Errorf("%w: unsupported target language %q", domain.ErrValidation, targetLanguage)
	}
	return t.registry.Active(targetLanguage)
}

// report logs why a field could not be translated.
func (t *FieldTranslator) report(logger *slog.Logger, err error) {
	switch {
	case domain.IsConfigurationError(err):
		logger.Error("llm configuration invalid", "error", err)
	case errors.Is(err, domain.ErrEmptyContent):
		logger.Warn("translation is empty", "error", err)
		metrics.ContentWarningsTotal.WithLabelValues("empty_output").Inc()
	case errors.Is(err, domain.ErrValidation):
		logger.Warn("translation rejected", "error", err)
	default:
		logger.Error("translation failed", "error", err)
	}
}

func (t *FieldTranslator) generate(ctx context.Context, sel *llm.Selection, promptText string, logger *slog.Logger) (string, error) {
	logger = logger.With("provider", sel.ProviderKey, "model", sel.Model.Name)

	resp, err := sel.Generate(ctx, promptText)
	if err != nil {
		return "", fmt.Errorf("llm request via %s: %w", sel.ProviderKey, err)
	}

	if resp.FinishReason != llm.FinishStop {
		logger.Warn("llm response did not finish normally",
			"finish_reason", resp.FinishReason,
			"output_tokens", resp.Usage.OutputTokens,
		)
	}

	if strings.TrimSpace(resp.Text) == "" {
		return "", fmt.Errorf("model returned no text (finish reason %s): %w", resp.FinishReason, domain.ErrEmptyContent)
	}

	cleaned := sanitize.Clean(resp.Text)
	if cleaned == "" {
		return "", fmt.Errorf("nothing left after cleanup: %w", domain.ErrEmptyContent)
	}

	logger.Debug("translated",
		"input_tokens", resp.Usage.InputTokens,
		"output_tokens", resp.Usage.OutputTokens,
	)
	return cleaned, nil
}

func (t *FieldTranslator) checkLanguage(text, targetLanguage string, logger *slog.Logger) {
	if t.detector == nil {
		return
	}
	text = visibleText(text)
	if len(text) < minDetectLength {
		return
	}
	detected, ok := t.detector.DetectISO(text)
	if !ok {
		return
	}
	if !sameBaseLanguage(detected, targetLanguage) {
		logger.Warn("translated text looks like another language", "detected", detected)
		metrics.ContentWarningsTotal.WithLabelValues("language_mismatch").Inc()
	}
}

func passThrough(value json.RawMessage) bool {
	trimmed := bytes.TrimSpace(value)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return true
	}
	switch trimmed[0] {
	case '{':
		var obj map[string]json.RawMessage
		return json.Unmarshal(trimmed, &obj) == nil && len(obj) == 0
	case '[':
		var arr []json.RawMessage
		return json.Unmarshal(trimmed, &arr) == nil && len(arr) == 0
	default:
		return true
	}
}
