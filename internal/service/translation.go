package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"blog_sync/internal/config"
	"blog_sync/internal/domain"
	"blog_sync/internal/metrics"
	"blog_sync/internal/translate"
)

// TranslationService drives the per-language translation state machine for
// one article: pending -> in_translation -> translated | error_translating.
type TranslationService struct {
	translations TranslationStore
	txManager    TransactionManager
	fields       FieldTranslator
	cfg          config.TranslationConfig
	logger       *slog.Logger
	now          func() time.Time
}

func NewTranslationService(
	translations TranslationStore,
	txManager TransactionManager,
	fields FieldTranslator,
	cfg config.TranslationConfig,
	logger *slog.Logger,
) *TranslationService {
	return &TranslationService{
		translations: translations,
		txManager:    txManager,
		fields:       fields,
		cfg:          cfg,
		logger:       logger.With("component", "translation"),
		now:          time.Now,
	}
}

// TranslateArticle processes every target language except the original one,
// one language at a time.
func (s *TranslationService) TranslateArticle(ctx context.Context, article *domain.Article) []domain.TranslationOutcome {
	var outcomes []domain.TranslationOutcome

	for _, lang := range s.cfg.TargetLanguages {
		if strings.EqualFold(lang, s.cfg.OriginalLanguage) {
			continue
		}

		outcome := s.translateLanguage(ctx, article, lang)
		metrics.TranslationsTotal.WithLabelValues(lang, string(outcome.Status)).Inc()
		outcomes = append(outcomes, outcome)
	}

	return outcomes
}

func (s *TranslationService) translateLanguage(ctx context.Context, article *domain.Article, lang string) domain.TranslationOutcome {
	logger := s.logger.With("article_id", article.ID, "slug", article.Slug, "language", lang)
	outcome := domain.TranslationOutcome{Language: lang, Status: domain.StatusErrorTranslating}

	record, err := s.begin(ctx, article, lang, logger)
	if err != nil {
		logger.Error("failed to start translation", "error", err)
		outcome.Error = err.Error()
		return outcome
	}

	unit := func(field string) string {
		return fmt.Sprintf("%s:%s:%s", article.ID, lang, field)
	}

	headline, ok := s.fields.TranslatePlain(ctx, article.Headline, lang, unit("headline"))
	if !ok {
		outcome.Error = "headline translation failed"
		s.fail(ctx, record, logger, outcome.Error)
		return outcome
	}

	html, ok := s.fields.TranslatePlain(ctx, article.HTML, lang, unit("html"))
	if !ok {
		outcome.Error = "html translation failed"
		s.fail(ctx, record, logger, outcome.Error)
		return outcome
	}
	s.fields.CheckMarkup(article.HTML, html, lang, unit("html"))

	record.Headline = headline
	record.HTML = html
	record.Slug = translate.Slugify(headline, article.ID)
	record.MetaDescription = s.plain(ctx, article.MetaDescription, lang, unit, "metaDescription")
	record.Markdown = s.plain(ctx, article.Markdown, lang, unit, "markdown")
	record.MetaKeywords = s.plain(ctx, article.MetaKeywords, lang, unit, "metaKeywords")
	record.Outline = s.plain(ctx, article.Outline, lang, unit, "outline")
	record.Tags = s.structured(ctx, article.Tags, lang, unit, "tags")
	record.Category = s.structured(ctx, article.Category, lang, unit, "category")
	record.RelatedPosts = s.relatedPosts(ctx, article.RelatedPosts, lang, unit, logger)

	record.Image = article.Image
	record.ResolvedImageURL = article.ResolvedImageURL
	record.ReadingTime = article.ReadingTime
	record.Blog = article.Blog
	record.PublishedAt = article.PublishedAt
	record.Published = true
	record.Status = domain.StatusTranslated
	record.UpdatedAt = s.now()

	if err := s.translations.Save(ctx, record); err != nil {
		outcome.Error = fmt.Sprintf("save translation: %v", err)
		s.fail(ctx, record, logger, outcome.Error)
		return outcome
	}

	logger.Info("article translated", "translated_slug", record.Slug)
	outcome.Status = domain.StatusTranslated
	return outcome
}

// begin looks the record up, creating it when missing, and moves it to
// in_translation inside one transaction.
func (s *TranslationService) begin(ctx context.Context, article *domain.Article, lang string, logger *slog.Logger) (*domain.Translation, error) {
	var record *domain.Translation

	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		existing, err := s.translations.Get(txCtx, article.ID, lang)
		switch {
		case err == nil:
			record = existing
			if !existing.Status.Terminal() {
				logger.Info("resuming unfinished translation", "translation_id", existing.ID, "status", existing.Status)
			}
		case errors.Is(err, domain.ErrNotFound):
			record = domain.NewPendingTranslation(article, lang)
			if err := s.translations.Create(txCtx, record); err != nil {
				return fmt.Errorf("create translation: %w", err)
			}
		default:
			return fmt.Errorf("get translation: %w", err)
		}

		if err := s.translations.UpdateStatus(txCtx, record.ID, domain.StatusInTranslation); err != nil {
			return fmt.Errorf("mark in translation: %w", err)
		}
		record.Status = domain.StatusInTranslation
		return nil
	})
	if err != nil {
		return nil, err
	}

	return record, nil
}

// fail records the error state even when ctx is already cancelled, so no
// record is left in_translation.
func (s *TranslationService) fail(ctx context.Context, record *domain.Translation, logger *slog.Logger, reason string) {
	logger.Error("translation failed", "reason", reason)

	if err := s.translations.UpdateStatus(context.WithoutCancel(ctx), record.ID, domain.StatusErrorTranslating); err != nil {
		logger.Error("failed to mark translation as failed", "error", err)
		return
	}
	record.Status = domain.StatusErrorTranslating
}

func (s *TranslationService) plain(ctx context.Context, source, lang string, unit func(string) string, field string) string {
	if strings.TrimSpace(source) == "" {
		return source
	}
	if text, ok := s.fields.TranslatePlain(ctx, source, lang, unit(field)); ok {
		return text
	}
	metrics.FieldFallbacksTotal.WithLabelValues(field).Inc()
	return source
}

func (s *TranslationService) structured(ctx context.Context, source domain.JSON, lang string, unit func(string) string, field string) domain.JSON {
	if source.IsEmpty() {
		return source
	}
	if value, ok := s.fields.TranslateStructured(ctx, json.RawMessage(source), lang, unit(field)); ok {
		return domain.JSON(value)
	}
	metrics.FieldFallbacksTotal.WithLabelValues(field).Inc()
	return source
}

func (s *TranslationService) relatedPosts(ctx context.Context, source domain.RelatedPosts, lang string, unit func(string) string, logger *slog.Logger) domain.RelatedPosts {
	if len(source) == 0 {
		return source
	}

	raw, err := json.Marshal(source)
	if err != nil {
		logger.Warn("failed to encode related posts", "error", err)
		return source
	}

	value, ok := s.fields.TranslateStructured(ctx, raw, lang, unit("relatedPosts"))
	if !ok {
		metrics.FieldFallbacksTotal.WithLabelValues("relatedPosts").Inc()
		return source
	}

	var translated domain.RelatedPosts
	if err := json.Unmarshal(value, &translated); err != nil || len(translated) != len(source) {
		logger.Warn("translated related posts do not decode", "error", err)
		metrics.FieldFallbacksTotal.WithLabelValues("relatedPosts").Inc()
		return source
	}
	return translated
}
