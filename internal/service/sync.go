package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"blog_sync/internal/config"
	"blog_sync/internal/domain"
	"blog_sync/internal/metrics"
	"blog_sync/internal/retry"
)

type SyncService struct {
	source     Source
	articles   ArticleStore
	syncState  SyncStateStore
	images     ImageResolver
	translator Translator
	publisher  Publisher
	logger     *slog.Logger
	config     config.SyncConfig
	policy     retry.Policy
}

func NewSyncService(
	source Source,
	articles ArticleStore,
	syncState SyncStateStore,
	images ImageResolver,
	translator Translator,
	publisher Publisher,
	logger *slog.Logger,
	cfg config.SyncConfig,
) *SyncService {
	return &SyncService{
		source:     source,
		articles:   articles,
		syncState:  syncState,
		images:     images,
		translator: translator,
		publisher:  publisher,
		logger:     logger.With("source", source.ID()),
		config:     cfg,
		policy:     retry.Policy{MaxAttempts: cfg.Retry.MaxAttempts, Delay: cfg.Retry.Delay},
	}
}

// Sync reconciles the full remote article set with the local store. Errors
// of single articles are recorded in the summary; only failures to list the
// local or remote articles abort the run.
func (s *SyncService) Sync(ctx context.Context, opts domain.SyncOptions) (*domain.SyncSummary, error) {
	startTime := time.Now()
	force := opts.Force || s.config.Force
	summary := &domain.SyncSummary{SourceID: s.source.ID()}

	s.logger.Info("starting sync", "source_name", s.source.Name(), "force", force)

	local, err := s.articles.ListSnapshots(ctx)
	if err != nil {
		return s.abort(summary, startTime, fmt.Errorf("list local articles: %w", err))
	}

	total, err := s.source.TotalCount(ctx)
	if err != nil {
		return s.abort(summary, startTime, fmt.Errorf("get total count: %w", err))
	}
	summary.TotalRemote = total

	var remote []domain.Article
	if total > 0 {
		remote, err = s.source.Articles(ctx, 0, total)
		if err != nil {
			return s.abort(summary, startTime, fmt.Errorf("fetch articles: %w", err))
		}
	}

	s.logger.Info("fetched articles from source", "total", total, "fetched", len(remote), "local", len(local))

	toSync := s.filterForSync(remote, local, force)
	summary.Considered = len(toSync)

	if len(toSync) == 0 {
		summary.Success = true
		summary.NoOp = true
		s.finish(ctx, summary, startTime, "")
		return summary, nil
	}

	s.logger.Info("articles to sync", "count", len(toSync))

	var lastSlug string
	for i := range toSync {
		if err := ctx.Err(); err != nil {
			summary.Error = fmt.Sprintf("sync interrupted: %v", err)
			break
		}

		result := s.processArticle(ctx, &toSync[i], local)
		summary.Results = append(summary.Results, result)
		metrics.ArticlesTotal.WithLabelValues(string(result.Status)).Inc()

		switch result.Status {
		case domain.ResultUpserted:
			summary.Upserted++
			lastSlug = result.Slug
		case domain.ResultFailed:
			summary.Failed++
		case domain.ResultSkipped:
			summary.Skipped++
		}
	}

	summary.Success = summary.Error == ""
	s.finish(ctx, summary, startTime, lastSlug)

	if !summary.Success {
		return summary, ctx.Err()
	}
	return summary, nil
}

func (s *SyncService) abort(summary *domain.SyncSummary, startTime time.Time, err error) (*domain.SyncSummary, error) {
	summary.Success = false
	summary.Error = err.Error()
	summary.Duration = time.Since(startTime)

	s.logger.Error("sync failed", "error", err, "duration", summary.Duration)
	metrics.RecordSyncRun("error", summary.Duration)

	return summary, err
}

func (s *SyncService) finish(ctx context.Context, summary *domain.SyncSummary, startTime time.Time, lastSlug string) {
	if err := s.updateSyncState(ctx, summary, lastSlug); err != nil {
		s.logger.Warn("failed to update sync state", "error", err)
	}

	summary.Duration = time.Since(startTime)

	result := "success"
	switch {
	case !summary.Success:
		result = "error"
	case summary.NoOp:
		result = "noop"
	}
	metrics.RecordSyncRun(result, summary.Duration)

	s.logger.Info("sync completed",
		"considered", summary.Considered,
		"upserted", summary.Upserted,
		"failed", summary.Failed,
		"skipped", summary.Skipped,
		"no_op", summary.NoOp,
		"duration", summary.Duration,
	)
}

// filterForSync keeps articles that are missing locally or whose remote
// updatedAt is strictly newer. With force every article is kept.
func (s *SyncService) filterForSync(remote []domain.Article, local map[string]domain.ArticleSnapshot, force bool) []domain.Article {
	if force {
		return remote
	}

	var toSync []domain.Article
	for _, article := range remote {
		existing, exists := local[article.Slug]
		if !exists || article.UpdatedAt.After(existing.UpdatedAt) {
			toSync = append(toSync, article)
		}
	}
	return toSync
}

func (s *SyncService) processArticle(ctx context.Context, article *domain.Article, local map[string]domain.ArticleSnapshot) domain.ArticleResult {
	result := domain.ArticleResult{Slug: article.Slug}

	if strings.TrimSpace(article.Slug) == "" {
		s.logger.Warn("article missing slug, skipping", "headline", article.Headline)
		result.Status = domain.ResultSkipped
		result.Error = "missing slug"
		return result
	}

	logger := s.logger.With("slug", article.Slug)
	existing, hasLocal := local[article.Slug]

	s.resolveContent(ctx, article, existing, hasLocal, logger)
	article.RelatedPosts = s.resolveRelatedPosts(ctx, article.RelatedPosts, existing.RelatedPosts, logger)
	article.ResolvedImageURL = s.resolveImage(ctx, article, existing, hasLocal, logger)

	if err := validateArticle(article); err != nil {
		logger.Warn("article failed validation", "error", err)
		result.Status = domain.ResultFailed
		result.Error = err.Error()
		return result
	}

	err := retry.Do(ctx, s.policy, logger, func(ctx context.Context) error {
		_, err := s.articles.Upsert(ctx, article)
		return err
	})
	if err != nil {
		logger.Error("failed to upsert article", "error", err)
		result.Status = domain.ResultFailed
		result.Error = fmt.Sprintf("upsert article: %v", err)
		return result
	}

	stored, err := s.articles.FindBySlug(ctx, article.Slug)
	if err != nil {
		logger.Error("failed to read upserted article", "error", err)
		result.Status = domain.ResultFailed
		result.Error = fmt.Sprintf("read upserted article: %v", err)
		return result
	}

	result.Status = domain.ResultUpserted

	for _, outcome := range s.translator.TranslateArticle(ctx, stored) {
		if outcome.Status == domain.StatusTranslated {
			result.Translated = append(result.Translated, outcome.Language)
		} else {
			result.TranslationFailed = append(result.TranslationFailed, outcome.Language)
		}
	}

	if s.publisher != nil {
		if err := s.publisher.Publish(ctx, stored, result.Translated); err != nil {
			logger.Warn("failed to publish article event", "error", err)
		}
	}

	logger.Info("article synced",
		"article_id", stored.ID,
		"translated", len(result.Translated),
		"translation_failed", len(result.TranslationFailed),
	)
	return result
}

// resolveContent fills html, outline and markdown from the full article. When
// the source keeps failing, the local copy is used.
func (s *SyncService) resolveContent(ctx context.Context, article *domain.Article, existing domain.ArticleSnapshot, hasLocal bool, logger *slog.Logger) {
	full, err := retry.DoValue(ctx, s.policy, logger, func(ctx context.Context) (*domain.Article, error) {
		return s.source.Article(ctx, article.Slug)
	})
	if err != nil {
		logger.Warn("failed to fetch full article, using local content", "error", err, "has_local", hasLocal)
		article.HTML, article.Outline, article.Markdown = "", "", ""
		if hasLocal {
			article.HTML = existing.HTML
			article.Outline = existing.Outline
			article.Markdown = existing.Markdown
		}
		return
	}

	article.HTML = firstNonEmpty(full.HTML, existing.HTML)
	article.Outline = firstNonEmpty(full.Outline, existing.Outline)
	article.Markdown = firstNonEmpty(full.Markdown, existing.Markdown)
	if article.Headline == "" {
		article.Headline = full.Headline
	}
	if len(full.RelatedPosts) > 0 {
		article.RelatedPosts = full.RelatedPosts
	}
}

// resolveRelatedPosts dedupes refs by slug and completes the ones that lack
// display fields by looking them up concurrently.
func (s *SyncService) resolveRelatedPosts(ctx context.Context, refs, stored domain.RelatedPosts, logger *slog.Logger) domain.RelatedPosts {
	if len(refs) == 0 {
		return domain.RelatedPosts{}
	}

	seen := make(map[string]bool, len(refs))
	unique := make([]domain.RelatedPost, 0, len(refs))
	for _, ref := range refs {
		if ref.Slug == "" || seen[ref.Slug] {
			continue
		}
		seen[ref.Slug] = true
		unique = append(unique, ref)
	}

	storedBySlug := make(map[string]domain.RelatedPost, len(stored))
	for _, post := range stored {
		storedBySlug[post.Slug] = post
	}

	resolved := make([]*domain.RelatedPost, len(unique))
	g, gctx := errgroup.WithContext(ctx)

	for i, ref := range unique {
		if ref.Complete() {
			resolved[i] = &unique[i]
			continue
		}

		g.Go(func() error {
			fetched, err := s.source.Article(gctx, ref.Slug)
			if err != nil {
				if post, ok := storedBySlug[ref.Slug]; ok {
					resolved[i] = &post
				} else {
					logger.Warn("dropping unresolved related post", "related_slug", ref.Slug, "error", err)
				}
				return nil
			}
			resolved[i] = relatedFromArticle(ref, fetched)
			return nil
		})
	}
	_ = g.Wait()

	posts := make(domain.RelatedPosts, 0, len(resolved))
	for _, post := range resolved {
		if post != nil {
			posts = append(posts, *post)
		}
	}
	return posts
}

func relatedFromArticle(ref domain.RelatedPost, article *domain.Article) *domain.RelatedPost {
	post := domain.RelatedPost{
		ID:       firstNonEmpty(article.ID, ref.ID),
		Slug:     ref.Slug,
		Headline: firstNonEmpty(article.Headline, ref.Headline),
		Image:    firstNonEmpty(article.Image, ref.Image),
		Excerpt:  firstNonEmpty(article.MetaDescription, ref.Excerpt),
	}
	if !article.PublishedAt.IsZero() {
		post.PublishedAt = article.PublishedAt.UTC().Format(time.RFC3339)
	} else {
		post.PublishedAt = ref.PublishedAt
	}
	return &post
}

// resolveImage returns the URL to store as the resolved image.
func (s *SyncService) resolveImage(ctx context.Context, article *domain.Article, existing domain.ArticleSnapshot, hasLocal bool, logger *slog.Logger) string {
	if article.Image == "" {
		return ""
	}
	if hasLocal && article.Image == existing.Image && existing.ResolvedImageURL != "" {
		return existing.ResolvedImageURL
	}
	if s.images == nil {
		return article.Image
	}

	key := imageObjectKey(article.Slug, article.Image)
	url, err := retry.DoValue(ctx, s.policy, logger, func(ctx context.Context) (string, error) {
		return s.images.Resolve(ctx, article.Image, key)
	})
	if err != nil {
		logger.Warn("failed to resolve image", "image", article.Image, "error", err)
		return article.Image
	}
	return url
}

// imageObjectKey is stable for a given slug and image URL, so an unchanged
// image maps to an object that already exists.
func imageObjectKey(slug, imageURL string) string {
	ext := strings.ToLower(path.Ext(strings.SplitN(imageURL, "?", 2)[0]))
	switch ext {
	case ".jpg", ".jpeg", ".png", ".gif", ".webp", ".avif", ".svg":
	default:
		ext = ".jpg"
	}
	return fmt.Sprintf("%s-%s%s", slug, uuid.NewSHA1(uuid.NameSpaceURL, []byte(imageURL)), ext)
}

func validateArticle(article *domain.Article) error {
	var missing []string
	if strings.TrimSpace(article.Headline) == "" {
		missing = append(missing, "headline")
	}
	if strings.TrimSpace(article.HTML) == "" {
		missing = append(missing, "html")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", domain.ErrValidation, strings.Join(missing, ", "))
	}
	return nil
}

func (s *SyncService) updateSyncState(ctx context.Context, summary *domain.SyncSummary, lastSlug string) error {
	state, err := s.syncState.Get(ctx, s.source.ID())
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return err
	}
	if state == nil {
		state = &domain.SyncState{}
	}

	state.SourceID = s.source.ID()
	state.LastSyncedAt = time.Now()
	if lastSlug != "" {
		state.LastArticleSlug = lastSlug
	}
	state.TotalSynced += int64(summary.Upserted)

	return s.syncState.Update(ctx, state)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
