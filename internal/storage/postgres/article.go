package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"blog_sync/internal/domain"
)

type ArticleStore struct {
	db *sqlx.DB
}

func NewArticleStore(db *sqlx.DB) *ArticleStore {
	return &ArticleStore{db: db}
}

const articleColumns = `
	id, slug, headline, meta_description, meta_keywords, html, markdown, outline,
	image, resolved_image_url, tags, category, reading_time, blog, related_posts,
	published, published_at, updated_at, created_at`

// Upsert inserts or replaces the article keyed by slug and returns its id.
// The id of a new row is generated here; an existing row keeps its id.
func (s *ArticleStore) Upsert(ctx context.Context, article *domain.Article) (string, error) {
	query := `
		INSERT INTO articles (
			id, slug, headline, meta_description, meta_keywords, html, markdown, outline,
			image, resolved_image_url, tags, category, reading_time, blog, related_posts,
			published, published_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10,
			COALESCE($11::jsonb, '[]'), COALESCE($12::jsonb, '{}'), $13,
			COALESCE($14::jsonb, '{}'), COALESCE($15::jsonb, '[]'),
			$16, $17, $18
		)
		ON CONFLICT (slug) DO UPDATE SET
			headline = EXCLUDED.headline,
			meta_description = EXCLUDED.meta_description,
			meta_keywords = EXCLUDED.meta_keywords,
			html = EXCLUDED.html,
			markdown = EXCLUDED.markdown,
			outline = EXCLUDED.outline,
			image = EXCLUDED.image,
			resolved_image_url = EXCLUDED.resolved_image_url,
			tags = EXCLUDED.tags,
			category = EXCLUDED.category,
			reading_time = EXCLUDED.reading_time,
			blog = EXCLUDED.blog,
			related_posts = EXCLUDED.related_posts,
			published = EXCLUDED.published,
			published_at = EXCLUDED.published_at,
			updated_at = EXCLUDED.updated_at
		RETURNING id`

	var id string
	err := GetExecutor(ctx, s.db).QueryRowxContext(ctx, query,
		uuid.NewString(),
		article.Slug,
		article.Headline,
		article.MetaDescription,
		article.MetaKeywords,
		article.HTML,
		article.Markdown,
		article.Outline,
		article.Image,
		article.ResolvedImageURL,
		article.Tags,
		article.Category,
		article.ReadingTime,
		article.Blog,
		article.RelatedPosts,
		article.Published,
		article.PublishedAt,
		article.UpdatedAt,
	).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("upsert article %q: %w", article.Slug, classify(err))
	}

	return id, nil
}

// ListSnapshots returns the fields used for change detection and fallbacks,
// keyed by slug.
func (s *ArticleStore) ListSnapshots(ctx context.Context) (map[string]domain.ArticleSnapshot, error) {
	query := `
		SELECT slug, updated_at, image, resolved_image_url, html, outline, markdown, related_posts
		FROM articles`

	var snapshots []domain.ArticleSnapshot
	if err := sqlx.SelectContext(ctx, GetExecutor(ctx, s.db), &snapshots, query); err != nil {
		return nil, fmt.Errorf("list articles: %w", classify(err))
	}

	result := make(map[string]domain.ArticleSnapshot, len(snapshots))
	for _, snapshot := range snapshots {
		result[snapshot.Slug] = snapshot
	}
	return result, nil
}

func (s *ArticleStore) FindBySlug(ctx context.Context, slug string) (*domain.Article, error) {
	query := `SELECT` + articleColumns + ` FROM articles WHERE slug = $1`

	var article domain.Article
	err := sqlx.GetContext(ctx, GetExecutor(ctx, s.db), &article, query, slug)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("article %q: %w", slug, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("find article %q: %w", slug, classify(err))
	}
	return &article, nil
}
