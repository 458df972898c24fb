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

type TranslationStore struct {
	db *sqlx.DB
}

func NewTranslationStore(db *sqlx.DB) *TranslationStore {
	return &TranslationStore{db: db}
}

func (s *TranslationStore) Get(ctx context.Context, articleID, language string) (*domain.Translation, error) {
	query := `
		SELECT id, article_id, language, slug, headline, html, meta_description, markdown,
			meta_keywords, outline, image, resolved_image_url, tags, category, reading_time,
			blog, related_posts, published, published_at, status, created_at, updated_at
		FROM article_translations
		WHERE article_id = $1 AND language = $2`

	var t domain.Translation
	err := sqlx.GetContext(ctx, GetExecutor(ctx, s.db), &t, query, articleID, language)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("translation %s/%s: %w", articleID, language, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get translation %s/%s: %w", articleID, language, classify(err))
	}
	return &t, nil
}

// Create inserts a new record and fills in its id and timestamps.
func (s *TranslationStore) Create(ctx context.Context, t *domain.Translation) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}

	query := `
		INSERT INTO article_translations (
			id, article_id, language, slug, headline, html, meta_description, markdown,
			meta_keywords, outline, image, resolved_image_url, tags, category, reading_time,
			blog, related_posts, published, published_at, status
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12,
			COALESCE($13::jsonb, '[]'), COALESCE($14::jsonb, '{}'), $15,
			COALESCE($16::jsonb, '{}'), COALESCE($17::jsonb, '[]'),
			$18, $19, $20
		)
		RETURNING created_at, updated_at`

	err := GetExecutor(ctx, s.db).QueryRowxContext(ctx, query,
		t.ID, t.ArticleID, t.Language, t.Slug, t.Headline, t.HTML, t.MetaDescription, t.Markdown,
		t.MetaKeywords, t.Outline, t.Image, t.ResolvedImageURL, t.Tags, t.Category, t.ReadingTime,
		t.Blog, t.RelatedPosts, t.Published, t.PublishedAt, t.Status,
	).Scan(&t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert translation %s/%s: %w", t.ArticleID, t.Language, classify(err))
	}
	return nil
}

func (s *TranslationStore) UpdateStatus(ctx context.Context, id string, status domain.TranslationStatus) error {
	res, err := GetExecutor(ctx, s.db).ExecContext(ctx,
		`UPDATE article_translations SET status = $2, updated_at = NOW() WHERE id = $1`,
		id, status,
	)
	if err != nil {
		return fmt.Errorf("update translation status: %w", classify(err))
	}
	return expectOneRow(res, id)
}

// Save overwrites every translated and copied field of an existing record.
func (s *TranslationStore) Save(ctx context.Context, t *domain.Translation) error {
	query := `
		UPDATE article_translations SET
			slug = $2,
			headline = $3,
			html = $4,
			meta_description = $5,
			markdown = $6,
			meta_keywords = $7,
			outline = $8,
			image = $9,
			resolved_image_url = $10,
			tags = COALESCE($11::jsonb, '[]'),
			category = COALESCE($12::jsonb, '{}'),
			reading_time = $13,
			blog = COALESCE($14::jsonb, '{}'),
			related_posts = COALESCE($15::jsonb, '[]'),
			published = $16,
			published_at = $17,
			status = $18,
			updated_at = $19
		WHERE id = $1`

	res, err := GetExecutor(ctx, s.db).ExecContext(ctx, query,
		t.ID, t.Slug, t.Headline, t.HTML, t.MetaDescription, t.Markdown, t.MetaKeywords, t.Outline,
		t.Image, t.ResolvedImageURL, t.Tags, t.Category, t.ReadingTime, t.Blog, t.RelatedPosts,
		t.Published, t.PublishedAt, t.Status, t.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("save translation %s: %w", t.ID, classify(err))
	}
	return expectOneRow(res, t.ID)
}

func expectOneRow(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("translation %s: %w", id, domain.ErrNotFound)
	}
	return nil
}
