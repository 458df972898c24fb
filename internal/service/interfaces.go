package service

//go:generate mockgen -source=interfaces.go -destination=mocks/mocks.go -package=mocks

import (
	"context"
	"encoding/json"

	"blog_sync/internal/domain"
)

type ArticleStore interface {
	Upsert(ctx context.Context, article *domain.Article) (string, error)
	ListSnapshots(ctx context.Context) (map[string]domain.ArticleSnapshot, error)
	FindBySlug(ctx context.Context, slug string) (*domain.Article, error)
}

type TranslationStore interface {
	Get(ctx context.Context, articleID, language string) (*domain.Translation, error)
	Create(ctx context.Context, translation *domain.Translation) error
	UpdateStatus(ctx context.Context, id string, status domain.TranslationStatus) error
	Save(ctx context.Context, translation *domain.Translation) error
}

type SyncStateStore interface {
	Get(ctx context.Context, sourceID string) (*domain.SyncState, error)
	Update(ctx context.Context, state *domain.SyncState) error
}

type Source interface {
	ID() string
	Name() string
	TotalCount(ctx context.Context) (int, error)
	Articles(ctx context.Context, offset, limit int) ([]domain.Article, error)
	Article(ctx context.Context, slug string) (*domain.Article, error)
}

type ImageResolver interface {
	Resolve(ctx context.Context, sourceURL, objectKey string) (string, error)
}

type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

type Publisher interface {
	Publish(ctx context.Context, article *domain.Article, languages []string) error
	Close() error
}

type Translator interface {
	TranslateArticle(ctx context.Context, article *domain.Article) []domain.TranslationOutcome
}

type FieldTranslator interface {
	TranslatePlain(ctx context.Context, content, targetLanguage, unitID string) (string, bool)
	TranslateStructured(ctx context.Context, value json.RawMessage, targetLanguage, unitID string) (json.RawMessage, bool)
	CheckMarkup(source, translated, targetLanguage, unitID string)
}
