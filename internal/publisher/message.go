package publisher

import (
	"time"

	"github.com/google/uuid"

	"blog_sync/internal/domain"
)

// ActionSynced tells consumers that an article and its translations changed,
// so cached pages and the sitemap need a refresh.
const ActionSynced = "article.synced"

type ArticleMessage struct {
	ID        string    `json:"id"`
	Action    string    `json:"action"`
	ArticleID string    `json:"articleId"`
	Slug      string    `json:"slug"`
	Headline  string    `json:"headline"`
	Languages []string  `json:"languages"`
	UpdatedAt time.Time `json:"updatedAt"`
	Timestamp time.Time `json:"timestamp"`
}

// NewArticleMessage builds the event for an article. languages lists the
// translations that succeeded in this run.
func NewArticleMessage(article *domain.Article, languages []string, now time.Time) ArticleMessage {
	if languages == nil {
		languages = []string{}
	}
	return ArticleMessage{
		ID:        uuid.NewString(),
		Action:    ActionSynced,
		ArticleID: article.ID,
		Slug:      article.Slug,
		Headline:  article.Headline,
		Languages: languages,
		UpdatedAt: article.UpdatedAt,
		Timestamp: now.UTC(),
	}
}
