package domain

import "time"

type Article struct {
	ID               string       `db:"id" json:"id"`
	Slug             string       `db:"slug" json:"slug"`
	Headline         string       `db:"headline" json:"headline"`
	MetaDescription  string       `db:"meta_description" json:"metaDescription"`
	MetaKeywords     string       `db:"meta_keywords" json:"metaKeywords"`
	HTML             string       `db:"html" json:"html"`
	Markdown         string       `db:"markdown" json:"markdown"`
	Outline          string       `db:"outline" json:"outline"`
	Image            string       `db:"image" json:"image"`
	ResolvedImageURL string       `db:"resolved_image_url" json:"resolvedImageUrl"`
	Tags             JSON         `db:"tags" json:"tags"`
	Category         JSON         `db:"category" json:"category"`
	ReadingTime      int          `db:"reading_time" json:"readingTime"`
	Blog             JSON         `db:"blog" json:"blog"`
	RelatedPosts     RelatedPosts `db:"related_posts" json:"relatedPosts"`
	Published        bool         `db:"published" json:"published"`
	PublishedAt      time.Time    `db:"published_at" json:"publishedAt"`
	UpdatedAt        time.Time    `db:"updated_at" json:"updatedAt"`
	CreatedAt        time.Time    `db:"created_at" json:"createdAt"`
}

// RelatedPost is a lightweight reference to another article.
type RelatedPost struct {
	ID          string `json:"id,omitempty"`
	Slug        string `json:"slug"`
	Headline    string `json:"headline,omitempty"`
	Image       string `json:"image,omitempty"`
	PublishedAt string `json:"publishedAt,omitempty"`
	Excerpt     string `json:"excerpt,omitempty"`
}

// Complete reports whether the reference carries enough data to be stored
// without looking the post up.
func (r RelatedPost) Complete() bool {
	return r.Slug != "" && r.Headline != "" && r.Image != ""
}

// ArticleSnapshot is the locally stored subset used for change detection and
// for fallbacks when the source is unreachable.
type ArticleSnapshot struct {
	Slug             string       `db:"slug"`
	UpdatedAt        time.Time    `db:"updated_at"`
	Image            string       `db:"image"`
	ResolvedImageURL string       `db:"resolved_image_url"`
	HTML             string       `db:"html"`
	Outline          string       `db:"outline"`
	Markdown         string       `db:"markdown"`
	RelatedPosts     RelatedPosts `db:"related_posts"`
}

type SyncState struct {
	ID              int64     `db:"id"`
	SourceID        string    `db:"source_id"`
	LastSyncedAt    time.Time `db:"last_synced_at"`
	LastArticleSlug string    `db:"last_article_slug"`
	TotalSynced     int64     `db:"total_synced"`
}
