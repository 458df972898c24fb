package domain

import "time"

type TranslationStatus string

const (
	StatusPending          TranslationStatus = "pending"
	StatusInTranslation    TranslationStatus = "in_translation"
	StatusTranslated       TranslationStatus = "translated"
	StatusErrorTranslating TranslationStatus = "error_translating"
)

// Terminal reports whether no further transition is expected in this run.
func (s TranslationStatus) Terminal() bool {
	return s == StatusTranslated || s == StatusErrorTranslating
}

type Translation struct {
	ID               string            `db:"id" json:"id"`
	ArticleID        string            `db:"article_id" json:"articleId"`
	Language         string            `db:"language" json:"language"`
	Slug             string            `db:"slug" json:"slug"`
	Headline         string            `db:"headline" json:"headline"`
	HTML             string            `db:"html" json:"html"`
	MetaDescription  string            `db:"meta_description" json:"metaDescription"`
	Markdown         string            `db:"markdown" json:"markdown"`
	MetaKeywords     string            `db:"meta_keywords" json:"metaKeywords"`
	Outline          string            `db:"outline" json:"outline"`
	Image            string            `db:"image" json:"image"`
	ResolvedImageURL string            `db:"resolved_image_url" json:"resolvedImageUrl"`
	Tags             JSON              `db:"tags" json:"tags"`
	Category         JSON              `db:"category" json:"category"`
	ReadingTime      int               `db:"reading_time" json:"readingTime"`
	Blog             JSON              `db:"blog" json:"blog"`
	RelatedPosts     RelatedPosts      `db:"related_posts" json:"relatedPosts"`
	Published        bool              `db:"published" json:"published"`
	PublishedAt      time.Time         `db:"published_at" json:"publishedAt"`
	Status           TranslationStatus `db:"status" json:"status"`
	CreatedAt        time.Time         `db:"created_at" json:"createdAt"`
	UpdatedAt        time.Time         `db:"updated_at" json:"updatedAt"`
}

// NewPendingTranslation copies the source article into a fresh, unpublished
// record for the given language.
func NewPendingTranslation(article *Article, language string) *Translation {
	return &Translation{
		ArticleID:        article.ID,
		Language:         language,
		Slug:             article.Slug,
		Headline:         article.Headline,
		HTML:             article.HTML,
		MetaDescription:  article.MetaDescription,
		Markdown:         article.Markdown,
		MetaKeywords:     article.MetaKeywords,
		Outline:          article.Outline,
		Image:            article.Image,
		ResolvedImageURL: article.ResolvedImageURL,
		Tags:             article.Tags,
		Category:         article.Category,
		ReadingTime:      article.ReadingTime,
		Blog:             article.Blog,
		RelatedPosts:     article.RelatedPosts,
		Published:        false,
		PublishedAt:      article.PublishedAt,
		Status:           StatusPending,
	}
}

// TranslationOutcome is the per-language result of translating one article.
type TranslationOutcome struct {
	Language string            `json:"language"`
	Status   TranslationStatus `json:"status"`
	Error    string            `json:"error,omitempty"`
}
