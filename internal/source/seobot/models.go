package seobot

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"

	"blog_sync/internal/domain"
)

type envelope[T any] struct {
	Data T `json:"data"`
}

type ArticleList struct {
	Articles []Article `json:"articles"`
	Total    int       `json:"total"`
}

type Article struct {
	ID              string          `json:"id"`
	Slug            string          `json:"slug"`
	Headline        string          `json:"headline"`
	MetaDescription string          `json:"metaDescription"`
	MetaKeywords    string          `json:"metaKeywords"`
	Keywords        json.RawMessage `json:"keywords"`
	HTML            string          `json:"html"`
	Markdown        string          `json:"markdown"`
	Outline         string          `json:"outline"`
	Image           string          `json:"image"`
	Tags            json.RawMessage `json:"tags"`
	Category        json.RawMessage `json:"category"`
	ReadingTime     int             `json:"readingTime"`
	Blog            json.RawMessage `json:"blog"`
	RelatedPosts    json.RawMessage `json:"relatedPosts"`
	PublishedAt     string          `json:"publishedAt"`
	CreatedAt       string          `json:"createdAt"`
	UpdatedAt       string          `json:"updatedAt"`
}

type relatedPost struct {
	ID          string `json:"id"`
	Slug        string `json:"slug"`
	Headline    string `json:"headline"`
	Image       string `json:"image"`
	PublishedAt string `json:"publishedAt"`
	Excerpt     string `json:"excerpt"`
}

type tag struct {
	Title string `json:"title"`
}

// toDomain maps the wire article. now is used when the source carries no
// usable timestamps.
func (a Article) toDomain(now time.Time) domain.Article {
	return domain.Article{
		ID:              a.ID,
		Slug:            a.Slug,
		Headline:        a.Headline,
		MetaDescription: a.MetaDescription,
		MetaKeywords:    a.metaKeywords(),
		HTML:            a.HTML,
		Markdown:        a.Markdown,
		Outline:         a.Outline,
		Image:           a.Image,
		Tags:            jsonOr(a.Tags, "[]"),
		Category:        jsonOr(a.Category, "{}"),
		ReadingTime:     a.ReadingTime,
		Blog:            jsonOr(a.Blog, "{}"),
		RelatedPosts:    normalizeRelatedPosts(a.RelatedPosts),
		Published:       true,
		PublishedAt:     firstTime(now, a.PublishedAt, a.CreatedAt),
		UpdatedAt:       firstTime(now, a.UpdatedAt),
	}
}

// metaKeywords prefers the explicit value, then keywords, then tag titles.
func (a Article) metaKeywords() string {
	if a.MetaKeywords != "" {
		return a.MetaKeywords
	}
	if kw := joinStrings(a.Keywords); kw != "" {
		return kw
	}
	return joinStrings(a.Tags)
}

// joinStrings accepts a string, or an array of strings or {title} objects,
// and joins the values with ", ".
func joinStrings(raw json.RawMessage) string {
	if isNull(raw) {
		return ""
	}

	var single string
	if err := json.Unmarshal(raw, &single); err == nil {
		return single
	}

	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return ""
	}

	values := make([]string, 0, len(items))
	for _, item := range items {
		var s string
		if err := json.Unmarshal(item, &s); err == nil {
			if s != "" {
				values = append(values, s)
			}
			continue
		}
		var t tag
		if err := json.Unmarshal(item, &t); err == nil && t.Title != "" {
			values = append(values, t.Title)
		}
	}
	return strings.Join(values, ", ")
}

// normalizeRelatedPosts accepts a single object, an array or nothing.
func normalizeRelatedPosts(raw json.RawMessage) domain.RelatedPosts {
	if isNull(raw) {
		return nil
	}

	var list []relatedPost
	if err := json.Unmarshal(raw, &list); err != nil {
		var single relatedPost
		if err := json.Unmarshal(raw, &single); err != nil {
			return nil
		}
		list = []relatedPost{single}
	}

	posts := make(domain.RelatedPosts, 0, len(list))
	for _, p := range list {
		if p.Slug == "" {
			continue
		}
		posts = append(posts, domain.RelatedPost{
			ID:          p.ID,
			Slug:        p.Slug,
			Headline:    p.Headline,
			Image:       p.Image,
			PublishedAt: p.PublishedAt,
			Excerpt:     p.Excerpt,
		})
	}
	return posts
}

func jsonOr(raw json.RawMessage, fallback string) domain.JSON {
	if isNull(raw) {
		return domain.JSON(fallback)
	}
	return domain.JSON(raw)
}

func isNull(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

func firstTime(fallback time.Time, values ...string) time.Time {
	for _, v := range values {
		if v == "" {
			continue
		}
		if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
			return t
		}
	}
	return fallback
}
