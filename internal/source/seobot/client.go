// Package seobot reads articles from the SEObot blog API.
package seobot

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"blog_sync/internal/domain"
)

const (
	SourceID   = "seobot"
	SourceName = "SEObot Blog"
)

type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// Client implements the article source on top of the SEObot HTTP API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	logger     *slog.Logger
	now        func() time.Time
}

func New(cfg Config, logger *slog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		logger:  logger.With("source", SourceID),
		now:     time.Now,
	}
}

func (c *Client) ID() string {
	return SourceID
}

func (c *Client) Name() string {
	return SourceName
}

// TotalCount returns the number of articles the blog holds.
func (c *Client) TotalCount(ctx context.Context) (int, error) {
	var resp envelope[ArticleList]
	if err := c.get(ctx, "/articles", url.Values{"page": {"0"}, "limit": {"1"}}, &resp); err != nil {
		return 0, err
	}
	return resp.Data.Total, nil
}

// Articles returns up to limit articles starting at offset. The API pages by
// limit, so offset is rounded down to a page boundary.
func (c *Client) Articles(ctx context.Context, offset, limit int) ([]domain.Article, error) {
	if limit <= 0 {
		return nil, nil
	}
	page := offset / limit

	var resp envelope[ArticleList]
	query := url.Values{"page": {strconv.Itoa(page)}, "limit": {strconv.Itoa(limit)}}
	if err := c.get(ctx, "/articles", query, &resp); err != nil {
		return nil, err
	}

	now := c.now()
	articles := make([]domain.Article, 0, len(resp.Data.Articles))
	for _, a := range resp.Data.Articles {
		articles = append(articles, a.toDomain(now))
	}

	c.logger.Debug("fetched articles",
		"page", page,
		"limit", limit,
		"articles", len(articles),
		"total", resp.Data.Total,
	)

	return articles, nil
}

// Article returns the full article with its html, markdown and outline.
func (c *Client) Article(ctx context.Context, slug string) (*domain.Article, error) {
	var resp envelope[*Article]
	if err := c.get(ctx, "/article", url.Values{"slug": {slug}}, &resp); err != nil {
		return nil, err
	}
	if resp.Data == nil {
		return nil, fmt.Errorf("article %q: %w", slug, domain.ErrNotFound)
	}

	article := resp.Data.toDomain(c.now())
	return &article, nil
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	query.Set("key", c.apiKey)
	endpoint := c.baseURL + path + "?" + query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "BlogSync/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w: %w", domain.ErrTransient, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		err := fmt.Errorf("unexpected status %d from %s: %s", resp.StatusCode, path, body)
		switch {
		case resp.StatusCode == http.StatusNotFound:
			return fmt.Errorf("%w: %w", domain.ErrNotFound, err)
		case resp.StatusCode == http.StatusTooManyRequests, resp.StatusCode >= http.StatusInternalServerError:
			return fmt.Errorf("%w: %w", domain.ErrTransient, err)
		default:
			return err
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}

	return nil
}
