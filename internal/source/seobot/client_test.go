package seobot

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"blog_sync/internal/domain"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	client := New(Config{BaseURL: server.URL, APIKey: "secret", Timeout: 5 * time.Second}, logger)
	client.now = func() time.Time { return time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC) }
	return client
}

func TestClient_TotalCount(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/articles", r.URL.Path)
		assert.Equal(t, "secret", r.URL.Query().Get("key"))
		assert.Equal(t, "0", r.URL.Query().Get("page"))
		assert.Equal(t, "1", r.URL.Query().Get("limit"))
		_, _ = w.Write([]byte(`{"data":{"articles":[{"slug":"a1"}],"total":42}}`))
	})

	total, err := client.TotalCount(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 42, total)
}

func TestClient_Articles(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "0", r.URL.Query().Get("page"))
		assert.Equal(t, "2", r.URL.Query().Get("limit"))
		_, _ = w.Write([]byte(`{"data":{"total":2,"articles":[
			{
				"id":"s-1","slug":"a1","headline":"Hi","image":"https://cdn.example.com/a1.png",
				"keywords":["go","sync"],
				"tags":[{"title":"Go"},{"title":"Cloud"}],
				"category":{"title":"Tech"},
				"readingTime":4,
				"relatedPosts":{"slug":"b2","headline":"Other","image":"https://cdn.example.com/b2.png"},
				"publishedAt":"2025-01-01T10:00:00Z",
				"updatedAt":"2025-01-02T10:00:00.123Z"
			},
			{
				"id":"s-2","slug":"b2","headline":"Other",
				"tags":["alpha",{"title":"Beta"}],
				"relatedPosts":[{"slug":"a1"},{"headline":"no slug"}],
				"createdAt":"2024-12-24T00:00:00Z"
			}
		]}}`))
	})

	articles, err := client.Articles(context.Background(), 0, 2)

	require.NoError(t, err)
	require.Len(t, articles, 2)

	first := articles[0]
	assert.Equal(t, "s-1", first.ID)
	assert.Equal(t, "go, sync", first.MetaKeywords)
	assert.JSONEq(t, `{"title":"Tech"}`, string(first.Category))
	assert.JSONEq(t, `{}`, string(first.Blog))
	assert.Equal(t, 4, first.ReadingTime)
	assert.Equal(t, domain.RelatedPosts{{Slug: "b2", Headline: "Other", Image: "https://cdn.example.com/b2.png"}}, first.RelatedPosts)
	assert.Equal(t, time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC), first.PublishedAt)
	assert.Equal(t, time.Date(2025, 1, 2, 10, 0, 0, 123000000, time.UTC), first.UpdatedAt)

	second := articles[1]
	assert.Equal(t, "alpha, Beta", second.MetaKeywords)
	assert.Equal(t, domain.RelatedPosts{{Slug: "a1"}}, second.RelatedPosts)
	assert.Equal(t, time.Date(2024, 12, 24, 0, 0, 0, 0, time.UTC), second.PublishedAt)
	assert.Equal(t, time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC), second.UpdatedAt)
	assert.JSONEq(t, `{}`, string(second.Category))
}

func TestClient_Article(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/article", r.URL.Path)
		assert.Equal(t, "a1", r.URL.Query().Get("slug"))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]any{
				"slug":     "a1",
				"headline": "Hi",
				"html":     "<p>Hi</p>",
				"markdown": "Hi",
				"outline":  "- Hi",
			},
		})
	})

	article, err := client.Article(context.Background(), "a1")

	require.NoError(t, err)
	assert.Equal(t, "<p>Hi</p>", article.HTML)
	assert.Equal(t, "Hi", article.Markdown)
	assert.Equal(t, "- Hi", article.Outline)
	assert.JSONEq(t, `[]`, string(article.Tags))
}

func TestClient_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		target error
	}{
		{name: "rate limited", status: http.StatusTooManyRequests, body: "slow down", target: domain.ErrTransient},
		{name: "server error", status: http.StatusBadGateway, body: "", target: domain.ErrTransient},
		{name: "not found", status: http.StatusNotFound, body: "", target: domain.ErrNotFound},
		{name: "empty data", status: http.StatusOK, body: `{"data":null}`, target: domain.ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})

			_, err := client.Article(context.Background(), "a1")

			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.target), "got %v", err)
		})
	}
}

func TestClient_UnauthorizedIsNotTransient(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	_, err := client.Article(context.Background(), "a1")

	require.Error(t, err)
	assert.ErrorContains(t, err, "unexpected status 401")
	assert.False(t, errors.Is(err, domain.ErrTransient))
	assert.False(t, errors.Is(err, domain.ErrNotFound))
}

func TestJoinStrings(t *testing.T) {
	assert.Equal(t, "", joinStrings(nil))
	assert.Equal(t, "", joinStrings(json.RawMessage("null")))
	assert.Equal(t, "one, two", joinStrings(json.RawMessage(`"one, two"`)))
	assert.Equal(t, "a, b", joinStrings(json.RawMessage(`["a",{"title":"b"},{"slug":"x"},""]`)))
	assert.Equal(t, "", joinStrings(json.RawMessage(`42`)))
}
