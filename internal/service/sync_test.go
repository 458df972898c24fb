package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"blog_sync/internal/config"
	"blog_sync/internal/domain"
	"blog_sync/internal/service/mocks"
)

type SyncServiceTestSuite struct {
	suite.Suite
	ctrl *gomock.Controller

	source     *mocks.MockSource
	articles   *mocks.MockArticleStore
	syncState  *mocks.MockSyncStateStore
	images     *mocks.MockImageResolver
	translator *mocks.MockTranslator
	publisher  *mocks.MockPublisher

	service *SyncService
	cfg     config.SyncConfig
	logger  *slog.Logger
	t1      time.Time
}

func (s *SyncServiceTestSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())

	s.source = mocks.NewMockSource(s.ctrl)
	s.articles = mocks.NewMockArticleStore(s.ctrl)
	s.syncState = mocks.NewMockSyncStateStore(s.ctrl)
	s.images = mocks.NewMockImageResolver(s.ctrl)
	s.translator = mocks.NewMockTranslator(s.ctrl)
	s.publisher = mocks.NewMockPublisher(s.ctrl)

	s.cfg = config.SyncConfig{
		Interval: 5 * time.Minute,
		Retry:    config.RetryConfig{MaxAttempts: 3, Delay: time.Millisecond},
	}
	s.t1 = time.Date(2025, 1, 10, 8, 0, 0, 0, time.UTC)

	s.logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	s.source.EXPECT().ID().Return("test-source").AnyTimes()
	s.source.EXPECT().Name().Return("Test Source").AnyTimes()

	s.service = NewSyncService(
		s.source,
		s.articles,
		s.syncState,
		s.images,
		s.translator,
		s.publisher,
		s.logger,
		s.cfg,
	)
}

func (s *SyncServiceTestSuite) TearDownTest() {
	s.ctrl.Finish()
}

func TestSyncServiceTestSuite(t *testing.T) {
	suite.Run(t, new(SyncServiceTestSuite))
}

func (s *SyncServiceTestSuite) expectSyncState(upserted int64) {
	s.syncState.EXPECT().Get(gomock.Any(), "test-source").Return(&domain.SyncState{SourceID: "test-source"}, nil)
	s.syncState.EXPECT().Update(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, state *domain.SyncState) error {
			s.Equal(upserted, state.TotalSynced)
			return nil
		},
	)
}

func (s *SyncServiceTestSuite) remoteA1() domain.Article {
	return domain.Article{Slug: "a1", Headline: "Hi", UpdatedAt: s.t1}
}

func (s *SyncServiceTestSuite) TestSync_NewArticleIsStoredAndTranslated() {
	ctx := context.Background()
	remote := s.remoteA1()

	s.articles.EXPECT().ListSnapshots(ctx).Return(map[string]domain.ArticleSnapshot{}, nil)
	s.source.EXPECT().TotalCount(ctx).Return(1, nil)
	s.source.EXPECT().Articles(ctx, 0, 1).Return([]domain.Article{remote}, nil)
	s.source.EXPECT().Article(gomock.Any(), "a1").Return(&domain.Article{Slug: "a1", HTML: "<p>Hi</p>"}, nil)

	var upserted *domain.Article
	s.articles.EXPECT().Upsert(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, article *domain.Article) (string, error) {
			upserted = article
			return "id-1", nil
		},
	)

	stored := &domain.Article{ID: "id-1", Slug: "a1", Headline: "Hi", HTML: "<p>Hi</p>", UpdatedAt: s.t1}
	s.articles.EXPECT().FindBySlug(ctx, "a1").Return(stored, nil)
	s.translator.EXPECT().TranslateArticle(ctx, stored).Return([]domain.TranslationOutcome{
		{Language: "fr", Status: domain.StatusTranslated},
		{Language: "de", Status: domain.StatusErrorTranslating, Error: "headline translation failed"},
	})
	s.publisher.EXPECT().Publish(ctx, stored, []string{"fr"}).Return(nil)
	s.expectSyncState(1)

	summary, err := s.service.Sync(ctx, domain.SyncOptions{})

	s.NoError(err)
	s.True(summary.Success)
	s.False(summary.NoOp)
	s.Equal(1, summary.TotalRemote)
	s.Equal(1, summary.Considered)
	s.Equal(1, summary.Upserted)
	s.Equal(0, summary.Failed)
	s.Require().Len(summary.Results, 1)
	s.Equal(domain.ArticleResult{
		Slug:              "a1",
		Status:            domain.ResultUpserted,
		Translated:        []string{"fr"},
		TranslationFailed: []string{"de"},
	}, summary.Results[0])

	s.Require().NotNil(upserted)
	s.Equal("<p>Hi</p>", upserted.HTML)
	s.Equal("", upserted.ResolvedImageURL)
	s.Empty(upserted.RelatedPosts)
}

func (s *SyncServiceTestSuite) TestSync_UnchangedArticlesAreNoOp() {
	ctx := context.Background()

	s.articles.EXPECT().ListSnapshots(ctx).Return(map[string]domain.ArticleSnapshot{
		"a1": {Slug: "a1", UpdatedAt: s.t1},
	}, nil)
	s.source.EXPECT().TotalCount(ctx).Return(1, nil)
	s.source.EXPECT().Articles(ctx, 0, 1).Return([]domain.Article{s.remoteA1()}, nil)
	s.expectSyncState(0)

	summary, err := s.service.Sync(ctx, domain.SyncOptions{})

	s.NoError(err)
	s.True(summary.Success)
	s.True(summary.NoOp)
	s.Equal(0, summary.Considered)
	s.Equal(0, summary.Upserted)
	s.Empty(summary.Results)
}

func (s *SyncServiceTestSuite) TestSync_ForceReprocessesUnchanged() {
	ctx := context.Background()
	local := map[string]domain.ArticleSnapshot{
		"a1": {Slug: "a1", UpdatedAt: s.t1, HTML: "<p>Old</p>"},
	}

	s.articles.EXPECT().ListSnapshots(ctx).Return(local, nil)
	s.source.EXPECT().TotalCount(ctx).Return(1, nil)
	s.source.EXPECT().Articles(ctx, 0, 1).Return([]domain.Article{s.remoteA1()}, nil)
	s.source.EXPECT().Article(gomock.Any(), "a1").Return(&domain.Article{Slug: "a1", HTML: "<p>Hi</p>"}, nil)
	s.articles.EXPECT().Upsert(gomock.Any(), gomock.Any()).Return("id-1", nil)

	stored := &domain.Article{ID: "id-1", Slug: "a1"}
	s.articles.EXPECT().FindBySlug(ctx, "a1").Return(stored, nil)
	s.translator.EXPECT().TranslateArticle(ctx, stored).Return(nil)
	s.publisher.EXPECT().Publish(ctx, stored, gomock.Nil()).Return(nil)
	s.expectSyncState(1)

	summary, err := s.service.Sync(ctx, domain.SyncOptions{Force: true})

	s.NoError(err)
	s.Equal(1, summary.Considered)
	s.Equal(1, summary.Upserted)
}

func (s *SyncServiceTestSuite) TestSync_ContentFetchFallsBackToLocal() {
	ctx := context.Background()
	local := map[string]domain.ArticleSnapshot{
		"a1": {Slug: "a1", UpdatedAt: s.t1.Add(-time.Hour), HTML: "<p>Local</p>", Markdown: "Local"},
	}

	s.articles.EXPECT().ListSnapshots(ctx).Return(local, nil)
	s.source.EXPECT().TotalCount(ctx).Return(1, nil)
	s.source.EXPECT().Articles(ctx, 0, 1).Return([]domain.Article{s.remoteA1()}, nil)
	s.source.EXPECT().Article(gomock.Any(), "a1").Return(nil, fmt.Errorf("429 too many requests: %w", domain.ErrTransient)).Times(3)

	var upserted *domain.Article
	s.articles.EXPECT().Upsert(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, article *domain.Article) (string, error) {
			upserted = article
			return "id-1", nil
		},
	)
	stored := &domain.Article{ID: "id-1", Slug: "a1"}
	s.articles.EXPECT().FindBySlug(ctx, "a1").Return(stored, nil)
	s.translator.EXPECT().TranslateArticle(ctx, stored).Return(nil)
	s.publisher.EXPECT().Publish(ctx, stored, gomock.Any()).Return(nil)
	s.expectSyncState(1)

	summary, err := s.service.Sync(ctx, domain.SyncOptions{})

	s.NoError(err)
	s.Equal(1, summary.Upserted)
	s.Require().NotNil(upserted)
	s.Equal("<p>Local</p>", upserted.HTML)
	s.Equal("Local", upserted.Markdown)
}

func (s *SyncServiceTestSuite) TestSync_MissingContentIsValidationFailure() {
	ctx := context.Background()
	remote := []domain.Article{
		s.remoteA1(),
		{Slug: "", Headline: "No slug", UpdatedAt: s.t1},
	}

	s.articles.EXPECT().ListSnapshots(ctx).Return(map[string]domain.ArticleSnapshot{}, nil)
	s.source.EXPECT().TotalCount(ctx).Return(2, nil)
	s.source.EXPECT().Articles(ctx, 0, 2).Return(remote, nil)
	s.source.EXPECT().Article(gomock.Any(), "a1").Return(nil, domain.ErrNotFound).Times(1)
	s.expectSyncState(0)

	summary, err := s.service.Sync(ctx, domain.SyncOptions{})

	s.NoError(err)
	s.True(summary.Success)
	s.Equal(2, summary.Considered)
	s.Equal(0, summary.Upserted)
	s.Equal(1, summary.Failed)
	s.Equal(1, summary.Skipped)
	s.Require().Len(summary.Results, 2)
	s.Equal(domain.ResultFailed, summary.Results[0].Status)
	s.Contains(summary.Results[0].Error, "missing html")
	s.Equal(domain.ResultSkipped, summary.Results[1].Status)
}

func (s *SyncServiceTestSuite) TestSync_UpsertFailureDoesNotAbortBatch() {
	ctx := context.Background()
	remote := []domain.Article{
		s.remoteA1(),
		{Slug: "b2", Headline: "Second", UpdatedAt: s.t1},
	}

	s.articles.EXPECT().ListSnapshots(ctx).Return(map[string]domain.ArticleSnapshot{}, nil)
	s.source.EXPECT().TotalCount(ctx).Return(2, nil)
	s.source.EXPECT().Articles(ctx, 0, 2).Return(remote, nil)
	s.source.EXPECT().Article(gomock.Any(), "a1").Return(&domain.Article{HTML: "<p>Hi</p>"}, nil)
	s.source.EXPECT().Article(gomock.Any(), "b2").Return(&domain.Article{HTML: "<p>Two</p>"}, nil)

	gomock.InOrder(
		s.articles.EXPECT().Upsert(gomock.Any(), gomock.Any()).Return("", fmt.Errorf("deadlock: %w", domain.ErrTransient)).Times(3),
		s.articles.EXPECT().Upsert(gomock.Any(), gomock.Any()).Return("id-2", nil),
	)
	stored := &domain.Article{ID: "id-2", Slug: "b2"}
	s.articles.EXPECT().FindBySlug(ctx, "b2").Return(stored, nil)
	s.translator.EXPECT().TranslateArticle(ctx, stored).Return(nil)
	s.publisher.EXPECT().Publish(ctx, stored, gomock.Any()).Return(errors.New("channel closed"))
	s.expectSyncState(1)

	summary, err := s.service.Sync(ctx, domain.SyncOptions{})

	s.NoError(err)
	s.Equal(1, summary.Upserted)
	s.Equal(1, summary.Failed)
	s.Contains(summary.Results[0].Error, "after 3 attempts")
	s.Equal(domain.ResultUpserted, summary.Results[1].Status)
}

func (s *SyncServiceTestSuite) TestSync_BatchFailures() {
	ctx := context.Background()

	s.Run("local store", func() {
		s.SetupTest()
		s.articles.EXPECT().ListSnapshots(ctx).Return(nil, errors.New("db down"))

		summary, err := s.service.Sync(ctx, domain.SyncOptions{})

		s.Error(err)
		s.False(summary.Success)
		s.Contains(summary.Error, "list local articles")
	})

	s.Run("total count", func() {
		s.SetupTest()
		s.articles.EXPECT().ListSnapshots(ctx).Return(map[string]domain.ArticleSnapshot{}, nil)
		s.source.EXPECT().TotalCount(ctx).Return(0, errors.New("unauthorized"))

		summary, err := s.service.Sync(ctx, domain.SyncOptions{})

		s.Error(err)
		s.False(summary.Success)
		s.Contains(summary.Error, "get total count")
	})

	s.Run("remote list", func() {
		s.SetupTest()
		s.articles.EXPECT().ListSnapshots(ctx).Return(map[string]domain.ArticleSnapshot{}, nil)
		s.source.EXPECT().TotalCount(ctx).Return(4, nil)
		s.source.EXPECT().Articles(ctx, 0, 4).Return(nil, errors.New("bad gateway"))

		summary, err := s.service.Sync(ctx, domain.SyncOptions{})

		s.Error(err)
		s.False(summary.Success)
		s.Equal(4, summary.TotalRemote)
	})
}

func (s *SyncServiceTestSuite) TestResolveRelatedPosts() {
	ctx := context.Background()
	published := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	refs := domain.RelatedPosts{
		{Slug: "full", Headline: "Full", Image: "https://cdn.example.com/full.png"},
		{Slug: "full", Headline: "Duplicate", Image: "https://cdn.example.com/dup.png"},
		{Slug: "fetch"},
		{Slug: "stored"},
		{Slug: "gone"},
		{Slug: ""},
	}
	stored := domain.RelatedPosts{{Slug: "stored", Headline: "From store", Image: "https://cdn.example.com/s.png"}}

	s.source.EXPECT().Article(gomock.Any(), "fetch").Return(&domain.Article{
		ID: "id-f", Slug: "fetch", Headline: "Fetched", Image: "https://cdn.example.com/f.png",
		MetaDescription: "Excerpt", PublishedAt: published,
	}, nil)
	s.source.EXPECT().Article(gomock.Any(), "stored").Return(nil, errors.New("timeout"))
	s.source.EXPECT().Article(gomock.Any(), "gone").Return(nil, errors.New("timeout"))

	posts := s.service.resolveRelatedPosts(ctx, refs, stored, s.logger)

	s.Equal(domain.RelatedPosts{
		{Slug: "full", Headline: "Full", Image: "https://cdn.example.com/full.png"},
		{ID: "id-f", Slug: "fetch", Headline: "Fetched", Image: "https://cdn.example.com/f.png", PublishedAt: "2025-01-01T00:00:00Z", Excerpt: "Excerpt"},
		{Slug: "stored", Headline: "From store", Image: "https://cdn.example.com/s.png"},
	}, posts)
}

func (s *SyncServiceTestSuite) TestResolveImage() {
	ctx := context.Background()
	article := &domain.Article{Slug: "a1", Image: "https://cdn.example.com/new.png"}
	key := imageObjectKey("a1", "https://cdn.example.com/new.png")

	s.Run("unchanged keeps local", func() {
		existing := domain.ArticleSnapshot{Image: article.Image, ResolvedImageURL: "https://storage.example.com/signed"}
		s.Equal("https://storage.example.com/signed", s.service.resolveImage(ctx, article, existing, true, s.logger))
	})

	s.Run("absent clears", func() {
		existing := domain.ArticleSnapshot{Image: "https://cdn.example.com/old.png", ResolvedImageURL: "https://storage.example.com/old"}
		s.Equal("", s.service.resolveImage(ctx, &domain.Article{Slug: "a1"}, existing, true, s.logger))
	})

	s.Run("changed is uploaded", func() {
		s.images.EXPECT().Resolve(gomock.Any(), article.Image, key).Return("https://storage.example.com/new", nil)
		s.Equal("https://storage.example.com/new", s.service.resolveImage(ctx, article, domain.ArticleSnapshot{}, false, s.logger))
	})

	s.Run("changed image failure uses source url", func() {
		existing := domain.ArticleSnapshot{Image: "https://cdn.example.com/old.png", ResolvedImageURL: "https://storage.example.com/old"}
		s.images.EXPECT().Resolve(gomock.Any(), article.Image, key).
			Return("", fmt.Errorf("upload: %w", domain.ErrTransient)).Times(3)
		s.Equal(article.Image, s.service.resolveImage(ctx, article, existing, true, s.logger))
	})

	s.Run("permanent failure is not retried", func() {
		s.images.EXPECT().Resolve(gomock.Any(), article.Image, key).Return("", errors.New("forbidden")).Times(1)
		s.Equal(article.Image, s.service.resolveImage(ctx, article, domain.ArticleSnapshot{}, false, s.logger))
	})
}

func (s *SyncServiceTestSuite) TestImageObjectKey() {
	key := imageObjectKey("a1", "https://cdn.example.com/pic.PNG?w=800")
	s.Regexp(`^a1-[0-9a-f-]{36}\.png$`, key)
	s.Equal(key, imageObjectKey("a1", "https://cdn.example.com/pic.PNG?w=800"))
	s.Regexp(`\.jpg$`, imageObjectKey("a1", "https://cdn.example.com/image"))
}
