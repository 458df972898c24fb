package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"blog_sync/internal/config"
	"blog_sync/internal/imagestore/gcs"
	"blog_sync/internal/llm"
	"blog_sync/internal/metrics"
	"blog_sync/internal/publisher"
	"blog_sync/internal/service"
	"blog_sync/internal/source/seobot"
	"blog_sync/internal/storage/postgres"
	"blog_sync/internal/translate"
)

// app holds the wired components shared by the run and schedule commands.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	sync    *service.SyncService
	closers []func() error
}

func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	a := &app{cfg: cfg, logger: logger}

	db, err := sqlx.Connect("postgres", cfg.Database.DSN())
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	a.closers = append(a.closers, db.Close)

	if err := db.PingContext(ctx); err != nil {
		a.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	logger.Info("connected to database")

	providers := llm.BuildProviders(cfg.LLM)
	registry := llm.NewRegistry(cfg.LLM, providers, logger)
	if err := registry.Validate(); err != nil {
		a.Close()
		return nil, err
	}

	var pub service.Publisher
	if cfg.RabbitMQ.Enabled {
		rabbitMQ, err := publisher.NewRabbitMQ(publisher.Config{
			URL:        cfg.RabbitMQ.URL,
			Exchange:   cfg.RabbitMQ.Exchange,
			RoutingKey: cfg.RabbitMQ.RoutingKey,
			QueueName:  cfg.RabbitMQ.QueueName,
		}, logger)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("connect to rabbitmq: %w", err)
		}
		a.closers = append(a.closers, rabbitMQ.Close)
		pub = rabbitMQ
	}

	var images service.ImageResolver
	if cfg.Storage.Bucket != "" {
		resolver, err := gcs.New(ctx, gcs.Config{
			Bucket:          cfg.Storage.Bucket,
			PathPrefix:      cfg.Storage.PathPrefix,
			CredentialsFile: cfg.Storage.CredentialsFile,
			SignedURLTTL:    cfg.Storage.SignedURLTTL,
			DownloadTimeout: cfg.Storage.DownloadTimeout,
		}, logger)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.closers = append(a.closers, resolver.Close)
		images = resolver
	}

	var detector *translate.LanguageDetector
	if cfg.Translation.DetectLanguage {
		detector = translate.NewLanguageDetector()
	}

	fields := translate.NewFieldTranslator(registry, cfg.Translation, detector, logger)
	translations := service.NewTranslationService(
		postgres.NewTranslationStore(db),
		postgres.NewTransactionManager(db),
		fields,
		cfg.Translation,
		logger,
	)

	source := seobot.New(seobot.Config{
		BaseURL: cfg.SEObot.BaseURL,
		APIKey:  cfg.SEObot.APIKey,
		Timeout: cfg.SEObot.Timeout,
	}, logger)

	a.sync = service.NewSyncService(
		source,
		postgres.NewArticleStore(db),
		postgres.NewSyncStateStore(db),
		images,
		translations,
		pub,
		logger,
		cfg.Sync,
	)

	return a, nil
}

// serveMetrics exposes /metrics until ctx is cancelled. An empty address
// disables the endpoint.
func (a *app) serveMetrics(ctx context.Context) {
	if a.cfg.Metrics.Addr == "" {
		return
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	srv := &http.Server{
		Addr:              a.cfg.Metrics.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("metrics server failed", "error", err)
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	a.logger.Info("serving metrics", "addr", a.cfg.Metrics.Addr)
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
