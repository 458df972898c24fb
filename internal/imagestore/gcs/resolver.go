// Package gcs copies article images into a Google Cloud Storage bucket and
// hands out signed read URLs for them.
package gcs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"path"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"blog_sync/internal/domain"
)

const maxImageSize = 20 << 20

type Config struct {
	Bucket          string
	PathPrefix      string
	CredentialsFile string
	SignedURLTTL    time.Duration
	DownloadTimeout time.Duration
}

// bucket is the part of a storage bucket the resolver needs.
type bucket interface {
	Exists(ctx context.Context, key string) (bool, error)
	Upload(ctx context.Context, key, contentType string, data []byte) error
	SignedURL(key string, expires time.Time) (string, error)
}

type Resolver struct {
	bucket     bucket
	httpClient *http.Client
	cfg        Config
	logger     *slog.Logger
	now        func() time.Time
	closeFn    func() error
}

// New connects to the configured bucket. Credentials come from
// CredentialsFile when set, else from the environment.
func New(ctx context.Context, cfg Config, logger *slog.Logger) (*Resolver, error) {
	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}

	r := newResolver(&gcsBucket{handle: client.Bucket(cfg.Bucket)}, cfg, logger)
	r.closeFn = client.Close
	return r, nil
}

func newResolver(b bucket, cfg Config, logger *slog.Logger) *Resolver {
	return &Resolver{
		bucket:     b,
		httpClient: &http.Client{},
		cfg:        cfg,
		logger:     logger.With("component", "image_resolver", "bucket", cfg.Bucket),
		now:        time.Now,
	}
}

// Resolve returns a signed URL for the stored copy of sourceURL, uploading
// it first when the object does not exist yet.
func (r *Resolver) Resolve(ctx context.Context, sourceURL, objectKey string) (string, error) {
	key := path.Join(r.cfg.PathPrefix, objectKey)
	logger := r.logger.With("key", key)

	exists, err := r.bucket.Exists(ctx, key)
	if err != nil {
		return "", fmt.Errorf("check object %s: %w", key, markTransient(err))
	}

	if !exists {
		data, contentType, err := r.download(ctx, sourceURL)
		if err != nil {
			return "", err
		}
		if err := r.bucket.Upload(ctx, key, contentType, data); err != nil {
			return "", fmt.Errorf("upload object %s: %w", key, markTransient(err))
		}
		logger.Info("image uploaded", "bytes", len(data), "content_type", contentType)
	} else {
		logger.Debug("image already stored")
	}

	url, err := r.bucket.SignedURL(key, r.now().Add(r.cfg.SignedURLTTL))
	if err != nil {
		return "", fmt.Errorf("sign url for %s: %w", key, err)
	}
	return url, nil
}

func (r *Resolver) download(ctx context.Context, sourceURL string) ([]byte, string, error) {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.DownloadTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sourceURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("create request: %w", err)
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("download image: %w: %w", domain.ErrTransient, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("download image: unexpected status %d", resp.StatusCode)
		if retryableStatus(resp.StatusCode) {
			return nil, "", fmt.Errorf("%w: %w", domain.ErrTransient, err)
		}
		return nil, "", err
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageSize+1))
	if err != nil {
		return nil, "", fmt.Errorf("read image: %w: %w", domain.ErrTransient, err)
	}
	if len(data) > maxImageSize {
		return nil, "", fmt.Errorf("image larger than %d bytes", maxImageSize)
	}
	if len(data) == 0 {
		return nil, "", errors.New("image is empty")
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}
	return data, contentType, nil
}

func retryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
}

// markTransient tags bucket errors that may succeed on a later attempt:
// rate limiting, server errors and network failures.
func markTransient(err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) && retryableStatus(apiErr.Code) {
		return fmt.Errorf("%w: %w", domain.ErrTransient, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return fmt.Errorf("%w: %w", domain.ErrTransient, err)
	}
	return err
}

func (r *Resolver) Close() error {
	if r.closeFn == nil {
		return nil
	}
	return r.closeFn()
}

type gcsBucket struct {
	handle *storage.BucketHandle
}

func (b *gcsBucket) Exists(ctx context.Context, key string) (bool, error) {
	_, err := b.handle.Object(key).Attrs(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (b *gcsBucket) Upload(ctx context.Context, key, contentType string, data []byte) error {
	w := b.handle.Object(key).NewWriter(ctx)
	w.ContentType = contentType

	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return err
	}
	return w.Close()
}

func (b *gcsBucket) SignedURL(key string, expires time.Time) (string, error) {
	return b.handle.SignedURL(key, &storage.SignedURLOptions{
		Scheme:  storage.SigningSchemeV4,
		Method:  http.MethodGet,
		Expires: expires,
	})
}
