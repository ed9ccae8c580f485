// Package objectstore provides the MinIO-backed artifact storage used for
// uploaded documents.
package objectstore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/careerdock/docflow-api/internal/config"
)

// MinioStore stores document artifacts in a MinIO (S3-compatible) bucket.
type MinioStore struct {
	client *minio.Client
	bucket string
	logger *slog.Logger
}

// NewMinioStore creates a MinIO client from configuration and ensures the
// configured bucket exists, creating it if necessary.
func NewMinioStore(ctx context.Context, cfg config.StorageConfig, logger *slog.Logger) (*MinioStore, error) {
	if logger == nil {
		logger = slog.Default()
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket %q: %w", cfg.Bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("failed to create bucket %q: %w", cfg.Bucket, err)
		}
		logger.Info("created storage bucket", slog.String("bucket", cfg.Bucket))
	}

	return &MinioStore{
		client: client,
		bucket: cfg.Bucket,
		logger: logger.With(slog.String("component", "object_store")),
	}, nil
}

// Put uploads an artifact under the given key with the given content type.
func (s *MinioStore) Put(ctx context.Context, key string, content []byte, contentType string) error {
	_, err := s.client.PutObject(
		ctx,
		s.bucket,
		key,
		bytes.NewReader(content),
		int64(len(content)),
		minio.PutObjectOptions{ContentType: contentType},
	)
	if err != nil {
		return fmt.Errorf("failed to store artifact %q: %w", key, err)
	}

	s.logger.Debug("stored artifact",
		slog.String("key", key),
		slog.Int("size_bytes", len(content)))
	return nil
}

// Get downloads the artifact stored under the given key.
func (s *MinioStore) Get(ctx context.Context, key string) ([]byte, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to open artifact %q: %w", key, err)
	}
	defer func() {
		if err := obj.Close(); err != nil {
			s.logger.Error("failed to close artifact reader",
				slog.String("key", key),
				slog.String("error", err.Error()))
		}
	}()

	content, err := io.ReadAll(obj)
	if err != nil {
		return nil, fmt.Errorf("failed to read artifact %q: %w", key, err)
	}

	return content, nil
}

// Delete removes the artifact stored under the given key.
// Deleting a missing key is not an error.
func (s *MinioStore) Delete(ctx context.Context, key string) error {
	if err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("failed to delete artifact %q: %w", key, err)
	}

	s.logger.Debug("deleted artifact", slog.String("key", key))
	return nil
}
