package media

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"boingbox-backend/pkg/config"
	"boingbox-backend/pkg/resilience"
)

// ObjectStorage holds uploaded bytes
type ObjectStorage interface {
	Put(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error
	PresignedGet(ctx context.Context, key string, expiry time.Duration) (*url.URL, error)
	Remove(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
}

// MinioStore is ObjectStorage on a MinIO bucket, guarded by a circuit breaker
type MinioStore struct {
	client  *minio.Client
	bucket  string
	breaker *resilience.CircuitBreaker
}

// NewMinioStore connects to MinIO and creates the bucket when missing
func NewMinioStore(ctx context.Context, cfg config.MinIOConfig) (*MinioStore, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("failed to create bucket: %w", err)
		}
	}

	return &MinioStore{
		client:  client,
		bucket:  cfg.Bucket,
		breaker: resilience.NewCircuitBreaker("minio", resilience.DefaultConfig()),
	}, nil
}

// Put uploads one object
func (s *MinioStore) Put(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error {
	return s.breaker.Execute(ctx, "put", func(ctx context.Context) error {
		_, err := s.client.PutObject(ctx, s.bucket, key, reader, size, minio.PutObjectOptions{
			ContentType: contentType,
		})
		if err != nil {
			return fmt.Errorf("upload failed: %w", err)
		}
		return nil
	})
}

// PresignedGet returns a temporary download URL
func (s *MinioStore) PresignedGet(ctx context.Context, key string, expiry time.Duration) (*url.URL, error) {
	var u *url.URL
	err := s.breaker.Execute(ctx, "presign", func(ctx context.Context) error {
		var err error
		u, err = s.client.PresignedGetObject(ctx, s.bucket, key, expiry, nil)
		if err != nil {
			return fmt.Errorf("failed to presign download: %w", err)
		}
		return nil
	})
	return u, err
}

// Remove deletes one object; a missing object is not an error
func (s *MinioStore) Remove(ctx context.Context, key string) error {
	return s.breaker.Execute(ctx, "remove", func(ctx context.Context) error {
		if err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil {
			return fmt.Errorf("delete failed: %w", err)
		}
		return nil
	})
}

// Exists reports whether key is stored
func (s *MinioStore) Exists(ctx context.Context, key string) (bool, error) {
	found := false
	err := s.breaker.Execute(ctx, "stat", func(ctx context.Context) error {
		_, err := s.client.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{})
		if err != nil {
			if minio.ToErrorResponse(err).Code == "NoSuchKey" {
				return nil
			}
			return fmt.Errorf("stat failed: %w", err)
		}
		found = true
		return nil
	})
	return found, err
}
