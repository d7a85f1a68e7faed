// Package storage archives raw inbound payloads in MinIO.
package storage

import (
	"bytes"
	"context"
	"fmt"

	"listing_leads_backend/platform/config"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinIOService stores objects in a single bucket.
type MinIOService struct {
	client *minio.Client
	bucket string
}

// NewMinIOService creates a new MinIO storage service.
func NewMinIOService(cfg config.ArchiveConfig) (*MinIOService, error) {
	if !cfg.IsArchiveEnabled() {
		return nil, fmt.Errorf("MinIO is not configured")
	}

	client, err := minio.New(cfg.GetMinIOEndpoint(), &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.GetMinIOAccessKey(), cfg.GetMinIOSecretKey(), ""),
		Secure: cfg.GetMinIOUseSSL(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}

	return &MinIOService{client: client, bucket: cfg.GetMinIOBucketInboundEmail()}, nil
}

// Bucket returns the archive bucket name.
func (s *MinIOService) Bucket() string {
	return s.bucket
}

// EnsureBucketExists creates the bucket if it doesn't exist.
func (s *MinIOService) EnsureBucketExists(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket existence: %w", err)
	}

	if !exists {
		err = s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{})
		if err != nil {
			return fmt.Errorf("failed to create bucket %s: %w", s.bucket, err)
		}
	}

	return nil
}

// ArchiveInboundEmail stores a JSON encoded inbound email under key.
func (s *MinIOService) ArchiveInboundEmail(ctx context.Context, key string, payload []byte) error {
	_, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(payload), int64(len(payload)), minio.PutObjectOptions{
		ContentType: "application/json",
	})
	if err != nil {
		return fmt.Errorf("failed to upload %s: %w", key, err)
	}
	return nil
}
