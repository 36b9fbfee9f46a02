// Package blob stores content bundles and images in an S3-compatible
// bucket. Uploads go client-direct through short-lived presigned URLs so
// bundle bytes never pass through the API process.
package blob

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

const uploadURLExpiry = 5 * time.Minute

type Store interface {
	// UploadURL returns a presigned PUT URL for the object key.
	UploadURL(ctx context.Context, key string) (string, error)
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Delete(ctx context.Context, key string) error
}

type Config struct {
	Endpoint        string
	Bucket          string
	AccessKeyID     string
	SecretAccessKey string
	UseSSL          bool
}

type minioStore struct {
	client *minio.Client
	bucket string
}

func New(cfg Config) (Store, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("blob client: %w", err)
	}
	return &minioStore{client: client, bucket: cfg.Bucket}, nil
}

func (s *minioStore) UploadURL(ctx context.Context, key string) (string, error) {
	u, err := s.client.PresignedPutObject(ctx, s.bucket, key, uploadURLExpiry)
	if err != nil {
		return "", fmt.Errorf("presign %s: %w", key, err)
	}
	return u.String(), nil
}

func (s *minioStore) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", key, err)
	}
	// GetObject is lazy; surface missing objects now so callers can 404.
	if _, err := obj.Stat(); err != nil {
		obj.Close()
		return nil, fmt.Errorf("get %s: %w", key, err)
	}
	return obj, nil
}

func (s *minioStore) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	_, err := s.client.PutObject(ctx, s.bucket, key, r, size, minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	return nil
}

func (s *minioStore) Delete(ctx context.Context, key string) error {
	if err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

// BundleKey is the object key for a content bundle version.
func BundleKey(contentID, bundleID string) string {
	return fmt.Sprintf("content/%s/bundles/%s", contentID, bundleID)
}

// ThumbnailKey is the object key for a content thumbnail.
func ThumbnailKey(contentID string) string {
	return fmt.Sprintf("content/%s/thumbnail", contentID)
}

// ImageKey is the object key for a profile image.
func ImageKey(id string) string {
	return fmt.Sprintf("images/%s", url.PathEscape(id))
}

// BannerKey is the object key for a profile banner.
func BannerKey(id string) string {
	return fmt.Sprintf("images/%s/banner", url.PathEscape(id))
}
