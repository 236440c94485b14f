// Package media signs short-lived MinIO URLs. Objects themselves never pass
// through the API; clients upload and download straight against the store.
package media

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

const (
	BucketAvatars = "avatars"
	BucketPosts   = "posts"

	uploadURLTTL   = 15 * time.Minute
	downloadURLTTL = 10 * time.Minute
)

type Signer struct {
	client *minio.Client
}

func NewSigner(endpoint, accessKey, secretKey string, useSSL bool) (*Signer, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("minio client: %w", err)
	}
	return &Signer{client: client}, nil
}

// EnsureBuckets creates the expected buckets when they do not exist yet.
func (s *Signer) EnsureBuckets(ctx context.Context) error {
	for _, bucket := range []string{BucketAvatars, BucketPosts} {
		exists, err := s.client.BucketExists(ctx, bucket)
		if err != nil {
			return fmt.Errorf("check bucket %s: %w", bucket, err)
		}
		if !exists {
			if err := s.client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
				return fmt.Errorf("create bucket %s: %w", bucket, err)
			}
		}
	}
	return nil
}

// UploadURL returns a fresh object key and a presigned PUT URL for it.
func (s *Signer) UploadURL(ctx context.Context, bucket string) (objectKey string, uploadURL *url.URL, err error) {
	objectKey = uuid.NewString()
	uploadURL, err = s.client.PresignedPutObject(ctx, bucket, objectKey, uploadURLTTL)
	if err != nil {
		return "", nil, fmt.Errorf("presign put %s/%s: %w", bucket, objectKey, err)
	}
	return objectKey, uploadURL, nil
}

// DownloadURL signs a short-lived GET for an existing object.
func (s *Signer) DownloadURL(ctx context.Context, bucket, objectKey string) (*url.URL, error) {
	u, err := s.client.PresignedGetObject(ctx, bucket, objectKey, downloadURLTTL, nil)
	if err != nil {
		return nil, fmt.Errorf("presign get %s/%s: %w", bucket, objectKey, err)
	}
	return u, nil
}
