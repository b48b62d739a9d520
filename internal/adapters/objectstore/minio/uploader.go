package minio

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/go-logr/logr"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/bnema/grader/internal/corrector"
)

const DefaultBucket = "grader-deliveries"

type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// Uploader copies accepted deliveries to an S3 compatible bucket for the
// storage runner. The bucket is created on first upload when missing.
type Uploader struct {
	client *minio.Client
	bucket string
	log    logr.Logger

	once      sync.Once
	bucketErr error
}

var _ corrector.Uploader = (*Uploader)(nil)

func NewUploader(cfg Config, log logr.Logger) (*Uploader, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		return nil, errors.New("object store endpoint is required")
	}
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create object store client: %w", err)
	}

	bucket := strings.TrimSpace(cfg.Bucket)
	if bucket == "" {
		bucket = DefaultBucket
	}
	return &Uploader{client: client, bucket: bucket, log: log.WithName("objectstore")}, nil
}

func (u *Uploader) Bucket() string {
	return u.bucket
}

func (u *Uploader) Upload(ctx context.Context, objectName, path string) error {
	u.once.Do(func() {
		u.bucketErr = u.ensureBucket(ctx)
	})
	if u.bucketErr != nil {
		return u.bucketErr
	}

	info, err := u.client.FPutObject(ctx, u.bucket, objectName, path, minio.PutObjectOptions{
		ContentType: "application/octet-stream",
	})
	if err != nil {
		return fmt.Errorf("upload %s: %w", objectName, err)
	}
	u.log.V(1).Info("delivery uploaded", "bucket", u.bucket, "object", objectName, "size", info.Size)
	return nil
}

func (u *Uploader) ensureBucket(ctx context.Context) error {
	exists, err := u.client.BucketExists(ctx, u.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", u.bucket, err)
	}
	if exists {
		return nil
	}
	if err := u.client.MakeBucket(ctx, u.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("create bucket %s: %w", u.bucket, err)
	}
	return nil
}
