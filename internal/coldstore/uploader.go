package coldstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"go.uber.org/zap"

	"github.com/cdrflow/cdrflow/internal/config"
)

// objectStore is the slice of the S3 API the uploader needs.
type objectStore interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	HeadBucket(ctx context.Context, in *s3.HeadBucketInput, opts ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
	CreateBucket(ctx context.Context, in *s3.CreateBucketInput, opts ...func(*s3.Options)) (*s3.CreateBucketOutput, error)
}

// Uploader ships staged parquet files to the object store. On success the
// local file is deleted; on failure it is retained for the next retry scan.
type Uploader struct {
	client  objectStore
	bucket  string
	timeout time.Duration
	log     *zap.Logger
}

// NewUploader builds an S3 client for the configured endpoint. PathStyle
// addressing is required by MinIO-compatible stores.
func NewUploader(ctx context.Context, cfg config.S3, timeout time.Duration, log *zap.Logger) (*Uploader, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("coldstore: load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(cfg.Endpoint)
		o.UsePathStyle = cfg.PathStyle
	})

	return &Uploader{
		client:  client,
		bucket:  cfg.Bucket,
		timeout: timeout,
		log:     log,
	}, nil
}

// EnsureBucket creates the archive bucket when it does not exist yet. A
// denied creation is fatal to the stage.
func (u *Uploader) EnsureBucket(ctx context.Context) error {
	_, err := u.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(u.bucket)})
	if err == nil {
		return nil
	}
	var notFound *types.NotFound
	if !errors.As(err, &notFound) {
		return fmt.Errorf("coldstore: head bucket %s: %w", u.bucket, err)
	}

	if _, err := u.client.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String(u.bucket)}); err != nil {
		return fmt.Errorf("coldstore: create bucket %s: %w", u.bucket, err)
	}
	u.log.Info("created archive bucket", zap.String("bucket", u.bucket))
	return nil
}

// Upload puts one staged file under its partition-relative key with a
// bounded deadline, then removes the local copy. The file is retained on
// any failure.
func (u *Uploader) Upload(ctx context.Context, stagingDir, path string) error {
	rel, err := filepath.Rel(stagingDir, path)
	if err != nil {
		return fmt.Errorf("coldstore: resolve key for %s: %w", path, err)
	}
	key := filepath.ToSlash(rel)

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("coldstore: open %s: %w", path, err)
	}
	defer f.Close()

	putCtx, cancel := context.WithTimeout(ctx, u.timeout)
	defer cancel()

	_, err = u.client.PutObject(putCtx, &s3.PutObjectInput{
		Bucket: aws.String(u.bucket),
		Key:    aws.String(key),
		Body:   f,
	})
	if err != nil {
		return fmt.Errorf("coldstore: put %s: %w", key, err)
	}

	if err := os.Remove(path); err != nil {
		u.log.Warn("uploaded but failed to remove local file",
			zap.String("path", path), zap.Error(err))
	}

	u.log.Info("uploaded archive file",
		zap.String("bucket", u.bucket),
		zap.String("key", key),
	)
	return nil
}
