package objectstore

import (
	"context"
	"fmt"
	"io"
	"iter"
	"log/slog"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinioStore implements ObjectStore on top of minio-go for S3-compatible services
type MinioStore struct {
	client   *minio.Client
	bucket   string
	pageSize int
	logger   *slog.Logger
}

// NewMinioStore creates a new MinioStore instance
func NewMinioStore(cfg Config, logger *slog.Logger) (*MinioStore, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	host, secure := cfg.endpointHost()

	region := cfg.Region
	if region == "" {
		region = fallbackRegion
	}

	opts := &minio.Options{
		Secure: secure,
		Region: region,
	}
	if cfg.hasStaticCredentials() {
		opts.Creds = credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, "")
	} else {
		opts.Creds = credentials.NewEnvAWS()
	}

	client, err := minio.New(host, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	logger.Info("Minio client initialized",
		"bucket", cfg.Bucket,
		"endpoint", host,
		"secure", secure,
	)

	return &MinioStore{
		client:   client,
		bucket:   cfg.Bucket,
		pageSize: int(cfg.PageSize),
		logger:   logger,
	}, nil
}

// ListObjects implements ObjectStore.ListObjects
func (m *MinioStore) ListObjects(ctx context.Context, prefix string) iter.Seq2[ObjectInfo, error] {
	return func(yield func(ObjectInfo, error) bool) {
		// Cancelling stops the listing goroutine when the consumer stops early.
		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		objects := m.client.ListObjects(ctx, m.bucket, minio.ListObjectsOptions{
			Prefix:    prefix,
			Recursive: true,
			MaxKeys:   m.pageSize,
		})

		for obj := range objects {
			if obj.Err != nil {
				yield(ObjectInfo{}, translateMinioError("list objects", obj.Err))
				return
			}

			if !yield(ObjectInfo{
				Key:          obj.Key,
				LastModified: obj.LastModified,
				Size:         obj.Size,
			}, nil) {
				return
			}
		}
	}
}

// GetObject implements ObjectStore.GetObject
func (m *MinioStore) GetObject(ctx context.Context, key string) ([]byte, error) {
	obj, err := m.client.GetObject(ctx, m.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, translateMinioError(fmt.Sprintf("get object %q", key), err)
	}
	defer func() {
		_ = obj.Close()
	}()

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, translateMinioError(fmt.Sprintf("read object %q", key), err)
	}

	return data, nil
}

// GetBucketName implements ObjectStore.GetBucketName
func (m *MinioStore) GetBucketName() string {
	return m.bucket
}

// Close implements ObjectStore.Close
func (m *MinioStore) Close() error {
	return nil
}
