package objectstore

import (
	"context"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Store implements ObjectStore for AWS S3 or S3-compatible storage
type S3Store struct {
	client     *s3.Client
	downloader *manager.Downloader
	bucket     string
	pageSize   int32
	logger     *slog.Logger
}

// NewS3Store creates a new S3Store instance
func NewS3Store(ctx context.Context, cfg Config, logger *slog.Logger) (*S3Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	client, err := newS3Client(ctx, cfg)
	if err != nil {
		return nil, err
	}

	logger.Info("S3 client initialized",
		"bucket", cfg.Bucket,
		"region", client.Options().Region,
		"custom_endpoint", cfg.Endpoint != "",
	)

	return newS3StoreFromClient(client, cfg.Bucket, cfg.PageSize, logger), nil
}

func newS3StoreFromClient(client *s3.Client, bucket string, pageSize int32, logger *slog.Logger) *S3Store {
	// Bodies are fetched one part at a time; the export loop is sequential.
	downloader := manager.NewDownloader(client, func(d *manager.Downloader) {
		d.Concurrency = 1
	})

	return &S3Store{
		client:     client,
		downloader: downloader,
		bucket:     bucket,
		pageSize:   pageSize,
		logger:     logger,
	}
}

func newS3Client(ctx context.Context, cfg Config) (*s3.Client, error) {
	// Default credential chain (environment, shared config, IAM roles) unless
	// static credentials are given. The region follows the same chain.
	var opts []func(*config.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, config.WithRegion(cfg.Region))
	}
	if cfg.hasStaticCredentials() {
		opts = append(opts, config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"",
		)))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
			// S3-compatible servers still need a signing region
			if o.Region == "" {
				o.Region = fallbackRegion
			}
		}
	}), nil
}

// ListObjects implements ObjectStore.ListObjects
func (s *S3Store) ListObjects(ctx context.Context, prefix string) iter.Seq2[ObjectInfo, error] {
	return func(yield func(ObjectInfo, error) bool) {
		input := &s3.ListObjectsV2Input{
			Bucket: aws.String(s.bucket),
			Prefix: aws.String(prefix),
		}
		if s.pageSize > 0 {
			input.MaxKeys = aws.Int32(s.pageSize)
		}

		pages := 0
		paginator := s3.NewListObjectsV2Paginator(s.client, input)
		for paginator.HasMorePages() {
			page, err := paginator.NextPage(ctx)
			if err != nil {
				yield(ObjectInfo{}, translateError("list objects", err))
				return
			}
			pages++

			s.logger.Debug("Fetched listing page",
				"prefix", prefix,
				"page", pages,
				"objects", len(page.Contents),
			)

			for _, obj := range page.Contents {
				if obj.Key == nil {
					continue
				}

				info := ObjectInfo{Key: *obj.Key}
				if obj.LastModified != nil {
					info.LastModified = *obj.LastModified
				}
				if obj.Size != nil {
					info.Size = *obj.Size
				}

				if !yield(info, nil) {
					return
				}
			}
		}
	}
}

// GetObject implements ObjectStore.GetObject
func (s *S3Store) GetObject(ctx context.Context, key string) ([]byte, error) {
	buf := manager.NewWriteAtBuffer([]byte{})

	_, err := s.downloader.Download(ctx, buf, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if isInvalidRange(err) {
		// The downloader always asks for a byte range, which S3 rejects for
		// zero-byte objects
		return s.getWholeObject(ctx, key)
	}
	if err != nil {
		return nil, translateError(fmt.Sprintf("get object %q", key), err)
	}

	return buf.Bytes(), nil
}

func (s *S3Store) getWholeObject(ctx context.Context, key string) ([]byte, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, translateError(fmt.Sprintf("get object %q", key), err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("read object %q: %w", key, err)
	}

	return data, nil
}

// GetBucketName implements ObjectStore.GetBucketName
func (s *S3Store) GetBucketName() string {
	return s.bucket
}

// Close implements ObjectStore.Close
func (s *S3Store) Close() error {
	// S3 client doesn't require explicit cleanup
	return nil
}
