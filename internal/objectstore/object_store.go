package objectstore

import (
	"context"
	"iter"
	"log/slog"
	"time"
)

// ObjectInfo describes one object returned by a listing
type ObjectInfo struct {
	Key          string
	LastModified time.Time
	Size         int64
}

// ObjectStore defines the read-only operations the exporter needs from a bucket
type ObjectStore interface {
	// ListObjects yields every object under prefix, fetching further pages
	// from the backend as the sequence is consumed. A listing failure is
	// yielded once as a non-nil error and ends the sequence.
	ListObjects(ctx context.Context, prefix string) iter.Seq2[ObjectInfo, error]

	// GetObject downloads the full body of the object at key
	GetObject(ctx context.Context, key string) ([]byte, error)

	// GetBucketName returns the bucket name for logging purposes
	GetBucketName() string

	// Close cleans up any resources
	Close() error
}

// New creates the ObjectStore selected by cfg.Backend
func New(ctx context.Context, cfg Config, logger *slog.Logger) (ObjectStore, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if cfg.Backend == BackendMinio {
		store, err := NewMinioStore(cfg, logger)
		if err != nil {
			return nil, err
		}
		return store, nil
	}

	store, err := NewS3Store(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	return store, nil
}
