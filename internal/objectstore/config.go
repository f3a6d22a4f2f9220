package objectstore

import (
	"fmt"
	"strings"
)

// Supported store backends
const (
	BackendS3    = "s3"
	BackendMinio = "minio"
)

// fallbackRegion signs requests to custom endpoints when no region is configured
const fallbackRegion = "us-east-1"

// Config holds configuration for an S3 or S3-compatible connection
type Config struct {
	Backend         string
	Bucket          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string

	// Region is left to the AWS environment and shared config when empty
	Region string

	// PageSize caps the number of keys per listing request. Zero leaves the
	// backend default (1000 for S3).
	PageSize int32
}

// Validate checks the configuration and fills in defaults
func (c *Config) Validate() error {
	if c.Bucket == "" {
		return fmt.Errorf("bucket is required")
	}
	if c.Backend == "" {
		c.Backend = BackendS3
	}
	if c.Backend != BackendS3 && c.Backend != BackendMinio {
		return fmt.Errorf("unsupported store backend %q", c.Backend)
	}
	if c.Backend == BackendMinio && c.Endpoint == "" {
		return fmt.Errorf("endpoint is required for the %s backend", BackendMinio)
	}
	if c.PageSize < 0 {
		return fmt.Errorf("page size must not be negative, got %d", c.PageSize)
	}
	return nil
}

func (c *Config) hasStaticCredentials() bool {
	return c.AccessKeyID != "" && c.SecretAccessKey != ""
}

// endpointHost strips the scheme from the endpoint and reports whether TLS
// should be used. minio-go wants a bare host:port.
func (c *Config) endpointHost() (string, bool) {
	switch {
	case strings.HasPrefix(c.Endpoint, "https://"):
		return strings.TrimPrefix(c.Endpoint, "https://"), true
	case strings.HasPrefix(c.Endpoint, "http://"):
		return strings.TrimPrefix(c.Endpoint, "http://"), false
	default:
		return c.Endpoint, true
	}
}
