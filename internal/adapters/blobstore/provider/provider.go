// Package provider builds a blobstore.Store from configuration.
package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	miniogo "github.com/minio/minio-go/v7"
	miniocreds "github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/okian/regionsel/internal/adapters/blobstore"
	"github.com/okian/regionsel/internal/adapters/blobstore/minio"
	"github.com/okian/regionsel/internal/adapters/blobstore/s3"
)

// Store kinds.
const (
	KindMemory = "memory"
	KindLocal  = "local"
	KindS3     = "s3"
	KindMinio  = "minio"
)

// ErrUnknownKind is returned for an unsupported store kind.
var ErrUnknownKind = errors.New("unknown store kind")

// Config describes one blob store.
type Config struct {
	Kind      string
	Bucket    string
	Prefix    string
	Root      string
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
}

// Open returns the store described by cfg.
func Open(ctx context.Context, cfg Config) (blobstore.Store, error) {
	switch strings.ToLower(cfg.Kind) {
	case "", KindMemory:
		return blobstore.NewMemoryStore(), nil
	case KindLocal:
		if cfg.Root == "" {
			return nil, fmt.Errorf("local store: root is required")
		}
		return blobstore.NewLocalStore(cfg.Root), nil
	case KindS3:
		return openS3(ctx, cfg)
	case KindMinio:
		return openMinio(cfg)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, cfg.Kind)
	}
}

func openS3(ctx context.Context, cfg Config) (blobstore.Store, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 store: bucket is required")
	}
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("s3 store: load aws config: %w", err)
	}
	client := awss3.NewFromConfig(awsCfg, func(o *awss3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return s3.NewStore(client, cfg.Bucket, cfg.Prefix), nil
}

func openMinio(cfg Config) (blobstore.Store, error) {
	if cfg.Bucket == "" || cfg.Endpoint == "" {
		return nil, fmt.Errorf("minio store: bucket and endpoint are required")
	}
	client, err := miniogo.New(cfg.Endpoint, &miniogo.Options{
		Creds:  miniocreds.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("minio store: %w", err)
	}
	return minio.NewStore(client, cfg.Bucket, cfg.Prefix), nil
}
