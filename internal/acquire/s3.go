package acquire

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Options configure the s3 client used for "s3://" dumps.
type S3Options struct {
	Region    string
	Endpoint  string // custom endpoint, e.g. for minio; empty uses aws
	AccessKey string // when empty, the default credential chain is used
	SecretKey string
}

// NewS3Client creates a new s3 client.
// Path-style addressing is used, so that s3-compatible stores work as well.
func NewS3Client(ctx context.Context, opts S3Options) (*s3.Client, error) {
	var loaders []func(*config.LoadOptions) error
	if opts.Region != "" {
		loaders = append(loaders, config.WithRegion(opts.Region))
	}
	if opts.Endpoint != "" {
		loaders = append(loaders, config.WithBaseEndpoint(opts.Endpoint))
	}
	if opts.AccessKey != "" {
		loaders = append(loaders, config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			opts.AccessKey,
			opts.SecretKey,
			"",
		)))
	}

	cfg, err := config.LoadDefaultConfig(ctx, loaders...)
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}

	return s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.UsePathStyle = true
		if opts.Region == "" && cfg.Region == "" {
			o.Region = "us-east-1"
		}
	}), nil
}

var _ S3API = (*s3.Client)(nil)
