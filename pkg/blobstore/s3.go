package blobstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/Adithya-Monish-Kumar-K/apidocs-search/pkg/config"
)

// S3 downloads an object with the transfer manager, which fetches large
// objects in concurrent ranged parts.
type S3 struct {
	downloader *manager.Downloader
	bucket     string
	key        string
}

func NewS3(client *s3.Client, bucket, key string) *S3 {
	return &S3{
		downloader: manager.NewDownloader(client),
		bucket:     bucket,
		key:        key,
	}
}

// NewS3FromConfig loads the default AWS configuration, overridden by the
// region, static credentials and endpoint set in cfg.
func NewS3FromConfig(ctx context.Context, cfg config.DatabaseConfig) (*S3, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return NewS3(client, cfg.Bucket, cfg.Key), nil
}

func (s *S3) Fetch(ctx context.Context) ([]byte, error) {
	buf := manager.NewWriteAtBuffer(nil)
	_, err := s.downloader.Download(ctx, buf, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		var nf *types.NotFound
		if errors.As(err, &nsk) || errors.As(err, &nf) {
			return nil, fmt.Errorf("downloading s3://%s/%s: %w", s.bucket, s.key, ErrNotFound)
		}
		return nil, fmt.Errorf("downloading s3://%s/%s: %w", s.bucket, s.key, err)
	}
	return buf.Bytes(), nil
}
