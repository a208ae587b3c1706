package blobstore

import (
	"context"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/Adithya-Monish-Kumar-K/apidocs-search/pkg/config"
)

// Minio reads an object from MinIO or another S3-compatible store.
type Minio struct {
	client *minio.Client
	bucket string
	key    string
}

func NewMinio(client *minio.Client, bucket, key string) *Minio {
	return &Minio{client: client, bucket: bucket, key: key}
}

// NewMinioFromConfig connects to cfg.Endpoint with static credentials.
func NewMinioFromConfig(cfg config.DatabaseConfig) (*Minio, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("creating minio client: %w", err)
	}
	return NewMinio(client, cfg.Bucket, cfg.Key), nil
}

func (m *Minio) Fetch(ctx context.Context) ([]byte, error) {
	obj, err := m.client.GetObject(ctx, m.bucket, m.key, minio.GetObjectOptions{})
	if err != nil {
		return nil, m.wrap(err)
	}
	defer obj.Close()
	// GetObject is lazy; a missing key only surfaces on the first read.
	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, m.wrap(err)
	}
	return data, nil
}

func (m *Minio) wrap(err error) error {
	switch minio.ToErrorResponse(err).Code {
	case "NoSuchKey", "NoSuchBucket", "NotFound":
		return fmt.Errorf("reading minio %s/%s: %w", m.bucket, m.key, ErrNotFound)
	}
	return fmt.Errorf("reading minio %s/%s: %w", m.bucket, m.key, err)
}
