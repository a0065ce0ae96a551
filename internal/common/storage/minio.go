package storage

import (
	"context"
	"io"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	appErr "gavel/pkg/errors"
)

// MinioConfig holds object storage connection settings.
type MinioConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"accessKey"`
	SecretKey string `yaml:"secretKey"`
	UseSSL    bool   `yaml:"useSSL"`
}

// Minio implements ObjectStorage over the MinIO S3 client.
type Minio struct {
	client *minio.Client
}

func NewMinio(cfg MinioConfig) (*Minio, error) {
	if cfg.Endpoint == "" {
		return nil, appErr.ValidationError("endpoint", "required")
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, appErr.Wrapf(err, appErr.StorageError, "create storage client")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := client.ListBuckets(ctx); err != nil {
		return nil, appErr.Wrapf(err, appErr.StorageError, "verify storage connection")
	}
	return &Minio{client: client}, nil
}

func (m *Minio) Put(ctx context.Context, bucket, key string, r io.Reader, size int64, contentType string) error {
	_, err := m.client.PutObject(ctx, bucket, key, r, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return appErr.Wrapf(err, appErr.StorageError, "put object %s/%s", bucket, key)
	}
	return nil
}

func (m *Minio) Get(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	obj, err := m.client.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, appErr.Wrapf(err, appErr.StorageError, "get object %s/%s", bucket, key)
	}
	return obj, nil
}

func (m *Minio) Stat(ctx context.Context, bucket, key string) (ObjectStat, error) {
	info, err := m.client.StatObject(ctx, bucket, key, minio.StatObjectOptions{})
	if err != nil {
		return ObjectStat{}, appErr.Wrapf(err, appErr.StorageError, "stat object %s/%s", bucket, key)
	}
	return ObjectStat{
		SizeBytes:   info.Size,
		ETag:        info.ETag,
		ContentType: info.ContentType,
	}, nil
}
