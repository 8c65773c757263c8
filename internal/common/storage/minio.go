package storage

import (
	"context"
	"io"

	appErr "tosts/pkg/errors"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinIOConfig holds the optional artifact mirror settings.
type MinIOConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"accessKey"`
	SecretKey string `yaml:"secretKey"`
	UseSSL    bool   `yaml:"useSSL"`
	Region    string `yaml:"region"`
	Bucket    string `yaml:"bucket"`
	// Prefix is prepended to every object key, e.g. "tosts/failures".
	Prefix string `yaml:"prefix"`
}

// Enabled reports whether a mirror is configured.
func (c MinIOConfig) Enabled() bool {
	return c.Endpoint != "" && c.Bucket != ""
}

func (c MinIOConfig) validate() error {
	switch {
	case c.Endpoint == "":
		return appErr.ValidationError("minio.endpoint", "required")
	case c.AccessKey == "":
		return appErr.ValidationError("minio.accessKey", "required")
	case c.SecretKey == "":
		return appErr.ValidationError("minio.secretKey", "required")
	}
	return nil
}

// MinIOStorage talks to MinIO through the low-level core client.
type MinIOStorage struct {
	core   *minio.Core
	region string
}

func NewMinIOStorage(cfg MinIOConfig) (*MinIOStorage, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	core, err := minio.NewCore(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, appErr.Wrapf(err, appErr.StorageError, "create minio client for %s failed", cfg.Endpoint)
	}
	return &MinIOStorage{core: core, region: cfg.Region}, nil
}

func (s *MinIOStorage) EnsureBucket(ctx context.Context, bucket string) error {
	exists, err := s.core.BucketExists(ctx, bucket)
	if err != nil {
		return appErr.Wrapf(err, appErr.StorageError, "check bucket %s failed", bucket)
	}
	if exists {
		return nil
	}
	if err := s.core.MakeBucket(ctx, bucket, minio.MakeBucketOptions{Region: s.region}); err != nil {
		return appErr.Wrapf(err, appErr.StorageError, "create bucket %s failed", bucket)
	}
	return nil
}

func (s *MinIOStorage) PutObject(ctx context.Context, bucket, objectKey string, reader io.Reader, sizeBytes int64, contentType string) error {
	if reader == nil || objectKey == "" {
		return appErr.ValidationError("object", "reader and key are required")
	}
	opts := minio.PutObjectOptions{ContentType: contentType}
	if _, err := s.core.PutObject(ctx, bucket, objectKey, reader, sizeBytes, "", "", opts); err != nil {
		return appErr.Wrapf(err, appErr.StorageError, "put %s/%s failed", bucket, objectKey)
	}
	return nil
}

func (s *MinIOStorage) StatObject(ctx context.Context, bucket, objectKey string) (ObjectStat, error) {
	info, err := s.core.StatObject(ctx, bucket, objectKey, minio.StatObjectOptions{})
	if err != nil {
		return ObjectStat{}, appErr.Wrapf(err, appErr.StorageError, "stat %s/%s failed", bucket, objectKey)
	}
	return ObjectStat{SizeBytes: info.Size, ETag: info.ETag}, nil
}
