package storage

import (
	"context"
	"io"
)

// ObjectStorage is the S3-compatible subset needed to mirror failing inputs.
type ObjectStorage interface {
	// EnsureBucket creates bucket when it does not exist yet.
	EnsureBucket(ctx context.Context, bucket string) error

	PutObject(ctx context.Context, bucket, objectKey string, reader io.Reader, sizeBytes int64, contentType string) error

	StatObject(ctx context.Context, bucket, objectKey string) (ObjectStat, error)
}

// ObjectStat is the metadata checked after an upload.
type ObjectStat struct {
	SizeBytes int64
	ETag      string
}
