// Package artifact persists the input of the first failing case.
package artifact

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sync"

	"tosts/internal/common/storage"
	"tosts/internal/harness/spec"
	appErr "tosts/pkg/errors"
	"tosts/pkg/utils/logger"

	"go.uber.org/zap"
)

// Store saves a failing case input and returns where it was written.
type Store interface {
	Save(ctx context.Context, tc spec.TestCase) (string, error)
}

// FileName is the artifact name for a case index.
func FileName(index int) string {
	return fmt.Sprintf("fail_%d.in", index)
}

// LocalStore writes artifacts into a directory.
type LocalStore struct {
	dir string
}

// NewLocalStore creates a store rooted at dir; empty means the working directory.
func NewLocalStore(dir string) *LocalStore {
	return &LocalStore{dir: dir}
}

// Save writes the exact input bytes to fail_<index>.in, replacing any previous file.
func (s *LocalStore) Save(ctx context.Context, tc spec.TestCase) (string, error) {
	if s.dir != "" {
		if err := os.MkdirAll(s.dir, 0o755); err != nil {
			return "", appErr.Wrapf(err, appErr.ArtifactSaveFailed, "create artifact dir %s failed", s.dir)
		}
	}
	target := filepath.Join(s.dir, FileName(tc.Index))
	if err := os.WriteFile(target, tc.Input, 0o644); err != nil {
		return "", appErr.Wrapf(err, appErr.ArtifactSaveFailed, "write %s failed", target)
	}
	logger.Info(ctx, "failing input saved", zap.Int("case", tc.Index), zap.String("path", target))
	return target, nil
}

// MirrorStore saves locally and then copies the artifact to object storage.
// Upload problems are logged and never fail the save.
type MirrorStore struct {
	local   Store
	objects storage.ObjectStorage
	bucket  string
	prefix  string
	runID   string

	bucketOnce sync.Once
	bucketErr  error
}

// NewMirrorStore wraps local with an object storage mirror. Keys are
// <prefix>/<runID>/fail_<index>.in.
func NewMirrorStore(local Store, objects storage.ObjectStorage, bucket, prefix, runID string) *MirrorStore {
	return &MirrorStore{
		local:   local,
		objects: objects,
		bucket:  bucket,
		prefix:  prefix,
		runID:   runID,
	}
}

func (s *MirrorStore) Save(ctx context.Context, tc spec.TestCase) (string, error) {
	localPath, err := s.local.Save(ctx, tc)
	if err != nil {
		return "", err
	}

	s.bucketOnce.Do(func() {
		s.bucketErr = s.objects.EnsureBucket(ctx, s.bucket)
	})
	if s.bucketErr != nil {
		logger.Warn(ctx, "artifact bucket unavailable", zap.String("bucket", s.bucket), zap.Error(s.bucketErr))
		return localPath, nil
	}

	key := s.objectKey(tc.Index)
	if err := s.objects.PutObject(ctx, s.bucket, key, bytes.NewReader(tc.Input), int64(len(tc.Input)), "text/plain"); err != nil {
		logger.Warn(ctx, "mirror failing input failed",
			zap.String("bucket", s.bucket),
			zap.String("key", key),
			zap.Error(err),
		)
		return localPath, nil
	}

	stat, err := s.objects.StatObject(ctx, s.bucket, key)
	if err != nil {
		logger.Warn(ctx, "stat mirrored input failed", zap.String("key", key), zap.Error(err))
		return localPath, nil
	}
	if stat.SizeBytes != int64(len(tc.Input)) {
		logger.Warn(ctx, "mirrored input size mismatch",
			zap.String("key", key),
			zap.Int64("expected", int64(len(tc.Input))),
			zap.Int64("actual", stat.SizeBytes),
		)
		return localPath, nil
	}
	logger.Info(ctx, "failing input mirrored", zap.String("bucket", s.bucket), zap.String("key", key), zap.String("etag", stat.ETag))
	return localPath, nil
}

func (s *MirrorStore) objectKey(index int) string {
	return path.Join(s.prefix, s.runID, FileName(index))
}
