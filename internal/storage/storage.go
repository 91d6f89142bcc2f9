package storage

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"storeadmin/internal/config"
)

// RefPrefix is the path under which blobs are exposed to clients.
const RefPrefix = "/uploads/"

// Store is an opaque blob store addressed by generated file names.
type Store interface {
	Put(ctx context.Context, key string, r io.Reader, contentType string) error
	// Open returns the blob content and its content type. Missing keys yield errors.ErrNotFound.
	Open(ctx context.Context, key string) (io.ReadCloser, string, error)
	Delete(ctx context.Context, key string) error
}

// New builds the store selected by cfg.StorageDriver.
func New(ctx context.Context, cfg *config.Config) (Store, error) {
	switch cfg.StorageDriver {
	case "", "local":
		return NewLocal(cfg.UploadDir)
	case "s3":
		return NewS3(ctx, S3Config{
			Endpoint:        cfg.S3Endpoint,
			Region:          cfg.S3Region,
			Bucket:          cfg.S3Bucket,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretAccessKey,
			UseSSL:          cfg.S3UseSSL,
		})
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.StorageDriver)
	}
}

// Ref returns the client-facing reference for key.
func Ref(key string) string {
	return RefPrefix + key
}

// KeyFromRef extracts the blob key from a reference produced by Ref.
// Absolute URLs are accepted as long as their path sits under RefPrefix.
func KeyFromRef(ref string) (string, bool) {
	i := strings.Index(ref, RefPrefix)
	if i < 0 {
		return "", false
	}
	return ValidKey(ref[i+len(RefPrefix):])
}

// ValidKey rejects names that could escape the blob namespace.
func ValidKey(key string) (string, bool) {
	if key == "" || key == "." || key == ".." || strings.ContainsAny(key, `/\`) || path.Base(key) != key {
		return "", false
	}
	return key, true
}
