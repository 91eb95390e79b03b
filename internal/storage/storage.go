package storage

import (
	"context"
	"strings"

	"github.com/kami-operation/kamiops/internal/config"
	ierr "github.com/kami-operation/kamiops/internal/errors"
)

// Storage keeps binary artifacts: signature images and sealed PDFs
type Storage interface {
	Put(ctx context.Context, key, contentType string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
	// URL returns a direct download link, or "" when content must be streamed by the API
	URL(ctx context.Context, key string) (string, error)
}

// New builds the driver selected in cfg
func New(ctx context.Context, cfg config.StorageConfig) (Storage, error) {
	switch cfg.Driver {
	case "", "local":
		return NewLocal(cfg.Dir)
	case "s3":
		return NewS3(ctx, cfg)
	default:
		return nil, ierr.NewErrorf("unknown storage driver %q", cfg.Driver).
			WithHint("STORAGE_DRIVER must be local or s3").
			Mark(ierr.ErrValidation)
	}
}

// cleanKey rejects empty, absolute and parent-relative keys
func cleanKey(key string) (string, error) {
	k := strings.TrimSpace(key)
	if k == "" || strings.HasPrefix(k, "/") || strings.Contains(k, "\\") {
		return "", invalidKey(key)
	}
	for _, part := range strings.Split(k, "/") {
		if part == "" || part == "." || part == ".." {
			return "", invalidKey(key)
		}
	}
	return k, nil
}

func invalidKey(key string) error {
	return ierr.NewErrorf("invalid storage key %q", key).
		WithHint("Invalid file reference").
		Mark(ierr.ErrValidation)
}
