package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"

	ierr "github.com/kami-operation/kamiops/internal/errors"
)

// Local stores objects as files under a root directory
type Local struct {
	root string
}

// NewLocal creates the root directory when missing
func NewLocal(dir string) (*Local, error) {
	root, err := filepath.Abs(dir)
	if err != nil {
		return nil, ierr.WithError(err).WithHint("invalid storage directory").Mark(ierr.ErrStorage)
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, ierr.WithError(err).WithHint("failed to create storage directory").Mark(ierr.ErrStorage)
	}
	return &Local{root: root}, nil
}

func (l *Local) path(key string) (string, error) {
	k, err := cleanKey(key)
	if err != nil {
		return "", err
	}
	return filepath.Join(l.root, filepath.FromSlash(k)), nil
}

func (l *Local) Put(_ context.Context, key, _ string, data []byte) error {
	p, err := l.path(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return ierr.WithError(err).WithHint("failed to store file").Mark(ierr.ErrStorage)
	}
	if err := os.WriteFile(p, data, 0o644); err != nil {
		return ierr.WithError(err).WithHint("failed to store file").Mark(ierr.ErrStorage)
	}
	return nil
}

func (l *Local) Get(_ context.Context, key string) ([]byte, error) {
	p, err := l.path(key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ierr.WithError(err).WithHint("File not found").Mark(ierr.ErrNotFound)
	}
	if err != nil {
		return nil, ierr.WithError(err).WithHint("failed to read file").Mark(ierr.ErrStorage)
	}
	return data, nil
}

func (l *Local) Delete(_ context.Context, key string) error {
	p, err := l.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
		return ierr.WithError(err).WithHint("failed to delete file").Mark(ierr.ErrStorage)
	}
	return nil
}

// URL is empty: local files are streamed through the API
func (l *Local) URL(_ context.Context, key string) (string, error) {
	if _, err := cleanKey(key); err != nil {
		return "", err
	}
	return "", nil
}
