package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/kami-operation/kamiops/internal/config"
	ierr "github.com/kami-operation/kamiops/internal/errors"
)

func TestLocalRoundTrip(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s, err := NewLocal(dir)
	if err != nil {
		t.Fatalf("NewLocal failed: %v", err)
	}

	if err := s.Put(ctx, "signatures/u1/a.png", "image/png", []byte("png")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "signatures", "u1", "a.png")); err != nil {
		t.Fatalf("file not written: %v", err)
	}

	data, err := s.Get(ctx, "signatures/u1/a.png")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(data) != "png" {
		t.Errorf("Get = %q, want png", data)
	}

	url, err := s.URL(ctx, "signatures/u1/a.png")
	if err != nil || url != "" {
		t.Errorf("URL = %q, %v; want empty", url, err)
	}

	if err := s.Delete(ctx, "signatures/u1/a.png"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := s.Get(ctx, "signatures/u1/a.png"); !ierr.IsNotFound(err) {
		t.Errorf("Get after delete: expected not found, got %v", err)
	}
	if err := s.Delete(ctx, "signatures/u1/a.png"); err != nil {
		t.Errorf("deleting a missing file should succeed, got %v", err)
	}
}

func TestLocalRejectsTraversal(t *testing.T) {
	s, err := NewLocal(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocal failed: %v", err)
	}

	for _, key := range []string{"", "../secret", "a/../../b", "/etc/passwd", "a//b", `a\b`} {
		if err := s.Put(context.Background(), key, "", []byte("x")); !ierr.IsValidation(err) {
			t.Errorf("Put(%q): expected validation error, got %v", key, err)
		}
	}
}

func TestNewUnknownDriver(t *testing.T) {
	if _, err := New(context.Background(), config.StorageConfig{Driver: "ftp"}); err == nil {
		t.Error("expected error for unknown driver")
	}
}
