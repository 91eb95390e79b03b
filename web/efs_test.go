package web

import (
	"io/fs"
	"os"
	"path/filepath"
	"testing"
)

func TestEmbeddedBuild(t *testing.T) {
	fsys, err := GetFileSystem("")
	if err != nil {
		t.Fatalf("GetFileSystem: %v", err)
	}
	if _, err := fs.Stat(fsys, "index.html"); err != nil {
		t.Fatalf("embedded index.html missing: %v", err)
	}
}

func TestDirectoryOverride(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "app.js"), []byte("//"), 0o644); err != nil {
		t.Fatal(err)
	}
	fsys, err := GetFileSystem(dir)
	if err != nil {
		t.Fatalf("GetFileSystem: %v", err)
	}
	if _, err := fs.Stat(fsys, "app.js"); err != nil {
		t.Errorf("expected app.js from override dir: %v", err)
	}
	if _, err := fs.Stat(fsys, "index.html"); err == nil {
		t.Error("override must not fall back to the embedded build")
	}
}
