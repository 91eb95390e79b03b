package web

import (
	"embed"
	"io/fs"
	"os"
)

//go:embed build/*
var distFS embed.FS

// GetFileSystem returns the dashboard bundle. dir overrides the embedded build.
func GetFileSystem(dir string) (fs.FS, error) {
	// 1. Dev mode: Serve from disk
	if dir != "" {
		return os.DirFS(dir), nil
	}

	// 2. Production mode: Serve embedded files
	sub, err := fs.Sub(distFS, "build")
	if err != nil {
		return nil, err
	}
	return sub, nil
}
