package blobstore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
)

// File reads a local file.
type File struct {
	path string
}

func NewFile(path string) *File {
	return &File{path: path}
}

func (f *File) Fetch(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("reading %s: %w", f.path, ErrNotFound)
		}
		return nil, fmt.Errorf("reading %s: %w", f.path, err)
	}
	return data, nil
}
