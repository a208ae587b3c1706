// Package blobstore fetches the record database from where it is published:
// a local file, an HTTP URL, S3 or a MinIO bucket. Compressed objects are
// inflated according to their file name suffix.
package blobstore

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path"

	"github.com/Adithya-Monish-Kumar-K/apidocs-search/pkg/config"
)

// ErrNotFound is returned when the object does not exist. It matches
// os.ErrNotExist.
var ErrNotFound = os.ErrNotExist

// Source fetches a complete object. Implementations must be safe for
// concurrent use.
type Source interface {
	Fetch(ctx context.Context) ([]byte, error)
}

// FromConfig builds the Source described by cfg, wrapped so that the fetched
// bytes are decompressed by name.
func FromConfig(ctx context.Context, cfg config.DatabaseConfig) (Source, error) {
	var (
		src  Source
		name string
		err  error
	)
	switch cfg.Source {
	case config.SourceFile:
		src, name = NewFile(cfg.Path), cfg.Path
	case config.SourceHTTP:
		src = NewHTTP(cfg.URL, nil)
		u, perr := url.Parse(cfg.URL)
		if perr != nil {
			return nil, fmt.Errorf("parsing database url: %w", perr)
		}
		name = path.Base(u.Path)
	case config.SourceS3:
		src, err = NewS3FromConfig(ctx, cfg)
		name = cfg.Key
	case config.SourceMinio:
		src, err = NewMinioFromConfig(cfg)
		name = cfg.Key
	default:
		return nil, fmt.Errorf("unknown database source %q", cfg.Source)
	}
	if err != nil {
		return nil, err
	}
	return Decompressing(src, name), nil
}

type decompressing struct {
	src  Source
	name string
}

// Decompressing wraps src so that Fetch returns Decompress(name, data).
func Decompressing(src Source, name string) Source {
	if Codec(name) == CodecNone {
		return src
	}
	return &decompressing{src: src, name: name}
}

func (d *decompressing) Fetch(ctx context.Context) ([]byte, error) {
	data, err := d.src.Fetch(ctx)
	if err != nil {
		return nil, err
	}
	return Decompress(d.name, data)
}
