package blobstore

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Compression codecs, selected by file name suffix.
const (
	CodecNone = ""
	CodecZstd = "zstd"
	CodecLZ4  = "lz4"
	CodecGzip = "gzip"
)

var suffixes = []struct {
	suffix string
	codec  string
}{
	{".zst", CodecZstd},
	{".zstd", CodecZstd},
	{".lz4", CodecLZ4},
	{".gz", CodecGzip},
}

// Codec returns the codec implied by name's suffix, or CodecNone.
func Codec(name string) string {
	lower := strings.ToLower(name)
	for _, s := range suffixes {
		if strings.HasSuffix(lower, s.suffix) {
			return s.codec
		}
	}
	return CodecNone
}

// Suffix returns the file name suffix written for codec.
func Suffix(codec string) string {
	for _, s := range suffixes {
		if s.codec == codec {
			return s.suffix
		}
	}
	return ""
}

var zstdDecoderPool sync.Pool

func getZstdDecoder() (*zstd.Decoder, error) {
	if v := zstdDecoderPool.Get(); v != nil {
		return v.(*zstd.Decoder), nil
	}
	return zstd.NewReader(nil)
}

// Decompress inflates data according to the suffix of name. Data with no
// recognized suffix is returned unchanged.
func Decompress(name string, data []byte) ([]byte, error) {
	codec := Codec(name)
	switch codec {
	case CodecNone:
		return data, nil
	case CodecZstd:
		dec, err := getZstdDecoder()
		if err != nil {
			return nil, fmt.Errorf("creating zstd decoder: %w", err)
		}
		defer zstdDecoderPool.Put(dec)
		out, err := dec.DecodeAll(data, nil)
		if err != nil {
			return nil, fmt.Errorf("decompressing %s: %w", name, err)
		}
		return out, nil
	case CodecLZ4:
		return readAll(name, lz4.NewReader(bytes.NewReader(data)))
	case CodecGzip:
		zr, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("decompressing %s: %w", name, err)
		}
		defer zr.Close()
		return readAll(name, zr)
	}
	return nil, fmt.Errorf("unsupported codec %q", codec)
}

func readAll(name string, r io.Reader) ([]byte, error) {
	out, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("decompressing %s: %w", name, err)
	}
	return out, nil
}

// Compress is the inverse of Decompress for codec.
func Compress(codec string, data []byte) ([]byte, error) {
	switch codec {
	case CodecNone:
		return data, nil
	case CodecZstd:
		enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedBetterCompression))
		if err != nil {
			return nil, fmt.Errorf("creating zstd encoder: %w", err)
		}
		defer enc.Close()
		return enc.EncodeAll(data, nil), nil
	case CodecLZ4:
		var buf bytes.Buffer
		zw := lz4.NewWriter(&buf)
		if _, err := zw.Write(data); err != nil {
			return nil, fmt.Errorf("compressing lz4: %w", err)
		}
		if err := zw.Close(); err != nil {
			return nil, fmt.Errorf("compressing lz4: %w", err)
		}
		return buf.Bytes(), nil
	case CodecGzip:
		var buf bytes.Buffer
		zw, err := gzip.NewWriterLevel(&buf, gzip.BestCompression)
		if err != nil {
			return nil, fmt.Errorf("creating gzip writer: %w", err)
		}
		if _, err := zw.Write(data); err != nil {
			return nil, fmt.Errorf("compressing gzip: %w", err)
		}
		if err := zw.Close(); err != nil {
			return nil, fmt.Errorf("compressing gzip: %w", err)
		}
		return buf.Bytes(), nil
	}
	return nil, fmt.Errorf("unsupported codec %q", codec)
}
