// Command indexer builds the binary record database from one or more YAML
// API dumps.
//
// Usage:
//
//	go run ./cmd/indexer [-out data/api.db] [-compress zstd] dump.yaml...
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/Adithya-Monish-Kumar-K/apidocs-search/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/apidocs-search/pkg/blobstore"
	"github.com/Adithya-Monish-Kumar-K/apidocs-search/pkg/logger"
)

func main() {
	out := flag.String("out", "data/api.db", "path of the database to write")
	compress := flag.String("compress", "", "compression codec: zstd, lz4 or gzip")
	logLevel := flag.String("log-level", "info", "log level")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: %s [flags] dump.yaml...\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	logger.SetupCLI(*logLevel)
	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}
	codec := strings.ToLower(*compress)
	switch codec {
	case blobstore.CodecNone, blobstore.CodecZstd, blobstore.CodecLZ4, blobstore.CodecGzip:
	default:
		fmt.Fprintf(os.Stderr, "unknown codec %q\n", *compress)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, flag.Args(), *out, codec); err != nil {
		logger.WithComponent("indexer").Error("indexing failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, paths []string, out, codec string) error {
	dump, err := indexer.ReadDumps(ctx, paths)
	if err != nil {
		return err
	}
	buf, err := indexer.Encode(dump)
	if err != nil {
		return err
	}
	packed, err := blobstore.Compress(codec, buf)
	if err != nil {
		return err
	}
	if suffix := blobstore.Suffix(codec); blobstore.Codec(out) != codec && suffix != "" {
		out += suffix
	}
	if err := indexer.WriteFile(out, packed); err != nil {
		return err
	}
	logger.WithComponent("indexer").Info("database written",
		"path", out,
		"codec", codec,
		"bytes", len(packed),
		"raw_bytes", len(buf),
	)
	return nil
}
