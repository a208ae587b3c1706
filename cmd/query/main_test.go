package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/apidocs-search/internal/database/dbtest"
	"github.com/Adithya-Monish-Kumar-K/apidocs-search/pkg/blobstore"
)

func writeDB(t *testing.T, codec string) string {
	t.Helper()
	data, err := blobstore.Compress(codec, dbtest.Bytes(t))
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "api.db"+blobstore.Suffix(codec))
	require.NoError(t, os.WriteFile(path, data, 0644))
	return path
}

func TestRunTable(t *testing.T) {
	var out bytes.Buffer
	opts := options{dbPath: writeDB(t, blobstore.CodecNone), limit: 20}
	require.NoError(t, run(context.Background(), opts, "is:class !tag:deprecated", &out))

	text := out.String()
	assert.Contains(t, text, "TYPE")
	assert.Contains(t, text, "Instance")
	assert.Contains(t, text, "Part")
	assert.NotContains(t, text, "Workspace")
	assert.Contains(t, text, "2 of 2 results")
}

func TestRunJSONFromCompressedFile(t *testing.T) {
	var out bytes.Buffer
	opts := options{dbPath: writeDB(t, blobstore.CodecLZ4), limit: 1, asJSON: true}
	require.NoError(t, run(context.Background(), opts, "is:class", &out))

	var result map[string]any
	require.NoError(t, json.Unmarshal(out.Bytes(), &result))
	assert.EqualValues(t, 3, result["total_hits"])
	assert.Len(t, result["results"], 1)
}

func TestRunFallback(t *testing.T) {
	var out bytes.Buffer
	opts := options{dbPath: writeDB(t, blobstore.CodecNone), limit: 20, asJSON: true}
	require.NoError(t, run(context.Background(), opts, "is:bogus", &out))

	var result map[string]any
	require.NoError(t, json.Unmarshal(out.Bytes(), &result))
	assert.Equal(t, true, result["fallback"])
	assert.NotNil(t, result["parse_error"])
}

func TestRunMissingDatabase(t *testing.T) {
	opts := options{dbPath: filepath.Join(t.TempDir(), "missing.db"), limit: 20}
	err := run(context.Background(), opts, "is:class", &bytes.Buffer{})
	assert.ErrorIs(t, err, blobstore.ErrNotFound)
}
