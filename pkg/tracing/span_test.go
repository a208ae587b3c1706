package tracing

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSpanTree(t *testing.T) {
	ctx, root := Start(context.Background(), "search", "req-1")
	assert.Same(t, root, FromContext(ctx))

	_, parse := Start(ctx, "parse", "ignored")
	parse.End()
	childCtx, exec := Start(ctx, "execute", "")
	exec.SetAttr("hits", 3)
	exec.End()
	assert.Same(t, exec, FromContext(childCtx))

	children := root.Children()
	require.Len(t, children, 2)
	assert.Equal(t, "req-1", children[0].TraceID)
	assert.Equal(t, "req-1", children[1].TraceID)
	assert.Nil(t, FromContext(context.Background()))
}

func TestEndIsIdempotent(t *testing.T) {
	_, span := Start(context.Background(), "x", "t")
	span.End()
	first := span.Duration
	span.End()
	assert.Equal(t, first, span.Duration)
}

func TestFinishLogsAtDebug(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	ctx, root := Start(context.Background(), "search", "req-2")
	_, child := Start(ctx, "parse", "")
	child.SetAttr("fallback", true)
	child.End()
	root.Finish(ctx, logger)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	var rec map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &rec))
	assert.Equal(t, "parse", rec["span"])
	assert.Equal(t, "req-2", rec["trace_id"])
	assert.EqualValues(t, 1, rec["depth"])
	assert.Equal(t, true, rec["fallback"])

	buf.Reset()
	quiet := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))
	root.Finish(ctx, quiet)
	assert.Empty(t, buf.String())
}
