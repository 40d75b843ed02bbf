package app

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger_LevelAndFormat(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := newLogger(&buf, "warn")

	logger.Info("hidden")
	logger.Warn("shown", slog.String("offer_id", "offer-1"))

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "shown", line["msg"])
	assert.Equal(t, "WARN", line["level"])
	assert.Equal(t, "offer-1", line["offer_id"])
}

func TestLevelFromString(t *testing.T) {
	t.Parallel()

	testCases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		" WARN ":  slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for input, want := range testCases {
		assert.Equal(t, want, levelFromString(input).Level(), input)
	}
}

func TestKeyCollection(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	testCases := []struct {
		name string
		cmd  redis.Cmder
		want string
	}{
		{name: "rating cache get", cmd: redis.NewStringCmd(ctx, "get", "cache:rating:driver:driver-1"), want: "cache:rating:driver"},
		{name: "lock via evalsha", cmd: redis.NewCmd(ctx, "evalsha", "abc123", 1, "lock:request:r1", "token"), want: "lock:request"},
		{name: "no key", cmd: redis.NewStatusCmd(ctx, "ping"), want: "redis"},
		{name: "plain key", cmd: redis.NewStringCmd(ctx, "get", "plain"), want: "plain"},
	}

	for _, tc := range testCases {
		assert.Equal(t, tc.want, keyCollection(tc.cmd), tc.name)
	}
}
