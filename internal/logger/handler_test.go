package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrettyHandlerRedactsSecrets(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, "text", "info")

	log.Info("login attempt", "email", "ana@example.org", "password", "hunter22", "Authorization", "Bearer abc")

	out := buf.String()
	assert.Contains(t, out, "login attempt")
	assert.Contains(t, out, "ana@example.org")
	assert.NotContains(t, out, "hunter22")
	assert.NotContains(t, out, "Bearer abc")
	assert.Contains(t, out, redacted)
}

func TestPrettyHandlerRedactsWithAttrsAndGroups(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, "text", "debug").With("refresh_token", "raw-secret").WithGroup("req")

	log.Debug("refresh", "secret", "s3cr3t", "user_id", "u-1")

	out := buf.String()
	assert.NotContains(t, out, "raw-secret")
	assert.NotContains(t, out, "s3cr3t")
	assert.Contains(t, out, "req.user_id")
}

func TestJSONHandlerRedactsSecrets(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, "json", "info")

	log.Info("token issued", "access_token", "eyJhbGciOi", "user_id", "u-1")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, redacted, line["access_token"])
	assert.Equal(t, "u-1", line["user_id"])
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, "text", "warn")

	log.Info("quiet")
	assert.Empty(t, buf.String())

	log.Warn("loud")
	assert.Contains(t, buf.String(), "loud")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("nonsense"))
}
