package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("debug"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("WARN"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("bogus"))
}

// TestPurpose: Validates that structured lifecycle log lines carry service and tenant attributes in JSON form.
// Scope: Unit Test
// Expected: One JSON object per record containing service, tenant_id and version keys.
// Test Case ID: LOG-01
func TestNew_JSONOutput(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: "info", Format: "json", ServiceName: "lifecycle", Output: &buf})

	l.Info("data installed", TenantID("t1"), Version("1.0.0"))
	l.Debug("filtered out")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "lifecycle", rec["service"])
	assert.Equal(t, "t1", rec["tenant_id"])
	assert.Equal(t, "1.0.0", rec["version"])
	assert.NotContains(t, buf.String(), "filtered out")
}

func TestFanoutHandler_WritesToAll(t *testing.T) {
	var a, b bytes.Buffer
	h := NewFanoutHandler(
		slog.NewTextHandler(&a, nil),
		slog.NewTextHandler(&b, &slog.HandlerOptions{Level: slog.LevelError}),
	)
	l := slog.New(h)

	l.Info("hello")
	l.Error("bad")

	assert.Contains(t, a.String(), "hello")
	assert.Contains(t, a.String(), "bad")
	assert.NotContains(t, b.String(), "hello")
	assert.Contains(t, b.String(), "bad")
}
