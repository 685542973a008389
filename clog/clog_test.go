package clog

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBufferedLogger(t *testing.T, cfg *Config, opts ...Option) (Logger, *bytes.Buffer) {
	t.Helper()

	buf := &bytes.Buffer{}
	logger, err := New(cfg, append(opts, WithWriter(buf))...)
	require.NoError(t, err)
	return logger, buf
}

func TestNew_DefaultConfig(t *testing.T) {
	logger, err := New(nil)
	require.NoError(t, err)
	require.NotNil(t, logger)
}

func TestNew_InvalidConfig(t *testing.T) {
	t.Run("非法级别", func(t *testing.T) {
		_, err := New(&Config{Level: "verbose"})
		assert.Error(t, err)
	})

	t.Run("非法格式", func(t *testing.T) {
		_, err := New(&Config{Format: "xml"})
		assert.Error(t, err)
	})
}

func TestLogger_JSONOutput(t *testing.T) {
	logger, buf := newBufferedLogger(t, &Config{Level: "info", Format: "json"})

	logger.Info("request dispatched",
		String("endpoint", "https://api.example.com"),
		Int("attempt", 1))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "request dispatched", entry["msg"])
	assert.Equal(t, "https://api.example.com", entry["endpoint"])
	assert.Equal(t, float64(1), entry["attempt"])
}

func TestLogger_LevelFiltering(t *testing.T) {
	logger, buf := newBufferedLogger(t, &Config{Level: "warn", Format: "json"})

	logger.Debug("dropped")
	logger.Info("dropped")
	assert.Zero(t, buf.Len(), "低于 warn 的日志应被过滤")

	logger.Warn("kept")
	assert.Contains(t, buf.String(), "kept")
}

func TestLogger_SetLevel(t *testing.T) {
	logger, buf := newBufferedLogger(t, &Config{Level: "error", Format: "json"})

	logger.Info("before")
	assert.Zero(t, buf.Len())

	require.NoError(t, logger.SetLevel(DebugLevel))
	logger.Debug("after")
	assert.Contains(t, buf.String(), "after")
}

func TestLogger_Namespace(t *testing.T) {
	logger, buf := newBufferedLogger(t, &Config{Level: "info", Format: "json"},
		WithNamespace("dispatch"))

	child := logger.WithNamespace("worker")
	child.Info("started")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "dispatch.worker", entry[NamespaceKey])
}

func TestLogger_With(t *testing.T) {
	logger, buf := newBufferedLogger(t, &Config{Level: "info", Format: "json"})

	child := logger.With(String("component", "queue"))
	child.Info("submitted")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "queue", entry["component"])
}

func TestParseLevel(t *testing.T) {
	cases := []struct {
		in   string
		want Level
		ok   bool
	}{
		{"debug", DebugLevel, true},
		{"INFO", InfoLevel, true},
		{"warn", WarnLevel, true},
		{"error", ErrorLevel, true},
		{"fatal", FatalLevel, true},
		{"trace", InfoLevel, false},
	}

	for _, c := range cases {
		got, err := ParseLevel(c.in)
		if c.ok {
			require.NoError(t, err, c.in)
		} else {
			require.Error(t, err, c.in)
		}
		assert.Equal(t, c.want, got, c.in)
	}
}

func TestDiscard(t *testing.T) {
	logger := Discard()
	// 静默 Logger 的所有操作都不应 panic
	logger.Info("ignored", String("k", "v"))
	logger.With(String("k", "v")).WithNamespace("ns").Error("ignored")
	assert.NoError(t, logger.SetLevel(DebugLevel))
}
