package logging

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLevelFromString(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"off", levelOff},
		{"bogus", slog.LevelInfo},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, LevelFromString(tt.in), tt.in)
	}
}

func TestNewWithFormat_JSON(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	l := NewWithFormat(&buf, slog.LevelInfo, "json")
	l.Info("hello", "file", "a.t")
	assert.Contains(t, buf.String(), `"msg":"hello"`)
	assert.Contains(t, buf.String(), `"file":"a.t"`)
}

func TestNewWithFormat_TextRespectsLevel(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	l := NewWithFormat(&buf, slog.LevelWarn, "text")
	l.Info("hidden")
	l.Warn("shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}

func TestOrDiscard(t *testing.T) {
	t.Parallel()
	assert.NotNil(t, OrDiscard(nil))
	l := Discard()
	assert.Same(t, l, OrDiscard(l))
	assert.False(t, l.Enabled(context.Background(), slog.LevelError))
}
