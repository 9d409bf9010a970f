package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("debug"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("info"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warn"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("nonsense"))
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"), "case-insensitive")
}

func TestColoredHandlerRendersLevelAndMessage(t *testing.T) {
	var buf bytes.Buffer
	h := &coloredHandler{writer: &buf}

	record := slog.NewRecord(time.Time{}, slog.LevelWarn, "disk low", 0)
	record.AddAttrs(slog.String("path", "/tmp"))

	require := assert.New(t)
	require.NoError(h.Handle(context.Background(), record))

	out := buf.String()
	assert.Contains(t, out, "WARN")
	assert.Contains(t, out, "disk low")
	assert.Contains(t, out, "path=/tmp")
}

func TestFilteringHandlerSuppressesThirdPartyBelowDebug(t *testing.T) {
	var buf bytes.Buffer
	base := slog.NewTextHandler(&buf, nil)
	fh := &filteringHandler{handler: base, minLevel: slog.LevelWarn}

	record := slog.NewRecord(time.Time{}, slog.LevelInfo, "third party chatter", 0)
	assert.NoError(t, fh.Handle(context.Background(), record))
	assert.Empty(t, buf.String(), "record with no core-package caller should be filtered when minLevel is above debug")
}

func TestFilteringHandlerEnabledRespectsMinLevel(t *testing.T) {
	base := slog.NewTextHandler(&bytes.Buffer{}, nil)
	fh := &filteringHandler{handler: base, minLevel: slog.LevelWarn}

	assert.False(t, fh.Enabled(context.Background(), slog.LevelInfo))
	assert.True(t, fh.Enabled(context.Background(), slog.LevelWarn))
	assert.True(t, fh.Enabled(context.Background(), slog.LevelError))
}

func TestIsCorePackageFalseForZeroPC(t *testing.T) {
	fh := &filteringHandler{}
	assert.False(t, fh.isCorePackage(0))
}

func TestLoggerInitializesOnFirstUse(t *testing.T) {
	defaultLogger = nil
	l := Logger()
	assert.NotNil(t, l)
	assert.Same(t, defaultLogger, l)
}

func TestLevelColorVariesByLevel(t *testing.T) {
	assert.NotEqual(t, levelColor(slog.LevelError), levelColor(slog.LevelDebug))
	assert.NotEmpty(t, levelColor(slog.LevelWarn))
}

func TestColoredHandlerNormalizesWarningLabel(t *testing.T) {
	var buf bytes.Buffer
	h := &coloredHandler{writer: &buf}
	record := slog.NewRecord(time.Time{}, slog.LevelWarn, "m", 0)
	assert.NoError(t, h.Handle(context.Background(), record))
	assert.True(t, strings.Contains(buf.String(), "WARN") && !strings.Contains(buf.String(), "WARNING"))
}
