package log

import (
	"bytes"
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/trace"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zerolog.Level
		ok   bool
	}{
		{"", zerolog.InfoLevel, true},
		{" DEBUG ", zerolog.DebugLevel, true},
		{"warn", zerolog.WarnLevel, true},
		{"loud", zerolog.InfoLevel, false},
	}

	for _, tt := range tests {
		lvl, ok := parseLevel(tt.in)
		assert.Equal(t, tt.want, lvl, tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
	}
}

func TestGinWriterLevels(t *testing.T) {
	var buf bytes.Buffer

	l := zerolog.New(&buf)
	w := NewGinWriter(&l, zerolog.ErrorLevel)

	n, err := w.Write([]byte("  [GIN] boom \n"))
	assert.NoError(t, err)
	assert.Equal(t, 14, n)
	assert.Contains(t, buf.String(), `"level":"error"`)
	assert.Contains(t, buf.String(), `"message":"[GIN] boom"`)

	buf.Reset()

	_, _ = w.Write([]byte("   \n"))
	assert.Empty(t, buf.String())
}

func TestCtxAddsTraceFields(t *testing.T) {
	traceID, _ := trace.TraceIDFromHex("0102030405060708090a0b0c0d0e0f10")
	spanID, _ := trace.SpanIDFromHex("0102030405060708")
	sc := trace.NewSpanContext(trace.SpanContextConfig{TraceID: traceID, SpanID: spanID})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)

	var buf bytes.Buffer

	base := zerolog.New(&buf)
	initOnce.Do(func() {})

	logger = base

	Ctx(ctx).Info().Msg("hello")
	assert.Contains(t, buf.String(), `"trace_id":"0102030405060708090a0b0c0d0e0f10"`)

	buf.Reset()
	Ctx(context.Background()).Info().Msg("plain")
	assert.NotContains(t, buf.String(), "trace_id")
}
