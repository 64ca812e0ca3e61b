package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestInitLogger_InjectsTraceIDs(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp, err := newTracerProvider(sdktrace.WithSyncer(exporter), "voicebox-test", "dev", "")
	require.NoError(t, err)
	defer tp.Shutdown(context.Background())

	var buf bytes.Buffer
	logger := InitLogger(&buf, slog.LevelInfo)

	ctx, span := tp.Tracer("test").Start(context.Background(), "op")
	logger.InfoContext(ctx, "hello", "k", "v")
	span.End()

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "hello", line["msg"])
	assert.Equal(t, span.SpanContext().TraceID().String(), line["trace_id"])
	assert.Equal(t, span.SpanContext().SpanID().String(), line["span_id"])

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "op", spans[0].Name)
}

func TestInitLogger_NoSpan(t *testing.T) {
	var buf bytes.Buffer
	logger := InitLogger(&buf, slog.LevelWarn).With("component", "test")

	logger.Info("dropped")
	assert.Empty(t, buf.String())

	logger.Warn("kept")
	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "test", line["component"])
	assert.NotContains(t, line, "trace_id")
}

func TestParseLevel(t *testing.T) {
	for in, want := range map[string]slog.Level{
		"":      slog.LevelInfo,
		"debug": slog.LevelDebug,
		"INFO":  slog.LevelInfo,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
	} {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseLevel("loud")
	assert.Error(t, err)
}

func TestRecordSynthesis(t *testing.T) {
	before := testutil.ToFloat64(synthesisRequests.WithLabelValues("single", "error"))
	RecordSynthesis("single", false, 150*time.Millisecond)
	assert.Equal(t, before+1, testutil.ToFloat64(synthesisRequests.WithLabelValues("single", "error")))

	hits := testutil.ToFloat64(cacheLookups.WithLabelValues("hit"))
	RecordCacheLookup(true)
	assert.Equal(t, hits+1, testutil.ToFloat64(cacheLookups.WithLabelValues("hit")))

	bytesBefore := testutil.ToFloat64(audioBytes.WithLabelValues("multi"))
	RecordAudioBytes("multi", 480)
	assert.Equal(t, bytesBefore+480, testutil.ToFloat64(audioBytes.WithLabelValues("multi")))
}
