package tracing

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"cvision/internal/config"
)

func TestMaskPII(t *testing.T) {
	cases := map[string]string{
		"":                  "",
		"A":                 "*",
		"Al":                "A*",
		"Ali":               "A*i",
		"amira@example.com": "am*************om",
		"+216 22 123 456":   "+2***********56",
	}
	for in, want := range cases {
		assert.Equal(t, want, MaskPII(in), in)
	}
}

func TestSafeAttributeValue(t *testing.T) {
	assert.Equal(t, "am*************om", SafeAttributeValue("profile.email", "amira@example.com", 50))
	assert.Equal(t, "cv_amira.pdf", SafeAttributeValue("filename", "cv_amira.pdf", 50))
	assert.Equal(t, "cv_amira.pdf", SafeAttributeValue("document.filename", "cv_amira.pdf", 50))
	assert.Equal(t, "abc...xyz", SafeAttributeValue("status", "abcdefghijklmnopqrstuvwxyz", 9))
}

func TestTruncateString(t *testing.T) {
	assert.Equal(t, "short", TruncateString("short", 10))
	assert.Equal(t, "ab", TruncateString("abcdef", 2))
	long := strings.Repeat("x", 600)
	assert.Len(t, []rune(SafeSQL(long)), 3+2*((MaxSQLLength-3)/2))
}

func TestSafeResumeContent(t *testing.T) {
	got := SafeResumeContent("Amira Ben Salah amira@example.com Sfax")
	assert.NotContains(t, got, "amira@example.com")
	assert.True(t, strings.HasPrefix(got, "Amira Ben Salah"))
}

func TestRecordError(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	_, span := tp.Tracer("test").Start(context.Background(), "op")

	RecordHTTPError(span, errors.New("bad request"), 400)
	RecordError(nil, errors.New("ignored"), ErrorTypeDB)
	span.End()

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status().Code)

	attrs := map[string]string{}
	for _, kv := range spans[0].Attributes() {
		attrs[string(kv.Key)] = kv.Value.Emit()
	}
	assert.Equal(t, "http", attrs["error.type"])
	assert.Equal(t, "client_error", attrs["error.category"])
	assert.Equal(t, "400", attrs["http.status_code"])
}

func TestInitDisabled(t *testing.T) {
	shutdown, err := Init(context.Background(), config.TracingConfig{}, "test")
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))

	_, err = Init(context.Background(), config.TracingConfig{Enabled: true}, "test")
	assert.Error(t, err, "缺少 endpoint 应返回错误")
}

func TestSampleRatio(t *testing.T) {
	assert.Equal(t, 1.0, sampleRatio(0))
	assert.Equal(t, 1.0, sampleRatio(2))
	assert.Equal(t, 0.25, sampleRatio(0.25))
}
