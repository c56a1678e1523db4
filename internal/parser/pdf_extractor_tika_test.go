package parser

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 创建一个模拟的Tika服务器
func createMockTikaServer(t *testing.T) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		switch r.URL.Path {
		case "/tika":
			body, _ := io.ReadAll(r.Body)
			w.Header().Set("Content-Type", "text/plain")
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("John Smith\nContent-Type: " + r.Header.Get("Content-Type") +
				"\nOCR: " + r.Header.Get("X-Tika-OCRLanguage") + "\nBytes: " + string(body)))
		case "/meta":
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{
				"Content-Type": "application/pdf",
				"pdf:PDFVersion": "1.5",
				"xmpTPg:NPages": "2",
				"X-TIKA:Parsed-By": "org.apache.tika.parser.DefaultParser"
			}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
}

func TestNewTikaExtractor(t *testing.T) {
	e := NewTikaExtractor("http://localhost:9998/")
	assert.Equal(t, "http://localhost:9998", e.ServerURL)
	assert.Equal(t, 60*time.Second, e.Client.Timeout)
	assert.False(t, e.extractFullMetadata)
	assert.True(t, e.extractMinimalMetadata)

	custom := NewTikaExtractor("http://tika:9998",
		WithFullMetadata(true),
		WithMinimalMetadata(false),
		WithOCRLanguage("eng+fra"),
		WithTimeout(30*time.Second),
		WithTikaLogger(zerolog.Nop()),
	)
	assert.True(t, custom.extractFullMetadata)
	assert.False(t, custom.extractMinimalMetadata)
	assert.Equal(t, "eng+fra", custom.ocrLanguage)
	assert.Equal(t, 30*time.Second, custom.Client.Timeout)
}

func TestTikaExtractText(t *testing.T) {
	server := createMockTikaServer(t)
	defer server.Close()
	ctx := context.Background()

	t.Run("精简元数据", func(t *testing.T) {
		e := NewTikaExtractor(server.URL, WithTikaLogger(zerolog.Nop()), WithOCRLanguage("eng"))
		text, meta, err := e.ExtractText(ctx, []byte("%PDF-1.5"), "cv.pdf")
		require.NoError(t, err)
		assert.Contains(t, text, "Content-Type: application/pdf")
		assert.Contains(t, text, "OCR: eng")
		assert.Contains(t, text, "Bytes: %PDF-1.5")
		assert.Contains(t, meta, "pdf:PDFVersion")
		assert.NotContains(t, meta, "X-TIKA:Parsed-By")
		assert.Equal(t, "cv.pdf", meta["source_file_path"])
	})

	t.Run("完整元数据", func(t *testing.T) {
		e := NewTikaExtractor(server.URL, WithTikaLogger(zerolog.Nop()), WithFullMetadata(true))
		_, meta, err := e.ExtractText(ctx, []byte("x"), "cv.docx")
		require.NoError(t, err)
		assert.Contains(t, meta, "X-TIKA:Parsed-By")
		assert.Equal(t, ContentType("cv.docx"), meta["content_type"])
	})

	t.Run("不提取元数据", func(t *testing.T) {
		e := NewTikaExtractor(server.URL, WithTikaLogger(zerolog.Nop()), WithMinimalMetadata(false))
		_, meta, err := e.ExtractText(ctx, []byte("x"), "scan.png")
		require.NoError(t, err)
		assert.NotContains(t, meta, "pdf:PDFVersion")
		assert.Contains(t, meta, "text_length")
	})
}

func TestTikaServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))
	defer server.Close()

	e := NewTikaExtractor(server.URL, WithTikaLogger(zerolog.Nop()))
	_, _, err := e.ExtractText(context.Background(), []byte("x"), "cv.pdf")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "422")
}
