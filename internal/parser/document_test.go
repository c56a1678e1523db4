package parser

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubExtractor struct {
	text string
	err  error
	got  string
}

func (s *stubExtractor) ExtractText(_ context.Context, _ []byte, filename string) (string, map[string]interface{}, error) {
	s.got = filename
	return s.text, nil, s.err
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestReadDocument(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	t.Run("txt", func(t *testing.T) {
		doc, err := ReadDocument(ctx, writeFile(t, dir, "a.txt", "  John   Smith \r\n\r\n\r\nDeveloper\t "), nil)
		require.NoError(t, err)
		assert.Equal(t, "a.txt", doc.Filename)
		assert.Equal(t, "John Smith\n\nDeveloper", doc.RawText)
	})

	t.Run("json", func(t *testing.T) {
		path := writeFile(t, dir, "b.pdf.json", `{"filename":"b.pdf","file_type":"PDF","char_count":9,"raw_text":"Jane Doe\nSfax"}`)
		doc, err := ReadDocument(ctx, path, nil)
		require.NoError(t, err)
		assert.Equal(t, "b.pdf.json", doc.Filename)
		assert.Equal(t, "Jane Doe\nSfax", doc.RawText)
	})

	t.Run("json格式错误", func(t *testing.T) {
		_, err := ReadDocument(ctx, writeFile(t, dir, "bad.json", `{"raw_text":`), nil)
		assert.Error(t, err)
	})

	t.Run("二进制交给提取器", func(t *testing.T) {
		stub := &stubExtractor{text: "Extracted Text"}
		doc, err := ReadDocument(ctx, writeFile(t, dir, "c.PDF", "%PDF"), stub)
		require.NoError(t, err)
		assert.Equal(t, "c.PDF", stub.got)
		assert.Equal(t, "Extracted Text", doc.RawText)
	})

	t.Run("提取器失败", func(t *testing.T) {
		stub := &stubExtractor{err: errors.New("boom")}
		_, err := ReadDocument(ctx, writeFile(t, dir, "d.docx", "x"), stub)
		assert.Error(t, err)
	})

	t.Run("没有提取器", func(t *testing.T) {
		_, err := ReadDocument(ctx, writeFile(t, dir, "e.png", "x"), nil)
		assert.ErrorIs(t, err, ErrUnsupportedFormat)
	})

	t.Run("不支持的扩展名", func(t *testing.T) {
		_, err := ReadDocument(ctx, writeFile(t, dir, "f.xlsx", "x"), &stubExtractor{})
		assert.ErrorIs(t, err, ErrUnsupportedFormat)
	})

	t.Run("文件不存在", func(t *testing.T) {
		_, err := ReadDocument(ctx, filepath.Join(dir, "missing.txt"), nil)
		assert.Error(t, err)
		assert.NotErrorIs(t, err, ErrUnsupportedFormat)
	})
}

func TestContentType(t *testing.T) {
	assert.Equal(t, "application/pdf", ContentType("X.PDF"))
	assert.Equal(t, "image/jpeg", ContentType("scan.jpeg"))
	assert.Equal(t, "application/octet-stream", ContentType("notes.md"))
	assert.True(t, IsSupported("a.txt"))
	assert.False(t, IsSupported("a.md"))
}

func TestNormalizeText(t *testing.T) {
	assert.Equal(t, "", NormalizeText(" \n\n \t"))
	assert.Equal(t, "a b\n\nc", NormalizeText("\n\na \u200b\u00a0b\n\n\n\nc\n"))
	// NFC：e + 组合重音符 -> é
	assert.Equal(t, "caf\u00e9", NormalizeText("cafe\u0301"))
}

func TestCleanForIndex(t *testing.T) {
	assert.Equal(t, "senior python developer years experience", CleanForIndex("I am a Senior Python-Developer with 5 years of experience!"))
	assert.Equal(t, "", CleanForIndex("123 ..."))
}
