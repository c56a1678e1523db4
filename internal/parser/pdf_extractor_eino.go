package parser

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/document/parser/pdf"
	einoParser "github.com/cloudwego/eino/components/document/parser"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// EinoPDFExtractor 使用 Eino PDF Parser 在本地提取 PDF 文本，只支持 PDF
type EinoPDFExtractor struct {
	parser  *pdf.PDFParser
	timeout time.Duration
	logger  zerolog.Logger
}

// EinoPDFOption 配置选项
type EinoPDFOption func(*EinoPDFExtractor)

func WithEinoLogger(logger zerolog.Logger) EinoPDFOption {
	return func(e *EinoPDFExtractor) {
		e.logger = logger
	}
}

// WithEinoTimeout 单个文档解析超时
func WithEinoTimeout(timeout time.Duration) EinoPDFOption {
	return func(e *EinoPDFExtractor) {
		if timeout > 0 {
			e.timeout = timeout
		}
	}
}

var _ DocumentExtractor = (*EinoPDFExtractor)(nil)

// NewEinoPDFExtractor 初始化，不按页面分割，整份文档作为一段文本
func NewEinoPDFExtractor(ctx context.Context, options ...EinoPDFOption) (*EinoPDFExtractor, error) {
	p, err := pdf.NewPDFParser(ctx, &pdf.Config{ToPages: false})
	if err != nil {
		return nil, fmt.Errorf("创建Eino PDF解析器失败: %w", err)
	}
	e := &EinoPDFExtractor{
		parser:  p,
		timeout: 30 * time.Second,
		logger:  log.Logger,
	}
	for _, option := range options {
		option(e)
	}
	return e, nil
}

// ExtractText 实现 DocumentExtractor
func (e *EinoPDFExtractor) ExtractText(ctx context.Context, data []byte, filename string) (string, map[string]interface{}, error) {
	if strings.ToLower(filepath.Ext(filename)) != ".pdf" {
		return "", nil, fmt.Errorf("%w: eino 只支持 PDF (%s)", ErrUnsupportedFormat, filename)
	}

	startTime := time.Now()
	extraMeta := map[string]interface{}{
		"source_file_path": filename,
		"extraction_time":  startTime.Format(time.RFC3339),
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	docs, err := e.parser.Parse(ctx, bytes.NewReader(data),
		einoParser.WithURI(filename),
		einoParser.WithExtraMeta(extraMeta),
	)
	if err != nil {
		return "", extraMeta, fmt.Errorf("eino PDF 解析失败 %s: %w", filename, err)
	}
	if len(docs) == 0 {
		return "", extraMeta, fmt.Errorf("eino PDF 解析无结果: %s", filename)
	}

	parts := make([]string, 0, len(docs))
	for _, doc := range docs {
		parts = append(parts, doc.Content)
	}
	text := strings.Join(parts, "\n\n")

	metadata := make(map[string]interface{}, len(docs[0].MetaData)+len(extraMeta)+3)
	for k, v := range docs[0].MetaData {
		metadata[k] = v
	}
	for k, v := range extraMeta {
		metadata[k] = v
	}
	duration := time.Since(startTime)
	metadata["processing_duration_ms"] = duration.Milliseconds()
	metadata["document_count"] = len(docs)
	metadata["text_length"] = len(text)

	e.logger.Debug().Str("filename", filename).Int("chars", len(text)).Dur("duration", duration).Msg("PDF提取完成")
	return text, metadata, nil
}
