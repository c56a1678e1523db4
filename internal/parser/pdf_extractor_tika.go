package parser

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// TikaExtractor 基于 Apache Tika 服务器的文档解析器，支持 PDF/DOCX/图片（OCR 由 Tika 完成）
type TikaExtractor struct {
	// Tika服务器地址，例如 http://localhost:9998
	ServerURL string
	Client    *http.Client

	extractFullMetadata    bool
	extractMinimalMetadata bool
	ocrLanguage            string // 例如 "eng+fra"，为空时使用服务器默认值
	logger                 zerolog.Logger
}

// TikaOption 配置选项
type TikaOption func(*TikaExtractor)

// WithFullMetadata 是否提取完整元数据
func WithFullMetadata(extract bool) TikaOption {
	return func(e *TikaExtractor) {
		e.extractFullMetadata = extract
	}
}

// WithMinimalMetadata 是否提取精简的关键元数据
func WithMinimalMetadata(extract bool) TikaOption {
	return func(e *TikaExtractor) {
		e.extractMinimalMetadata = extract
	}
}

// WithOCRLanguage 设置 Tesseract OCR 语言
func WithOCRLanguage(lang string) TikaOption {
	return func(e *TikaExtractor) {
		e.ocrLanguage = lang
	}
}

func WithTikaLogger(logger zerolog.Logger) TikaOption {
	return func(e *TikaExtractor) {
		e.logger = logger
	}
}

// WithTimeout HTTP客户端超时时间
func WithTimeout(timeout time.Duration) TikaOption {
	return func(e *TikaExtractor) {
		if timeout > 0 {
			e.Client.Timeout = timeout
		}
	}
}

var _ DocumentExtractor = (*TikaExtractor)(nil)

// NewTikaExtractor 创建 Tika 解析器
func NewTikaExtractor(serverURL string, options ...TikaOption) *TikaExtractor {
	e := &TikaExtractor{
		ServerURL:              strings.TrimRight(serverURL, "/"),
		Client:                 &http.Client{Timeout: 60 * time.Second},
		extractMinimalMetadata: true,
		logger:                 log.Logger,
	}
	for _, option := range options {
		option(e)
	}
	return e
}

// ExtractText 实现 DocumentExtractor
func (e *TikaExtractor) ExtractText(ctx context.Context, data []byte, filename string) (string, map[string]interface{}, error) {
	startTime := time.Now()
	contentType := ContentType(filename)

	metadata := map[string]interface{}{
		"extraction_time":  startTime.Format(time.RFC3339),
		"source_file_path": filename,
		"content_type":     contentType,
	}

	body, err := e.put(ctx, "/tika", "text/plain", contentType, filename, data)
	if err != nil {
		return "", metadata, err
	}
	text := string(body)
	metadata["text_length"] = len(text)
	metadata["processing_duration_ms"] = time.Since(startTime).Milliseconds()

	if e.extractFullMetadata || e.extractMinimalMetadata {
		raw, err := e.extractMetadata(ctx, data, contentType, filename)
		if err != nil {
			e.logger.Warn().Err(err).Str("filename", filename).Msg("元数据提取失败，继续使用基本元数据")
		} else {
			for k, v := range raw {
				if e.extractFullMetadata || isImportantMetadata(k) {
					metadata[k] = v
				}
			}
		}
	}

	e.logger.Debug().
		Str("filename", filename).
		Int("chars", len(text)).
		Dur("duration", time.Since(startTime)).
		Msg("Tika文本提取完成")
	return text, metadata, nil
}

// 判断元数据字段是否重要
func isImportantMetadata(key string) bool {
	switch key {
	case "pdf:PDFVersion", "xmpTPg:NPages", "dcterms:created", "language", "dc:title",
		"Content-Type", "pdf:docinfo:title", "pdf:docinfo:created", "X-TIKA:Parsed-By-Full-Set":
		return true
	}
	return false
}

func (e *TikaExtractor) extractMetadata(ctx context.Context, data []byte, contentType, filename string) (map[string]interface{}, error) {
	body, err := e.put(ctx, "/meta", "application/json", contentType, filename, data)
	if err != nil {
		return nil, err
	}
	var metadata map[string]interface{}
	if err := json.Unmarshal(body, &metadata); err != nil {
		return nil, fmt.Errorf("解析元数据JSON失败: %w", err)
	}
	return metadata, nil
}

func (e *TikaExtractor) put(ctx context.Context, path, accept, contentType, filename string, data []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, e.ServerURL+path, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("创建HTTP请求失败: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", accept)
	if filename != "" {
		req.Header.Set("X-Tika-Resource-Name", filename)
	}
	if e.ocrLanguage != "" {
		req.Header.Set("X-Tika-OCRLanguage", e.ocrLanguage)
	}

	resp, err := e.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("发送请求到Tika服务器失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("tika服务器返回错误状态码: %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("读取Tika响应失败: %w", err)
	}
	return body, nil
}
