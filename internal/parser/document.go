package parser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cvision/internal/types"
)

// ErrUnsupportedFormat 不支持的文档格式
var ErrUnsupportedFormat = errors.New("不支持的文档格式")

// DocumentExtractor 二进制文档（PDF/DOCX/图片）文本提取器
type DocumentExtractor interface {
	// ExtractText 提取纯文本和元数据，filename 用于推断内容类型
	ExtractText(ctx context.Context, data []byte, filename string) (string, map[string]interface{}, error)
}

// contentTypes 二进制格式扩展名 -> MIME
var contentTypes = map[string]string{
	".pdf":  "application/pdf",
	".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	".doc":  "application/msword",
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".tif":  "image/tiff",
	".tiff": "image/tiff",
}

// ContentType 根据文件名推断 MIME 类型，未知时返回 application/octet-stream
func ContentType(filename string) string {
	if ct, ok := contentTypes[strings.ToLower(filepath.Ext(filename))]; ok {
		return ct
	}
	return "application/octet-stream"
}

// IsSupported 判断扩展名是否可处理
func IsSupported(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	if ext == ".txt" || ext == ".json" {
		return true
	}
	_, ok := contentTypes[ext]
	return ok
}

// extractedRecord 文本提取阶段的 JSON 输出格式
type extractedRecord struct {
	Filename string `json:"filename"`
	FileType string `json:"file_type,omitempty"`
	RawText  string `json:"raw_text"`
}

// ReadDocument 读取一个文档并返回规范化后的文本
//   - .txt 直接读取
//   - .json 读取 {filename, raw_text} 记录
//   - 其他二进制格式交给 extractor（为 nil 时返回 ErrUnsupportedFormat）
func ReadDocument(ctx context.Context, path string, extractor DocumentExtractor) (types.ResumeText, error) {
	name := filepath.Base(path)
	if !IsSupported(name) {
		return types.ResumeText{}, fmt.Errorf("%w: %s", ErrUnsupportedFormat, name)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return types.ResumeText{}, fmt.Errorf("读取文件失败: %w", err)
	}
	return DecodeDocument(ctx, name, data, extractor)
}

// DecodeDocument 与 ReadDocument 相同，但输入为内存中的数据
func DecodeDocument(ctx context.Context, name string, data []byte, extractor DocumentExtractor) (types.ResumeText, error) {
	doc := types.ResumeText{Filename: name}
	switch strings.ToLower(filepath.Ext(name)) {
	case ".txt":
		doc.RawText = NormalizeText(string(data))
	case ".json":
		var rec extractedRecord
		if err := json.Unmarshal(data, &rec); err != nil {
			return doc, fmt.Errorf("解析JSON文档失败: %w", err)
		}
		doc.RawText = NormalizeText(rec.RawText)
	default:
		if _, ok := contentTypes[strings.ToLower(filepath.Ext(name))]; !ok || extractor == nil {
			return doc, fmt.Errorf("%w: %s", ErrUnsupportedFormat, name)
		}
		text, _, err := extractor.ExtractText(ctx, data, name)
		if err != nil {
			return doc, fmt.Errorf("提取文档文本失败: %w", err)
		}
		doc.RawText = NormalizeText(text)
	}
	return doc, nil
}
