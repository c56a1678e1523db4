package processor

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"cvision/internal/config"
	"cvision/internal/parser"
)

// NewDocumentExtractor 按 processing.extractor 选择二进制文档的文本提取器。
// "none" 时返回 nil，只处理 .txt/.json。
func NewDocumentExtractor(ctx context.Context, cfg *config.Config, l zerolog.Logger) (parser.DocumentExtractor, error) {
	timeout := time.Duration(cfg.Tika.Timeout) * time.Second

	switch strings.ToLower(strings.TrimSpace(cfg.Processing.Extractor)) {
	case "", "tika":
		if cfg.Tika.ServerURL == "" {
			l.Warn().Msg("未配置 Tika 服务器，二进制文档将无法处理")
			return nil, nil
		}
		opts := []parser.TikaOption{
			parser.WithTikaLogger(l.With().Str("component", "tika").Logger()),
			parser.WithTimeout(timeout),
		}
		switch cfg.Tika.MetadataMode {
		case "full":
			opts = append(opts, parser.WithFullMetadata(true))
		case "minimal":
			opts = append(opts, parser.WithMinimalMetadata(true))
		case "none":
			opts = append(opts, parser.WithMinimalMetadata(false))
		}
		if cfg.Tika.OCRLanguage != "" {
			opts = append(opts, parser.WithOCRLanguage(cfg.Tika.OCRLanguage))
		}
		return parser.NewTikaExtractor(cfg.Tika.ServerURL, opts...), nil
	case "eino":
		ex, err := parser.NewEinoPDFExtractor(ctx,
			parser.WithEinoLogger(l.With().Str("component", "eino-pdf").Logger()),
			parser.WithEinoTimeout(timeout),
		)
		if err != nil {
			return nil, err
		}
		return ex, nil
	case "none":
		return nil, nil
	default:
		return nil, fmt.Errorf("未知的文本提取器: %s", cfg.Processing.Extractor)
	}
}
