package processor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"cvision/internal/parser"
	"cvision/internal/types"
)

const defaultWorkers = 4

// FailedDocument 处理失败的文档
type FailedDocument struct {
	Filename string `json:"filename"`
	Error    string `json:"error"`
}

// BatchReport 一次批处理的汇总
type BatchReport struct {
	Total     int                    `json:"total"`
	Processed int                    `json:"processed"`
	Skipped   int                    `json:"skipped"`
	Failed    []FailedDocument       `json:"failed"`
	Results   []*types.ProfileResult `json:"-"` // 按文件名排序
	Elapsed   time.Duration          `json:"elapsed"`
}

// BatchOption 批处理选项
type BatchOption func(*BatchProcessor)

func WithWorkers(n int) BatchOption {
	return func(b *BatchProcessor) {
		if n > 0 {
			b.workers = n
		}
	}
}

// WithExtensions 只处理这些扩展名，例如 ".txt"、"pdf"
func WithExtensions(exts []string) BatchOption {
	return func(b *BatchProcessor) {
		b.extensions = nil
		for _, e := range exts {
			e = strings.ToLower(strings.TrimSpace(e))
			if e == "" {
				continue
			}
			if !strings.HasPrefix(e, ".") {
				e = "." + e
			}
			b.extensions = append(b.extensions, e)
		}
	}
}

// WithDocumentExtractor 二进制文档的文本提取器
func WithDocumentExtractor(ex parser.DocumentExtractor) BatchOption {
	return func(b *BatchProcessor) {
		b.docExtractor = ex
	}
}

func WithSink(s ResultSink) BatchOption {
	return func(b *BatchProcessor) {
		b.sink = s
	}
}

func WithBatchLogger(l zerolog.Logger) BatchOption {
	return func(b *BatchProcessor) {
		b.logger = l
	}
}

// BatchProcessor 并发处理目录下的所有文档，单个文档失败不影响其他文档
type BatchProcessor struct {
	pipeline     *Pipeline
	docExtractor parser.DocumentExtractor
	sink         ResultSink
	workers      int
	extensions   []string
	logger       zerolog.Logger
}

func NewBatchProcessor(p *Pipeline, opts ...BatchOption) *BatchProcessor {
	b := &BatchProcessor{pipeline: p, workers: defaultWorkers, logger: log.Logger}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// ListDocuments 按文件名排序列出目录下可处理的文档
func (b *BatchProcessor) ListDocuments(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("读取输入目录失败: %w", err)
	}

	var paths []string
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		if !parser.IsSupported(e.Name()) || !b.allowed(e.Name()) {
			continue
		}
		paths = append(paths, filepath.Join(dir, e.Name()))
	}
	sort.Strings(paths)
	return paths, nil
}

func (b *BatchProcessor) allowed(name string) bool {
	if len(b.extensions) == 0 {
		return true
	}
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range b.extensions {
		if e == ext {
			return true
		}
	}
	return false
}

// Run 处理 inputDir 下的所有文档。只有目录不可读或 ctx 取消时返回错误。
func (b *BatchProcessor) Run(ctx context.Context, inputDir string) (*BatchReport, error) {
	start := time.Now()
	paths, err := b.ListDocuments(inputDir)
	if err != nil {
		return nil, err
	}

	report := &BatchReport{Total: len(paths), Failed: []FailedDocument{}}
	results := make([]*types.ProfileResult, len(paths))
	var mu sync.Mutex

	b.logger.Info().Str("input", inputDir).Int("documents", len(paths)).Int("workers", b.workers).Msg("开始批处理")

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.workers)
	for i, path := range paths {
		i, path := i, path
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			result, err := b.processFile(gctx, path)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				results[i] = result
				report.Processed++
			case isSkip(err):
				report.Skipped++
				b.logger.Info().Str("file", filepath.Base(path)).Err(err).Msg("跳过文档")
			case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
				return err
			default:
				report.Failed = append(report.Failed, FailedDocument{Filename: filepath.Base(path), Error: err.Error()})
				b.logger.Error().Str("file", filepath.Base(path)).Err(err).Msg("处理文档失败")
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return report, err
	}
	if err := ctx.Err(); err != nil {
		return report, err
	}

	for _, r := range results {
		if r != nil {
			report.Results = append(report.Results, r)
		}
	}
	sort.Slice(report.Failed, func(i, j int) bool { return report.Failed[i].Filename < report.Failed[j].Filename })
	report.Elapsed = time.Since(start)

	b.logger.Info().
		Int("processed", report.Processed).
		Int("skipped", report.Skipped).
		Int("failed", len(report.Failed)).
		Dur("elapsed", report.Elapsed).
		Msg("批处理完成")
	return report, nil
}

// processFile 读取、解码、处理并输出一个文件
func (b *BatchProcessor) processFile(ctx context.Context, path string) (*types.ProfileResult, error) {
	name := filepath.Base(path)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, NewReadError(name, err.Error())
	}
	text, err := parser.DecodeDocument(ctx, name, data, b.docExtractor)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, NewDecodeError(name, err.Error())
	}
	return b.ProcessDocument(ctx, &Document{Text: text, Original: data, Path: path})
}

// ProcessDocument 登记去重、运行流水线并写入输出
func (b *BatchProcessor) ProcessDocument(ctx context.Context, doc *Document) (*types.ProfileResult, error) {
	return processAndSave(ctx, b.pipeline, b.sink, doc)
}

func processAndSave(ctx context.Context, p *Pipeline, sink ResultSink, doc *Document) (*types.ProfileResult, error) {
	claimer, _ := sink.(Claimer)
	if claimer != nil {
		if err := claimer.Claim(ctx, doc); err != nil {
			return nil, err
		}
	}

	result, err := p.Process(ctx, doc.Text)
	if err == nil && sink != nil {
		err = sink.Save(ctx, doc, result)
	}
	if err != nil {
		if claimer != nil {
			claimer.Release(context.WithoutCancel(ctx), doc)
		}
		return nil, err
	}
	return result, nil
}
