package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/pflag"

	"cvision/internal/config"
	"cvision/internal/export"
	"cvision/internal/logger"
	"cvision/internal/processor"
	"cvision/internal/storage"
	"cvision/internal/tracing"
)

var version = "1.0.0" //nolint:gochecknoglobals

// options 命令行参数，未显式指定的参数沿用配置文件
type options struct {
	configPath    string
	input         string
	output        string
	workers       int
	skillStrategy string
	threshold     float64
	exportPath    string
	extensions    []string
	store         bool
	cleanedText   bool
}

func newFlagSet(opts *options) *pflag.FlagSet {
	fs := pflag.NewFlagSet("cvision-batch", pflag.ContinueOnError)
	fs.StringVarP(&opts.configPath, "config", "c", "", "配置文件路径")
	fs.StringVarP(&opts.input, "input", "i", "", "输入目录 (.txt/.json/.pdf/.docx/图片)")
	fs.StringVarP(&opts.output, "output", "o", "", "输出目录，写出 <文件名>.entities.json 与 .relations.json")
	fs.IntVarP(&opts.workers, "workers", "w", 0, "并发处理的文档数")
	fs.StringVar(&opts.skillStrategy, "skill-strategy", "", "技能抽取策略: keyword | phrase")
	fs.Float64Var(&opts.threshold, "threshold", 0, "关系推断相似度阈值 [0,1]")
	fs.StringVarP(&opts.exportPath, "export", "e", "", "汇总导出文件 (.csv 或 .xlsx)，相对路径放在输出目录下")
	fs.StringSliceVar(&opts.extensions, "ext", nil, "只处理这些扩展名，例如 txt,pdf")
	fs.BoolVar(&opts.store, "store", false, "同时写入配置中启用的存储后端")
	fs.BoolVar(&opts.cleanedText, "cleaned-text", false, "在档案输出中附带清洗后的文本")
	return fs
}

// applyFlags 用显式指定的命令行参数覆盖配置
func applyFlags(cfg *config.Config, fs *pflag.FlagSet, opts *options) {
	if fs.Changed("input") {
		cfg.Processing.InputDir = opts.input
	}
	if fs.Changed("output") {
		cfg.Processing.OutputDir = opts.output
	}
	if fs.Changed("workers") && opts.workers > 0 {
		cfg.Processing.Workers = opts.workers
	}
	if fs.Changed("skill-strategy") {
		cfg.Extraction.SkillStrategy = opts.skillStrategy
	}
	if fs.Changed("threshold") {
		cfg.Extraction.SimilarityThreshold = opts.threshold
	}
	if fs.Changed("export") {
		cfg.Processing.ExportFile = opts.exportPath
	}
	if fs.Changed("ext") {
		cfg.Processing.Extensions = opts.extensions
	}
}

// exportTarget 导出文件的最终路径，空字符串表示不导出
func exportTarget(cfg *config.Config) string {
	p := cfg.Processing.ExportFile
	if p == "" || filepath.IsAbs(p) || filepath.Dir(p) != "." {
		return p
	}
	return filepath.Join(cfg.Processing.OutputDir, p)
}

func main() {
	var opts options
	fs := newFlagSet(&opts)
	if err := fs.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			return
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	if err := run(&opts, fs); err != nil {
		logger.Error().Err(err).Msg("批处理失败")
		os.Exit(1)
	}
}

func run(opts *options, fs *pflag.FlagSet) error {
	cfg, err := config.LoadConfig(opts.configPath)
	if err != nil {
		return fmt.Errorf("加载配置失败: %w", err)
	}
	applyFlags(cfg, fs, opts)
	if err := cfg.Validate(); err != nil {
		return err
	}

	logCloser, err := logger.Init(logger.Config(cfg.Logger))
	if err != nil {
		return err
	}
	defer logCloser.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Init(ctx, cfg.Tracing, version)
	if err != nil {
		return err
	}
	defer shutdownTracing(context.Background())

	pipeline, err := processor.NewPipelineFromConfig(cfg.Extraction, logger.Named("pipeline"))
	if err != nil {
		return err
	}
	docExtractor, err := processor.NewDocumentExtractor(ctx, cfg, logger.Named("parser"))
	if err != nil {
		return err
	}

	var sinks processor.MultiSink
	if cfg.Processing.OutputDir != "" {
		fileSink, err := processor.NewFileSink(cfg.Processing.OutputDir, opts.cleanedText)
		if err != nil {
			return err
		}
		sinks = append(sinks, fileSink)
	}
	if opts.store {
		store, err := storage.NewStorage(ctx, cfg, logger.Named("storage"))
		if err != nil {
			return err
		}
		defer store.Close()
		if !store.Empty() {
			sinks = append(sinks, processor.NewStoreSink(store, cfg.RabbitMQ, pipeline.SkillStrategy(),
				processor.WithStoreLogger(logger.Named("store"))))
		}
	}

	batch := processor.NewBatchProcessor(pipeline,
		processor.WithSink(sinks),
		processor.WithWorkers(cfg.Processing.Workers),
		processor.WithExtensions(cfg.Processing.Extensions),
		processor.WithDocumentExtractor(docExtractor),
		processor.WithBatchLogger(logger.Named("batch")),
	)
	report, err := batch.Run(ctx, cfg.Processing.InputDir)
	if err != nil {
		return err
	}

	if target := exportTarget(cfg); target != "" {
		if err := export.WriteFile(target, export.Rows(report.Results)); err != nil {
			return err
		}
		logger.Info().Str("file", target).Int("rows", len(report.Results)).Msg("汇总文件已导出")
	}

	for _, f := range report.Failed {
		logger.Warn().Str("file", f.Filename).Str("error", f.Error).Msg("未处理的文档")
	}
	return nil
}
