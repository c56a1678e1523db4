package processor // 单文档流水线、批处理驱动与队列消费服务

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"cvision/internal/config"
	"cvision/internal/extractor"
	"cvision/internal/gazetteer"
	"cvision/internal/relation"
	"cvision/internal/tracing"
	"cvision/internal/types"
)

var tracer = otel.Tracer("cvision/processor")

// PipelineOption 流水线选项
type PipelineOption func(*Pipeline)

func WithPipelineLogger(l zerolog.Logger) PipelineOption {
	return func(p *Pipeline) {
		p.logger = l
	}
}

// Pipeline 抽取 + 推断，单文档纯函数，可在多个协程间共享
type Pipeline struct {
	extractor  *extractor.EntityExtractor
	inferencer *relation.Inferencer
	logger     zerolog.Logger
}

func NewPipeline(ex *extractor.EntityExtractor, inf *relation.Inferencer, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{extractor: ex, inferencer: inf, logger: log.Logger}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// NewPipelineFromConfig 按 extraction 配置装配词表、抽取器与推断器
func NewPipelineFromConfig(cfg config.ExtractionConfig, l zerolog.Logger) (*Pipeline, error) {
	g, err := gazetteer.LoadFile(cfg.GazetteerFile, cfg.Gazetteer)
	if err != nil {
		return nil, fmt.Errorf("加载词表失败: %w", err)
	}
	strategy, err := extractor.NewSkillStrategy(cfg.SkillStrategy, g)
	if err != nil {
		return nil, err
	}

	ex := extractor.New(g,
		extractor.WithSkillStrategy(strategy),
		extractor.WithLogger(l.With().Str("component", "extractor").Logger()),
		extractor.WithSettings(extractor.Settings{
			ExperienceWindow:  cfg.ExperienceWindow,
			MinExperienceYear: cfg.MinExperienceYear,
			SummaryMinWords:   cfg.SummaryMinWords,
		}),
	)
	inf := relation.New(g,
		relation.WithThreshold(cfg.SimilarityThreshold),
		relation.WithLogger(l.With().Str("component", "relation").Logger()),
	)

	l.Info().
		Str("skill_strategy", strategy.Name()).
		Float64("similarity_threshold", inf.Threshold()).
		Str("home_country", g.HomeCountry()).
		Msg("流水线已初始化")
	return NewPipeline(ex, inf, WithPipelineLogger(l)), nil
}

// SkillStrategy 当前技能抽取策略名称
func (p *Pipeline) SkillStrategy() string {
	return p.extractor.SkillStrategy().Name()
}

// Process 对一个文档运行抽取与关系推断
func (p *Pipeline) Process(ctx context.Context, doc types.ResumeText) (*types.ProfileResult, error) {
	_, span := tracer.Start(ctx, "Pipeline.Process",
		trace.WithAttributes(
			attribute.String("document.filename", tracing.SafeAttributeValue("document.filename", doc.Filename, tracing.DefaultMaxLength)),
			attribute.Int("document.text_length", len(doc.RawText)),
			attribute.String("document.preview", tracing.SafeResumeContent(doc.RawText)),
		))
	defer span.End()

	if strings.TrimSpace(doc.RawText) == "" {
		err := NewEmptyError(doc.Filename)
		tracing.RecordError(span, err, tracing.ErrorTypeDocument)
		return nil, err
	}

	start := time.Now()
	profile := p.extractor.Extract(doc)
	rels := p.inferencer.Infer(profile)

	span.SetAttributes(
		attribute.Int("profile.skills", len(profile.Skills)),
		attribute.Int("profile.relationships", len(rels)),
	)
	span.SetStatus(codes.Ok, "")
	p.logger.Debug().
		Str("filename", doc.Filename).
		Int("skills", len(profile.Skills)).
		Int("relationships", len(rels)).
		Dur("elapsed", time.Since(start)).
		Msg("文档处理完成")

	return &types.ProfileResult{Profile: profile, Relationships: rels}, nil
}

// Infer 对已有档案只做关系推断，输入先按集合语义规范化
func (p *Pipeline) Infer(profile *types.ExtractedProfile) *types.RelationshipSet {
	if profile != nil {
		profile.Normalize()
	}
	return p.inferencer.InferSet(profile)
}
