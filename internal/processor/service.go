package processor

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"cvision/internal/config"
	"cvision/internal/parser"
	"cvision/internal/storage"
	"cvision/internal/types"
)

// ErrStorageUnavailable 需要的存储后端未启用
var ErrStorageUnavailable = errors.New("存储后端未启用")

const defaultRetryInterval = 5 * time.Second

// ServiceOption 服务选项
type ServiceOption func(*ProfileService)

func WithServiceLogger(l zerolog.Logger) ServiceOption {
	return func(s *ProfileService) {
		s.logger = l
	}
}

func WithServiceExtractor(ex parser.DocumentExtractor) ServiceOption {
	return func(s *ProfileService) {
		s.docExtractor = ex
	}
}

// ProfileService 面向 API 与队列的档案服务
type ProfileService struct {
	pipeline     *Pipeline
	store        *storage.Storage
	sink         *StoreSink
	mq           config.RabbitMQConfig
	docExtractor parser.DocumentExtractor
	logger       zerolog.Logger
}

// NewProfileService store 可以为 nil，此时只做抽取不落库
func NewProfileService(p *Pipeline, store *storage.Storage, mq config.RabbitMQConfig, opts ...ServiceOption) *ProfileService {
	s := &ProfileService{pipeline: p, store: store, mq: mq, logger: log.Logger}
	for _, opt := range opts {
		opt(s)
	}
	if !store.Empty() {
		s.sink = NewStoreSink(store, mq, p.SkillStrategy(), WithStoreLogger(s.logger))
	}
	return s
}

// Pipeline 底层流水线
func (s *ProfileService) Pipeline() *Pipeline {
	return s.pipeline
}

// Persistent 是否有可写的存储后端
func (s *ProfileService) Persistent() bool {
	return s.sink != nil
}

// DecodeUpload 把上传的文件内容转换为文档
func (s *ProfileService) DecodeUpload(ctx context.Context, filename string, data []byte) (*Document, error) {
	text, err := parser.DecodeDocument(ctx, filename, data, s.docExtractor)
	if err != nil {
		return nil, NewDecodeError(filename, err.Error())
	}
	return &Document{Text: text, Original: data}, nil
}

// Extract 处理一个文档，有存储时同时持久化。
// 重复文本仍返回抽取结果，错误为 ErrDuplicateText。
func (s *ProfileService) Extract(ctx context.Context, doc *Document) (*types.ProfileResult, error) {
	doc.Text.RawText = parser.NormalizeText(doc.Text.RawText)
	if s.sink == nil {
		return s.pipeline.Process(ctx, doc.Text)
	}

	result, err := processAndSave(ctx, s.pipeline, s.sink, doc)
	if errors.Is(err, ErrDuplicateText) {
		dup, perr := s.pipeline.Process(ctx, doc.Text)
		if perr != nil {
			return nil, perr
		}
		return dup, err
	}
	return result, err
}

// Submit 把文本放入待抽取队列，由消费者异步处理
func (s *ProfileService) Submit(ctx context.Context, doc types.ResumeText, source string) error {
	if s.store == nil || s.store.RabbitMQ == nil {
		return ErrStorageUnavailable
	}
	msg := storage.ResumeTextMessage{ResumeText: doc, SubmittedAt: time.Now().UTC(), Source: source}
	if err := s.store.RabbitMQ.PublishJSON(ctx, s.mq.ProfileEventsExchange, s.mq.ResumeTextRoutingKey, msg, true); err != nil {
		return NewPublishError(doc.Filename, err.Error())
	}
	return nil
}

// Lookup 依次查询 Redis 缓存、MySQL、MinIO
func (s *ProfileService) Lookup(ctx context.Context, filename string) (*types.ProfileResult, error) {
	if s.store.Empty() {
		return nil, ErrStorageUnavailable
	}

	if s.store.Redis != nil {
		result, err := s.store.Redis.GetCachedProfileResult(ctx, filename)
		if err == nil {
			return result, nil
		}
		if !errors.Is(err, storage.ErrCacheMiss) {
			s.logger.Warn().Err(err).Str("filename", filename).Msg("读取档案缓存失败")
		}
	}

	var (
		result *types.ProfileResult
		err    = storage.ErrProfileNotFound
	)
	if s.store.MySQL != nil {
		result, err = s.store.MySQL.GetProfileByFilename(ctx, filename)
	}
	if errors.Is(err, storage.ErrProfileNotFound) && s.store.MinIO != nil {
		result, err = s.store.MinIO.GetProfileJSON(ctx, filename)
	}
	if err != nil {
		return nil, err
	}

	if s.store.Redis != nil {
		if cerr := s.store.Redis.CacheProfileResult(ctx, result); cerr != nil {
			s.logger.Warn().Err(cerr).Str("filename", filename).Msg("回填档案缓存失败")
		}
	}
	return result, nil
}

// ListProfiles 已持久化的档案，用于导出
func (s *ProfileService) ListProfiles(ctx context.Context, limit int) ([]*types.ProfileResult, error) {
	if s.store == nil || s.store.MySQL == nil {
		return nil, ErrStorageUnavailable
	}
	return s.store.MySQL.ListProfiles(ctx, limit)
}

// StartTextConsumer 消费待抽取文本队列，返回的通道在消费者全部退出后关闭
func (s *ProfileService) StartTextConsumer(ctx context.Context, workers int) (<-chan struct{}, error) {
	if s.store == nil || s.store.RabbitMQ == nil {
		return nil, ErrStorageUnavailable
	}
	prefetch := s.mq.PrefetchCount
	if prefetch <= 0 {
		prefetch = workers
	}
	return s.store.RabbitMQ.StartConsumer(ctx, s.mq.ResumeTextQueue, prefetch, workers, s.handleTextMessage)
}

// handleTextMessage 处理一条 ResumeTextMessage
func (s *ProfileService) handleTextMessage(ctx context.Context, body []byte) storage.Ack {
	var msg storage.ResumeTextMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		s.logger.Error().Err(err).Int("body_size", len(body)).Msg("无法解析队列消息，丢弃")
		return storage.AckReject
	}
	if strings.TrimSpace(msg.Filename) == "" {
		s.logger.Error().Err(ErrMalformedInput).Msg("队列消息缺少 filename，丢弃")
		return storage.AckReject
	}

	logger := s.logger.With().Str("filename", msg.Filename).Str("source", msg.Source).Logger()
	doc := &Document{Text: types.ResumeText{Filename: msg.Filename, RawText: parser.NormalizeText(msg.RawText)}}

	var err error
	if s.sink != nil {
		_, err = processAndSave(ctx, s.pipeline, s.sink, doc)
	} else {
		_, err = s.pipeline.Process(ctx, doc.Text)
	}

	switch {
	case err == nil:
		logger.Info().Msg("队列文本处理完成")
		return storage.AckDone
	case errors.Is(err, ErrDuplicateText):
		logger.Info().Msg("重复文本，跳过")
		return storage.AckDone
	case errors.Is(err, ErrEmptyDocument):
		logger.Warn().Msg("文本为空，丢弃")
		return storage.AckReject
	default:
		logger.Error().Err(err).Msg("处理队列文本失败，稍后重试")
		s.waitRetry(ctx)
		return storage.AckRequeue
	}
}

// waitRetry 重新入队前等待，避免失败消息立刻被再次投递
func (s *ProfileService) waitRetry(ctx context.Context) {
	t := time.NewTimer(config.GetDuration(s.mq.RetryInterval, defaultRetryInterval))
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
