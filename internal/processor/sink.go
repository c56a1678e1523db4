package processor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"cvision/internal/config"
	"cvision/internal/parser"
	"cvision/internal/storage"
	"cvision/internal/types"
	"cvision/internal/utils"
)

// Document 进入流水线的一个文档
type Document struct {
	Text     types.ResumeText
	Original []byte // 原始文件内容，队列消息等场景下为空
	Path     string

	textMD5 string
}

// TextMD5 规范化文本的 MD5，用于去重
func (d *Document) TextMD5() string {
	if d.textMD5 == "" {
		d.textMD5 = utils.CalculateMD5([]byte(d.Text.RawText))
	}
	return d.textMD5
}

// ResultSink 接收单个文档的处理结果
type ResultSink interface {
	Save(ctx context.Context, doc *Document, result *types.ProfileResult) error
}

// Claimer 处理前登记文本，重复文本返回 ErrDuplicateText；处理失败时释放登记
type Claimer interface {
	Claim(ctx context.Context, doc *Document) error
	Release(ctx context.Context, doc *Document)
}

// ---------- FileSink ----------

// FileSink 把结果写成 <filename>.entities.json 和 <filename>.relations.json
type FileSink struct {
	dir              string
	writeCleanedText bool
}

// NewFileSink 创建目录并返回文件输出
func NewFileSink(dir string, writeCleanedText bool) (*FileSink, error) {
	if dir == "" {
		return nil, fmt.Errorf("输出目录不能为空")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("创建输出目录失败: %w", err)
	}
	return &FileSink{dir: dir, writeCleanedText: writeCleanedText}, nil
}

// entitiesRecord 档案字段 + 可选的清洗文本
type entitiesRecord struct {
	*types.ExtractedProfile
	CleanedText string `json:"cleaned_text,omitempty"`
}

func (s *FileSink) Save(_ context.Context, doc *Document, result *types.ProfileResult) error {
	name := filepath.Base(doc.Text.Filename)

	rec := entitiesRecord{ExtractedProfile: result.Profile}
	if s.writeCleanedText {
		rec.CleanedText = parser.CleanForIndex(doc.Text.RawText)
	}
	if err := writeJSONFile(filepath.Join(s.dir, name+".entities.json"), rec); err != nil {
		return NewPersistError(doc.Text.Filename, err.Error())
	}
	if err := writeJSONFile(filepath.Join(s.dir, name+".relations.json"), result.RelationshipSet()); err != nil {
		return NewPersistError(doc.Text.Filename, err.Error())
	}
	return nil
}

// EntitiesPath 某个文档的档案输出路径
func (s *FileSink) EntitiesPath(filename string) string {
	return filepath.Join(s.dir, filepath.Base(filename)+".entities.json")
}

func writeJSONFile(path string, v interface{}) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("序列化失败: %w", err)
	}
	return os.WriteFile(path, buf.Bytes(), 0o644)
}

// ---------- StoreSink ----------

// StoreSink 把结果写入已启用的存储后端
//   - Redis: 文本 MD5 去重、结果缓存
//   - MinIO: 原始文档与结果 JSON 归档
//   - MySQL: 档案与关系表，同事务写 outbox 事件
//   - 没有 MySQL 时直接向 RabbitMQ 发布事件
type StoreSink struct {
	store         *storage.Storage
	target        storage.OutboxTarget
	skillStrategy string
	logger        zerolog.Logger
}

// StoreSinkOption StoreSink 选项
type StoreSinkOption func(*StoreSink)

func WithStoreLogger(l zerolog.Logger) StoreSinkOption {
	return func(s *StoreSink) {
		s.logger = l
	}
}

// NewStoreSink store 不能为空；未启用 RabbitMQ 时不产生事件
func NewStoreSink(store *storage.Storage, mq config.RabbitMQConfig, skillStrategy string, opts ...StoreSinkOption) *StoreSink {
	s := &StoreSink{store: store, skillStrategy: skillStrategy, logger: log.Logger}
	if store != nil && store.RabbitMQ != nil {
		s.target = storage.OutboxTarget{Exchange: mq.ProfileEventsExchange, RoutingKey: mq.ExtractedRoutingKey}
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Claim 原子登记文本 MD5，已存在则返回重复错误。
// 没有 Redis 时退化为查询 MySQL。
func (s *StoreSink) Claim(ctx context.Context, doc *Document) error {
	md5Hex := doc.TextMD5()
	var (
		exists bool
		err    error
	)
	switch {
	case s.store.Redis != nil:
		exists, err = s.store.Redis.CheckAndAddTextMD5(ctx, md5Hex)
	case s.store.MySQL != nil:
		exists, err = s.store.MySQL.ExistsTextMD5(ctx, md5Hex)
	default:
		return nil
	}
	if err != nil {
		// 去重不可用时照常处理
		s.logger.Warn().Err(err).Str("filename", doc.Text.Filename).Msg("文本去重检查失败")
		return nil
	}
	if exists {
		return NewDuplicateError(doc.Text.Filename, md5Hex)
	}
	return nil
}

// Release 撤销 Claim 的登记，允许再次提交
func (s *StoreSink) Release(ctx context.Context, doc *Document) {
	if s.store.Redis == nil {
		return
	}
	if err := s.store.Redis.RemoveTextMD5(ctx, doc.TextMD5()); err != nil {
		s.logger.Warn().Err(err).Str("filename", doc.Text.Filename).Msg("回滚MD5记录失败")
	}
}

func (s *StoreSink) Save(ctx context.Context, doc *Document, result *types.ProfileResult) error {
	filename := doc.Text.Filename
	md5Hex := doc.TextMD5()

	var objectKey string
	if s.store.MinIO != nil {
		if len(doc.Original) > 0 {
			if _, err := s.store.MinIO.UploadDocument(ctx, filename, md5Hex, doc.Original); err != nil {
				return NewPersistError(filename, err.Error())
			}
		}
		key, err := s.store.MinIO.UploadProfileJSON(ctx, result)
		if err != nil {
			return NewPersistError(filename, err.Error())
		}
		objectKey = key
	}

	switch {
	case s.store.MySQL != nil:
		profileID, err := s.store.MySQL.SaveProfileResult(ctx, result, md5Hex, s.skillStrategy, objectKey, s.target)
		if err != nil {
			return persistError(filename, md5Hex, err)
		}
		s.logger.Debug().Str("filename", filename).Str("profile_id", profileID).Msg("档案已写入数据库")
	case s.target.Exchange != "":
		if err := s.publishDirect(ctx, result, md5Hex, objectKey); err != nil {
			return NewPublishError(filename, err.Error())
		}
	}

	if s.store.Redis != nil {
		if err := s.store.Redis.CacheProfileResult(ctx, result); err != nil {
			s.logger.Warn().Err(err).Str("filename", filename).Msg("缓存档案结果失败")
		}
	}
	return nil
}

// persistError 唯一索引冲突视为重复文本，其余为持久化失败
func persistError(filename, md5Hex string, err error) error {
	if errors.Is(err, storage.ErrDuplicateTextMD5) {
		return NewDuplicateError(filename, md5Hex)
	}
	return NewPersistError(filename, err.Error())
}

// publishDirect 没有数据库承载 outbox 时直接发布事件
func (s *StoreSink) publishDirect(ctx context.Context, result *types.ProfileResult, md5Hex, objectKey string) error {
	id, err := uuid.NewV7()
	if err != nil {
		return fmt.Errorf("生成档案ID失败: %w", err)
	}
	event := storage.ProfileExtractedEvent{
		ProfileID:          id.String(),
		Filename:           result.Profile.Filename,
		RawTextMD5:         md5Hex,
		SkillsCount:        len(result.Profile.Skills),
		RelationshipsCount: len(result.Relationships),
		RelationshipTypes:  result.RelationshipSet().CountByType(),
		ProfileObjectKey:   objectKey,
		ExtractedAt:        time.Now().UTC(),
	}
	return s.store.RabbitMQ.PublishJSON(ctx, s.target.Exchange, s.target.RoutingKey, event, true)
}

// ---------- MultiSink ----------

// MultiSink 依次写入多个输出，遇到第一个错误即返回
type MultiSink []ResultSink

func (m MultiSink) Save(ctx context.Context, doc *Document, result *types.ProfileResult) error {
	for _, s := range m {
		if err := s.Save(ctx, doc, result); err != nil {
			return err
		}
	}
	return nil
}

func (m MultiSink) Claim(ctx context.Context, doc *Document) error {
	var claimed []Claimer
	for _, s := range m {
		c, ok := s.(Claimer)
		if !ok {
			continue
		}
		if err := c.Claim(ctx, doc); err != nil {
			for _, prev := range claimed {
				prev.Release(ctx, doc)
			}
			return err
		}
		claimed = append(claimed, c)
	}
	return nil
}

func (m MultiSink) Release(ctx context.Context, doc *Document) {
	for _, s := range m {
		if c, ok := s.(Claimer); ok {
			c.Release(ctx, doc)
		}
	}
}

// isSkip 重复文本与空文档不算失败
func isSkip(err error) bool {
	return errors.Is(err, ErrDuplicateText) || errors.Is(err, ErrEmptyDocument)
}
