package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/minio/minio-go/v7/pkg/lifecycle"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"cvision/internal/config"
	"cvision/internal/parser"
	"cvision/internal/tracing"
	"cvision/internal/types"
)

var minioTracer = otel.Tracer("cvision/storage/minio")

// ObjectStorage 档案相关的对象存储操作
type ObjectStorage interface {
	UploadDocument(ctx context.Context, filename, textMD5 string, data []byte) (string, error)
	UploadProfileJSON(ctx context.Context, result *types.ProfileResult) (string, error)
	GetProfileJSON(ctx context.Context, filename string) (*types.ProfileResult, error)
}

var _ ObjectStorage = (*MinIO)(nil)

// MinIO 原始文档与抽取结果的对象存储
type MinIO struct {
	client          *minio.Client
	cfg             *config.MinIOConfig
	originalsBucket string
	profilesBucket  string
	logger          zerolog.Logger
}

// NewMinIO 创建客户端并确保两个存储桶存在
func NewMinIO(ctx context.Context, cfg *config.MinIOConfig, log zerolog.Logger) (*MinIO, error) {
	if cfg == nil {
		return nil, fmt.Errorf("MinIO配置不能为空")
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Location,
	})
	if err != nil {
		return nil, fmt.Errorf("创建MinIO客户端失败: %w", err)
	}

	m := &MinIO{
		client:          client,
		cfg:             cfg,
		originalsBucket: orDefault(cfg.OriginalsBucket, "cvision-originals"),
		profilesBucket:  orDefault(cfg.ProfilesBucket, "cvision-profiles"),
		logger:          log,
	}

	for _, bucket := range []string{m.originalsBucket, m.profilesBucket} {
		if err := m.ensureBucketExists(ctx, bucket); err != nil {
			return nil, err
		}
	}

	if cfg.OriginalFileExpireDays > 0 {
		if err := m.setupBucketLifecycle(ctx, m.originalsBucket, "expire-originals", cfg.OriginalFileExpireDays); err != nil {
			// 生命周期规则失败不影响使用
			log.Warn().Err(err).Str("bucket", m.originalsBucket).Msg("设置存储桶生命周期失败")
		}
	}

	log.Info().Str("endpoint", cfg.Endpoint).Msg("MinIO客户端初始化成功")
	return m, nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func (m *MinIO) ensureBucketExists(ctx context.Context, bucket string) error {
	exists, err := m.client.BucketExists(ctx, bucket)
	if err != nil {
		return fmt.Errorf("检查存储桶 %s 是否存在时出错: %w", bucket, err)
	}
	if exists {
		return nil
	}
	if err := m.client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{Region: m.cfg.Location}); err != nil {
		return fmt.Errorf("创建存储桶 %s 失败: %w", bucket, err)
	}
	m.logger.Info().Str("bucket", bucket).Msg("存储桶已创建")
	return nil
}

func (m *MinIO) setupBucketLifecycle(ctx context.Context, bucket, ruleID string, expiryDays int) error {
	lc := lifecycle.NewConfiguration()
	lc.Rules = []lifecycle.Rule{
		{
			ID:     ruleID,
			Status: "Enabled",
			Expiration: lifecycle.Expiration{
				Days: lifecycle.ExpirationDays(expiryDays),
			},
		},
	}
	return m.client.SetBucketLifecycle(ctx, bucket, lc)
}

// DocumentObjectKey 原始文档对象键: documents/{md5}/{filename}
func DocumentObjectKey(textMD5, filename string) string {
	return path.Join("documents", textMD5, safeObjectName(filename))
}

// ProfileObjectKey 结果对象键: profiles/{filename}.json
func ProfileObjectKey(filename string) string {
	return path.Join("profiles", safeObjectName(filename)+".json")
}

// safeObjectName 去掉目录部分并转义，避免文件名中的路径穿越
func safeObjectName(filename string) string {
	base := path.Base(strings.ReplaceAll(filename, "\\", "/"))
	if base == "." || base == "/" || base == "" {
		base = "unnamed"
	}
	return url.PathEscape(base)
}

// UploadDocument 上传原始文档，返回对象键
func (m *MinIO) UploadDocument(ctx context.Context, filename, textMD5 string, data []byte) (string, error) {
	key := DocumentObjectKey(textMD5, filename)
	ctx, span := minioTracer.Start(ctx, "MinIO.UploadDocument", trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("minio.bucket", m.originalsBucket),
			attribute.String("minio.object", key),
			attribute.Int("minio.size", len(data)),
		))
	defer span.End()

	_, err := m.client.PutObject(ctx, m.originalsBucket, key, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: parser.ContentType(filename)})
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeObjectStore)
		return "", fmt.Errorf("上传对象 %s/%s 失败: %w", m.originalsBucket, key, err)
	}
	return key, nil
}

// UploadProfileJSON 将档案与关系序列化为 JSON 存入结果桶
func (m *MinIO) UploadProfileJSON(ctx context.Context, result *types.ProfileResult) (string, error) {
	if result == nil || result.Profile == nil {
		return "", fmt.Errorf("档案结果不能为空")
	}
	key := ProfileObjectKey(result.Profile.Filename)
	ctx, span := minioTracer.Start(ctx, "MinIO.UploadProfileJSON", trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("minio.object", key)))
	defer span.End()

	data, err := json.Marshal(result)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeInternal)
		return "", fmt.Errorf("序列化档案失败: %w", err)
	}
	_, err = m.client.PutObject(ctx, m.profilesBucket, key, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: "application/json"})
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeObjectStore)
		return "", fmt.Errorf("上传对象 %s/%s 失败: %w", m.profilesBucket, key, err)
	}
	return key, nil
}

// GetProfileJSON 读取已归档的结果，对象不存在时返回 ErrProfileNotFound
func (m *MinIO) GetProfileJSON(ctx context.Context, filename string) (*types.ProfileResult, error) {
	key := ProfileObjectKey(filename)
	ctx, span := minioTracer.Start(ctx, "MinIO.GetProfileJSON", trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("minio.object", key)))
	defer span.End()

	obj, err := m.client.GetObject(ctx, m.profilesBucket, key, minio.GetObjectOptions{})
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeObjectStore)
		return nil, fmt.Errorf("获取对象 %s 失败: %w", key, err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		var resp minio.ErrorResponse
		if errors.As(err, &resp) && resp.Code == "NoSuchKey" {
			return nil, fmt.Errorf("%s: %w", filename, ErrProfileNotFound)
		}
		tracing.RecordError(span, err, tracing.ErrorTypeObjectStore)
		return nil, fmt.Errorf("读取对象 %s 失败: %w", key, err)
	}

	var result types.ProfileResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("解析档案JSON失败: %w", err)
	}
	if result.Profile != nil {
		result.Profile.Normalize()
	}
	return &result, nil
}
