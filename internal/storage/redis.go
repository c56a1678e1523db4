package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/extra/redisotel/v9"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"

	"cvision/internal/config"
	"cvision/internal/constants"
	"cvision/internal/tracing"
	"cvision/internal/types"
)

var redisTracer = otel.Tracer("cvision/storage/redis")

// ErrCacheMiss 缓存中没有对应结果
var ErrCacheMiss = errors.New("cache miss")

// checkAndAddScript 原子地检查并加入集合，返回加入前是否已存在
var checkAndAddScript = redis.NewScript(`
	local exists = redis.call('SISMEMBER', KEYS[1], ARGV[1])
	redis.call('SADD', KEYS[1], ARGV[1])
	redis.call('EXPIRE', KEYS[1], ARGV[2])
	return exists
`)

// Redis 去重集合与结果缓存
type Redis struct {
	Client *redis.Client
	config *config.RedisConfig
}

// NewRedisAdapter 创建客户端、挂载 OpenTelemetry 钩子并检查连通性
func NewRedisAdapter(ctx context.Context, cfg *config.RedisConfig) (*Redis, error) {
	if cfg == nil {
		return nil, fmt.Errorf("redis config cannot be nil")
	}
	if cfg.Address == "" {
		return nil, fmt.Errorf("redis address is required")
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  time.Duration(cfg.DialTimeoutSeconds) * time.Second,
		ReadTimeout:  time.Duration(cfg.ReadTimeoutSeconds) * time.Second,
		WriteTimeout: time.Duration(cfg.WriteTimeoutSeconds) * time.Second,
		MaxRetries:   cfg.MaxRetries,
	})

	if err := redisotel.InstrumentTracing(client); err != nil {
		return nil, fmt.Errorf("failed to instrument Redis with OpenTelemetry: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", cfg.Address, err)
	}

	return &Redis{Client: client, config: cfg}, nil
}

func (r *Redis) Close() error {
	if r.Client != nil {
		return r.Client.Close()
	}
	return nil
}

// MD5ExpireDuration MD5去重集合的有效期
func (r *Redis) MD5ExpireDuration() time.Duration {
	days := r.config.MD5RecordExpireDays
	if days <= 0 {
		days = constants.DefaultMD5ExpireDays
	}
	return time.Duration(days) * 24 * time.Hour
}

// ResultTTL 结果缓存有效期
func (r *Redis) ResultTTL() time.Duration {
	return config.GetDuration(r.config.ResultCacheTTL, constants.DefaultResultCacheTTL)
}

// CheckAndAddTextMD5 原子地检查并记录文本MD5，返回该文本此前是否出现过
func (r *Redis) CheckAndAddTextMD5(ctx context.Context, md5Hex string) (exists bool, err error) {
	ctx, span := redisTracer.Start(ctx, "Redis.CheckAndAddTextMD5", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	span.SetAttributes(
		semconv.DBSystemRedis,
		attribute.String("db.redis.database", strconv.Itoa(r.config.DB)),
		attribute.String("db.operation", "EVALSHA"),
		attribute.String("db.redis.key", constants.KeyTextMD5Set),
		attribute.String("db.redis.member", md5Hex),
	)

	if r.Client == nil {
		err = fmt.Errorf("redis client is not initialized")
		tracing.RecordError(span, err, tracing.ErrorTypeRedis)
		return false, err
	}

	res, err := checkAndAddScript.Run(ctx, r.Client, []string{constants.KeyTextMD5Set},
		md5Hex, int64(r.MD5ExpireDuration().Seconds())).Int64()
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeRedis)
		return false, fmt.Errorf("执行原子检查和添加操作失败: %w", err)
	}

	exists = res == 1
	span.SetAttributes(attribute.Bool("already_exists", exists))
	span.SetStatus(codes.Ok, "")
	return exists, nil
}

// RemoveTextMD5 处理失败时回滚MD5记录，允许重新提交
func (r *Redis) RemoveTextMD5(ctx context.Context, md5Hex string) error {
	if r.Client == nil {
		return fmt.Errorf("redis client is not initialized")
	}
	return r.Client.SRem(ctx, constants.KeyTextMD5Set, md5Hex).Err()
}

// CacheProfileResult 缓存档案结果，键为文件名
func (r *Redis) CacheProfileResult(ctx context.Context, result *types.ProfileResult) error {
	if result == nil || result.Profile == nil {
		return fmt.Errorf("档案结果不能为空")
	}
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("序列化档案失败: %w", err)
	}
	key := fmt.Sprintf(constants.KeyProfileResult, result.Profile.Filename)
	return r.Client.Set(ctx, key, data, r.ResultTTL()).Err()
}

// GetCachedProfileResult 读取缓存结果，未命中时返回 ErrCacheMiss
func (r *Redis) GetCachedProfileResult(ctx context.Context, filename string) (*types.ProfileResult, error) {
	key := fmt.Sprintf(constants.KeyProfileResult, filename)
	data, err := r.Client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("读取缓存 %s 失败: %w", tracing.SafeRedisKey(key), err)
	}

	var result types.ProfileResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("缓存内容格式错误: %w", err)
	}
	if result.Profile != nil {
		result.Profile.Normalize()
	}
	return &result, nil
}
