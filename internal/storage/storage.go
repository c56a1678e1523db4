package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"cvision/internal/config"
)

// Storage 聚合所有可选的存储后端，未启用的后端为 nil
type Storage struct {
	// 对象存储
	MinIO *MinIO

	// 消息队列
	RabbitMQ *RabbitMQ

	// 关系型数据库
	MySQL *MySQL

	// 键值存储
	Redis *Redis
}

// NewStorage 按配置初始化已启用的后端。
// 单个后端失败只记录警告；所有已启用的后端都失败时返回错误。
func NewStorage(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*Storage, error) {
	if cfg == nil {
		return nil, fmt.Errorf("配置不能为空")
	}

	s := &Storage{}
	var (
		enabled    int
		initErrors []string
		err        error
	)

	if cfg.MinIO.Enabled {
		enabled++
		s.MinIO, err = NewMinIO(ctx, &cfg.MinIO, log.With().Str("component", "minio").Logger())
		if err != nil {
			initErrors = append(initErrors, fmt.Sprintf("MinIO: %v", err))
		}
	}

	if cfg.RabbitMQ.Enabled {
		enabled++
		s.RabbitMQ, err = NewRabbitMQ(&cfg.RabbitMQ, log.With().Str("component", "rabbitmq").Logger())
		if err == nil {
			if err = s.RabbitMQ.SetupTopology(); err != nil {
				_ = s.RabbitMQ.Close()
				s.RabbitMQ = nil
			}
		}
		if err != nil {
			initErrors = append(initErrors, fmt.Sprintf("RabbitMQ: %v", err))
		}
	}

	if cfg.MySQL.Enabled {
		enabled++
		s.MySQL, err = NewMySQL(&cfg.MySQL, log.With().Str("component", "mysql").Logger())
		if err != nil {
			initErrors = append(initErrors, fmt.Sprintf("MySQL: %v", err))
		}
	}

	if cfg.Redis.Enabled {
		enabled++
		s.Redis, err = NewRedisAdapter(ctx, &cfg.Redis)
		if err != nil {
			initErrors = append(initErrors, fmt.Sprintf("Redis: %v", err))
		}
	}

	if enabled > 0 && len(initErrors) == enabled {
		return nil, fmt.Errorf("所有存储组件初始化失败: %s", strings.Join(initErrors, "; "))
	}
	if len(initErrors) > 0 {
		log.Warn().Str("errors", strings.Join(initErrors, "; ")).Msg("部分存储组件初始化失败")
	}
	return s, nil
}

// Empty 没有任何可用后端
func (s *Storage) Empty() bool {
	return s == nil || (s.MinIO == nil && s.RabbitMQ == nil && s.MySQL == nil && s.Redis == nil)
}

// Close 关闭所有连接
func (s *Storage) Close() error {
	if s == nil {
		return nil
	}
	var errs []string
	if s.RabbitMQ != nil {
		if err := s.RabbitMQ.Close(); err != nil {
			errs = append(errs, "rabbitmq: "+err.Error())
		}
	}
	if s.MySQL != nil {
		if err := s.MySQL.Close(); err != nil {
			errs = append(errs, "mysql: "+err.Error())
		}
	}
	if s.Redis != nil {
		if err := s.Redis.Close(); err != nil {
			errs = append(errs, "redis: "+err.Error())
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("关闭存储失败: %s", strings.Join(errs, "; "))
	}
	return nil
}
