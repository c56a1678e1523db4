package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"cvision/internal/api/handler"
	"cvision/internal/api/router"
	"cvision/internal/config"
	"cvision/internal/logger"
	"cvision/internal/outbox"
	"cvision/internal/processor"
	"cvision/internal/storage"
	"cvision/internal/tracing"
)

var version = "1.0.0" //nolint:gochecknoglobals

func main() {
	var configPath, initConfig string
	pflag.StringVarP(&configPath, "config", "c", "", "配置文件路径，为空时在常见位置查找")
	pflag.StringVar(&initConfig, "init-config", "", "写出一份默认配置到指定路径后退出")
	pflag.Parse()

	if initConfig != "" {
		if err := config.CreateSampleConfig(initConfig); err != nil {
			logger.Fatal().Err(err).Msg("写出示例配置失败")
		}
		logger.Info().Str("file", initConfig).Msg("示例配置已写出")
		return
	}

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("加载配置失败")
	}

	logCloser, err := logger.Init(logger.Config(cfg.Logger))
	if err != nil {
		logger.Fatal().Err(err).Msg("初始化日志失败")
	}
	defer logCloser.Close()
	logger.Info().Str("version", version).Msg("配置加载成功")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTracing, err := tracing.Init(ctx, cfg.Tracing, version)
	if err != nil {
		logger.Fatal().Err(err).Msg("初始化追踪失败")
	}

	store, err := storage.NewStorage(ctx, cfg, logger.Named("storage"))
	if err != nil {
		logger.Fatal().Err(err).Msg("初始化存储失败")
	}
	defer store.Close()

	pipeline, err := processor.NewPipelineFromConfig(cfg.Extraction, logger.Named("pipeline"))
	if err != nil {
		logger.Fatal().Err(err).Msg("初始化流水线失败")
	}
	docExtractor, err := processor.NewDocumentExtractor(ctx, cfg, logger.Named("parser"))
	if err != nil {
		logger.Fatal().Err(err).Msg("初始化文本提取器失败")
	}

	service := processor.NewProfileService(pipeline, store, cfg.RabbitMQ,
		processor.WithServiceLogger(logger.Named("service")),
		processor.WithServiceExtractor(docExtractor),
	)

	// outbox 需要 MySQL 承载、RabbitMQ 投递
	var relay *outbox.MessageRelay
	if store.MySQL != nil && store.RabbitMQ != nil {
		relay = outbox.NewMessageRelay(store.MySQL.DB(), store.RabbitMQ,
			outbox.WithPollingInterval(config.GetDuration(cfg.RabbitMQ.OutboxPollInterval, 0)),
			outbox.WithBatchSize(cfg.RabbitMQ.OutboxBatchSize),
			outbox.WithLogger(logger.Named("outbox")),
		)
		relay.Start(ctx)
	}

	var consumerDone <-chan struct{}
	if store.RabbitMQ != nil {
		consumerDone, err = service.StartTextConsumer(ctx, cfg.RabbitMQ.ConsumerWorkers)
		if err != nil {
			logger.Fatal().Err(err).Msg("启动文本消费者失败")
		}
	}

	h := router.NewServer(cfg.Server)
	router.RegisterRoutes(h, handler.NewProfileHandler(service), cfg.Server, cfg.Auth)
	logger.Info().Str("address", cfg.Server.Address).Bool("persistent", service.Persistent()).Msg("HTTP 服务器启动中")

	go func() {
		if err := h.Run(); err != nil {
			logger.Fatal().Err(err).Msg("启动HTTP服务器失败")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info().Msg("接收到终止信号，正在优雅退出...")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(),
		config.GetDuration(cfg.Server.ShutdownTimeout, 10*time.Second))
	defer cancelShutdown()
	if err := h.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("HTTP服务器关闭失败")
	}

	cancel()
	if relay != nil {
		relay.Stop()
	}
	if consumerDone != nil {
		<-consumerDone
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("关闭追踪导出失败")
	}
	logger.Info().Msg("优雅退出完成")
}
